// Package repositories persists clinical timelines as a graph: session and
// event nodes plus confidence-weighted causal edges, so cross-stay temporal
// patterns can be queried in Cypher.
package repositories

import (
	"context"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/database/neo4j"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/errors"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/common"
)

// TimelineGraphRepository mirrors a session's timeline into the graph.
type TimelineGraphRepository interface {
	SaveTimeline(ctx context.Context, session *clinical.ExtractionSession) error
	DeleteSession(ctx context.Context, id common.ID) error
}

type timelineRepo struct {
	sessions neo4j.SessionFactory
	logger   logging.Logger
}

// NewTimelineGraphRepository constructs the repository.  logger may be nil.
func NewTimelineGraphRepository(sessions neo4j.SessionFactory, logger logging.Logger) TimelineGraphRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &timelineRepo{sessions: sessions, logger: logger.Named("timeline_graph")}
}

const (
	mergeSessionCypher = `
		MERGE (s:ClinicalSession {id: $id})
		SET s.created_at = $created_at,
		    s.pathology  = $pathology,
		    s.degraded   = $degraded`

	mergeEventCypher = `
		MATCH (s:ClinicalSession {id: $session_id})
		MERGE (e:ClinicalEvent {id: $id})
		SET e.date        = $date,
		    e.type        = $type,
		    e.description = $description,
		    e.importance  = $importance
		MERGE (s)-[:HAS_EVENT]->(e)`

	mergeCausalCypher = `
		MATCH (a:ClinicalEvent {id: $from_id}), (b:ClinicalEvent {id: $to_id})
		MERGE (a)-[r:CAUSAL {type: $type}]->(b)
		SET r.confidence    = $confidence,
		    r.distance_days = $distance_days`

	deleteSessionCypher = `
		MATCH (s:ClinicalSession {id: $id})
		OPTIONAL MATCH (s)-[:HAS_EVENT]->(e:ClinicalEvent)
		DETACH DELETE s, e`
)

func (r *timelineRepo) SaveTimeline(ctx context.Context, session *clinical.ExtractionSession) error {
	gs := r.sessions.NewSession(ctx)
	defer gs.Close(ctx)

	_, err := gs.ExecuteWrite(ctx, func(tx neo4j.Transaction) (any, error) {
		if _, err := tx.Run(ctx, mergeSessionCypher, map[string]any{
			"id":         string(session.ID),
			"created_at": session.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			"pathology":  string(session.PrimaryPathology),
			"degraded":   session.Degraded,
		}); err != nil {
			return nil, err
		}

		for _, ev := range session.Timeline {
			if _, err := tx.Run(ctx, mergeEventCypher, map[string]any{
				"session_id":  string(session.ID),
				"id":          string(ev.ID),
				"date":        ev.Date.Format("2006-01-02"),
				"type":        string(ev.Type),
				"description": ev.Description,
				"importance":  ev.Importance,
			}); err != nil {
				return nil, err
			}
		}

		for _, edge := range session.CausalRelationships {
			if _, err := tx.Run(ctx, mergeCausalCypher, map[string]any{
				"from_id":       string(edge.FromEventID),
				"to_id":         string(edge.ToEventID),
				"type":          string(edge.Type),
				"confidence":    edge.Confidence,
				"distance_days": edge.DistanceDays,
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to persist timeline graph")
	}

	r.logger.Debug("timeline persisted to graph",
		logging.String("session_id", string(session.ID)),
		logging.Int("events", len(session.Timeline)),
		logging.Int("edges", len(session.CausalRelationships)),
	)
	return nil
}

func (r *timelineRepo) DeleteSession(ctx context.Context, id common.ID) error {
	gs := r.sessions.NewSession(ctx)
	defer gs.Close(ctx)

	_, err := gs.ExecuteWrite(ctx, func(tx neo4j.Transaction) (any, error) {
		return tx.Run(ctx, deleteSessionCypher, map[string]any{"id": string(id)})
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete session graph")
	}
	return nil
}
