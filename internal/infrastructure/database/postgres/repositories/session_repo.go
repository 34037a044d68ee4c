// Package repositories implements persistence for extraction sessions on
// top of the postgres connection pool.  Sessions are archived as JSONB with
// a few promoted columns for filtering.
package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/NeuroChart-Intelligence/pkg/errors"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/common"
)

// SessionSummary is the list-view projection of an archived session.
type SessionSummary struct {
	ID               common.ID              `json:"id"`
	CreatedAt        time.Time              `json:"created_at"`
	PrimaryPathology clinical.PathologyType `json:"primary_pathology"`
	EntityCount      int                    `json:"entity_count"`
	EventCount       int                    `json:"event_count"`
	QualityOverall   float64                `json:"quality_overall"`
	Degraded         bool                   `json:"degraded"`
}

// SessionRepository archives and retrieves extraction sessions.
type SessionRepository interface {
	Save(ctx context.Context, session *clinical.ExtractionSession) error
	FindByID(ctx context.Context, id common.ID) (*clinical.ExtractionSession, error)
	List(ctx context.Context, limit, offset int) ([]SessionSummary, error)
	Delete(ctx context.Context, id common.ID) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type sessionRepo struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewSessionRepository constructs a SessionRepository.  logger may be nil.
func NewSessionRepository(pool *pgxpool.Pool, logger logging.Logger) SessionRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &sessionRepo{pool: pool, logger: logger.Named("session_repo")}
}

func (r *sessionRepo) Save(ctx context.Context, session *clinical.ExtractionSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "session serialization failed")
	}

	var overall float64
	if session.Quality != nil {
		overall = session.Quality.Overall
	}

	const q = `
		INSERT INTO extraction_sessions
			(id, created_at, primary_pathology, entity_count, event_count, quality_overall, degraded, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			primary_pathology = EXCLUDED.primary_pathology,
			entity_count      = EXCLUDED.entity_count,
			event_count       = EXCLUDED.event_count,
			quality_overall   = EXCLUDED.quality_overall,
			degraded          = EXCLUDED.degraded,
			payload           = EXCLUDED.payload`
	_, err = r.pool.Exec(ctx, q,
		string(session.ID), session.CreatedAt, string(session.PrimaryPathology),
		len(session.Entities), len(session.Timeline), overall, session.Degraded, payload)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to archive session")
	}
	r.logger.Debug("session archived", logging.String("session_id", string(session.ID)))
	return nil
}

func (r *sessionRepo) FindByID(ctx context.Context, id common.ID) (*clinical.ExtractionSession, error) {
	const q = `SELECT payload FROM extraction_sessions WHERE id = $1`
	var payload []byte
	err := r.pool.QueryRow(ctx, q, string(id)).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrCodeSessionNotFound, "session not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to load session")
	}

	var session clinical.ExtractionSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSessionCorrupt, "archived session is corrupt")
	}
	return &session, nil
}

func (r *sessionRepo) List(ctx context.Context, limit, offset int) ([]SessionSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const q = `
		SELECT id, created_at, primary_pathology, entity_count, event_count, quality_overall, degraded
		FROM extraction_sessions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to list sessions")
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var id, pathology string
		if err := rows.Scan(&id, &s.CreatedAt, &pathology, &s.EntityCount,
			&s.EventCount, &s.QualityOverall, &s.Degraded); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to scan session row")
		}
		s.ID = common.ID(id)
		s.PrimaryPathology = clinical.PathologyType(pathology)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionRepo) Delete(ctx context.Context, id common.ID) error {
	const q = `DELETE FROM extraction_sessions WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, string(id))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to delete session")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.ErrCodeSessionNotFound, "session not found")
	}
	return nil
}

func (r *sessionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM extraction_sessions WHERE created_at < $1`
	tag, err := r.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to prune sessions")
	}
	return tag.RowsAffected(), nil
}
