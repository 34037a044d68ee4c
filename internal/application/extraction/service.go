// Package extraction orchestrates the extraction pipeline together with the
// platform's persistence backends: the Redis session cache, the Postgres
// session archive, the Neo4j timeline graph, the MinIO document archive and
// the OpenSearch session index.  Every backend except the pipeline itself is
// optional; a nil dependency simply skips that side effect.
package extraction

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/NeuroChart-Intelligence/internal/extraction/session"
	neo4jrepos "github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/database/neo4j/repositories"
	pgrepos "github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/search/opensearch"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/errors"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/common"
)

// sideEffectTimeout bounds post-extraction persistence so a slow backend
// cannot hold the response hostage.
const sideEffectTimeout = 15 * time.Second

// Service is the application-layer entry point for extraction work.
type Service interface {
	// Extract runs the pipeline synchronously, consulting the session cache
	// first and persisting the result to every configured backend.
	Extract(ctx context.Context, req *clinical.ExtractionRequest) (*clinical.ExtractionSession, error)

	// Enqueue publishes the request as an asynchronous job and returns the
	// job ID.  Requires a configured producer.
	Enqueue(ctx context.Context, req *clinical.ExtractionRequest) (string, error)

	// JobHandler returns the Kafka handler that processes queued jobs.
	JobHandler() kafka.Handler

	GetSession(ctx context.Context, id common.ID) (*clinical.ExtractionSession, error)
	ListSessions(ctx context.Context, limit, offset int) ([]pgrepos.SessionSummary, error)
	SearchSessions(ctx context.Context, text string, limit int) ([]*opensearch.SessionDocument, error)
	DeleteSession(ctx context.Context, id common.ID) error
}

// Dependencies collects the service's collaborators.  Pipeline is required;
// everything else may be nil.
type Dependencies struct {
	Pipeline session.Pipeline
	Cache    redis.SessionCache
	Sessions pgrepos.SessionRepository
	Graph    neo4jrepos.TimelineGraphRepository
	Archive  minio.DocumentArchive
	Indexer  opensearch.SessionIndexer
	Producer *kafka.Producer
	Metrics  *prometheus.PipelineMetrics
	Logger   logging.Logger
}

type service struct {
	deps   Dependencies
	logger logging.Logger
}

// NewService constructs the application service.
func NewService(deps Dependencies) (Service, error) {
	if deps.Pipeline == nil {
		return nil, errors.New(errors.ErrCodeValidation, "extraction pipeline is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &service{deps: deps, logger: logger.Named("extraction_service")}, nil
}

func (s *service) Extract(ctx context.Context, req *clinical.ExtractionRequest) (*clinical.ExtractionSession, error) {
	if s.deps.Cache != nil {
		if cached, err := s.deps.Cache.Lookup(ctx, req); err == nil {
			s.observeCache(true)
			s.logger.Info("session served from cache", logging.String("session_id", string(cached.ID)))
			return cached, nil
		} else if !stderrors.Is(err, redis.ErrCacheMiss) {
			s.logger.Warn("session cache lookup failed", logging.Err(err))
		}
		s.observeCache(false)
	}

	sess, err := s.deps.Pipeline.Extract(ctx, req)
	if err != nil {
		return nil, err
	}

	s.persist(ctx, req, sess)
	s.observeSession(sess)
	return sess, nil
}

// persist fans the finished session out to every configured backend.
// Failures degrade to warnings; the extraction result is already in hand.
func (s *service) persist(ctx context.Context, req *clinical.ExtractionRequest, sess *clinical.ExtractionSession) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(pctx)

	if s.deps.Sessions != nil {
		g.Go(func() error {
			if err := s.deps.Sessions.Save(gctx, sess); err != nil {
				s.logger.Warn("session archive save failed", logging.Err(err))
			}
			return nil
		})
	}
	if s.deps.Graph != nil && len(sess.Timeline) > 0 {
		g.Go(func() error {
			if err := s.deps.Graph.SaveTimeline(gctx, sess); err != nil {
				s.logger.Warn("timeline graph save failed", logging.Err(err))
			}
			return nil
		})
	}
	if s.deps.Archive != nil {
		g.Go(func() error {
			if _, err := s.deps.Archive.ArchiveRequest(gctx, sess.ID, req); err != nil {
				s.logger.Warn("document archive failed", logging.Err(err))
			}
			return nil
		})
	}
	if s.deps.Indexer != nil {
		g.Go(func() error {
			if err := s.deps.Indexer.IndexSession(gctx, sess); err != nil {
				s.logger.Warn("session indexing failed", logging.Err(err))
			}
			return nil
		})
	}
	if s.deps.Cache != nil {
		g.Go(func() error {
			if err := s.deps.Cache.Store(gctx, req, sess); err != nil {
				s.logger.Warn("session cache store failed", logging.Err(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *service) Enqueue(ctx context.Context, req *clinical.ExtractionRequest) (string, error) {
	if s.deps.Producer == nil {
		return "", errors.New(errors.ErrCodeInternal, "asynchronous extraction is not configured")
	}
	if err := req.Validate(); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeValidation, "invalid extraction request")
	}

	jobID := uuid.New().String()
	payload := &kafka.ExtractionRequestedPayload{JobID: jobID, Request: req}
	if err := s.deps.Producer.Publish(ctx, kafka.TopicExtractionRequested, "extraction.requested", jobID, payload); err != nil {
		return "", err
	}

	s.logger.Info("extraction job enqueued", logging.String("job_id", jobID))
	return jobID, nil
}

// JobHandler processes one queued extraction job.  The result lands in the
// configured backends; completion and failure events go back to Kafka so
// submitters can follow up.
func (s *service) JobHandler() kafka.Handler {
	return func(ctx context.Context, env *kafka.Envelope) error {
		var payload kafka.ExtractionRequestedPayload
		if err := env.DecodePayload(&payload); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "undecodable extraction job")
		}

		sess, err := s.Extract(ctx, payload.Request)
		if err != nil {
			s.observeJob(false)
			s.publishFailed(ctx, payload.JobID, err)
			return err
		}

		s.observeJob(true)
		s.publishCompleted(ctx, payload.JobID, sess)
		return nil
	}
}

func (s *service) publishCompleted(ctx context.Context, jobID string, sess *clinical.ExtractionSession) {
	if s.deps.Producer == nil {
		return
	}
	payload := &kafka.ExtractionCompletedPayload{
		JobID:            jobID,
		SessionID:        string(sess.ID),
		PrimaryPathology: string(sess.PrimaryPathology),
		Degraded:         sess.Degraded,
	}
	if sess.Quality != nil {
		payload.QualityOverall = sess.Quality.Overall
	}
	if err := s.deps.Producer.Publish(ctx, kafka.TopicExtractionCompleted, "extraction.completed", jobID, payload); err != nil {
		s.logger.Warn("completion event publish failed", logging.Err(err))
	}
}

func (s *service) publishFailed(ctx context.Context, jobID string, cause error) {
	if s.deps.Producer == nil {
		return
	}
	payload := &kafka.ExtractionFailedPayload{JobID: jobID, Reason: cause.Error()}
	if err := s.deps.Producer.Publish(ctx, kafka.TopicExtractionFailed, "extraction.failed", jobID, payload); err != nil {
		s.logger.Warn("failure event publish failed", logging.Err(err))
	}
}

func (s *service) GetSession(ctx context.Context, id common.ID) (*clinical.ExtractionSession, error) {
	if s.deps.Sessions == nil {
		return nil, errors.New(errors.ErrCodeInternal, "session archive is not configured")
	}
	return s.deps.Sessions.FindByID(ctx, id)
}

func (s *service) ListSessions(ctx context.Context, limit, offset int) ([]pgrepos.SessionSummary, error) {
	if s.deps.Sessions == nil {
		return nil, errors.New(errors.ErrCodeInternal, "session archive is not configured")
	}
	return s.deps.Sessions.List(ctx, limit, offset)
}

func (s *service) SearchSessions(ctx context.Context, text string, limit int) ([]*opensearch.SessionDocument, error) {
	if s.deps.Indexer == nil {
		return nil, errors.New(errors.ErrCodeInternal, "session search is not configured")
	}
	return s.deps.Indexer.SearchSessions(ctx, text, limit)
}

func (s *service) DeleteSession(ctx context.Context, id common.ID) error {
	if s.deps.Sessions == nil {
		return errors.New(errors.ErrCodeInternal, "session archive is not configured")
	}

	// Best-effort cleanup of the secondary stores; the archive row is the
	// source of truth.
	if s.deps.Graph != nil {
		if err := s.deps.Graph.DeleteSession(ctx, id); err != nil {
			s.logger.Warn("timeline graph delete failed", logging.Err(err))
		}
	}
	if s.deps.Indexer != nil {
		if err := s.deps.Indexer.DeleteSession(ctx, id); err != nil {
			s.logger.Warn("session index delete failed", logging.Err(err))
		}
	}
	if s.deps.Archive != nil {
		if err := s.deps.Archive.DeleteRequest(ctx, id); err != nil {
			s.logger.Warn("document archive delete failed", logging.Err(err))
		}
	}

	return s.deps.Sessions.Delete(ctx, id)
}

func (s *service) observeCache(hit bool) {
	if s.deps.Metrics == nil {
		return
	}
	if hit {
		s.deps.Metrics.CacheHitsTotal.Inc()
	} else {
		s.deps.Metrics.CacheMissesTotal.Inc()
	}
}

func (s *service) observeSession(sess *clinical.ExtractionSession) {
	if s.deps.Metrics == nil {
		return
	}
	status := "completed"
	if sess.Degraded {
		status = "degraded"
	}
	s.deps.Metrics.SessionsTotal.WithLabelValues(status).Inc()
	if sess.Quality != nil {
		s.deps.Metrics.SessionQuality.Observe(sess.Quality.Overall)
	}
}

func (s *service) observeJob(ok bool) {
	if s.deps.Metrics == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	s.deps.Metrics.JobsConsumedTotal.WithLabelValues(status).Inc()
}
