package extraction

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pgrepos "github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/errors"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakePipeline struct {
	session *clinical.ExtractionSession
	err     error
	calls   int
	mu      sync.Mutex
}

func (p *fakePipeline) Extract(ctx context.Context, req *clinical.ExtractionRequest) (*clinical.ExtractionSession, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.session, nil
}

type fakeCache struct {
	mu       sync.Mutex
	sessions map[string]*clinical.ExtractionSession
}

func newFakeCache() *fakeCache {
	return &fakeCache{sessions: make(map[string]*clinical.ExtractionSession)}
}

func (c *fakeCache) Lookup(ctx context.Context, req *clinical.ExtractionRequest) (*clinical.ExtractionSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[redis.RequestDigest(req)]; ok {
		return s, nil
	}
	return nil, redis.ErrCacheMiss
}

func (c *fakeCache) Store(ctx context.Context, req *clinical.ExtractionRequest, session *clinical.ExtractionSession) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[redis.RequestDigest(req)] = session
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, req *clinical.ExtractionRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, redis.RequestDigest(req))
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[common.ID]*clinical.ExtractionSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[common.ID]*clinical.ExtractionSession)}
}

func (r *fakeSessionRepo) Save(ctx context.Context, session *clinical.ExtractionSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r *fakeSessionRepo) FindByID(ctx context.Context, id common.ID) (*clinical.ExtractionSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	return nil, errors.New(errors.ErrCodeSessionNotFound, "session not found")
}

func (r *fakeSessionRepo) List(ctx context.Context, limit, offset int) ([]pgrepos.SessionSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []pgrepos.SessionSummary
	for _, s := range r.sessions {
		out = append(out, pgrepos.SessionSummary{ID: s.ID, PrimaryPathology: s.PrimaryPathology})
	}
	return out, nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, id common.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return errors.New(errors.ErrCodeSessionNotFound, "session not found")
	}
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeSessionRepo) has(id common.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	return ok
}

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafkago.Message
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) byTopic(topic string) []kafkago.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []kafkago.Message
	for _, m := range w.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

func doneSession() *clinical.ExtractionSession {
	return &clinical.ExtractionSession{
		ID:               "sess-1",
		CreatedAt:        time.Date(2025, 1, 14, 12, 0, 0, 0, time.UTC),
		PrimaryPathology: clinical.PathologySAH,
		Quality:          &clinical.QualityReport{Overall: 0.88},
	}
}

func request() *clinical.ExtractionRequest {
	return &clinical.ExtractionRequest{Documents: []string{"Admitted with SAH."}}
}

func newTestService(t *testing.T, deps Dependencies) Service {
	t.Helper()
	if deps.Pipeline == nil {
		deps.Pipeline = &fakePipeline{session: doneSession()}
	}
	svc, err := NewService(deps)
	require.NoError(t, err)
	return svc
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestNewService_RequiresPipeline(t *testing.T) {
	_, err := NewService(Dependencies{})
	assert.Error(t, err)
}

func TestExtract_PersistsToAllBackends(t *testing.T) {
	repo := newFakeSessionRepo()
	cache := newFakeCache()
	svc := newTestService(t, Dependencies{Sessions: repo, Cache: cache})

	sess, err := svc.Extract(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, common.ID("sess-1"), sess.ID)

	assert.True(t, repo.has("sess-1"))

	cached, err := cache.Lookup(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, sess.ID, cached.ID)
}

func TestExtract_CacheHitSkipsPipeline(t *testing.T) {
	pipe := &fakePipeline{session: doneSession()}
	cache := newFakeCache()
	require.NoError(t, cache.Store(context.Background(), request(), doneSession()))

	svc := newTestService(t, Dependencies{Pipeline: pipe, Cache: cache})
	sess, err := svc.Extract(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, common.ID("sess-1"), sess.ID)
	assert.Equal(t, 0, pipe.calls)
}

func TestExtract_PipelineErrorPropagates(t *testing.T) {
	svc := newTestService(t, Dependencies{Pipeline: &fakePipeline{err: assert.AnError}})
	_, err := svc.Extract(context.Background(), request())
	assert.Error(t, err)
}

func TestEnqueue_PublishesJob(t *testing.T) {
	fw := &fakeWriter{}
	producer := kafka.NewProducerWithWriter(fw, "apiserver", nil)
	svc := newTestService(t, Dependencies{Producer: producer})

	jobID, err := svc.Enqueue(context.Background(), request())
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	msgs := fw.byTopic(kafka.TopicExtractionRequested)
	require.Len(t, msgs, 1)

	var env kafka.Envelope
	require.NoError(t, json.Unmarshal(msgs[0].Value, &env))
	var payload kafka.ExtractionRequestedPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, jobID, payload.JobID)
	assert.Equal(t, request().Documents, payload.Request.Documents)
}

func TestEnqueue_WithoutProducerFails(t *testing.T) {
	svc := newTestService(t, Dependencies{})
	_, err := svc.Enqueue(context.Background(), request())
	assert.Error(t, err)
}

func TestEnqueue_RejectsInvalidRequest(t *testing.T) {
	producer := kafka.NewProducerWithWriter(&fakeWriter{}, "apiserver", nil)
	svc := newTestService(t, Dependencies{Producer: producer})

	_, err := svc.Enqueue(context.Background(), &clinical.ExtractionRequest{})
	assert.Error(t, err)
}

func TestJobHandler_CompletionEvent(t *testing.T) {
	fw := &fakeWriter{}
	producer := kafka.NewProducerWithWriter(fw, "worker", nil)
	repo := newFakeSessionRepo()
	svc := newTestService(t, Dependencies{Producer: producer, Sessions: repo})

	env, err := kafka.NewEnvelope("extraction.requested", "test",
		&kafka.ExtractionRequestedPayload{JobID: "job-1", Request: request()})
	require.NoError(t, err)

	require.NoError(t, svc.JobHandler()(context.Background(), env))
	assert.True(t, repo.has("sess-1"))

	msgs := fw.byTopic(kafka.TopicExtractionCompleted)
	require.Len(t, msgs, 1)

	var completedEnv kafka.Envelope
	require.NoError(t, json.Unmarshal(msgs[0].Value, &completedEnv))
	var payload kafka.ExtractionCompletedPayload
	require.NoError(t, completedEnv.DecodePayload(&payload))
	assert.Equal(t, "job-1", payload.JobID)
	assert.Equal(t, "sess-1", payload.SessionID)
	assert.InDelta(t, 0.88, payload.QualityOverall, 1e-9)
}

func TestJobHandler_FailureEvent(t *testing.T) {
	fw := &fakeWriter{}
	producer := kafka.NewProducerWithWriter(fw, "worker", nil)
	svc := newTestService(t, Dependencies{
		Pipeline: &fakePipeline{err: assert.AnError},
		Producer: producer,
	})

	env, err := kafka.NewEnvelope("extraction.requested", "test",
		&kafka.ExtractionRequestedPayload{JobID: "job-1", Request: request()})
	require.NoError(t, err)

	assert.Error(t, svc.JobHandler()(context.Background(), env))

	msgs := fw.byTopic(kafka.TopicExtractionFailed)
	require.Len(t, msgs, 1)
}

func TestGetSession_NotFound(t *testing.T) {
	svc := newTestService(t, Dependencies{Sessions: newFakeSessionRepo()})
	_, err := svc.GetSession(context.Background(), "missing")
	assert.Error(t, err)
}

func TestDeleteSession_RemovesArchiveRow(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := newTestService(t, Dependencies{Sessions: repo})

	_, err := svc.Extract(context.Background(), request())
	require.NoError(t, err)
	require.True(t, repo.has("sess-1"))

	require.NoError(t, svc.DeleteSession(context.Background(), "sess-1"))
	assert.False(t, repo.has("sess-1"))
}

func TestListSessions_WithoutArchiveFails(t *testing.T) {
	svc := newTestService(t, Dependencies{})
	_, err := svc.ListSessions(context.Background(), 10, 0)
	assert.Error(t, err)
}
