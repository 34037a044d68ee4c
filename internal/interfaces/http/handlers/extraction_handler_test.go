package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pgrepos "github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/search/opensearch"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/errors"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/common"
)

type fakeService struct {
	session    *clinical.ExtractionSession
	extractErr error
	enqueueErr error
	deleted    []common.ID
}

func (f *fakeService) Extract(ctx context.Context, req *clinical.ExtractionRequest) (*clinical.ExtractionSession, error) {
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return f.session, nil
}

func (f *fakeService) Enqueue(ctx context.Context, req *clinical.ExtractionRequest) (string, error) {
	if f.enqueueErr != nil {
		return "", f.enqueueErr
	}
	return "job-1", nil
}

func (f *fakeService) JobHandler() kafka.Handler {
	return func(ctx context.Context, env *kafka.Envelope) error { return nil }
}

func (f *fakeService) GetSession(ctx context.Context, id common.ID) (*clinical.ExtractionSession, error) {
	if f.session != nil && f.session.ID == id {
		return f.session, nil
	}
	return nil, errors.New(errors.ErrCodeSessionNotFound, "session not found")
}

func (f *fakeService) ListSessions(ctx context.Context, limit, offset int) ([]pgrepos.SessionSummary, error) {
	return []pgrepos.SessionSummary{{ID: "sess-1"}}, nil
}

func (f *fakeService) SearchSessions(ctx context.Context, text string, limit int) ([]*opensearch.SessionDocument, error) {
	return []*opensearch.SessionDocument{{SessionID: "sess-1"}}, nil
}

func (f *fakeService) DeleteSession(ctx context.Context, id common.ID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func newTestRouter(svc *fakeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewExtractionHandler(svc, nil).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreate_ReturnsSession(t *testing.T) {
	svc := &fakeService{session: &clinical.ExtractionSession{ID: "sess-1", PrimaryPathology: clinical.PathologySAH}}
	r := newTestRouter(svc)

	w := postJSON(t, r, "/api/v1/extractions",
		clinical.ExtractionRequest{Documents: []string{"Admitted with SAH."}})

	require.Equal(t, http.StatusOK, w.Code)
	var session clinical.ExtractionSession
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	assert.Equal(t, common.ID("sess-1"), session.ID)
}

func TestCreate_RejectsEmptyDocuments(t *testing.T) {
	r := newTestRouter(&fakeService{})
	w := postJSON(t, r, "/api/v1/extractions", clinical.ExtractionRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCreate_RejectsMalformedBody(t *testing.T) {
	r := newTestRouter(&fakeService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extractions", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCreate_MasksInternalErrors(t *testing.T) {
	svc := &fakeService{extractErr: errors.New(errors.ErrCodeInternal, "pool exhausted: secret dsn")}
	r := newTestRouter(svc)

	w := postJSON(t, r, "/api/v1/extractions",
		clinical.ExtractionRequest{Documents: []string{"note"}})

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotContains(t, body.Message, "secret dsn")
}

func TestCreateAsync_ReturnsAccepted(t *testing.T) {
	r := newTestRouter(&fakeService{})
	w := postJSON(t, r, "/api/v1/extractions/async",
		clinical.ExtractionRequest{Documents: []string{"note"}})

	require.Equal(t, http.StatusAccepted, w.Code)
	var body asyncAccepted
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "job-1", body.JobID)
}

func TestGet_FoundAndNotFound(t *testing.T) {
	svc := &fakeService{session: &clinical.ExtractionSession{ID: "sess-1"}}
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/extractions/sess-1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/extractions/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestList_ReturnsSummaries(t *testing.T) {
	r := newTestRouter(&fakeService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/extractions?limit=5", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestSearch_RequiresQuery(t *testing.T) {
	r := newTestRouter(&fakeService{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/extractions/search", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/extractions/search?q=vasospasm", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDelete_ReturnsNoContent(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/extractions/sess-1", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []common.ID{"sess-1"}, svc.deleted)
}
