package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthRouter(checkers ...HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHealthHandler("test", checkers...).RegisterRoutes(r)
	return r
}

func TestLiveness_AlwaysOK(t *testing.T) {
	r := healthRouter(CheckerFunc{CheckerName: "postgres", Fn: func(ctx context.Context) error {
		return assert.AnError
	}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadiness_AllHealthy(t *testing.T) {
	r := healthRouter(
		CheckerFunc{CheckerName: "postgres", Fn: func(ctx context.Context) error { return nil }},
		CheckerFunc{CheckerName: "redis", Fn: func(ctx context.Context) error { return nil }},
	)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status     string                     `json:"status"`
		Components map[string]componentStatus `json:"components"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Len(t, body.Components, 2)
}

func TestReadiness_OneUnavailable(t *testing.T) {
	r := healthRouter(
		CheckerFunc{CheckerName: "postgres", Fn: func(ctx context.Context) error { return nil }},
		CheckerFunc{CheckerName: "neo4j", Fn: func(ctx context.Context) error { return assert.AnError }},
	)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status     string                     `json:"status"`
		Components map[string]componentStatus `json:"components"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "unavailable", body.Components["neo4j"].Status)
	assert.Equal(t, "ok", body.Components["postgres"].Status)
}
