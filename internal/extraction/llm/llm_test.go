package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/turtacn/NeuroChart-Intelligence/pkg/errors"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

func fullDraft() Draft {
	return Draft{
		"patient_age":   float64(54),
		"patient_sex":   "Female",
		"pathology":     "subarachnoid_hemorrhage",
		"procedures":    []interface{}{"coiling"},
		"complications": []interface{}{"vasospasm"},
		"medications":   []interface{}{"Nimodipine"},
		"dates":         []interface{}{"2025-01-14"},
		"functional_scores": map[string]interface{}{
			"gcs": float64(14),
		},
	}
}

func TestCoerce_FullDraftKeepsHighConfidence(t *testing.T) {
	ents := Coerce(fullDraft())
	require.NotEmpty(t, ents)
	for _, e := range ents {
		assert.Equal(t, clinical.SourceLLM, e.SourceMethod)
		assert.InDelta(t, 0.90, e.Confidence, 1e-9)
	}
}

func TestCoerce_MissingKeysPenalized(t *testing.T) {
	d := Draft{"medications": []interface{}{"nimodipine"}}
	ents := Coerce(d)
	require.Len(t, ents, 1)
	// 7 of 8 expected keys missing: 0.90 - 7*0.05 = 0.55
	assert.InDelta(t, 0.55, ents[0].Confidence, 1e-9)
}

func TestCoerce_ConfidenceFloor(t *testing.T) {
	d := Draft{"unexpected": "junk", "more": "junk"}
	ents := Coerce(d)
	assert.Empty(t, ents)
}

func TestCoerce_ToleratesWrongShapes(t *testing.T) {
	d := Draft{
		"patient_age":       []interface{}{"not", "a", "scalar"},
		"procedures":        "craniotomy",                     // bare string, not array
		"complications":     []interface{}{float64(3), "dvt"}, // mixed scalars
		"medications":       map[string]interface{}{"x": "y"}, // wrong shape entirely
		"functional_scores": "GCS 14",                         // wrong shape
	}
	ents := Coerce(d)

	fields := make(map[string]string)
	for _, e := range ents {
		fields[e.Field] = e.Value
	}
	assert.Equal(t, "craniotomy", fields["procedure:craniotomy"])
	assert.Equal(t, "dvt", fields["complication:dvt"])
	assert.NotContains(t, fields, "patient_age")
	assert.NotContains(t, fields, "medication:x")
}

func TestCoerce_NilAndEmpty(t *testing.T) {
	assert.Nil(t, Coerce(nil))
	assert.Nil(t, Coerce(Draft{}))
}

func TestCoerce_Deterministic(t *testing.T) {
	first, err := json.Marshal(Coerce(fullDraft()))
	require.NoError(t, err)
	again, err := json.Marshal(Coerce(fullDraft()))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(again))
}

func TestHTTPExtractor_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/extract", r.URL.Path)
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"medications": []string{"nimodipine"},
		})
	}))
	defer srv.Close()

	x, err := NewHTTPExtractor(Config{BaseURL: srv.URL, APIKey: "sekrit"}, nil)
	require.NoError(t, err)

	draft, usage, err := x.Extract(context.Background(), "note text", clinical.ExtractionHints{})
	require.NoError(t, err)
	assert.NotNil(t, draft["medications"])
	assert.Equal(t, 1, usage.LLMCalls)
	assert.Equal(t, 0, usage.LLMFailures)
	assert.Equal(t, len("note text"), usage.PromptChars)
}

func TestHTTPExtractor_ServerErrorRetriesThenFails(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	x, err := NewHTTPExtractor(Config{BaseURL: srv.URL, MaxRetries: 2}, nil)
	require.NoError(t, err)

	_, usage, err := x.Extract(context.Background(), "text", clinical.ExtractionHints{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeLLMUnavailable))
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, usage.LLMFailures)
}

func TestHTTPExtractor_MalformedDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["not", "an", "object"]`))
	}))
	defer srv.Close()

	x, err := NewHTTPExtractor(Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, _, err = x.Extract(context.Background(), "text", clinical.ExtractionHints{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeLLMMalformedDraft))
}

func TestHTTPExtractor_EmptyDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("null"))
	}))
	defer srv.Close()

	x, err := NewHTTPExtractor(Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, _, err = x.Extract(context.Background(), "text", clinical.ExtractionHints{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeLLMEmptyDraft))
}

func TestHTTPExtractor_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	x, err := NewHTTPExtractor(Config{BaseURL: srv.URL, MaxRetries: 3}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err = x.Extract(ctx, "text", clinical.ExtractionHints{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeLLMTimeout))
}

func TestDisabledExtractor(t *testing.T) {
	x := NewDisabledExtractor()
	_, _, err := x.Extract(context.Background(), "text", clinical.ExtractionHints{})
	require.Error(t, err)
	assert.True(t, apperrors.IsDegradation(err))
}

func TestNewHTTPExtractor_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPExtractor(Config{}, nil)
	assert.Error(t, err)
}
