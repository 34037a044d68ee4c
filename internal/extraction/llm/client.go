// Package llm wraps the external model collaborator used as the second,
// higher-accuracy extraction source.  The collaborator guarantees no response
// schema; everything read from it goes through the defensive accessors in
// draft.go.  The pipeline treats this entire package as optional: any
// failure here degrades the session to pattern-only extraction.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/errors"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

// ------------------------------------------------------------
// Collaborator contract
// ------------------------------------------------------------

// Extractor is the external collaborator contract: given text and hints,
// return a best-effort entity draft with no schema guarantee.  A nil draft
// with a nil error is a valid "nothing extracted" outcome.
type Extractor interface {
	Extract(ctx context.Context, text string, hints clinical.ExtractionHints) (Draft, clinical.UsageReport, error)
}

// Draft is the raw, untrusted collaborator response.
type Draft map[string]interface{}

// ------------------------------------------------------------
// HTTP-backed implementation
// ------------------------------------------------------------

// Config carries the collaborator connection settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

type httpExtractor struct {
	cfg    Config
	client *http.Client
	logger logging.Logger
}

// NewHTTPExtractor constructs the HTTP-backed collaborator client.
func NewHTTPExtractor(cfg Config, logger logging.Logger) (Extractor, error) {
	if cfg.BaseURL == "" {
		return nil, errors.NewInvalidInputError("llm: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &httpExtractor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("llm"),
	}, nil
}

type extractRequest struct {
	Model string                   `json:"model,omitempty"`
	Text  string                   `json:"text"`
	Hints clinical.ExtractionHints `json:"hints,omitempty"`
}

func (x *httpExtractor) Extract(ctx context.Context, text string, hints clinical.ExtractionHints) (Draft, clinical.UsageReport, error) {
	usage := clinical.UsageReport{PromptChars: len(text)}
	body, err := json.Marshal(extractRequest{Model: x.cfg.Model, Text: text, Hints: hints})
	if err != nil {
		return nil, usage, errors.Wrap(err, errors.CodeLLMMalformedDraft, "llm: failed to encode request")
	}

	var lastErr error
	for attempt := 0; attempt <= x.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				usage.LLMFailures++
				return nil, usage, errors.Wrap(ctx.Err(), errors.CodeLLMTimeout, "llm: cancelled during retry backoff")
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		started := time.Now()
		usage.LLMCalls++
		draft, completionChars, err := x.doOnce(ctx, body)
		usage.DurationMs += time.Since(started).Milliseconds()
		if err == nil {
			usage.CompletionChars += completionChars
			return draft, usage, nil
		}
		usage.LLMFailures++
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		x.logger.Warn("collaborator call failed",
			logging.Int("attempt", attempt+1), logging.Err(err))
	}
	return nil, usage, lastErr
}

func (x *httpExtractor) doOnce(ctx context.Context, body []byte) (Draft, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.cfg.BaseURL+"/v1/extract", bytes.NewReader(body))
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeLLMUnavailable, "llm: failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if x.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+x.cfg.APIKey)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, errors.Wrap(err, errors.CodeLLMTimeout, "llm: call cancelled or timed out")
		}
		return nil, 0, errors.Wrap(err, errors.CodeLLMUnavailable, "llm: collaborator unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeLLMUnavailable, "llm: failed to read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, len(raw), errors.New(errors.CodeLLMUnavailable,
			fmt.Sprintf("llm: collaborator returned status %d", resp.StatusCode))
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, 0, errors.New(errors.CodeLLMEmptyDraft, "llm: collaborator returned an empty draft")
	}

	var draft Draft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, len(raw), errors.Wrap(err, errors.CodeLLMMalformedDraft, "llm: draft is not a JSON object")
	}
	return draft, len(raw), nil
}

// ------------------------------------------------------------
// Disabled implementation
// ------------------------------------------------------------

type disabledExtractor struct{}

// NewDisabledExtractor returns an Extractor that always reports the
// collaborator as unavailable.  Used when pipeline.llm.enabled is false.
func NewDisabledExtractor() Extractor { return disabledExtractor{} }

func (disabledExtractor) Extract(context.Context, string, clinical.ExtractionHints) (Draft, clinical.UsageReport, error) {
	return nil, clinical.UsageReport{}, errors.New(errors.CodeLLMUnavailable, "llm: external extractor disabled")
}
