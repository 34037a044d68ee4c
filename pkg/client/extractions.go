package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/common"
)

// SessionSummary is the list-view projection returned by ListSessions.
type SessionSummary struct {
	ID               common.ID              `json:"id"`
	CreatedAt        time.Time              `json:"created_at"`
	PrimaryPathology clinical.PathologyType `json:"primary_pathology"`
	EntityCount      int                    `json:"entity_count"`
	EventCount       int                    `json:"event_count"`
	QualityOverall   float64                `json:"quality_overall"`
	Degraded         bool                   `json:"degraded"`
}

// SearchHit is one full-text search result.
type SearchHit struct {
	SessionID        string    `json:"session_id"`
	CreatedAt        time.Time `json:"created_at"`
	PrimaryPathology string    `json:"primary_pathology"`
	QualityOverall   float64   `json:"quality_overall"`
	DeduplicatedText string    `json:"deduplicated_text"`
}

// Extract runs a synchronous extraction and returns the full session.
func (c *Client) Extract(ctx context.Context, req *clinical.ExtractionRequest) (*clinical.ExtractionSession, error) {
	var session clinical.ExtractionSession
	if err := c.post(ctx, "/api/v1/extractions", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ExtractAsync enqueues the extraction and returns the job ID.
func (c *Client) ExtractAsync(ctx context.Context, req *clinical.ExtractionRequest) (string, error) {
	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := c.post(ctx, "/api/v1/extractions/async", req, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

// GetSession fetches one archived session.
func (c *Client) GetSession(ctx context.Context, id common.ID) (*clinical.ExtractionSession, error) {
	var session clinical.ExtractionSession
	if err := c.get(ctx, "/api/v1/extractions/"+url.PathEscape(string(id)), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions returns archived session summaries, newest first.
func (c *Client) ListSessions(ctx context.Context, limit, offset int) ([]SessionSummary, error) {
	var resp struct {
		Sessions []SessionSummary `json:"sessions"`
	}
	path := fmt.Sprintf("/api/v1/extractions?limit=%d&offset=%d", limit, offset)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// SearchSessions runs a full-text query over deduplicated note text.
func (c *Client) SearchSessions(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	var resp struct {
		Hits []SearchHit `json:"hits"`
	}
	path := fmt.Sprintf("/api/v1/extractions/search?q=%s&limit=%d", url.QueryEscape(query), limit)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Hits, nil
}

// DeleteSession removes a session from every backend.
func (c *Client) DeleteSession(ctx context.Context, id common.ID) error {
	return c.delete(ctx, "/api/v1/extractions/"+url.PathEscape(string(id)))
}
