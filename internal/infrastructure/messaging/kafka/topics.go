// Package kafka carries asynchronous extraction jobs between the API server
// and the worker fleet.  Large multi-note submissions are enqueued here and
// processed off the request path.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

// Topics.
const (
	TopicExtractionRequested = "extraction.requested"
	TopicExtractionCompleted = "extraction.completed"
	TopicExtractionFailed    = "extraction.failed"
	TopicDeadLetter          = "extraction.dead_letter"
)

// Envelope standardizes every message on the extraction topics.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// ExtractionRequestedPayload enqueues one extraction job.
type ExtractionRequestedPayload struct {
	JobID   string                      `json:"job_id"`
	Request *clinical.ExtractionRequest `json:"request"`
}

// ExtractionCompletedPayload announces an archived result.
type ExtractionCompletedPayload struct {
	JobID            string  `json:"job_id"`
	SessionID        string  `json:"session_id"`
	PrimaryPathology string  `json:"primary_pathology"`
	QualityOverall   float64 `json:"quality_overall"`
	Degraded         bool    `json:"degraded"`
}

// ExtractionFailedPayload reports a job that exhausted its retries.
type ExtractionFailedPayload struct {
	JobID   string `json:"job_id"`
	Reason  string `json:"reason"`
	Retries int    `json:"retries"`
}

// NewEnvelope wraps a payload for publication.
func NewEnvelope(eventType, source string, payload interface{}) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "1",
		Payload:       raw,
	}, nil
}

// DecodePayload unmarshals the envelope payload into dest.
func (e *Envelope) DecodePayload(dest interface{}) error {
	return json.Unmarshal(e.Payload, dest)
}
