// Package clinical defines the data model for the clinical-note extraction
// core: documents, sentences, extracted entities, timeline events, causal
// relationships, treatment responses, functional trajectories, and the
// ExtractionSession aggregate that carries all of them across the pipeline.
//
// All types here are plain values with no behaviour beyond validation and
// small accessors; the pipeline stages under internal/extraction own every
// mutation, in the order the pipeline prescribes.
package clinical

import (
	"fmt"
	"time"

	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// Documents and sentences
// ─────────────────────────────────────────────────────────────────────────────

// ClinicalDocument is one raw input note.  Immutable once ingested.
type ClinicalDocument struct {
	Index         int        `json:"index"`
	Text          string     `json:"text"`
	TimestampHint *time.Time `json:"timestamp_hint,omitempty"`
}

// Sentence is a segment of a normalized document.  Never mutated after
// creation.
type Sentence struct {
	ID       int    `json:"id"`
	Text     string `json:"text"`
	DocIndex int    `json:"doc_index"`
	Offset   int    `json:"offset"`
}

// SimilarityCluster is a set of near-duplicate sentences.  Exactly one
// representative is kept per cluster in the deduplicated output.
type SimilarityCluster struct {
	Representative Sentence   `json:"representative"`
	Members        []Sentence `json:"members"`
}

// DedupStats summarizes a deduplication run.
type DedupStats struct {
	OriginalSentences int `json:"original_sentences"`
	KeptSentences     int `json:"kept_sentences"`
	ClusterCount      int `json:"cluster_count"`
}

// ReductionRatio returns the fraction of sentences removed, in [0,1].
func (s DedupStats) ReductionRatio() float64 {
	if s.OriginalSentences == 0 {
		return 0
	}
	return 1 - float64(s.KeptSentences)/float64(s.OriginalSentences)
}

// ─────────────────────────────────────────────────────────────────────────────
// Entities
// ─────────────────────────────────────────────────────────────────────────────

// EntityType classifies the kind of clinical entity extracted.
type EntityType string

const (
	EntityDemographic        EntityType = "DEMOGRAPHIC"
	EntityDateReference      EntityType = "DATE_REFERENCE"
	EntityPathology          EntityType = "PATHOLOGY"
	EntityProcedure          EntityType = "PROCEDURE"
	EntityComplication       EntityType = "COMPLICATION"
	EntityMedication         EntityType = "MEDICATION"
	EntityFunctionalScore    EntityType = "FUNCTIONAL_SCORE"
	EntityImagingFinding     EntityType = "IMAGING_FINDING"
	EntityConsultationRecord EntityType = "CONSULTATION"
)

// SourceMethod identifies which extraction source produced an entity value.
type SourceMethod string

const (
	SourcePattern SourceMethod = "pattern"
	SourceLLM     SourceMethod = "llm"
	SourceMerged  SourceMethod = "merged"
)

// SourceSpan is a byte-offset range into the deduplicated text, kept for
// auditability.
type SourceSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Valid reports whether the span denotes a real location.
func (s SourceSpan) Valid() bool {
	return s.End > s.Start && s.Start >= 0
}

// Alternative is a discarded value retained after a merge conflict so that
// downstream quality scoring can detect disagreements.
type Alternative struct {
	Value        string       `json:"value"`
	Confidence   float64      `json:"confidence"`
	SourceMethod SourceMethod `json:"source_method"`
}

// Subtype carries a pathology-specific severity/grade classification
// (e.g., Hunt-Hess grade for SAH, WHO grade for glioma).
type Subtype struct {
	Category   string  `json:"category"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ExtractedEntity is the central unit of the pipeline: a typed value with
// provenance, confidence, and temporal binding.
//
// Created by the pattern and LLM extractors; mutated only by the merger
// (fusion), the temporal resolver (date binding), the negation filter
// (negation flag), and the subtype classifier (subtype attachment).
type ExtractedEntity struct {
	ID           common.ID     `json:"id"`
	Type         EntityType    `json:"type"`
	Field        string        `json:"field"`
	Value        string        `json:"value"`
	SourceMethod SourceMethod  `json:"source_method"`
	Confidence   float64       `json:"confidence"`
	Span         SourceSpan    `json:"span"`
	DocIndex     int           `json:"doc_index"`
	ResolvedDate *time.Time    `json:"resolved_date,omitempty"`
	Negated      bool          `json:"negated"`
	Subtype      *Subtype      `json:"subtype,omitempty"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
}

// Clone returns a deep copy of the entity.
func (e *ExtractedEntity) Clone() *ExtractedEntity {
	if e == nil {
		return nil
	}
	clone := *e
	if e.ResolvedDate != nil {
		d := *e.ResolvedDate
		clone.ResolvedDate = &d
	}
	if e.Subtype != nil {
		st := *e.Subtype
		clone.Subtype = &st
	}
	if len(e.Alternatives) > 0 {
		clone.Alternatives = append([]Alternative(nil), e.Alternatives...)
	}
	return &clone
}

// HasConflict reports whether the entity retained a disagreeing alternative.
func (e *ExtractedEntity) HasConflict() bool {
	return len(e.Alternatives) > 0
}

// Validate checks structural invariants that every pipeline stage relies on.
func (e *ExtractedEntity) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("entity type is required")
	}
	if e.Value == "" {
		return fmt.Errorf("entity value is required")
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("confidence %f outside [0,1]", e.Confidence)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Pathology detection
// ─────────────────────────────────────────────────────────────────────────────

// PathologyType names a condition profile in the pattern library.
type PathologyType string

const (
	PathologySAH            PathologyType = "SUBARACHNOID_HEMORRHAGE"
	PathologySDH            PathologyType = "SUBDURAL_HEMATOMA"
	PathologyGlioblastoma   PathologyType = "GLIOBLASTOMA"
	PathologySpinalStenosis PathologyType = "SPINAL_STENOSIS"
	PathologyAVM            PathologyType = "ARTERIOVENOUS_MALFORMATION"
	PathologyHydrocephalus  PathologyType = "HYDROCEPHALUS"
	PathologyICH            PathologyType = "INTRACEREBRAL_HEMORRHAGE"
	PathologyMeningioma     PathologyType = "MENINGIOMA"
	PathologyGeneric        PathologyType = "GENERIC"
)

// PathologyScore is one candidate from the multi-pass pathology detector.
type PathologyScore struct {
	Type  PathologyType `json:"type"`
	Score float64       `json:"score"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Timeline
// ─────────────────────────────────────────────────────────────────────────────

// EventType classifies a timeline event.
type EventType string

const (
	EventAdmission    EventType = "admission"
	EventProcedure    EventType = "procedure"
	EventComplication EventType = "complication"
	EventImaging      EventType = "imaging"
	EventConsultation EventType = "consultation"
	EventDischarge    EventType = "discharge"
	EventMilestone    EventType = "milestone"
)

// TimelineEvent wraps one or more entities sharing a resolved date.
// Events are totally ordered by Date; ties broken by input document order.
type TimelineEvent struct {
	ID          common.ID          `json:"id"`
	Date        time.Time          `json:"date"`
	Type        EventType          `json:"type"`
	Description string             `json:"description"`
	Importance  float64            `json:"importance"`
	DocIndex    int                `json:"doc_index"`
	Entities    []*ExtractedEntity `json:"entities"`
}

// RelationType classifies a heuristically inferred causal edge.
type RelationType string

const (
	RelationMayHaveCaused RelationType = "may_have_caused"
	RelationPrompted      RelationType = "prompted"
	RelationResultedIn    RelationType = "resulted_in"
)

// CausalRelationship is a directed, confidence-weighted edge between two
// timeline events.  Never asserted with confidence > 0.95 absent explicit
// textual causal language.
type CausalRelationship struct {
	FromEventID  common.ID    `json:"from_event_id"`
	ToEventID    common.ID    `json:"to_event_id"`
	Type         RelationType `json:"type"`
	Confidence   float64      `json:"confidence"`
	DistanceDays int          `json:"distance_days"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Treatment response
// ─────────────────────────────────────────────────────────────────────────────

// ResponseQuality classifies how well an intervention worked.
type ResponseQuality string

const (
	ResponseExcellent ResponseQuality = "excellent"
	ResponseGood      ResponseQuality = "good"
	ResponsePartial   ResponseQuality = "partial"
	ResponsePoor      ResponseQuality = "poor"
	ResponseUnknown   ResponseQuality = "unknown"
)

// TreatmentResponse pairs an intervention event with a discovered outcome.
type TreatmentResponse struct {
	InterventionID     common.ID       `json:"intervention_id"`
	Intervention       string          `json:"intervention"`
	Outcome            string          `json:"outcome"`
	Quality            ResponseQuality `json:"quality"`
	TimeToResponseDays int             `json:"time_to_response_days"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Functional trajectory
// ─────────────────────────────────────────────────────────────────────────────

// ScoreKind names a recognized functional scoring system.
type ScoreKind string

const (
	ScoreGCS  ScoreKind = "GCS"  // Glasgow Coma Scale, 3–15
	ScoreKPS  ScoreKind = "KPS"  // Karnofsky Performance Status, 0–100
	ScoreECOG ScoreKind = "ECOG" // ECOG performance status, 0–5, inverted
	ScoreMRS  ScoreKind = "MRS"  // modified Rankin Scale, 0–6, inverted
)

// FunctionalScore is one normalized functional measurement.
type FunctionalScore struct {
	Kind       ScoreKind  `json:"kind"`
	Raw        float64    `json:"raw"`
	Normalized float64    `json:"normalized"` // common 0–1 scale, higher is better
	Date       *time.Time `json:"date,omitempty"`
}

// StepChange marks a significant shift between consecutive scores.
type StepChange struct {
	FromIndex int     `json:"from_index"`
	ToIndex   int     `json:"to_index"`
	Delta     float64 `json:"delta"`
}

// TrajectoryLabel summarizes the overall functional course.
type TrajectoryLabel string

const (
	TrajectoryImproving        TrajectoryLabel = "improving"
	TrajectoryStable           TrajectoryLabel = "stable"
	TrajectoryDeclining        TrajectoryLabel = "declining"
	TrajectoryFluctuating      TrajectoryLabel = "fluctuating"
	TrajectoryInsufficientData TrajectoryLabel = "insufficient_data"
)

// FunctionalTrajectory is the ordered, normalized score sequence with its
// overall label.
type FunctionalTrajectory struct {
	Scores             []FunctionalScore `json:"scores"`
	Label              TrajectoryLabel   `json:"label"`
	SignificantChanges []StepChange      `json:"significant_changes,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Quality
// ─────────────────────────────────────────────────────────────────────────────

// QualityReport carries the six named dimension scores plus the weighted
// overall score, each in [0,1].
type QualityReport struct {
	Accuracy           float64 `json:"accuracy"`
	Completeness       float64 `json:"completeness"`
	Specificity        float64 `json:"specificity"`
	Timeliness         float64 `json:"timeliness"`
	Consistency        float64 `json:"consistency"`
	NarrativeReadiness float64 `json:"narrative_readiness"`
	Overall            float64 `json:"overall"`
}

// RefinementHints is the pure-function output an external control loop uses
// to decide whether to re-invoke the external extractor with feedback.
type RefinementHints struct {
	NeedsRefinement   bool     `json:"needs_refinement"`
	WeakDimensions    []string `json:"weak_dimensions,omitempty"`
	ConflictedFields  []string `json:"conflicted_fields,omitempty"`
	UndatedEntityIDs  []string `json:"undated_entity_ids,omitempty"`
	MissingFields     []string `json:"missing_fields,omitempty"`
	SuggestedFeedback string   `json:"suggested_feedback,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Usage accounting
// ─────────────────────────────────────────────────────────────────────────────

// UsageReport accounts for collaborator usage during one session.  It is
// returned alongside the session; cross-session aggregation is the caller's
// responsibility via Add.
type UsageReport struct {
	LLMCalls        int   `json:"llm_calls"`
	LLMFailures     int   `json:"llm_failures"`
	PromptChars     int   `json:"prompt_chars"`
	CompletionChars int   `json:"completion_chars"`
	DurationMs      int64 `json:"duration_ms"`
}

// Add accumulates another report into the receiver.
func (u *UsageReport) Add(other UsageReport) {
	u.LLMCalls += other.LLMCalls
	u.LLMFailures += other.LLMFailures
	u.PromptChars += other.PromptChars
	u.CompletionChars += other.CompletionChars
	u.DurationMs += other.DurationMs
}

// ─────────────────────────────────────────────────────────────────────────────
// Extraction session
// ─────────────────────────────────────────────────────────────────────────────

// ExtractionHints is optional caller-supplied metadata.
type ExtractionHints struct {
	Pathology  PathologyType `json:"pathology,omitempty"`
	PatientAge int           `json:"patient_age,omitempty"`
	PatientSex string        `json:"patient_sex,omitempty"`
}

// ExtractionRequest is the input contract: one or more raw UTF-8 documents
// plus optional hints.
type ExtractionRequest struct {
	Documents []string        `json:"documents"`
	Hints     ExtractionHints `json:"hints,omitempty"`
}

// Validate rejects structurally unusable requests.  Individual empty
// documents are NOT rejected here; the pipeline skips them with a warning.
func (r *ExtractionRequest) Validate() error {
	if r == nil || len(r.Documents) == 0 {
		return fmt.Errorf("at least one document is required")
	}
	return nil
}

// ExtractionSession is the sole interface boundary to the rest of the
// application: the merged, deduplicated, date-resolved, negation-filtered
// entity set plus everything derived from it.  Owned by a single extraction
// run; discarded after the consuming caller reads it.
type ExtractionSession struct {
	ID                  common.ID             `json:"id"`
	CreatedAt           time.Time             `json:"created_at"`
	Documents           []ClinicalDocument    `json:"documents"`
	DeduplicatedText    string                `json:"deduplicated_text"`
	DedupStats          DedupStats            `json:"dedup_stats"`
	PrimaryPathology    PathologyType         `json:"primary_pathology"`
	DetectedPathologies []PathologyScore      `json:"detected_pathologies,omitempty"`
	Entities            []*ExtractedEntity    `json:"entities"`
	Timeline            []*TimelineEvent      `json:"timeline"`
	CausalRelationships []*CausalRelationship `json:"causal_relationships,omitempty"`
	Responses           []*TreatmentResponse  `json:"responses,omitempty"`
	Trajectory          *FunctionalTrajectory `json:"trajectory,omitempty"`
	Quality             *QualityReport        `json:"quality"`
	Warnings            []string              `json:"warnings,omitempty"`
	Degraded            bool                  `json:"degraded"`
	Usage               UsageReport           `json:"usage"`
}

// EntitiesOfType returns all entities of the given type, in extraction order.
func (s *ExtractionSession) EntitiesOfType(t EntityType) []*ExtractedEntity {
	var out []*ExtractedEntity
	for _, e := range s.Entities {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// EventByID returns the timeline event with the given ID, or nil.
func (s *ExtractionSession) EventByID(id common.ID) *TimelineEvent {
	for _, ev := range s.Timeline {
		if ev.ID == id {
			return ev
		}
	}
	return nil
}

// ConflictedFields returns the fusion field names that retained alternatives.
func (s *ExtractionSession) ConflictedFields() []string {
	var out []string
	seen := map[string]bool{}
	for _, e := range s.Entities {
		if e.HasConflict() && !seen[e.Field] {
			seen[e.Field] = true
			out = append(out, e.Field)
		}
	}
	return out
}
