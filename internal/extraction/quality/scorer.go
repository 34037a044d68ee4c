// Package quality aggregates the state of a finished extraction session into
// the six-dimension quality report and derives refinement hints from it.
// Both computations are read-only over the session.
package quality

import (
	"strings"

	"github.com/turtacn/NeuroChart-Intelligence/internal/extraction/pattern"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

// Dimension weights.  Must sum to 1.
const (
	weightAccuracy           = 0.25
	weightCompleteness       = 0.20
	weightSpecificity        = 0.15
	weightTimeliness         = 0.15
	weightConsistency        = 0.15
	weightNarrativeReadiness = 0.10
)

// datedEntityTypes are the entity types the timeline builder consumes; the
// timeliness dimension is the dated fraction of these.
var datedEntityTypes = map[clinical.EntityType]bool{
	clinical.EntityProcedure:          true,
	clinical.EntityComplication:       true,
	clinical.EntityImagingFinding:     true,
	clinical.EntityConsultationRecord: true,
	clinical.EntityMedication:         true,
	clinical.EntityFunctionalScore:    true,
}

// Scorer computes the session quality report.
type Scorer interface {
	Score(session *clinical.ExtractionSession) *clinical.QualityReport
}

type scorer struct {
	logger logging.Logger
}

// NewScorer constructs a Scorer.  logger may be nil.
func NewScorer(logger logging.Logger) Scorer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &scorer{logger: logger.Named("quality")}
}

// Score computes every dimension from the entity and timeline state and
// returns the weighted aggregate.  Always returns a report with every value
// finite and inside [0,1], including for empty sessions.
func (s *scorer) Score(session *clinical.ExtractionSession) *clinical.QualityReport {
	r := &clinical.QualityReport{
		Accuracy:           accuracy(session),
		Completeness:       completeness(session),
		Specificity:        specificity(session),
		Timeliness:         timeliness(session),
		Consistency:        consistency(session),
		NarrativeReadiness: narrativeReadiness(session),
	}
	r.Overall = clamp01(weightAccuracy*r.Accuracy +
		weightCompleteness*r.Completeness +
		weightSpecificity*r.Specificity +
		weightTimeliness*r.Timeliness +
		weightConsistency*r.Consistency +
		weightNarrativeReadiness*r.NarrativeReadiness)

	s.logger.Debug("quality scored",
		logging.Float64("overall", r.Overall),
		logging.Int("entities", len(session.Entities)),
	)
	return r
}

// accuracy is the mean calibrated confidence across the final entity set.
func accuracy(session *clinical.ExtractionSession) float64 {
	if len(session.Entities) == 0 {
		return 0
	}
	var sum float64
	for _, ent := range session.Entities {
		sum += ent.Confidence
	}
	return clamp01(sum / float64(len(session.Entities)))
}

// completeness is the fraction of the pathology profile's expected fields
// that the entity set populated.
func completeness(session *clinical.ExtractionSession) float64 {
	expected := pattern.ProfileFor(session.PrimaryPathology).ExpectedFields
	if len(expected) == 0 {
		return 1
	}
	populated := 0
	for _, field := range expected {
		if fieldPopulated(session.Entities, field) {
			populated++
		}
	}
	return float64(populated) / float64(len(expected))
}

// fieldPopulated matches an expected field name against the entity set.
// Multi-valued fields use the "category:value" naming, so a bare expected
// name matches either exactly or as a category prefix.  "subtype" is
// populated by any entity carrying a subtype classification.
func fieldPopulated(entities []*clinical.ExtractedEntity, field string) bool {
	for _, ent := range entities {
		if field == "subtype" {
			if ent.Subtype != nil {
				return true
			}
			continue
		}
		if ent.Field == field || strings.HasPrefix(ent.Field, field+":") {
			return true
		}
	}
	return false
}

// specificity is the fraction of entities carrying concrete detail: a
// subtype, a resolved date, or a numeric value.
func specificity(session *clinical.ExtractionSession) float64 {
	if len(session.Entities) == 0 {
		return 0
	}
	specific := 0
	for _, ent := range session.Entities {
		if ent.Subtype != nil || ent.ResolvedDate != nil || hasDigit(ent.Value) {
			specific++
		}
	}
	return float64(specific) / float64(len(session.Entities))
}

// timeliness is the dated fraction of the event-bearing entity types.
func timeliness(session *clinical.ExtractionSession) float64 {
	total, dated := 0, 0
	for _, ent := range session.Entities {
		if !datedEntityTypes[ent.Type] {
			continue
		}
		total++
		if ent.ResolvedDate != nil {
			dated++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(dated) / float64(total)
}

// consistency penalizes fields that retained disagreeing alternatives after
// fusion.
func consistency(session *clinical.ExtractionSession) float64 {
	fields := make(map[string]bool)
	conflicted := make(map[string]bool)
	for _, ent := range session.Entities {
		fields[ent.Field] = true
		if ent.HasConflict() {
			conflicted[ent.Field] = true
		}
	}
	if len(fields) == 0 {
		return 1
	}
	return 1 - float64(len(conflicted))/float64(len(fields))
}

// narrativeReadiness checks the structural signals the narrative generator
// needs: a detected pathology, a non-empty timeline, at least one dated
// entity, and a usable trajectory.
func narrativeReadiness(session *clinical.ExtractionSession) float64 {
	signals := 0
	if session.PrimaryPathology != "" && session.PrimaryPathology != clinical.PathologyGeneric {
		signals++
	}
	if len(session.Timeline) > 0 {
		signals++
	}
	if timeliness(session) > 0 {
		signals++
	}
	if session.Trajectory != nil && session.Trajectory.Label != clinical.TrajectoryInsufficientData {
		signals++
	}
	return float64(signals) / 4
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
