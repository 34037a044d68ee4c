// Package confidence calibrates entity confidences against the quality of
// the source text.  Pattern extraction is brittle on poorly structured notes,
// so pattern-sourced confidences are down-weighted more aggressively in
// low-quality text than collaborator-sourced ones.
package confidence

import (
	"regexp"
	"strings"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

// Five source-quality factors and their weights.
const (
	weightStructure    = 0.25
	weightCompleteness = 0.20
	weightFormality    = 0.20
	weightSpecificity  = 0.20
	weightConsistency  = 0.15
)

// Calibration slopes: the multiplier applied to an entity's confidence is
// floor + (1-floor) * quality, so a perfect-quality note leaves confidence
// untouched and a worthless note scales it down to the floor.  Pattern
// entities have the lowest floor.
const (
	patternFloor = 0.50
	llmFloor     = 0.75
	mergedFloor  = 0.80
)

var (
	sectionRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bHISTORY OF PRESENT ILLNESS:`),
		regexp.MustCompile(`(?i)\bPHYSICAL EXAM`),
		regexp.MustCompile(`(?i)\bASSESSMENT AND PLAN:`),
		regexp.MustCompile(`(?i)\bMEDICATIONS:`),
		regexp.MustCompile(`(?i)\bPAST MEDICAL HISTORY:`),
		regexp.MustCompile(`(?i)\bLABORATORY RESULTS:`),
	}
	expectedSectionRes = sectionRes[:4]

	formalRe   = regexp.MustCompile(`(?i)\b(patient|exam(?:ination)?|assessment|plan|history|diagnosis|bilateral|status|findings)\b`)
	informalRe = regexp.MustCompile(`(?i)\b(gonna|kinda|sorta|lol|idk|stuff|things)\b|!{2,}`)

	numericRe = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	dateRe    = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	unitRe    = regexp.MustCompile(`(?i)\b(?:mg|mcg|ml|mmhg|cm|mm|bpm|kg)\b`)
)

// QualityBreakdown exposes the individual factor scores for auditing.
type QualityBreakdown struct {
	Structure    float64 `json:"structure"`
	Completeness float64 `json:"completeness"`
	Formality    float64 `json:"formality"`
	Specificity  float64 `json:"specificity"`
	Consistency  float64 `json:"consistency"`
	Overall      float64 `json:"overall"`
}

// Scorer computes source-text quality and calibrates entity confidences.
type Scorer interface {
	SourceQuality(text string) QualityBreakdown
	Calibrate(entities []*clinical.ExtractedEntity, quality QualityBreakdown)
}

type scorer struct {
	logger logging.Logger
}

// NewScorer constructs a Scorer.  logger may be nil.
func NewScorer(logger logging.Logger) Scorer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &scorer{logger: logger.Named("confidence")}
}

func (s *scorer) SourceQuality(text string) QualityBreakdown {
	if strings.TrimSpace(text) == "" {
		return QualityBreakdown{}
	}
	q := QualityBreakdown{
		Structure:    structureScore(text),
		Completeness: completenessScore(text),
		Formality:    formalityScore(text),
		Specificity:  specificityScore(text),
		Consistency:  consistencyScore(text),
	}
	q.Overall = weightStructure*q.Structure +
		weightCompleteness*q.Completeness +
		weightFormality*q.Formality +
		weightSpecificity*q.Specificity +
		weightConsistency*q.Consistency

	s.logger.Debug("source quality computed", logging.Float64("overall", q.Overall))
	return q
}

// structureScore rewards recognizable section headers and sentence
// punctuation.
func structureScore(text string) float64 {
	hits := 0
	for _, re := range sectionRes {
		if re.MatchString(text) {
			hits++
		}
	}
	headerPart := float64(hits) / float64(len(sectionRes))

	sentences := strings.Count(text, ". ") + strings.Count(text, ".\n") + 1
	punctuationPart := clamp(float64(sentences) / 5.0)

	return clamp(0.6*headerPart + 0.4*punctuationPart)
}

// completenessScore is the fraction of expected sections present.  Notes
// without any headers still earn partial credit from length, since terse
// progress notes routinely omit headers entirely.
func completenessScore(text string) float64 {
	hits := 0
	for _, re := range expectedSectionRes {
		if re.MatchString(text) {
			hits++
		}
	}
	sectionPart := float64(hits) / float64(len(expectedSectionRes))
	lengthPart := clamp(float64(len(text)) / 1500.0)
	return clamp(0.5*sectionPart + 0.5*lengthPart)
}

func formalityScore(text string) float64 {
	formal := len(formalRe.FindAllStringIndex(text, -1))
	informal := len(informalRe.FindAllStringIndex(text, -1))
	if formal+informal == 0 {
		return 0.5
	}
	return clamp(float64(formal) / float64(formal+informal*3))
}

// specificityScore measures the density of numbers, dates, and measurement
// units relative to text length.
func specificityScore(text string) float64 {
	tokens := len(strings.Fields(text))
	if tokens == 0 {
		return 0
	}
	specific := len(numericRe.FindAllStringIndex(text, -1)) +
		len(dateRe.FindAllStringIndex(text, -1)) +
		len(unitRe.FindAllStringIndex(text, -1))
	return clamp(float64(specific) / float64(tokens) * 5.0)
}

// consistencyScore penalizes fragmentary text: the fraction of sentences
// long enough to carry a complete clinical statement.
func consistencyScore(text string) float64 {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	if len(parts) == 0 {
		return 0
	}
	substantive := 0
	for _, p := range parts {
		if len(strings.Fields(p)) >= 3 {
			substantive++
		}
	}
	return float64(substantive) / float64(len(parts))
}

// Calibrate rescales every entity's confidence by a source-dependent factor
// of the overall text quality.  Confidence never increases.
func (s *scorer) Calibrate(entities []*clinical.ExtractedEntity, quality QualityBreakdown) {
	for _, ent := range entities {
		floor := patternFloor
		switch ent.SourceMethod {
		case clinical.SourceLLM:
			floor = llmFloor
		case clinical.SourceMerged:
			floor = mergedFloor
		}
		factor := floor + (1.0-floor)*quality.Overall
		ent.Confidence = clamp(ent.Confidence * factor)
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
