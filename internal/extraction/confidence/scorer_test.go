package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

const structuredNote = `HISTORY OF PRESENT ILLNESS: 54-year-old female admitted 2025-01-14 with subarachnoid hemorrhage.
PHYSICAL EXAM: GCS 14, no focal deficit. Blood pressure 142/88 mmhg.
MEDICATIONS: nimodipine 60 mg q4h.
ASSESSMENT AND PLAN: Continue nimodipine, repeat CT in the morning. Monitor for vasospasm daily.`

const sloppyNote = `pt ok i guess. stuff looks fine lol!!`

func TestSourceQuality_StructuredBeatsSloppy(t *testing.T) {
	s := NewScorer(nil)
	good := s.SourceQuality(structuredNote)
	bad := s.SourceQuality(sloppyNote)

	assert.Greater(t, good.Overall, bad.Overall)
	assert.Greater(t, good.Structure, bad.Structure)
	assert.Greater(t, good.Specificity, bad.Specificity)
	assert.GreaterOrEqual(t, good.Overall, 0.0)
	assert.LessOrEqual(t, good.Overall, 1.0)
}

func TestSourceQuality_EmptyTextIsZero(t *testing.T) {
	s := NewScorer(nil)
	q := s.SourceQuality("   ")
	assert.Equal(t, 0.0, q.Overall)
}

func TestCalibrate_PatternDownweightedMoreThanMerged(t *testing.T) {
	s := NewScorer(nil)
	quality := QualityBreakdown{Overall: 0.2}

	pat := &clinical.ExtractedEntity{SourceMethod: clinical.SourcePattern, Confidence: 0.9}
	llm := &clinical.ExtractedEntity{SourceMethod: clinical.SourceLLM, Confidence: 0.9}
	mrg := &clinical.ExtractedEntity{SourceMethod: clinical.SourceMerged, Confidence: 0.9}

	s.Calibrate([]*clinical.ExtractedEntity{pat, llm, mrg}, quality)

	assert.Less(t, pat.Confidence, llm.Confidence)
	assert.Less(t, llm.Confidence, mrg.Confidence)
	assert.Less(t, mrg.Confidence, 0.9)
}

func TestCalibrate_PerfectQualityLeavesConfidenceUntouched(t *testing.T) {
	s := NewScorer(nil)
	ent := &clinical.ExtractedEntity{SourceMethod: clinical.SourcePattern, Confidence: 0.85}
	s.Calibrate([]*clinical.ExtractedEntity{ent}, QualityBreakdown{Overall: 1.0})
	assert.InDelta(t, 0.85, ent.Confidence, 1e-9)
}

func TestCalibrate_NeverIncreases(t *testing.T) {
	s := NewScorer(nil)
	for _, overall := range []float64{0.0, 0.3, 0.7, 1.0} {
		ent := &clinical.ExtractedEntity{SourceMethod: clinical.SourceLLM, Confidence: 0.8}
		s.Calibrate([]*clinical.ExtractedEntity{ent}, QualityBreakdown{Overall: overall})
		assert.LessOrEqual(t, ent.Confidence, 0.8)
		assert.GreaterOrEqual(t, ent.Confidence, 0.0)
	}
}

func TestSourceQuality_FactorsInRange(t *testing.T) {
	s := NewScorer(nil)
	q := s.SourceQuality(structuredNote)
	for name, v := range map[string]float64{
		"structure":    q.Structure,
		"completeness": q.Completeness,
		"formality":    q.Formality,
		"specificity":  q.Specificity,
		"consistency":  q.Consistency,
	} {
		require.GreaterOrEqual(t, v, 0.0, name)
		require.LessOrEqual(t, v, 1.0, name)
	}
}
