package clinical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupStats_ReductionRatio(t *testing.T) {
	s := DedupStats{OriginalSentences: 10, KeptSentences: 4}
	assert.InDelta(t, 0.6, s.ReductionRatio(), 1e-9)

	assert.Zero(t, DedupStats{}.ReductionRatio())
}

func TestExtractedEntity_Clone_Independence(t *testing.T) {
	d := time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)
	e := &ExtractedEntity{
		Type:         EntityComplication,
		Value:        "vasospasm",
		Confidence:   0.8,
		ResolvedDate: &d,
		Subtype:      &Subtype{Category: "HUNTHESS", Value: "3"},
		Alternatives: []Alternative{{Value: "stenosis", Confidence: 0.4, SourceMethod: SourceLLM}},
	}
	c := e.Clone()
	require.NotNil(t, c)

	c.ResolvedDate = nil
	c.Subtype.Value = "4"
	c.Alternatives[0].Value = "other"

	assert.NotNil(t, e.ResolvedDate)
	assert.Equal(t, "3", e.Subtype.Value)
	assert.Equal(t, "stenosis", e.Alternatives[0].Value)
}

func TestExtractedEntity_Validate(t *testing.T) {
	e := &ExtractedEntity{Type: EntityMedication, Value: "nimodipine", Confidence: 0.9}
	assert.NoError(t, e.Validate())

	assert.Error(t, (&ExtractedEntity{Value: "x", Confidence: 0.5}).Validate())
	assert.Error(t, (&ExtractedEntity{Type: EntityMedication, Confidence: 0.5}).Validate())
	assert.Error(t, (&ExtractedEntity{Type: EntityMedication, Value: "x", Confidence: 1.2}).Validate())
}

func TestExtractionRequest_Validate(t *testing.T) {
	assert.Error(t, (&ExtractionRequest{}).Validate())
	assert.NoError(t, (&ExtractionRequest{Documents: []string{"note"}}).Validate())
}

func TestUsageReport_Add(t *testing.T) {
	var total UsageReport
	total.Add(UsageReport{LLMCalls: 1, PromptChars: 100, DurationMs: 5})
	total.Add(UsageReport{LLMCalls: 2, LLMFailures: 1, CompletionChars: 40})
	assert.Equal(t, 3, total.LLMCalls)
	assert.Equal(t, 1, total.LLMFailures)
	assert.Equal(t, 100, total.PromptChars)
	assert.Equal(t, 40, total.CompletionChars)
}

func TestSession_ConflictedFields(t *testing.T) {
	s := &ExtractionSession{Entities: []*ExtractedEntity{
		{Field: "patient_age", Alternatives: []Alternative{{Value: "62"}}},
		{Field: "patient_age", Alternatives: []Alternative{{Value: "63"}}},
		{Field: "medication:nimodipine"},
	}}
	assert.Equal(t, []string{"patient_age"}, s.ConflictedFields())
}
