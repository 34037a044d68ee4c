package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

func ent(t clinical.EntityType, field, value string, conf float64) *clinical.ExtractedEntity {
	return &clinical.ExtractedEntity{
		Type: t, Field: field, Value: value,
		SourceMethod: clinical.SourcePattern, Confidence: conf,
	}
}

func dated(e *clinical.ExtractedEntity) *clinical.ExtractedEntity {
	d := time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)
	e.ResolvedDate = &d
	return e
}

func richSession() *clinical.ExtractionSession {
	path := ent(clinical.EntityPathology, "primary_pathology", "subarachnoid hemorrhage", 0.9)
	path.Subtype = &clinical.Subtype{Category: "HUNTHESS", Value: "3", Confidence: 0.92}
	s := &clinical.ExtractionSession{
		PrimaryPathology: clinical.PathologySAH,
		Entities: []*clinical.ExtractedEntity{
			ent(clinical.EntityDemographic, "patient_age", "54", 0.9),
			ent(clinical.EntityDemographic, "patient_sex", "female", 0.9),
			ent(clinical.EntityDateReference, "admission_date", "2025-01-14", 0.95),
			path,
			dated(ent(clinical.EntityProcedure, "procedure:coiling", "coiling", 0.85)),
			dated(ent(clinical.EntityMedication, "medication:nimodipine", "nimodipine", 0.85)),
			dated(ent(clinical.EntityFunctionalScore, "functional_score:gcs", "14", 0.95)),
		},
		Timeline: []*clinical.TimelineEvent{
			{Type: clinical.EventProcedure, Date: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
		},
		Trajectory: &clinical.FunctionalTrajectory{Label: clinical.TrajectoryImproving},
	}
	return s
}

func TestScore_AllDimensionsInRange(t *testing.T) {
	r := NewScorer(nil).Score(richSession())
	for name, v := range map[string]float64{
		"accuracy":            r.Accuracy,
		"completeness":        r.Completeness,
		"specificity":         r.Specificity,
		"timeliness":          r.Timeliness,
		"consistency":         r.Consistency,
		"narrative_readiness": r.NarrativeReadiness,
		"overall":             r.Overall,
	} {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}
}

func TestScore_EmptySessionFinite(t *testing.T) {
	r := NewScorer(nil).Score(&clinical.ExtractionSession{})
	assert.GreaterOrEqual(t, r.Overall, 0.0)
	assert.LessOrEqual(t, r.Overall, 1.0)
	assert.Equal(t, 0.0, r.Accuracy)
	assert.Equal(t, 1.0, r.Consistency)
}

func TestScore_CompletenessTracksExpectedFields(t *testing.T) {
	full := NewScorer(nil).Score(richSession())

	sparse := richSession()
	sparse.Entities = sparse.Entities[:1] // patient_age only
	partial := NewScorer(nil).Score(sparse)

	assert.Greater(t, full.Completeness, partial.Completeness)
	assert.Equal(t, 1.0, full.Completeness)
}

func TestScore_ConflictsLowerConsistency(t *testing.T) {
	clean := NewScorer(nil).Score(richSession())

	conflicted := richSession()
	conflicted.Entities[0].Alternatives = []clinical.Alternative{
		{Value: "45", Confidence: 0.8, SourceMethod: clinical.SourceLLM},
	}
	dirty := NewScorer(nil).Score(conflicted)

	assert.Greater(t, clean.Consistency, dirty.Consistency)
}

func TestScore_UndatedEventsLowerTimeliness(t *testing.T) {
	s := richSession()
	s.Entities = append(s.Entities,
		ent(clinical.EntityComplication, "complication:vasospasm", "vasospasm", 0.8))
	r := NewScorer(nil).Score(s)
	assert.Less(t, r.Timeliness, 1.0)
	assert.Greater(t, r.Timeliness, 0.0)
}

func TestScore_GenericPathologyStillScores(t *testing.T) {
	s := &clinical.ExtractionSession{
		PrimaryPathology: clinical.PathologyGeneric,
		Entities: []*clinical.ExtractedEntity{
			ent(clinical.EntityDemographic, "patient_age", "60", 0.9),
		},
	}
	r := NewScorer(nil).Score(s)
	assert.Greater(t, r.Overall, 0.0)
	assert.LessOrEqual(t, r.Overall, 1.0)
}

func TestComputeRefinementHints_CleanSessionNoRefinement(t *testing.T) {
	s := richSession()
	s.Quality = NewScorer(nil).Score(s)
	require.GreaterOrEqual(t, s.Quality.Overall, 0.70)

	hints := ComputeRefinementHints(s)
	assert.False(t, hints.NeedsRefinement)
	assert.Empty(t, hints.ConflictedFields)
	assert.Empty(t, hints.MissingFields)
}

func TestComputeRefinementHints_MissingFieldsReported(t *testing.T) {
	s := richSession()
	s.Entities = s.Entities[:2] // demographics only
	s.Timeline = nil
	s.Trajectory = nil
	s.Quality = NewScorer(nil).Score(s)

	hints := ComputeRefinementHints(s)
	assert.True(t, hints.NeedsRefinement)
	assert.Contains(t, hints.MissingFields, "procedure")
	assert.Contains(t, hints.MissingFields, "medication")
	assert.Contains(t, hints.SuggestedFeedback, "procedure")
}

func TestComputeRefinementHints_ConflictsReported(t *testing.T) {
	s := richSession()
	s.Entities[0].Alternatives = []clinical.Alternative{
		{Value: "45", Confidence: 0.8, SourceMethod: clinical.SourceLLM},
	}
	s.Quality = NewScorer(nil).Score(s)

	hints := ComputeRefinementHints(s)
	assert.True(t, hints.NeedsRefinement)
	assert.Contains(t, hints.ConflictedFields, "patient_age")
	assert.Contains(t, hints.SuggestedFeedback, "patient_age")
}

func TestComputeRefinementHints_UndatedEntitiesListed(t *testing.T) {
	s := richSession()
	und := ent(clinical.EntityComplication, "complication:vasospasm", "vasospasm", 0.8)
	und.ID = "ent-undated"
	s.Entities = append(s.Entities, und)
	s.Quality = NewScorer(nil).Score(s)

	hints := ComputeRefinementHints(s)
	assert.Contains(t, hints.UndatedEntityIDs, "ent-undated")
}

func TestComputeRefinementHints_NilQuality(t *testing.T) {
	hints := ComputeRefinementHints(&clinical.ExtractionSession{})
	assert.True(t, hints.NeedsRefinement)
	assert.NotEmpty(t, hints.SuggestedFeedback)
}
