package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func datedEnt(t clinical.EntityType, field, value, date string, spanStart int) *clinical.ExtractedEntity {
	d := day(date)
	return &clinical.ExtractedEntity{
		Type:         t,
		Field:        field,
		Value:        value,
		SourceMethod: clinical.SourcePattern,
		Confidence:   0.8,
		Span:         clinical.SourceSpan{Start: spanStart, End: spanStart + len(value)},
		ResolvedDate: &d,
	}
}

func TestBuild_ChronologicalOrder(t *testing.T) {
	b := NewBuilder(nil)
	ents := []*clinical.ExtractedEntity{
		datedEnt(clinical.EntityComplication, "complication:vasospasm", "vasospasm", "2025-01-16", 100),
		datedEnt(clinical.EntityProcedure, "procedure:coiling", "coiling", "2025-01-15", 50),
		datedEnt(clinical.EntityImagingFinding, "imaging_finding:ct", "CT: diffuse blood", "2025-01-14", 10),
	}
	adm := day("2025-01-14")
	events := b.Build(ents, &adm, nil)

	require.Len(t, events, 4)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Date.Before(events[i-1].Date),
			"event %d out of order", i)
	}
	assert.Equal(t, clinical.EventAdmission, events[0].Type)
}

func TestBuild_UndatedEntitiesExcluded(t *testing.T) {
	b := NewBuilder(nil)
	undated := &clinical.ExtractedEntity{
		Type: clinical.EntityComplication, Field: "complication:seizure", Value: "seizure",
	}
	events := b.Build([]*clinical.ExtractedEntity{undated}, nil, nil)
	assert.Empty(t, events)
}

func TestBuild_SameDayGroupsByType(t *testing.T) {
	b := NewBuilder(nil)
	ents := []*clinical.ExtractedEntity{
		datedEnt(clinical.EntityMedication, "medication:nimodipine", "nimodipine", "2025-01-16", 60),
		datedEnt(clinical.EntityMedication, "medication:keppra", "keppra", "2025-01-16", 80),
		datedEnt(clinical.EntityComplication, "complication:vasospasm", "vasospasm", "2025-01-16", 40),
	}
	events := b.Build(ents, nil, nil)
	require.Len(t, events, 2)
	// same date: tie broken by span offset, complication mention comes first
	assert.Equal(t, clinical.EventComplication, events[0].Type)
	assert.Equal(t, clinical.EventProcedure, events[1].Type)
	assert.Len(t, events[1].Entities, 2)
	assert.Equal(t, "keppra, nimodipine", events[1].Description)
}

func TestBuild_DischargeMilestone(t *testing.T) {
	b := NewBuilder(nil)
	ents := []*clinical.ExtractedEntity{
		datedEnt(clinical.EntityProcedure, "procedure:coiling", "coiling", "2025-01-15", 50),
	}
	adm := day("2025-01-14")
	dis := day("2025-01-22")
	events := b.Build(ents, &adm, &dis)

	require.Len(t, events, 3)
	assert.Equal(t, clinical.EventAdmission, events[0].Type)
	last := events[len(events)-1]
	assert.Equal(t, clinical.EventDischarge, last.Type)
	assert.Equal(t, dis, last.Date)
	assert.Equal(t, 1.0, last.Importance)
	assert.NotEmpty(t, last.ID)
}

func TestBuild_SameDayDischargeSortsLast(t *testing.T) {
	b := NewBuilder(nil)
	ents := []*clinical.ExtractedEntity{
		datedEnt(clinical.EntityImagingFinding, "imaging_finding:ct", "CT: stable", "2025-01-22", 20),
	}
	dis := day("2025-01-22")
	events := b.Build(ents, nil, &dis)

	require.Len(t, events, 2)
	assert.Equal(t, clinical.EventImaging, events[0].Type)
	assert.Equal(t, clinical.EventDischarge, events[1].Type)
}

func TestBuild_Deterministic(t *testing.T) {
	b := NewBuilder(nil)
	mk := func() []*clinical.ExtractedEntity {
		return []*clinical.ExtractedEntity{
			datedEnt(clinical.EntityProcedure, "procedure:coiling", "coiling", "2025-01-15", 50),
			datedEnt(clinical.EntityComplication, "complication:vasospasm", "vasospasm", "2025-01-16", 100),
		}
	}
	first := b.Build(mk(), nil, nil)
	second := b.Build(mk(), nil, nil)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Description, second[i].Description)
	}
}

func TestInfer_PromptedEdge(t *testing.T) {
	b := NewBuilder(nil)
	ents := []*clinical.ExtractedEntity{
		datedEnt(clinical.EntityComplication, "complication:vasospasm", "vasospasm", "2025-01-16", 40),
		datedEnt(clinical.EntityMedication, "medication:nimodipine", "nimodipine", "2025-01-16", 60),
	}
	events := b.Build(ents, nil, nil)
	edges := NewInferrer(CausalConfig{}, nil).Infer(events)

	var prompted *clinical.CausalRelationship
	for _, e := range edges {
		if e.Type == clinical.RelationPrompted {
			prompted = e
		}
	}
	require.NotNil(t, prompted)
	assert.Equal(t, 0, prompted.DistanceDays)
	assert.Less(t, prompted.Confidence, 1.0)
}

func TestInfer_MayHaveCausedDecaysWithDistance(t *testing.T) {
	b := NewBuilder(nil)
	near := b.Build([]*clinical.ExtractedEntity{
		datedEnt(clinical.EntityProcedure, "procedure:coiling", "coiling", "2025-01-15", 10),
		datedEnt(clinical.EntityComplication, "complication:vasospasm", "vasospasm", "2025-01-17", 40),
	}, nil, nil)
	far := b.Build([]*clinical.ExtractedEntity{
		datedEnt(clinical.EntityProcedure, "procedure:coiling", "coiling", "2025-01-15", 10),
		datedEnt(clinical.EntityComplication, "complication:vasospasm", "vasospasm", "2025-01-27", 40),
	}, nil, nil)

	inf := NewInferrer(CausalConfig{}, nil)
	nearEdge := findEdge(inf.Infer(near), clinical.RelationMayHaveCaused)
	farEdge := findEdge(inf.Infer(far), clinical.RelationMayHaveCaused)

	require.NotNil(t, nearEdge)
	require.NotNil(t, farEdge)
	assert.Greater(t, nearEdge.Confidence, farEdge.Confidence)
	assert.Less(t, nearEdge.Confidence, 1.0)
}

func TestInfer_OutsideWindowNoEdge(t *testing.T) {
	b := NewBuilder(nil)
	events := b.Build([]*clinical.ExtractedEntity{
		datedEnt(clinical.EntityProcedure, "procedure:coiling", "coiling", "2025-01-01", 10),
		datedEnt(clinical.EntityComplication, "complication:vasospasm", "vasospasm", "2025-02-15", 40),
	}, nil, nil)
	edges := NewInferrer(CausalConfig{}, nil).Infer(events)
	assert.Nil(t, findEdge(edges, clinical.RelationMayHaveCaused))
}

func TestInfer_ResultedIn(t *testing.T) {
	b := NewBuilder(nil)
	events := b.Build([]*clinical.ExtractedEntity{
		datedEnt(clinical.EntityMedication, "medication:nimodipine", "nimodipine", "2025-01-16", 10),
		datedEnt(clinical.EntityImagingFinding, "imaging_finding:ct", "CT: vasospasm improving", "2025-01-19", 40),
	}, nil, nil)
	edges := NewInferrer(CausalConfig{}, nil).Infer(events)

	edge := findEdge(edges, clinical.RelationResultedIn)
	require.NotNil(t, edge)
	assert.InDelta(t, 0.7, edge.Confidence, 1e-9)
	assert.Equal(t, 3, edge.DistanceDays)
}

func TestInfer_AllEdgesBelowOne(t *testing.T) {
	b := NewBuilder(nil)
	events := b.Build([]*clinical.ExtractedEntity{
		datedEnt(clinical.EntityComplication, "complication:hydrocephalus", "hydrocephalus", "2025-01-15", 10),
		datedEnt(clinical.EntityProcedure, "procedure:evd placement", "evd placement", "2025-01-15", 40),
		datedEnt(clinical.EntityImagingFinding, "imaging_finding:ct", "CT: improved ventricles", "2025-01-17", 80),
	}, nil, nil)
	edges := NewInferrer(CausalConfig{}, nil).Infer(events)
	require.NotEmpty(t, edges)
	for _, e := range edges {
		assert.Less(t, e.Confidence, 1.0)
		assert.GreaterOrEqual(t, e.Confidence, 0.0)
	}
}

func findEdge(edges []*clinical.CausalRelationship, t clinical.RelationType) *clinical.CausalRelationship {
	for _, e := range edges {
		if e.Type == t {
			return e
		}
	}
	return nil
}

func TestTrack_PharmacologicResponse(t *testing.T) {
	b := NewBuilder(nil)
	events := b.Build([]*clinical.ExtractedEntity{
		datedEnt(clinical.EntityMedication, "medication:nimodipine", "nimodipine", "2025-01-16", 10),
		datedEnt(clinical.EntityImagingFinding, "imaging_finding:cta", "CTA: vasospasm resolved", "2025-01-20", 40),
	}, nil, nil)
	responses := NewTracker(ResponseConfig{}, nil).Track(events)

	require.Len(t, responses, 1)
	assert.Equal(t, clinical.ResponseExcellent, responses[0].Quality)
	assert.Equal(t, 4, responses[0].TimeToResponseDays)
	assert.Contains(t, responses[0].Intervention, "nimodipine")
}

func TestTrack_PharmacologicWindowShorterThanSurgical(t *testing.T) {
	b := NewBuilder(nil)
	// outcome at day 10: outside the 7-day drug window, inside the 30-day
	// surgical window
	drugEvents := b.Build([]*clinical.ExtractedEntity{
		datedEnt(clinical.EntityMedication, "medication:nimodipine", "nimodipine", "2025-01-10", 10),
		datedEnt(clinical.EntityImagingFinding, "imaging_finding:ct", "CT: improved", "2025-01-20", 40),
	}, nil, nil)
	surgEvents := b.Build([]*clinical.ExtractedEntity{
		datedEnt(clinical.EntityProcedure, "procedure:craniotomy", "craniotomy", "2025-01-10", 10),
		datedEnt(clinical.EntityImagingFinding, "imaging_finding:ct", "CT: improved", "2025-01-20", 40),
	}, nil, nil)

	tr := NewTracker(ResponseConfig{}, nil)
	drug := tr.Track(drugEvents)
	surg := tr.Track(surgEvents)

	require.Len(t, drug, 1)
	assert.Equal(t, clinical.ResponseUnknown, drug[0].Quality)
	require.Len(t, surg, 1)
	assert.Equal(t, clinical.ResponseGood, surg[0].Quality)
}

func TestTrack_ComplicationIsPoorOutcome(t *testing.T) {
	b := NewBuilder(nil)
	events := b.Build([]*clinical.ExtractedEntity{
		datedEnt(clinical.EntityProcedure, "procedure:coiling", "coiling", "2025-01-15", 10),
		datedEnt(clinical.EntityComplication, "complication:rebleed", "rebleed", "2025-01-18", 40),
	}, nil, nil)
	responses := NewTracker(ResponseConfig{}, nil).Track(events)
	require.Len(t, responses, 1)
	assert.Equal(t, clinical.ResponsePoor, responses[0].Quality)
}

func TestNormalizeScore(t *testing.T) {
	cases := []struct {
		kind clinical.ScoreKind
		raw  float64
		want float64
	}{
		{clinical.ScoreGCS, 15, 1.0},
		{clinical.ScoreGCS, 3, 0.0},
		{clinical.ScoreGCS, 9, 0.5},
		{clinical.ScoreKPS, 70, 0.7},
		{clinical.ScoreECOG, 0, 1.0},
		{clinical.ScoreECOG, 5, 0.0},
		{clinical.ScoreMRS, 0, 1.0},
		{clinical.ScoreMRS, 3, 0.5},
	}
	for _, tc := range cases {
		got, ok := NormalizeScore(tc.kind, tc.raw)
		require.True(t, ok)
		assert.InDelta(t, tc.want, got, 1e-9, "%s %v", tc.kind, tc.raw)
	}

	_, ok := NormalizeScore(clinical.ScoreGCS, 20)
	assert.False(t, ok)
}

func scoreEnt(field, value, date string) *clinical.ExtractedEntity {
	e := &clinical.ExtractedEntity{
		Type:  clinical.EntityFunctionalScore,
		Field: field,
		Value: value,
	}
	if date != "" {
		d := day(date)
		e.ResolvedDate = &d
	}
	return e
}

func TestAnalyze_ImprovingTrajectory(t *testing.T) {
	a := NewAnalyzer(nil)
	traj := a.Analyze([]*clinical.ExtractedEntity{
		scoreEnt("functional_score:gcs", "9", "2025-01-14"),
		scoreEnt("functional_score:gcs", "12", "2025-01-17"),
		scoreEnt("functional_score:gcs", "15", "2025-01-20"),
	})
	assert.Equal(t, clinical.TrajectoryImproving, traj.Label)
	assert.NotEmpty(t, traj.SignificantChanges)
}

func TestAnalyze_DecliningTrajectory(t *testing.T) {
	a := NewAnalyzer(nil)
	traj := a.Analyze([]*clinical.ExtractedEntity{
		scoreEnt("functional_score:kps", "80", "2025-01-14"),
		scoreEnt("functional_score:kps", "60", "2025-01-20"),
	})
	assert.Equal(t, clinical.TrajectoryDeclining, traj.Label)
}

func TestAnalyze_FluctuatingTrajectory(t *testing.T) {
	a := NewAnalyzer(nil)
	traj := a.Analyze([]*clinical.ExtractedEntity{
		scoreEnt("functional_score:gcs", "9", "2025-01-14"),
		scoreEnt("functional_score:gcs", "14", "2025-01-15"),
		scoreEnt("functional_score:gcs", "10", "2025-01-16"),
	})
	assert.Equal(t, clinical.TrajectoryFluctuating, traj.Label)
}

func TestAnalyze_InsufficientData(t *testing.T) {
	a := NewAnalyzer(nil)
	traj := a.Analyze([]*clinical.ExtractedEntity{
		scoreEnt("functional_score:gcs", "14", "2025-01-14"),
	})
	assert.Equal(t, clinical.TrajectoryInsufficientData, traj.Label)
	assert.Len(t, traj.Scores, 1)
}

func TestAnalyze_MixedInstrumentsNormalized(t *testing.T) {
	a := NewAnalyzer(nil)
	traj := a.Analyze([]*clinical.ExtractedEntity{
		scoreEnt("functional_score:gcs", "15", "2025-01-14"),
		scoreEnt("functional_score:mrs", "0", "2025-01-20"),
	})
	require.Len(t, traj.Scores, 2)
	assert.InDelta(t, 1.0, traj.Scores[0].Normalized, 1e-9)
	assert.InDelta(t, 1.0, traj.Scores[1].Normalized, 1e-9)
	assert.Equal(t, clinical.TrajectoryStable, traj.Label)
}

func TestAnalyze_OutOfRangeScoreIgnored(t *testing.T) {
	a := NewAnalyzer(nil)
	traj := a.Analyze([]*clinical.ExtractedEntity{
		scoreEnt("functional_score:gcs", "99", "2025-01-14"),
	})
	assert.Empty(t, traj.Scores)
	assert.Equal(t, clinical.TrajectoryInsufficientData, traj.Label)
}
