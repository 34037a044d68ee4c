package negation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

func compEnt(text, mention string) *clinical.ExtractedEntity {
	start := strings.Index(strings.ToLower(text), strings.ToLower(mention))
	return &clinical.ExtractedEntity{
		Type:  clinical.EntityComplication,
		Field: "complication:" + strings.ToLower(mention),
		Value: strings.ToLower(mention),
		Span:  clinical.SourceSpan{Start: start, End: start + len(mention)},
	}
}

func TestFilter_NegatedComplicationRemoved(t *testing.T) {
	f := NewFilter(nil)
	text := "No evidence of vasospasm was seen."
	ent := compEnt(text, "vasospasm")

	kept, removed := f.Filter(text, []*clinical.ExtractedEntity{ent})
	assert.Empty(t, kept)
	require.Len(t, removed, 1)
	assert.True(t, removed[0].Negated)
}

func TestFilter_AffirmedComplicationKept(t *testing.T) {
	f := NewFilter(nil)
	text := "Patient has vasospasm."
	ent := compEnt(text, "vasospasm")

	kept, removed := f.Filter(text, []*clinical.ExtractedEntity{ent})
	require.Len(t, kept, 1)
	assert.Empty(t, removed)
	assert.False(t, kept[0].Negated)
}

func TestFilter_PostNegationTrigger(t *testing.T) {
	f := NewFilter(nil)
	text := "Rebleed was ruled out on repeat imaging."
	ent := compEnt(text, "rebleed")

	kept, removed := f.Filter(text, []*clinical.ExtractedEntity{ent})
	assert.Empty(t, kept)
	require.Len(t, removed, 1)
}

func TestFilter_DeniesTrigger(t *testing.T) {
	f := NewFilter(nil)
	text := "Patient denies seizure activity overnight."
	ent := compEnt(text, "seizure")

	kept, _ := f.Filter(text, []*clinical.ExtractedEntity{ent})
	assert.Empty(t, kept)
}

func TestFilter_PseudoNegationNotApplied(t *testing.T) {
	f := NewFilter(nil)
	text := "No change in seizure frequency noted."
	ent := compEnt(text, "seizure")

	kept, removed := f.Filter(text, []*clinical.ExtractedEntity{ent})
	require.Len(t, kept, 1)
	assert.Empty(t, removed)
}

func TestFilter_ScopeIsBounded(t *testing.T) {
	f := NewFilter(nil)
	// "vasospasm" sits more than five tokens after the trigger
	text := "No fever chills nausea or vomiting today; vasospasm suspected."
	ent := compEnt(text, "vasospasm")

	kept, _ := f.Filter(text, []*clinical.ExtractedEntity{ent})
	require.Len(t, kept, 1)
}

func TestFilter_ScopeStopsAtSentenceBoundary(t *testing.T) {
	f := NewFilter(nil)
	text := "No acute distress. Vasospasm on angiography."
	ent := compEnt(text, "vasospasm")

	kept, _ := f.Filter(text, []*clinical.ExtractedEntity{ent})
	require.Len(t, kept, 1)
}

func TestFilter_NonNegatableTypesUntouched(t *testing.T) {
	f := NewFilter(nil)
	text := "Denies nimodipine allergy."
	ent := &clinical.ExtractedEntity{
		Type:  clinical.EntityMedication,
		Field: "medication:nimodipine",
		Value: "nimodipine",
		Span:  clinical.SourceSpan{Start: 7, End: 17},
	}
	kept, removed := f.Filter(text, []*clinical.ExtractedEntity{ent})
	require.Len(t, kept, 1)
	assert.Empty(t, removed)
}
