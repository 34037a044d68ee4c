package quality

import (
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/NeuroChart-Intelligence/internal/extraction/pattern"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

// Refinement thresholds.  A session below refinementFloor overall, or with
// any dimension below weakDimensionFloor, is flagged for another extractor
// pass.
const (
	refinementFloor    = 0.70
	weakDimensionFloor = 0.50
)

// ComputeRefinementHints derives the feedback an external control loop needs
// to decide whether to re-invoke the external extractor.  Pure function over
// the session; the session's Quality field must already be populated.
func ComputeRefinementHints(session *clinical.ExtractionSession) clinical.RefinementHints {
	hints := clinical.RefinementHints{}
	if session == nil || session.Quality == nil {
		hints.NeedsRefinement = true
		hints.SuggestedFeedback = "session has no quality report"
		return hints
	}

	q := session.Quality
	for _, dim := range []struct {
		name  string
		score float64
	}{
		{"accuracy", q.Accuracy},
		{"completeness", q.Completeness},
		{"specificity", q.Specificity},
		{"timeliness", q.Timeliness},
		{"consistency", q.Consistency},
		{"narrative_readiness", q.NarrativeReadiness},
	} {
		if dim.score < weakDimensionFloor {
			hints.WeakDimensions = append(hints.WeakDimensions, dim.name)
		}
	}

	hints.ConflictedFields = session.ConflictedFields()

	for _, ent := range session.Entities {
		if datedEntityTypes[ent.Type] && ent.ResolvedDate == nil {
			hints.UndatedEntityIDs = append(hints.UndatedEntityIDs, string(ent.ID))
		}
	}

	for _, field := range pattern.ProfileFor(session.PrimaryPathology).ExpectedFields {
		if !fieldPopulated(session.Entities, field) {
			hints.MissingFields = append(hints.MissingFields, field)
		}
	}
	sort.Strings(hints.MissingFields)

	hints.NeedsRefinement = q.Overall < refinementFloor ||
		len(hints.WeakDimensions) > 0 ||
		len(hints.ConflictedFields) > 0

	if hints.NeedsRefinement {
		hints.SuggestedFeedback = suggestFeedback(hints)
	}
	return hints
}

// suggestFeedback builds the one-line prompt addendum for the next extractor
// invocation.
func suggestFeedback(hints clinical.RefinementHints) string {
	var parts []string
	if len(hints.MissingFields) > 0 {
		parts = append(parts, fmt.Sprintf("extract the missing fields: %s",
			strings.Join(hints.MissingFields, ", ")))
	}
	if len(hints.ConflictedFields) > 0 {
		parts = append(parts, fmt.Sprintf("resolve conflicting values for: %s",
			strings.Join(hints.ConflictedFields, ", ")))
	}
	if len(hints.UndatedEntityIDs) > 0 {
		parts = append(parts, "attach dates to findings where the text supports them")
	}
	if len(parts) == 0 {
		parts = append(parts, "re-extract with attention to detail and dates")
	}
	return strings.Join(parts, "; ")
}
