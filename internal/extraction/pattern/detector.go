package pattern

import (
	"sort"
	"strings"

	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

// Detection scoring weights.  Primary mentions dominate; location language
// and procedure vocabulary are corroborating signals only.
const (
	primaryWeight   = 0.4
	locationWeight  = 0.2
	procedureWeight = 0.1
)

// DetectPathologies scores every profiled pathology against the text and
// returns the highest-scoring type as primary plus every type that scored
// above zero, sorted by descending score.  With no hits at all the primary
// is PathologyGeneric and the candidate list is empty.
func DetectPathologies(text string, hint clinical.PathologyType) (clinical.PathologyType, []clinical.PathologyScore) {
	lower := strings.ToLower(text)

	var scores []clinical.PathologyScore
	for ptype, prof := range library {
		if ptype == clinical.PathologyGeneric {
			continue
		}
		s := scoreProfile(prof, text, lower)
		if ptype == hint && s > 0 {
			// a caller-supplied hint corroborated by text gets a nudge, never
			// a fabricated detection
			s += primaryWeight
		}
		if s > 0 {
			scores = append(scores, clinical.PathologyScore{Type: ptype, Score: s})
		}
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Type < scores[j].Type
	})

	if len(scores) == 0 {
		return clinical.PathologyGeneric, nil
	}
	return scores[0].Type, scores
}

func scoreProfile(prof *Profile, text, lower string) float64 {
	primaryHits := 0
	for _, re := range prof.Primary {
		primaryHits += len(re.FindAllStringIndex(text, -1))
	}
	if primaryHits == 0 {
		// location or procedure language alone never establishes a pathology
		return 0
	}
	locationHits := 0
	for _, re := range prof.Location {
		locationHits += len(re.FindAllStringIndex(text, -1))
	}
	procedureHits := 0
	for _, term := range prof.Procedures {
		procedureHits += strings.Count(lower, strings.ToLower(term))
	}
	return primaryWeight*float64(primaryHits) +
		locationWeight*float64(locationHits) +
		procedureWeight*float64(procedureHits)
}
