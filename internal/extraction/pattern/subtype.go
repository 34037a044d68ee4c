package pattern

import (
	"strings"

	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

// subtypeConfidence applies to grades captured by an explicit grading regex.
const subtypeConfidence = 0.92

// ClassifySubtypes attaches pathology-specific grade/stage/score subtypes to
// pathology entities.  When several categories match, the profile's priority
// order decides (e.g., Hunt-Hess beats Fisher for SAH).  Entities without a
// matching profile or without any subtype hit are returned untouched.
func ClassifySubtypes(text string, entities []*clinical.ExtractedEntity) {
	for _, ent := range entities {
		if ent.Type != clinical.EntityPathology || ent.Subtype != nil {
			continue
		}
		prof, ok := library[clinical.PathologyType(ent.Value)]
		if !ok || len(prof.Subtypes) == 0 {
			continue
		}
		if st := matchSubtype(text, prof); st != nil {
			ent.Subtype = st
		}
	}
}

func matchSubtype(text string, prof *Profile) *clinical.Subtype {
	best := -1
	var bestValue string
	for i, sp := range prof.Subtypes {
		m := sp.Regex.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if best == -1 || sp.Priority < prof.Subtypes[best].Priority {
			best = i
			bestValue = normalizeGrade(m[1])
		}
	}
	if best == -1 {
		return nil
	}
	return &clinical.Subtype{
		Category:   prof.Subtypes[best].Category,
		Value:      bestValue,
		Confidence: subtypeConfidence,
	}
}

// normalizeGrade maps Roman-numeral grades onto Arabic numerals so the
// subtype value has one spelling.
func normalizeGrade(v string) string {
	switch strings.ToUpper(v) {
	case "I":
		return "1"
	case "II":
		return "2"
	case "III":
		return "3"
	case "IV":
		return "4"
	case "V":
		return "5"
	}
	return strings.ToLower(v)
}
