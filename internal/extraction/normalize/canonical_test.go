package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeHeaders(t *testing.T) {
	in := "HPI: 54 year old male. PMH: hypertension."
	out := CanonicalizeHeaders(in)
	assert.Contains(t, out, "HISTORY OF PRESENT ILLNESS:")
	assert.Contains(t, out, "PAST MEDICAL HISTORY:")
}

func TestCanonicalizeHeaders_UnknownLeftAlone(t *testing.T) {
	in := "XYZ: something."
	assert.Equal(t, in, CanonicalizeHeaders(in))
}

func TestExpandAbbreviations(t *testing.T) {
	out := ExpandAbbreviations("54 y/o male c/o headache w/o focal deficit.")
	assert.Contains(t, out, "year-old")
	assert.Contains(t, out, "complains of")
	assert.Contains(t, out, "without")
}

func TestCanonicalizeDates_Numeric(t *testing.T) {
	assert.Equal(t, "Admitted 2025-01-16.", CanonicalizeDates("Admitted 01/16/2025."))
	assert.Equal(t, "Admitted 2025-01-16.", CanonicalizeDates("Admitted 2025/01/16."))
	assert.Equal(t, "Admitted 2025-01-16.", CanonicalizeDates("Admitted 1-16-25."))
}

func TestCanonicalizeDates_MonthName(t *testing.T) {
	assert.Equal(t, "Surgery on 2025-01-16.", CanonicalizeDates("Surgery on January 16, 2025."))
	assert.Equal(t, "Surgery on 2025-01-16.", CanonicalizeDates("Surgery on Jan 16 2025."))
}

func TestCanonicalizeDates_MalformedLeftAlone(t *testing.T) {
	in := "Value 99/99/2025 is not a date."
	assert.Equal(t, in, CanonicalizeDates(in))
}

func TestCanonicalizePOD(t *testing.T) {
	assert.Equal(t, "POD2 stable.", CanonicalizePOD("POD#2 stable."))
	assert.Equal(t, "POD2 stable.", CanonicalizePOD("pod 2 stable."))
	assert.Equal(t, "POD3 afebrile.", CanonicalizePOD("post-op day 3 afebrile."))
	assert.Equal(t, "POD1 doing well.", CanonicalizePOD("Postoperative day 1 doing well."))
}
