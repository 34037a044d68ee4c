package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

func TestRequestDigest_Stable(t *testing.T) {
	req := &clinical.ExtractionRequest{
		Documents: []string{"note one", "note two"},
		Hints:     clinical.ExtractionHints{Pathology: clinical.PathologySAH, PatientAge: 54},
	}
	assert.Equal(t, RequestDigest(req), RequestDigest(req))
}

func TestRequestDigest_SensitiveToContent(t *testing.T) {
	a := &clinical.ExtractionRequest{Documents: []string{"note one", "note two"}}
	b := &clinical.ExtractionRequest{Documents: []string{"note one", "note three"}}
	assert.NotEqual(t, RequestDigest(a), RequestDigest(b))
}

func TestRequestDigest_DocumentBoundariesMatter(t *testing.T) {
	// "ab"+"c" must not collide with "a"+"bc"
	a := &clinical.ExtractionRequest{Documents: []string{"ab", "c"}}
	b := &clinical.ExtractionRequest{Documents: []string{"a", "bc"}}
	assert.NotEqual(t, RequestDigest(a), RequestDigest(b))
}

func TestRequestDigest_HintsIncluded(t *testing.T) {
	docs := []string{"identical note"}
	a := &clinical.ExtractionRequest{Documents: docs}
	b := &clinical.ExtractionRequest{
		Documents: docs,
		Hints:     clinical.ExtractionHints{Pathology: clinical.PathologySAH},
	}
	assert.NotEqual(t, RequestDigest(a), RequestDigest(b))
}
