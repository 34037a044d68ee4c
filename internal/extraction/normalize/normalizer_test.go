package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/turtacn/NeuroChart-Intelligence/pkg/errors"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

func TestClean_CollapsesWhitespace(t *testing.T) {
	in := "POD#2.\n\n  Patient with   SAH,\tHunt-Hess 3. "
	assert.Equal(t, "POD#2. Patient with SAH, Hunt-Hess 3.", Clean(in))
}

func TestClean_StripsControlCharacters(t *testing.T) {
	in := "CT head\x00 shows\x07 no rebleed"
	assert.Equal(t, "CT head shows no rebleed", Clean(in))
}

func TestClean_NFCNormalization(t *testing.T) {
	// "é" as e + combining acute accent should become the precomposed form.
	decomposed := "café"
	assert.Equal(t, "café", Clean(decomposed))
}

func TestClean_Deterministic(t *testing.T) {
	in := "Nimodipine  q4h\ncontinued."
	first := Clean(in)
	assert.Equal(t, first, Clean(in))
	assert.Equal(t, first, Clean(first)) // idempotent
}

func TestNormalizeDocument_EmptyRejected(t *testing.T) {
	n := NewNormalizer(nil)
	_, err := n.NormalizeDocument(clinical.ClinicalDocument{Index: 3, Text: "  \n\t "})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDocumentEmpty))
}

func TestNormalizeDocument_RejectionCarriesDocIndex(t *testing.T) {
	n := NewNormalizer(nil)
	_, err := n.NormalizeDocument(clinical.ClinicalDocument{Index: 3, Text: " "})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "doc_index=3", appErr.Detail)
	assert.Contains(t, err.Error(), "doc_index=3")
}

func TestNormalizeDocument_BinaryRejected(t *testing.T) {
	n := NewNormalizer(nil)
	junk := strings.Repeat("\u200b", 200) + "ok"
	_, err := n.NormalizeDocument(clinical.ClinicalDocument{Index: 0, Text: junk})
	assert.Error(t, err)
}

func TestNormalizeAll_SkipsBadDocsWithWarnings(t *testing.T) {
	n := NewNormalizer(nil)
	docs := []clinical.ClinicalDocument{
		{Index: 0, Text: "Admitted with subarachnoid hemorrhage."},
		{Index: 1, Text: "   "},
		{Index: 2, Text: "POD#1: stable, GCS 15."},
	}
	out, warnings := n.NormalizeAll(docs)
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].Index)
	assert.Equal(t, 2, out[1].Index)
	assert.Len(t, warnings, 1)
}
