// Package normalize prepares raw progress-note text for the extraction
// pipeline.  Normalization is deterministic and lossless with respect to
// clinical content: it canonicalizes unicode, strips control characters, and
// collapses whitespace without rewording anything.
package normalize

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/errors"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

// Normalizer cleans clinical documents before segmentation and extraction.
type Normalizer interface {
	// NormalizeDocument returns a cleaned copy of doc.  An empty or
	// non-textual document yields a CodeDocumentEmpty / CodeDocumentNotText
	// error; callers skip such documents with a warning instead of aborting
	// the session.
	NormalizeDocument(doc clinical.ClinicalDocument) (clinical.ClinicalDocument, error)

	// NormalizeAll cleans every document, dropping the unusable ones.  The
	// returned warnings describe each dropped document.
	NormalizeAll(docs []clinical.ClinicalDocument) ([]clinical.ClinicalDocument, []string)
}

type normalizer struct {
	logger logging.Logger
}

// NewNormalizer constructs a Normalizer.  logger may be nil.
func NewNormalizer(logger logging.Logger) Normalizer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &normalizer{logger: logger.Named("normalize")}
}

// printableRatioFloor is the minimum fraction of printable runes a document
// must contain to be treated as text.  Scanned-PDF garbage and binary blobs
// fall well below it.
const printableRatioFloor = 0.80

func (n *normalizer) NormalizeDocument(doc clinical.ClinicalDocument) (clinical.ClinicalDocument, error) {
	cleaned := Clean(doc.Text)
	if cleaned == "" {
		return doc, errors.New(errors.CodeDocumentEmpty, "document contains no text after normalization").
			WithDetail(fmt.Sprintf("doc_index=%d", doc.Index))
	}
	if !looksLikeText(cleaned) {
		return doc, errors.New(errors.CodeDocumentNotText, "document does not appear to be clinical text").
			WithDetail(fmt.Sprintf("doc_index=%d", doc.Index))
	}
	out := doc
	out.Text = Canonicalize(cleaned)
	return out, nil
}

func (n *normalizer) NormalizeAll(docs []clinical.ClinicalDocument) ([]clinical.ClinicalDocument, []string) {
	out := make([]clinical.ClinicalDocument, 0, len(docs))
	var warnings []string
	for _, doc := range docs {
		cleaned, err := n.NormalizeDocument(doc)
		if err != nil {
			n.logger.Warn("skipping document", logging.Int("doc_index", doc.Index), logging.Err(err))
			warnings = append(warnings, err.Error())
			continue
		}
		out = append(out, cleaned)
	}
	return out, warnings
}

// Clean canonicalizes a single text: NFC unicode normalization, control
// characters removed (newlines and tabs become spaces), runs of whitespace
// collapsed to a single space, and surrounding whitespace trimmed.
func Clean(s string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t' || unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsControl(r):
			// dropped
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

func looksLikeText(s string) bool {
	total := 0
	printable := 0
	for _, r := range s {
		total++
		if unicode.IsPrint(r) || r == ' ' {
			printable++
		}
	}
	if total == 0 {
		return false
	}
	return float64(printable)/float64(total) >= printableRatioFloor
}
