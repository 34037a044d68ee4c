package dedup

import (
	"strings"
	"unicode"

	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

// Abbreviations that end with a period but do not terminate a sentence.
// Matching is case-insensitive on the token preceding the period.
var nonTerminalAbbrevs = map[string]struct{}{
	"dr":     {},
	"mr":     {},
	"mrs":    {},
	"ms":     {},
	"st":     {},
	"vs":     {},
	"etc":    {},
	"e.g":    {},
	"i.e":    {},
	"approx": {},
	"pt":     {},
	"hx":     {},
	"fx":     {},
	"tx":     {},
	"s/p":    {},
	"w/o":    {},
	"neuro":  {},
}

// SegmentDocument splits a normalized document into sentences, recording each
// sentence's byte offset within the document.  Periods inside decimals
// ("2.5 mg") and after known clinical abbreviations ("Dr. Smith") do not end
// a sentence.
func SegmentDocument(doc clinical.ClinicalDocument) []clinical.Sentence {
	text := doc.Text
	var out []clinical.Sentence
	start := 0
	runes := []rune(text)

	flush := func(end int) {
		raw := strings.TrimSpace(string(runes[start:end]))
		if raw != "" {
			// byte offset of the trimmed sentence start
			prefix := string(runes[:start])
			off := len(prefix)
			for i := start; i < end; i++ {
				if unicode.IsSpace(runes[i]) {
					off += len(string(runes[i]))
				} else {
					break
				}
			}
			out = append(out, clinical.Sentence{
				Text:     raw,
				DocIndex: doc.Index,
				Offset:   off,
			})
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' && r != ';' {
			continue
		}
		if r == '.' {
			if isDecimalPoint(runes, i) || isAbbreviation(runes, start, i) {
				continue
			}
		}
		// consume trailing closing punctuation
		end := i + 1
		for end < len(runes) && (runes[end] == '"' || runes[end] == ')' || runes[end] == '\'') {
			end++
		}
		flush(end)
		i = end - 1
	}
	flush(len(runes))
	return out
}

func isDecimalPoint(runes []rune, i int) bool {
	return i > 0 && i+1 < len(runes) &&
		unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1])
}

func isAbbreviation(runes []rune, start, i int) bool {
	// walk back to the beginning of the token preceding the period
	j := i
	for j > start && !unicode.IsSpace(runes[j-1]) {
		j--
	}
	token := strings.ToLower(string(runes[j:i]))
	token = strings.TrimLeft(token, "(\"'")
	_, ok := nonTerminalAbbrevs[token]
	return ok
}

// SegmentAll segments every document and assigns stable sequential IDs.
func SegmentAll(docs []clinical.ClinicalDocument) []clinical.Sentence {
	var out []clinical.Sentence
	for _, doc := range docs {
		out = append(out, SegmentDocument(doc)...)
	}
	for i := range out {
		out[i].ID = i
	}
	return out
}
