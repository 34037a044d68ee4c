// Package negation removes entities whose mention is linguistically negated,
// in the style of the NegEx algorithm: a fixed trigger vocabulary, a short
// token-window scope, and a pseudo-negation exception list.  A negated
// finding is definitionally absent, so matching entities are dropped rather
// than flagged.
package negation

import (
	"strings"
	"unicode"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

// Triggers that negate the tokens FOLLOWING them.
var preTriggers = []string{
	"no evidence of", "no signs of", "no sign of", "negative for",
	"ruled out for", "denies", "denied", "without", "absence of",
	"free of", "r/o", "no", "not",
}

// Triggers that negate the tokens PRECEDING them.
var postTriggers = []string{
	"was ruled out", "is ruled out", "ruled out", "is unlikely",
	"was not seen", "not seen", "not identified", "not appreciated",
}

// Pseudo-negations look like triggers but do not negate the clinical term
// that follows ("no change" does not negate "change").
var pseudoNegations = []string{
	"no change", "no changes", "no further", "no increase", "no interval change",
	"not only", "no significant change", "without difficulty", "no new",
}

// Scope length in tokens, per side.
const (
	scopeMin = 2
	scopeMax = 5
)

// Negatable entity types: a negated finding is absent; negated demographics
// or dates make no sense and are never removed.
var negatableTypes = map[clinical.EntityType]struct{}{
	clinical.EntityComplication:   {},
	clinical.EntityImagingFinding: {},
	clinical.EntityPathology:      {},
}

// Filter partitions entities into kept and removed sets based on negation
// scope analysis of the text.  Removed entities have Negated set for audit.
type Filter interface {
	Filter(text string, entities []*clinical.ExtractedEntity) (kept, removed []*clinical.ExtractedEntity)
}

type filter struct {
	logger logging.Logger
}

// NewFilter constructs a Filter.  logger may be nil.
func NewFilter(logger logging.Logger) Filter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &filter{logger: logger.Named("negation")}
}

type span struct{ start, end int }

type token struct {
	text string
	span span
}

func (f *filter) Filter(text string, entities []*clinical.ExtractedEntity) (kept, removed []*clinical.ExtractedEntity) {
	scopes := negatedScopes(text)

	for _, ent := range entities {
		if _, negatable := negatableTypes[ent.Type]; !negatable || !ent.Span.Valid() {
			kept = append(kept, ent)
			continue
		}
		negated := false
		for _, sc := range scopes {
			if ent.Span.Start >= sc.start && ent.Span.Start < sc.end {
				negated = true
				break
			}
		}
		if negated {
			ent.Negated = true
			removed = append(removed, ent)
			f.logger.Debug("entity negated",
				logging.String("field", ent.Field),
				logging.Int("offset", ent.Span.Start),
			)
		} else {
			kept = append(kept, ent)
		}
	}
	return kept, removed
}

// negatedScopes finds every negation trigger and computes its scope as a byte
// range covering scopeMax tokens on the governed side, clipped at sentence
// boundaries.
func negatedScopes(text string) []span {
	lower := strings.ToLower(text)
	tokens := tokenize(lower)

	var scopes []span
	for i := 0; i < len(tokens); i++ {
		if n, ok := matchTrigger(tokens, i, preTriggers); ok {
			if isPseudoNegation(lower, tokens[i].span.start) {
				continue
			}
			scopes = append(scopes, forwardScope(lower, tokens, i+n))
			i += n - 1
			continue
		}
		if n, ok := matchTrigger(tokens, i, postTriggers); ok {
			scopes = append(scopes, backwardScope(lower, tokens, i))
			i += n - 1
		}
	}
	return scopes
}

func tokenize(s string) []token {
	var out []token
	start := -1
	for i, r := range s {
		boundary := unicode.IsSpace(r) || r == ',' || r == ';' || r == ':' || r == '(' || r == ')'
		if boundary {
			if start >= 0 {
				out = append(out, token{text: s[start:i], span: span{start, i}})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, token{text: s[start:], span: span{start, len(s)}})
	}
	return out
}

// matchTrigger reports whether the trigger list matches at token i, and how
// many tokens the trigger spans.
func matchTrigger(tokens []token, i int, triggers []string) (int, bool) {
	for _, trig := range triggers {
		words := strings.Fields(trig)
		if i+len(words) > len(tokens) {
			continue
		}
		match := true
		for j, w := range words {
			if strings.TrimRight(tokens[i+j].text, ".!?") != w {
				match = false
				break
			}
		}
		if match {
			return len(words), true
		}
	}
	return 0, false
}

func isPseudoNegation(lower string, offset int) bool {
	rest := lower[offset:]
	for _, pseudo := range pseudoNegations {
		if strings.HasPrefix(rest, pseudo) {
			return true
		}
	}
	return false
}

// forwardScope covers up to scopeMax tokens after the trigger, stopping at a
// sentence boundary.
func forwardScope(lower string, tokens []token, from int) span {
	if from >= len(tokens) {
		return span{len(lower), len(lower)}
	}
	end := tokens[from].span.end
	count := 1
	for i := from; i < len(tokens) && count <= scopeMax; i++ {
		end = tokens[i].span.end
		if strings.ContainsAny(tokens[i].text, ".!?") && count >= scopeMin {
			break
		}
		count++
	}
	return span{tokens[from].span.start, end}
}

// backwardScope covers up to scopeMax tokens before the trigger.
func backwardScope(lower string, tokens []token, at int) span {
	if at == 0 {
		return span{0, 0}
	}
	start := tokens[at-1].span.start
	count := 1
	for i := at - 1; i >= 0 && count <= scopeMax; i-- {
		start = tokens[i].span.start
		if strings.ContainsAny(tokens[i].text, ".!?") && count >= scopeMin {
			start = tokens[i].span.end
			break
		}
		count++
	}
	return span{start, tokens[at-1].span.end}
}
