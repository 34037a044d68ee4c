// Package merge fuses the pattern-engine and collaborator entity sets.
// Fusion behavior is driven by an explicit per-field strategy table so merge
// semantics are enumerable and testable rather than implicit.  Disagreements
// are never dropped: the losing value is retained as an annotated
// alternative for downstream consistency scoring.
package merge

import (
	"sort"
	"strings"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

// Strategy selects how two values for the same field are fused.
type Strategy int

const (
	// FuseSingular: the field holds exactly one value per patient
	// (demographics, primary pathology).  Conflicting values compete on
	// confidence; the loser is kept as an alternative.
	FuseSingular Strategy = iota

	// FuseUnion: the field is naturally multi-valued (medications,
	// procedures, dates).  Values are united; identical values from both
	// sources collapse into one merged entity.
	FuseUnion
)

// fusionTable maps a field name, or its prefix before ':', to a strategy.
// Fields absent from the table default to FuseUnion.
var fusionTable = map[string]Strategy{
	"patient_age":        FuseSingular,
	"patient_sex":        FuseSingular,
	"primary_pathology":  FuseSingular,
	"detected_pathology": FuseUnion,
	"absolute_date":      FuseUnion,
	"pod":                FuseUnion,
	"procedure":          FuseUnion,
	"complication":       FuseUnion,
	"medication":         FuseUnion,
	"functional_score":   FuseUnion,
	"imaging_finding":    FuseUnion,
	"consultation":       FuseUnion,
}

// StrategyFor returns the fusion strategy for a field name.
func StrategyFor(field string) Strategy {
	if s, ok := fusionTable[field]; ok {
		return s
	}
	if i := strings.IndexByte(field, ':'); i > 0 {
		if s, ok := fusionTable[field[:i]]; ok {
			return s
		}
	}
	return FuseUnion
}

// Merger fuses two independently extracted entity sets.
type Merger interface {
	Merge(pattern, llm []*clinical.ExtractedEntity) []*clinical.ExtractedEntity
}

type merger struct {
	logger logging.Logger
}

// NewMerger constructs a Merger.  logger may be nil.
func NewMerger(logger logging.Logger) Merger {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &merger{logger: logger.Named("merge")}
}

func normalizeValue(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// groupKey buckets entities that fuse against each other: singular fields
// compete per field; union fields compete per (field, normalized value).
func groupKey(e *clinical.ExtractedEntity) string {
	if StrategyFor(e.Field) == FuseSingular {
		return e.Field
	}
	return e.Field + "\x00" + normalizeValue(e.Value)
}

func (m *merger) Merge(pattern, llm []*clinical.ExtractedEntity) []*clinical.ExtractedEntity {
	type bucket struct {
		pattern *clinical.ExtractedEntity
		llm     *clinical.ExtractedEntity
		order   int
	}
	buckets := make(map[string]*bucket)
	var keys []string

	place := func(ents []*clinical.ExtractedEntity, isPattern bool) {
		for _, e := range ents {
			key := groupKey(e)
			b, ok := buckets[key]
			if !ok {
				b = &bucket{order: len(keys)}
				buckets[key] = b
				keys = append(keys, key)
			}
			// first entity per source wins its slot; later ones are
			// duplicates of the same fact
			if isPattern && b.pattern == nil {
				b.pattern = e
			} else if !isPattern && b.llm == nil {
				b.llm = e
			}
		}
	}
	place(pattern, true)
	place(llm, false)

	conflicts := 0
	out := make([]*clinical.ExtractedEntity, 0, len(keys))
	for _, key := range keys {
		b := buckets[key]
		merged, conflicted := fuse(b.pattern, b.llm)
		if conflicted {
			conflicts++
		}
		out = append(out, merged)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Span.Start != out[j].Span.Start {
			return out[i].Span.Start < out[j].Span.Start
		}
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].Value < out[j].Value
	})

	m.logger.Debug("merge complete",
		logging.Int("pattern", len(pattern)),
		logging.Int("llm", len(llm)),
		logging.Int("merged", len(out)),
		logging.Int("conflicts", conflicts),
	)
	return out
}

// fuse combines at most one entity per source for one group key.
func fuse(p, l *clinical.ExtractedEntity) (*clinical.ExtractedEntity, bool) {
	switch {
	case p == nil:
		return l.Clone(), false
	case l == nil:
		return p.Clone(), false
	}

	if normalizeValue(p.Value) == normalizeValue(l.Value) {
		// agreement: both sources contributed, confidence is the max of the
		// two and never lower than either
		merged := p.Clone()
		merged.SourceMethod = clinical.SourceMerged
		if l.Confidence > merged.Confidence {
			merged.Confidence = l.Confidence
		}
		if merged.Subtype == nil {
			merged.Subtype = l.Subtype
		}
		return merged, false
	}

	// conflict: higher confidence wins, loser is retained as an alternative
	winner, loser := p, l
	if l.Confidence > p.Confidence {
		winner, loser = l, p
	}
	merged := winner.Clone()
	merged.SourceMethod = clinical.SourceMerged
	merged.Alternatives = append(merged.Alternatives, clinical.Alternative{
		Value:        loser.Value,
		Confidence:   loser.Confidence,
		SourceMethod: loser.SourceMethod,
	})
	if merged.Subtype == nil {
		merged.Subtype = loser.Subtype
	}
	return merged, true
}
