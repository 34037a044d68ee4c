package timeline

import (
	"strings"
	"time"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

// CausalConfig holds the temporal-adjacency thresholds.  These are empirical
// defaults, tunable via configuration, not physiological constants.
type CausalConfig struct {
	MayHaveCausedWindowDays int
	PromptedWindowDays      int
	ResultedInLookahead     int
}

// DefaultCausalConfig mirrors the production defaults.
func DefaultCausalConfig() CausalConfig {
	return CausalConfig{
		MayHaveCausedWindowDays: 14,
		PromptedWindowDays:      3,
		ResultedInLookahead:     5,
	}
}

// Heuristic edge confidences.  Everything here stays strictly below 1.0:
// temporal adjacency is suggestive, never conclusive.
const (
	mayHaveCausedBaseConfidence = 0.6
	promptedConfidence          = 0.9
	resultedInConfidence        = 0.7
	maxCausalConfidence         = 0.95
)

// improvementVocab marks outcome language used by the resulted_in heuristic.
var improvementVocab = []string{
	"improving", "improved", "improvement", "resolving", "resolved",
	"recovering", "recovered", "stable", "better", "tolerating",
}

// Inferrer derives causal edges from a chronologically ordered timeline.
type Inferrer interface {
	Infer(events []*clinical.TimelineEvent) []*clinical.CausalRelationship
}

type inferrer struct {
	cfg    CausalConfig
	logger logging.Logger
}

// NewInferrer constructs an Inferrer.  Zero-valued config fields get
// defaults; logger may be nil.
func NewInferrer(cfg CausalConfig, logger logging.Logger) Inferrer {
	def := DefaultCausalConfig()
	if cfg.MayHaveCausedWindowDays < 1 {
		cfg.MayHaveCausedWindowDays = def.MayHaveCausedWindowDays
	}
	if cfg.PromptedWindowDays < 1 {
		cfg.PromptedWindowDays = def.PromptedWindowDays
	}
	if cfg.ResultedInLookahead < 1 {
		cfg.ResultedInLookahead = def.ResultedInLookahead
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &inferrer{cfg: cfg, logger: logger.Named("causal")}
}

// Infer applies three adjacency heuristics over the ordered event sequence:
//
//   - intervention then complication within the causation window produces
//     may_have_caused, with confidence decaying over distance;
//   - complication then intervention within the prompt window produces
//     prompted;
//   - intervention followed within a bounded number of events by improvement
//     language produces resulted_in.
func (c *inferrer) Infer(events []*clinical.TimelineEvent) []*clinical.CausalRelationship {
	var out []*clinical.CausalRelationship

	for i, ev := range events {
		switch {
		case isIntervention(ev):
			out = append(out, c.interventionEdges(events, i)...)
		case ev.Type == clinical.EventComplication:
			out = append(out, c.complicationEdges(events, i)...)
		}
	}

	c.logger.Debug("causal inference complete", logging.Int("edges", len(out)))
	return out
}

func isIntervention(ev *clinical.TimelineEvent) bool {
	return ev.Type == clinical.EventProcedure
}

func (c *inferrer) interventionEdges(events []*clinical.TimelineEvent, i int) []*clinical.CausalRelationship {
	var out []*clinical.CausalRelationship
	from := events[i]

	for j := i + 1; j < len(events); j++ {
		to := events[j]
		dist := daysBetween(from.Date, to.Date)

		if to.Type == clinical.EventComplication && dist >= 0 && dist <= c.cfg.MayHaveCausedWindowDays {
			// confidence decays linearly with temporal distance
			conf := mayHaveCausedBaseConfidence *
				(1.0 - float64(dist)/float64(c.cfg.MayHaveCausedWindowDays+1))
			out = append(out, &clinical.CausalRelationship{
				FromEventID:  from.ID,
				ToEventID:    to.ID,
				Type:         clinical.RelationMayHaveCaused,
				Confidence:   capConfidence(conf),
				DistanceDays: dist,
			})
		}

		if j-i <= c.cfg.ResultedInLookahead && hasImprovementLanguage(to) {
			out = append(out, &clinical.CausalRelationship{
				FromEventID:  from.ID,
				ToEventID:    to.ID,
				Type:         clinical.RelationResultedIn,
				Confidence:   capConfidence(resultedInConfidence),
				DistanceDays: dist,
			})
			break // first improvement after the intervention closes the arc
		}
	}
	return out
}

func (c *inferrer) complicationEdges(events []*clinical.TimelineEvent, i int) []*clinical.CausalRelationship {
	var out []*clinical.CausalRelationship
	from := events[i]

	for j := i + 1; j < len(events); j++ {
		to := events[j]
		dist := daysBetween(from.Date, to.Date)
		if dist > c.cfg.PromptedWindowDays {
			break
		}
		if isIntervention(to) && dist >= 0 {
			out = append(out, &clinical.CausalRelationship{
				FromEventID:  from.ID,
				ToEventID:    to.ID,
				Type:         clinical.RelationPrompted,
				Confidence:   capConfidence(promptedConfidence),
				DistanceDays: dist,
			})
		}
	}
	return out
}

func hasImprovementLanguage(ev *clinical.TimelineEvent) bool {
	desc := strings.ToLower(ev.Description)
	for _, word := range improvementVocab {
		if strings.Contains(desc, word) {
			return true
		}
	}
	return false
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

func capConfidence(v float64) float64 {
	if v > maxCausalConfidence {
		return maxCausalConfidence
	}
	if v < 0 {
		return 0
	}
	return v
}
