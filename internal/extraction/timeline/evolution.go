package timeline

import (
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

// significantStep is the normalized-score delta treated as a real change
// rather than measurement noise.
const significantStep = 0.10

// Analyzer derives the functional trajectory from score entities.
type Analyzer interface {
	Analyze(entities []*clinical.ExtractedEntity) *clinical.FunctionalTrajectory
}

type analyzer struct {
	logger logging.Logger
}

// NewAnalyzer constructs an Analyzer.  logger may be nil.
func NewAnalyzer(logger logging.Logger) Analyzer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &analyzer{logger: logger.Named("evolution")}
}

// NormalizeScore maps a raw functional score onto the common 0–1
// higher-is-better scale.  Returns false when the raw value is outside the
// instrument's range.
func NormalizeScore(kind clinical.ScoreKind, raw float64) (float64, bool) {
	switch kind {
	case clinical.ScoreGCS: // 3–15, higher is better
		if raw < 3 || raw > 15 {
			return 0, false
		}
		return (raw - 3) / 12, true
	case clinical.ScoreKPS: // 0–100, higher is better
		if raw < 0 || raw > 100 {
			return 0, false
		}
		return raw / 100, true
	case clinical.ScoreECOG: // 0–5, lower is better
		if raw < 0 || raw > 5 {
			return 0, false
		}
		return 1 - raw/5, true
	case clinical.ScoreMRS: // 0–6, lower is better
		if raw < 0 || raw > 6 {
			return 0, false
		}
		return 1 - raw/6, true
	}
	return 0, false
}

// Analyze collects every functional-score entity, normalizes it, orders the
// sequence by date (undated scores keep extraction order at the end), flags
// significant step changes, and labels the overall course.
func (a *analyzer) Analyze(entities []*clinical.ExtractedEntity) *clinical.FunctionalTrajectory {
	var scores []clinical.FunctionalScore
	for _, ent := range entities {
		if ent.Type != clinical.EntityFunctionalScore {
			continue
		}
		kind, ok := scoreKind(ent)
		if !ok {
			continue
		}
		raw, err := strconv.ParseFloat(strings.TrimSpace(ent.Value), 64)
		if err != nil {
			continue
		}
		normalized, ok := NormalizeScore(kind, raw)
		if !ok {
			continue
		}
		scores = append(scores, clinical.FunctionalScore{
			Kind:       kind,
			Raw:        raw,
			Normalized: normalized,
			Date:       ent.ResolvedDate,
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		di, dj := scores[i].Date, scores[j].Date
		switch {
		case di == nil && dj == nil:
			return false
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})

	traj := &clinical.FunctionalTrajectory{Scores: scores}
	if len(scores) < 2 {
		traj.Label = clinical.TrajectoryInsufficientData
		return traj
	}

	for i := 1; i < len(scores); i++ {
		delta := scores[i].Normalized - scores[i-1].Normalized
		if delta >= significantStep || delta <= -significantStep {
			traj.SignificantChanges = append(traj.SignificantChanges, clinical.StepChange{
				FromIndex: i - 1,
				ToIndex:   i,
				Delta:     delta,
			})
		}
	}

	traj.Label = labelTrajectory(scores, traj.SignificantChanges)
	a.logger.Debug("trajectory analyzed",
		logging.Int("scores", len(scores)),
		logging.String("label", string(traj.Label)),
	)
	return traj
}

// labelTrajectory classifies the course from the first-to-last delta plus
// the presence of large opposing swings.
func labelTrajectory(scores []clinical.FunctionalScore, changes []clinical.StepChange) clinical.TrajectoryLabel {
	up, down := 0, 0
	for _, ch := range changes {
		if ch.Delta > 0 {
			up++
		} else {
			down++
		}
	}
	if up > 0 && down > 0 {
		return clinical.TrajectoryFluctuating
	}

	overall := scores[len(scores)-1].Normalized - scores[0].Normalized
	switch {
	case overall >= significantStep:
		return clinical.TrajectoryImproving
	case overall <= -significantStep:
		return clinical.TrajectoryDeclining
	default:
		return clinical.TrajectoryStable
	}
}

func scoreKind(ent *clinical.ExtractedEntity) (clinical.ScoreKind, bool) {
	if ent.Subtype != nil {
		switch clinical.ScoreKind(ent.Subtype.Category) {
		case clinical.ScoreGCS, clinical.ScoreKPS, clinical.ScoreECOG, clinical.ScoreMRS:
			return clinical.ScoreKind(ent.Subtype.Category), true
		}
	}
	field := strings.ToLower(ent.Field)
	switch {
	case strings.HasSuffix(field, ":gcs"):
		return clinical.ScoreGCS, true
	case strings.HasSuffix(field, ":kps"):
		return clinical.ScoreKPS, true
	case strings.HasSuffix(field, ":ecog"):
		return clinical.ScoreECOG, true
	case strings.HasSuffix(field, ":mrs"):
		return clinical.ScoreMRS, true
	}
	return "", false
}
