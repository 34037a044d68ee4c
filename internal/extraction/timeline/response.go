package timeline

import (
	"strings"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

// ResponseConfig bounds the forward search windows per intervention
// category.  Drug responses declare themselves quickly; surgical outcomes
// take longer to manifest.
type ResponseConfig struct {
	PharmacologicWindowDays int
	SurgicalWindowDays      int
}

// DefaultResponseConfig mirrors the production defaults.
func DefaultResponseConfig() ResponseConfig {
	return ResponseConfig{PharmacologicWindowDays: 7, SurgicalWindowDays: 30}
}

// Response-quality vocabularies, checked in order: the first class with a
// match wins.
var responseVocab = []struct {
	quality clinical.ResponseQuality
	terms   []string
}{
	{clinical.ResponseExcellent, []string{"resolved", "recovered", "excellent", "complete resolution"}},
	{clinical.ResponseGood, []string{"improving", "improved", "improvement", "better", "tolerating well"}},
	{clinical.ResponsePartial, []string{"partial", "some improvement", "slightly better", "stable"}},
	{clinical.ResponsePoor, []string{"worsening", "worsened", "deteriorat", "no improvement", "refractory", "failed"}},
}

// Tracker derives intervention-outcome pairs from the ordered timeline.
type Tracker interface {
	Track(events []*clinical.TimelineEvent) []*clinical.TreatmentResponse
}

type tracker struct {
	cfg    ResponseConfig
	logger logging.Logger
}

// NewTracker constructs a Tracker.  Zero-valued config fields get defaults;
// logger may be nil.
func NewTracker(cfg ResponseConfig, logger logging.Logger) Tracker {
	def := DefaultResponseConfig()
	if cfg.PharmacologicWindowDays < 1 {
		cfg.PharmacologicWindowDays = def.PharmacologicWindowDays
	}
	if cfg.SurgicalWindowDays < 1 {
		cfg.SurgicalWindowDays = def.SurgicalWindowDays
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &tracker{cfg: cfg, logger: logger.Named("response")}
}

// Track searches forward from every intervention for the first
// outcome-indicating event inside the category's window.  Interventions
// whose window closes without an outcome are recorded with quality unknown.
func (t *tracker) Track(events []*clinical.TimelineEvent) []*clinical.TreatmentResponse {
	var out []*clinical.TreatmentResponse
	for i, ev := range events {
		if !isIntervention(ev) {
			continue
		}
		window := t.cfg.SurgicalWindowDays
		if isPharmacologic(ev) {
			window = t.cfg.PharmacologicWindowDays
		}

		resp := &clinical.TreatmentResponse{
			InterventionID: ev.ID,
			Intervention:   ev.Description,
			Quality:        clinical.ResponseUnknown,
		}
		for j := i + 1; j < len(events); j++ {
			dist := daysBetween(ev.Date, events[j].Date)
			if dist > window {
				break
			}
			if quality, ok := classifyOutcome(events[j]); ok {
				resp.Outcome = events[j].Description
				resp.Quality = quality
				resp.TimeToResponseDays = dist
				break
			}
		}
		out = append(out, resp)
	}
	t.logger.Debug("response tracking complete", logging.Int("responses", len(out)))
	return out
}

// isPharmacologic reports whether the intervention event is drug-based.
func isPharmacologic(ev *clinical.TimelineEvent) bool {
	for _, ent := range ev.Entities {
		if ent.Type == clinical.EntityMedication {
			return true
		}
	}
	return false
}

func classifyOutcome(ev *clinical.TimelineEvent) (clinical.ResponseQuality, bool) {
	desc := strings.ToLower(ev.Description)
	for _, class := range responseVocab {
		for _, term := range class.terms {
			if strings.Contains(desc, term) {
				return class.quality, true
			}
		}
	}
	if ev.Type == clinical.EventComplication {
		return clinical.ResponsePoor, true
	}
	return clinical.ResponseUnknown, false
}
