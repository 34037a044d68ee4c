// Package timeline orders dated entities into an event sequence and derives
// causal edges, treatment responses, and the functional trajectory from it.
// Everything here is heuristic inference over resolved dates; every derived
// edge carries a confidence strictly below 1.0.
package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/common"
)

// Event importance by type; admission and discharge are milestones.
var eventImportance = map[clinical.EventType]float64{
	clinical.EventAdmission:    1.0,
	clinical.EventDischarge:    1.0,
	clinical.EventProcedure:    0.9,
	clinical.EventComplication: 0.85,
	clinical.EventImaging:      0.6,
	clinical.EventConsultation: 0.5,
	clinical.EventMilestone:    0.8,
}

var entityEventTypes = map[clinical.EntityType]clinical.EventType{
	clinical.EntityProcedure:          clinical.EventProcedure,
	clinical.EntityComplication:       clinical.EventComplication,
	clinical.EntityImagingFinding:     clinical.EventImaging,
	clinical.EntityConsultationRecord: clinical.EventConsultation,
	clinical.EntityMedication:         clinical.EventProcedure, // starting a drug is an intervention
	clinical.EntityFunctionalScore:    clinical.EventMilestone,
}

// Builder assembles timeline events from dated entities.
type Builder interface {
	Build(entities []*clinical.ExtractedEntity, admission, discharge *time.Time) []*clinical.TimelineEvent
}

type builder struct {
	logger logging.Logger
}

// NewBuilder constructs a Builder.  logger may be nil.
func NewBuilder(logger logging.Logger) Builder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &builder{logger: logger.Named("timeline")}
}

// Build groups every dated entity into per-(date, type) events, adds the
// admission and discharge milestones when known, and returns the
// chronologically ordered sequence.  Ties on date are broken by input document
// order, then by span offset, so output order is total and stable; an
// admission sorts first and a discharge last among same-day events.
func (b *builder) Build(entities []*clinical.ExtractedEntity, admission, discharge *time.Time) []*clinical.TimelineEvent {
	type key struct {
		day  string
		kind clinical.EventType
	}
	groups := make(map[key]*clinical.TimelineEvent)
	var order []key

	for _, ent := range entities {
		if ent.ResolvedDate == nil {
			continue
		}
		kind, ok := entityEventTypes[ent.Type]
		if !ok {
			continue
		}
		k := key{day: ent.ResolvedDate.Format("2006-01-02"), kind: kind}
		ev, exists := groups[k]
		if !exists {
			ev = &clinical.TimelineEvent{
				Date:       *ent.ResolvedDate,
				Type:       kind,
				Importance: eventImportance[kind],
				DocIndex:   ent.DocIndex,
			}
			groups[k] = ev
			order = append(order, k)
		}
		ev.Entities = append(ev.Entities, ent)
		if ent.DocIndex < ev.DocIndex {
			ev.DocIndex = ent.DocIndex
		}
	}

	events := make([]*clinical.TimelineEvent, 0, len(order)+1)
	for _, k := range order {
		ev := groups[k]
		ev.Description = describe(ev)
		ev.ID = eventID(ev)
		events = append(events, ev)
	}

	if admission != nil {
		events = append(events, milestone(*admission, clinical.EventAdmission, "hospital admission"))
	}
	if discharge != nil {
		events = append(events, milestone(*discharge, clinical.EventDischarge, "hospital discharge"))
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		if events[i].Type == clinical.EventAdmission != (events[j].Type == clinical.EventAdmission) {
			return events[i].Type == clinical.EventAdmission
		}
		if events[i].Type == clinical.EventDischarge != (events[j].Type == clinical.EventDischarge) {
			return events[j].Type == clinical.EventDischarge
		}
		if events[i].DocIndex != events[j].DocIndex {
			return events[i].DocIndex < events[j].DocIndex
		}
		return minSpan(events[i]) < minSpan(events[j])
	})

	b.logger.Debug("timeline built", logging.Int("events", len(events)))
	return events
}

func milestone(date time.Time, kind clinical.EventType, desc string) *clinical.TimelineEvent {
	ev := &clinical.TimelineEvent{
		Date:        date,
		Type:        kind,
		Description: desc,
		Importance:  eventImportance[kind],
	}
	ev.ID = eventID(ev)
	return ev
}

func describe(ev *clinical.TimelineEvent) string {
	values := make([]string, 0, len(ev.Entities))
	seen := make(map[string]struct{})
	for _, ent := range ev.Entities {
		v := strings.ToLower(ent.Value)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Strings(values)
	return strings.Join(values, ", ")
}

func minSpan(ev *clinical.TimelineEvent) int {
	min := 1 << 30
	for _, ent := range ev.Entities {
		if ent.Span.Start < min {
			min = ent.Span.Start
		}
	}
	return min
}

func eventID(ev *clinical.TimelineEvent) common.ID {
	seed := fmt.Sprintf("event|%s|%s|%s", ev.Date.Format("2006-01-02"), ev.Type, ev.Description)
	return common.ID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String())
}
