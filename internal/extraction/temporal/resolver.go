// Package temporal binds extracted entities to calendar dates.  It detects
// absolute dates, relative references, and post-operative-day tokens in the
// deduplicated text, resolves the non-absolute ones against an anchor date,
// and associates every other entity with the nearest preceding dated
// reference.  A reference that cannot be resolved is left null; the resolver
// never guesses.
package temporal

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

var (
	isoDateRe  = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	podRe      = regexp.MustCompile(`\bPOD(\d{1,2})\b`)
	relativeRe = regexp.MustCompile(`(?i)\b(yesterday|today|tonight|overnight|this\s+morning|this\s+evening|(\d{1,2})\s+days?\s+ago)\b`)

	admissionCueRe = regexp.MustCompile(`(?i)\b(?:admitted|admission|presented)\b`)
	dischargeCueRe = regexp.MustCompile(`(?i)\b(?:discharged?|discharge planned)\b`)
)

// admissionCueWindow is how far (in bytes) an admission or discharge cue may
// sit from an absolute date for that date to count as the milestone date.
const admissionCueWindow = 80

// DateMark is one dated reference found in the text, absolute or resolved.
type DateMark struct {
	Offset int
	Date   time.Time
	Kind   string // "absolute" | "pod" | "relative"
}

// DocBoundary maps a byte range of the deduplicated text back to its source
// document, so entity-date association can respect document boundaries.
type DocBoundary struct {
	DocIndex int
	Start    int
	End      int
}

// Resolution summarizes one resolver run.
type Resolution struct {
	AdmissionDate *time.Time
	DischargeDate *time.Time
	Marks         []DateMark
	Bound         int // entities that received a resolved date
	Unbound       int // entities left undated
}

// Resolver binds entities to resolved calendar dates in place.
type Resolver interface {
	Resolve(text string, entities []*clinical.ExtractedEntity, boundaries []DocBoundary) *Resolution
}

type resolver struct {
	logger logging.Logger
}

// NewResolver constructs a Resolver.  logger may be nil.
func NewResolver(logger logging.Logger) Resolver {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &resolver{logger: logger.Named("temporal")}
}

func (r *resolver) Resolve(text string, entities []*clinical.ExtractedEntity, boundaries []DocBoundary) *Resolution {
	marks := findAbsoluteMarks(text)
	admission := findAdmissionDate(text, marks)

	discharge := findDischargeDate(text, marks, admission)

	marks = append(marks, resolveRelativeMarks(text, marks, admission)...)
	sort.Slice(marks, func(i, j int) bool { return marks[i].Offset < marks[j].Offset })

	res := &Resolution{AdmissionDate: admission, DischargeDate: discharge, Marks: marks}
	for _, ent := range entities {
		if ent.ResolvedDate != nil {
			res.Bound++
			continue
		}
		if d := dateForEntity(ent, marks, boundaries); d != nil {
			ent.ResolvedDate = d
			res.Bound++
		} else {
			res.Unbound++
		}
		if b := boundaryFor(ent.Span.Start, boundaries); b != nil {
			ent.DocIndex = b.DocIndex
		}
	}

	r.logger.Debug("temporal resolution complete",
		logging.Int("marks", len(marks)),
		logging.Int("bound", res.Bound),
		logging.Int("unbound", res.Unbound),
	)
	return res
}

func findAbsoluteMarks(text string) []DateMark {
	var marks []DateMark
	for _, m := range isoDateRe.FindAllStringSubmatchIndex(text, -1) {
		d, err := time.Parse("2006-01-02", text[m[2]:m[3]])
		if err != nil {
			continue
		}
		marks = append(marks, DateMark{Offset: m[0], Date: d, Kind: "absolute"})
	}
	return marks
}

// findAdmissionDate prefers an absolute date near admission language; with no
// cue it falls back to the earliest absolute date, and with no absolute dates
// at all it returns nil.
func findAdmissionDate(text string, marks []DateMark) *time.Time {
	if len(marks) == 0 {
		return nil
	}
	for _, cue := range admissionCueRe.FindAllStringIndex(text, -1) {
		for _, mark := range marks {
			if abs(mark.Offset-cue[0]) <= admissionCueWindow {
				d := mark.Date
				return &d
			}
		}
	}
	earliest := marks[0]
	for _, mark := range marks[1:] {
		if mark.Date.Before(earliest.Date) {
			earliest = mark
		}
	}
	d := earliest.Date
	return &d
}

// findDischargeDate requires an absolute date near discharge language.  Unlike
// admission there is no fallback: many courses end mid-stay, so an
// uncorroborated discharge date would be a guess.  With several cue-adjacent
// dates the latest wins.  A candidate before the admission date is rejected.
func findDischargeDate(text string, marks []DateMark, admission *time.Time) *time.Time {
	var latest *time.Time
	for _, cue := range dischargeCueRe.FindAllStringIndex(text, -1) {
		for _, mark := range marks {
			if abs(mark.Offset-cue[0]) > admissionCueWindow {
				continue
			}
			if admission != nil && mark.Date.Before(*admission) {
				continue
			}
			if latest == nil || mark.Date.After(*latest) {
				d := mark.Date
				latest = &d
			}
		}
	}
	return latest
}

// resolveRelativeMarks converts POD tokens and relative phrases into dated
// marks.  The anchor is the admission date when known, else the nearest
// preceding absolute date; with no anchor the reference stays unresolved.
func resolveRelativeMarks(text string, absolute []DateMark, admission *time.Time) []DateMark {
	anchorFor := func(offset int) *time.Time {
		if admission != nil {
			return admission
		}
		var best *time.Time
		for i := range absolute {
			if absolute[i].Offset <= offset {
				d := absolute[i].Date
				best = &d
			}
		}
		return best
	}

	var marks []DateMark
	for _, m := range podRe.FindAllStringSubmatchIndex(text, -1) {
		anchor := anchorFor(m[0])
		if anchor == nil {
			continue
		}
		n, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		marks = append(marks, DateMark{
			Offset: m[0],
			Date:   anchor.AddDate(0, 0, n),
			Kind:   "pod",
		})
	}

	for _, m := range relativeRe.FindAllStringSubmatchIndex(text, -1) {
		anchor := anchorFor(m[0])
		if anchor == nil {
			continue
		}
		phrase := strings.ToLower(text[m[0]:m[1]])
		days := 0
		switch {
		case phrase == "yesterday":
			days = -1
		case m[4] >= 0: // "N days ago"
			n, err := strconv.Atoi(text[m[4]:m[5]])
			if err != nil {
				continue
			}
			days = -n
		}
		marks = append(marks, DateMark{
			Offset: m[0],
			Date:   anchor.AddDate(0, 0, days),
			Kind:   "relative",
		})
	}
	return marks
}

// dateForEntity picks the nearest dated reference at or before the entity's
// span, staying inside the entity's document when boundaries are known.
func dateForEntity(ent *clinical.ExtractedEntity, marks []DateMark, boundaries []DocBoundary) *time.Time {
	if len(marks) == 0 {
		return nil
	}
	if !ent.Span.Valid() && ent.Span.Start == 0 && ent.Span.End == 0 {
		// hint-derived entities carry no span and bind to nothing
		return nil
	}
	b := boundaryFor(ent.Span.Start, boundaries)

	var best *DateMark
	for i := range marks {
		m := &marks[i]
		if m.Offset > ent.Span.Start {
			// a date inside the entity's own sentence may sit just after the
			// mention ("vasospasm noted 2025-01-16"); allow a short lookahead
			if m.Offset-ent.Span.End > 40 {
				break
			}
			if best != nil {
				break
			}
		}
		if b != nil {
			mb := boundaryFor(m.Offset, boundaries)
			if mb == nil || mb.DocIndex != b.DocIndex {
				continue
			}
		}
		best = m
	}
	if best == nil {
		return nil
	}
	d := best.Date
	return &d
}

func boundaryFor(offset int, boundaries []DocBoundary) *DocBoundary {
	for i := range boundaries {
		if offset >= boundaries[i].Start && offset < boundaries[i].End {
			return &boundaries[i]
		}
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
