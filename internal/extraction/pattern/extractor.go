package pattern

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/common"
)

// Fixed confidences per pattern class.  Structured numeric fields score high;
// free-text captures score lower.
const (
	confStructured   = 0.95 // numeric scores, ISO dates
	confVocabulary   = 0.85 // procedures, medications from controlled vocab
	confComplication = 0.80
	confDemographic  = 0.90
	confFreeText     = 0.60 // imaging findings, consult notes
	confPathology    = 0.90
)

var (
	ageRe = regexp.MustCompile(`(?i)\b(\d{1,3})[- ]year[- ]old\b`)
	sexRe = regexp.MustCompile(`(?i)\b(male|female|man|woman|gentleman|lady)\b`)

	isoDateRe = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	podRe     = regexp.MustCompile(`\bPOD(\d{1,2})\b`)

	gcsRe  = regexp.MustCompile(`(?i)\bGCS\s*(?:of\s*|:\s*)?(\d{1,2})\b`)
	kpsRe  = regexp.MustCompile(`(?i)\b(?:KPS|karnofsky)\s*(?:of\s*|:\s*|score\s*)?(\d{1,3})\b`)
	ecogRe = regexp.MustCompile(`(?i)\bECOG\s*(?:of\s*|:\s*)?([0-5])\b`)
	mrsRe  = regexp.MustCompile(`(?i)\bmRS\s*(?:of\s*|:\s*)?([0-6])\b`)

	imagingRe = regexp.MustCompile(`(?i)\b(CT(?:A)?|MRI|MRA|angiogram|x-ray)\b[^.!?]{0,20}?\b(?:show(?:s|ed)?|demonstrat(?:es|ed)|reveal(?:s|ed)|concerning for|consistent with|notable for)\b([^.!?]{3,120})`)

	consultRe = regexp.MustCompile(`(?i)\b([a-z]+(?:\s[a-z]+)?)\s+(?:consult(?:ation)?|was consulted|service following)\b`)
)

// Extractor is the deterministic rule-based extraction engine.  It is total:
// absence of matches yields an empty entity list, never an error.
type Extractor interface {
	// Extract runs detection plus every entity pass over deduplicated text.
	Extract(text string, hints clinical.ExtractionHints) *ExtractionResult
}

// ExtractionResult carries the pattern engine's full output.
type ExtractionResult struct {
	Primary     clinical.PathologyType
	Pathologies []clinical.PathologyScore
	Entities    []clinical.ExtractedEntity
}

type extractor struct {
	logger logging.Logger
}

// NewExtractor constructs the pattern extraction engine.  logger may be nil.
func NewExtractor(logger logging.Logger) Extractor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &extractor{logger: logger.Named("pattern")}
}

func (e *extractor) Extract(text string, hints clinical.ExtractionHints) *ExtractionResult {
	primary, scores := DetectPathologies(text, hints.Pathology)
	prof := ProfileFor(primary)

	var entities []clinical.ExtractedEntity
	entities = append(entities, e.extractDemographics(text, hints)...)
	entities = append(entities, e.extractDates(text)...)
	entities = append(entities, e.extractPathologies(text, primary, scores)...)
	entities = append(entities, e.extractVocabulary(text, prof)...)
	entities = append(entities, e.extractScores(text)...)
	entities = append(entities, e.extractImaging(text)...)
	entities = append(entities, e.extractConsultations(text)...)

	// stable output order for determinism: (span start, field)
	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].Span.Start != entities[j].Span.Start {
			return entities[i].Span.Start < entities[j].Span.Start
		}
		return entities[i].Field < entities[j].Field
	})
	for i := range entities {
		entities[i].ID = deterministicID(entities[i])
	}

	e.logger.Debug("pattern extraction complete",
		logging.String("primary", string(primary)),
		logging.Int("entities", len(entities)),
	)
	return &ExtractionResult{Primary: primary, Pathologies: scores, Entities: entities}
}

// deterministicID derives a stable UUID from the entity's identity so that
// repeated runs over the same input produce byte-identical output.
func deterministicID(e clinical.ExtractedEntity) common.ID {
	seed := fmt.Sprintf("%s|%s|%s|%d", e.Type, e.Field, e.Value, e.Span.Start)
	return common.ID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String())
}

func newEntity(t clinical.EntityType, field, value string, conf float64, start, end int) clinical.ExtractedEntity {
	return clinical.ExtractedEntity{
		Type:         t,
		Field:        field,
		Value:        value,
		SourceMethod: clinical.SourcePattern,
		Confidence:   conf,
		Span:         clinical.SourceSpan{Start: start, End: end},
	}
}

func (e *extractor) extractDemographics(text string, hints clinical.ExtractionHints) []clinical.ExtractedEntity {
	var out []clinical.ExtractedEntity
	if m := ageRe.FindStringSubmatchIndex(text); m != nil {
		out = append(out, newEntity(clinical.EntityDemographic, "patient_age",
			text[m[2]:m[3]], confDemographic, m[0], m[1]))
	} else if hints.PatientAge > 0 {
		out = append(out, newEntity(clinical.EntityDemographic, "patient_age",
			fmt.Sprintf("%d", hints.PatientAge), confDemographic, 0, 0))
	}
	if m := sexRe.FindStringSubmatchIndex(text); m != nil {
		out = append(out, newEntity(clinical.EntityDemographic, "patient_sex",
			canonicalSex(text[m[2]:m[3]]), confDemographic, m[0], m[1]))
	} else if hints.PatientSex != "" {
		out = append(out, newEntity(clinical.EntityDemographic, "patient_sex",
			canonicalSex(hints.PatientSex), confDemographic, 0, 0))
	}
	return out
}

func canonicalSex(s string) string {
	switch strings.ToLower(s) {
	case "male", "man", "gentleman", "m":
		return "male"
	case "female", "woman", "lady", "f":
		return "female"
	}
	return strings.ToLower(s)
}

func (e *extractor) extractDates(text string) []clinical.ExtractedEntity {
	var out []clinical.ExtractedEntity
	for _, m := range isoDateRe.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, newEntity(clinical.EntityDateReference, "absolute_date",
			text[m[2]:m[3]], confStructured, m[0], m[1]))
	}
	for _, m := range podRe.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, newEntity(clinical.EntityDateReference, "pod",
			text[m[2]:m[3]], confStructured, m[0], m[1]))
	}
	return out
}

func (e *extractor) extractPathologies(text string, primary clinical.PathologyType, scores []clinical.PathologyScore) []clinical.ExtractedEntity {
	var out []clinical.ExtractedEntity
	for _, sc := range scores {
		prof := ProfileFor(sc.Type)
		span := clinical.SourceSpan{}
		for _, re := range prof.Primary {
			if m := re.FindStringIndex(text); m != nil {
				span = clinical.SourceSpan{Start: m[0], End: m[1]}
				break
			}
		}
		field := "detected_pathology"
		if sc.Type == primary {
			field = "primary_pathology"
		}
		conf := confPathology
		if sc.Type != primary {
			conf = confComplication
		}
		out = append(out, newEntity(clinical.EntityPathology, field,
			string(sc.Type), conf, span.Start, span.End))
	}
	return out
}

// extractVocabulary scans the profile's controlled vocabularies plus the
// generic fallback lists, so a non-profiled complication like "pneumonia" is
// still caught on a pathology-specific note.
func (e *extractor) extractVocabulary(text string, prof *Profile) []clinical.ExtractedEntity {
	generic := library[clinical.PathologyGeneric]

	var out []clinical.ExtractedEntity
	out = append(out, vocabEntities(text, clinical.EntityProcedure, "procedure",
		mergeVocab(prof.Procedures, generic.Procedures), confVocabulary)...)
	out = append(out, vocabEntities(text, clinical.EntityComplication, "complication",
		mergeVocab(prof.Complications, generic.Complications), confComplication)...)
	out = append(out, vocabEntities(text, clinical.EntityMedication, "medication",
		mergeVocab(prof.Medications, generic.Medications), confVocabulary)...)
	return out
}

func mergeVocab(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func vocabEntities(text string, t clinical.EntityType, fieldPrefix string, vocab []string, conf float64) []clinical.ExtractedEntity {
	lower := strings.ToLower(text)
	var out []clinical.ExtractedEntity
	for _, term := range vocab {
		lt := strings.ToLower(term)
		idx := 0
		for {
			pos := strings.Index(lower[idx:], lt)
			if pos < 0 {
				break
			}
			start := idx + pos
			end := start + len(lt)
			if wholeWord(lower, start, end) {
				out = append(out, newEntity(t, fieldPrefix+":"+lt,
					lt, conf, start, end))
				// one entity per term; later mentions are duplicates of the
				// same fact
				break
			}
			idx = end
		}
	}
	return out
}

func wholeWord(s string, start, end int) bool {
	if start > 0 && isWordByte(s[start-1]) {
		return false
	}
	if end < len(s) && isWordByte(s[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func (e *extractor) extractScores(text string) []clinical.ExtractedEntity {
	type scoreSpec struct {
		re    *regexp.Regexp
		kind  clinical.ScoreKind
		field string
	}
	specs := []scoreSpec{
		{gcsRe, clinical.ScoreGCS, "functional_score:gcs"},
		{kpsRe, clinical.ScoreKPS, "functional_score:kps"},
		{ecogRe, clinical.ScoreECOG, "functional_score:ecog"},
		{mrsRe, clinical.ScoreMRS, "functional_score:mrs"},
	}
	var out []clinical.ExtractedEntity
	for _, spec := range specs {
		for _, m := range spec.re.FindAllStringSubmatchIndex(text, -1) {
			ent := newEntity(clinical.EntityFunctionalScore, spec.field,
				text[m[2]:m[3]], confStructured, m[0], m[1])
			ent.Subtype = &clinical.Subtype{
				Category:   string(spec.kind),
				Value:      text[m[2]:m[3]],
				Confidence: confStructured,
			}
			out = append(out, ent)
		}
	}
	return out
}

func (e *extractor) extractImaging(text string) []clinical.ExtractedEntity {
	var out []clinical.ExtractedEntity
	for _, m := range imagingRe.FindAllStringSubmatchIndex(text, -1) {
		modality := strings.ToUpper(text[m[2]:m[3]])
		finding := strings.TrimSpace(text[m[4]:m[5]])
		out = append(out, newEntity(clinical.EntityImagingFinding,
			"imaging_finding:"+strings.ToLower(modality),
			modality+": "+finding, confFreeText, m[0], m[1]))
	}
	return out
}

func (e *extractor) extractConsultations(text string) []clinical.ExtractedEntity {
	var out []clinical.ExtractedEntity
	for _, m := range consultRe.FindAllStringSubmatchIndex(text, -1) {
		service := strings.ToLower(strings.TrimSpace(text[m[2]:m[3]]))
		out = append(out, newEntity(clinical.EntityConsultationRecord,
			"consultation:"+service, service, confFreeText, m[0], m[1]))
	}
	return out
}
