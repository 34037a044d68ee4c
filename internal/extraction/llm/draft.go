package llm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/common"
)

// ------------------------------------------------------------
// Defensive typed accessors
// ------------------------------------------------------------

// Collaborator extraction starts provisionally high and loses
// missingKeyPenalty for every expected top-level key the draft omits, down to
// a floor.  Schema completeness is the only signal available about draft
// trustworthiness.
const (
	baseConfidence    = 0.90
	missingKeyPenalty = 0.05
	confidenceFloor   = 0.50
)

// expectedKeys are the draft keys a well-formed collaborator response carries.
var expectedKeys = []string{
	"patient_age", "patient_sex", "pathology", "procedures",
	"complications", "medications", "dates", "functional_scores",
}

// asString coerces a draft value into a string.  Numbers are rendered
// without a fractional part when integral.
func asString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// asStringSlice coerces a draft value into a string slice, tolerating a bare
// string, a JSON array of mixed scalars, or garbage (empty result).
func asStringSlice(v interface{}) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []interface{}:
		var out []string
		for _, item := range t {
			if s, ok := asString(item); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// asStringMap coerces a draft value into a string-keyed string map.
func asStringMap(v interface{}) map[string]string {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, raw := range obj {
		if s, ok := asString(raw); ok {
			out[k] = s
		}
	}
	return out
}

// ------------------------------------------------------------
// Draft coercion
// ------------------------------------------------------------

// Coerce validates the untrusted draft into typed entities with
// sourceMethod=llm.  The per-entity confidence reflects the draft's schema
// completeness: every expected key the collaborator omitted costs a penalty.
// A nil or empty draft coerces to an empty entity list.
func Coerce(draft Draft) []*clinical.ExtractedEntity {
	if len(draft) == 0 {
		return nil
	}

	conf := baseConfidence
	for _, key := range expectedKeys {
		if _, ok := draft[key]; !ok {
			conf -= missingKeyPenalty
		}
	}
	if conf < confidenceFloor {
		conf = confidenceFloor
	}

	var out []*clinical.ExtractedEntity
	add := func(t clinical.EntityType, field, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		out = append(out, &clinical.ExtractedEntity{
			ID:           draftEntityID(t, field, value),
			Type:         t,
			Field:        field,
			Value:        value,
			SourceMethod: clinical.SourceLLM,
			Confidence:   conf,
		})
	}

	if v, ok := asString(draft["patient_age"]); ok {
		add(clinical.EntityDemographic, "patient_age", v)
	}
	if v, ok := asString(draft["patient_sex"]); ok {
		add(clinical.EntityDemographic, "patient_sex", strings.ToLower(v))
	}
	if v, ok := asString(draft["pathology"]); ok {
		add(clinical.EntityPathology, "primary_pathology", strings.ToUpper(v))
	}

	for _, p := range asStringSlice(draft["procedures"]) {
		lp := strings.ToLower(p)
		add(clinical.EntityProcedure, "procedure:"+lp, lp)
	}
	for _, c := range asStringSlice(draft["complications"]) {
		lc := strings.ToLower(c)
		add(clinical.EntityComplication, "complication:"+lc, lc)
	}
	for _, m := range asStringSlice(draft["medications"]) {
		lm := strings.ToLower(m)
		add(clinical.EntityMedication, "medication:"+lm, lm)
	}
	for _, d := range asStringSlice(draft["dates"]) {
		add(clinical.EntityDateReference, "absolute_date", d)
	}
	for _, f := range asStringSlice(draft["imaging_findings"]) {
		add(clinical.EntityImagingFinding, "imaging_finding:llm", f)
	}

	scores := asStringMap(draft["functional_scores"])
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lk := strings.ToLower(k)
		add(clinical.EntityFunctionalScore, "functional_score:"+lk, scores[k])
	}

	return out
}

func draftEntityID(t clinical.EntityType, field, value string) common.ID {
	seed := fmt.Sprintf("llm|%s|%s|%s", t, field, value)
	return common.ID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String())
}
