// Package pattern implements the deterministic rule-based extraction engine.
// A declarative pathology library drives detection and entity extraction; the
// library is built once at package initialization and is read-only
// afterwards, so concurrent sessions can share it without locks.
package pattern

import (
	"regexp"

	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

// Subtype categories attached by the classifier.
const (
	SubtypeHuntHess       = "HUNTHESS"
	SubtypeFisher         = "FISHER"
	SubtypeWHOGrade       = "WHO_GRADE"
	SubtypeSpetzlerMartin = "SPETZLER_MARTIN"
	SubtypeEvansIndex     = "EVANS_INDEX"
	SubtypeICHScore       = "ICH_SCORE"
	SubtypeSimpsonGrade   = "SIMPSON_GRADE"
	SubtypeStenosisGrade  = "STENOSIS_GRADE"
	SubtypeThickness      = "THICKNESS_MM"
)

// SubtypePattern extracts one grading/staging value for a pathology.  Lower
// Priority wins when several categories match the same note.
type SubtypePattern struct {
	Category string
	Regex    *regexp.Regexp
	Priority int
}

// Profile is the complete declarative description of one pathology: how to
// recognize it, where it occurs, how it is graded, and which complications,
// procedures, and medications co-occur with it.
type Profile struct {
	Type     clinical.PathologyType
	Primary  []*regexp.Regexp
	Location []*regexp.Regexp
	Subtypes []SubtypePattern

	Complications []string
	Procedures    []string
	Medications   []string

	// ExpectedFields drives the completeness dimension of quality scoring.
	ExpectedFields []string
}

var library map[clinical.PathologyType]*Profile

// Library returns the pathology profile table.  The returned map must be
// treated as read-only.
func Library() map[clinical.PathologyType]*Profile {
	return library
}

// ProfileFor returns the profile for a pathology, falling back to the
// generic profile when the type is unknown.
func ProfileFor(p clinical.PathologyType) *Profile {
	if prof, ok := library[p]; ok {
		return prof
	}
	return library[clinical.PathologyGeneric]
}

func res(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile("(?i)" + p)
	}
	return out
}

func init() {
	library = map[clinical.PathologyType]*Profile{

		clinical.PathologySAH: {
			Type: clinical.PathologySAH,
			Primary: res(
				`\bsubarachnoid\s+hemorrhage\b`,
				`\bSAH\b`,
				`\baneurysm(?:al)?\s+rupture\b`,
				`\bruptured\s+aneurysm\b`,
			),
			Location: res(
				`\b(?:anterior|posterior)\s+communicating\s+artery\b`,
				`\b(?:acomm?|pcomm?)\b`,
				`\bmiddle\s+cerebral\s+artery\b`,
				`\bMCA\b`, `\bbasilar\s+(?:tip|artery)\b`,
				`\bbasal\s+cisterns?\b`,
				`\bsylvian\s+fissure\b`,
			),
			Subtypes: []SubtypePattern{
				{Category: SubtypeHuntHess, Priority: 0,
					Regex: regexp.MustCompile(`(?i)\bhunt[- ]?(?:and[- ])?hess\s*(?:grade\s*)?([1-5])\b`)},
				{Category: SubtypeFisher, Priority: 1,
					Regex: regexp.MustCompile(`(?i)\b(?:modified\s+)?fisher\s*(?:grade\s*)?([1-4])\b`)},
			},
			Complications: []string{
				"vasospasm", "rebleed", "rebleeding", "hydrocephalus",
				"delayed cerebral ischemia", "hyponatremia", "seizure",
				"cerebral salt wasting",
			},
			Procedures: []string{
				"coiling", "endovascular coiling", "clipping", "aneurysm clipping",
				"craniotomy", "external ventricular drain", "EVD placement",
				"angiogram", "cerebral angiography", "ventriculoperitoneal shunt",
			},
			Medications: []string{"nimodipine", "levetiracetam", "keppra", "milrinone"},
			ExpectedFields: []string{
				"patient_age", "patient_sex", "primary_pathology", "subtype",
				"admission_date", "procedure", "medication", "functional_score",
			},
		},

		clinical.PathologySDH: {
			Type: clinical.PathologySDH,
			Primary: res(
				`\bsubdural\s+hematoma\b`,
				`\bSDH\b`,
				`\b(?:acute|chronic|subacute)\s+subdural\b`,
			),
			Location: res(
				`\b(?:left|right|bilateral)\s+(?:frontal|parietal|temporal|occipital|convexity)\b`,
				`\bholohemispheric\b`, `\bmidline\s+shift\b`,
			),
			Subtypes: []SubtypePattern{
				{Category: SubtypeThickness, Priority: 0,
					Regex: regexp.MustCompile(`(?i)\b(\d{1,2}(?:\.\d)?)\s*mm\s+(?:in\s+)?(?:maximal\s+)?thickness\b`)},
			},
			Complications: []string{
				"recurrence", "reaccumulation", "seizure", "midline shift",
				"herniation",
			},
			Procedures: []string{
				"burr hole", "burr hole evacuation", "craniotomy", "evacuation",
				"middle meningeal artery embolization", "subdural drain",
			},
			Medications: []string{"levetiracetam", "keppra", "tranexamic acid"},
			ExpectedFields: []string{
				"patient_age", "patient_sex", "primary_pathology",
				"admission_date", "procedure", "imaging_finding",
			},
		},

		clinical.PathologyGlioblastoma: {
			Type: clinical.PathologyGlioblastoma,
			Primary: res(
				`\bglioblastoma(?:\s+multiforme)?\b`,
				`\bGBM\b`,
				`\bhigh[- ]grade\s+glioma\b`,
				`\bIDH[- ]wild\s*type\b`,
			),
			Location: res(
				`\b(?:left|right)\s+(?:frontal|parietal|temporal|occipital)\s+lobe\b`,
				`\bcorpus\s+callosum\b`, `\bbutterfly\b`, `\binsular?\b`,
			),
			Subtypes: []SubtypePattern{
				{Category: SubtypeWHOGrade, Priority: 0,
					Regex: regexp.MustCompile(`(?i)\bWHO\s+grade\s+(IV|4|III|3|II|2|I|1)\b`)},
			},
			Complications: []string{
				"cerebral edema", "seizure", "progression", "pseudoprogression",
				"dvt", "wound infection",
			},
			Procedures: []string{
				"craniotomy", "resection", "gross total resection", "biopsy",
				"stereotactic biopsy", "radiation", "radiotherapy",
			},
			Medications: []string{
				"temozolomide", "dexamethasone", "bevacizumab", "levetiracetam",
				"keppra",
			},
			ExpectedFields: []string{
				"patient_age", "patient_sex", "primary_pathology", "subtype",
				"procedure", "medication", "functional_score",
			},
		},

		clinical.PathologySpinalStenosis: {
			Type: clinical.PathologySpinalStenosis,
			Primary: res(
				`\bspinal\s+stenosis\b`,
				`\b(?:lumbar|cervical|thoracic)\s+stenosis\b`,
				`\bneurogenic\s+claudication\b`,
				`\bmyelopathy\b`,
			),
			Location: res(
				`\b[CLT]\d[- ][CLT]?\d\b`,
				`\b(?:lumbar|cervical|thoracic)\s+spine\b`,
				`\bforamin(?:al|a)\b`, `\bcentral\s+canal\b`,
			),
			Subtypes: []SubtypePattern{
				{Category: SubtypeStenosisGrade, Priority: 0,
					Regex: regexp.MustCompile(`(?i)\b(mild|moderate|severe)\s+(?:central\s+)?(?:canal\s+)?stenosis\b`)},
			},
			Complications: []string{
				"cauda equina syndrome", "csf leak", "durotomy", "wound infection",
				"adjacent segment disease",
			},
			Procedures: []string{
				"laminectomy", "decompression", "fusion", "discectomy",
				"foraminotomy", "acdf",
			},
			Medications:    []string{"gabapentin", "pregabalin", "methylprednisolone"},
			ExpectedFields: []string{"patient_age", "primary_pathology", "subtype", "procedure"},
		},

		clinical.PathologyAVM: {
			Type: clinical.PathologyAVM,
			Primary: res(
				`\barteriovenous\s+malformation\b`,
				`\bAVM\b`,
				`\bnidus\b`,
			),
			Location: res(
				`\b(?:left|right)\s+(?:frontal|parietal|temporal|occipital)\b`,
				`\bdeep\s+venous\s+drainage\b`, `\beloquent\s+cortex\b`,
			),
			Subtypes: []SubtypePattern{
				{Category: SubtypeSpetzlerMartin, Priority: 0,
					Regex: regexp.MustCompile(`(?i)\bspetzler[- ]?martin\s*(?:grade\s*)?([1-5IV]+)\b`)},
			},
			Complications: []string{"hemorrhage", "rupture", "seizure", "edema"},
			Procedures: []string{
				"embolization", "resection", "radiosurgery", "gamma knife",
				"angiogram",
			},
			Medications:    []string{"levetiracetam", "keppra"},
			ExpectedFields: []string{"patient_age", "primary_pathology", "subtype", "procedure"},
		},

		clinical.PathologyHydrocephalus: {
			Type: clinical.PathologyHydrocephalus,
			Primary: res(
				`\bhydrocephalus\b`,
				`\bventriculomegaly\b`,
				`\bnormal\s+pressure\s+hydrocephalus\b`, `\bNPH\b`,
			),
			Location: res(
				`\b(?:lateral|third|fourth)\s+ventricle?s?\b`,
				`\baqueduct(?:al)?\b`,
			),
			Subtypes: []SubtypePattern{
				{Category: SubtypeEvansIndex, Priority: 0,
					Regex: regexp.MustCompile(`(?i)\bevans\s+(?:index|ratio)\s*(?:of\s*)?(0?\.\d{1,2})\b`)},
			},
			Complications: []string{
				"shunt malfunction", "shunt infection", "overdrainage",
				"subdural hygroma",
			},
			Procedures: []string{
				"ventriculoperitoneal shunt", "vp shunt", "external ventricular drain",
				"EVD placement", "endoscopic third ventriculostomy",
				"lumbar puncture",
			},
			Medications:    []string{"acetazolamide"},
			ExpectedFields: []string{"patient_age", "primary_pathology", "procedure", "imaging_finding"},
		},

		clinical.PathologyICH: {
			Type: clinical.PathologyICH,
			Primary: res(
				`\bintracerebral\s+hemorrhage\b`,
				`\bintraparenchymal\s+hemorrhage\b`,
				`\bIPH\b`,
				`\bhypertensive\s+hemorrhage\b`,
			),
			Location: res(
				`\bbasal\s+ganglia\b`, `\bthalam(?:us|ic)\b`, `\bpontine\b`,
				`\bcerebellar\b`, `\blobar\b`, `\bputamen\b`,
			),
			Subtypes: []SubtypePattern{
				{Category: SubtypeICHScore, Priority: 0,
					Regex: regexp.MustCompile(`(?i)\bICH\s+score\s*(?:of\s*)?([0-6])\b`)},
			},
			Complications: []string{
				"hematoma expansion", "intraventricular extension", "herniation",
				"hydrocephalus", "seizure",
			},
			Procedures: []string{
				"craniotomy", "hematoma evacuation", "decompressive hemicraniectomy",
				"external ventricular drain", "EVD placement",
			},
			Medications:    []string{"nicardipine", "mannitol", "hypertonic saline", "vitamin k"},
			ExpectedFields: []string{"patient_age", "primary_pathology", "subtype", "imaging_finding"},
		},

		clinical.PathologyMeningioma: {
			Type: clinical.PathologyMeningioma,
			Primary: res(
				`\bmeningioma\b`,
				`\bdural[- ]based\s+(?:mass|lesion)\b`,
			),
			Location: res(
				`\bconvexity\b`, `\bparasagittal\b`, `\bsphenoid\s+wing\b`,
				`\bfalx\b`, `\bolfactory\s+groove\b`, `\bposterior\s+fossa\b`,
			),
			Subtypes: []SubtypePattern{
				{Category: SubtypeSimpsonGrade, Priority: 0,
					Regex: regexp.MustCompile(`(?i)\bsimpson\s+grade\s*(I{1,3}V?|[1-5])\b`)},
				{Category: SubtypeWHOGrade, Priority: 1,
					Regex: regexp.MustCompile(`(?i)\bWHO\s+grade\s+(III|II|I|[1-3])\b`)},
			},
			Complications: []string{"edema", "seizure", "recurrence", "csf leak"},
			Procedures:    []string{"craniotomy", "resection", "embolization", "radiosurgery"},
			Medications:   []string{"dexamethasone", "levetiracetam", "keppra"},
			ExpectedFields: []string{
				"patient_age", "primary_pathology", "subtype", "procedure",
			},
		},

		clinical.PathologyGeneric: {
			Type:    clinical.PathologyGeneric,
			Primary: nil,
			Complications: []string{
				"infection", "seizure", "dvt", "pulmonary embolism", "pneumonia",
				"urinary tract infection", "delirium", "fall",
			},
			Procedures: []string{
				"craniotomy", "surgery", "intubation", "lumbar puncture",
				"central line placement",
			},
			Medications: []string{
				"dexamethasone", "levetiracetam", "keppra", "mannitol",
				"acetaminophen", "heparin",
			},
			ExpectedFields: []string{"patient_age", "patient_sex", "admission_date"},
		},
	}
}
