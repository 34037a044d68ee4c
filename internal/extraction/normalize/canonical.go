package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Section headers are canonicalized so downstream regexes only need to know
// one spelling.  Matching is case-insensitive at line/sentence starts.
var sectionHeaders = map[string]string{
	"hpi":   "HISTORY OF PRESENT ILLNESS",
	"pmh":   "PAST MEDICAL HISTORY",
	"psh":   "PAST SURGICAL HISTORY",
	"ros":   "REVIEW OF SYSTEMS",
	"pe":    "PHYSICAL EXAM",
	"a/p":   "ASSESSMENT AND PLAN",
	"a&p":   "ASSESSMENT AND PLAN",
	"meds":  "MEDICATIONS",
	"all":   "ALLERGIES",
	"sh":    "SOCIAL HISTORY",
	"fh":    "FAMILY HISTORY",
	"labs":  "LABORATORY RESULTS",
	"cc":    "CHIEF COMPLAINT",
	"neuro": "NEUROLOGICAL EXAM",
}

// Abbreviations expanded only when followed by whitespace or punctuation, so
// substrings inside longer tokens are untouched.  The list is deliberately
// short: only expansions that are unambiguous in a neurosurgical context.
var abbreviationExpansions = map[string]string{
	"w/":  "with",
	"w/o": "without",
	"y/o": "year-old",
	"yo":  "year-old",
	"b/l": "bilateral",
	"c/o": "complains of",
	"s/s": "signs and symptoms",
}

var (
	headerRe = regexp.MustCompile(`(?i)(^|[.!?] )([A-Za-z&/]{2,6}):`)

	// 01/16/2025, 1-16-25, 2025/01/16
	numericDateRe = regexp.MustCompile(`\b(\d{1,4})[/-](\d{1,2})[/-](\d{2,4})\b`)

	// January 16, 2025 / Jan 16 2025
	monthNameDateRe = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t|tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)

	// POD#2, pod 2, post-op day 2, postoperative day 2
	podRe = regexp.MustCompile(`(?i)\b(?:pod\s*#?\s*(\d{1,2})|post[- ]?op(?:erative)?\s+day\s+#?(\d{1,2}))\b`)
)

var monthNumbers = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// CanonicalizeHeaders rewrites known shorthand section headers into their
// full forms.
func CanonicalizeHeaders(s string) string {
	return headerRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := headerRe.FindStringSubmatch(m)
		full, ok := sectionHeaders[strings.ToLower(sub[2])]
		if !ok {
			return m
		}
		return sub[1] + full + ":"
	})
}

// ExpandAbbreviations expands the fixed shorthand list.  Tokens that already
// appear expanded are untouched because matching is whole-token.
func ExpandAbbreviations(s string) string {
	fields := strings.Split(s, " ")
	for i, f := range fields {
		trimmed := strings.TrimRight(f, ".,;:")
		if exp, ok := abbreviationExpansions[strings.ToLower(trimmed)]; ok {
			fields[i] = exp + f[len(trimmed):]
		}
	}
	return strings.Join(fields, " ")
}

// CanonicalizeDates rewrites numeric and month-name dates to ISO-8601
// (YYYY-MM-DD).  Values that cannot form a real calendar date are left
// unconverted rather than guessed.
func CanonicalizeDates(s string) string {
	s = monthNameDateRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := monthNameDateRe.FindStringSubmatch(m)
		mon := monthNumbers[strings.ToLower(sub[1][:3])]
		day, _ := strconv.Atoi(sub[2])
		year, _ := strconv.Atoi(sub[3])
		if !plausibleDate(year, mon, day) {
			return m
		}
		return fmt.Sprintf("%04d-%02d-%02d", year, mon, day)
	})

	s = numericDateRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := numericDateRe.FindStringSubmatch(m)
		a, _ := strconv.Atoi(sub[1])
		b, _ := strconv.Atoi(sub[2])
		c, _ := strconv.Atoi(sub[3])

		var year, mon, day int
		switch {
		case a > 31: // YYYY/MM/DD
			year, mon, day = a, b, c
		case c > 99: // MM/DD/YYYY
			year, mon, day = c, a, b
		case c >= 0 && c <= 99 && a <= 12: // MM/DD/YY, two-digit year
			year, mon, day = 2000+c, a, b
		default:
			return m
		}
		if !plausibleDate(year, mon, day) {
			return m
		}
		return fmt.Sprintf("%04d-%02d-%02d", year, mon, day)
	})
	return s
}

func plausibleDate(year, mon, day int) bool {
	return year >= 1900 && year <= 2100 && mon >= 1 && mon <= 12 && day >= 1 && day <= 31
}

// CanonicalizePOD rewrites every post-operative-day spelling to the single
// token form "POD<n>".
func CanonicalizePOD(s string) string {
	return podRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := podRe.FindStringSubmatch(m)
		n := sub[1]
		if n == "" {
			n = sub[2]
		}
		return "POD" + n
	})
}

// Canonicalize applies every canonicalization pass in a fixed order.
func Canonicalize(s string) string {
	s = CanonicalizeHeaders(s)
	s = ExpandAbbreviations(s)
	s = CanonicalizeDates(s)
	s = CanonicalizePOD(s)
	return s
}
