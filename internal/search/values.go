package search

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ehr/ehr/internal/fhirpath"
)

// Prefix is a FHIR search comparison prefix (spec §4.3 "Date"/"Number"
// value predicates), the same vocabulary and parsing idiom as the teacher's
// internal/platform/fhir.SearchPrefix, generalized to the index tables.
type Prefix string

const (
	PrefixEq Prefix = "eq"
	PrefixNe Prefix = "ne"
	PrefixGt Prefix = "gt"
	PrefixLt Prefix = "lt"
	PrefixGe Prefix = "ge"
	PrefixLe Prefix = "le"
	PrefixSa Prefix = "sa"
	PrefixEb Prefix = "eb"
	PrefixAp Prefix = "ap"
)

// ParsePrefix extracts a leading two-letter comparison prefix from a search
// value, defaulting to eq when none is present.
func ParsePrefix(raw string) (Prefix, string) {
	if len(raw) >= 2 {
		p := Prefix(strings.ToLower(raw[:2]))
		switch p {
		case PrefixEq, PrefixNe, PrefixGt, PrefixLt, PrefixGe, PrefixLe, PrefixSa, PrefixEb, PrefixAp:
			return p, raw[2:]
		}
	}
	return PrefixEq, raw
}

// normalize mirrors internal/index's value-normalization transform so query
// values compare correctly against value_normalized columns.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// caseSensitiveSystems mirrors internal/index's table so query-side code
// folding matches what was written at index time.
var caseSensitiveSystems = map[string]bool{
	"http://loinc.org":       true,
	"http://snomed.info/sct": true,
	"http://www.nlm.nih.gov/research/umls/rxnorm": true,
}

func codeCI(system, code string) string {
	if caseSensitiveSystems[system] {
		return code
	}
	return strings.ToLower(code)
}

func arg(argIdx *int, val interface{}, args *[]interface{}) string {
	placeholder := fmt.Sprintf("$%d", *argIdx)
	*argIdx++
	*args = append(*args, val)
	return placeholder
}

// StringClause builds the value predicate for a "string" parameter against
// search_string.value / value_normalized (spec §4.3 "String").
func StringClause(value string, modifier Modifier, argIdx *int, args *[]interface{}) string {
	switch modifier {
	case ModExact:
		return fmt.Sprintf("sp.value = %s", arg(argIdx, value, args))
	case ModContains:
		return fmt.Sprintf("sp.value_normalized ILIKE %s", arg(argIdx, "%"+normalize(value)+"%", args))
	default:
		return fmt.Sprintf("sp.value_normalized LIKE %s", arg(argIdx, normalize(value)+"%", args))
	}
}

// TokenClause builds the value predicate for a "token" parameter (spec §4.3
// "Token"). value is "system|code", "|code", "system|", or "code".
func TokenClause(value string, argIdx *int, args *[]interface{}) string {
	if strings.Contains(value, "|") {
		parts := strings.SplitN(value, "|", 2)
		system, code := parts[0], parts[1]
		switch {
		case system != "" && code != "":
			return fmt.Sprintf("(sp.system = %s AND sp.code_ci = %s)",
				arg(argIdx, system, args), arg(argIdx, codeCI(system, code), args))
		case system != "":
			return fmt.Sprintf("sp.system = %s", arg(argIdx, system, args))
		default:
			return fmt.Sprintf("sp.code_ci = %s", arg(argIdx, strings.ToLower(code), args))
		}
	}
	return fmt.Sprintf("sp.code_ci = %s", arg(argIdx, strings.ToLower(value), args))
}

// DateClause builds the value predicate for a "date" parameter against
// search_date.start_date/end_date (spec §4.3 "Date"): the stored [start,end]
// interval is compared against the query's own (possibly precision-widened)
// interval using the FHIR-spec prefix semantics.
func DateClause(value string, argIdx *int, args *[]interface{}) string {
	prefix, raw := ParsePrefix(value)
	qstart, qend := fhirpath.DateInterval(fhirpath.ParseDateTime(raw))
	qs, qe := arg(argIdx, qstart, args), arg(argIdx, qend, args)
	switch prefix {
	case PrefixGt, PrefixSa:
		return fmt.Sprintf("sp.start_date > %s", qe)
	case PrefixLt, PrefixEb:
		return fmt.Sprintf("sp.end_date < %s", qs)
	case PrefixGe:
		return fmt.Sprintf("sp.end_date >= %s", qs)
	case PrefixLe:
		return fmt.Sprintf("sp.start_date <= %s", qe)
	case PrefixNe:
		return fmt.Sprintf("NOT (sp.start_date >= %s AND sp.end_date <= %s)", qs, qe)
	case PrefixAp:
		return fmt.Sprintf("(sp.start_date <= %s AND sp.end_date >= %s)", qe, qs)
	default: // eq: stored interval fully within query interval
		return fmt.Sprintf("(sp.start_date >= %s AND sp.end_date <= %s)", qs, qe)
	}
}

// PointDateClause builds a date predicate against a single timestamp column
// (spec §4.3 "Special": "_lastUpdated ... compared against r.last_updated
// with the date grammar"), as opposed to DateClause's [start,end] interval
// column pair.
func PointDateClause(column string, value string, argIdx *int, args *[]interface{}) string {
	prefix, raw := ParsePrefix(value)
	qstart, qend := fhirpath.DateInterval(fhirpath.ParseDateTime(raw))
	qs, qe := arg(argIdx, qstart, args), arg(argIdx, qend, args)
	switch prefix {
	case PrefixGt, PrefixSa:
		return fmt.Sprintf("%s > %s", column, qe)
	case PrefixLt, PrefixEb:
		return fmt.Sprintf("%s < %s", column, qs)
	case PrefixGe:
		return fmt.Sprintf("%s >= %s", column, qs)
	case PrefixLe:
		return fmt.Sprintf("%s <= %s", column, qe)
	case PrefixNe:
		return fmt.Sprintf("NOT (%s BETWEEN %s AND %s)", column, qs, qe)
	case PrefixAp:
		return fmt.Sprintf("%s BETWEEN %s AND %s", column, qs, qe)
	default:
		return fmt.Sprintf("%s BETWEEN %s AND %s", column, qs, qe)
	}
}

// numericPrecisionEpsilon returns half a unit in the last significant digit
// of the literal's decimal representation (spec §4.3 "decimal-precision-aware
// eq allows ±½ ULP at the query's precision").
func numericPrecisionEpsilon(raw string) float64 {
	idx := strings.IndexByte(raw, '.')
	if idx < 0 {
		return 0.5
	}
	decimals := len(raw) - idx - 1
	return 0.5 * pow10(-decimals)
}

func pow10(exp int) float64 {
	v := 1.0
	if exp >= 0 {
		for i := 0; i < exp; i++ {
			v *= 10
		}
		return v
	}
	for i := 0; i < -exp; i++ {
		v /= 10
	}
	return v
}

// NumberClause builds the value predicate for a "number" parameter against
// search_number.value (spec §4.3 "Number").
func NumberClause(value string, argIdx *int, args *[]interface{}) string {
	prefix, raw := ParsePrefix(value)
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Sprintf("sp.value::text = %s", arg(argIdx, raw, args))
	}
	switch prefix {
	case PrefixGt, PrefixSa:
		return fmt.Sprintf("sp.value > %s", arg(argIdx, n, args))
	case PrefixLt, PrefixEb:
		return fmt.Sprintf("sp.value < %s", arg(argIdx, n, args))
	case PrefixGe:
		return fmt.Sprintf("sp.value >= %s", arg(argIdx, n, args))
	case PrefixLe:
		return fmt.Sprintf("sp.value <= %s", arg(argIdx, n, args))
	case PrefixNe:
		eps := numericPrecisionEpsilon(raw)
		return fmt.Sprintf("NOT (sp.value BETWEEN %s AND %s)", arg(argIdx, n-eps, args), arg(argIdx, n+eps, args))
	case PrefixAp:
		return fmt.Sprintf("sp.value BETWEEN %s AND %s", arg(argIdx, n*0.9, args), arg(argIdx, n*1.1, args))
	default:
		eps := numericPrecisionEpsilon(raw)
		return fmt.Sprintf("sp.value BETWEEN %s AND %s", arg(argIdx, n-eps, args), arg(argIdx, n+eps, args))
	}
}

// QuantityClause builds the value predicate for a "quantity" parameter
// against search_quantity (spec §4.3 "Quantity"): value[|system|code]; the
// stored code and unit are both candidates for the code slot.
func QuantityClause(value string, argIdx *int, args *[]interface{}) string {
	parts := strings.SplitN(value, "|", 3)
	numClause := NumberClause(parts[0], argIdx, args)
	if len(parts) == 1 {
		return numClause
	}
	system := parts[1]
	code := ""
	if len(parts) == 3 {
		code = parts[2]
	}
	clauses := []string{numClause}
	if system != "" {
		clauses = append(clauses, fmt.Sprintf("sp.system = %s", arg(argIdx, system, args)))
	}
	if code != "" {
		placeholder := arg(argIdx, code, args)
		clauses = append(clauses, fmt.Sprintf("(sp.code = %s OR sp.unit = %s)", placeholder, placeholder))
	}
	return "(" + strings.Join(clauses, " AND ") + ")"
}

// URIClause builds the value predicate for a "uri" parameter (spec §4.3
// "URI"): default exact, :above matches hierarchical prefixes of the stored
// value, :below matches descendants of the query value.
func URIClause(value string, modifier Modifier, argIdx *int, args *[]interface{}) string {
	v := strings.TrimSuffix(value, "/")
	switch modifier {
	case ModAbove:
		return fmt.Sprintf("%s LIKE sp.value_normalized || '%%'", arg(argIdx, normalize(v), args))
	case ModBelow:
		return fmt.Sprintf("sp.value_normalized LIKE %s", arg(argIdx, normalize(v)+"%", args))
	default:
		return fmt.Sprintf("sp.value = %s", arg(argIdx, v, args))
	}
}
