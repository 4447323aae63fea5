package index

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"github.com/ehr/ehr/internal/fhirpath"
)

// caseSensitiveSystems lists code systems FHIR treats as case-sensitive
// (spec §4.3 "a small table of known case-sensitive systems ... controls
// this; default is case-insensitive via code_ci").
var caseSensitiveSystems = map[string]bool{
	"http://loinc.org":                  true,
	"http://snomed.info/sct":            true,
	"http://www.nlm.nih.gov/research/umls/rxnorm": true,
}

// entryHash deduplicates rows produced by choice-type fan-out and
// overlapping paths (spec §4.2: "the MD5 of resource_type || id || version
// || parameter_name || canonical value tuple").
func entryHash(resourceType, id string, versionID int, paramName string, tuple ...string) string {
	h := md5.New()
	h.Write([]byte(resourceType))
	h.Write([]byte{0})
	h.Write([]byte(id))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(versionID)))
	h.Write([]byte{0})
	h.Write([]byte(paramName))
	for _, t := range tuple {
		h.Write([]byte{0})
		h.Write([]byte(t))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// normalize case-folds and strips combining marks, the transform spec §3
// describes for value_normalized columns.
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

type stringTuple struct{ value string }

// extractStrings implements the "string" extraction row (spec §4.2 table):
// plain string-typed paths are taken as-is; HumanName and Address fan out
// to their constituent text parts as well as the whole-value text.
func extractStrings(c fhirpath.Collection) []stringTuple {
	var out []stringTuple
	for _, v := range c {
		v = v.Materialize()
		switch v.Kind {
		case fhirpath.KindString:
			out = append(out, stringTuple{value: v.Str})
		case fhirpath.KindObject:
			out = append(out, humanNameOrAddressParts(v)...)
		}
	}
	return out
}

func humanNameOrAddressParts(v fhirpath.Value) []stringTuple {
	var out []stringTuple
	for _, field := range []string{"text", "family"} {
		for _, item := range v.Field(field) {
			item = item.Materialize()
			if item.Kind == fhirpath.KindString {
				out = append(out, stringTuple{value: item.Str})
			}
		}
	}
	for _, field := range []string{"given", "line", "city", "state", "postalCode", "country"} {
		for _, item := range v.Field(field) {
			item = item.Materialize()
			if item.Kind == fhirpath.KindString {
				out = append(out, stringTuple{value: item.Str})
			}
		}
	}
	return out
}

type tokenTuple struct {
	system, code, display string
}

// extractTokens implements the "token" extraction row, covering Coding,
// CodeableConcept, Identifier, ContactPoint, primitive code, and boolean.
func extractTokens(c fhirpath.Collection) []tokenTuple {
	var out []tokenTuple
	for _, v := range c {
		v = v.Materialize()
		switch v.Kind {
		case fhirpath.KindBoolean:
			out = append(out, tokenTuple{code: strconv.FormatBool(v.Bool)})
		case fhirpath.KindString:
			out = append(out, tokenTuple{code: v.Str})
		case fhirpath.KindObject:
			out = append(out, objectTokens(v)...)
		}
	}
	return out
}

func objectTokens(v fhirpath.Value) []tokenTuple {
	if codings := v.Field("coding"); len(codings) > 0 {
		var out []tokenTuple
		for _, coding := range codings {
			out = append(out, codingTuple(coding.Materialize()))
		}
		return out
	}
	if system, code, ok := systemCodePair(v); ok {
		display := ""
		if d := firstString(v.Field("display")); d != "" {
			display = d
		}
		return []tokenTuple{{system: system, code: code, display: display}}
	}
	if value := firstString(v.Field("value")); value != "" {
		system := firstString(v.Field("system"))
		return []tokenTuple{{system: system, code: value}}
	}
	return nil
}

func codingTuple(v fhirpath.Value) tokenTuple {
	return tokenTuple{
		system:  firstString(v.Field("system")),
		code:    firstString(v.Field("code")),
		display: firstString(v.Field("display")),
	}
}

func systemCodePair(v fhirpath.Value) (system, code string, ok bool) {
	code = firstString(v.Field("code"))
	if code == "" {
		return "", "", false
	}
	return firstString(v.Field("system")), code, true
}

func firstString(c fhirpath.Collection) string {
	if len(c) == 0 {
		return ""
	}
	v := c[0].Materialize()
	if v.Kind == fhirpath.KindString {
		return v.Str
	}
	return ""
}

func codeCI(system, code string) string {
	if caseSensitiveSystems[system] {
		return code
	}
	return strings.ToLower(code)
}

type identifierOfTypeTuple struct {
	typeSystem, typeCode, value string
}

// extractIdentifierOfType produces the search_token_identifier rows for the
// `:of-type` modifier (spec §4.2 "For :of-type on Identifier").
func extractIdentifierOfType(c fhirpath.Collection) []identifierOfTypeTuple {
	var out []identifierOfTypeTuple
	for _, v := range c {
		v = v.Materialize()
		if v.Kind != fhirpath.KindObject {
			continue
		}
		value := firstString(v.Field("value"))
		if value == "" {
			continue
		}
		typeColl := v.Field("type")
		if len(typeColl) == 0 {
			continue
		}
		typeVal := typeColl[0].Materialize()
		for _, coding := range typeVal.Field("coding") {
			ct := coding.Materialize()
			out = append(out, identifierOfTypeTuple{
				typeSystem: firstString(ct.Field("system")),
				typeCode:   firstString(ct.Field("code")),
				value:      value,
			})
		}
	}
	return out
}

type dateTuple struct{ start, end string }

// extractDates implements the "date" extraction row: date/dateTime/instant
// become [value, value] at their stated precision; Period becomes
// [start, end] with an open end treated as +infinity.
func extractDates(c fhirpath.Collection) []dateTuple {
	var out []dateTuple
	for _, v := range c {
		v = v.Materialize()
		switch v.Kind {
		case fhirpath.KindString:
			parsed := fhirpath.ParseDateTime(v.Str)
			start, end := fhirpath.DateInterval(parsed)
			out = append(out, dateTuple{start: start, end: end})
		case fhirpath.KindObject:
			if startColl := v.Field("start"); len(startColl) > 0 {
				start, _ := fhirpath.DateInterval(fhirpath.ParseDateTime(firstString(startColl)))
				end := "9999-12-31T23:59:59.999"
				if endColl := v.Field("end"); len(endColl) > 0 {
					_, end = fhirpath.DateInterval(fhirpath.ParseDateTime(firstString(endColl)))
				}
				out = append(out, dateTuple{start: start, end: end})
			}
		}
	}
	return out
}

// extractNumbers implements the "number" extraction row; non-numeric values
// are skipped rather than erroring (spec §4.2 "invalid -> skipped").
func extractNumbers(c fhirpath.Collection) []float64 {
	var out []float64
	for _, v := range c {
		v = v.Materialize()
		switch v.Kind {
		case fhirpath.KindInteger:
			out = append(out, float64(v.Int))
		case fhirpath.KindDecimal:
			out = append(out, v.Dec)
		}
	}
	return out
}

type quantityTuple struct {
	value              float64
	system, code, unit string
}

// extractQuantities implements the "quantity" extraction row; a Quantity
// with neither code nor unit is skipped (spec §4.2).
func extractQuantities(c fhirpath.Collection) []quantityTuple {
	var out []quantityTuple
	for _, v := range c {
		v = v.Materialize()
		if v.Kind != fhirpath.KindObject {
			continue
		}
		code := firstString(v.Field("code"))
		unit := firstString(v.Field("unit"))
		if code == "" && unit == "" {
			continue
		}
		value := 0.0
		if vc := v.Field("value"); len(vc) > 0 {
			mv := vc[0].Materialize()
			if mv.Kind == fhirpath.KindInteger {
				value = float64(mv.Int)
			} else if mv.Kind == fhirpath.KindDecimal {
				value = mv.Dec
			}
		}
		out = append(out, quantityTuple{
			value:  value,
			system: firstString(v.Field("system")),
			code:   code,
			unit:   unit,
		})
	}
	return out
}

type referenceTuple struct {
	kind                                   string // relative | absolute | canonical | fragment
	targetType, targetID, targetVersionID  string
	targetURL, canonicalURL, canonicalVer  string
	display                                string
}

// parseReference classifies a Reference.reference string per spec §4.2's
// reference extraction rule.
func parseReference(ref, baseURL string) referenceTuple {
	switch {
	case strings.HasPrefix(ref, "#"):
		return referenceTuple{kind: "fragment", targetID: strings.TrimPrefix(ref, "#")}
	case strings.Contains(ref, "|") && !strings.Contains(ref, "://") && !looksLikeRelative(ref):
		parts := strings.SplitN(ref, "|", 2)
		return referenceTuple{kind: "canonical", canonicalURL: parts[0], canonicalVer: parts[1]}
	case strings.Contains(ref, "://"):
		rest := ref
		if baseURL != "" && strings.HasPrefix(ref, baseURL) {
			rest = strings.TrimPrefix(strings.TrimPrefix(ref, baseURL), "/")
			rt := parseRelative(rest)
			rt.kind = "absolute"
			rt.targetURL = ref
			return rt
		}
		return referenceTuple{kind: "absolute", targetURL: ref}
	default:
		rt := parseRelative(ref)
		rt.kind = "relative"
		return rt
	}
}

func looksLikeRelative(ref string) bool {
	return strings.Count(ref, "/") >= 1 && !strings.Contains(ref, "://")
}

func parseRelative(ref string) referenceTuple {
	parts := strings.Split(ref, "/")
	rt := referenceTuple{}
	if len(parts) >= 2 {
		rt.targetType = parts[0]
		rt.targetID = parts[1]
	}
	if len(parts) >= 4 && parts[2] == "_history" {
		rt.targetVersionID = parts[3]
	}
	return rt
}

// extractReferences implements the "reference" extraction row, including the
// :identifier support by also returning any Reference.identifier tokens.
func extractReferences(c fhirpath.Collection, baseURL string) (refs []referenceTuple, identifiers []tokenTuple) {
	for _, v := range c {
		v = v.Materialize()
		if v.Kind != fhirpath.KindObject {
			continue
		}
		if ref := firstString(v.Field("reference")); ref != "" {
			rt := parseReference(ref, baseURL)
			rt.display = firstString(v.Field("display"))
			refs = append(refs, rt)
		}
		if idColl := v.Field("identifier"); len(idColl) > 0 {
			identifiers = append(identifiers, extractTokens(idColl)...)
		}
	}
	return refs, identifiers
}

type uriTuple struct{ value string }

// extractURIs implements the "uri" extraction row: trailing slash stripped,
// then normalized like a string.
func extractURIs(c fhirpath.Collection) []uriTuple {
	var out []uriTuple
	for _, v := range c {
		v = v.Materialize()
		if v.Kind != fhirpath.KindString {
			continue
		}
		out = append(out, uriTuple{value: strings.TrimSuffix(v.Str, "/")})
	}
	return out
}
