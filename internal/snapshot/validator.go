package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ehr/ehr/internal/apperr"
	"github.com/ehr/ehr/internal/fhirpath"
)

// Validator walks a resource against one or more profile snapshots (spec
// §4.5 "Profile validation"), evaluating ElementDefinition.constraint
// expressions with internal/fhirpath so invariants are enforced with the
// same engine the search indexer and query planner use.
type Validator struct {
	store  *Store
	engine *fhirpath.Engine
}

// NewValidator builds a Validator backed by store for snapshot lookups and
// engine for constraint expression evaluation.
func NewValidator(store *Store, engine *fhirpath.Engine) *Validator {
	return &Validator{store: store, engine: engine}
}

// Validate checks resource against every profile in profileURLs and returns
// the combined flat issue list (spec §4.5). A missing or shallow snapshot is
// expanded on the fly via GenerateSnapshot.
func (v *Validator) Validate(ctx context.Context, resource map[string]interface{}, profileURLs []string) ([]ValidationIssue, error) {
	var issues []ValidationIssue
	for _, url := range profileURLs {
		sd, ok := v.store.Get(url)
		if !ok {
			issues = append(issues, ValidationIssue{
				Severity:    "error",
				Code:        "not-found",
				Diagnostics: fmt.Sprintf("profile %s is not registered", url),
			})
			continue
		}
		expanded, err := ensureSnapshot(v.store, sd)
		if err != nil {
			return nil, apperr.Wrap(err, "expand snapshot for %s", url)
		}
		rt, _ := resource["resourceType"].(string)
		if rt != sd.Type {
			issues = append(issues, ValidationIssue{
				Severity:    "error",
				Code:        "structure",
				Diagnostics: fmt.Sprintf("resourceType %q does not match profile type %q", rt, sd.Type),
			})
			continue
		}
		issues = append(issues, v.walkChildren(ctx, resource, rt, expanded)...)
	}
	return issues, nil
}

// walkChildren validates every direct child element under parentPath,
// recursing into nested object/array fields (spec §4.5 step 2: "walk the
// resource in parallel with the snapshot's element tree").
func (v *Validator) walkChildren(ctx context.Context, obj map[string]interface{}, parentPath string, elements []ElementDefinition) []ValidationIssue {
	var issues []ValidationIssue
	for path, group := range groupDirectChildren(elements, parentPath) {
		if strings.HasSuffix(path, "[x]") {
			continue
		}
		fieldName := lastSegment(path)
		val, present := obj[fieldName]

		entry := group[0]
		slices := group[1:]
		if len(slices) > 0 {
			issues = append(issues, v.validateSlicedField(ctx, val, present, path, entry, slices, elements)...)
			continue
		}

		issues = append(issues, v.validateField(ctx, val, present, path, entry, elements)...)
	}
	return issues
}

func (v *Validator) validateField(ctx context.Context, val interface{}, present bool, path string, elem ElementDefinition, elements []ElementDefinition) []ValidationIssue {
	var issues []ValidationIssue
	issues = append(issues, checkCardinality(path, elem.Min, elem.Max, val, present)...)

	if !present {
		if elem.MustSupport {
			issues = append(issues, ValidationIssue{
				Severity: "warning", Code: "invariant", Location: path,
				Diagnostics: fmt.Sprintf("must-support element %s is not present", path),
			})
		}
		return issues
	}

	issues = append(issues, checkFixedAndPattern(path, elem, val)...)
	issues = append(issues, checkType(path, elem.Types, val)...)
	issues = append(issues, v.checkConstraints(ctx, path, elem.Constraints, val)...)

	for _, child := range flattenValues(val) {
		if m, ok := child.(map[string]interface{}); ok {
			issues = append(issues, v.walkChildren(ctx, m, path, elements)...)
		}
	}
	return issues
}

// validateSlicedField matches each member of a sliced array to at most one
// slice and enforces both per-slice cardinality and the slicing rule
// itself (spec §4.5 step 4).
func (v *Validator) validateSlicedField(ctx context.Context, val interface{}, present bool, path string, entry ElementDefinition, slices []ElementDefinition, elements []ElementDefinition) []ValidationIssue {
	var issues []ValidationIssue
	issues = append(issues, checkCardinality(path, entry.Min, entry.Max, val, present)...)
	if !present || entry.Slicing == nil {
		return issues
	}
	arr, ok := val.([]interface{})
	if !ok {
		return issues
	}

	matchedBy := make([]int, len(arr)) // index into slices, -1 = unmatched
	counts := make([]int, len(slices))
	for i, member := range arr {
		matchedBy[i] = -1
		m, ok := member.(map[string]interface{})
		if !ok {
			continue
		}
		for si, slice := range slices {
			if v.memberMatchesSlice(m, path, slice, entry.Slicing.Discriminator, elements) {
				matchedBy[i] = si
				counts[si]++
				break
			}
		}
	}

	lastMatchedIdx := -1
	for i, si := range matchedBy {
		if si >= 0 {
			lastMatchedIdx = i
		}
	}
	for i, si := range matchedBy {
		if si >= 0 {
			continue
		}
		switch entry.Slicing.Rules {
		case "closed":
			issues = append(issues, ValidationIssue{
				Severity: "error", Code: "structure", Location: fmt.Sprintf("%s[%d]", path, i),
				Diagnostics: "array member does not match any slice in closed slicing",
			})
		case "openAtEnd":
			if i < lastMatchedIdx {
				issues = append(issues, ValidationIssue{
					Severity: "error", Code: "structure", Location: fmt.Sprintf("%s[%d]", path, i),
					Diagnostics: "unmatched member must follow all matched slices under openAtEnd",
				})
			}
		}
	}

	for si, slice := range slices {
		loc := path + ":" + slice.SliceName
		if slice.Min != nil && counts[si] < *slice.Min {
			issues = append(issues, ValidationIssue{
				Severity: "error", Code: "structure", Location: loc,
				Diagnostics: fmt.Sprintf("slice %s requires at least %d matching member(s), found %d", slice.SliceName, *slice.Min, counts[si]),
			})
		}
		if n, ok := parseCardinality(slice.Max); ok && counts[si] > n {
			issues = append(issues, ValidationIssue{
				Severity: "error", Code: "structure", Location: loc,
				Diagnostics: fmt.Sprintf("slice %s allows at most %d matching member(s), found %d", slice.SliceName, n, counts[si]),
			})
		}
	}

	for i, member := range arr {
		m, ok := member.(map[string]interface{})
		if !ok || matchedBy[i] < 0 {
			continue
		}
		slice := slices[matchedBy[i]]
		loc := fmt.Sprintf("%s[%d]", path, i)
		issues = append(issues, checkFixedAndPattern(loc, slice, m)...)
		issues = append(issues, v.checkConstraints(ctx, loc, slice.Constraints, m)...)
	}
	return issues
}

// memberMatchesSlice applies the slicing discriminators to decide whether
// member belongs to slice (spec §4.5 step 4: value/pattern compare the
// discriminator path's extracted value, exists checks presence, type
// compares the runtime type, profile attempts nested profile validation).
// A discriminator this server cannot resolve to a concrete expectation on
// the slice (no constrained child element for it) is treated as
// unconstrained and matches, consistent with open/permissive slicing.
func (v *Validator) memberMatchesSlice(member map[string]interface{}, basePath string, slice ElementDefinition, discriminators []Discriminator, elements []ElementDefinition) bool {
	if len(discriminators) == 0 {
		return true
	}
	for _, d := range discriminators {
		switch d.Type {
		case "exists":
			_, ok := resolveDotted(member, d.Path)
			if !ok {
				return false
			}
		case "type":
			actual, ok := resolveDotted(member, d.Path)
			if !ok || len(slice.Types) == 0 {
				continue
			}
			if !typeMatches(actual, slice.Types[0].Code) {
				return false
			}
		case "value", "pattern":
			expected := discriminatorExpectation(elements, basePath, slice.SliceName, d.Path)
			if expected == nil {
				continue
			}
			actual, ok := resolveDotted(member, d.Path)
			if !ok || !valueMatchesPattern(actual, expected) {
				return false
			}
		case "profile":
			// Nested profile validation would recurse through Validate for
			// the referenced profile; treated as a permissive match here
			// since no target profile URL is threaded through element.Types.
		}
	}
	return true
}

// discriminatorExpectation looks for a constrained child element under the
// named slice that targets discriminatorPath, returning its Fixed or
// Pattern value if one is set.
func discriminatorExpectation(elements []ElementDefinition, basePath, sliceName, discriminatorPath string) interface{} {
	wantPath := basePath + "." + discriminatorPath
	for _, e := range elements {
		if e.SliceName != sliceName {
			continue
		}
		if e.Path != wantPath && e.Path != basePath {
			continue
		}
		if e.Fixed != nil {
			return e.Fixed
		}
		if e.Pattern != nil {
			return e.Pattern
		}
	}
	return nil
}

func (v *Validator) checkConstraints(ctx context.Context, path string, constraints []Constraint, val interface{}) []ValidationIssue {
	if len(constraints) == 0 || v.engine == nil {
		return nil
	}
	var issues []ValidationIssue
	root := fhirpath.FromLazy(val)
	for _, c := range constraints {
		ok, err := v.engine.EvaluateBool(ctx, c.Expression, root, nil)
		if err != nil {
			issues = append(issues, ValidationIssue{
				Severity: "warning", Code: "invariant", Location: path,
				Diagnostics: fmt.Sprintf("constraint %s could not be evaluated: %v", c.Key, err),
			})
			continue
		}
		if !ok {
			issues = append(issues, ValidationIssue{
				Severity: severityOr(c.Severity, "error"), Code: "invariant", Location: path,
				Diagnostics: fmt.Sprintf("%s: %s", c.Key, c.Human),
			})
		}
	}
	return issues
}

func severityOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func checkCardinality(path string, min *int, max string, val interface{}, present bool) []ValidationIssue {
	count := 0
	if present {
		count = len(flattenValues(val))
		if count == 0 {
			count = 1
		}
	}
	var issues []ValidationIssue
	if min != nil && count < *min {
		issues = append(issues, ValidationIssue{
			Severity: "error", Code: "required", Location: path,
			Diagnostics: fmt.Sprintf("element %s requires at least %d value(s), found %d", path, *min, count),
		})
	}
	if n, ok := parseCardinality(max); ok {
		if n == 0 && count > 0 {
			issues = append(issues, ValidationIssue{
				Severity: "error", Code: "structure", Location: path,
				Diagnostics: fmt.Sprintf("element %s is prohibited but has %d value(s)", path, count),
			})
		} else if n > 0 && count > n {
			issues = append(issues, ValidationIssue{
				Severity: "error", Code: "structure", Location: path,
				Diagnostics: fmt.Sprintf("element %s allows at most %d value(s), found %d", path, n, count),
			})
		}
	}
	return issues
}

func checkFixedAndPattern(path string, elem ElementDefinition, val interface{}) []ValidationIssue {
	var issues []ValidationIssue
	if elem.Fixed != nil && !jsonEqual(val, elem.Fixed) {
		issues = append(issues, ValidationIssue{
			Severity: "error", Code: "value", Location: path,
			Diagnostics: fmt.Sprintf("value does not match fixed value for %s", path),
		})
	}
	if elem.Pattern != nil && !valueMatchesPattern(val, elem.Pattern) {
		issues = append(issues, ValidationIssue{
			Severity: "error", Code: "value", Location: path,
			Diagnostics: fmt.Sprintf("value does not match pattern for %s", path),
		})
	}
	return issues
}

func checkType(path string, types []ElementType, val interface{}) []ValidationIssue {
	if len(types) == 0 {
		return nil
	}
	for _, t := range types {
		if typeMatches(val, t.Code) {
			return nil
		}
	}
	codes := make([]string, len(types))
	for i, t := range types {
		codes[i] = t.Code
	}
	return []ValidationIssue{{
		Severity: "error", Code: "structure", Location: path,
		Diagnostics: fmt.Sprintf("value at %s does not match any allowed type (%s)", path, strings.Join(codes, ", ")),
	}}
}

// typeMatches does a coarse JSON-kind check against a FHIR type code; it
// cannot distinguish specialized primitives (date vs dateTime vs instant)
// from their JSON string representation, so those all pass as "string".
func typeMatches(val interface{}, code string) bool {
	switch val.(type) {
	case string:
		switch code {
		case "string", "code", "id", "uri", "url", "canonical", "markdown",
			"date", "dateTime", "instant", "time", "oid", "base64Binary":
			return true
		}
	case bool:
		return code == "boolean"
	case float64:
		return code == "integer" || code == "decimal" || code == "unsignedInt" || code == "positiveInt"
	case map[string]interface{}:
		return code != "" && code[0] >= 'A' && code[0] <= 'Z'
	case []interface{}:
		return true
	}
	return false
}

func jsonEqual(a, b interface{}) bool {
	aj, err1 := json.Marshal(a)
	bj, err2 := json.Marshal(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return string(aj) == string(bj)
}

// valueMatchesPattern reports whether val contains at least the fields
// present in pattern (spec §4.5 step 3: "pattern (partial object match)").
func valueMatchesPattern(val, pattern interface{}) bool {
	switch p := pattern.(type) {
	case map[string]interface{}:
		vm, ok := val.(map[string]interface{})
		if !ok {
			if arr, ok := val.([]interface{}); ok {
				for _, item := range arr {
					if valueMatchesPattern(item, p) {
						return true
					}
				}
			}
			return false
		}
		for k, pv := range p {
			vv, ok := vm[k]
			if !ok || !valueMatchesPattern(vv, pv) {
				return false
			}
		}
		return true
	default:
		return jsonEqual(val, pattern)
	}
}

func resolveDotted(m map[string]interface{}, path string) (interface{}, bool) {
	var current interface{} = m
	for _, part := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]interface{}:
			val, ok := v[part]
			if !ok {
				return nil, false
			}
			current = val
		case []interface{}:
			if len(v) == 0 {
				return nil, false
			}
			first, ok := v[0].(map[string]interface{})
			if !ok {
				return nil, false
			}
			val, ok := first[part]
			if !ok {
				return nil, false
			}
			current = val
		default:
			return nil, false
		}
	}
	return current, true
}

func flattenValues(val interface{}) []interface{} {
	switch v := val.(type) {
	case nil:
		return nil
	case []interface{}:
		return v
	default:
		return []interface{}{v}
	}
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// groupDirectChildren returns, for each direct-child path under
// parentPath, the elements sharing that path in definition order: index 0
// is the slicing entry (or the lone element if the field is not sliced),
// the rest are its named slices.
func groupDirectChildren(elements []ElementDefinition, parentPath string) map[string][]ElementDefinition {
	prefix := parentPath + "."
	groups := make(map[string][]ElementDefinition)
	var order []string
	for _, e := range elements {
		if !strings.HasPrefix(e.Path, prefix) {
			continue
		}
		rest := e.Path[len(prefix):]
		if strings.Contains(rest, ".") {
			continue
		}
		if _, ok := groups[e.Path]; !ok {
			order = append(order, e.Path)
		}
		groups[e.Path] = append(groups[e.Path], e)
	}
	out := make(map[string][]ElementDefinition, len(order))
	for _, p := range order {
		out[p] = groups[p]
	}
	return out
}
