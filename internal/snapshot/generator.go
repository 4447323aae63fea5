package snapshot

import (
	"strings"

	"github.com/ehr/ehr/internal/apperr"
)

// maxContentReferenceDepth bounds contentReference recursion (spec §4.5
// step 5: "cycle detection and a finite recursion depth (default 1 level
// into recursive types like Extension)").
const maxContentReferenceDepth = 1

// GenerateSnapshot expands sd's differential into a full element list
// against its base definition, per spec §4.5 steps 1-6. If sd already
// carries a snapshot it is returned unchanged — generation is idempotent,
// so re-deriving a profile's own differential from its snapshot and
// regenerating must produce the same snapshot.
func GenerateSnapshot(s *Store, sd *StructureDefinition) (*StructureDefinition, error) {
	if len(sd.Snapshot) > 0 {
		return sd, nil
	}
	if sd.BaseDefinition == "" {
		return nil, apperr.Invalid("StructureDefinition.baseDefinition", "%s has no differential and no base to derive a snapshot from", sd.URL)
	}

	base, ok := s.Get(sd.BaseDefinition)
	if !ok {
		return nil, apperr.Invalid("StructureDefinition.baseDefinition", "base definition %s not registered", sd.BaseDefinition)
	}
	baseSnapshot, err := ensureSnapshot(s, base)
	if err != nil {
		return nil, err
	}

	var merged []ElementDefinition
	if len(sd.Differential) == 0 {
		merged = cloneElements(baseSnapshot)
	} else {
		merged, err = mergeElements(baseSnapshot, sd.Differential)
		if err != nil {
			return nil, err
		}
	}

	merged = expandChoiceTypes(merged)
	merged, err = resolveContentReferences(s, merged, 0)
	if err != nil {
		return nil, err
	}
	merged = expandComplexTypes(s, merged)

	out := *sd
	out.Snapshot = merged
	return &out, nil
}

// ensureSnapshot returns sd's snapshot, generating it first if sd is itself
// an unexpanded profile (a base referring to another profile as its base).
func ensureSnapshot(s *Store, sd *StructureDefinition) ([]ElementDefinition, error) {
	if len(sd.Snapshot) > 0 {
		return sd.Snapshot, nil
	}
	expanded, err := GenerateSnapshot(s, sd)
	if err != nil {
		return nil, err
	}
	return expanded.Snapshot, nil
}

func cloneElements(els []ElementDefinition) []ElementDefinition {
	out := make([]ElementDefinition, len(els))
	copy(out, els)
	return out
}

func elementKey(e ElementDefinition) string {
	if e.SliceName == "" {
		return e.Path
	}
	return e.Path + ":" + e.SliceName
}

// mergeElements merges a differential onto a base element list (spec §4.5
// step 2). Elements matching an existing base path (or path:sliceName for
// slices) are narrowed in place; elements with no base match are new
// slices, inserted after the last element sharing the same path so the
// base element stays first and slices keep their differential order
// (spec §4.5 step 6).
func mergeElements(base []ElementDefinition, diff []ElementDefinition) ([]ElementDefinition, error) {
	merged := cloneElements(base)
	index := make(map[string]int, len(merged))
	for i, e := range merged {
		index[elementKey(e)] = i
	}

	for _, d := range diff {
		key := elementKey(d)
		if i, ok := index[key]; ok {
			narrowed, err := narrowElement(merged[i], d)
			if err != nil {
				return nil, err
			}
			merged[i] = narrowed
			continue
		}

		insertAt := lastIndexForPath(merged, d.Path) + 1
		merged = append(merged, ElementDefinition{})
		copy(merged[insertAt+1:], merged[insertAt:])
		merged[insertAt] = d
		// shifted everything at or after insertAt; rebuild the index rather
		// than patching it incrementally, this list is small (one resource's
		// element tree, at most a few hundred entries).
		index = make(map[string]int, len(merged))
		for i, e := range merged {
			index[elementKey(e)] = i
		}
	}
	return merged, nil
}

func lastIndexForPath(els []ElementDefinition, path string) int {
	last := -1
	for i, e := range els {
		if e.Path == path || strings.HasPrefix(e.Path, path+".") {
			last = i
		}
	}
	if last == -1 {
		return len(els) - 1
	}
	return last
}

// narrowElement applies a differential element onto its matching base
// element. Cardinality only narrows, types only narrow to a subset,
// binding strength only increases, and slicing rules merge to the
// stricter of the two (spec §4.5 step 2).
func narrowElement(base, diff ElementDefinition) (ElementDefinition, error) {
	out := base

	if diff.Short != "" {
		out.Short = diff.Short
	}
	if diff.Definition != "" {
		out.Definition = diff.Definition
	}
	if diff.Min != nil {
		if base.Min != nil && *diff.Min < *base.Min {
			return out, apperr.Invalid(diff.Path, "differential widens min cardinality (%d < %d)", *diff.Min, *base.Min)
		}
		out.Min = diff.Min
	}
	if diff.Max != "" {
		if !maxNarrows(base.Max, diff.Max) {
			return out, apperr.Invalid(diff.Path, "differential widens max cardinality (%s > %s)", diff.Max, base.Max)
		}
		out.Max = diff.Max
	}
	if len(diff.Types) > 0 {
		narrowed, err := narrowTypes(base.Types, diff.Types)
		if err != nil {
			return out, err
		}
		out.Types = narrowed
	}
	if diff.Binding != nil {
		out.Binding = mergeBinding(base.Binding, diff.Binding)
	}
	if diff.Fixed != nil {
		out.Fixed = diff.Fixed
	}
	if diff.Pattern != nil {
		out.Pattern = diff.Pattern
	}
	if diff.MustSupport {
		out.MustSupport = true
	}
	if diff.ContentRef != "" {
		out.ContentRef = diff.ContentRef
	}
	if diff.Slicing != nil {
		out.Slicing = mergeSlicing(base.Slicing, diff.Slicing)
	}
	if len(diff.Constraints) > 0 {
		out.Constraints = append(cloneConstraints(base.Constraints), diff.Constraints...)
	}
	out.SliceName = base.SliceName
	if diff.SliceName != "" {
		out.SliceName = diff.SliceName
	}
	return out, nil
}

func cloneConstraints(cs []Constraint) []Constraint {
	out := make([]Constraint, len(cs))
	copy(out, cs)
	return out
}

// maxNarrows reports whether diffMax is no wider than baseMax ("*" is
// unbounded and narrows to anything; a numeric base narrows only to an
// equal or smaller numeric diff).
func maxNarrows(baseMax, diffMax string) bool {
	if baseMax == "*" || baseMax == "" {
		return true
	}
	if diffMax == "*" {
		return false
	}
	b, bok := parseCardinality(baseMax)
	d, dok := parseCardinality(diffMax)
	if !bok || !dok {
		return true
	}
	return d <= b
}

func parseCardinality(s string) (int, bool) {
	n := 0
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// narrowTypes requires every differential type to already appear in the
// base's type list (spec §4.5 step 2: "types narrowed (subset of base's
// types)"); a base with no declared types (e.g. an abstract BackboneElement
// slot) accepts any differential types.
func narrowTypes(base, diff []ElementType) ([]ElementType, error) {
	if len(base) == 0 {
		return diff, nil
	}
	allowed := make(map[string]ElementType, len(base))
	for _, t := range base {
		allowed[t.Code] = t
	}
	out := make([]ElementType, 0, len(diff))
	for _, t := range diff {
		if _, ok := allowed[t.Code]; !ok {
			return nil, apperr.Invalid("type", "type %q is not one of the base element's allowed types", t.Code)
		}
		out = append(out, t)
	}
	return out, nil
}

func mergeBinding(base, diff *ElementBinding) *ElementBinding {
	if base == nil {
		return diff
	}
	if bindingRank[diff.Strength] >= bindingRank[base.Strength] {
		return diff
	}
	return base
}

func mergeSlicing(base, diff *Slicing) *Slicing {
	if base == nil {
		return diff
	}
	merged := &Slicing{
		Discriminator: diff.Discriminator,
		Ordered:       diff.Ordered || base.Ordered,
		Rules:         diff.Rules,
	}
	if len(merged.Discriminator) == 0 {
		merged.Discriminator = base.Discriminator
	}
	if slicingRuleRank[base.Rules] > slicingRuleRank[merged.Rules] {
		merged.Rules = base.Rules
	}
	return merged
}

// expandChoiceTypes turns a value[x]-style element with multiple types into
// one concrete element per type (valueQuantity, valueString, ...), keeping
// the original [x] element in the list for reference (spec §4.5 step 3).
func expandChoiceTypes(els []ElementDefinition) []ElementDefinition {
	out := make([]ElementDefinition, 0, len(els))
	for _, e := range els {
		out = append(out, e)
		if !strings.HasSuffix(e.Path, "[x]") || len(e.Types) < 2 {
			continue
		}
		basePath := strings.TrimSuffix(e.Path, "[x]")
		for _, t := range e.Types {
			concrete := e
			concrete.Path = basePath + exportTypeName(t.Code)
			concrete.ID = concrete.Path
			concrete.Types = []ElementType{t}
			concrete.Max = "1"
			out = append(out, concrete)
		}
	}
	return out
}

func exportTypeName(code string) string {
	if code == "" {
		return code
	}
	return strings.ToUpper(code[:1]) + code[1:]
}

// resolveContentReferences inlines the referenced element's children under
// any element whose ContentRef names another element in the same list
// (spec §4.5 step 5). depth bounds recursive expansion (e.g. Extension
// referencing itself); a contentReference pointing back to an ancestor
// already on the current resolution path is left unexpanded rather than
// looping.
func resolveContentReferences(s *Store, els []ElementDefinition, depth int) ([]ElementDefinition, error) {
	out := make([]ElementDefinition, 0, len(els))
	for _, e := range els {
		out = append(out, e)
		if e.ContentRef == "" || depth >= maxContentReferenceDepth {
			continue
		}
		children, err := resolveContentRefChildren(s, e.ContentRef)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			clone := c
			clone.Path = e.Path + strings.TrimPrefix(c.Path, targetPath(e.ContentRef))
			clone.ID = clone.Path
			out = append(out, clone)
		}
	}
	return out, nil
}

// targetPath turns a contentReference like "#Extension.extension" or
// "#Extension" into the element path it names.
func targetPath(ref string) string {
	return strings.TrimPrefix(ref, "#")
}

func resolveContentRefChildren(s *Store, ref string) ([]ElementDefinition, error) {
	path := targetPath(ref)
	typeName := path
	if i := strings.Index(path, "."); i >= 0 {
		typeName = path[:i]
	}
	sd, ok := s.Get(baseURL + typeName)
	if !ok {
		return nil, apperr.Invalid("contentReference", "contentReference target %q is not a known type", ref)
	}
	snap, err := ensureSnapshot(s, sd)
	if err != nil {
		return nil, err
	}
	var children []ElementDefinition
	for _, e := range snap {
		if e.Path == path || strings.HasPrefix(e.Path, path+".") {
			children = append(children, e)
		}
	}
	return children, nil
}

// expandComplexTypes inlines the children of a referenced complex type's
// own snapshot directly under the referencing element (spec §4.5 step 4).
// Types the store has no definition for (most FHIR datatypes, which this
// server does not ship standalone StructureDefinitions for) pass through
// unexpanded; the validator still checks them structurally via their
// top-level Fixed/Pattern/Binding constraints.
func expandComplexTypes(s *Store, els []ElementDefinition) []ElementDefinition {
	out := make([]ElementDefinition, 0, len(els))
	for _, e := range els {
		out = append(out, e)
		if len(e.Types) != 1 {
			continue
		}
		typeDef, ok := s.Get(baseURL + e.Types[0].Code)
		if !ok || typeDef.Kind != "complex-type" {
			continue
		}
		for _, child := range typeDef.Snapshot {
			if child.Path == typeDef.Type {
				continue
			}
			clone := child
			clone.Path = e.Path + strings.TrimPrefix(child.Path, typeDef.Type)
			clone.ID = clone.Path
			out = append(out, clone)
		}
	}
	return out
}
