// Package terminology pins the terminology boundary of spec §1 Non-goals:
// real ValueSet/CodeSystem expansion and code validation are an external
// collaborator this module does not implement. Service is the interface
// that boundary takes; Static is the in-memory/test double shipped in its
// place, covering the value sets this server's own base StructureDefinition
// bindings (internal/snapshot) and the :in/:not-in token search modifier
// (internal/search) need to exercise end to end.
package terminology

import (
	"context"

	"github.com/ehr/ehr/internal/search"
)

// Code is one member of an expanded ValueSet.
type Code struct {
	System  string
	Code    string
	Display string
}

// ValueSet is the expansion result for a single ValueSet.Expand call,
// trimmed to what callers in this module need (full compose/parameter
// echo is the external terminology service's concern, not this double's).
type ValueSet struct {
	URL    string
	Codes  []Code
}

// Service is the terminology boundary (spec §9 "Terminology services"):
// $expand and $validate-code against a ValueSet/CodeSystem. internal/search
// calls Expand (wrapped into ExpandValueSet below) for :in/:not-in; nothing
// in this module currently calls ValidateCode, but it is part of the same
// boundary so a future $validate-code operation has a seam to implement
// against.
type Service interface {
	Expand(ctx context.Context, valueSetURL string) (*ValueSet, error)
	ValidateCode(ctx context.Context, system, code string) (bool, error)
}

// Static is a fixed, in-memory Service covering the FHIR R4 value sets this
// server's own base definitions bind to (spec §1 Non-goals: "no live
// terminology server integration" — this is the permitted bootstrap/test
// double, the same role index.Static plays for search parameters).
type Static struct {
	byURL map[string]*ValueSet
}

// NewStatic builds the built-in value set table.
func NewStatic() *Static {
	return &Static{byURL: map[string]*ValueSet{
		"http://hl7.org/fhir/ValueSet/administrative-gender": {
			URL: "http://hl7.org/fhir/ValueSet/administrative-gender",
			Codes: []Code{
				{System: "http://hl7.org/fhir/administrative-gender", Code: "male", Display: "Male"},
				{System: "http://hl7.org/fhir/administrative-gender", Code: "female", Display: "Female"},
				{System: "http://hl7.org/fhir/administrative-gender", Code: "other", Display: "Other"},
				{System: "http://hl7.org/fhir/administrative-gender", Code: "unknown", Display: "Unknown"},
			},
		},
		"http://hl7.org/fhir/ValueSet/observation-status": {
			URL: "http://hl7.org/fhir/ValueSet/observation-status",
			Codes: []Code{
				{System: "http://hl7.org/fhir/observation-status", Code: "registered"},
				{System: "http://hl7.org/fhir/observation-status", Code: "preliminary"},
				{System: "http://hl7.org/fhir/observation-status", Code: "final"},
				{System: "http://hl7.org/fhir/observation-status", Code: "amended"},
				{System: "http://hl7.org/fhir/observation-status", Code: "corrected"},
				{System: "http://hl7.org/fhir/observation-status", Code: "cancelled"},
				{System: "http://hl7.org/fhir/observation-status", Code: "entered-in-error"},
				{System: "http://hl7.org/fhir/observation-status", Code: "unknown"},
			},
		},
		"http://hl7.org/fhir/ValueSet/encounter-status": {
			URL: "http://hl7.org/fhir/ValueSet/encounter-status",
			Codes: []Code{
				{System: "http://hl7.org/fhir/encounter-status", Code: "planned"},
				{System: "http://hl7.org/fhir/encounter-status", Code: "arrived"},
				{System: "http://hl7.org/fhir/encounter-status", Code: "triaged"},
				{System: "http://hl7.org/fhir/encounter-status", Code: "in-progress"},
				{System: "http://hl7.org/fhir/encounter-status", Code: "onleave"},
				{System: "http://hl7.org/fhir/encounter-status", Code: "finished"},
				{System: "http://hl7.org/fhir/encounter-status", Code: "cancelled"},
				{System: "http://hl7.org/fhir/encounter-status", Code: "entered-in-error"},
				{System: "http://hl7.org/fhir/encounter-status", Code: "unknown"},
			},
		},
	}}
}

// Register adds or replaces a value set, used by tests and by
// internal/pkginstall when a package ships its own ValueSet/CodeSystem
// resources (a thin pass-through per SPEC_FULL.md §4.6 — the package
// doesn't compile compose.include rules, it just registers the expansion
// the package already carries).
func (s *Static) Register(vs *ValueSet) {
	s.byURL[vs.URL] = vs
}

// Expand implements Service.
func (s *Static) Expand(_ context.Context, valueSetURL string) (*ValueSet, error) {
	vs, ok := s.byURL[valueSetURL]
	if !ok {
		return nil, nil
	}
	return vs, nil
}

// ValidateCode implements Service by checking membership across every
// registered value set sharing system — a coarse stand-in for a real
// CodeSystem-scoped lookup, adequate for the double this package ships.
func (s *Static) ValidateCode(_ context.Context, system, code string) (bool, error) {
	for _, vs := range s.byURL {
		for _, c := range vs.Codes {
			if c.System == system && c.Code == code {
				return true, nil
			}
		}
	}
	return false, nil
}

// ExpandValueSet adapts Service.Expand to internal/search.TerminologyExpander
// so a Static (or any Service, via Expander) can be passed directly to
// search.NewPlanner for the :in/:not-in token modifiers.
func (s *Static) ExpandValueSet(ctx context.Context, valueSetURL string) ([]search.ExpandedCode, error) {
	return Expander{s}.ExpandValueSet(ctx, valueSetURL)
}

// Expander wraps any Service as a search.TerminologyExpander, so
// internal/search never depends on this package's concrete types.
type Expander struct {
	Service Service
}

// ExpandValueSet implements search.TerminologyExpander.
func (e Expander) ExpandValueSet(ctx context.Context, valueSetURL string) ([]search.ExpandedCode, error) {
	vs, err := e.Service.Expand(ctx, valueSetURL)
	if err != nil {
		return nil, err
	}
	if vs == nil {
		return nil, nil
	}
	out := make([]search.ExpandedCode, 0, len(vs.Codes))
	for _, c := range vs.Codes {
		out = append(out, search.ExpandedCode{System: c.System, Code: c.Code})
	}
	return out, nil
}
