// Package index is the indexer collaborator (spec §4.2): it re-derives
// search index rows for a resource version by compiling each active search
// parameter's FHIRPath expression and writing typed tuples to the column-
// per-type tables described in spec §3. It implements store.Indexer and is
// the first real consumer of internal/fhirpath outside that package's own
// tests.
package index

import "context"

// CompositeComponent is one component of a composite search parameter,
// evaluated against the element the composite parameter's own expression
// selects (spec §4.3 "each component value is matched against the
// corresponding slot of the components jsonb array").
type CompositeComponent struct {
	Code       string
	Type       string
	Expression string
}

// Parameter is one row of the parameter registry (spec §3 "Parameter
// registry"), reduced to what the indexer needs to extract values; planner
// concerns (modifiers, chains, targets) live with internal/search/registry.
// Expressions are rooted at the resource itself (the engine's $this), the
// same convention internal/fhirpath's own tests use — FHIR's published
// SearchParameter.expression strings carry a leading "Patient." type guard
// that this engine does not special-case, so the guard is dropped rather
// than navigating a field that would never match.
type Parameter struct {
	Code       string
	Type       string // string | token | date | number | quantity | reference | uri | composite | special
	Expression string
	Components []CompositeComponent
}

// Source supplies the active parameters for a resource type. internal/registry
// implements this against the search_parameters tables; Static below is the
// bootstrap implementation used before a tenant has installed any packages.
type Source interface {
	ActiveParameters(ctx context.Context, resourceType string) ([]Parameter, error)
}

// Static is a fixed, in-memory parameter table covering the common
// resource-level and per-type search parameters so the indexer and the
// planner have something to drive before internal/registry/internal/pkginstall
// have loaded any SearchParameter resources for a tenant (spec §9 open
// question "bootstrapping the registry before any package is installed").
type Static struct {
	byType map[string][]Parameter
}

// NewStatic builds the built-in parameter table, grounded on the FHIR R4
// base search parameter definitions for the resource types this module
// exercises end to end.
func NewStatic() *Static {
	common := []Parameter{
		{Code: "_id", Type: "special", Expression: "id"},
		{Code: "_lastUpdated", Type: "special", Expression: "meta.lastUpdated"},
		{Code: "_profile", Type: "uri", Expression: "meta.profile"},
		{Code: "_tag", Type: "token", Expression: "meta.tag"},
		{Code: "_text", Type: "text", Expression: "text.div"},
		{Code: "_content", Type: "content", Expression: "$this"},
	}

	byType := map[string][]Parameter{
		"Patient": {
			{Code: "identifier", Type: "token", Expression: "identifier"},
			{Code: "name", Type: "string", Expression: "name"},
			{Code: "family", Type: "string", Expression: "name.family"},
			{Code: "given", Type: "string", Expression: "name.given"},
			{Code: "birthdate", Type: "date", Expression: "birthDate"},
			{Code: "gender", Type: "token", Expression: "gender"},
			{Code: "active", Type: "token", Expression: "active"},
			{Code: "organization", Type: "reference", Expression: "managingOrganization"},
			{Code: "telecom", Type: "token", Expression: "telecom"},
			{Code: "address", Type: "string", Expression: "address"},
			{Code: "deceased", Type: "token", Expression: "deceasedBoolean"},
		},
		"Practitioner": {
			{Code: "identifier", Type: "token", Expression: "identifier"},
			{Code: "name", Type: "string", Expression: "name"},
			{Code: "active", Type: "token", Expression: "active"},
		},
		"Organization": {
			{Code: "identifier", Type: "token", Expression: "identifier"},
			{Code: "name", Type: "string", Expression: "name"},
			{Code: "partof", Type: "reference", Expression: "partOf"},
			{Code: "active", Type: "token", Expression: "active"},
		},
		"Encounter": {
			{Code: "identifier", Type: "token", Expression: "identifier"},
			{Code: "patient", Type: "reference", Expression: "subject"},
			{Code: "subject", Type: "reference", Expression: "subject"},
			{Code: "status", Type: "token", Expression: "status"},
			{Code: "date", Type: "date", Expression: "period"},
			{Code: "practitioner", Type: "reference", Expression: "participant.individual"},
		},
		"Observation": {
			{Code: "identifier", Type: "token", Expression: "identifier"},
			{Code: "patient", Type: "reference", Expression: "subject"},
			{Code: "subject", Type: "reference", Expression: "subject"},
			{Code: "code", Type: "token", Expression: "code"},
			{Code: "status", Type: "token", Expression: "status"},
			{Code: "date", Type: "date", Expression: "effectiveDateTime"},
			{Code: "value-quantity", Type: "quantity", Expression: "valueQuantity"},
			{
				Code: "code-value-quantity", Type: "composite",
				Expression: "$this",
				Components: []CompositeComponent{
					{Code: "code", Type: "token", Expression: "code"},
					{Code: "value-quantity", Type: "quantity", Expression: "valueQuantity"},
				},
			},
		},
		"Condition": {
			{Code: "identifier", Type: "token", Expression: "identifier"},
			{Code: "patient", Type: "reference", Expression: "subject"},
			{Code: "subject", Type: "reference", Expression: "subject"},
			{Code: "code", Type: "token", Expression: "code"},
			{Code: "clinical-status", Type: "token", Expression: "clinicalStatus"},
			{Code: "onset-date", Type: "date", Expression: "onsetDateTime"},
		},
		"MedicationRequest": {
			{Code: "identifier", Type: "token", Expression: "identifier"},
			{Code: "patient", Type: "reference", Expression: "subject"},
			{Code: "subject", Type: "reference", Expression: "subject"},
			{Code: "status", Type: "token", Expression: "status"},
			{Code: "authoredon", Type: "date", Expression: "authoredOn"},
		},
		"DiagnosticReport": {
			{Code: "identifier", Type: "token", Expression: "identifier"},
			{Code: "patient", Type: "reference", Expression: "subject"},
			{Code: "subject", Type: "reference", Expression: "subject"},
			{Code: "code", Type: "token", Expression: "code"},
			{Code: "status", Type: "token", Expression: "status"},
			{Code: "result", Type: "reference", Expression: "result"},
		},
	}
	for t := range byType {
		byType[t] = append(append([]Parameter{}, common...), byType[t]...)
	}
	return &Static{byType: byType}
}

// ActiveParameters implements Source.
func (s *Static) ActiveParameters(_ context.Context, resourceType string) ([]Parameter, error) {
	params, ok := s.byType[resourceType]
	if !ok {
		return nil, nil
	}
	return params, nil
}
