package httpapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// restInteraction names the server-wide interactions spec §6's REST table
// supports for every resource type that has at least one StructureDefinition
// registered; search is listed only for types the registry has an active
// search-parameter set for (spec §4.6's conformance projection is "a
// read-only view over internal/registry + internal/domain/structuredefinition").
var restInteractions = []string{"read", "vread", "update", "patch", "delete", "history-instance", "create", "search-type"}

// Metadata implements spec §6 "GET /metadata": a CapabilityStatement built
// live from internal/snapshot.Store (the registered resource types) and
// internal/registry (the active search parameters for each), rather than a
// static document, so a freshly installed package's resources and search
// parameters show up immediately.
func (s *Server) Metadata(c echo.Context) error {
	if c.QueryParam("mode") == "terminology" {
		return c.JSON(http.StatusOK, s.terminologyCapabilities())
	}

	resourceTypes := s.conformanceResourceTypes()

	resources := make([]interface{}, 0, len(resourceTypes))
	for _, rt := range resourceTypes {
		resources = append(resources, s.conformanceResource(c.Request().Context(), rt))
	}

	statement := map[string]interface{}{
		"resourceType": "CapabilityStatement",
		"status":       "active",
		"kind":         "instance",
		"fhirVersion":  "4.0.1",
		"format":       []string{"json"},
		"rest": []interface{}{
			map[string]interface{}{
				"mode":     "server",
				"resource": resources,
			},
		},
	}
	return c.JSON(http.StatusOK, statement)
}

func (s *Server) conformanceResourceTypes() []string {
	if s.Snapshot != nil {
		if types := s.Snapshot.Store().ResourceTypes(); len(types) > 0 {
			return types
		}
	}
	if s.Registry != nil {
		return s.Registry.KnownResourceTypes()
	}
	return nil
}

func (s *Server) conformanceResource(ctx context.Context, resourceType string) map[string]interface{} {
	entry := map[string]interface{}{
		"type":        resourceType,
		"interaction": interactionList(),
	}
	if s.Registry == nil {
		return entry
	}
	params, err := s.Registry.ActiveParameters(ctx, resourceType)
	if err != nil || len(params) == 0 {
		return entry
	}
	searchParams := make([]interface{}, 0, len(params))
	for _, p := range params {
		searchParams = append(searchParams, map[string]interface{}{
			"name": p.Code,
			"type": p.Type,
		})
	}
	entry["searchParam"] = searchParams
	return entry
}

func interactionList() []interface{} {
	out := make([]interface{}, 0, len(restInteractions))
	for _, code := range restInteractions {
		out = append(out, map[string]interface{}{"code": code})
	}
	return out
}

// terminologyCapabilities renders a minimal TerminologyCapabilities, used by
// Metadata when ?mode=terminology is requested (spec §6 names both
// CapabilityStatement and TerminologyCapabilities as conformance projections).
func (s *Server) terminologyCapabilities() map[string]interface{} {
	codeSystems := []interface{}{}
	return map[string]interface{}{
		"resourceType": "TerminologyCapabilities",
		"status":       "active",
		"codeSystem":   codeSystems,
	}
}
