package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ehr/internal/apperr"
	"github.com/ehr/ehr/internal/pkginstall"
	"github.com/ehr/ehr/internal/snapshot"
)

// ValidateOperation implements spec §6/§4.5 "POST /{type}/{id}/$validate":
// validate the request body (or, with no body, the stored resource at id)
// against the profile named by the ?profile query parameter or the
// resource's own meta.profile, via internal/snapshot.Validator.
func (s *Server) ValidateOperation(c echo.Context) error {
	if s.Validator == nil {
		return apperr.NotSupported("this deployment has no profile validator configured")
	}

	body, err := validateTarget(c, s)
	if err != nil {
		return err
	}

	profiles := c.QueryParams()["profile"]
	if len(profiles) == 0 {
		profiles = metaProfiles(body)
	}

	issues, err := s.Validator.Validate(c.Request().Context(), body, profiles)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, outcomeFromIssues(issues))
}

// validateTarget resolves the resource $validate checks: the request body if
// one was sent, otherwise the resource already stored at :id.
func validateTarget(c echo.Context, s *Server) (map[string]interface{}, error) {
	if c.Request().ContentLength > 0 {
		return bindBody(c)
	}
	res, err := s.Store.Read(c.Request().Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func metaProfiles(resource map[string]interface{}) []string {
	meta, _ := resource["meta"].(map[string]interface{})
	if meta == nil {
		return nil
	}
	raw, _ := meta["profile"].([]interface{})
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if s, ok := p.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// SnapshotOperation implements spec §6 "POST /StructureDefinition/{id}/$snapshot":
// generate (or regenerate) the snapshot element list for a stored
// differential-only StructureDefinition and persist the result.
func (s *Server) SnapshotOperation(c echo.Context) error {
	if s.Snapshot == nil {
		return apperr.NotSupported("this deployment has no snapshot generator configured")
	}
	res, err := s.Store.Read(c.Request().Context(), "StructureDefinition", c.Param("id"))
	if err != nil {
		return err
	}
	sd, err := pkginstall.DecodeStructureDefinition(res.Body)
	if err != nil {
		return apperr.Invalid("", "stored StructureDefinition is not well formed: %v", err)
	}
	generated, err := snapshot.GenerateSnapshot(s.Snapshot.Store(), sd)
	if err != nil {
		return err
	}
	s.Snapshot.Store().Register(generated)
	s.Snapshot.Invalidate(generated.URL)

	body := res.Body
	body["snapshot"] = snapshotElementsJSON(generated)
	updated, _, err := s.Store.Update(c.Request().Context(), "StructureDefinition", c.Param("id"), body, nil, false)
	if err != nil {
		return err
	}
	return writeResource(c, http.StatusOK, updated)
}

// snapshotElementsJSON renders a generated element list back into the FHIR
// wire shape StructureDefinition.snapshot.element expects.
func snapshotElementsJSON(sd *snapshot.StructureDefinition) map[string]interface{} {
	elements := make([]interface{}, 0, len(sd.Snapshot))
	for _, e := range sd.Snapshot {
		elem := map[string]interface{}{
			"id":          e.ID,
			"path":        e.Path,
			"short":       e.Short,
			"definition":  e.Definition,
			"max":         e.Max,
			"mustSupport": e.MustSupport,
		}
		if e.Min != nil {
			elem["min"] = *e.Min
		}
		if e.SliceName != "" {
			elem["sliceName"] = e.SliceName
		}
		if len(e.Types) > 0 {
			types := make([]interface{}, 0, len(e.Types))
			for _, t := range e.Types {
				types = append(types, map[string]interface{}{"code": t.Code, "targetProfile": t.TargetProfile, "profile": t.Profile})
			}
			elem["type"] = types
		}
		elements = append(elements, elem)
	}
	return map[string]interface{}{"element": elements}
}

// installPackageRequest is the body $install accepts: a manifest plus the
// package's resources, already parsed by the IG/NPM package reader (spec §1
// Non-goals: parsing the tarball itself is out of scope here, see
// internal/pkginstall's package doc).
type installPackageRequest struct {
	Manifest struct {
		Name         string            `json:"name"`
		Version      string            `json:"version"`
		Canonical    string            `json:"canonical"`
		FHIRVersions []string          `json:"fhirVersions"`
		Dependencies map[string]string `json:"dependencies"`
	} `json:"manifest"`
	Resources []map[string]interface{} `json:"resources"`
}

// InstallPackage implements spec §4.7/§6 "POST /$install".
func (s *Server) InstallPackage(c echo.Context) error {
	if s.Installer == nil {
		return apperr.NotSupported("this deployment has no package installer configured")
	}
	body, err := bindBody(c)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return apperr.Invalid("", "malformed package install request: %v", err)
	}
	var req installPackageRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return apperr.Invalid("", "malformed package install request: %v", err)
	}
	if req.Manifest.Name == "" || req.Manifest.Version == "" {
		return apperr.Invalid("manifest", "package manifest requires name and version")
	}

	pkg := pkginstall.Package{
		Manifest: pkginstall.Manifest{
			Name:         req.Manifest.Name,
			Version:      req.Manifest.Version,
			Canonical:    req.Manifest.Canonical,
			FHIRVersions: req.Manifest.FHIRVersions,
			Dependencies: req.Manifest.Dependencies,
		},
		Resources: req.Resources,
	}
	result, err := s.Installer.Install(c.Request().Context(), pkg)
	if err != nil {
		return err
	}

	resources := make([]interface{}, 0, len(result.Resources))
	for _, r := range result.Resources {
		resources = append(resources, map[string]interface{}{
			"resourceType": r.ResourceType,
			"id":           r.ID,
			"status":       r.Status,
			"message":      r.Message,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"packageId": result.PackageID,
		"resources": resources,
	})
}
