package store

import (
	"context"
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/ehr/ehr/internal/apperr"
)

// Patch implements spec §4.1 patch(): same preconditions as update, applies
// a JSON-Patch (RFC 6902) document to the current body, then stores the
// result as a new version. Conditional-reference values introduced by the
// patch are resolved exactly as on update.
func (s *Store) Patch(ctx context.Context, resourceType, id string, patchDoc []byte, ifMatch *int) (*Resource, error) {
	existing, err := s.Read(ctx, resourceType, id)
	if err != nil {
		return nil, err
	}
	if ifMatch != nil && *ifMatch != existing.VersionID {
		return nil, apperr.PreconditionFailed("version mismatch, current is %d", existing.ETag(), existing.VersionID)
	}

	patch, err := jsonpatch.DecodePatch(patchDoc)
	if err != nil {
		return nil, apperr.Invalid("", "invalid JSON patch: %v", err)
	}
	currentJSON, err := json.Marshal(existing.Body)
	if err != nil {
		return nil, apperr.Wrap(err, "encode current body")
	}
	patchedJSON, err := patch.Apply(currentJSON)
	if err != nil {
		return nil, apperr.Invalid("", "apply JSON patch: %v", err)
	}
	var patched map[string]interface{}
	if err := json.Unmarshal(patchedJSON, &patched); err != nil {
		return nil, apperr.Invalid("", "patched body is not valid JSON: %v", err)
	}
	if rt, _ := patched["resourceType"].(string); rt != "" && rt != resourceType {
		return nil, apperr.Invalid("resourceType", "patched resourceType %q does not match %q", rt, resourceType)
	}
	if err := s.resolveConditionalReferences(ctx, patched); err != nil {
		return nil, err
	}

	expected := existing.VersionID
	return s.put(ctx, resourceType, id, patched, &expected)
}
