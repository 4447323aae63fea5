package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ehr/ehr/internal/apperr"
)

// ConditionalCreate implements spec §4.1 conditional_create(): 0 matches
// creates, 1 match returns it unchanged, >=2 matches fails MultipleMatches.
func (s *Store) ConditionalCreate(ctx context.Context, resourceType string, body map[string]interface{}, ifNoneExist string) (*Resource, bool, error) {
	if ifNoneExist == "" {
		res, err := s.Create(ctx, resourceType, body)
		return res, true, err
	}
	ids, err := s.match(ctx, resourceType, ifNoneExist)
	if err != nil {
		return nil, false, err
	}
	switch len(ids) {
	case 0:
		res, err := s.Create(ctx, resourceType, body)
		return res, true, err
	case 1:
		res, err := s.Read(ctx, resourceType, ids[0])
		return res, false, err
	default:
		return nil, false, apperr.MultipleMatches(len(ids))
	}
}

// ConditionalUpdate implements spec §4.1 conditional_update(). See the
// per-case table in the spec; this follows it exactly, including the
// 0-matches-with-conflicting-id Conflict case.
func (s *Store) ConditionalUpdate(ctx context.Context, resourceType, criteria string, body map[string]interface{}, ifNoneMatch string) (*Resource, bool, error) {
	ids, err := s.match(ctx, resourceType, criteria)
	if err != nil {
		return nil, false, err
	}
	bodyID, _ := body["id"].(string)

	switch len(ids) {
	case 0:
		if bodyID == "" {
			res, err := s.Create(ctx, resourceType, body)
			return res, true, err
		}
		_, err := s.Read(ctx, resourceType, bodyID)
		if err != nil {
			var ae *apperr.Error
			if errors.As(err, &ae) && ae.Code == apperr.CodeNotFound {
				res, err := s.put(ctx, resourceType, bodyID, body, nil)
				return res, true, err
			}
			return nil, false, err
		}
		return nil, false, apperr.Conflict("criteria matched no resources but body id %q already exists under a different identity", bodyID)
	case 1:
		target := ids[0]
		if bodyID != "" && bodyID != target {
			return nil, false, apperr.Invalid("id", "body id %q does not match the single matched resource %q", bodyID, target)
		}
		existing, err := s.Read(ctx, resourceType, target)
		if err != nil {
			return nil, false, err
		}
		if err := checkIfNoneMatch(ifNoneMatch, existing.VersionID); err != nil {
			return nil, false, err
		}
		body["id"] = target
		return s.Update(ctx, resourceType, target, body, nil, true)
	default:
		return nil, false, apperr.MultipleMatches(len(ids))
	}
}

// ConditionalDelete implements spec §4.1 conditional_delete().
func (s *Store) ConditionalDelete(ctx context.Context, resourceType, criteria string, allowMultiDelete bool) error {
	ids, err := s.match(ctx, resourceType, criteria)
	if err != nil {
		return err
	}
	switch {
	case len(ids) == 0:
		return apperr.NotFound(resourceType, "<criteria:"+criteria+">")
	case len(ids) == 1:
		return s.Delete(ctx, resourceType, ids[0])
	case allowMultiDelete:
		for _, id := range ids {
			if err := s.Delete(ctx, resourceType, id); err != nil {
				return err
			}
		}
		return nil
	default:
		return apperr.MultipleMatches(len(ids))
	}
}

func (s *Store) match(ctx context.Context, resourceType, criteria string) ([]string, error) {
	if s.matcher == nil {
		return nil, apperr.NotSupported("conditional operations require a search matcher")
	}
	return s.matcher.Match(ctx, s.conn(ctx), resourceType, criteria)
}

// checkIfNoneMatch enforces spec §4.1's If-None-Match rule for conditional
// update: "*" forbids any update to an existing resource; "W/\"n\"" forbids
// the update only when the current version equals n.
func checkIfNoneMatch(ifNoneMatch string, currentVersion int) error {
	if ifNoneMatch == "" {
		return nil
	}
	if ifNoneMatch == "*" {
		return apperr.PreconditionFailed("If-None-Match: * forbids updating an existing resource", "")
	}
	var n int
	if _, err := fmt.Sscanf(ifNoneMatch, `W/"%d"`, &n); err == nil && n == currentVersion {
		return apperr.PreconditionFailed(fmt.Sprintf("If-None-Match: W/%q forbids update at current version", ifNoneMatch), fmt.Sprintf(`W/"%d"`, currentVersion))
	}
	return nil
}

// resolveConditionalReferences rewrites any Reference.reference value that is
// a search URL (e.g. "Patient?identifier=...") into a literal "Type/id"
// inside body, per spec §4.1 "Conditional reference resolution". It walks
// body in place.
func (s *Store) resolveConditionalReferences(ctx context.Context, body map[string]interface{}) error {
	return s.walkReferences(ctx, body)
}

func (s *Store) walkReferences(ctx context.Context, node interface{}) error {
	switch v := node.(type) {
	case map[string]interface{}:
		if ref, ok := v["reference"].(string); ok && isSearchURL(ref) {
			resolved, err := s.resolveSearchURLReference(ctx, ref)
			if err != nil {
				return err
			}
			v["reference"] = resolved
		}
		for _, child := range v {
			if err := s.walkReferences(ctx, child); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, child := range v {
			if err := s.walkReferences(ctx, child); err != nil {
				return err
			}
		}
	}
	return nil
}

func isSearchURL(ref string) bool {
	for i, c := range ref {
		if c == '/' {
			return false
		}
		if c == '?' {
			return i > 0
		}
	}
	return false
}

func (s *Store) resolveSearchURLReference(ctx context.Context, ref string) (string, error) {
	var resourceType, criteria string
	for i, c := range ref {
		if c == '?' {
			resourceType = ref[:i]
			criteria = ref[i+1:]
			break
		}
	}
	ids, err := s.match(ctx, resourceType, criteria)
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", apperr.PreconditionFailed(fmt.Sprintf("conditional reference %q matched no resources", ref), "")
	case 1:
		return resourceType + "/" + ids[0], nil
	default:
		return "", apperr.MultipleMatches(len(ids))
	}
}
