package search

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ehr/ehr/internal/apperr"
	"github.com/ehr/ehr/internal/store"
)

// IncludeSpec is one parsed _include/_revinclude value (spec §4.3(g)):
// "SourceType:param[:TargetType]", optionally iterated to a fixed point.
type IncludeSpec struct {
	SourceType string
	ParamCode  string
	TargetType string // empty means "any target type"
	Iterate    bool
}

// ParseInclude parses one _include/_revinclude (name, value) pair. name is
// "_include" or "_include:iterate" (also accepting the FHIR synonym
// "_include:recurse").
func ParseInclude(name, value string) (IncludeSpec, error) {
	iterate := strings.HasSuffix(name, ":iterate") || strings.HasSuffix(name, ":recurse")
	parts := strings.SplitN(value, ":", 3)
	if len(parts) < 2 {
		return IncludeSpec{}, apperr.Invalid(name, "malformed _include value %q", value)
	}
	spec := IncludeSpec{SourceType: parts[0], ParamCode: parts[1], Iterate: iterate}
	if len(parts) == 3 {
		spec.TargetType = parts[2]
	}
	return spec, nil
}

// ResolveIncludes implements spec §4.3(g): walks _include/_revinclude specs
// from a seed result set, fetching referenced/referencing resources in bulk
// and repeating :iterate specs until no new resources are found.
func ResolveIncludes(ctx context.Context, q store.Querier, seed []*store.Resource, includes, revincludes []IncludeSpec) ([]*store.Resource, error) {
	seen := make(map[string]bool, len(seed))
	for _, r := range seed {
		seen[r.Type+"/"+r.ID] = true
	}

	frontier := seed
	var result []*store.Resource
	const maxRounds = 8

	for round := 0; round < maxRounds; round++ {
		var next []*store.Resource

		for _, spec := range includes {
			fetched, err := fetchIncluded(ctx, q, frontier, spec, seen)
			if err != nil {
				return nil, err
			}
			next = append(next, fetched...)
		}
		for _, spec := range revincludes {
			fetched, err := fetchRevIncluded(ctx, q, frontier, spec, seen)
			if err != nil {
				return nil, err
			}
			next = append(next, fetched...)
		}

		if len(next) == 0 {
			break
		}
		result = append(result, next...)

		var iterating []*store.Resource
		anyIterate := false
		for _, s := range includes {
			if s.Iterate {
				anyIterate = true
			}
		}
		for _, s := range revincludes {
			if s.Iterate {
				anyIterate = true
			}
		}
		if !anyIterate {
			break
		}
		iterating = next
		frontier = iterating
	}
	return result, nil
}

func fetchIncluded(ctx context.Context, q store.Querier, frontier []*store.Resource, spec IncludeSpec, seen map[string]bool) ([]*store.Resource, error) {
	var out []*store.Resource
	for _, res := range frontier {
		if res.Type != spec.SourceType {
			continue
		}
		rows, err := q.Query(ctx, `SELECT target_type, target_id FROM search_reference
			WHERE resource_type=$1 AND resource_id=$2 AND version_id=$3 AND parameter_name=$4`,
			res.Type, res.ID, res.VersionID, spec.ParamCode)
		if err != nil {
			return nil, apperr.Wrap(err, "query _include references")
		}
		type ref struct{ targetType, targetID string }
		var refs []ref
		for rows.Next() {
			var r ref
			if err := rows.Scan(&r.targetType, &r.targetID); err != nil {
				rows.Close()
				return nil, apperr.Wrap(err, "scan _include reference")
			}
			refs = append(refs, r)
		}
		rows.Close()
		for _, r := range refs {
			if r.targetType == "" || r.targetID == "" {
				continue
			}
			if spec.TargetType != "" && r.targetType != spec.TargetType {
				continue
			}
			key := r.targetType + "/" + r.targetID
			if seen[key] {
				continue
			}
			seen[key] = true
			fetched, err := fetchCurrent(ctx, q, r.targetType, r.targetID)
			if err != nil {
				if apperr.StatusOf(err) == 404 {
					continue
				}
				return nil, err
			}
			out = append(out, fetched)
		}
	}
	return out, nil
}

func fetchRevIncluded(ctx context.Context, q store.Querier, frontier []*store.Resource, spec IncludeSpec, seen map[string]bool) ([]*store.Resource, error) {
	var out []*store.Resource
	for _, res := range frontier {
		if spec.TargetType != "" && res.Type != spec.TargetType {
			continue
		}
		rows, err := q.Query(ctx, `SELECT sr.resource_type, sr.resource_id FROM search_reference sr
			JOIN resources r ON r.resource_type = sr.resource_type AND r.id = sr.resource_id AND r.version_id = sr.version_id
			WHERE sr.target_type=$1 AND sr.target_id=$2 AND sr.parameter_name=$3 AND r.resource_type=$4 AND r.deleted=false`,
			res.Type, res.ID, spec.ParamCode, spec.SourceType)
		if err != nil {
			return nil, apperr.Wrap(err, "query _revinclude references")
		}
		type ref struct{ resourceType, resourceID string }
		var refs []ref
		for rows.Next() {
			var r ref
			if err := rows.Scan(&r.resourceType, &r.resourceID); err != nil {
				rows.Close()
				return nil, apperr.Wrap(err, "scan _revinclude reference")
			}
			refs = append(refs, r)
		}
		rows.Close()
		for _, r := range refs {
			key := r.resourceType + "/" + r.resourceID
			if seen[key] {
				continue
			}
			seen[key] = true
			fetched, err := fetchCurrent(ctx, q, r.resourceType, r.resourceID)
			if err != nil {
				if apperr.StatusOf(err) == 404 {
					continue
				}
				return nil, err
			}
			out = append(out, fetched)
		}
	}
	return out, nil
}

// queryResources runs a SELECT returning the standard
// (resource_type, id, version_id, deleted, last_updated, body) column set
// and scans every row.
func queryResources(ctx context.Context, q store.Querier, sql string, args []interface{}) ([]*store.Resource, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperr.Wrap(err, "execute search query")
	}
	defer rows.Close()

	var out []*store.Resource
	for rows.Next() {
		var res store.Resource
		var bodyJSON []byte
		if err := rows.Scan(&res.Type, &res.ID, &res.VersionID, &res.Deleted, &res.LastUpdated, &bodyJSON); err != nil {
			return nil, apperr.Wrap(err, "scan search result row")
		}
		if err := json.Unmarshal(bodyJSON, &res.Body); err != nil {
			return nil, apperr.Wrap(err, "decode search result body")
		}
		out = append(out, &res)
	}
	return out, rows.Err()
}

func fetchCurrent(ctx context.Context, q store.Querier, resourceType, id string) (*store.Resource, error) {
	row := q.QueryRow(ctx, `SELECT r.resource_type, r.id, r.version_id, r.deleted, r.last_updated, h.body
		FROM resources r JOIN resource_history h ON h.resource_type=r.resource_type AND h.id=r.id AND h.version_id=r.version_id
		WHERE r.resource_type=$1 AND r.id=$2 AND r.deleted=false`, resourceType, id)
	var res store.Resource
	var bodyJSON []byte
	if err := row.Scan(&res.Type, &res.ID, &res.VersionID, &res.Deleted, &res.LastUpdated, &bodyJSON); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound(resourceType, id)
		}
		return nil, apperr.Wrap(err, "fetch included resource")
	}
	if err := json.Unmarshal(bodyJSON, &res.Body); err != nil {
		return nil, apperr.Wrap(err, "decode included resource body")
	}
	return &res, nil
}
