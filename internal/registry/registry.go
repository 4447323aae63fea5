// Package registry is the database-backed search-parameter registry of
// spec §3 "Parameter registry": it loads active SearchParameter rows (plus
// their composite components) per resource type from Postgres and serves
// them behind a sync.RWMutex-protected copy-on-write cache, so readers
// (internal/index's extractor, internal/search's planner) never block a
// concurrent reload triggered by internal/domain/searchparameter writes.
//
// It implements internal/index.Source, the same interface index.Static
// satisfies, so a Store built with Registry behaves identically to one
// built with the bootstrap table except that its parameter set reflects
// whatever has been installed for the tenant.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/ehr/ehr/internal/apperr"
	"github.com/ehr/ehr/internal/index"
)

// Querier is the subset of pgxpool.Pool/pgx.Tx the registry needs to read
// the parameter tables.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Target carries a reference parameter's candidate target resource types,
// the real counterpart to internal/search's chainTargetGuess bootstrap
// table (spec §9 open question "chain target resolution without a full
// registry"). internal/search does not consume this yet; it is exposed
// here so that wiring is a call-site change, not a schema change, once
// internal/search's planner is updated to prefer it over its guess table.
type Target struct {
	Code    string
	Targets []string
}

// Registry is the RWMutex copy-on-write parameter cache (spec §5 "the
// parameter-registry and structure-definition caches are sync.RWMutex
// protected copy-on-write snapshots"). A fallback Source (normally
// index.Static) is consulted for any resource type the database has no
// rows for yet, so a freshly migrated tenant with no installed packages
// still indexes and searches on the built-in parameter set.
type Registry struct {
	q        Querier
	fallback index.Source

	mu      sync.RWMutex
	byType  map[string][]index.Parameter
	targets map[string][]Target
	loaded  map[string]bool
}

// New builds a Registry reading from q, falling back to fallback for any
// resource type not yet present in the database.
func New(q Querier, fallback index.Source) *Registry {
	return &Registry{
		q:        q,
		fallback: fallback,
		byType:   make(map[string][]index.Parameter),
		targets:  make(map[string][]Target),
		loaded:   make(map[string]bool),
	}
}

// ActiveParameters implements index.Source. The first call for a resource
// type loads it from the database (and memoizes the result, including an
// explicit "nothing installed" marker so repeat misses don't re-query);
// Invalidate forces the next call to reload.
func (r *Registry) ActiveParameters(ctx context.Context, resourceType string) ([]index.Parameter, error) {
	r.mu.RLock()
	if r.loaded[resourceType] {
		params := r.byType[resourceType]
		r.mu.RUnlock()
		return params, nil
	}
	r.mu.RUnlock()

	params, targets, err := r.load(ctx, resourceType)
	if err != nil {
		return nil, err
	}

	if len(params) == 0 && r.fallback != nil {
		fromFallback, err := r.fallback.ActiveParameters(ctx, resourceType)
		if err != nil {
			return nil, err
		}
		params = fromFallback
	}

	r.mu.Lock()
	r.byType[resourceType] = params
	r.targets[resourceType] = targets
	r.loaded[resourceType] = true
	r.mu.Unlock()
	return params, nil
}

// Targets returns the candidate target resource types the registry has on
// file for resourceType's reference parameters, loading them first if
// necessary.
func (r *Registry) Targets(ctx context.Context, resourceType string) ([]Target, error) {
	if _, err := r.ActiveParameters(ctx, resourceType); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.targets[resourceType], nil
}

// Invalidate drops resourceType's cached parameter set so the next
// ActiveParameters call re-reads it from the database (spec §4.6
// "internal/domain/searchparameter ... calls
// internal/registry.Invalidate(resourceType)"). Invalidation is swap-the-
// view, not edit-in-place: readers mid-iteration over the old slice are
// never affected, matching the "readers never block writers, only the
// in-memory view swaps atomically" model of spec §5.
func (r *Registry) Invalidate(resourceType string) {
	r.mu.Lock()
	delete(r.byType, resourceType)
	delete(r.targets, resourceType)
	delete(r.loaded, resourceType)
	r.mu.Unlock()
}

// InvalidateAll drops the entire cache, used after a package install that
// may have touched many resource types at once (internal/pkginstall).
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	r.byType = make(map[string][]index.Parameter)
	r.targets = make(map[string][]Target)
	r.loaded = make(map[string]bool)
	r.mu.Unlock()
}

type paramRow struct {
	id         int
	code       string
	typ        string
	expression string
	targets    []string
}

// load reads every active search_parameters row for resourceType plus its
// composite components, in code order so results are deterministic.
func (r *Registry) load(ctx context.Context, resourceType string) ([]index.Parameter, []Target, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, code, type, expression, targets
		FROM search_parameters
		WHERE resource_type = $1 AND active
		ORDER BY code`, resourceType)
	if err != nil {
		return nil, nil, apperr.Wrap(err, "load search parameters for %s", resourceType)
	}
	defer rows.Close()

	var raw []paramRow
	ids := make([]int, 0)
	for rows.Next() {
		var p paramRow
		if err := rows.Scan(&p.id, &p.code, &p.typ, &p.expression, &p.targets); err != nil {
			return nil, nil, apperr.Wrap(err, "scan search parameter row for %s", resourceType)
		}
		raw = append(raw, p)
		ids = append(ids, p.id)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, apperr.Wrap(err, "iterate search parameter rows for %s", resourceType)
	}

	components, err := r.loadComponents(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	params := make([]index.Parameter, 0, len(raw))
	var targets []Target
	for _, p := range raw {
		params = append(params, index.Parameter{
			Code:       p.code,
			Type:       p.typ,
			Expression: p.expression,
			Components: components[p.id],
		})
		if len(p.targets) > 0 {
			targets = append(targets, Target{Code: p.code, Targets: p.targets})
		}
	}
	return params, targets, nil
}

// loadComponents batches composite-component rows for every parameter id
// in one query rather than one round trip per parameter.
func (r *Registry) loadComponents(ctx context.Context, ids []int) (map[int][]index.CompositeComponent, error) {
	out := make(map[int][]index.CompositeComponent)
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.q.Query(ctx, `
		SELECT search_parameter_id, component_code, component_type, expression
		FROM search_parameter_components
		WHERE search_parameter_id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return nil, apperr.Wrap(err, "load composite components")
	}
	defer rows.Close()

	for rows.Next() {
		var spID int
		var c index.CompositeComponent
		if err := rows.Scan(&spID, &c.Code, &c.Type, &c.Expression); err != nil {
			return nil, apperr.Wrap(err, "scan composite component row")
		}
		out[spID] = append(out[spID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(err, "iterate composite component rows")
	}
	return out, nil
}

// KnownResourceTypes returns the resource types the registry currently has
// a loaded (possibly empty) parameter set for, sorted for deterministic
// output — used by the conformance statement builder (spec §6 metadata).
func (r *Registry) KnownResourceTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.loaded))
	for rt := range r.loaded {
		out = append(out, rt)
	}
	sort.Strings(out)
	return out
}
