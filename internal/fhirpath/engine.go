package fhirpath

import (
	"context"
	"time"
)

// ResourceResolver resolves FHIR reference strings (e.g. "Patient/123",
// "urn:uuid:...") to their target resource. The engine calls it once per
// evaluation, batched over every reference reachable from the root
// resource, so the VM's resolve() can stay a synchronous cache lookup
// (spec §4.4 "Resolver plug-in").
type ResourceResolver interface {
	ResolveReferences(ctx context.Context, refs []string) (map[string]Value, error)
}

// Engine compiles and evaluates FHIRPath expressions, caching compiled
// plans across calls the way the teacher's structure-definition cache
// holds parsed definitions rather than re-parsing JSON on every request.
type Engine struct {
	plans    *planCache
	resolver ResourceResolver
	now      func() time.Time
}

// NewEngine builds an Engine with the default 1000-entry plan cache.
// resolver may be nil for expressions that never call resolve().
func NewEngine(resolver ResourceResolver) *Engine {
	return &Engine{plans: newPlanCache(1000), resolver: resolver, now: time.Now}
}

func (e *Engine) compile(expr string) (*Plan, error) {
	if p, ok := e.plans.get(expr); ok {
		return p, nil
	}
	p, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	e.plans.put(expr, p)
	return p, nil
}

// Evaluate compiles (or reuses a cached plan for) expr and runs it against
// root with the given external variables (%resource, %context, caller-
// supplied search variables, ...) bound.
func (e *Engine) Evaluate(ctx context.Context, expr string, root Value, vars map[string]Collection) (Collection, error) {
	p, err := e.compile(expr)
	if err != nil {
		return nil, err
	}
	cache, err := e.prewarm(ctx, root)
	if err != nil {
		return nil, err
	}
	vm := newVM(vars, cache, e.now())
	return vm.runPlan(p, Single(root), 0, Single(Int(1)))
}

// EvaluateBool applies the singleton-evaluation-to-bool rule to the result
// of Evaluate, for invariant/discriminator-style expressions.
func (e *Engine) EvaluateBool(ctx context.Context, expr string, root Value, vars map[string]Collection) (bool, error) {
	c, err := e.Evaluate(ctx, expr, root, vars)
	if err != nil {
		return false, err
	}
	return c.AsBool(), nil
}

// EvaluateString evaluates expr and renders the first result item as a
// string, for search-parameter extraction expressions that are known to
// yield scalars.
func (e *Engine) EvaluateString(ctx context.Context, expr string, root Value, vars map[string]Collection) (string, error) {
	c, err := e.Evaluate(ctx, expr, root, vars)
	if err != nil || len(c) == 0 {
		return "", err
	}
	return c[0].Materialize().String(), nil
}

func (e *Engine) prewarm(ctx context.Context, root Value) (map[string]Value, error) {
	if e.resolver == nil {
		return nil, nil
	}
	refs := collectReferences(root, nil)
	if len(refs) == 0 {
		return nil, nil
	}
	return e.resolver.ResolveReferences(ctx, refs)
}

// collectReferences walks a resource looking for every Reference.reference
// string it contains, so the engine can ask the resolver for all of them in
// one round trip ahead of running the (synchronous) VM.
func collectReferences(v Value, out []string) []string {
	v = v.Materialize()
	if v.Kind != KindObject {
		return out
	}
	if ref := v.Field("reference"); len(ref) == 1 {
		if s := ref[0].Materialize(); s.Kind == KindString && s.Str != "" {
			out = append(out, s.Str)
		}
	}
	for _, raw := range v.Object {
		for _, child := range expandField(raw) {
			out = collectReferences(child, out)
		}
	}
	return out
}
