package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ehr/ehr/internal/apperr"
	"github.com/ehr/ehr/internal/index"
	"github.com/ehr/ehr/internal/store"
)

// chainTargetGuess maps a reference parameter's code to the candidate
// target resource types the chain/reverse-chain resolver tries it against
// (spec §4.3(e) "the tail parameter is resolved against each possible
// target"). internal/registry does not yet carry explicit SearchParameter
// targets (spec §9 open question), so this is the same kind of bootstrap
// table index.Static is for parameter definitions, and should be replaced
// once the registry records real targets.
var chainTargetGuess = map[string][]string{
	"subject":      {"Patient", "Group", "Device", "Location"},
	"patient":      {"Patient"},
	"organization": {"Organization"},
	"partof":       {"Organization", "Location"},
	"practitioner": {"Practitioner"},
	"encounter":    {"Encounter"},
	"result":       {"Observation", "DiagnosticReport"},
}

// Planner implements store.ConditionalMatcher and is the query-string →
// SQL compiler described in spec §4.3.
type Planner struct {
	params      index.Source
	baseURL     string
	terminology TerminologyExpander
}

// NewPlanner builds a Planner. terminology may be nil; :in/:not-in then
// fails with a not-supported error instead of silently matching nothing.
func NewPlanner(params index.Source, baseURL string, terminology TerminologyExpander) *Planner {
	return &Planner{params: params, baseURL: baseURL, terminology: terminology}
}

func (p *Planner) resolveParam(ctx context.Context, resourceType, code string) (index.Parameter, bool, error) {
	params, err := p.params.ActiveParameters(ctx, resourceType)
	if err != nil {
		return index.Parameter{}, false, err
	}
	for _, param := range params {
		if param.Code == code {
			return param, true, nil
		}
	}
	return index.Parameter{}, false, nil
}

// BuildWhere implements spec §4.3(a)-(f): it compiles a query-string's
// parameters into a single SQL boolean expression over the aliased
// `resources` row resAlias, plus its positional args (starting at argIdx)
// and a list of unknown-parameter warnings (spec §4.3(b): "collected and
// returned as a warning but do not fail the request").
func (p *Planner) BuildWhere(ctx context.Context, resAlias, resourceType string, query url.Values, argIdx *int, args *[]interface{}) (string, []string, error) {
	var clauses []string
	var warnings []string

	for name, values := range query {
		if isControlParam(name) {
			continue
		}
		pn := ParseName(name)

		if pn.IsReverseChain {
			clause, err := p.reverseChainClause(ctx, resAlias, pn, values, argIdx, args)
			if err != nil {
				return "", warnings, err
			}
			clauses = append(clauses, clause)
			continue
		}

		if special, ok := specialParamClause(resAlias, pn.Code, values, argIdx, args); ok {
			clauses = append(clauses, special)
			continue
		}

		if len(pn.Chain) > 0 {
			clause, err := p.chainClause(ctx, resAlias, resourceType, pn, values, argIdx, args)
			if err != nil {
				return "", warnings, err
			}
			clauses = append(clauses, clause)
			continue
		}

		param, ok, err := p.resolveParam(ctx, resourceType, pn.Code)
		if err != nil {
			return "", warnings, err
		}
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unknown search parameter %q for %s", pn.Code, resourceType))
			continue
		}

		var ands []string
		for _, rawValue := range values {
			var ors []string
			for _, v := range SplitValues(rawValue) {
				c, err := p.paramClause(ctx, resAlias, resourceType, pn, param, v, argIdx, args)
				if err != nil {
					return "", warnings, err
				}
				ors = append(ors, c)
			}
			ands = append(ands, "("+strings.Join(ors, " OR ")+")")
		}
		clauses = append(clauses, strings.Join(ands, " AND "))
	}

	if len(clauses) == 0 {
		return "true", warnings, nil
	}
	return "(" + strings.Join(clauses, " AND ") + ")", warnings, nil
}

func isControlParam(name string) bool {
	switch name {
	case "_count", "_sort", "_include", "_revinclude", "_summary", "_elements", "_total", "_format", "_pretty", "cursor":
		return true
	}
	return false
}

// specialParamClause handles the resource-level special parameters (spec
// §4.3(c) "Special"): _id, _lastUpdated, _in, _list.
func specialParamClause(resAlias, code string, values []string, argIdx *int, args *[]interface{}) (string, bool) {
	switch code {
	case "_id":
		var ands []string
		for _, raw := range values {
			var ors []string
			for _, v := range SplitValues(raw) {
				ors = append(ors, fmt.Sprintf("%s.id = %s", resAlias, arg(argIdx, v, args)))
			}
			ands = append(ands, "("+strings.Join(ors, " OR ")+")")
		}
		return strings.Join(ands, " AND "), true
	case "_lastUpdated":
		var ands []string
		for _, raw := range values {
			var ors []string
			for _, v := range SplitValues(raw) {
				ors = append(ors, PointDateClause(resAlias+".last_updated", v, argIdx, args))
			}
			ands = append(ands, "("+strings.Join(ors, " OR ")+")")
		}
		return strings.Join(ands, " AND "), true
	case "_list":
		var ors []string
		for _, raw := range values {
			for _, v := range SplitValues(raw) {
				ors = append(ors, fmt.Sprintf(`EXISTS (SELECT 1 FROM search_membership_list ml
					WHERE ml.list_id = %s AND ml.member_type = %s.resource_type AND ml.member_id = %s.id)`,
					arg(argIdx, v, args), resAlias, resAlias))
			}
		}
		return "(" + strings.Join(ors, " OR ") + ")", true
	case "_in":
		var ors []string
		for _, raw := range values {
			for _, v := range SplitValues(raw) {
				parts := strings.SplitN(v, "/", 2)
				if len(parts) != 2 {
					continue
				}
				ors = append(ors, fmt.Sprintf(`EXISTS (SELECT 1 FROM search_membership_in mi
					WHERE mi.resource_type = %s AND mi.resource_id = %s AND mi.member_type = %s.resource_type AND mi.member_id = %s.id)`,
					arg(argIdx, parts[0], args), arg(argIdx, parts[1], args), resAlias, resAlias))
			}
		}
		return "(" + strings.Join(ors, " OR ") + ")", true
	}
	return "", false
}

// chainClause implements spec §4.3(e): Type?code.tail=value is compiled as
// an EXISTS over search_reference joined to the referenced resources row,
// recursively planning the tail against each candidate target type.
func (p *Planner) chainClause(ctx context.Context, resAlias, resourceType string, pn ParsedName, values []string, argIdx *int, args *[]interface{}) (string, error) {
	refParam, ok, err := p.resolveParam(ctx, resourceType, pn.Code)
	if err != nil {
		return "", err
	}
	if !ok || refParam.Type != "reference" {
		return "", apperr.NotSupported("chain parameter %s is not a reference parameter on %s", pn.Code, resourceType)
	}

	targets := chainTargetGuess[pn.Code]
	if pn.TypeModifier != "" {
		targets = []string{pn.TypeModifier}
	}
	if len(targets) == 0 {
		return "", apperr.NotSupported("no known target type for chain parameter %s", pn.Code)
	}

	tail := strings.Join(pn.Chain, ".")

	var targetOrs []string
	for _, target := range targets {
		joinAlias := fmt.Sprintf("r_%s_%d", strings.ToLower(target), *argIdx)
		tailQuery := url.Values{tail: values}
		inner, _, err := p.BuildWhere(ctx, joinAlias, target, tailQuery, argIdx, args)
		if err != nil {
			continue // target doesn't support the tail parameter; try the next candidate
		}
		targetOrs = append(targetOrs, fmt.Sprintf(`EXISTS (SELECT 1 FROM search_reference sr
			JOIN resources %s ON %s.resource_type = sr.target_type AND %s.id = sr.target_id
			WHERE sr.resource_type = %s.resource_type AND sr.resource_id = %s.id AND sr.version_id = %s.version_id
			  AND sr.parameter_name = %s AND %s.resource_type = %s AND %s)`,
			joinAlias, joinAlias, joinAlias, resAlias, resAlias, resAlias,
			arg(argIdx, refParam.Code, args), joinAlias, arg(argIdx, target, args), inner))
	}
	if len(targetOrs) == 0 {
		return "", apperr.NotSupported("chain %s.%s did not resolve against any candidate target type", pn.Code, tail)
	}
	return "(" + strings.Join(targetOrs, " OR ") + ")", nil
}

// reverseChainClause implements spec §4.3(f): _has:Type:field:param=value
// returns resources referenced (as field) by a Type resource matching the
// inner parameter.
func (p *Planner) reverseChainClause(ctx context.Context, resAlias string, pn ParsedName, values []string, argIdx *int, args *[]interface{}) (string, error) {
	if pn.ReverseChain == nil {
		return "", apperr.Invalid("_has", "malformed _has parameter")
	}
	referrerAlias := fmt.Sprintf("referrer_%d", *argIdx)
	innerQuery := url.Values{}
	innerName := pn.ReverseChain.Code
	if pn.ReverseChain.Modifier != "" {
		innerName += ":" + string(pn.ReverseChain.Modifier)
	}
	innerQuery[innerName] = values
	inner, _, err := p.BuildWhere(ctx, referrerAlias, pn.ReverseType, innerQuery, argIdx, args)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`EXISTS (SELECT 1 FROM search_reference sr
		JOIN resources %s ON %s.resource_type = sr.resource_type AND %s.id = sr.resource_id
		WHERE sr.target_type = %s.resource_type AND sr.target_id = %s.id
		  AND sr.parameter_name = %s AND %s.resource_type = %s AND %s)`,
		referrerAlias, referrerAlias, referrerAlias,
		resAlias, resAlias, arg(argIdx, pn.ReverseField, args), referrerAlias,
		arg(argIdx, pn.ReverseType, args), inner), nil
}

// Match implements store.ConditionalMatcher: it resolves a FHIR search
// criteria string to the ids of current, non-deleted matching resources,
// used by conditional create/update/delete (spec §4.1).
func (p *Planner) Match(ctx context.Context, q store.Querier, resourceType, criteria string) ([]string, error) {
	query, err := url.ParseQuery(criteria)
	if err != nil {
		return nil, apperr.Invalid("criteria", "malformed search criteria %q: %v", criteria, err)
	}
	argIdx := 1
	var args []interface{}
	where, _, err := p.BuildWhere(ctx, "r", resourceType, query, &argIdx, &args)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(`SELECT r.id FROM resources r WHERE r.resource_type = $%d AND r.deleted = false AND %s`, argIdx, where)
	args = append(args, resourceType)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperr.Wrap(err, "execute conditional match query")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(err, "scan matched id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
