package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ehr/ehr/internal/apperr"
	"github.com/ehr/ehr/internal/fhirpath"
	"github.com/ehr/ehr/internal/index"
)

// ExpandedCode is one system|code pair returned by a ValueSet expansion.
type ExpandedCode struct {
	System, Code string
}

// TerminologyExpander resolves a ValueSet reference to its member codes for
// the :in/:not-in token modifiers (spec §4.3 "Token"). internal/terminology
// implements this.
type TerminologyExpander interface {
	ExpandValueSet(ctx context.Context, valueSetURL string) ([]ExpandedCode, error)
}

var tableByType = map[string]string{
	"string":    "search_string",
	"token":     "search_token",
	"date":      "search_date",
	"number":    "search_number",
	"quantity":  "search_quantity",
	"reference": "search_reference",
	"uri":       "search_uri",
	"composite": "search_composite",
	"text":      "search_content",
	"content":   "search_content",
}

// paramClause builds the EXISTS(...) fragment for one resolved parameter
// occurrence against one value (spec §4.3(c)). Multiple values from the
// same occurrence (comma-separated) are OR-ed by the caller; repeated
// occurrences of the same name are AND-ed by the caller.
func (p *Planner) paramClause(ctx context.Context, resAlias, resourceType string, pn ParsedName, param index.Parameter, value string, argIdx *int, args *[]interface{}) (string, error) {
	if pn.Modifier == ModMissing {
		table := tableByType[param.Type]
		exists := fmt.Sprintf(`EXISTS (SELECT 1 FROM %s sp WHERE sp.resource_type = %s.resource_type
			AND sp.resource_id = %s.id AND sp.version_id = %s.version_id AND sp.parameter_name = %s)`,
			table, resAlias, resAlias, resAlias, arg(argIdx, param.Code, args))
		if value == "true" {
			return "NOT " + exists, nil
		}
		return exists, nil
	}

	table := tableByType[param.Type]
	if pn.Modifier == ModIdentifier && param.Type == "reference" {
		table = "search_token"
	}
	if table == "" {
		return "", apperr.NotSupported("parameter %s has no index table for type %q", param.Code, param.Type)
	}

	predicate, err := p.valuePredicate(ctx, resourceType, pn, param, value, argIdx, args)
	if err != nil {
		return "", err
	}

	exists := fmt.Sprintf(`EXISTS (SELECT 1 FROM %s sp WHERE sp.resource_type = %s.resource_type
		AND sp.resource_id = %s.id AND sp.version_id = %s.version_id AND sp.parameter_name = %s AND %s)`,
		table, resAlias, resAlias, resAlias, arg(argIdx, param.Code, args), predicate)

	if pn.Modifier == ModNot {
		return "NOT " + exists, nil
	}
	return exists, nil
}

func (p *Planner) valuePredicate(ctx context.Context, resourceType string, pn ParsedName, param index.Parameter, value string, argIdx *int, args *[]interface{}) (string, error) {
	switch param.Type {
	case "string":
		return StringClause(value, pn.Modifier, argIdx, args), nil
	case "token":
		switch pn.Modifier {
		case ModOfType:
			return tokenOfTypeClause(value, argIdx, args), nil
		case ModIn, ModNotIn:
			if p.terminology == nil {
				return "", apperr.NotSupported(":in/:not-in requires a terminology service")
			}
			codes, err := p.terminology.ExpandValueSet(ctx, value)
			if err != nil {
				return "", apperr.Wrap(err, "expand value set %s", value)
			}
			if len(codes) == 0 {
				return "false", nil
			}
			var ors []string
			for _, c := range codes {
				ors = append(ors, TokenClause(c.System+"|"+c.Code, argIdx, args))
			}
			return "(" + strings.Join(ors, " OR ") + ")", nil
		default:
			return TokenClause(value, argIdx, args), nil
		}
	case "date":
		return DateClause(value, argIdx, args), nil
	case "number":
		return NumberClause(value, argIdx, args), nil
	case "quantity":
		return QuantityClause(value, argIdx, args), nil
	case "reference":
		if pn.Modifier == ModIdentifier {
			return TokenClause(value, argIdx, args), nil
		}
		if pn.Modifier == ModAbove || pn.Modifier == ModBelow {
			return hierarchyPredicate(resourceType, param.Code, pn.Modifier == ModBelow, value, argIdx, args), nil
		}
		return ReferenceClause(value, pn.TypeModifier, argIdx, args), nil
	case "uri":
		return URIClause(value, pn.Modifier, argIdx, args), nil
	case "composite":
		return p.compositeClause(param, value, argIdx, args)
	case "text", "content":
		return fmt.Sprintf("sp.content_tsv @@ plainto_tsquery('english', %s)", arg(argIdx, value, args)), nil
	default:
		return "", apperr.NotSupported("unsupported parameter type %q", param.Type)
	}
}

func tokenOfTypeClause(value string, argIdx *int, args *[]interface{}) string {
	// value form: system|code|value (type system, type code, identifier value)
	parts := strings.SplitN(value, "|", 3)
	if len(parts) < 3 {
		return fmt.Sprintf("sp.value = %s", arg(argIdx, value, args))
	}
	return fmt.Sprintf("(sp.type_system = %s AND sp.type_code = %s AND sp.value = %s)",
		arg(argIdx, parts[0], args), arg(argIdx, parts[1], args), arg(argIdx, parts[2], args))
}

// compositeClause matches each "$"-separated component value against its
// slot in the components jsonb object (spec §4.3 "Composite"). Each slot
// holds the canonical rendering internal/index's renderComponentValue wrote
// ("system|code" for token, "value|system|code" for quantity, "start|end"
// for date, the bare value for string/number), so matching dispatches on
// the component's own parameter type rather than doing one flat string
// comparison.
func (p *Planner) compositeClause(param index.Parameter, value string, argIdx *int, args *[]interface{}) (string, error) {
	parts := strings.Split(value, "$")
	if len(parts) != len(param.Components) {
		return "", apperr.Invalid(param.Code, "composite parameter %s expects %d components, got %d", param.Code, len(param.Components), len(parts))
	}
	var conds []string
	for i, comp := range param.Components {
		field := fmt.Sprintf("sp.components->>%s", arg(argIdx, comp.Code, args))
		conds = append(conds, componentPredicate(field, comp.Type, parts[i], argIdx, args))
	}
	return "(" + strings.Join(conds, " AND ") + ")", nil
}

// componentPredicate builds the predicate for one composite component slot,
// parsing its query value the same way the top-level value predicates do
// but comparing against a jsonb-extracted text field (split_part standing
// in for the separate system/code/value columns a non-composite index row
// would have).
func componentPredicate(field, compType, value string, argIdx *int, args *[]interface{}) string {
	switch compType {
	case "token":
		if strings.Contains(value, "|") {
			parts := strings.SplitN(value, "|", 2)
			system, code := parts[0], parts[1]
			if system != "" {
				return fmt.Sprintf("%s = %s", field, arg(argIdx, system+"|"+codeCI(system, code), args))
			}
			return fmt.Sprintf("split_part(%s, '|', 2) = %s", field, arg(argIdx, strings.ToLower(code), args))
		}
		return fmt.Sprintf("split_part(%s, '|', 2) = %s", field, arg(argIdx, strings.ToLower(value), args))

	case "quantity":
		prefix, raw := ParsePrefix(value)
		qParts := strings.SplitN(raw, "|", 3)
		numExpr := fmt.Sprintf("split_part(%s, '|', 1)::numeric", field)
		n, err := strconv.ParseFloat(qParts[0], 64)
		var cond string
		if err != nil {
			cond = fmt.Sprintf("%s = %s", field, arg(argIdx, value, args))
		} else {
			switch prefix {
			case PrefixGt, PrefixSa:
				cond = fmt.Sprintf("%s > %s", numExpr, arg(argIdx, n, args))
			case PrefixLt, PrefixEb:
				cond = fmt.Sprintf("%s < %s", numExpr, arg(argIdx, n, args))
			case PrefixGe:
				cond = fmt.Sprintf("%s >= %s", numExpr, arg(argIdx, n, args))
			case PrefixLe:
				cond = fmt.Sprintf("%s <= %s", numExpr, arg(argIdx, n, args))
			case PrefixNe:
				eps := numericPrecisionEpsilon(qParts[0])
				cond = fmt.Sprintf("NOT (%s BETWEEN %s AND %s)", numExpr, arg(argIdx, n-eps, args), arg(argIdx, n+eps, args))
			default:
				eps := numericPrecisionEpsilon(qParts[0])
				cond = fmt.Sprintf("%s BETWEEN %s AND %s", numExpr, arg(argIdx, n-eps, args), arg(argIdx, n+eps, args))
			}
		}
		if len(qParts) >= 2 && qParts[1] != "" {
			cond += fmt.Sprintf(" AND split_part(%s, '|', 2) = %s", field, arg(argIdx, qParts[1], args))
		}
		if len(qParts) >= 3 && qParts[2] != "" {
			cond += fmt.Sprintf(" AND split_part(%s, '|', 3) = %s", field, arg(argIdx, qParts[2], args))
		}
		return cond

	case "number":
		prefix, raw := ParsePrefix(value)
		numExpr := fmt.Sprintf("(%s)::numeric", field)
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Sprintf("%s = %s", field, arg(argIdx, value, args))
		}
		switch prefix {
		case PrefixGt, PrefixSa:
			return fmt.Sprintf("%s > %s", numExpr, arg(argIdx, n, args))
		case PrefixLt, PrefixEb:
			return fmt.Sprintf("%s < %s", numExpr, arg(argIdx, n, args))
		case PrefixGe:
			return fmt.Sprintf("%s >= %s", numExpr, arg(argIdx, n, args))
		case PrefixLe:
			return fmt.Sprintf("%s <= %s", numExpr, arg(argIdx, n, args))
		default:
			eps := numericPrecisionEpsilon(raw)
			return fmt.Sprintf("%s BETWEEN %s AND %s", numExpr, arg(argIdx, n-eps, args), arg(argIdx, n+eps, args))
		}

	case "date":
		prefix, raw := ParsePrefix(value)
		qstart, qend := fhirpath.DateInterval(fhirpath.ParseDateTime(raw))
		startExpr := fmt.Sprintf("split_part(%s, '|', 1)::timestamptz", field)
		endExpr := fmt.Sprintf("split_part(%s, '|', 2)::timestamptz", field)
		qs, qe := arg(argIdx, qstart, args), arg(argIdx, qend, args)
		switch prefix {
		case PrefixGt, PrefixSa:
			return fmt.Sprintf("%s > %s", startExpr, qe)
		case PrefixLt, PrefixEb:
			return fmt.Sprintf("%s < %s", endExpr, qs)
		case PrefixGe:
			return fmt.Sprintf("%s >= %s", endExpr, qs)
		case PrefixLe:
			return fmt.Sprintf("%s <= %s", startExpr, qe)
		default:
			return fmt.Sprintf("(%s >= %s AND %s <= %s)", startExpr, qs, endExpr, qe)
		}

	default: // string
		return fmt.Sprintf("%s LIKE %s", field, arg(argIdx, normalize(value)+"%", args))
	}
}
