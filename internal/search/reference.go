package search

import (
	"fmt"
	"strings"
)

func looksLikeRelative(ref string) bool {
	return strings.Count(ref, "/") >= 1 && !strings.Contains(ref, "://")
}

// parseRelativeTail splits "Type/id", "Type/id/_history/v", or a full
// absolute URL's trailing "Type/id[/_history/v]" segment, mirroring
// internal/index's parseRelative so the query side classifies references
// exactly the way the indexer did when it wrote them.
func parseRelativeTail(ref string) (targetType, targetID, versionID string) {
	rest := ref
	if idx := strings.Index(ref, "://"); idx >= 0 {
		afterScheme := ref[idx+3:]
		if slash := strings.Index(afterScheme, "/"); slash >= 0 {
			rest = afterScheme[slash+1:]
		}
	}
	parts := strings.Split(rest, "/")
	if len(parts) >= 2 {
		targetType = parts[len(parts)-2]
		targetID = parts[len(parts)-1]
	}
	if len(parts) >= 4 && parts[len(parts)-3] == "_history" {
		versionID = parts[len(parts)-1]
		targetID = parts[len(parts)-4]
		if len(parts) >= 5 {
			targetType = parts[len(parts)-5]
		}
	}
	return targetType, targetID, versionID
}

// ReferenceClause builds the value predicate for a "reference" parameter
// (spec §4.3(d)), covering bare id, Type/id, Type/id/_history/v, absolute
// URL, canonical url|version, and the :type= modifier. :identifier and
// :above/:below are handled by the caller (clause.go), which dispatches to
// token semantics or a recursive hierarchy CTE respectively.
func ReferenceClause(value, typeModifier string, argIdx *int, args *[]interface{}) string {
	if strings.Contains(value, "|") && !strings.Contains(value, "://") && !looksLikeRelative(value) {
		parts := strings.SplitN(value, "|", 2)
		return fmt.Sprintf("(sp.canonical_url = %s AND sp.canonical_version LIKE %s)",
			arg(argIdx, parts[0], args), arg(argIdx, parts[1]+"%", args))
	}

	switch {
	case strings.Contains(value, "://"):
		targetType, targetID, versionID := parseRelativeTail(value)
		conds := []string{fmt.Sprintf("sp.target_url = %s", arg(argIdx, value, args))}
		if targetType != "" {
			conds = append(conds, fmt.Sprintf("(sp.target_type = %s AND sp.target_id = %s)",
				arg(argIdx, targetType, args), arg(argIdx, targetID, args)))
		}
		clause := "(" + strings.Join(conds, " OR ") + ")"
		if versionID != "" {
			clause += fmt.Sprintf(" AND sp.target_version_id = %s", arg(argIdx, versionID, args))
		} else {
			clause += " AND (sp.target_version_id IS NULL OR sp.target_version_id = '')"
		}
		return withTypeModifier(clause, typeModifier, argIdx, args)

	case looksLikeRelative(value):
		targetType, targetID, versionID := parseRelativeTail(value)
		clause := fmt.Sprintf("(sp.target_type = %s AND sp.target_id = %s)",
			arg(argIdx, targetType, args), arg(argIdx, targetID, args))
		if versionID != "" {
			clause += fmt.Sprintf(" AND sp.target_version_id = %s", arg(argIdx, versionID, args))
		}
		return withTypeModifier(clause, typeModifier, argIdx, args)

	default:
		clause := fmt.Sprintf("sp.target_id = %s", arg(argIdx, value, args))
		return withTypeModifier(clause, typeModifier, argIdx, args)
	}
}

func withTypeModifier(clause, typeModifier string, argIdx *int, args *[]interface{}) string {
	if typeModifier == "" {
		return clause
	}
	return clause + fmt.Sprintf(" AND sp.target_type = %s", arg(argIdx, typeModifier, args))
}

// HierarchyCTE builds the recursive CTE that answers :above/:below on a
// hierarchical reference parameter (spec §4.3(d)), e.g. Organization.partOf.
// It returns ancestors (below=false) or descendants (below=true) of startID
// within resourceType, walking search_reference rows for parameterName.
func HierarchyCTE(cteName, resourceType, parameterName, startID string, below bool, argIdx *int, args *[]interface{}) string {
	startPH := arg(argIdx, startID, args)
	typePH := arg(argIdx, resourceType, args)
	paramPH := arg(argIdx, parameterName, args)
	if below {
		return fmt.Sprintf(`%s AS (
			SELECT %s AS id
			UNION
			SELECT sr.resource_id FROM search_reference sr
			JOIN %s h ON sr.target_id = h.id
			WHERE sr.resource_type = %s AND sr.parameter_name = %s
		)`, cteName, startPH, cteName, typePH, paramPH)
	}
	return fmt.Sprintf(`%s AS (
		SELECT %s AS id
		UNION
		SELECT sr.target_id FROM search_reference sr
		JOIN %s h ON sr.resource_id = h.id
		WHERE sr.resource_type = %s AND sr.parameter_name = %s
	)`, cteName, startPH, cteName, typePH, paramPH)
}

// hierarchyPredicate wraps HierarchyCTE as a value predicate usable inside
// paramClause's outer EXISTS, so :above/:below on a reference parameter
// (spec §4.3(d)) resolves against the transitive closure of parameterName
// edges within resourceType instead of a single hop.
func hierarchyPredicate(resourceType, parameterName string, below bool, startID string, argIdx *int, args *[]interface{}) string {
	cteName := fmt.Sprintf("hier_%d", *argIdx)
	cteSQL := HierarchyCTE(cteName, resourceType, parameterName, startID, below, argIdx, args)
	return fmt.Sprintf("sp.target_id IN (WITH RECURSIVE %s SELECT id FROM %s)", cteSQL, cteName)
}
