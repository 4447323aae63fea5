package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ehr/ehr/internal/apperr"
	"github.com/ehr/ehr/internal/store"
)

const (
	defaultCount = 20
	maxCount     = 500
)

// Entry is one Bundle entry: the resource plus its search.mode ("match" or
// "include", spec §4.3(g)).
type Entry struct {
	Resource *store.Resource
	Mode     string
}

// Result is the planner's full output for one search request, ready for
// internal/httpapi to render as a Bundle.
type Result struct {
	Entries     []Entry
	Total       *int
	NextCursor  string
	PrevCursor  string
	Warnings    []string
	SummaryOnly bool // _summary=count: caller renders Total only, no entries
}

// Search implements the end-to-end planner pipeline of spec §4.3: parse,
// resolve, build clauses, page, run, then resolve includes and apply
// _summary/_elements.
func (p *Planner) Search(ctx context.Context, q store.Querier, resourceType string, query url.Values) (*Result, error) {
	argIdx := 1
	var args []interface{}
	where, warnings, err := p.BuildWhere(ctx, "r", resourceType, query, &argIdx, &args)
	if err != nil {
		return nil, err
	}

	summaryMode := query.Get("_summary")
	if summaryMode == "count" {
		total, err := p.countMatches(ctx, q, resourceType, where, args)
		if err != nil {
			return nil, err
		}
		return &Result{Total: &total, SummaryOnly: true, Warnings: warnings}, nil
	}

	count := ParseCount(query.Get("_count"), defaultCount, maxCount)
	backward := query.Get("_page") == "prev"
	var cursor *Cursor
	if tok := query.Get("cursor"); tok != "" {
		c, err := DecodeCursor(tok)
		if err != nil {
			return nil, err
		}
		cursor = &c
	}

	dataWhere := where
	dataArgs := append([]interface{}{}, args...)
	dataArgIdx := argIdx
	if cursor != nil {
		dataWhere = dataWhere + " AND " + PageClause("r", *cursor, backward, &dataArgIdx, &dataArgs)
	}
	typeIdx := dataArgIdx
	dataArgs = append(dataArgs, resourceType)

	order := "ASC"
	if backward {
		order = "DESC"
	}
	sql := fmt.Sprintf(`SELECT r.resource_type, r.id, r.version_id, r.deleted, r.last_updated, h.body
		FROM resources r JOIN resource_history h ON h.resource_type=r.resource_type AND h.id=r.id AND h.version_id=r.version_id
		WHERE r.resource_type = $%d AND r.deleted = false AND %s
		ORDER BY r.last_updated %s, r.id %s LIMIT %d`, typeIdx, dataWhere, order, order, count+1)

	matches, err := queryResources(ctx, q, sql, dataArgs)
	if err != nil {
		return nil, err
	}

	hasMore := len(matches) > count
	if hasMore {
		matches = matches[:count]
	}
	if backward {
		reverseResources(matches)
	}

	result := &Result{Warnings: warnings}
	if hasMore {
		last := matches[len(matches)-1]
		result.NextCursor = Cursor{LastUpdated: last.LastUpdated, ID: last.ID}.Encode()
	}
	if cursor != nil && len(matches) > 0 {
		first := matches[0]
		result.PrevCursor = Cursor{LastUpdated: first.LastUpdated, ID: first.ID}.Encode()
	}

	switch query.Get("_total") {
	case "accurate":
		total, err := p.countMatches(ctx, q, resourceType, where, args)
		if err != nil {
			return nil, err
		}
		result.Total = &total
	case "estimate":
		total := len(matches)
		result.Total = &total
	}

	for _, m := range matches {
		result.Entries = append(result.Entries, Entry{Resource: m, Mode: "match"})
	}

	var includeSpecs, revincludeSpecs []IncludeSpec
	for _, raw := range query["_include"] {
		spec, err := ParseInclude("_include", raw)
		if err != nil {
			return nil, err
		}
		includeSpecs = append(includeSpecs, spec)
	}
	for _, raw := range query["_include:iterate"] {
		spec, err := ParseInclude("_include:iterate", raw)
		if err != nil {
			return nil, err
		}
		includeSpecs = append(includeSpecs, spec)
	}
	for _, raw := range query["_revinclude"] {
		spec, err := ParseInclude("_revinclude", raw)
		if err != nil {
			return nil, err
		}
		revincludeSpecs = append(revincludeSpecs, spec)
	}
	for _, raw := range query["_revinclude:iterate"] {
		spec, err := ParseInclude("_revinclude:iterate", raw)
		if err != nil {
			return nil, err
		}
		revincludeSpecs = append(revincludeSpecs, spec)
	}
	if len(includeSpecs) > 0 || len(revincludeSpecs) > 0 {
		included, err := ResolveIncludes(ctx, q, matches, includeSpecs, revincludeSpecs)
		if err != nil {
			return nil, err
		}
		for _, r := range included {
			result.Entries = append(result.Entries, Entry{Resource: r, Mode: "include"})
		}
	}

	applySummaryAndElements(result, summaryMode, query["_elements"])
	return result, nil
}

func applySummaryAndElements(result *Result, summaryMode string, elements []string) {
	if summaryMode == "" && len(elements) == 0 {
		return
	}
	for i := range result.Entries {
		body := result.Entries[i].Resource.Body
		if summaryMode != "" {
			body = ApplySummary(body, summaryMode)
		}
		if len(elements) > 0 {
			var all []string
			for _, e := range elements {
				all = append(all, strings.Split(e, ",")...)
			}
			body = ApplyElements(body, all)
		}
		result.Entries[i].Resource.Body = body
	}
}

func (p *Planner) countMatches(ctx context.Context, q store.Querier, resourceType, where string, args []interface{}) (int, error) {
	typeIdx := len(args) + 1
	sql := fmt.Sprintf(`SELECT count(*) FROM resources r WHERE r.resource_type = $%d AND r.deleted = false AND %s`, typeIdx, where)
	row := q.QueryRow(ctx, sql, append(append([]interface{}{}, args...), resourceType)...)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, apperr.Wrap(err, "count matches")
	}
	return n, nil
}

func reverseResources(rs []*store.Resource) {
	for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
		rs[i], rs[j] = rs[j], rs[i]
	}
}
