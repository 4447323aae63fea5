package index

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ehr/ehr/internal/apperr"
	"github.com/ehr/ehr/internal/fhirpath"
	"github.com/ehr/ehr/internal/store"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// tables lists every index table DeleteIndex purges before a re-index, in
// no particular order (spec §3 "on a new write the old version's rows are
// deleted before new rows are inserted within the same transaction").
var tables = []string{
	"search_string", "search_token", "search_token_identifier", "search_date",
	"search_number", "search_quantity", "search_reference", "search_uri",
	"search_content", "search_composite",
}

// Indexer implements store.Indexer (spec §4.2), driving internal/fhirpath
// against a resource's active search parameters and writing the resulting
// tuples to the typed index tables created by migrations/001_fhir_core.sql.
type Indexer struct {
	engine  *fhirpath.Engine
	params  Source
	baseURL string
}

// NewIndexer builds an Indexer. baseURL is compared against absolute
// reference URLs to recognize "local" references (spec §4.2 reference rule).
func NewIndexer(engine *fhirpath.Engine, params Source, baseURL string) *Indexer {
	return &Indexer{engine: engine, params: params, baseURL: baseURL}
}

// DeleteIndex purges every index row for (resourceType, id), used both
// ahead of a re-index and by store.Delete.
func (ix *Indexer) DeleteIndex(ctx context.Context, q store.Querier, resourceType, id string) error {
	for _, table := range tables {
		if _, err := q.Exec(ctx, `DELETE FROM `+table+` WHERE resource_type=$1 AND resource_id=$2`, resourceType, id); err != nil {
			return apperr.Wrap(err, "purge %s rows", table)
		}
	}
	if _, err := q.Exec(ctx, `DELETE FROM search_membership_in WHERE resource_type=$1 AND resource_id=$2`, resourceType, id); err != nil {
		return apperr.Wrap(err, "purge search_membership_in rows")
	}
	return nil
}

// Index implements store.Indexer.Index.
func (ix *Indexer) Index(ctx context.Context, q store.Querier, res *store.Resource) error {
	if err := ix.DeleteIndex(ctx, q, res.Type, res.ID); err != nil {
		return err
	}
	params, err := ix.params.ActiveParameters(ctx, res.Type)
	if err != nil {
		return apperr.Wrap(err, "load active parameters for %s", res.Type)
	}

	root := fhirpath.FromLazy(res.Body)
	for _, p := range params {
		if p.Type == "special" {
			continue
		}
		coll, err := ix.engine.Evaluate(ctx, p.Expression, root, nil)
		if err != nil {
			return apperr.Wrap(err, "evaluate search parameter %s on %s/%s", p.Code, res.Type, res.ID)
		}
		if len(coll) == 0 {
			continue
		}
		if err := ix.writeParameter(ctx, q, res, p, coll); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Indexer) writeParameter(ctx context.Context, q store.Querier, res *store.Resource, p Parameter, coll fhirpath.Collection) error {
	switch p.Type {
	case "string":
		for _, t := range extractStrings(coll) {
			hash := entryHash(res.Type, res.ID, res.VersionID, p.Code, t.value)
			if _, err := q.Exec(ctx, `INSERT INTO search_string
				(resource_type, resource_id, version_id, parameter_name, entry_hash, value, value_normalized)
				VALUES ($1,$2,$3,$4,$5,$6,$7) ON CONFLICT (resource_type, resource_id, version_id, parameter_name, entry_hash) DO NOTHING`,
				res.Type, res.ID, res.VersionID, p.Code, hash, t.value, normalize(t.value)); err != nil {
				return apperr.Wrap(err, "insert search_string row")
			}
		}
	case "token":
		for _, t := range extractTokens(coll) {
			hash := entryHash(res.Type, res.ID, res.VersionID, p.Code, t.system, t.code)
			if _, err := q.Exec(ctx, `INSERT INTO search_token
				(resource_type, resource_id, version_id, parameter_name, entry_hash, system, code, code_ci, display)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) ON CONFLICT (resource_type, resource_id, version_id, parameter_name, entry_hash) DO NOTHING`,
				res.Type, res.ID, res.VersionID, p.Code, hash, t.system, t.code, codeCI(t.system, t.code), t.display); err != nil {
				return apperr.Wrap(err, "insert search_token row")
			}
		}
		for _, t := range extractIdentifierOfType(coll) {
			hash := entryHash(res.Type, res.ID, res.VersionID, p.Code, t.typeSystem, t.typeCode, t.value)
			if _, err := q.Exec(ctx, `INSERT INTO search_token_identifier
				(resource_type, resource_id, version_id, parameter_name, entry_hash, type_system, type_code, value)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (resource_type, resource_id, version_id, parameter_name, entry_hash) DO NOTHING`,
				res.Type, res.ID, res.VersionID, p.Code, hash, t.typeSystem, t.typeCode, t.value); err != nil {
				return apperr.Wrap(err, "insert search_token_identifier row")
			}
		}
	case "date":
		for _, d := range extractDates(coll) {
			hash := entryHash(res.Type, res.ID, res.VersionID, p.Code, d.start, d.end)
			if _, err := q.Exec(ctx, `INSERT INTO search_date
				(resource_type, resource_id, version_id, parameter_name, entry_hash, start_date, end_date)
				VALUES ($1,$2,$3,$4,$5,$6,$7) ON CONFLICT (resource_type, resource_id, version_id, parameter_name, entry_hash) DO NOTHING`,
				res.Type, res.ID, res.VersionID, p.Code, hash, d.start, d.end); err != nil {
				return apperr.Wrap(err, "insert search_date row")
			}
		}
	case "number":
		for _, n := range extractNumbers(coll) {
			hash := entryHash(res.Type, res.ID, res.VersionID, p.Code, fmt.Sprintf("%v", n))
			if _, err := q.Exec(ctx, `INSERT INTO search_number
				(resource_type, resource_id, version_id, parameter_name, entry_hash, value)
				VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (resource_type, resource_id, version_id, parameter_name, entry_hash) DO NOTHING`,
				res.Type, res.ID, res.VersionID, p.Code, hash, n); err != nil {
				return apperr.Wrap(err, "insert search_number row")
			}
		}
	case "quantity":
		for _, qty := range extractQuantities(coll) {
			hash := entryHash(res.Type, res.ID, res.VersionID, p.Code, qty.system, qty.code, qty.unit)
			if _, err := q.Exec(ctx, `INSERT INTO search_quantity
				(resource_type, resource_id, version_id, parameter_name, entry_hash, value, system, code, unit)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) ON CONFLICT (resource_type, resource_id, version_id, parameter_name, entry_hash) DO NOTHING`,
				res.Type, res.ID, res.VersionID, p.Code, hash, qty.value, qty.system, qty.code, qty.unit); err != nil {
				return apperr.Wrap(err, "insert search_quantity row")
			}
		}
	case "reference":
		refs, identifiers := extractReferences(coll, ix.baseURL)
		for _, r := range refs {
			hash := entryHash(res.Type, res.ID, res.VersionID, p.Code, r.kind, r.targetType, r.targetID, r.canonicalURL)
			if _, err := q.Exec(ctx, `INSERT INTO search_reference
				(resource_type, resource_id, version_id, parameter_name, entry_hash, reference_kind, target_type, target_id,
				 target_version_id, target_url, canonical_url, canonical_version, display)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
				ON CONFLICT (resource_type, resource_id, version_id, parameter_name, entry_hash) DO NOTHING`,
				res.Type, res.ID, res.VersionID, p.Code, hash, r.kind, r.targetType, r.targetID,
				r.targetVersionID, r.targetURL, r.canonicalURL, r.canonicalVer, r.display); err != nil {
				return apperr.Wrap(err, "insert search_reference row")
			}
		}
		for _, t := range identifiers {
			hash := entryHash(res.Type, res.ID, res.VersionID, p.Code, "identifier", t.system, t.code)
			if _, err := q.Exec(ctx, `INSERT INTO search_token
				(resource_type, resource_id, version_id, parameter_name, entry_hash, system, code, code_ci, display)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) ON CONFLICT (resource_type, resource_id, version_id, parameter_name, entry_hash) DO NOTHING`,
				res.Type, res.ID, res.VersionID, p.Code, hash, t.system, t.code, codeCI(t.system, t.code), t.display); err != nil {
				return apperr.Wrap(err, "insert reference :identifier token row")
			}
		}
	case "uri":
		for _, u := range extractURIs(coll) {
			hash := entryHash(res.Type, res.ID, res.VersionID, p.Code, u.value)
			if _, err := q.Exec(ctx, `INSERT INTO search_uri
				(resource_type, resource_id, version_id, parameter_name, entry_hash, value, value_normalized)
				VALUES ($1,$2,$3,$4,$5,$6,$7) ON CONFLICT (resource_type, resource_id, version_id, parameter_name, entry_hash) DO NOTHING`,
				res.Type, res.ID, res.VersionID, p.Code, hash, u.value, normalize(u.value)); err != nil {
				return apperr.Wrap(err, "insert search_uri row")
			}
		}
	case "composite":
		if err := ix.writeComposite(ctx, q, res, p, coll); err != nil {
			return err
		}
	case "text":
		for _, v := range coll {
			v = v.Materialize()
			if v.Kind != fhirpath.KindString {
				continue
			}
			content := htmlTagPattern.ReplaceAllString(v.Str, " ")
			hash := entryHash(res.Type, res.ID, res.VersionID, p.Code, content)
			if _, err := q.Exec(ctx, `INSERT INTO search_content
				(resource_type, resource_id, version_id, parameter_name, entry_hash, content, content_tsv)
				VALUES ($1,$2,$3,$4,$5,$6, to_tsvector('english', $6))
				ON CONFLICT (resource_type, resource_id, version_id, parameter_name, entry_hash) DO NOTHING`,
				res.Type, res.ID, res.VersionID, p.Code, hash, content); err != nil {
				return apperr.Wrap(err, "insert search_content (_text) row")
			}
		}
	case "content":
		var parts []string
		for _, item := range coll {
			descendants, err := ix.engine.Evaluate(ctx, "descendants()", item, nil)
			if err != nil {
				return apperr.Wrap(err, "evaluate descendants() for _content")
			}
			for _, d := range descendants {
				d = d.Materialize()
				if d.Kind == fhirpath.KindString {
					parts = append(parts, d.Str)
				}
			}
		}
		if len(parts) == 0 {
			return nil
		}
		content := strings.Join(parts, " ")
		hash := entryHash(res.Type, res.ID, res.VersionID, p.Code, "all")
		if _, err := q.Exec(ctx, `INSERT INTO search_content
			(resource_type, resource_id, version_id, parameter_name, entry_hash, content, content_tsv)
			VALUES ($1,$2,$3,$4,$5,$6, to_tsvector('english', $6))
			ON CONFLICT (resource_type, resource_id, version_id, parameter_name, entry_hash) DO NOTHING`,
			res.Type, res.ID, res.VersionID, p.Code, hash, content); err != nil {
			return apperr.Wrap(err, "insert search_content (_content) row")
		}
	default:
		return apperr.NotSupported("unknown search parameter type %q for %s", p.Type, p.Code)
	}
	return nil
}

// writeComposite evaluates each component's expression against the same
// element the composite's own expression selected, and stores one
// components jsonb row per tuple (spec §4.2 "composite").
func (ix *Indexer) writeComposite(ctx context.Context, q store.Querier, res *store.Resource, p Parameter, coll fhirpath.Collection) error {
	for _, item := range coll {
		components := make(map[string]interface{}, len(p.Components))
		var tupleParts []string
		for _, comp := range p.Components {
			sub, err := ix.engine.Evaluate(ctx, comp.Expression, item, nil)
			if err != nil {
				return apperr.Wrap(err, "evaluate composite component %s.%s", p.Code, comp.Code)
			}
			rendered := renderComponentValue(comp.Type, sub)
			components[comp.Code] = rendered
			tupleParts = append(tupleParts, rendered)
		}
		body, err := json.Marshal(components)
		if err != nil {
			return apperr.Wrap(err, "encode composite components")
		}
		hash := entryHash(res.Type, res.ID, res.VersionID, p.Code, tupleParts...)
		if _, err := q.Exec(ctx, `INSERT INTO search_composite
			(resource_type, resource_id, version_id, parameter_name, entry_hash, components)
			VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (resource_type, resource_id, version_id, parameter_name, entry_hash) DO NOTHING`,
			res.Type, res.ID, res.VersionID, p.Code, hash, body); err != nil {
			return apperr.Wrap(err, "insert search_composite row")
		}
	}
	return nil
}

// renderComponentValue canonicalizes one composite component's evaluated
// collection to the single string form internal/search's composite matcher
// compares against (spec §4.3 "each component value is matched against the
// corresponding slot").
func renderComponentValue(paramType string, coll fhirpath.Collection) string {
	switch paramType {
	case "token":
		tokens := extractTokens(coll)
		if len(tokens) == 0 {
			return ""
		}
		return tokens[0].system + "|" + tokens[0].code
	case "quantity":
		qs := extractQuantities(coll)
		if len(qs) == 0 {
			return ""
		}
		return fmt.Sprintf("%v|%s|%s", qs[0].value, qs[0].system, qs[0].code)
	case "date":
		ds := extractDates(coll)
		if len(ds) == 0 {
			return ""
		}
		return ds[0].start + "|" + ds[0].end
	case "number":
		ns := extractNumbers(coll)
		if len(ns) == 0 {
			return ""
		}
		return fmt.Sprintf("%v", ns[0])
	default:
		ss := extractStrings(coll)
		if len(ss) == 0 {
			return ""
		}
		return ss[0].value
	}
}
