package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ehr/ehr/internal/apperr"
)

// BundleEntry is one entry of a batch or transaction Bundle, reduced to the
// fields the orchestrator needs; internal/httpapi builds these from the
// parsed FHIR Bundle JSON.
type BundleEntry struct {
	FullURL      string // "urn:uuid:..." or absolute/relative, for transaction URL rewriting
	Method       string // POST, PUT, PATCH, DELETE, GET
	URL          string // request.url, e.g. "Patient" or "Patient/123" or "Patient?identifier=..."
	ResourceType string
	ID           string
	IfMatch      *int
	IfNoneExist  string
	IfNoneMatch  string
	Body         map[string]interface{}
	PatchDoc     []byte
}

// BundleEntryResult is the outcome of one processed entry.
type BundleEntryResult struct {
	Status   string
	Location string
	ETag     string
	Resource *Resource
	Err      error
}

// entryClass orders transaction processing per spec §4.1 "Transaction order:
// deletes -> creates -> updates -> patches -> reads/searches".
func entryClass(method string) int {
	switch strings.ToUpper(method) {
	case "DELETE":
		return 0
	case "POST":
		return 1
	case "PUT":
		return 2
	case "PATCH":
		return 3
	default:
		return 4
	}
}

// ProcessBatch implements spec §4.1 "A batch processes entries independently
// and sequentially; each entry succeeds or fails in isolation".
func (s *Store) ProcessBatch(ctx context.Context, entries []BundleEntry) []BundleEntryResult {
	results := make([]BundleEntryResult, len(entries))
	for i, e := range entries {
		results[i] = s.processEntry(ctx, e)
	}
	return results
}

// ProcessTransaction implements spec §4.1 "A transaction is atomic ... URL
// rewriting across entries is required ... Each transaction runs inside a
// single database transaction; indexing happens lazily after commit" — here
// "lazily" means within the same transaction but after the entry's own write,
// which is how internal/index is wired through Store.put/Delete already; the
// important atomicity property (all-or-nothing) comes from running every
// entry inside one transaction and rolling back on the first error.
func (s *Store) ProcessTransaction(ctx context.Context, entries []BundleEntry) ([]BundleEntryResult, error) {
	ordered := make([]int, len(entries))
	for i := range ordered {
		ordered[i] = i
	}
	stableSortByClass(ordered, entries)

	results := make([]BundleEntryResult, len(entries))
	urnMap := map[string]string{}

	txErr := s.withTx(ctx, func(ctx context.Context, _ Querier) error {
		for _, idx := range ordered {
			e := entries[idx]
			rewriteURNReferences(e.Body, urnMap)
			res := s.processEntry(ctx, e)
			if res.Err != nil {
				return res.Err
			}
			results[idx] = res
			if e.FullURL != "" && strings.HasPrefix(e.FullURL, "urn:uuid:") && res.Resource != nil {
				urnMap[e.FullURL] = res.Resource.Type + "/" + res.Resource.ID
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, apperr.Wrap(txErr, "transaction bundle aborted")
	}
	return results, nil
}

func stableSortByClass(order []int, entries []BundleEntry) {
	// insertion sort: stable, and transaction bundles are small (a handful to
	// a few hundred entries), so O(n^2) worst case is not a concern here.
	for i := 1; i < len(order); i++ {
		j := i
		for j > 0 && entryClass(entries[order[j-1]].Method) > entryClass(entries[order[j]].Method) {
			order[j-1], order[j] = order[j], order[j-1]
			j--
		}
	}
}

// rewriteURNReferences replaces any Reference.reference equal to a urn:uuid
// created earlier in the same transaction with the literal reference that
// entry was assigned (spec §4.1 "any fullUrl of the form urn:uuid:... that is
// created by an entry replaces references to that URL in later entries").
func rewriteURNReferences(node interface{}, urnMap map[string]string) {
	switch v := node.(type) {
	case map[string]interface{}:
		if ref, ok := v["reference"].(string); ok {
			if literal, found := urnMap[ref]; found {
				v["reference"] = literal
			}
		}
		for _, child := range v {
			rewriteURNReferences(child, urnMap)
		}
	case []interface{}:
		for _, child := range v {
			rewriteURNReferences(child, urnMap)
		}
	}
}

func (s *Store) processEntry(ctx context.Context, e BundleEntry) BundleEntryResult {
	switch strings.ToUpper(e.Method) {
	case "POST":
		if e.ResourceType == "" {
			return BundleEntryResult{Err: apperr.Invalid("", "batch POST entry missing resource type")}
		}
		if err := s.resolveConditionalReferences(ctx, e.Body); err != nil {
			return BundleEntryResult{Err: err}
		}
		res, _, err := s.ConditionalCreate(ctx, e.ResourceType, e.Body, e.IfNoneExist)
		return entryResult(res, err, "201 Created")
	case "PUT":
		if err := s.resolveConditionalReferences(ctx, e.Body); err != nil {
			return BundleEntryResult{Err: err}
		}
		if e.ID != "" {
			res, created, err := s.Update(ctx, e.ResourceType, e.ID, e.Body, e.IfMatch, true)
			status := "200 OK"
			if created {
				status = "201 Created"
			}
			return entryResult(res, err, status)
		}
		res, created, err := s.ConditionalUpdate(ctx, e.ResourceType, criteriaFromURL(e.URL), e.Body, e.IfNoneMatch)
		status := "200 OK"
		if created {
			status = "201 Created"
		}
		return entryResult(res, err, status)
	case "PATCH":
		res, err := s.Patch(ctx, e.ResourceType, e.ID, e.PatchDoc, e.IfMatch)
		return entryResult(res, err, "200 OK")
	case "DELETE":
		if e.ID != "" {
			err := s.Delete(ctx, e.ResourceType, e.ID)
			return BundleEntryResult{Status: "204 No Content", Err: err}
		}
		err := s.ConditionalDelete(ctx, e.ResourceType, criteriaFromURL(e.URL), false)
		return BundleEntryResult{Status: "204 No Content", Err: err}
	case "GET":
		var res *Resource
		var err error
		if e.ID != "" {
			res, err = s.Read(ctx, e.ResourceType, e.ID)
		} else {
			err = apperr.NotSupported("GET entries in a bundle require internal/search, not wired at the store layer")
		}
		return entryResult(res, err, "200 OK")
	default:
		return BundleEntryResult{Err: apperr.NotSupported("unsupported bundle entry method %q", e.Method)}
	}
}

func entryResult(res *Resource, err error, status string) BundleEntryResult {
	if err != nil {
		return BundleEntryResult{Err: err}
	}
	return BundleEntryResult{
		Status:   status,
		Location: fmt.Sprintf("%s/%s/_history/%d", res.Type, res.ID, res.VersionID),
		ETag:     res.ETag(),
		Resource: res,
	}
}

func criteriaFromURL(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[i+1:]
	}
	return ""
}
