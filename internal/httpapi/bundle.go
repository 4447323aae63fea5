package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ehr/internal/apperr"
	"github.com/ehr/ehr/internal/store"
)

// bundleEntryJSON is the wire shape of one Bundle.entry, grounded on the
// teacher's internal/platform/fhir/bundle_handler.go BundleEntry/BundleRequest
// types, reduced to what parsing a batch/transaction entry needs.
type bundleEntryJSON struct {
	FullURL  string                 `json:"fullUrl"`
	Resource map[string]interface{} `json:"resource"`
	Request  *bundleRequestJSON     `json:"request"`
}

type bundleRequestJSON struct {
	Method      string `json:"method"`
	URL         string `json:"url"`
	IfMatch     string `json:"ifMatch"`
	IfNoneMatch string `json:"ifNoneMatch"`
	IfNoneExist string `json:"ifNoneExist"`
}

type bundleJSON struct {
	ResourceType string            `json:"resourceType"`
	Type         string            `json:"type"`
	Entry        []bundleEntryJSON `json:"entry"`
}

// outcome is the rendered result of one entry, whichever path produced it:
// internal/store's batch/transaction processor for writes and plain reads, or
// internal/search's Planner for entries that search (see search.go's handler
// comment on why a bundled GET-with-query needs a separate path from
// internal/store.ProcessEntry's own GET case).
type outcome struct {
	status   string
	location string
	etag     string
	body     map[string]interface{}
	err      error
}

// ProcessBundle implements spec §6 "POST /" (batch and transaction Bundle
// submission). Entries are parsed into internal/store.BundleEntry and
// dispatched to ProcessBatch/ProcessTransaction, except GET entries carrying
// search parameters, which internal/store's orchestrator cannot execute on
// its own (spec §4.1 "a GET entry with search parameters resolves through the
// same search planner a direct request would use") — those are resolved here
// against internal/search.Planner instead, and spliced back into the response
// Bundle in original entry order.
func (s *Server) ProcessBundle(c echo.Context) error {
	body, err := bindBody(c)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return apperr.Invalid("", "malformed bundle: %v", err)
	}
	var bundle bundleJSON
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return apperr.Invalid("", "malformed bundle: %v", err)
	}
	if bundle.ResourceType != "Bundle" {
		return apperr.Invalid("resourceType", "expected a Bundle resource, got %q", bundle.ResourceType)
	}
	switch bundle.Type {
	case "batch", "transaction":
	default:
		return apperr.Invalid("type", "bundle type must be \"batch\" or \"transaction\", got %q", bundle.Type)
	}

	ctx := c.Request().Context()
	entries := make([]store.BundleEntry, len(bundle.Entry))
	searchOnly := make([]bool, len(bundle.Entry))
	for i, e := range bundle.Entry {
		entry, isSearch, err := parseBundleEntry(e)
		if err != nil {
			return err
		}
		entries[i] = entry
		searchOnly[i] = isSearch
	}

	results := make([]outcome, len(entries))

	// Search entries run first and independently of the write path; a search
	// bundled alongside writes observes the pre-transaction state, matching
	// how internal/httpapi's Server resolves searches directly against the
	// connection pool rather than through a Store-held transaction (see the
	// comment on Server.Query in search.go).
	for i, entry := range entries {
		if !searchOnly[i] {
			continue
		}
		out, err := s.resolveBundleSearch(ctx, entry)
		if err != nil {
			out = outcome{err: err}
		}
		results[i] = out
	}

	writeIdx := make([]int, 0, len(entries))
	writeEntries := make([]store.BundleEntry, 0, len(entries))
	for i, entry := range entries {
		if searchOnly[i] {
			continue
		}
		writeIdx = append(writeIdx, i)
		writeEntries = append(writeEntries, entry)
	}

	if len(writeEntries) > 0 {
		if bundle.Type == "transaction" {
			writeResults, err := s.Store.ProcessTransaction(ctx, writeEntries)
			if err != nil {
				return err
			}
			for j, r := range writeResults {
				results[writeIdx[j]] = outcomeFromEntryResult(r)
			}
		} else {
			writeResults := s.Store.ProcessBatch(ctx, writeEntries)
			for j, r := range writeResults {
				results[writeIdx[j]] = outcomeFromEntryResult(r)
			}
		}
	}

	respType := "batch-response"
	if bundle.Type == "transaction" {
		respType = "transaction-response"
	}
	return c.JSON(http.StatusOK, renderBundleResponse(respType, results))
}

func outcomeFromEntryResult(r store.BundleEntryResult) outcome {
	if r.Err != nil {
		return outcome{err: r.Err}
	}
	out := outcome{status: r.Status, location: r.Location, etag: r.ETag}
	if r.Resource != nil {
		out.body = r.Resource.Body
	}
	return out
}

// parseBundleEntry converts one Bundle.entry into a store.BundleEntry, and
// reports whether it is a GET carrying search parameters rather than an
// instance read.
func parseBundleEntry(e bundleEntryJSON) (store.BundleEntry, bool, error) {
	if e.Request == nil {
		return store.BundleEntry{}, false, apperr.Invalid("", "bundle entry missing request")
	}
	method := strings.ToUpper(e.Request.Method)
	rawURL := strings.TrimPrefix(e.Request.URL, "/")
	path := rawURL
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}
	parts := strings.SplitN(path, "/", 2)
	resourceType := parts[0]
	id := ""
	if len(parts) == 2 {
		id = parts[1]
	}

	entry := store.BundleEntry{
		FullURL:      e.FullURL,
		Method:       method,
		URL:          rawURL,
		ResourceType: resourceType,
		ID:           id,
		Body:         e.Resource,
		IfNoneExist:  e.Request.IfNoneExist,
		IfNoneMatch:  e.Request.IfNoneMatch,
	}
	if e.Request.IfMatch != "" {
		v, err := strconv.Atoi(strings.Trim(e.Request.IfMatch, `W/"`))
		if err != nil {
			return store.BundleEntry{}, false, apperr.Invalid("", "malformed ifMatch in bundle entry %q", e.Request.IfMatch)
		}
		entry.IfMatch = &v
	}
	if method == "PATCH" && e.Resource != nil {
		doc, err := json.Marshal(e.Resource)
		if err != nil {
			return store.BundleEntry{}, false, apperr.Invalid("", "malformed patch document in bundle entry: %v", err)
		}
		entry.PatchDoc = doc
	}

	isSearch := method == "GET" && id == ""
	return entry, isSearch, nil
}

func (s *Server) resolveBundleSearch(ctx context.Context, entry store.BundleEntry) (outcome, error) {
	query, err := url.ParseQuery(entryQueryString(entry.URL))
	if err != nil {
		return outcome{}, apperr.Invalid("", "malformed search url in bundle entry %q", entry.URL)
	}
	result, err := s.Planner.Search(ctx, s, entry.ResourceType, query)
	if err != nil {
		return outcome{}, err
	}
	body := map[string]interface{}{
		"resourceType": "Bundle",
		"type":         "searchset",
	}
	if result.Total != nil {
		body["total"] = *result.Total
	}
	sub := make([]interface{}, 0, len(result.Entries))
	for _, e := range result.Entries {
		sub = append(sub, map[string]interface{}{
			"fullUrl":  s.BaseURL + "/" + e.Resource.Type + "/" + e.Resource.ID,
			"resource": e.Resource.Body,
			"search":   map[string]interface{}{"mode": e.Mode},
		})
	}
	body["entry"] = sub
	return outcome{status: "200 OK", body: body}, nil
}

func entryQueryString(rawURL string) string {
	if idx := strings.IndexByte(rawURL, '?'); idx != -1 {
		return rawURL[idx+1:]
	}
	return ""
}

// renderBundleResponse assembles the batch-response/transaction-response
// Bundle spec §6 requires: one entry per request entry, each carrying a
// response.status and, on success, the resulting resource.
func renderBundleResponse(bundleType string, results []outcome) map[string]interface{} {
	entries := make([]interface{}, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			entries = append(entries, map[string]interface{}{
				"response": map[string]interface{}{
					"status":  strconv.Itoa(apperr.StatusOf(r.err)),
					"outcome": outcomeFromError(r.err),
				},
			})
			continue
		}
		response := map[string]interface{}{
			"status": r.status,
		}
		if r.location != "" {
			response["location"] = r.location
		}
		if r.etag != "" {
			response["etag"] = r.etag
		}
		entry := map[string]interface{}{"response": response}
		if r.body != nil {
			entry["resource"] = r.body
		}
		entries = append(entries, entry)
	}
	return map[string]interface{}{
		"resourceType": "Bundle",
		"type":         bundleType,
		"entry":        entries,
	}
}

func outcomeFromError(err error) map[string]interface{} {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return operationOutcome("error", string(ae.Code), ae.Error(), ae.Location)
	}
	return operationOutcome("error", "exception", err.Error(), "")
}
