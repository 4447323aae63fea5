package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ehr/internal/store"
)

func newTestResource(t *testing.T) *store.Resource {
	t.Helper()
	return &store.Resource{
		Type:        "Patient",
		ID:          "123",
		VersionID:   1,
		LastUpdated: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Body:        map[string]interface{}{"resourceType": "Patient", "id": "123"},
	}
}

func TestParseIfMatch_NoHeaderReturnsNil(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/fhir/Patient/1", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	got, err := parseIfMatch(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %v", *got)
	}
}

func TestParseIfMatch_WeakETagIsUnwrapped(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/fhir/Patient/1", nil)
	req.Header.Set("If-Match", `W/"4"`)
	c := e.NewContext(req, httptest.NewRecorder())

	got, err := parseIfMatch(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || *got != 4 {
		t.Errorf("expected 4, got %v", got)
	}
}

func TestParseIfMatch_MalformedHeaderIsInvalid(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/fhir/Patient/1", nil)
	req.Header.Set("If-Match", "not-a-version")
	c := e.NewContext(req, httptest.NewRecorder())

	if _, err := parseIfMatch(c); err == nil {
		t.Errorf("expected an error for a malformed If-Match header")
	}
}

func TestBindBody_DecodesJSON(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/fhir/Patient", strings.NewReader(`{"resourceType":"Patient","active":true}`))
	c := e.NewContext(req, httptest.NewRecorder())

	body, err := bindBody(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body["resourceType"] != "Patient" {
		t.Errorf("unexpected body: %#v", body)
	}
}

func TestBindBody_MalformedJSONIsInvalid(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/fhir/Patient", strings.NewReader(`{not json`))
	c := e.NewContext(req, httptest.NewRecorder())

	if _, err := bindBody(c); err == nil {
		t.Errorf("expected an error for malformed JSON")
	}
}

func TestWriteResource_PreferMinimalSkipsBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/fhir/Patient/1", nil)
	req.Header.Set("Prefer", "return=minimal")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	res := newTestResource(t)
	if err := writeResource(c, http.StatusOK, res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected an empty body with Prefer: return=minimal, got %q", rec.Body.String())
	}
	if rec.Header().Get("ETag") == "" {
		t.Errorf("expected an ETag header regardless of Prefer")
	}
}

func TestWriteResource_DefaultIncludesBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/fhir/Patient/1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	res := newTestResource(t)
	if err := writeResource(c, http.StatusOK, res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Body.Len() == 0 {
		t.Errorf("expected a resource body")
	}
}
