package httpapi

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequestQuery_GETUsesQueryString(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/fhir/Patient?name=Smith", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	q, err := requestQuery(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Get("name") != "Smith" {
		t.Errorf("expected name=Smith, got %v", q)
	}
}

func TestRequestQuery_POSTSearchUsesFormBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/fhir/Patient/_search", strings.NewReader("name=Smith"))
	req.Header.Set(echo.HeaderContentType, "application/x-www-form-urlencoded")
	c := e.NewContext(req, httptest.NewRecorder())

	q, err := requestQuery(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Get("name") != "Smith" {
		t.Errorf("expected name=Smith, got %v", q)
	}
}

func TestCloneQuery_IsIndependentOfSource(t *testing.T) {
	original := url.Values{"name": []string{"Smith"}}
	clone := cloneQuery(original)
	clone.Set("name", "Jones")
	if original.Get("name") != "Smith" {
		t.Errorf("expected original query to be unaffected by mutating the clone, got %v", original)
	}
}

func TestEntryQueryString_SplitsOffQuery(t *testing.T) {
	if got := entryQueryString("Patient?name=Smith"); got != "name=Smith" {
		t.Errorf("expected %q, got %q", "name=Smith", got)
	}
	if got := entryQueryString("Patient"); got != "" {
		t.Errorf("expected empty string for a url with no query, got %q", got)
	}
}
