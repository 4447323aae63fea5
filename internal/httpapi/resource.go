package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ehr/internal/apperr"
	"github.com/ehr/ehr/internal/store"
)

// bindBody reads and decodes the request body as a generic FHIR resource.
func bindBody(c echo.Context) (map[string]interface{}, error) {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, apperr.Invalid("", "failed to read request body: %v", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, apperr.Invalid("", "request body is not valid JSON: %v", err)
	}
	return body, nil
}

// parseIfMatch reads the If-Match header as the weak-ETag version id spec §6
// names ("If-Match: W/\"<vid>\"").
func parseIfMatch(c echo.Context) (*int, error) {
	header := c.Request().Header.Get("If-Match")
	if header == "" {
		return nil, nil
	}
	raw := header
	if len(raw) > 4 && raw[:3] == `W/"` {
		raw = raw[3 : len(raw)-1]
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperr.Invalid("", "malformed If-Match header %q", header)
	}
	return &v, nil
}

func writeResource(c echo.Context, status int, res *store.Resource) error {
	c.Response().Header().Set("ETag", res.ETag())
	c.Response().Header().Set("Last-Modified", res.LastUpdated.UTC().Format(http.TimeFormat))
	c.Response().Header().Set("Content-Type", "application/fhir+json; charset=utf-8")
	if c.Request().Header.Get("Prefer") == "return=minimal" {
		return c.NoContent(status)
	}
	return c.JSON(status, res.Body)
}

// Create implements spec §6 "POST /{type}": plain create, or conditional
// create when If-None-Exist is present.
func (s *Server) Create(c echo.Context) error {
	resourceType := c.Param("type")
	body, err := bindBody(c)
	if err != nil {
		return err
	}

	if criteria := c.Request().Header.Get("If-None-Exist"); criteria != "" {
		res, created, err := s.Store.ConditionalCreate(c.Request().Context(), resourceType, body, criteria)
		if err != nil {
			return err
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		return writeResource(c, status, res)
	}

	res, err := s.Store.Create(c.Request().Context(), resourceType, body)
	if err != nil {
		return err
	}
	c.Response().Header().Set("Location", resourceType+"/"+res.ID+"/_history/"+strconv.Itoa(res.VersionID))
	return writeResource(c, http.StatusCreated, res)
}

// Read implements spec §6 "GET /{type}/{id}".
func (s *Server) Read(c echo.Context) error {
	res, err := s.Store.Read(c.Request().Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		return err
	}
	return writeResource(c, http.StatusOK, res)
}

// VRead implements spec §6 "GET /{type}/{id}/_history/{vid}".
func (s *Server) VRead(c echo.Context) error {
	vid, err := strconv.Atoi(c.Param("vid"))
	if err != nil {
		return apperr.Invalid("", "malformed version id %q", c.Param("vid"))
	}
	res, err := s.Store.VRead(c.Request().Context(), c.Param("type"), c.Param("id"), vid)
	if err != nil {
		return err
	}
	return writeResource(c, http.StatusOK, res)
}

// History implements spec §6 "GET /{type}/{id}/_history", rendered as a
// history-mode Bundle (spec §4.1 "history(): ... each entry carries a
// request synthesized from the stored operation").
func (s *Server) History(c echo.Context) error {
	versions, err := s.Store.History(c.Request().Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		return err
	}
	entries := make([]interface{}, 0, len(versions))
	for _, v := range versions {
		entries = append(entries, map[string]interface{}{
			"resource": v.Body,
			"request": map[string]interface{}{
				"method": store.HistoryEntryMethod(v),
				"url":    c.Param("type") + "/" + c.Param("id"),
			},
			"response": map[string]interface{}{
				"status": "200",
				"etag":   v.ETag(),
			},
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"resourceType": "Bundle",
		"type":         "history",
		"entry":        entries,
	})
}

// Update implements spec §6 "PUT /{type}/{id}": update, or update-as-create
// when the server allows it and no resource exists yet at id.
func (s *Server) Update(c echo.Context) error {
	body, err := bindBody(c)
	if err != nil {
		return err
	}
	ifMatch, err := parseIfMatch(c)
	if err != nil {
		return err
	}
	res, created, err := s.Store.Update(c.Request().Context(), c.Param("type"), c.Param("id"), body, ifMatch, true)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return writeResource(c, status, res)
}

// ConditionalUpdate implements spec §6 "PUT /{type}?<criteria>".
func (s *Server) ConditionalUpdate(c echo.Context) error {
	criteria := c.Request().URL.RawQuery
	if criteria == "" {
		return apperr.Invalid("", "conditional update requires search criteria in the query string")
	}
	body, err := bindBody(c)
	if err != nil {
		return err
	}
	res, created, err := s.Store.ConditionalUpdate(c.Request().Context(), c.Param("type"), criteria, body, c.Request().Header.Get("If-None-Match"))
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return writeResource(c, status, res)
}

// PatchResource implements spec §6 "PATCH /{type}/{id}" (JSON-Patch).
func (s *Server) PatchResource(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return apperr.Invalid("", "failed to read request body: %v", err)
	}
	ifMatch, err := parseIfMatch(c)
	if err != nil {
		return err
	}
	res, err := s.Store.Patch(c.Request().Context(), c.Param("type"), c.Param("id"), raw, ifMatch)
	if err != nil {
		return err
	}
	return writeResource(c, http.StatusOK, res)
}

// Delete implements spec §6 "DELETE /{type}/{id}" (idempotent).
func (s *Server) Delete(c echo.Context) error {
	if err := s.Store.Delete(c.Request().Context(), c.Param("type"), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ConditionalDelete implements spec §6 "DELETE /{type}?<criteria>".
func (s *Server) ConditionalDelete(c echo.Context) error {
	criteria := c.Request().URL.RawQuery
	if criteria == "" {
		return apperr.Invalid("", "conditional delete requires search criteria in the query string")
	}
	if err := s.Store.ConditionalDelete(c.Request().Context(), c.Param("type"), criteria, false); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
