package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ehr/internal/apperr"
	"github.com/ehr/ehr/internal/snapshot"
)

// operationOutcome renders a single-issue OperationOutcome resource, the
// error body shape spec §7 requires for every user-visible failure.
func operationOutcome(severity, code, diagnostics, location string) map[string]interface{} {
	issue := map[string]interface{}{
		"severity":    severity,
		"code":        code,
		"diagnostics": diagnostics,
	}
	if location != "" {
		issue["expression"] = []string{location}
	}
	return map[string]interface{}{
		"resourceType": "OperationOutcome",
		"issue":        []interface{}{issue},
	}
}

// outcomeFromIssues renders a Validator's flat ValidationIssue list as one
// OperationOutcome (spec §4.5/§8 "validate(): ... all violated invariants
// reported, not just the first").
func outcomeFromIssues(issues []snapshot.ValidationIssue) map[string]interface{} {
	out := make([]interface{}, 0, len(issues))
	for _, iss := range issues {
		issue := map[string]interface{}{
			"severity":    iss.Severity,
			"code":        iss.Code,
			"diagnostics": iss.Diagnostics,
		}
		if iss.Location != "" {
			issue["expression"] = []string{iss.Location}
		}
		out = append(out, issue)
	}
	return map[string]interface{}{
		"resourceType": "OperationOutcome",
		"issue":        out,
	}
}

// errorHandler is the Echo HTTPErrorHandler that turns any error bubbling up
// from a handler into the status code + OperationOutcome body spec §7
// mandates, adding WWW-Authenticate for authentication failures and the
// current ETag for optimistic-concurrency conflicts.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		status := ae.Status_()
		if ae.Code == apperr.CodeLogin {
			c.Response().Header().Set("WWW-Authenticate", "Bearer")
		}
		if ae.CurrentETag != "" {
			c.Response().Header().Set("ETag", ae.CurrentETag)
		}
		c.JSON(status, operationOutcome("error", string(ae.Code), ae.Error(), ae.Location))
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, _ := he.Message.(string)
		c.JSON(he.Code, operationOutcome("error", "exception", msg, ""))
		return
	}

	s.Log.Error().Err(err).Str("path", c.Path()).Msg("unhandled request error")
	c.JSON(http.StatusInternalServerError, operationOutcome("error", "exception", err.Error(), ""))
}
