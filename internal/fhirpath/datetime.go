package fhirpath

import "strings"

// ParseDateTime parses a bare (non-`@`-prefixed) FHIR date/dateTime/time
// string — the form these values actually take inside resource JSON — into
// a Value carrying the same Kind/Prec the literal parser produces, so
// internal/index and internal/search can reuse DateInterval's precision
// widening instead of re-deriving it.
func ParseDateTime(text string) Value { return parseDateTimeLiteral(text) }

// parseDateTimeLiteral parses an `@`-prefixed FHIRPath date/dateTime/time
// literal and records its precision, per spec §4.3 "date" extraction rules
// ("smallest precision" widening is implemented by callers using Prec).
func parseDateTimeLiteral(text string) Value {
	kind := KindDate
	if strings.Contains(text, "T") {
		kind = KindDateTime
	} else if strings.HasPrefix(text, "T") {
		kind = KindTime
	}

	prec := PrecYear
	digits := 0
	for _, c := range text {
		if c >= '0' && c <= '9' {
			digits++
		}
	}
	switch {
	case strings.Contains(text, "."):
		prec = PrecMillisecond
	case strings.Count(text, ":") >= 2:
		prec = PrecSecond
	case strings.Count(text, ":") == 1:
		prec = PrecMinute
	case digits >= 8:
		prec = PrecDay
	case digits >= 6:
		prec = PrecMonth
	default:
		prec = PrecYear
	}

	return Value{Kind: kind, Str: text, Prec: prec}
}

// DateInterval returns the inclusive [start,end] interval a date/dateTime
// value covers at its stated precision, widening missing components to the
// full range per spec §4.3's "Missing precisions widen the query interval"
// rule. Both bounds are normalized ISO-8601 strings so string comparison is
// sufficient for planner predicates.
func DateInterval(v Value) (start, end string) {
	s := v.Str
	switch v.Prec {
	case PrecYear:
		return s + "-01-01T00:00:00.000", s + "-12-31T23:59:59.999"
	case PrecMonth:
		// naive last-day-of-month; callers needing calendar accuracy should
		// use time.Date with AddDate(0,1,0).Add(-1ns) instead.
		return s + "-01T00:00:00.000", s + "-" + lastDayOfMonth(s) + "T23:59:59.999"
	case PrecDay:
		return s + "T00:00:00.000", s + "T23:59:59.999"
	default:
		return s, s
	}
}

func lastDayOfMonth(yyyymm string) string {
	parts := strings.Split(yyyymm, "-")
	if len(parts) != 2 {
		return "28"
	}
	switch parts[1] {
	case "01", "03", "05", "07", "08", "10", "12":
		return "31"
	case "04", "06", "09", "11":
		return "30"
	default:
		return "28"
	}
}
