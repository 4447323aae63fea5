package search

import (
	"strings"
	"testing"
)

func TestParsePrefix(t *testing.T) {
	tests := []struct {
		input  string
		prefix Prefix
		value  string
	}{
		{"2024-01-01", PrefixEq, "2024-01-01"},
		{"gt2024-01-01", PrefixGt, "2024-01-01"},
		{"le100", PrefixLe, "100"},
		{"sa5", PrefixSa, "5"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, v := ParsePrefix(tt.input)
			if p != tt.prefix || v != tt.value {
				t.Errorf("ParsePrefix(%q) = (%q,%q), want (%q,%q)", tt.input, p, v, tt.prefix, tt.value)
			}
		})
	}
}

func TestTokenClause_SystemAndCode(t *testing.T) {
	argIdx := 1
	var args []interface{}
	sql := TokenClause("http://loinc.org|789-8", &argIdx, &args)
	if !strings.Contains(sql, "sp.system = $1") || !strings.Contains(sql, "sp.code_ci = $2") {
		t.Errorf("unexpected sql: %s", sql)
	}
	if len(args) != 2 || args[1] != "789-8" {
		t.Errorf("unexpected args: %+v", args)
	}
}

func TestTokenClause_CaseSensitiveSystemPreservesCase(t *testing.T) {
	argIdx := 1
	var args []interface{}
	TokenClause("http://loinc.org|ABC", &argIdx, &args)
	if args[1] != "ABC" {
		t.Errorf("expected LOINC code to stay uppercase, got %v", args[1])
	}
}

func TestTokenClause_CodeOnlyFoldsCase(t *testing.T) {
	argIdx := 1
	var args []interface{}
	TokenClause("ABC", &argIdx, &args)
	if args[0] != "abc" {
		t.Errorf("expected code-only match to fold case, got %v", args[0])
	}
}

func TestStringClause_DefaultIsPrefix(t *testing.T) {
	argIdx := 1
	var args []interface{}
	sql := StringClause("Smith", ModNone, &argIdx, &args)
	if !strings.Contains(sql, "value_normalized LIKE") {
		t.Errorf("unexpected sql: %s", sql)
	}
	if args[0] != "smith%" {
		t.Errorf("unexpected args: %+v", args)
	}
}

func TestStringClause_Exact(t *testing.T) {
	argIdx := 1
	var args []interface{}
	sql := StringClause("Smith", ModExact, &argIdx, &args)
	if !strings.Contains(sql, "sp.value =") {
		t.Errorf("unexpected sql: %s", sql)
	}
	if args[0] != "Smith" {
		t.Errorf("expected exact match to keep original case, got %v", args[0])
	}
}

func TestNumberClause_EqUsesEpsilonAtQueryPrecision(t *testing.T) {
	argIdx := 1
	var args []interface{}
	NumberClause("5.40", &argIdx, &args)
	lo, hi := args[0].(float64), args[1].(float64)
	if hi-lo >= 0.011 {
		t.Errorf("expected epsilon around 0.005 each side, got lo=%v hi=%v", lo, hi)
	}
}

func TestQuantityClause_UnitOrCodeMatches(t *testing.T) {
	argIdx := 1
	var args []interface{}
	sql := QuantityClause("70.5|http://unitsofmeasure.org|kg", &argIdx, &args)
	if !strings.Contains(sql, "sp.system =") || !strings.Contains(sql, "sp.code = ") {
		t.Errorf("unexpected sql: %s", sql)
	}
}

func TestURIClause_StripsTrailingSlash(t *testing.T) {
	argIdx := 1
	var args []interface{}
	URIClause("http://example.org/fhir/", ModNone, &argIdx, &args)
	if args[0] != "http://example.org/fhir" {
		t.Errorf("unexpected args: %+v", args)
	}
}

func TestReferenceClause_BareID(t *testing.T) {
	argIdx := 1
	var args []interface{}
	sql := ReferenceClause("123", "", &argIdx, &args)
	if !strings.Contains(sql, "sp.target_id = $1") {
		t.Errorf("unexpected sql: %s", sql)
	}
}

func TestReferenceClause_TypeSlashID(t *testing.T) {
	argIdx := 1
	var args []interface{}
	sql := ReferenceClause("Patient/123", "", &argIdx, &args)
	if !strings.Contains(sql, "sp.target_type = $1") || !strings.Contains(sql, "sp.target_id = $2") {
		t.Errorf("unexpected sql: %s", sql)
	}
	if args[0] != "Patient" || args[1] != "123" {
		t.Errorf("unexpected args: %+v", args)
	}
}

func TestReferenceClause_Canonical(t *testing.T) {
	argIdx := 1
	var args []interface{}
	sql := ReferenceClause("http://example.org/sd|1.2", "", &argIdx, &args)
	if !strings.Contains(sql, "sp.canonical_url") || !strings.Contains(sql, "sp.canonical_version") {
		t.Errorf("unexpected sql: %s", sql)
	}
	if args[1] != "1.2%" {
		t.Errorf("expected version prefix match, got %v", args[1])
	}
}

func TestParseCount_ClampsToMax(t *testing.T) {
	if got := ParseCount("9999", 20, 500); got != 500 {
		t.Errorf("expected clamp to 500, got %d", got)
	}
}

func TestParseCount_DefaultsOnEmpty(t *testing.T) {
	if got := ParseCount("", 20, 500); got != 20 {
		t.Errorf("expected default 20, got %d", got)
	}
}
