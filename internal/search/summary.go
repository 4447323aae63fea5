package search

import "strings"

// defaultSummaryElements is the bootstrap "is summary" element set used
// until internal/snapshot's StructureDefinition walk can supply the real
// per-type flags (spec §4.3(i) "_summary=true keeps only elements flagged
// 'is summary'"). These are the elements FHIR R4 marks isSummary=true on
// DomainResource plus the most common per-type summary elements.
var defaultSummaryElements = map[string]bool{
	"resourceType": true, "id": true, "meta": true, "implicitRules": true,
	"identifier": true, "status": true, "active": true, "name": true,
	"code": true, "subject": true, "patient": true, "class": true,
	"type": true, "gender": true, "birthDate": true,
}

// ApplySummary implements the `_summary` half of spec §4.3(i).
func ApplySummary(body map[string]interface{}, mode string) map[string]interface{} {
	switch mode {
	case "true":
		return filterKeys(body, defaultSummaryElements)
	case "text":
		return filterKeys(body, map[string]bool{"resourceType": true, "id": true, "meta": true, "text": true})
	case "data":
		out := cloneShallow(body)
		delete(out, "text")
		return out
	default:
		return body
	}
}

// ApplyElements implements the `_elements=a,b` half of spec §4.3(i).
func ApplyElements(body map[string]interface{}, elements []string) map[string]interface{} {
	keep := map[string]bool{"resourceType": true, "id": true, "meta": true}
	for _, e := range elements {
		keep[strings.TrimSpace(e)] = true
	}
	return filterKeys(body, keep)
}

func filterKeys(body map[string]interface{}, keep map[string]bool) map[string]interface{} {
	out := make(map[string]interface{}, len(keep))
	for k, v := range body {
		if keep[k] {
			out[k] = v
		}
	}
	return out
}

func cloneShallow(body map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(body))
	for k, v := range body {
		out[k] = v
	}
	return out
}
