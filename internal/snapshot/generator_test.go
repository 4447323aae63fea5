package snapshot

import "testing"

func TestGenerateSnapshot_NarrowsCardinalityAndBinding(t *testing.T) {
	s := NewStore()
	one := 1
	profile := &StructureDefinition{
		URL:            "http://example.org/StructureDefinition/strict-patient",
		Type:           "Patient",
		BaseDefinition: baseURL + "Patient",
		Differential: []ElementDefinition{
			{Path: "Patient.gender", Min: &one, Binding: &ElementBinding{Strength: "required", ValueSet: "http://hl7.org/fhir/ValueSet/administrative-gender"}},
		},
	}

	expanded, err := GenerateSnapshot(s, profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var gender *ElementDefinition
	for i := range expanded.Snapshot {
		if expanded.Snapshot[i].Path == "Patient.gender" {
			gender = &expanded.Snapshot[i]
		}
	}
	if gender == nil {
		t.Fatal("expected Patient.gender in merged snapshot")
	}
	if gender.Min == nil || *gender.Min != 1 {
		t.Errorf("expected narrowed min=1, got %+v", gender.Min)
	}
	if gender.Binding == nil || gender.Binding.Strength != "required" {
		t.Errorf("expected required binding kept, got %+v", gender.Binding)
	}
}

func TestGenerateSnapshot_RejectsWidenedCardinality(t *testing.T) {
	s := NewStore()
	zero := 0
	profile := &StructureDefinition{
		URL:            "http://example.org/StructureDefinition/bad-patient",
		Type:           "Patient",
		BaseDefinition: baseURL + "Patient",
		Differential: []ElementDefinition{
			{Path: "Patient.gender", Min: &zero, Max: "2"},
		},
	}
	if _, err := GenerateSnapshot(s, profile); err == nil {
		t.Fatal("expected error widening max cardinality beyond base's 1")
	}
}

func TestGenerateSnapshot_InsertsNewSlice(t *testing.T) {
	s := NewStore()
	profile := &StructureDefinition{
		URL:            "http://example.org/StructureDefinition/mrn-patient",
		Type:           "Patient",
		BaseDefinition: baseURL + "Patient",
		Differential: []ElementDefinition{
			{Path: "Patient.identifier", Slicing: &Slicing{
				Discriminator: []Discriminator{{Type: "value", Path: "system"}}, Rules: "open",
			}},
			{Path: "Patient.identifier", SliceName: "mrn", Min: intPtr(1), Max: "1",
				Fixed: map[string]interface{}{"system": "http://example.org/mrn"}},
		},
	}

	expanded, err := GenerateSnapshot(s, profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, e := range expanded.Snapshot {
		if e.Path == "Patient.identifier" && e.SliceName == "mrn" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected mrn slice in snapshot, got %+v", expanded.Snapshot)
	}
}

func TestGenerateSnapshot_ExpandsChoiceTypes(t *testing.T) {
	s := NewStore()
	base, _ := s.Get(baseURL + "Observation")
	hasQuantity, hasString := false, false
	for _, e := range base.Snapshot {
		if e.Path == "Observation.valueQuantity" {
			hasQuantity = true
		}
		if e.Path == "Observation.valueString" {
			hasString = true
		}
	}
	if !hasQuantity || !hasString {
		t.Errorf("expected base Observation registration to expand value[x], got %+v", base.Snapshot)
	}
}

func TestGenerateSnapshot_ResolvesContentReference(t *testing.T) {
	s := NewStore()
	profile := &StructureDefinition{
		URL:            "http://example.org/StructureDefinition/nested-ext",
		Type:           "Patient",
		BaseDefinition: baseURL + "Patient",
		Differential: []ElementDefinition{
			{Path: "Patient.extension", ContentRef: "#Extension"},
		},
	}
	expanded, err := GenerateSnapshot(s, profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, e := range expanded.Snapshot {
		if e.Path == "Patient.extension.url" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Patient.extension.url inlined from Extension, got %+v", expanded.Snapshot)
	}
}

func TestGenerateSnapshot_IdempotentWhenSnapshotAlreadyPresent(t *testing.T) {
	s := NewStore()
	sd := &StructureDefinition{
		URL:      "http://example.org/StructureDefinition/already-expanded",
		Type:     "Patient",
		Snapshot: []ElementDefinition{{Path: "Patient"}},
	}
	out, err := GenerateSnapshot(s, sd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Snapshot) != 1 {
		t.Errorf("expected snapshot left untouched, got %+v", out.Snapshot)
	}
}
