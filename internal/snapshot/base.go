package snapshot

const baseURL = "http://hl7.org/fhir/StructureDefinition/"

func intPtr(v int) *int { return &v }

// commonElements are the DomainResource fields every base resource carries.
func commonElements(typeName string) []ElementDefinition {
	return []ElementDefinition{
		{ID: typeName, Path: typeName, Short: typeName + " resource", Min: intPtr(0), Max: "*"},
		{ID: typeName + ".id", Path: typeName + ".id", Short: "Logical id", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "id"}}},
		{ID: typeName + ".meta", Path: typeName + ".meta", Short: "Metadata", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "Meta"}}},
		{ID: typeName + ".text", Path: typeName + ".text", Short: "Narrative", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "Narrative"}}},
		{ID: typeName + ".extension", Path: typeName + ".extension", Short: "Additional content", Min: intPtr(0), Max: "*", Types: []ElementType{{Code: "Extension"}}},
	}
}

func registerResource(s *Store, typeName, description string, elements ...ElementDefinition) {
	sd := &StructureDefinition{
		URL:            baseURL + typeName,
		Name:           typeName,
		Type:           typeName,
		Kind:           "resource",
		Derivation:     "specialization",
		BaseDefinition: baseURL + "DomainResource",
		Snapshot:       append(commonElements(typeName), elements...),
	}
	s.Register(sd)
	_ = description
}

// registerBaseDefinitions seeds the store with hand-built base FHIR R4
// StructureDefinitions for the resource types internal/index's static
// registry also knows about, so GenerateSnapshot always has a base to
// derive profiles from without a network fetch (spec §1 Non-goals:
// terminology/registry network lookups are out of scope; base structures
// ship with the server).
func registerBaseDefinitions(s *Store) {
	registerResource(s, "Patient", "Demographics and administrative information about an individual receiving care.",
		ElementDefinition{ID: "Patient.identifier", Path: "Patient.identifier", Short: "An identifier for this patient", Min: intPtr(0), Max: "*", Types: []ElementType{{Code: "Identifier"}}},
		ElementDefinition{ID: "Patient.active", Path: "Patient.active", Short: "Whether record is active", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "boolean"}}},
		ElementDefinition{ID: "Patient.name", Path: "Patient.name", Short: "A name for the patient", Min: intPtr(0), Max: "*", Types: []ElementType{{Code: "HumanName"}}},
		ElementDefinition{ID: "Patient.gender", Path: "Patient.gender", Short: "male | female | other | unknown", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "code"}},
			Binding: &ElementBinding{Strength: "required", ValueSet: "http://hl7.org/fhir/ValueSet/administrative-gender"}},
		ElementDefinition{ID: "Patient.birthDate", Path: "Patient.birthDate", Short: "Date of birth", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "date"}}},
		ElementDefinition{ID: "Patient.address", Path: "Patient.address", Short: "Addresses for the individual", Min: intPtr(0), Max: "*", Types: []ElementType{{Code: "Address"}}},
		ElementDefinition{ID: "Patient.telecom", Path: "Patient.telecom", Short: "Contact details", Min: intPtr(0), Max: "*", Types: []ElementType{{Code: "ContactPoint"}}},
	)

	registerResource(s, "Observation", "Measurements and simple assertions made about a patient.",
		ElementDefinition{ID: "Observation.status", Path: "Observation.status", Short: "registered | preliminary | final | amended +", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "code"}},
			Binding: &ElementBinding{Strength: "required", ValueSet: "http://hl7.org/fhir/ValueSet/observation-status"}},
		ElementDefinition{ID: "Observation.category", Path: "Observation.category", Short: "Classification of type of observation", Min: intPtr(0), Max: "*", Types: []ElementType{{Code: "CodeableConcept"}}},
		ElementDefinition{ID: "Observation.code", Path: "Observation.code", Short: "Type of observation", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "CodeableConcept"}}},
		ElementDefinition{ID: "Observation.subject", Path: "Observation.subject", Short: "Who this is about", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "Reference", TargetProfile: []string{baseURL + "Patient"}}}},
		ElementDefinition{ID: "Observation.value[x]", Path: "Observation.value[x]", Short: "Actual result", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "Quantity"}, {Code: "string"}, {Code: "CodeableConcept"}}},
		ElementDefinition{ID: "Observation.effective[x]", Path: "Observation.effective[x]", Short: "Clinically relevant time", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "dateTime"}, {Code: "Period"}}},
		ElementDefinition{ID: "Observation.component", Path: "Observation.component", Short: "Component results", Min: intPtr(0), Max: "*", Types: []ElementType{{Code: "BackboneElement"}}},
	)

	registerResource(s, "Condition", "A clinical condition, problem, diagnosis, or other event.",
		ElementDefinition{ID: "Condition.clinicalStatus", Path: "Condition.clinicalStatus", Short: "active | recurrence | relapse | inactive | remission | resolved", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "CodeableConcept"}}},
		ElementDefinition{ID: "Condition.verificationStatus", Path: "Condition.verificationStatus", Short: "unconfirmed | provisional | confirmed | refuted | entered-in-error", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "CodeableConcept"}}},
		ElementDefinition{ID: "Condition.code", Path: "Condition.code", Short: "Identification of the condition", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "CodeableConcept"}}},
		ElementDefinition{ID: "Condition.subject", Path: "Condition.subject", Short: "Who has the condition", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "Reference", TargetProfile: []string{baseURL + "Patient"}}}},
		ElementDefinition{ID: "Condition.onset[x]", Path: "Condition.onset[x]", Short: "Estimated or actual onset", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "dateTime"}, {Code: "Age"}, {Code: "Period"}}},
	)

	registerResource(s, "Encounter", "An interaction between a patient and healthcare provider(s).",
		ElementDefinition{ID: "Encounter.status", Path: "Encounter.status", Short: "planned | arrived | in-progress | finished | cancelled +", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "code"}},
			Binding: &ElementBinding{Strength: "required", ValueSet: "http://hl7.org/fhir/ValueSet/encounter-status"}},
		ElementDefinition{ID: "Encounter.class", Path: "Encounter.class", Short: "Classification of the encounter", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "Coding"}}},
		ElementDefinition{ID: "Encounter.subject", Path: "Encounter.subject", Short: "The patient present at the encounter", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "Reference", TargetProfile: []string{baseURL + "Patient"}}}},
		ElementDefinition{ID: "Encounter.period", Path: "Encounter.period", Short: "Start and end time", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "Period"}}},
		ElementDefinition{ID: "Encounter.reasonCode", Path: "Encounter.reasonCode", Short: "Coded reason the encounter takes place", Min: intPtr(0), Max: "*", Types: []ElementType{{Code: "CodeableConcept"}}},
	)

	registerResource(s, "MedicationRequest", "An order or request for a medication.",
		ElementDefinition{ID: "MedicationRequest.status", Path: "MedicationRequest.status", Short: "active | on-hold | cancelled | completed +", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "code"}}},
		ElementDefinition{ID: "MedicationRequest.intent", Path: "MedicationRequest.intent", Short: "proposal | plan | order +", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "code"}}},
		ElementDefinition{ID: "MedicationRequest.medication[x]", Path: "MedicationRequest.medication[x]", Short: "Medication to be taken", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "CodeableConcept"}, {Code: "Reference"}}},
		ElementDefinition{ID: "MedicationRequest.subject", Path: "MedicationRequest.subject", Short: "Who the request is for", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "Reference", TargetProfile: []string{baseURL + "Patient"}}}},
		ElementDefinition{ID: "MedicationRequest.dosageInstruction", Path: "MedicationRequest.dosageInstruction", Short: "How the medication should be taken", Min: intPtr(0), Max: "*", Types: []ElementType{{Code: "Dosage"}}},
	)

	registerResource(s, "Procedure", "An action that is or was performed on or for a patient.",
		ElementDefinition{ID: "Procedure.status", Path: "Procedure.status", Short: "preparation | in-progress | completed +", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "code"}}},
		ElementDefinition{ID: "Procedure.code", Path: "Procedure.code", Short: "Identification of the procedure", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "CodeableConcept"}}},
		ElementDefinition{ID: "Procedure.subject", Path: "Procedure.subject", Short: "Who the procedure was performed on", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "Reference", TargetProfile: []string{baseURL + "Patient"}}}},
		ElementDefinition{ID: "Procedure.performed[x]", Path: "Procedure.performed[x]", Short: "When performed", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "dateTime"}, {Code: "Period"}}},
	)

	registerResource(s, "DiagnosticReport", "The findings and interpretation of diagnostic tests.",
		ElementDefinition{ID: "DiagnosticReport.status", Path: "DiagnosticReport.status", Short: "registered | partial | preliminary | final +", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "code"}}},
		ElementDefinition{ID: "DiagnosticReport.code", Path: "DiagnosticReport.code", Short: "Name/Code for this report", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "CodeableConcept"}}},
		ElementDefinition{ID: "DiagnosticReport.subject", Path: "DiagnosticReport.subject", Short: "The subject of the report", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "Reference", TargetProfile: []string{baseURL + "Patient"}}}},
		ElementDefinition{ID: "DiagnosticReport.result", Path: "DiagnosticReport.result", Short: "Observations", Min: intPtr(0), Max: "*", Types: []ElementType{{Code: "Reference", TargetProfile: []string{baseURL + "Observation"}}}},
	)

	registerResource(s, "Practitioner", "A person directly or indirectly involved in the provisioning of healthcare.",
		ElementDefinition{ID: "Practitioner.identifier", Path: "Practitioner.identifier", Short: "An identifier for the person", Min: intPtr(0), Max: "*", Types: []ElementType{{Code: "Identifier"}}},
		ElementDefinition{ID: "Practitioner.active", Path: "Practitioner.active", Short: "Whether record is active", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "boolean"}}},
		ElementDefinition{ID: "Practitioner.name", Path: "Practitioner.name", Short: "The name(s) of the practitioner", Min: intPtr(0), Max: "*", Types: []ElementType{{Code: "HumanName"}}},
	)

	registerResource(s, "Organization", "A formally or informally recognized grouping of people or organizations.",
		ElementDefinition{ID: "Organization.identifier", Path: "Organization.identifier", Short: "Identifies this organization across systems", Min: intPtr(0), Max: "*", Types: []ElementType{{Code: "Identifier"}}},
		ElementDefinition{ID: "Organization.active", Path: "Organization.active", Short: "Whether the organization is still active", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "boolean"}}},
		ElementDefinition{ID: "Organization.name", Path: "Organization.name", Short: "Name of the organization", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "string"}}},
	)

	registerResource(s, "AllergyIntolerance", "Risk of harmful or undesirable reaction to a substance.",
		ElementDefinition{ID: "AllergyIntolerance.clinicalStatus", Path: "AllergyIntolerance.clinicalStatus", Short: "active | inactive | resolved", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "CodeableConcept"}}},
		ElementDefinition{ID: "AllergyIntolerance.code", Path: "AllergyIntolerance.code", Short: "Code that identifies the allergy", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "CodeableConcept"}}},
		ElementDefinition{ID: "AllergyIntolerance.patient", Path: "AllergyIntolerance.patient", Short: "Who the sensitivity is for", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "Reference", TargetProfile: []string{baseURL + "Patient"}}}},
	)

	registerResource(s, "Immunization", "Describes the event of a patient being administered a vaccine.",
		ElementDefinition{ID: "Immunization.status", Path: "Immunization.status", Short: "completed | entered-in-error | not-done", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "code"}}},
		ElementDefinition{ID: "Immunization.vaccineCode", Path: "Immunization.vaccineCode", Short: "Vaccine product administered", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "CodeableConcept"}}},
		ElementDefinition{ID: "Immunization.patient", Path: "Immunization.patient", Short: "Who was immunized", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "Reference", TargetProfile: []string{baseURL + "Patient"}}}},
	)

	registerResource(s, "Location", "Details and position information for a physical place.",
		ElementDefinition{ID: "Location.status", Path: "Location.status", Short: "active | suspended | inactive", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "code"}}},
		ElementDefinition{ID: "Location.name", Path: "Location.name", Short: "Name of the location", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "string"}}},
		ElementDefinition{ID: "Location.address", Path: "Location.address", Short: "Physical location", Min: intPtr(0), Max: "1", Types: []ElementType{{Code: "Address"}}},
	)

	// Extension is its own base; registered separately because contentReference
	// resolution (spec §4.5 step 5, "cycle detection ... default 1 level into
	// recursive types like Extension") walks into it from any element whose
	// contentReference is "#Extension".
	s.Register(&StructureDefinition{
		URL:            baseURL + "Extension",
		Name:           "Extension",
		Type:           "Extension",
		Kind:           "complex-type",
		Derivation:     "specialization",
		BaseDefinition: baseURL + "Element",
		Snapshot: []ElementDefinition{
			{ID: "Extension", Path: "Extension", Short: "Optional extension element", Min: intPtr(0), Max: "*"},
			{ID: "Extension.url", Path: "Extension.url", Short: "identifies the meaning of the extension", Min: intPtr(1), Max: "1", Types: []ElementType{{Code: "uri"}}},
			{ID: "Extension.extension", Path: "Extension.extension", Short: "Additional content", Min: intPtr(0), Max: "*", Types: []ElementType{{Code: "Extension"}}},
			{ID: "Extension.value[x]", Path: "Extension.value[x]", Short: "Value of extension", Min: intPtr(0), Max: "1",
				Types: []ElementType{{Code: "string"}, {Code: "boolean"}, {Code: "CodeableConcept"}, {Code: "Coding"}, {Code: "Quantity"}}},
		},
	})
}
