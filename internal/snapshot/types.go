// Package snapshot generates StructureDefinition snapshots from a base
// definition and a differential, and validates resources against a
// snapshot's element tree (spec §4.5).
package snapshot

// StructureDefinition is the subset of the FHIR StructureDefinition resource
// the generator and validator need. The rest of the resource (telecom
// metadata, narrative, contact) passes through internal/store untouched;
// this package only cares about url, type, baseDefinition and the two
// element lists.
type StructureDefinition struct {
	URL             string
	Version         string
	Name            string
	Type            string // base resource/datatype this profile constrains
	BaseDefinition  string // canonical URL of the structure this derives from
	Kind            string // resource | complex-type | primitive-type | logical
	Derivation      string // specialization | constraint
	Snapshot        []ElementDefinition
	Differential    []ElementDefinition
}

// ElementDefinition mirrors the fields of FHIR's ElementDefinition that
// snapshot generation and profile validation actually use.
type ElementDefinition struct {
	ID              string
	Path            string
	SliceName       string
	Short           string
	Definition      string
	Min             *int
	Max             string
	Types           []ElementType
	Binding         *ElementBinding
	Fixed           interface{}
	Pattern         interface{}
	MustSupport     bool
	ContentRef      string // contentReference target path, e.g. "#Extension"
	Slicing         *Slicing
	Constraints     []Constraint
}

// ElementType is one entry of ElementDefinition.type.
type ElementType struct {
	Code          string
	TargetProfile []string
	Profile       []string
}

// ElementBinding is ElementDefinition.binding.
type ElementBinding struct {
	Strength string // required | extensible | preferred | example
	ValueSet string
}

// Slicing is ElementDefinition.slicing.
type Slicing struct {
	Discriminator []Discriminator
	Rules         string // closed | open | openAtEnd
	Ordered       bool
}

// Discriminator is one ElementDefinition.slicing.discriminator entry.
type Discriminator struct {
	Type string // value | exists | pattern | type | profile
	Path string
}

// Constraint is one ElementDefinition.constraint entry (an invariant
// expressed as a FHIRPath boolean expression, evaluated with the element
// as $this per spec §4.5 step 5).
type Constraint struct {
	Key        string
	Severity   string // error | warning
	Human      string
	Expression string
}

// bindingRank orders binding strengths from loosest to strictest so a
// differential element can only increase strength (spec §4.5 step 2).
var bindingRank = map[string]int{
	"example":    0,
	"preferred":  1,
	"extensible": 2,
	"required":   3,
}

// slicingRuleRank orders slicing rules by restrictiveness so a merge can
// pick the stricter of base and differential (spec §4.5 step 2: "closed
// beats open beats openAtEnd").
var slicingRuleRank = map[string]int{
	"openAtEnd": 0,
	"open":      1,
	"closed":    2,
}

// ValidationIssue is one entry of the flat issue list profile validation
// produces (spec §4.5: "a flat list of ValidationIssue{severity, code,
// location, diagnostics}").
type ValidationIssue struct {
	Severity    string // fatal | error | warning | information
	Code        string // OperationOutcome issue.code, e.g. "structure", "required", "value", "invariant"
	Location    string
	Diagnostics string
}
