// Package pkginstall installs a parsed FHIR Implementation Guide / NPM
// package into the server (spec §4.7 "Package installation"). Parsing the
// package tarball itself — manifest.json plus the .index.json file list
// inside package/ — is an external collaborator's job (spec §1 Non-goals);
// this package only consumes the already-parsed result: a Manifest and the
// resources it carries.
//
// Installation is a batch PUT through internal/store with
// updateAsCreate=true (a package resource carries its own id, so it is
// created on first install and replaced on reinstall at a newer version),
// plus a package_resources linkage row per resource recording the outcome.
// Conformance resource types get an extra side effect: a newly installed
// StructureDefinition is registered into internal/snapshot's store so
// $validate can resolve it immediately, a SearchParameter install
// invalidates internal/registry's cache, and a ValueSet/CodeSystem install
// registers its expansion into internal/terminology.
package pkginstall

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ehr/ehr/internal/apperr"
	"github.com/ehr/ehr/internal/registry"
	"github.com/ehr/ehr/internal/snapshot"
	"github.com/ehr/ehr/internal/store"
	"github.com/ehr/ehr/internal/terminology"
)

// Manifest is the subset of a package's manifest.json this installer acts
// on (the full shape — title, description, author, maintainers, license,
// jurisdiction — belongs to the package parser's result type, not to
// installation).
type Manifest struct {
	Name         string
	Version      string
	Canonical    string
	FHIRVersions []string
	Dependencies map[string]string
}

// Package is the already-parsed install unit: a manifest plus the resources
// found under package/ in the tarball, each still the raw JSON object the
// parser produced.
type Package struct {
	Manifest  Manifest
	Resources []map[string]interface{}
}

// ResourceStore is the write surface pkginstall needs from internal/store.
// Scoped to Update so a package resource is created on first install and
// replaced in place on a version bump, never duplicated.
type ResourceStore interface {
	Update(ctx context.Context, resourceType, id string, body map[string]interface{}, ifMatch *int, updateAsCreate bool) (*store.Resource, bool, error)
}

// Querier is the linkage-table write surface: upserting the packages row
// and recording one package_resources row per installed resource.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// ResourceOutcome is the per-resource install result recorded in
// package_resources and returned to the caller (the $install operation's
// OperationOutcome response, spec §4.7).
type ResourceOutcome struct {
	ResourceType string
	ID           string
	Status       string // created | updated | error
	Message      string
}

// Result is the outcome of one Install call.
type Result struct {
	PackageID int
	Resources []ResourceOutcome
}

// Installer wires the resource store, the linkage-table querier, and the
// conformance-resource side effects (all optional except Store and DB —
// a package with no StructureDefinition/SearchParameter/ValueSet content
// never touches them).
type Installer struct {
	Store      ResourceStore
	DB         Querier
	Snapshot   *snapshot.Cache
	Registry   *registry.Registry
	Terminology *terminology.Static
}

// New builds an Installer. Snapshot, Registry, and Terminology may be nil
// if the server has no use for those side effects (e.g. a read-only
// terminology-less deployment); Install degrades to the plain batch PUT.
func New(store ResourceStore, db Querier, snap *snapshot.Cache, reg *registry.Registry, term *terminology.Static) *Installer {
	return &Installer{Store: store, DB: db, Snapshot: snap, Registry: reg, Terminology: term}
}

// Install upserts the package's own row, then PUTs every resource in turn,
// recording a package_resources linkage row for each and dispatching
// conformance side effects for the types that need them. A single
// resource's failure doesn't abort the batch — it is recorded with
// status "error" and installation continues, matching how a FHIR IG
// commonly ships a handful of resources that don't apply to every server.
func (in *Installer) Install(ctx context.Context, pkg Package) (*Result, error) {
	pkgID, err := in.upsertPackage(ctx, pkg.Manifest)
	if err != nil {
		return nil, err
	}

	result := &Result{PackageID: pkgID}
	for _, raw := range pkg.Resources {
		outcome := in.installOne(ctx, pkgID, raw)
		result.Resources = append(result.Resources, outcome)
	}
	return result, nil
}

func (in *Installer) upsertPackage(ctx context.Context, m Manifest) (int, error) {
	var id int
	row := in.DB.QueryRow(ctx, `
		INSERT INTO packages (name, version, installed_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name, version) DO UPDATE SET installed_at = now()
		RETURNING id`, m.Name, m.Version)
	if err := row.Scan(&id); err != nil {
		return 0, apperr.Wrap(err, "upsert package %s@%s", m.Name, m.Version)
	}
	return id, nil
}

func (in *Installer) installOne(ctx context.Context, pkgID int, raw map[string]interface{}) ResourceOutcome {
	resourceType, _ := raw["resourceType"].(string)
	id, _ := raw["id"].(string)

	outcome := ResourceOutcome{ResourceType: resourceType, ID: id}
	if resourceType == "" || id == "" {
		outcome.Status = "error"
		outcome.Message = "resource missing resourceType or id"
		in.recordLinkage(ctx, pkgID, outcome)
		return outcome
	}

	_, created, err := in.Store.Update(ctx, resourceType, id, raw, nil, true)
	if err != nil {
		outcome.Status = "error"
		outcome.Message = err.Error()
		in.recordLinkage(ctx, pkgID, outcome)
		return outcome
	}

	if created {
		outcome.Status = "created"
	} else {
		outcome.Status = "updated"
	}
	in.recordLinkage(ctx, pkgID, outcome)
	in.dispatchSideEffect(resourceType, raw)
	return outcome
}

func (in *Installer) recordLinkage(ctx context.Context, pkgID int, outcome ResourceOutcome) {
	// Best-effort: a failure to record the linkage row doesn't change the
	// resource's own install outcome, which has already been decided.
	in.DB.Exec(ctx, `
		INSERT INTO package_resources (package_id, resource_type, resource_id, status, message)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (package_id, resource_type, resource_id)
		DO UPDATE SET status = EXCLUDED.status, message = EXCLUDED.message`,
		pkgID, outcome.ResourceType, outcome.ID, outcome.Status, outcome.Message)
}

// dispatchSideEffect wires the conformance resource types spec §4.6 names
// into the collaborators that need to learn about them immediately rather
// than waiting for a separate read to populate a cache.
func (in *Installer) dispatchSideEffect(resourceType string, raw map[string]interface{}) {
	switch resourceType {
	case "StructureDefinition":
		if in.Snapshot == nil {
			return
		}
		if sd, err := decodeStructureDefinition(raw); err == nil {
			in.Snapshot.Store().Register(sd)
			in.Snapshot.Invalidate(sd.URL)
		}
	case "SearchParameter":
		if in.Registry != nil {
			in.Registry.InvalidateAll()
		}
	case "ValueSet":
		if in.Terminology == nil {
			return
		}
		if vs, err := decodeValueSet(raw); err == nil {
			in.Terminology.Register(vs)
		}
	case "CodeSystem":
		if in.Terminology == nil {
			return
		}
		if vs, err := decodeCodeSystemAsValueSet(raw); err == nil {
			in.Terminology.Register(vs)
		}
	}
}

// structureDefinitionJSON mirrors the FHIR wire shape of the fields
// internal/snapshot needs, decoded via a round trip through
// encoding/json (the installer receives a package resource as a generic
// map, not a typed struct).
type structureDefinitionJSON struct {
	URL            string               `json:"url"`
	Version        string               `json:"version"`
	Name           string                `json:"name"`
	Type           string                `json:"type"`
	BaseDefinition string               `json:"baseDefinition"`
	Kind           string                `json:"kind"`
	Derivation     string                `json:"derivation"`
	Snapshot       *elementListJSON      `json:"snapshot"`
	Differential   *elementListJSON      `json:"differential"`
}

type elementListJSON struct {
	Element []elementDefinitionJSON `json:"element"`
}

type elementDefinitionJSON struct {
	ID          string              `json:"id"`
	Path        string              `json:"path"`
	SliceName   string              `json:"sliceName"`
	Short       string              `json:"short"`
	Definition  string              `json:"definition"`
	Min         *int                `json:"min"`
	Max         string              `json:"max"`
	Type        []elementTypeJSON   `json:"type"`
	Binding     *elementBindingJSON `json:"binding"`
	Fixed       interface{}         `json:"fixed,omitempty"`
	Pattern     interface{}         `json:"pattern,omitempty"`
	MustSupport bool                `json:"mustSupport"`
	ContentReference string         `json:"contentReference"`
	Slicing     *slicingJSON        `json:"slicing"`
	Constraint  []constraintJSON    `json:"constraint"`
}

type elementTypeJSON struct {
	Code          string   `json:"code"`
	TargetProfile []string `json:"targetProfile"`
	Profile       []string `json:"profile"`
}

type elementBindingJSON struct {
	Strength string `json:"strength"`
	ValueSet string `json:"valueSet"`
}

type slicingJSON struct {
	Discriminator []discriminatorJSON `json:"discriminator"`
	Rules         string               `json:"rules"`
	Ordered       bool                 `json:"ordered"`
}

type discriminatorJSON struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

type constraintJSON struct {
	Key        string `json:"key"`
	Severity   string `json:"severity"`
	Human      string `json:"human"`
	Expression string `json:"expression"`
}

// decodeStructureDefinition round-trips a package resource's generic JSON
// body into internal/snapshot's narrower StructureDefinition, the same
// fields the teacher's own StructureDefinitionResource carries (url, type,
// baseDefinition, kind, derivation, snapshot/differential element lists).
func decodeStructureDefinition(raw map[string]interface{}) (*snapshot.StructureDefinition, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, apperr.Wrap(err, "marshal StructureDefinition package resource")
	}
	var wire structureDefinitionJSON
	if err := json.Unmarshal(b, &wire); err != nil {
		return nil, apperr.Wrap(err, "decode StructureDefinition package resource")
	}
	if wire.URL == "" {
		return nil, fmt.Errorf("StructureDefinition package resource missing url")
	}

	sd := &snapshot.StructureDefinition{
		URL:            wire.URL,
		Version:        wire.Version,
		Name:           wire.Name,
		Type:           wire.Type,
		BaseDefinition: wire.BaseDefinition,
		Kind:           wire.Kind,
		Derivation:     wire.Derivation,
	}
	if wire.Snapshot != nil {
		sd.Snapshot = decodeElements(wire.Snapshot.Element)
	}
	if wire.Differential != nil {
		sd.Differential = decodeElements(wire.Differential.Element)
	}
	return sd, nil
}

func decodeElements(in []elementDefinitionJSON) []snapshot.ElementDefinition {
	out := make([]snapshot.ElementDefinition, 0, len(in))
	for _, e := range in {
		out = append(out, snapshot.ElementDefinition{
			ID:          e.ID,
			Path:        e.Path,
			SliceName:   e.SliceName,
			Short:       e.Short,
			Definition:  e.Definition,
			Min:         e.Min,
			Max:         e.Max,
			Types:       decodeTypes(e.Type),
			Binding:     decodeBinding(e.Binding),
			Fixed:       e.Fixed,
			Pattern:     e.Pattern,
			MustSupport: e.MustSupport,
			ContentRef:  e.ContentReference,
			Slicing:     decodeSlicing(e.Slicing),
			Constraints: decodeConstraints(e.Constraint),
		})
	}
	return out
}

func decodeTypes(in []elementTypeJSON) []snapshot.ElementType {
	if in == nil {
		return nil
	}
	out := make([]snapshot.ElementType, 0, len(in))
	for _, t := range in {
		out = append(out, snapshot.ElementType{Code: t.Code, TargetProfile: t.TargetProfile, Profile: t.Profile})
	}
	return out
}

func decodeBinding(in *elementBindingJSON) *snapshot.ElementBinding {
	if in == nil {
		return nil
	}
	return &snapshot.ElementBinding{Strength: in.Strength, ValueSet: in.ValueSet}
}

func decodeSlicing(in *slicingJSON) *snapshot.Slicing {
	if in == nil {
		return nil
	}
	discs := make([]snapshot.Discriminator, 0, len(in.Discriminator))
	for _, d := range in.Discriminator {
		discs = append(discs, snapshot.Discriminator{Type: d.Type, Path: d.Path})
	}
	return &snapshot.Slicing{Discriminator: discs, Rules: in.Rules, Ordered: in.Ordered}
}

func decodeConstraints(in []constraintJSON) []snapshot.Constraint {
	if in == nil {
		return nil
	}
	out := make([]snapshot.Constraint, 0, len(in))
	for _, c := range in {
		out = append(out, snapshot.Constraint{Key: c.Key, Severity: c.Severity, Human: c.Human, Expression: c.Expression})
	}
	return out
}

// valueSetJSON mirrors just enough of ValueSet.expansion/.compose.include
// to build a terminology.ValueSet out of a package-shipped expansion. A
// package that ships only compose.include rules without a pre-computed
// expansion registers an empty code list; compiling compose rules into an
// expansion is the live terminology service's job (spec §1 Non-goals), not
// this installer's.
type valueSetJSON struct {
	URL       string `json:"url"`
	Expansion *struct {
		Contains []struct {
			System  string `json:"system"`
			Code    string `json:"code"`
			Display string `json:"display"`
		} `json:"contains"`
	} `json:"expansion"`
}

func decodeValueSet(raw map[string]interface{}) (*terminology.ValueSet, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, apperr.Wrap(err, "marshal ValueSet package resource")
	}
	var wire valueSetJSON
	if err := json.Unmarshal(b, &wire); err != nil {
		return nil, apperr.Wrap(err, "decode ValueSet package resource")
	}
	if wire.URL == "" {
		return nil, fmt.Errorf("ValueSet package resource missing url")
	}
	vs := &terminology.ValueSet{URL: wire.URL}
	if wire.Expansion != nil {
		for _, c := range wire.Expansion.Contains {
			vs.Codes = append(vs.Codes, terminology.Code{System: c.System, Code: c.Code, Display: c.Display})
		}
	}
	return vs, nil
}

// codeSystemJSON mirrors CodeSystem.concept, registered as a value set
// keyed by the CodeSystem's own url so :in/:not-in token search and
// $validate-code can resolve codes defined directly by a package's
// CodeSystem resources, not only by its ValueSets.
type codeSystemJSON struct {
	URL     string `json:"url"`
	Concept []struct {
		Code    string `json:"code"`
		Display string `json:"display"`
	} `json:"concept"`
}

func decodeCodeSystemAsValueSet(raw map[string]interface{}) (*terminology.ValueSet, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, apperr.Wrap(err, "marshal CodeSystem package resource")
	}
	var wire codeSystemJSON
	if err := json.Unmarshal(b, &wire); err != nil {
		return nil, apperr.Wrap(err, "decode CodeSystem package resource")
	}
	if wire.URL == "" {
		return nil, fmt.Errorf("CodeSystem package resource missing url")
	}
	vs := &terminology.ValueSet{URL: wire.URL}
	for _, c := range wire.Concept {
		vs.Codes = append(vs.Codes, terminology.Code{System: wire.URL, Code: c.Code, Display: c.Display})
	}
	return vs, nil
}

// DecodeStructureDefinition, DecodeValueSet, and DecodeCodeSystemAsValueSet
// expose this package's FHIR-wire-JSON decoding to internal/httpapi, which
// needs the same conversion for the $snapshot and $validate operations
// (a resource read back out of internal/store is the same generic JSON map
// a package resource is) — keeping the decode logic in one place rather
// than duplicating these wire structs per caller.
func DecodeStructureDefinition(raw map[string]interface{}) (*snapshot.StructureDefinition, error) {
	return decodeStructureDefinition(raw)
}

func DecodeValueSet(raw map[string]interface{}) (*terminology.ValueSet, error) {
	return decodeValueSet(raw)
}

func DecodeCodeSystemAsValueSet(raw map[string]interface{}) (*terminology.ValueSet, error) {
	return decodeCodeSystemAsValueSet(raw)
}
