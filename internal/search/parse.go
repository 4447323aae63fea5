// Package search is the query planner collaborator (spec §4.3): it turns a
// resource type plus a set of query-string (name, value) pairs into SQL that
// runs against the index tables internal/index populates, and implements
// store.ConditionalMatcher for conditional create/update/delete.
package search

import "strings"

// Modifier is the fixed FHIR search modifier vocabulary (spec §4.3(a)).
// A reference parameter can also carry a resource type name as its
// modifier ("subject:Patient"); that case is held in TypeModifier instead.
type Modifier string

const (
	ModNone         Modifier = ""
	ModMissing      Modifier = "missing"
	ModExact        Modifier = "exact"
	ModContains     Modifier = "contains"
	ModAbove        Modifier = "above"
	ModBelow        Modifier = "below"
	ModNot          Modifier = "not"
	ModNotIn        Modifier = "not-in"
	ModIn           Modifier = "in"
	ModOfType       Modifier = "of-type"
	ModIdentifier   Modifier = "identifier"
	ModText         Modifier = "text"
	ModCodeText     Modifier = "code-text"
	ModTextAdvanced Modifier = "text-advanced"
	ModIterate      Modifier = "iterate"
)

var knownModifiers = map[string]Modifier{
	"missing": ModMissing, "exact": ModExact, "contains": ModContains,
	"above": ModAbove, "below": ModBelow, "not": ModNot, "not-in": ModNotIn,
	"in": ModIn, "of-type": ModOfType, "identifier": ModIdentifier,
	"text": ModText, "code-text": ModCodeText, "text-advanced": ModTextAdvanced,
	"iterate": ModIterate,
}

// ParsedName is one query-string parameter name, split per spec §4.3(a).
type ParsedName struct {
	Code         string
	Modifier     Modifier
	TypeModifier string // reference target-type modifier, e.g. "Patient" in "subject:Patient"
	Chain        []string

	IsReverseChain bool
	ReverseType    string
	ReverseField   string
	ReverseChain   *ParsedName
}

// ParseName implements spec §4.3(a)'s name-splitting stage: code, optional
// modifier, optional chain tail, or a "_has:Type:field:..." reverse-chain
// prefix. A modifier on the chain's own tail segment (e.g.
// "subject.name:exact") is left attached to that last chain segment rather
// than hoisted here — chainClause rejoins the chain into a tail name and
// reparses it, so the modifier is resolved against the right (target-type)
// parameter instead of the base reference parameter.
func ParseName(name string) ParsedName {
	if strings.HasPrefix(name, "_has:") {
		return parseReverseChain(name)
	}
	colonIdx := strings.Index(name, ":")
	dotIdx := strings.Index(name, ".")

	if colonIdx >= 0 && (dotIdx < 0 || colonIdx < dotIdx) {
		code := name[:colonIdx]
		afterColon := name[colonIdx+1:]
		modStr := afterColon
		rest := ""
		if modEnd := strings.Index(afterColon, "."); modEnd >= 0 {
			modStr = afterColon[:modEnd]
			rest = afterColon[modEnd+1:]
		}
		var mod Modifier
		var typeMod string
		if m, ok := knownModifiers[modStr]; ok {
			mod = m
		} else {
			typeMod = modStr
		}
		var chain []string
		if rest != "" {
			chain = strings.Split(rest, ".")
		}
		return ParsedName{Code: code, Modifier: mod, TypeModifier: typeMod, Chain: chain}
	}

	if dotIdx >= 0 {
		code := name[:dotIdx]
		chain := strings.Split(name[dotIdx+1:], ".")
		return ParsedName{Code: code, Chain: chain}
	}

	return ParsedName{Code: name}
}

func parseReverseChain(name string) ParsedName {
	parts := strings.SplitN(name, ":", 4)
	if len(parts) < 4 {
		return ParsedName{IsReverseChain: true}
	}
	inner := ParseName(parts[3])
	return ParsedName{
		IsReverseChain: true,
		ReverseType:    parts[1],
		ReverseField:   parts[2],
		ReverseChain:   &inner,
	}
}

// SplitValues splits a query value on unescaped commas, the OR-within-one-
// parameter rule of spec §4.3(a), honoring backslash escapes.
func SplitValues(raw string) []string {
	var out []string
	var b strings.Builder
	escaped := false
	for _, r := range raw {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ',':
			out = append(out, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	out = append(out, b.String())
	return out
}
