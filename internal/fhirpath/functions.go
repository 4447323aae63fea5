package fhirpath

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// functionNames is the catalog ordered so each function gets a stable
// 16-bit id at compile time (spec §4.4 "Each function is identified by a
// stable 16-bit id"). Lambda-taking names (where/select/repeat/aggregate/
// exists/all/iif) are included for id stability and arity checks even
// though the VM dispatches them via dedicated opcodes rather than
// OpCallFunction. This is the practical subset of the ~90-function FHIRPath
// catalog that the indexer and discriminator evaluator in this module
// actually exercise; see DESIGN.md for the functions intentionally left out.
var functionNames = []string{
	"where", "select", "repeat", "aggregate", "exists", "all", "iif",
	"empty", "not", "count", "distinct", "isDistinct",
	"subsetOf", "supersetOf", "allTrue", "anyTrue", "allFalse", "anyFalse",
	"single", "first", "last", "tail", "skip", "take",
	"union", "combine", "intersect", "exclude",
	"toInteger", "toDecimal", "toString", "toBoolean", "toQuantity",
	"convertsToInteger", "convertsToDecimal", "convertsToBoolean", "convertsToString",
	"indexOf", "substring", "startsWith", "endsWith", "contains", "upper", "lower",
	"replace", "matches", "replaceMatches", "length", "split", "join", "trim", "toChars",
	"abs", "ceiling", "floor", "round", "sqrt", "truncate", "ln", "log", "exp", "power",
	"children", "descendants", "trace", "now", "today", "hasValue",
	"extension", "resolve", "ofType", "type", "is", "as", "getValue",
}

var functionIDs map[string]int

func init() {
	functionIDs = make(map[string]int, len(functionNames))
	for i, n := range functionNames {
		functionIDs[n] = i
	}
}

func functionID(name string) (int, bool) {
	id, ok := functionIDs[name]
	return id, ok
}

// callFunction dispatches an eager-argument builtin by id. Arguments have
// already been evaluated by the VM (each is self-contained bytecode emitted
// before OpCallFunction) and popped off the stack in order. Lambda-taking
// functions never reach here; the VM handles their opcodes directly.
func callFunction(v *VM, funcID int, input Collection, args []Collection) (Collection, error) {
	if funcID < 0 || funcID >= len(functionNames) {
		return nil, fmt.Errorf("fhirpath: invalid function id %d", funcID)
	}
	name := functionNames[funcID]

	switch name {
	case "empty":
		return Single(Bool(len(input) == 0)), nil
	case "not":
		return Single(Bool(!input.AsBool())), nil
	case "count":
		return Single(Int(int64(len(input)))), nil
	case "distinct":
		return distinctCollection(input), nil
	case "isDistinct":
		return Single(Bool(len(distinctCollection(input)) == len(input))), nil
	case "subsetOf":
		if len(args) == 0 {
			return Empty(), nil
		}
		return Single(Bool(isSubset(input, args[0]))), nil
	case "supersetOf":
		if len(args) == 0 {
			return Empty(), nil
		}
		return Single(Bool(isSubset(args[0], input))), nil
	case "allTrue":
		return Single(Bool(allMatch(input, true))), nil
	case "anyTrue":
		return Single(Bool(anyMatch(input, true))), nil
	case "allFalse":
		return Single(Bool(allMatch(input, false))), nil
	case "anyFalse":
		return Single(Bool(anyMatch(input, false))), nil
	case "single":
		if len(input) > 1 {
			return nil, fmt.Errorf("fhirpath: single() called on collection with %d items", len(input))
		}
		if len(input) == 0 {
			return Empty(), nil
		}
		return Single(input[0]), nil
	case "first":
		if len(input) == 0 {
			return Empty(), nil
		}
		return Single(input[0]), nil
	case "last":
		if len(input) == 0 {
			return Empty(), nil
		}
		return Single(input[len(input)-1]), nil
	case "tail":
		if len(input) <= 1 {
			return Empty(), nil
		}
		return append(Collection{}, input[1:]...), nil
	case "skip":
		n := int(argInt(args, 0))
		if n < 0 {
			n = 0
		}
		if n >= len(input) {
			return Empty(), nil
		}
		return append(Collection{}, input[n:]...), nil
	case "take":
		n := int(argInt(args, 0))
		if n <= 0 {
			return Empty(), nil
		}
		if n > len(input) {
			n = len(input)
		}
		return append(Collection{}, input[:n]...), nil
	case "union":
		return distinctCollection(append(append(Collection{}, input...), args[0]...)), nil
	case "combine":
		return append(append(Collection{}, input...), args[0]...), nil
	case "intersect":
		return intersectCollection(input, args[0]), nil
	case "exclude":
		return excludeCollection(input, args[0]), nil
	case "toInteger":
		return toIntegerFn(input), nil
	case "toDecimal":
		return toDecimalFn(input), nil
	case "toString":
		return toStringFn(input), nil
	case "toBoolean":
		return toBooleanFn(input), nil
	case "toQuantity":
		return input, nil
	case "convertsToInteger":
		return Single(Bool(len(toIntegerFn(input)) > 0 || len(input) == 0)), nil
	case "convertsToDecimal":
		return Single(Bool(len(toDecimalFn(input)) > 0 || len(input) == 0)), nil
	case "convertsToBoolean":
		return Single(Bool(len(toBooleanFn(input)) > 0 || len(input) == 0)), nil
	case "convertsToString":
		return Single(Bool(true)), nil
	case "indexOf":
		s := singleStr(input)
		sub := argStr(args, 0)
		idx := strings.Index(s, sub)
		return Single(Int(int64(idx))), nil
	case "substring":
		s := singleStr(input)
		start := int(argInt(args, 0))
		if start < 0 || start >= len(s) {
			return Empty(), nil
		}
		if len(args) > 1 {
			l := int(argInt(args, 1))
			end := start + l
			if end > len(s) {
				end = len(s)
			}
			return Single(Str(s[start:end])), nil
		}
		return Single(Str(s[start:])), nil
	case "startsWith":
		return Single(Bool(strings.HasPrefix(singleStr(input), argStr(args, 0)))), nil
	case "endsWith":
		return Single(Bool(strings.HasSuffix(singleStr(input), argStr(args, 0)))), nil
	case "contains":
		return Single(Bool(strings.Contains(singleStr(input), argStr(args, 0)))), nil
	case "upper":
		return Single(Str(strings.ToUpper(singleStr(input)))), nil
	case "lower":
		return Single(Str(strings.ToLower(singleStr(input)))), nil
	case "trim":
		return Single(Str(strings.TrimSpace(singleStr(input)))), nil
	case "replace":
		return Single(Str(strings.ReplaceAll(singleStr(input), argStr(args, 0), argStr(args, 1)))), nil
	case "matches":
		re, err := regexp.Compile(argStr(args, 0))
		if err != nil {
			return Empty(), nil
		}
		return Single(Bool(re.MatchString(singleStr(input)))), nil
	case "replaceMatches":
		re, err := regexp.Compile(argStr(args, 0))
		if err != nil {
			return Empty(), nil
		}
		return Single(Str(re.ReplaceAllString(singleStr(input), argStr(args, 1)))), nil
	case "length":
		if len(input) == 0 {
			return Empty(), nil
		}
		return Single(Int(int64(len(singleStr(input))))), nil
	case "split":
		parts := strings.Split(singleStr(input), argStr(args, 0))
		out := make(Collection, len(parts))
		for i, p := range parts {
			out[i] = Str(p)
		}
		return out, nil
	case "join":
		sep := ""
		if len(args) > 0 {
			sep = argStr(args, 0)
		}
		parts := make([]string, len(input))
		for i, v := range input {
			parts[i] = v.String()
		}
		return Single(Str(strings.Join(parts, sep))), nil
	case "toChars":
		s := singleStr(input)
		out := make(Collection, 0, len(s))
		for _, r := range s {
			out = append(out, Str(string(r)))
		}
		return out, nil
	case "abs":
		return mathUnary(input, math.Abs), nil
	case "ceiling":
		return mathUnary(input, math.Ceil), nil
	case "floor":
		return mathUnary(input, math.Floor), nil
	case "round":
		return mathUnary(input, math.Round), nil
	case "sqrt":
		return mathUnary(input, math.Sqrt), nil
	case "truncate":
		return mathUnary(input, math.Trunc), nil
	case "ln":
		return mathUnary(input, math.Log), nil
	case "log":
		if len(args) > 0 {
			base := argFloat(args, 0)
			return mathUnary(input, func(x float64) float64 { return math.Log(x) / math.Log(base) }), nil
		}
		return mathUnary(input, math.Log10), nil
	case "exp":
		return mathUnary(input, math.Exp), nil
	case "power":
		exp := argFloat(args, 0)
		return mathUnary(input, func(x float64) float64 { return math.Pow(x, exp) }), nil
	case "children":
		return childrenOf(input), nil
	case "descendants":
		return descendantsOf(input), nil
	case "trace":
		return input, nil
	case "now":
		return Single(Value{Kind: KindDateTime, Str: v.clock()}), nil
	case "today":
		return Single(Value{Kind: KindDate, Str: v.clock()[:10]}), nil
	case "hasValue":
		return Single(Bool(len(input) == 1 && input[0].Kind != KindEmpty)), nil
	case "extension":
		return extensionOf(input, argStr(args, 0)), nil
	case "resolve":
		return v.resolveRefs(input)
	case "ofType":
		return ofType(input, argStr(args, 0)), nil
	case "type":
		return typeOf(input), nil
	case "is":
		return Single(Bool(isType(input, argStr(args, 0)))), nil
	case "as":
		if isType(input, argStr(args, 0)) {
			return input, nil
		}
		return Empty(), nil
	case "getValue":
		if len(input) != 1 {
			return Empty(), nil
		}
		return Single(input[0]), nil
	}
	return nil, fmt.Errorf("fhirpath: function %q not implemented", name)
}

func distinctCollection(c Collection) Collection {
	var out Collection
	for _, v := range c {
		dup := false
		for _, u := range out {
			if eq, ok := Equal(v, u); ok && eq {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}

func isSubset(a, b Collection) bool {
	for _, v := range a {
		found := false
		for _, u := range b {
			if eq, ok := Equal(v, u); ok && eq {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func intersectCollection(a, b Collection) Collection {
	var out Collection
	for _, v := range a {
		for _, u := range b {
			if eq, ok := Equal(v, u); ok && eq {
				out = append(out, v)
				break
			}
		}
	}
	return distinctCollection(out)
}

func excludeCollection(a, b Collection) Collection {
	var out Collection
	for _, v := range a {
		found := false
		for _, u := range b {
			if eq, ok := Equal(v, u); ok && eq {
				found = true
				break
			}
		}
		if !found {
			out = append(out, v)
		}
	}
	return out
}

func allMatch(c Collection, want bool) bool {
	for _, v := range c {
		if v.Kind != KindBoolean || v.Bool != want {
			return false
		}
	}
	return true
}

func anyMatch(c Collection, want bool) bool {
	for _, v := range c {
		if v.Kind == KindBoolean && v.Bool == want {
			return true
		}
	}
	return false
}

func singleStr(c Collection) string {
	if len(c) == 0 {
		return ""
	}
	return c[0].Materialize().String()
}

func argStr(args []Collection, i int) string {
	if i >= len(args) {
		return ""
	}
	return singleStr(args[i])
}

func argInt(args []Collection, i int) int64 {
	if i >= len(args) || len(args[i]) == 0 {
		return 0
	}
	v := args[i][0]
	if v.Kind == KindInteger {
		return v.Int
	}
	if v.Kind == KindDecimal {
		return int64(v.Dec)
	}
	n, _ := strconv.ParseInt(v.String(), 10, 64)
	return n
}

func argFloat(args []Collection, i int) float64 {
	if i >= len(args) || len(args[i]) == 0 {
		return 0
	}
	return numeric(args[i][0].Materialize())
}

// toIntegerFn implements toInteger() per spec §4.4 error model: empty on
// non-numeric strings rather than a compile error.
func toIntegerFn(input Collection) Collection {
	if len(input) == 0 {
		return Empty()
	}
	v := input[0].Materialize()
	switch v.Kind {
	case KindInteger:
		return Single(v)
	case KindDecimal:
		return Single(Int(int64(v.Dec)))
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return Empty()
		}
		return Single(Int(n))
	case KindBoolean:
		if v.Bool {
			return Single(Int(1))
		}
		return Single(Int(0))
	}
	return Empty()
}

func toDecimalFn(input Collection) Collection {
	if len(input) == 0 {
		return Empty()
	}
	v := input[0].Materialize()
	switch v.Kind {
	case KindDecimal:
		return Single(v)
	case KindInteger:
		return Single(Dec(float64(v.Int)))
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return Empty()
		}
		return Single(Dec(f))
	}
	return Empty()
}

func toStringFn(input Collection) Collection {
	if len(input) == 0 {
		return Empty()
	}
	return Single(Str(input[0].Materialize().String()))
}

func toBooleanFn(input Collection) Collection {
	if len(input) == 0 {
		return Empty()
	}
	v := input[0].Materialize()
	switch v.Kind {
	case KindBoolean:
		return Single(v)
	case KindString:
		switch strings.ToLower(v.Str) {
		case "true", "t", "yes", "y", "1", "1.0":
			return Single(Bool(true))
		case "false", "f", "no", "n", "0", "0.0":
			return Single(Bool(false))
		}
	case KindInteger:
		if v.Int == 1 {
			return Single(Bool(true))
		}
		if v.Int == 0 {
			return Single(Bool(false))
		}
	}
	return Empty()
}

func mathUnary(input Collection, f func(float64) float64) Collection {
	if len(input) == 0 {
		return Empty()
	}
	v := input[0].Materialize()
	if !isNumeric(v.Kind) {
		return Empty()
	}
	return Single(Dec(f(numeric(v))))
}

func childrenOf(input Collection) Collection {
	var out Collection
	for _, v := range input {
		v = v.Materialize()
		if v.Kind != KindObject {
			continue
		}
		keys := make([]string, 0, len(v.Object))
		for k := range v.Object {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, v.Field(k)...)
		}
	}
	return out
}

func descendantsOf(input Collection) Collection {
	var out Collection
	frontier := childrenOf(input)
	for len(frontier) > 0 {
		out = append(out, frontier...)
		frontier = childrenOf(frontier)
	}
	return out
}

func extensionOf(input Collection, url string) Collection {
	var out Collection
	for _, v := range input {
		for _, ext := range v.Field("extension") {
			ext = ext.Materialize()
			if u := ext.Field("url"); len(u) == 1 && u[0].String() == url {
				out = append(out, ext)
			}
		}
	}
	return out
}

func ofType(input Collection, typeName string) Collection {
	var out Collection
	for _, v := range input {
		if isType(Single(v), typeName) {
			out = append(out, v)
		}
	}
	return out
}

func isType(input Collection, typeName string) bool {
	if len(input) == 0 {
		return false
	}
	v := input[0].Materialize()
	switch typeName {
	case "Boolean":
		return v.Kind == KindBoolean
	case "Integer":
		return v.Kind == KindInteger
	case "Decimal":
		return v.Kind == KindDecimal
	case "String", "code", "id", "uri", "url", "canonical":
		return v.Kind == KindString
	case "Date":
		return v.Kind == KindDate
	case "DateTime", "instant":
		return v.Kind == KindDateTime
	case "Time":
		return v.Kind == KindTime
	case "Quantity":
		return v.Kind == KindQuantity
	default:
		return v.TypeHint == typeName
	}
}

func typeOf(input Collection) Collection {
	if len(input) == 0 {
		return Empty()
	}
	v := input[0].Materialize()
	name := "unknown"
	switch v.Kind {
	case KindBoolean:
		name = "Boolean"
	case KindInteger:
		name = "Integer"
	case KindDecimal:
		name = "Decimal"
	case KindString:
		name = "String"
	case KindDate:
		name = "Date"
	case KindDateTime:
		name = "DateTime"
	case KindTime:
		name = "Time"
	case KindQuantity:
		name = "Quantity"
	case KindObject:
		if v.TypeHint != "" {
			name = v.TypeHint
		} else {
			name = "Object"
		}
	}
	return Single(Str(name))
}
