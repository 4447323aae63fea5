package fhirpath

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the runtime type carried by a Value.
type Kind int

const (
	KindEmpty Kind = iota
	KindBoolean
	KindInteger
	KindDecimal
	KindString
	KindDate
	KindDateTime
	KindTime
	KindQuantity
	KindObject
	KindLazyJSON
)

// Quantity is a FHIRPath quantity literal: a decimal value plus a UCUM or
// calendar-duration unit.
type Quantity struct {
	Value float64
	Unit  string
}

// Value is the FHIRPath value type. FHIRPath is collection-valued
// everywhere, so most operations work over []Value (a Collection); Value
// itself holds exactly one item.
//
// Object holds a materialized map (used for values synthesized during
// evaluation, e.g. function results). LazyJSON defers materialization of a
// source JSON subtree until a structural query (Navigate, field iteration)
// actually requires it — this is the "don't materialize a typed model"
// optimization called out in spec §9.
type Value struct {
	Kind     Kind
	Bool     bool
	Int      int64
	Dec      float64
	Str      string
	Time     time.Time
	Prec     DatePrecision
	Quantity Quantity
	Object   map[string]interface{}
	Lazy     interface{} // raw JSON (map[string]interface{}, []interface{}, or scalar)
	TypeHint string      // FHIR type name, when known (e.g. "Patient", "HumanName")
}

// DatePrecision records how much of a date/dateTime/time literal was
// specified, needed for date-search interval widening (spec §4.3 "Date").
type DatePrecision int

const (
	PrecYear DatePrecision = iota
	PrecMonth
	PrecDay
	PrecMinute
	PrecSecond
	PrecMillisecond
)

// Collection is an ordered sequence of Values — the universal FHIRPath
// result type.
type Collection []Value

func Empty() Collection { return Collection{} }

func Single(v Value) Collection { return Collection{v} }

func Bool(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }

func Int(i int64) Value { return Value{Kind: KindInteger, Int: i} }

func Dec(d float64) Value { return Value{Kind: KindDecimal, Dec: d} }

func Str(s string) Value { return Value{Kind: KindString, Str: s} }

func FromLazy(raw interface{}) Value {
	switch v := raw.(type) {
	case nil:
		return Value{Kind: KindEmpty}
	case bool:
		return Bool(v)
	case string:
		return Str(v)
	case float64:
		if v == float64(int64(v)) {
			return Int(int64(v))
		}
		return Dec(v)
	case int:
		return Int(int64(v))
	case int64:
		return Int(v)
	default:
		return Value{Kind: KindLazyJSON, Lazy: raw}
	}
}

// Materialize forces a LazyJSON value into an Object/Collection-friendly
// shape. It is a no-op for already-materialized kinds.
func (v Value) Materialize() Value {
	if v.Kind != KindLazyJSON {
		return v
	}
	switch m := v.Lazy.(type) {
	case map[string]interface{}:
		return Value{Kind: KindObject, Object: m, TypeHint: v.TypeHint}
	default:
		return FromLazy(v.Lazy)
	}
}

// Field navigates one step into a Value, returning the (possibly multi-item,
// due to arrays) collection found at that field. LazyJSON values avoid
// constructing a full Object until this is called.
func (v Value) Field(name string) Collection {
	switch v.Kind {
	case KindObject:
		return expandField(v.Object[name])
	case KindLazyJSON:
		switch m := v.Lazy.(type) {
		case map[string]interface{}:
			return expandField(m[name])
		}
	}
	return Empty()
}

func expandField(raw interface{}) Collection {
	switch v := raw.(type) {
	case nil:
		return Empty()
	case []interface{}:
		out := make(Collection, 0, len(v))
		for _, item := range v {
			out = append(out, FromLazy(item))
		}
		return out
	default:
		return Single(FromLazy(v))
	}
}

// AsBool applies FHIRPath singleton-evaluation rules (spec §9 / FHIRPath
// spec 4.0.1 §5.1): empty -> false; single boolean -> that value; single
// non-boolean non-empty -> true; more than one item -> true.
func (c Collection) AsBool() bool {
	if len(c) == 0 {
		return false
	}
	if len(c) == 1 && c[0].Kind == KindBoolean {
		return c[0].Bool
	}
	return true
}

func (c Collection) IsEmpty() bool { return len(c) == 0 }

func (v Value) String() string {
	switch v.Kind {
	case KindEmpty:
		return ""
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindDecimal:
		return strconv.FormatFloat(v.Dec, 'f', -1, 64)
	case KindString:
		return v.Str
	case KindDate, KindDateTime, KindTime:
		return v.Str
	case KindQuantity:
		return fmt.Sprintf("%v '%s'", v.Quantity.Value, v.Quantity.Unit)
	default:
		return fmt.Sprintf("%v", v.Lazy)
	}
}

// Equal implements FHIRPath '=' for two single values. Object/array equality
// is deep and order-sensitive for arrays, order-insensitive only for the two
// well known commutative composite types (CodeableConcept.coding etc.) are
// NOT special-cased here — FHIRPath equality of complex types simply
// recurses into child element equality per-field.
func Equal(a, b Value) (bool, bool) {
	a, b = a.Materialize(), b.Materialize()
	if a.Kind != b.Kind {
		// Numeric cross-kind comparison is allowed.
		if isNumeric(a.Kind) && isNumeric(b.Kind) {
			return numeric(a) == numeric(b), true
		}
		return false, false
	}
	switch a.Kind {
	case KindBoolean:
		return a.Bool == b.Bool, true
	case KindInteger:
		return a.Int == b.Int, true
	case KindDecimal:
		return a.Dec == b.Dec, true
	case KindString, KindDate, KindDateTime, KindTime:
		return a.Str == b.Str, true
	case KindQuantity:
		return a.Quantity == b.Quantity, true
	case KindObject:
		return objectsEqual(a.Object, b.Object), true
	default:
		return false, false
	}
}

func objectsEqual(a, b map[string]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		eq, _ := Equal(FromLazy(av), FromLazy(bv))
		if !eq {
			return false
		}
	}
	return true
}

func isNumeric(k Kind) bool { return k == KindInteger || k == KindDecimal }

func numeric(v Value) float64 {
	if v.Kind == KindInteger {
		return float64(v.Int)
	}
	return v.Dec
}

// Compare implements FHIRPath ordering comparisons for comparable kinds.
// Returns (cmp, ok) where cmp is -1/0/1 and ok is false when the two values
// are not ordered-comparable (FHIRPath then returns empty).
func Compare(a, b Value) (int, bool) {
	a, b = a.Materialize(), b.Materialize()
	if isNumeric(a.Kind) && isNumeric(b.Kind) {
		x, y := numeric(a), numeric(b)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		default:
			return 0, true
		}
	}
	if a.Kind == b.Kind && (a.Kind == KindString || a.Kind == KindDate || a.Kind == KindDateTime || a.Kind == KindTime) {
		return strings.Compare(a.Str, b.Str), true
	}
	return 0, false
}

// SortCollection sorts a collection of comparable scalars ascending; used by
// the sort()-adjacent comparison operators.
func SortCollection(c Collection) Collection {
	out := make(Collection, len(c))
	copy(out, c)
	sort.SliceStable(out, func(i, j int) bool {
		cmp, ok := Compare(out[i], out[j])
		return ok && cmp < 0
	})
	return out
}
