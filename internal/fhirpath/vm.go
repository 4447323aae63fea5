package fhirpath

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// VM executes a compiled Plan's bytecode. It never performs I/O itself: the
// one operation that would need it, resolve(), reads from a cache the
// engine pre-warms before the run starts (spec §4.4 "Resolver plug-in" —
// "the VM stays synchronous; resolve() reads from a cache populated ahead
// of time").
type VM struct {
	vars  map[string]Collection
	cache map[string]Value
	now   time.Time
}

func newVM(vars map[string]Collection, cache map[string]Value, now time.Time) *VM {
	if vars == nil {
		vars = map[string]Collection{}
	}
	if cache == nil {
		cache = map[string]Value{}
	}
	return &VM{vars: vars, cache: cache, now: now}
}

func (vm *VM) clock() string {
	return vm.now.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// resolveRefs implements resolve(): each input item is expected to be
// either a bare reference string or a Reference object with a `reference`
// field; the target is looked up in the pre-warmed cache and silently
// dropped if the resolver never supplied it (broken/external references
// resolve to empty per spec §9, not an error).
func (vm *VM) resolveRefs(input Collection) (Collection, error) {
	var out Collection
	for _, item := range input {
		v := item.Materialize()
		var refStr string
		switch v.Kind {
		case KindString:
			refStr = v.Str
		case KindObject:
			if r := v.Field("reference"); len(r) == 1 {
				refStr = r[0].Materialize().String()
			}
		}
		if refStr == "" {
			continue
		}
		if resolved, ok := vm.cache[refStr]; ok {
			out = append(out, resolved)
		}
	}
	return out, nil
}

// runPlan executes p against `this`, with $index/$total bound to index/total
// for the duration of the call. total is itself a Collection rather than a
// bare count because aggregate() overloads $total as its running
// accumulator; where/select/exists/all pass a singleton integer count.
func (vm *VM) runPlan(p *Plan, this Collection, index int, total Collection) (Collection, error) {
	stack := make([]Collection, 0, 8)
	push := func(c Collection) { stack = append(stack, c) }
	pop := func() Collection {
		n := len(stack) - 1
		v := stack[n]
		stack = stack[:n]
		return v
	}

	for _, ins := range p.Code {
		switch ins.Op {
		case OpReturn:
			if len(stack) == 0 {
				return Empty(), nil
			}
			return pop(), nil
		case OpPushConst:
			push(Single(p.Consts[ins.A]))
		case OpPushVariable:
			name := p.Segments[ins.A]
			if c, ok := vm.vars[name]; ok {
				push(c)
			} else {
				push(Empty())
			}
		case OpLoadThis:
			push(this)
		case OpLoadIndex:
			push(Single(Int(int64(index))))
		case OpLoadTotal:
			push(total)
		case OpPop:
			pop()
		case OpDup:
			push(stack[len(stack)-1])
		case OpNavigate:
			receiver := pop()
			seg := p.Segments[ins.A]
			var out Collection
			for _, item := range receiver {
				out = append(out, item.Field(seg)...)
			}
			push(out)
		case OpIndex:
			receiver := pop()
			idxColl, err := vm.runPlan(p.Subplans[ins.A], this, index, total)
			if err != nil {
				return nil, err
			}
			if len(idxColl) == 0 {
				push(Empty())
				continue
			}
			n := int(idxColl[0].Materialize().Int)
			if n < 0 || n >= len(receiver) {
				push(Empty())
			} else {
				push(Single(receiver[n]))
			}
		case OpCallUnary:
			r, err := applyUnary(ins.A, pop())
			if err != nil {
				return nil, err
			}
			push(r)
		case OpCallBinary:
			right := pop()
			left := pop()
			r, err := applyBinary(ins.A, left, right)
			if err != nil {
				return nil, err
			}
			push(r)
		case OpCallFunction:
			args := make([]Collection, ins.B)
			for i := ins.B - 1; i >= 0; i-- {
				args[i] = pop()
			}
			receiver := pop()
			r, err := callFunction(vm, ins.A, receiver, args)
			if err != nil {
				return nil, err
			}
			push(r)
		case OpTypeIs:
			operand := pop()
			push(Single(Bool(isType(operand, p.TypeNames[ins.A]))))
		case OpTypeAs:
			operand := pop()
			if isType(operand, p.TypeNames[ins.A]) {
				push(operand)
			} else {
				push(Empty())
			}
		case OpWhere:
			receiver := pop()
			sub := p.Subplans[ins.A]
			var out Collection
			for i, item := range receiver {
				r, err := vm.runPlan(sub, Single(item), i, Single(Int(int64(len(receiver)))))
				if err != nil {
					return nil, err
				}
				if r.AsBool() {
					out = append(out, item)
				}
			}
			push(out)
		case OpSelect:
			receiver := pop()
			sub := p.Subplans[ins.A]
			var out Collection
			for i, item := range receiver {
				r, err := vm.runPlan(sub, Single(item), i, Single(Int(int64(len(receiver)))))
				if err != nil {
					return nil, err
				}
				out = append(out, r...)
			}
			push(out)
		case OpRepeat:
			receiver := pop()
			result, err := vm.repeat(p.Subplans[ins.A], receiver)
			if err != nil {
				return nil, err
			}
			push(result)
		case OpAggregate:
			receiver := pop()
			sub := p.Subplans[ins.A]
			acc := Empty()
			if ins.B >= 0 {
				init, err := vm.runPlan(p.Subplans[ins.B], this, index, total)
				if err != nil {
					return nil, err
				}
				acc = init
			}
			for i, item := range receiver {
				var err error
				acc, err = vm.runPlan(sub, Single(item), i, acc)
				if err != nil {
					return nil, err
				}
			}
			push(acc)
		case OpExists:
			receiver := pop()
			if ins.A < 0 {
				push(Single(Bool(len(receiver) > 0)))
				continue
			}
			sub := p.Subplans[ins.A]
			found := false
			for i, item := range receiver {
				r, err := vm.runPlan(sub, Single(item), i, Single(Int(int64(len(receiver)))))
				if err != nil {
					return nil, err
				}
				if r.AsBool() {
					found = true
					break
				}
			}
			push(Single(Bool(found)))
		case OpAll:
			receiver := pop()
			sub := p.Subplans[ins.A]
			ok := true
			for i, item := range receiver {
				r, err := vm.runPlan(sub, Single(item), i, Single(Int(int64(len(receiver)))))
				if err != nil {
					return nil, err
				}
				if !r.AsBool() {
					ok = false
					break
				}
			}
			push(Single(Bool(ok)))
		case OpIif:
			pop() // implicit receiver, unused by iif
			pred, err := vm.runPlan(p.Subplans[ins.A], this, index, total)
			if err != nil {
				return nil, err
			}
			switch {
			case pred.AsBool():
				r, err := vm.runPlan(p.Subplans[ins.B], this, index, total)
				if err != nil {
					return nil, err
				}
				push(r)
			case ins.C >= 0:
				r, err := vm.runPlan(p.Subplans[ins.C], this, index, total)
				if err != nil {
					return nil, err
				}
				push(r)
			default:
				push(Empty())
			}
		default:
			return nil, fmt.Errorf("fhirpath: unknown opcode %d", ins.Op)
		}
	}
	if len(stack) == 0 {
		return Empty(), nil
	}
	return pop(), nil
}

// repeat implements repeat(projection): iterate the projection to a fixed
// point, collecting newly produced items each round until no new ones
// appear.
func (vm *VM) repeat(sub *Plan, receiver Collection) (Collection, error) {
	var result Collection
	frontier := receiver
	for len(frontier) > 0 {
		var next Collection
		for i, item := range frontier {
			r, err := vm.runPlan(sub, Single(item), i, Single(Int(int64(len(frontier)))))
			if err != nil {
				return nil, err
			}
			next = append(next, r...)
		}
		var fresh Collection
		for _, v := range next {
			if !containsValue(result, v) && !containsValue(fresh, v) {
				fresh = append(fresh, v)
			}
		}
		if len(fresh) == 0 {
			break
		}
		result = append(result, fresh...)
		frontier = fresh
	}
	return result, nil
}

func containsValue(c Collection, v Value) bool {
	for _, u := range c {
		if eq, ok := Equal(u, v); ok && eq {
			return true
		}
	}
	return false
}

func applyUnary(opID int, operand Collection) (Collection, error) {
	if len(operand) == 0 {
		return Empty(), nil
	}
	if len(operand) != 1 {
		return nil, fmt.Errorf("fhirpath: unary operator requires a singleton operand")
	}
	v := operand[0].Materialize()
	if !isNumeric(v.Kind) {
		return nil, fmt.Errorf("fhirpath: unary operator on non-numeric operand")
	}
	if opID == unaryNeg {
		if v.Kind == KindInteger {
			return Single(Int(-v.Int)), nil
		}
		return Single(Dec(-v.Dec)), nil
	}
	return Single(v), nil
}

func applyBinary(opID int, left, right Collection) (Collection, error) {
	switch opID {
	case binUnion:
		return distinctCollection(append(append(Collection{}, left...), right...)), nil
	case binIn:
		if len(left) == 0 {
			return Empty(), nil
		}
		return Single(Bool(isSubset(left, right))), nil
	case binContains:
		if len(right) == 0 {
			return Empty(), nil
		}
		return Single(Bool(isSubset(right, left))), nil
	case binEq, binNe:
		if len(left) == 0 || len(right) == 0 {
			return Empty(), nil
		}
		eq := collectionsEqual(left, right)
		if opID == binNe {
			eq = !eq
		}
		return Single(Bool(eq)), nil
	case binEquiv, binNEquiv:
		eq := collectionsEquivalent(left, right)
		if opID == binNEquiv {
			eq = !eq
		}
		return Single(Bool(eq)), nil
	case binAnd, binOr, binXor, binImplies:
		return applyLogical(opID, left, right)
	}

	if len(left) == 0 || len(right) == 0 {
		return Empty(), nil
	}
	if len(left) != 1 || len(right) != 1 {
		return nil, fmt.Errorf("fhirpath: operator requires singleton operands")
	}
	a, b := left[0].Materialize(), right[0].Materialize()

	switch opID {
	case binAdd, binSub, binMul, binDiv, binDivInt, binMod:
		v, err := arith(opID, a, b)
		if err != nil {
			return nil, err
		}
		return Single(v), nil
	case binConcat:
		return Single(Str(a.String() + b.String())), nil
	case binLt, binGt, binLe, binGe:
		cmp, ok := Compare(a, b)
		if !ok {
			return Empty(), nil
		}
		switch opID {
		case binLt:
			return Single(Bool(cmp < 0)), nil
		case binGt:
			return Single(Bool(cmp > 0)), nil
		case binLe:
			return Single(Bool(cmp <= 0)), nil
		default:
			return Single(Bool(cmp >= 0)), nil
		}
	}
	return nil, fmt.Errorf("fhirpath: unhandled binary operator id %d", opID)
}

func arith(opID int, a, b Value) (Value, error) {
	if a.Kind == KindQuantity || b.Kind == KindQuantity {
		return arithQuantity(opID, a, b)
	}
	if !isNumeric(a.Kind) || !isNumeric(b.Kind) {
		return Value{}, fmt.Errorf("fhirpath: arithmetic on non-numeric operand")
	}
	x, y := numeric(a), numeric(b)
	switch opID {
	case binAdd:
		return decOrInt(a, b, x+y), nil
	case binSub:
		return decOrInt(a, b, x-y), nil
	case binMul:
		return decOrInt(a, b, x*y), nil
	case binDiv:
		if y == 0 {
			return Value{}, fmt.Errorf("fhirpath: division by zero")
		}
		return Dec(x / y), nil
	case binDivInt:
		if y == 0 {
			return Value{}, fmt.Errorf("fhirpath: division by zero")
		}
		return Int(int64(math.Trunc(x / y))), nil
	case binMod:
		if y == 0 {
			return Value{}, fmt.Errorf("fhirpath: division by zero")
		}
		return Dec(math.Mod(x, y)), nil
	}
	return Value{}, fmt.Errorf("fhirpath: unknown arithmetic operator")
}

func decOrInt(a, b Value, result float64) Value {
	if a.Kind == KindInteger && b.Kind == KindInteger {
		return Int(int64(result))
	}
	return Dec(result)
}

func arithQuantity(opID int, a, b Value) (Value, error) {
	qa, qb := toQuantity(a), toQuantity(b)
	switch opID {
	case binAdd:
		if qa.Unit != qb.Unit {
			return Value{}, fmt.Errorf("fhirpath: quantity unit mismatch (%s vs %s)", qa.Unit, qb.Unit)
		}
		return Value{Kind: KindQuantity, Quantity: Quantity{Value: qa.Value + qb.Value, Unit: qa.Unit}}, nil
	case binSub:
		if qa.Unit != qb.Unit {
			return Value{}, fmt.Errorf("fhirpath: quantity unit mismatch (%s vs %s)", qa.Unit, qb.Unit)
		}
		return Value{Kind: KindQuantity, Quantity: Quantity{Value: qa.Value - qb.Value, Unit: qa.Unit}}, nil
	case binMul:
		return Value{Kind: KindQuantity, Quantity: Quantity{Value: qa.Value * qb.Value, Unit: qa.Unit}}, nil
	case binDiv:
		if qb.Value == 0 {
			return Value{}, fmt.Errorf("fhirpath: division by zero")
		}
		return Value{Kind: KindQuantity, Quantity: Quantity{Value: qa.Value / qb.Value, Unit: qa.Unit}}, nil
	}
	return Value{}, fmt.Errorf("fhirpath: unsupported quantity operator")
}

func toQuantity(v Value) Quantity {
	if v.Kind == KindQuantity {
		return v.Quantity
	}
	return Quantity{Value: numeric(v), Unit: "1"}
}

func collectionsEqual(a, b Collection) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		eq, ok := Equal(a[i], b[i])
		if !ok || !eq {
			return false
		}
	}
	return true
}

func collectionsEquivalent(a, b Collection) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := SortCollection(a), SortCollection(b)
	for i := range sa {
		if !valuesEquivalent(sa[i], sb[i]) {
			return false
		}
	}
	return true
}

func valuesEquivalent(a, b Value) bool {
	a, b = a.Materialize(), b.Materialize()
	if a.Kind == KindString && b.Kind == KindString {
		return strings.EqualFold(strings.TrimSpace(a.Str), strings.TrimSpace(b.Str))
	}
	if isNumeric(a.Kind) && isNumeric(b.Kind) {
		return math.Abs(numeric(a)-numeric(b)) < 1e-8
	}
	eq, ok := Equal(a, b)
	return ok && eq
}

func applyLogical(opID int, left, right Collection) (Collection, error) {
	lb, lOk := tri(left)
	rb, rOk := tri(right)
	switch opID {
	case binAnd:
		if lOk && !lb {
			return Single(Bool(false)), nil
		}
		if rOk && !rb {
			return Single(Bool(false)), nil
		}
		if lOk && rOk {
			return Single(Bool(lb && rb)), nil
		}
		return Empty(), nil
	case binOr:
		if lOk && lb {
			return Single(Bool(true)), nil
		}
		if rOk && rb {
			return Single(Bool(true)), nil
		}
		if lOk && rOk {
			return Single(Bool(lb || rb)), nil
		}
		return Empty(), nil
	case binXor:
		if lOk && rOk {
			return Single(Bool(lb != rb)), nil
		}
		return Empty(), nil
	case binImplies:
		if lOk && !lb {
			return Single(Bool(true)), nil
		}
		if rOk && rb {
			return Single(Bool(true)), nil
		}
		if lOk && rOk {
			return Single(Bool(!lb || rb)), nil
		}
		return Empty(), nil
	}
	return Empty(), nil
}

// tri reads a collection as a three-valued boolean per spec §4.4's
// AsBool rule, reporting whether the value is actually known (non-empty).
func tri(c Collection) (bool, bool) {
	if len(c) == 0 {
		return false, false
	}
	if len(c) == 1 && c[0].Kind == KindBoolean {
		return c[0].Bool, true
	}
	return true, true
}
