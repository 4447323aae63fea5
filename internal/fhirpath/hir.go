package fhirpath

import "fmt"

// HIR is the name-resolved, lambda-lowered intermediate form between the AST
// and the bytecode compiler (spec §4.4 "AST -> HIR"). Functions taking a
// lambda body (where, select, repeat, aggregate, exists, all, iif) carry a
// pre-parsed subplan AST rather than re-parsing text at evaluation time;
// `iif`'s branches stay as separate children so the compiler can emit lazy
// (short-circuiting) bytecode for them.
type hirKind int

const (
	hLiteral hirKind = iota
	hThis
	hIndexVar
	hTotalVar
	hExternal
	hNavigate // field navigation step
	hIndex
	hUnary
	hBinary
	hCompare
	hAnd
	hOr
	hImplies
	hMembership
	hUnion
	hTypeIs
	hTypeAs
	hCall // built-in function call
	hSeq  // sequence of steps (a.b.c lowered into a flat chain)
)

// lambdaFuncs names functions whose arguments are themselves FHIRPath
// sub-expressions evaluated with `$this`/`$index`/`$total` bound per item,
// rather than plain eagerly evaluated arguments.
var lambdaFuncs = map[string]bool{
	"where": true, "select": true, "repeat": true, "aggregate": true,
	"exists": true, "all": true, "iif": true,
}

type hirNode struct {
	kind     hirKind
	op       string
	lit      Value
	funcID   int
	funcName string
	children []*hirNode
}

func lowerToHIR(ast *astNode) (*hirNode, error) {
	switch ast.kind {
	case ndLiteral:
		v, _ := ast.value.(Value)
		return &hirNode{kind: hLiteral, lit: v}, nil
	case ndThis:
		return &hirNode{kind: hThis}, nil
	case ndIndexVar:
		return &hirNode{kind: hIndexVar}, nil
	case ndTotalVar:
		return &hirNode{kind: hTotalVar}, nil
	case ndExternal:
		name, _ := ast.value.(string)
		return &hirNode{kind: hExternal, op: name}, nil
	case ndIdentifier:
		name, _ := ast.value.(string)
		return &hirNode{kind: hNavigate, op: name}, nil
	case ndFunction:
		return lowerFunction(ast)
	case ndInvoke:
		left, err := lowerToHIR(ast.children[0])
		if err != nil {
			return nil, err
		}
		right, err := lowerToHIR(ast.children[1])
		if err != nil {
			return nil, err
		}
		return &hirNode{kind: hSeq, children: []*hirNode{left, right}}, nil
	case ndIndex:
		left, err := lowerToHIR(ast.children[0])
		if err != nil {
			return nil, err
		}
		idx, err := lowerToHIR(ast.children[1])
		if err != nil {
			return nil, err
		}
		return &hirNode{kind: hIndex, children: []*hirNode{left, idx}}, nil
	case ndUnary:
		c, err := lowerToHIR(ast.children[0])
		if err != nil {
			return nil, err
		}
		return &hirNode{kind: hUnary, op: ast.op, children: []*hirNode{c}}, nil
	case ndBinary:
		return lowerBinaryLike(hBinary, ast)
	case ndCompare:
		return lowerBinaryLike(hCompare, ast)
	case ndAnd:
		return lowerBinaryLike(hAnd, ast)
	case ndOr:
		return lowerBinaryLike(hOr, ast)
	case ndImplies:
		return lowerBinaryLike(hImplies, ast)
	case ndMembership:
		return lowerBinaryLike(hMembership, ast)
	case ndUnion:
		return lowerBinaryLike(hUnion, ast)
	case ndTypeIs:
		c, err := lowerToHIR(ast.children[0])
		if err != nil {
			return nil, err
		}
		typeName, _ := ast.value.(string)
		return &hirNode{kind: hTypeIs, op: typeName, children: []*hirNode{c}}, nil
	case ndTypeAs:
		c, err := lowerToHIR(ast.children[0])
		if err != nil {
			return nil, err
		}
		typeName, _ := ast.value.(string)
		return &hirNode{kind: hTypeAs, op: typeName, children: []*hirNode{c}}, nil
	}
	return nil, fmt.Errorf("fhirpath: cannot lower AST node kind %d", ast.kind)
}

func lowerBinaryLike(kind hirKind, ast *astNode) (*hirNode, error) {
	left, err := lowerToHIR(ast.children[0])
	if err != nil {
		return nil, err
	}
	right, err := lowerToHIR(ast.children[1])
	if err != nil {
		return nil, err
	}
	return &hirNode{kind: kind, op: ast.op, children: []*hirNode{left, right}}, nil
}

func lowerFunction(ast *astNode) (*hirNode, error) {
	name, _ := ast.value.(string)
	id, ok := functionID(name)
	if !ok {
		return nil, fmt.Errorf("fhirpath: unknown function %q", name)
	}
	node := &hirNode{kind: hCall, funcID: id, funcName: name}
	if lambdaFuncs[name] {
		// Lambda-taking functions keep their argument subplans unevaluated;
		// iif keeps all (up to 3) branches as separate lazy children.
		for _, arg := range ast.children {
			sub, err := lowerToHIR(arg)
			if err != nil {
				return nil, err
			}
			node.children = append(node.children, sub)
		}
		return node, nil
	}
	for _, arg := range ast.children {
		sub, err := lowerToHIR(arg)
		if err != nil {
			return nil, err
		}
		node.children = append(node.children, sub)
	}
	return node, nil
}
