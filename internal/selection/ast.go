// Package selection implements the document selection language: a small
// expression language deciding whether a document operation matches a
// boolean predicate.
//
// A selection is parsed once into an immutable AST and reused. Besides
// evaluation against documents (three-valued: TRUE, FALSE, INVALID), the AST
// supports static analysis that never looks at a document: the set of buckets
// a selection can match, ordering bounds for ordered-document scans, and
// rewriting of relative-time comparisons for push-down to an index.
package selection

import (
	"regexp"
)

// Node is the interface for all AST nodes.
// The marker method prevents external types from implementing Node.
type Node interface {
	node()
	// String returns the canonical selection text of the node.
	String() string
}

// Literal is a constant: integer, float, string, boolean or null.
type Literal struct {
	Value Value
	Hex   bool // integer written as 0x...; kept for canonical output
}

// ArithOp is an arithmetic operator.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
)

func (op ArithOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	default:
		return "?"
	}
}

// Arithmetic is a binary arithmetic expression.
type Arithmetic struct {
	Left  Node
	Op    ArithOp
	Right Node
}

// CompareOp is a comparison operator.
type CompareOp int

const (
	OpEq    CompareOp = iota // ==
	OpNe                     // !=
	OpLt                     // <
	OpLe                     // <=
	OpGt                     // >
	OpGe                     // >=
	OpGlob                   // =
	OpRegex                  // =~
)

func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpGlob:
		return "="
	case OpRegex:
		return "=~"
	default:
		return "?"
	}
}

// flip returns the operator with its operands swapped: a < b is b > a.
func (op CompareOp) flip() CompareOp {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	default:
		return op
	}
}

// Comparison compares two values.
type Comparison struct {
	Left  Node
	Op    CompareOp
	Right Node

	// pattern is the compiled glob or regex when Right is a string literal.
	pattern *regexp.Regexp
}

// LogicOp is a binary logical operator.
type LogicOp int

const (
	OpAnd LogicOp = iota
	OpOr
)

func (op LogicOp) String() string {
	if op == OpAnd {
		return "and"
	}
	return "or"
}

// Logic is a short-circuiting logical AND or OR.
type Logic struct {
	Left  Node
	Op    LogicOp
	Right Node
}

// Not is logical negation.
type Not struct {
	Operand Node
}

// Group is an explicitly parenthesized expression.
type Group struct {
	Inner Node
}

// StepKind identifies a field path step.
type StepKind int

const (
	StepField    StepKind = iota // .name
	StepIndex                    // [n]
	StepKey                      // {key}
	StepVariable                 // [$x] or {$x}
)

// PathStep is one step of a field path after the document type.
type PathStep struct {
	Kind  StepKind
	Name  string // field name, map key or variable name
	Index int64  // array index for StepIndex
	Brace bool   // StepVariable written as {$x}
}

// FieldValue is a document field reference: doctype.field followed by
// struct member, index and key steps. Path is never empty and starts with a
// StepField.
type FieldValue struct {
	DocType string
	Path    []PathStep
}

// Field returns the top-level field name.
func (f *FieldValue) Field() string {
	return f.Path[0].Name
}

// IDComponent identifies a document id accessor.
type IDComponent int

const (
	IDFull IDComponent = iota
	IDScheme
	IDNamespace
	IDType
	IDSpecific
	IDGroup
	IDUser
	IDBucket
	IDOrder
)

var idComponentNames = map[string]IDComponent{
	"scheme":    IDScheme,
	"namespace": IDNamespace,
	"type":      IDType,
	"specific":  IDSpecific,
	"group":     IDGroup,
	"user":      IDUser,
	"bucket":    IDBucket,
	"order":     IDOrder,
}

func (c IDComponent) String() string {
	for name, comp := range idComponentNames {
		if comp == c {
			return name
		}
	}
	return ""
}

// IDValue is id or one of its components. WidthBits and DivisionBits are
// set for id.order(width, division).
type IDValue struct {
	Component    IDComponent
	WidthBits    uint16
	DivisionBits uint16
}

// FunctionCall applies a built-in function to its receiver: expr.name().
type FunctionCall struct {
	Receiver Node
	Name     string
}

// Now is now(): the current time in epoch seconds.
type Now struct{}

// DocumentType tests whether the document is of (or inherits) a type.
type DocumentType struct {
	Name string
}

func (*Literal) node()      {}
func (*Arithmetic) node()   {}
func (*Comparison) node()   {}
func (*Logic) node()        {}
func (*Not) node()          {}
func (*Group) node()        {}
func (*FieldValue) node()   {}
func (*IDValue) node()      {}
func (*FunctionCall) node() {}
func (*Now) node()          {}
func (*DocumentType) node() {}

// Walk calls fn for n and every node below it, depth first, stopping
// early when fn returns false for a node (its children are skipped).
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	switch x := n.(type) {
	case *Arithmetic:
		Walk(x.Left, fn)
		Walk(x.Right, fn)
	case *Comparison:
		Walk(x.Left, fn)
		Walk(x.Right, fn)
	case *Logic:
		Walk(x.Left, fn)
		Walk(x.Right, fn)
	case *Not:
		Walk(x.Operand, fn)
	case *Group:
		Walk(x.Inner, fn)
	case *FunctionCall:
		Walk(x.Receiver, fn)
	}
}

// unwrap strips any number of enclosing groups.
func unwrap(n Node) Node {
	for {
		g, ok := n.(*Group)
		if !ok {
			return n
		}
		n = g.Inner
	}
}
