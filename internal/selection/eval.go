package selection

import (
	"cmp"
	"math"
	"strconv"
	"strings"

	"docselect/internal/bucket"
	"docselect/internal/document"
)

// Evaluate evaluates a selection against the operation in ctx.
//
// The returned list holds one result per glob variable binding; use
// ToResult to collapse it. A non-nil error is a structural fault such as
// indexing a scalar field or reading id.user from an id without a user
// number. Ordinary undefinedness is reported as INVALID, not as an error.
func Evaluate(n Node, ctx *Context) (ResultList, error) {
	return evalBool(n, ctx)
}

// boundValue is a value under one combination of variable bindings.
type boundValue struct {
	Bindings Bindings
	Value    Value
}

func single(v Value) []boundValue {
	return []boundValue{{Value: v}}
}

// evalBool evaluates n in boolean position.
func evalBool(n Node, ctx *Context) (ResultList, error) {
	ctx.visit(n)
	switch x := n.(type) {
	case *Logic:
		return evalLogic(x, ctx)
	case *Not:
		l, err := evalBool(x.Operand, ctx)
		if err != nil {
			return nil, err
		}
		return l.Not(), nil
	case *Group:
		return evalBool(x.Inner, ctx)
	case *Comparison:
		return evalComparison(x, ctx)
	case *DocumentType:
		return Single(resultOf(ctx.IsType(x.Name))), nil
	case *FieldValue:
		return evalPresence(x, ctx)
	}

	vals, err := evalValueNode(n, ctx)
	if err != nil {
		return nil, err
	}
	out := make(ResultList, len(vals))
	for i, bv := range vals {
		out[i] = ResultEntry{Bindings: bv.Bindings, Result: truth(bv.Value)}
	}
	return out, nil
}

// truth coerces a value to a result.
func truth(v Value) Result {
	switch v.Kind {
	case ValInvalid:
		return Invalid
	case ValNull:
		return False
	case ValBool:
		return resultOf(v.Bool)
	case ValInt:
		return resultOf(v.Int != 0)
	case ValFloat:
		return resultOf(v.Float != 0)
	default:
		return True
	}
}

func evalLogic(x *Logic, ctx *Context) (ResultList, error) {
	left, err := evalBool(x.Left, ctx)
	if err != nil {
		return nil, err
	}
	switch r := left.ToResult(); {
	case x.Op == OpAnd && r == False, x.Op == OpOr && r == True:
		return left, nil
	}
	right, err := evalBool(x.Right, ctx)
	if err != nil {
		return nil, err
	}
	if x.Op == OpAnd {
		return left.And(right), nil
	}
	return left.Or(right), nil
}

// evalPresence answers a bare field reference. It is never INVALID.
func evalPresence(x *FieldValue, ctx *Context) (ResultList, error) {
	if !ctx.HasField(x.DocType, x.Field()) {
		return Single(False), nil
	}
	if len(x.Path) == 1 {
		return Single(True), nil
	}
	if _, ok := ctx.Operation().(*document.Put); !ok {
		return Single(True), nil
	}
	lk := ctx.Lookup(x.DocType, x.Field())
	var vals []boundValue
	if err := walkPath(x, lk.Value, x.Path[1:], nil, &vals); err != nil {
		return nil, err
	}
	out := make(ResultList, len(vals))
	for i, bv := range vals {
		out[i] = ResultEntry{Bindings: bv.Bindings, Result: resultOf(bv.Value.Kind != ValNull)}
	}
	return out, nil
}

// evalValue evaluates n in value position.
func evalValue(n Node, ctx *Context) ([]boundValue, error) {
	ctx.visit(n)
	return evalValueNode(n, ctx)
}

func evalValueNode(n Node, ctx *Context) ([]boundValue, error) {
	switch x := n.(type) {
	case *Literal:
		return single(x.Value), nil
	case *Group:
		return evalValue(x.Inner, ctx)
	case *FieldValue:
		return evalField(x, ctx)
	case *IDValue:
		v, err := evalID(x, ctx)
		if err != nil {
			return nil, err
		}
		return single(v), nil
	case *Now:
		return single(IntValue(ctx.now().Unix())), nil
	case *FunctionCall:
		recv, err := evalValue(x.Receiver, ctx)
		if err != nil {
			return nil, err
		}
		out := make([]boundValue, len(recv))
		for i, bv := range recv {
			out[i] = boundValue{Bindings: bv.Bindings, Value: callFunction(x.Name, bv.Value)}
		}
		return out, nil
	case *Arithmetic:
		return evalArithmetic(x, ctx)
	}

	// Boolean expressions used as values.
	l, err := evalBool(n, ctx)
	if err != nil {
		return nil, err
	}
	out := make([]boundValue, 0, len(l))
	for _, e := range l.orFalse() {
		v := InvalidValue()
		if e.Result != Invalid {
			v = BoolValue(e.Result == True)
		}
		out = append(out, boundValue{Bindings: e.Bindings, Value: v})
	}
	return out, nil
}

// crossProduct calls fn for every pair of operand values whose bindings
// are consistent, with the merged bindings.
func crossProduct(left, right []boundValue, fn func(b Bindings, l, r Value)) {
	for _, l := range left {
		for _, r := range right {
			if l.Bindings.consistent(r.Bindings) {
				fn(l.Bindings.merge(r.Bindings), l.Value, r.Value)
			}
		}
	}
}

func evalOperands(left, right Node, ctx *Context) ([]boundValue, []boundValue, error) {
	l, err := evalValue(left, ctx)
	if err != nil {
		return nil, nil, err
	}
	r, err := evalValue(right, ctx)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func evalArithmetic(x *Arithmetic, ctx *Context) ([]boundValue, error) {
	left, right, err := evalOperands(x.Left, x.Right, ctx)
	if err != nil {
		return nil, err
	}
	var out []boundValue
	crossProduct(left, right, func(b Bindings, l, r Value) {
		out = append(out, boundValue{Bindings: b, Value: arith(x.Op, l, r)})
	})
	return out, nil
}

// arith applies an arithmetic operator. Undefined combinations are invalid.
func arith(op ArithOp, l, r Value) Value {
	if l.Kind == ValInvalid || r.Kind == ValInvalid || l.Kind == ValNull || r.Kind == ValNull {
		return InvalidValue()
	}
	if op == OpAdd && (l.Kind == ValString || r.Kind == ValString) {
		if (l.Kind == ValString || l.IsNumeric()) && (r.Kind == ValString || r.IsNumeric()) {
			return StringValue(l.String() + r.String())
		}
		return InvalidValue()
	}
	if l.Kind == ValInt && r.Kind == ValInt {
		a, b := l.Int, r.Int
		switch op {
		case OpAdd:
			return IntValue(a + b)
		case OpSub:
			return IntValue(a - b)
		case OpMul:
			return IntValue(a * b)
		case OpDiv:
			if b == 0 {
				return InvalidValue()
			}
			return FloatValue(float64(a) / float64(b))
		case OpMod:
			if b == 0 {
				return InvalidValue()
			}
			return IntValue(a % b)
		}
	}
	a, aok := l.ToFloat()
	b, bok := r.ToFloat()
	if !aok || !bok {
		return InvalidValue()
	}
	switch op {
	case OpAdd:
		return FloatValue(a + b)
	case OpSub:
		return FloatValue(a - b)
	case OpMul:
		return FloatValue(a * b)
	case OpDiv:
		if b == 0 {
			return InvalidValue()
		}
		return FloatValue(a / b)
	case OpMod:
		if b == 0 {
			return InvalidValue()
		}
		return FloatValue(math.Mod(a, b))
	}
	return InvalidValue()
}

func evalComparison(x *Comparison, ctx *Context) (ResultList, error) {
	if r, ok := bucketContainment(x, ctx); ok {
		return Single(r), nil
	}
	left, right, err := evalOperands(x.Left, x.Right, ctx)
	if err != nil {
		return nil, err
	}
	var out ResultList
	crossProduct(left, right, func(b Bindings, l, r Value) {
		out = append(out, ResultEntry{Bindings: b, Result: x.compare(x.Op, l, r)})
	})
	return out, nil
}

// bucketContainment handles id.bucket == <int>: TRUE when the literal names
// a bucket containing the document's bucket.
func bucketContainment(x *Comparison, ctx *Context) (Result, bool) {
	if x.Op != OpEq && x.Op != OpGlob && x.Op != OpNe {
		return False, false
	}
	idv, lit, _, ok := idLiteralPair(x)
	if !ok || idv.Component != IDBucket || lit.Value.Kind != ValInt {
		return False, false
	}
	ctx.visit(x.Left)
	ctx.visit(x.Right)
	doc := ctx.factory.BucketID(ctx.DocumentID())
	r := resultOf(bucket.FromRaw(uint64(lit.Value.Int)).Contains(doc))
	if x.Op == OpNe {
		r = r.Not()
	}
	return r, true
}

// idLiteralPair matches "id... OP literal" in either operand order. flipped
// is true when the literal is on the left.
func idLiteralPair(x *Comparison) (idv *IDValue, lit *Literal, flipped, ok bool) {
	if idv, ok = unwrap(x.Left).(*IDValue); ok {
		lit, ok = unwrap(x.Right).(*Literal)
		return idv, lit, false, ok
	}
	if idv, ok = unwrap(x.Right).(*IDValue); ok {
		lit, ok = unwrap(x.Left).(*Literal)
		return idv, lit, true, ok
	}
	return nil, nil, false, false
}

// compare applies op to two values.
func (c *Comparison) compare(op CompareOp, l, r Value) Result {
	if l.Kind == ValInvalid || r.Kind == ValInvalid {
		return Invalid
	}

	// == and != are total over null; everything else is undefined.
	if l.Kind == ValNull || r.Kind == ValNull {
		both := l.Kind == r.Kind
		switch op {
		case OpEq, OpGlob, OpRegex:
			return resultOf(both)
		case OpNe:
			return resultOf(!both)
		default:
			return Invalid
		}
	}

	lc, rc := l.Kind == ValCollection, r.Kind == ValCollection
	if lc && rc {
		switch op {
		case OpEq, OpGlob, OpRegex:
			return resultOf(deepEqual(l, r))
		case OpNe:
			return resultOf(!deepEqual(l, r))
		default:
			return Invalid
		}
	}
	if lc || rc {
		return c.compareElements(op, l, r)
	}

	switch op {
	case OpGlob, OpRegex:
		if l.Kind == ValString && r.Kind == ValString {
			re, err := c.matcher(r.Str)
			if err != nil {
				return Invalid
			}
			return resultOf(re.MatchString(l.Str))
		}
		return resultOf(equalValues(l, r))
	case OpEq:
		return resultOf(equalValues(l, r))
	case OpNe:
		return resultOf(!equalValues(l, r))
	}

	n, ok := compareOrdered(l, r)
	if !ok {
		return Invalid
	}
	switch op {
	case OpLt:
		return resultOf(n < 0)
	case OpLe:
		return resultOf(n <= 0)
	case OpGt:
		return resultOf(n > 0)
	default:
		return resultOf(n >= 0)
	}
}

// compareElements compares a collection with a scalar: TRUE if any element
// matches. != is the negation of ==; ordering is undefined.
func (c *Comparison) compareElements(op CompareOp, l, r Value) Result {
	inner := op
	switch op {
	case OpNe:
		inner = OpEq
	case OpLt, OpLe, OpGt, OpGe:
		return Invalid
	}
	coll, scalar, collLeft := l, r, true
	if r.Kind == ValCollection {
		coll, scalar, collLeft = r, l, false
	}
	res := False
	for _, e := range coll.elements() {
		if collLeft {
			res = res.Or(c.compare(inner, e, scalar))
		} else {
			res = res.Or(c.compare(inner, scalar, e))
		}
		if res == True {
			break
		}
	}
	if op == OpNe {
		return res.Not()
	}
	return res
}

func compareOrdered(l, r Value) (int, bool) {
	switch {
	case l.Kind == ValInt && r.Kind == ValInt:
		return cmp.Compare(l.Int, r.Int), true
	case l.IsNumeric() && r.IsNumeric():
		a, _ := l.ToFloat()
		b, _ := r.ToFloat()
		return cmp.Compare(a, b), true
	case l.Kind == ValString && r.Kind == ValString:
		return strings.Compare(l.Str, r.Str), true
	}
	return 0, false
}

func equalValues(l, r Value) bool {
	if n, ok := compareOrdered(l, r); ok {
		return n == 0
	}
	switch {
	case l.Kind == ValBool && r.Kind == ValBool:
		return l.Bool == r.Bool
	case l.Kind == ValStruct && r.Kind == ValStruct:
		return deepEqual(l, r)
	}
	return false
}

func evalID(x *IDValue, ctx *Context) (Value, error) {
	id := ctx.DocumentID()
	switch x.Component {
	case IDFull:
		return StringValue(id.String()), nil
	case IDScheme:
		return StringValue(id.Scheme()), nil
	case IDNamespace:
		return StringValue(id.Namespace()), nil
	case IDType:
		if id.DocType() == "" {
			return Value{}, newEvalError(x, ErrIDComponentMissing, "document id %s has no document type", id)
		}
		return StringValue(id.DocType()), nil
	case IDSpecific:
		return StringValue(id.Specific()), nil
	case IDGroup:
		if !id.HasGroup() {
			return Value{}, newEvalError(x, ErrIDComponentMissing, "document id %s has no group", id)
		}
		return StringValue(id.Group()), nil
	case IDUser:
		if !id.HasNumber() {
			return Value{}, newEvalError(x, ErrIDComponentMissing, "document id %s has no user number", id)
		}
		return IntValue(int64(id.Number())), nil
	case IDBucket:
		return IntValue(int64(ctx.factory.BucketID(id).Raw())), nil
	case IDOrder:
		if !id.IsOrdered() {
			return Value{}, newEvalError(x, ErrIDComponentMissing, "document id %s is not an orderdoc id", id)
		}
		if id.WidthBits() != x.WidthBits || id.DivisionBits() != x.DivisionBits {
			return InvalidValue(), nil
		}
		return IntValue(int64(id.Ordering())), nil
	}
	return InvalidValue(), nil
}

func evalField(x *FieldValue, ctx *Context) ([]boundValue, error) {
	lk := ctx.Lookup(x.DocType, x.Field())
	switch lk.State {
	case NotApplicable:
		return single(InvalidValue()), nil
	case Absent:
		return single(NullValue()), nil
	}
	var out []boundValue
	if err := walkPath(x, lk.Value, x.Path[1:], nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// walkPath resolves the remaining path steps below v, appending one value
// per variable binding combination. A missing member or key resolves to null.
func walkPath(f *FieldValue, v document.Value, steps []PathStep, b Bindings, out *[]boundValue) error {
	if len(steps) == 0 || v == nil {
		*out = append(*out, boundValue{Bindings: b, Value: FromDocument(v)})
		return nil
	}
	step, rest := steps[0], steps[1:]

	switch step.Kind {
	case StepField:
		switch c := v.(type) {
		case *document.Struct:
			member, _ := c.Field(step.Name)
			return walkPath(f, member, rest, b, out)
		case document.Map:
			switch step.Name {
			case "key":
				keys := make(document.Array, len(c))
				for i, e := range c {
					keys[i] = e.Key
				}
				return walkPath(f, keys, rest, b, out)
			case "value":
				vals := make(document.Array, len(c))
				for i, e := range c {
					vals[i] = e.Value
				}
				return walkPath(f, vals, rest, b, out)
			}
		case document.Array:
			// Member access on an array of structs collects the member of every element.
			members := make(document.Array, 0, len(c))
			for _, e := range c {
				st, ok := e.(*document.Struct)
				if !ok {
					return mismatch(f, step, e)
				}
				if m, ok := st.Field(step.Name); ok {
					members = append(members, m)
				}
			}
			return walkPath(f, members, rest, b, out)
		}

	case StepIndex:
		if arr, ok := v.(document.Array); ok {
			if step.Index < 0 || step.Index >= int64(len(arr)) {
				return walkPath(f, nil, rest, b, out)
			}
			return walkPath(f, arr[step.Index], rest, b, out)
		}

	case StepKey:
		switch c := v.(type) {
		case document.Map:
			val, _ := c.Lookup(step.Name)
			return walkPath(f, val, rest, b, out)
		case document.WeightedSet:
			w, ok := c.Weight(step.Name)
			if !ok {
				return walkPath(f, nil, rest, b, out)
			}
			return walkPath(f, document.IntValue(w), rest, b, out)
		}

	case StepVariable:
		each := func(key string, elem document.Value) error {
			if bound, ok := b[step.Name]; ok && bound != key {
				return nil
			}
			return walkPath(f, elem, rest, b.with(step.Name, key), out)
		}
		switch c := v.(type) {
		case document.Array:
			for i, e := range c {
				if err := each(strconv.Itoa(i), e); err != nil {
					return err
				}
			}
			return nil
		case document.Map:
			for _, e := range c {
				if err := each(e.Key.String(), e.Value); err != nil {
					return err
				}
			}
			return nil
		case document.WeightedSet:
			for _, it := range c {
				if err := each(it.Key.String(), document.IntValue(it.Weight)); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return mismatch(f, step, v)
}

func mismatch(f *FieldValue, step PathStep, v document.Value) error {
	var desc string
	switch step.Kind {
	case StepField:
		desc = "member access ." + step.Name
	case StepIndex:
		desc = "index [" + strconv.FormatInt(step.Index, 10) + "]"
	case StepKey:
		desc = "key {" + step.Name + "}"
	default:
		desc = "variable $" + step.Name
	}
	return newEvalError(f, ErrStructuralMismatch, "%s on %s value", desc, documentKind(v))
}

func documentKind(v document.Value) string {
	switch v.(type) {
	case document.IntValue:
		return "integer"
	case document.FloatValue:
		return "float"
	case document.StringValue:
		return "string"
	case document.BoolValue:
		return "bool"
	case document.Array:
		return "array"
	case document.Map:
		return "map"
	case document.WeightedSet:
		return "weighted set"
	case *document.Struct:
		return "struct"
	default:
		return "unknown"
	}
}
