package selection

// Direction is the scan direction of an ordered visit.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "descending"
	}
	return "ascending"
}

// OrderingSpec bounds an ordered scan: where to start and the orderdoc
// parameters the bound applies to.
type OrderingSpec struct {
	Direction    Direction
	Start        int64
	WidthBits    uint16
	DivisionBits uint16
}

func (o OrderingSpec) sameScheme(other OrderingSpec) bool {
	return o.WidthBits == other.WidthBits && o.DivisionBits == other.DivisionBits
}

// OrderingFor derives the start of an ordered scan in direction dir from
// id.order(width, division) comparisons. ok is false when the selection
// gives no bound for that direction.
//
// For an ascending scan "> N" starts at N+1, ">= N" and "== N" at N, and
// "<"/"<=" at 0. For a descending scan "< N" starts at N-1, "<= N" and
// "== N" at N, and ">"/">=" give no bound. AND keeps the tighter start, OR
// requires both sides and keeps the looser one; both require the same
// orderdoc parameters.
func OrderingFor(n Node, dir Direction) (OrderingSpec, bool) {
	switch x := n.(type) {
	case *Group:
		return OrderingFor(x.Inner, dir)
	case *Logic:
		left, lok := OrderingFor(x.Left, dir)
		right, rok := OrderingFor(x.Right, dir)
		if x.Op == OpOr {
			if !lok || !rok || !left.sameScheme(right) {
				return OrderingSpec{}, false
			}
			return pick(left, right, dir == Descending), true
		}
		switch {
		case lok && rok:
			if !left.sameScheme(right) {
				return OrderingSpec{}, false
			}
			return pick(left, right, dir == Ascending), true
		case lok:
			return left, true
		case rok:
			return right, true
		}
		return OrderingSpec{}, false
	case *Comparison:
		return comparisonOrdering(x, dir)
	}
	return OrderingSpec{}, false
}

// pick returns the spec with the larger start when larger is set, else the smaller.
func pick(a, b OrderingSpec, larger bool) OrderingSpec {
	if (b.Start > a.Start) == larger && b.Start != a.Start {
		return b
	}
	return a
}

func comparisonOrdering(x *Comparison, dir Direction) (OrderingSpec, bool) {
	idv, lit, flipped, ok := idLiteralPair(x)
	if !ok || idv.Component != IDOrder || lit.Value.Kind != ValInt {
		return OrderingSpec{}, false
	}
	op := x.Op
	if flipped {
		op = op.flip()
	}
	n := lit.Value.Int
	spec := OrderingSpec{Direction: dir, WidthBits: idv.WidthBits, DivisionBits: idv.DivisionBits}

	switch op {
	case OpEq, OpGlob:
		spec.Start = n
		return spec, true
	}
	if dir == Ascending {
		switch op {
		case OpGt:
			spec.Start = n + 1
		case OpGe:
			spec.Start = n
		case OpLt, OpLe:
			spec.Start = 0
		default:
			return OrderingSpec{}, false
		}
		return spec, true
	}
	switch op {
	case OpLt:
		spec.Start = n - 1
	case OpLe:
		spec.Start = n
	default:
		return OrderingSpec{}, false
	}
	return spec, true
}
