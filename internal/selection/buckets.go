package selection

import (
	"docselect/internal/bucket"
	"docselect/internal/document"
)

// BucketsFor computes the buckets a selection can match without looking at
// any document. ok is false when the selection does not constrain buckets
// and every bucket must be scanned.
//
// Only id comparisons against literals with == or = constrain:
//
//	id == "id:ns:type::x"   the bucket of that document
//	id.user == 123         BucketID(32, 123)
//	id.group == "g"        BucketID(32, location of g)
//	id.bucket == 0x...     that bucket
//
// AND intersects (an unconstrained side is ignored), OR unites (an
// unconstrained side makes the whole OR unconstrained) and NOT is never
// constrained.
func BucketsFor(n Node, f bucket.Factory) (bucket.Set, bool) {
	switch x := n.(type) {
	case *Group:
		return BucketsFor(x.Inner, f)
	case *Logic:
		left, lok := BucketsFor(x.Left, f)
		right, rok := BucketsFor(x.Right, f)
		if x.Op == OpOr {
			if !lok || !rok {
				return nil, false
			}
			return left.Union(right), true
		}
		switch {
		case lok && rok:
			return left.Intersection(right), true
		case lok:
			return left, true
		case rok:
			return right, true
		}
		return nil, false
	case *Comparison:
		return comparisonBuckets(x, f)
	}
	return nil, false
}

func comparisonBuckets(x *Comparison, f bucket.Factory) (bucket.Set, bool) {
	if x.Op != OpEq && x.Op != OpGlob {
		return nil, false
	}
	idv, lit, _, ok := idLiteralPair(x)
	if !ok {
		return nil, false
	}
	v := lit.Value

	switch idv.Component {
	case IDFull:
		if v.Kind != ValString || (x.Op == OpGlob && HasGlobMeta(v.Str)) {
			return nil, false
		}
		id, err := document.ParseID(v.Str)
		if err != nil {
			return nil, false
		}
		return bucket.NewSet(f.BucketID(id)), true
	case IDUser:
		if v.Kind != ValInt {
			return nil, false
		}
		return bucket.NewSet(bucket.New(32, uint64(v.Int))), true
	case IDGroup:
		if v.Kind != ValString || (x.Op == OpGlob && HasGlobMeta(v.Str)) {
			return nil, false
		}
		return bucket.NewSet(bucket.New(32, uint64(bucket.GroupLocation(v.Str)))), true
	case IDBucket:
		if v.Kind != ValInt {
			return nil, false
		}
		return bucket.NewSet(bucket.FromRaw(uint64(v.Int))), true
	}
	return nil, false
}
