package document

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrBadUpdate is returned when a field update does not fit the field's type.
var ErrBadUpdate = errors.New("bad field update")

// Apply applies partial field updates to d in order.
//
//   - assign: replace the value; a compound name assigns a struct member
//   - add: append to an array, or add keys of a weighted set (keeping the
//     existing weight of keys already present)
//   - remove: remove matching array elements or weighted-set keys
//   - increment: add a number to a numeric field (absent counts as zero);
//     integer fields only take whole increments
//   - clear: unset the field
func (d *Document) Apply(updates []FieldUpdate) error {
	for _, fu := range updates {
		if err := d.applyOne(fu); err != nil {
			return fmt.Errorf("%s %s: %w", fu.Op, fu.Field, err)
		}
	}
	return nil
}

func (d *Document) applyOne(fu FieldUpdate) error {
	name := ParseCompoundName(fu.Field)
	f, ok := d.Type.Field(name.First())
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, d.Type.Name(), name.First())
	}
	if name.Len() > 1 {
		if fu.Op != UpdateAssign {
			return fmt.Errorf("%w: only assign is supported on struct members", ErrBadUpdate)
		}
		return d.assignMember(f, name.Rest(), fu.Value)
	}

	cur, has := d.Fields[f.Name]
	switch fu.Op {
	case UpdateAssign:
		d.Fields[f.Name] = fu.Value
	case UpdateClear:
		delete(d.Fields, f.Name)

	case UpdateIncrement:
		if !f.Type.IsNumeric() {
			return fmt.Errorf("%w: %s is not numeric", ErrBadUpdate, f.Type)
		}
		next, err := increment(f.Type, cur, fu.Value)
		if err != nil {
			return err
		}
		d.Fields[f.Name] = next

	case UpdateAdd:
		switch f.Type.Kind {
		case KindArray:
			arr, _ := cur.(Array)
			add, ok := fu.Value.(Array)
			if !ok {
				return fmt.Errorf("%w: add to array needs an array", ErrBadUpdate)
			}
			d.Fields[f.Name] = append(slices.Clone(arr), add...)
		case KindWeightedSet:
			ws, _ := cur.(WeightedSet)
			add, ok := fu.Value.(WeightedSet)
			if !ok {
				return fmt.Errorf("%w: add to weighted set needs a weighted set", ErrBadUpdate)
			}
			out := slices.Clone(ws)
			for _, it := range add {
				if _, exists := out.Weight(it.Key.String()); !exists {
					out = append(out, it)
				}
			}
			d.Fields[f.Name] = out
		default:
			return fmt.Errorf("%w: cannot add to %s", ErrBadUpdate, f.Type)
		}

	case UpdateRemove:
		if !has {
			return nil
		}
		switch c := cur.(type) {
		case Array:
			drop, ok := fu.Value.(Array)
			if !ok {
				return fmt.Errorf("%w: remove from array needs an array", ErrBadUpdate)
			}
			d.Fields[f.Name] = slices.DeleteFunc(slices.Clone(c), func(v Value) bool {
				return slices.ContainsFunc(drop, func(x Value) bool { return x.String() == v.String() })
			})
		case WeightedSet:
			drop, ok := fu.Value.(WeightedSet)
			if !ok {
				return fmt.Errorf("%w: remove from weighted set needs a weighted set", ErrBadUpdate)
			}
			d.Fields[f.Name] = slices.DeleteFunc(slices.Clone(c), func(it WeightedItem) bool {
				_, found := drop.Weight(it.Key.String())
				return found
			})
		default:
			return fmt.Errorf("%w: cannot remove from %s", ErrBadUpdate, f.Type)
		}

	default:
		return fmt.Errorf("%w: unknown operation %d", ErrBadUpdate, fu.Op)
	}
	return nil
}

// assignMember sets a (possibly nested) struct member below field f.
func (d *Document) assignMember(f *Field, path []string, v Value) error {
	if f.Type.Kind != KindStruct {
		return fmt.Errorf("%w: %s is not a struct", ErrBadUpdate, f.Name)
	}
	root, _ := d.Fields[f.Name].(*Struct)
	root = cloneStruct(root, f.Type.Struct.Name)
	d.Fields[f.Name] = root

	s, st := root, f.Type.Struct
	for i, member := range path {
		mt, ok := st.Fields[member]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, st.Name, member)
		}
		if i == len(path)-1 {
			s.Fields[member] = v
			return nil
		}
		if mt.Kind != KindStruct {
			return fmt.Errorf("%w: %s.%s is not a struct", ErrBadUpdate, st.Name, member)
		}
		child, _ := s.Fields[member].(*Struct)
		child = cloneStruct(child, mt.Struct.Name)
		s.Fields[member] = child
		s, st = child, mt.Struct
	}
	return nil
}

func cloneStruct(s *Struct, typeName string) *Struct {
	out := &Struct{Type: typeName, Fields: make(map[string]Value)}
	if s != nil {
		for k, v := range s.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// increment adds by to cur, an absent cur counting as zero of type t.
// Integer fields stay exact: by must be integral and the sum must not
// overflow.
func increment(t *DataType, cur, by Value) (Value, error) {
	if cur == nil {
		if t.Kind == KindInt || t.Kind == KindLong {
			cur = IntValue(0)
		} else {
			cur = FloatValue(0)
		}
	}
	switch c := cur.(type) {
	case IntValue:
		n, err := integralOf(by)
		if err != nil {
			return nil, err
		}
		sum := c + n
		if (n > 0 && sum < c) || (n < 0 && sum > c) {
			return nil, fmt.Errorf("%w: %d + %d overflows", ErrBadUpdate, c, n)
		}
		return sum, nil
	case FloatValue:
		switch b := by.(type) {
		case FloatValue:
			return c + b, nil
		case IntValue:
			return c + FloatValue(b), nil
		}
		return nil, fmt.Errorf("%w: increment by %v", ErrBadUpdate, by)
	}
	return nil, fmt.Errorf("%w: current value %v is not a number", ErrBadUpdate, cur)
}

// integralOf converts an increment for an integer field. Feeds carry
// increments as doubles, so whole floats within int64 range are accepted.
func integralOf(by Value) (IntValue, error) {
	switch b := by.(type) {
	case IntValue:
		return b, nil
	case FloatValue:
		f := float64(b)
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, fmt.Errorf("%w: increment by %v is not a whole number", ErrBadUpdate, by)
		}
		return IntValue(f), nil
	}
	return 0, fmt.Errorf("%w: increment by %v", ErrBadUpdate, by)
}
