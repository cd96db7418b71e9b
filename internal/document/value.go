package document

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a field value. The concrete types are IntValue, FloatValue,
// StringValue, BoolValue, Array, WeightedSet, Map and *Struct.
type Value interface {
	// String returns a short human-readable rendering.
	String() string
	value()
}

// IntValue holds int and long fields.
type IntValue int64

// FloatValue holds float and double fields.
type FloatValue float64

// StringValue holds string fields.
type StringValue string

// BoolValue holds bool fields.
type BoolValue bool

// Array is an ordered list of values.
type Array []Value

// WeightedItem is one member of a weighted set.
type WeightedItem struct {
	Key    Value
	Weight int64
}

// WeightedSet is a set of keys with integer weights, in insertion order.
type WeightedSet []WeightedItem

// MapEntry is one key/value pair of a map.
type MapEntry struct {
	Key   Value
	Value Value
}

// Map is an insertion-ordered map.
type Map []MapEntry

// Struct is a struct value.
type Struct struct {
	Type   string
	Fields map[string]Value
}

func (IntValue) value()    {}
func (FloatValue) value()  {}
func (StringValue) value() {}
func (BoolValue) value()   {}
func (Array) value()       {}
func (WeightedSet) value() {}
func (Map) value()         {}
func (*Struct) value()     {}

func (v IntValue) String() string { return strconv.FormatInt(int64(v), 10) }

func (v FloatValue) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 64) }

func (v StringValue) String() string { return string(v) }

func (v BoolValue) String() string { return strconv.FormatBool(bool(v)) }

func (a Array) String() string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (w WeightedSet) String() string {
	parts := make([]string, len(w))
	for i, it := range w {
		parts[i] = fmt.Sprintf("%s:%d", it.Key, it.Weight)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (m Map) String() string {
	parts := make([]string, len(m))
	for i, e := range m {
		parts[i] = e.Key.String() + ":" + e.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (s *Struct) String() string {
	return fmt.Sprintf("%s%v", s.Type, s.Fields)
}

// Lookup returns the value stored under a key whose string form equals key.
func (m Map) Lookup(key string) (Value, bool) {
	for _, e := range m {
		if e.Key.String() == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Weight returns the weight of a key whose string form equals key.
func (w WeightedSet) Weight(key string) (int64, bool) {
	for _, it := range w {
		if it.Key.String() == key {
			return it.Weight, true
		}
	}
	return 0, false
}

// Field returns a struct member.
func (s *Struct) Field(name string) (Value, bool) {
	v, ok := s.Fields[name]
	return v, ok
}
