package selection

import (
	"reflect"
	"strconv"

	"docselect/internal/document"
)

// ValueKind identifies the type of an evaluated value.
type ValueKind int

const (
	ValInvalid    ValueKind = iota // not well-defined for this document
	ValNull                        // null literal or missing field
	ValInt                         // 64-bit signed integer
	ValFloat                       // 64-bit float
	ValString                      // byte string
	ValBool                        // boolean
	ValCollection                  // array, map or weighted set (Doc holds it)
	ValStruct                      // struct (Doc holds it)
)

func (k ValueKind) String() string {
	switch k {
	case ValInvalid:
		return "invalid"
	case ValNull:
		return "null"
	case ValInt:
		return "int"
	case ValFloat:
		return "float"
	case ValString:
		return "string"
	case ValBool:
		return "bool"
	case ValCollection:
		return "collection"
	case ValStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// Value is the result of evaluating a value expression.
// The zero Value is invalid.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
	Doc   document.Value // set for collections and structs
}

// IntValue creates an integer Value.
func IntValue(i int64) Value { return Value{Kind: ValInt, Int: i} }

// FloatValue creates a float Value.
func FloatValue(f float64) Value { return Value{Kind: ValFloat, Float: f} }

// StringValue creates a string Value.
func StringValue(s string) Value { return Value{Kind: ValString, Str: s} }

// BoolValue creates a boolean Value.
func BoolValue(b bool) Value { return Value{Kind: ValBool, Bool: b} }

// NullValue creates a null Value.
func NullValue() Value { return Value{Kind: ValNull} }

// InvalidValue creates an invalid Value.
func InvalidValue() Value { return Value{} }

// FromDocument converts a document field value. A nil value is null.
func FromDocument(v document.Value) Value {
	switch x := v.(type) {
	case nil:
		return NullValue()
	case document.IntValue:
		return IntValue(int64(x))
	case document.FloatValue:
		return FloatValue(float64(x))
	case document.StringValue:
		return StringValue(string(x))
	case document.BoolValue:
		return BoolValue(bool(x))
	case document.Array, document.Map, document.WeightedSet:
		return Value{Kind: ValCollection, Doc: x}
	case *document.Struct:
		return Value{Kind: ValStruct, Doc: x}
	default:
		return InvalidValue()
	}
}

// IsNumeric reports whether v is an int or a float.
func (v Value) IsNumeric() bool {
	return v.Kind == ValInt || v.Kind == ValFloat
}

// ToFloat returns a numeric value as float64.
func (v Value) ToFloat() (float64, bool) {
	switch v.Kind {
	case ValInt:
		return float64(v.Int), true
	case ValFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// String returns the plain string form used for concatenation and hashing.
func (v Value) String() string {
	switch v.Kind {
	case ValNull:
		return "null"
	case ValInt:
		return strconv.FormatInt(v.Int, 10)
	case ValFloat:
		return formatFloat(v.Float)
	case ValString:
		return v.Str
	case ValBool:
		return strconv.FormatBool(v.Bool)
	case ValCollection, ValStruct:
		return v.Doc.String()
	default:
		return "invalid"
	}
}

// elements returns the members a collection is compared by: array
// elements, map keys or weighted-set keys.
func (v Value) elements() []Value {
	var out []Value
	switch c := v.Doc.(type) {
	case document.Array:
		out = make([]Value, len(c))
		for i, e := range c {
			out[i] = FromDocument(e)
		}
	case document.Map:
		out = make([]Value, len(c))
		for i, e := range c {
			out[i] = FromDocument(e.Key)
		}
	case document.WeightedSet:
		out = make([]Value, len(c))
		for i, it := range c {
			out[i] = FromDocument(it.Key)
		}
	}
	return out
}

// deepEqual compares two collection or struct values.
func deepEqual(a, b Value) bool {
	return reflect.DeepEqual(a.Doc, b.Doc)
}

// formatFloat renders a float so it always reads back as a float.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', 'e', 'n', 'N', 'I':
			return s
		}
	}
	return s + ".0"
}
