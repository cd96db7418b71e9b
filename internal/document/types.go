// Package document models documents, document types and the operations a
// document store applies to them.
//
// Document types form a DAG through inheritance. The registry flattens each
// type's field table (own plus inherited fields) once at registration, so
// field lookup is a plain map access.
package document

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Kind identifies a data type.
type Kind int

const (
	KindInt Kind = iota
	KindLong
	KindFloat
	KindDouble
	KindString
	KindBool
	KindArray
	KindMap
	KindWeightedSet
	KindStruct
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindWeightedSet:
		return "weightedset"
	case KindStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// DataType describes the type of a field value.
// Elem is set for arrays and weighted sets, Key and Value for maps,
// Struct for structs.
type DataType struct {
	Kind   Kind
	Elem   *DataType
	Key    *DataType
	Value  *DataType
	Struct *StructType
}

// Primitive data types.
var (
	Int    = &DataType{Kind: KindInt}
	Long   = &DataType{Kind: KindLong}
	Float  = &DataType{Kind: KindFloat}
	Double = &DataType{Kind: KindDouble}
	String = &DataType{Kind: KindString}
	Bool   = &DataType{Kind: KindBool}
)

// ArrayOf returns an array type.
func ArrayOf(elem *DataType) *DataType { return &DataType{Kind: KindArray, Elem: elem} }

// MapOf returns a map type.
func MapOf(key, value *DataType) *DataType { return &DataType{Kind: KindMap, Key: key, Value: value} }

// WeightedSetOf returns a weighted set type.
func WeightedSetOf(elem *DataType) *DataType { return &DataType{Kind: KindWeightedSet, Elem: elem} }

// StructOf returns a struct type.
func StructOf(st *StructType) *DataType { return &DataType{Kind: KindStruct, Struct: st} }

// IsNumeric reports whether values of t are numbers.
func (t *DataType) IsNumeric() bool {
	switch t.Kind {
	case KindInt, KindLong, KindFloat, KindDouble:
		return true
	}
	return false
}

func (t *DataType) String() string {
	switch t.Kind {
	case KindArray:
		return "array<" + t.Elem.String() + ">"
	case KindWeightedSet:
		return "weightedset<" + t.Elem.String() + ">"
	case KindMap:
		return "map<" + t.Key.String() + "," + t.Value.String() + ">"
	case KindStruct:
		return t.Struct.Name
	default:
		return t.Kind.String()
	}
}

// StructType is a named struct with typed fields.
type StructType struct {
	Name   string
	Fields map[string]*DataType
}

// Field is a named, typed document field.
type Field struct {
	Name string
	Type *DataType
}

// DocumentType is a registered document type. Immutable after registration.
type DocumentType struct {
	name     string
	parents  []*DocumentType
	own      map[string]*Field
	fields   map[string]*Field // own + inherited, flattened
	ancestry map[string]bool   // self and all ancestors
}

// Name returns the type name.
func (t *DocumentType) Name() string { return t.name }

// Parents returns the directly inherited types.
func (t *DocumentType) Parents() []*DocumentType { return slices.Clone(t.parents) }

// Field returns a field declared by t or one of its ancestors.
func (t *DocumentType) Field(name string) (*Field, bool) {
	f, ok := t.fields[name]
	return f, ok
}

// FieldNames returns all visible field names in sorted order.
func (t *DocumentType) FieldNames() []string {
	return slices.Sorted(maps.Keys(t.fields))
}

// IsA reports whether t is the named type or inherits from it.
func (t *DocumentType) IsA(name string) bool {
	return t.ancestry[name]
}

// Registry errors.
var (
	ErrDuplicateType   = errors.New("document type already registered")
	ErrUnknownParent   = errors.New("unknown parent document type")
	ErrFieldConflict   = errors.New("conflicting inherited field")
	ErrUnknownDocType  = errors.New("unknown document type")
	ErrUnknownField    = errors.New("unknown field")
	ErrInvalidTypeName = errors.New("invalid document type name")
)

// Registry holds document types. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*DocumentType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*DocumentType)}
}

// Register adds a document type. Parents must already be registered.
// An inherited field may be redeclared only with an identical type.
func (r *Registry) Register(name string, inherits []string, fields ...Field) (*DocumentType, error) {
	if name == "" || strings.ContainsAny(name, ".:{}[] ") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTypeName, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.types[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateType, name)
	}

	dt := &DocumentType{
		name:     name,
		own:      make(map[string]*Field, len(fields)),
		fields:   make(map[string]*Field),
		ancestry: map[string]bool{name: true},
	}
	for _, pname := range inherits {
		parent, ok := r.types[pname]
		if !ok {
			return nil, fmt.Errorf("%w: %s inherits %s", ErrUnknownParent, name, pname)
		}
		dt.parents = append(dt.parents, parent)
		maps.Copy(dt.ancestry, parent.ancestry)
		for fname, f := range parent.fields {
			if prev, ok := dt.fields[fname]; ok && prev.Type.String() != f.Type.String() {
				return nil, fmt.Errorf("%w: %s.%s is %s and %s", ErrFieldConflict, name, fname, prev.Type, f.Type)
			}
			dt.fields[fname] = f
		}
	}
	for i := range fields {
		f := &fields[i]
		if prev, ok := dt.fields[f.Name]; ok && prev.Type.String() != f.Type.String() {
			return nil, fmt.Errorf("%w: %s.%s redeclared as %s (inherited %s)", ErrFieldConflict, name, f.Name, f.Type, prev.Type)
		}
		dt.own[f.Name] = f
		dt.fields[f.Name] = f
	}

	r.types[name] = dt
	return dt, nil
}

// DocumentType looks up a registered type.
func (r *Registry) DocumentType(name string) (*DocumentType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dt, ok := r.types[name]
	return dt, ok
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.types))
}

// FieldType resolves a dotted field name (struct members separated by '.')
// on a registered document type.
func (r *Registry) FieldType(docType, fieldPath string) (*DataType, bool) {
	dt, ok := r.DocumentType(docType)
	if !ok {
		return nil, false
	}
	return dt.FieldType(fieldPath)
}

// FieldType resolves a dotted field name on t. Struct members of array
// elements resolve through the array.
func (t *DocumentType) FieldType(fieldPath string) (*DataType, bool) {
	name := ParseCompoundName(fieldPath)
	if name.Len() == 0 {
		return nil, false
	}
	f, ok := t.Field(name.First())
	if !ok {
		return nil, false
	}
	typ := f.Type
	for _, member := range name.Rest() {
		for typ.Kind == KindArray {
			typ = typ.Elem
		}
		if typ.Kind != KindStruct {
			return nil, false
		}
		if typ, ok = typ.Struct.Fields[member]; !ok {
			return nil, false
		}
	}
	return typ, true
}
