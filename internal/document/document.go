package document

import (
	"fmt"
	"maps"
	"slices"
)

// Document is a typed set of field values identified by an id.
type Document struct {
	ID     ID
	Type   *DocumentType
	Fields map[string]Value
}

// New creates an empty document.
func New(dt *DocumentType, id ID) *Document {
	return &Document{ID: id, Type: dt, Fields: make(map[string]Value)}
}

// Get returns a field value; ok is false when the field is not set.
func (d *Document) Get(name string) (Value, bool) {
	v, ok := d.Fields[name]
	return v, ok
}

// Set assigns a field value. The field must exist on the document type.
func (d *Document) Set(name string, v Value) error {
	if _, ok := d.Type.Field(name); !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, d.Type.Name(), name)
	}
	d.Fields[name] = v
	return nil
}

// FieldNames returns the names of set fields in sorted order.
func (d *Document) FieldNames() []string {
	return slices.Sorted(maps.Keys(d.Fields))
}

// UpdateOp is the kind of change a field update applies.
type UpdateOp int

const (
	UpdateAssign UpdateOp = iota
	UpdateAdd
	UpdateRemove
	UpdateIncrement
	UpdateClear
)

func (op UpdateOp) String() string {
	switch op {
	case UpdateAssign:
		return "assign"
	case UpdateAdd:
		return "add"
	case UpdateRemove:
		return "remove"
	case UpdateIncrement:
		return "increment"
	case UpdateClear:
		return "clear"
	default:
		return "unknown"
	}
}

// FieldUpdate is one partial change to a field. Field may be a dotted
// compound name addressing a struct member.
type FieldUpdate struct {
	Field string
	Op    UpdateOp
	Value Value
}

// Operation is a document operation: *Put, *Update, *Remove or *Get.
type Operation interface {
	// DocumentID returns the id of the document the operation targets.
	DocumentID() ID
	operation()
}

// Put stores a full document.
type Put struct {
	Document *Document
}

// Update applies partial field updates to a stored document.
type Update struct {
	ID      ID
	Type    *DocumentType
	Updates []FieldUpdate
}

// Remove deletes a document.
type Remove struct {
	ID ID
}

// Get fetches a document.
type Get struct {
	ID ID
}

func (*Put) operation()    {}
func (*Update) operation() {}
func (*Remove) operation() {}
func (*Get) operation()    {}

func (p *Put) DocumentID() ID    { return p.Document.ID }
func (u *Update) DocumentID() ID { return u.ID }
func (r *Remove) DocumentID() ID { return r.ID }
func (g *Get) DocumentID() ID    { return g.ID }

// HasFieldUpdate reports whether the update touches the named top-level field.
func (u *Update) HasFieldUpdate(field string) bool {
	for _, fu := range u.Updates {
		if ParseCompoundName(fu.Field).First() == field {
			return true
		}
	}
	return false
}

// OperationName returns "put", "update", "remove" or "get".
func OperationName(op Operation) string {
	switch op.(type) {
	case *Put:
		return "put"
	case *Update:
		return "update"
	case *Remove:
		return "remove"
	case *Get:
		return "get"
	default:
		return "unknown"
	}
}
