package selection

import (
	"time"

	"docselect/internal/bucket"
	"docselect/internal/document"
)

// LookupState is the outcome of resolving a top-level field on an operation.
type LookupState int

const (
	// Present: the field has a value.
	Present LookupState = iota
	// Absent: the operation carries full content but the field is not set.
	Absent
	// NotApplicable: the operation does not carry field values (update,
	// remove, get) or the document is not of the field's type.
	NotApplicable
)

// FieldLookup is the result of resolving a top-level field.
type FieldLookup struct {
	State LookupState
	Value document.Value
}

// Context wraps one document operation for evaluation. A Context is cheap
// and not meant to be shared between goroutines.
type Context struct {
	op      document.Operation
	now     func() time.Time
	factory bucket.Factory
	trace   func(Node)
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithClock sets the clock now() reads. The default is time.Now.
func WithClock(now func() time.Time) ContextOption {
	return func(c *Context) { c.now = now }
}

// WithFactory sets the bucket factory id.bucket is computed with.
func WithFactory(f bucket.Factory) ContextOption {
	return func(c *Context) { c.factory = f }
}

// withTrace registers a hook called for every node as it is evaluated.
func withTrace(fn func(Node)) ContextOption {
	return func(c *Context) { c.trace = fn }
}

// NewContext creates an evaluation context for op.
func NewContext(op document.Operation, opts ...ContextOption) *Context {
	c := &Context{op: op, now: time.Now, factory: bucket.NewFactory()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Operation returns the wrapped operation.
func (c *Context) Operation() document.Operation {
	return c.op
}

// DocumentID returns the id of the operation's document.
func (c *Context) DocumentID() document.ID {
	return c.op.DocumentID()
}

// IsType reports whether the operation's document is of type name or
// inherits from it. Without a resolved type only the id's type is compared.
func (c *Context) IsType(name string) bool {
	var dt *document.DocumentType
	switch op := c.op.(type) {
	case *document.Put:
		dt = op.Document.Type
	case *document.Update:
		dt = op.Type
	}
	if dt != nil {
		return dt.IsA(name)
	}
	return c.op.DocumentID().DocType() == name
}

// Lookup resolves a top-level field for a path on docType.
//
//   - Put: Present or Absent, NotApplicable when the document is not of docType.
//   - Update, Remove, Get: NotApplicable; field values are never available.
func (c *Context) Lookup(docType, field string) FieldLookup {
	put, ok := c.op.(*document.Put)
	if !ok || !c.IsType(docType) {
		return FieldLookup{State: NotApplicable}
	}
	v, ok := put.Document.Get(field)
	if !ok {
		return FieldLookup{State: Absent}
	}
	return FieldLookup{State: Present, Value: v}
}

// HasField answers a bare field presence test. It is never INVALID.
//
//   - Put: whether the field is set (deeper steps are resolved by the evaluator).
//   - Update: whether the update changes the top-level field.
//   - Remove, Get: false.
func (c *Context) HasField(docType, field string) bool {
	if !c.IsType(docType) {
		return false
	}
	switch op := c.op.(type) {
	case *document.Put:
		_, ok := op.Document.Get(field)
		return ok
	case *document.Update:
		return op.HasFieldUpdate(field)
	default:
		return false
	}
}

func (c *Context) visit(n Node) {
	if c.trace != nil {
		c.trace(n)
	}
}
