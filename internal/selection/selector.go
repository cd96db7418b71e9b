package selection

import (
	"docselect/internal/bucket"
	"docselect/internal/document"
)

// Selector is a parsed selection bound to a bucket factory. It is immutable
// and safe for concurrent use.
type Selector struct {
	text    string
	root    Node
	factory bucket.Factory
}

// New parses text into a Selector.
func New(text string, opts ...Option) (*Selector, error) {
	root, err := Parse(text, opts...)
	if err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	return &Selector{text: text, root: root, factory: cfg.factory}, nil
}

// Root returns the AST.
func (s *Selector) Root() Node { return s.root }

// Text returns the selection as it was given.
func (s *Selector) Text() string { return s.text }

// String returns the canonical form of the selection.
func (s *Selector) String() string { return s.root.String() }

// Evaluate evaluates the selection against op and collapses the result.
func (s *Selector) Evaluate(op document.Operation, opts ...ContextOption) (Result, error) {
	l, err := s.EvaluateList(op, opts...)
	if err != nil {
		return Invalid, err
	}
	return l.ToResult(), nil
}

// EvaluateList evaluates the selection against op, keeping per-binding results.
func (s *Selector) EvaluateList(op document.Operation, opts ...ContextOption) (ResultList, error) {
	ctx := NewContext(op, append([]ContextOption{WithFactory(s.factory)}, opts...)...)
	return Evaluate(s.root, ctx)
}

// Buckets returns the buckets the selection can match; ok is false when
// every bucket must be scanned.
func (s *Selector) Buckets() (bucket.Set, bool) {
	return BucketsFor(s.root, s.factory)
}

// Ordering returns the ordered-scan bound for dir.
func (s *Selector) Ordering(dir Direction) (OrderingSpec, bool) {
	return OrderingFor(s.root, dir)
}

// RequiresConversion reports whether the selection uses now().
func (s *Selector) RequiresConversion() bool {
	return RequiresConversion(s.root)
}

// Convert rewrites a relative-time selection into per-document-type sub-queries.
func (s *Selector) Convert() (map[string]string, error) {
	return Convert(s.root)
}
