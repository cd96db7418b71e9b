package selection

import (
	"maps"
	"slices"
	"strings"
)

// Result is the outcome of evaluating a selection against one document.
type Result int

const (
	False Result = iota
	True
	Invalid // the selection is not well-defined for the document
)

func (r Result) String() string {
	switch r {
	case True:
		return "TRUE"
	case False:
		return "FALSE"
	default:
		return "INVALID"
	}
}

func resultOf(b bool) Result {
	if b {
		return True
	}
	return False
}

// And combines two results: FALSE dominates, then INVALID.
func (r Result) And(other Result) Result {
	switch {
	case r == False || other == False:
		return False
	case r == True && other == True:
		return True
	default:
		return Invalid
	}
}

// Or combines two results: TRUE dominates, then INVALID.
func (r Result) Or(other Result) Result {
	switch {
	case r == True || other == True:
		return True
	case r == False && other == False:
		return False
	default:
		return Invalid
	}
}

// Not negates a result; INVALID stays INVALID.
func (r Result) Not() Result {
	switch r {
	case True:
		return False
	case False:
		return True
	default:
		return Invalid
	}
}

// Bindings maps glob variable names to the index or key they are bound to.
type Bindings map[string]string

// consistent reports whether every variable bound in both has the same value.
func (b Bindings) consistent(other Bindings) bool {
	for name, v := range b {
		if ov, ok := other[name]; ok && ov != v {
			return false
		}
	}
	return true
}

// merge returns the union of two consistent binding sets. Neither input is modified.
func (b Bindings) merge(other Bindings) Bindings {
	if len(other) == 0 {
		return b
	}
	if len(b) == 0 {
		return other
	}
	out := make(Bindings, len(b)+len(other))
	maps.Copy(out, b)
	maps.Copy(out, other)
	return out
}

// with returns a copy of b with name bound to key.
func (b Bindings) with(name, key string) Bindings {
	out := make(Bindings, len(b)+1)
	maps.Copy(out, b)
	out[name] = key
	return out
}

func (b Bindings) String() string {
	names := slices.Sorted(maps.Keys(b))
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = "$" + n + "=" + b[n]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ResultEntry is the result under one combination of variable bindings.
type ResultEntry struct {
	Bindings Bindings
	Result   Result
}

// ResultList holds one result per variable binding combination. Selections
// without glob variables produce a single entry with no bindings.
type ResultList []ResultEntry

// Single returns a list holding r with no bindings.
func Single(r Result) ResultList {
	return ResultList{{Result: r}}
}

// ToResult collapses the list: TRUE if any entry is TRUE, else FALSE if any
// is FALSE, else INVALID. An empty list is FALSE.
func (l ResultList) ToResult() Result {
	if len(l) == 0 {
		return False
	}
	seenFalse := false
	for _, e := range l {
		switch e.Result {
		case True:
			return True
		case False:
			seenFalse = true
		}
	}
	if seenFalse {
		return False
	}
	return Invalid
}

// orFalse treats an empty list as a single FALSE so combining never drops
// the other operand.
func (l ResultList) orFalse() ResultList {
	if len(l) == 0 {
		return Single(False)
	}
	return l
}

// And combines two lists entry by entry over consistent bindings.
func (l ResultList) And(other ResultList) ResultList {
	return l.combine(other, Result.And)
}

// Or combines two lists entry by entry over consistent bindings.
func (l ResultList) Or(other ResultList) ResultList {
	return l.combine(other, Result.Or)
}

// Not negates every entry.
func (l ResultList) Not() ResultList {
	l = l.orFalse()
	out := make(ResultList, len(l))
	for i, e := range l {
		out[i] = ResultEntry{Bindings: e.Bindings, Result: e.Result.Not()}
	}
	return out
}

func (l ResultList) combine(other ResultList, fn func(Result, Result) Result) ResultList {
	l, other = l.orFalse(), other.orFalse()
	out := make(ResultList, 0, len(l)*len(other))
	for _, a := range l {
		for _, b := range other {
			if !a.Bindings.consistent(b.Bindings) {
				continue
			}
			out = append(out, ResultEntry{Bindings: a.Bindings.merge(b.Bindings), Result: fn(a.Result, b.Result)})
		}
	}
	return out
}

func (l ResultList) String() string {
	parts := make([]string, len(l))
	for i, e := range l {
		if len(e.Bindings) == 0 {
			parts[i] = e.Result.String()
		} else {
			parts[i] = e.Bindings.String() + ":" + e.Result.String()
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
