package document

import (
	"slices"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CompoundName is a dotted name split into its components, e.g. "a.b.c".
// Values are immutable and may be shared.
type CompoundName struct {
	raw   string
	parts []string
}

// Len returns the number of components.
func (c CompoundName) Len() int { return len(c.parts) }

// First returns the first component, or "" for an empty name.
func (c CompoundName) First() string {
	if len(c.parts) == 0 {
		return ""
	}
	return c.parts[0]
}

// Rest returns all components after the first.
func (c CompoundName) Rest() []string {
	if len(c.parts) < 2 {
		return nil
	}
	return slices.Clone(c.parts[1:])
}

// Parts returns a copy of all components.
func (c CompoundName) Parts() []string { return slices.Clone(c.parts) }

func (c CompoundName) String() string { return c.raw }

// DefaultCompoundNameCacheSize bounds the shared compound-name cache.
const DefaultCompoundNameCacheSize = 4096

var compoundNames atomic.Pointer[lru.Cache[string, CompoundName]]

func init() {
	SetCompoundNameCacheSize(DefaultCompoundNameCacheSize)
}

// SetCompoundNameCacheSize replaces the shared cache. A size <= 0 disables caching.
func SetCompoundNameCacheSize(size int) {
	if size <= 0 {
		compoundNames.Store(nil)
		return
	}
	c, err := lru.New[string, CompoundName](size)
	if err != nil {
		compoundNames.Store(nil)
		return
	}
	compoundNames.Store(c)
}

// ParseCompoundName splits a dotted name. Results are memoized in a shared,
// concurrency-safe LRU cache; hits and misses return identical values.
func ParseCompoundName(s string) CompoundName {
	cache := compoundNames.Load()
	if cache != nil {
		if c, ok := cache.Get(s); ok {
			return c
		}
	}
	c := splitCompoundName(s)
	if cache != nil {
		cache.Add(s, c)
	}
	return c
}

func splitCompoundName(s string) CompoundName {
	if s == "" {
		return CompoundName{}
	}
	return CompoundName{raw: s, parts: strings.Split(s, ".")}
}
