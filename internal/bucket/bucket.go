// Package bucket models the distribution buckets documents are partitioned into.
//
// A bucket id is 64 bits: the top 6 bits hold the number of used location bits,
// the lower 58 bits hold the location. A bucket with fewer used bits is a
// superbucket of every bucket whose location agrees on those bits.
package bucket

import (
	"fmt"
	"slices"
	"strings"
)

const (
	// CountBits is the number of high bits holding the used-bits count.
	CountBits = 6

	// MaxUsedBits is the largest number of location bits a bucket can use.
	MaxUsedBits = 64 - CountBits

	locationMask = uint64(1)<<MaxUsedBits - 1
)

// ID identifies a bucket.
type ID uint64

// New creates a bucket id using the lowest usedBits bits of location.
// usedBits is clamped to [0, MaxUsedBits].
func New(usedBits int, location uint64) ID {
	usedBits = max(0, min(usedBits, MaxUsedBits))
	return ID(uint64(usedBits)<<MaxUsedBits | location&mask(usedBits))
}

// FromRaw interprets a raw 64-bit value (as written in a selection literal)
// as a bucket id. Location bits beyond the used-bits count are discarded.
func FromRaw(raw uint64) ID {
	return New(int(raw>>MaxUsedBits), raw)
}

func mask(usedBits int) uint64 {
	if usedBits >= MaxUsedBits {
		return locationMask
	}
	return uint64(1)<<usedBits - 1
}

// UsedBits returns the number of location bits in use.
func (b ID) UsedBits() int {
	return int(uint64(b) >> MaxUsedBits)
}

// Location returns the used location bits.
func (b ID) Location() uint64 {
	return uint64(b) & mask(b.UsedBits())
}

// LocationMask returns the mask selecting the used location bits. A document
// bucket d lies in b when d.Location()&b.LocationMask() == b.Location().
func (b ID) LocationMask() uint64 {
	return mask(b.UsedBits())
}

// Raw returns the id as a raw 64-bit value.
func (b ID) Raw() uint64 {
	return uint64(b)
}

// WithUsedBits returns the bucket with the given number of used bits,
// truncating or keeping the location accordingly.
func (b ID) WithUsedBits(usedBits int) ID {
	return New(usedBits, uint64(b)&locationMask)
}

// Contains reports whether other lies within b (b is equal to or a superbucket of other).
func (b ID) Contains(other ID) bool {
	if b.UsedBits() > other.UsedBits() {
		return false
	}
	return other.WithUsedBits(b.UsedBits()) == b
}

// String returns the canonical hexadecimal form, e.g. BucketId(0x800000000000007b).
func (b ID) String() string {
	return fmt.Sprintf("BucketId(0x%016x)", uint64(b))
}

// Set is an unordered set of bucket ids with exact-membership semantics.
type Set map[ID]struct{}

// NewSet returns a set holding ids.
func NewSet(ids ...ID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id.
func (s Set) Add(id ID) {
	s[id] = struct{}{}
}

// Has reports exact membership of id.
func (s Set) Has(id ID) bool {
	_, ok := s[id]
	return ok
}

// Covers reports whether any bucket in s contains doc.
func (s Set) Covers(doc ID) bool {
	for b := range s {
		if b.Contains(doc) {
			return true
		}
	}
	return false
}

// Union returns a new set with the members of both sets.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for b := range s {
		out[b] = struct{}{}
	}
	for b := range other {
		out[b] = struct{}{}
	}
	return out
}

// Intersection returns a new set with the members present in both sets.
func (s Set) Intersection(other Set) Set {
	out := make(Set)
	for b := range s {
		if other.Has(b) {
			out[b] = struct{}{}
		}
	}
	return out
}

// Equal reports whether both sets hold the same ids.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for b := range s {
		if !other.Has(b) {
			return false
		}
	}
	return true
}

// Sorted returns the members in ascending raw order.
func (s Set) Sorted() []ID {
	out := make([]ID, 0, len(s))
	for b := range s {
		out = append(out, b)
	}
	slices.Sort(out)
	return out
}

func (s Set) String() string {
	ids := s.Sorted()
	parts := make([]string, len(ids))
	for i, b := range ids {
		parts[i] = b.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
