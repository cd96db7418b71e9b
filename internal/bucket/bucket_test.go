package bucket

import (
	"testing"

	"docselect/internal/document"
)

func TestNewMasksLocation(t *testing.T) {
	tests := []struct {
		used     int
		location uint64
		want     uint64
	}{
		{32, 123, 0x800000000000007b},
		{16, 123, 0x400000000000007b},
		{16, 0x1234567b, 0x400000000000567b},
		{0, 0xffff, 0},
		{58, ^uint64(0), 0xebffffffffffffff},
	}
	for _, tt := range tests {
		got := New(tt.used, tt.location)
		if got.Raw() != tt.want {
			t.Errorf("New(%d, %#x) = %#x, want %#x", tt.used, tt.location, got.Raw(), tt.want)
		}
		if tt.used > 0 && got.UsedBits() != tt.used {
			t.Errorf("UsedBits() = %d, want %d", got.UsedBits(), tt.used)
		}
	}
}

func TestFromRaw(t *testing.T) {
	b := FromRaw(0x400000000000007b)
	if b != New(16, 123) {
		t.Errorf("FromRaw = %v, want %v", b, New(16, 123))
	}
	// Garbage above the used bits is dropped.
	if FromRaw(0x40000000ffff007b) != New(16, 123) {
		t.Errorf("FromRaw did not truncate unused location bits")
	}
}

func TestContains(t *testing.T) {
	super := New(16, 123)
	tests := []struct {
		name  string
		other ID
		want  bool
	}{
		{"self", super, true},
		{"sub bucket", New(32, 0xabcd007b), true},
		{"full bucket", New(58, 0x3ff00000000007b), true},
		{"different location", New(32, 124), false},
		{"fewer bits", New(8, 123), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := super.Contains(tt.other); got != tt.want {
				t.Errorf("%v.Contains(%v) = %v, want %v", super, tt.other, got, tt.want)
			}
		})
	}
}

func TestSetAlgebra(t *testing.T) {
	a := NewSet(New(32, 1), New(32, 2))
	b := NewSet(New(32, 2), New(32, 3))

	if u := a.Union(b); !u.Equal(NewSet(New(32, 1), New(32, 2), New(32, 3))) {
		t.Errorf("Union = %v", u)
	}
	if i := a.Intersection(b); !i.Equal(NewSet(New(32, 2))) {
		t.Errorf("Intersection = %v", i)
	}
	if i := a.Intersection(NewSet()); len(i) != 0 {
		t.Errorf("Intersection with empty = %v", i)
	}
	// Intersection is exact membership, not containment.
	if i := NewSet(New(16, 2)).Intersection(NewSet(New(32, 2))); len(i) != 0 {
		t.Errorf("superbucket intersection = %v, want empty", i)
	}
}

func TestSetCovers(t *testing.T) {
	s := NewSet(New(16, 123))
	if !s.Covers(New(58, 0x123400000000007b)) {
		t.Error("expected covering superbucket")
	}
	if s.Covers(New(58, 124)) {
		t.Error("unexpected cover")
	}
}

func TestSetString(t *testing.T) {
	s := NewSet(New(32, 123), New(16, 123))
	want := "{BucketId(0x400000000000007b), BucketId(0x800000000000007b)}"
	if got := s.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestFactoryUserLocation(t *testing.T) {
	f := NewFactory()
	id, err := document.ParseID("id:ns:test:n=1234:x")
	if err != nil {
		t.Fatal(err)
	}
	b := f.BucketID(id)
	if b.UsedBits() != MaxUsedBits {
		t.Errorf("UsedBits = %d, want %d", b.UsedBits(), MaxUsedBits)
	}
	if !New(32, 1234).Contains(b) {
		t.Errorf("user bucket does not contain %v", b)
	}

	other, _ := document.ParseID("id:ns:test:n=1234:y")
	if !New(32, 1234).Contains(f.BucketID(other)) {
		t.Error("documents of the same user must share the 32-bit bucket")
	}
}

func TestFactoryGroupLocation(t *testing.T) {
	f := NewFactory()
	id, err := document.ParseID("id:ns:test:g=mygroup:x")
	if err != nil {
		t.Fatal(err)
	}
	if !New(32, uint64(GroupLocation("mygroup"))).Contains(f.BucketID(id)) {
		t.Error("group bucket does not contain document")
	}
}

func TestFactoryDeterministic(t *testing.T) {
	f := NewFactory()
	id, _ := document.ParseID("id:ns:music::song-1")
	if f.BucketID(id) != f.BucketID(id) {
		t.Error("bucket id is not deterministic")
	}
}

func TestLocationMask(t *testing.T) {
	tests := []struct {
		b    ID
		want uint64
	}{
		{New(0, 0), 0},
		{New(16, 123), 0xffff},
		{New(32, 123), 0xffffffff},
		{New(MaxUsedBits, 1), locationMask},
	}
	for _, tt := range tests {
		if got := tt.b.LocationMask(); got != tt.want {
			t.Errorf("%s.LocationMask() = %#x, want %#x", tt.b, got, tt.want)
		}
	}

	doc := New(MaxUsedBits, 0x3_0000_007b)
	for _, b := range []ID{New(16, 123), New(32, 123), New(8, 0x7b)} {
		if doc.Location()&b.LocationMask() != b.Location() || !b.Contains(doc) {
			t.Errorf("%s should contain %s", b, doc)
		}
	}
}
