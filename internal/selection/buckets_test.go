package selection

import (
	"testing"

	"docselect/internal/bucket"
	"docselect/internal/document"
)

func TestBucketsFor(t *testing.T) {
	f := bucket.NewFactory()
	docBucket := f.BucketID(document.MustParseID("id:ns:test::doc"))
	grp := bucket.New(32, uint64(bucket.GroupLocation("grp")))

	tests := []struct {
		sel    string
		want   bucket.Set
		wantOK bool
	}{
		{`id.user = 123 or id.bucket = 0x400000000000007b`, bucket.NewSet(bucket.New(32, 123), bucket.New(16, 123)), true},
		{`id.user == 123`, bucket.NewSet(bucket.New(32, 123)), true},
		{`123 == id.user`, bucket.NewSet(bucket.New(32, 123)), true},
		{`(id.user == 123)`, bucket.NewSet(bucket.New(32, 123)), true},
		{`id.group == "grp"`, bucket.NewSet(grp), true},
		{`id.group = "grp"`, bucket.NewSet(grp), true},
		{`id == "id:ns:test::doc"`, bucket.NewSet(docBucket), true},
		{`id.bucket == 0x80000000000004d2`, bucket.NewSet(bucket.New(32, 0x4d2)), true},

		// AND intersects, ignoring unconstrained sides.
		{`id.user == 123 and test.year > 2000`, bucket.NewSet(bucket.New(32, 123)), true},
		{`test.year > 2000 and id.user == 123`, bucket.NewSet(bucket.New(32, 123)), true},
		{`id.user == 1 and id.user == 2`, bucket.NewSet(), true},
		{`(id.user == 1 or id.user == 2) and id.user == 2`, bucket.NewSet(bucket.New(32, 2)), true},

		// OR unites; one unconstrained side makes it unconstrained.
		{`id.user == 1 or id.user == 2 or id.user == 1`, bucket.NewSet(bucket.New(32, 1), bucket.New(32, 2)), true},
		{`id.user == 1 or test.year > 2000`, nil, false},

		// Not constraining.
		{`test.year > 2000`, nil, false},
		{`not id.user == 123`, nil, false},
		{`id.user != 123`, nil, false},
		{`id.user > 123`, nil, false},
		{`id.user == "123"`, nil, false},
		{`id.group = "gr*"`, nil, false},
		{`id = "id:ns:test::*"`, nil, false},
		{`id == "not an id"`, nil, false},
		{`id.namespace == "ns"`, nil, false},
		{`id.user == test.year`, nil, false},
		{`test`, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			got, ok := BucketsFor(MustParse(tt.sel), f)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (set %s)", ok, tt.wantOK, got)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("buckets = %s, want %s", got, tt.want)
			}
		})
	}
}

// Every document a selection can match lies in one of its buckets.
func TestBucketsForCoversMatches(t *testing.T) {
	reg := testRegistry(t)
	f := bucket.NewFactory()
	ids := []string{
		"id:ns:test:n=123:a",
		"id:ns:test:n=124:b",
		"id:ns:test:g=grp:c",
		"id:ns:test::d",
	}
	sels := []string{
		`id.user == 123`,
		`id.user == 123 or id.group == "grp"`,
		`id.group == "grp" and test.year > 0`,
		`id == "id:ns:test::d"`,
		`id.bucket == 0x800000000000007b`,
	}
	for _, sel := range sels {
		n := MustParse(sel)
		set, ok := BucketsFor(n, f)
		if !ok {
			t.Fatalf("%s: unconstrained", sel)
		}
		for _, id := range ids {
			put := testPut(t, reg, id)
			r, err := Evaluate(n, NewContext(put))
			if err != nil {
				continue // id component missing for this document
			}
			if r.ToResult() == True && !set.Covers(f.BucketID(put.DocumentID())) {
				t.Errorf("%s matches %s outside %s", sel, id, set)
			}
		}
	}
}
