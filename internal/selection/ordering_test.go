package selection

import "testing"

func TestOrderingFor(t *testing.T) {
	spec := func(dir Direction, start int64) OrderingSpec {
		return OrderingSpec{Direction: dir, Start: start, WidthBits: 10, DivisionBits: 10}
	}
	tests := []struct {
		sel    string
		dir    Direction
		want   OrderingSpec
		wantOK bool
	}{
		{`id.order(10,10) > 30 and id.order(10,10) < 100`, Ascending, spec(Ascending, 31), true},
		{`id.order(10,10) > 30 and id.order(10,10) < 100`, Descending, spec(Descending, 99), true},
		{`id.order(10,10) >= 30`, Ascending, spec(Ascending, 30), true},
		{`id.order(10,10) == 42`, Ascending, spec(Ascending, 42), true},
		{`id.order(10,10) == 42`, Descending, spec(Descending, 42), true},
		{`id.order(10,10) < 100`, Ascending, spec(Ascending, 0), true},
		{`id.order(10,10) <= 100`, Descending, spec(Descending, 100), true},
		{`id.order(10,10) > 30`, Descending, OrderingSpec{}, false},
		{`30 < id.order(10,10)`, Ascending, spec(Ascending, 31), true},
		{`100 > id.order(10,10)`, Descending, spec(Descending, 99), true},

		// AND keeps the tighter bound.
		{`id.order(10,10) > 30 and id.order(10,10) > 50`, Ascending, spec(Ascending, 51), true},
		{`id.order(10,10) < 30 and id.order(10,10) < 50`, Descending, spec(Descending, 29), true},
		{`test.year > 1 and id.order(10,10) > 30`, Ascending, spec(Ascending, 31), true},

		// OR keeps the looser bound and needs both sides.
		{`id.order(10,10) > 30 or id.order(10,10) > 50`, Ascending, spec(Ascending, 31), true},
		{`id.order(10,10) < 30 or id.order(10,10) < 50`, Descending, spec(Descending, 49), true},
		{`id.order(10,10) > 30 or test.year > 1`, Ascending, OrderingSpec{}, false},

		// Mismatched orderdoc parameters give no bound.
		{`id.order(10,10) > 30 and id.order(16,8) > 50`, Ascending, OrderingSpec{}, false},

		{`id.order(10,10) != 30`, Ascending, OrderingSpec{}, false},
		{`id.user > 30`, Ascending, OrderingSpec{}, false},
		{`not id.order(10,10) > 30`, Ascending, OrderingSpec{}, false},
		{`id.order(10,10) > "x"`, Ascending, OrderingSpec{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.dir.String()+" "+tt.sel, func(t *testing.T) {
			got, ok := OrderingFor(MustParse(tt.sel), tt.dir)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (%+v)", ok, tt.wantOK, got)
			}
			if ok && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
