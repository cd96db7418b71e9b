package selection

import (
	"errors"
	"testing"
	"time"

	"docselect/internal/document"
)

var fixedNow = time.Unix(1700000000, 0)

func fixedClock() time.Time { return fixedNow }

func testRegistry(t testing.TB) *document.Registry {
	t.Helper()
	person := &document.StructType{Name: "person", Fields: map[string]*document.DataType{
		"name": document.String,
		"age":  document.Int,
	}}
	reg := document.NewRegistry()
	mustRegister := func(name string, inherits []string, fields ...document.Field) {
		if _, err := reg.Register(name, inherits, fields...); err != nil {
			t.Fatal(err)
		}
	}
	mustRegister("test", nil,
		document.Field{Name: "hint", Type: document.Int},
		document.Field{Name: "content", Type: document.String},
		document.Field{Name: "title", Type: document.String},
		document.Field{Name: "year", Type: document.Int},
		document.Field{Name: "rating", Type: document.Double},
		document.Field{Name: "flag", Type: document.Bool},
		document.Field{Name: "tags", Type: document.ArrayOf(document.String)},
		document.Field{Name: "nums", Type: document.ArrayOf(document.Int)},
		document.Field{Name: "ws", Type: document.WeightedSetOf(document.String)},
		document.Field{Name: "mymap", Type: document.MapOf(document.String, document.String)},
		document.Field{Name: "owner", Type: document.StructOf(person)},
		document.Field{Name: "people", Type: document.ArrayOf(document.StructOf(person))},
	)
	mustRegister("subtest", []string{"test"}, document.Field{Name: "extra", Type: document.String})
	mustRegister("music", nil,
		document.Field{Name: "artist", Type: document.String},
		document.Field{Name: "expire", Type: document.Long},
		document.Field{Name: "added", Type: document.Long},
	)
	return reg
}

func testPut(t testing.TB, reg *document.Registry, id string) *document.Put {
	t.Helper()
	did := document.MustParseID(id)
	typeName := did.DocType()
	if typeName == "" {
		typeName = "test"
	}
	dt, ok := reg.DocumentType(typeName)
	if !ok {
		t.Fatalf("unknown type %s", typeName)
	}
	doc := document.New(dt, did)
	doc.Fields["content"] = document.StringValue("foo")
	doc.Fields["title"] = document.StringValue("Hello World")
	doc.Fields["year"] = document.IntValue(2001)
	doc.Fields["rating"] = document.FloatValue(4.5)
	doc.Fields["flag"] = document.BoolValue(true)
	doc.Fields["tags"] = document.Array{document.StringValue("a"), document.StringValue("bb"), document.StringValue("ccc")}
	doc.Fields["nums"] = document.Array{document.IntValue(1), document.IntValue(2), document.IntValue(3)}
	doc.Fields["ws"] = document.WeightedSet{
		{Key: document.StringValue("foo"), Weight: 10},
		{Key: document.StringValue("bar"), Weight: 20},
	}
	doc.Fields["mymap"] = document.Map{
		{Key: document.StringValue("k1"), Value: document.StringValue("v1")},
		{Key: document.StringValue("k2"), Value: document.StringValue("v2")},
	}
	doc.Fields["owner"] = &document.Struct{Type: "person", Fields: map[string]document.Value{
		"name": document.StringValue("Ann"),
		"age":  document.IntValue(42),
	}}
	doc.Fields["people"] = document.Array{
		&document.Struct{Type: "person", Fields: map[string]document.Value{"name": document.StringValue("Bob"), "age": document.IntValue(1)}},
		&document.Struct{Type: "person", Fields: map[string]document.Value{"name": document.StringValue("Cy"), "age": document.IntValue(2)}},
	}
	return &document.Put{Document: doc}
}

func testUpdate(t testing.TB, reg *document.Registry, id string, fields ...string) *document.Update {
	t.Helper()
	dt, _ := reg.DocumentType("test")
	u := &document.Update{ID: document.MustParseID(id), Type: dt}
	for _, f := range fields {
		u.Updates = append(u.Updates, document.FieldUpdate{Field: f, Op: document.UpdateAssign, Value: document.StringValue("bar")})
	}
	return u
}

func evalResult(t *testing.T, sel string, op document.Operation) Result {
	t.Helper()
	n, err := Parse(sel)
	if err != nil {
		t.Fatalf("Parse(%q): %v", sel, err)
	}
	l, err := Evaluate(n, NewContext(op, WithClock(fixedClock)))
	if err != nil {
		t.Fatalf("Evaluate(%q): %v", sel, err)
	}
	return l.ToResult()
}

func TestEvalPut(t *testing.T) {
	reg := testRegistry(t)
	put := testPut(t, reg, "id:ns:test:n=1234:x")

	tests := []struct {
		sel  string
		want Result
	}{
		// presence guards
		{`test.hint < 1234`, Invalid},
		{`test.hint and test.hint < 1234`, False},
		{`test.hint`, False},
		{`test.content`, True},
		{`test.owner.name`, True},
		{`test.owner.shoe`, False},

		// document type tests
		{`test`, True},
		{`subtest`, False},
		{`music`, False},
		{`music.artist`, False},
		{`music.artist == "x"`, Invalid},

		// scalars
		{`test.content == "foo"`, True},
		{`test.content != "foo"`, False},
		{`test.content = 1`, False},
		{`test.content = "f*"`, True},
		{`test.content = "F*"`, False},
		{`test.content = "f?o"`, True},
		{`test.content =~ "^f.o$"`, True},
		{`test.content =~ "o"`, True},
		{`test.content =~ "["`, Invalid},
		{`test.content < "goo"`, True},
		{`test.year > 2000`, True},
		{`test.year >= 2001.0`, True},
		{`test.rating < 5`, True},
		{`test.year < "x"`, Invalid},
		{`test.year == "2001"`, False},
		{`test.year != "2001"`, True},
		{`test.flag == true`, True},
		{`test.flag < true`, Invalid},

		// null
		{`test.hint == null`, True},
		{`test.hint != null`, False},
		{`test.content == null`, False},
		{`null == null`, True},
		{`test.hint > null`, Invalid},
		{`test.hint = "x*"`, False},

		// collections
		{`test.tags == "bb"`, True},
		{`test.tags = "c*"`, True},
		{`test.tags != "bb"`, False},
		{`test.tags != "zz"`, True},
		{`test.tags < "x"`, Invalid},
		{`test.ws == "bar"`, True},
		{`test.ws{foo} == 10`, True},
		{`test.ws{"bar"} == 20`, True},
		{`test.ws{nope} == null`, True},
		{`test.mymap{k1} == "v1"`, True},
		{`test.mymap == "k2"`, True},
		{`test.mymap.value == "v2"`, True},
		{`test.mymap.key == "v2"`, False},
		{`test.owner.name == "Ann"`, True},
		{`test.owner.shoe == null`, True},
		{`test.people.name == "Cy"`, True},
		{`test.people[0].name == "Bob"`, True},
		{`test.people[5].name == null`, True},
		{`test.nums[1] == 2`, True},
		{`test.nums[7] < 2`, Invalid},

		// glob variables
		{`test.nums[$x] == 2 and test.tags[$x] == "bb"`, True},
		{`test.nums[$x] == 2 and test.tags[$x] == "a"`, False},
		{`test.nums[$x] == 3 or test.tags[$x] == "zz"`, True},
		{`test.mymap{$k} == "v2" and test.ws{$k} == 10`, False},
		{`test.people[$i].name == "Cy" and test.people[$i].age == 2`, True},
		{`test.people[$i].name == "Cy" and test.people[$i].age == 1`, False},

		// arithmetic
		{`test.year + 1 == 2002`, True},
		{`test.year / 2 == 1000.5`, True},
		{`test.year % 0 == 1`, Invalid},
		{`test.year / 0 == 1`, Invalid},
		{`test.title + "!" == "Hello World!"`, True},
		{`test.title + 1 == "Hello World1"`, True},
		{`test.year + test.hint > 0`, Invalid},
		{`test.flag + 1 == 2`, Invalid},
		{`7 % 3 == 1`, True},
		{`-test.year == -2001`, True},
		{`2 * 3 + 1 == 7`, True},
		{`2 * (3 + 1) == 8`, True},
		{`1.5 * 2 == 3`, True},
		{`10 - 2 - 3 == 5`, True},

		// functions
		{`test.content.hash() == 2143417350`, True},
		{`1234.hash() == -437677323`, True},
		{`test.year.abs() == 2001`, True},
		{`(-5).abs() == 5`, True},
		{`(-2.5).abs() == 2.5`, True},
		{`test.title.lowercase() == "hello world"`, True},
		{`test.year.lowercase() == "x"`, Invalid},
		{`test.flag.hash() == 1`, Invalid},
		{`now() == 1700000000`, True},
		{`test.year < now()`, True},
		{`now() - 3600 < now()`, True},

		// boolean coercion of values
		{`1`, True},
		{`0`, False},
		{`"s"`, True},
		{`null`, False},
		{`test.year.lowercase()`, Invalid},

		// truth-table propagation
		{`true and test.hint < 1`, Invalid},
		{`false or test.hint < 1`, Invalid},
		{`test.hint < 1 or true`, True},
		{`test.hint < 1 and false`, False},
		{`not test.hint < 1`, Invalid},
		{`not test.hint`, True},

		// id accessors
		{`id == "id:ns:test:n=1234:x"`, True},
		{`id = "id:ns:test:*"`, True},
		{`id.user == 1234`, True},
		{`id.namespace == "ns"`, True},
		{`id.type == "test"`, True},
		{`id.scheme == "id"`, True},
		{`id.specific == "x"`, True},
		{`id.bucket == 0x80000000000004d2`, True},
		{`id.bucket = 0x80000000000004d2`, True},
		{`id.bucket == 0x80000000000004d3`, False},
		{`id.bucket != 0x80000000000004d3`, True},
		{`0x80000000000004d2 == id.bucket`, True},
	}
	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			if got := evalResult(t, tt.sel, put); got != tt.want {
				t.Errorf("%s = %s, want %s", tt.sel, got, tt.want)
			}
		})
	}
}

func TestEvalInheritedType(t *testing.T) {
	reg := testRegistry(t)
	put := testPut(t, reg, "id:ns:subtest::s1")
	for sel, want := range map[string]Result{
		`test`:                    True,
		`subtest`:                 True,
		`test.content == "foo"`:   True,
		`subtest.content = "f*"`:  True,
		`subtest.extra == null`:   True,
		`music.artist == "x"`:     Invalid,
		`id.type == "subtest"`:    True,
		`test and test.year > 1`:  True,
		`music or test.year > 1`:  True,
		`music and test.year > 1`: False,
	} {
		if got := evalResult(t, sel, put); got != want {
			t.Errorf("%s = %s, want %s", sel, got, want)
		}
	}
}

// The same selection gives different answers depending on the operation
// kind: updates and removes carry no field values.
func TestEvalOperationKinds(t *testing.T) {
	reg := testRegistry(t)
	const id = "id:ns:test:n=1234:x"
	put := testPut(t, reg, id)
	update := testUpdate(t, reg, id, "content")
	remove := &document.Remove{ID: document.MustParseID(id)}
	get := &document.Get{ID: document.MustParseID(id)}

	tests := []struct {
		sel                      string
		put, update, remove, get Result
	}{
		{`test.content = 1`, False, Invalid, Invalid, Invalid},
		{`test.content = 1 and true`, False, Invalid, Invalid, Invalid},
		{`test.content`, True, True, False, False},
		{`test.title`, True, False, False, False},
		{`test.content == "foo"`, True, Invalid, Invalid, Invalid},
		{`test.content and test.content == "foo"`, True, Invalid, False, False},
		{`test`, True, True, True, True},
		{`music`, False, False, False, False},
		{`id.user == 1234`, True, True, True, True},
		{`test.year + 1 > 0`, True, Invalid, Invalid, Invalid},
	}
	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			for _, c := range []struct {
				name string
				op   document.Operation
				want Result
			}{
				{"put", put, tt.put},
				{"update", update, tt.update},
				{"remove", remove, tt.remove},
				{"get", get, tt.get},
			} {
				if got := evalResult(t, tt.sel, c.op); got != c.want {
					t.Errorf("%s on %s = %s, want %s", tt.sel, c.name, got, c.want)
				}
			}
		})
	}
}

func TestEvalOrderDoc(t *testing.T) {
	remove := &document.Remove{ID: document.MustParseID("orderdoc(10,10):ns:1234:56:x")}
	for sel, want := range map[string]Result{
		`id.order(10,10) == 56`:   True,
		`id.order(10,10) > 30`:    True,
		`id.order(10,10) < 30`:    False,
		`id.order(10,5) == 56`:    Invalid,
		`id.user == 1234`:         True,
		`id.scheme == "orderdoc"`: True,
	} {
		if got := evalResult(t, sel, remove); got != want {
			t.Errorf("%s = %s, want %s", sel, got, want)
		}
	}
}

func TestEvalFaults(t *testing.T) {
	reg := testRegistry(t)
	put := testPut(t, reg, "id:ns:test:n=1234:x")
	plain := &document.Remove{ID: document.MustParseID("id:ns:test::x")}
	orderless := &document.Remove{ID: document.MustParseID("orderdoc(10,10):ns:1234:56:x")}

	tests := []struct {
		sel  string
		op   document.Operation
		want error
	}{
		{`test.year[0] == 1`, put, ErrStructuralMismatch},
		{`test.content.foo == 1`, put, ErrStructuralMismatch},
		{`test.tags{a} == 1`, put, ErrStructuralMismatch},
		{`test.year[$x] == 1`, put, ErrStructuralMismatch},
		{`test.mymap.other == 1`, put, ErrStructuralMismatch},
		{`test.year.x`, put, ErrStructuralMismatch},
		{`id.group == "x"`, put, ErrIDComponentMissing},
		{`id.user == 1`, plain, ErrIDComponentMissing},
		{`id.order(10,10) == 1`, plain, ErrIDComponentMissing},
		{`id.type == "x"`, orderless, ErrIDComponentMissing},
	}
	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			_, err := Evaluate(MustParse(tt.sel), NewContext(tt.op))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var evalErr *EvalError
			if !errors.As(err, &evalErr) {
				t.Fatalf("err is %T, want *EvalError", err)
			}
		})
	}
}

// Faults short-circuited away never surface.
func TestEvalFaultShortCircuit(t *testing.T) {
	reg := testRegistry(t)
	put := testPut(t, reg, "id:ns:test:n=1234:x")
	if got := evalResult(t, `false and test.year[0] == 1`, put); got != False {
		t.Errorf("got %s, want FALSE", got)
	}
}

func TestTruthTables(t *testing.T) {
	leaf := map[Result]Node{
		True:    &Literal{Value: BoolValue(true)},
		False:   &Literal{Value: BoolValue(false)},
		Invalid: MustParse(`null < 1`),
	}
	and := map[[2]Result]Result{
		{True, True}:       True,
		{True, False}:      False,
		{True, Invalid}:    Invalid,
		{False, True}:      False,
		{False, False}:     False,
		{False, Invalid}:   False,
		{Invalid, True}:    Invalid,
		{Invalid, False}:   False,
		{Invalid, Invalid}: Invalid,
	}
	or := map[[2]Result]Result{
		{True, True}:       True,
		{True, False}:      True,
		{True, Invalid}:    True,
		{False, True}:      True,
		{False, False}:     False,
		{False, Invalid}:   Invalid,
		{Invalid, True}:    True,
		{Invalid, False}:   Invalid,
		{Invalid, Invalid}: Invalid,
	}
	not := map[Result]Result{True: False, False: True, Invalid: Invalid}

	ctx := NewContext(&document.Remove{ID: document.MustParseID("id:ns:test::x")})
	eval := func(n Node) Result {
		l, err := Evaluate(n, ctx)
		if err != nil {
			t.Fatal(err)
		}
		return l.ToResult()
	}

	for in, want := range and {
		if got := eval(&Logic{Left: leaf[in[0]], Op: OpAnd, Right: leaf[in[1]]}); got != want {
			t.Errorf("%s and %s = %s, want %s", in[0], in[1], got, want)
		}
		if got := in[0].And(in[1]); got != want {
			t.Errorf("Result.And(%s, %s) = %s, want %s", in[0], in[1], got, want)
		}
	}
	for in, want := range or {
		if got := eval(&Logic{Left: leaf[in[0]], Op: OpOr, Right: leaf[in[1]]}); got != want {
			t.Errorf("%s or %s = %s, want %s", in[0], in[1], got, want)
		}
		if got := in[0].Or(in[1]); got != want {
			t.Errorf("Result.Or(%s, %s) = %s, want %s", in[0], in[1], got, want)
		}
	}
	for in, want := range not {
		if got := eval(&Not{Operand: leaf[in]}); got != want {
			t.Errorf("not %s = %s, want %s", in, got, want)
		}
	}
}

func TestShortCircuit(t *testing.T) {
	reg := testRegistry(t)
	put := testPut(t, reg, "id:ns:test:n=1234:x")

	tests := []struct {
		sel          string
		rightSkipped bool
	}{
		{`false and test.content == "foo"`, true},
		{`test.hint and test.content == "foo"`, true},
		{`true or test.content == "foo"`, true},
		{`test.content or test.content == "foo"`, true},
		{`true and test.content == "foo"`, false},
		{`false or test.content == "foo"`, false},
		{`test.hint < 1 and test.content == "foo"`, false},
		{`test.hint < 1 or test.content == "foo"`, false},
	}
	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			root := MustParse(tt.sel).(*Logic)
			visitedRight := false
			trace := func(n Node) {
				if n == root.Right {
					visitedRight = true
				}
			}
			if _, err := Evaluate(root, NewContext(put, withTrace(trace))); err != nil {
				t.Fatal(err)
			}
			if visitedRight == tt.rightSkipped {
				t.Errorf("right operand visited = %v, want %v", visitedRight, !tt.rightSkipped)
			}
		})
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	reg := testRegistry(t)
	put := testPut(t, reg, "id:ns:test:n=1234:x")
	update := testUpdate(t, reg, "id:ns:test:n=1234:x", "title")

	sels := []Node{
		MustParse(`test.nums[$x] == 2 and test.tags[$x] == "bb"`),
		MustParse(`test.hint < 1 or test.title`),
		MustParse(`id.bucket == 0x80000000000004d2 and now() > 0`),
	}
	first := make(map[int][2]Result)
	for round := range 3 {
		for i, n := range sels {
			var got [2]Result
			for j, op := range []document.Operation{put, update} {
				l, err := Evaluate(n, NewContext(op, WithClock(fixedClock)))
				if err != nil {
					t.Fatal(err)
				}
				got[j] = l.ToResult()
			}
			if round == 0 {
				first[i] = got
			} else if got != first[i] {
				t.Errorf("round %d: %s = %v, first %v", round, n, got, first[i])
			}
		}
	}
}

func TestResultListBindings(t *testing.T) {
	reg := testRegistry(t)
	put := testPut(t, reg, "id:ns:test:n=1234:x")
	l, err := Evaluate(MustParse(`test.nums[$x] > 1`), NewContext(put))
	if err != nil {
		t.Fatal(err)
	}
	want := `[{$x=0}:FALSE, {$x=1}:TRUE, {$x=2}:TRUE]`
	if l.String() != want {
		t.Errorf("list = %s, want %s", l, want)
	}

	l, err = Evaluate(MustParse(`test.nums[$x] == 2 and test.tags[$x] == "bb"`), NewContext(put))
	if err != nil {
		t.Fatal(err)
	}
	if len(l) != 3 {
		t.Errorf("joined list has %d entries, want 3 (one per consistent binding): %s", len(l), l)
	}
}

func TestResultListCollapse(t *testing.T) {
	tests := []struct {
		list ResultList
		want Result
	}{
		{nil, False},
		{Single(Invalid), Invalid},
		{ResultList{{Result: Invalid}, {Result: False}}, False},
		{ResultList{{Result: Invalid}, {Result: False}, {Result: True}}, True},
		{ResultList{{Result: Invalid}, {Result: Invalid}}, Invalid},
	}
	for _, tt := range tests {
		if got := tt.list.ToResult(); got != tt.want {
			t.Errorf("%s.ToResult() = %s, want %s", tt.list, got, tt.want)
		}
	}
	if got := ResultList(nil).Not().ToResult(); got != True {
		t.Errorf("not of empty list = %s, want TRUE", got)
	}
}

func TestNotOverEmptyExpansion(t *testing.T) {
	reg := testRegistry(t)
	put := testPut(t, reg, "id:ns:test:n=1234:x")
	put.Document.Fields["nums"] = document.Array{}
	put.Document.Fields["tags"] = document.Array{}

	// A variable over an empty collection binds nothing. The empty list
	// reads as FALSE, so its negation is TRUE.
	tests := []struct {
		sel  string
		want Result
	}{
		{`test.nums[$x] > 1`, False},
		{`not test.nums[$x] > 1`, True},
		{`not (test.nums[$x] == 2 and test.tags[$x] == "bb")`, True},
		{`not test.nums[$x] > 1 and test.year == 2001`, True},
		{`not not test.nums[$x] > 1`, False},
	}
	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			if got := evalResult(t, tt.sel, put); got != tt.want {
				t.Errorf("%s = %s, want %s", tt.sel, got, tt.want)
			}
		})
	}

	l, err := Evaluate(MustParse(`test.nums[$x] > 1`), NewContext(put))
	if err != nil {
		t.Fatal(err)
	}
	if len(l) != 0 {
		t.Errorf("expansion over empty array = %s, want no entries", l)
	}
}
