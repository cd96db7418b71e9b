package selection

import (
	"regexp"
	"testing"
)

func TestHash(t *testing.T) {
	tests := []struct {
		input string
		want  int32
	}{
		{"", -1119235827},
		{"a", 703514648},
		{"foo", 2143417350},
		{"1234", -437677323},
		{"hello world", 447289830},
		{"The quick brown fox jumps", 1921225649},
	}
	for _, tt := range tests {
		if got := int32(Hash([]byte(tt.input))); got != tt.want {
			t.Errorf("Hash(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestCallFunction(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want Value
	}{
		{"hash", StringValue("foo"), IntValue(2143417350)},
		{"hash", IntValue(1234), IntValue(-437677323)},
		{"hash", BoolValue(true), InvalidValue()},
		{"hash", NullValue(), InvalidValue()},
		{"abs", IntValue(-3), IntValue(3)},
		{"abs", IntValue(3), IntValue(3)},
		{"abs", FloatValue(-0.5), FloatValue(0.5)},
		{"abs", StringValue("x"), InvalidValue()},
		{"lowercase", StringValue("MiXeD"), StringValue("mixed")},
		{"lowercase", IntValue(1), InvalidValue()},
		{"frob", IntValue(1), InvalidValue()},
	}
	for _, tt := range tests {
		if got := callFunction(tt.name, tt.in); got != tt.want {
			t.Errorf("%s(%v) = %v, want %v", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestCompileGlob(t *testing.T) {
	tests := []struct {
		pattern string
		input   string
		want    bool
	}{
		{"foo", "foo", true},
		{"foo", "foobar", false},
		{"foo*", "foobar", true},
		{"*bar", "foobar", true},
		{"f?o", "foo", true},
		{"f?o", "fo", false},
		{"F*", "foo", false},
		{"a.b", "a.b", true},
		{"a.b", "axb", false},
		{"(x)+", "(x)+", true},
		{"*", "line\nbreak", true},
		{"", "", true},
	}
	for _, tt := range tests {
		re, err := CompileGlob(tt.pattern)
		if err != nil {
			t.Fatal(err)
		}
		if got := re.MatchString(tt.input); got != tt.want {
			t.Errorf("glob %q on %q = %v, want %v", tt.pattern, tt.input, got, tt.want)
		}
	}
}

func TestComparisonMatcher(t *testing.T) {
	// Patterns from field values are compiled at evaluation time.
	c := &Comparison{Op: OpRegex}
	re, err := c.matcher("^a+$")
	if err != nil {
		t.Fatal(err)
	}
	if !re.MatchString("aaa") {
		t.Error("regex did not match")
	}
	if _, err := c.matcher("("); err == nil {
		t.Error("expected error for bad regex")
	}

	c = &Comparison{Op: OpGlob, pattern: regexp.MustCompile("^x$")}
	if re, _ := c.matcher("ignored"); re.String() != "^x$" {
		t.Errorf("precompiled pattern not used: %s", re)
	}
}
