package selection

import (
	"regexp"
	"strings"
)

// CompileGlob converts a glob pattern to a compiled regex.
// Supported metacharacters: * (any chars) and ? (single char).
// The resulting regex is anchored (^...$) and case-sensitive.
func CompileGlob(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(globToRegex(pattern))
}

// globToRegex converts a glob pattern string to a regex string.
func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return b.String()
}

// HasGlobMeta reports whether s contains glob metacharacters.
func HasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?")
}

// compilePattern precompiles the matcher of a glob or regex comparison
// against a string literal. An uncompilable regex is left nil and compared
// at evaluation time, where it is INVALID.
func (c *Comparison) compilePattern() {
	lit, ok := unwrap(c.Right).(*Literal)
	if !ok || lit.Value.Kind != ValString {
		return
	}
	switch c.Op {
	case OpGlob:
		c.pattern, _ = CompileGlob(lit.Value.Str)
	case OpRegex:
		c.pattern, _ = regexp.Compile(lit.Value.Str)
	}
}

// matcher returns the compiled pattern for a string right operand.
func (c *Comparison) matcher(pattern string) (*regexp.Regexp, error) {
	if c.pattern != nil {
		return c.pattern, nil
	}
	if c.Op == OpGlob {
		return CompileGlob(pattern)
	}
	return regexp.Compile(pattern)
}
