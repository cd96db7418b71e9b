package selection

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Binding strength of each node kind, loosest first. A child printed at a
// position requiring a higher level than its own is parenthesized.
const (
	precOr = iota + 1
	precAnd
	precNot
	precCompare
	precAdditive
	precMultiplicative
	precUnary
	precPrimary
)

func precedence(n Node) int {
	switch x := n.(type) {
	case *Logic:
		if x.Op == OpOr {
			return precOr
		}
		return precAnd
	case *Not:
		return precNot
	case *Comparison:
		return precCompare
	case *Arithmetic:
		if x.Op == OpAdd || x.Op == OpSub {
			return precAdditive
		}
		return precMultiplicative
	case *Literal:
		if x.isNegative() {
			return precUnary
		}
		return precPrimary
	default:
		return precPrimary
	}
}

// wrap renders n, parenthesized if it binds looser than minPrec.
func wrap(n Node, minPrec int) string {
	if precedence(n) < minPrec {
		return "(" + n.String() + ")"
	}
	return n.String()
}

func (l *Literal) isNegative() bool {
	switch l.Value.Kind {
	case ValInt:
		return l.Value.Int < 0 && !l.Hex
	case ValFloat:
		return math.Signbit(l.Value.Float)
	}
	return false
}

func (l *Literal) String() string {
	v := l.Value
	switch v.Kind {
	case ValInt:
		if l.Hex {
			return "0x" + strconv.FormatUint(uint64(v.Int), 16)
		}
		return strconv.FormatInt(v.Int, 10)
	case ValFloat:
		return formatFloat(v.Float)
	case ValString:
		return quoteString(v.Str)
	case ValBool:
		return strconv.FormatBool(v.Bool)
	case ValNull:
		return "null"
	default:
		return "<" + v.Kind.String() + ">"
	}
}

// quoteString renders s as a double-quoted selection string literal.
func quoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case '\f':
			sb.WriteString(`\f`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&sb, `\x%02x`, c)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func (a *Arithmetic) String() string {
	p := precedence(a)
	return wrap(a.Left, p) + " " + a.Op.String() + " " + wrap(a.Right, p+1)
}

func (c *Comparison) String() string {
	return wrap(c.Left, precAdditive) + " " + c.Op.String() + " " + wrap(c.Right, precAdditive)
}

func (l *Logic) String() string {
	p := precedence(l)
	return wrap(l.Left, p) + " " + l.Op.String() + " " + wrap(l.Right, p+1)
}

func (n *Not) String() string {
	return "not " + wrap(n.Operand, precNot)
}

func (g *Group) String() string {
	return "(" + g.Inner.String() + ")"
}

func (f *FieldValue) String() string {
	var sb strings.Builder
	sb.WriteString(f.DocType)
	for _, s := range f.Path {
		switch s.Kind {
		case StepField:
			sb.WriteByte('.')
			sb.WriteString(s.Name)
		case StepIndex:
			fmt.Fprintf(&sb, "[%d]", s.Index)
		case StepKey:
			sb.WriteString("{" + quoteString(s.Name) + "}")
		case StepVariable:
			if s.Brace {
				sb.WriteString("{$" + s.Name + "}")
			} else {
				sb.WriteString("[$" + s.Name + "]")
			}
		}
	}
	return sb.String()
}

func (v *IDValue) String() string {
	switch v.Component {
	case IDFull:
		return "id"
	case IDOrder:
		return fmt.Sprintf("id.order(%d,%d)", v.WidthBits, v.DivisionBits)
	default:
		return "id." + v.Component.String()
	}
}

func (f *FunctionCall) String() string {
	return wrap(f.Receiver, precPrimary) + "." + f.Name + "()"
}

func (*Now) String() string {
	return "now()"
}

func (d *DocumentType) String() string {
	return d.Name
}
