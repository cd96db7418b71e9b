package selection

import (
	"math"
	"strconv"
	"strings"

	"docselect/internal/bucket"
	"docselect/internal/document"
)

// Parser parses selection text into an AST.
//
// Grammar (EBNF):
//
//	selection      = or_expr EOF
//	or_expr        = and_expr ( "or" and_expr )*
//	and_expr       = not_expr ( "and" not_expr )*
//	not_expr       = "not" not_expr | comparison
//	comparison     = additive [ cmp_op additive ]
//	cmp_op         = "==" | "!=" | "<" | "<=" | ">" | ">=" | "=" | "=~"
//	additive       = multiplicative ( ( "+" | "-" ) multiplicative )*
//	multiplicative = unary ( ( "*" | "/" | "%" ) unary )*
//	unary          = "-" unary | postfix
//	postfix        = primary ( "." IDENT "(" ")" )*
//	primary        = "(" or_expr ")" | literal | "now" "(" ")" | id_expr | field_or_type
//	id_expr        = "id" [ "." ( "scheme" | "namespace" | "type" | "specific" | "group"
//	                 | "user" | "bucket" | "order" "(" INT "," INT ")" ) ]
//	field_or_type  = IDENT ( "." IDENT | "[" ( INT | VARIABLE ) "]"
//	                 | "{" ( IDENT | STRING | INT | VARIABLE ) "}" )*
//	literal        = INT | FLOAT | STRING | "true" | "false" | "null"
//
// Keywords are case-insensitive. A keyword directly followed by "." is an
// identifier, so a document type may be named like one (e.g. "not.x").
//
// Precedence (highest to lowest):
//  1. Parentheses, field access, function calls
//  2. Unary minus
//  3. * / %
//  4. + -
//  5. Comparison
//  6. not
//  7. and
//  8. or
type parser struct {
	input string
	toks  []Token
	pos   int
	reg   *document.Registry
}

// Option configures parsing and selector construction.
type Option func(*config)

type config struct {
	registry *document.Registry
	factory  bucket.Factory
}

// WithRegistry validates field paths against a document type registry.
// Fields on registered types must exist; unregistered types are accepted.
func WithRegistry(reg *document.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithBucketFactory sets the bucket factory used for id.bucket and
// bucket analysis. The default is bucket.NewFactory().
func WithBucketFactory(f bucket.Factory) Option {
	return func(c *config) { c.factory = f }
}

func newConfig(opts []Option) config {
	cfg := config{factory: bucket.NewFactory()}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

var functions = map[string]bool{
	"hash":      true,
	"abs":       true,
	"lowercase": true,
}

// Parse parses selection text into an AST.
func Parse(input string, opts ...Option) (Node, error) {
	cfg := newConfig(opts)
	toks, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, toks: toks, reg: cfg.registry}

	// Check for empty selection.
	if p.cur().Kind == TokEOF {
		return nil, newParseError(input, 0, ErrEmptySelection, "empty selection")
	}

	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	// Ensure we consumed all input.
	if tok := p.cur(); tok.Kind != TokEOF {
		if tok.Kind == TokRParen {
			return nil, p.errorf(tok, ErrUnmatchedParen, "unmatched ')'")
		}
		return nil, p.errorf(tok, ErrUnexpectedToken, "unexpected token: %s", tok.Lit)
	}
	return n, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(input string, opts ...Option) Node {
	n, err := Parse(input, opts...)
	if err != nil {
		panic(err)
	}
	return n
}

func (p *parser) cur() Token {
	return p.peek(0)
}

// peek returns the token n positions ahead; past the end it returns EOF.
func (p *parser) peek(n int) Token {
	if i := p.pos + n; i < len(p.toks) {
		return p.toks[i]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() Token {
	tok := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok Token, sentinel error, msgFmt string, args ...any) *ParseError {
	return newParseError(p.input, tok.Pos, sentinel, msgFmt, args...)
}

// unexpected reports the current token as unexpected, or premature EOF.
func (p *parser) unexpected(want string) *ParseError {
	tok := p.cur()
	if tok.Kind == TokEOF {
		return p.errorf(tok, ErrUnexpectedEOF, "unexpected end of selection, expected %s", want)
	}
	lit := tok.Lit
	if tok.Kind == TokString {
		lit = quoteString(lit)
	}
	return p.errorf(tok, ErrUnexpectedToken, "unexpected %s, expected %s", lit, want)
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	if p.cur().Kind != kind {
		return Token{}, p.unexpected("'" + kind.String() + "'")
	}
	return p.advance(), nil
}

// isKeyword reports whether tok is the keyword kw in keyword position,
// i.e. not directly followed by a dot.
func (p *parser) isKeyword(offset int, kw string) bool {
	tok := p.peek(offset)
	return tok.Kind == TokIdent && strings.EqualFold(tok.Lit, kw) && p.peek(offset+1).Kind != TokDot
}

// parseOr parses: or_expr = and_expr ( "or" and_expr )*
func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword(0, "or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Logic{Left: left, Op: OpOr, Right: right}
	}
	return left, nil
}

// parseAnd parses: and_expr = not_expr ( "and" not_expr )*
func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword(0, "and") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &Logic{Left: left, Op: OpAnd, Right: right}
	}
	return left, nil
}

// parseNot parses: not_expr = "not" not_expr | comparison
func (p *parser) parseNot() (Node, error) {
	if p.isKeyword(0, "not") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Not{Operand: operand}, nil
	}
	return p.parseComparison()
}

var compareOps = map[TokenKind]CompareOp{
	TokEq:    OpEq,
	TokNe:    OpNe,
	TokLt:    OpLt,
	TokLe:    OpLe,
	TokGt:    OpGt,
	TokGe:    OpGe,
	TokGlob:  OpGlob,
	TokRegex: OpRegex,
}

// parseComparison parses: comparison = additive [ cmp_op additive ]
func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op, ok := compareOps[p.cur().Kind]
	if !ok {
		return left, nil
	}
	p.advance()
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	c := &Comparison{Left: left, Op: op, Right: right}
	c.compilePattern()
	return c, nil
}

// parseAdditive parses: additive = multiplicative ( ( "+" | "-" ) multiplicative )*
func (p *parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op ArithOp
		switch p.cur().Kind {
		case TokPlus:
			op = OpAdd
		case TokMinus:
			op = OpSub
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Arithmetic{Left: left, Op: op, Right: right}
	}
}

// parseMultiplicative parses: multiplicative = unary ( ( "*" | "/" | "%" ) unary )*
func (p *parser) parseMultiplicative() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op ArithOp
		switch p.cur().Kind {
		case TokStar:
			op = OpMul
		case TokSlash:
			op = OpDiv
		case TokPercent:
			op = OpMod
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Arithmetic{Left: left, Op: op, Right: right}
	}
}

// minInt64Digits is the literal that is only representable when negated.
const minInt64Digits = "9223372036854775808"

// parseUnary parses: unary = "-" unary | postfix
// Negated numeric literals are folded into the literal.
func (p *parser) parseUnary() (Node, error) {
	if p.cur().Kind != TokMinus {
		return p.parsePostfix()
	}
	p.advance()
	if tok := p.cur(); tok.Kind == TokInt && tok.Lit == minInt64Digits && !p.atFunctionCallAt(1) {
		p.advance()
		return &Literal{Value: IntValue(math.MinInt64)}, nil
	}
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if lit, ok := operand.(*Literal); ok {
		switch lit.Value.Kind {
		case ValInt:
			return &Literal{Value: IntValue(-lit.Value.Int)}, nil
		case ValFloat:
			return &Literal{Value: FloatValue(-lit.Value.Float)}, nil
		}
	}
	return &Arithmetic{Left: &Literal{Value: IntValue(0)}, Op: OpSub, Right: operand}, nil
}

// parsePostfix parses: postfix = primary ( "." IDENT "(" ")" )*
func (p *parser) parsePostfix() (Node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.atFunctionCall() {
		p.advance() // .
		name := p.advance()
		if !functions[strings.ToLower(name.Lit)] {
			return nil, p.errorf(name, ErrUnknownFunction, "unknown function %s()", name.Lit)
		}
		p.advance() // (
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		n = &FunctionCall{Receiver: n, Name: strings.ToLower(name.Lit)}
	}
	return n, nil
}

// atFunctionCall reports whether the next tokens are ". IDENT (".
func (p *parser) atFunctionCall() bool {
	return p.cur().Kind == TokDot && p.peek(1).Kind == TokIdent && p.peek(2).Kind == TokLParen
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.cur()
	switch tok.Kind {
	case TokLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur().Kind != TokRParen {
			if p.cur().Kind == TokEOF {
				return nil, p.errorf(tok, ErrUnmatchedParen, "unmatched '('")
			}
			return nil, p.unexpected("')'")
		}
		p.advance()
		return &Group{Inner: inner}, nil

	case TokInt, TokFloat, TokString:
		p.advance()
		return p.literal(tok)

	case TokVariable:
		return nil, p.errorf(tok, ErrUnexpectedToken, "variable $%s outside field path", tok.Lit)

	case TokIdent:
		return p.parseIdent()

	case TokEOF:
		return nil, p.errorf(tok, ErrUnexpectedEOF, "unexpected end of selection, expected an expression")
	}
	return nil, p.unexpected("an expression")
}

func (p *parser) literal(tok Token) (*Literal, error) {
	switch tok.Kind {
	case TokString:
		return &Literal{Value: StringValue(tok.Lit)}, nil
	case TokFloat:
		f, err := strconv.ParseFloat(tok.Lit, 64)
		if err != nil {
			return nil, p.errorf(tok, ErrInvalidNumber, "invalid number %q", tok.Lit)
		}
		return &Literal{Value: FloatValue(f)}, nil
	default:
		if strings.HasPrefix(tok.Lit, "0x") || strings.HasPrefix(tok.Lit, "0X") {
			u, err := strconv.ParseUint(tok.Lit[2:], 16, 64)
			if err != nil {
				return nil, p.errorf(tok, ErrInvalidNumber, "invalid hex literal %q", tok.Lit)
			}
			return &Literal{Value: IntValue(int64(u)), Hex: true}, nil
		}
		i, err := strconv.ParseInt(tok.Lit, 10, 64)
		if err != nil {
			return nil, p.errorf(tok, ErrInvalidNumber, "invalid number %q", tok.Lit)
		}
		return &Literal{Value: IntValue(i)}, nil
	}
}

// parseIdent parses the primaries that start with an identifier: keyword
// literals, now(), id accessors, document type tests and field paths.
func (p *parser) parseIdent() (Node, error) {
	tok := p.cur()
	switch {
	case p.isKeyword(0, "true"):
		p.advance()
		return &Literal{Value: BoolValue(true)}, nil
	case p.isKeyword(0, "false"):
		p.advance()
		return &Literal{Value: BoolValue(false)}, nil
	case p.isKeyword(0, "null"):
		p.advance()
		return &Literal{Value: NullValue()}, nil
	case p.isKeyword(0, "now") && p.peek(1).Kind == TokLParen:
		p.advance()
		p.advance()
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return &Now{}, nil
	case p.isKeyword(0, "and"), p.isKeyword(0, "or"), p.isKeyword(0, "not"):
		return nil, p.unexpected("an expression")
	case strings.EqualFold(tok.Lit, "id") && p.isIDAccessor():
		return p.parseID()
	}

	// Document type test or field path.
	p.advance()
	if p.cur().Kind != TokDot || p.atFunctionCall() {
		return &DocumentType{Name: tok.Lit}, nil
	}
	return p.parseFieldPath(tok)
}

// isIDAccessor reports whether an "id" token starts an id expression rather
// than a field path on a document type named "id".
func (p *parser) isIDAccessor() bool {
	if p.peek(1).Kind != TokDot || p.atFunctionCallAt(1) {
		return true
	}
	next := p.peek(2)
	if next.Kind != TokIdent {
		return true
	}
	if _, ok := idComponentNames[strings.ToLower(next.Lit)]; ok {
		return true
	}
	if p.reg != nil {
		if _, ok := p.reg.DocumentType(p.cur().Lit); ok {
			return false
		}
	}
	return true
}

func (p *parser) atFunctionCallAt(offset int) bool {
	return p.peek(offset).Kind == TokDot && p.peek(offset+1).Kind == TokIdent && p.peek(offset+2).Kind == TokLParen &&
		!strings.EqualFold(p.peek(offset+1).Lit, "order")
}

// parseID parses: id_expr = "id" [ "." component ]
func (p *parser) parseID() (Node, error) {
	p.advance() // id
	if p.cur().Kind != TokDot || p.atFunctionCallAt(0) {
		return &IDValue{Component: IDFull}, nil
	}
	p.advance() // .
	name := p.cur()
	if name.Kind != TokIdent {
		return nil, p.unexpected("an id component")
	}
	comp, ok := idComponentNames[strings.ToLower(name.Lit)]
	if !ok {
		return nil, p.errorf(name, ErrUnknownIDComponent, "unknown id component %q", name.Lit)
	}
	p.advance()
	if comp != IDOrder {
		return &IDValue{Component: comp}, nil
	}

	// id.order(width, division)
	if _, err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	width, err := p.smallInt()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokComma); err != nil {
		return nil, err
	}
	division, err := p.smallInt()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	if width == 0 || width > 64 || division > width {
		return nil, p.errorf(name, ErrUnexpectedToken, "id.order(%d,%d): requires 0 < width <= 64 and division <= width", width, division)
	}
	return &IDValue{Component: IDOrder, WidthBits: width, DivisionBits: division}, nil
}

func (p *parser) smallInt() (uint16, error) {
	tok := p.cur()
	if tok.Kind != TokInt {
		return 0, p.unexpected("an integer")
	}
	v, err := strconv.ParseUint(tok.Lit, 10, 16)
	if err != nil {
		return 0, p.errorf(tok, ErrInvalidNumber, "invalid number %q", tok.Lit)
	}
	p.advance()
	return uint16(v), nil
}

// parseFieldPath parses the steps of doctype.field... after the doctype token.
func (p *parser) parseFieldPath(docType Token) (Node, error) {
	f := &FieldValue{DocType: docType.Lit}
	for {
		switch p.cur().Kind {
		case TokDot:
			if p.atFunctionCall() {
				return f, nil
			}
			p.advance()
			name := p.cur()
			if name.Kind != TokIdent {
				return nil, p.unexpected("a field name")
			}
			p.advance()
			if len(f.Path) == 0 {
				if err := p.checkField(docType, name); err != nil {
					return nil, err
				}
			}
			f.Path = append(f.Path, PathStep{Kind: StepField, Name: name.Lit})

		case TokLBracket:
			p.advance()
			tok := p.cur()
			switch tok.Kind {
			case TokInt:
				lit, err := p.literal(tok)
				if err != nil {
					return nil, err
				}
				f.Path = append(f.Path, PathStep{Kind: StepIndex, Index: lit.Value.Int})
			case TokVariable:
				f.Path = append(f.Path, PathStep{Kind: StepVariable, Name: tok.Lit})
			default:
				return nil, p.unexpected("an array index or variable")
			}
			p.advance()
			if _, err := p.expect(TokRBracket); err != nil {
				return nil, err
			}

		case TokLBrace:
			p.advance()
			tok := p.cur()
			switch tok.Kind {
			case TokIdent, TokString, TokInt:
				f.Path = append(f.Path, PathStep{Kind: StepKey, Name: tok.Lit})
			case TokVariable:
				f.Path = append(f.Path, PathStep{Kind: StepVariable, Name: tok.Lit, Brace: true})
			default:
				return nil, p.unexpected("a map key or variable")
			}
			p.advance()
			if _, err := p.expect(TokRBrace); err != nil {
				return nil, err
			}

		default:
			return f, nil
		}
	}
}

// checkField validates the top-level field of a path on a registered type.
func (p *parser) checkField(docType, field Token) error {
	if p.reg == nil {
		return nil
	}
	dt, ok := p.reg.DocumentType(docType.Lit)
	if !ok {
		return nil
	}
	if _, ok := dt.Field(field.Lit); !ok {
		return p.errorf(field, ErrUnknownField, "document type %s has no field %s", docType.Lit, field.Lit)
	}
	return nil
}
