package selection

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// TokenKind identifies the type of lexical token.
type TokenKind int

const (
	TokEOF      TokenKind = iota
	TokIdent              // identifier or keyword; keywords are resolved by the parser
	TokInt                // decimal or 0x hex integer
	TokFloat              // decimal with fraction and/or exponent
	TokString             // quoted string (quotes stripped, escapes processed)
	TokVariable           // $name (Lit holds name without '$')
	TokLParen             // (
	TokRParen             // )
	TokLBracket           // [
	TokRBracket           // ]
	TokLBrace             // {
	TokRBrace             // }
	TokDot                // .
	TokComma              // ,
	TokPlus               // +
	TokMinus              // -
	TokStar               // *
	TokSlash              // /
	TokPercent            // %
	TokEq                 // ==
	TokNe                 // !=
	TokLt                 // <
	TokLe                 // <=
	TokGt                 // >
	TokGe                 // >=
	TokGlob               // =
	TokRegex              // =~
)

var tokenNames = map[TokenKind]string{
	TokEOF:      "EOF",
	TokIdent:    "IDENT",
	TokInt:      "INT",
	TokFloat:    "FLOAT",
	TokString:   "STRING",
	TokVariable: "VARIABLE",
	TokLParen:   "(",
	TokRParen:   ")",
	TokLBracket: "[",
	TokRBracket: "]",
	TokLBrace:   "{",
	TokRBrace:   "}",
	TokDot:      ".",
	TokComma:    ",",
	TokPlus:     "+",
	TokMinus:    "-",
	TokStar:     "*",
	TokSlash:    "/",
	TokPercent:  "%",
	TokEq:       "==",
	TokNe:       "!=",
	TokLt:       "<",
	TokLe:       "<=",
	TokGt:       ">",
	TokGe:       ">=",
	TokGlob:     "=",
	TokRegex:    "=~",
}

func (k TokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return "UNKNOWN"
}

// Token represents a lexical token.
type Token struct {
	Kind TokenKind
	Lit  string // for strings: unescaped content without quotes
	Pos  int    // byte offset in input for error reporting
}

// Lexer tokenizes a selection string.
type Lexer struct {
	input string
	pos   int // current position in input
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Next returns the next token.
func (l *Lexer) Next() (Token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Kind: TokEOF, Pos: l.pos}, nil
	}

	startPos := l.pos
	ch := l.input[l.pos]

	single := func(kind TokenKind) (Token, error) {
		l.pos++
		return Token{Kind: kind, Lit: string(ch), Pos: startPos}, nil
	}
	double := func(kind TokenKind) (Token, error) {
		l.pos += 2
		return Token{Kind: kind, Lit: l.input[startPos:l.pos], Pos: startPos}, nil
	}

	switch ch {
	case '(':
		return single(TokLParen)
	case ')':
		return single(TokRParen)
	case '[':
		return single(TokLBracket)
	case ']':
		return single(TokRBracket)
	case '{':
		return single(TokLBrace)
	case '}':
		return single(TokRBrace)
	case '.':
		return single(TokDot)
	case ',':
		return single(TokComma)
	case '+':
		return single(TokPlus)
	case '-':
		return single(TokMinus)
	case '*':
		return single(TokStar)
	case '/':
		return single(TokSlash)
	case '%':
		return single(TokPercent)
	case '=':
		switch l.peekByte(1) {
		case '=':
			return double(TokEq)
		case '~':
			return double(TokRegex)
		}
		return single(TokGlob)
	case '!':
		if l.peekByte(1) == '=' {
			return double(TokNe)
		}
	case '<':
		if l.peekByte(1) == '=' {
			return double(TokLe)
		}
		return single(TokLt)
	case '>':
		if l.peekByte(1) == '=' {
			return double(TokGe)
		}
		return single(TokGt)
	case '"', '\'':
		return l.scanString(ch)
	case '$':
		l.pos++
		if l.pos >= len(l.input) || !isIdentStart(l.input[l.pos]) {
			return Token{}, newParseError(l.input, startPos, ErrInvalidCharacter, "'$' must be followed by a variable name")
		}
		name := l.scanIdentChars()
		return Token{Kind: TokVariable, Lit: name, Pos: startPos}, nil
	}

	switch {
	case isDigit(ch):
		return l.scanNumber()
	case isIdentStart(ch):
		return Token{Kind: TokIdent, Lit: l.scanIdentChars(), Pos: startPos}, nil
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return Token{}, newParseError(l.input, startPos, ErrInvalidCharacter, "invalid character %q", r)
}

// Tokenize returns all tokens of input, ending with TokEOF.
func Tokenize(input string) ([]Token, error) {
	lex := NewLexer(input)
	var toks []Token
	for {
		tok, err := lex.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == TokEOF {
			return toks, nil
		}
	}
}

func (l *Lexer) peekByte(offset int) byte {
	if l.pos+offset < len(l.input) {
		return l.input[l.pos+offset]
	}
	return 0
}

// skipWhitespace advances past whitespace characters.
func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\n', '\r', '\f':
			l.pos++
		default:
			return
		}
	}
}

func (l *Lexer) scanIdentChars() string {
	start := l.pos
	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.pos++
	}
	return l.input[start:l.pos]
}

// minIntMagnitude is the magnitude of math.MinInt64, the largest decimal
// integer literal the lexer accepts.
const minIntMagnitude = uint64(1) << 63

// scanNumber scans a decimal integer, a float, or a 0x hex integer.
func (l *Lexer) scanNumber() (Token, error) {
	startPos := l.pos

	if l.input[l.pos] == '0' && (l.peekByte(1) == 'x' || l.peekByte(1) == 'X') {
		l.pos += 2
		for l.pos < len(l.input) && isHexDigit(l.input[l.pos]) {
			l.pos++
		}
		lit := l.input[startPos:l.pos]
		if len(lit) == 2 || len(lit) > 18 {
			return Token{}, newParseError(l.input, startPos, ErrInvalidNumber, "invalid hex literal %q", lit)
		}
		if err := l.checkNumberEnd(startPos); err != nil {
			return Token{}, err
		}
		return Token{Kind: TokInt, Lit: lit, Pos: startPos}, nil
	}

	kind := TokInt
	l.skipDigits()
	if l.peekByte(0) == '.' && isDigit(l.peekByte(1)) {
		kind = TokFloat
		l.pos++
		l.skipDigits()
	}
	if c := l.peekByte(0); c == 'e' || c == 'E' {
		save := l.pos
		l.pos++
		if c := l.peekByte(0); c == '+' || c == '-' {
			l.pos++
		}
		if isDigit(l.peekByte(0)) {
			kind = TokFloat
			l.skipDigits()
		} else {
			l.pos = save
		}
	}
	lit := l.input[startPos:l.pos]

	if err := l.checkNumberEnd(startPos); err != nil {
		return Token{}, err
	}
	var err error
	if kind == TokInt {
		// 2^63 is only valid negated; the parser decides.
		var u uint64
		if u, err = strconv.ParseUint(lit, 10, 64); err == nil && u > minIntMagnitude {
			err = strconv.ErrRange
		}
	} else {
		_, err = strconv.ParseFloat(lit, 64)
	}
	if err != nil {
		return Token{}, newParseError(l.input, startPos, ErrInvalidNumber, "invalid number %q", lit)
	}
	return Token{Kind: kind, Lit: lit, Pos: startPos}, nil
}

// checkNumberEnd rejects numbers running straight into an identifier, as in 12abc.
func (l *Lexer) checkNumberEnd(startPos int) error {
	if l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		end := l.pos
		for end < len(l.input) && isIdentChar(l.input[end]) {
			end++
		}
		return newParseError(l.input, startPos, ErrInvalidNumber, "invalid number %q", l.input[startPos:end])
	}
	return nil
}

func (l *Lexer) skipDigits() {
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
}

// scanString scans a quoted string, processing escape sequences.
func (l *Lexer) scanString(quote byte) (Token, error) {
	startPos := l.pos
	l.pos++ // skip opening quote

	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]

		if ch == quote {
			l.pos++ // skip closing quote
			return Token{Kind: TokString, Lit: sb.String(), Pos: startPos}, nil
		}

		if ch != '\\' {
			sb.WriteByte(ch)
			l.pos++
			continue
		}

		escPos := l.pos
		l.pos++
		if l.pos >= len(l.input) {
			return Token{}, newParseError(l.input, escPos, ErrUnterminatedString, "unterminated string: escape at end of input")
		}
		switch esc := l.input[l.pos]; esc {
		case '\\', '"', '\'':
			sb.WriteByte(esc)
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'f':
			sb.WriteByte('\f')
		case 'x':
			v, ok := l.hexDigits(2)
			if !ok {
				return Token{}, newParseError(l.input, escPos, ErrInvalidEscape, "\\x must be followed by two hex digits")
			}
			sb.WriteByte(byte(v))
		case 'u':
			v, ok := l.hexDigits(4)
			if !ok {
				return Token{}, newParseError(l.input, escPos, ErrInvalidEscape, "\\u must be followed by four hex digits")
			}
			sb.WriteRune(rune(v))
		default:
			return Token{}, newParseError(l.input, escPos, ErrInvalidEscape, "invalid escape sequence: \\%c", esc)
		}
		l.pos++
	}

	return Token{}, newParseError(l.input, startPos, ErrUnterminatedString, "unterminated string starting at position %d", startPos)
}

// hexDigits reads n hex digits following the current position, leaving pos on
// the last digit.
func (l *Lexer) hexDigits(n int) (uint64, bool) {
	start := l.pos + 1
	if start+n > len(l.input) {
		return 0, false
	}
	v, err := strconv.ParseUint(l.input[start:start+n], 16, 32)
	if err != nil {
		return 0, false
	}
	l.pos += n
	return v, true
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
