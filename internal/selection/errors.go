package selection

import (
	"errors"
	"fmt"
	"strings"
)

// Lexer errors.
var (
	ErrInvalidCharacter   = errors.New("invalid character")
	ErrInvalidEscape      = errors.New("invalid escape sequence")
	ErrUnterminatedString = errors.New("unterminated string")
	ErrInvalidNumber      = errors.New("invalid number")
)

// Parser errors.
var (
	ErrEmptySelection     = errors.New("empty selection")
	ErrUnmatchedParen     = errors.New("unmatched parenthesis")
	ErrUnexpectedToken    = errors.New("unexpected token")
	ErrUnexpectedEOF      = errors.New("unexpected end of selection")
	ErrUnknownIDComponent = errors.New("unknown id component")
	ErrUnknownFunction    = errors.New("unknown function")
	ErrUnknownField       = errors.New("unknown field")
)

// Evaluation faults. These are not INVALID results: they signal a selection
// that does not fit the structure of the document it is evaluated against.
var (
	ErrStructuralMismatch = errors.New("field access does not match value structure")
	ErrIDComponentMissing = errors.New("document id lacks component")
)

// ErrNotConvertible is wrapped by every *ConvertError.
var ErrNotConvertible = errors.New("selection cannot be converted")

// ParseError provides detailed error information including position.
type ParseError struct {
	Line    int    // 1-based line
	Column  int    // 1-based byte column within the line
	Pos     int    // byte offset in input
	Message string // human-readable error message
	Err     error  // underlying sentinel error (for errors.Is)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Line, e.Column, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// newParseError creates a ParseError, deriving line and column from pos.
func newParseError(input string, pos int, err error, msgFmt string, args ...any) *ParseError {
	pos = max(0, min(pos, len(input)))
	line := 1 + strings.Count(input[:pos], "\n")
	col := pos + 1
	if nl := strings.LastIndexByte(input[:pos], '\n'); nl >= 0 {
		col = pos - nl
	}
	return &ParseError{
		Line:    line,
		Column:  col,
		Pos:     pos,
		Message: fmt.Sprintf(msgFmt, args...),
		Err:     err,
	}
}

// IsLexical reports whether err is a lexical (as opposed to grammar) parse error.
func IsLexical(err error) bool {
	return errors.Is(err, ErrInvalidCharacter) ||
		errors.Is(err, ErrInvalidEscape) ||
		errors.Is(err, ErrUnterminatedString) ||
		errors.Is(err, ErrInvalidNumber)
}

// EvalError is a runtime fault raised while evaluating a selection.
type EvalError struct {
	Expr    string // canonical form of the failing node
	Message string
	Err     error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluating %s: %s", e.Expr, e.Message)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

func newEvalError(n Node, err error, msgFmt string, args ...any) *EvalError {
	return &EvalError{Expr: n.String(), Message: fmt.Sprintf(msgFmt, args...), Err: err}
}

// ConvertError reports why a selection could not be rewritten for push-down.
type ConvertError struct {
	Message string
}

func (e *ConvertError) Error() string {
	return e.Message
}

func (e *ConvertError) Unwrap() error {
	return ErrNotConvertible
}

func newConvertError(msgFmt string, args ...any) *ConvertError {
	return &ConvertError{Message: fmt.Sprintf(msgFmt, args...)}
}
