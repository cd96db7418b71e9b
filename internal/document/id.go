package document

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Document id schemes.
const (
	SchemeID       = "id"
	SchemeOrderDoc = "orderdoc"
)

// ErrInvalidID is returned (wrapped in an *IDError) for malformed document ids.
var ErrInvalidID = errors.New("invalid document id")

// IDError describes why a document id could not be parsed.
type IDError struct {
	ID     string
	Reason string
}

func (e *IDError) Error() string {
	return fmt.Sprintf("invalid document id %q: %s", e.ID, e.Reason)
}

func (e *IDError) Unwrap() error {
	return ErrInvalidID
}

// ID is a parsed document id. Two forms are supported:
//
//	id:<namespace>:<type>:<n=<number>|g=<group>|>:<specific>
//	orderdoc(<width>,<division>):<namespace>:<number|group>:<ordering>:<specific>
//
// The zero value is not a valid id.
type ID struct {
	raw       string
	scheme    string
	namespace string
	docType   string
	specific  string

	hasNumber bool
	number    uint64
	hasGroup  bool
	group     string

	ordered      bool
	widthBits    uint16
	divisionBits uint16
	ordering     uint64
}

// ParseID parses a document id.
func ParseID(s string) (ID, error) {
	switch {
	case strings.HasPrefix(s, SchemeID+":"):
		return parseIDScheme(s)
	case strings.HasPrefix(s, SchemeOrderDoc+"("):
		return parseOrderDocScheme(s)
	default:
		return ID{}, &IDError{ID: s, Reason: "unknown scheme"}
	}
}

// MustParseID is like ParseID but panics on error. Intended for tests and constants.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func parseIDScheme(s string) (ID, error) {
	// id:<ns>:<type>:<kv>:<specific>; the specific part may contain ':'.
	parts := strings.SplitN(s, ":", 5)
	if len(parts) != 5 {
		return ID{}, &IDError{ID: s, Reason: "expected id:<namespace>:<type>:<key/value>:<specific>"}
	}
	id := ID{
		raw:       s,
		scheme:    SchemeID,
		namespace: parts[1],
		docType:   parts[2],
		specific:  parts[4],
	}
	if id.namespace == "" {
		return ID{}, &IDError{ID: s, Reason: "empty namespace"}
	}
	if kv := parts[3]; kv != "" {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return ID{}, &IDError{ID: s, Reason: fmt.Sprintf("malformed key/value pair %q", kv)}
		}
		switch key {
		case "n":
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return ID{}, &IDError{ID: s, Reason: fmt.Sprintf("user number %q is not an unsigned integer", value)}
			}
			id.hasNumber, id.number = true, n
		case "g":
			if value == "" {
				return ID{}, &IDError{ID: s, Reason: "empty group"}
			}
			id.hasGroup, id.group = true, value
		default:
			return ID{}, &IDError{ID: s, Reason: fmt.Sprintf("unknown key %q", key)}
		}
	}
	return id, nil
}

func parseOrderDocScheme(s string) (ID, error) {
	head, rest, ok := strings.Cut(s, ")")
	if !ok {
		return ID{}, &IDError{ID: s, Reason: "unterminated orderdoc parameters"}
	}
	params := strings.TrimPrefix(head, SchemeOrderDoc+"(")
	ws, ds, ok := strings.Cut(params, ",")
	if !ok {
		return ID{}, &IDError{ID: s, Reason: "orderdoc requires (width,division)"}
	}
	width, err := strconv.ParseUint(strings.TrimSpace(ws), 10, 16)
	if err != nil {
		return ID{}, &IDError{ID: s, Reason: fmt.Sprintf("bad width %q", ws)}
	}
	division, err := strconv.ParseUint(strings.TrimSpace(ds), 10, 16)
	if err != nil {
		return ID{}, &IDError{ID: s, Reason: fmt.Sprintf("bad division %q", ds)}
	}
	if width == 0 || width > 64 || division > width {
		return ID{}, &IDError{ID: s, Reason: "orderdoc requires 0 < width <= 64 and division <= width"}
	}

	// :<ns>:<user|group>:<ordering>:<specific>
	parts := strings.SplitN(strings.TrimPrefix(rest, ":"), ":", 4)
	if !strings.HasPrefix(rest, ":") || len(parts) != 4 {
		return ID{}, &IDError{ID: s, Reason: "expected orderdoc(w,d):<namespace>:<user|group>:<ordering>:<specific>"}
	}
	// Orderings are stored and compared as signed 64-bit integers.
	ordering, err := strconv.ParseUint(parts[2], 10, 63)
	if errors.Is(err, strconv.ErrRange) {
		return ID{}, &IDError{ID: s, Reason: fmt.Sprintf("ordering %s exceeds 2^63-1", parts[2])}
	}
	if err != nil {
		return ID{}, &IDError{ID: s, Reason: fmt.Sprintf("ordering %q is not an unsigned integer", parts[2])}
	}
	id := ID{
		raw:          s,
		scheme:       SchemeOrderDoc,
		namespace:    parts[0],
		specific:     parts[3],
		ordered:      true,
		widthBits:    uint16(width),
		divisionBits: uint16(division),
		ordering:     ordering,
	}
	if n, err := strconv.ParseUint(parts[1], 10, 64); err == nil {
		id.hasNumber, id.number = true, n
	} else if parts[1] != "" {
		id.hasGroup, id.group = true, parts[1]
	} else {
		return ID{}, &IDError{ID: s, Reason: "orderdoc requires a user number or group"}
	}
	return id, nil
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id.raw == "" }

// String returns the id exactly as it was parsed.
func (id ID) String() string { return id.raw }

// Scheme returns "id" or "orderdoc".
func (id ID) Scheme() string { return id.scheme }

// Namespace returns the namespace component.
func (id ID) Namespace() string { return id.namespace }

// DocType returns the document type named in the id; empty for orderdoc ids.
func (id ID) DocType() string { return id.docType }

// Specific returns the user-specified trailing component.
func (id ID) Specific() string { return id.specific }

// HasNumber reports whether the id carries a numeric user location (n=).
func (id ID) HasNumber() bool { return id.hasNumber }

// Number returns the numeric user location.
func (id ID) Number() uint64 { return id.number }

// HasGroup reports whether the id carries a group location (g=).
func (id ID) HasGroup() bool { return id.hasGroup }

// Group returns the group location.
func (id ID) Group() string { return id.group }

// IsOrdered reports whether the id uses the orderdoc scheme.
func (id ID) IsOrdered() bool { return id.ordered }

// WidthBits returns the orderdoc width parameter.
func (id ID) WidthBits() uint16 { return id.widthBits }

// DivisionBits returns the orderdoc division parameter.
func (id ID) DivisionBits() uint16 { return id.divisionBits }

// Ordering returns the orderdoc ordering value, at most 2^63-1.
func (id ID) Ordering() uint64 { return id.ordering }
