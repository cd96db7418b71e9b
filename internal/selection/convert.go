package selection

import (
	"strconv"
)

// Convert rewrites a relative-time selection into one sub-query per
// document type, deferring now() to remote execution time:
//
//	music.expire > now() - 300   =>   {"music": "expire:>now(300)"}
//
// Supported atoms are "doctype.field > now()" and "doctype.field > now() - N"
// on direct fields. Atoms combine with and/or; a bare document type test may
// appear as an and operand. All atoms must use the same document type.
func Convert(n Node) (map[string]string, error) {
	c := &converter{}
	query, err := c.convert(n)
	if err != nil {
		return nil, err
	}
	if c.docType == "" || query == "" {
		return nil, newConvertError("selection %s has no time comparison to convert", n)
	}
	return map[string]string{c.docType: query}, nil
}

type converter struct {
	docType string
}

func (c *converter) useDocType(name string) error {
	if c.docType != "" && c.docType != name {
		return newConvertError("selection references more than one document type: %s and %s", c.docType, name)
	}
	c.docType = name
	return nil
}

// convert renders n as a sub-query. A document type test renders as "" and
// is dropped by the enclosing and.
func (c *converter) convert(n Node) (string, error) {
	switch x := n.(type) {
	case *Group:
		return c.convert(x.Inner)
	case *Logic:
		return c.convertLogic(x)
	case *Comparison:
		return c.convertComparison(x)
	case *DocumentType:
		return "", newConvertError("document type test %s is only supported as an and operand", x.Name)
	}
	return "", newConvertError("expression %s is not supported", n)
}

func (c *converter) convertLogic(x *Logic) (string, error) {
	parts := make([]string, 0, 2)
	for _, operand := range []Node{x.Left, x.Right} {
		if dt, ok := unwrap(operand).(*DocumentType); ok && x.Op == OpAnd {
			if err := c.useDocType(dt.Name); err != nil {
				return "", err
			}
			continue
		}
		q, err := c.convert(operand)
		if err != nil {
			return "", err
		}
		if q == "" {
			continue
		}
		if inner, ok := unwrap(operand).(*Logic); ok && inner.Op != x.Op {
			q = "(" + q + ")"
		}
		parts = append(parts, q)
	}
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	}
	op := " AND "
	if x.Op == OpOr {
		op = " OR "
	}
	return parts[0] + op + parts[1], nil
}

func (c *converter) convertComparison(x *Comparison) (string, error) {
	if x.Op != OpGt {
		return "", newConvertError("comparison operator '%s' is not supported", x.Op)
	}
	field, ok := unwrap(x.Left).(*FieldValue)
	if !ok {
		return "", newConvertError("left side of %s must be a document field", x)
	}
	if len(field.Path) != 1 {
		return "", newConvertError("field %s is not a direct field of %s", field, field.DocType)
	}
	offset, err := nowOffset(x.Right)
	if err != nil {
		return "", err
	}
	if err := c.useDocType(field.DocType); err != nil {
		return "", err
	}
	return field.Field() + ":>now(" + strconv.FormatInt(offset, 10) + ")", nil
}

// nowOffset accepts now() or now() - N and returns N.
func nowOffset(n Node) (int64, error) {
	switch x := unwrap(n).(type) {
	case *Now:
		return 0, nil
	case *Arithmetic:
		if _, ok := unwrap(x.Left).(*Now); !ok {
			break
		}
		if x.Op != OpSub {
			return 0, newConvertError("arithmetic operator '%s' is not supported", x.Op)
		}
		lit, ok := unwrap(x.Right).(*Literal)
		if !ok || lit.Value.Kind != ValInt {
			return 0, newConvertError("offset %s must be an integer literal", x.Right)
		}
		return lit.Value.Int, nil
	}
	return 0, newConvertError("right side %s must be now() with an optional offset", n)
}
