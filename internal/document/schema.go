package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrBadSchema is returned for malformed schema files.
var ErrBadSchema = errors.New("bad schema")

// SchemaFile is the JSON layout of a schema file:
//
//	{
//	  "structs": {"person": {"name": "string", "age": "int"}},
//	  "types": [
//	    {"name": "base", "fields": {"title": "string"}},
//	    {"name": "music", "inherits": ["base"], "fields": {"artist": "person", "tags": "array<string>"}}
//	  ]
//	}
//
// Types are registered in order, so parents must precede their children.
type SchemaFile struct {
	Structs map[string]map[string]string `json:"structs,omitempty"`
	Types   []TypeSpec                   `json:"types"`
}

// TypeSpec describes one document type in a schema file.
type TypeSpec struct {
	Name     string            `json:"name"`
	Inherits []string          `json:"inherits,omitempty"`
	Fields   map[string]string `json:"fields"`
}

// LoadSchemaFile reads a schema file into a new registry.
func LoadSchemaFile(path string) (*Registry, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return LoadSchema(f)
}

// LoadSchema decodes a schema from r into a new registry.
func LoadSchema(r io.Reader) (*Registry, error) {
	var sf SchemaFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSchema, err)
	}
	return sf.Build()
}

// Build registers the schema's types in a new registry.
func (sf *SchemaFile) Build() (*Registry, error) {
	structs := make(map[string]*StructType, len(sf.Structs))
	for name := range sf.Structs {
		structs[name] = &StructType{Name: name, Fields: make(map[string]*DataType)}
	}
	// Resolve struct members after all names are known so structs may nest.
	for name, members := range sf.Structs {
		for fname, tname := range members {
			t, err := parseTypeName(tname, structs)
			if err != nil {
				return nil, fmt.Errorf("%w: struct %s field %s: %w", ErrBadSchema, name, fname, err)
			}
			structs[name].Fields[fname] = t
		}
	}

	reg := NewRegistry()
	for _, ts := range sf.Types {
		fields := make([]Field, 0, len(ts.Fields))
		for fname, tname := range ts.Fields {
			t, err := parseTypeName(tname, structs)
			if err != nil {
				return nil, fmt.Errorf("%w: type %s field %s: %w", ErrBadSchema, ts.Name, fname, err)
			}
			fields = append(fields, Field{Name: fname, Type: t})
		}
		if _, err := reg.Register(ts.Name, ts.Inherits, fields...); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// parseTypeName parses a type expression such as "map<string,array<int>>".
func parseTypeName(s string, structs map[string]*StructType) (*DataType, error) {
	s = strings.TrimSpace(s)
	if open := strings.IndexByte(s, '<'); open >= 0 {
		if !strings.HasSuffix(s, ">") {
			return nil, fmt.Errorf("unterminated type %q", s)
		}
		outer, inner := s[:open], s[open+1:len(s)-1]
		args, err := splitTypeArgs(inner)
		if err != nil {
			return nil, err
		}
		switch outer {
		case "array", "weightedset":
			if len(args) != 1 {
				return nil, fmt.Errorf("%s takes one type argument", outer)
			}
			elem, err := parseTypeName(args[0], structs)
			if err != nil {
				return nil, err
			}
			if outer == "array" {
				return ArrayOf(elem), nil
			}
			return WeightedSetOf(elem), nil
		case "map":
			if len(args) != 2 {
				return nil, fmt.Errorf("map takes two type arguments")
			}
			k, err := parseTypeName(args[0], structs)
			if err != nil {
				return nil, err
			}
			v, err := parseTypeName(args[1], structs)
			if err != nil {
				return nil, err
			}
			return MapOf(k, v), nil
		default:
			return nil, fmt.Errorf("unknown collection type %q", outer)
		}
	}

	switch s {
	case "int":
		return Int, nil
	case "long":
		return Long, nil
	case "float":
		return Float, nil
	case "double":
		return Double, nil
	case "string":
		return String, nil
	case "bool":
		return Bool, nil
	}
	if st, ok := structs[s]; ok {
		return StructOf(st), nil
	}
	return nil, fmt.Errorf("unknown type %q", s)
}

// splitTypeArgs splits "a,map<b,c>" at top-level commas.
func splitTypeArgs(s string) ([]string, error) {
	var args []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced type arguments %q", s)
			}
		case ',':
			if depth == 0 {
				args = append(args, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced type arguments %q", s)
	}
	return append(args, s[start:]), nil
}
