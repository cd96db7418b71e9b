package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
)

// ErrBadOperation is returned for malformed JSON feed operations.
var ErrBadOperation = errors.New("bad feed operation")

// FeedOperation is one decoded feed entry. Condition holds the optional
// test-and-set selection that must match the stored document.
type FeedOperation struct {
	Op        Operation
	Condition string
}

type rawOperation struct {
	Put       string                     `json:"put,omitempty"`
	Update    string                     `json:"update,omitempty"`
	Remove    string                     `json:"remove,omitempty"`
	Get       string                     `json:"get,omitempty"`
	Condition string                     `json:"condition,omitempty"`
	Fields    map[string]json.RawMessage `json:"fields,omitempty"`
}

// DecodeOperations reads feed operations in JSON form, either a JSON array or
// a stream of objects:
//
//	{"put": "id:ns:music::1", "fields": {"title": "x"}}
//	{"update": "id:ns:music::1", "fields": {"title": {"assign": "y"}}}
//	{"remove": "id:ns:music::1", "condition": "music.year < 1990"}
//
// Field values are typed by the registry.
func DecodeOperations(r io.Reader, reg *Registry) ([]FeedOperation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var raws []rawOperation
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadOperation, err)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		for {
			var raw rawOperation
			if err := dec.Decode(&raw); err == io.EOF {
				break
			} else if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrBadOperation, err)
			}
			raws = append(raws, raw)
		}
	}

	ops := make([]FeedOperation, 0, len(raws))
	for i := range raws {
		op, err := raws[i].decode(reg)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		ops = append(ops, FeedOperation{Op: op, Condition: raws[i].Condition})
	}
	return ops, nil
}

func (raw *rawOperation) decode(reg *Registry) (Operation, error) {
	set := 0
	for _, s := range []string{raw.Put, raw.Update, raw.Remove, raw.Get} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: exactly one of put, update, remove or get is required", ErrBadOperation)
	}

	switch {
	case raw.Put != "":
		id, dt, err := resolveTyped(raw.Put, reg)
		if err != nil {
			return nil, err
		}
		doc := New(dt, id)
		for _, name := range slices.Sorted(maps.Keys(raw.Fields)) {
			f, ok := dt.Field(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, dt.Name(), name)
			}
			v, err := decodeRawValue(raw.Fields[name], f.Type)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			doc.Fields[name] = v
		}
		return &Put{Document: doc}, nil

	case raw.Update != "":
		id, dt, err := resolveTyped(raw.Update, reg)
		if err != nil {
			return nil, err
		}
		upd := &Update{ID: id, Type: dt}
		for _, name := range slices.Sorted(maps.Keys(raw.Fields)) {
			fu, err := decodeFieldUpdate(dt, name, raw.Fields[name])
			if err != nil {
				return nil, err
			}
			upd.Updates = append(upd.Updates, fu...)
		}
		return upd, nil

	case raw.Remove != "":
		id, err := ParseID(raw.Remove)
		if err != nil {
			return nil, err
		}
		return &Remove{ID: id}, nil

	default:
		id, err := ParseID(raw.Get)
		if err != nil {
			return nil, err
		}
		return &Get{ID: id}, nil
	}
}

func resolveTyped(s string, reg *Registry) (ID, *DocumentType, error) {
	id, err := ParseID(s)
	if err != nil {
		return ID{}, nil, err
	}
	if id.DocType() == "" {
		return ID{}, nil, fmt.Errorf("%w: id %s does not name a document type", ErrBadOperation, s)
	}
	dt, ok := reg.DocumentType(id.DocType())
	if !ok {
		return ID{}, nil, fmt.Errorf("%w: %s", ErrUnknownDocType, id.DocType())
	}
	return id, dt, nil
}

func decodeFieldUpdate(dt *DocumentType, name string, raw json.RawMessage) ([]FieldUpdate, error) {
	top := ParseCompoundName(name).First()
	if _, ok := dt.Field(top); !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, dt.Name(), top)
	}
	var ops map[string]json.RawMessage
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, fmt.Errorf("%w: field %s: update must be an object: %w", ErrBadOperation, name, err)
	}

	t, ok := dt.FieldType(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, dt.Name(), name)
	}
	var out []FieldUpdate
	for _, opName := range slices.Sorted(maps.Keys(ops)) {
		fu := FieldUpdate{Field: name}
		var vt *DataType
		switch opName {
		case "assign":
			fu.Op, vt = UpdateAssign, t
		case "add":
			fu.Op, vt = UpdateAdd, t
		case "remove":
			fu.Op, vt = UpdateRemove, t
		case "increment":
			fu.Op, vt = UpdateIncrement, Double
		case "clear":
			fu.Op = UpdateClear
		default:
			return nil, fmt.Errorf("%w: field %s: unknown update operation %q", ErrBadOperation, name, opName)
		}
		if vt != nil {
			v, err := decodeRawValue(ops[opName], vt)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			fu.Value = v
		}
		out = append(out, fu)
	}
	return out, nil
}

func decodeRawValue(raw json.RawMessage, t *DataType) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadOperation, err)
	}
	return decodeValue(v, t)
}

func decodeValue(v any, t *DataType) (Value, error) {
	switch t.Kind {
	case KindInt, KindLong:
		n, ok := v.(json.Number)
		if !ok {
			return nil, typeError(v, t)
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrBadOperation, n)
		}
		return IntValue(i), nil

	case KindFloat, KindDouble:
		n, ok := v.(json.Number)
		if !ok {
			return nil, typeError(v, t)
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrBadOperation, n)
		}
		return FloatValue(f), nil

	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, typeError(v, t)
		}
		return StringValue(s), nil

	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, typeError(v, t)
		}
		return BoolValue(b), nil

	case KindArray:
		items, ok := v.([]any)
		if !ok {
			return nil, typeError(v, t)
		}
		arr := make(Array, 0, len(items))
		for _, it := range items {
			ev, err := decodeValue(it, t.Elem)
			if err != nil {
				return nil, err
			}
			arr = append(arr, ev)
		}
		return arr, nil

	case KindWeightedSet:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, typeError(v, t)
		}
		ws := make(WeightedSet, 0, len(obj))
		for _, k := range slices.Sorted(maps.Keys(obj)) {
			key, err := decodeKey(k, t.Elem)
			if err != nil {
				return nil, err
			}
			n, ok := obj[k].(json.Number)
			if !ok {
				return nil, fmt.Errorf("%w: weight of %q must be an integer", ErrBadOperation, k)
			}
			w, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("%w: weight of %q must be an integer", ErrBadOperation, k)
			}
			ws = append(ws, WeightedItem{Key: key, Weight: w})
		}
		return ws, nil

	case KindMap:
		return decodeMap(v, t)

	case KindStruct:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, typeError(v, t)
		}
		s := &Struct{Type: t.Struct.Name, Fields: make(map[string]Value, len(obj))}
		for name, fv := range obj {
			ft, ok := t.Struct.Fields[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, t.Struct.Name, name)
			}
			dv, err := decodeValue(fv, ft)
			if err != nil {
				return nil, err
			}
			s.Fields[name] = dv
		}
		return s, nil
	}
	return nil, typeError(v, t)
}

// decodeMap accepts either {"k": v, ...} or [{"key": k, "value": v}, ...].
func decodeMap(v any, t *DataType) (Value, error) {
	switch m := v.(type) {
	case map[string]any:
		out := make(Map, 0, len(m))
		for _, k := range slices.Sorted(maps.Keys(m)) {
			key, err := decodeKey(k, t.Key)
			if err != nil {
				return nil, err
			}
			val, err := decodeValue(m[k], t.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, MapEntry{Key: key, Value: val})
		}
		return out, nil
	case []any:
		out := make(Map, 0, len(m))
		for _, it := range m {
			obj, ok := it.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: map entries must be {\"key\", \"value\"} objects", ErrBadOperation)
			}
			key, err := decodeValue(obj["key"], t.Key)
			if err != nil {
				return nil, err
			}
			val, err := decodeValue(obj["value"], t.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, MapEntry{Key: key, Value: val})
		}
		return out, nil
	}
	return nil, typeError(v, t)
}

// decodeKey converts an object key (always a JSON string) to the key type.
func decodeKey(k string, t *DataType) (Value, error) {
	switch t.Kind {
	case KindString:
		return StringValue(k), nil
	case KindInt, KindLong:
		i, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q is not an integer", ErrBadOperation, k)
		}
		return IntValue(i), nil
	case KindFloat, KindDouble:
		f, err := strconv.ParseFloat(k, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q is not a number", ErrBadOperation, k)
		}
		return FloatValue(f), nil
	case KindBool:
		b, err := strconv.ParseBool(k)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q is not a bool", ErrBadOperation, k)
		}
		return BoolValue(b), nil
	}
	return nil, fmt.Errorf("%w: keys of type %s are not supported", ErrBadOperation, t)
}

func typeError(v any, t *DataType) error {
	return fmt.Errorf("%w: cannot use %T as %s", ErrBadOperation, v, t)
}

// EncodeFields renders a document's fields as plain JSON-compatible values.
func EncodeFields(d *Document) map[string]any {
	out := make(map[string]any, len(d.Fields))
	for name, v := range d.Fields {
		out[name] = encodeValue(v)
	}
	return out
}

func encodeValue(v Value) any {
	switch x := v.(type) {
	case IntValue:
		return int64(x)
	case FloatValue:
		return float64(x)
	case StringValue:
		return string(x)
	case BoolValue:
		return bool(x)
	case Array:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = encodeValue(e)
		}
		return out
	case WeightedSet:
		out := make(map[string]any, len(x))
		for _, it := range x {
			out[it.Key.String()] = it.Weight
		}
		return out
	case Map:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key.String()] = encodeValue(e.Value)
		}
		return out
	case *Struct:
		out := make(map[string]any, len(x.Fields))
		for name, fv := range x.Fields {
			out[name] = encodeValue(fv)
		}
		return out
	}
	return nil
}
