package docstore

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"docselect/internal/document"
)

// Stored bodies are msgpack-encoded wireDocs compressed with zstd. Values
// carry their own kind tag, so a body decodes without consulting the schema
// beyond resolving the document type by name.

var (
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
)

func init() {
	var err error
	zstdEnc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("zstd: init encoder: " + err.Error())
	}
	zstdDec, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0), zstd.WithDecoderMaxMemory(64<<20))
	if err != nil {
		panic("zstd: init decoder: " + err.Error())
	}
}

type wireKind uint8

const (
	wireInt wireKind = iota + 1
	wireFloat
	wireString
	wireBool
	wireArray
	wireWeightedSet
	wireMap
	wireStruct
)

type wireValue struct {
	K wireKind             `msgpack:"k"`
	I int64                `msgpack:"i,omitempty"`
	F float64              `msgpack:"f,omitempty"`
	S string               `msgpack:"s,omitempty"` // string value, or struct type name
	B bool                 `msgpack:"b,omitempty"`
	L []wireValue          `msgpack:"l,omitempty"`
	E []wireEntry          `msgpack:"e,omitempty"`
	M map[string]wireValue `msgpack:"m,omitempty"`
}

type wireEntry struct {
	Key    wireValue  `msgpack:"k"`
	Value  *wireValue `msgpack:"v,omitempty"`
	Weight int64      `msgpack:"w,omitempty"`
}

type wireDoc struct {
	ID     string               `msgpack:"id"`
	Type   string               `msgpack:"type"`
	Fields map[string]wireValue `msgpack:"fields"`
}

func encodeDocument(doc *document.Document) ([]byte, error) {
	wd := wireDoc{
		ID:     doc.ID.String(),
		Type:   doc.Type.Name(),
		Fields: make(map[string]wireValue, len(doc.Fields)),
	}
	for name, v := range doc.Fields {
		wv, err := toWire(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		wd.Fields[name] = wv
	}
	raw, err := msgpack.Marshal(&wd)
	if err != nil {
		return nil, fmt.Errorf("encode document %s: %w", doc.ID, err)
	}
	return zstdEnc.EncodeAll(raw, nil), nil
}

func decodeDocument(body []byte, reg *document.Registry) (*document.Document, error) {
	raw, err := zstdDec.DecodeAll(body, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress body: %w", err)
	}
	var wd wireDoc
	if err := msgpack.Unmarshal(raw, &wd); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	id, err := document.ParseID(wd.ID)
	if err != nil {
		return nil, err
	}
	dt, ok := reg.DocumentType(wd.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", document.ErrUnknownDocType, wd.Type)
	}
	doc := document.New(dt, id)
	for name, wv := range wd.Fields {
		v, err := fromWire(wv)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		doc.Fields[name] = v
	}
	return doc, nil
}

func toWire(v document.Value) (wireValue, error) {
	switch x := v.(type) {
	case document.IntValue:
		return wireValue{K: wireInt, I: int64(x)}, nil
	case document.FloatValue:
		return wireValue{K: wireFloat, F: float64(x)}, nil
	case document.StringValue:
		return wireValue{K: wireString, S: string(x)}, nil
	case document.BoolValue:
		return wireValue{K: wireBool, B: bool(x)}, nil
	case document.Array:
		out := wireValue{K: wireArray, L: make([]wireValue, len(x))}
		for i, e := range x {
			we, err := toWire(e)
			if err != nil {
				return wireValue{}, err
			}
			out.L[i] = we
		}
		return out, nil
	case document.WeightedSet:
		out := wireValue{K: wireWeightedSet, E: make([]wireEntry, len(x))}
		for i, it := range x {
			key, err := toWire(it.Key)
			if err != nil {
				return wireValue{}, err
			}
			out.E[i] = wireEntry{Key: key, Weight: it.Weight}
		}
		return out, nil
	case document.Map:
		out := wireValue{K: wireMap, E: make([]wireEntry, len(x))}
		for i, e := range x {
			key, err := toWire(e.Key)
			if err != nil {
				return wireValue{}, err
			}
			val, err := toWire(e.Value)
			if err != nil {
				return wireValue{}, err
			}
			out.E[i] = wireEntry{Key: key, Value: &val}
		}
		return out, nil
	case *document.Struct:
		out := wireValue{K: wireStruct, S: x.Type, M: make(map[string]wireValue, len(x.Fields))}
		for name, fv := range x.Fields {
			wf, err := toWire(fv)
			if err != nil {
				return wireValue{}, err
			}
			out.M[name] = wf
		}
		return out, nil
	}
	return wireValue{}, fmt.Errorf("unsupported value type %T", v)
}

func fromWire(w wireValue) (document.Value, error) {
	switch w.K {
	case wireInt:
		return document.IntValue(w.I), nil
	case wireFloat:
		return document.FloatValue(w.F), nil
	case wireString:
		return document.StringValue(w.S), nil
	case wireBool:
		return document.BoolValue(w.B), nil
	case wireArray:
		out := make(document.Array, len(w.L))
		for i, e := range w.L {
			v, err := fromWire(e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case wireWeightedSet:
		out := make(document.WeightedSet, len(w.E))
		for i, e := range w.E {
			key, err := fromWire(e.Key)
			if err != nil {
				return nil, err
			}
			out[i] = document.WeightedItem{Key: key, Weight: e.Weight}
		}
		return out, nil
	case wireMap:
		out := make(document.Map, len(w.E))
		for i, e := range w.E {
			if e.Value == nil {
				return nil, fmt.Errorf("map entry %d has no value", i)
			}
			key, err := fromWire(e.Key)
			if err != nil {
				return nil, err
			}
			val, err := fromWire(*e.Value)
			if err != nil {
				return nil, err
			}
			out[i] = document.MapEntry{Key: key, Value: val}
		}
		return out, nil
	case wireStruct:
		out := &document.Struct{Type: w.S, Fields: make(map[string]document.Value, len(w.M))}
		for name, fv := range w.M {
			v, err := fromWire(fv)
			if err != nil {
				return nil, err
			}
			out.Fields[name] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown value kind %d", w.K)
}
