package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/whatevertogo/asset-analyzer/pkg/record"
)

// schemaDoc is the on-disk shape of schema.json.
type schemaDoc struct {
	Types []typeDecl `json:"types"`
}

type typeDecl struct {
	Name   string      `json:"name"`
	Base   string      `json:"base,omitempty"`
	Fields []fieldDecl `json:"fields"`
}

type fieldDecl struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// recordDoc is the on-disk shape of one record. A record file holds
// either a single document or {"records": [...]}.
type recordDoc struct {
	Key    string                     `json:"key"`
	Type   string                     `json:"type"`
	Fields map[string]json.RawMessage `json:"fields"`
}

type recordFile struct {
	Records []recordDoc `json:"records"`
}

func loadSchema(path string) (map[string]*record.Type, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	var doc schemaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}

	types := make(map[string]*record.Type, len(doc.Types))

	// Two passes so a type may list its base in any order.
	for _, decl := range doc.Types {
		if decl.Name == "" {
			return nil, fmt.Errorf("parsing schema: type with empty name")
		}
		fields := make([]record.FieldSpec, 0, len(decl.Fields))
		for _, f := range decl.Fields {
			kind, ok := record.KindFromName(f.Kind)
			if !ok {
				return nil, fmt.Errorf("parsing schema: type %s field %s has unknown kind %q", decl.Name, f.Name, f.Kind)
			}
			fields = append(fields, record.FieldSpec{Name: f.Name, Kind: kind})
		}
		types[decl.Name] = record.NewType(decl.Name, nil, fields...)
	}
	for _, decl := range doc.Types {
		if decl.Base == "" {
			continue
		}
		base, ok := types[decl.Base]
		if !ok {
			return nil, fmt.Errorf("parsing schema: type %s has undeclared base %q", decl.Name, decl.Base)
		}
		types[decl.Name].Base = base
	}
	return types, nil
}

func loadRecordFile(path string, types map[string]*record.Type) ([]*record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var docs []recordDoc
	var multi recordFile
	if err := json.Unmarshal(data, &multi); err == nil && len(multi.Records) > 0 {
		docs = multi.Records
	} else {
		var single recordDoc
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("parsing records: %w", err)
		}
		docs = []recordDoc{single}
	}

	out := make([]*record.Record, 0, len(docs))
	for _, doc := range docs {
		r, err := buildRecord(doc, types)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func buildRecord(doc recordDoc, types map[string]*record.Type) (*record.Record, error) {
	if doc.Key == "" {
		return nil, fmt.Errorf("record with empty key")
	}
	t, ok := types[doc.Type]
	if !ok {
		return nil, fmt.Errorf("record %s: undeclared type %q", doc.Key, doc.Type)
	}

	r := record.New(doc.Key, t)
	for name, raw := range doc.Fields {
		kind := declaredKind(t, name)
		v, err := parseValue(raw, kind)
		if err != nil {
			return nil, fmt.Errorf("record %s field %s: %w", doc.Key, name, err)
		}
		r.Set(name, v)
	}
	return r, nil
}

// declaredKind finds the declared kind of a field, walking the base
// chain. Undeclared fields parse by JSON shape inference.
func declaredKind(t *record.Type, name string) record.Kind {
	for cur := t; cur != nil; cur = cur.Base {
		for _, f := range cur.Fields {
			if f.Name == name {
				return f.Kind
			}
		}
	}
	return record.KindNull
}

// refDoc is the JSON shape of a reference value: {"$ref": "other/key"}.
type refDoc struct {
	Ref string `json:"$ref"`
}

func parseValue(raw json.RawMessage, kind record.Kind) (record.Value, error) {
	var probe interface{}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return record.Null(), err
	}
	if probe == nil {
		return record.Null(), nil
	}

	switch kind {
	case record.KindInt:
		f, ok := probe.(float64)
		if !ok {
			return record.Null(), fmt.Errorf("expected number")
		}
		return record.Int(int64(f)), nil
	case record.KindFloat:
		f, ok := probe.(float64)
		if !ok {
			return record.Null(), fmt.Errorf("expected number")
		}
		return record.Float(f), nil
	case record.KindBool:
		b, ok := probe.(bool)
		if !ok {
			return record.Null(), fmt.Errorf("expected bool")
		}
		return record.Bool(b), nil
	case record.KindString:
		s, ok := probe.(string)
		if !ok {
			return record.Null(), fmt.Errorf("expected string")
		}
		return record.String(s), nil
	case record.KindEnum:
		s, ok := probe.(string)
		if !ok {
			return record.Null(), fmt.Errorf("expected string")
		}
		return record.Enum(s), nil
	case record.KindVec2:
		xs, err := parseFloats(probe, 2)
		if err != nil {
			return record.Null(), err
		}
		return record.Vector2(xs[0], xs[1]), nil
	case record.KindVec3:
		xs, err := parseFloats(probe, 3)
		if err != nil {
			return record.Null(), err
		}
		return record.Vector3(xs[0], xs[1], xs[2]), nil
	case record.KindColor:
		s, ok := probe.(string)
		if !ok {
			return record.Null(), fmt.Errorf("expected color string")
		}
		return parseColor(s)
	case record.KindRef:
		return parseRef(raw)
	case record.KindObject:
		return record.Object(compactJSON(raw)), nil
	case record.KindDelegate:
		// Delegate slots are host bookkeeping; their payload is kept
		// opaque and unqueryable.
		return record.Null(), nil
	default:
		return inferValue(raw, probe)
	}
}

// inferValue parses a field that the schema does not declare, going by
// JSON shape alone.
func inferValue(raw json.RawMessage, probe interface{}) (record.Value, error) {
	switch v := probe.(type) {
	case bool:
		return record.Bool(v), nil
	case string:
		return record.String(v), nil
	case float64:
		if v == math.Trunc(v) {
			return record.Int(int64(v)), nil
		}
		return record.Float(v), nil
	case []interface{}:
		if xs, err := parseFloats(probe, len(v)); err == nil && (len(xs) == 2 || len(xs) == 3) {
			if len(xs) == 2 {
				return record.Vector2(xs[0], xs[1]), nil
			}
			return record.Vector3(xs[0], xs[1], xs[2]), nil
		}
		return record.Object(compactJSON(raw)), nil
	case map[string]interface{}:
		if ref, err := parseRef(raw); err == nil {
			return ref, nil
		}
		return record.Object(compactJSON(raw)), nil
	default:
		return record.Null(), fmt.Errorf("unsupported value shape")
	}
}

func parseRef(raw json.RawMessage) (record.Value, error) {
	var doc refDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return record.Null(), fmt.Errorf("expected {\"$ref\": key}: %w", err)
	}
	if doc.Ref == "" {
		return record.Null(), fmt.Errorf("expected {\"$ref\": key}")
	}
	return record.Ref(doc.Ref), nil
}

func parseFloats(probe interface{}, n int) ([]float64, error) {
	arr, ok := probe.([]interface{})
	if !ok || len(arr) != n {
		return nil, fmt.Errorf("expected array of %d numbers", n)
	}
	xs := make([]float64, n)
	for i, e := range arr {
		f, ok := e.(float64)
		if !ok {
			return nil, fmt.Errorf("expected array of %d numbers", n)
		}
		xs[i] = f
	}
	return xs, nil
}

// parseColor accepts #RRGGBB and #RRGGBBAA.
func parseColor(s string) (record.Value, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return record.Null(), fmt.Errorf("expected #RRGGBB or #RRGGBBAA, got %q", s)
	}
	n, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return record.Null(), fmt.Errorf("expected #RRGGBB or #RRGGBBAA, got %q", s)
	}
	if len(hex) == 6 {
		n = n<<8 | 0xFF
	}
	return record.RGBA(
		uint8(n>>24), uint8(n>>16), uint8(n>>8), uint8(n),
	), nil
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
