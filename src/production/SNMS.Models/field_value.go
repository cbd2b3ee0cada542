package snmsmodels

import (
	"encoding/json"
	"fmt"
)

// FieldValue is the tagged variant for one normalized field of a reading:
// a plain number, a stored-file reference, or a geo coordinate. The kind
// mirrors the type schema so handling can switch exhaustively instead of
// sniffing a dynamically-typed map.
type FieldValue struct {
	Kind   FieldKind
	Number float64
	FileID string
}

// NumericValue builds a numeric field value.
func NumericValue(v float64) FieldValue {
	return FieldValue{Kind: FieldNumeric, Number: v}
}

// FileRefValue builds a field value referencing a stored binary file.
func FileRefValue(id string) FieldValue {
	return FieldValue{Kind: FieldFile, FileID: id}
}

// GeoValue builds a latitude or longitude field value.
func GeoValue(kind FieldKind, v float64) FieldValue {
	return FieldValue{Kind: kind, Number: v}
}

// Raw returns the wire representation: float64 for numeric and geo kinds,
// the file id string for file kinds.
func (v FieldValue) Raw() interface{} {
	switch v.Kind {
	case FieldFile:
		return v.FileID
	default:
		return v.Number
	}
}

// MarshalJSON encodes the raw representation.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Raw())
}

// ValueMap is a normalized field map keyed by field name.
type ValueMap map[string]FieldValue

// Raw converts the map to its wire representation.
func (m ValueMap) Raw() map[string]interface{} {
	if m == nil {
		return nil
	}
	raw := make(map[string]interface{}, len(m))
	for name, v := range m {
		raw[name] = v.Raw()
	}
	return raw
}

// ValueMapFromRaw rebuilds a ValueMap from a stored raw map using the type
// schema. Fields absent from the schema are dropped.
func ValueMapFromRaw(raw map[string]interface{}, fields map[string]FieldSpec) (ValueMap, error) {
	if raw == nil {
		return nil, nil
	}
	values := make(ValueMap, len(raw))
	for name, v := range raw {
		spec, ok := fields[name]
		if !ok {
			continue
		}
		switch spec.Type {
		case FieldFile:
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("field %s: expected file id string, got %T", name, v)
			}
			values[name] = FileRefValue(s)
		case FieldLatitude, FieldLongitude:
			f, ok := toFloat(v)
			if !ok {
				return nil, fmt.Errorf("field %s: expected number, got %T", name, v)
			}
			values[name] = GeoValue(spec.Type, f)
		default:
			f, ok := toFloat(v)
			if !ok {
				return nil, fmt.Errorf("field %s: expected number, got %T", name, v)
			}
			values[name] = NumericValue(f)
		}
	}
	return values, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
