package types

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ValueKind identifies the concrete shape carried by a Value.
type ValueKind string

const (
	// KindString carries a string.
	KindString ValueKind = "string"
	// KindNumber carries a float64.
	KindNumber ValueKind = "number"
	// KindBool carries a bool.
	KindBool ValueKind = "bool"
	// KindMap carries a nested map of Values.
	KindMap ValueKind = "map"
	// KindList carries an ordered list of Values.
	KindList ValueKind = "list"
)

// Value is a tagged union for free-form step and node configuration.
// Exactly one of the payload fields is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind
	str  string
	num  float64
	b    bool
	m    map[string]Value
	list []Value
}

// Values is a free-form configuration map attached to a step or node,
// interpreted only by that step's or node's own handler.
type Values map[string]Value

// String creates a string Value.
func String(s string) Value { return Value{Kind: KindString, str: s} }

// Number creates a numeric Value.
func Number(n float64) Value { return Value{Kind: KindNumber, num: n} }

// Bool creates a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBool, b: b} }

// Map creates a nested map Value.
func Map(m map[string]Value) Value { return Value{Kind: KindMap, m: m} }

// List creates a list Value.
func List(items ...Value) Value { return Value{Kind: KindList, list: items} }

// AsString returns the string payload. ok is false for non-string kinds.
func (v Value) AsString() (string, bool) { return v.str, v.Kind == KindString }

// AsNumber returns the numeric payload. ok is false for non-number kinds.
func (v Value) AsNumber() (float64, bool) { return v.num, v.Kind == KindNumber }

// AsBool returns the boolean payload. ok is false for non-bool kinds.
func (v Value) AsBool() (bool, bool) { return v.b, v.Kind == KindBool }

// AsMap returns the map payload. ok is false for non-map kinds.
func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.Kind == KindMap }

// AsList returns the list payload. ok is false for non-list kinds.
func (v Value) AsList() ([]Value, bool) { return v.list, v.Kind == KindList }

// ToAny converts the Value to its plain Go representation
// (string, float64, bool, map[string]any, []any).
func (v Value) ToAny() any {
	switch v.Kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.ToAny()
		}
		return out
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.ToAny()
		}
		return out
	}
	return nil
}

// FromAny converts a plain Go value into a tagged Value.
// Integers are widened to float64. Unsupported shapes are an error.
func FromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			m[k] = v
		}
		return Map(m), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = v
		}
		return List(items...), nil
	case nil:
		return String(""), nil
	}
	return Value{}, fmt.Errorf("unsupported configuration value type %T", raw)
}

// ValuesFromAny converts a plain map into a Values configuration map.
func ValuesFromAny(raw map[string]any) (Values, error) {
	if raw == nil {
		return nil, nil
	}
	out := make(Values, len(raw))
	for k, item := range raw {
		v, err := FromAny(item)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// ToAny converts the configuration map to its plain Go representation.
func (vs Values) ToAny() map[string]any {
	if vs == nil {
		return nil
	}
	out := make(map[string]any, len(vs))
	for k, v := range vs {
		out[k] = v.ToAny()
	}
	return out
}

// GetString returns the string value for key. ok is false when the key is
// absent or holds a different kind.
func (vs Values) GetString(key string) (string, bool) {
	v, ok := vs[key]
	if !ok {
		return "", false
	}
	return v.AsString()
}

// GetNumber returns the numeric value for key.
func (vs Values) GetNumber(key string) (float64, bool) {
	v, ok := vs[key]
	if !ok {
		return 0, false
	}
	return v.AsNumber()
}

// GetBool returns the boolean value for key.
func (vs Values) GetBool(key string) (bool, bool) {
	v, ok := vs[key]
	if !ok {
		return false, false
	}
	return v.AsBool()
}

// GetMap returns the nested map value for key.
func (vs Values) GetMap(key string) (map[string]Value, bool) {
	v, ok := vs[key]
	if !ok {
		return nil, false
	}
	return v.AsMap()
}

// GetList returns the list value for key.
func (vs Values) GetList(key string) ([]Value, bool) {
	v, ok := vs[key]
	if !ok {
		return nil, false
	}
	return v.AsList()
}

// MarshalJSON emits the plain representation; the kind is implied by shape.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

// UnmarshalJSON infers the kind from the wire shape.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML emits the plain representation.
func (v Value) MarshalYAML() (any, error) {
	return v.ToAny(), nil
}

// UnmarshalYAML infers the kind from the document shape.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	raw = normalizeYAML(raw)
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// normalizeYAML rewrites yaml.v3's map[string]any/[]any trees so FromAny
// accepts them (yaml decodes ints as int, which FromAny already widens).
func normalizeYAML(raw any) any {
	switch t := raw.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeYAML(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeYAML(item)
		}
		return t
	}
	return raw
}
