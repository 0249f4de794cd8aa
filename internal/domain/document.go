package domain

import "encoding/json"

// Document is a decoded provider JSON object. Accessors return the zero value
// when a key is missing or holds a different type.
type Document map[string]any

// Day returns the document's calendar day (YYYY-MM-DD).
func (d Document) Day() string {
	return d.String("day")
}

// ID returns the provider document id.
func (d Document) ID() string {
	return d.String("id")
}

func (d Document) String(key string) string {
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}

func (d Document) Number(key string) float64 {
	return toFloat(d[key])
}

// Object returns the nested object at key, or nil when it is not an object.
func (d Document) Object(key string) Document {
	switch v := d[key].(type) {
	case map[string]any:
		return Document(v)
	case Document:
		return v
	default:
		return nil
	}
}

// Items returns object[key].items as a sample series. The result is never nil.
func (d Document) Items(key string) []*float64 {
	return d.Object(key).Floats("items")
}

// Floats returns the list at key as samples. Null samples stay nil and the
// result is never nil.
func (d Document) Floats(key string) []*float64 {
	list, ok := d[key].([]any)
	if !ok {
		return []*float64{}
	}
	out := make([]*float64, len(list))
	for i, v := range list {
		if v == nil {
			continue
		}
		f := toFloat(v)
		out[i] = &f
	}
	return out
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneValue(map[string]any(d)).(map[string]any))
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case Document:
		return cloneValue(map[string]any(t))
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}
