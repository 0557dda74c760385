package docstore

import "time"

type serverTimestamp struct{}

// ServerTimestamp is a write-only placeholder replaced by the store's clock
// when the write is applied.
func ServerTimestamp() any {
	return serverTimestamp{}
}

// IsServerTimestamp reports whether v is the ServerTimestamp placeholder.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// ResolveServerTimestamps returns a deep copy of fields with every
// placeholder replaced by now.
func ResolveServerTimestamps(fields Fields, now time.Time) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = resolveValue(v, now)
	}
	return out
}

func resolveValue(v any, now time.Time) any {
	switch t := v.(type) {
	case serverTimestamp:
		return now
	case Fields:
		return map[string]any(ResolveServerTimestamps(t, now))
	case map[string]any:
		return map[string]any(ResolveServerTimestamps(t, now))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = resolveValue(e, now)
		}
		return out
	default:
		return cloneValue(v)
	}
}

// Clone deep copies fields so callers never share maps with a store.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Fields:
		return map[string]any(t.Clone())
	case map[string]any:
		return map[string]any(Fields(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	default:
		return v
	}
}

// Millis converts a timestamp value to milliseconds since epoch. Anything
// that is not a timestamp reports false.
func Millis(v any) (int64, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UnixMilli(), true
	case *time.Time:
		if t == nil {
			return 0, false
		}
		return t.UnixMilli(), true
	}
	return 0, false
}

// Int converts a numeric value to int.
func Int(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// Strings converts a sequence value to a string slice. Non-string entries
// make the conversion fail.
func Strings(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...), true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// Map converts a mapping value to map[string]any.
func Map(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case Fields:
		return map[string]any(t), true
	case map[string]any:
		return t, true
	}
	return nil, false
}
