package mightycall

import (
	"strconv"
	"strings"
)

// Record is one decoded provider object. Field names vary between API
// versions, so accessors take candidate keys in priority order. A key may
// be a dotted path; numeric segments index into arrays ("called.0.phone").
type Record map[string]any

// Lookup resolves a dotted path.
func (r Record) Lookup(path string) (any, bool) {
	var cur any = map[string]any(r)
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok || v == nil {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// String returns the first candidate with a non-empty scalar value, trimmed.
func (r Record) String(keys ...string) string {
	for _, k := range keys {
		v, ok := r.Lookup(k)
		if !ok {
			continue
		}
		if s := scalarString(v); s != "" {
			return s
		}
	}
	return ""
}

// Int returns the first candidate that parses as a positive number.
func (r Record) Int(keys ...string) int {
	for _, k := range keys {
		v, ok := r.Lookup(k)
		if !ok {
			continue
		}
		if n := toInt(v); n > 0 {
			return n
		}
	}
	return 0
}

// Bool returns the first candidate that is a boolean, else def.
func (r Record) Bool(def bool, keys ...string) bool {
	for _, k := range keys {
		v, ok := r.Lookup(k)
		if !ok {
			continue
		}
		switch b := v.(type) {
		case bool:
			return b
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed
			}
		case float64:
			return b != 0
		}
	}
	return def
}

// Map returns the first candidate that is an object.
func (r Record) Map(keys ...string) Record {
	for _, k := range keys {
		v, ok := r.Lookup(k)
		if !ok {
			continue
		}
		if m, ok := v.(map[string]any); ok {
			return Record(m)
		}
	}
	return nil
}

// firstString is the package-level form of Record.String.
func firstString(m map[string]any, keys ...string) string {
	return Record(m).String(keys...)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func toInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f)
		}
		return parseClock(s)
	default:
		return 0
	}
}

// parseClock reads hh:mm:ss or mm:ss durations.
func parseClock(s string) int {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}

// listFrom returns the first candidate path holding an array. The empty
// path means the body itself.
func listFrom(body any, paths ...string) []Record {
	for _, p := range paths {
		var v any
		if p == "" {
			v = body
		} else {
			m, ok := body.(map[string]any)
			if !ok {
				continue
			}
			found, ok := Record(m).Lookup(p)
			if !ok {
				continue
			}
			v = found
		}
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		out := make([]Record, 0, len(arr))
		for _, item := range arr {
			if m, ok := item.(map[string]any); ok {
				out = append(out, Record(m))
			}
		}
		return out
	}
	return nil
}

func hasMore(body any) bool {
	m, ok := body.(map[string]any)
	if !ok {
		return false
	}
	return Record(m).Bool(false, "hasMore", "data.hasMore")
}
