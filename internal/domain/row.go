package domain

import (
	"encoding/json"
	"time"
)

// Row is an untyped record as the platform returns it. Typed decoding
// happens once, at the gateway boundary; everything past this package works
// with concrete structs.
type Row map[string]any

func (r Row) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

func (r Row) StringPtr(key string) *string {
	if v, ok := r[key].(string); ok {
		return &v
	}
	return nil
}

func (r Row) Bool(key string) bool {
	if v, ok := r[key].(bool); ok {
		return v
	}
	return false
}

// Int handles the three shapes numeric columns arrive in: json.Number from
// a decoder configured with UseNumber, float64 from a plain decoder, and
// int64 from the metrics reader.
func (r Row) Int(key string) int64 {
	switch v := r[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// Time parses timestamp columns. The platform emits RFC3339 with or
// without fractional seconds depending on the column default.
func (r Row) Time(key string) time.Time {
	switch v := r[key].(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func (r Row) Nested(key string) Row {
	if v, ok := r[key].(map[string]any); ok {
		return Row(v)
	}
	return nil
}
