package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// ISODate is the layout of every date stored in the collections.
const ISODate = "2006-01-02"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// ParseDate parses an ISO (YYYY-MM-DD) date. ok is false for anything else.
func ParseDate(s string) (t time.Time, ok bool) {
	t, err := time.Parse(ISODate, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate is the inverse of ParseDate.
func FormatDate(t time.Time) string {
	return t.Format(ISODate)
}

// StringifyScalars rewrites the number and boolean values of keys in the JSON object data as strings,
// and nested objects or arrays as null. Anything that is not an object is returned unchanged.
func StringifyScalars(data []byte, keys ...string) []byte {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return data
	}
	var changed bool
	for _, k := range keys {
		raw := bytes.TrimSpace(obj[k])
		if len(raw) == 0 {
			continue
		}
		switch raw[0] {
		case '"', 'n':
			continue
		case '{', '[':
			obj[k] = json.RawMessage("null")
		default:
			q, err := json.Marshal(string(raw))
			if err != nil {
				continue
			}
			obj[k] = q
		}
		changed = true
	}
	if !changed {
		return data
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return data
	}
	return out
}
