package store

import (
	"encoding/json"
	"strings"
	"time"
)

// toJSON serializes v for a TEXT column. Nil slices/maps become their
// empty JSON literal so columns never hold SQL NULL.
func toJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

// fromJSON deserializes a TEXT column into dst, tolerating empty cells.
func fromJSON(s string, dst any) {
	if s == "" {
		return
	}
	_ = json.Unmarshal([]byte(s), dst)
}

func toTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func fromTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Tolerate second-precision variants written by other tools.
		t, err = time.Parse("2006-01-02 15:04:05", s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

func toTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toTime(*t)
}

func fromTimePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t := fromTime(*s)
	return &t
}

// prefixColumns qualifies every column in a comma-separated list with a
// table alias, for joined queries reusing the shared column constants.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
