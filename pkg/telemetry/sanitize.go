package telemetry

import "strings"

// redactedPlaceholder replaces the value of any sensitive field.
const redactedPlaceholder = "[REDACTED]"

// maxValueLength bounds string values in persisted events and log fields.
// Paths and document contents can be arbitrarily large; sinks only need a
// prefix.
const maxValueLength = 256

// sensitiveKeys are field names whose values must never reach a log sink or
// the event store. Matching is case-insensitive on the whole key.
var sensitiveKeys = map[string]bool{
	"password": true,
	"token":    true,
	"secret":   true,
	"apikey":   true,
}

// Sanitize returns a copy of fields with sensitive values redacted and
// oversized strings truncated. Nested maps are sanitized recursively; the
// input map is never mutated.
func Sanitize(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if sensitiveKeys[strings.ToLower(k)] {
			out[k] = redactedPlaceholder
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return Truncate(val)
	case map[string]interface{}:
		return Sanitize(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}

// Truncate bounds a string value, marking the cut so readers know content was
// dropped.
func Truncate(s string) string {
	if len(s) <= maxValueLength {
		return s
	}
	return s[:maxValueLength] + "...(truncated)"
}
