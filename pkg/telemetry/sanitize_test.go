package telemetry

import (
	"strings"
	"testing"
)

func TestSanitizeRedactsSensitiveKeys(t *testing.T) {
	fields := map[string]interface{}{
		"password": "hunter2",
		"Token":    "abc123",
		"SECRET":   "s3cret",
		"apiKey":   "key-1",
		"project":  "projet-alpha",
	}

	out := Sanitize(fields)

	for _, key := range []string{"password", "Token", "SECRET", "apiKey"} {
		if out[key] != redactedPlaceholder {
			t.Errorf("Expected %s to be redacted, got %v", key, out[key])
		}
	}
	if out["project"] != "projet-alpha" {
		t.Errorf("Expected project to pass through, got %v", out["project"])
	}
}

func TestSanitizeTruncatesLongValues(t *testing.T) {
	long := strings.Repeat("a", 500)
	out := Sanitize(map[string]interface{}{"path": long})

	got, ok := out["path"].(string)
	if !ok {
		t.Fatalf("Expected a string, got %T", out["path"])
	}
	if !strings.HasSuffix(got, "...(truncated)") {
		t.Errorf("Expected a truncation marker, got %q", got[len(got)-20:])
	}
	if !strings.HasPrefix(got, strings.Repeat("a", maxValueLength)) {
		t.Error("Expected the first 256 characters to survive")
	}
}

func TestSanitizeShortValuesUntouched(t *testing.T) {
	out := Sanitize(map[string]interface{}{"msg": "ok", "count": 3})
	if out["msg"] != "ok" {
		t.Errorf("Expected short string untouched, got %v", out["msg"])
	}
	if out["count"] != 3 {
		t.Errorf("Expected non-string untouched, got %v", out["count"])
	}
}

func TestSanitizeRecursesIntoNestedValues(t *testing.T) {
	fields := map[string]interface{}{
		"config": map[string]interface{}{
			"password": "nested",
			"host":     "localhost",
		},
		"items": []interface{}{
			strings.Repeat("b", 300),
			map[string]interface{}{"token": "t"},
		},
	}

	out := Sanitize(fields)

	nested := out["config"].(map[string]interface{})
	if nested["password"] != redactedPlaceholder {
		t.Errorf("Expected nested password redacted, got %v", nested["password"])
	}
	if nested["host"] != "localhost" {
		t.Errorf("Expected nested host untouched, got %v", nested["host"])
	}

	items := out["items"].([]interface{})
	if !strings.HasSuffix(items[0].(string), "...(truncated)") {
		t.Error("Expected long string in slice truncated")
	}
	if items[1].(map[string]interface{})["token"] != redactedPlaceholder {
		t.Error("Expected token in nested slice map redacted")
	}
}

func TestSanitizeDoesNotMutateInput(t *testing.T) {
	fields := map[string]interface{}{"password": "hunter2"}
	_ = Sanitize(fields)
	if fields["password"] != "hunter2" {
		t.Error("Expected the input map to be left untouched")
	}
}

func TestSanitizeNil(t *testing.T) {
	if Sanitize(nil) != nil {
		t.Error("Expected nil in, nil out")
	}
}
