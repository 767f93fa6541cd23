package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
	}()

	testCases := []struct {
		name      string
		level     LogLevel
		wantInfo  bool
		wantDebug bool
	}{
		{name: "Debug level", level: LevelDebug, wantInfo: true, wantDebug: true},
		{name: "Info level", level: LevelInfo, wantInfo: true},
		{name: "Warn level", level: LevelWarn},
		{name: "Error level", level: LevelError},
		{name: "Invalid level defaults to Info", level: LogLevel("invalid"), wantInfo: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetupLogger(&buf, tc.level)
			require.NotNil(t, defaultLogger)

			Info("info message")
			Debug("debug message")

			output := buf.String()
			assert.Equal(t, tc.wantInfo, strings.Contains(output, "info message"))
			assert.Equal(t, tc.wantDebug, strings.Contains(output, "debug message"))
		})
	}
}

func TestSetupLoggerJSONFormat(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
	}()

	var buf bytes.Buffer
	SetupLoggerWithFormat(&buf, LevelInfo, FormatJSON)
	Warn("snapshot refresh skipped", "session", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "snapshot refresh skipped", entry["msg"])
	assert.Equal(t, "abc", entry["session"])
}

func TestMaskSensitive(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty string", input: "", expected: "<not set>"},
		{name: "Short string", input: "abc", expected: "<set>"},
		{name: "Exactly 4 characters", input: "abcd", expected: "<set>"},
		{name: "Token-like string", input: "2Dn5j8fk39Dkf0s", expected: "2Dn5...***"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := MaskSensitive(tc.input)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	input := map[string]any{
		"summary":       "Login works",
		"Authorization": "Bearer abc",
		"headers": map[string]any{
			"cookie": "prism_session=1",
			"accept": "application/json",
		},
		"items": []any{
			map[string]any{"apiKey": "sk-123", "title": "t"},
		},
	}

	out := Redact(input)

	assert.Equal(t, "Login works", out["summary"])
	assert.Equal(t, redacted, out["Authorization"])
	headers := out["headers"].(map[string]any)
	assert.Equal(t, redacted, headers["cookie"])
	assert.Equal(t, "application/json", headers["accept"])
	item := out["items"].([]any)[0].(map[string]any)
	assert.Equal(t, redacted, item["apiKey"])
	assert.Equal(t, "t", item["title"])

	// the input is left untouched
	assert.Equal(t, "Bearer abc", input["Authorization"])
	assert.Nil(t, Redact(nil))
}

func TestLoggingFunctions(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
	}()

	var buf bytes.Buffer
	SetupLogger(&buf, LevelDebug)

	tests := []struct {
		name    string
		logFunc func(string, ...any)
		level   slog.Level
		message string
	}{
		{name: "Debug logging", logFunc: Debug, level: slog.LevelDebug, message: "debug message"},
		{name: "Info logging", logFunc: Info, level: slog.LevelInfo, message: "info message"},
		{name: "Warn logging", logFunc: Warn, level: slog.LevelWarn, message: "warn message"},
		{name: "Error logging", logFunc: Error, level: slog.LevelError, message: "error message"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf.Reset()
			tc.logFunc(tc.message, "key", "value")

			output := buf.String()
			if !strings.Contains(output, "level="+tc.level.String()) {
				t.Errorf("Expected log level %s in output, got: %s", tc.level, output)
			}
			if !strings.Contains(output, tc.message) {
				t.Errorf("Expected message %q in output, got: %s", tc.message, output)
			}
			if !strings.Contains(output, "key=value") {
				t.Errorf("Expected key-value pair in output, got: %s", output)
			}
		})
	}
}

func TestWith(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
	}()

	var buf bytes.Buffer
	SetupLogger(&buf, LevelInfo)
	With("component", "export").Info("export finished")

	assert.Contains(t, buf.String(), "component=export")
	assert.NotNil(t, GetLogger())
}
