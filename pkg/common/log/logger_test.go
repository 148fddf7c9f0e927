package log

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestStandardLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := NewStandardLogger(
		WithOutput(&buf),
		WithLevel(LevelDebug),
	)

	levels := []struct {
		tag string
		log func(string, ...interface{})
	}{
		{"[DEBUG]", logger.Debug},
		{"[INFO]", logger.Info},
		{"[WARN]", logger.Warn},
		{"[ERROR]", logger.Error},
	}
	for _, lv := range levels {
		lv.log("message at %s", lv.tag)
		if !strings.Contains(buf.String(), lv.tag) || !strings.Contains(buf.String(), "message at "+lv.tag) {
			t.Errorf("%s logging failed, got: %s", lv.tag, buf.String())
		}
		buf.Reset()
	}

	// Test level filtering
	logger.SetLevel(LevelError)
	logger.Debug("This debug message should not appear")
	logger.Info("This info message should not appear")
	logger.Warn("This warning message should not appear")
	logger.Error("This error message should appear")
	output := buf.String()
	if strings.Contains(output, "should not appear") ||
		!strings.Contains(output, "This error message should appear") {
		t.Errorf("Level filtering failed, got: %s", output)
	}

	if logger.GetLevel() != LevelError {
		t.Errorf("GetLevel failed, expected LevelError, got: %v", logger.GetLevel())
	}
}

func TestLoggerFieldsAreOrdered(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(
		WithOutput(&buf),
		WithInitialFields(map[string]interface{}{"zeta": 1}),
	)

	logger.WithFields(map[string]interface{}{
		"component": "test",
		"count":     123,
	}).Info("Message with fields")

	output := buf.String()
	if !strings.Contains(output, "[INFO] component=test count=123 zeta=1 Message with fields") {
		t.Errorf("expected sorted fields before the message, got: %s", output)
	}
	buf.Reset()

	// The parent is unaffected by derived loggers
	logger.Info("plain")
	if strings.Contains(buf.String(), "component=") {
		t.Errorf("parent logger picked up child fields: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"fatal", LevelFatal, false},
		{"verbose", LevelInfo, true},
	}

	for _, tc := range testCases {
		got, err := ParseLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestLoggerConcurrentUse(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf))
	child := logger.WithField("worker", true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if i%2 == 0 {
					logger.Info("parent %d", j)
				} else {
					child.Info("child %d", j)
				}
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 400 {
		t.Errorf("expected 400 complete lines, got %d", len(lines))
	}
}

func TestDefaultLogger(t *testing.T) {
	original := GetDefaultLogger()
	defer SetDefaultLogger(original)

	var buf bytes.Buffer
	SetDefaultLogger(NewStandardLogger(
		WithOutput(&buf),
		WithLevel(LevelInfo),
	))

	Info("Global info message")
	if !strings.Contains(buf.String(), "[INFO]") || !strings.Contains(buf.String(), "Global info message") {
		t.Errorf("Global info logging failed, got: %s", buf.String())
	}
	buf.Reset()

	WithField("global", true).Info("Global with field")
	output := buf.String()
	if !strings.Contains(output, "[INFO]") ||
		!strings.Contains(output, "Global with field") ||
		!strings.Contains(output, "global=true") {
		t.Errorf("Global logging with field failed, got: %s", output)
	}
	buf.Reset()

	SetLevel(LevelWarn)
	Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered, got: %s", buf.String())
	}
}
