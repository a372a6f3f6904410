// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   LogLevel
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"Error", LevelError, true},
		{"fatal", LevelFatal, true},
		{"verbose", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = %s, %v; want %s, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init("console", &buf)
	defer Init("console", os.Stderr)
	defer SetLevel(LevelInfo)

	SetLevel(LevelWarn)
	if GetLevel() != LevelWarn {
		t.Fatalf("GetLevel() = %s, want WARN", GetLevel())
	}

	Infof("Cycle: %d", 1)
	Warnf("Cycle: acquisition failed: %s", "EBUSY")

	out := buf.String()
	if strings.Contains(out, "Cycle: 1") {
		t.Errorf("info message should be filtered at WARN, got %q", out)
	}
	if !strings.Contains(out, "acquisition failed: EBUSY") {
		t.Errorf("warn message missing from output %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", &buf)
	defer Init("console", os.Stderr)

	Errorf("Persist: write failed")
	if !strings.Contains(buf.String(), `"msg":"Persist: write failed"`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}
