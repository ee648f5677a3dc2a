package crashlog

import (
	"strings"
	"testing"
)

func TestPathEndsInCrashLog(t *testing.T) {
	path, err := Path()
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if !strings.HasSuffix(path, "crash.log") {
		t.Fatalf("path = %q, want a crash.log suffix", path)
	}
}

func TestFormatIncludesComponentAndMessage(t *testing.T) {
	report := format("capture.callback", "index out of range [3] with length 2")
	if !strings.Contains(report, "capture.callback") {
		t.Error("expected report to include the component name")
	}
	if !strings.Contains(report, "index out of range") {
		t.Error("expected report to include the panic message")
	}
	if !strings.Contains(report, "Stack:") {
		t.Error("expected report to include a stack trace section")
	}
}
