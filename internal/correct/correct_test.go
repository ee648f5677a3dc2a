package correct

import (
	"context"
	"testing"
)

func TestNewRejectsInvalidHost(t *testing.T) {
	_, err := New(Config{Host: "://bad-url", Model: "gemma3:1b", TimeoutSecs: 1})
	if err == nil {
		t.Fatal("expected error for invalid host URL")
	}
}

func TestDisabledCorrectorIsPassthrough(t *testing.T) {
	c, err := New(Config{Enabled: false, Host: "http://127.0.0.1:11434", Model: "gemma3:1b", TimeoutSecs: 1})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	text, applied := c.Correct(context.Background(), "this is the transcript")
	if applied {
		t.Fatal("expected wasApplied = false when corrector is disabled")
	}
	if text != "this is the transcript" {
		t.Fatalf("text = %q, want unchanged original", text)
	}
}

func TestEmptyTextIsPassthrough(t *testing.T) {
	c, err := New(Config{Enabled: true, Host: "http://127.0.0.1:11434", Model: "gemma3:1b", TimeoutSecs: 1})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	text, applied := c.Correct(context.Background(), "   ")
	if applied {
		t.Fatal("expected wasApplied = false for blank text")
	}
	if text != "   " {
		t.Fatalf("text = %q, want unchanged input", text)
	}
}

func TestDefaultSystemPromptAppliedWhenUnset(t *testing.T) {
	c, err := New(Config{Enabled: true, Host: "http://127.0.0.1:11434", Model: "gemma3:1b", TimeoutSecs: 1})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if c.cfg.SystemPrompt != DefaultSystemPrompt {
		t.Fatalf("system prompt = %q, want default", c.cfg.SystemPrompt)
	}
}

func TestUnreachableEndpointTimesOutAndDegradesToOriginal(t *testing.T) {
	// A non-routable address (TEST-NET-1, RFC 5737) will never respond —
	// the short timeout must still return the original text.
	c, err := New(Config{Enabled: true, Host: "http://192.0.2.1:11434", Model: "gemma3:1b", TimeoutSecs: 0.2})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	text, applied := c.Correct(context.Background(), "hello world")
	if applied {
		t.Fatal("expected wasApplied = false on unreachable endpoint")
	}
	if text != "hello world" {
		t.Fatalf("text = %q, want unchanged original on timeout", text)
	}
}
