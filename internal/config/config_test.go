package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	svc := NewAt(filepath.Join(dir, "config.toml"))

	cfg, err := svc.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Transcription.Model != "base.en" {
		t.Errorf("default model = %q, want base.en", cfg.Transcription.Model)
	}
	if cfg.Hotkey.Key != "ctrl+space" {
		t.Errorf("default hotkey = %q, want ctrl+space", cfg.Hotkey.Key)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	svc := NewAt(filepath.Join(dir, "config.toml"))

	want := Default()
	want.Transcription.Model = "small.en"
	want.Hotkey.Key = "f9"

	if err := svc.Save(want); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := svc.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Transcription.Model != "small.en" {
		t.Errorf("model = %q, want small.en", got.Transcription.Model)
	}
	if got.Hotkey.Key != "f9" {
		t.Errorf("hotkey = %q, want f9", got.Hotkey.Key)
	}
}

func TestLoadMalformedTOMLIsFatalError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("not = [valid toml"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := NewAt(path)
	_, err := svc.Load()
	if err == nil {
		t.Fatal("expected an error for malformed TOML")
	}
}

func TestPartialDocumentFillsRemainingDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[transcription]\nmodel = \"tiny.en\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := NewAt(path)
	cfg, err := svc.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Transcription.Model != "tiny.en" {
		t.Errorf("model = %q, want tiny.en", cfg.Transcription.Model)
	}
	if cfg.Queue.ChunkIntervalSecs != 2 {
		t.Errorf("chunk_interval_secs = %v, want default 2", cfg.Queue.ChunkIntervalSecs)
	}
}

func TestGetSetValueRoundtrip(t *testing.T) {
	cfg := Default()
	if err := cfg.SetValue("hotkey.key", "f9"); err != nil {
		t.Fatalf("SetValue() error: %v", err)
	}
	got, err := cfg.GetValue("hotkey.key")
	if err != nil {
		t.Fatalf("GetValue() error: %v", err)
	}
	if got != "f9" {
		t.Errorf("hotkey.key = %q, want f9", got)
	}
}

func TestSetValueRejectsUnknownKey(t *testing.T) {
	cfg := Default()
	if err := cfg.SetValue("nonexistent.key", "x"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSetValueRejectsWrongType(t *testing.T) {
	cfg := Default()
	if err := cfg.SetValue("correction.timeout_secs", "not-a-number"); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
}
