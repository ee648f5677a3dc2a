// Package output implements the output sink: copies finalized
// text to the clipboard or simulates a paste into the frontmost
// application, as the configuration enables.
package output

import (
	"fmt"
	"log"
	"time"

	"github.com/atotto/clipboard"
)

// Config gates the two sinks. When Paste is enabled, the clipboard is
// written only if the paste fails; Clipboard alone takes effect only
// when Paste is disabled.
type Config struct {
	Clipboard bool
	Paste     bool
}

// Backend abstracts the two output strategies. The platform-specific
// keystroke-simulation shim behind Paste is an external collaborator —
// this interface is the boundary the core consumes; the pasteFunc
// argument to New supplies a concrete implementation at wiring time.
type Backend interface {
	CopyToClipboard(text string) error
	Paste(text string) error
}

// ErrPasteUnavailable is returned by the default backend's Paste, which
// has no platform keystroke shim wired in.
var ErrPasteUnavailable = fmt.Errorf("output: paste backend not configured for this platform")

type realBackend struct {
	pasteFunc func(text string) error
}

func (r *realBackend) CopyToClipboard(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("output: clipboard: %w", err)
	}
	return nil
}

func (r *realBackend) Paste(text string) error {
	if r.pasteFunc == nil {
		return ErrPasteUnavailable
	}
	return r.pasteFunc(text)
}

// Sink delivers finalized text through the enabled sinks, falling back
// to clipboard when paste fails so the text is never silently lost.
type Sink struct {
	backend Backend
	cfg     Config
}

// New returns a Sink backed by the system clipboard. pasteFunc may be
// nil if no platform paste shim is wired; Paste then degrades to the
// clipboard fallback.
func New(cfg Config, pasteFunc func(text string) error) *Sink {
	return &Sink{backend: &realBackend{pasteFunc: pasteFunc}, cfg: cfg}
}

// newWithBackend wires a custom backend (tests only).
func newWithBackend(b Backend, cfg Config) *Sink {
	return &Sink{backend: b, cfg: cfg}
}

// Send delivers text through the configured sinks. If paste is enabled
// and fails, it falls back to clipboard (regardless of whether
// clipboard is independently enabled) and invokes onFallback so the
// caller can surface the degradation. An empty string is a no-op.
func (s *Sink) Send(text string, onFallback func()) {
	if text == "" {
		return
	}

	if s.cfg.Paste {
		start := time.Now()
		if err := s.backend.Paste(text); err != nil {
			log.Printf("output: paste failed (%v) — falling back to clipboard", err)
			if s.copy(text) && onFallback != nil {
				onFallback()
			}
		} else {
			log.Printf("output: pasted %d chars in %s", len(text), time.Since(start))
		}
		return
	}

	if s.cfg.Clipboard {
		s.copy(text)
	}
}

// copy writes text to the clipboard and reports whether it succeeded.
func (s *Sink) copy(text string) bool {
	if err := s.backend.CopyToClipboard(text); err != nil {
		log.Printf("output: clipboard failed: %v", err)
		return false
	}
	log.Printf("output: copied %d chars to clipboard", len(text))
	return true
}
