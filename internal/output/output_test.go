package output

import (
	"errors"
	"testing"
)

type mockBackend struct {
	pasteCalled     bool
	clipboardCalled bool
	pasteErr        error
	clipboardErr    error
	pastedText      string
	clipboardText   string
}

func (m *mockBackend) Paste(text string) error {
	m.pasteCalled = true
	m.pastedText = text
	return m.pasteErr
}

func (m *mockBackend) CopyToClipboard(text string) error {
	m.clipboardCalled = true
	m.clipboardText = text
	return m.clipboardErr
}

func TestSendPasteSuccess(t *testing.T) {
	mock := &mockBackend{}
	s := newWithBackend(mock, Config{Paste: true, Clipboard: true})

	fallbackCalled := false
	s.Send("Hello world", func() { fallbackCalled = true })

	if !mock.pasteCalled {
		t.Error("Paste() not called")
	}
	if mock.pastedText != "Hello world" {
		t.Errorf("pastedText = %q, want %q", mock.pastedText, "Hello world")
	}
	if mock.clipboardCalled {
		t.Error("CopyToClipboard() should not be called on paste success")
	}
	if fallbackCalled {
		t.Error("onFallback should not fire on paste success")
	}
}

func TestSendFallsBackToClipboardOnPasteFailure(t *testing.T) {
	mock := &mockBackend{pasteErr: errors.New("accessibility denied")}
	s := newWithBackend(mock, Config{Paste: true})

	fallbackCalled := false
	s.Send("Hello world", func() { fallbackCalled = true })

	if !mock.clipboardCalled {
		t.Error("CopyToClipboard() should be called on paste failure")
	}
	if mock.clipboardText != "Hello world" {
		t.Errorf("clipboardText = %q, want %q", mock.clipboardText, "Hello world")
	}
	if !fallbackCalled {
		t.Error("onFallback should fire when falling back to clipboard")
	}
}

func TestSendBothSinksFailNoFallbackCallback(t *testing.T) {
	mock := &mockBackend{
		pasteErr:     errors.New("accessibility denied"),
		clipboardErr: errors.New("clipboard unavailable"),
	}
	s := newWithBackend(mock, Config{Paste: true})

	fallbackCalled := false
	s.Send("Hello world", func() { fallbackCalled = true })

	if fallbackCalled {
		t.Error("onFallback should not fire when both paste and clipboard fail")
	}
}

func TestSendEmptyTextIsNoOp(t *testing.T) {
	mock := &mockBackend{}
	s := newWithBackend(mock, Config{Paste: true, Clipboard: true})

	s.Send("", nil)

	if mock.pasteCalled || mock.clipboardCalled {
		t.Error("neither Paste nor CopyToClipboard should be called for empty text")
	}
}

func TestSendClipboardOnlyWhenPasteDisabled(t *testing.T) {
	mock := &mockBackend{}
	s := newWithBackend(mock, Config{Paste: false, Clipboard: true})

	s.Send("Hello", nil)

	if mock.pasteCalled {
		t.Error("Paste() should not be called when disabled")
	}
	if !mock.clipboardCalled {
		t.Error("CopyToClipboard() should be called when clipboard sink is enabled")
	}
}

func TestSendNeitherSinkEnabledDoesNothing(t *testing.T) {
	mock := &mockBackend{}
	s := newWithBackend(mock, Config{})

	s.Send("Hello", nil)

	if mock.pasteCalled || mock.clipboardCalled {
		t.Error("no sink should fire when both are disabled")
	}
}

func TestDefaultBackendPasteUnavailableWithoutShim(t *testing.T) {
	b := &realBackend{}
	if err := b.Paste("text"); !errors.Is(err, ErrPasteUnavailable) {
		t.Fatalf("Paste() error = %v, want ErrPasteUnavailable", err)
	}
}
