// Package hotkey implements the global hotkey source: a stream of
// Pressed / Released events for one configured key.
package hotkey

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	xhotkey "golang.design/x/hotkey"
)

// ErrHotkeyConflict is returned when the combo is already registered by
// another application.
var ErrHotkeyConflict = errors.New("hotkey: key combination already registered by another application")

// ErrHotkeyInvalid is returned when the combo string cannot be parsed.
var ErrHotkeyInvalid = errors.New("hotkey: invalid key combination")

// Event is one edge of the configured key: Pressed or Released.
type Event int

const (
	Pressed Event = iota
	Released
)

// Backend abstracts the real global-hotkey implementation so tests can
// inject a mock without registering an OS-level hook.
type Backend interface {
	Register() error
	Unregister() error
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// realBackend wraps golang.design/x/hotkey. The underlying hotkey.Hotkey
// is created lazily in Register to avoid spawning its CGo-backed
// listener goroutine at construction time, which would leak into tests
// that never call Register.
type realBackend struct {
	hk        *xhotkey.Hotkey
	mods      []xhotkey.Modifier
	key       xhotkey.Key
	downCh    chan struct{}
	upCh      chan struct{}
	closeOnce sync.Once
}

func newRealBackendFromCombo(combo string) (*realBackend, error) {
	mods, key, err := parseCombo(combo)
	if err != nil {
		return nil, err
	}
	return &realBackend{mods: mods, key: key}, nil
}

func (r *realBackend) Register() error {
	r.hk = xhotkey.New(r.mods, r.key)
	if err := r.hk.Register(); err != nil {
		_ = r.hk.Unregister()
		r.hk = nil
		return ErrHotkeyConflict
	}
	r.downCh = make(chan struct{}, 4)
	r.upCh = make(chan struct{}, 4)

	down := r.hk.Keydown()
	up := r.hk.Keyup()
	go func() {
		for {
			select {
			case _, ok := <-down:
				if !ok {
					r.closeOnce.Do(func() { close(r.downCh); close(r.upCh) })
					return
				}
				select {
				case r.downCh <- struct{}{}:
				default:
				}
			case _, ok := <-up:
				if !ok {
					r.closeOnce.Do(func() { close(r.downCh); close(r.upCh) })
					return
				}
				select {
				case r.upCh <- struct{}{}:
				default:
				}
			}
		}
	}()
	return nil
}

func (r *realBackend) Unregister() error {
	if r.hk == nil {
		return nil
	}
	return r.hk.Unregister()
}

func (r *realBackend) Keydown() <-chan struct{} { return r.downCh }
func (r *realBackend) Keyup() <-chan struct{}   { return r.upCh }

// Source manages global hotkey registration and fans Pressed/Released
// events out to a caller-supplied handler.
type Source struct {
	mu             sync.Mutex
	backend        Backend
	combo          string
	registered     atomic.Bool
	shuttingDown   atomic.Bool
	doneCh         chan struct{}
	parentCtx      context.Context
	cancel         context.CancelFunc
	onEvent        func(Event)
	backendFactory func(string) (Backend, error)
}

// New creates a Source backed by the real OS-level hotkey API for combo.
func New(combo string) (*Source, error) {
	factory := func(c string) (Backend, error) { return newRealBackendFromCombo(c) }
	backend, err := factory(combo)
	if err != nil {
		return nil, err
	}
	return &Source{backend: backend, combo: combo, backendFactory: factory}, nil
}

// newWithBackend injects a Backend for tests.
func newWithBackend(b Backend, combo string) *Source {
	return &Source{
		backend: b,
		combo:   combo,
		backendFactory: func(c string) (Backend, error) {
			if _, _, err := parseCombo(c); err != nil {
				return nil, err
			}
			return b, nil
		},
	}
}

// Start registers the hotkey and launches a listener goroutine that calls
// onEvent for every Pressed/Released edge. The goroutine exits when ctx
// is cancelled.
func (s *Source) Start(ctx context.Context, onEvent func(Event)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Register(); err != nil {
		return err
	}
	s.registered.Store(true)
	s.onEvent = onEvent
	s.parentCtx = ctx
	log.Printf("hotkey: %s registered", s.combo)

	listenCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	curBackend := s.backend
	curCombo := s.combo
	down := curBackend.Keydown()
	up := curBackend.Keyup()
	doneCh := make(chan struct{})
	s.doneCh = doneCh

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("hotkey: recovered panic during listener cleanup: %v", r)
			}
			if !s.shuttingDown.Load() {
				curBackend.Unregister() //nolint:errcheck
			}
			s.registered.Store(false)
			log.Printf("hotkey: %s unregistered", curCombo)
			close(doneCh)
		}()
		for {
			select {
			case <-listenCtx.Done():
				return
			case _, ok := <-down:
				if !ok {
					return
				}
				log.Printf("hotkey: %s pressed", curCombo)
				onEvent(Pressed)
			case _, ok := <-up:
				if !ok {
					return
				}
				log.Printf("hotkey: %s released", curCombo)
				onEvent(Released)
			}
		}
	}()
	return nil
}

// Reregister swaps to a new combo at runtime, registering the new combo
// before unregistering the old one so a conflict never loses the hotkey
// entirely.
func (s *Source) Reregister(newCombo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newBackend, err := s.backendFactory(newCombo)
	if err != nil {
		return err
	}
	if err := newBackend.Register(); err != nil {
		return err
	}
	if s.cancel != nil {
		s.cancel()
	}
	// Let the old listener finish its cleanup (which unregisters the old
	// backend and clears the registered flag) before marking the new one
	// registered.
	if s.doneCh != nil {
		select {
		case <-s.doneCh:
		case <-time.After(200 * time.Millisecond):
		}
	}
	oldCombo := s.combo

	s.backend = newBackend
	s.combo = newCombo
	s.registered.Store(true)
	log.Printf("hotkey: re-registered %s -> %s", oldCombo, newCombo)

	parent := s.parentCtx
	if parent == nil {
		parent = context.Background()
	}
	listenCtx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	handler := s.onEvent
	newDoneCh := make(chan struct{})
	s.doneCh = newDoneCh
	down := newBackend.Keydown()
	up := newBackend.Keyup()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("hotkey: recovered panic during reregister cleanup: %v", r)
			}
			if !s.shuttingDown.Load() {
				newBackend.Unregister() //nolint:errcheck
			}
			s.registered.Store(false)
			log.Printf("hotkey: %s unregistered", newCombo)
			close(newDoneCh)
		}()
		for {
			select {
			case <-listenCtx.Done():
				return
			case _, ok := <-down:
				if !ok {
					return
				}
				if handler != nil {
					handler(Pressed)
				}
			case _, ok := <-up:
				if !ok {
					return
				}
				if handler != nil {
					handler(Released)
				}
			}
		}
	}()
	return nil
}

// Stop unregisters the hotkey and waits briefly for the listener
// goroutine to exit before returning.
func (s *Source) Stop() {
	s.shuttingDown.Store(true)

	s.mu.Lock()
	backend := s.backend
	doneCh := s.doneCh
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	if backend != nil {
		if err := backend.Unregister(); err != nil {
			log.Printf("hotkey: Unregister in Stop() returned: %v", err)
		}
	}

	if doneCh != nil {
		select {
		case <-doneCh:
		case <-time.After(200 * time.Millisecond):
			log.Printf("hotkey: Stop() timed out waiting for listener to exit")
		}
	}
}

// IsRegistered reports whether the hotkey is currently registered.
func (s *Source) IsRegistered() bool { return s.registered.Load() }

// Combo returns the currently active combo string.
func (s *Source) Combo() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.combo
}

var modMap = map[string]xhotkey.Modifier{
	"ctrl": xhotkey.ModCtrl, "control": xhotkey.ModCtrl,
	"option": xhotkey.ModOption, "alt": xhotkey.ModOption,
	"shift": xhotkey.ModShift,
	"cmd":   xhotkey.ModCmd, "command": xhotkey.ModCmd,
}

var keyMap = map[string]xhotkey.Key{
	"space": xhotkey.KeySpace, "tab": xhotkey.KeyTab,
	"return": xhotkey.KeyReturn, "enter": xhotkey.KeyReturn,
	"a": xhotkey.KeyA, "b": xhotkey.KeyB, "c": xhotkey.KeyC, "d": xhotkey.KeyD,
	"e": xhotkey.KeyE, "f": xhotkey.KeyF, "g": xhotkey.KeyG, "h": xhotkey.KeyH,
	"i": xhotkey.KeyI, "j": xhotkey.KeyJ, "k": xhotkey.KeyK, "l": xhotkey.KeyL,
	"m": xhotkey.KeyM, "n": xhotkey.KeyN, "o": xhotkey.KeyO, "p": xhotkey.KeyP,
	"q": xhotkey.KeyQ, "r": xhotkey.KeyR, "s": xhotkey.KeyS, "t": xhotkey.KeyT,
	"u": xhotkey.KeyU, "v": xhotkey.KeyV, "w": xhotkey.KeyW, "x": xhotkey.KeyX,
	"y": xhotkey.KeyY, "z": xhotkey.KeyZ,
	"0": xhotkey.Key0, "1": xhotkey.Key1, "2": xhotkey.Key2, "3": xhotkey.Key3,
	"4": xhotkey.Key4, "5": xhotkey.Key5, "6": xhotkey.Key6, "7": xhotkey.Key7,
	"8": xhotkey.Key8, "9": xhotkey.Key9,
	"f1": xhotkey.KeyF1, "f2": xhotkey.KeyF2, "f3": xhotkey.KeyF3, "f4": xhotkey.KeyF4,
	"f5": xhotkey.KeyF5, "f6": xhotkey.KeyF6, "f7": xhotkey.KeyF7, "f8": xhotkey.KeyF8,
	"f9": xhotkey.KeyF9, "f10": xhotkey.KeyF10, "f11": xhotkey.KeyF11, "f12": xhotkey.KeyF12,
}

func parseCombo(combo string) ([]xhotkey.Modifier, xhotkey.Key, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(combo)), "+")
	if len(parts) < 2 {
		return nil, 0, fmt.Errorf("%w: %q (need at least one modifier)", ErrHotkeyInvalid, combo)
	}
	keyPart := parts[len(parts)-1]
	modParts := parts[:len(parts)-1]

	key, ok := keyMap[keyPart]
	if !ok {
		return nil, 0, fmt.Errorf("%w: unknown key %q", ErrHotkeyInvalid, keyPart)
	}

	var mods []xhotkey.Modifier
	seen := map[string]bool{}
	for _, m := range modParts {
		if seen[m] {
			continue
		}
		seen[m] = true
		mod, ok := modMap[m]
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown modifier %q", ErrHotkeyInvalid, m)
		}
		mods = append(mods, mod)
	}
	if len(mods) == 0 {
		return nil, 0, fmt.Errorf("%w: no valid modifier in %q", ErrHotkeyInvalid, combo)
	}
	return mods, key, nil
}
