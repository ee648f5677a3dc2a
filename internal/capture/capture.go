// Package capture drives the always-on audio input device. It owns
// the device's native sample rate, resamples only at extraction time
// (never inside the callback), and re-initializes on device loss.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/voxcore/voxd/internal/crashlog"
	"github.com/voxcore/voxd/internal/ring"
)

// ErrDeviceLost is returned when the input device disappears mid-stream
// and a single automatic re-initialization attempt also fails.
var ErrDeviceLost = errors.New("capture: input device lost and re-init failed")

// ErrMicPermissionDenied is returned when the OS has denied microphone
// access to the process.
var ErrMicPermissionDenied = errors.New("capture: microphone access denied")

const framesPerBuffer = 512 // samples per callback frame

// Backend abstracts the real PortAudio device so tests can inject a
// synthetic producer without a physical microphone.
type Backend interface {
	Open(sampleRate float64) error
	Start() error
	Stop() error
	Close() error
	Frames() <-chan []float32
}

// realBackend wraps gordonklaus/portaudio. The callback is a pure sink:
// it copies the frame and performs a non-blocking channel send, never
// locking, never resampling, never logging.
type realBackend struct {
	stream   *portaudio.Stream
	framesCh chan []float32
}

func newRealBackend() *realBackend {
	return &realBackend{framesCh: make(chan []float32, 64)}
}

func (r *realBackend) Open(sampleRate float64) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("capture: portaudio init: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(
		1, // input channels
		0, // output channels
		sampleRate,
		framesPerBuffer,
		func(in []float32) {
			// A panic here is recovered and written to a crash report
			// rather than taking the whole process down from inside a
			// CGo callback.
			defer func() {
				if rec := recover(); rec != nil {
					crashlog.Report("capture.callback", rec)
				}
			}()

			frame := make([]float32, len(in))
			copy(frame, in)
			select {
			case r.framesCh <- frame:
			default:
				// consumer too slow; the ring buffer's own overflow
				// truncation is the backstop, not this channel
			}
		},
	)
	if err != nil {
		portaudio.Terminate() //nolint:errcheck
		errStr := strings.ToLower(err.Error())
		if strings.Contains(errStr, "denied") || strings.Contains(errStr, "unauthorized") {
			return ErrMicPermissionDenied
		}
		return fmt.Errorf("capture: open stream: %w", err)
	}
	r.stream = stream
	return nil
}

func (r *realBackend) Start() error {
	if err := r.stream.Start(); err != nil {
		return fmt.Errorf("capture: start stream: %w", err)
	}
	return nil
}

func (r *realBackend) Stop() error {
	if err := r.stream.Stop(); err != nil {
		return fmt.Errorf("capture: stop stream: %w", err)
	}
	return nil
}

func (r *realBackend) Close() error {
	err := r.stream.Close()
	portaudio.Terminate() //nolint:errcheck
	return err
}

func (r *realBackend) Frames() <-chan []float32 {
	return r.framesCh
}

// Driver owns the device lifecycle and feeds a ring.Buffer continuously
// for as long as the daemon runs.
type Driver struct {
	backend    Backend
	buf        *ring.Buffer
	sampleRate float64
	running    atomic.Bool

	// OnDeviceLost is invoked (from the capture goroutine) when the
	// device disappears and re-init also fails, so the supervisor can
	// reset any in-flight recording session.
	OnDeviceLost func(error)
}

// New creates a Driver backed by the real PortAudio device.
func New(buf *ring.Buffer, sampleRate float64) *Driver {
	return &Driver{backend: newRealBackend(), buf: buf, sampleRate: sampleRate}
}

// newWithBackend injects a Backend for tests.
func newWithBackend(b Backend, buf *ring.Buffer, sampleRate float64) *Driver {
	return &Driver{backend: b, buf: buf, sampleRate: sampleRate}
}

// Run opens the device and pumps frames into the ring buffer until ctx
// is cancelled. On device loss it attempts exactly one re-initialization
// before reporting ErrDeviceLost via OnDeviceLost.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.open(); err != nil {
		return err
	}
	d.running.Store(true)

	go d.pump(ctx)
	return nil
}

func (d *Driver) open() error {
	if err := d.backend.Open(d.sampleRate); err != nil {
		return err
	}
	if err := d.backend.Start(); err != nil {
		d.backend.Close() //nolint:errcheck
		return err
	}
	return nil
}

func (d *Driver) pump(ctx context.Context) {
	frames := d.backend.Frames()
	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return
		case frame, ok := <-frames:
			if !ok {
				d.handleDeviceLoss(ctx)
				return
			}
			d.buf.Push(frame)
		}
	}
}

func (d *Driver) handleDeviceLoss(ctx context.Context) {
	log.Printf("capture: device stream closed unexpectedly, attempting re-init")
	time.Sleep(200 * time.Millisecond)

	if err := d.open(); err != nil {
		d.running.Store(false)
		log.Printf("capture: re-init failed: %v", err)
		if d.OnDeviceLost != nil {
			d.OnDeviceLost(fmt.Errorf("%w: %v", ErrDeviceLost, err))
		}
		return
	}
	log.Printf("capture: re-init succeeded")
	go d.pump(ctx)
}

func (d *Driver) shutdown() {
	d.running.Store(false)
	if err := d.backend.Stop(); err != nil {
		log.Printf("capture: stop warning: %v", err)
	}
	if err := d.backend.Close(); err != nil {
		log.Printf("capture: close warning: %v", err)
	}
}

// IsRunning reports whether the driver is currently streaming.
func (d *Driver) IsRunning() bool {
	return d.running.Load()
}
