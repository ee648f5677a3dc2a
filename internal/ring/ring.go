// Package ring implements the always-on lock-free audio ring buffer.
//
// Exactly one producer (the capture callback) calls Push; exactly one
// consumer (the supervisor) calls Mark, CurrentPosition, ExtractSince and
// ExtractRange. Correctness rests on a single atomic write-position counter
// published with release semantics and observed with acquire semantics.
package ring

import (
	"log"
	"math/bits"
	"sync/atomic"
)

// Mark is a cheap, ordered token issued on demand; a consumer later asks
// "what has been written since here?" by handing it back to ExtractSince.
// Equality is by SequenceID only.
type Mark struct {
	position   uint64
	SequenceID uint64
}

// Position returns the buffer write position the mark was issued at.
func (m Mark) Position() uint64 { return m.position }

// Buffer is a single-producer single-consumer ring buffer: only the
// capture thread increments writePosition; a release-store of
// writePosition after writing K samples makes those K samples visible
// to any reader that observes the new value via acquire-load; any
// extraction spanning more than capacity samples behind the observed
// write position is truncated to the latest capacity samples.
type Buffer struct {
	samples    []float32
	capacity   uint64
	mask       uint64
	sampleRate int

	writePosition uint64 // atomic, release-store by producer
	sequence      uint64 // atomic, mark() issues strictly increasing ids
}

// New creates a buffer sized from prebufferDurationSecs * sampleRate,
// rounded up to the next power of two so index arithmetic is a mask.
func New(prebufferDurationSecs float64, sampleRate int) *Buffer {
	needed := uint64(prebufferDurationSecs * float64(sampleRate))
	if needed == 0 {
		needed = 1
	}
	capacity := nextPowerOfTwo(needed)

	log.Printf("ring: capacity=%d samples (%.2fs at %dHz)", capacity, float64(capacity)/float64(sampleRate), sampleRate)

	return &Buffer{
		samples:    make([]float32, capacity),
		capacity:   capacity,
		mask:       capacity - 1,
		sampleRate: sampleRate,
	}
}

func nextPowerOfTwo(n uint64) uint64 {
	if n&(n-1) == 0 {
		return n
	}
	return 1 << bits.Len64(n)
}

// Capacity returns the buffer's fixed sample capacity.
func (b *Buffer) Capacity() uint64 { return b.capacity }

// SampleRate returns the sample rate the buffer was sized for.
func (b *Buffer) SampleRate() int { return b.sampleRate }

// Push writes samples at the current write position, wrapping via mask,
// then release-stores the new position. Called from exactly one producer;
// never blocks; never allocates.
func (b *Buffer) Push(samples []float32) {
	write := atomic.LoadUint64(&b.writePosition)
	for i, s := range samples {
		idx := (write + uint64(i)) & b.mask
		b.samples[idx] = s
	}
	atomic.StoreUint64(&b.writePosition, write+uint64(len(samples)))
}

// Mark acquire-loads the write position and atomically issues the next
// sequence id. Safe to call from any thread.
func (b *Buffer) Mark() Mark {
	seq := atomic.AddUint64(&b.sequence, 1) - 1
	pos := atomic.LoadUint64(&b.writePosition)
	return Mark{position: pos, SequenceID: seq}
}

// CurrentPosition acquire-loads the write position.
func (b *Buffer) CurrentPosition() uint64 {
	return atomic.LoadUint64(&b.writePosition)
}

// ExtractSince returns samples written since mark, truncated if the
// buffer has wrapped more than capacity samples since the mark.
func (b *Buffer) ExtractSince(m Mark) []float32 {
	return b.ExtractRange(m.position, b.CurrentPosition())
}

// ExtractRange returns samples at [from, to), truncated on overflow.
// Overflow is logged, never surfaced as an error.
func (b *Buffer) ExtractRange(from, to uint64) []float32 {
	requested := to - from // wrap-safe modular arithmetic
	available := requested
	if available > b.capacity {
		available = b.capacity
	}

	start := from
	if requested > b.capacity {
		lost := requested - b.capacity
		log.Printf("ring: overflow, lost %d samples (%.2fs)", lost, float64(lost)/float64(b.sampleRate))
		start = to - b.capacity
	}

	out := make([]float32, available)
	for i := uint64(0); i < available; i++ {
		out[i] = b.samples[(start+i)&b.mask]
	}
	return out
}
