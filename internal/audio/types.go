// Package audio holds the data-model types shared across the pipeline:
// audio buffers, transcription jobs, and their results.
package audio

// SampleRate is the canonical internal sample rate. Device rate is an
// acquisition-time constant; resampling only happens at extraction time.
const SampleRate = 16000

// MinDuration is the minimum recording duration passed to the ASR worker.
const MinDuration = 100 // ms

// WhisperMinDuration is the minimum duration Whisper's encoder wants;
// buffers between MinDuration and this are zero-padded at the tail.
const WhisperMinDuration = 1100 // ms

// Buffer is a mono f32 PCM buffer at SampleRate.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// DurationMs returns the buffer's duration in milliseconds.
func (b Buffer) DurationMs() float64 {
	return float64(len(b.Samples)) / float64(b.SampleRate) * 1000
}

// PadToWhisperMin zero-pads the buffer's tail to WhisperMinDuration if its
// duration lies in [MinDuration, WhisperMinDuration).
func (b Buffer) PadToWhisperMin() Buffer {
	durationMs := b.DurationMs()
	if durationMs < MinDuration || durationMs >= WhisperMinDuration {
		return b
	}
	targetLen := int(WhisperMinDuration / 1000.0 * float64(b.SampleRate))
	if targetLen <= len(b.Samples) {
		return b
	}
	padded := make([]float32, targetLen)
	copy(padded, b.Samples)
	return Buffer{Samples: padded, SampleRate: b.SampleRate}
}

// Key identifies a job/result pair uniquely within one recording.
type Key struct {
	SequenceID uint64
	ChunkID    uint32
}

// Job is one unit of transcription work.
type Job struct {
	Buffer     Buffer
	SequenceID uint64
	ChunkID    uint32
	IsFinal    bool
}

// Key returns the job's unique key.
func (j Job) Key() Key { return Key{SequenceID: j.SequenceID, ChunkID: j.ChunkID} }

// Result is the transcription produced for a Job, keyed identically.
// DurationSecs is the duration of the audio the job covered, carried
// through so the tracker and supervisor can report it without
// re-deriving it from a buffer they no longer hold.
type Result struct {
	Text         string
	SequenceID   uint64
	ChunkID      uint32
	IsFinal      bool
	DurationSecs float64
}

// Key returns the result's unique key.
func (r Result) Key() Key { return Key{SequenceID: r.SequenceID, ChunkID: r.ChunkID} }
