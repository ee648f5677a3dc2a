// Package chunk implements the streaming chunker: while a recording
// session is active it slices the live tail of the ring buffer into
// overlapping windows and emits TranscriptionJobs.
package chunk

import (
	"log"
	"math"

	"github.com/voxcore/voxd/internal/audio"
	"github.com/voxcore/voxd/internal/capture"
	"github.com/voxcore/voxd/internal/ring"
	"github.com/voxcore/voxd/internal/vad"
)

// Session tracks the chunking state for one active recording: mark,
// last chunk position, and the next chunk id to assign.
type Session struct {
	Mark              ring.Mark
	LastChunkPosition uint64
	NextChunkID       uint32
}

// NewSession starts a chunking session from a freshly issued ring mark.
func NewSession(mark ring.Mark) *Session {
	return &Session{Mark: mark, LastChunkPosition: mark.Position()}
}

// Chunker owns the tick-driven extraction/overlap logic. MinChunkSamples
// and OverlapSamples are derived from configuration (chunk_interval_secs
// and a fixed ~0.5s overlap). It also runs the VAD classifier +
// hysteresis tracker over the same tail it extracts, so every tick
// yields both a possible chunk job and an audio-level/speech-activity
// snapshot for the control surface.
type Chunker struct {
	buf             *ring.Buffer
	resampler       *capture.Resampler
	minChunkSamples uint64
	overlapSamples  uint64

	vadClassifier vad.Classifier
	vadState      *vad.State
}

// New builds a Chunker. deviceRate/quality configure the resampler used
// to bring extracted device-rate audio to the canonical 16kHz; pass
// deviceRate == audio.SampleRate for a no-op resampler.
func New(buf *ring.Buffer, minChunkSamples, overlapSamples uint64, deviceRate int, quality string) *Chunker {
	vadCfg := vad.DefaultConfig()
	return &Chunker{
		buf:             buf,
		resampler:       capture.NewResampler(deviceRate, audio.SampleRate, quality),
		minChunkSamples: minChunkSamples,
		overlapSamples:  overlapSamples,
		vadClassifier:   vad.NewRMSClassifier(vadCfg.Threshold, -60, -10),
		vadState:        vad.NewState(vadCfg, audio.SampleRate),
	}
}

// Level is the per-tick audio-level and voice-activity snapshot,
// carried alongside a possible chunk job so the supervisor can
// broadcast an audio_level event on the same cadence it chunks.
type Level struct {
	RMSDb     float32
	PeakDb    float32
	VADActive bool
}

// ResetVAD discards the VAD tracker's temporal state. Called at the
// start of every new recording session, mirroring tracker.ResetDedup.
func (c *Chunker) ResetVAD() {
	c.vadClassifier.Reset()
	c.vadState.Reset()
}

// Tick runs one chunking step (extract tail, check threshold, build job,
// slide the mark back by the overlap) plus the VAD pass over the same
// tail. It returns a job and true if enough new audio has accumulated
// since the last chunk; Level is populated regardless.
func (c *Chunker) Tick(s *Session) (audio.Job, Level, bool) {
	now := c.buf.CurrentPosition()
	samples := c.buf.ExtractRange(s.LastChunkPosition, now)
	level := c.classify(samples)

	if now-s.LastChunkPosition < c.minChunkSamples {
		return audio.Job{}, level, false
	}

	job := c.buildJob(s, samples, false)

	s.LastChunkPosition = now
	if s.LastChunkPosition > c.overlapSamples {
		s.LastChunkPosition -= c.overlapSamples
	} else {
		s.LastChunkPosition = 0
	}

	return job, level, true
}

// classify runs samples through the VAD classifier frame-by-frame,
// folds each result into the hysteresis tracker, and derives the RMS/peak
// dB the audio_level event reports alongside vad_active.
func (c *Chunker) classify(samples []float32) Level {
	if len(samples) == 0 {
		return Level{RMSDb: -96, PeakDb: -96, VADActive: c.vadState.IsSpeech()}
	}

	for i := 0; i < len(samples); i += vad.FrameSize {
		end := i + vad.FrameSize
		if end > len(samples) {
			end = len(samples)
		}
		frame := samples[i:end]
		result, err := c.vadClassifier.Process(frame)
		if err != nil {
			continue
		}
		c.vadState.Update(result, len(frame))
	}

	var sumSq float64
	var peak float32
	for _, sm := range samples {
		v := float64(sm)
		sumSq += v * v
		if abs := float32(math.Abs(float64(sm))); abs > peak {
			peak = abs
		}
	}

	rmsDb := float32(-96)
	if rms := math.Sqrt(sumSq / float64(len(samples))); rms > 0 {
		rmsDb = float32(20 * math.Log10(rms))
	}
	peakDb := float32(-96)
	if peak > 0 {
		peakDb = float32(20 * math.Log10(float64(peak)))
	}

	return Level{RMSDb: rmsDb, PeakDb: peakDb, VADActive: c.vadState.IsSpeech()}
}

// Final extracts the remaining tail on session end with is_final = true.
// If the remaining tail is shorter than audio.MinDuration it is
// discarded.
func (c *Chunker) Final(s *Session) (audio.Job, bool) {
	now := c.buf.CurrentPosition()
	samples := c.buf.ExtractRange(s.LastChunkPosition, now)
	resampled := c.resampler.Resample(samples)

	buf := audio.Buffer{Samples: resampled, SampleRate: audio.SampleRate}
	if buf.DurationMs() < audio.MinDuration {
		log.Printf("chunk: final tail %.0fms below minimum, discarded", buf.DurationMs())
		return audio.Job{}, false
	}

	job := audio.Job{
		Buffer:     buf,
		SequenceID: s.Mark.SequenceID,
		ChunkID:    s.NextChunkID,
		IsFinal:    true,
	}
	s.NextChunkID++
	return job, true
}

func (c *Chunker) buildJob(s *Session, rawSamples []float32, isFinal bool) audio.Job {
	resampled := c.resampler.Resample(rawSamples)
	job := audio.Job{
		Buffer:     audio.Buffer{Samples: resampled, SampleRate: audio.SampleRate},
		SequenceID: s.Mark.SequenceID,
		ChunkID:    s.NextChunkID,
		IsFinal:    isFinal,
	}
	s.NextChunkID++
	return job
}
