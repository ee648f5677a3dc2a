package vad

import "log"

// Config holds the hysteresis tracker's tunables, mirroring spec
// defaults: threshold 0.5, min_silence_ms 700, min_speech_ms 250.
type Config struct {
	Threshold    float64
	MinSilenceMs uint32
	MinSpeechMs  uint32
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{Threshold: 0.5, MinSilenceMs: 700, MinSpeechMs: 250}
}

// Segment is a completed speech region: [Start, End) in samples, with
// the average speech probability observed while it was open.
type Segment struct {
	Start          int
	End            int
	AvgProbability float64
}

// State is the two-state (Silence/Speech) hysteresis tracker sitting
// above a Classifier. It decides when a sequence of per-frame results
// constitutes a complete utterance.
type State struct {
	cfg        Config
	sampleRate int

	probabilities []float64
	inSpeech      bool
	speechStart   int
	hasSpeechStart bool
	silenceSamples int
	totalSamples   int
}

// NewState creates a tracker for the given config and sample rate.
func NewState(cfg Config, sampleRate int) *State {
	return &State{cfg: cfg, sampleRate: sampleRate}
}

// Update folds in one classifier Result covering chunkSamples samples.
// It returns a completed Segment when speech has just ended and met the
// minimum duration; otherwise it returns (Segment{}, false).
func (s *State) Update(result Result, chunkSamples int) (Segment, bool) {
	s.probabilities = append(s.probabilities, result.Probability)
	prevTotal := s.totalSamples
	s.totalSamples += chunkSamples

	minSilenceSamples := int(float64(s.cfg.MinSilenceMs) / 1000.0 * float64(s.sampleRate))
	minSpeechSamples := int(float64(s.cfg.MinSpeechMs) / 1000.0 * float64(s.sampleRate))

	if result.IsSpeech {
		s.silenceSamples = 0
		if !s.inSpeech {
			s.inSpeech = true
			s.speechStart = prevTotal
			s.hasSpeechStart = true
			log.Printf("vad: speech started at sample %d (prob %.2f)", prevTotal, result.Probability)
		}
		return Segment{}, false
	}

	s.silenceSamples += chunkSamples
	if s.inSpeech && s.silenceSamples >= minSilenceSamples {
		s.inSpeech = false
		start := 0
		if s.hasSpeechStart {
			start = s.speechStart
		}
		s.hasSpeechStart = false
		end := prevTotal

		if end-start >= minSpeechSamples {
			avg := average(s.probabilities)
			s.probabilities = s.probabilities[:0]
			log.Printf("vad: speech ended %d-%d (%d samples, avg prob %.2f)", start, end, end-start, avg)
			return Segment{Start: start, End: end, AvgProbability: avg}, true
		}
		log.Printf("vad: speech too short: %d samples (min %d)", end-start, minSpeechSamples)
		s.probabilities = s.probabilities[:0]
	}
	return Segment{}, false
}

// IsSpeech reports whether the tracker currently considers itself in a
// speech region.
func (s *State) IsSpeech() bool { return s.inSpeech }

// Reset discards all temporal state, for a new recording session.
func (s *State) Reset() {
	s.probabilities = s.probabilities[:0]
	s.inSpeech = false
	s.hasSpeechStart = false
	s.speechStart = 0
	s.silenceSamples = 0
	s.totalSamples = 0
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
