// Package vad implements the voice-activity detector: a stateful
// per-frame speech/silence classifier plus a two-state hysteresis tracker
// above it.
package vad

import "math"

// FrameSize is the fixed frame size the classifier operates on: 512
// samples (32ms at 16kHz). Shorter inputs are zero-padded; longer
// inputs are chunked and averaged.
const FrameSize = 512

// Result is the per-frame classifier output.
type Result struct {
	Probability float64
	IsSpeech    bool
}

// Classifier produces a speech probability for one frame of samples and
// carries whatever temporal state its model needs across frames.
type Classifier interface {
	Process(samples []float32) (Result, error)
	Reset()
}

// RMSClassifier is a dependency-free classifier that derives a speech
// probability from frame RMS energy relative to a calibrated floor. It
// has no real temporal state (unlike an LSTM-backed model) but still
// implements Reset to satisfy Classifier and to mirror how a stateful
// backend would be swapped in behind the same interface.
type RMSClassifier struct {
	threshold float64
	floorDB   float64
	ceilingDB float64
}

// NewRMSClassifier builds a classifier that maps RMS dB in
// [floorDB, ceilingDB] linearly onto a probability in [0, 1].
func NewRMSClassifier(threshold, floorDB, ceilingDB float64) *RMSClassifier {
	return &RMSClassifier{threshold: threshold, floorDB: floorDB, ceilingDB: ceilingDB}
}

func (c *RMSClassifier) Process(samples []float32) (Result, error) {
	frame := padOrAverage(samples)

	var sumSq float64
	for _, s := range frame {
		sumSq += float64(s) * float64(s)
	}
	rms := math.Sqrt(sumSq / float64(len(frame)))

	var db float64
	if rms <= 0 {
		db = c.floorDB
	} else {
		db = 20 * math.Log10(rms)
	}

	prob := (db - c.floorDB) / (c.ceilingDB - c.floorDB)
	if prob < 0 {
		prob = 0
	}
	if prob > 1 {
		prob = 1
	}

	return Result{Probability: prob, IsSpeech: prob >= c.threshold}, nil
}

func (c *RMSClassifier) Reset() {}

// padOrAverage normalizes samples to exactly FrameSize: zero-padding
// shorter inputs, chunk-averaging longer ones down to FrameSize buckets.
func padOrAverage(samples []float32) []float32 {
	if len(samples) == FrameSize {
		return samples
	}
	if len(samples) < FrameSize {
		out := make([]float32, FrameSize)
		copy(out, samples)
		return out
	}

	out := make([]float32, FrameSize)
	bucket := float64(len(samples)) / float64(FrameSize)
	for i := 0; i < FrameSize; i++ {
		start := int(float64(i) * bucket)
		end := int(float64(i+1) * bucket)
		if end <= start {
			end = start + 1
		}
		if end > len(samples) {
			end = len(samples)
		}
		var sum float32
		count := 0
		for j := start; j < end; j++ {
			sum += samples[j]
			count++
		}
		if count > 0 {
			out[i] = sum / float32(count)
		}
	}
	return out
}
