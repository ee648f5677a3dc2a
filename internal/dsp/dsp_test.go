package dsp

import (
	"math"
	"testing"
)

func TestLimitBoundsPeakToCeiling(t *testing.T) {
	samples := make([]float32, 1000)
	for i := range samples {
		samples[i] = 2.0 // well above any sane ceiling
	}
	cfg := LimiterConfig{Enabled: true, CeilingDB: -1, ReleaseMs: 50}
	Limit(samples, cfg, 16000)

	ceiling := math.Pow(10, cfg.CeilingDB/20)
	for i, s := range samples {
		if math.Abs(float64(s)) > ceiling+1e-6 {
			t.Fatalf("sample %d = %f exceeds ceiling %f", i, s, ceiling)
		}
	}
}

func TestProcessOnAllZeroBufferIsStableNoOp(t *testing.T) {
	samples := make([]float32, 512)
	cfg := DefaultConfig()
	Process(samples, cfg, 16000)

	for i, s := range samples {
		if s != 0 {
			t.Fatalf("sample %d = %f, want 0 for all-zero input", i, s)
		}
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			t.Fatalf("sample %d is NaN/Inf", i)
		}
	}
}

func TestNormalizeSkipsSilentBuffer(t *testing.T) {
	samples := make([]float32, 256)
	Normalize(samples, -20)
	for _, s := range samples {
		if s != 0 {
			t.Fatal("silent buffer should remain silent after normalize")
		}
	}
}

func TestNormalizeMovesRMSTowardTarget(t *testing.T) {
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = float32(0.01 * math.Sin(float64(i)*0.1))
	}
	Normalize(samples, -20)

	var sumSq float64
	for _, s := range samples {
		sumSq += float64(s) * float64(s)
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	rmsDB := 20 * math.Log10(rms)
	if math.Abs(rmsDB-(-20)) > 0.5 {
		t.Fatalf("normalized RMS = %.2fdB, want ~-20dB", rmsDB)
	}
}

func TestCompressReducesGainAboveThreshold(t *testing.T) {
	samples := make([]float32, 4800)
	for i := range samples {
		samples[i] = 0.9
	}
	cfg := CompressionConfig{Enabled: true, ThresholdDB: -18, Ratio: 4, AttackMs: 1, ReleaseMs: 100, MakeupGainDB: 0}
	Compress(samples, cfg, 16000)

	// After the envelope settles, output should be well below the
	// uncompressed input level given a loud constant signal.
	tail := samples[len(samples)-100:]
	var max float32
	for _, s := range tail {
		if v := float32(math.Abs(float64(s))); v > max {
			max = v
		}
	}
	if max >= 0.9 {
		t.Fatalf("compressed tail peak = %f, want reduction below input 0.9", max)
	}
	for _, s := range samples {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			t.Fatal("compressor produced NaN/Inf")
		}
	}
}

func TestDenoisePassthroughLeavesSignalUnchanged(t *testing.T) {
	samples := []float32{0.1, -0.2, 0.3, -0.4}
	want := make([]float32, len(samples))
	copy(want, samples)

	Denoise(samples, 0.5, 16000)

	for i, s := range samples {
		if s != want[i] {
			t.Fatalf("sample %d = %f, want unchanged %f", i, s, want[i])
		}
	}
}
