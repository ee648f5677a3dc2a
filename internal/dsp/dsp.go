// Package dsp implements the preprocessor: an in-place pipeline of
// optional neural denoise, RMS normalize, compressor, and brick-wall
// limiter, applied by the ASR worker before transcription.
package dsp

import "math"

// Config gates each stage; all stages operate in-place on f32 and must
// never produce NaN or Inf.
type Config struct {
	Preprocessing bool // master switch

	NoiseReduction NoiseReductionConfig
	Normalization  NormalizationConfig
	Compression    CompressionConfig
	Limiter        LimiterConfig
}

type NoiseReductionConfig struct {
	Enabled  bool
	Strength float64 // [0, 1]
}

type NormalizationConfig struct {
	Enabled  bool
	TargetDB float64
}

type CompressionConfig struct {
	Enabled      bool
	ThresholdDB  float64
	Ratio        float64
	AttackMs     float64
	ReleaseMs    float64
	MakeupGainDB float64
}

type LimiterConfig struct {
	Enabled   bool
	CeilingDB float64
	ReleaseMs float64
}

// DefaultConfig mirrors the spec's implied defaults for a reasonable
// voice pipeline.
func DefaultConfig() Config {
	return Config{
		Preprocessing: true,
		NoiseReduction: NoiseReductionConfig{
			Enabled: false, Strength: 0.5,
		},
		Normalization: NormalizationConfig{
			Enabled: true, TargetDB: -20,
		},
		Compression: CompressionConfig{
			Enabled: true, ThresholdDB: -18, Ratio: 3, AttackMs: 10, ReleaseMs: 100, MakeupGainDB: 3,
		},
		Limiter: LimiterConfig{
			Enabled: true, CeilingDB: -1, ReleaseMs: 50,
		},
	}
}

// Process runs the fixed pipeline order: denoise (runs even if the
// master preprocessing flag is off), normalize, compress, limit. fs is
// the sample rate in Hz.
func Process(samples []float32, cfg Config, fs int) {
	if cfg.NoiseReduction.Enabled {
		Denoise(samples, cfg.NoiseReduction.Strength, fs)
	}
	if !cfg.Preprocessing {
		return
	}
	if cfg.Normalization.Enabled {
		Normalize(samples, cfg.Normalization.TargetDB)
	}
	if cfg.Compression.Enabled {
		Compress(samples, cfg.Compression, fs)
	}
	if cfg.Limiter.Enabled {
		Limit(samples, cfg.Limiter, fs)
	}
}

// Normalize applies RMS-based gain so the buffer's RMS sits at targetDB.
// Silent buffers are skipped to avoid a division producing Inf/NaN.
func Normalize(samples []float32, targetDB float64) {
	var sumSq float64
	for _, s := range samples {
		sumSq += float64(s) * float64(s)
	}
	if sumSq == 0 || len(samples) == 0 {
		return
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	if rms == 0 {
		return
	}
	rmsDB := 20 * math.Log10(rms)
	gainDB := targetDB - rmsDB
	gain := math.Pow(10, gainDB/20)

	for i, s := range samples {
		samples[i] = float32(float64(s) * gain)
	}
}

// Compress applies an envelope-follower compressor: the envelope tracks
// |x| with asymmetric attack/release time constants, and samples above
// threshold are gain-reduced by (1 - 1/ratio) in dB, followed by a fixed
// makeup gain.
func Compress(samples []float32, cfg CompressionConfig, fs int) {
	alphaAttack := math.Exp(-1.0 / (cfg.AttackMs * float64(fs) / 1000.0))
	alphaRelease := math.Exp(-1.0 / (cfg.ReleaseMs * float64(fs) / 1000.0))
	threshold := math.Pow(10, cfg.ThresholdDB/20)
	makeup := math.Pow(10, cfg.MakeupGainDB/20)

	var env float64
	for i, s := range samples {
		x := math.Abs(float64(s))
		alpha := alphaRelease
		if x > env {
			alpha = alphaAttack
		}
		env = alpha*env + (1-alpha)*x

		gain := 1.0
		if env > threshold && threshold > 0 {
			overDB := 20 * math.Log10(env/threshold)
			reductionDB := overDB * (1 - 1/cfg.Ratio)
			gain = math.Pow(10, -reductionDB/20)
		}
		samples[i] = float32(float64(s) * gain * makeup)
	}
}

// Limit is a brick-wall limiter: instantaneous attack (gain applied the
// instant |x| exceeds the ceiling) with a smoothed release, guaranteeing
// |y| <= ceiling + epsilon.
func Limit(samples []float32, cfg LimiterConfig, fs int) {
	ceiling := math.Pow(10, cfg.CeilingDB/20)
	alphaRelease := math.Exp(-1.0 / (cfg.ReleaseMs * float64(fs) / 1000.0))

	gain := 1.0
	for i, s := range samples {
		x := math.Abs(float64(s))
		target := 1.0
		if x > ceiling && x > 0 {
			target = ceiling / x
		}
		if target < gain {
			gain = target // instantaneous attack
		} else {
			gain = alphaRelease*gain + (1-alphaRelease)*target
		}
		samples[i] = float32(float64(s) * gain)
	}
}

// Denoise is the noise-reduction stage. No neural-denoise model ships
// with this package (see DESIGN.md), so Denoise is a passthrough: it
// leaves samples unchanged and ignores strength and fs. It does not
// resample, does not denoise, does not mix with a dry signal and does
// not fade in the first frame.
func Denoise(samples []float32, strength float64, fs int) {
	_ = strength
	_ = fs
	// passthrough — dry signal unchanged
}
