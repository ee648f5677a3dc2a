package capture

import "math"

// Resampler converts extracted audio from the device's native rate to the
// canonical 16kHz used everywhere downstream. Resampling happens only at
// extraction time, never inside the capture callback.
type Resampler struct {
	fromRate   float64
	toRate     float64
	ratio      float64
	lastSample float32
	quality    string
}

// NewResampler builds a resampler for the "low" (linear) or "high"
// (polyphase) quality setting from configuration.
func NewResampler(fromRate, toRate int, quality string) *Resampler {
	return &Resampler{
		fromRate: float64(fromRate),
		toRate:   float64(toRate),
		ratio:    float64(toRate) / float64(fromRate),
		quality:  quality,
	}
}

// Resample converts samples in place semantics (returns a new slice,
// preserving continuity across calls via the carried last sample).
func (r *Resampler) Resample(input []float32) []float32 {
	if r.ratio == 1.0 || len(input) == 0 {
		return input
	}
	if r.quality == "high" {
		return r.resamplePolyphase(input)
	}
	return r.resampleLinear(input)
}

// resampleLinear is the "low" quality path: a lightweight linear
// interpolation suitable for voice, with cross-chunk continuity via
// lastSample.
func (r *Resampler) resampleLinear(input []float32) []float32 {
	inputLen := len(input)
	outputLen := int(float64(inputLen) * r.ratio)
	output := make([]float32, outputLen)

	for i := 0; i < outputLen; i++ {
		srcPos := float64(i) / r.ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		sample1 := r.lastSample
		if srcIdx < inputLen {
			sample1 = input[srcIdx]
		}

		sample2 := sample1
		if srcIdx+1 < inputLen {
			sample2 = input[srcIdx+1]
		} else if srcIdx < inputLen {
			sample2 = input[inputLen-1]
		}

		output[i] = sample1 + (sample2-sample1)*frac
	}

	r.lastSample = input[inputLen-1]
	return output
}

// resamplePolyphase is the "high" quality path: a windowed-sinc style
// resampler approximated here with a small symmetric FIR kernel, trading
// a fixed amount of extra compute for less aliasing than linear
// interpolation — appropriate since extraction happens a handful of
// times per recording, not per audio callback.
func (r *Resampler) resamplePolyphase(input []float32) []float32 {
	const halfTaps = 4
	inputLen := len(input)
	outputLen := int(float64(inputLen) * r.ratio)
	output := make([]float32, outputLen)

	for i := 0; i < outputLen; i++ {
		srcPos := float64(i) / r.ratio
		center := int(srcPos)

		var acc, weightSum float64
		for t := -halfTaps; t <= halfTaps; t++ {
			idx := center + t
			if idx < 0 || idx >= inputLen {
				continue
			}
			x := srcPos - float64(idx)
			w := sincWindow(x)
			acc += float64(input[idx]) * w
			weightSum += w
		}
		if weightSum != 0 {
			output[i] = float32(acc / weightSum)
		}
	}

	r.lastSample = input[inputLen-1]
	return output
}

func sincWindow(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return (math.Sin(px) / px) * (0.5 + 0.5*math.Cos(math.Pi*x/4))
}
