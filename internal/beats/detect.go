// Package beats locates R peaks in a cleaned ECG channel.
package beats

import (
	"math"

	"ecg-quality/internal/dsp"
	"ecg-quality/internal/signal"
)

// Beat is one detected R peak.
type Beat struct {
	Index     int
	Time      float64
	Amplitude float64
}

// Options tunes the detector. Durations are in seconds.
type Options struct {
	Refractory        float64
	IntegrationWindow float64
	ThresholdWindow   float64
	ThresholdFactor   float64
	// FloorFraction bounds the threshold from below relative to the typical
	// QRS energy of the recording.
	FloorFraction   float64
	FloorBlock      float64
	MinRegionFactor float64
}

// DefaultOptions returns the detector settings used by the pipeline.
func DefaultOptions() Options {
	return Options{
		Refractory:        0.3,
		IntegrationWindow: 0.15,
		ThresholdWindow:   0.75,
		ThresholdFactor:   1.5,
		FloorFraction:     0.1,
		FloorBlock:        2.0,
		MinRegionFactor:   0.4,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Refractory <= 0 {
		o.Refractory = d.Refractory
	}
	if o.IntegrationWindow <= 0 {
		o.IntegrationWindow = d.IntegrationWindow
	}
	if o.ThresholdWindow <= 0 {
		o.ThresholdWindow = d.ThresholdWindow
	}
	if o.ThresholdFactor <= 0 {
		o.ThresholdFactor = d.ThresholdFactor
	}
	if o.FloorFraction < 0 {
		o.FloorFraction = d.FloorFraction
	}
	if o.FloorBlock <= 0 {
		o.FloorBlock = d.FloorBlock
	}
	if o.MinRegionFactor < 0 {
		o.MinRegionFactor = d.MinRegionFactor
	}
	return o
}

// Detect runs a Pan-Tompkins style detector over sig and returns beats in
// time order. An empty result is valid.
func Detect(sig *signal.Cleaned, opts Options) []Beat {
	opts = opts.withDefaults()
	x := sig.Values
	fs := sig.Rate
	if len(x) < 5 || fs <= 0 {
		return []Beat{}
	}

	env := Envelope(x, fs, opts.IntegrationWindow)
	threshold := adaptiveThreshold(env, fs, opts)
	regions := filterRegions(aboveThreshold(env, threshold), opts.MinRegionFactor)

	candidates := make([]Beat, 0, len(regions))
	for _, r := range regions {
		idx := r.start
		for i := r.start + 1; i < r.end; i++ {
			if math.Abs(x[i]) > math.Abs(x[idx]) {
				idx = i
			}
		}
		candidates = append(candidates, Beat{Index: idx, Time: float64(idx) / fs, Amplitude: x[idx]})
	}

	return suppressRefractory(candidates, int(math.Round(opts.Refractory*fs)))
}

// Envelope is the moving-window integral of the squared five-point derivative.
func Envelope(x []float64, fs, window float64) []float64 {
	n := len(x)
	at := func(i int) float64 {
		if i < 0 {
			return x[0]
		}
		if i >= n {
			return x[n-1]
		}
		return x[i]
	}
	sq := make([]float64, n)
	for i := 0; i < n; i++ {
		d := (2*at(i+1) + at(i+2) - at(i-2) - 2*at(i-1)) * fs / 8
		sq[i] = d * d
	}
	width := int(math.Round(window * fs))
	return dsp.MovingAverage(sq, width)
}

func adaptiveThreshold(env []float64, fs float64, opts Options) []float64 {
	local := dsp.MovingAverage(env, int(math.Round(opts.ThresholdWindow*fs)))
	floor := opts.FloorFraction * typicalPeak(env, int(math.Round(opts.FloorBlock*fs)))
	for i := range local {
		local[i] *= opts.ThresholdFactor
		if local[i] < floor {
			local[i] = floor
		}
	}
	return local
}

// typicalPeak is the median of per-block envelope maxima, so a minority of
// artifact blocks cannot dominate it.
func typicalPeak(env []float64, block int) float64 {
	if block < 1 {
		block = 1
	}
	var maxima []float64
	for start := 0; start < len(env); start += block {
		end := start + block
		if end > len(env) {
			end = len(env)
		}
		maxima = append(maxima, dsp.Max(env[start:end]))
	}
	if len(maxima) == 0 {
		return 0
	}
	return dsp.Median(maxima)
}

type region struct {
	start, end int
}

func aboveThreshold(env, threshold []float64) []region {
	var regions []region
	inside := false
	start := 0
	for i, v := range env {
		above := v > threshold[i]
		switch {
		case above && !inside:
			inside = true
			start = i
		case !above && inside:
			inside = false
			regions = append(regions, region{start: start, end: i})
		}
	}
	if inside {
		regions = append(regions, region{start: start, end: len(env)})
	}
	return regions
}

func filterRegions(regions []region, factor float64) []region {
	if len(regions) == 0 || factor <= 0 {
		return regions
	}
	lengths := make([]float64, len(regions))
	for i, r := range regions {
		lengths[i] = float64(r.end - r.start)
	}
	minLen := factor * dsp.Median(lengths)
	kept := regions[:0]
	for _, r := range regions {
		if float64(r.end-r.start) >= minLen {
			kept = append(kept, r)
		}
	}
	return kept
}

// suppressRefractory keeps the larger of two peaks closer than gap samples.
func suppressRefractory(candidates []Beat, gap int) []Beat {
	out := make([]Beat, 0, len(candidates))
	for _, c := range candidates {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if c.Index-last.Index < gap {
				if math.Abs(c.Amplitude) > math.Abs(last.Amplitude) {
					*last = c
				}
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// Times returns beat times in seconds.
func Times(beats []Beat) []float64 {
	out := make([]float64, len(beats))
	for i, b := range beats {
		out[i] = b.Time
	}
	return out
}

// Amplitudes returns beat amplitudes.
func Amplitudes(beats []Beat) []float64 {
	out := make([]float64, len(beats))
	for i, b := range beats {
		out[i] = b.Amplitude
	}
	return out
}
