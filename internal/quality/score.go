package quality

import (
	"math"

	"ecg-quality/internal/dsp"
	"ecg-quality/internal/heartrate"
)

// Indices are the per-window quality measures. Undefined values are NaN.
type Indices struct {
	MSQI  float64
	KSQI  float64
	HR    float64
	SDNN  float64
	Beats int
}

// ScoreOptions shapes the beat template used for mSQI.
type ScoreOptions struct {
	// Before and After bound each beat segment around its R peak, seconds.
	Before   float64
	After    float64
	MinBeats int
}

// DefaultScoreOptions returns the template geometry used by the pipeline.
func DefaultScoreOptions() ScoreOptions {
	return ScoreOptions{Before: 0.2, After: 0.4, MinBeats: 2}
}

// Score computes mSQI, kSQI, heart rate and SDNN for one window.
func Score(w Window, rate float64, opts ScoreOptions) Indices {
	if opts.MinBeats < 2 {
		opts.MinBeats = 2
	}
	ind := Indices{
		MSQI:  MSQI(w, rate, opts),
		KSQI:  KSQI(w.Samples),
		HR:    math.NaN(),
		SDNN:  math.NaN(),
		Beats: len(w.Beats),
	}

	if len(w.Beats) < opts.MinBeats {
		return ind
	}
	rr := heartrate.RRIntervals(w.Beats)
	if len(rr) == 0 {
		return ind
	}
	ind.HR = 60 / dsp.Mean(rr)
	ind.SDNN = dsp.PopStd(rr) * 1000
	return ind
}

// KSQI is the Pearson kurtosis of the window amplitudes, NaN when it cannot
// be computed.
func KSQI(samples []float64) float64 {
	k, err := dsp.Kurtosis(samples)
	if err != nil {
		return math.NaN()
	}
	return k
}

// MSQI compares every complete beat segment in the window against their
// sample-wise mean. The score is the mean correlation with negative values
// clamped to zero; fewer than MinBeats segments score 0.
func MSQI(w Window, rate float64, opts ScoreOptions) float64 {
	before := int(math.Round(opts.Before * rate))
	after := int(math.Round(opts.After * rate))
	length := before + after
	if length < 2 {
		return 0
	}

	var segments [][]float64
	for _, b := range w.Beats {
		start := b.Index - before
		end := b.Index + after
		if start < w.StartSample || end > w.EndSample {
			continue
		}
		segments = append(segments, w.Samples[start-w.StartSample:end-w.StartSample])
	}
	if len(segments) < opts.MinBeats {
		return 0
	}

	template := make([]float64, length)
	for _, seg := range segments {
		for i, v := range seg {
			template[i] += v
		}
	}
	for i := range template {
		template[i] /= float64(len(segments))
	}

	total := 0.0
	for _, seg := range segments {
		if r := dsp.Pearson(seg, template); r > 0 {
			total += r
		}
	}
	score := total / float64(len(segments))
	if score > 1 {
		score = 1
	}
	return score
}
