package heartrate

import (
	"math"

	"ecg-quality/internal/beats"
	"ecg-quality/internal/dsp"
)

// Sample is the instantaneous rate between two consecutive beats, stamped at
// the second beat.
type Sample struct {
	Time float64
	BPM  float64
}

// Stats summarises a recording's heart rate. Fields are NaN when no valid
// interval exists.
type Stats struct {
	Mean      float64
	Std       float64
	Min       float64
	Max       float64
	BeatCount int
}

// Result bundles the series and its statistics.
type Result struct {
	Samples []Sample
	Stats   Stats
}

// Estimate converts beat timing to a heart-rate series. Non-positive RR
// intervals are dropped before any statistic is computed.
func Estimate(bs []beats.Beat) Result {
	samples := make([]Sample, 0, len(bs))
	for i := 1; i < len(bs); i++ {
		rr := bs[i].Time - bs[i-1].Time
		if rr <= 0 || !dsp.Defined(rr) {
			continue
		}
		samples = append(samples, Sample{Time: bs[i].Time, BPM: 60 / rr})
	}

	rates := BPMs(samples)
	stats := Stats{
		Mean:      dsp.Mean(rates),
		Std:       dsp.Std(rates),
		Min:       dsp.Min(rates),
		Max:       dsp.Max(rates),
		BeatCount: len(bs),
	}
	// one interval has zero spread
	if len(rates) == 1 {
		stats.Std = 0
	}
	return Result{Samples: samples, Stats: stats}
}

// RRIntervals returns the positive intervals between consecutive beats in
// seconds.
func RRIntervals(bs []beats.Beat) []float64 {
	out := make([]float64, 0, len(bs))
	for i := 1; i < len(bs); i++ {
		rr := bs[i].Time - bs[i-1].Time
		if rr > 0 {
			out = append(out, rr)
		}
	}
	return out
}

// BPMs extracts the rate column.
func BPMs(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.BPM
	}
	return out
}

// Defined reports whether the statistics carry values.
func (s Stats) Defined() bool {
	return !math.IsNaN(s.Mean)
}
