// Package quality splits a cleaned ECG into fixed windows, scores each one
// and recommends which parts of the recording are fit for analysis.
package quality

import (
	"fmt"
	"math"

	"ecg-quality/internal/beats"
	"ecg-quality/internal/signal"
)

// Window is a half-open slice [StartSample, EndSample) of the cleaned signal.
// Beat indices stay absolute.
type Window struct {
	Index       int
	StartSample int
	EndSample   int
	Start       float64
	End         float64
	Samples     []float64
	Beats       []beats.Beat
}

// Duration is End - Start in seconds.
func (w Window) Duration() float64 {
	return w.End - w.Start
}

// Segment cuts sig into consecutive windows of length seconds. The final
// window is shortened when the signal does not divide evenly, and a signal
// shorter than one window yields a single short window.
func Segment(sig *signal.Cleaned, bs []beats.Beat, length float64) ([]Window, error) {
	if length <= 0 || math.IsNaN(length) {
		return nil, fmt.Errorf("window length must be positive, got %g", length)
	}
	n := sig.Len()
	if n == 0 || sig.Rate <= 0 {
		return []Window{}, nil
	}
	size := int(math.Round(length * sig.Rate))
	if size < 1 {
		size = 1
	}

	count := (n + size - 1) / size
	windows := make([]Window, 0, count)
	next := 0
	for i := 0; i < count; i++ {
		start := i * size
		end := start + size
		if end > n {
			end = n
		}

		first := next
		for first < len(bs) && bs[first].Index < start {
			first++
		}
		last := first
		for last < len(bs) && bs[last].Index < end {
			last++
		}
		next = last

		windows = append(windows, Window{
			Index:       i + 1,
			StartSample: start,
			EndSample:   end,
			Start:       float64(start) / sig.Rate,
			End:         float64(end) / sig.Rate,
			Samples:     sig.Values[start:end],
			Beats:       bs[first:last],
		})
	}
	return windows, nil
}
