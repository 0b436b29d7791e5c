package signal

import (
	"fmt"
	"math"

	"ecg-quality/internal/dsp"
	"ecg-quality/internal/recording"
)

// Options controls channel extraction and filtering.
type Options struct {
	Channel      string
	SamplingRate float64
	// Duration selects a prefix in seconds; nil selects the whole recording.
	Duration    *float64
	MaxDuration float64
	UnitScale   float64

	HighPassHz  float64
	LowPassHz   float64
	PowerlineHz float64
	NotchQ      float64
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Channel:      "CH2",
		SamplingRate: 500,
		MaxDuration:  300,
		UnitScale:    1000,
		HighPassHz:   0.5,
		LowPassHz:    40,
		PowerlineHz:  50,
		NotchQ:       30,
	}
}

// Cleaned is one filtered channel. Time[i] == i/Rate.
type Cleaned struct {
	Channel string
	Rate    float64
	Time    []float64
	Values  []float64
	Raw     []float64
}

// Len is the sample count.
func (c *Cleaned) Len() int {
	return len(c.Values)
}

// Duration is the covered time span in seconds.
func (c *Cleaned) Duration() float64 {
	if c.Rate <= 0 {
		return 0
	}
	return float64(len(c.Values)) / c.Rate
}

// Clean extracts opts.Channel from rec, trims it to the selected duration and
// applies zero-phase baseline, powerline and low-pass filtering followed by
// zero-centering. Output depends only on rec and opts.
func Clean(rec *recording.Recording, opts Options) (*Cleaned, error) {
	raw, ok := rec.Channel(opts.Channel)
	if !ok {
		return nil, &ChannelNotFoundError{Requested: opts.Channel, Available: rec.Channels()}
	}

	n, err := selectSamples(len(raw), opts)
	if err != nil {
		return nil, err
	}

	scale := opts.UnitScale
	if scale == 0 {
		scale = 1
	}
	scaled := make([]float64, n)
	for i := 0; i < n; i++ {
		scaled[i] = raw[i] * scale
	}

	values, err := filterChain(scaled, opts)
	if err != nil {
		return nil, fmt.Errorf("filter channel %s: %w", opts.Channel, err)
	}

	mean := dsp.Mean(values)
	for i := range values {
		values[i] -= mean
	}

	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i) / opts.SamplingRate
	}

	return &Cleaned{
		Channel: opts.Channel,
		Rate:    opts.SamplingRate,
		Time:    times,
		Values:  values,
		Raw:     scaled,
	}, nil
}

// durationTolerance absorbs float error when a duration equals the recording
// length exactly.
const durationTolerance = 1e-9

func selectSamples(available int, opts Options) (int, error) {
	if opts.SamplingRate <= 0 || math.IsNaN(opts.SamplingRate) || math.IsInf(opts.SamplingRate, 0) {
		return 0, &InvalidDurationError{Reason: fmt.Sprintf("sampling rate must be positive, got %g", opts.SamplingRate)}
	}
	total := float64(available) / opts.SamplingRate
	if opts.Duration == nil {
		return available, nil
	}

	d := *opts.Duration
	invalid := func(reason string) error {
		return &InvalidDurationError{Requested: d, Available: total, Max: opts.MaxDuration, Reason: reason}
	}
	switch {
	case d <= 0 || math.IsNaN(d) || math.IsInf(d, 0):
		return 0, invalid("duration must be a positive finite number")
	case opts.MaxDuration > 0 && d > opts.MaxDuration:
		return 0, invalid(fmt.Sprintf("exceeds maximum of %gs", opts.MaxDuration))
	}

	if d > total+durationTolerance {
		return 0, invalid(fmt.Sprintf("exceeds recording length of %.3fs", total))
	}
	n := int(math.Round(d * opts.SamplingRate))
	if n > available {
		n = available
	}
	if n == 0 {
		return 0, invalid("selects no samples")
	}
	return n, nil
}

func filterChain(x []float64, opts Options) ([]float64, error) {
	fs := opts.SamplingRate
	nyquist := fs / 2
	padlen := int(math.Round(fs))

	out := make([]float64, len(x))
	copy(out, x)

	if opts.HighPassHz > 0 && opts.HighPassHz < nyquist {
		hp, err := dsp.HighPass(fs, opts.HighPassHz)
		if err != nil {
			return nil, err
		}
		out = hp.FiltFilt(out, padlen)
	}
	if opts.PowerlineHz > 0 && opts.PowerlineHz < nyquist {
		q := opts.NotchQ
		if q <= 0 {
			q = 30
		}
		notch, err := dsp.Notch(fs, opts.PowerlineHz, q)
		if err != nil {
			return nil, err
		}
		out = notch.FiltFilt(out, padlen)
	}
	if opts.LowPassHz > 0 && opts.LowPassHz < nyquist {
		lp, err := dsp.LowPass(fs, opts.LowPassHz)
		if err != nil {
			return nil, err
		}
		out = lp.FiltFilt(out, padlen)
	}
	return out, nil
}
