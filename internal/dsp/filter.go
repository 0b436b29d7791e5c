package dsp

import (
	"fmt"
	"math"
)

// butterworthQ is the quality factor of a second-order Butterworth section.
const butterworthQ = 1 / math.Sqrt2

// Biquad is a normalised second-order IIR section (a0 == 1).
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

func newBiquad(b0, b1, b2, a0, a1, a2 float64) Biquad {
	return Biquad{B0: b0 / a0, B1: b1 / a0, B2: b2 / a0, A1: a1 / a0, A2: a2 / a0}
}

func rbjTerms(fs, f0, q float64) (cosW, alpha float64, err error) {
	if fs <= 0 {
		return 0, 0, fmt.Errorf("sampling rate must be positive, got %g", fs)
	}
	if f0 <= 0 || f0 >= fs/2 {
		return 0, 0, fmt.Errorf("cutoff %g Hz outside (0, %g) Hz", f0, fs/2)
	}
	w0 := 2 * math.Pi * f0 / fs
	return math.Cos(w0), math.Sin(w0) / (2 * q), nil
}

// LowPass designs a second-order Butterworth low-pass section.
func LowPass(fs, cutoff float64) (Biquad, error) {
	c, alpha, err := rbjTerms(fs, cutoff, butterworthQ)
	if err != nil {
		return Biquad{}, err
	}
	return newBiquad((1-c)/2, 1-c, (1-c)/2, 1+alpha, -2*c, 1-alpha), nil
}

// HighPass designs a second-order Butterworth high-pass section.
func HighPass(fs, cutoff float64) (Biquad, error) {
	c, alpha, err := rbjTerms(fs, cutoff, butterworthQ)
	if err != nil {
		return Biquad{}, err
	}
	return newBiquad((1+c)/2, -(1 + c), (1+c)/2, 1+alpha, -2*c, 1-alpha), nil
}

// Notch designs a band-stop section centred on f0 with quality factor q.
func Notch(fs, f0, q float64) (Biquad, error) {
	if q <= 0 {
		return Biquad{}, fmt.Errorf("notch q must be positive, got %g", q)
	}
	c, alpha, err := rbjTerms(fs, f0, q)
	if err != nil {
		return Biquad{}, err
	}
	return newBiquad(1, -2*c, 1, 1+alpha, -2*c, 1-alpha), nil
}

// steadyState returns the transposed direct form II state that makes the
// section output a constant for a unit step input.
func (b Biquad) steadyState() (float64, float64) {
	den := 1 + b.A1 + b.A2
	gain := 0.0
	if math.Abs(den) > 1e-15 {
		gain = (b.B0 + b.B1 + b.B2) / den
	}
	return gain - b.B0, b.B2 - b.A2*gain
}

// Filter runs the section causally, seeding the state for a signal that has
// been at x[0] forever.
func (b Biquad) Filter(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	zi1, zi2 := b.steadyState()
	z1, z2 := zi1*x[0], zi2*x[0]
	for i, v := range x {
		y := b.B0*v + z1
		z1 = b.B1*v - b.A1*y + z2
		z2 = b.B2*v - b.A2*y
		out[i] = y
	}
	return out
}

// FiltFilt applies the section forward and backward for zero phase
// distortion. The signal is extended by odd reflection of padlen samples on
// both ends to suppress edge transients.
func (b Biquad) FiltFilt(x []float64, padlen int) []float64 {
	n := len(x)
	if n < 2 {
		out := make([]float64, n)
		copy(out, x)
		return out
	}
	if padlen > n-1 {
		padlen = n - 1
	}
	if padlen < 0 {
		padlen = 0
	}

	ext := make([]float64, 0, n+2*padlen)
	for i := padlen; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-padlen; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}

	y := b.Filter(ext)
	reverse(y)
	y = b.Filter(y)
	reverse(y)

	out := make([]float64, n)
	copy(out, y[padlen:padlen+n])
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
