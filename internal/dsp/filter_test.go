package dsp

import (
	"math"
	"testing"
)

func sine(fs, freq, seconds, amp float64) []float64 {
	n := int(fs * seconds)
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/fs)
	}
	return out
}

func rms(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func TestFilterDesignRejectsBadCutoff(t *testing.T) {
	if _, err := LowPass(500, 250); err == nil {
		t.Fatal("cutoff at Nyquist should fail")
	}
	if _, err := HighPass(0, 1); err == nil {
		t.Fatal("zero rate should fail")
	}
	if _, err := Notch(500, 50, 0); err == nil {
		t.Fatal("zero q should fail")
	}
}

func TestLowPassAttenuatesHighFrequency(t *testing.T) {
	fs := 500.0
	lp, err := LowPass(fs, 40)
	if err != nil {
		t.Fatalf("design low-pass: %v", err)
	}
	pass := lp.FiltFilt(sine(fs, 5, 4, 1), 500)
	stop := lp.FiltFilt(sine(fs, 200, 4, 1), 500)

	inner := func(x []float64) []float64 { return x[500 : len(x)-500] }
	if r := rms(inner(pass)); math.Abs(r-1/math.Sqrt2) > 0.02 {
		t.Fatalf("5 Hz should pass, rms %v", r)
	}
	if r := rms(inner(stop)); r > 0.01 {
		t.Fatalf("200 Hz should be attenuated, rms %v", r)
	}
}

func TestHighPassRemovesOffset(t *testing.T) {
	fs := 500.0
	hp, err := HighPass(fs, 0.5)
	if err != nil {
		t.Fatalf("design high-pass: %v", err)
	}
	x := make([]float64, 5000)
	for i := range x {
		x[i] = 3
	}
	y := hp.FiltFilt(x, 500)
	for i, v := range y {
		if math.Abs(v) > 1e-6 {
			t.Fatalf("offset should be removed, y[%d] = %v", i, v)
		}
	}
}

func TestNotchRemovesPowerline(t *testing.T) {
	fs := 500.0
	notch, err := Notch(fs, 50, 30)
	if err != nil {
		t.Fatalf("design notch: %v", err)
	}
	y := notch.FiltFilt(sine(fs, 50, 6, 1), 500)
	if r := rms(y[1000 : len(y)-1000]); r > 0.05 {
		t.Fatalf("50 Hz should be notched, rms %v", r)
	}
}

func TestFiltFiltDeterministicAndShort(t *testing.T) {
	lp, _ := LowPass(500, 40)
	x := sine(500, 7, 1, 2)
	a := lp.FiltFilt(x, 100)
	b := lp.FiltFilt(x, 100)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("filtering should be deterministic at %d", i)
		}
	}
	if got := lp.FiltFilt([]float64{4}, 10); len(got) != 1 || got[0] != 4 {
		t.Fatalf("single sample should pass through, got %v", got)
	}
	if got := lp.FiltFilt(x[:3], 500); len(got) != 3 {
		t.Fatalf("padlen should clamp to input, got len %d", len(got))
	}
}
