package dsp

import (
	"errors"
	"math"
	"testing"
)

func TestMeanStd(t *testing.T) {
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := Mean(data); got != 5 {
		t.Fatalf("mean = %v, want 5", got)
	}
	if got := PopStd(data); math.Abs(got-2) > 1e-12 {
		t.Fatalf("population std = %v, want 2", got)
	}
	if got := Std(data); math.Abs(got-2.138089935) > 1e-6 {
		t.Fatalf("sample std = %v", got)
	}
	if !math.IsNaN(Std([]float64{1})) {
		t.Fatal("std of one value should be NaN")
	}
	if !math.IsNaN(Mean(nil)) {
		t.Fatal("mean of nothing should be NaN")
	}
}

func TestKurtosis(t *testing.T) {
	// two-point symmetric distribution has kurtosis exactly 1
	k, err := Kurtosis([]float64{-1, 1, -1, 1, -1, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(k-1) > 1e-12 {
		t.Fatalf("kurtosis = %v, want 1", k)
	}

	spiky := make([]float64, 100)
	spiky[50] = 10
	k, err = Kurtosis(spiky)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k < 50 {
		t.Fatalf("single spike kurtosis should be large, got %v", k)
	}

	if _, err := Kurtosis([]float64{3, 3, 3, 3, 3}); !errors.Is(err, ErrInsufficientSignal) {
		t.Fatalf("flat input should be insufficient, got %v", err)
	}
	if _, err := Kurtosis([]float64{1, 2, 3}); !errors.Is(err, ErrInsufficientSignal) {
		t.Fatalf("short input should be insufficient, got %v", err)
	}
}

func TestKurtosisIsUncorrected(t *testing.T) {
	// m2 = 2.56, m4 = 21.2992
	k, err := Kurtosis([]float64{0, 0, 0, 0, 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(k-3.25) > 1e-9 {
		t.Fatalf("kurtosis = %v, want 3.25", k)
	}
}

func TestPearson(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 6, 8, 10}
	if got := Pearson(a, b); math.Abs(got-1) > 1e-12 {
		t.Fatalf("pearson = %v, want 1", got)
	}
	c := []float64{5, 4, 3, 2, 1}
	if got := Pearson(a, c); math.Abs(got+1) > 1e-12 {
		t.Fatalf("pearson = %v, want -1", got)
	}
	if got := Pearson(a, []float64{1, 1, 1, 1, 1}); got != 0 {
		t.Fatalf("constant input should correlate as 0, got %v", got)
	}
}

func TestPercentileAndMedian(t *testing.T) {
	data := []float64{5, 1, 3, 2, 4}
	if got := Median(data); got != 3 {
		t.Fatalf("median = %v, want 3", got)
	}
	if got := Percentile(data, 25); got != 2 {
		t.Fatalf("p25 = %v, want 2", got)
	}
	if got := Percentile([]float64{1, 2}, 50); got != 1.5 {
		t.Fatalf("p50 = %v, want 1.5", got)
	}
	if data[0] != 5 {
		t.Fatal("percentile must not reorder its input")
	}
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{0, 0, 3, 0, 0}, 3)
	want := []float64{0, 1, 1, 1, 0}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("moving average[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMinMaxDiff(t *testing.T) {
	data := []float64{3, -1, 7}
	if Min(data) != -1 || Max(data) != 7 {
		t.Fatalf("min/max wrong: %v %v", Min(data), Max(data))
	}
	d := Diff(data)
	if len(d) != 2 || d[0] != -4 || d[1] != 8 {
		t.Fatalf("diff = %v", d)
	}
	if len(Diff([]float64{1})) != 0 {
		t.Fatal("diff of single value should be empty")
	}
}
