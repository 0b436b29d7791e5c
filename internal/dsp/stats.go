package dsp

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientSignal reports that a statistic cannot be computed from the
// available samples. Callers treat it as "undefined", never as fatal.
var ErrInsufficientSignal = errors.New("insufficient signal")

// varianceFloor guards divisions by a vanishing second moment.
const varianceFloor = 1e-12

// Defined reports whether v is a usable finite number.
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Mean returns the arithmetic mean, NaN for an empty slice.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	return stat.Mean(data, nil)
}

// Std returns the sample standard deviation (n-1), NaN for fewer than two values.
func Std(data []float64) float64 {
	if len(data) <= 1 {
		return math.NaN()
	}
	return stat.StdDev(data, nil)
}

// PopStd returns the population standard deviation (n), NaN for an empty slice.
func PopStd(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	_, std := stat.PopMeanStdDev(data, nil)
	return std
}

// Min returns the smallest value, NaN for an empty slice.
func Min(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	return floats.Min(data)
}

// Max returns the largest value, NaN for an empty slice.
func Max(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	return floats.Max(data)
}

// Percentile interpolates linearly between closest ranks, index p/100*(n-1).
// stat.Quantile's LinInterp places ranks at p*n, which pulls the median of an
// odd-length sample off its middle element.
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Median is Percentile(data, 50).
func Median(data []float64) float64 {
	return Percentile(data, 50)
}

// Kurtosis returns the Pearson (non-excess) kurtosis m4/m2^2, so a normal
// distribution scores 3. stat.ExKurtosis applies a small-sample correction,
// so the central moments are taken directly.
func Kurtosis(data []float64) (float64, error) {
	if len(data) < 4 {
		return math.NaN(), ErrInsufficientSignal
	}
	m2 := stat.PopVariance(data, nil)
	if m2 < varianceFloor {
		return math.NaN(), ErrInsufficientSignal
	}
	return stat.Moment(4, data, nil) / (m2 * m2), nil
}

// Pearson returns the correlation coefficient of the common prefix of a and
// b. Constant inputs correlate as 0.
func Pearson(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}
	a, b = a[:n], b[:n]
	if stat.PopVariance(a, nil) < varianceFloor || stat.PopVariance(b, nil) < varianceFloor {
		return 0
	}
	return stat.Correlation(a, b, nil)
}

// Diff returns successive differences.
func Diff(data []float64) []float64 {
	if len(data) <= 1 {
		return []float64{}
	}
	return floats.SubTo(make([]float64, len(data)-1), data[1:], data[:len(data)-1])
}

// MovingAverage returns the centred moving average over width samples.
// Windows are truncated at the edges.
func MovingAverage(data []float64, width int) []float64 {
	out := make([]float64, len(data))
	if len(data) == 0 {
		return out
	}
	if width < 1 {
		width = 1
	}
	prefix := make([]float64, len(data)+1)
	floats.CumSum(prefix[1:], data)
	half := width / 2
	for i := range data {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i - half + width
		if hi > len(data) {
			hi = len(data)
		}
		out[i] = (prefix[hi] - prefix[lo]) / float64(hi-lo)
	}
	return out
}
