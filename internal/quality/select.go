package quality

import (
	"fmt"
	"math"

	"ecg-quality/internal/beats"
	"ecg-quality/internal/signal"
)

// Assessed is a scored and classified window.
type Assessed struct {
	Window  Window
	Indices Indices
	Status  Status
}

// Options collects everything Assess needs.
type Options struct {
	WindowLength float64
	Score        ScoreOptions
	Thresholds   Thresholds
}

// DefaultOptions returns 10 s windows with the default scoring setup.
func DefaultOptions() Options {
	return Options{WindowLength: 10, Score: DefaultScoreOptions(), Thresholds: DefaultThresholds()}
}

// Assess segments, scores and classifies sig in one pass.
func Assess(sig *signal.Cleaned, bs []beats.Beat, opts Options) ([]Assessed, error) {
	windows, err := Segment(sig, bs, opts.WindowLength)
	if err != nil {
		return nil, err
	}
	out := make([]Assessed, len(windows))
	for i, w := range windows {
		ind := Score(w, sig.Rate, opts.Score)
		out[i] = Assessed{Window: w, Indices: ind, Status: Classify(ind, opts.Thresholds)}
	}
	return out, nil
}

// Overall tiers of a recording.
const (
	OverallExcellent  = "EXCELLENT"
	OverallGood       = "GOOD"
	OverallAcceptable = "ACCEPTABLE"
	OverallPoor       = "POOR"
)

// Summary aggregates window verdicts.
type Summary struct {
	Total          int
	Good           int
	Adequate       int
	Rejected       int
	GoodPercentage float64
	Overall        string
	Usable         bool
	Message        string
}

// Summarize counts labels and derives the overall tier and usability.
func Summarize(windows []Assessed, minGoodRatio float64) Summary {
	s := Summary{Total: len(windows)}
	for _, w := range windows {
		switch w.Status.Label {
		case Good:
			s.Good++
		case Adequate:
			s.Adequate++
		default:
			s.Rejected++
		}
	}
	if s.Total > 0 {
		s.GoodPercentage = 100 * float64(s.Good) / float64(s.Total)
	}

	switch {
	case s.GoodPercentage >= 50:
		s.Overall = OverallExcellent
	case s.GoodPercentage >= 25:
		s.Overall = OverallGood
	case s.GoodPercentage >= 10:
		s.Overall = OverallAcceptable
	default:
		s.Overall = OverallPoor
	}

	ratio := s.GoodPercentage / 100
	s.Usable = s.Total > 0 && ratio >= minGoodRatio
	if s.Usable {
		s.Message = fmt.Sprintf("Signal quality acceptable (%.1f%% good windows)", ratio*100)
	} else {
		s.Message = fmt.Sprintf("Insufficient quality windows (%.1f%% < %.1f%%)", ratio*100, minGoodRatio*100)
	}
	return s
}

// Range is a time span in seconds covering the listed 1-based windows.
type Range struct {
	Start   float64
	End     float64
	Windows []int
}

// Recommendation is the best segment plus the merged rejected ranges.
type Recommendation struct {
	Best Range
	Bad  []Range
}

// Recommend picks the longest run of adjacent GOOD windows as the best
// segment. Ties prefer higher mean mSQI, then kSQI closer to the GOOD band,
// then the earlier run. Without any GOOD window the best single window is
// used, preferring non-rejected ones.
func Recommend(windows []Assessed, th Thresholds) Recommendation {
	rec := Recommendation{Bad: []Range{}}
	if len(windows) == 0 {
		return rec
	}

	goodRuns := runs(windows, func(a Assessed) bool { return a.Status.Label == Good })
	if len(goodRuns) > 0 {
		best := goodRuns[0]
		for _, r := range goodRuns[1:] {
			if betterRun(windows, r, best, th) {
				best = r
			}
		}
		rec.Best = toRange(windows, best)
	} else {
		rec.Best = toRange(windows, bestSingle(windows, th))
	}

	for _, r := range runs(windows, func(a Assessed) bool { return a.Status.Label == Rejected }) {
		rec.Bad = append(rec.Bad, toRange(windows, r))
	}
	return rec
}

// span is a half-open run [from, to) of window positions.
type span struct {
	from, to int
}

func runs(windows []Assessed, match func(Assessed) bool) []span {
	var out []span
	for i := 0; i < len(windows); {
		if !match(windows[i]) {
			i++
			continue
		}
		j := i
		for j < len(windows) && match(windows[j]) {
			j++
		}
		out = append(out, span{from: i, to: j})
		i = j
	}
	return out
}

func betterRun(windows []Assessed, cand, best span, th Thresholds) bool {
	const eps = 1e-9
	cd := windows[cand.to-1].Window.End - windows[cand.from].Window.Start
	bd := windows[best.to-1].Window.End - windows[best.from].Window.Start
	if math.Abs(cd-bd) > eps {
		return cd > bd
	}
	cm, ck := runScores(windows, cand, th)
	bm, bk := runScores(windows, best, th)
	if math.Abs(cm-bm) > eps {
		return cm > bm
	}
	if math.Abs(ck-bk) > eps {
		return ck < bk
	}
	return false
}

func runScores(windows []Assessed, s span, th Thresholds) (msqi, kdist float64) {
	for _, w := range windows[s.from:s.to] {
		msqi += w.Indices.MSQI
		kdist += th.KSQIDistance(w.Indices.KSQI)
	}
	n := float64(s.to - s.from)
	return msqi / n, kdist / n
}

func bestSingle(windows []Assessed, th Thresholds) span {
	pick := func(allow func(Assessed) bool) (int, bool) {
		best := -1
		for i, w := range windows {
			if !allow(w) {
				continue
			}
			if best < 0 || betterWindow(w, windows[best], th) {
				best = i
			}
		}
		return best, best >= 0
	}
	if i, ok := pick(func(a Assessed) bool { return a.Status.Label != Rejected }); ok {
		return span{from: i, to: i + 1}
	}
	i, _ := pick(func(Assessed) bool { return true })
	return span{from: i, to: i + 1}
}

func betterWindow(cand, best Assessed, th Thresholds) bool {
	const eps = 1e-9
	cm, bm := orZero(cand.Indices.MSQI), orZero(best.Indices.MSQI)
	if math.Abs(cm-bm) > eps {
		return cm > bm
	}
	ck, bk := th.KSQIDistance(cand.Indices.KSQI), th.KSQIDistance(best.Indices.KSQI)
	if math.Abs(ck-bk) > eps {
		return ck < bk
	}
	return false
}

func orZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func toRange(windows []Assessed, s span) Range {
	r := Range{
		Start:   windows[s.from].Window.Start,
		End:     windows[s.to-1].Window.End,
		Windows: make([]int, 0, s.to-s.from),
	}
	for _, w := range windows[s.from:s.to] {
		r.Windows = append(r.Windows, w.Window.Index)
	}
	return r
}
