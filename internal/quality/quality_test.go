package quality

import (
	"math"
	"testing"

	"ecg-quality/internal/beats"
	"ecg-quality/internal/recording"
	"ecg-quality/internal/signal"
	"ecg-quality/internal/synth"
)

func synthetic(t *testing.T, mutate func(*synth.Options)) (*signal.Cleaned, []beats.Beat) {
	t.Helper()
	opts := synth.DefaultOptions()
	opts.Channels = 2
	if mutate != nil {
		mutate(&opts)
	}
	content, err := synth.Bytes(opts)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	rec, err := recording.ParseBytes(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sig, err := signal.Clean(rec, signal.DefaultOptions())
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	return sig, beats.Detect(sig, beats.DefaultOptions())
}

func flatSignal(seconds, rate float64) *signal.Cleaned {
	n := int(seconds * rate)
	sig := &signal.Cleaned{Rate: rate, Values: make([]float64, n), Time: make([]float64, n)}
	for i := range sig.Time {
		sig.Time[i] = float64(i) / rate
	}
	return sig
}

func TestSegmentWindowCounts(t *testing.T) {
	cases := []struct {
		seconds  float64
		count    int
		lastFrom float64
		lastTo   float64
	}{
		{seconds: 30, count: 3, lastFrom: 20, lastTo: 30},
		{seconds: 25, count: 3, lastFrom: 20, lastTo: 25},
		{seconds: 4, count: 1, lastFrom: 0, lastTo: 4},
		{seconds: 10.5, count: 2, lastFrom: 10, lastTo: 10.5},
	}
	for _, tc := range cases {
		sig := flatSignal(tc.seconds, 500)
		windows, err := Segment(sig, nil, 10)
		if err != nil {
			t.Fatalf("segment: %v", err)
		}
		if len(windows) != tc.count {
			t.Fatalf("%gs: %d windows, want %d", tc.seconds, len(windows), tc.count)
		}
		if want := int(math.Ceil(sig.Duration() / 10)); len(windows) != want {
			t.Fatalf("%gs: count differs from ceil(duration/length)", tc.seconds)
		}
		last := windows[len(windows)-1]
		if math.Abs(last.Start-tc.lastFrom) > 1e-9 || last.End != sig.Duration() || math.Abs(last.End-tc.lastTo) > 1e-9 {
			t.Fatalf("%gs: last window [%g, %g)", tc.seconds, last.Start, last.End)
		}
		for i, w := range windows {
			if w.Index != i+1 {
				t.Fatalf("window index %d at position %d", w.Index, i)
			}
			if i > 0 && w.StartSample != windows[i-1].EndSample {
				t.Fatalf("windows %d and %d are not contiguous", i, i+1)
			}
		}
	}
}

func TestSegmentAssignsBeats(t *testing.T) {
	sig := flatSignal(30, 500)
	bs := []beats.Beat{{Index: 100}, {Index: 4999}, {Index: 5000}, {Index: 9999}}
	windows, err := Segment(sig, bs, 10)
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	if len(windows[0].Beats) != 2 || len(windows[1].Beats) != 2 || len(windows[2].Beats) != 0 {
		t.Fatalf("beat split %d/%d/%d", len(windows[0].Beats), len(windows[1].Beats), len(windows[2].Beats))
	}
	if _, err := Segment(sig, nil, 0); err == nil {
		t.Fatal("zero window length should fail")
	}
}

func TestScoreCleanWindow(t *testing.T) {
	sig, bs := synthetic(t, nil)
	windows, err := Segment(sig, bs, 10)
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	ind := Score(windows[1], sig.Rate, DefaultScoreOptions())
	if ind.MSQI < 0.9 || ind.MSQI > 1 {
		t.Fatalf("mSQI = %v, want near 1", ind.MSQI)
	}
	if ind.KSQI < 5 || ind.KSQI > 50 {
		t.Fatalf("kSQI = %v, want inside the GOOD band", ind.KSQI)
	}
	if math.Abs(ind.HR-72) > 1 {
		t.Fatalf("HR = %v, want 72", ind.HR)
	}
	if ind.SDNN < 0 || ind.SDNN > 5 {
		t.Fatalf("SDNN = %v ms, want near 0", ind.SDNN)
	}
	if got := Classify(ind, DefaultThresholds()); got.Label != Good {
		t.Fatalf("clean window classified %s", got)
	}
}

func TestScoreFlatWindowIsRejected(t *testing.T) {
	sig := flatSignal(10, 500)
	windows, _ := Segment(sig, beats.Detect(sig, beats.DefaultOptions()), 10)
	ind := Score(windows[0], sig.Rate, DefaultScoreOptions())
	if ind.MSQI != 0 {
		t.Fatalf("flat mSQI = %v, want 0", ind.MSQI)
	}
	if !math.IsNaN(ind.KSQI) || !math.IsNaN(ind.HR) || !math.IsNaN(ind.SDNN) {
		t.Fatalf("flat indices should be undefined: %+v", ind)
	}
	if st := Classify(ind, DefaultThresholds()); st.Label != Rejected {
		t.Fatalf("flat window classified %s", st)
	}
}

func TestZeroBeatWindowDoesNotStopScoring(t *testing.T) {
	sig, bs := synthetic(t, func(o *synth.Options) {
		o.Artifacts = []synth.Interval{{Start: 10, End: 20}}
		o.Flat = true
	})
	assessed, err := Assess(sig, bs, DefaultOptions())
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if len(assessed) != 3 {
		t.Fatalf("windows = %d", len(assessed))
	}
	mid := assessed[1]
	if mid.Status.Label != Rejected {
		t.Fatalf("flat middle window classified %s", mid.Status)
	}
	if mid.Indices.Beats == 0 && (!math.IsNaN(mid.Indices.HR) || !math.IsNaN(mid.Indices.SDNN)) {
		t.Fatalf("zero-beat window should have undefined HR/SDNN: %+v", mid.Indices)
	}
	if assessed[0].Status.Label == Rejected || assessed[2].Status.Label == Rejected {
		t.Fatalf("clean windows rejected: %s %s", assessed[0].Status, assessed[2].Status)
	}
}

func TestClassifyOrder(t *testing.T) {
	th := DefaultThresholds()
	nan := math.NaN()
	cases := []struct {
		name string
		ind  Indices
		want string
	}{
		{"too few beats", Indices{Beats: 1, MSQI: 0.9, KSQI: 10, HR: 70}, "REJECTED (Insufficient Beats)"},
		{"undefined kurtosis", Indices{Beats: 10, MSQI: 0.9, KSQI: nan, HR: 70}, "REJECTED (External Artifact)"},
		{"gaussian noise", Indices{Beats: 10, MSQI: 0.9, KSQI: 2.9, HR: 70}, "REJECTED (External Artifact)"},
		{"isolated spike", Indices{Beats: 10, MSQI: 0.9, KSQI: 80, HR: 70}, "REJECTED (External Artifact)"},
		{"tachy artifact", Indices{Beats: 40, MSQI: 0.9, KSQI: 10, HR: 240}, "REJECTED (Implausible Heart Rate)"},
		{"brady artifact", Indices{Beats: 3, MSQI: 0.9, KSQI: 10, HR: 20}, "REJECTED (Implausible Heart Rate)"},
		{"poor morphology", Indices{Beats: 10, MSQI: 0.4, KSQI: 10, HR: 70}, "REJECTED (Poor Morphology)"},
		{"good", Indices{Beats: 10, MSQI: 0.95, KSQI: 10, HR: 70}, "GOOD"},
		{"mSQI at good cut-off", Indices{Beats: 10, MSQI: 0.7, KSQI: 10, HR: 70}, "ADEQUATE"},
		{"low kurtosis", Indices{Beats: 10, MSQI: 0.95, KSQI: 4, HR: 70}, "ADEQUATE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.ind, th).String(); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestStatusMarshalText(t *testing.T) {
	b, err := Reject(ReasonArtifact).MarshalText()
	if err != nil || string(b) != "REJECTED (External Artifact)" {
		t.Fatalf("marshal = %q, %v", b, err)
	}
}

func assessedWith(labels ...Label) []Assessed {
	out := make([]Assessed, len(labels))
	for i, l := range labels {
		st := Status{Label: l}
		if l == Rejected {
			st.Reason = ReasonArtifact
		}
		out[i] = Assessed{
			Window:  Window{Index: i + 1, Start: float64(i * 10), End: float64(i*10 + 10)},
			Indices: Indices{MSQI: 0.8, KSQI: 10, Beats: 12, HR: 72, SDNN: 10},
			Status:  st,
		}
	}
	return out
}

func TestSummarize(t *testing.T) {
	s := Summarize(assessedWith(Good, Adequate, Rejected, Good), 0.2)
	if s.Good+s.Adequate+s.Rejected != s.Total || s.Total != 4 {
		t.Fatalf("counts do not add up: %+v", s)
	}
	if s.GoodPercentage != 50 || s.Overall != OverallExcellent || !s.Usable {
		t.Fatalf("summary = %+v", s)
	}

	tiers := map[string][]Label{
		OverallGood:       {Good, Adequate, Adequate, Rejected},
		OverallAcceptable: {Good, Rejected, Rejected, Rejected, Rejected, Rejected, Rejected, Rejected, Rejected},
		OverallPoor:       {Rejected, Adequate},
	}
	for want, labels := range tiers {
		if got := Summarize(assessedWith(labels...), 0.2).Overall; got != want {
			t.Fatalf("labels %v: overall %s, want %s", labels, got, want)
		}
	}

	poor := Summarize(assessedWith(Rejected, Rejected, Adequate), 0.2)
	if poor.Usable || poor.Message == "" {
		t.Fatalf("poor recording should not be usable: %+v", poor)
	}
	if empty := Summarize(nil, 0.2); empty.Usable || empty.GoodPercentage != 0 {
		t.Fatalf("empty summary = %+v", empty)
	}
}

func TestRecommendLongestGoodRun(t *testing.T) {
	windows := assessedWith(Good, Rejected, Good, Good, Adequate, Good)
	// the lone first window scores higher, the run still wins
	windows[0].Indices.MSQI = 0.99
	rec := Recommend(windows, DefaultThresholds())
	if rec.Best.Start != 20 || rec.Best.End != 40 {
		t.Fatalf("best = %+v, want [20, 40)", rec.Best)
	}
	if len(rec.Best.Windows) != 2 || rec.Best.Windows[0] != 3 || rec.Best.Windows[1] != 4 {
		t.Fatalf("best windows = %v", rec.Best.Windows)
	}
}

func TestRecommendTieBreaks(t *testing.T) {
	windows := assessedWith(Good, Rejected, Good)
	windows[2].Indices.MSQI = 0.9
	if rec := Recommend(windows, DefaultThresholds()); rec.Best.Start != 20 {
		t.Fatalf("higher mSQI should win, got %+v", rec.Best)
	}

	windows = assessedWith(Good, Rejected, Good)
	windows[0].Indices.KSQI = 60
	if rec := Recommend(windows, DefaultThresholds()); rec.Best.Start != 20 {
		t.Fatalf("kSQI inside the band should win, got %+v", rec.Best)
	}

	windows = assessedWith(Good, Rejected, Good)
	if rec := Recommend(windows, DefaultThresholds()); rec.Best.Start != 0 {
		t.Fatalf("earliest run should win a full tie, got %+v", rec.Best)
	}
}

func TestRecommendFallbacks(t *testing.T) {
	windows := assessedWith(Rejected, Adequate, Adequate)
	windows[2].Indices.MSQI = 0.85
	windows[0].Indices.MSQI = 0.99
	rec := Recommend(windows, DefaultThresholds())
	if rec.Best.Start != 20 || rec.Best.End != 30 {
		t.Fatalf("best adequate window expected, got %+v", rec.Best)
	}

	windows = assessedWith(Rejected, Rejected)
	windows[1].Indices.MSQI = 0.3
	windows[0].Indices.MSQI = 0.1
	rec = Recommend(windows, DefaultThresholds())
	if rec.Best.Start != 10 {
		t.Fatalf("best rejected window expected, got %+v", rec.Best)
	}
	if len(rec.Bad) != 1 || rec.Bad[0].Start != 0 || rec.Bad[0].End != 20 {
		t.Fatalf("bad = %+v", rec.Bad)
	}

	if empty := Recommend(nil, DefaultThresholds()); len(empty.Bad) != 0 || empty.Best.End != 0 {
		t.Fatalf("empty recommendation = %+v", empty)
	}
}

func TestRecommendMergesBadRuns(t *testing.T) {
	windows := assessedWith(Rejected, Rejected, Good, Rejected, Adequate, Rejected, Rejected, Rejected)
	rec := Recommend(windows, DefaultThresholds())
	want := [][2]float64{{0, 20}, {30, 40}, {50, 80}}
	if len(rec.Bad) != len(want) {
		t.Fatalf("bad = %+v", rec.Bad)
	}
	for i, r := range rec.Bad {
		if r.Start != want[i][0] || r.End != want[i][1] {
			t.Fatalf("bad[%d] = [%g, %g), want %v", i, r.Start, r.End, want[i])
		}
		if i > 0 && r.Start <= rec.Bad[i-1].End {
			t.Fatalf("bad ranges %d and %d touch", i-1, i)
		}
	}
}

func TestRecommendStaysInsideRecording(t *testing.T) {
	sig, bs := synthetic(t, func(o *synth.Options) {
		o.Duration = 25
		o.Artifacts = []synth.Interval{{Start: 0, End: 10}}
	})
	assessed, err := Assess(sig, bs, DefaultOptions())
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	rec := Recommend(assessed, DefaultThresholds())
	if rec.Best.Start < 0 || rec.Best.End > sig.Duration() || rec.Best.End <= rec.Best.Start {
		t.Fatalf("best segment [%g, %g) outside [0, %g]", rec.Best.Start, rec.Best.End, sig.Duration())
	}
	if assessed[0].Status.Label != Rejected {
		t.Fatalf("artifact window classified %s", assessed[0].Status)
	}
	if len(rec.Bad) == 0 || rec.Bad[0].Start != 0 {
		t.Fatalf("bad = %+v", rec.Bad)
	}
}
