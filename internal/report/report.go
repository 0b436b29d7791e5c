// Package report shapes an analysis into the JSON payload returned to
// callers.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"ecg-quality/internal/beats"
	"ecg-quality/internal/dsp"
	"ecg-quality/internal/heartrate"
	"ecg-quality/internal/quality"
	"ecg-quality/internal/recording"
	"ecg-quality/internal/signal"
)

const (
	valuePlaces   int32 = 3
	percentPlaces int32 = 2
)

// Report is the complete analysis payload. Nil numbers encode as null.
type Report struct {
	Metadata          Metadata          `json:"metadata"`
	Statistics        Statistics        `json:"statistics"`
	QualityAssessment QualityAssessment `json:"quality_assessment"`
	RawSignal         *Series           `json:"raw_signal,omitempty"`
	CleanedSignal     *Series           `json:"cleaned_signal,omitempty"`
	HeartRateSignal   *Series           `json:"heart_rate_signal,omitempty"`
	RPeakTimes        []float64         `json:"r_peak_times,omitempty"`
	RPeakAmplitudes   []float64         `json:"r_peak_amplitudes,omitempty"`
}

type Metadata struct {
	RecordNumber      *string  `json:"record_number"`
	Datetime          *string  `json:"datetime"`
	Notes             *string  `json:"notes"`
	Gain              *string  `json:"gain"`
	DurationSeconds   float64  `json:"duration_seconds"`
	SampleCount       int      `json:"sample_count"`
	ProcessedChannel  string   `json:"processed_channel"`
	ChannelsAvailable []string `json:"channels_available"`
}

type Statistics struct {
	HeartRateMean *float64 `json:"heart_rate_mean"`
	HeartRateStd  *float64 `json:"heart_rate_std"`
	HeartRateMin  *float64 `json:"heart_rate_min"`
	HeartRateMax  *float64 `json:"heart_rate_max"`
	RPeaksCount   int      `json:"r_peaks_count"`
	SamplingRate  float64  `json:"sampling_rate"`
}

type QualityAssessment struct {
	Summary     Summary      `json:"summary"`
	Windows     []WindowInfo `json:"windows"`
	BestSegment Segment      `json:"best_segment"`
	BadSegments []Segment    `json:"bad_segments"`
}

type Summary struct {
	TotalWindows    int     `json:"total_windows"`
	GoodWindows     int     `json:"good_windows"`
	AdequateWindows int     `json:"adequate_windows"`
	RejectedWindows int     `json:"rejected_windows"`
	GoodPercentage  float64 `json:"good_percentage"`
	OverallStatus   string  `json:"overall_status"`
	Usable          bool    `json:"usable"`
	Message         string  `json:"message"`
}

type WindowInfo struct {
	Window    int            `json:"window"`
	StartTime float64        `json:"start_time"`
	EndTime   float64        `json:"end_time"`
	NumPeaks  int            `json:"num_peaks"`
	MSQI      *float64       `json:"msqi"`
	KSQI      *float64       `json:"ksqi"`
	HRBPM     *float64       `json:"hr_bpm"`
	SDNNMs    *float64       `json:"sdnn_ms"`
	Status    quality.Status `json:"status"`
}

type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Windows []int   `json:"windows,omitempty"`
}

// Series is a plottable time series.
type Series struct {
	Time   []float64 `json:"time"`
	Values []float64 `json:"values"`
}

// Input gathers the pipeline products the report is built from.
type Input struct {
	Recording      *recording.Recording
	Signal         *signal.Cleaned
	Beats          []beats.Beat
	HeartRate      heartrate.Result
	Windows        []quality.Assessed
	Summary        quality.Summary
	Recommendation quality.Recommendation
	IncludeSignals bool
}

// Assemble builds the payload. Scalars are rounded half away from zero;
// undefined values become null.
func Assemble(in Input) *Report {
	sig := in.Signal
	rep := &Report{
		Metadata: Metadata{
			RecordNumber:      optional(in.Recording.RecordID),
			Datetime:          optional(in.Recording.Timestamp),
			Notes:             optional(in.Recording.Notes),
			Gain:              optional(in.Recording.Gain),
			DurationSeconds:   roundTo(sig.Duration(), valuePlaces),
			SampleCount:       sig.Len(),
			ProcessedChannel:  sig.Channel,
			ChannelsAvailable: in.Recording.Channels(),
		},
		Statistics: Statistics{
			HeartRateMean: rounded(in.HeartRate.Stats.Mean, valuePlaces),
			HeartRateStd:  rounded(in.HeartRate.Stats.Std, valuePlaces),
			HeartRateMin:  rounded(in.HeartRate.Stats.Min, valuePlaces),
			HeartRateMax:  rounded(in.HeartRate.Stats.Max, valuePlaces),
			RPeaksCount:   len(in.Beats),
			SamplingRate:  sig.Rate,
		},
		QualityAssessment: QualityAssessment{
			Summary: Summary{
				TotalWindows:    in.Summary.Total,
				GoodWindows:     in.Summary.Good,
				AdequateWindows: in.Summary.Adequate,
				RejectedWindows: in.Summary.Rejected,
				GoodPercentage:  roundTo(in.Summary.GoodPercentage, percentPlaces),
				OverallStatus:   in.Summary.Overall,
				Usable:          in.Summary.Usable,
				Message:         in.Summary.Message,
			},
			Windows:     make([]WindowInfo, 0, len(in.Windows)),
			BestSegment: segment(in.Recommendation.Best),
			BadSegments: make([]Segment, 0, len(in.Recommendation.Bad)),
		},
	}

	for _, w := range in.Windows {
		rep.QualityAssessment.Windows = append(rep.QualityAssessment.Windows, WindowInfo{
			Window:    w.Window.Index,
			StartTime: roundTo(w.Window.Start, valuePlaces),
			EndTime:   roundTo(w.Window.End, valuePlaces),
			NumPeaks:  w.Indices.Beats,
			MSQI:      rounded(w.Indices.MSQI, valuePlaces),
			KSQI:      rounded(w.Indices.KSQI, valuePlaces),
			HRBPM:     rounded(w.Indices.HR, valuePlaces),
			SDNNMs:    rounded(w.Indices.SDNN, valuePlaces),
			Status:    w.Status,
		})
	}
	for _, r := range in.Recommendation.Bad {
		bad := segment(r)
		bad.Windows = nil
		rep.QualityAssessment.BadSegments = append(rep.QualityAssessment.BadSegments, bad)
	}

	if in.IncludeSignals {
		rep.RawSignal = &Series{Time: sig.Time, Values: sig.Raw}
		rep.CleanedSignal = &Series{Time: sig.Time, Values: sig.Values}
		hr := &Series{Time: make([]float64, 0, len(in.HeartRate.Samples)), Values: heartrate.BPMs(in.HeartRate.Samples)}
		for _, s := range in.HeartRate.Samples {
			hr.Time = append(hr.Time, s.Time)
		}
		rep.HeartRateSignal = hr
		rep.RPeakTimes = beats.Times(in.Beats)
		rep.RPeakAmplitudes = beats.Amplitudes(in.Beats)
	}
	return rep
}

// Encode writes the report as JSON, indented when pretty is set.
func Encode(w io.Writer, rep *Report, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func segment(r quality.Range) Segment {
	return Segment{
		Start:   roundTo(r.Start, valuePlaces),
		End:     roundTo(r.End, valuePlaces),
		Windows: r.Windows,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func rounded(v float64, places int32) *float64 {
	if !dsp.Defined(v) {
		return nil
	}
	r := roundTo(v, places)
	return &r
}

func roundTo(v float64, places int32) float64 {
	if !dsp.Defined(v) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
