package quality

import (
	"fmt"
	"math"
)

// Label is the coarse quality verdict of a window.
type Label int

const (
	Good Label = iota + 1
	Adequate
	Rejected
)

func (l Label) String() string {
	switch l {
	case Good:
		return "GOOD"
	case Adequate:
		return "ADEQUATE"
	case Rejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

// Reason explains a rejection.
type Reason string

const (
	ReasonInsufficientBeats Reason = "Insufficient Beats"
	ReasonArtifact          Reason = "External Artifact"
	ReasonHeartRate         Reason = "Implausible Heart Rate"
	ReasonMorphology        Reason = "Poor Morphology"
)

// Status is a label plus, for rejected windows only, the reason.
type Status struct {
	Label  Label
	Reason Reason
}

// Reject builds a REJECTED status.
func Reject(reason Reason) Status {
	return Status{Label: Rejected, Reason: reason}
}

func (s Status) String() string {
	if s.Label == Rejected && s.Reason != "" {
		return fmt.Sprintf("%s (%s)", s.Label, s.Reason)
	}
	return s.Label.String()
}

// MarshalText renders the status as in "REJECTED (External Artifact)".
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Thresholds drive Classify and the segment recommendation.
type Thresholds struct {
	MinBeats     int
	KSQIArtifact float64
	KSQIGood     float64
	KSQIMax      float64
	MinHR        float64
	MaxHR        float64
	MSQIReject   float64
	MSQIGood     float64
}

// DefaultThresholds returns the documented classification cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinBeats:     2,
		KSQIArtifact: 3.0,
		KSQIGood:     5.0,
		KSQIMax:      50.0,
		MinHR:        30,
		MaxHR:        220,
		MSQIReject:   0.5,
		MSQIGood:     0.7,
	}
}

// Classify maps one window's indices to a status. Checks run in a fixed
// order and the first failing one names the rejection reason.
func Classify(ind Indices, th Thresholds) Status {
	switch {
	case ind.Beats < th.MinBeats:
		return Reject(ReasonInsufficientBeats)
	case math.IsNaN(ind.KSQI) || ind.KSQI < th.KSQIArtifact || ind.KSQI > th.KSQIMax:
		return Reject(ReasonArtifact)
	case math.IsNaN(ind.HR) || ind.HR < th.MinHR || ind.HR > th.MaxHR:
		return Reject(ReasonHeartRate)
	case math.IsNaN(ind.MSQI) || ind.MSQI < th.MSQIReject:
		return Reject(ReasonMorphology)
	case ind.MSQI > th.MSQIGood && ind.KSQI >= th.KSQIGood:
		return Status{Label: Good}
	default:
		return Status{Label: Adequate}
	}
}

// KSQIDistance is how far k lies outside [KSQIGood, KSQIMax]; undefined
// kurtosis is infinitely far.
func (th Thresholds) KSQIDistance(k float64) float64 {
	switch {
	case math.IsNaN(k):
		return math.Inf(1)
	case k < th.KSQIGood:
		return th.KSQIGood - k
	case k > th.KSQIMax:
		return k - th.KSQIMax
	default:
		return 0
	}
}
