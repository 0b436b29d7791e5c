package recording

import (
	"fmt"
	"strings"
)

// Recording is a parsed multi-channel export. It is not modified after Parse
// returns.
type Recording struct {
	RecordID  string
	Timestamp string
	Notes     string
	Gain      string

	channels []string
	samples  map[string][]float64
	length   int
}

// MalformedRecordingError reports why a file could not be parsed. Line is
// 1-based, 0 when the problem is not tied to a line.
type MalformedRecordingError struct {
	Line   int
	Reason string
	Text   string
}

func (e *MalformedRecordingError) Error() string {
	if e.Line <= 0 {
		return fmt.Sprintf("malformed recording: %s", e.Reason)
	}
	if e.Text != "" {
		return fmt.Sprintf("malformed recording: line %d: %s (%q)", e.Line, e.Reason, truncate(e.Text, 80))
	}
	return fmt.Sprintf("malformed recording: line %d: %s", e.Line, e.Reason)
}

// Channels returns channel names in header order.
func (r *Recording) Channels() []string {
	out := make([]string, len(r.channels))
	copy(out, r.channels)
	return out
}

// HasChannel reports whether name was present in the channel header.
func (r *Recording) HasChannel(name string) bool {
	_, ok := r.samples[name]
	return ok
}

// Channel returns the raw samples of one channel. The returned slice must not
// be modified.
func (r *Recording) Channel(name string) ([]float64, bool) {
	s, ok := r.samples[name]
	return s, ok
}

// Len is the per-channel sample count.
func (r *Recording) Len() int {
	return r.length
}

// Duration is the recording length in seconds at the given rate.
func (r *Recording) Duration(rate float64) float64 {
	if rate <= 0 {
		return 0
	}
	return float64(r.length) / rate
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
