package signal

import (
	"fmt"
	"strings"
)

// ChannelNotFoundError is returned when the requested channel is absent from
// the recording header.
type ChannelNotFoundError struct {
	Requested string
	Available []string
}

func (e *ChannelNotFoundError) Error() string {
	return fmt.Sprintf("channel %q not found, available channels: %s", e.Requested, strings.Join(e.Available, ", "))
}

// InvalidDurationError reports a duration or sampling rate that cannot select
// a non-empty prefix of the recording.
type InvalidDurationError struct {
	Requested float64
	Available float64
	Max       float64
	Reason    string
}

func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("invalid duration %gs: %s", e.Requested, e.Reason)
}
