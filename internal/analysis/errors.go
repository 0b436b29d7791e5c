package analysis

import (
	"errors"
	"fmt"

	"ecg-quality/internal/recording"
	"ecg-quality/internal/signal"
)

// Kind classifies a fatal analysis failure.
type Kind int

const (
	KindParse Kind = iota + 1
	KindChannel
	KindDuration
	KindParameter
	KindUpload
	KindTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindChannel:
		return "channel"
	case KindDuration:
		return "duration"
	case KindParameter:
		return "parameter"
	case KindUpload:
		return "upload"
	case KindTooLarge:
		return "too_large"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the single structured error returned for any fatal failure. No
// report accompanies it.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// classify maps stage errors onto the public taxonomy. Errors that are not
// part of it pass through unchanged.
func classify(err error) error {
	var (
		analysisErr *Error
		malformed   *recording.MalformedRecordingError
		channel     *signal.ChannelNotFoundError
		duration    *signal.InvalidDurationError
	)
	switch {
	case errors.As(err, &analysisErr):
		return analysisErr
	case errors.As(err, &malformed):
		return newError(KindParse, err)
	case errors.As(err, &channel):
		return newError(KindChannel, err)
	case errors.As(err, &duration):
		return newError(KindDuration, err)
	default:
		return err
	}
}

// KindOf reports the kind of err, or 0 when err is not an analysis error.
func KindOf(err error) Kind {
	var analysisErr *Error
	if errors.As(err, &analysisErr) {
		return analysisErr.Kind
	}
	return 0
}
