package pipeline

import "errors"

// Kind classifies which stage of the pipeline failed.
type Kind int

const (
	KindUnknown Kind = iota
	AcquisitionFailed
	DecodeFailed
	EstimationFailed
	MixFailed
	EncodeFailed
)

func (k Kind) String() string {
	switch k {
	case AcquisitionFailed:
		return "acquisition failed"
	case DecodeFailed:
		return "decode failed"
	case EstimationFailed:
		return "estimation failed"
	case MixFailed:
		return "mix failed"
	case EncodeFailed:
		return "encode failed"
	default:
		return "unknown failure"
	}
}

// Error is a stage failure. The cause stays reachable with errors.Is/As.
type Error struct {
	Kind Kind
	Err  error
}

// Sentinels for matching a kind with errors.Is.
var (
	ErrAcquisition = &Error{Kind: AcquisitionFailed}
	ErrDecode      = &Error{Kind: DecodeFailed}
	ErrEstimation  = &Error{Kind: EstimationFailed}
	ErrMix         = &Error{Kind: MixFailed}
	ErrEncode      = &Error{Kind: EncodeFailed}
)

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind that carries no cause, so the
// package sentinels compare equal to every error of their kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

// KindOf reports the stage kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

func wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}
