package common

import (
	"errors"
	"fmt"
)

// Kind classifies a reportable pipeline condition.
type Kind string

const (
	KindMissingColumn          Kind = "MISSING_COLUMN"
	KindInsufficientData       Kind = "INSUFFICIENT_DATA"
	KindBackendUnavailable     Kind = "BACKEND_UNAVAILABLE"
	KindFitFailure             Kind = "FIT_FAILURE"
	KindUnsupportedModelFamily Kind = "UNSUPPORTED_MODEL_FAMILY"
	KindDegradedRanking        Kind = "DEGRADED_RANKING"
	KindShiftUnavailable       Kind = "SHIFT_UNAVAILABLE"
)

// Fatal reports whether a condition of this kind aborts the run.
func (k Kind) Fatal() bool {
	switch k {
	case KindMissingColumn, KindInsufficientData:
		return true
	default:
		return false
	}
}

// Sentinels for errors.Is; matching is by kind.
var (
	ErrMissingColumn          = &Error{Kind: KindMissingColumn, Message: "missing column"}
	ErrInsufficientData       = &Error{Kind: KindInsufficientData, Message: "insufficient data"}
	ErrBackendUnavailable     = &Error{Kind: KindBackendUnavailable, Message: "backend unavailable"}
	ErrFitFailure             = &Error{Kind: KindFitFailure, Message: "fit failure"}
	ErrUnsupportedModelFamily = &Error{Kind: KindUnsupportedModelFamily, Message: "unsupported model family"}
)

// Error is a classified pipeline error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
}

func NewError(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return t.Kind == e.Kind
}

// WithContext attaches a diagnostic key/value and returns e.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func MissingColumn(column string) *Error {
	return NewError(KindMissingColumn, fmt.Sprintf("required column %q is absent", column), nil).
		WithContext("column", column)
}

func InsufficientData(message string) *Error {
	return NewError(KindInsufficientData, message, nil)
}

func FitFailure(model string, cause error) *Error {
	return NewError(KindFitFailure, fmt.Sprintf("fit %s", model), cause).WithContext("model", model)
}

func BackendUnavailable(model string, cause error) *Error {
	return NewError(KindBackendUnavailable, fmt.Sprintf("backend %s unavailable", model), cause).
		WithContext("model", model)
}

func UnsupportedModelFamily(model, family string) *Error {
	return NewError(KindUnsupportedModelFamily, fmt.Sprintf("no attribution strategy for %s (family %q)", model, family), nil).
		WithContext("model", model).
		WithContext("family", family)
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Notice is a non-fatal condition recorded during a run.
type Notice struct {
	Kind    Kind   `json:"kind"`
	Backend string `json:"backend,omitempty"`
	Message string `json:"message"`
}

func NoticeFromError(backend string, err error) Notice {
	kind, ok := KindOf(err)
	if !ok {
		kind = KindFitFailure
	}
	return Notice{Kind: kind, Backend: backend, Message: err.Error()}
}
