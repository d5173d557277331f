package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/taigi0315/study-english-with-suits-sub006/internal/langreuse"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/media"
)

// Kind classifies pipeline failures so callers and logs can react to the
// category without parsing messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConfig
	KindAnalysis
	KindEncoder
	KindTimeout
	KindReuseMismatch
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindConfig:
		return "Config"
	case KindAnalysis:
		return "Analysis"
	case KindEncoder:
		return "Encoder"
	case KindTimeout:
		return "Timeout"
	case KindReuseMismatch:
		return "ReuseMismatch"
	default:
		return "Unknown"
	}
}

// Error is a classified pipeline failure
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Cause   error
}

// NewError creates a classified error
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Context: make(map[string]any)}
}

// WrapError classifies an underlying cause
func WrapError(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Context: make(map[string]any), Cause: err}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Kind, e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}
	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair for diagnostics
func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// IsKind reports whether err carries the given classification
func IsKind(err error, kind Kind) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind == kind
	}
	return false
}

// Classify maps an arbitrary error onto a Kind, preferring an explicit
// classification when one is already attached.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, langreuse.ErrReuseMismatch):
		return KindReuseMismatch
	case errors.Is(err, media.ErrEncoderFailed), errors.Is(err, media.ErrEmptyOutput):
		return KindEncoder
	default:
		return KindUnknown
	}
}
