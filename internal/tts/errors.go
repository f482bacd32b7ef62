package tts

import (
	"errors"
	"fmt"
)

// Common synthesis errors.
var (
	// ErrEmptyText indicates the request contained no text after trimming.
	ErrEmptyText = errors.New("text is required")

	// ErrTextTooLong indicates the text exceeds MaxTextLength.
	ErrTextTooLong = errors.New("text too long")

	// ErrInvalidFormat indicates an unsupported output format.
	ErrInvalidFormat = errors.New("invalid format: use 'wav' or 'mp3'")

	// ErrInvalidEngine indicates an unknown engine was requested.
	ErrInvalidEngine = errors.New("invalid engine: use 'piper' or 'google'")

	// ErrUnknownVoice indicates the voice id is not in the registry.
	ErrUnknownVoice = errors.New("unknown voice")

	// ErrModelNotFound indicates a registered voice points at a missing model file.
	ErrModelNotFound = errors.New("voice model file not found")

	// ErrEngineUnavailable indicates the requested engine cannot run
	// (binary not installed, credentials missing).
	ErrEngineUnavailable = errors.New("engine unavailable")

	// ErrSynthesisFailed indicates the engine ran but produced no usable audio.
	ErrSynthesisFailed = errors.New("synthesis failed")

	// ErrAudioTooLarge indicates the synthesized audio exceeds MaxAudioSize.
	ErrAudioTooLarge = errors.New("synthesized audio too large")
)

// ErrorCode classifies a synthesis failure for HTTP status mapping.
type ErrorCode string

const (
	// ErrorCodeInvalidInput covers validation failures and unknown voices.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrorCodePermission covers filesystem and API permission failures.
	ErrorCodePermission ErrorCode = "PERMISSION_DENIED"

	// ErrorCodePiperUnavailable means the piper binary is not installed.
	ErrorCodePiperUnavailable ErrorCode = "PIPER_UNAVAILABLE"

	// ErrorCodeGoogleUnavailable means the Google engine is not configured
	// or not reachable.
	ErrorCodeGoogleUnavailable ErrorCode = "GOOGLE_UNAVAILABLE"

	// ErrorCodeEngineFailure covers synthesis and transcoding failures.
	ErrorCodeEngineFailure ErrorCode = "ENGINE_FAILURE"

	// ErrorCodeTimeout means synthesis exceeded its deadline.
	ErrorCodeTimeout ErrorCode = "TIMEOUT"
)

// SynthesisError carries an error code alongside the cause so the HTTP layer
// can map failures to status codes without string matching.
type SynthesisError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *SynthesisError) Unwrap() error {
	return e.Cause
}

// NewSynthesisError creates a classified synthesis error.
func NewSynthesisError(code ErrorCode, message string, cause error) *SynthesisError {
	return &SynthesisError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// HTTPStatus maps an error to the status code served to clients. The mapping
// follows the error classes documented in the API reference: validation and
// missing-model errors are the caller's fault, missing binaries are 501,
// unconfigured Google is 503, and everything else is a server error.
func HTTPStatus(err error) int {
	var synthErr *SynthesisError
	if errors.As(err, &synthErr) {
		switch synthErr.Code {
		case ErrorCodeInvalidInput:
			return 400
		case ErrorCodePermission:
			return 403
		case ErrorCodePiperUnavailable:
			return 501
		case ErrorCodeGoogleUnavailable:
			return 503
		case ErrorCodeTimeout:
			return 504
		default:
			return 500
		}
	}

	switch {
	case errors.Is(err, ErrEmptyText),
		errors.Is(err, ErrTextTooLong),
		errors.Is(err, ErrInvalidFormat),
		errors.Is(err, ErrInvalidEngine),
		errors.Is(err, ErrUnknownVoice),
		errors.Is(err, ErrModelNotFound):
		return 400
	case errors.Is(err, ErrEngineUnavailable):
		return 503
	default:
		return 500
	}
}
