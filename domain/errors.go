package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable means the speech model could not be obtained at startup
	ErrModelUnavailable = errors.New("speech model unavailable")
	// ErrTranscription means the recognizer failed or produced no usable text
	ErrTranscription = errors.New("transcription failed")
	// ErrUpstream means the generation endpoint was unreachable or answered with an error
	ErrUpstream = errors.New("upstream generation failed")
	// ErrEmptyAudio means the uploaded clip carried no bytes
	ErrEmptyAudio = errors.New("audio upload is empty")
	// ErrAudioTooLarge means the uploaded clip exceeded the configured size limit
	ErrAudioTooLarge = errors.New("audio upload exceeds size limit")
	// ErrInvalidInput means the request payload could not be used
	ErrInvalidInput = errors.New("invalid input")
)

// NoReply is returned in place of a reply when the generation endpoint
// answered successfully but without any text.
const NoReply = "(no reply)"

// ModelUnavailableError describes why a speech model could not be loaded and what to do about it
type ModelUnavailableError struct {
	Identifier  string
	Location    string
	Remediation string
	Err         error
}

func (e *ModelUnavailableError) Error() string {
	msg := fmt.Sprintf("speech model %q unavailable", e.Identifier)
	if e.Location != "" {
		msg += fmt.Sprintf(" at %s", e.Location)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Remediation != "" {
		msg += " (" + e.Remediation + ")"
	}
	return msg
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

func (e *ModelUnavailableError) Is(target error) bool { return target == ErrModelUnavailable }

// UpstreamError is a failed call to the generation endpoint
type UpstreamError struct {
	Provider   string
	StatusCode int
	Detail     string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := e.Provider + " request failed"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" with status %d", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// TranscriptionError wraps a recognizer failure
type TranscriptionError struct {
	Engine string
	Err    error
}

func (e *TranscriptionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: transcription failed", e.Engine)
	}
	return fmt.Sprintf("%s: transcription failed: %v", e.Engine, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

func (e *TranscriptionError) Is(target error) bool { return target == ErrTranscription }

// Error codes carried in error bodies and websocket error frames
const (
	CodeInvalidInput        = "invalid_input"
	CodeEmptyAudio          = "empty_audio"
	CodeAudioTooLarge       = "audio_too_large"
	CodeTranscriptionFailed = "transcription_failed"
	CodeUpstreamFailed      = "upstream_error"
	CodeModelUnavailable    = "model_unavailable"
	CodeTimeout             = "timeout"
	CodeInternal            = "internal_error"
)

// Describe maps an error to its code and a message safe to show to clients.
// Only invalid input echoes the error text; everything else gets a fixed
// message and the detail stays in the logs.
func Describe(err error) (code, message string) {
	switch {
	case err == nil:
		return "", ""
	case errors.Is(err, ErrEmptyAudio):
		return CodeEmptyAudio, ErrEmptyAudio.Error()
	case errors.Is(err, ErrAudioTooLarge):
		return CodeAudioTooLarge, ErrAudioTooLarge.Error()
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput, err.Error()
	case errors.Is(err, ErrTranscription):
		return CodeTranscriptionFailed, "could not transcribe the audio"
	case errors.Is(err, ErrUpstream):
		return CodeUpstreamFailed, "the language model did not answer"
	case errors.Is(err, ErrModelUnavailable):
		return CodeModelUnavailable, ErrModelUnavailable.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout, "request timed out"
	default:
		return CodeInternal, "internal server error"
	}
}
