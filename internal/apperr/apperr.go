// Package apperr defines the error taxonomy shared by the video pipeline.
//
// Each error kind maps to one caller-facing failure class. Handlers pick the
// HTTP status from the kind; the Reason field is a short machine-readable
// code suitable for display logic on the frontend.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind int

const (
	// KindInvalidInput means the caller must correct the input; no retry helps.
	KindInvalidInput Kind = iota
	// KindAcquisition means the download/upload tool failed; the caller may
	// retry or pick another source.
	KindAcquisition
	// KindTranscript means caption resolution failed. Non-fatal: the pipeline
	// degrades to video-native analysis.
	KindTranscript
	// KindAnalysis means the generative call or its JSON parse failed after
	// the repair retry. The raw model text is preserved as a degraded result.
	KindAnalysis
	// KindNotReady means chat was requested before any analysis or transcript
	// exists for the video.
	KindNotReady
	// KindSessionExpired means TTL eviction raced the request.
	KindSessionExpired
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindAcquisition:
		return "acquisition_failed"
	case KindTranscript:
		return "transcript_unavailable"
	case KindAnalysis:
		return "analysis_failed"
	case KindNotReady:
		return "not_ready"
	case KindSessionExpired:
		return "session_expired"
	}
	return "unknown"
}

// Error is a classified application error with a machine-readable reason.
type Error struct {
	Kind   Kind
	Reason string // short code: "oversize", "blocked", "no-captions", ...
	// RawText carries the unparseable model output for degraded analysis
	// results so the caller can still display something.
	RawText string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error.
func New(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// InvalidInput builds a KindInvalidInput error with a formatted reason.
func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Reason: fmt.Sprintf(format, args...)}
}

// ReasonUnknownFilename marks a reference to a filename the session does not
// own. Handlers map it to 404.
const ReasonUnknownFilename = "unknown-filename"

// UnknownFilename builds the invalid-input error for a filename the session
// does not own.
func UnknownFilename(name string) *Error {
	return &Error{
		Kind:   KindInvalidInput,
		Reason: ReasonUnknownFilename,
		Err:    fmt.Errorf("unknown filename %q", name),
	}
}

// ErrSessionExpired is the sentinel returned by session accessors once a
// session has been evicted (by TTL or explicit cleanup).
var ErrSessionExpired = &Error{Kind: KindSessionExpired, Reason: "session evicted"}

// ErrNotReady is returned by chat when no analysis or transcript exists yet.
var ErrNotReady = &Error{Kind: KindNotReady, Reason: "run an analysis or transcript first"}

// KindOf extracts the Kind from err, or returns ok=false if err is not an
// application error.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
