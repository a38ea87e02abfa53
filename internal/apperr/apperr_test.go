package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindStrings(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindInvalidInput, "invalid_input"},
		{KindAcquisition, "acquisition_failed"},
		{KindTranscript, "transcript_unavailable"},
		{KindAnalysis, "analysis_failed"},
		{KindNotReady, "not_ready"},
		{KindSessionExpired, "session_expired"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := New(KindAcquisition, "oversize", errors.New("too big"))
	wrapped := fmt.Errorf("handling request: %w", base)

	kind, ok := KindOf(wrapped)
	if !ok || kind != KindAcquisition {
		t.Errorf("KindOf(wrapped) = %v, %v", kind, ok)
	}
	if !Is(wrapped, KindAcquisition) {
		t.Error("Is(wrapped, KindAcquisition) = false")
	}
	if Is(wrapped, KindAnalysis) {
		t.Error("Is matched the wrong kind")
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("KindOf matched a plain error")
	}
}

func TestErrorFormatting(t *testing.T) {
	withCause := New(KindAnalysis, "invalid-json", errors.New("unexpected token"))
	if got := withCause.Error(); got != "analysis_failed (invalid-json): unexpected token" {
		t.Errorf("Error() = %q", got)
	}
	bare := InvalidInput("unknown filename %q", "a.mp4")
	if got := bare.Error(); got != `invalid_input (unknown filename "a.mp4")` {
		t.Errorf("Error() = %q", got)
	}
}

func TestUnknownFilename(t *testing.T) {
	err := UnknownFilename("a.mp4")
	if err.Reason != ReasonUnknownFilename {
		t.Errorf("Reason = %q, want %q", err.Reason, ReasonUnknownFilename)
	}
	if !Is(err, KindInvalidInput) {
		t.Error("UnknownFilename has wrong kind")
	}
	if got := err.Error(); got != `invalid_input (unknown-filename): unknown filename "a.mp4"` {
		t.Errorf("Error() = %q", got)
	}
}

func TestSentinels(t *testing.T) {
	if !Is(ErrSessionExpired, KindSessionExpired) {
		t.Error("ErrSessionExpired has wrong kind")
	}
	if !Is(ErrNotReady, KindNotReady) {
		t.Error("ErrNotReady has wrong kind")
	}
	wrapped := fmt.Errorf("touching session: %w", ErrSessionExpired)
	if !errors.Is(wrapped, ErrSessionExpired) {
		t.Error("errors.Is failed through wrapping")
	}
}
