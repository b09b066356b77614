package vtypes

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// timeoutErr implements net.Error with Timeout() == true.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// TestClassifyKinds tests that every failure class maps to exactly one kind.
func TestClassifyKinds(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		kind        ErrorKind
		recoverable bool
	}{
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout, true},
		{"cancellation", context.Canceled, KindNetwork, false},
		{"wrapped cancellation", fmt.Errorf("dial: %w", context.Canceled), KindNetwork, false},
		{"network timeout", timeoutErr{}, KindTimeout, true},
		{"unauthorized", &StatusError{Code: 401}, KindAuthentication, false},
		{"forbidden", &StatusError{Code: 403}, KindAuthentication, false},
		{"rate limited", &StatusError{Code: 429}, KindRateLimited, true},
		{"bad request", &StatusError{Code: 400}, KindInvalidInput, false},
		{"payload too large", &StatusError{Code: 413}, KindInvalidInput, false},
		{"unprocessable", &StatusError{Code: 422}, KindInvalidInput, false},
		{"request timeout", &StatusError{Code: 408}, KindTimeout, true},
		{"not found", &StatusError{Code: 404}, KindInvalidInput, false},
		{"internal error", &StatusError{Code: 500}, KindProvider, true},
		{"bad gateway", &StatusError{Code: 502}, KindProvider, true},
		{"unknown error", errors.New("something odd"), KindNetwork, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got == nil {
				t.Fatal("Classify() returned nil for non-nil error")
			}
			if got.Kind != tt.kind {
				t.Errorf("Classify() kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Recoverable != tt.recoverable {
				t.Errorf("Classify() recoverable = %v, want %v", got.Recoverable, tt.recoverable)
			}
		})
	}
}

// TestClassifyNil tests that nil errors stay nil.
func TestClassifyNil(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Errorf("Classify(nil) = %v, want nil", got)
	}
}

// TestClassifyPassthrough tests that already classified errors are returned
// unchanged, even when wrapped.
func TestClassifyPassthrough(t *testing.T) {
	orig := NewError(KindPlayback, "device gone", nil)
	wrapped := fmt.Errorf("play: %w", orig)

	if got := Classify(wrapped); got != orig {
		t.Errorf("Classify() = %v, want the original %v", got, orig)
	}
}

// TestClassifyRetryAfter tests retry-after propagation for rate limits.
func TestClassifyRetryAfter(t *testing.T) {
	got := Classify(&StatusError{Code: 429, RetryAfter: 12 * time.Second})
	if got.RetryAfter != 12*time.Second {
		t.Errorf("RetryAfter = %v, want 12s", got.RetryAfter)
	}

	got = Classify(&StatusError{Code: 429})
	if got.RetryAfter != DefaultRetryAfter {
		t.Errorf("RetryAfter = %v, want default %v", got.RetryAfter, DefaultRetryAfter)
	}
}

// TestErrorUnwrap tests that the cause chain survives classification.
func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	classified := Classify(fmt.Errorf("post: %w", cause))
	if !errors.Is(classified, cause) {
		t.Error("classified error does not unwrap to the original cause")
	}
}

// TestVoiceSettingsClamped tests parameter range enforcement.
func TestVoiceSettingsClamped(t *testing.T) {
	tests := []struct {
		name string
		in   VoiceSettings
		want VoiceSettings
	}{
		{
			name: "in range untouched",
			in:   VoiceSettings{Expressiveness: 0.7, GuidanceWeight: 0.3, Speed: 1.5},
			want: VoiceSettings{Expressiveness: 0.7, GuidanceWeight: 0.3, Speed: 1.5},
		},
		{
			name: "everything too high",
			in:   VoiceSettings{Expressiveness: 2.0, GuidanceWeight: 9.0, Speed: 5.0},
			want: VoiceSettings{Expressiveness: 1.0, GuidanceWeight: 1.0, Speed: 2.0},
		},
		{
			name: "everything too low",
			in:   VoiceSettings{Expressiveness: -1.0, GuidanceWeight: -0.1, Speed: 0.1},
			want: VoiceSettings{Expressiveness: 0.0, GuidanceWeight: 0.0, Speed: 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Clamped(); got != tt.want {
				t.Errorf("Clamped() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestJobStatusTerminal tests terminal state detection.
func TestJobStatusTerminal(t *testing.T) {
	terminal := []JobStatus{JobCompleted, JobFailed, JobCancelled, JobTimedOut}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}
	for _, s := range []JobStatus{JobInQueue, JobInProgress, JobStatus("???")} {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", s)
		}
	}
}
