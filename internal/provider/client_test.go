package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chatframe/voice/internal/vtypes"
)

func testRequest() vtypes.SynthesisRequest {
	return vtypes.SynthesisRequest{
		Text:     "hello there",
		Settings: vtypes.DefaultVoiceSettings(),
	}
}

// TestSynthesize tests the blocking synthesis endpoint.
func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/synthesize" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if body["text"] != "hello there" {
			t.Errorf("text = %v", body["text"])
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"audio_url":         "https://cdn/x.mp3",
			"duration_seconds":  2.5,
			"sample_rate":       22050,
			"execution_time_ms": 740,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "sekrit", time.Second)
	got, err := c.Synthesize(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if got.AudioURL != "https://cdn/x.mp3" {
		t.Errorf("AudioURL = %s", got.AudioURL)
	}
	if got.Duration != 2500*time.Millisecond {
		t.Errorf("Duration = %v, want 2.5s", got.Duration)
	}
	if got.ExecTime != 740*time.Millisecond {
		t.Errorf("ExecTime = %v, want 740ms", got.ExecTime)
	}
}

// TestSynthesizeErrorStatus tests that non-2xx responses surface as status
// errors carrying the provider message and retry hint.
func TestSynthesizeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "slow down"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	_, err := c.Synthesize(context.Background(), testRequest())

	var se *vtypes.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Code != http.StatusTooManyRequests {
		t.Errorf("Code = %d, want 429", se.Code)
	}
	if se.Message != "slow down" {
		t.Errorf("Message = %q", se.Message)
	}
	if se.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", se.RetryAfter)
	}
}

// TestJobLifecycle tests submit, poll and terminal result decoding.
func TestJobLifecycle(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/jobs":
			json.NewEncoder(w).Encode(map[string]string{"job_id": "job-42"}) //nolint:errcheck
		case r.Method == http.MethodGet && r.URL.Path == "/v1/jobs/job-42":
			polls++
			if polls < 3 {
				json.NewEncoder(w).Encode(map[string]string{"status": "IN_PROGRESS"}) //nolint:errcheck
				return
			}
			json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
				"status":           "COMPLETED",
				"audio_url":        "https://cdn/j.mp3",
				"duration_seconds": 1.0,
			})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	ctx := context.Background()

	jobID, err := c.SubmitJob(ctx, testRequest())
	if err != nil {
		t.Fatalf("SubmitJob() error = %v", err)
	}
	if jobID != "job-42" {
		t.Errorf("jobID = %s", jobID)
	}

	var update *vtypes.JobUpdate
	for i := 0; i < 5; i++ {
		update, err = c.Status(ctx, jobID)
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if update.Status.Terminal() {
			break
		}
	}
	if update.Status != vtypes.JobCompleted {
		t.Fatalf("final status = %s, want COMPLETED", update.Status)
	}
	if update.Result == nil || update.Result.AudioURL != "https://cdn/j.mp3" {
		t.Errorf("Result = %+v", update.Result)
	}
}

// TestSubmitJobWithoutID tests that a submit response missing the job id is
// treated as a provider failure.
func TestSubmitJobWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	if _, err := c.SubmitJob(context.Background(), testRequest()); err == nil {
		t.Error("SubmitJob() with empty id succeeded, want error")
	}
}

// TestCancelJobTolerance tests that cancelling unknown or finished jobs is
// not an error.
func TestCancelJobTolerance(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"unknown job", http.StatusNotFound, false},
		{"already finished", http.StatusConflict, false},
		{"server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			c := New(srv.URL, "", time.Second)
			err := c.CancelJob(context.Background(), "j")
			if (err != nil) != tt.wantErr {
				t.Errorf("CancelJob() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestHealth tests the health probe.
func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}
}
