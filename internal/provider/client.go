// Package provider implements the HTTP client for the remote synthesis
// provider: synchronous submission, asynchronous jobs with status
// polling, and a health probe.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/chatframe/voice/internal/vtypes"
)

// Client talks to the synthesis provider. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a provider client. timeout bounds each individual HTTP
// exchange; callers layer their own per-operation contexts on top.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type submitPayload struct {
	Text           string  `json:"text"`
	Expressiveness float64 `json:"expressiveness"`
	GuidanceWeight float64 `json:"guidance_weight"`
	Speed          float64 `json:"speed"`
	VoiceProfile   string  `json:"voice_profile,omitempty"`
}

type resultPayload struct {
	AudioURL        string  `json:"audio_url"`
	DurationSeconds float64 `json:"duration_seconds"`
	SampleRate      int     `json:"sample_rate,omitempty"`
	ExecTimeMillis  int64   `json:"execution_time_ms,omitempty"`
}

type jobPayload struct {
	JobID string `json:"job_id"`
}

type statusPayload struct {
	Status string `json:"status"`
	resultPayload
	Message string `json:"message,omitempty"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// Synthesize performs a single blocking synthesis call that returns a
// terminal result.
func (c *Client) Synthesize(ctx context.Context, req vtypes.SynthesisRequest) (*vtypes.SynthesisResult, error) {
	var out resultPayload
	if err := c.do(ctx, http.MethodPost, "/v1/synthesize", payloadFrom(req), &out); err != nil {
		return nil, err
	}
	return out.toResult(), nil
}

// SubmitJob enqueues an asynchronous synthesis job and returns its id.
func (c *Client) SubmitJob(ctx context.Context, req vtypes.SynthesisRequest) (string, error) {
	var out jobPayload
	if err := c.do(ctx, http.MethodPost, "/v1/jobs", payloadFrom(req), &out); err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", &vtypes.StatusError{Code: http.StatusBadGateway, Message: "provider returned no job id"}
	}
	return out.JobID, nil
}

// Status fetches the current state of a job. On COMPLETED the update
// carries the audio locator and duration.
func (c *Client) Status(ctx context.Context, jobID string) (*vtypes.JobUpdate, error) {
	var out statusPayload
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+jobID, nil, &out); err != nil {
		return nil, err
	}
	update := &vtypes.JobUpdate{Status: vtypes.JobStatus(out.Status), Message: out.Message}
	if update.Status == vtypes.JobCompleted {
		update.Result = out.toResult()
	}
	return update, nil
}

// CancelJob asks the provider to cancel a job. Best effort: a job that
// already reached a terminal state is not an error.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	err := c.do(ctx, http.MethodDelete, "/v1/jobs/"+jobID, nil, nil)
	var se *vtypes.StatusError
	if errors.As(err, &se) && (se.Code == http.StatusNotFound || se.Code == http.StatusConflict) {
		return nil
	}
	return err
}

// Health probes provider reachability. It is for diagnostics, not the
// synthesis hot path.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/health", nil, nil)
}

func payloadFrom(req vtypes.SynthesisRequest) *submitPayload {
	s := req.Settings.Clamped()
	return &submitPayload{
		Text:           req.Text,
		Expressiveness: s.Expressiveness,
		GuidanceWeight: s.GuidanceWeight,
		Speed:          s.Speed,
		VoiceProfile:   s.VoiceProfile,
	}
}

func (p *resultPayload) toResult() *vtypes.SynthesisResult {
	return &vtypes.SynthesisResult{
		AudioURL:   p.AudioURL,
		Duration:   time.Duration(p.DurationSeconds * float64(time.Second)),
		SampleRate: p.SampleRate,
		ExecTime:   time.Duration(p.ExecTimeMillis) * time.Millisecond,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusErrorFrom(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}

func statusErrorFrom(resp *http.Response) *vtypes.StatusError {
	se := &vtypes.StatusError{Code: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var ep errorPayload
	if json.Unmarshal(data, &ep) == nil && ep.Error != "" {
		se.Message = ep.Error
	} else if len(data) > 0 {
		se.Message = string(bytes.TrimSpace(data))
	}

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			se.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return se
}
