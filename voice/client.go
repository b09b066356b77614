package voice

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/chatframe/voice/internal/cache"
	"github.com/chatframe/voice/internal/ratelimit"
	"github.com/chatframe/voice/internal/vtypes"
)

// Provider is the remote synthesis backend. The production implementation
// lives in internal/provider; tests substitute their own.
type Provider interface {
	// Synthesize performs a blocking synthesis call.
	Synthesize(ctx context.Context, req vtypes.SynthesisRequest) (*vtypes.SynthesisResult, error)
	// SubmitJob enqueues an asynchronous job and returns its id.
	SubmitJob(ctx context.Context, req vtypes.SynthesisRequest) (string, error)
	// Status reports the current state of a job.
	Status(ctx context.Context, jobID string) (*vtypes.JobUpdate, error)
	// CancelJob requests cancellation of a job. Unknown or already
	// finished jobs are not an error.
	CancelJob(ctx context.Context, jobID string) error
}

// Client turns normalized text into cached audio artifacts. It owns the
// admission limiter, the retry policy and the async poll loop; callers see
// a single blocking Synthesize call.
type Client struct {
	cfg      Config
	provider Provider
	limiter  *ratelimit.Limiter
	cache    *cache.Cache
	logger   *log.Logger

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

// NewClient builds a synthesis client. The cache may be nil, in which case
// every request hits the provider.
func NewClient(cfg Config, provider Provider, c *cache.Cache, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Client{
		cfg:      cfg,
		provider: provider,
		limiter:  ratelimit.New(cfg.RequestsPerMinute, cfg.Burst),
		cache:    c,
		logger:   logger,
		inflight: make(map[string]context.CancelFunc),
	}
}

// Synthesize produces audio for raw text. The text is normalized first; a
// cache hit returns immediately without touching the limiter or the network.
// Transient failures are retried with exponential backoff up to the
// configured attempt ceiling.
func (c *Client) Synthesize(ctx context.Context, raw string, settings vtypes.VoiceSettings, correlationID string) (*vtypes.SynthesisResult, error) {
	text := Normalize(raw, c.cfg.MaxTextLen)
	if text == "" {
		return nil, vtypes.NewError(vtypes.KindInvalidInput, "nothing to speak after normalization", nil)
	}
	settings = settings.Clamped()

	key := cache.Key(text, settings)
	if c.cache != nil {
		if result, ok := c.cache.Get(key); ok {
			c.logger.Debug("synthesis cache hit", "key", key, "correlation_id", correlationID)
			return result, nil
		}
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.track(correlationID, cancel)
	defer c.untrack(correlationID)

	req := vtypes.SynthesisRequest{
		Text:          text,
		Settings:      settings,
		CorrelationID: correlationID,
	}

	var lastErr *vtypes.Error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := c.limiter.Admit(cctx); err != nil {
			return nil, vtypes.Classify(err)
		}

		start := time.Now()
		result, err := c.dispatch(cctx, req)
		if err == nil {
			c.logger.Debug("synthesis complete",
				"correlation_id", correlationID,
				"attempt", attempt,
				"elapsed", time.Since(start),
				"duration", result.Duration)
			if c.cache != nil {
				if cerr := c.cache.Put(key, result); cerr != nil {
					c.logger.Warn("failed to cache synthesis result", "key", key, "error", cerr)
				}
			}
			return result, nil
		}

		lastErr = vtypes.Classify(err)
		if !lastErr.Recoverable || attempt == c.cfg.MaxAttempts {
			break
		}

		delay := c.backoff(attempt, lastErr.RetryAfter)
		c.logger.Debug("synthesis attempt failed, retrying",
			"correlation_id", correlationID,
			"attempt", attempt,
			"kind", lastErr.Kind,
			"delay", delay,
			"error", lastErr)
		select {
		case <-time.After(delay):
		case <-cctx.Done():
			return nil, vtypes.Classify(cctx.Err())
		}
	}

	c.logger.Error("synthesis failed",
		"correlation_id", correlationID,
		"kind", lastErr.Kind,
		"recoverable", lastErr.Recoverable,
		"error", lastErr)
	return nil, lastErr
}

// Cancel aborts the in-flight synthesis for a correlation id, if any.
// It reports whether a request was actually cancelled.
func (c *Client) Cancel(correlationID string) bool {
	c.mu.Lock()
	cancel, ok := c.inflight[correlationID]
	delete(c.inflight, correlationID)
	c.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// LimiterStats exposes the admission window for diagnostics.
func (c *Client) LimiterStats() ratelimit.Stats {
	return c.limiter.Stats()
}

func (c *Client) dispatch(ctx context.Context, req vtypes.SynthesisRequest) (*vtypes.SynthesisResult, error) {
	if c.cfg.SyncMode {
		return c.provider.Synthesize(ctx, req)
	}
	return c.runJob(ctx, req)
}

// runJob submits an async job and polls it to completion. Polling is paced
// so a slow provider cannot be hammered, and each status probe carries its
// own short deadline.
func (c *Client) runJob(ctx context.Context, req vtypes.SynthesisRequest) (*vtypes.SynthesisResult, error) {
	jobID, err := c.provider.SubmitJob(ctx, req)
	if err != nil {
		return nil, err
	}

	pacer := rate.NewLimiter(rate.Every(c.cfg.PollInterval), 1)
	for poll := 1; poll <= c.cfg.PollMaxAttempts; poll++ {
		if err := pacer.Wait(ctx); err != nil {
			c.abandonJob(jobID)
			return nil, err
		}

		update, err := c.pollOnce(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				c.abandonJob(jobID)
				return nil, ctx.Err()
			}
			// A single failed probe does not doom the job.
			c.logger.Debug("job status probe failed", "job_id", jobID, "poll", poll, "error", err)
			continue
		}

		if !update.Status.Terminal() {
			continue
		}
		switch update.Status {
		case vtypes.JobCompleted:
			if update.Result == nil {
				return nil, vtypes.NewError(vtypes.KindProvider, "job completed without a result", nil)
			}
			return update.Result, nil
		case vtypes.JobCancelled:
			return nil, vtypes.NewError(vtypes.KindProvider, fmt.Sprintf("job %s was cancelled", jobID), nil)
		case vtypes.JobTimedOut:
			return nil, vtypes.NewError(vtypes.KindTimeout, fmt.Sprintf("job %s timed out at the provider", jobID), nil)
		default: // JobFailed
			msg := update.Message
			if msg == "" {
				msg = fmt.Sprintf("job %s failed", jobID)
			}
			return nil, vtypes.NewError(vtypes.KindProvider, msg, nil)
		}
	}

	c.abandonJob(jobID)
	return nil, vtypes.NewError(vtypes.KindTimeout,
		fmt.Sprintf("job %s did not finish within %d polls", jobID, c.cfg.PollMaxAttempts), nil)
}

func (c *Client) pollOnce(ctx context.Context, jobID string) (*vtypes.JobUpdate, error) {
	pctx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
	defer cancel()
	return c.provider.Status(pctx, jobID)
}

// abandonJob tells the provider to stop work on a job we no longer want.
// Best effort with a fresh context since the caller's is usually dead.
func (c *Client) abandonJob(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.provider.CancelJob(ctx, jobID); err != nil {
		c.logger.Debug("failed to cancel abandoned job", "job_id", jobID, "error", err)
	}
}

// backoff computes the sleep before the next attempt: exponential growth
// from the base, capped, with up to 25% jitter. A provider retry-after hint
// takes precedence when it is longer.
func (c *Client) backoff(attempt int, retryAfter time.Duration) time.Duration {
	delay := c.cfg.BackoffBase << (attempt - 1)
	if delay > c.cfg.BackoffMax || delay <= 0 {
		delay = c.cfg.BackoffMax
	}
	delay += time.Duration(rand.Int63n(int64(delay)/4 + 1))
	if retryAfter > delay {
		delay = retryAfter
	}
	return delay
}

func (c *Client) track(correlationID string, cancel context.CancelFunc) {
	if correlationID == "" {
		return
	}
	c.mu.Lock()
	c.inflight[correlationID] = cancel
	c.mu.Unlock()
}

func (c *Client) untrack(correlationID string) {
	if correlationID == "" {
		return
	}
	c.mu.Lock()
	delete(c.inflight, correlationID)
	c.mu.Unlock()
}
