package playback

import (
	"context"
	"sync"
	"time"

	"github.com/chatframe/voice/internal/vtypes"
)

// MockPlayer simulates playback for tests and for running without an
// audio device. Each item "plays" for PlayDuration (or the artifact's
// own duration when PlayDuration is zero and UseItemDuration is set).
type MockPlayer struct {
	// PlayDuration fixes how long each Play call blocks. Zero means
	// return immediately.
	PlayDuration time.Duration
	// FailURLs lists artifact locators whose playback should fail.
	FailURLs map[string]bool

	mu      sync.Mutex
	played  []string
	paused  bool
	pauseCh chan struct{}
}

// NewMockPlayer creates a mock player.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{FailURLs: make(map[string]bool)}
}

// Play records the artifact and blocks for the configured duration,
// honoring pause and cancellation.
func (p *MockPlayer) Play(ctx context.Context, result *vtypes.SynthesisResult) error {
	p.mu.Lock()
	p.played = append(p.played, result.AudioURL)
	fail := p.FailURLs[result.AudioURL]
	p.mu.Unlock()

	if fail {
		return vtypes.NewError(vtypes.KindPlayback, "simulated device failure", nil)
	}
	if p.PlayDuration <= 0 {
		return ctx.Err()
	}

	deadline := time.NewTimer(p.PlayDuration)
	defer deadline.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			p.mu.Lock()
			paused := p.paused
			ch := p.pauseCh
			p.mu.Unlock()
			if !paused {
				return nil
			}
			// Paused at the natural end: wait for resume or cancel.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ch:
			}
			return nil
		}
	}
}

// Pause suspends the simulated playback.
func (p *MockPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		p.paused = true
		p.pauseCh = make(chan struct{})
	}
	return nil
}

// Resume releases a paused Play call.
func (p *MockPlayer) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		p.paused = false
		close(p.pauseCh)
	}
	return nil
}

// SetVolume is a no-op for the mock.
func (p *MockPlayer) SetVolume(float64) {}

// Played returns the artifact locators in the order they were played.
func (p *MockPlayer) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.played))
	copy(out, p.played)
	return out
}

var _ Player = (*MockPlayer)(nil)
