package playback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/chatframe/voice/internal/vtypes"
)

// maxArtifactBytes caps downloads; anything larger than this is not a
// plausible chat response artifact.
const maxArtifactBytes = 50 * 1024 * 1024

// OtoPlayer plays artifacts on the local audio device. Artifacts are
// fetched from their locator and fed to oto as 16-bit little-endian
// mono PCM at the configured sample rate.
type OtoPlayer struct {
	sampleRate int
	httpClient *http.Client

	mu      sync.Mutex
	otoCtx  *oto.Context
	current *oto.Player
	paused  bool
	volume  float64
}

// NewOtoPlayer creates a device player. The audio context is created
// lazily on first playback because oto grabs the device on creation.
func NewOtoPlayer(sampleRate int) *OtoPlayer {
	if sampleRate <= 0 {
		sampleRate = 22050
	}
	return &OtoPlayer{
		sampleRate: sampleRate,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		volume:     1.0,
	}
}

// Play fetches the artifact and blocks until the device finishes it.
func (p *OtoPlayer) Play(ctx context.Context, result *vtypes.SynthesisResult) error {
	pcm, err := p.fetch(ctx, result.AudioURL)
	if err != nil {
		return vtypes.NewError(vtypes.KindPlayback, "failed to fetch artifact", err)
	}
	if len(pcm) == 0 {
		return vtypes.NewError(vtypes.KindPlayback, "artifact is empty", nil)
	}

	if err := p.ensureContext(); err != nil {
		return err
	}

	p.mu.Lock()
	player := p.otoCtx.NewPlayer(bytes.NewReader(pcm))
	player.SetVolume(p.volume)
	p.current = player
	p.paused = false
	p.mu.Unlock()

	player.Play()
	defer func() {
		p.mu.Lock()
		p.current = nil
		p.mu.Unlock()
		player.Close() //nolint:errcheck
	}()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.mu.Lock()
			playing := player.IsPlaying()
			paused := p.paused
			p.mu.Unlock()
			if !playing && !paused {
				return nil
			}
		}
	}
}

// Pause suspends the device player.
func (p *OtoPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	p.paused = true
	p.current.Pause()
	return nil
}

// Resume restarts a paused device player.
func (p *OtoPlayer) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	p.paused = false
	p.current.Play()
	return nil
}

// SetVolume applies to the active player and everything after it.
func (p *OtoPlayer) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
	if p.current != nil {
		p.current.SetVolume(v)
	}
}

func (p *OtoPlayer) ensureContext() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.otoCtx != nil {
		return nil
	}
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   p.sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return vtypes.NewError(vtypes.KindPlayback, "failed to open audio device", err)
	}
	<-ready
	p.otoCtx = otoCtx
	return nil
}

func (p *OtoPlayer) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artifact fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes))
}

var _ Player = (*OtoPlayer)(nil)
