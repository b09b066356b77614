package voice

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	homedir "github.com/mitchellh/go-homedir"

	"github.com/chatframe/voice/internal/cache"
	"github.com/chatframe/voice/internal/capture"
	"github.com/chatframe/voice/internal/playback"
	"github.com/chatframe/voice/internal/provider"
	"github.com/chatframe/voice/internal/vtypes"
)

// Options holds the injectable collaborators of a Service. Every field is
// optional; zero values select the production implementation.
type Options struct {
	// Provider overrides the HTTP synthesis backend.
	Provider Provider
	// Player overrides the audio output device.
	Player playback.Player
	// Store overrides the cache backing store. Ignored when CacheDir is
	// set in the config.
	Store cache.Store
	// Logger receives structured diagnostics. Defaults to a silent logger.
	Logger *log.Logger
	// Notify receives playback lifecycle events.
	Notify func(playback.Event)
	// Capture wires speech capture callbacks.
	Capture capture.Callbacks
}

// Service is the facade over the whole voice pipeline: synthesis with
// caching and admission control, prioritized playback, and speech capture.
// One Service per conversation surface; all methods are safe for
// concurrent use.
type Service struct {
	cfg      Config
	logger   *log.Logger
	client   *Client
	cache    *cache.Cache
	playback *playback.Manager
	capture  *capture.Machine
	provider Provider
	store    cache.Store
}

// NewService assembles a Service from configuration and options.
func NewService(cfg Config, opts Options) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	store := opts.Store
	if cfg.CacheDir != "" {
		dir, err := homedir.Expand(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to expand cache dir: %w", err)
		}
		ds, err := cache.NewDiskStore(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache dir: %w", err)
		}
		store = ds
	}

	// CacheMaxBytes of zero turns caching off entirely.
	var audioCache *cache.Cache
	if cfg.CacheMaxBytes > 0 {
		var err error
		audioCache, err = cache.New(cache.Config{
			MaxBytes:       cfg.CacheMaxBytes,
			TTL:            cfg.CacheTTL,
			BytesPerSecond: cfg.BytesPerSecond,
		}, store)
		if err != nil {
			return nil, fmt.Errorf("failed to build audio cache: %w", err)
		}
	}

	prov := opts.Provider
	if prov == nil {
		prov = provider.New(cfg.ProviderURL, cfg.ProviderKey, cfg.RequestTimeout)
	}

	player := opts.Player
	if player == nil {
		player = playback.NewOtoPlayer(cfg.SampleRate)
	}
	player.SetVolume(cfg.Volume)

	s := &Service{
		cfg:      cfg,
		logger:   logger,
		client:   NewClient(cfg, prov, audioCache, logger),
		cache:    audioCache,
		playback: playback.NewManager(player, opts.Notify),
		capture:  capture.NewMachine(cfg.SilenceTimeout, opts.Capture),
		provider: prov,
		store:    store,
	}
	return s, nil
}

// Synthesize produces audio for text without playing it.
func (s *Service) Synthesize(ctx context.Context, text string, settings vtypes.VoiceSettings) (*vtypes.SynthesisResult, error) {
	return s.client.Synthesize(ctx, text, settings, "")
}

// Speak synthesizes text and enqueues the result for playback. It returns
// the correlation id, usable with Cancel, once the audio is queued.
func (s *Service) Speak(ctx context.Context, text string, settings vtypes.VoiceSettings, priority int) (string, error) {
	correlationID := uuid.NewString()
	result, err := s.client.Synthesize(ctx, text, settings, correlationID)
	if err != nil {
		return correlationID, err
	}
	if err := s.playback.Enqueue(result, priority, correlationID); err != nil {
		return correlationID, vtypes.NewError(vtypes.KindPlayback, "failed to enqueue audio", err)
	}
	return correlationID, nil
}

// EnqueuePlayback queues an already-synthesized artifact.
func (s *Service) EnqueuePlayback(result *vtypes.SynthesisResult, priority int, correlationID string) error {
	return s.playback.Enqueue(result, priority, correlationID)
}

// Cancel aborts the in-flight synthesis for a correlation id.
func (s *Service) Cancel(correlationID string) bool {
	return s.client.Cancel(correlationID)
}

// Stop halts the active utterance and clears the playback queue.
func (s *Service) Stop() { s.playback.Stop() }

// Pause suspends the active utterance.
func (s *Service) Pause() error { return s.playback.Pause() }

// Resume continues a paused utterance.
func (s *Service) Resume() error { return s.playback.Resume() }

// SetVolume adjusts output volume in [0.0, 1.0].
func (s *Service) SetVolume(v float64) { s.playback.SetVolume(v) }

// QueueLen reports how many utterances are waiting to play.
func (s *Service) QueueLen() int { return s.playback.Len() }

// StartCapture opens a speech capture session.
func (s *Service) StartCapture() error { return s.capture.Start() }

// StopCapture ends the capture session, discarding any interim transcript.
func (s *Service) StopCapture() { s.capture.Stop() }

// Capture exposes the capture state machine so transport adapters can feed
// interim and final segments into it.
func (s *Service) Capture() *capture.Machine { return s.capture }

// CaptureState reports the current capture session state.
func (s *Service) CaptureState() vtypes.CaptureState { return s.capture.State() }

// Health probes the provider, when the backend supports it.
func (s *Service) Health(ctx context.Context) error {
	if hc, ok := s.provider.(interface{ Health(context.Context) error }); ok {
		return hc.Health(ctx)
	}
	return nil
}

// CacheStats reports audio cache occupancy and hit counters.
func (s *Service) CacheStats() cache.Stats {
	if s.cache == nil {
		return cache.Stats{}
	}
	return s.cache.Stats()
}

// ClearCache drops every cached artifact.
func (s *Service) ClearCache() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear()
}

// Close releases the playback loop and any disk-backed cache store.
func (s *Service) Close() error {
	s.playback.Close()
	s.capture.Stop()
	if closer, ok := s.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
