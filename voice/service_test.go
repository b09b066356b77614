package voice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chatframe/voice/internal/playback"
	"github.com/chatframe/voice/internal/vtypes"
)

func newTestService(t *testing.T, fp *fakeProvider, notify func(playback.Event)) *Service {
	t.Helper()
	svc, err := NewService(testConfig(), Options{
		Provider: fp,
		Player:   playback.NewMockPlayer(),
		Notify:   notify,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	t.Cleanup(func() { svc.Close() }) //nolint:errcheck
	return svc
}

// TestSpeakPlaysSynthesizedAudio tests the synthesize-then-enqueue path
// end to end against fakes.
func TestSpeakPlaysSynthesizedAudio(t *testing.T) {
	var mu sync.Mutex
	var finished []string
	idle := make(chan struct{}, 1)
	fp := newFakeProvider()
	svc := newTestService(t, fp, func(ev playback.Event) {
		switch ev.Type {
		case playback.EventFinished:
			mu.Lock()
			finished = append(finished, ev.CorrelationID)
			mu.Unlock()
		case playback.EventIdle:
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	})

	id, err := svc.Speak(context.Background(), "read this aloud", vtypes.DefaultVoiceSettings(), 1)
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if id == "" {
		t.Fatal("Speak() returned an empty correlation id")
	}

	select {
	case <-idle:
	case <-time.After(3 * time.Second):
		t.Fatal("playback never drained")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(finished) != 1 || finished[0] != id {
		t.Errorf("finished = %v, want the spoken correlation id %s", finished, id)
	}
}

// TestSpeakSurfacesSynthesisFailure tests that a failed synthesis never
// reaches the playback queue.
func TestSpeakSurfacesSynthesisFailure(t *testing.T) {
	fp := newFakeProvider()
	fp.synthErrs = []error{
		&vtypes.StatusError{Code: 401},
	}
	svc := newTestService(t, fp, nil)

	if _, err := svc.Speak(context.Background(), "never spoken", vtypes.DefaultVoiceSettings(), 0); err == nil {
		t.Fatal("Speak() succeeded, want failure")
	}
	if svc.QueueLen() != 0 {
		t.Errorf("QueueLen() = %d, want 0", svc.QueueLen())
	}
}

// TestServiceCacheStats tests that synthesis populates the cache counters.
func TestServiceCacheStats(t *testing.T) {
	fp := newFakeProvider()
	svc := newTestService(t, fp, nil)
	ctx := context.Background()

	if _, err := svc.Synthesize(ctx, "count me", vtypes.DefaultVoiceSettings()); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Synthesize(ctx, "count me", vtypes.DefaultVoiceSettings()); err != nil {
		t.Fatal(err)
	}

	stats := svc.CacheStats()
	if stats.Entries != 1 {
		t.Errorf("Entries = %d, want 1", stats.Entries)
	}
	if stats.Hits != 1 {
		t.Errorf("Hits = %d, want 1", stats.Hits)
	}
	if err := svc.ClearCache(); err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}
	if svc.CacheStats().Entries != 0 {
		t.Error("cache not empty after ClearCache")
	}
}

// TestServiceCaptureLifecycle tests capture control through the facade.
func TestServiceCaptureLifecycle(t *testing.T) {
	fp := newFakeProvider()
	svc := newTestService(t, fp, nil)

	if svc.CaptureState() != vtypes.CaptureIdle {
		t.Fatalf("initial capture state = %v", svc.CaptureState())
	}
	if err := svc.StartCapture(); err != nil {
		t.Fatalf("StartCapture() error = %v", err)
	}
	if svc.CaptureState() != vtypes.CaptureListening {
		t.Errorf("capture state = %v, want listening", svc.CaptureState())
	}
	svc.StopCapture()
	if svc.CaptureState() != vtypes.CaptureIdle {
		t.Errorf("capture state = %v, want idle", svc.CaptureState())
	}
}

// TestServiceHealthOptional tests that a backend without a health probe is
// treated as healthy.
func TestServiceHealthOptional(t *testing.T) {
	fp := newFakeProvider()
	svc := newTestService(t, fp, nil)
	if err := svc.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v, want nil for probe-less backend", err)
	}
}
