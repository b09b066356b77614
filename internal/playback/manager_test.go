package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/chatframe/voice/internal/vtypes"
)

func artifact(url string) *vtypes.SynthesisResult {
	return &vtypes.SynthesisResult{AudioURL: url, Duration: time.Second}
}

// eventRecorder collects manager events and lets tests wait for specific
// ones.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
	idle   chan struct{}
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{idle: make(chan struct{}, 4)}
}

func (r *eventRecorder) notify(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	if ev.Type == EventIdle {
		select {
		case r.idle <- struct{}{}:
		default:
		}
	}
}

func (r *eventRecorder) waitIdle(t *testing.T) {
	t.Helper()
	select {
	case <-r.idle:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the queue to drain")
	}
}

func (r *eventRecorder) ofType(typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// TestPriorityOrdering tests that higher priorities play first and equal
// priorities play in enqueue order.
func TestPriorityOrdering(t *testing.T) {
	player := NewMockPlayer()
	player.PlayDuration = 20 * time.Millisecond
	rec := newEventRecorder()
	m := NewManager(player, rec.notify)
	defer m.Close()

	// The blocker occupies the player while the real items queue up.
	if err := m.Enqueue(artifact("blocker"), 100, "blk"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	for _, it := range []struct {
		url      string
		priority int
	}{
		{"low", 1},
		{"high-a", 3},
		{"mid", 2},
		{"high-b", 3},
	} {
		if err := m.Enqueue(artifact(it.url), it.priority, it.url); err != nil {
			t.Fatal(err)
		}
	}

	rec.waitIdle(t)

	want := []string{"blocker", "high-a", "high-b", "mid", "low"}
	got := player.Played()
	if len(got) != len(want) {
		t.Fatalf("played %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("played %v, want %v", got, want)
		}
	}
}

// TestFailedItemIsSkipped tests that a playback failure emits a skip event
// and the queue advances.
func TestFailedItemIsSkipped(t *testing.T) {
	player := NewMockPlayer()
	player.FailURLs["bad"] = true
	rec := newEventRecorder()
	m := NewManager(player, rec.notify)
	defer m.Close()

	if err := m.Enqueue(artifact("bad"), 2, "c1"); err != nil {
		t.Fatal(err)
	}
	if err := m.Enqueue(artifact("good"), 1, "c2"); err != nil {
		t.Fatal(err)
	}
	rec.waitIdle(t)

	skipped := rec.ofType(EventSkipped)
	if len(skipped) != 1 {
		t.Fatalf("skip events = %d, want 1", len(skipped))
	}
	if skipped[0].CorrelationID != "c1" {
		t.Errorf("skipped id = %s, want c1", skipped[0].CorrelationID)
	}
	if skipped[0].Err == nil || skipped[0].Err.Kind != vtypes.KindPlayback {
		t.Errorf("skip error = %v, want playback kind", skipped[0].Err)
	}

	finished := rec.ofType(EventFinished)
	if len(finished) != 1 || finished[0].CorrelationID != "c2" {
		t.Errorf("finished events = %v, want only c2", finished)
	}
}

// TestStopClearsQueue tests that Stop cancels the active item and empties
// the queue.
func TestStopClearsQueue(t *testing.T) {
	player := NewMockPlayer()
	player.PlayDuration = 5 * time.Second
	rec := newEventRecorder()
	m := NewManager(player, rec.notify)
	defer m.Close()

	if err := m.Enqueue(artifact("active"), 1, "a"); err != nil {
		t.Fatal(err)
	}
	if err := m.Enqueue(artifact("queued"), 1, "q"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	m.Stop()
	rec.waitIdle(t)

	if got := player.Played(); len(got) != 1 || got[0] != "active" {
		t.Errorf("played %v, want only the active item", got)
	}
	if len(rec.ofType(EventStopped)) != 1 {
		t.Error("expected a stopped event")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after Stop, want 0", m.Len())
	}
}

// TestStopWhenIdleIsSilent tests that Stop on an idle manager emits nothing.
func TestStopWhenIdleIsSilent(t *testing.T) {
	rec := newEventRecorder()
	m := NewManager(NewMockPlayer(), rec.notify)
	defer m.Close()

	m.Stop()
	if got := rec.ofType(EventStopped); len(got) != 0 {
		t.Errorf("stopped events = %d, want 0", len(got))
	}
}

// TestPauseResume tests pause and resume event flow around an active item.
func TestPauseResume(t *testing.T) {
	player := NewMockPlayer()
	player.PlayDuration = 50 * time.Millisecond
	rec := newEventRecorder()
	m := NewManager(player, rec.notify)
	defer m.Close()

	if err := m.Enqueue(artifact("x"), 1, "cid"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	if err := m.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	// A second pause is a no-op.
	if err := m.Pause(); err != nil {
		t.Fatalf("second Pause() error = %v", err)
	}
	if err := m.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	rec.waitIdle(t)

	if got := rec.ofType(EventPaused); len(got) != 1 {
		t.Errorf("paused events = %d, want 1", len(got))
	}
	if got := rec.ofType(EventResumed); len(got) != 1 {
		t.Errorf("resumed events = %d, want 1", len(got))
	}
}

// TestPauseWhenIdle tests that pausing without an active item is a no-op.
func TestPauseWhenIdle(t *testing.T) {
	rec := newEventRecorder()
	m := NewManager(NewMockPlayer(), rec.notify)
	defer m.Close()

	if err := m.Pause(); err != nil {
		t.Errorf("Pause() when idle error = %v", err)
	}
	if got := rec.ofType(EventPaused); len(got) != 0 {
		t.Errorf("paused events = %d, want 0", len(got))
	}
}

// TestEnqueueAfterClose tests the closed-manager error path.
func TestEnqueueAfterClose(t *testing.T) {
	m := NewManager(NewMockPlayer(), nil)
	m.Close()

	if err := m.Enqueue(artifact("x"), 0, ""); err != ErrClosed {
		t.Errorf("Enqueue() after Close = %v, want ErrClosed", err)
	}
	// Closing again is safe.
	m.Close()
}
