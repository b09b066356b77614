// Package playback sequences finished audio artifacts: one active item
// at a time, highest priority first, FIFO among equals, advancing
// automatically when playback completes.
package playback

import (
	"container/heap"
	"context"
	"errors"
	"sync"

	"github.com/chatframe/voice/internal/vtypes"
)

// ErrClosed is returned when enqueueing on a closed manager.
var ErrClosed = errors.New("playback manager is closed")

// EventType identifies a playback state change.
type EventType int

const (
	// EventStarted fires when an item begins playing.
	EventStarted EventType = iota
	// EventFinished fires when the active item completes normally.
	EventFinished
	// EventSkipped fires when the active item fails and the manager
	// advances past it.
	EventSkipped
	// EventPaused and EventResumed track the active item only.
	EventPaused
	EventResumed
	// EventStopped fires when Stop discards the active item and queue.
	EventStopped
	// EventIdle fires when the queue drains.
	EventIdle
)

// Event is delivered to the notification callback on state changes.
type Event struct {
	Type          EventType
	CorrelationID string
	Err           *vtypes.Error
}

// Manager owns the playback queue and the active-item slot. The slot is
// mutated only by the internal scheduling loop, never by callers.
type Manager struct {
	player Player

	mu     sync.Mutex
	queue  itemHeap
	seq    uint64
	closed bool
	paused bool
	// cancelActive aborts the in-flight Play call. Set and cleared by
	// the scheduling loop.
	cancelActive context.CancelFunc
	activeID     string

	notify func(Event)
	wake   chan struct{}
	done   chan struct{}
	loopWG sync.WaitGroup
}

type item struct {
	result        *vtypes.SynthesisResult
	priority      int
	seq           uint64
	correlationID string
}

// NewManager starts the scheduling loop over the given player. The
// notify callback may be nil; it is invoked from the loop goroutine.
func NewManager(player Player, notify func(Event)) *Manager {
	m := &Manager{
		player: player,
		notify: notify,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	heap.Init(&m.queue)
	m.loopWG.Add(1)
	go m.run()
	return m
}

// Enqueue adds a finished artifact for playback. Higher priority plays
// sooner; equal priorities play in enqueue order.
func (m *Manager) Enqueue(result *vtypes.SynthesisResult, priority int, correlationID string) error {
	if result == nil {
		return errors.New("cannot enqueue nil result")
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.seq++
	heap.Push(&m.queue, &item{
		result:        result,
		priority:      priority,
		seq:           m.seq,
		correlationID: correlationID,
	})
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return nil
}

// Stop discards the active item and clears the queue. The manager keeps
// running and accepts new items.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.queue = m.queue[:0]
	cancel := m.cancelActive
	wasIdle := cancel == nil
	m.paused = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !wasIdle {
		m.emit(Event{Type: EventStopped})
	}
}

// Pause suspends the active item. Queue ordering is unaffected.
func (m *Manager) Pause() error {
	m.mu.Lock()
	if m.cancelActive == nil || m.paused {
		m.mu.Unlock()
		return nil
	}
	m.paused = true
	id := m.activeID
	m.mu.Unlock()

	if err := m.player.Pause(); err != nil {
		return err
	}
	m.emit(Event{Type: EventPaused, CorrelationID: id})
	return nil
}

// Resume continues a paused active item.
func (m *Manager) Resume() error {
	m.mu.Lock()
	if m.cancelActive == nil || !m.paused {
		m.mu.Unlock()
		return nil
	}
	m.paused = false
	id := m.activeID
	m.mu.Unlock()

	if err := m.player.Resume(); err != nil {
		return err
	}
	m.emit(Event{Type: EventResumed, CorrelationID: id})
	return nil
}

// SetVolume applies uniformly to whatever plays.
func (m *Manager) SetVolume(v float64) {
	m.player.SetVolume(v)
}

// Len returns the number of queued (not active) items.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// Close stops playback and shuts the scheduling loop down.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.queue = m.queue[:0]
	cancel := m.cancelActive
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	close(m.done)
	m.loopWG.Wait()
}

func (m *Manager) run() {
	defer m.loopWG.Done()
	for {
		next := m.pop()
		if next == nil {
			select {
			case <-m.done:
				return
			case <-m.wake:
				continue
			}
		}
		m.playItem(next)

		m.mu.Lock()
		empty := m.queue.Len() == 0
		m.mu.Unlock()
		if empty {
			m.emit(Event{Type: EventIdle})
		}
	}
}

func (m *Manager) pop() *item {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queue.Len() == 0 {
		return nil
	}
	return heap.Pop(&m.queue).(*item)
}

func (m *Manager) playItem(it *item) {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.cancelActive = cancel
	m.activeID = it.correlationID
	m.paused = false
	m.mu.Unlock()

	m.emit(Event{Type: EventStarted, CorrelationID: it.correlationID})
	err := m.player.Play(ctx, it.result)

	m.mu.Lock()
	m.cancelActive = nil
	m.activeID = ""
	m.mu.Unlock()
	cancel()

	switch {
	case err == nil:
		m.emit(Event{Type: EventFinished, CorrelationID: it.correlationID})
	case errors.Is(err, context.Canceled):
		// Stopped or closed; Stop already emitted its event.
	default:
		// A failed item is reported and skipped; the queue never stalls.
		ve := vtypes.Classify(err)
		if ve.Kind != vtypes.KindPlayback {
			ve = vtypes.NewError(vtypes.KindPlayback, err.Error(), err)
		}
		m.emit(Event{Type: EventSkipped, CorrelationID: it.correlationID, Err: ve})
	}
}

func (m *Manager) emit(ev Event) {
	if m.notify != nil {
		m.notify(ev)
	}
}

// itemHeap orders by priority (higher first), then enqueue sequence.
type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(*item)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}
