// Package ratelimit bounds outbound synthesis requests with a trailing
// window of admission timestamps plus a burst ceiling.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter admits callers against a trailing window of admission
// timestamps. A caller proceeds immediately while the window occupancy is
// below the burst ceiling; otherwise it joins a FIFO queue and is released
// when old admissions leave the window and the occupancy drops below the
// per-minute ceiling. The limiter only delays, it never rejects; the only
// error Admit can return comes from the caller's context.
type Limiter struct {
	mu      sync.Mutex
	rpm     int
	burst   int
	window  time.Duration
	times   []time.Time
	waiters []*waiter
	timer   *time.Timer
}

type waiter struct {
	ready      chan struct{}
	admittedAt time.Time
}

// New creates a limiter with the given requests-per-minute and burst
// ceilings. The burst ceiling is clamped to [1, rpm].
func New(rpm, burst int) *Limiter {
	if rpm < 1 {
		rpm = 1
	}
	if burst < 1 {
		burst = 1
	}
	if burst > rpm {
		burst = rpm
	}
	return &Limiter{
		rpm:    rpm,
		burst:  burst,
		window: time.Minute,
	}
}

// Admit blocks until a slot is available, then reserves it by recording an
// admission timestamp. Waiting callers are served in arrival order.
func (l *Limiter) Admit(ctx context.Context) error {
	now := time.Now()

	l.mu.Lock()
	l.pruneLocked(now)
	if len(l.waiters) == 0 && len(l.times) < l.burst {
		l.times = append(l.times, now)
		l.mu.Unlock()
		return nil
	}

	w := &waiter{ready: make(chan struct{})}
	l.waiters = append(l.waiters, w)
	l.scheduleWakeLocked(now)
	l.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		select {
		case <-w.ready:
			// Released concurrently with cancellation. Roll the
			// reservation back so the unused slot is not charged
			// against the window.
			l.removeTimestampLocked(w.admittedAt)
			l.releaseLocked(time.Now())
		default:
			l.removeWaiterLocked(w)
		}
		l.mu.Unlock()
		return ctx.Err()
	}
}

// Stats describes the limiter's current occupancy.
type Stats struct {
	InWindow int // admissions inside the trailing window
	Waiting  int // callers queued for admission
}

// Stats returns a snapshot of the limiter state.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(time.Now())
	return Stats{InWindow: len(l.times), Waiting: len(l.waiters)}
}

// pruneLocked drops timestamps that have left the trailing window.
func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.times) && !l.times[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.times = append(l.times[:0], l.times[i:]...)
	}
}

// releaseLocked admits queued waiters, oldest first, while the window
// occupancy stays below the per-minute ceiling.
func (l *Limiter) releaseLocked(now time.Time) {
	l.pruneLocked(now)
	for len(l.waiters) > 0 && len(l.times) < l.rpm {
		w := l.waiters[0]
		l.waiters = l.waiters[1:]
		w.admittedAt = now
		l.times = append(l.times, now)
		close(w.ready)
	}
	if len(l.waiters) > 0 {
		l.scheduleWakeLocked(now)
	}
}

// scheduleWakeLocked arms the timer for the moment the oldest admission
// exits the window.
func (l *Limiter) scheduleWakeLocked(now time.Time) {
	if len(l.times) == 0 {
		// Nothing occupies the window, so waiters can go right away.
		l.releaseLocked(now)
		return
	}
	d := l.times[0].Add(l.window).Sub(now)
	if d < 0 {
		d = 0
	}
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(d, func() {
		l.mu.Lock()
		l.releaseLocked(time.Now())
		l.mu.Unlock()
	})
}

func (l *Limiter) removeWaiterLocked(w *waiter) {
	for i, cand := range l.waiters {
		if cand == w {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return
		}
	}
}

func (l *Limiter) removeTimestampLocked(t time.Time) {
	for i := len(l.times) - 1; i >= 0; i-- {
		if l.times[i].Equal(t) {
			l.times = append(l.times[:i], l.times[i+1:]...)
			return
		}
	}
}
