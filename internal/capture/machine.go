// Package capture turns microphone activity events into finalized text
// with silence-based auto-stop. The machine never touches an audio
// device itself; the capture primitive injects events, which makes the
// whole lifecycle testable without a microphone.
package capture

import (
	"sync"
	"time"

	"github.com/chatframe/voice/internal/vtypes"
)

// Callbacks receive machine output. Any field may be nil. Callbacks are
// invoked outside the machine's lock, so they may call back into it.
type Callbacks struct {
	OnTranscript func(text string)
	OnError      func(err *vtypes.Error)
	OnState      func(state vtypes.CaptureState)
}

// Machine is the speech-capture state machine: Idle → Listening →
// Finalizing → Idle, with a silence timer reset on every speech event.
// Only one session is active at a time.
type Machine struct {
	mu          sync.Mutex
	state       vtypes.CaptureState
	interim     string
	silence     time.Duration
	timer       *time.Timer
	gen         int // invalidates timers from superseded sessions
	unsupported *vtypes.Error

	cb Callbacks
}

// NewMachine creates the machine in Idle with the given silence timeout.
func NewMachine(silenceTimeout time.Duration, cb Callbacks) *Machine {
	return &Machine{
		state:   vtypes.CaptureIdle,
		silence: silenceTimeout,
		cb:      cb,
	}
}

// Start begins a capture session. Starting while Listening implicitly
// stops the previous session first, discarding its interim transcript.
// A device marked unsupported never enters Listening.
func (m *Machine) Start() error {
	m.mu.Lock()
	if m.unsupported != nil {
		err := m.unsupported
		m.mu.Unlock()
		m.emitError(err)
		return err
	}
	m.gen++
	m.interim = ""
	m.state = vtypes.CaptureListening
	m.armTimerLocked()
	m.mu.Unlock()

	m.emitState(vtypes.CaptureListening)
	return nil
}

// Interim records a partial speech segment and re-arms the silence timer.
// Ignored outside Listening.
func (m *Machine) Interim(text string) {
	m.mu.Lock()
	if m.state != vtypes.CaptureListening {
		m.mu.Unlock()
		return
	}
	m.interim = text
	m.armTimerLocked()
	m.mu.Unlock()
}

// Final consumes a final speech segment: the machine passes through
// Finalizing, emits the transcript, and returns to Idle.
func (m *Machine) Final(text string) {
	m.mu.Lock()
	if m.state != vtypes.CaptureListening {
		m.mu.Unlock()
		return
	}
	m.stopTimerLocked()
	m.state = vtypes.CaptureFinalizing
	m.interim = ""
	m.mu.Unlock()

	m.emitState(vtypes.CaptureFinalizing)
	if m.cb.OnTranscript != nil && text != "" {
		m.cb.OnTranscript(text)
	}

	m.mu.Lock()
	// A Start issued from the transcript callback supersedes this
	// session; leave its Listening state alone.
	if m.state == vtypes.CaptureFinalizing {
		m.state = vtypes.CaptureIdle
		m.mu.Unlock()
		m.emitState(vtypes.CaptureIdle)
		return
	}
	m.mu.Unlock()
}

// Stop forces the machine to Idle immediately, discarding any interim
// transcript.
func (m *Machine) Stop() {
	m.mu.Lock()
	if m.state == vtypes.CaptureIdle {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.stopTimerLocked()
	m.interim = ""
	m.state = vtypes.CaptureIdle
	m.mu.Unlock()

	m.emitState(vtypes.CaptureIdle)
}

// DeviceError reports a capture-unsupported or device-denied condition.
// The machine returns to Idle and refuses future sessions.
func (m *Machine) DeviceError(reason string) {
	err := vtypes.NewError(vtypes.KindCaptureUnsupported, reason, nil)

	m.mu.Lock()
	m.unsupported = err
	wasActive := m.state != vtypes.CaptureIdle
	m.gen++
	m.stopTimerLocked()
	m.interim = ""
	m.state = vtypes.CaptureIdle
	m.mu.Unlock()

	m.emitError(err)
	if wasActive {
		m.emitState(vtypes.CaptureIdle)
	}
}

// State returns the current state.
func (m *Machine) State() vtypes.CaptureState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// InterimTranscript returns the accumulated interim text.
func (m *Machine) InterimTranscript() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interim
}

// armTimerLocked (re)arms the silence timer for the current session.
func (m *Machine) armTimerLocked() {
	m.stopTimerLocked()
	if m.silence <= 0 {
		return
	}
	gen := m.gen
	m.timer = time.AfterFunc(m.silence, func() { m.silenceExpired(gen) })
}

func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// silenceExpired forces Listening → Idle with no transcript.
func (m *Machine) silenceExpired(gen int) {
	m.mu.Lock()
	if gen != m.gen || m.state != vtypes.CaptureListening {
		m.mu.Unlock()
		return
	}
	m.interim = ""
	m.state = vtypes.CaptureIdle
	m.mu.Unlock()

	m.emitState(vtypes.CaptureIdle)
}

func (m *Machine) emitState(s vtypes.CaptureState) {
	if m.cb.OnState != nil {
		m.cb.OnState(s)
	}
}

func (m *Machine) emitError(err *vtypes.Error) {
	if m.cb.OnError != nil {
		m.cb.OnError(err)
	}
}
