// Package vtypes contains shared types for the voice synthesis pipeline.
// It exists to break import cycles between the orchestration layer and
// the component packages.
package vtypes

import "time"

// VoiceSettings holds the tunable synthesis parameters.
type VoiceSettings struct {
	Expressiveness float64 `json:"expressiveness"`  // 0.0 (flat) to 1.0 (dramatic)
	GuidanceWeight float64 `json:"guidance_weight"` // 0.0 to 1.0
	Speed          float64 `json:"speed"`           // 0.5 to 2.0, 1.0 = normal
	VoiceProfile   string  `json:"voice_profile,omitempty"`
}

// DefaultVoiceSettings returns the settings used when the caller does not care.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Expressiveness: 0.5,
		GuidanceWeight: 0.5,
		Speed:          1.0,
	}
}

// Clamped returns a copy with every parameter forced into its valid range.
func (s VoiceSettings) Clamped() VoiceSettings {
	s.Expressiveness = clamp(s.Expressiveness, 0.0, 1.0)
	s.GuidanceWeight = clamp(s.GuidanceWeight, 0.0, 1.0)
	s.Speed = clamp(s.Speed, 0.5, 2.0)
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SynthesisRequest is an immutable request for one synthesized utterance.
// Text is expected to be normalized and length-capped before construction.
type SynthesisRequest struct {
	Text          string
	Settings      VoiceSettings
	CorrelationID string
}

// SynthesisResult describes a finished audio artifact. It is produced at
// most once per request and treated as read-only afterwards.
type SynthesisResult struct {
	AudioURL   string        `json:"audio_url"`
	Duration   time.Duration `json:"duration"`
	SampleRate int           `json:"sample_rate,omitempty"`
	ExecTime   time.Duration `json:"exec_time,omitempty"`
}

// JobStatus is the state of an asynchronous synthesis job at the provider.
type JobStatus string

// Provider job states. COMPLETED, FAILED, CANCELLED and TIMED_OUT are
// terminal.
const (
	JobInQueue    JobStatus = "IN_QUEUE"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
	JobCancelled  JobStatus = "CANCELLED"
	JobTimedOut   JobStatus = "TIMED_OUT"
)

// Terminal reports whether the status ends the poll loop.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled, JobTimedOut:
		return true
	}
	return false
}

// JobUpdate is one observation of an asynchronous job. Result is set only
// when the status is COMPLETED.
type JobUpdate struct {
	Status  JobStatus
	Result  *SynthesisResult
	Message string
}

// CaptureState is the state of the speech capture session.
type CaptureState int

const (
	// CaptureIdle means no capture session is active.
	CaptureIdle CaptureState = iota
	// CaptureListening means the microphone is live and the silence timer armed.
	CaptureListening
	// CaptureFinalizing means a final segment arrived and the transcript is
	// being emitted.
	CaptureFinalizing
)

// String returns the lowercase name of the state.
func (s CaptureState) String() string {
	switch s {
	case CaptureIdle:
		return "idle"
	case CaptureListening:
		return "listening"
	case CaptureFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}
