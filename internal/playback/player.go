package playback

import (
	"context"

	"github.com/chatframe/voice/internal/vtypes"
)

// Player renders one artifact at a time for the manager. Play blocks
// until the artifact finishes or ctx is cancelled; returning
// ctx.Err() on cancellation. Implementations must keep honoring ctx
// while paused.
type Player interface {
	Play(ctx context.Context, result *vtypes.SynthesisResult) error
	Pause() error
	Resume() error
	SetVolume(v float64)
}
