package session

import (
	"context"
	"time"

	"github.com/gwillem/lerobot-record/pkg/robot"
	"github.com/gwillem/lerobot-record/pkg/trajectory"
)

// Player plays a loaded trajectory back to the follower at a fixed cadence:
// one frame per tick, so playback takes about one tick per frame.
// Cancellation is checked once per tick via the context.
type Player struct {
	Bus  robot.Bus
	Tick time.Duration
}

// Play writes each frame in order, waiting one tick period after each
// write. An empty trajectory completes immediately with zero writes. A
// write fault ends the sequence early; frames already sent are not rolled
// back.
func (p *Player) Play(ctx context.Context, traj *trajectory.Trajectory) error {
	if traj.Len() == 0 {
		return nil
	}

	ticker := time.NewTicker(p.Tick)
	defer ticker.Stop()

	for _, frame := range traj.Frames {
		if err := p.Bus.WriteFollower(ctx, frame); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
