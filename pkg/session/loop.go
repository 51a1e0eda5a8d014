package session

import (
	"context"
	"time"
)

// Run is the control loop: a fixed-rate task that mirrors leader positions
// onto the follower and, while recording, appends each sampled frame to the
// active buffer. It runs until the context is cancelled. time.Ticker holds
// the long-run rate on the monotonic clock, so per-tick drift does not
// accumulate the way a fixed sleep would.
func (c *Controller) Run(ctx context.Context) error {
	c.logf("[INIT] control loop at %d Hz", c.hz)

	ticker := time.NewTicker(c.Tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.step(ctx)
		}
	}
}

// step runs one tick. A failed read or write is logged and the tick is
// skipped with the follower holding position; it is never fatal to the loop.
func (c *Controller) step(ctx context.Context) {
	if c.Mode() == Replay {
		// The player has exclusive ownership of the follower.
		return
	}

	frame, err := c.bus.ReadLeader(ctx)
	if err != nil {
		c.warnf("read leader: %v", err)
		c.sendState(State{Err: err, Mode: c.Mode(), Timestamp: time.Now()})
		return
	}

	// Replay may have started while the read was in flight. The mirror
	// write happens under the mutex: Replay() flips the mode under the same
	// lock, so a stale leader frame can never land on the follower once the
	// player owns it.
	c.mu.Lock()
	if c.mode == Replay {
		c.mu.Unlock()
		return
	}
	werr := c.bus.WriteFollower(ctx, frame)

	// Recording captures the just-sampled frame whether or not the follower
	// accepted it; the trajectory is the leader's motion.
	if c.rec != nil {
		c.rec.frames = append(c.rec.frames, frame.Clone())
	}
	mode := c.mode
	c.mu.Unlock()

	if werr != nil {
		c.warnf("write follower: %v", werr)
	}

	c.sendState(State{Frame: frame, Mode: mode, Timestamp: time.Now()})
}

// sendState publishes a snapshot, replacing a stale one if the console has
// not drained the channel.
func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		select {
		case <-c.stateCh:
		default:
		}
		c.stateCh <- s
	}
}
