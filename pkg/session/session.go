// Package session owns the teleoperation mode state machine: live
// mirroring, recording, and replay of stored trajectories.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gwillem/lerobot-record/pkg/robot"
	"github.com/gwillem/lerobot-record/pkg/trajectory"
)

// Mode is the operating state. Exactly one is active at any instant.
type Mode int

const (
	// Teleop mirrors leader positions onto the follower every tick.
	Teleop Mode = iota
	// Record mirrors like Teleop and additionally captures each frame.
	Record
	// Replay suspends mirroring; the player owns the follower.
	Replay
)

func (m Mode) String() string {
	switch m {
	case Teleop:
		return "TELEOP"
	case Record:
		return "RECORD"
	case Replay:
		return "REPLAY"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Status returns the operator-facing status tag for the mode.
func (m Mode) Status() string {
	switch m {
	case Record:
		return "RECORDING"
	case Replay:
		return "REPLAY"
	}
	return "IDLE"
}

// State is one per-tick snapshot published to the console.
type State struct {
	Frame     robot.Frame
	Mode      Mode
	Timestamp time.Time
	Err       error
}

// recording is the transient capture state: an append-only frame buffer and
// its pre-allocated destination. Created by StartRecord, consumed by
// StopRecord, discarded by Close.
type recording struct {
	path   string
	frames []robot.Frame
}

// Config holds controller configuration.
type Config struct {
	Bus   robot.Bus
	Store *trajectory.Store
	// Hz is the control loop rate. Defaults to robot.DefaultHz (50).
	Hz int
	// Logger receives structured log records. The operator-facing stream
	// from Logs() is independent. Defaults to a discard logger.
	Logger *logrus.Logger
}

// Controller owns the mode state machine and the active recording buffer.
// Commands may be called from any goroutine; all shared state lives behind
// one mutex.
type Controller struct {
	bus   robot.Bus
	store *trajectory.Store
	hz    int
	log   *logrus.Entry

	mu           sync.Mutex
	mode         Mode
	rec          *recording
	lastSaved    string
	replayCancel context.CancelFunc
	replayDone   chan struct{}
	closed       bool

	stateCh chan State
	logCh   chan string
}

// NewController creates a controller over an open bus and store.
func NewController(cfg Config) *Controller {
	if cfg.Hz <= 0 {
		cfg.Hz = robot.DefaultHz
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &Controller{
		bus:     cfg.Bus,
		store:   cfg.Store,
		hz:      cfg.Hz,
		log:     logger.WithField("component", "session"),
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 10),
	}
}

// Hz returns the control frequency.
func (c *Controller) Hz() int {
	return c.hz
}

// Tick returns the control tick period.
func (c *Controller) Tick() time.Duration {
	return time.Second / time.Duration(c.hz)
}

// Mode returns the current operating mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Status returns the operator-facing status tag: IDLE, RECORDING or REPLAY.
func (c *Controller) Status() string {
	return c.Mode().Status()
}

// States returns the per-tick state stream for the console. Updates are
// dropped, newest kept, when the consumer lags.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns the operator-facing log stream.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// StartRecord begins capturing frames. Allowed only from Teleop; a no-op
// when already recording. The destination path is allocated up front so the
// operator sees the file name immediately.
func (c *Controller) StartRecord() {
	c.mu.Lock()
	switch c.mode {
	case Record:
		c.mu.Unlock()
		return
	case Replay:
		c.mu.Unlock()
		c.warnf("cannot record during replay")
		return
	}

	path, err := c.store.AllocatePath()
	if err != nil {
		c.mu.Unlock()
		c.warnf("allocate recording path: %v", err)
		return
	}
	c.rec = &recording{path: path}
	c.mode = Record
	c.mu.Unlock()

	c.logf("[RECORD] START -> %s", filepath.Base(path))
}

// StopRecord ends the capture. A non-empty buffer is persisted as one
// trajectory and becomes the implicit replay target; an empty buffer saves
// nothing. Warn-only no-op when not recording.
func (c *Controller) StopRecord() {
	c.mu.Lock()
	if c.mode != Record {
		c.mu.Unlock()
		c.warnf("not recording")
		return
	}
	rec := c.rec
	c.rec = nil
	c.mode = Teleop
	c.mu.Unlock()

	if len(rec.frames) == 0 {
		c.logf("[RECORD] STOP (no frames)")
		return
	}

	traj := &trajectory.Trajectory{Frames: rec.frames}
	if err := c.store.Save(rec.path, traj); err != nil {
		c.warnf("save recording: %v", err)
		return
	}

	c.mu.Lock()
	c.lastSaved = rec.path
	c.mu.Unlock()

	c.logf("[RECORD] SAVED %s (%d frames)", filepath.Base(rec.path), len(rec.frames))
}

// Replay resolves a target trajectory (the last-saved file if it still
// exists, else the lexicographically last recording) and plays it to the
// follower on a background goroutine. The call returns once playback has
// started; StopReplay cancels it. Rejected with a warning while recording.
func (c *Controller) Replay() {
	c.mu.Lock()
	if c.mode == Record {
		c.mu.Unlock()
		c.warnf("stop record before replay")
		return
	}
	if c.mode == Replay {
		c.mu.Unlock()
		c.warnf("replay already running")
		return
	}
	path := c.lastSaved
	c.mu.Unlock()

	if path == "" || !fileExists(path) {
		var err error
		path, err = c.store.Latest()
		if errors.Is(err, trajectory.ErrNoRecordings) {
			c.logf("[REPLAY] no recordings")
			return
		}
		if err != nil {
			c.warnf("resolve replay target: %v", err)
			return
		}
	}

	traj, err := c.store.Load(path)
	if err != nil {
		// A corrupt file aborts this attempt only; mode is unchanged.
		c.warnf("replay: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	// Mode may have moved while the trajectory was loading.
	if c.closed || c.mode != Teleop {
		c.mu.Unlock()
		cancel()
		return
	}
	c.mode = Replay
	c.lastSaved = path
	c.replayCancel = cancel
	c.replayDone = done
	c.mu.Unlock()

	c.logf("[REPLAY] %s (%d frames)", filepath.Base(path), traj.Len())

	player := &Player{Bus: c.bus, Tick: c.Tick()}
	go func() {
		defer close(done)
		err := player.Play(ctx, traj)

		c.mu.Lock()
		c.mode = Teleop
		c.replayCancel = nil
		c.replayDone = nil
		c.mu.Unlock()

		switch {
		case err == nil:
			c.logf("[REPLAY] DONE")
		case errors.Is(err, context.Canceled):
			c.logf("[REPLAY] cancelled")
		default:
			c.warnf("replay aborted: %v", err)
		}
	}()
}

// StopReplay cancels an in-flight playback and waits for the player to
// release the follower. No-op outside Replay mode.
func (c *Controller) StopReplay() {
	c.mu.Lock()
	cancel := c.replayCancel
	done := c.replayDone
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close is the quit command: cancels playback and discards any in-progress
// recording. Unsaved frames are never auto-saved; the discard is logged so
// the operator knows what was lost. The bus is left open for the caller to
// release and close.
func (c *Controller) Close() {
	c.StopReplay()

	c.mu.Lock()
	c.closed = true
	rec := c.rec
	c.rec = nil
	c.mode = Teleop
	c.mu.Unlock()

	if rec != nil && len(rec.frames) > 0 {
		c.warnf("quit during recording: %d unsaved frames discarded", len(rec.frames))
	}
	c.logf("[DONE] session closed")
}

// LastSaved returns the path of the most recently saved trajectory, or "".
func (c *Controller) LastSaved() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSaved
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// logf emits to the structured logger and the operator stream. The stream
// drops lines when the console lags rather than stalling the caller.
func (c *Controller) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.log.Info(msg)
	c.emit(msg)
}

func (c *Controller) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.log.Warn(msg)
	c.emit("[WARN] " + msg)
}

func (c *Controller) emit(msg string) {
	line := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg)
	select {
	case c.logCh <- line:
	default:
		// Drop if channel full
	}
}
