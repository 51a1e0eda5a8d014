package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gwillem/lerobot-record/pkg/robot"
	"github.com/gwillem/lerobot-record/pkg/trajectory"
)

// fakeBus is a scripted joint bus: ReadLeader returns a counter-stamped
// frame, WriteFollower records every frame it is handed. Either side can be
// made to fail.
type fakeBus struct {
	mu       sync.Mutex
	reads    int
	writes   []robot.Frame
	readErr  error
	writeErr error
	// failWriteAt fails the write whose ordinal (1-based) matches, once set.
	failWriteAt int
	// readDelay stalls ReadLeader before it produces a frame, outside the
	// bus lock so concurrent writes proceed, like real blocking serial I/O.
	readDelay time.Duration
}

func (b *fakeBus) ReadLeader(ctx context.Context) (robot.Frame, error) {
	b.mu.Lock()
	delay := b.readDelay
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readErr != nil {
		return nil, b.readErr
	}
	b.reads++
	frame := make(robot.Frame, robot.NumJoints)
	for i := range frame {
		frame[i] = int32(b.reads*10 + i)
	}
	return frame, nil
}

func (b *fakeBus) WriteFollower(ctx context.Context, frame robot.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	if b.failWriteAt > 0 && len(b.writes)+1 == b.failWriteAt {
		return robot.ErrWriteFault
	}
	b.writes = append(b.writes, frame.Clone())
	return nil
}

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) writeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.writes)
}

func newTestController(t *testing.T) (*Controller, *fakeBus, *trajectory.Store) {
	t.Helper()
	store, err := trajectory.NewStore(t.TempDir())
	require.NoError(t, err)
	bus := &fakeBus{}
	// 500 Hz keeps replay-timing tests fast.
	c := NewController(Config{Bus: bus, Store: store, Hz: 500})
	return c, bus, store
}

// drainLogs returns all currently buffered operator log lines.
func drainLogs(c *Controller) []string {
	var lines []string
	for {
		select {
		case line := <-c.Logs():
			lines = append(lines, line)
		default:
			return lines
		}
	}
}

func countWarns(lines []string) int {
	n := 0
	for _, l := range lines {
		if strings.Contains(l, "[WARN]") {
			n++
		}
	}
	return n
}

func waitForMode(t *testing.T, c *Controller, m Mode) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Mode() == m },
		2*time.Second, time.Millisecond)
}

func TestRecordReplayScenario(t *testing.T) {
	c, bus, store := newTestController(t)
	ctx := context.Background()

	require.Equal(t, "IDLE", c.Status())

	c.StartRecord()
	require.Equal(t, Record, c.Mode())
	require.Equal(t, "RECORDING", c.Status())

	// Drive 50 ticks deterministically.
	for i := 0; i < 50; i++ {
		c.step(ctx)
	}
	require.Equal(t, 50, bus.writeCount(), "mirroring continues while recording")

	c.StopRecord()
	require.Equal(t, Teleop, c.Mode())
	require.Equal(t, "IDLE", c.Status())

	path, err := store.Latest()
	require.NoError(t, err)
	require.Equal(t, "raw_000", filepath.Base(path))
	traj, err := store.Load(path)
	require.NoError(t, err)
	require.Equal(t, 50, traj.Len())

	// Replay issues exactly the recorded number of follower writes and
	// returns the session to Teleop/IDLE.
	before := bus.writeCount()
	c.Replay()
	require.Equal(t, Replay, c.Mode())
	waitForMode(t, c, Teleop)
	require.Equal(t, 50, bus.writeCount()-before)
	require.Equal(t, "IDLE", c.Status())
}

func TestStartRecordIdempotent(t *testing.T) {
	c, _, store := newTestController(t)
	ctx := context.Background()

	c.StartRecord()
	first := c.rec.path
	c.step(ctx)
	c.StartRecord() // no second allocation, buffer kept
	require.Equal(t, first, c.rec.path)
	require.Len(t, c.rec.frames, 1)

	c.StopRecord()
	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "raw_000", entries[0].Name)
}

func TestStopRecordWithoutRecording(t *testing.T) {
	c, _, store := newTestController(t)
	drainLogs(c)

	c.StopRecord()
	require.Equal(t, Teleop, c.Mode())

	lines := drainLogs(c)
	require.Equal(t, 1, countWarns(lines), "exactly one warn line: %v", lines)

	entries, err := store.List()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestStopRecordEmptyBufferSavesNothing(t *testing.T) {
	c, _, store := newTestController(t)
	drainLogs(c)

	c.StartRecord()
	c.StopRecord() // zero frames captured

	entries, err := store.List()
	require.NoError(t, err)
	require.Empty(t, entries, "empty recording must not be persisted")

	lines := drainLogs(c)
	require.Zero(t, countWarns(lines), "empty recording is a no-op, not an error")
	require.Contains(t, strings.Join(lines, "\n"), "no frames")
	require.Empty(t, c.LastSaved())
}

func TestReplayWhileRecordingRejected(t *testing.T) {
	c, bus, _ := newTestController(t)
	ctx := context.Background()

	c.StartRecord()
	c.step(ctx)
	drainLogs(c)
	before := bus.writeCount()

	c.Replay()
	require.Equal(t, Record, c.Mode(), "mode unchanged")
	require.Equal(t, before, bus.writeCount())
	require.Equal(t, 1, countWarns(drainLogs(c)))
}

func TestReplayNoRecordings(t *testing.T) {
	c, bus, _ := newTestController(t)
	drainLogs(c)

	c.Replay()
	require.Equal(t, Teleop, c.Mode(), "mode unchanged")
	require.Zero(t, bus.writeCount())

	lines := drainLogs(c)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "no recordings")
}

func TestReplayFallsBackToLatestFile(t *testing.T) {
	c, bus, store := newTestController(t)

	// Two recordings on disk, but no in-memory last-saved reference.
	for i := 1; i <= 2; i++ {
		path, err := store.AllocatePath()
		require.NoError(t, err)
		traj := &trajectory.Trajectory{Frames: make([]robot.Frame, i)}
		for j := range traj.Frames {
			traj.Frames[j] = make(robot.Frame, robot.NumJoints)
		}
		require.NoError(t, store.Save(path, traj))
	}

	c.Replay()
	waitForMode(t, c, Teleop)
	require.Equal(t, 2, bus.writeCount(), "lexicographically last file wins")
	require.Equal(t, "raw_001", filepath.Base(c.LastSaved()))
}

func TestReplayLastSavedDeletedOnDisk(t *testing.T) {
	c, bus, _ := newTestController(t)
	ctx := context.Background()

	c.StartRecord()
	c.step(ctx)
	c.StopRecord()
	require.NoError(t, os.Remove(c.LastSaved()))
	bus.mu.Lock()
	bus.writes = nil
	bus.mu.Unlock()
	drainLogs(c)

	c.Replay()
	require.Equal(t, Teleop, c.Mode())
	require.Zero(t, bus.writeCount())
	require.Contains(t, strings.Join(drainLogs(c), "\n"), "no recordings")
}

func TestReplayCorruptFileAbortsAttemptOnly(t *testing.T) {
	c, bus, store := newTestController(t)

	path := filepath.Join(store.Dir(), "raw_000")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))
	drainLogs(c)

	c.Replay()
	require.Equal(t, Teleop, c.Mode())
	require.Zero(t, bus.writeCount())
	require.Equal(t, 1, countWarns(drainLogs(c)))

	// The controller still works afterwards.
	c.StartRecord()
	require.Equal(t, Record, c.Mode())
}

func TestStopReplayCancels(t *testing.T) {
	c, bus, store := newTestController(t)

	frames := make([]robot.Frame, 200)
	for i := range frames {
		frames[i] = make(robot.Frame, robot.NumJoints)
	}
	path, err := store.AllocatePath()
	require.NoError(t, err)
	require.NoError(t, store.Save(path, &trajectory.Trajectory{Frames: frames}))

	c.Replay()
	require.Equal(t, Replay, c.Mode())
	time.Sleep(10 * time.Millisecond)
	c.StopReplay()

	require.Equal(t, Teleop, c.Mode())
	require.Less(t, bus.writeCount(), 200, "cancellation stops mid-sequence")
}

func TestReplayStartDropsInFlightTick(t *testing.T) {
	c, bus, store := newTestController(t)
	ctx := context.Background()

	// Stored frames carry a marker value so follower writes can be
	// attributed: anything below 1000 came from the leader.
	frames := make([]robot.Frame, 100)
	for i := range frames {
		f := make(robot.Frame, robot.NumJoints)
		for j := range f {
			f[j] = int32(1000 + i)
		}
		frames[i] = f
	}
	path, err := store.AllocatePath()
	require.NoError(t, err)
	require.NoError(t, store.Save(path, &trajectory.Trajectory{Frames: frames}))

	// One tick whose leader read straddles the replay command.
	bus.mu.Lock()
	bus.readDelay = 50 * time.Millisecond
	bus.mu.Unlock()

	stepDone := make(chan struct{})
	go func() {
		defer close(stepDone)
		c.step(ctx)
	}()

	time.Sleep(10 * time.Millisecond) // read now in flight
	c.Replay()
	require.Equal(t, Replay, c.Mode())
	<-stepDone
	waitForMode(t, c, Teleop)

	// The player had exclusive ownership of the follower: every write is a
	// stored frame, the stale leader frame from the straddling tick was
	// dropped.
	bus.mu.Lock()
	defer bus.mu.Unlock()
	require.Len(t, bus.writes, 100)
	for i, w := range bus.writes {
		require.GreaterOrEqual(t, w[0], int32(1000), "write %d is not a stored frame", i)
	}
}

func TestStepYieldsDuringReplay(t *testing.T) {
	c, bus, _ := newTestController(t)
	ctx := context.Background()

	c.mu.Lock()
	c.mode = Replay
	c.mu.Unlock()

	c.step(ctx)
	require.Zero(t, bus.writeCount(), "loop must not touch the follower during replay")
	bus.mu.Lock()
	reads := bus.reads
	bus.mu.Unlock()
	require.Zero(t, reads)
}

func TestStepReadFaultSkipsTick(t *testing.T) {
	c, bus, _ := newTestController(t)
	ctx := context.Background()
	drainLogs(c)

	c.StartRecord()
	bus.mu.Lock()
	bus.readErr = robot.ErrReadFault
	bus.mu.Unlock()

	c.step(ctx)
	require.Zero(t, bus.writeCount(), "failed read holds position")
	require.Empty(t, c.rec.frames, "no frame captured on a skipped tick")
	require.Equal(t, Record, c.Mode(), "fault is never fatal")

	// Recovery on the next tick.
	bus.mu.Lock()
	bus.readErr = nil
	bus.mu.Unlock()
	c.step(ctx)
	require.Equal(t, 1, bus.writeCount())
	require.Len(t, c.rec.frames, 1)
}

func TestStepWriteFaultStillCapturesFrame(t *testing.T) {
	c, bus, _ := newTestController(t)
	ctx := context.Background()

	c.StartRecord()
	bus.mu.Lock()
	bus.writeErr = robot.ErrWriteFault
	bus.mu.Unlock()

	c.step(ctx)
	require.Len(t, c.rec.frames, 1, "trajectory records the leader's motion")
}

func TestCloseDiscardsRecording(t *testing.T) {
	c, _, store := newTestController(t)
	ctx := context.Background()

	c.StartRecord()
	for i := 0; i < 5; i++ {
		c.step(ctx)
	}
	drainLogs(c)
	c.Close()

	entries, err := store.List()
	require.NoError(t, err)
	require.Empty(t, entries, "quit never auto-saves")

	lines := strings.Join(drainLogs(c), "\n")
	require.Contains(t, lines, "discarded", "data loss is flagged, not silent")
}

func TestRunLoopMirrorsAtRate(t *testing.T) {
	c, bus, _ := newTestController(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return bus.writeCount() >= 10 },
		2*time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
