package robot

import (
	"context"
	"fmt"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// Bus is the joint bus: read one frame from the leader arm, write one frame
// to the follower arm. Both calls are blocking and must complete (or fail)
// within one control tick; the bus never retries. Retry policy belongs to
// the caller.
type Bus interface {
	ReadLeader(ctx context.Context) (Frame, error)
	WriteFollower(ctx context.Context, frame Frame) error
	Close() error
}

// SerialBus owns the two serial connections: leader (read-only) and
// follower (write-only). The follower side may stand alone for replay.
type SerialBus struct {
	leader        *feetech.Bus
	leaderGroup   *feetech.ServoGroup
	follower      *feetech.Bus
	followerGroup *feetech.ServoGroup
}

// Open connects to both arms. Either port failing to open is fatal.
func Open(cfg *Config) (*SerialBus, error) {
	b := &SerialBus{}

	var err error
	b.leader, b.leaderGroup, err = openArm(cfg.Leader.Port, cfg.BaudRate)
	if err != nil {
		return nil, fmt.Errorf("leader: %w", err)
	}

	b.follower, b.followerGroup, err = openArm(cfg.Follower.Port, cfg.BaudRate)
	if err != nil {
		b.leader.Close()
		return nil, fmt.Errorf("follower: %w", err)
	}

	return b, nil
}

// OpenFollower connects to the follower arm only. Used for replaying a
// stored trajectory without a live leader present; ReadLeader fails.
func OpenFollower(cfg *Config) (*SerialBus, error) {
	b := &SerialBus{}

	var err error
	b.follower, b.followerGroup, err = openArm(cfg.Follower.Port, cfg.BaudRate)
	if err != nil {
		return nil, fmt.Errorf("follower: %w", err)
	}

	return b, nil
}

func openArm(port string, baud int) (*feetech.Bus, *feetech.ServoGroup, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: baud,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open %s: %v", ErrPortUnavailable, port, err)
	}
	group := feetech.NewServoGroupByIDs(bus, JointIDs()...)
	return bus, group, nil
}

// Close closes both connections.
func (b *SerialBus) Close() error {
	var errs []error
	if b.leader != nil {
		if err := b.leader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.follower != nil {
		if err := b.follower.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// ReadLeader reads the current position of every leader joint as one frame,
// using sync read. Any joint missing from the response fails the whole read.
func (b *SerialBus) ReadLeader(ctx context.Context) (Frame, error) {
	if b.leaderGroup == nil {
		return nil, fmt.Errorf("%w: no leader connection", ErrReadFault)
	}

	raw, err := b.leaderGroup.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFault, err)
	}

	frame := make(Frame, NumJoints)
	for i, id := range JointIDs() {
		pos, ok := raw[id]
		if !ok {
			return nil, fmt.Errorf("%w: no reading for servo %d", ErrReadFault, id)
		}
		frame[i] = int32(pos)
	}
	return frame, nil
}

// WriteFollower commands every follower joint to the frame's position,
// using sync write.
func (b *SerialBus) WriteFollower(ctx context.Context, frame Frame) error {
	if len(frame) != NumJoints {
		return fmt.Errorf("%w: frame has %d joints, want %d", ErrWriteFault, len(frame), NumJoints)
	}

	positions := make(feetech.PositionMap, NumJoints)
	for i, id := range JointIDs() {
		positions[id] = int(frame[i])
	}

	if err := b.followerGroup.SetPositions(ctx, positions); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFault, err)
	}
	return nil
}

// PrepareTeleop puts the arms into mirroring posture: leader torque off so
// it can be moved by hand, follower torque on so it tracks.
func (b *SerialBus) PrepareTeleop(ctx context.Context) error {
	if b.leaderGroup != nil {
		if err := b.leaderGroup.DisableAll(ctx); err != nil {
			return fmt.Errorf("disable leader torque: %w", err)
		}
	}
	return b.EnableFollower(ctx)
}

// EnableFollower enables torque on the follower only. Sufficient for replay.
func (b *SerialBus) EnableFollower(ctx context.Context) error {
	if err := b.followerGroup.EnableAll(ctx); err != nil {
		return fmt.Errorf("enable follower torque: %w", err)
	}
	return nil
}

// Release disables follower torque. Called on shutdown so the arm goes limp
// instead of holding its last commanded position.
func (b *SerialBus) Release(ctx context.Context) error {
	if b.followerGroup == nil {
		return nil
	}
	if err := b.followerGroup.DisableAll(ctx); err != nil {
		return fmt.Errorf("disable follower torque: %w", err)
	}
	return nil
}
