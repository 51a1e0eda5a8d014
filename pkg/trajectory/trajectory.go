// Package trajectory persists and loads ordered sequences of joint frames.
//
// On disk a trajectory is a small header followed by a 2-D array of signed
// 32-bit little-endian integers with shape (frame_count, joint_count).
package trajectory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gwillem/lerobot-record/pkg/robot"
)

var magic = [4]byte{'L', 'T', 'R', 'J'}

const formatVersion = 1

// ErrCorrupt means a stored trajectory's header or shape is inconsistent
// with the configured joint count, or the payload is truncated.
var ErrCorrupt = errors.New("corrupt trajectory file")

// Trajectory is an ordered sequence of frames. Immutable once saved.
type Trajectory struct {
	Frames []robot.Frame
}

// Len returns the number of frames.
func (t *Trajectory) Len() int {
	return len(t.Frames)
}

// Duration returns the playback duration at the given tick period.
func (t *Trajectory) Duration(tick time.Duration) time.Duration {
	return time.Duration(t.Len()) * tick
}

type header struct {
	Magic      [4]byte
	Version    uint8
	_          [3]byte // padding, must be zero
	JointCount uint32
	FrameCount uint32
}

// Encode writes the trajectory. Every frame must have jointCount positions.
func (t *Trajectory) Encode(w io.Writer, jointCount int) error {
	h := header{
		Magic:      magic,
		Version:    formatVersion,
		JointCount: uint32(jointCount),
		FrameCount: uint32(len(t.Frames)),
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, frame := range t.Frames {
		if len(frame) != jointCount {
			return fmt.Errorf("frame %d has %d joints, want %d", i, len(frame), jointCount)
		}
		if err := binary.Write(w, binary.LittleEndian, []int32(frame)); err != nil {
			return fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	return nil
}

// Decode reads a trajectory, validating the stored shape against jointCount.
func Decode(r io.Reader, jointCount int) (*Trajectory, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrCorrupt)
	}
	if h.Magic != magic || h.Version != formatVersion {
		return nil, fmt.Errorf("%w: bad magic or version", ErrCorrupt)
	}
	if int(h.JointCount) != jointCount {
		return nil, fmt.Errorf("%w: stored joint count %d, configured %d",
			ErrCorrupt, h.JointCount, jointCount)
	}

	// The frame count is untrusted until the payload backs it up, so the
	// slice grows only as frames are actually read. A header claiming a
	// huge count over a short payload fails on the first missing frame
	// instead of allocating for the claim.
	traj := &Trajectory{}
	for i := 0; i < int(h.FrameCount); i++ {
		frame := make(robot.Frame, jointCount)
		if err := binary.Read(r, binary.LittleEndian, []int32(frame)); err != nil {
			return nil, fmt.Errorf("%w: truncated at frame %d", ErrCorrupt, i)
		}
		traj.Frames = append(traj.Frames, frame)
	}
	return traj, nil
}
