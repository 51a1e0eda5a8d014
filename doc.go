// Package lerobotrecord provides leader/follower teleoperation with
// trajectory recording and replay for SO-101 robot arms.
//
// Joint positions sampled from a leader arm are mirrored onto a follower
// arm in real time. The stream of leader positions can be captured to a
// file under the records directory and replayed to the follower later,
// without a live leader present.
//
// # Installation
//
//	go install github.com/gwillem/lerobot-record/cmd/lerobot-record@latest
//
// # Usage
//
// First, run setup to detect your robot arms:
//
//	lerobot-record setup
//
// Then start the operator console:
//
//	lerobot-record record
//
// Inside the console: r starts a recording, s stops and saves it, p replays
// the most recent recording, x cancels a replay, q quits.
//
// Stored trajectories can be replayed without a leader arm attached:
//
//	lerobot-record replay
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/lerobot-record: CLI with setup, record, replay and list commands
//   - pkg/robot: Joint bus, transport configuration and error taxonomy
//   - pkg/trajectory: Trajectory file format and sequential store
//   - pkg/session: Mode state machine, control loop and replay player
package lerobotrecord
