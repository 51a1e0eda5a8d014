package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gwillem/lerobot-record/pkg/robot"
	"github.com/gwillem/lerobot-record/pkg/session"
	"github.com/gwillem/lerobot-record/pkg/trajectory"
)

type ReplayCommand struct {
	File string `long:"file" description:"Trajectory file to replay (default: most recent)"`
	Hz   int    `long:"hz" default:"50" description:"Playback frequency"`
}

// Execute plays a stored trajectory to the follower and exits. Only the
// follower port is opened; this is how a recording is replayed with no
// leader arm attached.
func (c *ReplayCommand) Execute(args []string) error {
	cfg, err := robot.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "No configuration found. Run 'lerobot-record setup' first.")
		os.Exit(1)
	}
	if cfg.Follower.Port == "" {
		fmt.Fprintln(os.Stderr, "Follower arm not configured. Run 'lerobot-record setup' first.")
		os.Exit(1)
	}

	store, err := trajectory.NewStore(cfg.RecordDir)
	if err != nil {
		log.Fatalf("Failed to open records dir: %v", err)
	}

	path := c.File
	if path == "" {
		path, err = store.Latest()
		if errors.Is(err, trajectory.ErrNoRecordings) {
			fmt.Fprintln(os.Stderr, "No recordings found. Record one with 'lerobot-record record'.")
			os.Exit(1)
		}
		if err != nil {
			log.Fatalf("Failed to resolve latest recording: %v", err)
		}
	}

	traj, err := store.Load(path)
	if err != nil {
		log.Fatalf("Failed to load trajectory: %v", err)
	}

	bus, err := robot.OpenFollower(cfg)
	if err != nil {
		log.Fatalf("Failed to connect follower: %v", err)
	}
	defer bus.Close()

	ctx := context.Background()
	if err := bus.EnableFollower(ctx); err != nil {
		log.Printf("Warning: %v", err)
	}
	defer bus.Release(context.Background())

	hz := c.Hz
	if hz <= 0 {
		hz = cfg.Hz
	}
	tick := time.Second / time.Duration(hz)

	fmt.Printf("Replaying %s (%d frames, %s at %d Hz)\n",
		filepath.Base(path), traj.Len(), traj.Duration(tick).Round(time.Millisecond), hz)

	player := &session.Player{Bus: bus, Tick: tick}
	if err := player.Play(ctx, traj); err != nil {
		log.Fatalf("Replay aborted: %v", err)
	}

	fmt.Println("Done.")
	return nil
}
