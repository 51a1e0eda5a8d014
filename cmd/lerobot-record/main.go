package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Setup  SetupCommand  `command:"setup" description:"Scan for arms and save the port configuration"`
	Record RecordCommand `command:"record" alias:"teleop" description:"Start the operator console (mirror, record, replay)"`
	Replay ReplayCommand `command:"replay" description:"Replay a stored trajectory to the follower, no leader needed"`
	List   ListCommand   `command:"list" description:"List stored trajectories"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "LeRobot Record - leader/follower teleoperation recorder for SO-101 arms"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
