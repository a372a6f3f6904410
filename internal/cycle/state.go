// SPDX-License-Identifier: MIT
package cycle

import "fmt"

// State is the position of the driver in its measurement cycle.
type State int32

const (
	Idle State = iota
	Acquiring
	Transforming
	Persisting
	Pacing
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Acquiring:
		return "acquiring"
	case Transforming:
		return "transforming"
	case Persisting:
		return "persisting"
	case Pacing:
		return "pacing"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Strategy decides how the acquisitions of one cycle feed the analysis.
type Strategy int

const (
	// Resample takes Blocks acquisitions into the same buffer and then runs
	// Blocks analysis passes over the last one.
	Resample Strategy = iota
	// Retain analyzes every acquired block right after it is taken.
	Retain
	// Single takes one acquisition and runs one analysis pass.
	Single
)

func (s Strategy) String() string {
	switch s {
	case Resample:
		return "resample"
	case Retain:
		return "retain"
	case Single:
		return "single"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy converts a configuration name into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "resample", "":
		return Resample, nil
	case "retain":
		return Retain, nil
	case "single":
		return Single, nil
	default:
		return Resample, fmt.Errorf("unknown strategy %q", name)
	}
}
