// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package stream

import "fmt"

// State is a stream lifecycle state.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashedBackoff
	StateDisabled
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateStarting:       "starting",
	StateRunning:        "running",
	StateStopping:       "stopping",
	StateCrashedBackoff: "crashed_backoff",
	StateDisabled:       "disabled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name for JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stream state %q", text)
}

// Active reports whether a relay process may be live in this state.
func (s State) Active() bool {
	return s == StateStarting || s == StateRunning || s == StateStopping
}
