/*
 * Copyright (c) 2023 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package api

import (
	"fmt"
	"time"

	log "github.com/massenz/slf4go/logging"
)

// StateId names a logical phase of the game (e.g., MainMenu, Loading, Match).
// Ids are opaque and ordered by their string value.
type StateId string

const (
	// Default is the sentinel for "no state".
	Default StateId = ""

	MainMenu StateId = "MainMenu"
	Loading  StateId = "Loading"
	Match    StateId = "Match"
	EndMatch StateId = "EndMatch"

	// NoIndex is returned by ResolveInitialIndex for an empty table.
	NoIndex = -1
)

func (s StateId) String() string {
	if s == Default {
		return "Default"
	}
	return string(s)
}

var (
	ConfigError          = fmt.Errorf("invalid state table configuration")
	OutOfRangeError      = fmt.Errorf("index out of range")
	UnresolvedStateError = fmt.Errorf("state has no node in the table")

	// Logger is made accessible so that its `Level` can be changed
	// or silenced during testing.
	Logger = log.NewLog("gamestate")
)

// AutoAdvanceRule moves the engine to Target once the owning node has been
// active for Duration.
type AutoAdvanceRule struct {
	Target   StateId       `json:"target"`
	Duration time.Duration `json:"duration"`
}

// StateNode is one authored row of a StateTable.
type StateNode struct {
	State       StateId          `json:"state"`
	AutoAdvance *AutoAdvanceRule `json:"auto_advance,omitempty"`
}

func (n StateNode) UseTimer() bool {
	return n.AutoAdvance != nil
}

// TargetState is only meaningful if UseTimer is true.
func (n StateNode) TargetState() StateId {
	if n.AutoAdvance == nil {
		return Default
	}
	return n.AutoAdvance.Target
}

// Duration is only meaningful if UseTimer is true.
func (n StateNode) Duration() time.Duration {
	if n.AutoAdvance == nil {
		return 0
	}
	return n.AutoAdvance.Duration
}

// Validate checks the node against the authoring rules: a timer must have a
// non-negative duration and a target state.
func (n StateNode) Validate() error {
	if n.AutoAdvance == nil {
		return nil
	}
	if n.AutoAdvance.Duration < 0 {
		return fmt.Errorf("%w: state %s has negative duration %v",
			ConfigError, n.State, n.AutoAdvance.Duration)
	}
	if n.AutoAdvance.Target == Default {
		return fmt.Errorf("%w: state %s uses a timer, but has no target state",
			ConfigError, n.State)
	}
	return nil
}

// Snapshot is a copy of the engine's record, safe to hand out to readers.
type Snapshot struct {
	CurrentIndex  int           `json:"current_index"`
	CurrentState  StateId       `json:"current_state"`
	PreviousState StateId       `json:"previous_state"`
	Completed     bool          `json:"completed"`
	Elapsed       time.Duration `json:"elapsed"`
}
