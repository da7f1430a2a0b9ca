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
)

type OutcomeKind int

const (
	// OutcomeIdle the current node does not auto-advance.
	OutcomeIdle OutcomeKind = iota
	// OutcomeSkipped a manual change happened since the last tick, the timer restarted.
	OutcomeSkipped
	// OutcomeDisarmed a manual transition left the node's state, and the cursor has not moved since.
	OutcomeDisarmed
	// OutcomePending the timer is running.
	OutcomePending
	// OutcomeFired the timer expired and the engine transitioned.
	OutcomeFired
)

var outcomeNames = map[OutcomeKind]string{
	OutcomeIdle:     "idle",
	OutcomeSkipped:  "skipped",
	OutcomeDisarmed: "disarmed",
	OutcomePending:  "pending",
	OutcomeFired:    "fired",
}

func (k OutcomeKind) String() string {
	if name, ok := outcomeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

// TransitionOutcome reports what a single Tick did.
//
// For OutcomeFired, `From` and `To` are the states before and after the
// transition; `Err` carries an UnresolvedStateError if the target state has
// no node, in which case `Index` is unchanged.
type TransitionOutcome struct {
	Kind    OutcomeKind
	From    StateId
	To      StateId
	Index   int
	Elapsed time.Duration
	Err     error
}

func (o TransitionOutcome) Fired() bool {
	return o.Kind == OutcomeFired
}

// Tick advances the auto-advance timer by `elapsed` and, once the current
// node's duration is reached, transitions to its target state.
//
// Manual changes always win over the timer: a Tick following TransitionTo,
// SetIndex or AdvanceIndex only restarts the timer for the new node.
// Moving the cursor arms the timer of the node it lands on, whatever the
// current state; TransitionTo to any other state disarms it.
func (e *Engine) Tick(elapsed time.Duration) TransitionOutcome {
	outcome := TransitionOutcome{
		From:  e.record.currentState,
		To:    e.record.currentState,
		Index: e.record.currentIndex,
	}
	if e.manual {
		e.manual = false
		e.elapsed = 0
		outcome.Kind = OutcomeSkipped
		return outcome
	}
	node, err := e.table.NodeAt(e.record.currentIndex)
	if err != nil {
		Logger.Warn("no auto-advance: %v", err)
		outcome.Err = err
		return outcome
	}
	if !node.UseTimer() {
		outcome.Kind = OutcomeIdle
		return outcome
	}
	if !e.armed {
		e.elapsed = 0
		outcome.Kind = OutcomeDisarmed
		return outcome
	}
	if elapsed > 0 {
		e.elapsed += elapsed
	}
	outcome.Elapsed = e.elapsed
	if e.elapsed < node.Duration() {
		outcome.Kind = OutcomePending
		return outcome
	}

	Logger.Debug("timer expired for %s after %v", node.State, e.elapsed)
	e.transition(node.TargetState())
	e.resetTimer(false)
	idx, err := e.table.ResolveInitialIndex(node.TargetState())
	if err != nil {
		Logger.Warn("auto-advance from %s: %v - index stays at %d",
			node.State, err, e.record.currentIndex)
		outcome.Err = err
		e.armed = false
	} else {
		e.record.currentIndex = idx
		e.armed = true
	}
	outcome.Kind = OutcomeFired
	outcome.To = e.record.currentState
	outcome.Index = e.record.currentIndex
	return outcome
}
