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
	"errors"
	"fmt"
	"time"
)

// record is the runtime state of the engine; only the Engine mutates it.
type record struct {
	currentIndex  int
	currentState  StateId
	previousState StateId
	isCompleted   bool
}

// Engine drives a StateTable: it owns the record tracking current and previous
// state, the table cursor and the completion flag, as well as the timer used
// for auto-advance.
//
// Engine is not safe for concurrent use: exactly one writer may call the
// mutating methods, and reads must be sequenced by the caller (see the
// `driver` package).
type Engine struct {
	table  *StateTable
	record record

	// elapsed accumulates tick time for the node at `currentIndex`.
	elapsed time.Duration
	// manual is set by any externally requested change and consumed by the next Tick.
	manual bool
	// armed is cleared when TransitionTo leaves the state of the node at
	// `currentIndex`; moving the cursor re-arms the timer for the new node.
	armed bool
}

// NewEngine initializes the engine at the node matching `initialState`.
//
// If there is no such node, the cursor starts at 0 and the current state is
// the one of the first node.
func NewEngine(table *StateTable, initialState StateId) (*Engine, error) {
	if table.Len() == 0 {
		return nil, fmt.Errorf("%w: cannot start an engine with an empty table", ConfigError)
	}
	engine := &Engine{
		table: table,
		armed: true,
		record: record{
			currentState:  initialState,
			previousState: Default,
		},
	}
	idx, err := table.ResolveInitialIndex(initialState)
	if err != nil {
		// Only UnresolvedStateError can get here, with a non-empty table.
		node, _ := table.NodeAt(0)
		Logger.Warn("initial state %s: %v - starting from %s", initialState, err, node.State)
		engine.record.currentState = node.State
	}
	engine.record.currentIndex = idx
	Logger.Debug("engine initialized at [%d] %s", idx, engine.record.currentState)
	return engine, nil
}

func (e *Engine) Table() *StateTable {
	return e.table
}

func (e *Engine) CurrentState() StateId {
	return e.record.currentState
}

func (e *Engine) PreviousState() StateId {
	return e.record.previousState
}

func (e *Engine) IsCompleted() bool {
	return e.record.isCompleted
}

func (e *Engine) CurrentIndex() int {
	return e.record.currentIndex
}

func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		CurrentIndex:  e.record.currentIndex,
		CurrentState:  e.record.currentState,
		PreviousState: e.record.previousState,
		Completed:     e.record.isCompleted,
		Elapsed:       e.elapsed,
	}
}

// TransitionTo moves the engine to `target`, clearing the completion flag.
//
// The table cursor is left where it is: the displayed state and the cursor are
// independent, use SetIndex to reposition the latter.
func (e *Engine) TransitionTo(target StateId) {
	e.transition(target)
	e.resetTimer(true)
	if node, err := e.table.NodeAt(e.record.currentIndex); err == nil {
		e.armed = node.State == target
	}
}

func (e *Engine) transition(target StateId) {
	Logger.Debug("transition: %s -> %s", e.record.currentState, target)
	e.record.previousState = e.record.currentState
	e.record.currentState = target
	e.record.isCompleted = false
}

// SetCompleted flags the work for the current state as done; it is idempotent.
func (e *Engine) SetCompleted() {
	e.record.isCompleted = true
}

// AdvanceIndex moves the cursor to the next node; past the last node it
// returns an OutOfRangeError and leaves the cursor unchanged.
func (e *Engine) AdvanceIndex() error {
	next := e.record.currentIndex + 1
	if next > e.table.Len()-1 {
		return fmt.Errorf("%w: sequence exhausted at %d", OutOfRangeError, e.record.currentIndex)
	}
	e.record.currentIndex = next
	e.armed = true
	e.resetTimer(true)
	return nil
}

// SetIndex moves the cursor to `index`; it fails with an OutOfRangeError
// (leaving the cursor unchanged) if there is no node at `index`.
func (e *Engine) SetIndex(index int) error {
	if _, err := e.table.NodeAt(index); err != nil {
		return err
	}
	e.record.currentIndex = index
	e.armed = true
	e.resetTimer(true)
	return nil
}

func (e *Engine) resetTimer(manual bool) {
	e.elapsed = 0
	e.manual = e.manual || manual
}

// IsRecoverable reports whether `err` leaves the engine in a consistent
// state, so that it can be logged and otherwise ignored.
func IsRecoverable(err error) bool {
	return err == nil || errors.Is(err, OutOfRangeError) || errors.Is(err, UnresolvedStateError)
}
