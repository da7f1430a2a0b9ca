/*
 * Copyright (c) 2023 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package api

import "fmt"

// StateTable is the immutable, ordered collection of authored StateNode.
// A new table must be built to change it (e.g., on a scene reload).
type StateTable struct {
	nodes []StateNode
}

// NewStateTable copies `nodes` into a new table, after validating each of them.
//
// An empty table is legal, unless `requireStates` is set, in which case a
// ConfigError is returned.
func NewStateTable(nodes []StateNode, requireStates bool) (*StateTable, error) {
	if len(nodes) == 0 && requireStates {
		return nil, fmt.Errorf("%w: at least one state must be defined", ConfigError)
	}
	table := &StateTable{nodes: make([]StateNode, 0, len(nodes))}
	for _, n := range nodes {
		if err := n.Validate(); err != nil {
			return nil, err
		}
		if n.AutoAdvance != nil {
			rule := *n.AutoAdvance
			n.AutoAdvance = &rule
		}
		table.nodes = append(table.nodes, n)
	}
	return table, nil
}

func (t *StateTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// NodeAt returns the node at `index`, or an OutOfRangeError.
func (t *StateTable) NodeAt(index int) (StateNode, error) {
	if index < 0 || index >= t.Len() {
		return StateNode{}, fmt.Errorf("%w: %d not in [0, %d)", OutOfRangeError, index, t.Len())
	}
	return t.nodes[index], nil
}

// ResolveInitialIndex scans the table for the first node whose state is `initial`.
//
// When there is no such node, the index falls back to 0 (or NoIndex, for an
// empty table) and an UnresolvedStateError is returned alongside it.
func (t *StateTable) ResolveInitialIndex(initial StateId) (int, error) {
	if t.Len() == 0 {
		return NoIndex, fmt.Errorf("%w: %s (empty table)", UnresolvedStateError, initial)
	}
	for i, n := range t.nodes {
		if n.State == initial {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", UnresolvedStateError, initial)
}

// Nodes returns a copy of the authored nodes.
func (t *StateTable) Nodes() []StateNode {
	nodes := make([]StateNode, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		n := t.nodes[i]
		if n.AutoAdvance != nil {
			rule := *n.AutoAdvance
			n.AutoAdvance = &rule
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// States lists the states in table order, duplicates included.
func (t *StateTable) States() []StateId {
	states := make([]StateId, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		states = append(states, t.nodes[i].State)
	}
	return states
}
