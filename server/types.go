/*
 * Copyright (c) 2023 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package server

import (
	"time"

	protos "github.com/massenz/statemachine-proto/golang/api"

	"github.com/massenz/go-gamestate/api"
)

const (
	ApiPrefix       = "/api/v1"
	HealthEndpoint  = "/health"
	MetricsEndpoint = "/metrics"
	StateEndpoint   = ApiPrefix + "/state"
	TransitionsPath = StateEndpoint + "/transitions"
	CompletedPath   = StateEndpoint + "/completed"
	IndexPath       = StateEndpoint + "/index"
	NextIndexPath   = IndexPath + "/next"
	TableEndpoint   = ApiPrefix + "/table"
	EventsEndpoint  = ApiPrefix + "/events"

	ContentType     = "Content-Type"
	ApplicationJson = "application/json"
)

// DefaultRequestTimeout bounds how long a write request waits for the driver
// to apply it.
const DefaultRequestTimeout = 2 * time.Second

// MessageResponse is returned when a more appropriate response is not available.
type MessageResponse struct {
	Msg   interface{} `json:"message,omitempty"`
	Error string      `json:"error,omitempty"`
}

// StateResponse carries the snapshot published by the driver at the end of
// the last tick.
type StateResponse struct {
	Session string `json:"session"`
	api.Snapshot
}

type TransitionRequest struct {
	Target     string `json:"target"`
	Originator string `json:"originator,omitempty"`
	Details    string `json:"details,omitempty"`
}

type IndexRequest struct {
	Index *int `json:"index"`
}

type AutoAdvanceResponse struct {
	Target   string  `json:"target"`
	Duration float64 `json:"duration"`
}

type NodeResponse struct {
	State       string               `json:"state"`
	AutoAdvance *AutoAdvanceResponse `json:"auto_advance,omitempty"`
}

type TableResponse struct {
	Nodes []NodeResponse `json:"nodes"`
}

// EventResponse is returned for a stored transition Event.
type EventResponse struct {
	ID    string        `json:"id"`
	Event *protos.Event `json:"event"`
}
