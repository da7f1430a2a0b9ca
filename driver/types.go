/*
 * Copyright (c) 2023 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package driver

import (
	"context"
	"fmt"
	"time"

	protos "github.com/massenz/statemachine-proto/golang/api"

	"github.com/massenz/go-gamestate/api"
	"github.com/massenz/go-gamestate/metrics"
	"github.com/massenz/go-gamestate/storage"
)

const (
	DefaultTickInterval = 50 * time.Millisecond

	// MaxRequestsPerTick bounds how many queued requests are applied in a
	// single tick; any remaining ones are applied on the following ticks.
	MaxRequestsPerTick = 64
)

var (
	InvalidRequestError = fmt.Errorf("invalid request")
	MissingEngineError  = fmt.Errorf("a driver needs an engine to drive")
)

type RequestKind int

const (
	TransitionRequest RequestKind = iota
	CompleteRequest
	SetIndexRequest
	AdvanceRequest
)

var requestNames = []string{"transition", "complete", "set_index", "advance"}

func (k RequestKind) String() string {
	if k < 0 || int(k) >= len(requestNames) {
		return fmt.Sprintf("request(%d)", int(k))
	}
	return requestNames[k]
}

// ParseRequestKind is the inverse of RequestKind.String.
func ParseRequestKind(name string) (RequestKind, error) {
	for i, n := range requestNames {
		if n == name {
			return RequestKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown request %q", InvalidRequestError, name)
}

// Request is a write on the engine, queued until the next tick.
//
// `Target` is only used for a TransitionRequest, and `Index` for a
// SetIndexRequest; if `Reply` is not nil, it must be buffered and will receive
// the outcome once the request has been applied and the new state published.
type Request struct {
	Kind       RequestKind
	Target     api.StateId
	Index      int
	Originator string
	Details    string
	Reply      chan error
}

func (r Request) String() string {
	switch r.Kind {
	case TransitionRequest:
		return fmt.Sprintf("%s(%s)", r.Kind, r.Target)
	case SetIndexRequest:
		return fmt.Sprintf("%s(%d)", r.Kind, r.Index)
	default:
		return r.Kind.String()
	}
}

// Submit queues `request` and waits until it has been applied.
func Submit(ctx context.Context, requests chan<- Request, request Request) error {
	reply := make(chan error, 1)
	request.Reply = reply
	select {
	case requests <- request:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Options struct {
	Engine    *api.Engine
	SessionId string

	TickInterval time.Duration

	// Requests carries the writes from all the designated triggers; the
	// driver is its only consumer.
	Requests <-chan Request

	// Notifications, if not nil, receives an Event for every transition;
	// if it cannot accept it, the notification is dropped.
	Notifications chan<- *protos.Event

	Store     storage.StoreManager
	EventsTtl time.Duration
	Metrics   *metrics.Collector
}
