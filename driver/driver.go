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
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/massenz/slf4go/logging"
	protos "github.com/massenz/statemachine-proto/golang/api"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/massenz/go-gamestate/api"
	"github.com/massenz/go-gamestate/metrics"
	"github.com/massenz/go-gamestate/storage"
)

// Driver is the only writer of an api.Engine.
//
// On every tick it first applies all the queued requests, then runs the
// engine's timer, and finally publishes a Snapshot for the readers: readers
// never see a tick half-way through.
type Driver struct {
	logger   *log.Log
	engine   *api.Engine
	session  string
	interval time.Duration

	requests      <-chan Request
	notifications chan<- *protos.Event
	store         storage.StoreManager
	eventsTtl     time.Duration
	metrics       *metrics.Collector

	mux      sync.RWMutex
	snapshot api.Snapshot
	running  bool
	closed   bool
	stored   *api.Snapshot
}

func NewDriver(options *Options) (*Driver, error) {
	if options == nil || options.Engine == nil {
		return nil, MissingEngineError
	}
	d := &Driver{
		logger:        log.NewLog("driver"),
		engine:        options.Engine,
		session:       options.SessionId,
		interval:      options.TickInterval,
		requests:      options.Requests,
		notifications: options.Notifications,
		store:         options.Store,
		eventsTtl:     options.EventsTtl,
		metrics:       options.Metrics,
	}
	if d.session == "" {
		d.session = uuid.NewString()
	}
	if d.interval <= 0 {
		d.interval = DefaultTickInterval
	}
	if d.metrics == nil {
		d.metrics = metrics.NewCollector()
	}
	d.snapshot = d.engine.Snapshot()
	return d, nil
}

// SetLogLevel to implement the log.Loggable interface
func (d *Driver) SetLogLevel(level log.LogLevel) {
	d.logger.Level = level
}

func (d *Driver) SessionId() string {
	return d.session
}

// Table is immutable, and safe to share with any reader.
func (d *Driver) Table() *api.StateTable {
	return d.engine.Table()
}

func (d *Driver) Metrics() *metrics.Collector {
	return d.metrics
}

// Snapshot returns the state published at the end of the last tick.
func (d *Driver) Snapshot() api.Snapshot {
	d.mux.RLock()
	defer d.mux.RUnlock()
	return d.snapshot
}

func (d *Driver) Running() bool {
	d.mux.RLock()
	defer d.mux.RUnlock()
	return d.running
}

func (d *Driver) setRunning(running bool) {
	d.mux.Lock()
	defer d.mux.Unlock()
	d.running = running
}

// Run ticks the engine every TickInterval, until either the context is
// cancelled or the requests channel is closed.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.setRunning(true)
	defer d.setRunning(false)
	d.logger.Info("session %s started at %s (tick: %v)",
		d.session, d.engine.CurrentState(), d.interval)
	d.publish()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("session %s stopped", d.session)
			return ctx.Err()
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			d.Step(elapsed)
			if d.closed {
				d.logger.Info("requests channel closed, session %s terminating", d.session)
				return nil
			}
		}
	}
}

// Step runs a single tick; it must only be called by the goroutine running
// the driver (or, in place of Run, by a single caller).
func (d *Driver) Step(elapsed time.Duration) api.TransitionOutcome {
	replies := d.drain()

	outcome := d.engine.Tick(elapsed)
	if outcome.Err != nil {
		d.metrics.ObserveFailure(outcome.Err)
	}
	if outcome.Fired() {
		d.logger.Info("timer expired: %s -> %s", outcome.From, outcome.To)
		d.metrics.ObserveTransition(metrics.TriggerTimer, outcome.To)
		d.notify(outcome.From, outcome.To, metrics.TriggerTimer, metrics.TriggerTimer, "")
	}
	d.publish()

	for _, r := range replies {
		select {
		case r.reply <- r.err:
		default:
			d.logger.Warn("reply channel not ready, outcome discarded: %v", r.err)
		}
	}
	return outcome
}

type reply struct {
	reply chan error
	err   error
}

// drain applies up to MaxRequestsPerTick requests, in the order they were queued.
func (d *Driver) drain() []reply {
	var replies []reply
	for i := 0; i < MaxRequestsPerTick && d.requests != nil; i++ {
		select {
		case req, ok := <-d.requests:
			if !ok {
				d.requests = nil
				d.closed = true
				return replies
			}
			err := d.apply(req)
			if req.Reply != nil {
				replies = append(replies, reply{req.Reply, err})
			}
		default:
			return replies
		}
	}
	return replies
}

func (d *Driver) apply(req Request) error {
	d.logger.Debug("applying %s from %q", req, req.Originator)
	d.metrics.ObserveRequest(req.Kind.String())

	var err error
	switch req.Kind {
	case TransitionRequest:
		if req.Target == api.Default {
			err = fmt.Errorf("%w: missing target state", InvalidRequestError)
			break
		}
		from := d.engine.CurrentState()
		d.engine.TransitionTo(req.Target)
		d.metrics.ObserveTransition(metrics.TriggerManual, req.Target)
		d.notify(from, req.Target, metrics.TriggerManual, req.Originator, req.Details)
	case CompleteRequest:
		d.engine.SetCompleted()
	case SetIndexRequest:
		err = d.engine.SetIndex(req.Index)
	case AdvanceRequest:
		err = d.engine.AdvanceIndex()
	default:
		err = fmt.Errorf("%w: %s", InvalidRequestError, req.Kind)
	}
	if err != nil {
		// The engine is unchanged: report it, and carry on.
		d.logger.Warn("%s rejected: %v", req, err)
		d.metrics.ObserveFailure(err)
	}
	return err
}

// notify records the transition as an Event, and posts it to the notifications channel.
func (d *Driver) notify(from, to api.StateId, trigger, originator, details string) {
	event := NewTransitionEvent(from, to, trigger, originator, details)
	if d.store != nil {
		if err := d.store.PutEvent(event, d.session, d.eventsTtl); err != nil {
			d.logger.Error("could not store event %s: %v", event.EventId, err)
		}
	}
	if d.notifications != nil {
		select {
		case d.notifications <- event:
			d.logger.Trace("posted notification %s", event.EventId)
		default:
			d.logger.Warn("notifications backed up, dropping event %s", event.EventId)
		}
	}
}

func (d *Driver) publish() {
	snapshot := d.engine.Snapshot()
	d.mux.Lock()
	d.snapshot = snapshot
	d.mux.Unlock()
	d.metrics.ObserveSnapshot(snapshot)

	if d.store == nil || sameState(d.stored, &snapshot) {
		return
	}
	if err := d.store.PutSnapshot(d.session, &snapshot); err != nil {
		d.logger.Error("could not store snapshot for session %s: %v", d.session, err)
		return
	}
	d.stored = &snapshot
}

// sameState ignores the timer, which changes on every tick.
func sameState(a, b *api.Snapshot) bool {
	if a == nil || b == nil {
		return false
	}
	return a.CurrentIndex == b.CurrentIndex && a.CurrentState == b.CurrentState &&
		a.PreviousState == b.PreviousState && a.Completed == b.Completed
}

// NewTransitionEvent describes a transition from `from` to `to`, caused by `trigger`.
func NewTransitionEvent(from, to api.StateId, trigger, originator, details string) *protos.Event {
	return &protos.Event{
		EventId:   uuid.NewString(),
		Timestamp: timestamppb.Now(),
		Transition: &protos.Transition{
			From:  from.String(),
			To:    to.String(),
			Event: trigger,
		},
		Originator: originator,
		Details:    details,
	}
}
