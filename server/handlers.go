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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/massenz/go-gamestate/api"
	"github.com/massenz/go-gamestate/driver"
)

// NOTE: We make the handlers "exportable" so they can be tested, do NOT call directly.

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	// Standard preamble for all handlers, sets tracing (if enabled) and default content type.
	defer s.trace(r.RequestURI)()
	defaultContent(w)

	if s.store != nil {
		if err := s.store.Health(); err != nil {
			s.logger.Error("store unhealthy: %v", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			s.encode(w, MessageResponse{Msg: "DOWN", Error: err.Error()})
			return
		}
	}
	s.encode(w, MessageResponse{Msg: "UP"})
}

func (s *Server) GetStateHandler(w http.ResponseWriter, r *http.Request) {
	defer s.trace(r.RequestURI)()
	defaultContent(w)
	s.encode(w, StateResponse{Session: s.driver.SessionId(), Snapshot: s.driver.Snapshot()})
}

func (s *Server) TransitionHandler(w http.ResponseWriter, r *http.Request) {
	defer s.trace(r.RequestURI)()
	defaultContent(w)

	var body TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Target == "" {
		http.Error(w, "missing target state", http.StatusBadRequest)
		return
	}
	s.submit(w, r, driver.Request{
		Kind:       driver.TransitionRequest,
		Target:     api.StateId(body.Target),
		Originator: body.Originator,
		Details:    body.Details,
	})
}

func (s *Server) CompletedHandler(w http.ResponseWriter, r *http.Request) {
	defer s.trace(r.RequestURI)()
	defaultContent(w)
	s.submit(w, r, driver.Request{Kind: driver.CompleteRequest, Originator: r.RemoteAddr})
}

func (s *Server) SetIndexHandler(w http.ResponseWriter, r *http.Request) {
	defer s.trace(r.RequestURI)()
	defaultContent(w)

	var body IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Index == nil {
		http.Error(w, "missing index", http.StatusBadRequest)
		return
	}
	s.submit(w, r, driver.Request{Kind: driver.SetIndexRequest, Index: *body.Index,
		Originator: r.RemoteAddr})
}

func (s *Server) AdvanceIndexHandler(w http.ResponseWriter, r *http.Request) {
	defer s.trace(r.RequestURI)()
	defaultContent(w)
	s.submit(w, r, driver.Request{Kind: driver.AdvanceRequest, Originator: r.RemoteAddr})
}

func (s *Server) GetTableHandler(w http.ResponseWriter, r *http.Request) {
	defer s.trace(r.RequestURI)()
	defaultContent(w)

	var res TableResponse
	for _, node := range s.driver.Table().Nodes() {
		n := NodeResponse{State: node.State.String()}
		if node.UseTimer() {
			n.AutoAdvance = &AutoAdvanceResponse{
				Target:   node.TargetState().String(),
				Duration: node.Duration().Seconds(),
			}
		}
		res.Nodes = append(res.Nodes, n)
	}
	s.encode(w, res)
}

func (s *Server) GetEventHandler(w http.ResponseWriter, r *http.Request) {
	defer s.trace(r.RequestURI)()
	defaultContent(w)

	// We don't really need to check for the presence of the parameter,
	// as the Mux router takes care of all the error handling for us.
	evtId := mux.Vars(r)["evt_id"]
	if s.store == nil {
		http.Error(w, "events are not stored", http.StatusNotFound)
		return
	}
	s.logger.Debug("Looking up Event: %s", evtId)
	event, ok := s.store.GetEvent(evtId, s.driver.SessionId())
	if !ok {
		http.Error(w, fmt.Sprintf("Event [%s] not found", evtId), http.StatusNotFound)
		return
	}
	s.encode(w, &EventResponse{ID: evtId, Event: event})
}

// submit queues the request for the driver and, once applied, returns the
// snapshot published at the end of that tick.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, request driver.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
	defer cancel()

	s.logger.Debug("submitting %s", request)
	err := driver.Submit(ctx, s.requests, request)
	if err != nil {
		s.logger.Warn("%s failed: %v", request, err)
		http.Error(w, err.Error(), statusFor(request, err))
		return
	}
	s.encode(w, StateResponse{Session: s.driver.SessionId(), Snapshot: s.driver.Snapshot()})
}

func statusFor(request driver.Request, err error) int {
	switch {
	case errors.Is(err, api.OutOfRangeError) && request.Kind == driver.AdvanceRequest:
		return http.StatusConflict
	case errors.Is(err, api.OutOfRangeError), errors.Is(err, driver.InvalidRequestError):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) encode(w http.ResponseWriter, value interface{}) {
	if err := json.NewEncoder(w).Encode(value); err != nil {
		s.logger.Error("cannot encode response: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
