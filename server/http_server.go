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
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/massenz/slf4go/logging"

	"github.com/massenz/go-gamestate/driver"
	"github.com/massenz/go-gamestate/storage"
)

// Release carries the version of the binary, as set by the build script
// See: https://blog.alexellis.io/inject-build-time-vars-golang/
var Release string

// Server exposes the state of a single game session over HTTP; reads are
// served from the driver's snapshot, writes are queued as driver requests.
type Server struct {
	logger      *log.Log
	driver      *driver.Driver
	requests    chan<- driver.Request
	store       storage.StoreManager
	shouldTrace bool

	// RequestTimeout bounds the wait for the driver to apply a request.
	RequestTimeout time.Duration
}

// NewServer serves the session run by `d`; the `requests` channel must be the
// one `d` reads from, and `store` may be nil if events are not persisted.
func NewServer(d *driver.Driver, requests chan<- driver.Request, store storage.StoreManager) *Server {
	return &Server{
		logger:         log.NewLog("server"),
		driver:         d,
		requests:       requests,
		store:          store,
		RequestTimeout: DefaultRequestTimeout,
	}
}

func (s *Server) SetLogLevel(level log.LogLevel) {
	s.logger.Level = level
}

func (s *Server) EnableTracing() {
	s.shouldTrace = true
	s.logger.Level = log.TRACE
}

func (s *Server) trace(endpoint string) func() {
	if !s.shouldTrace {
		return func() {}
	}
	start := time.Now()
	s.logger.Trace("Handling: [%s]", endpoint)
	return func() { s.logger.Trace("%s took %s", endpoint, time.Since(start)) }
}

func defaultContent(w http.ResponseWriter) {
	w.Header().Add(ContentType, ApplicationJson)
}

// NewRouter returns a gorilla/mux Router for the server routes; exposed so
// that path params are testable.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(HealthEndpoint, s.HealthHandler).Methods(http.MethodGet)
	r.Handle(MetricsEndpoint, s.driver.Metrics().Handler()).Methods(http.MethodGet)
	r.HandleFunc(StateEndpoint, s.GetStateHandler).Methods(http.MethodGet)
	r.HandleFunc(TransitionsPath, s.TransitionHandler).Methods(http.MethodPost)
	r.HandleFunc(CompletedPath, s.CompletedHandler).Methods(http.MethodPost)
	r.HandleFunc(IndexPath, s.SetIndexHandler).Methods(http.MethodPut)
	r.HandleFunc(NextIndexPath, s.AdvanceIndexHandler).Methods(http.MethodPost)
	r.HandleFunc(TableEndpoint, s.GetTableHandler).Methods(http.MethodGet)
	r.HandleFunc(strings.Join([]string{EventsEndpoint, "{evt_id}"}, "/"),
		s.GetEventHandler).Methods(http.MethodGet)
	return r
}

func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
