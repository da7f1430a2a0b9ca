/*
 * Copyright (c) 2023 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/JiaYongfei/respect/gomega"
	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	log "github.com/massenz/slf4go/logging"
	protos "github.com/massenz/statemachine-proto/golang/api"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/massenz/go-gamestate/api"
	"github.com/massenz/go-gamestate/driver"
	"github.com/massenz/go-gamestate/server"
	"github.com/massenz/go-gamestate/storage"
)

func arena() *api.Engine {
	table, err := api.NewStateTable([]api.StateNode{
		{State: api.MainMenu},
		{State: api.Loading, AutoAdvance: &api.AutoAdvanceRule{Target: api.Match, Duration: time.Hour}},
		{State: api.Match},
		{State: api.EndMatch, AutoAdvance: &api.AutoAdvanceRule{Target: api.MainMenu, Duration: 10 * time.Second}},
	}, true)
	Expect(err).ToNot(HaveOccurred())
	engine, err := api.NewEngine(table, api.MainMenu)
	Expect(err).ToNot(HaveOccurred())
	return engine
}

func send(router *mux.Router, method, endpoint, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	writer := httptest.NewRecorder()
	router.ServeHTTP(writer, httptest.NewRequest(method, endpoint, reader))
	return writer
}

func decodeState(writer *httptest.ResponseRecorder) server.StateResponse {
	var res server.StateResponse
	Expect(json.NewDecoder(writer.Body).Decode(&res)).To(Succeed())
	return res
}

var _ = Describe("HTTP Handlers", func() {
	var (
		requests chan driver.Request
		store    storage.StoreManager
		d        *driver.Driver
		srv      *server.Server
		router   *mux.Router
		cancel   context.CancelFunc
		done     chan error
	)

	BeforeEach(func() {
		api.Logger.Level = log.NONE
		requests = make(chan driver.Request)
		store = storage.NewInMemoryStore()
		store.SetLogLevel(log.NONE)

		var err error
		d, err = driver.NewDriver(&driver.Options{
			Engine:       arena(),
			SessionId:    "test-session",
			TickInterval: 5 * time.Millisecond,
			Requests:     requests,
			Store:        store,
		})
		Expect(err).ToNot(HaveOccurred())
		d.SetLogLevel(log.NONE)

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() { done <- d.Run(ctx) }()
		Eventually(d.Running).Should(BeTrue())

		srv = server.NewServer(d, requests, store)
		// Set to DEBUG when diagnosing failing tests
		srv.SetLogLevel(log.NONE)
		router = srv.NewRouter()
	})
	AfterEach(func() {
		cancel()
		Eventually(done).Should(Receive())
	})

	It("is healthy", func() {
		writer := send(router, http.MethodGet, server.HealthEndpoint, "")
		Expect(writer.Code).To(Equal(http.StatusOK))
		var res server.MessageResponse
		Expect(json.NewDecoder(writer.Body).Decode(&res)).To(Succeed())
		Expect(res.Msg).To(Equal("UP"))
	})

	It("returns the current state", func() {
		writer := send(router, http.MethodGet, server.StateEndpoint, "")
		Expect(writer.Code).To(Equal(http.StatusOK))
		Expect(writer.Header().Get(server.ContentType)).To(Equal(server.ApplicationJson))
		res := decodeState(writer)
		Expect(res.Session).To(Equal("test-session"))
		Expect(res.CurrentState).To(Equal(api.MainMenu))
		Expect(res.PreviousState).To(Equal(api.Default))
		Expect(res.CurrentIndex).To(Equal(0))
	})

	Context("when transitioning", func() {
		It("applies the transition and records the event", func() {
			writer := send(router, http.MethodPost, server.TransitionsPath,
				`{"target": "Loading", "originator": "lobby"}`)
			Expect(writer.Code).To(Equal(http.StatusOK))
			res := decodeState(writer)
			Expect(res.CurrentState).To(Equal(api.Loading))
			Expect(res.PreviousState).To(Equal(api.MainMenu))
			// The cursor is not moved by a transition.
			Expect(res.CurrentIndex).To(Equal(0))

			saved, ok := store.GetSnapshot("test-session")
			Expect(ok).To(BeTrue())
			Expect(saved.CurrentState).To(Equal(api.Loading))
		})
		It("rejects a missing target", func() {
			writer := send(router, http.MethodPost, server.TransitionsPath, `{"originator": "lobby"}`)
			Expect(writer.Code).To(Equal(http.StatusBadRequest))
		})
		It("rejects malformed JSON", func() {
			writer := send(router, http.MethodPost, server.TransitionsPath, `{"target":`)
			Expect(writer.Code).To(Equal(http.StatusBadRequest))
		})
	})

	It("sets the completed flag", func() {
		writer := send(router, http.MethodPost, server.CompletedPath, "")
		Expect(writer.Code).To(Equal(http.StatusOK))
		Expect(decodeState(writer).Completed).To(BeTrue())
	})

	Context("when moving the cursor", func() {
		It("sets a valid index", func() {
			writer := send(router, http.MethodPut, server.IndexPath, `{"index": 3}`)
			Expect(writer.Code).To(Equal(http.StatusOK))
			res := decodeState(writer)
			Expect(res.CurrentIndex).To(Equal(3))
			// Only the cursor moves.
			Expect(res.CurrentState).To(Equal(api.MainMenu))
		})
		It("rejects an out-of-range index", func() {
			writer := send(router, http.MethodPut, server.IndexPath, `{"index": 4}`)
			Expect(writer.Code).To(Equal(http.StatusBadRequest))
			Expect(d.Snapshot().CurrentIndex).To(Equal(0))
		})
		It("rejects a missing index", func() {
			writer := send(router, http.MethodPut, server.IndexPath, `{}`)
			Expect(writer.Code).To(Equal(http.StatusBadRequest))
		})
		It("advances until the sequence is exhausted", func() {
			for i := 1; i < 4; i++ {
				writer := send(router, http.MethodPost, server.NextIndexPath, "")
				Expect(writer.Code).To(Equal(http.StatusOK))
				Expect(decodeState(writer).CurrentIndex).To(Equal(i))
			}
			writer := send(router, http.MethodPost, server.NextIndexPath, "")
			Expect(writer.Code).To(Equal(http.StatusConflict))
			Expect(d.Snapshot().CurrentIndex).To(Equal(3))
		})
	})

	It("returns the table", func() {
		writer := send(router, http.MethodGet, server.TableEndpoint, "")
		Expect(writer.Code).To(Equal(http.StatusOK))
		var res server.TableResponse
		Expect(json.NewDecoder(writer.Body).Decode(&res)).To(Succeed())
		Expect(res.Nodes).To(HaveLen(4))
		Expect(res.Nodes[0].AutoAdvance).To(BeNil())
		Expect(res.Nodes[3]).To(Respect(server.NodeResponse{
			State:       "EndMatch",
			AutoAdvance: &server.AutoAdvanceResponse{Target: "MainMenu", Duration: 10},
		}))
	})

	Context("when retrieving an Event", func() {
		var evt *protos.Event
		BeforeEach(func() {
			evt = driver.NewTransitionEvent(api.MainMenu, api.Loading, "manual", "test", "")
			Expect(store.PutEvent(evt, "test-session", storage.NeverExpire)).To(Succeed())
		})
		It("can be retrieved with a valid ID", func() {
			writer := send(router, http.MethodGet, server.EventsEndpoint+"/"+evt.EventId, "")
			Expect(writer.Code).To(Equal(http.StatusOK))
			var res server.EventResponse
			Expect(json.NewDecoder(writer.Body).Decode(&res)).To(Succeed())
			Expect(res.ID).To(Equal(evt.EventId))
			Expect(res.Event.Transition.From).To(Equal("MainMenu"))
			Expect(res.Event.Transition.To).To(Equal("Loading"))
		})
		It("with an invalid ID will return Not Found", func() {
			writer := send(router, http.MethodGet, server.EventsEndpoint+"/no-such-event", "")
			Expect(writer.Code).To(Equal(http.StatusNotFound))
		})
	})

	It("exposes metrics", func() {
		send(router, http.MethodPost, server.CompletedPath, "")
		writer := send(router, http.MethodGet, server.MetricsEndpoint, "")
		Expect(writer.Code).To(Equal(http.StatusOK))
		Expect(writer.Body.String()).To(ContainSubstring("gamestate_requests_total"))
	})
})

var _ = Describe("HTTP Server", func() {
	BeforeEach(func() {
		api.Logger.Level = log.NONE
	})

	It("times out when the driver is not running", func() {
		requests := make(chan driver.Request)
		d, err := driver.NewDriver(&driver.Options{Engine: arena(), Requests: requests})
		Expect(err).ToNot(HaveOccurred())
		srv := server.NewServer(d, requests, nil)
		srv.SetLogLevel(log.NONE)
		srv.RequestTimeout = 20 * time.Millisecond

		writer := send(srv.NewRouter(), http.MethodPost, server.CompletedPath, "")
		Expect(writer.Code).To(Equal(http.StatusServiceUnavailable))
	})

	It("is unhealthy when the store is down", func() {
		redisServer, err := miniredis.Run()
		Expect(err).ToNot(HaveOccurred())
		store := storage.NewRedisStoreWithDefaults(redisServer.Addr())
		store.SetLogLevel(log.NONE)

		requests := make(chan driver.Request)
		d, err := driver.NewDriver(&driver.Options{Engine: arena(), Requests: requests})
		Expect(err).ToNot(HaveOccurred())
		srv := server.NewServer(d, requests, store)
		srv.SetLogLevel(log.NONE)

		Expect(send(srv.NewRouter(), http.MethodGet, server.HealthEndpoint, "").Code).To(
			Equal(http.StatusOK))
		redisServer.Close()
		Expect(send(srv.NewRouter(), http.MethodGet, server.HealthEndpoint, "").Code).To(
			Equal(http.StatusServiceUnavailable))
	})

	It("builds an http.Server", func() {
		requests := make(chan driver.Request)
		d, err := driver.NewDriver(&driver.Options{Engine: arena(), Requests: requests})
		Expect(err).ToNot(HaveOccurred())
		httpServer := server.NewServer(d, requests, nil).NewHTTPServer(":7399")
		Expect(httpServer.Addr).To(Equal(":7399"))
		Expect(httpServer.Handler).ToNot(BeNil())
	})
})
