/*
 * Copyright (c) 2023 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package grpc_test

import (
	"context"
	"net"
	"time"

	log "github.com/massenz/slf4go/logging"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/massenz/go-gamestate/api"
	"github.com/massenz/go-gamestate/driver"
	"github.com/massenz/go-gamestate/grpc"
)

var _ = Describe("gRPC Health", func() {
	var (
		d        *driver.Driver
		requests chan driver.Request
		srv      *grpc.Server
		client   healthpb.HealthClient
		closer   func()
		stop     context.CancelFunc
	)
	checkStatus := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		res, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		Expect(err).ToNot(HaveOccurred())
		return res.Status
	}

	BeforeEach(func() {
		api.Logger.Level = log.NONE
		table, err := api.NewStateTable([]api.StateNode{{State: api.MainMenu}}, true)
		Expect(err).ToNot(HaveOccurred())
		engine, err := api.NewEngine(table, api.MainMenu)
		Expect(err).ToNot(HaveOccurred())
		requests = make(chan driver.Request)
		d, err = driver.NewDriver(&driver.Options{
			Engine: engine, Requests: requests, TickInterval: 5 * time.Millisecond})
		Expect(err).ToNot(HaveOccurred())
		d.SetLogLevel(log.NONE)

		logger := log.NewLog("grpc-test")
		logger.Level = log.NONE
		srv, err = grpc.NewGrpcServer(&grpc.Config{
			Driver:       d,
			PollInterval: 5 * time.Millisecond,
			Logger:       logger,
		})
		Expect(err).ToNot(HaveOccurred())

		listener, err := net.Listen("tcp", "localhost:0")
		Expect(err).ToNot(HaveOccurred())
		go func() { _ = srv.Serve(listener) }()
		client, closer = NewClient(listener.Addr().String())

		var ctx context.Context
		ctx, stop = context.WithCancel(context.Background())
		go srv.ReportStatus(ctx)
	})
	AfterEach(func() {
		stop()
		closer()
		srv.Stop()
	})

	It("needs a driver", func() {
		_, err := grpc.NewGrpcServer(&grpc.Config{})
		Expect(err).To(MatchError(driver.MissingEngineError))
	})

	It("reports the server as serving", func() {
		Expect(checkStatus("")).To(Equal(healthpb.HealthCheckResponse_SERVING))
	})

	It("tracks the driver", func() {
		Expect(checkStatus(grpc.ServiceName)).To(Equal(healthpb.HealthCheckResponse_NOT_SERVING))

		ctx, cancel := context.WithCancel(context.Background())
		go func() { _ = d.Run(ctx) }()
		Eventually(func() healthpb.HealthCheckResponse_ServingStatus {
			return checkStatus(grpc.ServiceName)
		}).Should(Equal(healthpb.HealthCheckResponse_SERVING))

		cancel()
		Eventually(func() healthpb.HealthCheckResponse_ServingStatus {
			return checkStatus(grpc.ServiceName)
		}).Should(Equal(healthpb.HealthCheckResponse_NOT_SERVING))
	})

	It("does not know other services", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "statemachine"})
		Expect(err).To(HaveOccurred())
		s, ok := status.FromError(err)
		Expect(ok).To(BeTrue())
		Expect(s.Code()).To(Equal(codes.NotFound))
	})
})
