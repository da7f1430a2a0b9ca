/*
 * Copyright (c) 2023 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package grpc

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/massenz/slf4go/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/massenz/go-gamestate/driver"
)

// ServiceName is the name the engine's health is reported under; the
// server's overall health (the empty service name) is reported too.
const ServiceName = "gamestate.Engine"

const DefaultPollInterval = 500 * time.Millisecond

type Config struct {
	Driver *driver.Driver
	// TLSConfig is optional; when nil, the server runs in plaintext.
	TLSConfig    *tls.Config
	PollInterval time.Duration
	Logger       *logging.Log
}

// Server serves the standard gRPC Health service, reporting the engine as
// SERVING for as long as its driver is running.
type Server struct {
	*grpc.Server
	*Config
	health *health.Server
}

func NewGrpcServer(config *Config) (*Server, error) {
	if config == nil || config.Driver == nil {
		return nil, driver.MissingEngineError
	}
	if config.Logger == nil {
		config.Logger = logging.NewLog("grpc")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	var opts []grpc.ServerOption
	if config.TLSConfig != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(config.TLSConfig)))
	}
	gsrv := grpc.NewServer(opts...)
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(gsrv, hs)
	return &Server{Server: gsrv, Config: config, health: hs}, nil
}

// ReportStatus tracks the driver until the context is cancelled; it then
// reports every service as NOT_SERVING.
func (s *Server) ReportStatus(ctx context.Context) {
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	serving := false
	for {
		running := s.Driver.Running()
		if running != serving {
			serving = running
			status := healthpb.HealthCheckResponse_NOT_SERVING
			if running {
				status = healthpb.HealthCheckResponse_SERVING
			}
			s.Logger.Info("%s is now %s", ServiceName, status)
			s.health.SetServingStatus(ServiceName, status)
		}
		select {
		case <-ctx.Done():
			s.Logger.Debug("health reporting stopped")
			s.health.Shutdown()
			return
		case <-ticker.C:
		}
	}
}
