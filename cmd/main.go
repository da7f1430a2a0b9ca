/*
 * Copyright (c) 2023 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	slf4go "github.com/massenz/slf4go/logging"
	protos "github.com/massenz/statemachine-proto/golang/api"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/massenz/go-gamestate/api"
	"github.com/massenz/go-gamestate/config"
	"github.com/massenz/go-gamestate/driver"
	"github.com/massenz/go-gamestate/grpc"
	"github.com/massenz/go-gamestate/pubsub"
	"github.com/massenz/go-gamestate/server"
	"github.com/massenz/go-gamestate/storage"
)

const requestsQueueSize = driver.MaxRequestsPerTick

var (
	logger = zlog.With().Str("logger", "gamestate").Logger()

	store storage.StoreManager
	wg    sync.WaitGroup

	// requestsCh carries the requests to the driver: both the HTTP server and
	// the SQS Subscriber (if configured) produce requests for this channel.
	requestsCh = make(chan driver.Request, requestsQueueSize)

	// notificationsCh carries every transition to the SQS Publisher; it is only
	// used if a -notifications queue is defined.
	notificationsCh chan *protos.Event = nil
)

func main() {
	// Global zerolog configuration.
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zlog.Logger = zlog.Output(os.Stderr)

	var configPath = flag.String("config", "", "Path to the YAML state table (required)")
	var initial = flag.String("initial", "",
		"(optional) Initial state; overrides the initial_state in the state table")
	var tick = flag.Duration("tick", 0,
		"(optional) Tick interval; overrides the tick_interval in the state table")
	var session = flag.String("session", "",
		"(optional) Session ID, used as the key for the stored state; a random one is generated if missing")
	var httpPort = flag.Int("http-port", 7399, "The port for the HTTP server")
	var grpcPort = flag.Int("grpc-port", 7398, "The port for the gRPC (health) server")
	var redisUrl = flag.String("redis", "",
		"(optional) host:port for the Redis instance; if missing, state is kept in memory")
	var timeout = flag.Duration("timeout", storage.DefaultTimeout,
		"Timeout for Redis (as a Duration string, e.g. 1s, 20ms, etc.)")
	var maxRetries = flag.Int("max-retries", storage.DefaultMaxRetries,
		"Max number of attempts for a recoverable error to be retried against Redis")
	var eventsTtl = flag.Duration("events-ttl", 24*time.Hour,
		"How long the transition events are kept in the store (0 keeps them forever)")
	var requestsTopic = flag.String("requests", "", "(optional) Topic name to receive requests from")
	var notificationsTopic = flag.String("notifications", "",
		"(optional) The name of the topic to publish transitions to; if not "+
			"specified, no transitions will be published")
	var awsEndpoint = flag.String("endpoint-url", "",
		"HTTP URL for AWS SQS to connect to; usually best left undefined, "+
			"unless required for local testing purposes (LocalStack uses http://localhost:4566)")
	var debug = flag.Bool("debug", false,
		"Verbose logs; better to avoid on Production services")
	var trace = flag.Bool("trace", false,
		"Extremely verbose logs for every API request and tick; it may impact"+
			" performance, do not use in production (will override the -debug option)")
	flag.Parse()

	logger.Info().Str("release", server.Release).Msg("starting Game State Server")
	if *configPath == "" {
		logger.Fatal().Err(fmt.Errorf("%w: -config is required", api.ConfigError)).
			Msg("fatal configuration error")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("config", *configPath).Msg("cannot load state table")
	}
	if *initial != "" {
		cfg.InitialState = *initial
	}
	table, initialState, err := cfg.Build()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid state table")
	}
	engine, err := api.NewEngine(table, initialState)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create the engine")
	}
	tickInterval := cfg.TickInterval
	if *tick > 0 {
		tickInterval = *tick
	}

	if *redisUrl == "" {
		logger.Warn().Msg("no Redis server configured, state will not survive a restart")
		store = storage.NewInMemoryStore()
	} else {
		logger.Info().
			Str("redis_addr", *redisUrl).
			Str("redis_timeout", timeout.String()).
			Str("redis_max_retries", strconv.Itoa(*maxRetries)).
			Msg("connecting to Redis server")
		store = storage.NewRedisStore(*redisUrl, storage.DefaultRedisDb, *timeout, *maxRetries)
		if err = store.Health(); err != nil {
			logger.Fatal().Err(err).Msg("Redis unreachable")
		}
	}

	var endpoint *string
	if *awsEndpoint != "" {
		endpoint = awsEndpoint
	}
	var pub *pubsub.SqsPublisher
	if *notificationsTopic != "" {
		logger.Info().
			Str("sqs_topic", *notificationsTopic).
			Str("sqs_endpoint", *awsEndpoint).
			Msg("publishing transitions to SQS topic")
		notificationsCh = make(chan *protos.Event, requestsQueueSize)
		pub, err = pubsub.NewSqsPublisher(notificationsCh, endpoint)
		if err != nil {
			logger.Fatal().Err(err).Msg("fatal error creating SQS publisher")
		}
	}

	drv, err := driver.NewDriver(&driver.Options{
		Engine:        engine,
		SessionId:     *session,
		TickInterval:  tickInterval,
		Requests:      requestsCh,
		Notifications: notificationsCh,
		Store:         store,
		EventsTtl:     *eventsTtl,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create the driver")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan interface{})

	var sub *pubsub.SqsSubscriber
	if *requestsTopic != "" {
		logger.Info().
			Str("sqs_topic", *requestsTopic).
			Str("sqs_endpoint", *awsEndpoint).
			Msg("connecting to SQS topic for incoming requests")
		sub, err = pubsub.NewSqsSubscriber(requestsCh, endpoint)
		if err != nil {
			logger.Fatal().Err(err).Msg("fatal error creating SQS subscriber")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sub.Subscribe(*requestsTopic, done); err != nil {
				logger.Error().Err(err).Msg("SQS subscriber exited")
			}
		}()
	}
	if pub != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pub.Publish(*notificationsTopic); err != nil {
				logger.Error().Err(err).Msg("SQS publisher exited")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := drv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("driver exited with error")
		}
		// The driver is the only sender on the notifications channel.
		if notificationsCh != nil {
			close(notificationsCh)
		}
	}()

	srv := server.NewServer(drv, requestsCh, store)
	httpServer := startHttpServer(srv, *httpPort)
	logger.Info().Str("grpc_port", strconv.Itoa(*grpcPort)).Msg("gRPC server starting")
	grpcServer := startGrpcServer(ctx, drv, *grpcPort)

	// This should not be invoked until we have initialized all the services.
	loggables := []slf4go.Loggable{store, drv, srv}
	if sub != nil {
		loggables = append(loggables, sub)
	}
	if pub != nil {
		loggables = append(loggables, pub)
	}
	setLogLevel(*debug, *trace, loggables)
	if *trace {
		srv.EnableTracing()
	}
	logger.Info().
		Str("table", cfg.Name).
		Str("session", drv.SessionId()).
		Str("tick", tickInterval.String()).
		Msg("game state server ready")
	RunUntilStopped(cancel, done, grpcServer, httpServer)
	logger.Info().Msg("...done. Goodbye.")
}

func RunUntilStopped(cancel context.CancelFunc, done chan interface{},
	grpcServer *grpc.Server, httpServer *http.Server) {
	// Trap Ctrl-C and SIGTERM (Docker/Kubernetes) to shutdown gracefully
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Block until a signal is received.
	<-c
	logger.Info().Msg("shutting down services...")
	close(done)
	cancel()
	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server did not shut down cleanly")
	}
	grpcServer.GracefulStop()
	logger.Info().Msg("waiting for services to exit...")
	wg.Wait()
}

// setLogLevel sets the logging level depending on -debug / -trace.
// If both are set, then -trace takes priority.
func setLogLevel(debug bool, trace bool, loggables []slf4go.Loggable) {
	level := zerolog.InfoLevel
	var slf4goLevel slf4go.LogLevel = slf4go.INFO
	if debug && !trace {
		logger.Info().Msg("verbose logging enabled")
		level = zerolog.DebugLevel
		slf4goLevel = slf4go.DEBUG
	} else if trace {
		logger.Info().Msg("trace logging enabled")
		level = zerolog.TraceLevel
		slf4goLevel = slf4go.TRACE
	}
	zerolog.SetGlobalLevel(level)
	api.Logger.Level = slf4goLevel
	config.SetLogLevel(slf4goLevel)
	for _, l := range loggables {
		l.SetLogLevel(slf4goLevel)
	}
}

func startHttpServer(srv *server.Server, port int) *http.Server {
	httpServer := srv.NewHTTPServer(fmt.Sprintf(":%d", port))
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Int("http_port", port).Msg("HTTP server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server exited with error")
		}
		logger.Info().Msg("HTTP server exited")
	}()
	return httpServer
}

// startGrpcServer will start a new gRPC server, bound to the local `port`,
// reporting the health of the driver until the context is cancelled.
func startGrpcServer(ctx context.Context, drv *driver.Driver, port int) *grpc.Server {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.Fatal().Err(err).Int("grpc_port", port).Msg("cannot listen")
	}
	grpcServer, err := grpc.NewGrpcServer(&grpc.Config{Driver: drv})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create gRPC server")
	}
	go grpcServer.ReportStatus(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := grpcServer.Serve(l); err != nil {
			logger.Fatal().Err(err).Msg("gRPC server exited with error")
		}
		logger.Info().Msg("gRPC Server exited")
	}()
	return grpcServer
}
