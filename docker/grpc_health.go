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
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

// Most basic binary to run health checks on the game-state server.
// Used to assert readiness of the container/pod in Docker/Kubernetes.
func main() {
	var address = flag.String("host", "localhost:7398",
		"The address (host:port) for the gRPC server")
	var service = flag.String("service", "gamestate.Engine",
		"The service to check; use an empty string for the server as a whole")
	var timeout = flag.Duration("timeout", 200*time.Millisecond,
		"timeout expressed as a duration string (e.g., 200ms, 1s, etc.)")
	var noTLS = flag.Bool("insecure", false, "disables TLS")
	flag.Parse()

	var creds credentials.TransportCredentials
	if *noTLS {
		creds = insecure.NewCredentials()
	} else {
		config := &tls.Config{
			InsecureSkipVerify: true,
		}
		creds = credentials.NewTLS(config)
	}

	cc, err := grpc.Dial(*address, grpc.WithTransportCredentials(creds))
	if err != nil {
		log.Fatalf("cannot open connection to %s: %v", *address, err)
	}
	defer cc.Close()

	client := healthpb.NewHealthClient(cc)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: *service})
	if err != nil {
		log.Fatal("cannot connect to server:", err)
	}
	jsonBytes, err := protojson.Marshal(resp)
	if err != nil {
		log.Fatal("Error while marshaling the message to JSON:", err)
	}
	fmt.Println(string(jsonBytes))
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		os.Exit(1)
	}
}
