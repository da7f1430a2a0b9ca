/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"
	log "github.com/massenz/slf4go/logging"
	protos "github.com/massenz/statemachine-proto/golang/api"

	"github.com/massenz/go-gamestate/api"
)

func Error(msg string) func(string) error {
	return func(key string) error {
		return fmt.Errorf(msg, key)
	}
}

var (
	IllegalStoreError = Error("error storing invalid data: %v")
	NotFoundError     = Error("key %s not found")
)

// SnapshotStorageManager keeps the last published state of a session's engine.
//
// Snapshots are written for observers (dashboards, other services); they are
// never read back into a running engine.
type SnapshotStorageManager interface {
	GetSnapshot(sessionId string) (*api.Snapshot, bool)
	PutSnapshot(sessionId string, snapshot *api.Snapshot) error
}

// EventStorageManager keeps the transitions of a session, as Events.
type EventStorageManager interface {
	GetEvent(id string, sessionId string) (*protos.Event, bool)

	// PutEvent stores the event, optionally removing it after `ttl`; use
	// NeverExpire to keep it forever.
	PutEvent(event *protos.Event, sessionId string, ttl time.Duration) error
}

type StoreManager interface {
	log.Loggable
	SnapshotStorageManager
	EventStorageManager
	SetTimeout(duration time.Duration)
	GetTimeout() time.Duration
	Health() error
}

// A codec knows how to convert a value to and from bytes.
type codec interface {
	marshal() ([]byte, error)
	unmarshal(data []byte) error
}

type protoCodec struct{ msg proto.Message }

func (c protoCodec) marshal() ([]byte, error)    { return proto.Marshal(c.msg) }
func (c protoCodec) unmarshal(data []byte) error { return proto.Unmarshal(data, c.msg) }

type jsonCodec struct{ value interface{} }

func (c jsonCodec) marshal() ([]byte, error)    { return json.Marshal(c.value) }
func (c jsonCodec) unmarshal(data []byte) error { return json.Unmarshal(data, c.value) }
