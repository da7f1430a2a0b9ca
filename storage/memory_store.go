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
	"sync"
	"time"

	slf4go "github.com/massenz/slf4go/logging"
	protos "github.com/massenz/statemachine-proto/golang/api"

	"github.com/massenz/go-gamestate/api"
)

type entry struct {
	data    []byte
	expires time.Time
}

type InMemoryStore struct {
	logger       *slf4go.Log
	mux          sync.RWMutex
	backingStore map[string]entry
	lastSweep    time.Time
}

// sweepInterval is how often a put also clears out the expired entries.
var sweepInterval = time.Second

func NewInMemoryStore() StoreManager {
	return &InMemoryStore{
		backingStore: make(map[string]entry),
		logger:       slf4go.NewLog("InMemoryStore"),
	}
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

func (csm *InMemoryStore) get(key string, value codec) bool {
	csm.mux.RLock()
	e, ok := csm.backingStore[key]
	csm.mux.RUnlock()

	if ok && e.expired(time.Now()) {
		csm.mux.Lock()
		// It may have been replaced since we released the read lock.
		if e, found := csm.backingStore[key]; found && e.expired(time.Now()) {
			delete(csm.backingStore, key)
		}
		csm.mux.Unlock()
		ok = false
	}
	csm.logger.Trace("key %s - Found: %t", key, ok)
	if ok {
		err := value.unmarshal(e.data)
		if err != nil {
			csm.logger.Error(err.Error())
			return false
		}
	}
	return ok
}

func (csm *InMemoryStore) put(key string, value codec, ttl time.Duration) error {
	val, err := value.marshal()
	if err != nil {
		return err
	}
	csm.mux.Lock()
	defer csm.mux.Unlock()

	now := time.Now()
	if now.Sub(csm.lastSweep) >= sweepInterval {
		csm.sweep(now)
	}
	csm.logger.Trace("Storing key %s", key)
	e := entry{data: val}
	if ttl != NeverExpire {
		e.expires = now.Add(ttl)
	}
	csm.backingStore[key] = e
	return nil
}

// sweep drops every expired entry; the caller must hold the write lock.
func (csm *InMemoryStore) sweep(now time.Time) {
	for key, e := range csm.backingStore {
		if e.expired(now) {
			delete(csm.backingStore, key)
		}
	}
	csm.lastSweep = now
}

// Len is the number of entries currently held, including those expired but
// not yet swept.
func (csm *InMemoryStore) Len() int {
	csm.mux.RLock()
	defer csm.mux.RUnlock()
	return len(csm.backingStore)
}

func (csm *InMemoryStore) GetSnapshot(sessionId string) (*api.Snapshot, bool) {
	key := NewKeyForSnapshot(sessionId)
	var snapshot api.Snapshot
	if csm.get(key, jsonCodec{&snapshot}) {
		return &snapshot, true
	}
	csm.logger.Debug("Not found for key %s", key)
	return nil, false
}

func (csm *InMemoryStore) PutSnapshot(sessionId string, snapshot *api.Snapshot) error {
	if snapshot == nil {
		return IllegalStoreError(sessionId)
	}
	key := NewKeyForSnapshot(sessionId)
	csm.logger.Debug("Storing snapshot [%s] in state: %s", key, snapshot.CurrentState)
	return csm.put(key, jsonCodec{snapshot}, NeverExpire)
}

func (csm *InMemoryStore) GetEvent(id string, sessionId string) (*protos.Event, bool) {
	key := NewKeyForEvent(id, sessionId)
	event := &protos.Event{}
	if csm.get(key, protoCodec{event}) {
		return event, true
	}
	return nil, false
}

func (csm *InMemoryStore) PutEvent(event *protos.Event, sessionId string, ttl time.Duration) error {
	if event == nil {
		return IllegalStoreError(sessionId)
	}
	key := NewKeyForEvent(event.EventId, sessionId)
	return csm.put(key, protoCodec{event}, ttl)
}

func (csm *InMemoryStore) SetLogLevel(level slf4go.LogLevel) {
	csm.logger.Level = level
}

// SetTimeout does not really make sense for an in-memory store, so this is a no-op
func (csm *InMemoryStore) SetTimeout(_ time.Duration) {
	// do nothing
}

// GetTimeout does not really make sense for an in-memory store,
// so this just returns a NeverExpire constant.
func (csm *InMemoryStore) GetTimeout() time.Duration {
	return NeverExpire
}

func (csm *InMemoryStore) Health() error {
	return nil
}
