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
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	slf4go "github.com/massenz/slf4go/logging"
	protos "github.com/massenz/statemachine-proto/golang/api"

	"github.com/massenz/go-gamestate/api"
)

const (
	NeverExpire       = 0
	DefaultRedisPort  = "6379"
	DefaultRedisDb    = 0
	DefaultMaxRetries = 3
	DefaultTimeout    = 200 * time.Millisecond
)

type RedisStore struct {
	logger     *slf4go.Log
	client     *redis.Client
	Timeout    time.Duration
	MaxRetries int
}

func NewRedisStoreWithDefaults(address string) StoreManager {
	return NewRedisStore(address, DefaultRedisDb, DefaultTimeout, DefaultMaxRetries)
}

func NewRedisStore(address string, db int, timeout time.Duration, maxRetries int) StoreManager {
	logger := slf4go.NewLog(fmt.Sprintf("redis://%s/%d", address, db))
	var tlsConfig *tls.Config
	if os.Getenv("REDIS_TLS") != "" {
		logger.Info("Using TLS for Redis connection")
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &RedisStore{
		logger: logger,
		client: redis.NewClient(&redis.Options{
			TLSConfig: tlsConfig,
			Addr:      address,
			DB:        db, // 0 means default DB
		}),
		Timeout:    timeout,
		MaxRetries: maxRetries,
	}
}

func (csm *RedisStore) GetSnapshot(sessionId string) (*api.Snapshot, bool) {
	key := NewKeyForSnapshot(sessionId)
	var snapshot api.Snapshot
	err := csm.get(key, jsonCodec{&snapshot})
	if err != nil {
		csm.logger.Error("Error retrieving snapshot `%s`: %s", key, err.Error())
		return nil, false
	}
	return &snapshot, true
}

func (csm *RedisStore) PutSnapshot(sessionId string, snapshot *api.Snapshot) error {
	if snapshot == nil {
		return IllegalStoreError(sessionId)
	}
	return csm.put(NewKeyForSnapshot(sessionId), jsonCodec{snapshot}, NeverExpire)
}

func (csm *RedisStore) GetEvent(id string, sessionId string) (*protos.Event, bool) {
	key := NewKeyForEvent(id, sessionId)
	var event protos.Event
	err := csm.get(key, protoCodec{&event})
	if err != nil {
		csm.logger.Error("Error retrieving event `%s`: %s", key, err.Error())
		return nil, false
	}
	return &event, true
}

func (csm *RedisStore) PutEvent(event *protos.Event, sessionId string, ttl time.Duration) error {
	if event == nil {
		return IllegalStoreError(sessionId)
	}
	key := NewKeyForEvent(event.EventId, sessionId)
	return csm.put(key, protoCodec{event}, ttl)
}

func (csm *RedisStore) SetTimeout(duration time.Duration) {
	csm.Timeout = duration
}

func (csm *RedisStore) GetTimeout() time.Duration {
	return csm.Timeout
}

// SetLogLevel for RedisStore implements the Loggable interface
func (csm *RedisStore) SetLogLevel(level slf4go.LogLevel) {
	csm.logger.Level = level
}

// `get` abstracts away the common functionality of looking for a key in Redis,
// with a given timeout and a number of retries.
func (csm *RedisStore) get(key string, value codec) error {
	attemptsLeft := csm.MaxRetries
	csm.logger.Trace("Looking up key `%s` (Max retries: %d)", key, attemptsLeft)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), csm.Timeout)
		attemptsLeft--
		data, err := csm.client.Get(ctx, key).Bytes()
		timedOut := ctx.Err() == context.DeadlineExceeded
		cancel()
		if errors.Is(err, redis.Nil) {
			// The key isn't there, no point in retrying
			csm.logger.Debug("Key `%s` not found", key)
			return NotFoundError(key)
		} else if err != nil {
			csm.logger.Error(err.Error())
			if !timedOut {
				return err
			}
			// The error here may be recoverable, so we'll keep trying until we run out of attempts
			if attemptsLeft <= 0 {
				csm.logger.Error("max retries reached, giving up")
				return err
			}
			csm.logger.Trace("retrying after timeout, attempts left: %d", attemptsLeft)
			csm.wait()
		} else {
			return value.unmarshal(data)
		}
	}
}

func (csm *RedisStore) put(key string, value codec, ttl time.Duration) error {
	data, err := value.marshal()
	if err != nil {
		csm.logger.Error("cannot convert %s to bytes: %q", key, err)
		return err
	}
	attemptsLeft := csm.MaxRetries
	csm.logger.Trace("Storing key `%s` (Max retries: %d)", key, attemptsLeft)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), csm.Timeout)
		attemptsLeft--
		_, err = csm.client.Set(ctx, key, data, ttl).Result()
		timedOut := ctx.Err() == context.DeadlineExceeded
		cancel()
		if err == nil {
			return nil
		}
		csm.logger.Error(err.Error())
		if !timedOut {
			return err
		}
		if attemptsLeft <= 0 {
			csm.logger.Error("max retries reached, giving up")
			return err
		}
		csm.logger.Trace("retrying after timeout, attempts left: %d", attemptsLeft)
		csm.wait()
	}
}

func (csm *RedisStore) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), csm.Timeout)
	defer cancel()

	_, err := csm.client.Ping(ctx).Result()
	if err != nil {
		csm.logger.Error("Error pinging redis: %s", err.Error())
		return fmt.Errorf("Redis health check failed: %w", err)
	}
	return nil
}

// wait is a helper function that sleeps for a random amount of time between 0 and half second.
// Poor man's backoff.
//
// TODO: wait time should be configurable
func (csm *RedisStore) wait() {
	waitForMsec := rand.Intn(500)
	time.Sleep(time.Duration(waitForMsec) * time.Millisecond)
}
