/*
 * Copyright (c) 2023 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/massenz/go-gamestate/api"
)

const (
	Namespace = "gamestate"

	TriggerManual = "manual"
	TriggerTimer  = "timer"
)

// Collector holds the engine metrics, registered with their own registry.
type Collector struct {
	registry *prometheus.Registry

	Transitions *prometheus.CounterVec
	Failures    *prometheus.CounterVec
	Requests    *prometheus.CounterVec
	Completed   prometheus.Gauge
	TimerSecs   prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transitions_total",
			Help:      "State transitions, by trigger and destination state.",
		}, []string{"trigger", "to"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "failures_total",
			Help:      "Recoverable engine failures, by kind.",
		}, []string{"kind"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "requests_total",
			Help:      "Write requests applied by the driver, by kind.",
		}, []string{"kind"}),
		Completed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "completed",
			Help:      "1 if the current state has been flagged as completed.",
		}),
		TimerSecs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "timer_seconds",
			Help:      "Time accumulated by the auto-advance timer of the current node.",
		}),
	}
	c.registry.MustRegister(c.Transitions, c.Failures, c.Requests, c.Completed, c.TimerSecs)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveTransition(trigger string, to api.StateId) {
	c.Transitions.WithLabelValues(trigger, to.String()).Inc()
}

func (c *Collector) ObserveRequest(kind string) {
	c.Requests.WithLabelValues(kind).Inc()
}

// ObserveFailure counts `err` by its kind; nil errors are ignored.
func (c *Collector) ObserveFailure(err error) {
	if err == nil {
		return
	}
	c.Failures.WithLabelValues(FailureKind(err)).Inc()
}

func (c *Collector) ObserveSnapshot(snapshot api.Snapshot) {
	if snapshot.Completed {
		c.Completed.Set(1)
	} else {
		c.Completed.Set(0)
	}
	c.TimerSecs.Set(snapshot.Elapsed.Seconds())
}

func FailureKind(err error) string {
	switch {
	case errors.Is(err, api.OutOfRangeError):
		return "out_of_range"
	case errors.Is(err, api.UnresolvedStateError):
		return "unresolved_state"
	case errors.Is(err, api.ConfigError):
		return "config"
	default:
		return "other"
	}
}
