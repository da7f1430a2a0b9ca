/*
 * Copyright (c) 2023 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

// Package config reads the authored state table of a level (or scene) from YAML.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	log "github.com/massenz/slf4go/logging"
	"gopkg.in/yaml.v3"

	"github.com/massenz/go-gamestate/api"
)

var logger = log.NewLog("config")

// MaxDuration is the longest timer, in seconds, that fits in a time.Duration.
const MaxDuration = float64(math.MaxInt64) / float64(time.Second)

// AutoAdvance is the authored form of an api.AutoAdvanceRule; `Duration` is
// in seconds.
type AutoAdvance struct {
	Target   string  `yaml:"target"`
	Duration float64 `yaml:"duration"`
}

type StateConfig struct {
	State       string       `yaml:"state"`
	AutoAdvance *AutoAdvance `yaml:"auto_advance,omitempty"`
}

// TableConfig is the authored definition of a state table, along with the
// state the engine should start from.
type TableConfig struct {
	Name         string        `yaml:"name"`
	InitialState string        `yaml:"initial_state"`
	TickInterval time.Duration `yaml:"tick_interval,omitempty"`
	States       []StateConfig `yaml:"states"`
}

func SetLogLevel(level log.LogLevel) {
	logger.Level = level
}

// Load reads and parses the YAML file at `path`.
func Load(path string) (*TableConfig, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded %d bytes from %s", len(contents), path)
	return Parse(contents)
}

// Parse decodes a YAML table definition and checks it can be built.
func Parse(contents []byte) (*TableConfig, error) {
	var cfg TableConfig
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", api.ConfigError, err)
	}
	if err := cfg.CheckValid(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CheckValid validates the authored data, without building the table.
func (c *TableConfig) CheckValid() error {
	if c.Name == "" {
		return fmt.Errorf("%w: the table must have a name", api.ConfigError)
	}
	if len(c.States) == 0 {
		return fmt.Errorf("%w: table %s defines no states", api.ConfigError, c.Name)
	}
	if c.TickInterval < 0 {
		return fmt.Errorf("%w: negative tick interval %v", api.ConfigError, c.TickInterval)
	}
	for i, s := range c.States {
		if s.State == "" {
			return fmt.Errorf("%w: state #%d has no name", api.ConfigError, i)
		}
		if s.AutoAdvance != nil {
			d := s.AutoAdvance.Duration
			if math.IsNaN(d) || math.IsInf(d, 0) {
				return fmt.Errorf("%w: state %s has an invalid duration", api.ConfigError, s.State)
			}
			if d >= MaxDuration {
				return fmt.Errorf("%w: state %s has a duration longer than %.0fs",
					api.ConfigError, s.State, MaxDuration)
			}
		}
	}
	return nil
}

// Nodes converts the authored states into table nodes.
func (c *TableConfig) Nodes() []api.StateNode {
	nodes := make([]api.StateNode, 0, len(c.States))
	for _, s := range c.States {
		node := api.StateNode{State: api.StateId(s.State)}
		if s.AutoAdvance != nil {
			node.AutoAdvance = &api.AutoAdvanceRule{
				Target:   api.StateId(s.AutoAdvance.Target),
				Duration: time.Duration(s.AutoAdvance.Duration * float64(time.Second)),
			}
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// Build creates the state table, and returns it with the initial state.
//
// All errors wrap api.ConfigError, and the engine must not be started.
func (c *TableConfig) Build() (*api.StateTable, api.StateId, error) {
	if err := c.CheckValid(); err != nil {
		return nil, api.Default, err
	}
	table, err := api.NewStateTable(c.Nodes(), true)
	if err != nil {
		return nil, api.Default, err
	}
	initial := api.StateId(c.InitialState)
	if _, err := table.ResolveInitialIndex(initial); err != nil {
		logger.Warn("table %s: initial state %s: %v", c.Name, initial, err)
	}
	logger.Info("state table %s built: %d states, starting at %s", c.Name, table.Len(), initial)
	return table, initial, nil
}
