/*
 * Copyright (c) 2023 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package api_test

import (
	"time"

	log "github.com/massenz/slf4go/logging"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/massenz/go-gamestate/api"
)

var _ = Describe("State Tables", func() {
	BeforeEach(func() { api.Logger.Level = log.NONE })

	var nodes []api.StateNode
	BeforeEach(func() {
		nodes = []api.StateNode{
			{State: api.MainMenu},
			{State: api.Loading, AutoAdvance: &api.AutoAdvanceRule{Target: api.Match, Duration: 3 * time.Second}},
			{State: api.Match},
			{State: api.Loading},
		}
	})

	Context("when built from valid nodes", func() {
		It("keeps the authored order", func() {
			table, err := api.NewStateTable(nodes, true)
			Expect(err).ToNot(HaveOccurred())
			Expect(table.Len()).To(Equal(4))
			Expect(table.States()).To(Equal([]api.StateId{api.MainMenu, api.Loading, api.Match, api.Loading}))
		})
		It("is not affected by changes to the authored nodes", func() {
			table, err := api.NewStateTable(nodes, true)
			Expect(err).ToNot(HaveOccurred())
			nodes[0].State = api.EndMatch
			nodes[1].AutoAdvance.Duration = time.Hour
			n, err := table.NodeAt(0)
			Expect(err).ToNot(HaveOccurred())
			Expect(n.State).To(Equal(api.MainMenu))
			n, err = table.NodeAt(1)
			Expect(err).ToNot(HaveOccurred())
			Expect(n.Duration()).To(Equal(3 * time.Second))
		})
		It("does not hand out its own nodes", func() {
			table, _ := api.NewStateTable(nodes, true)
			copied := table.Nodes()
			copied[1].AutoAdvance.Target = api.EndMatch
			n, _ := table.NodeAt(1)
			Expect(n.TargetState()).To(Equal(api.Match))
		})
		It("exposes timer data on the nodes", func() {
			table, _ := api.NewStateTable(nodes, true)
			n, _ := table.NodeAt(1)
			Expect(n.UseTimer()).To(BeTrue())
			Expect(n.TargetState()).To(Equal(api.Match))
			n, _ = table.NodeAt(2)
			Expect(n.UseTimer()).To(BeFalse())
			Expect(n.TargetState()).To(Equal(api.Default))
			Expect(n.Duration()).To(BeZero())
		})
	})

	Context("when nodes are malformed", func() {
		It("rejects negative durations", func() {
			nodes[1].AutoAdvance.Duration = -time.Second
			_, err := api.NewStateTable(nodes, false)
			Expect(err).To(MatchError(api.ConfigError))
		})
		It("rejects timers without a target", func() {
			nodes[1].AutoAdvance.Target = api.Default
			_, err := api.NewStateTable(nodes, false)
			Expect(err).To(MatchError(api.ConfigError))
		})
	})

	Context("when empty", func() {
		It("fails if states are required", func() {
			_, err := api.NewStateTable(nil, true)
			Expect(err).To(MatchError(api.ConfigError))
		})
		It("is otherwise legal", func() {
			table, err := api.NewStateTable(nil, false)
			Expect(err).ToNot(HaveOccurred())
			Expect(table.Len()).To(Equal(0))
			idx, err := table.ResolveInitialIndex(api.Loading)
			Expect(idx).To(Equal(api.NoIndex))
			Expect(err).To(MatchError(api.UnresolvedStateError))
		})
	})

	Context("resolving the initial index", func() {
		var table *api.StateTable
		BeforeEach(func() {
			var err error
			table, err = api.NewStateTable(nodes, true)
			Expect(err).ToNot(HaveOccurred())
		})
		It("finds the first matching node", func() {
			idx, err := table.ResolveInitialIndex(api.Loading)
			Expect(err).ToNot(HaveOccurred())
			Expect(idx).To(Equal(1))
		})
		It("falls back to the first node", func() {
			idx, err := table.ResolveInitialIndex(api.EndMatch)
			Expect(err).To(MatchError(api.UnresolvedStateError))
			Expect(idx).To(Equal(0))
		})
	})

	Context("looking up nodes", func() {
		It("fails outside of the table", func() {
			table, _ := api.NewStateTable(nodes, true)
			_, err := table.NodeAt(-1)
			Expect(err).To(MatchError(api.OutOfRangeError))
			_, err = table.NodeAt(table.Len())
			Expect(err).To(MatchError(api.OutOfRangeError))
		})
	})
})
