/*
 * Copyright (c) 2023 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package pubsub_test

import (
	"fmt"
	"os"
	"time"

	. "github.com/JiaYongfei/respect/gomega"
	"github.com/golang/protobuf/proto"
	log "github.com/massenz/slf4go/logging"
	protos "github.com/massenz/statemachine-proto/golang/api"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/massenz/go-gamestate/api"
	"github.com/massenz/go-gamestate/driver"
	"github.com/massenz/go-gamestate/pubsub"
)

var _ = Describe("SQS Publisher", func() {
	Context("when connected to SQS", func() {
		var (
			testPublisher   *pubsub.SqsPublisher
			notificationsCh chan *protos.Event
		)
		BeforeEach(func() {
			requireSqs()
			notificationsCh = make(chan *protos.Event)
			var err error
			testPublisher, err = pubsub.NewSqsPublisher(notificationsCh, &awsLocal.EndpointUri)
			Expect(err).ToNot(HaveOccurred())
			// Set to DEBUG when diagnosing test failures
			testPublisher.SetLogLevel(log.NONE)
		})
		It("publishes transition events", func() {
			event := driver.NewTransitionEvent(api.Loading, api.Match, "timer", "timer", "")
			done := make(chan interface{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				Expect(testPublisher.Publish(getQueueName(notificationsQueue))).To(Succeed())
			}()
			notificationsCh <- event

			var res = getSqsMessage(getQueueName(notificationsQueue))
			Eventually(func() bool {
				if res == nil {
					res = getSqsMessage(getQueueName(notificationsQueue))
				}
				return res != nil
			}, timeout).Should(BeTrue())

			var sent protos.Event
			Expect(proto.UnmarshalText(*res.Body, &sent)).To(Succeed())
			Expect(sent.EventId).To(Equal(event.EventId))
			Expect(sent.Transition).To(Respect(event.Transition))

			close(notificationsCh)
			Eventually(done, timeout).Should(BeClosed())
		})
		It("will terminate gracefully when the notifications channel is closed", func() {
			done := make(chan interface{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				Expect(testPublisher.Publish(getQueueName(notificationsQueue))).To(Succeed())
			}()
			close(notificationsCh)
			Eventually(done, timeout).Should(BeClosed())
		})
		It("will send several events within a reasonable timeframe", func() {
			go func() {
				_ = testPublisher.Publish(getQueueName(notificationsQueue))
			}()
			for i := range [5]int{} {
				notificationsCh <- driver.NewTransitionEvent(api.Loading, api.Match,
					"manual", fmt.Sprintf("player-%d", i), "")
			}
			close(notificationsCh)
			received := 0
			Eventually(func() int {
				if getSqsMessage(getQueueName(notificationsQueue)) != nil {
					received++
				}
				return received
			}, 5*timeout, 100*time.Millisecond).Should(Equal(5))
		})
	})
	It("fails without a region for a custom endpoint", func() {
		if _, found := os.LookupEnv("AWS_REGION"); found {
			Skip("AWS_REGION is set")
		}
		url := "http://localhost:4566"
		_, err := pubsub.NewSqsPublisher(nil, &url)
		Expect(err).To(HaveOccurred())
	})
})
