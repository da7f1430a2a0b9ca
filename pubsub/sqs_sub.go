/*
 * Copyright (c) 2023 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package pubsub

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	log "github.com/massenz/slf4go/logging"

	"github.com/massenz/go-gamestate/api"
	"github.com/massenz/go-gamestate/driver"
)

// SqsSubscriber turns the messages received on an SQS queue into driver requests.
type SqsSubscriber struct {
	logger          *log.Log
	client          *sqs.SQS
	requests        chan<- driver.Request
	Timeout         time.Duration
	PollingInterval time.Duration
}

// NewSqsSubscriber will create a new `Subscriber` to listen to
// incoming requests from a SQS queue.
func NewSqsSubscriber(requests chan<- driver.Request, sqsUrl *string) (*SqsSubscriber, error) {
	client, err := getSqsClient(sqsUrl)
	if err != nil {
		return nil, err
	}
	return &SqsSubscriber{
		logger:          log.NewLog("SQS-Sub"),
		client:          client,
		requests:        requests,
		Timeout:         DefaultVisibilityTimeout,
		PollingInterval: DefaultPollingInterval,
	}, nil
}

// SetLogLevel allows the SqsSubscriber to implement the log.Loggable interface
func (s *SqsSubscriber) SetLogLevel(level log.LogLevel) {
	s.logger.Level = level
}

// Subscribe runs until signaled on the Done channel and listens for incoming requests
func (s *SqsSubscriber) Subscribe(topic string, done <-chan interface{}) error {
	queueUrl, err := GetQueueUrl(s.client, topic)
	if err != nil {
		return err
	}
	s.logger.Info("SQS Subscriber started for queue: %s", queueUrl)

	timeout := int64(s.Timeout.Seconds())
	for {
		select {
		case <-done:
			s.logger.Info("SQS Subscriber terminating")
			return nil
		default:
		}
		start := time.Now()
		s.logger.Trace("Polling SQS at %v", start)
		msgResult, err := s.client.ReceiveMessage(&sqs.ReceiveMessageInput{
			AttributeNames: []*string{
				aws.String(sqs.MessageSystemAttributeNameSentTimestamp),
			},
			MessageAttributeNames: []*string{
				aws.String(sqs.QueueAttributeNameAll),
			},
			QueueUrl:            &queueUrl,
			MaxNumberOfMessages: aws.Int64(10),
			VisibilityTimeout:   &timeout,
		})
		if err == nil {
			if len(msgResult.Messages) > 0 {
				s.logger.Debug("Got %d messages", len(msgResult.Messages))
			} else {
				s.logger.Trace("no messages in queue")
			}
			// Requests must reach the driver in the order they were received.
			for _, msg := range msgResult.Messages {
				if !s.ProcessMessage(msg, &queueUrl, done) {
					s.logger.Info("SQS Subscriber terminating, pending messages left in the queue")
					return nil
				}
			}
		} else {
			s.logger.Error(err.Error())
		}
		timeLeft := s.PollingInterval - time.Since(start)
		if timeLeft > 0 {
			s.logger.Trace("sleeping for %v", timeLeft)
			time.Sleep(timeLeft)
		}
	}
}

// ProcessMessage forwards the request to the driver, then removes the message
// from the queue; malformed messages are removed too, as retrying them would
// fail forever.
//
// If `done` is closed while waiting for the driver to accept the request, the
// message is left in the queue, to be redelivered, and ProcessMessage returns false.
func (s *SqsSubscriber) ProcessMessage(msg *sqs.Message, queueUrl *string, done <-chan interface{}) bool {
	s.logger.Trace("Processing Message %v", aws.StringValue(msg.MessageId))
	request, err := ParseRequest(msg)
	if err != nil {
		s.logger.Error("discarding message %v: %v", aws.StringValue(msg.MessageId), err)
	} else {
		s.logger.Debug("received %s from %q", request, request.Originator)
		select {
		case s.requests <- *request:
		case <-done:
			s.logger.Warn("not forwarding message %v, shutting down", aws.StringValue(msg.MessageId))
			return false
		}
	}

	s.logger.Debug("Removing message %v from SQS", aws.StringValue(msg.MessageId))
	_, err = s.client.DeleteMessage(&sqs.DeleteMessageInput{
		QueueUrl:      queueUrl,
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		s.logger.Error("Failed to remove message %v from SQS: %v",
			aws.StringValue(msg.MessageId), err)
	}
	return true
}

// ParseRequest decodes an SQS message into a driver.Request.
//
// The `Request` attribute names the kind of request; the body carries the target
// state for a transition, or the index for set_index, and is ignored otherwise.
func ParseRequest(msg *sqs.Message) (*driver.Request, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", MalformedMessageError)
	}
	kindAttr, found := msg.MessageAttributes[RequestAttribute]
	if !found || kindAttr == nil || kindAttr.StringValue == nil {
		return nil, fmt.Errorf("%w: no %s attribute", MalformedMessageError, RequestAttribute)
	}
	kind, err := driver.ParseRequestKind(*kindAttr.StringValue)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", MalformedMessageError, err)
	}
	body := strings.TrimSpace(aws.StringValue(msg.Body))

	request := &driver.Request{Kind: kind}
	switch kind {
	case driver.TransitionRequest:
		if body == "" {
			return nil, fmt.Errorf("%w: missing target state", MalformedMessageError)
		}
		request.Target = api.StateId(body)
	case driver.SetIndexRequest:
		index, err := strconv.Atoi(body)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid index %q", MalformedMessageError, body)
		}
		request.Index = index
	}
	if sender := msg.MessageAttributes[SenderAttribute]; sender != nil {
		request.Originator = aws.StringValue(sender.StringValue)
	}
	if details := msg.MessageAttributes[DetailsAttribute]; details != nil {
		request.Details = aws.StringValue(details.StringValue)
	}
	return request, nil
}
