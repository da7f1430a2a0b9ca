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

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/golang/protobuf/proto"
	log "github.com/massenz/slf4go/logging"
	protos "github.com/massenz/statemachine-proto/golang/api"
)

// SqsPublisher posts the transition events to an SQS queue.
type SqsPublisher struct {
	logger        *log.Log
	client        *sqs.SQS
	notifications <-chan *protos.Event
}

// NewSqsPublisher will create a new `Publisher` to send the transition events
// received on the `notifications` channel to an SQS queue.
//
// The `awsUrl` is the URL of the AWS SQS service, which can be obtained from the AWS Console,
// or by the local AWS CLI.
func NewSqsPublisher(notifications <-chan *protos.Event, awsUrl *string) (*SqsPublisher, error) {
	client, err := getSqsClient(awsUrl)
	if err != nil {
		return nil, err
	}
	return &SqsPublisher{
		logger:        log.NewLog("SQS-Pub"),
		client:        client,
		notifications: notifications,
	}, nil
}

// SetLogLevel allows the SqsPublisher to implement the log.Loggable interface
func (s *SqsPublisher) SetLogLevel(level log.LogLevel) {
	s.logger.Level = level
}

// Publish sends every event to the `topic` queue, until the notifications
// channel is closed.
func (s *SqsPublisher) Publish(topic string) error {
	queueUrl, err := GetQueueUrl(s.client, topic)
	if err != nil {
		return err
	}
	s.logger = log.NewLog(fmt.Sprintf("SQS-Pub{%s}", topic))
	s.logger.Info("SQS Publisher started for queue: %s", queueUrl)
	for event := range s.notifications {
		if event == nil {
			continue
		}
		delay := int64(0)
		s.logger.Debug("[%s] %s", event.EventId, queueUrl)
		msgResult, err := s.client.SendMessage(&sqs.SendMessageInput{
			DelaySeconds: &delay,
			// Encodes the Event as a string, using Protobuf implementation.
			MessageBody: aws.String(proto.MarshalTextString(event)),
			QueueUrl:    &queueUrl,
		})
		if err != nil {
			s.logger.Error("Cannot publish event (%s): %v", event.EventId, err)
			continue
		}
		s.logger.Debug("Notification successfully posted to SQS: %s", *msgResult.MessageId)
	}
	s.logger.Info("SQS Publisher exiting")
	return nil
}
