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
	"flag"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/google/uuid"

	"github.com/massenz/go-gamestate/driver"
	"github.com/massenz/go-gamestate/pubsub"
)

func NewSqs(endpoint *string) *sqs.SQS {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-west-2"
	}
	if *endpoint == "" {
		endpoint = nil
	}
	sess := session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
		Config: aws.Config{
			Endpoint: endpoint,
			Region:   &region,
		},
	}))
	return sqs.New(sess)
}

func attribute(value string) *sqs.MessageAttributeValue {
	return &sqs.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(value),
	}
}

// main simulates a game lobby sending a request to the game-state server, over SQS.
func main() {
	endpoint := flag.String("endpoint", "", "Use http://localhost:4566 to use LocalStack")
	q := flag.String("q", "", "The SQS Queue to send the request to")
	kind := flag.String("request", "transition",
		"One of: transition, complete, set_index, advance")
	arg := flag.String("arg", "", "The target state (transition) or the index (set_index)")
	sender := flag.String("sender", "sqs-lobby", "Who is sending the request")
	flag.Parse()

	if _, err := driver.ParseRequestKind(*kind); err != nil {
		panic(err)
	}
	queue := NewSqs(endpoint)
	queueUrl, err := pubsub.GetQueueUrl(queue, *q)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Publishing request `%s(%s)` to SQS Topic: [%s]\n", *kind, *arg, *q)

	// SQS rejects empty messages; the body is ignored for complete and advance.
	body := *arg
	if body == "" {
		body = *kind
	}

	// This is the metadata that will be carried by the transition event.
	details := NewMatchDetails(uuid.NewString(), "alice", "bob")
	out, err := queue.SendMessage(&sqs.SendMessageInput{
		MessageBody: aws.String(body),
		MessageAttributes: map[string]*sqs.MessageAttributeValue{
			pubsub.RequestAttribute: attribute(*kind),
			pubsub.SenderAttribute:  attribute(*sender),
			pubsub.DetailsAttribute: attribute(details.String()),
		},
		QueueUrl: &queueUrl,
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("Sent request [%s] to queue %s\n", *out.MessageId, *q)
}
