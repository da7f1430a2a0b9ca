/*
 * Copyright (c) 2023 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

// Package pubsub connects the game-state driver to SQS: requests are
// received from one queue, and transition events are posted to another.
package pubsub

import (
	"fmt"
	"time"
)

// Message attributes carried by the SQS request messages; the body is the
// argument of the request (the target state, or the index).
const (
	RequestAttribute = "Request"
	SenderAttribute  = "Sender"
	DetailsAttribute = "Details"
)

// Not really "variables" - but Go is too dumb to figure out they're actually constants.
var (
	// We poll SQS every DefaultPollingInterval seconds
	DefaultPollingInterval, _ = time.ParseDuration("5s")

	// DefaultVisibilityTimeout sets how long SQS will wait for the subscriber to remove the
	// message from the queue.
	// See: https://docs.aws.amazon.com/AWSSimpleQueueService/latest/SQSDeveloperGuide/sqs-visibility-timeout.html
	DefaultVisibilityTimeout, _ = time.ParseDuration("5s")
)

var (
	MalformedMessageError = fmt.Errorf("malformed request message")
	QueueNotFoundError    = fmt.Errorf("queue not found")
)
