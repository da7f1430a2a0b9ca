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
	"strings"
)

const (
	KeyPrefixComponentsSeparator = ":"
	KeyPrefixIDSeparator         = "#"
)

// Here we keep all the key definition for the various Redis collections.

// NewKeyForSnapshot sessions#<session:id>
func NewKeyForSnapshot(sessionId string) string {
	return strings.Join([]string{"sessions", sessionId}, KeyPrefixIDSeparator)
}

// NewKeyForEvent events:<session:id>#<event:id>
func NewKeyForEvent(id string, sessionId string) string {
	prefix := strings.Join([]string{"events", sessionId}, KeyPrefixComponentsSeparator)
	return strings.Join([]string{prefix, id}, KeyPrefixIDSeparator)
}
