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
	"encoding/json"
	"time"
)

// MatchDetails is an example of the metadata a lobby may attach to a request,
// carried as the `Details` of the resulting transition event.
type MatchDetails struct {
	MatchId   string    `json:"match_id"`
	Players   []string  `json:"players"`
	StartedAt time.Time `json:"started_at"`
}

func NewMatchDetails(matchId string, players ...string) *MatchDetails {
	return &MatchDetails{
		MatchId:   matchId,
		Players:   players,
		StartedAt: time.Now(),
	}
}

func (m *MatchDetails) String() string {
	res, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return string(res)
}
