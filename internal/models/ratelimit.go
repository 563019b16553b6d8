package models

import "time"

// RateLimitState maps operation keys to the time an actor last performed them.
type RateLimitState struct {
	ActorID string
	Last    map[string]time.Time
}
