package ratelimit

import (
	"context"
	"sync"
	"time"

	"campus-queue/internal/models"
)

// MemoryStore keeps rate limit state in process. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.Mutex
	actors map[string]*models.RateLimitState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{actors: make(map[string]*models.RateLimitState)}
}

func (m *MemoryStore) Record(_ context.Context, actorID, op string, now time.Time, decide func(last time.Time, found bool) Decision) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.actors[actorID]
	if !ok {
		state = &models.RateLimitState{ActorID: actorID, Last: make(map[string]time.Time)}
		m.actors[actorID] = state
	}

	last, found := state.Last[op]
	decision := decide(last, found)
	if decision.Allowed {
		state.Last[op] = now
	}
	return decision, nil
}

// State returns a copy of the actor's state.
func (m *MemoryStore) State(actorID string) models.RateLimitState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := models.RateLimitState{ActorID: actorID, Last: make(map[string]time.Time)}
	if state, ok := m.actors[actorID]; ok {
		for k, v := range state.Last {
			out.Last[k] = v
		}
	}
	return out
}
