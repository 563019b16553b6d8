package models

import (
	"time"
)

// Queue is a single service line with its own waiting list and timeout policy.
type Queue struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	ServerEmail          string    `json:"server_email"`
	NoShowTimeoutSeconds int       `json:"no_show_timeout_seconds"`
	CreatedAt            time.Time `json:"created_at"`
}

// Token is one owner's place in a queue's waiting list.
type Token struct {
	ID         string    `json:"id"`
	QueueID    string    `json:"queue_id"`
	OwnerID    string    `json:"owner_id"`
	OwnerEmail string    `json:"owner_email"`
	Priority   int       `json:"priority"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Before reports whether t is dispatched ahead of o: priority first,
// then enqueue time, then ID so the order is total.
func (t Token) Before(o Token) bool {
	if t.Priority != o.Priority {
		return t.Priority < o.Priority
	}
	if !t.EnqueuedAt.Equal(o.EnqueuedAt) {
		return t.EnqueuedAt.Before(o.EnqueuedAt)
	}
	return t.ID < o.ID
}

// CurrentServing is the token presently being handled at the counter.
type CurrentServing struct {
	QueueID    string    `json:"queue_id"`
	TokenID    string    `json:"token_id"`
	OwnerID    string    `json:"owner_id"`
	OwnerEmail string    `json:"owner_email"`
	Priority   int       `json:"priority"`
	CalledAt   time.Time `json:"called_at"`
}

// NoShowRecord is an append-only audit entry. CalledAt is nil when a token
// was removed while still waiting.
type NoShowRecord struct {
	ID         string     `json:"id"`
	QueueID    string     `json:"queue_id"`
	OwnerID    string     `json:"owner_id"`
	OwnerEmail string     `json:"owner_email"`
	CalledAt   *time.Time `json:"called_at,omitempty"`
	MarkedAt   time.Time  `json:"marked_at"`
	Reason     string     `json:"reason"`
}

// QueueSnapshot is the display view of a queue.
type QueueSnapshot struct {
	Queue   Queue           `json:"queue"`
	Current *CurrentServing `json:"current"`
	Waiting []Token         `json:"waiting"`
}

/*
|--------------------------------------------------------------------------
| REQUEST
|--------------------------------------------------------------------------
*/

type CreateQueueRequest struct {
	Name                 string `json:"name"`
	ServerEmail          string `json:"server_email"`
	NoShowTimeoutSeconds int    `json:"no_show_timeout_seconds"`
}

type UpdateQueueRequest struct {
	Name                 string `json:"name"`
	ServerEmail          string `json:"server_email"`
	NoShowTimeoutSeconds *int   `json:"no_show_timeout_seconds"`
}

// IdentityFallback carries caller-supplied identity used only when the
// server allows unauthenticated fallback.
type IdentityFallback struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	RequestedBy string `json:"requested_by"`
}

// FallbackEmail returns Email, or RequestedBy when Email is empty.
func (f IdentityFallback) FallbackEmail() string {
	if f.Email != "" {
		return f.Email
	}
	return f.RequestedBy
}

type BookTokenRequest struct {
	IdentityFallback
}

type CashierRequest struct {
	IdentityFallback
}

type MarkNoShowRequest struct {
	IdentityFallback
	TokenID string `json:"token_id"`
	Reason  string `json:"reason"`
}
