// Package store defines the persistence contract used by the dispatch engine.
//
// Implementations live in sub-packages: mysql for production, memory for
// tests and local development. Every multi-step read-then-write sequence runs
// inside Store.Tx; the engine never takes application-level locks.
package store

import (
	"context"
	"errors"

	"campus-queue/internal/models"
)

// ErrDuplicateToken is returned by Tx.InsertToken when the owner already
// holds a live token in the queue.
var ErrDuplicateToken = errors.New("store: owner already holds a token in this queue")

// Store is a transactional document store.
type Store interface {
	// Tx runs fn in one transaction. Writes made through tx commit together
	// when fn returns nil and are discarded otherwise.
	Tx(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn in a read-only transaction. fn sees one consistent
	// snapshot and takes no row locks; it must not write.
	View(ctx context.Context, fn func(tx Tx) error) error

	// ListQueues returns every queue ordered by creation time.
	ListQueues(ctx context.Context) ([]models.Queue, error)

	// GetQueue returns the queue or nil when it does not exist.
	GetQueue(ctx context.Context, queueID string) (*models.Queue, error)
}

// Tx is the set of operations available inside a transaction. Lookups
// return nil (and no error) for absent documents.
type Tx interface {
	// LockQueue reads the queue and holds it until commit so that concurrent
	// transactions on the same queue serialize.
	LockQueue(ctx context.Context, queueID string) (*models.Queue, error)
	// GetQueue reads the queue without locking it.
	GetQueue(ctx context.Context, queueID string) (*models.Queue, error)
	InsertQueue(ctx context.Context, q models.Queue) error
	UpdateQueue(ctx context.Context, q models.Queue) error
	// DeleteQueue removes the queue with its tokens, current slot and no-shows.
	DeleteQueue(ctx context.Context, queueID string) error

	// NextToken returns the waiting token with the smallest
	// (priority, enqueued_at, id), or nil when the waiting list is empty.
	NextToken(ctx context.Context, queueID string) (*models.Token, error)
	GetToken(ctx context.Context, queueID, tokenID string) (*models.Token, error)
	FindTokenByOwner(ctx context.Context, queueID, ownerID string) (*models.Token, error)
	// ListTokens returns the waiting list in dispatch order.
	ListTokens(ctx context.Context, queueID string) ([]models.Token, error)
	InsertToken(ctx context.Context, t models.Token) error
	// DeleteToken reports whether a token was deleted.
	DeleteToken(ctx context.Context, queueID, tokenID string) (bool, error)

	GetCurrent(ctx context.Context, queueID string) (*models.CurrentServing, error)
	SetCurrent(ctx context.Context, c models.CurrentServing) error
	// ClearCurrent deletes the current slot if present and reports whether it existed.
	ClearCurrent(ctx context.Context, queueID string) (bool, error)

	AppendNoShow(ctx context.Context, r models.NoShowRecord) error
	ListNoShows(ctx context.Context, queueID string) ([]models.NoShowRecord, error)
}
