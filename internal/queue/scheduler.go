// Package queue implements the token dispatch engine: the per-queue waiting
// list, the call-next transition, the no-show reaper and the queue registry.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"campus-queue/internal/apperror"
	"campus-queue/internal/models"
	"campus-queue/internal/store"
)

// CallResult is the outcome of CallNext. None is set when the waiting list
// was empty; Serving holds the newly called token otherwise.
type CallResult struct {
	None    bool                   `json:"none"`
	Serving *models.CurrentServing `json:"serving,omitempty"`
}

// Scheduler owns the waiting list ordering and the current serving slot.
type Scheduler struct {
	store store.Store
	opts  options
}

func NewScheduler(s store.Store, opts ...Option) *Scheduler {
	return &Scheduler{store: s, opts: buildOptions(opts)}
}

// Enqueue books a token for owner in queueID and returns its ID. It fails
// with ErrAlreadyQueued or ErrAlreadyServing when the owner already has a
// live token or is at the counter.
func (s *Scheduler) Enqueue(ctx context.Context, queueID, ownerID, ownerEmail string, priority int) (string, error) {
	queueID = strings.TrimSpace(queueID)
	ownerID = strings.TrimSpace(ownerID)
	if queueID == "" {
		return "", apperror.InvalidArgument("Missing queueId")
	}
	if ownerID == "" {
		return "", apperror.InvalidArgument("Missing owner identity")
	}

	token := models.Token{
		ID:         s.opts.newID(),
		QueueID:    queueID,
		OwnerID:    ownerID,
		OwnerEmail: ownerEmail,
		Priority:   priority,
		EnqueuedAt: s.opts.now(),
	}

	err := s.store.Tx(ctx, func(tx store.Tx) error {
		q, err := tx.LockQueue(ctx, queueID)
		if err != nil {
			return err
		}
		if q == nil {
			return ErrQueueNotFound
		}

		if err := ownerFreeTx(ctx, tx, queueID, ownerID); err != nil {
			return err
		}
		return tx.InsertToken(ctx, token)
	})
	if err != nil {
		return "", wrapStoreErr(err, "enqueue")
	}

	s.opts.logger.Info("token booked",
		zap.String("queue_id", queueID),
		zap.String("token_id", token.ID),
		zap.String("owner_id", ownerID),
		zap.Int("priority", priority))
	return token.ID, nil
}

// CheckCanEnqueue reports the error Enqueue would return for a missing
// queue or a duplicate owner, without writing or locking anything. The
// answer can go stale; Enqueue re-checks inside its transaction.
func (s *Scheduler) CheckCanEnqueue(ctx context.Context, queueID, ownerID string) error {
	queueID = strings.TrimSpace(queueID)
	ownerID = strings.TrimSpace(ownerID)
	if queueID == "" {
		return apperror.InvalidArgument("Missing queueId")
	}
	if ownerID == "" {
		return apperror.InvalidArgument("Missing owner identity")
	}

	err := s.store.View(ctx, func(tx store.Tx) error {
		q, err := tx.GetQueue(ctx, queueID)
		if err != nil {
			return err
		}
		if q == nil {
			return ErrQueueNotFound
		}
		return ownerFreeTx(ctx, tx, queueID, ownerID)
	})
	return wrapStoreErr(err, "check enqueue")
}

// ownerFreeTx fails when ownerID is waiting in or being served at queueID.
func ownerFreeTx(ctx context.Context, tx store.Tx, queueID, ownerID string) error {
	existing, err := tx.FindTokenByOwner(ctx, queueID, ownerID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyQueued
	}

	current, err := tx.GetCurrent(ctx, queueID)
	if err != nil {
		return err
	}
	if current != nil && current.OwnerID == ownerID {
		return ErrAlreadyServing
	}
	return nil
}

// CallNext moves the best waiting token into the current serving slot. The
// best token has the smallest (priority, enqueue time). When nothing is
// waiting, any stale current entry is cleared and None is reported.
func (s *Scheduler) CallNext(ctx context.Context, queueID string) (CallResult, error) {
	var result CallResult
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		q, err := tx.LockQueue(ctx, queueID)
		if err != nil {
			return err
		}
		if q == nil {
			return ErrQueueNotFound
		}
		result, err = s.callNextTx(ctx, tx, queueID)
		return err
	})
	if err != nil {
		return CallResult{}, wrapStoreErr(err, "call next")
	}
	s.logCall(queueID, result)
	return result, nil
}

// callNextTx runs inside a transaction that already holds the queue.
func (s *Scheduler) callNextTx(ctx context.Context, tx store.Tx, queueID string) (CallResult, error) {
	next, err := tx.NextToken(ctx, queueID)
	if err != nil {
		return CallResult{}, err
	}

	if next == nil {
		if _, err := tx.ClearCurrent(ctx, queueID); err != nil {
			return CallResult{}, err
		}
		return CallResult{None: true}, nil
	}

	deleted, err := tx.DeleteToken(ctx, queueID, next.ID)
	if err != nil {
		return CallResult{}, err
	}
	if !deleted {
		return CallResult{}, fmt.Errorf("token %s vanished during dispatch", next.ID)
	}

	serving := models.CurrentServing{
		QueueID:    queueID,
		TokenID:    next.ID,
		OwnerID:    next.OwnerID,
		OwnerEmail: next.OwnerEmail,
		Priority:   next.Priority,
		CalledAt:   s.opts.now(),
	}
	if err := tx.SetCurrent(ctx, serving); err != nil {
		return CallResult{}, err
	}
	return CallResult{Serving: &serving}, nil
}

func (s *Scheduler) logCall(queueID string, result CallResult) {
	if result.None {
		s.opts.logger.Info("call next: waiting list empty", zap.String("queue_id", queueID))
		return
	}
	s.opts.logger.Info("token called",
		zap.String("queue_id", queueID),
		zap.String("token_id", result.Serving.TokenID),
		zap.String("owner_id", result.Serving.OwnerID))
}

// ClearCurrent removes the current serving entry. Absence is not an error.
func (s *Scheduler) ClearCurrent(ctx context.Context, queueID string) error {
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		q, err := tx.LockQueue(ctx, queueID)
		if err != nil {
			return err
		}
		if q == nil {
			return ErrQueueNotFound
		}
		_, err = tx.ClearCurrent(ctx, queueID)
		return err
	})
	if err != nil {
		return wrapStoreErr(err, "clear current")
	}
	return nil
}

// RemoveToken deletes a waiting token and returns what it held.
func (s *Scheduler) RemoveToken(ctx context.Context, queueID, tokenID string) (models.Token, error) {
	var removed models.Token
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		q, err := tx.LockQueue(ctx, queueID)
		if err != nil {
			return err
		}
		if q == nil {
			return ErrQueueNotFound
		}
		removed, err = s.removeTokenTx(ctx, tx, queueID, tokenID)
		return err
	})
	if err != nil {
		return models.Token{}, wrapStoreErr(err, "remove token")
	}
	return removed, nil
}

func (s *Scheduler) removeTokenTx(ctx context.Context, tx store.Tx, queueID, tokenID string) (models.Token, error) {
	t, err := tx.GetToken(ctx, queueID, tokenID)
	if err != nil {
		return models.Token{}, err
	}
	if t == nil {
		return models.Token{}, ErrTokenNotFound
	}
	if _, err := tx.DeleteToken(ctx, queueID, tokenID); err != nil {
		return models.Token{}, err
	}
	return *t, nil
}

// Snapshot returns the queue with its current slot and ordered waiting list.
func (s *Scheduler) Snapshot(ctx context.Context, queueID string) (models.QueueSnapshot, error) {
	var snap models.QueueSnapshot
	err := s.store.View(ctx, func(tx store.Tx) error {
		q, err := tx.GetQueue(ctx, queueID)
		if err != nil {
			return err
		}
		if q == nil {
			return ErrQueueNotFound
		}
		snap.Queue = *q

		if snap.Current, err = tx.GetCurrent(ctx, queueID); err != nil {
			return err
		}
		snap.Waiting, err = tx.ListTokens(ctx, queueID)
		return err
	})
	if err != nil {
		return models.QueueSnapshot{}, wrapStoreErr(err, "snapshot")
	}
	if snap.Waiting == nil {
		snap.Waiting = []models.Token{}
	}
	return snap, nil
}

// wrapStoreErr keeps application errors as they are and turns anything else
// into INTERNAL. Nothing was committed, so the caller may retry.
func wrapStoreErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if apperror.KindOf(err) != apperror.KindInternal {
		return err
	}
	if errors.Is(err, store.ErrDuplicateToken) {
		return ErrAlreadyQueued
	}
	return apperror.Internal(fmt.Errorf("%s: %w", op, err), "store failure")
}
