package queue

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"campus-queue/internal/apperror"
	"campus-queue/internal/models"
	"campus-queue/internal/store"
)

const (
	// Sweep reasons tell the audit trail who triggered the expiry.
	ReasonScheduledSweep = "auto-processed by scheduled sweep"
	ReasonRequestedSweep = "auto-processed by cashier request"

	ReasonManualWaiting = "marked by cashier"
	ReasonManualCurrent = "no-show (marked by cashier)"
	reasonNoCurrent     = "no current token"
	reasonNotExpired    = "not expired"
	reasonQueueNotFound = "queue not found"
)

// SweepResult reports what SweepOne did for one queue.
type SweepResult struct {
	Processed bool                 `json:"processed"`
	Reason    string               `json:"reason,omitempty"`
	Record    *models.NoShowRecord `json:"record,omitempty"`
	Next      *CallResult          `json:"next,omitempty"`
}

// QueueSweep is one entry of a SweepAll batch. Error is set when the queue
// failed; the batch continues regardless.
type QueueSweep struct {
	QueueID string      `json:"queue_id"`
	Result  SweepResult `json:"result"`
	Error   string      `json:"error,omitempty"`
}

// ManualResult reports a cashier-initiated no-show.
type ManualResult struct {
	Record models.NoShowRecord `json:"record"`
	Next   *CallResult         `json:"next,omitempty"`
}

// Reaper converts expired current serving entries into no-show records.
type Reaper struct {
	store          store.Store
	scheduler      *Scheduler
	defaultTimeout time.Duration
	opts           options
}

// NewReaper builds a Reaper. defaultTimeout applies to queues without a
// positive timeout of their own.
func NewReaper(s store.Store, scheduler *Scheduler, defaultTimeout time.Duration, opts ...Option) *Reaper {
	return &Reaper{
		store:          s,
		scheduler:      scheduler,
		defaultTimeout: defaultTimeout,
		opts:           buildOptions(opts),
	}
}

func (r *Reaper) timeoutFor(q *models.Queue) time.Duration {
	if q.NoShowTimeoutSeconds > 0 {
		return time.Duration(q.NoShowTimeoutSeconds) * time.Second
	}
	return r.defaultTimeout
}

// SweepOne expires the queue's current entry once calledAt+timeout has
// passed: it appends a no-show, clears the slot and calls the next token,
// all in one transaction. reason is stored on the no-show record and
// defaults to ReasonScheduledSweep.
func (r *Reaper) SweepOne(ctx context.Context, queueID, reason string) (SweepResult, error) {
	if reason == "" {
		reason = ReasonScheduledSweep
	}
	var result SweepResult
	err := r.store.Tx(ctx, func(tx store.Tx) error {
		result = SweepResult{}

		q, err := tx.LockQueue(ctx, queueID)
		if err != nil {
			return err
		}
		if q == nil {
			result.Reason = reasonQueueNotFound
			return nil
		}

		current, err := tx.GetCurrent(ctx, queueID)
		if err != nil {
			return err
		}
		if current == nil {
			result.Reason = reasonNoCurrent
			return nil
		}

		now := r.opts.now()
		if !current.CalledAt.Add(r.timeoutFor(q)).Before(now) {
			result.Reason = reasonNotExpired
			return nil
		}

		rec, next, err := r.expireCurrentTx(ctx, tx, *current, reason, now)
		if err != nil {
			return err
		}
		result.Processed = true
		result.Record = &rec
		result.Next = &next
		return nil
	})
	if err != nil {
		return SweepResult{}, wrapStoreErr(err, "sweep")
	}

	if result.Processed {
		r.opts.logger.Info("no-show processed",
			zap.String("queue_id", queueID),
			zap.String("owner_id", result.Record.OwnerID),
			zap.Bool("next_none", result.Next.None))
	}
	return result, nil
}

// expireCurrentTx records current as a no-show, clears the slot and calls
// the next token. The queue must already be held by tx.
func (r *Reaper) expireCurrentTx(ctx context.Context, tx store.Tx, current models.CurrentServing, reason string, now time.Time) (models.NoShowRecord, CallResult, error) {
	calledAt := current.CalledAt
	rec := models.NoShowRecord{
		ID:         r.opts.newID(),
		QueueID:    current.QueueID,
		OwnerID:    current.OwnerID,
		OwnerEmail: current.OwnerEmail,
		CalledAt:   &calledAt,
		MarkedAt:   now,
		Reason:     reason,
	}
	if err := tx.AppendNoShow(ctx, rec); err != nil {
		return models.NoShowRecord{}, CallResult{}, err
	}
	if _, err := tx.ClearCurrent(ctx, current.QueueID); err != nil {
		return models.NoShowRecord{}, CallResult{}, err
	}
	next, err := r.scheduler.callNextTx(ctx, tx, current.QueueID)
	if err != nil {
		return models.NoShowRecord{}, CallResult{}, err
	}
	return rec, next, nil
}

// SweepAll runs SweepOne for every queue. A failing queue is logged and
// recorded in its entry; it never stops the rest of the batch. Only a
// failure to list queues is returned as an error.
func (r *Reaper) SweepAll(ctx context.Context) ([]QueueSweep, error) {
	queues, err := r.store.ListQueues(ctx)
	if err != nil {
		return nil, apperror.Internal(err, "list queues")
	}

	results := make([]QueueSweep, 0, len(queues))
	for _, q := range queues {
		entry := QueueSweep{QueueID: q.ID}
		res, err := r.SweepOne(ctx, q.ID, ReasonScheduledSweep)
		if err != nil {
			r.opts.logger.Error("sweep queue failed", zap.String("queue_id", q.ID), zap.Error(err))
			entry.Error = err.Error()
		} else {
			entry.Result = res
		}
		results = append(results, entry)
	}
	return results, nil
}

// MarkNoShowManual records a cashier-initiated no-show. With a tokenID the
// waiting token is removed and the current slot is left alone. Without one,
// the current entry is expired regardless of elapsed time and the next
// token is called.
func (r *Reaper) MarkNoShowManual(ctx context.Context, queueID, tokenID, reason string) (ManualResult, error) {
	tokenID = strings.TrimSpace(tokenID)
	reason = strings.TrimSpace(reason)

	var result ManualResult
	err := r.store.Tx(ctx, func(tx store.Tx) error {
		q, err := tx.LockQueue(ctx, queueID)
		if err != nil {
			return err
		}
		if q == nil {
			return ErrQueueNotFound
		}
		now := r.opts.now()

		if tokenID != "" {
			t, err := r.scheduler.removeTokenTx(ctx, tx, queueID, tokenID)
			if err != nil {
				return err
			}
			if reason == "" {
				reason = ReasonManualWaiting
			}
			rec := models.NoShowRecord{
				ID:         r.opts.newID(),
				QueueID:    queueID,
				OwnerID:    t.OwnerID,
				OwnerEmail: t.OwnerEmail,
				MarkedAt:   now,
				Reason:     reason,
			}
			if err := tx.AppendNoShow(ctx, rec); err != nil {
				return err
			}
			result = ManualResult{Record: rec}
			return nil
		}

		current, err := tx.GetCurrent(ctx, queueID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrNoCurrentToken
		}
		if reason == "" {
			reason = ReasonManualCurrent
		}
		rec, next, err := r.expireCurrentTx(ctx, tx, *current, reason, now)
		if err != nil {
			return err
		}
		result = ManualResult{Record: rec, Next: &next}
		return nil
	})
	if err != nil {
		return ManualResult{}, wrapStoreErr(err, "mark no-show")
	}

	r.opts.logger.Info("no-show marked by cashier",
		zap.String("queue_id", queueID),
		zap.String("owner_id", result.Record.OwnerID),
		zap.Bool("waiting_token", tokenID != ""))
	return result, nil
}

// ListNoShows returns the queue's no-show audit trail, oldest first.
func (r *Reaper) ListNoShows(ctx context.Context, queueID string) ([]models.NoShowRecord, error) {
	var records []models.NoShowRecord
	err := r.store.View(ctx, func(tx store.Tx) error {
		q, err := tx.GetQueue(ctx, queueID)
		if err != nil {
			return err
		}
		if q == nil {
			return ErrQueueNotFound
		}
		records, err = tx.ListNoShows(ctx, queueID)
		return err
	})
	if err != nil {
		return nil, wrapStoreErr(err, "list no-shows")
	}
	if records == nil {
		records = []models.NoShowRecord{}
	}
	return records, nil
}
