// Package ratelimit enforces per-actor cooldowns on sensitive operations.
// Each (actor, operation key) pair has its own independent cooldown.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"campus-queue/internal/apperror"
	"campus-queue/internal/logging"
)

// OpCreateQueue is the operation key guarding queue creation.
const OpCreateQueue = "create-queue"

// BookKey is the operation key guarding bookings into one queue.
func BookKey(queueID string) string {
	return "book:" + queueID
}

// Decision is the outcome of a cooldown check.
type Decision struct {
	Allowed     bool  `json:"allowed"`
	RemainingMs int64 `json:"remaining_ms"`
}

// CanPerformSince reports whether an action last performed at last may run
// again at now. found=false means the action was never performed.
func CanPerformSince(last time.Time, found bool, now time.Time, cooldown time.Duration) Decision {
	if !found {
		return Decision{Allowed: true}
	}
	elapsed := now.Sub(last)
	if elapsed >= cooldown {
		return Decision{Allowed: true}
	}
	// Round up so a denied call never reports zero remaining.
	remaining := cooldown - elapsed
	return Decision{Allowed: false, RemainingMs: int64((remaining + time.Millisecond - 1) / time.Millisecond)}
}

// StateStore persists last-performed timestamps.
type StateStore interface {
	// Record reads the actor's timestamp for op, passes it to decide and,
	// when the decision allows, stores now. All of it happens in one atomic
	// transaction; a denied decision writes nothing.
	Record(ctx context.Context, actorID, op string, now time.Time, decide func(last time.Time, found bool) Decision) (Decision, error)
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) { l.logger = logging.OrNop(logger) }
}

// Limiter applies cooldowns on top of a StateStore.
type Limiter struct {
	store  StateStore
	now    func() time.Time
	logger *zap.Logger
}

func New(store StateStore, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAndRecord allows the action when cooldown has elapsed since the actor
// last performed op, and records now as the new last-performed time.
func (l *Limiter) CheckAndRecord(ctx context.Context, actorID, op string, cooldown time.Duration) (Decision, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Decision{}, apperror.InvalidArgument("actor is required")
	}
	if op == "" {
		return Decision{}, apperror.InvalidArgument("operation key is required")
	}

	now := l.now()
	decision, err := l.store.Record(ctx, actorID, op, now, func(last time.Time, found bool) Decision {
		return CanPerformSince(last, found, now, cooldown)
	})
	if err != nil {
		return Decision{}, apperror.Internal(fmt.Errorf("record %s for %s: %w", op, actorID, err), "rate limit check failed")
	}

	if !decision.Allowed {
		l.logger.Debug("cooldown active",
			zap.String("actor", actorID),
			zap.String("op", op),
			zap.Int64("remaining_ms", decision.RemainingMs))
	}
	return decision, nil
}

// CooldownError builds the RESOURCE_EXHAUSTED error returned to callers.
func CooldownError(d Decision, action string) error {
	secs := int64(math.Ceil(float64(d.RemainingMs) / 1000))
	if secs < 1 {
		secs = 1
	}
	return apperror.ResourceExhausted(fmt.Sprintf("Please wait %ds before %s", secs, action))
}
