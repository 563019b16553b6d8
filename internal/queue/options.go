package queue

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campus-queue/internal/logging"
)

// Option configures the scheduler, reaper and registry.
type Option func(*options)

type options struct {
	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

func defaultOptions() options {
	return options{
		now:    time.Now,
		newID:  uuid.NewString,
		logger: zap.NewNop(),
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides document ID generation.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = logging.OrNop(l) }
}
