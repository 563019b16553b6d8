// Package sweeper triggers the no-show sweep on a cron schedule.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"campus-queue/internal/logging"
	"campus-queue/internal/queue"
)

// cronParser accepts 5-field cron expressions and descriptors like "@every 60s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule validates a schedule expression.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Reaper is the sweep entry point.
type Reaper interface {
	SweepAll(ctx context.Context) ([]queue.QueueSweep, error)
}

// Summary describes one sweep run.
type Summary struct {
	Queues    int                `json:"queues"`
	Processed int                `json:"processed"`
	Failed    int                `json:"failed"`
	Results   []queue.QueueSweep `json:"results"`
}

// Summarize counts processed and failed queues.
func Summarize(results []queue.QueueSweep) Summary {
	s := Summary{Queues: len(results), Results: results}
	for _, r := range results {
		switch {
		case r.Error != "":
			s.Failed++
		case r.Result.Processed:
			s.Processed++
		}
	}
	return s
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithRunTimeout bounds a single sweep run.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Sweeper) { s.runTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sweeper) { s.logger = logging.OrNop(l) }
}

// WithOnProcessed registers fn to run once per queue a sweep advanced.
func WithOnProcessed(fn func(ctx context.Context, queueID string)) Option {
	return func(s *Sweeper) { s.onProcessed = fn }
}

// Sweeper runs Reaper.SweepAll on a schedule. Overlapping runs are
// skipped and a panicking run is recovered, so one bad run never blocks the
// next.
type Sweeper struct {
	reaper     Reaper
	schedule   string
	runTimeout time.Duration
	logger     *zap.Logger

	onProcessed func(ctx context.Context, queueID string)

	mu   sync.Mutex
	cron *cronlib.Cron
}

func New(reaper Reaper, schedule string, opts ...Option) (*Sweeper, error) {
	if _, err := ParseSchedule(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	s := &Sweeper{
		reaper:     reaper,
		schedule:   schedule,
		runTimeout: 50 * time.Second,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RunOnce sweeps every queue once.
func (s *Sweeper) RunOnce(ctx context.Context) (Summary, error) {
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	start := time.Now()
	results, err := s.reaper.SweepAll(ctx)
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
		return Summary{}, err
	}

	sum := Summarize(results)
	if s.onProcessed != nil {
		for _, r := range results {
			if r.Error == "" && r.Result.Processed {
				s.onProcessed(ctx, r.QueueID)
			}
		}
	}
	s.logger.Info("sweep finished",
		zap.Int("queues", sum.Queues),
		zap.Int("processed", sum.Processed),
		zap.Int("failed", sum.Failed),
		zap.Duration("took", time.Since(start)))
	return sum, nil
}

// Start schedules RunOnce. Runs use ctx as their parent.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	cl := cronLogger{s.logger.Sugar()}
	c := cronlib.New(
		cronlib.WithParser(cronParser),
		cronlib.WithChain(cronlib.Recover(cl), cronlib.SkipIfStillRunning(cl)),
		cronlib.WithLogger(cl),
	)
	if _, err := c.AddFunc(s.schedule, func() {
		_, _ = s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("sweeper started", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish or ctx
// to expire.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		s.logger.Info("sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
