package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"campus-queue/internal/access"
	"campus-queue/internal/auth"
	"campus-queue/internal/config"
	"campus-queue/internal/http/handler"
	"campus-queue/internal/logging"
	"campus-queue/internal/queue"
	"campus-queue/internal/ratelimit"
	"campus-queue/internal/realtime"
	"campus-queue/internal/store/mysql"
	"campus-queue/internal/sweeper"
)

const shutdownTimeout = 15 * time.Second

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := mysql.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	opts := []queue.Option{queue.WithLogger(logger)}
	scheduler := queue.NewScheduler(db, opts...)
	reaper := queue.NewReaper(db, scheduler, cfg.DefaultNoShowTimeoutDuration(), opts...)
	registry := queue.NewRegistry(db, db, limiter, cfg.DefaultNoShowTimeoutDuration(), cfg.CreateQueueCooldownDuration(), opts...)

	jwt := auth.NewJWT(cfg.JWTSecret, cfg.JWTTTL())
	hub := realtime.NewHub(logger)
	notifier := realtime.NewNotifier(hub, scheduler, logger)

	sw, err := sweeper.New(reaper, cfg.SweepSchedule,
		sweeper.WithLogger(logger),
		sweeper.WithOnProcessed(notifier.QueueChanged))
	if err != nil {
		return err
	}

	h := handler.New(handler.Deps{
		Config:    cfg,
		Registry:  registry,
		Scheduler: scheduler,
		Reaper:    reaper,
		Limiter:   limiter,
		Guard:     access.NewGuard(cfg.AllowedDomains, db, logger),
		Login:     auth.NewLoginService(db, registry, jwt, logger),
		Hub:       hub,
		Notifier:  notifier,
		Sweeper:   sw,
		Logger:    logger,
	})

	app := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		StrictRouting: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE",
	}))
	h.Routes(app, jwt)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return sw.Start(gctx)
	})
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", cfg.Addr()))
		return app.Listen(cfg.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(
			app.ShutdownWithContext(shutdownCtx),
			sw.Stop(shutdownCtx),
		)
	})
	return g.Wait()
}

// newLimiter picks the rate-limit backend. The memory backend is only
// correct for a single server instance.
func newLimiter(ctx context.Context, cfg config.Config, logger *zap.Logger) (*ratelimit.Limiter, func(), error) {
	if cfg.RateLimitBackend == "memory" {
		logger.Warn("using in-process rate limit state")
		return ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.WithLogger(logger)), func() {}, nil
	}

	client, err := config.NewRedis(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	limiter := ratelimit.New(ratelimit.NewRedisStore(client), ratelimit.WithLogger(logger))
	return limiter, func() { _ = client.Close() }, nil
}
