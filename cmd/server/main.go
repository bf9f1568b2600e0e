package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/grafana/pyroscope-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/fund-engine/internal/adapter/handler"
	"github.com/rl1809/fund-engine/internal/adapter/handler/pb"
	"github.com/rl1809/fund-engine/internal/adapter/identity"
	"github.com/rl1809/fund-engine/internal/adapter/notifier"
	"github.com/rl1809/fund-engine/internal/adapter/storage"
	"github.com/rl1809/fund-engine/internal/core/config"
	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/core/service"
	"github.com/rl1809/fund-engine/internal/port"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	currency, err := domain.NewCurrency(cfg.Currency)
	if err != nil {
		return err
	}

	if cfg.PyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "fund-engine",
			ServerAddress:   cfg.PyroscopeAddr,
			Tags:            map[string]string{"env": cfg.Env},
			Logger:          pyroscopeLogger{logger},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return fmt.Errorf("start profiler: %w", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	db, closeDB, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	cache, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	var sink port.Notifier = notifier.NewLogNotifier(currency, logger)
	if cfg.WebhookURL != "" {
		sink = notifier.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookSecret, currency, nil)
		logger.Info("webhook notifications enabled", "url", cfg.WebhookURL)
	}
	dispatcher := notifier.NewDispatcher(sink, notifier.DispatcherConfig{
		Workers:     cfg.NotifyWorkers,
		QueueSize:   cfg.NotifyQueueSize,
		MaxAttempts: cfg.NotifyMaxAttempts,
	}, logger)
	dispatcher.Start()

	guard := service.NewGuard(cache, service.GuardConfig{
		LockTTL:        cfg.GuardLockTTL,
		AcquireTimeout: cfg.GuardAcquireTimeout,
		RateLimit:      cfg.RateLimitPerWindow,
		RateWindow:     cfg.RateLimitWindow,
	}, logger)
	catalog := service.NewFundCatalog(db, cfg.CatalogTTL, logger)
	coordinator := service.NewCoordinator(db, catalog, guard, dispatcher, logger)
	reconciler := service.NewReconciler(db, guard, logger)

	deps := handler.Dependencies{
		Coordinator: coordinator,
		Reconciler:  reconciler,
		Guard:       guard,
		Verifier:    identity.NewJWTVerifier(cfg.JWTSecret),
		Currency:    currency,
		Checks:      map[string]handler.Pinger{"store": db, "cache": cache},
		Logger:      logger,
	}

	grpcHandler := handler.NewGRPCHandler(deps)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpcHandler.UnaryInterceptor()))
	pb.RegisterFundServiceServer(grpcServer, grpcHandler)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHTTPHandler(deps).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.ReconcileInterval > 0 {
		g.Go(func() error {
			reconciler.Run(gctx, cfg.ReconcileInterval)
			return nil
		})
	}

	if mc, ok := cache.(*storage.MemoryCache); ok {
		g.Go(func() error {
			sweepLoop(gctx, mc, cfg.RateLimitWindow)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown", "error", err)
		}
		logger.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")
		return nil
	})

	err = g.Wait()

	// Servers are down, so no new events can arrive.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.NotifyDrainTimeout)
	defer cancelDrain()
	if err := dispatcher.Close(drainCtx); err != nil {
		logger.Warn("notification queue not drained", "error", err)
	}
	logger.Info("notification workers stopped", "dropped", dispatcher.Dropped(), "failed", dispatcher.Failed())
	return err
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (port.DatabaseRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		mem := storage.NewMemoryAdapter()
		for _, f := range storage.DefaultFunds() {
			mem.PutFund(f)
		}
		for _, id := range cfg.SeedAccounts {
			mem.PutAccount(id, domain.Amount(cfg.InitialBalance))
		}
		logger.Warn("using in-memory store; state is lost on restart", "accounts", len(cfg.SeedAccounts))
		return mem, func() {}, nil

	case config.StoreMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		logger.Info("connected to mysql")

		if cfg.MySQLAutoMigrate {
			if err := storage.MigrateMySQL(ctx, db); err != nil {
				db.Close()
				return nil, nil, err
			}
			logger.Info("mysql schema applied")
		}
		return storage.NewMySQLAdapter(db), func() { db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (port.CacheRepository, func(), error) {
	switch cfg.CacheDriver {
	case config.CacheMemory:
		logger.Warn("using in-process cache; account locks are not shared between instances")
		return storage.NewMemoryCache(), func() {}, nil

	case config.CacheRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("connected to redis")
		return storage.NewRedisAdapter(rdb), func() { rdb.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown cache driver %q", cfg.CacheDriver)
}

func sweepLoop(ctx context.Context, cache *storage.MemoryCache, window time.Duration) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cache.Sweep(window)
		}
	}
}

type pyroscopeLogger struct {
	l *slog.Logger
}

func (p pyroscopeLogger) Infof(format string, args ...interface{}) {
	p.l.Debug(fmt.Sprintf(format, args...), "component", "pyroscope")
}

func (p pyroscopeLogger) Debugf(format string, args ...interface{}) {
	p.l.Debug(fmt.Sprintf(format, args...), "component", "pyroscope")
}

func (p pyroscopeLogger) Errorf(format string, args ...interface{}) {
	p.l.Error(fmt.Sprintf(format, args...), "component", "pyroscope")
}
