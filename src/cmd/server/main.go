package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/adapter/http/controller"
	"github.com/api-sage/escrow-engine/src/internal/adapter/http/middleware"
	"github.com/api-sage/escrow-engine/src/internal/adapter/http/router"
	"github.com/api-sage/escrow-engine/src/internal/adapter/lock"
	"github.com/api-sage/escrow-engine/src/internal/adapter/notifier"
	"github.com/api-sage/escrow-engine/src/internal/adapter/repository/memory"
	"github.com/api-sage/escrow-engine/src/internal/adapter/repository/postgres"
	"github.com/api-sage/escrow-engine/src/internal/config"
	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
	"github.com/api-sage/escrow-engine/src/internal/usecase"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 15 * time.Second

type flags struct {
	addr              string
	seedFile          string
	migrateOnly       bool
	noScheduler       bool
	schedulerInterval time.Duration
}

func main() {
	if err := run(); err != nil {
		logger.Error("escrow engine exited", err, nil)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func parseFlags(cfg config.Config) flags {
	var f flags
	pflag.StringVar(&f.addr, "addr", cfg.HTTPAddr, "HTTP listen address")
	pflag.StringVar(&f.seedFile, "seed", cfg.SeedFile, "YAML file with fee tiers and release policies to apply at startup")
	pflag.BoolVar(&f.migrateOnly, "migrate-only", false, "apply database migrations and exit")
	pflag.BoolVar(&f.noScheduler, "no-scheduler", false, "do not run the release scheduler in this process")
	pflag.DurationVar(&f.schedulerInterval, "scheduler-interval", cfg.SchedulerInterval, "release scheduler tick interval")
	pflag.Parse()
	return f
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	f := parseFlags(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if f.migrateOnly {
		logger.Info("migrations completed, exiting", nil)
		return nil
	}

	locker, closeLocker, err := openLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	configService := usecase.NewConfigService(store, locker, cfg.ConfigCacheTTL, nil)
	if f.seedFile != "" {
		seed, err := config.LoadSeed(f.seedFile)
		if err != nil {
			return err
		}
		if err := configService.ApplySeed(ctx, seed); err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
	}

	escrowService := usecase.NewEscrowService(store, locker, configService,
		usecase.WithSettlementNotifier(notifier.NewLogNotifier()),
	)
	scheduler := usecase.NewScheduler(escrowService, cfg.SchedulerBatchSize, cfg.SchedulerWorkers, nil)

	handler := router.New(router.Controllers{
		Accounts:     controller.NewAccountController(escrowService),
		Transactions: controller.NewTransactionController(escrowService),
		Config:       controller.NewConfigController(configService),
		Scheduler:    controller.NewSchedulerController(scheduler, nil),
	}, middleware.BasicAuth(cfg.ChannelID, cfg.ChannelKey, cfg.ChannelKeyHash))

	if !f.noScheduler {
		go scheduler.Run(ctx, f.schedulerInterval)
	}

	server := &http.Server{
		Addr:              f.addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", logger.Fields{"addr": f.addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStore uses Postgres when DATABASE_DSN is set and process memory otherwise.
func openStore(ctx context.Context, cfg config.Config) (domain.Store, func(), error) {
	if cfg.DatabaseDSN == "" {
		logger.Warn("DATABASE_DSN not set, using in-memory store", nil)
		return memory.NewStore(), func() {}, nil
	}

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := postgres.Open(openCtx, cfg.DatabaseDSN, postgres.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.RunMigrations(openCtx, db, cfg.MigrationsDir); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	return postgres.NewStore(db, cfg.LockTimeout), closeDB(db), nil
}

func closeDB(db *sql.DB) func() {
	return func() {
		if err := db.Close(); err != nil {
			logger.Error("close database", err, nil)
		}
	}
}

// openLocker uses Redis when REDIS_ADDR is set so several processes share
// locks; otherwise locks are process local.
func openLocker(ctx context.Context, cfg config.Config) (domain.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		return lock.NewLocalLocker(cfg.LockTimeout), func() {}, nil
	}

	client := goredislib.NewClient(&goredislib.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	opts := lock.DefaultRedisLockOptions()
	opts.Timeout = cfg.LockTimeout
	opts.Expiry = cfg.LockExpiry
	return lock.NewRedisLocker(client, opts), func() { _ = client.Close() }, nil
}
