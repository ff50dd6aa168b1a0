// Command authdemo runs a small HTTP frontend over the authcore engine:
// PostgreSQL for users, sessions, and roles, Redis for refresh token
// revocation. It exists to exercise the library end to end, not as a
// production deployment.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/crmforge/authcore"
	"github.com/crmforge/authcore/store/gormstore"
)

func main() {
	configPath := flag.String("config", "authdemo.yaml", "path to YAML config")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(*configPath, logger); err != nil {
		logger.Fatal("authdemo failed", zap.Error(err))
	}
}

func run(configPath string, logger *zap.Logger) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gormstore.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if err := gormstore.AutoMigrate(db); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	engineCfg, err := cfg.engineConfig()
	if err != nil {
		return err
	}

	engine, err := authcore.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithUserStore(gormstore.NewUserStore(db)).
		WithAttemptStore(gormstore.NewAttemptStore(db)).
		WithSessionStore(gormstore.NewSessionStore(db)).
		WithRBACStore(gormstore.NewRBACStore(db)).
		WithLogger(logger).
		WithAuditSink(authcore.NewZapSink(logger.Named("audit"))).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := &server{engine: engine, logger: logger}
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("authdemo listening", zap.String("addr", cfg.Listen))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
