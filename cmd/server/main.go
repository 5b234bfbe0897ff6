// @title        Anonymous QR Identity API
// @version      1.0
// @description  Issues anonymous identities bound to a QR code and serves their profiles.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/anonqr/identity-service/internal/api"
	"github.com/anonqr/identity-service/internal/api/handler"
	"github.com/anonqr/identity-service/internal/core/ports"
	"github.com/anonqr/identity-service/internal/core/service"
	"github.com/anonqr/identity-service/internal/infrastructure/artifact"
	"github.com/anonqr/identity-service/internal/infrastructure/audit"
	"github.com/anonqr/identity-service/internal/infrastructure/config"
	"github.com/anonqr/identity-service/internal/infrastructure/db/jsonfile"
	mongostore "github.com/anonqr/identity-service/internal/infrastructure/db/mongo"
	redisstore "github.com/anonqr/identity-service/internal/infrastructure/db/redis"
	"github.com/anonqr/identity-service/internal/infrastructure/http/handlers"
	"github.com/anonqr/identity-service/internal/infrastructure/qr"
	"github.com/anonqr/identity-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// store is a UserRepository that can also report readiness.
type store interface {
	ports.UserRepository
	handlers.Pinger
}

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "identity-service",
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.BaseURL == "" {
		log.Info().Msg("BASE_URL not set; QR codes will use each request's host")
	}
	for _, w := range cfg.Warnings() {
		log.Warn().Str("base_url", cfg.BaseURL).Msg(w)
	}

	repo, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	artifacts, err := artifact.NewFileStore(cfg.Store.OutputDir)
	if err != nil {
		return err
	}
	exporter := audit.NewFileExporter(filepath.Join(cfg.Store.OutputDir, cfg.Store.ExportFile))

	svc := service.NewUserService(repo, qr.NewEncoder(), artifacts, exporter, log)

	e := api.NewRouter(api.Deps{
		Service: svc,
		Logger:  log,
		Handler: handler.Options{BaseURL: cfg.BaseURL, ExposeQRURL: cfg.ExposeQRURL},
		Health: map[string]handlers.Pinger{
			"store":     repo,
			"artifacts": artifacts,
		},
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("backend", cfg.Store.Backend).
			Str("env", cfg.Env).
			Msg("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendFile:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.DBFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create store dir: %w", err)
		}
		return jsonfile.NewUserRepository(cfg.Store.DBFile), func() {}, nil

	case config.BackendMongo:
		db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, nil, err
		}
		repo := mongostore.NewUserRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = mongostore.Disconnect(context.Background(), db)
			return nil, nil, err
		}
		return repo, func() {
			if err := mongostore.Disconnect(context.Background(), db); err != nil {
				log.Error().Err(err).Msg("mongo disconnect")
			}
		}, nil

	case config.BackendRedis:
		client, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewUserRepository(client), func() {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("redis close")
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
