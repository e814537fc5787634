// Command server runs the VP storefront API.
//
//	@title			VP Storefront API
//	@version		1.0
//	@description	Buy Valorant Points: pick a package, enter a Riot account, confirm and review purchase history.
//	@BasePath		/api/v1
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/vp-storefront/docs"
	"github.com/tbourn/vp-storefront/internal/cache"
	"github.com/tbourn/vp-storefront/internal/config"
	httpapi "github.com/tbourn/vp-storefront/internal/http"
	"github.com/tbourn/vp-storefront/internal/observability"
	"github.com/tbourn/vp-storefront/internal/repo"
	"github.com/tbourn/vp-storefront/internal/services"
	"github.com/tbourn/vp-storefront/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const sweepInterval = time.Minute

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg := config.MustLoad()

	gin.SetMode(cfg.GinMode)
	sysutil.SetLogLevel(cfg.LogLevel)
	log.Logger = sysutil.NewLogger(cfg.LogPretty, cfg.OTEL.ServiceName, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup tracing")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Error().Err(err).Msg("shutdown tracing")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open purchase store")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate purchase store")
	}
	if cfg.OTEL.Enabled {
		if err := observability.InstrumentDB(db); err != nil {
			log.Warn().Err(err).Msg("gorm tracing disabled")
		}
	}

	backend, err := newCacheBackend(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("open purchase cache")
	}
	local := cache.NewLog(backend, log.Logger)

	docs.SwaggerInfo.BasePath = cfg.APIBasePath

	r := gin.New()
	checkouts := httpapi.RegisterRoutes(r, db, local, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go sweep(ctx, checkouts, db)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown http server")
		}
		log.Info().Msg("stopped")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}
}

// newCacheBackend opens the per-device purchase cache selected by
// CACHE_BACKEND.
func newCacheBackend(ctx context.Context, cfg config.Config) (cache.Backend, error) {
	switch cfg.Cache.Backend {
	case "file":
		return cache.NewFileBackend(cfg.Cache.Path), nil
	case "redis":
		client, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		return cache.NewRedisBackend(client, cfg.Cache.Key), nil
	case "memory":
		return cache.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// sweep evicts idle checkouts and expired idempotency keys until ctx ends.
func sweep(ctx context.Context, checkouts *services.CheckoutService, db *gorm.DB) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			evicted := checkouts.Sweep(now)
			purged, err := repo.PurgeExpiredIdempotency(ctx, db, now)
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency keys")
			}
			if evicted > 0 || purged > 0 {
				log.Debug().Int("checkouts", evicted).Int64("idempotency_keys", purged).Msg("sweep")
			}
		}
	}
}
