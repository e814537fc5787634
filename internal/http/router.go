// Package httpapi wires the HTTP transport (Gin) to the storefront services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, redacted logging, panic recovery, metrics,
// compression, identity, CORS, security headers, idempotency, and rate
// limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/vp-storefront/internal/auth"
	"github.com/tbourn/vp-storefront/internal/cache"
	"github.com/tbourn/vp-storefront/internal/config"
	"github.com/tbourn/vp-storefront/internal/domain"
	"github.com/tbourn/vp-storefront/internal/http/handlers"
	"github.com/tbourn/vp-storefront/internal/http/middleware"
	"github.com/tbourn/vp-storefront/internal/repo"
	"github.com/tbourn/vp-storefront/internal/services"
)

// remoteStore adapts the repo free functions to services.RemoteStore,
// services.PurchaseReader and services.PurchaseCounter.
type remoteStore struct{ db *gorm.DB }

// Append proxies repo.AppendPurchase.
func (s remoteStore) Append(ctx context.Context, p domain.Purchase) error {
	return repo.AppendPurchase(ctx, s.db, &p)
}

// Get proxies repo.GetPurchase.
func (s remoteStore) Get(ctx context.Context, id, userID string) (*domain.Purchase, error) {
	return repo.GetPurchase(ctx, s.db, id, userID)
}

// Count proxies repo.CountPurchases.
func (s remoteStore) Count(ctx context.Context, userID string) (int64, error) {
	return repo.CountPurchases(ctx, s.db, userID)
}

// idempotencyStore adapts the idempotency repo to handlers.IdempotencyStore
// and middleware.IdempotencyLookup.
type idempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// Lookup returns the purchase recorded for a still-valid key.
func (s idempotencyStore) Lookup(ctx context.Context, userID, checkoutID, key string, now time.Time) (string, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, userID, checkoutID, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.PurchaseID, true, nil
}

// Remember records purchaseID for the key.
func (s idempotencyStore) Remember(ctx context.Context, userID, checkoutID, key, purchaseID string) error {
	_, err := repo.CreateIdempotency(ctx, s.db, userID, checkoutID, key, purchaseID, http.StatusOK, s.ttl)
	return err
}

// RegisterRoutes attaches all middleware and endpoints to r and returns the
// checkout registry so the caller can run its eviction sweep.
//
// db is the remote purchase store; local is the per-device purchase cache.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limit and gzip
//  6. Metrics
//  7. Authenticate: identity before anything keyed by user
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, local *cache.Log, cfg config.Config) *services.CheckoutService {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())

	// Request bodies are small JSON documents.
	r.Use(limitBody(64 << 10))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var verifier *auth.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.Auth.JWTSecret)
	}
	r.Use(middleware.Authenticate(verifier, cfg.Auth.AllowHeaderIdentity))

	idem := idempotencyStore{db: db, ttl: cfg.IdempotencyTTL}
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idem.Lookup))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
		middleware.HeaderUserID, middleware.HeaderUserName, middleware.HeaderIdempotencyKey,
	}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Location", "Idempotency-Replayed"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// ACAO: * even without an Origin header, so plain health checks see it.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	apiBase := cfg.APIBasePath
	if apiBase == "/" {
		apiBase = ""
	}
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		NoStorePrefixes: []string{apiBase + "/checkouts"},
		EnablePolicy:    true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← stores
	remote := remoteStore{db: db}
	checkouts := services.NewCheckoutService(remote, local, remote)
	// config.Load defaults the delay and rejects negatives; zero redirects at once.
	checkouts.RedirectDelay = cfg.RedirectDelay
	if cfg.CheckoutTTL > 0 {
		checkouts.TTL = cfg.CheckoutTTL
	}
	history := services.NewHistoryService(local)
	history.Remote = remote
	h := handlers.New(checkouts, history, idem)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/packages", h.ListPackages)

		api.POST("/checkouts", h.StartCheckout)
		api.GET("/checkouts/:id", h.GetCheckout)
		api.PUT("/checkouts/:id/account", h.UpdateAccount)
		api.POST("/checkouts/:id/confirm", h.ConfirmCheckout)
		api.DELETE("/checkouts/:id/redirect", h.CancelRedirect)

		api.GET("/purchases", h.ListPurchases)
		api.GET("/purchases/:id", h.GetPurchase)
	}
	return checkouts
}

// limitBody caps the request body at maxBytes; reads past it fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
