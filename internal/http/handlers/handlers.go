// Package handlers provides the HTTP endpoints of the storefront API.
//
// Handlers are transport-thin: they bind input, resolve the caller identity
// set by middleware.Authenticate, call the services and map service errors
// to stable error codes.
package handlers

import (
	"context"

	"github.com/tbourn/vp-storefront/internal/auth"
	"github.com/tbourn/vp-storefront/internal/domain"
	"github.com/tbourn/vp-storefront/internal/services"
)

// CheckoutService drives checkouts. Every method returning a view also
// returns it alongside errors where the checkout exists.
type CheckoutService interface {
	Start(ctx context.Context, pkg *domain.Package) (services.CheckoutView, error)
	Get(ctx context.Context, id string) (services.CheckoutView, error)
	UpdateAccount(ctx context.Context, id, riotID, riotTag string) (services.CheckoutView, error)
	Confirm(ctx context.Context, id string, who auth.Identity) (services.CheckoutView, error)
	CancelRedirect(ctx context.Context, id string) (services.CheckoutView, error)
	// Purchase reads a purchase from the remote store for its owner.
	Purchase(ctx context.Context, id, userID string) (*domain.Purchase, error)
}

// HistoryService rebuilds a user's purchase history from the local cache.
type HistoryService interface {
	Load(ctx context.Context, who auth.Identity) (services.History, error)
}

// IdempotencyStore records which purchase a confirmation (user, checkout,
// Idempotency-Key) produced. Lookups happen in middleware.IdempotencyValidator.
type IdempotencyStore interface {
	Remember(ctx context.Context, userID, checkoutID, key, purchaseID string) error
}

// Handlers groups the storefront endpoints.
type Handlers struct {
	checkouts CheckoutService
	history   HistoryService
	idem      IdempotencyStore
}

// New binds the handlers to their services. idem may be nil, which disables
// confirmation replay.
func New(checkouts CheckoutService, history HistoryService, idem IdempotencyStore) *Handlers {
	return &Handlers{checkouts: checkouts, history: history, idem: idem}
}
