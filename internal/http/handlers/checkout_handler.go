// Checkout HTTP handlers.
//
//   - POST   /checkouts                 (start with a package)
//   - GET    /checkouts/{id}            (current state)
//   - PUT    /checkouts/{id}/account    (edit Riot ID and tag)
//   - POST   /checkouts/{id}/confirm    (confirm payment, Idempotency-Key aware)
//   - DELETE /checkouts/{id}/redirect   (stay on the confirmation view)
//
// Idempotency:
// When a confirmation carries an Idempotency-Key that already produced a
// purchase for (user, checkout, key), the stored purchase is returned with
// `Idempotency-Replayed: true` and nothing is written again.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/vp-storefront/internal/domain"
	"github.com/tbourn/vp-storefront/internal/http/middleware"
	"github.com/tbourn/vp-storefront/internal/services"
)

// StartCheckoutRequest selects the package to buy. With only Points the
// package is looked up in the catalog; with Price too the pair must match a
// catalog entry to the cent.
type StartCheckoutRequest struct {
	Points int      `json:"points" example:"2000"`
	Price  *float64 `json:"price,omitempty" example:"38.9"`
}

// UpdateAccountRequest carries the destination game account.
type UpdateAccountRequest struct {
	RiotID  string `json:"riotId"  example:"PlayerX"`
	RiotTag string `json:"riotTag" example:"BR1"`
}

// resolvePackage returns nil when the request names no sellable package.
func (r StartCheckoutRequest) resolvePackage() *domain.Package {
	if r.Price != nil {
		if p, found := domain.MatchPackage(r.Points, *r.Price); found {
			return &p
		}
		return nil
	}
	if p, found := domain.FindPackage(r.Points); found {
		return &p
	}
	return nil
}

// writeCheckoutError maps service errors to HTTP responses.
func writeCheckoutError(c *gin.Context, err error) {
	var ve *services.ValidationError
	var pe *services.PersistenceError
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusUnprocessableEntity, ErrCodeInvalidAccount, ve.Reason)
	case errors.As(err, &pe):
		fail(c, http.StatusInternalServerError, ErrCodePersistFailed, "payment could not be recorded, please try again")
	case errors.Is(err, services.ErrPackageRequired):
		failTo(c, http.StatusBadRequest, ErrCodePackageRequired, "select a VP package first", services.RouteStorefront)
	case errors.Is(err, services.ErrIdentityRequired):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "sign in to buy VP")
	case errors.Is(err, services.ErrCheckoutNotFound):
		failTo(c, http.StatusNotFound, ErrCodeNotFound, "checkout not found", services.RouteStorefront)
	case errors.Is(err, services.ErrInputsLocked):
		fail(c, http.StatusConflict, ErrCodeInputsLocked, "account fields can no longer change")
	case errors.Is(err, services.ErrConfirmationInFlight):
		fail(c, http.StatusConflict, ErrCodeConfirmInFlight, "confirmation already in progress")
	case errors.Is(err, services.ErrAlreadyConfirmed):
		fail(c, http.StatusConflict, ErrCodeAlreadyConfirmed, "checkout already confirmed")
	case errors.Is(err, services.ErrCheckoutAborted):
		failTo(c, http.StatusConflict, ErrCodeCheckoutAborted, "checkout was aborted", services.RouteStorefront)
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

// StartCheckout godoc
// @ID          startCheckout
// @Summary     Start a checkout
// @Description Opens a checkout for a catalog package, selected by points or by a {points, price} pair that must match the catalog. Without a valid package the checkout is aborted and the client is sent back to the storefront.
// @Tags        Checkouts
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.StartCheckoutRequest  true  "Selected package"
// @Success     201  {object}  services.CheckoutView
// @Failure     400  {object}  handlers.ErrorResponse  "Package required (redirect to /)"
// @Router      /checkouts [post]
func (h *Handlers) StartCheckout(c *gin.Context) {
	var req StartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	view, err := h.checkouts.Start(c.Request.Context(), req.resolvePackage())
	if err != nil {
		writeCheckoutError(c, err)
		return
	}
	c.Header("Location", c.Request.URL.Path+"/"+view.ID)
	ok(c, http.StatusCreated, view)
}

// GetCheckout godoc
// @ID          getCheckout
// @Summary     Get a checkout
// @Tags        Checkouts
// @Produce     json
// @Param       id  path  string  true  "Checkout ID"  format(uuid)
// @Success     200  {object}  services.CheckoutView
// @Failure     404  {object}  handlers.ErrorResponse  "Checkout not found"
// @Router      /checkouts/{id} [get]
func (h *Handlers) GetCheckout(c *gin.Context) {
	view, err := h.checkouts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeCheckoutError(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

// UpdateAccount godoc
// @ID          updateCheckoutAccount
// @Summary     Set the destination account
// @Description Stores the Riot ID and tag. Values are validated on confirmation; edits are rejected once confirmation has started.
// @Tags        Checkouts
// @Accept      json
// @Produce     json
// @Param       id    path  string                          true  "Checkout ID"  format(uuid)
// @Param       body  body  handlers.UpdateAccountRequest  true  "Account fields"
// @Success     200  {object}  services.CheckoutView
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Checkout not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Inputs locked"
// @Router      /checkouts/{id}/account [put]
func (h *Handlers) UpdateAccount(c *gin.Context) {
	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	view, err := h.checkouts.UpdateAccount(c.Request.Context(), c.Param("id"), req.RiotID, req.RiotTag)
	if err != nil {
		writeCheckoutError(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

// ConfirmCheckout godoc
// @ID          confirmCheckout
// @Summary     Confirm payment
// @Description Validates the account and records the purchase in the remote store and the local cache. On success a redirect to /purchases is scheduled. Retries with the same Idempotency-Key return the stored purchase.
// @Tags        Checkouts
// @Produce     json
// @Param       Authorization    header  string  false  "Bearer identity token"
// @Param       Idempotency-Key  header  string  false  "Key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true   "Checkout ID"  format(uuid)
// @Success     200  {object}  services.CheckoutView
// @Header      200  {string}  Idempotency-Replayed  "true when served from a previous confirmation"
// @Failure     401  {object}  handlers.ErrorResponse  "Sign-in required"
// @Failure     404  {object}  handlers.ErrorResponse  "Checkout not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already confirmed, in flight or aborted"
// @Failure     422  {object}  handlers.ErrorResponse  "Invalid account"
// @Failure     500  {object}  handlers.ErrorResponse  "Purchase could not be recorded"
// @Router      /checkouts/{id}/confirm [post]
func (h *Handlers) ConfirmCheckout(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	who := middleware.IdentityFrom(c)
	key, hasKey := middleware.GetIdempotencyKey(c)
	useIdem := hasKey && h.idem != nil && who.Authenticated()

	if useIdem && middleware.IsReplay(c) {
		if view, replayed := h.replay(c, id, middleware.ReplayRef(c)); replayed {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, view)
			return
		}
	}

	view, err := h.checkouts.Confirm(ctx, id, who)
	if err != nil {
		writeCheckoutError(c, err)
		return
	}

	if useIdem && view.Purchase != nil {
		if err := h.idem.Remember(ctx, who.UID, id, key, view.Purchase.ID); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).
				Str("checkout_id", id).
				Msg("idempotency record not stored")
		}
	}
	ok(c, http.StatusOK, view)
}

// replay answers a repeated confirmation from the purchase the validator
// found for its key.
func (h *Handlers) replay(c *gin.Context, checkoutID, purchaseID string) (services.CheckoutView, bool) {
	ctx := c.Request.Context()
	who := middleware.IdentityFrom(c)

	if purchaseID == "" {
		return services.CheckoutView{}, false
	}
	p, err := h.checkouts.Purchase(ctx, purchaseID, who.UID)
	if err != nil {
		return services.CheckoutView{}, false
	}

	// The checkout may have been evicted since; fall back to a view built
	// from the purchase alone.
	if view, err := h.checkouts.Get(ctx, checkoutID); err == nil && view.Purchase != nil && view.Purchase.ID == p.ID {
		return view, true
	}
	pkg := domain.Package{Points: p.Points, Price: p.Price}
	return services.CheckoutView{
		ID:           checkoutID,
		State:        services.StateConfirmed,
		Package:      &pkg,
		RiotID:       p.RiotID,
		RiotTag:      p.RiotTag,
		InputsLocked: true,
		Purchase:     p,
		Message:      services.ConfirmationMessage(*p),
	}, true
}

// CancelRedirect godoc
// @ID          cancelCheckoutRedirect
// @Summary     Cancel the pending redirect
// @Description Keeps the client on the confirmation view. A no-op when no redirect is pending.
// @Tags        Checkouts
// @Produce     json
// @Param       id  path  string  true  "Checkout ID"  format(uuid)
// @Success     200  {object}  services.CheckoutView
// @Failure     404  {object}  handlers.ErrorResponse  "Checkout not found"
// @Router      /checkouts/{id}/redirect [delete]
func (h *Handlers) CancelRedirect(c *gin.Context) {
	view, err := h.checkouts.CancelRedirect(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeCheckoutError(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}
