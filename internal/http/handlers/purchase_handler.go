// Purchase history handlers.
//
//   - GET /purchases        (history from the local cache, weak ETag)
//   - GET /purchases/{id}   (single purchase from the remote store)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/vp-storefront/internal/http/middleware"
	"github.com/tbourn/vp-storefront/internal/services"
	"github.com/tbourn/vp-storefront/internal/utils"
)

// maxHistoryLimit caps the ?limit query parameter.
const maxHistoryLimit = 100

// HistoryResponse is the purchase history view.
type HistoryResponse struct {
	services.History
	IsEmpty bool `json:"empty" example:"false"`
}

// historyETag changes whenever a purchase is added for the user, the remote
// count moves or the requested limit differs.
func historyETag(uid string, h services.History, limit int) string {
	var latest int64
	if len(h.Purchases) > 0 {
		latest = h.Purchases[0].Date.UnixMilli()
	}
	remote := int64(-1)
	if h.RemoteCount != nil {
		remote = *h.RemoteCount
	}
	return fmt.Sprintf(`W/"purchases:%s:%d:%d:%d:%d"`, uid, h.TotalCount, remote, latest, limit)
}

// ListPurchases godoc
// @ID          listPurchases
// @Summary     Purchase history
// @Description Returns the caller's purchases newest first with total spent, total points and count. Totals always cover the whole history even when limit is set. remoteCount is how many purchases the remote store holds for the caller, omitted when it cannot be read. Supports weak ETag via If-None-Match.
// @Tags        Purchases
// @Produce     json
// @Param       Authorization  header  string  false  "Bearer identity token"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       limit          query   int     false  "Show at most this many purchases"  minimum(1) maximum(100)
// @Success     200  {object}  handlers.HistoryResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Sign-in required"
// @Router      /purchases [get]
func (h *Handlers) ListPurchases(c *gin.Context) {
	who := middleware.IdentityFrom(c)
	hist, err := h.history.Load(c.Request.Context(), who)
	if err != nil {
		writeCheckoutError(c, err)
		return
	}

	limit := utils.LimitParam(c.Query("limit"), maxHistoryLimit)
	etag := historyETag(who.UID, hist, limit)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}

	hist = hist.Limit(limit)
	ok(c, http.StatusOK, HistoryResponse{History: hist, IsEmpty: hist.Empty()})
}

// GetPurchase godoc
// @ID          getPurchase
// @Summary     Get a purchase
// @Description Reads one of the caller's purchases from the remote store.
// @Tags        Purchases
// @Produce     json
// @Param       Authorization  header  string  false  "Bearer identity token"
// @Param       id             path    string  true   "Purchase ID"  format(uuid)
// @Success     200  {object}  domain.Purchase
// @Failure     401  {object}  handlers.ErrorResponse  "Sign-in required"
// @Failure     404  {object}  handlers.ErrorResponse  "Purchase not found"
// @Router      /purchases/{id} [get]
func (h *Handlers) GetPurchase(c *gin.Context) {
	who := middleware.IdentityFrom(c)
	if !who.Authenticated() {
		writeCheckoutError(c, services.ErrIdentityRequired)
		return
	}
	p, err := h.checkouts.Purchase(c.Request.Context(), c.Param("id"), who.UID)
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "purchase not found")
		return
	}
	ok(c, http.StatusOK, p)
}
