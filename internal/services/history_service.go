// Package services – HistoryService
//
// HistoryService rebuilds a user's purchase history from the local cache:
// it loads every cached purchase, keeps the caller's own, orders them newest
// first and computes totals. An unreadable cache is an empty history.
//
// When a Remote counter is set the history also carries how many purchases
// the remote store holds for the user, so a client can tell that this
// device's cache is missing purchases made elsewhere.
package services

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/vp-storefront/internal/auth"
	"github.com/tbourn/vp-storefront/internal/domain"
)

// PurchaseLister returns every cached purchase. It never fails.
type PurchaseLister interface {
	ListAll(ctx context.Context) []domain.Purchase
}

// PurchaseCounter counts a user's purchases in the remote store.
type PurchaseCounter interface {
	Count(ctx context.Context, userID string) (int64, error)
}

// History is a user's purchases, newest first, with totals over all of them.
// RemoteCount is nil when the remote store was not asked or could not answer.
type History struct {
	Purchases         []domain.Purchase `json:"purchases"`
	TotalSpent        float64           `json:"totalSpent"        example:"38.9"`
	TotalSpentDisplay string            `json:"totalSpentDisplay" example:"38.90"`
	TotalPoints       int               `json:"totalPoints"       example:"2000"`
	TotalCount        int               `json:"totalCount"        example:"1"`
	RemoteCount       *int64            `json:"remoteCount,omitempty" example:"1"`
}

// Empty reports whether the user has no purchases.
func (h History) Empty() bool { return h.TotalCount == 0 }

// Limit returns a copy showing at most n purchases. Totals are unchanged.
// n <= 0 means no limit.
func (h History) Limit(n int) History {
	if n <= 0 || n >= len(h.Purchases) {
		return h
	}
	out := h
	out.Purchases = append([]domain.Purchase(nil), h.Purchases[:n]...)
	return out
}

// HistoryService reads purchase history from the local cache.
type HistoryService struct {
	Cache PurchaseLister
	// Remote is optional.
	Remote PurchaseCounter
}

// NewHistoryService returns a HistoryService over cache.
func NewHistoryService(cache PurchaseLister) *HistoryService {
	return &HistoryService{Cache: cache}
}

// Load returns who's history. ErrIdentityRequired is the only error.
func (s *HistoryService) Load(ctx context.Context, who auth.Identity) (History, error) {
	ctx, span := otel.Tracer("services/HistoryService").Start(ctx, "Load",
		trace.WithAttributes(attribute.String("user.id", who.UID)),
	)
	defer span.End()

	if !who.Authenticated() {
		return History{Purchases: []domain.Purchase{}}, ErrIdentityRequired
	}

	all := s.Cache.ListAll(ctx)
	h := BuildHistory(all, who.UID)
	span.SetAttributes(
		attribute.Int("history.count", h.TotalCount),
		attribute.Int("cache.size", len(all)),
	)

	if s.Remote != nil {
		n, err := s.Remote.Count(ctx, who.UID)
		if err != nil {
			// The local history stands on its own.
			span.RecordError(err)
		} else {
			h.RemoteCount = &n
			span.SetAttributes(attribute.Int64("history.remote_count", n))
		}
	}
	return h, nil
}

// BuildHistory filters all to userID, sorts by date descending keeping the
// original order for equal dates, and computes the totals.
func BuildHistory(all []domain.Purchase, userID string) History {
	mine := make([]domain.Purchase, 0, len(all))
	for _, p := range all {
		if p.UserID == userID {
			mine = append(mine, p)
		}
	}
	sort.SliceStable(mine, func(i, j int) bool {
		return mine[i].Date.After(mine[j].Date)
	})

	spent := decimal.Zero
	points := 0
	for _, p := range mine {
		spent = spent.Add(decimal.NewFromFloat(p.Price))
		points += p.Points
	}
	spent = spent.Round(2)

	return History{
		Purchases:         mine,
		TotalSpent:        spent.InexactFloat64(),
		TotalSpentDisplay: spent.StringFixed(2),
		TotalPoints:       points,
		TotalCount:        len(mine),
	}
}

// FormatPrice renders a price with two decimals.
func FormatPrice(price float64) string {
	return decimal.NewFromFloat(price).StringFixed(2)
}
