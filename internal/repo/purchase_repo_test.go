package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/vp-storefront/internal/domain"
)

func samplePurchase(id, userID string) *domain.Purchase {
	return &domain.Purchase{
		ID:      id,
		UserID:  userID,
		Points:  2000,
		Price:   38.90,
		RiotID:  "PlayerX",
		RiotTag: "BR1",
		Status:  domain.StatusCompleted,
		Date:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAppendPurchase_PersistsExactValue(t *testing.T) {
	db := newIdemDB(t, &domain.Purchase{})
	ctx := context.Background()

	p := samplePurchase("p1", "u1")
	if err := AppendPurchase(ctx, db, p); err != nil {
		t.Fatalf("AppendPurchase: %v", err)
	}

	got, err := GetPurchase(ctx, db, "p1", "u1")
	if err != nil {
		t.Fatalf("GetPurchase: %v", err)
	}
	if got.Points != 2000 || got.Price != 38.90 || got.RiotID != "PlayerX" || got.RiotTag != "BR1" ||
		got.Status != domain.StatusCompleted || !got.Date.Equal(p.Date) {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestAppendPurchase_DuplicateID(t *testing.T) {
	db := newIdemDB(t, &domain.Purchase{})
	ctx := context.Background()

	if err := AppendPurchase(ctx, db, samplePurchase("p1", "u1")); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := AppendPurchase(ctx, db, samplePurchase("p1", "u2")); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestAppendPurchase_Error_NoTable(t *testing.T) {
	db := newIdemDB(t)
	err := AppendPurchase(context.Background(), db, samplePurchase("p1", "u1"))
	if err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected generic error without table, got %v", err)
	}
}

func TestAppendPurchase_RejectsUnknownStatus(t *testing.T) {
	db := newIdemDB(t, &domain.Purchase{})
	ctx := context.Background()

	p := samplePurchase("p1", "u1")
	p.Status = "refunded"
	if err := AppendPurchase(ctx, db, p); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if n, err := CountPurchases(ctx, db, "u1"); err != nil || n != 0 {
		t.Fatalf("rejected purchase was stored: n=%d err=%v", n, err)
	}
}

func TestGetPurchase_ScopedToOwner(t *testing.T) {
	db := newIdemDB(t, &domain.Purchase{})
	ctx := context.Background()
	if err := AppendPurchase(ctx, db, samplePurchase("p1", "u1")); err != nil {
		t.Fatalf("append: %v", err)
	}

	if _, err := GetPurchase(ctx, db, "p1", "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user must not see purchase, got %v", err)
	}
	if _, err := GetPurchase(ctx, db, "missing", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing id: %v", err)
	}
}

func TestCountPurchases(t *testing.T) {
	db := newIdemDB(t, &domain.Purchase{})
	ctx := context.Background()
	for _, p := range []*domain.Purchase{
		samplePurchase("p1", "u1"),
		samplePurchase("p2", "u1"),
		samplePurchase("p3", "u2"),
	} {
		if err := AppendPurchase(ctx, db, p); err != nil {
			t.Fatalf("append %s: %v", p.ID, err)
		}
	}
	if n, err := CountPurchases(ctx, db, "u1"); err != nil || n != 2 {
		t.Fatalf("CountPurchases(u1) = %d, %v", n, err)
	}
	if n, err := CountPurchases(ctx, db, "nobody"); err != nil || n != 0 {
		t.Fatalf("CountPurchases(nobody) = %d, %v", n, err)
	}
}
