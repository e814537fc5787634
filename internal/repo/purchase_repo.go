package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/vp-storefront/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound so callers can use either.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a row with the same unique key already exists.
var ErrDuplicate = errors.New("duplicate")

// ErrInvalidStatus rejects a purchase whose status is not a known one.
var ErrInvalidStatus = errors.New("invalid purchase status")

// AppendPurchase inserts p into the purchases table as-is. The caller owns id
// generation and timestamps so the same value can be written elsewhere.
// Purchases are never updated or deleted through this package.
func AppendPurchase(ctx context.Context, db *gorm.DB, p *domain.Purchase) error {
	if !p.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, p.Status)
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetPurchase fetches a purchase by id owned by userID, or ErrNotFound.
func GetPurchase(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Purchase, error) {
	var p domain.Purchase
	err := db.WithContext(ctx).
		Where(`id = ? AND "userId" = ?`, id, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CountPurchases returns how many purchases userID has in the remote store.
func CountPurchases(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Purchase{}).
		Where(`"userId" = ?`, userID).
		Count(&n).Error
	return n, err
}

// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
