package domain

import "time"

// Idempotency records the purchase produced by a confirmation request, keyed
// by (user_id, checkout_id, key). A retried confirmation with the same key is
// answered with the stored purchase instead of creating a second one.
type Idempotency struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_checkout_key,priority:1"`
	CheckoutID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_checkout_key,priority:2"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_checkout_key,priority:3"`
	PurchaseID string    `gorm:"type:TEXT NOT NULL"`
	Status     int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt  time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
