// Package domain defines the persistence models for VP purchases and the
// package catalog offered by the storefront. Purchase is mapped with GORM for
// the remote store and serialized with the same field names into the local
// cache, so a single value can be written to both.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseStatus is the settlement state of a purchase.
type PurchaseStatus string

const (
	// StatusCompleted marks a purchase whose payment was confirmed.
	StatusCompleted PurchaseStatus = "completed"
	// StatusProcessing is reserved for asynchronous settlement.
	StatusProcessing PurchaseStatus = "processing"
)

// Valid reports whether s is one of the known statuses.
func (s PurchaseStatus) Valid() bool {
	return s == StatusCompleted || s == StatusProcessing
}

// Purchase is the canonical, immutable record of a completed buy.
//
// Fields:
//   - ID: UUID generated at confirmation time (char(36)).
//   - UserID: identity of the buyer; indexed for history lookups.
//   - Points: amount of VP bought, taken from the selected package.
//   - Price: package price, displayed with two decimals.
//   - RiotID / RiotTag: destination game account; the id is trimmed and the
//     tag is stored uppercase with one leading '#' removed.
//   - Status: always "completed" on confirmation.
//   - Date: UTC confirmation time, truncated to milliseconds so both stores
//     hold the same value after a round-trip.
//
// Column names match the JSON names so the remote row and the cached record
// share one document shape.
type Purchase struct {
	ID      string         `json:"id"      gorm:"column:id;type:char(36);primaryKey"`
	UserID  string         `json:"userId"  gorm:"column:userId;type:varchar(128);not null;index:idx_user_purchases,priority:1"`
	Points  int            `json:"points"  gorm:"column:points;not null;check:points >= 0"`
	Price   float64        `json:"price"   gorm:"column:price;not null;check:price >= 0"`
	RiotID  string         `json:"riotId"  gorm:"column:riotId;type:varchar(64);not null"`
	RiotTag string         `json:"riotTag" gorm:"column:riotTag;type:varchar(16);not null"`
	Status  PurchaseStatus `json:"status"  gorm:"column:status;type:varchar(16);not null;check:status IN ('completed','processing')"`
	Date    time.Time      `json:"date"    gorm:"column:date;not null;index:idx_user_purchases,priority:2"`
}

// TableName returns the collection name shared by both stores.
func (Purchase) TableName() string { return "purchases" }

// Account returns the "<riotId>#<riotTag>" form shown to users.
func (p Purchase) Account() string { return p.RiotID + "#" + p.RiotTag }

// Package is a VP bundle a user can select. Only Points and Price travel into
// a purchase; Bonus and Popular are catalog presentation.
type Package struct {
	Points  int     `json:"points"            example:"2000"`
	Price   float64 `json:"price"             example:"38.9"`
	Bonus   int     `json:"bonus,omitempty"   example:"50"`
	Popular bool    `json:"popular,omitempty" example:"false"`
}

// Valid reports whether the package can be sold.
func (p Package) Valid() bool { return p.Points > 0 && p.Price > 0 }

// Catalog lists the packages offered on the storefront, cheapest first.
var Catalog = []Package{
	{Points: 950, Price: 18.90},
	{Points: 2000, Bonus: 50, Price: 38.90},
	{Points: 4100, Bonus: 150, Price: 75.90, Popular: true},
	{Points: 7300, Bonus: 325, Price: 132.90},
	{Points: 10700, Bonus: 600, Price: 189.90, Popular: true},
	{Points: 22000, Bonus: 1475, Price: 379.90},
}

// FindPackage returns the catalog package with the given points.
func FindPackage(points int) (Package, bool) {
	for _, p := range Catalog {
		if p.Points == points {
			return p, true
		}
	}
	return Package{}, false
}

// MatchPackage returns the catalog package with the given points whose price
// equals price to the cent.
func MatchPackage(points int, price float64) (Package, bool) {
	p, found := FindPackage(points)
	if !found {
		return Package{}, false
	}
	want := decimal.NewFromFloat(p.Price).Round(2)
	if !decimal.NewFromFloat(price).Round(2).Equal(want) {
		return Package{}, false
	}
	return p, true
}
