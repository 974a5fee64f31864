// Package tracking provides interfaces and types for the interaction event store.
//
// It defines the Store interface that all storage implementations must satisfy,
// along with the interaction record and popularity aggregate types. Interaction
// records are append-only: the tracking boundary writes them, the recommendation
// pipeline only reads them.
package tracking

import (
	"context"
	"errors"
	"time"
)

// Kind identifies the type of a recorded user interaction.
type Kind string

const (
	// KindPurchase is a completed purchase of a product.
	KindPurchase Kind = "purchase"

	// KindView is a product detail view.
	KindView Kind = "view"

	// KindCartAdd is an add-to-cart action.
	KindCartAdd Kind = "cart_add"

	// KindCartRemove is a remove-from-cart action.
	KindCartRemove Kind = "cart_remove"

	// KindRating is a 1-5 star product rating.
	KindRating Kind = "rating"
)

// Record is a single observed user action, immutable once stored.
type Record struct {
	// ID is the unique identifier of the record (assigned by the store).
	ID int64

	// UserID identifies the user who performed the action.
	UserID string

	// ProductID is the catalog id of the product acted on.
	ProductID string

	// ProductName is the product name at the time of the action.
	ProductName string

	// Category is the product category at the time of the action.
	Category string

	// Kind is the type of interaction.
	Kind Kind

	// Quantity is the number of units involved (purchases and cart actions).
	// Zero is treated as 1 by consumers.
	Quantity int

	// Rating is the star rating (1-5), only set for KindRating.
	Rating int

	// Price is the unit price at the time of the action (purchases only).
	Price float64

	// OccurredAt is when the action happened.
	OccurredAt time.Time
}

// PopularityEntry is a per-product snapshot of the running popularity counters.
type PopularityEntry struct {
	// ProductID is the catalog id of the product.
	ProductID string

	// ViewCount is the total number of recorded views.
	ViewCount int

	// CartAddCount is the total number of recorded cart adds.
	CartAddCount int

	// PurchaseCount is the total number of recorded purchases.
	PurchaseCount int

	// PopularityScore is the derived score, see Score.
	PopularityScore float64
}

// Score computes the popularity score from the raw counters.
//
// Purchases weigh heaviest, cart adds carry intermediate weight, views
// the least: views*1 + cart_adds*2 + purchases*5.
func Score(views, cartAdds, purchases int) float64 {
	return float64(views)*1 + float64(cartAdds)*2 + float64(purchases)*5
}

// ErrInvalidRecord indicates a record that fails validation (missing product
// id, unknown kind, or an out-of-range rating).
var ErrInvalidRecord = errors.New("invalid interaction record")

// Validate checks a record before it is written.
//
// Rules:
//   - ProductID must be non-empty
//   - Kind must be one of the defined kinds
//   - KindRating requires Rating in [1, 5]
func Validate(rec *Record) error {
	if rec == nil || rec.ProductID == "" {
		return ErrInvalidRecord
	}
	switch rec.Kind {
	case KindPurchase, KindView, KindCartAdd, KindCartRemove:
		return nil
	case KindRating:
		if rec.Rating < 1 || rec.Rating > 5 {
			return ErrInvalidRecord
		}
		return nil
	default:
		return ErrInvalidRecord
	}
}

// Store is the interface all event store backends must implement.
//
// Reads are independent and may be issued concurrently. Writes update the
// popularity aggregate as a side effect (views, cart adds, and purchases
// increment the matching counter and recompute the score).
type Store interface {
	// Record appends an interaction record and updates the popularity
	// aggregate for its product. The record's ID is assigned by the store.
	Record(ctx context.Context, rec *Record) error

	// FetchPurchases returns the user's purchase records, most recent first,
	// up to limit. An unknown user yields an empty slice, not an error.
	FetchPurchases(ctx context.Context, userID string, limit int) ([]*Record, error)

	// FetchRecentViews returns the user's view records, most recent first.
	FetchRecentViews(ctx context.Context, userID string, limit int) ([]*Record, error)

	// FetchCartAdds returns the user's cart-add records, most recent first.
	FetchCartAdds(ctx context.Context, userID string, limit int) ([]*Record, error)

	// FetchTopPopular returns the top products by popularity score,
	// highest first, up to limit.
	FetchTopPopular(ctx context.Context, limit int) ([]*PopularityEntry, error)

	// Close closes the store and releases resources.
	Close() error
}
