package orders

import (
	"errors"
	"time"

	"github.com/kitarena/kitarena/internal/pricing"
)

// ErrInvalidTransition marks a status change the lifecycle does not permit.
var ErrInvalidTransition = errors.New("invalid status transition")

// Status is the payment lifecycle of an order. This is the single canonical
// vocabulary: fulfillment tracking (preparing/shipped/...) is a different
// dimension and deliberately not part of it.
type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusCanceled Status = "canceled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusPaid || s == StatusCanceled
}

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCanceled
}

// CanTransition is the only transition oracle. Terminal states reject
// everything, including transitions to themselves, so double submissions
// surface as conflicts instead of silent no-ops.
func CanTransition(from, to Status) bool {
	return from == StatusPending && (to == StatusPaid || to == StatusCanceled)
}

// Order is a checkout result. Item rows are immutable snapshots; totals are
// fixed at creation time.
type Order struct {
	ID                   int64      `json:"id"`
	UserID               *int64     `json:"user_id,omitempty"`
	Status               Status     `json:"status"`
	Name                 string     `json:"name"`
	Phone                string     `json:"phone"`
	Address              string     `json:"address"`
	Notes                *string    `json:"notes,omitempty"`
	Subtotal             int64      `json:"subtotal"`
	CustomName           *string    `json:"custom_name,omitempty"`
	CustomNumber         *int       `json:"custom_number,omitempty"`
	HasPatch             bool       `json:"has_patch"`
	TotalPrice           int64      `json:"total_price"`
	DepositAmount        *int64     `json:"deposit_amount,omitempty"`
	DepositPaidAt        *time.Time `json:"deposit_paid_at,omitempty"`
	DepositTransactionID *int64     `json:"deposit_transaction_id,omitempty"`
	BalancePaidAt        *time.Time `json:"balance_paid_at,omitempty"`
	BalanceTransactionID *int64     `json:"balance_transaction_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	Items                []Item     `json:"items,omitempty"`
}

// Customization derives the pricing flags from the order's fields.
func (o Order) Customization() pricing.Customization {
	return pricing.Customization{
		CustomName:   o.CustomName != nil && *o.CustomName != "",
		CustomNumber: o.CustomNumber != nil,
		Patch:        o.HasPatch,
	}
}

// Item is a line of an order. Title, price, and image are copied from the
// catalog at order time and never resynchronized: an order is a historical
// receipt, not a live view.
type Item struct {
	ID        int64  `json:"id"`
	OrderID   int64  `json:"order_id"`
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	ImageURL  string `json:"image_url,omitempty"`
}
