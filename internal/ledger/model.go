package ledger

import "time"

// Type classifies a ledger transaction.
type Type string

const (
	TypeIncome  Type = "INCOME"
	TypeExpense Type = "EXPENSE"
)

// Valid reports whether t is a known transaction type.
func (t Type) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Categories used by the automatic order paths.
const (
	CategoryDeposit = "sale/deposit"
	CategoryBalance = "sale/balance"
	CategorySale    = "sale"
)

// Transaction is an append-only financial record. Entries created by the
// order lifecycle carry a non-nil OrderID and are never edited in place;
// manual entries have a nil OrderID.
type Transaction struct {
	ID          int64     `json:"id"`
	UserID      *int64    `json:"user_id,omitempty"`
	OrderID     *int64    `json:"order_id,omitempty"`
	Type        Type      `json:"type"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Automatic reports whether the entry was produced by an order transition.
func (t Transaction) Automatic() bool {
	return t.OrderID != nil
}
