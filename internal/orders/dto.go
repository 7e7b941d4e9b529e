package orders

import "time"

// CreateOrderRequest is the public checkout payload. No authentication is
// required; UserID is attached server-side when the caller is logged in.
type CreateOrderRequest struct {
	Name         string            `json:"name" validate:"required,max=100"`
	Phone        string            `json:"phone" validate:"required,max=30"`
	Address      string            `json:"address" validate:"required,max=500"`
	Notes        *string           `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Items        []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
	CustomName   *string           `json:"customName,omitempty" validate:"omitempty,max=30"`
	CustomNumber *int              `json:"customNumber,omitempty" validate:"omitempty,gte=1,lte=99"`
	HasPatch     bool              `json:"hasPatch"`
}

// CreateOrderItem is one requested line.
type CreateOrderItem struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	VariantID *int64 `json:"variantId,omitempty" validate:"omitempty,gt=0"`
	Quantity  int    `json:"qty" validate:"required,gte=1,lte=99"`
}

// TransitionRequest asks for a status change.
type TransitionRequest struct {
	Status string `json:"status" validate:"required,oneof=pending paid canceled"`
}

// DepositRequest records a partial upfront payment.
type DepositRequest struct {
	DepositAmount int64 `json:"depositAmount" validate:"required,gt=0"`
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status   *Status
	UserID   *int64
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}
