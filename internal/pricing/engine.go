// Package pricing computes line-item and order totals from catalog snapshots.
// All amounts are integers in the smallest currency unit.
package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrProductMismatch indicates a requested product/variant pair cannot be resolved.
	ErrProductMismatch = errors.New("product mismatch")
	// ErrOutOfStock indicates requested quantity exceeds current stock.
	ErrOutOfStock = errors.New("out of stock")
)

// OutOfStockError reports which line failed the stock check.
type OutOfStockError struct {
	Line      int
	VariantID int64
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("line %d: variant %d has %d in stock, %d requested", e.Line, e.VariantID, e.Available, e.Requested)
}

func (e *OutOfStockError) Unwrap() error { return ErrOutOfStock }

// Surcharges is the fixed-rate customization add-on table, applied once per
// order rather than per line item.
type Surcharges struct {
	CustomName   int64
	CustomNumber int64
	Patch        int64
}

// Customization carries the per-order customization flags.
type Customization struct {
	CustomName   bool
	CustomNumber bool
	Patch        bool
}

// RequestedItem is one line of a checkout request.
type RequestedItem struct {
	ProductID int64
	VariantID *int64
	Quantity  int
}

// VariantInfo is the pricing-relevant view of a product variant.
type VariantInfo struct {
	ID        int64
	ProductID int64
	Name      string
	Stock     int
	Price     *int64
}

// ProductInfo is the pricing-relevant view of a product.
type ProductInfo struct {
	ID        int64
	Title     string
	BasePrice int64
	ImageURL  string
	Variants  map[int64]VariantInfo
}

// Snapshot is the catalog state a quote is computed against.
type Snapshot struct {
	Products map[int64]ProductInfo
}

// LineItem is a priced line with title/price/image copied from the snapshot.
type LineItem struct {
	ProductID   int64
	VariantID   *int64
	VariantName string
	Title       string
	UnitPrice   int64
	Quantity    int
	ImageURL    string
}

// Quote is the result of pricing a checkout request.
type Quote struct {
	Lines    []LineItem
	Subtotal int64
}

// Engine prices checkout requests. It is pure: identical inputs always yield
// identical totals.
type Engine struct {
	surcharges Surcharges
}

// NewEngine constructs an Engine with the given surcharge table.
func NewEngine(surcharges Surcharges) *Engine {
	return &Engine{surcharges: surcharges}
}

// Quote resolves unit prices and computes the subtotal for the requested
// items. The stock check here is a soft check; the authoritative check runs
// inside the paid transition.
func (e *Engine) Quote(items []RequestedItem, snapshot Snapshot) (Quote, error) {
	if len(items) == 0 {
		return Quote{}, fmt.Errorf("%w: empty item list", ErrProductMismatch)
	}
	quote := Quote{Lines: make([]LineItem, 0, len(items))}
	for i, item := range items {
		product, ok := snapshot.Products[item.ProductID]
		if !ok {
			return Quote{}, fmt.Errorf("%w: product %d", ErrProductMismatch, item.ProductID)
		}
		line := LineItem{
			ProductID: product.ID,
			Title:     product.Title,
			UnitPrice: product.BasePrice,
			Quantity:  item.Quantity,
			ImageURL:  product.ImageURL,
		}
		if item.VariantID != nil {
			variant, ok := product.Variants[*item.VariantID]
			if !ok || variant.ProductID != product.ID {
				return Quote{}, fmt.Errorf("%w: variant %d does not belong to product %d", ErrProductMismatch, *item.VariantID, product.ID)
			}
			if item.Quantity > variant.Stock {
				return Quote{}, &OutOfStockError{Line: i, VariantID: variant.ID, Requested: item.Quantity, Available: variant.Stock}
			}
			id := variant.ID
			line.VariantID = &id
			line.VariantName = variant.Name
			if variant.Price != nil {
				line.UnitPrice = *variant.Price
			}
		}
		quote.Subtotal += line.UnitPrice * int64(line.Quantity)
		quote.Lines = append(quote.Lines, line)
	}
	return quote, nil
}

// Total applies the per-order customization surcharges to a subtotal.
func (e *Engine) Total(subtotal int64, c Customization) int64 {
	total := subtotal
	if c.CustomName {
		total += e.surcharges.CustomName
	}
	if c.CustomNumber {
		total += e.surcharges.CustomNumber
	}
	if c.Patch {
		total += e.surcharges.Patch
	}
	return total
}
