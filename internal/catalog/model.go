package catalog

import "time"

// Product is a sellable catalog entry. Money is int64 in the smallest
// currency unit.
type Product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	BasePrice   int64     `json:"base_price"`
	Kit         string    `json:"kit,omitempty"`
	Quality     string    `json:"quality,omitempty"`
	Season      string    `json:"season,omitempty"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Variants    []Variant `json:"variants,omitempty"`
	Images      []Image   `json:"images,omitempty"`
}

// Variant is a purchasable size/option of a product with its own stock and
// optional price override. Stock is decremented only by the paid transition
// of an order, never by order creation.
type Variant struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	Price     *int64 `json:"price,omitempty"`
}

// Image is the stored metadata of an already-uploaded product image; the
// upload itself happens outside this service.
type Image struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	URL       string `json:"url"`
	PublicID  string `json:"public_id,omitempty"`
}
