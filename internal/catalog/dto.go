package catalog

// CreateProductRequest creates a product together with its initial variants.
type CreateProductRequest struct {
	Title       string                 `json:"title" validate:"required,max=200"`
	Description string                 `json:"description" validate:"max=2000"`
	BasePrice   int64                  `json:"basePrice" validate:"gte=0"`
	Kit         string                 `json:"kit" validate:"max=50"`
	Quality     string                 `json:"quality" validate:"max=50"`
	Season      string                 `json:"season" validate:"max=20"`
	Variants    []CreateVariantRequest `json:"variants" validate:"omitempty,dive"`
}

// CreateVariantRequest adds a variant to a product.
type CreateVariantRequest struct {
	Name  string `json:"name" validate:"required,max=50"`
	Stock int    `json:"stock" validate:"gte=0"`
	Price *int64 `json:"price,omitempty" validate:"omitempty,gte=0"`
}

// UpdateProductRequest patches product fields; nil means unchanged.
type UpdateProductRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	BasePrice   *int64  `json:"basePrice,omitempty" validate:"omitempty,gte=0"`
	Kit         *string `json:"kit,omitempty" validate:"omitempty,max=50"`
	Quality     *string `json:"quality,omitempty" validate:"omitempty,max=50"`
	Season      *string `json:"season,omitempty" validate:"omitempty,max=20"`
}

// UpdateVariantRequest patches variant fields; nil means unchanged.
type UpdateVariantRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,max=50"`
	Stock *int    `json:"stock,omitempty" validate:"omitempty,gte=0"`
	Price *int64  `json:"price,omitempty" validate:"omitempty,gte=0"`
}

// AddImageRequest records uploaded image metadata against a product.
type AddImageRequest struct {
	URL      string `json:"url" validate:"required,url,max=500"`
	PublicID string `json:"publicId" validate:"max=200"`
}

// ListFilter narrows product listings.
type ListFilter struct {
	Search  *string
	Kit     *string
	Season  *string
	OwnerID *int64
	Limit   int
	Offset  int
}
