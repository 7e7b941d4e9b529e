package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/kitarena/kitarena/internal/pricing"
	"github.com/kitarena/kitarena/internal/shared"
)

// Publisher enqueues fire-and-forget side effects. Failures must never roll
// back or block catalog writes.
type Publisher interface {
	EnqueueSocialPost(ctx context.Context, post SocialPost) error
}

// SocialPost is the announcement payload for a newly created product.
type SocialPost struct {
	ProductID int64
	Title     string
	BasePrice int64
	Kit       string
	Season    string
}

// Service coordinates catalog operations.
type Service struct {
	repo      Repository
	publisher Publisher
	logger    *slog.Logger
	group     singleflight.Group
}

// NewService builds a Service. publisher may be nil when auto-posting is
// disabled.
func NewService(repo Repository, publisher Publisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, publisher: publisher, logger: logger}
}

// List returns products matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.repo.List(ctx, filter)
}

// Get loads a product with its variants and images. Concurrent reads of the
// same product are coalesced into a single repository call.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: invalid product id", shared.ErrValidation)
	}
	v, err, _ := s.group.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		return s.repo.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Product), nil
}

// Create persists a product with its initial variants, then enqueues the
// social auto-post. The enqueue is best-effort: its failure is logged and
// never affects the committed product.
func (s *Service) Create(ctx context.Context, req CreateProductRequest, ownerID int64) (*Product, error) {
	if req.BasePrice < 0 {
		return nil, fmt.Errorf("%w: base price must not be negative", shared.ErrValidation)
	}
	product := Product{
		Title:       req.Title,
		Description: req.Description,
		BasePrice:   req.BasePrice,
		Kit:         req.Kit,
		Quality:     req.Quality,
		Season:      req.Season,
		OwnerID:     ownerID,
	}
	for _, v := range req.Variants {
		if v.Stock < 0 {
			return nil, fmt.Errorf("%w: stock must not be negative", shared.ErrValidation)
		}
		if v.Price != nil && *v.Price < 0 {
			return nil, fmt.Errorf("%w: variant price must not be negative", shared.ErrValidation)
		}
		product.Variants = append(product.Variants, Variant{Name: v.Name, Stock: v.Stock, Price: v.Price})
	}

	id, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		post := SocialPost{
			ProductID: id,
			Title:     product.Title,
			BasePrice: product.BasePrice,
			Kit:       product.Kit,
			Season:    product.Season,
		}
		if err := s.publisher.EnqueueSocialPost(ctx, post); err != nil {
			s.logger.Warn("social post enqueue failed", slog.Int64("product_id", id), slog.Any("error", err))
		}
	}
	return s.repo.Get(ctx, id)
}

// Update patches product fields.
func (s *Service) Update(ctx context.Context, id int64, req UpdateProductRequest) (*Product, error) {
	if req.BasePrice != nil && *req.BasePrice < 0 {
		return nil, fmt.Errorf("%w: base price must not be negative", shared.ErrValidation)
	}
	if err := s.repo.Update(ctx, id, req); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a product and, through referential integrity, its variants
// and images.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// AddVariant creates a variant on a product.
func (s *Service) AddVariant(ctx context.Context, productID int64, req CreateVariantRequest) (int64, error) {
	if req.Stock < 0 {
		return 0, fmt.Errorf("%w: stock must not be negative", shared.ErrValidation)
	}
	if req.Price != nil && *req.Price < 0 {
		return 0, fmt.Errorf("%w: variant price must not be negative", shared.ErrValidation)
	}
	return s.repo.CreateVariant(ctx, Variant{ProductID: productID, Name: req.Name, Stock: req.Stock, Price: req.Price})
}

// UpdateVariant patches a variant. Setting stock here is a restock/correction
// operation; sale decrements only ever happen inside the order paid
// transition.
func (s *Service) UpdateVariant(ctx context.Context, id int64, req UpdateVariantRequest) error {
	if req.Stock != nil && *req.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", shared.ErrValidation)
	}
	if req.Price != nil && *req.Price < 0 {
		return fmt.Errorf("%w: variant price must not be negative", shared.ErrValidation)
	}
	return s.repo.UpdateVariant(ctx, id, req)
}

// DeleteVariant removes a variant.
func (s *Service) DeleteVariant(ctx context.Context, id int64) error {
	return s.repo.DeleteVariant(ctx, id)
}

// AddImage records uploaded image metadata.
func (s *Service) AddImage(ctx context.Context, productID int64, req AddImageRequest) (int64, error) {
	return s.repo.AddImage(ctx, Image{ProductID: productID, URL: req.URL, PublicID: req.PublicID})
}

// DeleteImage removes image metadata.
func (s *Service) DeleteImage(ctx context.Context, id int64) error {
	return s.repo.DeleteImage(ctx, id)
}

// Snapshot exposes the pricing view of the catalog to the checkout flow.
func (s *Service) Snapshot(ctx context.Context, productIDs []int64) (pricing.Snapshot, error) {
	return s.repo.Snapshot(ctx, productIDs)
}
