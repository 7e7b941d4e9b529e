package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kitarena/kitarena/internal/pricing"
	"github.com/kitarena/kitarena/internal/shared"
)

type memoryRepo struct {
	products map[int64]Product
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[int64]Product)}
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	var out []Product
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (*Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return &p, nil
}

func (r *memoryRepo) Create(ctx context.Context, product Product) (int64, error) {
	r.nextID++
	product.ID = r.nextID
	for i := range product.Variants {
		r.nextID++
		product.Variants[i].ID = r.nextID
		product.Variants[i].ProductID = product.ID
	}
	r.products[product.ID] = product
	return product.ID, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, req UpdateProductRequest) error {
	p, ok := r.products[id]
	if !ok {
		return fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.BasePrice != nil {
		p.BasePrice = *req.BasePrice
	}
	r.products[id] = p
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.products[id]; !ok {
		return fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	delete(r.products, id)
	return nil
}

func (r *memoryRepo) CreateVariant(ctx context.Context, v Variant) (int64, error) {
	p, ok := r.products[v.ProductID]
	if !ok {
		return 0, fmt.Errorf("%w: product %d", shared.ErrNotFound, v.ProductID)
	}
	for _, existing := range p.Variants {
		if existing.Name == v.Name {
			return 0, fmt.Errorf("%w: %w", shared.ErrConflict, ErrDuplicateVariant)
		}
	}
	r.nextID++
	v.ID = r.nextID
	p.Variants = append(p.Variants, v)
	r.products[v.ProductID] = p
	return v.ID, nil
}

func (r *memoryRepo) UpdateVariant(ctx context.Context, id int64, req UpdateVariantRequest) error {
	return nil
}

func (r *memoryRepo) DeleteVariant(ctx context.Context, id int64) error { return nil }

func (r *memoryRepo) AddImage(ctx context.Context, img Image) (int64, error) {
	r.nextID++
	return r.nextID, nil
}

func (r *memoryRepo) DeleteImage(ctx context.Context, id int64) error { return nil }

func (r *memoryRepo) Snapshot(ctx context.Context, productIDs []int64) (pricing.Snapshot, error) {
	snapshot := pricing.Snapshot{Products: make(map[int64]pricing.ProductInfo)}
	for _, id := range productIDs {
		p, ok := r.products[id]
		if !ok {
			continue
		}
		info := pricing.ProductInfo{ID: p.ID, Title: p.Title, BasePrice: p.BasePrice, Variants: make(map[int64]pricing.VariantInfo)}
		for _, v := range p.Variants {
			info.Variants[v.ID] = pricing.VariantInfo{ID: v.ID, ProductID: v.ProductID, Name: v.Name, Stock: v.Stock, Price: v.Price}
		}
		snapshot.Products[p.ID] = info
	}
	return snapshot, nil
}

type recordingPublisher struct {
	posts []SocialPost
	err   error
}

func (p *recordingPublisher) EnqueueSocialPost(ctx context.Context, post SocialPost) error {
	if p.err != nil {
		return p.err
	}
	p.posts = append(p.posts, post)
	return nil
}

func TestCreateEnqueuesSocialPost(t *testing.T) {
	repo := newMemoryRepo()
	pub := &recordingPublisher{}
	svc := NewService(repo, pub, slog.Default())
	ctx := context.Background()

	product, err := svc.Create(ctx, CreateProductRequest{
		Title:     "Third Kit 2026",
		BasePrice: 180000,
		Season:    "2026",
		Variants:  []CreateVariantRequest{{Name: "L", Stock: 10}},
	}, 3)
	require.NoError(t, err)
	require.Len(t, pub.posts, 1)
	require.Equal(t, product.ID, pub.posts[0].ProductID)
	require.Equal(t, "Third Kit 2026", pub.posts[0].Title)
}

func TestCreateSurvivesPublisherFailure(t *testing.T) {
	repo := newMemoryRepo()
	pub := &recordingPublisher{err: errors.New("queue down")}
	svc := NewService(repo, pub, slog.Default())

	product, err := svc.Create(context.Background(), CreateProductRequest{Title: "Keeper Kit", BasePrice: 90000}, 3)
	require.NoError(t, err)
	require.NotZero(t, product.ID)
}

func TestCreateRejectsNegativePrices(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, slog.Default())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateProductRequest{Title: "Bad", BasePrice: -1}, 3)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateProductRequest{
		Title:     "Bad variant",
		BasePrice: 1000,
		Variants:  []CreateVariantRequest{{Name: "M", Stock: -5}},
	}, 3)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAddVariantDuplicateName(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, slog.Default())
	ctx := context.Background()

	product, err := svc.Create(ctx, CreateProductRequest{
		Title:     "Home Kit",
		BasePrice: 150000,
		Variants:  []CreateVariantRequest{{Name: "M", Stock: 3}},
	}, 3)
	require.NoError(t, err)

	_, err = svc.AddVariant(ctx, product.ID, CreateVariantRequest{Name: "M", Stock: 1})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.ErrorIs(t, err, ErrDuplicateVariant)
}

func TestSnapshotReflectsVariantOverrides(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, slog.Default())
	ctx := context.Background()

	override := int64(200000)
	product, err := svc.Create(ctx, CreateProductRequest{
		Title:     "Retro Kit",
		BasePrice: 150000,
		Variants: []CreateVariantRequest{
			{Name: "M", Stock: 5},
			{Name: "XXL", Stock: 2, Price: &override},
		},
	}, 3)
	require.NoError(t, err)

	snapshot, err := svc.Snapshot(ctx, []int64{product.ID})
	require.NoError(t, err)
	info, ok := snapshot.Products[product.ID]
	require.True(t, ok)
	require.Len(t, info.Variants, 2)
	require.Equal(t, int64(150000), info.BasePrice)
}
