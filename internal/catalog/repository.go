package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kitarena/kitarena/internal/platform/db"
	"github.com/kitarena/kitarena/internal/pricing"
	"github.com/kitarena/kitarena/internal/shared"
)

// ErrDuplicateVariant indicates a variant name already exists on the product.
var ErrDuplicateVariant = errors.New("variant name already exists for product")

// Repository persists the catalog.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	Get(ctx context.Context, id int64) (*Product, error)
	Create(ctx context.Context, product Product) (int64, error)
	Update(ctx context.Context, id int64, req UpdateProductRequest) error
	Delete(ctx context.Context, id int64) error
	CreateVariant(ctx context.Context, variant Variant) (int64, error)
	UpdateVariant(ctx context.Context, id int64, req UpdateVariantRequest) error
	DeleteVariant(ctx context.Context, id int64) error
	AddImage(ctx context.Context, image Image) (int64, error)
	DeleteImage(ctx context.Context, id int64) error
	Snapshot(ctx context.Context, productIDs []int64) (pricing.Snapshot, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	argPos := 1

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("title ILIKE $%d", argPos))
		args = append(args, "%"+*filter.Search+"%")
		argPos++
	}
	if filter.Kit != nil {
		conditions = append(conditions, fmt.Sprintf("kit = $%d", argPos))
		args = append(args, *filter.Kit)
		argPos++
	}
	if filter.Season != nil {
		conditions = append(conditions, fmt.Sprintf("season = $%d", argPos))
		args = append(args, *filter.Season)
		argPos++
	}
	if filter.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argPos))
		args = append(args, *filter.OwnerID)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM products "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count products: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, title, description, base_price, kit, quality, season, owner_id, created_at, updated_at
		FROM products %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, whereClause, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Product, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, title, description, base_price, kit, quality, season, owner_id, created_at, updated_at
		FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
		}
		return nil, err
	}

	variants, err := r.variantsFor(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	p.Variants = variants[id]

	images, err := r.imagesFor(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Images = images
	return p, nil
}

func (r *repository) Create(ctx context.Context, product Product) (int64, error) {
	var productID int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO products (title, description, base_price, kit, quality, season, owner_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			product.Title, product.Description, product.BasePrice,
			product.Kit, product.Quality, product.Season, product.OwnerID,
		).Scan(&productID)
		if err != nil {
			return fmt.Errorf("catalog: insert product: %w", err)
		}
		for _, v := range product.Variants {
			_, err := tx.Exec(ctx, `
				INSERT INTO product_variants (product_id, name, stock, price)
				VALUES ($1, $2, $3, $4)`,
				productID, v.Name, v.Stock, v.Price)
			if err != nil {
				return mapVariantErr(err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return productID, nil
}

func (r *repository) Update(ctx context.Context, id int64, req UpdateProductRequest) error {
	query := "UPDATE products SET updated_at = NOW()"
	var args []interface{}
	argPos := 1

	appendField := func(column string, value interface{}) {
		query += fmt.Sprintf(", %s = $%d", column, argPos)
		args = append(args, value)
		argPos++
	}
	if req.Title != nil {
		appendField("title", *req.Title)
	}
	if req.Description != nil {
		appendField("description", *req.Description)
	}
	if req.BasePrice != nil {
		appendField("base_price", *req.BasePrice)
	}
	if req.Kit != nil {
		appendField("kit", *req.Kit)
	}
	if req.Quality != nil {
		appendField("quality", *req.Quality)
	}
	if req.Season != nil {
		appendField("season", *req.Season)
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("catalog: update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) CreateVariant(ctx context.Context, variant Variant) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO product_variants (product_id, name, stock, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		variant.ProductID, variant.Name, variant.Stock, variant.Price,
	).Scan(&id)
	if err != nil {
		return 0, mapVariantErr(err)
	}
	return id, nil
}

func (r *repository) UpdateVariant(ctx context.Context, id int64, req UpdateVariantRequest) error {
	query := "UPDATE product_variants SET id = id"
	var args []interface{}
	argPos := 1

	if req.Name != nil {
		query += fmt.Sprintf(", name = $%d", argPos)
		args = append(args, *req.Name)
		argPos++
	}
	if req.Stock != nil {
		query += fmt.Sprintf(", stock = $%d", argPos)
		args = append(args, *req.Stock)
		argPos++
	}
	if req.Price != nil {
		query += fmt.Sprintf(", price = $%d", argPos)
		args = append(args, *req.Price)
		argPos++
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return mapVariantErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: variant %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) DeleteVariant(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM product_variants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete variant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: variant %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) AddImage(ctx context.Context, image Image) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO product_images (product_id, url, public_id)
		VALUES ($1, $2, $3)
		RETURNING id`,
		image.ProductID, image.URL, image.PublicID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("catalog: insert image: %w", err)
	}
	return id, nil
}

func (r *repository) DeleteImage(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM product_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: image %d", shared.ErrNotFound, id)
	}
	return nil
}

// Snapshot loads the pricing view of the given products, their variants, and
// their first image.
func (r *repository) Snapshot(ctx context.Context, productIDs []int64) (pricing.Snapshot, error) {
	snapshot := pricing.Snapshot{Products: make(map[int64]pricing.ProductInfo, len(productIDs))}
	if len(productIDs) == 0 {
		return snapshot, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.title, p.base_price,
		       COALESCE((SELECT url FROM product_images i WHERE i.product_id = p.id ORDER BY i.id LIMIT 1), '')
		FROM products p
		WHERE p.id = ANY($1)`, productIDs)
	if err != nil {
		return pricing.Snapshot{}, fmt.Errorf("catalog: snapshot products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var info pricing.ProductInfo
		if err := rows.Scan(&info.ID, &info.Title, &info.BasePrice, &info.ImageURL); err != nil {
			return pricing.Snapshot{}, fmt.Errorf("catalog: scan snapshot product: %w", err)
		}
		info.Variants = make(map[int64]pricing.VariantInfo)
		snapshot.Products[info.ID] = info
	}
	if err := rows.Err(); err != nil {
		return pricing.Snapshot{}, err
	}

	variants, err := r.variantsFor(ctx, productIDs)
	if err != nil {
		return pricing.Snapshot{}, err
	}
	for productID, vs := range variants {
		info, ok := snapshot.Products[productID]
		if !ok {
			continue
		}
		for _, v := range vs {
			info.Variants[v.ID] = pricing.VariantInfo{
				ID:        v.ID,
				ProductID: v.ProductID,
				Name:      v.Name,
				Stock:     v.Stock,
				Price:     v.Price,
			}
		}
	}
	return snapshot, nil
}

func (r *repository) variantsFor(ctx context.Context, productIDs []int64) (map[int64][]Variant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, product_id, name, stock, price
		FROM product_variants
		WHERE product_id = ANY($1)
		ORDER BY product_id, id`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("catalog: load variants: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]Variant)
	for rows.Next() {
		var v Variant
		var price pgtype.Int8
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.Stock, &price); err != nil {
			return nil, fmt.Errorf("catalog: scan variant: %w", err)
		}
		if price.Valid {
			v.Price = &price.Int64
		}
		result[v.ProductID] = append(result[v.ProductID], v)
	}
	return result, rows.Err()
}

func (r *repository) imagesFor(ctx context.Context, productID int64) ([]Image, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, product_id, url, COALESCE(public_id, '')
		FROM product_images
		WHERE product_id = $1
		ORDER BY id`, productID)
	if err != nil {
		return nil, fmt.Errorf("catalog: load images: %w", err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.ProductID, &img.URL, &img.PublicID); err != nil {
			return nil, fmt.Errorf("catalog: scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	var description, kit, quality, season pgtype.Text
	err := row.Scan(&p.ID, &p.Title, &description, &p.BasePrice, &kit, &quality, &season, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		p.Description = description.String
	}
	if kit.Valid {
		p.Kit = kit.String
	}
	if quality.Valid {
		p.Quality = quality.String
	}
	if season.Valid {
		p.Season = season.String
	}
	return &p, nil
}

func mapVariantErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %w", shared.ErrConflict, ErrDuplicateVariant)
		case "23503":
			return fmt.Errorf("%w: product", shared.ErrNotFound)
		}
	}
	return fmt.Errorf("catalog: variant write: %w", err)
}
