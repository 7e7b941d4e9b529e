package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kitarena/kitarena/internal/ledger"
	"github.com/kitarena/kitarena/internal/platform/db"
	"github.com/kitarena/kitarena/internal/shared"
)

// Repository is the non-transactional surface of order persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
}

// TxRepository is the transactional surface. Everything the paid transition
// touches (order row, variant stock, ledger) lives behind this interface so
// a single database transaction covers all of it.
type TxRepository interface {
	Insert(ctx context.Context, order Order) (int64, time.Time, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (*Order, error)
	GetItems(ctx context.Context, orderID int64) ([]Item, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	SetDeposit(ctx context.Context, id int64, amount int64, transactionID int64, paidAt time.Time) error
	SetBalance(ctx context.Context, id int64, transactionID int64, paidAt time.Time) error
	// DecrementStock is the authoritative stock primitive: a conditional
	// UPDATE that only succeeds when enough stock remains. It reports false
	// instead of driving stock negative.
	DecrementStock(ctx context.Context, variantID int64, qty int) (bool, error)
	InsertLedger(ctx context.Context, tx ledger.Transaction) (int64, error)
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

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const orderColumns = `id, user_id, status, name, phone, address, notes, subtotal,
	custom_name, custom_number, has_patch, total_price,
	deposit_amount, deposit_paid_at, deposit_transaction_id,
	balance_paid_at, balance_transaction_id, created_at`

func (r *repository) Get(ctx context.Context, id int64) (*Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	items, err := r.GetItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (*Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return order, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	argPos := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(*filter.Status))
		argPos++
	}
	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argPos))
		args = append(args, *filter.UserID)
		argPos++
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, *filter.DateFrom)
		argPos++
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argPos))
		args = append(args, *filter.DateTo)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM orders "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("orders: count: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM orders %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		orderColumns, whereClause, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("orders: list: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *order)
	}
	return out, total, rows.Err()
}

func (r *repository) Insert(ctx context.Context, order Order) (int64, time.Time, error) {
	var id int64
	var createdAt time.Time
	err := r.db.QueryRow(ctx, `
		INSERT INTO orders (user_id, status, name, phone, address, notes, subtotal,
		                    custom_name, custom_number, has_patch, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		order.UserID, string(order.Status), order.Name, order.Phone, order.Address, order.Notes,
		order.Subtotal, order.CustomName, order.CustomNumber, order.HasPatch, order.TotalPrice,
	).Scan(&id, &createdAt)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("orders: insert: %w", err)
	}
	return id, createdAt, nil
}

func (r *repository) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, product_id, variant_id, title, price, quantity, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		item.OrderID, item.ProductID, item.VariantID, item.Title, item.UnitPrice, item.Quantity, item.ImageURL,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("orders: insert item: %w", err)
	}
	return id, nil
}

func (r *repository) GetItems(ctx context.Context, orderID int64) ([]Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, variant_id, title, price, quantity, COALESCE(image_url, '')
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("orders: load items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		var variantID pgtype.Int8
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &variantID, &item.Title, &item.UnitPrice, &item.Quantity, &item.ImageURL); err != nil {
			return nil, fmt.Errorf("orders: scan item: %w", err)
		}
		if variantID.Valid {
			item.VariantID = &variantID.Int64
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("orders: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) SetDeposit(ctx context.Context, id int64, amount int64, transactionID int64, paidAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE orders SET deposit_amount = $1, deposit_transaction_id = $2, deposit_paid_at = $3
		WHERE id = $4`, amount, transactionID, paidAt, id)
	if err != nil {
		return fmt.Errorf("orders: set deposit: %w", err)
	}
	return nil
}

func (r *repository) SetBalance(ctx context.Context, id int64, transactionID int64, paidAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE orders SET balance_transaction_id = $1, balance_paid_at = $2
		WHERE id = $3`, transactionID, paidAt, id)
	if err != nil {
		return fmt.Errorf("orders: set balance: %w", err)
	}
	return nil
}

func (r *repository) DecrementStock(ctx context.Context, variantID int64, qty int) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE product_variants SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`, variantID, qty)
	if err != nil {
		return false, fmt.Errorf("orders: decrement stock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repository) InsertLedger(ctx context.Context, tx ledger.Transaction) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO transactions (user_id, order_id, type, amount, description, category, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		tx.UserID, tx.OrderID, string(tx.Type), tx.Amount, tx.Description, tx.Category, tx.OccurredAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("orders: insert ledger transaction: %w", err)
	}
	return id, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var userID, depositTxID, balanceTxID, depositAmount pgtype.Int8
	var customNumber pgtype.Int4
	var notes, customName pgtype.Text
	var depositPaidAt, balancePaidAt pgtype.Timestamptz
	var status string

	err := row.Scan(&o.ID, &userID, &status, &o.Name, &o.Phone, &o.Address, &notes, &o.Subtotal,
		&customName, &customNumber, &o.HasPatch, &o.TotalPrice,
		&depositAmount, &depositPaidAt, &depositTxID,
		&balancePaidAt, &balanceTxID, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	if userID.Valid {
		o.UserID = &userID.Int64
	}
	if notes.Valid {
		o.Notes = &notes.String
	}
	if customName.Valid {
		o.CustomName = &customName.String
	}
	if customNumber.Valid {
		n := int(customNumber.Int32)
		o.CustomNumber = &n
	}
	if depositAmount.Valid {
		o.DepositAmount = &depositAmount.Int64
	}
	if depositPaidAt.Valid {
		o.DepositPaidAt = &depositPaidAt.Time
	}
	if depositTxID.Valid {
		o.DepositTransactionID = &depositTxID.Int64
	}
	if balancePaidAt.Valid {
		o.BalancePaidAt = &balancePaidAt.Time
	}
	if balanceTxID.Valid {
		o.BalanceTransactionID = &balanceTxID.Int64
	}
	return &o, nil
}
