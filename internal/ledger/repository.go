package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kitarena/kitarena/internal/shared"
)

// ListFilter narrows transaction listings.
type ListFilter struct {
	UserID   *int64
	Type     *Type
	Category *string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

// UpdateFields carries the editable columns of a manual entry.
type UpdateFields struct {
	Type        *Type
	Amount      *int64
	Description *string
	Category    *string
	OccurredAt  *time.Time
}

// Repository persists ledger transactions.
type Repository interface {
	Insert(ctx context.Context, tx Transaction) (int64, error)
	Get(ctx context.Context, id int64) (*Transaction, error)
	List(ctx context.Context, filter ListFilter) ([]Transaction, int, error)
	Update(ctx context.Context, id int64, fields UpdateFields) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const transactionColumns = `id, user_id, order_id, type, amount, description, category, occurred_at, created_at`

func (r *repository) Insert(ctx context.Context, tx Transaction) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO transactions (user_id, order_id, type, amount, description, category, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		tx.UserID, tx.OrderID, string(tx.Type), tx.Amount, tx.Description, tx.Category, tx.OccurredAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ledger: insert transaction: %w", err)
	}
	return id, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return tx, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	argPos := 1

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argPos))
		args = append(args, *filter.UserID)
		argPos++
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argPos))
		args = append(args, string(*filter.Type))
		argPos++
	}
	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argPos))
		args = append(args, *filter.Category)
		argPos++
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("occurred_at >= $%d", argPos))
		args = append(args, *filter.DateFrom)
		argPos++
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("occurred_at <= $%d", argPos))
		args = append(args, *filter.DateTo)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM transactions "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ledger: count transactions: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM transactions %s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d",
		transactionColumns, whereClause, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ledger: list transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txs = append(txs, *tx)
	}
	return txs, total, rows.Err()
}

func (r *repository) Update(ctx context.Context, id int64, fields UpdateFields) error {
	query := "UPDATE transactions SET id = id"
	var args []interface{}
	argPos := 1

	if fields.Type != nil {
		query += fmt.Sprintf(", type = $%d", argPos)
		args = append(args, string(*fields.Type))
		argPos++
	}
	if fields.Amount != nil {
		query += fmt.Sprintf(", amount = $%d", argPos)
		args = append(args, *fields.Amount)
		argPos++
	}
	if fields.Description != nil {
		query += fmt.Sprintf(", description = $%d", argPos)
		args = append(args, *fields.Description)
		argPos++
	}
	if fields.Category != nil {
		query += fmt.Sprintf(", category = $%d", argPos)
		args = append(args, *fields.Category)
		argPos++
	}
	if fields.OccurredAt != nil {
		query += fmt.Sprintf(", occurred_at = $%d", argPos)
		args = append(args, *fields.OccurredAt)
		argPos++
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ledger: update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transaction %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ledger: delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transaction %d", shared.ErrNotFound, id)
	}
	return nil
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var tx Transaction
	var userID, orderID pgtype.Int8
	var description, category pgtype.Text
	var txType string

	err := row.Scan(&tx.ID, &userID, &orderID, &txType, &tx.Amount, &description, &category, &tx.OccurredAt, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	tx.Type = Type(txType)
	if userID.Valid {
		tx.UserID = &userID.Int64
	}
	if orderID.Valid {
		tx.OrderID = &orderID.Int64
	}
	if description.Valid {
		tx.Description = description.String
	}
	if category.Valid {
		tx.Category = category.String
	}
	return &tx, nil
}
