package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kitarena/kitarena/internal/shared"
)

type memoryRepo struct {
	txs    map[int64]Transaction
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{txs: make(map[int64]Transaction)}
}

func (r *memoryRepo) Insert(ctx context.Context, tx Transaction) (int64, error) {
	r.nextID++
	tx.ID = r.nextID
	tx.CreatedAt = time.Now()
	r.txs[tx.ID] = tx
	return tx.ID, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (*Transaction, error) {
	tx, ok := r.txs[id]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %d", shared.ErrNotFound, id)
	}
	return &tx, nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	var out []Transaction
	for _, tx := range r.txs {
		if filter.UserID != nil && (tx.UserID == nil || *tx.UserID != *filter.UserID) {
			continue
		}
		out = append(out, tx)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, fields UpdateFields) error {
	tx, ok := r.txs[id]
	if !ok {
		return fmt.Errorf("%w: transaction %d", shared.ErrNotFound, id)
	}
	if fields.Amount != nil {
		tx.Amount = *fields.Amount
	}
	if fields.Type != nil {
		tx.Type = *fields.Type
	}
	if fields.Description != nil {
		tx.Description = *fields.Description
	}
	r.txs[id] = tx
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.txs[id]; !ok {
		return fmt.Errorf("%w: transaction %d", shared.ErrNotFound, id)
	}
	delete(r.txs, id)
	return nil
}

func i64(v int64) *int64 { return &v }

func TestRecordValidatesInput(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Record(ctx, RecordInput{Type: "TRANSFER", Amount: 100})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Record(ctx, RecordInput{Type: TypeIncome, Amount: -1})
	require.ErrorIs(t, err, shared.ErrValidation)

	tx, err := svc.Record(ctx, RecordInput{UserID: i64(7), Type: TypeIncome, Amount: 25000, Category: "misc"})
	require.NoError(t, err)
	require.Equal(t, int64(25000), tx.Amount)
	require.False(t, tx.Automatic())
}

func TestAutomaticEntriesAreImmutable(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	id, err := repo.Insert(ctx, Transaction{
		UserID:     i64(7),
		OrderID:    i64(42),
		Type:       TypeIncome,
		Amount:     50000,
		Category:   CategoryDeposit,
		OccurredAt: time.Now(),
	})
	require.NoError(t, err)

	admin := shared.Identity{UserID: 1, Role: shared.RoleAdmin}
	_, err = svc.Update(ctx, id, admin, UpdateFields{Amount: i64(1)})
	require.ErrorIs(t, err, shared.ErrConflict)

	err = svc.Delete(ctx, id, admin)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestManualEntryOwnership(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	owner := shared.Identity{UserID: 7, Role: shared.RoleSeller}
	other := shared.Identity{UserID: 8, Role: shared.RoleSeller}
	admin := shared.Identity{UserID: 1, Role: shared.RoleAdmin}

	tx, err := svc.Record(ctx, RecordInput{UserID: i64(owner.UserID), Type: TypeExpense, Amount: 10000})
	require.NoError(t, err)

	_, err = svc.Update(ctx, tx.ID, other, UpdateFields{Amount: i64(20000)})
	require.ErrorIs(t, err, shared.ErrForbidden)

	updated, err := svc.Update(ctx, tx.ID, owner, UpdateFields{Amount: i64(20000)})
	require.NoError(t, err)
	require.Equal(t, int64(20000), updated.Amount)

	require.ErrorIs(t, svc.Delete(ctx, tx.ID, other), shared.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, tx.ID, admin))
}
