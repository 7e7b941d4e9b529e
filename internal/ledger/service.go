package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/kitarena/kitarena/internal/shared"
)

// Service wraps ledger business rules. The automatic order paths write
// through the orders transaction instead and never pass through here.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecordInput describes a manual ledger entry.
type RecordInput struct {
	UserID      *int64
	Type        Type
	Amount      int64
	Description string
	Category    string
	OccurredAt  *time.Time
}

// Record appends a manual transaction.
func (s *Service) Record(ctx context.Context, input RecordInput) (*Transaction, error) {
	if !input.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown transaction type %q", shared.ErrValidation, input.Type)
	}
	if input.Amount < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", shared.ErrValidation)
	}
	occurredAt := time.Now().UTC()
	if input.OccurredAt != nil {
		occurredAt = *input.OccurredAt
	}
	tx := Transaction{
		UserID:      input.UserID,
		Type:        input.Type,
		Amount:      input.Amount,
		Description: input.Description,
		Category:    input.Category,
		OccurredAt:  occurredAt,
	}
	id, err := s.repo.Insert(ctx, tx)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Get returns one transaction.
func (s *Service) Get(ctx context.Context, id int64) (*Transaction, error) {
	return s.repo.Get(ctx, id)
}

// List returns transactions matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// Update edits a manual entry. Automatic entries are immutable; manual
// entries may only be edited by their owner or an admin.
func (s *Service) Update(ctx context.Context, id int64, actor shared.Identity, fields UpdateFields) (*Transaction, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeMutation(existing, actor); err != nil {
		return nil, err
	}
	if fields.Type != nil && !fields.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown transaction type %q", shared.ErrValidation, *fields.Type)
	}
	if fields.Amount != nil && *fields.Amount < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", shared.ErrValidation)
	}
	if err := s.repo.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a manual entry under the same ownership rules as Update.
func (s *Service) Delete(ctx context.Context, id int64, actor shared.Identity) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeMutation(existing, actor); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) authorizeMutation(tx *Transaction, actor shared.Identity) error {
	if tx.Automatic() {
		return fmt.Errorf("%w: transaction %d was created by an order transition and is immutable", shared.ErrConflict, tx.ID)
	}
	if actor.Role == shared.RoleAdmin {
		return nil
	}
	if tx.UserID != nil && *tx.UserID == actor.UserID {
		return nil
	}
	return fmt.Errorf("%w: transaction %d", shared.ErrForbidden, tx.ID)
}
