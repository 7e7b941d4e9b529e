package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kitarena/kitarena/internal/ledger"
	"github.com/kitarena/kitarena/internal/pricing"
	"github.com/kitarena/kitarena/internal/shared"
)

// CatalogPort is the slice of the catalog the order flow needs.
type CatalogPort interface {
	Snapshot(ctx context.Context, productIDs []int64) (pricing.Snapshot, error)
}

// Config tunes order-side ledger behavior.
type Config struct {
	// RecordFullPayment controls whether marking an order paid without a
	// prior deposit writes a single full-amount INCOME entry.
	RecordFullPayment bool
}

// Service implements checkout and the payment lifecycle.
type Service struct {
	repo    Repository
	catalog CatalogPort
	engine  *pricing.Engine
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(repo Repository, catalog CatalogPort, engine *pricing.Engine, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		engine:  engine,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Create prices the requested items against a catalog snapshot and persists
// the order with its immutable item snapshots. Stock is NOT decremented here;
// that happens on the paid transition. On any pricing failure nothing is
// persisted.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest, userID *int64) (*Order, error) {
	productIDs := make([]int64, 0, len(req.Items))
	seen := make(map[int64]struct{}, len(req.Items))
	requested := make([]pricing.RequestedItem, 0, len(req.Items))
	for _, item := range req.Items {
		if _, ok := seen[item.ProductID]; !ok {
			seen[item.ProductID] = struct{}{}
			productIDs = append(productIDs, item.ProductID)
		}
		requested = append(requested, pricing.RequestedItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}

	snapshot, err := s.catalog.Snapshot(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("orders: load snapshot: %w", err)
	}

	quote, err := s.engine.Quote(requested, snapshot)
	if err != nil {
		return nil, err
	}

	order := Order{
		UserID:       userID,
		Status:       StatusPending,
		Name:         req.Name,
		Phone:        req.Phone,
		Address:      req.Address,
		Notes:        req.Notes,
		Subtotal:     quote.Subtotal,
		CustomName:   req.CustomName,
		CustomNumber: req.CustomNumber,
		HasPatch:     req.HasPatch,
	}
	order.TotalPrice = s.engine.Total(quote.Subtotal, order.Customization())

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, createdAt, err := tx.Insert(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		order.CreatedAt = createdAt
		for _, line := range quote.Lines {
			item := Item{
				OrderID:   id,
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Title:     itemTitle(line),
				UnitPrice: line.UnitPrice,
				Quantity:  line.Quantity,
				ImageURL:  line.ImageURL,
			}
			itemID, err := tx.InsertItem(ctx, item)
			if err != nil {
				return err
			}
			item.ID = itemID
			order.Items = append(order.Items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		slog.Int64("order_id", order.ID),
		slog.Int64("total", order.TotalPrice),
		slog.Int("items", len(order.Items)))
	return &order, nil
}

// Get loads one order with its items.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders matching the filter plus the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

// Transition dispatches a status change request.
func (s *Service) Transition(ctx context.Context, id int64, to Status, actor shared.Identity) (*Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, to)
	}
	switch to {
	case StatusPaid:
		return s.MarkPaid(ctx, id, actor)
	case StatusCanceled:
		return s.Cancel(ctx, id)
	default:
		return nil, fmt.Errorf("%w: %w: cannot transition to %q", shared.ErrConflict, ErrInvalidTransition, to)
	}
}

// MarkPaid flips a pending order to paid. In one transaction it re-checks the
// current status under a row lock, decrements stock for every variant-backed
// line, records the income ledger entries, and updates the status. If any
// line lacks stock the whole transaction rolls back and stock is untouched.
func (s *Service) MarkPaid(ctx context.Context, id int64, actor shared.Identity) (*Order, error) {
	var out *Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(order.Status, StatusPaid) {
			return fmt.Errorf("%w: %w: order %d is %s", shared.ErrConflict, ErrInvalidTransition, id, order.Status)
		}

		items, err := tx.GetItems(ctx, id)
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.VariantID == nil {
				continue
			}
			ok, err := tx.DecrementStock(ctx, *item.VariantID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %w: variant %d, %d requested",
					shared.ErrConflict, pricing.ErrOutOfStock, *item.VariantID, item.Quantity)
			}
		}

		now := s.now()
		if order.DepositAmount != nil && *order.DepositAmount > 0 {
			balance := order.TotalPrice - *order.DepositAmount
			if balance > 0 {
				txID, err := tx.InsertLedger(ctx, ledger.Transaction{
					UserID:      ledgerOwner(order, actor),
					OrderID:     &order.ID,
					Type:        ledger.TypeIncome,
					Amount:      balance,
					Description: fmt.Sprintf("Balance payment for order #%d", order.ID),
					Category:    ledger.CategoryBalance,
					OccurredAt:  now,
				})
				if err != nil {
					return err
				}
				if err := tx.SetBalance(ctx, order.ID, txID, now); err != nil {
					return err
				}
				order.BalanceTransactionID = &txID
				order.BalancePaidAt = &now
			}
		} else if s.cfg.RecordFullPayment {
			_, err := tx.InsertLedger(ctx, ledger.Transaction{
				UserID:      ledgerOwner(order, actor),
				OrderID:     &order.ID,
				Type:        ledger.TypeIncome,
				Amount:      order.TotalPrice,
				Description: fmt.Sprintf("Full payment for order #%d", order.ID),
				Category:    ledger.CategorySale,
				OccurredAt:  now,
			})
			if err != nil {
				return err
			}
		}

		if err := tx.UpdateStatus(ctx, order.ID, StatusPaid); err != nil {
			return err
		}
		order.Status = StatusPaid
		order.Items = items
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order paid", slog.Int64("order_id", id))
	return out, nil
}

// Cancel flips a pending order to canceled. Pending orders hold no stock, so
// there is nothing to release.
func (s *Service) Cancel(ctx context.Context, id int64) (*Order, error) {
	var out *Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(order.Status, StatusCanceled) {
			return fmt.Errorf("%w: %w: order %d is %s", shared.ErrConflict, ErrInvalidTransition, id, order.Status)
		}
		if err := tx.UpdateStatus(ctx, order.ID, StatusCanceled); err != nil {
			return err
		}
		order.Status = StatusCanceled
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order canceled", slog.Int64("order_id", id))
	return out, nil
}

// RecordDeposit records a partial upfront payment against a pending order and
// writes the matching INCOME entry. Calling it again on an order that already
// has a deposit is a no-op returning the current state, so retried requests
// never double-book income.
func (s *Service) RecordDeposit(ctx context.Context, id int64, amount int64, actor shared.Identity) (*Order, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: deposit amount must be positive", shared.ErrValidation)
	}
	var out *Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.DepositTransactionID != nil {
			out = order
			return nil
		}
		if order.Status != StatusPending {
			return fmt.Errorf("%w: order %d is %s", shared.ErrConflict, id, order.Status)
		}
		if amount > order.TotalPrice {
			return fmt.Errorf("%w: deposit exceeds order total", shared.ErrValidation)
		}

		now := s.now()
		txID, err := tx.InsertLedger(ctx, ledger.Transaction{
			UserID:      ledgerOwner(order, actor),
			OrderID:     &order.ID,
			Type:        ledger.TypeIncome,
			Amount:      amount,
			Description: fmt.Sprintf("Deposit for order #%d", order.ID),
			Category:    ledger.CategoryDeposit,
			OccurredAt:  now,
		})
		if err != nil {
			return err
		}
		if err := tx.SetDeposit(ctx, order.ID, amount, txID, now); err != nil {
			return err
		}
		order.DepositAmount = &amount
		order.DepositTransactionID = &txID
		order.DepositPaidAt = &now
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("deposit recorded", slog.Int64("order_id", id), slog.Int64("amount", amount))
	return out, nil
}

// ledgerOwner picks who the automatic entry belongs to: the order's customer
// when known, otherwise the acting staff member.
func ledgerOwner(order *Order, actor shared.Identity) *int64 {
	if order.UserID != nil {
		return order.UserID
	}
	if actor.UserID != 0 {
		id := actor.UserID
		return &id
	}
	return nil
}

func itemTitle(line pricing.LineItem) string {
	if line.VariantName != "" {
		return line.Title + " (" + line.VariantName + ")"
	}
	return line.Title
}
