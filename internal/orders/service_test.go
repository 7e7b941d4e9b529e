package orders

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kitarena/kitarena/internal/ledger"
	"github.com/kitarena/kitarena/internal/pricing"
	"github.com/kitarena/kitarena/internal/shared"
)

// memoryStore backs both the repository fake and the catalog port. Stock
// lives in one place so tests observe exactly what the paid transition does
// to it.
type memoryStore struct {
	orders   map[int64]*Order
	items    map[int64][]Item
	stock    map[int64]int
	ledger   []ledger.Transaction
	catalog  pricing.Snapshot
	nextID   int64
	nextTxID int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		orders:  make(map[int64]*Order),
		items:   make(map[int64][]Item),
		stock:   make(map[int64]int),
		catalog: pricing.Snapshot{Products: make(map[int64]pricing.ProductInfo)},
	}
}

func (s *memoryStore) addProduct(id int64, title string, basePrice int64, variants ...pricing.VariantInfo) {
	info := pricing.ProductInfo{ID: id, Title: title, BasePrice: basePrice, Variants: make(map[int64]pricing.VariantInfo)}
	for _, v := range variants {
		v.ProductID = id
		info.Variants[v.ID] = v
		s.stock[v.ID] = v.Stock
	}
	s.catalog.Products[id] = info
}

func (s *memoryStore) Snapshot(ctx context.Context, productIDs []int64) (pricing.Snapshot, error) {
	out := pricing.Snapshot{Products: make(map[int64]pricing.ProductInfo)}
	for _, id := range productIDs {
		info, ok := s.catalog.Products[id]
		if !ok {
			continue
		}
		copied := pricing.ProductInfo{ID: info.ID, Title: info.Title, BasePrice: info.BasePrice, Variants: make(map[int64]pricing.VariantInfo)}
		for vid, v := range info.Variants {
			v.Stock = s.stock[vid]
			copied.Variants[vid] = v
		}
		out.Products[id] = copied
	}
	return out, nil
}

func (s *memoryStore) snapshotState() *memoryStore {
	clone := newMemoryStore()
	clone.nextID = s.nextID
	clone.nextTxID = s.nextTxID
	for id, o := range s.orders {
		copied := *o
		clone.orders[id] = &copied
	}
	for id, items := range s.items {
		clone.items[id] = append([]Item(nil), items...)
	}
	for id, n := range s.stock {
		clone.stock[id] = n
	}
	clone.ledger = append([]ledger.Transaction(nil), s.ledger...)
	clone.catalog = s.catalog
	return clone
}

func (s *memoryStore) restore(from *memoryStore) {
	s.orders = from.orders
	s.items = from.items
	s.stock = from.stock
	s.ledger = from.ledger
	s.nextID = from.nextID
	s.nextTxID = from.nextTxID
}

// WithTx snapshots state up front and restores it when fn fails, matching
// database rollback semantics.
func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	saved := s.snapshotState()
	if err := fn(ctx, s); err != nil {
		s.restore(saved)
		return err
	}
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id int64) (*Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
	}
	copied := *o
	copied.Items = append([]Item(nil), s.items[id]...)
	return &copied, nil
}

func (s *memoryStore) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	var out []Order
	for _, o := range s.orders {
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (s *memoryStore) Insert(ctx context.Context, order Order) (int64, time.Time, error) {
	s.nextID++
	order.ID = s.nextID
	order.CreatedAt = time.Now()
	s.orders[order.ID] = &order
	return order.ID, order.CreatedAt, nil
}

func (s *memoryStore) InsertItem(ctx context.Context, item Item) (int64, error) {
	s.nextID++
	item.ID = s.nextID
	s.items[item.OrderID] = append(s.items[item.OrderID], item)
	return item.ID, nil
}

func (s *memoryStore) GetForUpdate(ctx context.Context, id int64) (*Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
	}
	copied := *o
	return &copied, nil
}

func (s *memoryStore) GetItems(ctx context.Context, orderID int64) ([]Item, error) {
	return append([]Item(nil), s.items[orderID]...), nil
}

func (s *memoryStore) UpdateStatus(ctx context.Context, id int64, status Status) error {
	o, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
	}
	o.Status = status
	return nil
}

func (s *memoryStore) SetDeposit(ctx context.Context, id int64, amount int64, transactionID int64, paidAt time.Time) error {
	o := s.orders[id]
	o.DepositAmount = &amount
	o.DepositTransactionID = &transactionID
	o.DepositPaidAt = &paidAt
	return nil
}

func (s *memoryStore) SetBalance(ctx context.Context, id int64, transactionID int64, paidAt time.Time) error {
	o := s.orders[id]
	o.BalanceTransactionID = &transactionID
	o.BalancePaidAt = &paidAt
	return nil
}

func (s *memoryStore) DecrementStock(ctx context.Context, variantID int64, qty int) (bool, error) {
	current, ok := s.stock[variantID]
	if !ok || current < qty {
		return false, nil
	}
	s.stock[variantID] = current - qty
	return true, nil
}

func (s *memoryStore) InsertLedger(ctx context.Context, tx ledger.Transaction) (int64, error) {
	s.nextTxID++
	tx.ID = s.nextTxID
	s.ledger = append(s.ledger, tx)
	return tx.ID, nil
}

func newTestService(store *memoryStore, cfg Config) *Service {
	engine := pricing.NewEngine(pricing.Surcharges{CustomName: 5000, CustomNumber: 5000, Patch: 3000})
	return NewService(store, store, engine, cfg, slog.Default())
}

func variantPtr(id int64) *int64 { return &id }

func adminActor() shared.Identity {
	return shared.Identity{UserID: 7, Role: shared.RoleAdmin}
}

func TestCreateDoesNotTouchStock(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Home Kit 2026", 150000, pricing.VariantInfo{ID: 10, Name: "M", Stock: 5})
	svc := newTestService(store, Config{RecordFullPayment: true})

	order, err := svc.Create(context.Background(), CreateOrderRequest{
		Name:    "Ana",
		Phone:   "555-0100",
		Address: "1 Main St",
		Items:   []CreateOrderItem{{ProductID: 1, VariantID: variantPtr(10), Quantity: 2}},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, StatusPending, order.Status)
	require.Equal(t, int64(300000), order.Subtotal)
	require.Equal(t, 5, store.stock[10])
	require.Empty(t, store.ledger)
	// The response carries the persisted creation time, not a second clock read.
	require.Equal(t, store.orders[order.ID].CreatedAt, order.CreatedAt)
}

func TestCreatePersistsNothingWhenOutOfStock(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Away Kit", 120000, pricing.VariantInfo{ID: 10, Name: "S", Stock: 1})
	svc := newTestService(store, Config{})

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		Name:    "Ben",
		Phone:   "555-0101",
		Address: "2 Side St",
		Items:   []CreateOrderItem{{ProductID: 1, VariantID: variantPtr(10), Quantity: 3}},
	}, nil)
	require.ErrorIs(t, err, pricing.ErrOutOfStock)
	require.Empty(t, store.orders)
	require.Empty(t, store.items)
}

func TestCreateRejectsVariantOfWrongProduct(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Home Kit", 150000, pricing.VariantInfo{ID: 10, Name: "M", Stock: 5})
	store.addProduct(2, "Away Kit", 120000, pricing.VariantInfo{ID: 20, Name: "M", Stock: 5})
	svc := newTestService(store, Config{})

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		Name:    "Cai",
		Phone:   "555-0102",
		Address: "3 Back St",
		Items:   []CreateOrderItem{{ProductID: 1, VariantID: variantPtr(20), Quantity: 1}},
	}, nil)
	require.ErrorIs(t, err, pricing.ErrProductMismatch)
	require.Empty(t, store.orders)
}

func TestMarkPaidDecrementsStock(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Home Kit", 150000, pricing.VariantInfo{ID: 10, Name: "M", Stock: 5})
	svc := newTestService(store, Config{RecordFullPayment: true})
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateOrderRequest{
		Name:    "Dee",
		Phone:   "555-0103",
		Address: "4 High St",
		Items:   []CreateOrderItem{{ProductID: 1, VariantID: variantPtr(10), Quantity: 2}},
	}, nil)
	require.NoError(t, err)

	paid, err := svc.MarkPaid(ctx, order.ID, adminActor())
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
	require.Equal(t, 3, store.stock[10])

	require.Len(t, store.ledger, 1)
	require.Equal(t, ledger.TypeIncome, store.ledger[0].Type)
	require.Equal(t, order.TotalPrice, store.ledger[0].Amount)
	require.Equal(t, ledger.CategorySale, store.ledger[0].Category)
	require.NotNil(t, store.ledger[0].OrderID)
}

func TestMarkPaidTwiceConflicts(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Home Kit", 150000, pricing.VariantInfo{ID: 10, Name: "M", Stock: 5})
	svc := newTestService(store, Config{RecordFullPayment: true})
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateOrderRequest{
		Name:    "Eli",
		Phone:   "555-0104",
		Address: "5 Low St",
		Items:   []CreateOrderItem{{ProductID: 1, VariantID: variantPtr(10), Quantity: 1}},
	}, nil)
	require.NoError(t, err)

	_, err = svc.MarkPaid(ctx, order.ID, adminActor())
	require.NoError(t, err)

	_, err = svc.MarkPaid(ctx, order.ID, adminActor())
	require.ErrorIs(t, err, shared.ErrConflict)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, 4, store.stock[10])
	require.Len(t, store.ledger, 1)
}

func TestMarkPaidLastUnitOnlyOneWins(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Limited Kit", 200000, pricing.VariantInfo{ID: 10, Name: "L", Stock: 1})
	svc := newTestService(store, Config{RecordFullPayment: true})
	ctx := context.Background()

	req := CreateOrderRequest{
		Name:    "Fin",
		Phone:   "555-0105",
		Address: "6 End St",
		Items:   []CreateOrderItem{{ProductID: 1, VariantID: variantPtr(10), Quantity: 1}},
	}
	first, err := svc.Create(ctx, req, nil)
	require.NoError(t, err)
	second, err := svc.Create(ctx, req, nil)
	require.NoError(t, err)

	_, err = svc.MarkPaid(ctx, first.ID, adminActor())
	require.NoError(t, err)

	_, err = svc.MarkPaid(ctx, second.ID, adminActor())
	require.ErrorIs(t, err, shared.ErrConflict)
	require.ErrorIs(t, err, pricing.ErrOutOfStock)

	require.Equal(t, 0, store.stock[10])
	require.Equal(t, StatusPending, store.orders[second.ID].Status)
	require.Len(t, store.ledger, 1)
}

func TestMarkPaidRollsBackPartialDecrement(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Home Kit", 150000,
		pricing.VariantInfo{ID: 10, Name: "M", Stock: 5},
		pricing.VariantInfo{ID: 11, Name: "L", Stock: 5})
	svc := newTestService(store, Config{RecordFullPayment: true})
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateOrderRequest{
		Name:    "Gus",
		Phone:   "555-0106",
		Address: "7 Mid St",
		Items: []CreateOrderItem{
			{ProductID: 1, VariantID: variantPtr(10), Quantity: 2},
			{ProductID: 1, VariantID: variantPtr(11), Quantity: 2},
		},
	}, nil)
	require.NoError(t, err)

	// Another sale drains the second variant before this order is paid.
	store.stock[11] = 1

	_, err = svc.MarkPaid(ctx, order.ID, adminActor())
	require.ErrorIs(t, err, pricing.ErrOutOfStock)
	require.Equal(t, 5, store.stock[10])
	require.Equal(t, 1, store.stock[11])
	require.Equal(t, StatusPending, store.orders[order.ID].Status)
	require.Empty(t, store.ledger)
}

func TestDepositThenBalanceLedger(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Third Kit", 50000, pricing.VariantInfo{ID: 10, Name: "M", Stock: 5})
	svc := newTestService(store, Config{RecordFullPayment: true})
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateOrderRequest{
		Name:    "Hana",
		Phone:   "555-0107",
		Address: "8 Top St",
		Items:   []CreateOrderItem{{ProductID: 1, VariantID: variantPtr(10), Quantity: 1}},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(50000), order.TotalPrice)

	actor := adminActor()
	withDeposit, err := svc.RecordDeposit(ctx, order.ID, 20000, actor)
	require.NoError(t, err)
	require.NotNil(t, withDeposit.DepositTransactionID)
	require.Len(t, store.ledger, 1)
	require.Equal(t, int64(20000), store.ledger[0].Amount)
	require.Equal(t, ledger.CategoryDeposit, store.ledger[0].Category)

	paid, err := svc.MarkPaid(ctx, order.ID, actor)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)

	require.Len(t, store.ledger, 2)
	require.Equal(t, int64(30000), store.ledger[1].Amount)
	require.Equal(t, ledger.CategoryBalance, store.ledger[1].Category)

	// The returned order reflects the balance stamps written in the same
	// transaction, so the transition response carries them.
	require.NotNil(t, paid.BalanceTransactionID)
	require.Equal(t, store.ledger[1].ID, *paid.BalanceTransactionID)
	require.NotNil(t, paid.BalancePaidAt)

	var total int64
	for _, tx := range store.ledger {
		total += tx.Amount
	}
	require.Equal(t, order.TotalPrice, total)
}

func TestRecordDepositIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Home Kit", 150000, pricing.VariantInfo{ID: 10, Name: "M", Stock: 5})
	svc := newTestService(store, Config{})
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateOrderRequest{
		Name:    "Ivo",
		Phone:   "555-0108",
		Address: "9 New St",
		Items:   []CreateOrderItem{{ProductID: 1, VariantID: variantPtr(10), Quantity: 1}},
	}, nil)
	require.NoError(t, err)

	actor := adminActor()
	first, err := svc.RecordDeposit(ctx, order.ID, 50000, actor)
	require.NoError(t, err)

	second, err := svc.RecordDeposit(ctx, order.ID, 99000, actor)
	require.NoError(t, err)
	require.Equal(t, *first.DepositTransactionID, *second.DepositTransactionID)
	require.Equal(t, int64(50000), *second.DepositAmount)
	require.Len(t, store.ledger, 1)
}

func TestRecordDepositRejectsOverTotal(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Home Kit", 50000, pricing.VariantInfo{ID: 10, Name: "M", Stock: 5})
	svc := newTestService(store, Config{})
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateOrderRequest{
		Name:    "Jae",
		Phone:   "555-0109",
		Address: "10 Old St",
		Items:   []CreateOrderItem{{ProductID: 1, VariantID: variantPtr(10), Quantity: 1}},
	}, nil)
	require.NoError(t, err)

	_, err = svc.RecordDeposit(ctx, order.ID, 60000, adminActor())
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, store.ledger)
}

func TestCancelPendingOrder(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Home Kit", 150000, pricing.VariantInfo{ID: 10, Name: "M", Stock: 5})
	svc := newTestService(store, Config{})
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateOrderRequest{
		Name:    "Kim",
		Phone:   "555-0110",
		Address: "11 Park St",
		Items:   []CreateOrderItem{{ProductID: 1, VariantID: variantPtr(10), Quantity: 2}},
	}, nil)
	require.NoError(t, err)

	canceled, err := svc.Cancel(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, canceled.Status)
	require.Equal(t, 5, store.stock[10])

	_, err = svc.MarkPaid(ctx, order.ID, adminActor())
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestMarkPaidWithoutFullPaymentEntry(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Home Kit", 150000, pricing.VariantInfo{ID: 10, Name: "M", Stock: 5})
	svc := newTestService(store, Config{RecordFullPayment: false})
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateOrderRequest{
		Name:    "Lou",
		Phone:   "555-0111",
		Address: "12 River St",
		Items:   []CreateOrderItem{{ProductID: 1, VariantID: variantPtr(10), Quantity: 1}},
	}, nil)
	require.NoError(t, err)

	_, err = svc.MarkPaid(ctx, order.ID, adminActor())
	require.NoError(t, err)
	require.Empty(t, store.ledger)
	require.Equal(t, 4, store.stock[10])
}

func TestCustomizationSurchargesAppliedOncePerOrder(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Home Kit", 150000, pricing.VariantInfo{ID: 10, Name: "M", Stock: 5})
	svc := newTestService(store, Config{})

	name := "RAMOS"
	number := 4
	order, err := svc.Create(context.Background(), CreateOrderRequest{
		Name:         "Mia",
		Phone:        "555-0112",
		Address:      "13 Lake St",
		Items:        []CreateOrderItem{{ProductID: 1, VariantID: variantPtr(10), Quantity: 3}},
		CustomName:   &name,
		CustomNumber: &number,
		HasPatch:     true,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(450000), order.Subtotal)
	require.Equal(t, int64(450000+5000+5000+3000), order.TotalPrice)
}
