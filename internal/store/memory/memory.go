package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/store"
)

type splitKey struct {
	itemID     string
	locationID string
}

type state struct {
	items          map[string]domain.Item
	locations      map[string]domain.Location
	splits         map[splitKey]domain.ItemLocation
	suppliers      map[string]domain.Supplier
	stockIns       map[string]domain.StockIn
	stockInRefs    map[string]string
	purchaseOrders map[string]domain.PurchaseOrder
	poNumbers      map[string]string
	poChanges      []domain.PurchaseOrderStatusChange
	requests       map[string]domain.Request
	transactions   []domain.StockTransaction
	adjustments    []domain.StockAdjustment
	users          map[string]domain.UserAccount
}

// Store keeps everything in process memory. Writers are serialized by mu for
// the whole of an Atomic call, so a transaction never observes another one
// half-applied.
type Store struct {
	mu   sync.RWMutex
	data *state
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{data: &state{
		items:          make(map[string]domain.Item),
		locations:      make(map[string]domain.Location),
		splits:         make(map[splitKey]domain.ItemLocation),
		suppliers:      make(map[string]domain.Supplier),
		stockIns:       make(map[string]domain.StockIn),
		stockInRefs:    make(map[string]string),
		purchaseOrders: make(map[string]domain.PurchaseOrder),
		poNumbers:      make(map[string]string),
		poChanges:      make([]domain.PurchaseOrderStatusChange, 0, 32),
		requests:       make(map[string]domain.Request),
		transactions:   make([]domain.StockTransaction, 0, 128),
		adjustments:    make([]domain.StockAdjustment, 0, 32),
		users:          make(map[string]domain.UserAccount),
	}}
}

// NewSeeded returns a store with demo accounts and locations for dev mode.
// Passwords come from SEED_ADMIN_PASSWORD, SEED_MANAGER_PASSWORD and
// SEED_EMPLOYEE_PASSWORD; dev defaults are used when unset.
func NewSeeded() (*Store, error) {
	s := New()
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_MANAGER_PASSWORD") == "" || os.Getenv("SEED_EMPLOYEE_PASSWORD") == "" {
		zap.L().Warn("memory store using default dev credentials")
	}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", envOr("SEED_ADMIN_PASSWORD", "admin123"), domain.RoleAdmin},
		{"keeper", envOr("SEED_MANAGER_PASSWORD", "keeper123"), domain.RoleStockManager},
		{"staff", envOr("SEED_EMPLOYEE_PASSWORD", "staff123"), domain.RoleEmployee},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %s: %w", u.username, err)
		}
		s.data.users[u.username] = domain.UserAccount{
			Username:     u.username,
			PasswordHash: string(hash),
			Role:         u.role,
			Active:       true,
		}
	}

	now := time.Now().UTC()
	for _, loc := range []domain.Location{
		{ID: "loc-main-warehouse", Name: "Main Warehouse", Type: domain.LocationWarehouse, Status: domain.LocationActive, CreatedAt: now},
		{ID: "loc-store-room", Name: "Store Room", Type: domain.LocationStoreRoom, Status: domain.LocationActive, CreatedAt: now},
	} {
		s.data.locations[loc.ID] = loc
	}
	return s, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{state: s.data}
	defer func() {
		if r := recover(); r != nil {
			t.rollback()
			panic(r)
		}
	}()
	if err := fn(ctx, t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.GetItem(ctx, id)
}

func (s *Store) ListItems(ctx context.Context, includeRetired bool) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ListItems(ctx, includeRetired)
}

func (s *Store) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.GetLocation(ctx, id)
}

func (s *Store) ListLocations(ctx context.Context) ([]domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ListLocations(ctx)
}

func (s *Store) ListItemLocations(ctx context.Context, itemID string) ([]domain.ItemLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ListItemLocations(ctx, itemID)
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.GetSupplier(ctx, id)
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ListSuppliers(ctx)
}

func (s *Store) GetStockIn(ctx context.Context, id string) (*domain.StockIn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.GetStockIn(ctx, id)
}

func (s *Store) ListStockIns(ctx context.Context, status domain.DocumentStatus, limit int) ([]domain.StockIn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ListStockIns(ctx, status, limit)
}

func (s *Store) GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.GetPurchaseOrder(ctx, id)
}

func (s *Store) ListPurchaseOrders(ctx context.Context, status domain.POStatus, limit int) ([]domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ListPurchaseOrders(ctx, status, limit)
}

func (s *Store) ListPurchaseOrderStatusChanges(ctx context.Context, purchaseOrderID string) ([]domain.PurchaseOrderStatusChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ListPurchaseOrderStatusChanges(ctx, purchaseOrderID)
}

func (s *Store) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.GetRequest(ctx, id)
}

func (s *Store) ListRequests(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ListRequests(ctx, filter)
}

func (s *Store) ListTransactions(ctx context.Context, filter domain.MovementFilter) ([]domain.StockTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ListTransactions(ctx, filter)
}

func (s *Store) ListAdjustments(ctx context.Context, filter domain.MovementFilter) ([]domain.StockAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ListAdjustments(ctx, filter)
}

func (s *Store) GetUserAccount(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.data.users[strings.TrimSpace(username)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &account, nil
}

func (s *Store) SaveUserAccount(_ context.Context, account domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[account.Username] = account
	return nil
}

// Reads. These run either under the store's read lock or inside Atomic.

func (st *state) GetItem(_ context.Context, id string) (*domain.Item, error) {
	item, ok := st.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	return &item, nil
}

func (st *state) ListItems(_ context.Context, includeRetired bool) ([]domain.Item, error) {
	out := make([]domain.Item, 0, len(st.items))
	for _, item := range st.items {
		if item.Retired && !includeRetired {
			continue
		}
		out = append(out, item)
	}
	slices.SortFunc(out, func(a, b domain.Item) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (st *state) GetLocation(_ context.Context, id string) (*domain.Location, error) {
	loc, ok := st.locations[id]
	if !ok {
		return nil, fmt.Errorf("location %s: %w", id, store.ErrNotFound)
	}
	loc = cloneLocation(loc)
	return &loc, nil
}

func (st *state) ListLocations(_ context.Context) ([]domain.Location, error) {
	out := make([]domain.Location, 0, len(st.locations))
	for _, loc := range st.locations {
		out = append(out, cloneLocation(loc))
	}
	slices.SortFunc(out, func(a, b domain.Location) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (st *state) ListItemLocations(_ context.Context, itemID string) ([]domain.ItemLocation, error) {
	out := make([]domain.ItemLocation, 0, 4)
	for key, split := range st.splits {
		if key.itemID == itemID {
			out = append(out, split)
		}
	}
	slices.SortFunc(out, func(a, b domain.ItemLocation) int { return strings.Compare(a.LocationID, b.LocationID) })
	return out, nil
}

func (st *state) GetItemLocation(_ context.Context, itemID string, locationID string) (*domain.ItemLocation, error) {
	split, ok := st.splits[splitKey{itemID, locationID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &split, nil
}

func (st *state) LocationLoad(_ context.Context, locationID string) (int, error) {
	total := 0
	for key, split := range st.splits {
		if key.locationID == locationID {
			total += split.Quantity
		}
	}
	return total, nil
}

func (st *state) GetSupplier(_ context.Context, id string) (*domain.Supplier, error) {
	supplier, ok := st.suppliers[id]
	if !ok {
		return nil, fmt.Errorf("supplier %s: %w", id, store.ErrNotFound)
	}
	return &supplier, nil
}

func (st *state) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	out := make([]domain.Supplier, 0, len(st.suppliers))
	for _, supplier := range st.suppliers {
		out = append(out, supplier)
	}
	slices.SortFunc(out, func(a, b domain.Supplier) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (st *state) GetStockIn(_ context.Context, id string) (*domain.StockIn, error) {
	doc, ok := st.stockIns[id]
	if !ok {
		return nil, fmt.Errorf("stock-in %s: %w", id, store.ErrNotFound)
	}
	doc = cloneStockIn(doc)
	return &doc, nil
}

func (st *state) ListStockIns(_ context.Context, status domain.DocumentStatus, limit int) ([]domain.StockIn, error) {
	out := make([]domain.StockIn, 0, len(st.stockIns))
	for _, doc := range st.stockIns {
		if status != "" && doc.Status != status {
			continue
		}
		out = append(out, cloneStockIn(doc))
	}
	slices.SortFunc(out, func(a, b domain.StockIn) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return truncate(out, limit), nil
}

func (st *state) GetPurchaseOrder(_ context.Context, id string) (*domain.PurchaseOrder, error) {
	po, ok := st.purchaseOrders[id]
	if !ok {
		return nil, fmt.Errorf("purchase order %s: %w", id, store.ErrNotFound)
	}
	po = clonePurchaseOrder(po)
	return &po, nil
}

func (st *state) ListPurchaseOrders(_ context.Context, status domain.POStatus, limit int) ([]domain.PurchaseOrder, error) {
	out := make([]domain.PurchaseOrder, 0, len(st.purchaseOrders))
	for _, po := range st.purchaseOrders {
		if status != "" && po.Status != status {
			continue
		}
		out = append(out, clonePurchaseOrder(po))
	}
	slices.SortFunc(out, func(a, b domain.PurchaseOrder) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return truncate(out, limit), nil
}

func (st *state) ListPurchaseOrderStatusChanges(_ context.Context, purchaseOrderID string) ([]domain.PurchaseOrderStatusChange, error) {
	out := make([]domain.PurchaseOrderStatusChange, 0, 4)
	for _, change := range st.poChanges {
		if change.PurchaseOrderID == purchaseOrderID {
			out = append(out, change)
		}
	}
	return out, nil
}

func (st *state) GetRequest(_ context.Context, id string) (*domain.Request, error) {
	req, ok := st.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, store.ErrNotFound)
	}
	return &req, nil
}

func (st *state) ListRequests(_ context.Context, filter domain.RequestFilter) ([]domain.Request, error) {
	out := make([]domain.Request, 0, len(st.requests))
	for _, req := range st.requests {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && req.Kind != filter.Kind {
			continue
		}
		if filter.RequestedBy != "" && req.RequestedBy != filter.RequestedBy {
			continue
		}
		out = append(out, req)
	}
	slices.SortFunc(out, func(a, b domain.Request) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return truncate(out, filter.Limit), nil
}

func (st *state) ListTransactions(_ context.Context, filter domain.MovementFilter) ([]domain.StockTransaction, error) {
	out := make([]domain.StockTransaction, 0, 16)
	for i := len(st.transactions) - 1; i >= 0; i-- {
		entry := st.transactions[i]
		if !matchMovement(filter, entry.ItemID, entry.PerformedBy, entry.CreatedAt) {
			continue
		}
		out = append(out, entry)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (st *state) ListAdjustments(_ context.Context, filter domain.MovementFilter) ([]domain.StockAdjustment, error) {
	out := make([]domain.StockAdjustment, 0, 16)
	for i := len(st.adjustments) - 1; i >= 0; i-- {
		entry := st.adjustments[i]
		if !matchMovement(filter, entry.ItemID, entry.AdjustedBy, entry.CreatedAt) {
			continue
		}
		out = append(out, entry)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func matchMovement(filter domain.MovementFilter, itemID string, actor string, at time.Time) bool {
	if filter.ItemID != "" && itemID != filter.ItemID {
		return false
	}
	if filter.PerformedBy != "" && actor != filter.PerformedBy {
		return false
	}
	if filter.From != nil && at.Before(*filter.From) {
		return false
	}
	if filter.To != nil && !at.Before(*filter.To) {
		return false
	}
	return true
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func cloneLocation(src domain.Location) domain.Location {
	if src.Capacity != nil {
		capacity := *src.Capacity
		src.Capacity = &capacity
	}
	return src
}

func cloneStockIn(src domain.StockIn) domain.StockIn {
	src.Details = slices.Clone(src.Details)
	return src
}

func clonePurchaseOrder(src domain.PurchaseOrder) domain.PurchaseOrder {
	src.Items = slices.Clone(src.Items)
	return src
}
