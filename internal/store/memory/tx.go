package memory

import (
	"context"
	"fmt"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/store"
)

// tx writes straight into the shared state and journals an undo step for
// every write. Atomic replays the journal backwards when fn fails.
type tx struct {
	*state
	undo []func()
}

var _ store.Tx = (*tx)(nil)

// LockLocation is a plain read: Atomic already holds the store's write lock.
func (t *tx) LockLocation(ctx context.Context, id string) (*domain.Location, error) {
	return t.GetLocation(ctx, id)
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func remember[K comparable, V any](t *tx, m map[K]V, key K) {
	prev, existed := m[key]
	t.undo = append(t.undo, func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
}

func (t *tx) InsertItem(_ context.Context, item domain.Item) error {
	if _, ok := t.items[item.ID]; ok {
		return fmt.Errorf("item %s: %w", item.ID, store.ErrDuplicate)
	}
	remember(t, t.items, item.ID)
	t.items[item.ID] = item
	return nil
}

func (t *tx) UpdateItem(_ context.Context, item domain.Item) error {
	if _, ok := t.items[item.ID]; !ok {
		return fmt.Errorf("item %s: %w", item.ID, store.ErrNotFound)
	}
	remember(t, t.items, item.ID)
	t.items[item.ID] = item
	return nil
}

func (t *tx) InsertLocation(_ context.Context, location domain.Location) error {
	if _, ok := t.locations[location.ID]; ok {
		return fmt.Errorf("location %s: %w", location.ID, store.ErrDuplicate)
	}
	remember(t, t.locations, location.ID)
	t.locations[location.ID] = cloneLocation(location)
	return nil
}

func (t *tx) UpdateLocation(_ context.Context, location domain.Location) error {
	if _, ok := t.locations[location.ID]; !ok {
		return fmt.Errorf("location %s: %w", location.ID, store.ErrNotFound)
	}
	remember(t, t.locations, location.ID)
	t.locations[location.ID] = cloneLocation(location)
	return nil
}

func (t *tx) SaveItemLocation(_ context.Context, split domain.ItemLocation) error {
	key := splitKey{split.ItemID, split.LocationID}
	remember(t, t.splits, key)
	t.splits[key] = split
	return nil
}

func (t *tx) DeleteItemLocation(_ context.Context, itemID string, locationID string) error {
	key := splitKey{itemID, locationID}
	if _, ok := t.splits[key]; !ok {
		return nil
	}
	remember(t, t.splits, key)
	delete(t.splits, key)
	return nil
}

func (t *tx) InsertSupplier(_ context.Context, supplier domain.Supplier) error {
	if _, ok := t.suppliers[supplier.ID]; ok {
		return fmt.Errorf("supplier %s: %w", supplier.ID, store.ErrDuplicate)
	}
	remember(t, t.suppliers, supplier.ID)
	t.suppliers[supplier.ID] = supplier
	return nil
}

func (t *tx) InsertStockIn(_ context.Context, doc domain.StockIn) error {
	if _, ok := t.stockIns[doc.ID]; ok {
		return fmt.Errorf("stock-in %s: %w", doc.ID, store.ErrDuplicate)
	}
	if doc.ReferenceNumber != "" {
		if _, taken := t.stockInRefs[doc.ReferenceNumber]; taken {
			return fmt.Errorf("stock-in reference %s: %w", doc.ReferenceNumber, store.ErrDuplicate)
		}
		remember(t, t.stockInRefs, doc.ReferenceNumber)
		t.stockInRefs[doc.ReferenceNumber] = doc.ID
	}
	remember(t, t.stockIns, doc.ID)
	t.stockIns[doc.ID] = cloneStockIn(doc)
	return nil
}

// UpdateStockIn persists header changes. Detail lines are immutable once inserted.
func (t *tx) UpdateStockIn(_ context.Context, doc domain.StockIn) error {
	current, ok := t.stockIns[doc.ID]
	if !ok {
		return fmt.Errorf("stock-in %s: %w", doc.ID, store.ErrNotFound)
	}
	doc.Details = current.Details
	doc.ReferenceNumber = current.ReferenceNumber
	remember(t, t.stockIns, doc.ID)
	t.stockIns[doc.ID] = doc
	return nil
}

func (t *tx) DeleteStockIn(_ context.Context, id string) error {
	doc, ok := t.stockIns[id]
	if !ok {
		return fmt.Errorf("stock-in %s: %w", id, store.ErrNotFound)
	}
	if doc.ReferenceNumber != "" {
		remember(t, t.stockInRefs, doc.ReferenceNumber)
		delete(t.stockInRefs, doc.ReferenceNumber)
	}
	remember(t, t.stockIns, id)
	delete(t.stockIns, id)
	return nil
}

func (t *tx) InsertTransaction(_ context.Context, entry domain.StockTransaction) error {
	n := len(t.transactions)
	t.undo = append(t.undo, func() { t.transactions = t.transactions[:n] })
	t.transactions = append(t.transactions, entry)
	return nil
}

func (t *tx) InsertAdjustment(_ context.Context, entry domain.StockAdjustment) error {
	n := len(t.adjustments)
	t.undo = append(t.undo, func() { t.adjustments = t.adjustments[:n] })
	t.adjustments = append(t.adjustments, entry)
	return nil
}

func (t *tx) InsertPurchaseOrder(_ context.Context, po domain.PurchaseOrder) error {
	if _, ok := t.purchaseOrders[po.ID]; ok {
		return fmt.Errorf("purchase order %s: %w", po.ID, store.ErrDuplicate)
	}
	if _, taken := t.poNumbers[po.PONumber]; taken {
		return fmt.Errorf("po number %s: %w", po.PONumber, store.ErrDuplicate)
	}
	remember(t, t.poNumbers, po.PONumber)
	t.poNumbers[po.PONumber] = po.ID
	remember(t, t.purchaseOrders, po.ID)
	t.purchaseOrders[po.ID] = clonePurchaseOrder(po)
	return nil
}

func (t *tx) UpdatePurchaseOrder(_ context.Context, po domain.PurchaseOrder) error {
	current, ok := t.purchaseOrders[po.ID]
	if !ok {
		return fmt.Errorf("purchase order %s: %w", po.ID, store.ErrNotFound)
	}
	po.PONumber = current.PONumber
	remember(t, t.purchaseOrders, po.ID)
	t.purchaseOrders[po.ID] = clonePurchaseOrder(po)
	return nil
}

func (t *tx) InsertPurchaseOrderStatusChange(_ context.Context, change domain.PurchaseOrderStatusChange) error {
	n := len(t.poChanges)
	t.undo = append(t.undo, func() { t.poChanges = t.poChanges[:n] })
	t.poChanges = append(t.poChanges, change)
	return nil
}

func (t *tx) InsertRequest(_ context.Context, request domain.Request) error {
	if _, ok := t.requests[request.ID]; ok {
		return fmt.Errorf("request %s: %w", request.ID, store.ErrDuplicate)
	}
	remember(t, t.requests, request.ID)
	t.requests[request.ID] = request
	return nil
}

func (t *tx) UpdateRequest(_ context.Context, request domain.Request) error {
	if _, ok := t.requests[request.ID]; !ok {
		return fmt.Errorf("request %s: %w", request.ID, store.ErrNotFound)
	}
	remember(t, t.requests, request.ID)
	t.requests[request.ID] = request
	return nil
}
