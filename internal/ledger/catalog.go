package ledger

import (
	"context"
	"fmt"
	"strings"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/store"
	"stockroom/backend/internal/xid"
)

func (e *Engine) CreateItem(ctx context.Context, req domain.ItemCreateRequest) (*domain.Item, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: item name is required", store.ErrInvalidInput)
	}
	if req.UnitPrice.Valid && req.UnitPrice.Decimal.IsNegative() {
		return nil, fmt.Errorf("%w: unit price must not be negative", store.ErrInvalidInput)
	}
	tracked := true
	if req.LocationTracked != nil {
		tracked = *req.LocationTracked
	}

	now := e.timestamp()
	item := domain.Item{
		ID:              xid.New("item"),
		Name:            name,
		SKU:             strings.ToUpper(strings.TrimSpace(req.SKU)),
		UnitPrice:       req.UnitPrice,
		LocationTracked: tracked,
		CreatedBy:       req.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := e.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (e *Engine) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	return e.repo.GetItem(ctx, id)
}

func (e *Engine) ListItems(ctx context.Context, includeRetired bool) ([]domain.Item, error) {
	return e.repo.ListItems(ctx, includeRetired)
}

// RetireItem stops new stock from being booked against the item. Existing
// stock can still be issued or written off.
func (e *Engine) RetireItem(ctx context.Context, id string) (*domain.Item, error) {
	var out domain.Item
	err := e.run(ctx, []string{id}, func(ctx context.Context, tx store.Tx) error {
		item, err := tx.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if !item.Retired {
			item.Retired = true
			item.UpdatedAt = e.timestamp()
			if err := tx.UpdateItem(ctx, *item); err != nil {
				return err
			}
		}
		out = *item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// adjustOnHand is the only place an item's on-hand total changes.
func (e *Engine) adjustOnHand(ctx context.Context, tx store.Tx, item *domain.Item, delta int) error {
	next := item.Quantity + delta
	if next < 0 {
		return fmt.Errorf("%w: item %s holds %d, change %d", store.ErrNegativeStock, item.ID, item.Quantity, delta)
	}
	item.Quantity = next
	item.UpdatedAt = e.timestamp()
	return tx.UpdateItem(ctx, *item)
}

// applyMovement books delta against the item total and, for location-tracked
// items, against the split at locationID.
func (e *Engine) applyMovement(ctx context.Context, tx store.Tx, item *domain.Item, locationID string, delta int) error {
	if item.LocationTracked {
		if locationID == "" {
			return fmt.Errorf("%w: item %s is location-tracked, location is required", store.ErrInvalidInput, item.ID)
		}
		if _, err := e.placeStock(ctx, tx, item.ID, locationID, delta); err != nil {
			return err
		}
	} else if locationID != "" {
		if _, err := tx.GetLocation(ctx, locationID); err != nil {
			return err
		}
	}
	return e.adjustOnHand(ctx, tx, item, delta)
}
