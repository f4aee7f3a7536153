package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/store"
	"stockroom/backend/internal/xid"
)

func (e *Engine) CreateLocation(ctx context.Context, req domain.LocationCreateRequest) (*domain.Location, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: location name is required", store.ErrInvalidInput)
	}
	kind := req.Type
	if kind == "" {
		kind = domain.LocationOther
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown location type %q", store.ErrInvalidInput, req.Type)
	}
	if req.Capacity != nil && *req.Capacity < 0 {
		return nil, fmt.Errorf("%w: capacity must not be negative", store.ErrInvalidInput)
	}

	loc := domain.Location{
		ID:        xid.New("loc"),
		Name:      name,
		Type:      kind,
		Capacity:  req.Capacity,
		Status:    domain.LocationActive,
		CreatedAt: e.timestamp(),
	}
	err := e.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertLocation(ctx, loc)
	})
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (e *Engine) ListLocations(ctx context.Context) ([]domain.Location, error) {
	return e.repo.ListLocations(ctx)
}

// SetLocationStatus toggles a location. Stock already held in an inactive
// location stays there and can still be moved or issued out.
func (e *Engine) SetLocationStatus(ctx context.Context, id string, status domain.LocationStatus) (*domain.Location, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown location status %q", store.ErrInvalidInput, status)
	}
	var out domain.Location
	err := e.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		loc, err := tx.LockLocation(ctx, id)
		if err != nil {
			return err
		}
		loc.Status = status
		if err := tx.UpdateLocation(ctx, *loc); err != nil {
			return err
		}
		out = *loc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *Engine) GetSplit(ctx context.Context, itemID string) ([]domain.ItemLocation, error) {
	if _, err := e.repo.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return e.repo.ListItemLocations(ctx, itemID)
}

// placeStock changes the quantity an item holds at one location. Positive
// deltas need an active location with room to spare. Only capacity-bound
// placements lock the location row; the item lock covers everything else.
func (e *Engine) placeStock(ctx context.Context, tx store.Tx, itemID string, locationID string, delta int) (domain.ItemLocation, error) {
	loc, err := tx.GetLocation(ctx, locationID)
	if err != nil {
		return domain.ItemLocation{}, err
	}
	if delta > 0 && loc.Capacity != nil {
		if loc, err = tx.LockLocation(ctx, locationID); err != nil {
			return domain.ItemLocation{}, err
		}
	}
	if delta > 0 {
		if loc.Status != domain.LocationActive {
			return domain.ItemLocation{}, fmt.Errorf("%w: %s", store.ErrInactiveLocation, loc.ID)
		}
		if loc.Capacity != nil {
			load, err := tx.LocationLoad(ctx, loc.ID)
			if err != nil {
				return domain.ItemLocation{}, err
			}
			if load+delta > *loc.Capacity {
				return domain.ItemLocation{}, fmt.Errorf("%w: %s holds %d of %d, adding %d", store.ErrCapacityExceeded, loc.ID, load, *loc.Capacity, delta)
			}
		}
	}

	split, err := tx.GetItemLocation(ctx, itemID, locationID)
	if errors.Is(err, store.ErrNotFound) {
		split = &domain.ItemLocation{ItemID: itemID, LocationID: locationID}
	} else if err != nil {
		return domain.ItemLocation{}, err
	}
	next := split.Quantity + delta
	if next < 0 {
		return domain.ItemLocation{}, fmt.Errorf("%w: item %s holds %d at %s, change %d", store.ErrNegativeStock, itemID, split.Quantity, locationID, delta)
	}
	split.Quantity = next
	split.UpdatedAt = e.timestamp()
	if split.Empty() {
		return *split, tx.DeleteItemLocation(ctx, itemID, locationID)
	}
	return *split, tx.SaveItemLocation(ctx, *split)
}

// MoveStock transfers quantity between two locations of one item. The item
// total does not change; the ledger gets an out and an in line sharing one
// reference.
func (e *Engine) MoveStock(ctx context.Context, req domain.MoveRequest) (*domain.MoveResult, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidInput)
	}
	if req.FromLocationID == "" || req.ToLocationID == "" {
		return nil, fmt.Errorf("%w: source and destination are required", store.ErrInvalidInput)
	}
	if req.FromLocationID == req.ToLocationID {
		return nil, fmt.Errorf("%w: source and destination must differ", store.ErrInvalidInput)
	}

	var out domain.MoveResult
	err := e.run(ctx, []string{req.ItemID}, func(ctx context.Context, tx store.Tx) error {
		item, err := tx.GetItem(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if !item.LocationTracked {
			return fmt.Errorf("%w: item %s is not location-tracked", store.ErrInvalidInput, item.ID)
		}
		held := 0
		if split, err := tx.GetItemLocation(ctx, item.ID, req.FromLocationID); err == nil {
			held = split.Quantity
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if req.Quantity > held {
			return fmt.Errorf("%w: item %s holds %d at %s, requested %d", store.ErrInsufficientStock, item.ID, held, req.FromLocationID, req.Quantity)
		}

		from, err := e.placeStock(ctx, tx, item.ID, req.FromLocationID, -req.Quantity)
		if err != nil {
			return err
		}
		to, err := e.placeStock(ctx, tx, item.ID, req.ToLocationID, req.Quantity)
		if err != nil {
			return err
		}

		reference := "move:" + xid.New("mv")
		now := e.timestamp()
		for _, entry := range []domain.StockTransaction{
			{LocationID: req.FromLocationID, Direction: domain.DirectionOut},
			{LocationID: req.ToLocationID, Direction: domain.DirectionIn},
		} {
			entry.ID = xid.New("stx")
			entry.ItemID = item.ID
			entry.Quantity = req.Quantity
			entry.PerformedBy = req.PerformedBy
			entry.Reference = reference
			entry.Note = req.Note
			entry.CreatedAt = now
			if err := tx.InsertTransaction(ctx, entry); err != nil {
				return err
			}
		}

		splits, err := tx.ListItemLocations(ctx, item.ID)
		if err != nil {
			return err
		}
		out = domain.MoveResult{Reference: reference, From: from, To: to, Splits: splits}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AssignBin sets or clears the bin code of an item at a location without
// touching quantities.
func (e *Engine) AssignBin(ctx context.Context, req domain.BinAssignRequest) (*domain.ItemLocation, error) {
	var out domain.ItemLocation
	err := e.run(ctx, []string{req.ItemID}, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetItem(ctx, req.ItemID); err != nil {
			return err
		}
		if _, err := tx.GetLocation(ctx, req.LocationID); err != nil {
			return err
		}
		split, err := tx.GetItemLocation(ctx, req.ItemID, req.LocationID)
		if errors.Is(err, store.ErrNotFound) {
			split = &domain.ItemLocation{ItemID: req.ItemID, LocationID: req.LocationID}
		} else if err != nil {
			return err
		}
		split.BinCode = strings.TrimSpace(req.BinCode)
		split.UpdatedAt = e.timestamp()
		out = *split
		if split.Empty() {
			return tx.DeleteItemLocation(ctx, req.ItemID, req.LocationID)
		}
		return tx.SaveItemLocation(ctx, *split)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
