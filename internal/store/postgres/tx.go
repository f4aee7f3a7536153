package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/store"
)

type txStore struct {
	queries
}

var _ store.Tx = (*txStore)(nil)

func (t *txStore) GetItemLocation(ctx context.Context, itemID string, locationID string) (*domain.ItemLocation, error) {
	var split domain.ItemLocation
	err := sqlx.GetContext(ctx, t.q, &split, `
		SELECT `+splitColumns+`
		FROM item_locations
		WHERE item_id = $1 AND location_id = $2
		FOR UPDATE NOWAIT
	`, itemID, locationID)
	if err != nil {
		return nil, mapError(err)
	}
	return &split, nil
}

func (t *txStore) LockLocation(ctx context.Context, id string) (*domain.Location, error) {
	var loc domain.Location
	err := sqlx.GetContext(ctx, t.q, &loc, `SELECT `+locationColumns+` FROM locations WHERE id = $1 FOR UPDATE NOWAIT`, id)
	if err != nil {
		return nil, notFound(err, "location", id)
	}
	return &loc, nil
}

// LocationLoad sums every item held at a location. Callers lock the location
// row first so concurrent placements cannot both pass a capacity check.
func (t *txStore) LocationLoad(ctx context.Context, locationID string) (int, error) {
	var total int
	err := sqlx.GetContext(ctx, t.q, &total, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM item_locations
		WHERE location_id = $1
	`, locationID)
	return total, mapError(err)
}

func (t *txStore) InsertItem(ctx context.Context, item domain.Item) error {
	_, err := sqlx.NamedExecContext(ctx, t.q, `
		INSERT INTO items (`+itemColumns+`)
		VALUES (:id, :name, :sku, :quantity, :quantity_reserved, :unit_price, :location_tracked, :retired, :created_by, :created_at, :updated_at)
	`, item)
	return mapError(err)
}

func (t *txStore) UpdateItem(ctx context.Context, item domain.Item) error {
	res, err := sqlx.NamedExecContext(ctx, t.q, `
		UPDATE items
		SET name = :name, sku = :sku, quantity = :quantity, quantity_reserved = :quantity_reserved,
			unit_price = :unit_price, location_tracked = :location_tracked, retired = :retired, updated_at = :updated_at
		WHERE id = :id
	`, item)
	return affected(res, err, "item", item.ID)
}

func (t *txStore) InsertLocation(ctx context.Context, location domain.Location) error {
	_, err := sqlx.NamedExecContext(ctx, t.q, `
		INSERT INTO locations (`+locationColumns+`)
		VALUES (:id, :name, :type, :capacity, :status, :created_at)
	`, location)
	return mapError(err)
}

func (t *txStore) UpdateLocation(ctx context.Context, location domain.Location) error {
	res, err := sqlx.NamedExecContext(ctx, t.q, `
		UPDATE locations
		SET name = :name, type = :type, capacity = :capacity, status = :status
		WHERE id = :id
	`, location)
	return affected(res, err, "location", location.ID)
}

func (t *txStore) SaveItemLocation(ctx context.Context, split domain.ItemLocation) error {
	_, err := sqlx.NamedExecContext(ctx, t.q, `
		INSERT INTO item_locations (`+splitColumns+`)
		VALUES (:item_id, :location_id, :quantity, :bin_code, :updated_at)
		ON CONFLICT (item_id, location_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, bin_code = EXCLUDED.bin_code, updated_at = EXCLUDED.updated_at
	`, split)
	return mapError(err)
}

func (t *txStore) DeleteItemLocation(ctx context.Context, itemID string, locationID string) error {
	_, err := t.q.ExecContext(ctx, `DELETE FROM item_locations WHERE item_id = $1 AND location_id = $2`, itemID, locationID)
	return mapError(err)
}

func (t *txStore) InsertSupplier(ctx context.Context, supplier domain.Supplier) error {
	_, err := sqlx.NamedExecContext(ctx, t.q, `
		INSERT INTO suppliers (id, name, phone, created_at)
		VALUES (:id, :name, :phone, :created_at)
	`, supplier)
	return mapError(err)
}

func (t *txStore) InsertStockIn(ctx context.Context, doc domain.StockIn) error {
	_, err := sqlx.NamedExecContext(ctx, t.q, `
		INSERT INTO stock_ins (
			id, supplier_id, reference_number, purchase_order_id, status, note,
			created_by, received_by, cancelled_by, created_at, received_at, cancelled_at
		)
		VALUES (
			:id, NULLIF(:supplier_id, ''), NULLIF(:reference_number, ''), NULLIF(:purchase_order_id, ''), :status, :note,
			:created_by, :received_by, :cancelled_by, :created_at, :received_at, :cancelled_at
		)
	`, doc)
	if err != nil {
		return mapError(err)
	}
	for _, line := range doc.Details {
		_, err := sqlx.NamedExecContext(ctx, t.q, `
			INSERT INTO stock_details (id, stock_in_id, item_id, quantity, unit_cost, expiry_date, location_id)
			VALUES (:id, :stock_in_id, :item_id, :quantity, :unit_cost, :expiry_date, NULLIF(:location_id, ''))
		`, line)
		if err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (t *txStore) UpdateStockIn(ctx context.Context, doc domain.StockIn) error {
	res, err := sqlx.NamedExecContext(ctx, t.q, `
		UPDATE stock_ins
		SET status = :status, note = :note, received_by = :received_by, received_at = :received_at,
			cancelled_by = :cancelled_by, cancelled_at = :cancelled_at
		WHERE id = :id
	`, doc)
	return affected(res, err, "stock-in", doc.ID)
}

func (t *txStore) DeleteStockIn(ctx context.Context, id string) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM stock_ins WHERE id = $1`, id)
	return affected(res, err, "stock-in", id)
}

func (t *txStore) InsertTransaction(ctx context.Context, entry domain.StockTransaction) error {
	_, err := sqlx.NamedExecContext(ctx, t.q, `
		INSERT INTO stock_transactions (id, item_id, location_id, direction, quantity, performed_by, reference, note, created_at)
		VALUES (:id, :item_id, NULLIF(:location_id, ''), :direction, :quantity, :performed_by, :reference, :note, :created_at)
	`, entry)
	return mapError(err)
}

func (t *txStore) InsertAdjustment(ctx context.Context, entry domain.StockAdjustment) error {
	_, err := sqlx.NamedExecContext(ctx, t.q, `
		INSERT INTO stock_adjustments (id, item_id, location_id, type, delta, reason, reference_number, adjusted_by, created_at)
		VALUES (:id, :item_id, NULLIF(:location_id, ''), :type, :delta, :reason, :reference_number, :adjusted_by, :created_at)
	`, entry)
	return mapError(err)
}

func (t *txStore) InsertPurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error {
	_, err := sqlx.NamedExecContext(ctx, t.q, `
		INSERT INTO purchase_orders (`+poColumns+`)
		VALUES (:id, :supplier_id, :po_number, :order_date, :expected_date, :status, :total_amount, :created_by, :created_at, :updated_at)
	`, po)
	if err != nil {
		return mapError(err)
	}
	for _, line := range po.Items {
		_, err := sqlx.NamedExecContext(ctx, t.q, `
			INSERT INTO purchase_order_items (`+poItemColumns+`)
			VALUES (:id, :purchase_order_id, :item_id, :quantity_ordered, :quantity_received, :unit_price, :line_total)
		`, line)
		if err != nil {
			return mapError(err)
		}
	}
	return nil
}

// UpdatePurchaseOrder persists status and per-line received quantities.
// Ordered quantities and prices are fixed at creation.
func (t *txStore) UpdatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error {
	res, err := sqlx.NamedExecContext(ctx, t.q, `
		UPDATE purchase_orders
		SET status = :status, expected_date = :expected_date, updated_at = :updated_at
		WHERE id = :id
	`, po)
	if err := affected(res, err, "purchase order", po.ID); err != nil {
		return err
	}
	for _, line := range po.Items {
		_, err := t.q.ExecContext(ctx, `
			UPDATE purchase_order_items
			SET quantity_received = $1
			WHERE id = $2 AND purchase_order_id = $3
		`, line.QuantityReceived, line.ID, po.ID)
		if err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (t *txStore) InsertPurchaseOrderStatusChange(ctx context.Context, change domain.PurchaseOrderStatusChange) error {
	_, err := sqlx.NamedExecContext(ctx, t.q, `
		INSERT INTO purchase_order_status_changes (id, purchase_order_id, from_status, to_status, changed_by, changed_at)
		VALUES (:id, :purchase_order_id, :from_status, :to_status, :changed_by, :changed_at)
	`, change)
	return mapError(err)
}

func (t *txStore) InsertRequest(ctx context.Context, request domain.Request) error {
	_, err := sqlx.NamedExecContext(ctx, t.q, `
		INSERT INTO requests (
			id, kind, item_id, location_id, requested_by, department_id, quantity_requested, quantity_approved,
			quantity_issued, status, reason, rejection_reason, processed_by, processed_at, confirmed_by, confirmed_at,
			closed_by, closed_at, close_reason, created_at
		)
		VALUES (
			:id, :kind, :item_id, NULLIF(:location_id, ''), :requested_by, :department_id, :quantity_requested, :quantity_approved,
			:quantity_issued, :status, :reason, :rejection_reason, :processed_by, :processed_at, :confirmed_by, :confirmed_at,
			:closed_by, :closed_at, :close_reason, :created_at
		)
	`, request)
	return mapError(err)
}

func (t *txStore) UpdateRequest(ctx context.Context, request domain.Request) error {
	res, err := sqlx.NamedExecContext(ctx, t.q, `
		UPDATE requests
		SET status = :status, quantity_approved = :quantity_approved, quantity_issued = :quantity_issued,
			rejection_reason = :rejection_reason, processed_by = :processed_by, processed_at = :processed_at,
			confirmed_by = :confirmed_by, confirmed_at = :confirmed_at,
			closed_by = :closed_by, closed_at = :closed_at, close_reason = :close_reason
		WHERE id = :id
	`, request)
	return affected(res, err, "request", request.ID)
}

func affected(res sql.Result, err error, kind string, id string) error {
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return nil
}
