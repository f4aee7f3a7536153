package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/store"
)

//go:embed schema.sql
var schema string

const (
	itemColumns = `id, name, sku, quantity, quantity_reserved, unit_price, location_tracked, retired, created_by, created_at, updated_at`

	locationColumns = `id, name, type, capacity, status, created_at`

	splitColumns = `item_id, location_id, quantity, bin_code, updated_at`

	stockInColumns = `id, COALESCE(supplier_id, '') AS supplier_id, COALESCE(reference_number, '') AS reference_number,
		COALESCE(purchase_order_id, '') AS purchase_order_id, status, note, created_by, received_by, cancelled_by,
		created_at, received_at, cancelled_at`

	stockDetailColumns = `id, stock_in_id, item_id, quantity, unit_cost, expiry_date, COALESCE(location_id, '') AS location_id`

	poColumns = `id, supplier_id, po_number, order_date, expected_date, status, total_amount, created_by, created_at, updated_at`

	poItemColumns = `id, purchase_order_id, item_id, quantity_ordered, quantity_received, unit_price, line_total`

	requestColumns = `id, kind, item_id, COALESCE(location_id, '') AS location_id, requested_by, department_id,
		quantity_requested, quantity_approved, quantity_issued, status, reason, rejection_reason,
		processed_by, processed_at, confirmed_by, confirmed_at, closed_by, closed_at, close_reason, created_at`

	transactionColumns = `id, item_id, COALESCE(location_id, '') AS location_id, direction, quantity, performed_by, reference, note, created_at`

	adjustmentColumns = `id, item_id, COALESCE(location_id, '') AS location_id, type, delta, reason, reference_number, adjusted_by, created_at`
)

type Store struct {
	queries
	db *sqlx.DB
}

var _ store.Repository = (*Store)(nil)

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{queries: queries{q: db}, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// serializationAttempts bounds how often Atomic reruns fn after Postgres
// reports a serialization failure (40001). Predicate locking raises those for
// transactions that only touched neighbouring rows, so a short rerun usually
// succeeds. Row lock contention (55P03) is never retried.
const serializationAttempts = 3

// Atomic runs fn in a SERIALIZABLE transaction. Item and document reads
// inside take FOR UPDATE NOWAIT locks, so contention surfaces as
// store.ErrBusy instead of a blocked request. fn may run more than once and
// must not carry state between runs.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := s.atomic(ctx, fn)
		if err == nil || attempt == serializationAttempts || !isSerializationFailure(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * 15 * time.Millisecond):
		}
	}
}

func (s *Store) atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mapError(err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &txStore{queries: queries{q: tx, lock: true}}); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) GetUserAccount(ctx context.Context, username string) (*domain.UserAccount, error) {
	var account domain.UserAccount
	err := s.db.GetContext(ctx, &account, `
		SELECT username, password_hash, role, active
		FROM user_accounts
		WHERE username = $1
	`, strings.TrimSpace(username))
	if err != nil {
		return nil, mapError(err)
	}
	return &account, nil
}

func (s *Store) SaveUserAccount(ctx context.Context, account domain.UserAccount) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO user_accounts (username, password_hash, role, active)
		VALUES (:username, :password_hash, :role, :active)
		ON CONFLICT (username)
		DO UPDATE SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role, active = EXCLUDED.active
	`, account)
	return mapError(err)
}

// queries holds the read side. Outside a transaction q is the pool; inside,
// q is the transaction and single-row document and item reads lock what they
// return. Location reads stay shared so different items can be placed into
// one location concurrently; see txStore.LockLocation.
type queries struct {
	q    sqlx.ExtContext
	lock bool
}

func (r queries) forUpdate() string {
	if r.lock {
		return " FOR UPDATE NOWAIT"
	}
	return ""
}

func (r queries) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	var item domain.Item
	err := sqlx.GetContext(ctx, r.q, &item, `SELECT `+itemColumns+` FROM items WHERE id = $1`+r.forUpdate(), id)
	if err != nil {
		return nil, notFound(err, "item", id)
	}
	return &item, nil
}

func (r queries) ListItems(ctx context.Context, includeRetired bool) ([]domain.Item, error) {
	items := make([]domain.Item, 0, 64)
	query := `SELECT ` + itemColumns + ` FROM items`
	if !includeRetired {
		query += ` WHERE retired = false`
	}
	if err := sqlx.SelectContext(ctx, r.q, &items, query+` ORDER BY name`); err != nil {
		return nil, err
	}
	return items, nil
}

func (r queries) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	var loc domain.Location
	err := sqlx.GetContext(ctx, r.q, &loc, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "location", id)
	}
	return &loc, nil
}

func (r queries) ListLocations(ctx context.Context) ([]domain.Location, error) {
	locations := make([]domain.Location, 0, 16)
	if err := sqlx.SelectContext(ctx, r.q, &locations, `SELECT `+locationColumns+` FROM locations ORDER BY name`); err != nil {
		return nil, err
	}
	return locations, nil
}

func (r queries) ListItemLocations(ctx context.Context, itemID string) ([]domain.ItemLocation, error) {
	splits := make([]domain.ItemLocation, 0, 4)
	err := sqlx.SelectContext(ctx, r.q, &splits, `
		SELECT `+splitColumns+`
		FROM item_locations
		WHERE item_id = $1
		ORDER BY location_id
	`, itemID)
	if err != nil {
		return nil, err
	}
	return splits, nil
}

func (r queries) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	var supplier domain.Supplier
	err := sqlx.GetContext(ctx, r.q, &supplier, `SELECT id, name, phone, created_at FROM suppliers WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "supplier", id)
	}
	return &supplier, nil
}

func (r queries) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	suppliers := make([]domain.Supplier, 0, 16)
	if err := sqlx.SelectContext(ctx, r.q, &suppliers, `SELECT id, name, phone, created_at FROM suppliers ORDER BY name`); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (r queries) GetStockIn(ctx context.Context, id string) (*domain.StockIn, error) {
	var doc domain.StockIn
	err := sqlx.GetContext(ctx, r.q, &doc, `SELECT `+stockInColumns+` FROM stock_ins WHERE id = $1`+r.forUpdate(), id)
	if err != nil {
		return nil, notFound(err, "stock-in", id)
	}
	docs := []domain.StockIn{doc}
	if err := r.attachDetails(ctx, docs); err != nil {
		return nil, err
	}
	return &docs[0], nil
}

func (r queries) ListStockIns(ctx context.Context, status domain.DocumentStatus, limit int) ([]domain.StockIn, error) {
	var w where
	if status != "" {
		w.add("status = $%d", status)
	}
	query := `SELECT ` + stockInColumns + ` FROM stock_ins` + w.clause() + ` ORDER BY created_at DESC` + w.limit(limit)

	docs := make([]domain.StockIn, 0, 32)
	if err := sqlx.SelectContext(ctx, r.q, &docs, query, w.args...); err != nil {
		return nil, err
	}
	if err := r.attachDetails(ctx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r queries) attachDetails(ctx context.Context, docs []domain.StockIn) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(docs))
	byID := make(map[string]int, len(docs))
	for i := range docs {
		ids = append(ids, docs[i].ID)
		byID[docs[i].ID] = i
		docs[i].Details = make([]domain.StockDetail, 0, 4)
	}
	query, args, err := sqlx.In(`SELECT `+stockDetailColumns+` FROM stock_details WHERE stock_in_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return err
	}
	details := make([]domain.StockDetail, 0, len(ids)*2)
	if err := sqlx.SelectContext(ctx, r.q, &details, r.q.Rebind(query), args...); err != nil {
		return err
	}
	for _, d := range details {
		idx := byID[d.StockInID]
		docs[idx].Details = append(docs[idx].Details, d)
	}
	return nil
}

func (r queries) GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	err := sqlx.GetContext(ctx, r.q, &po, `SELECT `+poColumns+` FROM purchase_orders WHERE id = $1`+r.forUpdate(), id)
	if err != nil {
		return nil, notFound(err, "purchase order", id)
	}
	orders := []domain.PurchaseOrder{po}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r queries) ListPurchaseOrders(ctx context.Context, status domain.POStatus, limit int) ([]domain.PurchaseOrder, error) {
	var w where
	if status != "" {
		w.add("status = $%d", status)
	}
	query := `SELECT ` + poColumns + ` FROM purchase_orders` + w.clause() + ` ORDER BY created_at DESC` + w.limit(limit)

	orders := make([]domain.PurchaseOrder, 0, 32)
	if err := sqlx.SelectContext(ctx, r.q, &orders, query, w.args...); err != nil {
		return nil, err
	}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r queries) attachLines(ctx context.Context, orders []domain.PurchaseOrder) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, 0, len(orders))
	byID := make(map[string]int, len(orders))
	for i := range orders {
		ids = append(ids, orders[i].ID)
		byID[orders[i].ID] = i
		orders[i].Items = make([]domain.PurchaseOrderItem, 0, 4)
	}
	query, args, err := sqlx.In(`SELECT `+poItemColumns+` FROM purchase_order_items WHERE purchase_order_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return err
	}
	lines := make([]domain.PurchaseOrderItem, 0, len(ids)*2)
	if err := sqlx.SelectContext(ctx, r.q, &lines, r.q.Rebind(query), args...); err != nil {
		return err
	}
	for _, line := range lines {
		idx := byID[line.PurchaseOrderID]
		orders[idx].Items = append(orders[idx].Items, line)
	}
	return nil
}

func (r queries) ListPurchaseOrderStatusChanges(ctx context.Context, purchaseOrderID string) ([]domain.PurchaseOrderStatusChange, error) {
	changes := make([]domain.PurchaseOrderStatusChange, 0, 4)
	err := sqlx.SelectContext(ctx, r.q, &changes, `
		SELECT id, purchase_order_id, from_status, to_status, changed_by, changed_at
		FROM purchase_order_status_changes
		WHERE purchase_order_id = $1
		ORDER BY changed_at, id
	`, purchaseOrderID)
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func (r queries) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	var req domain.Request
	err := sqlx.GetContext(ctx, r.q, &req, `SELECT `+requestColumns+` FROM requests WHERE id = $1`+r.forUpdate(), id)
	if err != nil {
		return nil, notFound(err, "request", id)
	}
	return &req, nil
}

func (r queries) ListRequests(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error) {
	var w where
	if filter.Status != "" {
		w.add("status = $%d", filter.Status)
	}
	if filter.Kind != "" {
		w.add("kind = $%d", filter.Kind)
	}
	if filter.RequestedBy != "" {
		w.add("requested_by = $%d", filter.RequestedBy)
	}
	query := `SELECT ` + requestColumns + ` FROM requests` + w.clause() + ` ORDER BY created_at DESC` + w.limit(filter.Limit)

	requests := make([]domain.Request, 0, 32)
	if err := sqlx.SelectContext(ctx, r.q, &requests, query, w.args...); err != nil {
		return nil, err
	}
	return requests, nil
}

func (r queries) ListTransactions(ctx context.Context, filter domain.MovementFilter) ([]domain.StockTransaction, error) {
	w := movementWhere(filter, "performed_by")
	query := `SELECT ` + transactionColumns + ` FROM stock_transactions` + w.clause() + ` ORDER BY created_at DESC, id DESC` + w.limit(filter.Limit)

	entries := make([]domain.StockTransaction, 0, 64)
	if err := sqlx.SelectContext(ctx, r.q, &entries, query, w.args...); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r queries) ListAdjustments(ctx context.Context, filter domain.MovementFilter) ([]domain.StockAdjustment, error) {
	w := movementWhere(filter, "adjusted_by")
	query := `SELECT ` + adjustmentColumns + ` FROM stock_adjustments` + w.clause() + ` ORDER BY created_at DESC, id DESC` + w.limit(filter.Limit)

	entries := make([]domain.StockAdjustment, 0, 32)
	if err := sqlx.SelectContext(ctx, r.q, &entries, query, w.args...); err != nil {
		return nil, err
	}
	return entries, nil
}

func movementWhere(filter domain.MovementFilter, actorColumn string) where {
	var w where
	if filter.ItemID != "" {
		w.add("item_id = $%d", filter.ItemID)
	}
	if filter.PerformedBy != "" {
		w.add(actorColumn+" = $%d", filter.PerformedBy)
	}
	if filter.From != nil {
		w.add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		w.add("created_at < $%d", *filter.To)
	}
	return w
}

// where accumulates AND-ed conditions with positional arguments.
type where struct {
	parts []string
	args  []any
}

func (w *where) add(expr string, arg any) {
	w.args = append(w.args, arg)
	w.parts = append(w.parts, fmt.Sprintf(expr, len(w.args)))
}

func (w *where) clause() string {
	if len(w.parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.parts, " AND ")
}

func (w *where) limit(n int) string {
	if n <= 0 {
		return ""
	}
	w.args = append(w.args, n)
	return fmt.Sprintf(" LIMIT $%d", len(w.args))
}

func notFound(err error, kind string, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return mapError(err)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

// mapError translates driver errors into store sentinels and leaves
// everything else untouched.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if errors.Is(err, store.ErrBusy) {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("%w: %s", store.ErrDuplicate, pgErr.ConstraintName)
	case "23503":
		return fmt.Errorf("%w: missing reference %s", store.ErrNotFound, pgErr.ConstraintName)
	case "23514":
		return fmt.Errorf("%w: check %s", store.ErrInvalidInput, pgErr.ConstraintName)
	case "55P03", "40001", "40P01":
		return fmt.Errorf("%w: %w", store.ErrBusy, pgErr)
	}
	return err
}
