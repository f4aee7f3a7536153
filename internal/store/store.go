package store

import (
	"context"
	"errors"

	"stockroom/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDuplicate    = errors.New("duplicate")
	ErrBusy         = errors.New("resource busy, retry later")

	ErrNegativeStock        = errors.New("negative stock")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInactiveLocation     = errors.New("location inactive")
	ErrCapacityExceeded     = errors.New("location capacity exceeded")
	ErrInvalidDocumentState = errors.New("invalid document state")
	ErrAlreadyProcessed     = errors.New("already processed")
	ErrOverReceipt          = errors.New("over receipt")
	ErrInvalidTransition    = errors.New("invalid transition")
)

// Reader is the query surface shared by the repository and open transactions.
// Inside a transaction, single-row getters lock the row until commit.
type Reader interface {
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	ListItems(ctx context.Context, includeRetired bool) ([]domain.Item, error)
	GetLocation(ctx context.Context, id string) (*domain.Location, error)
	ListLocations(ctx context.Context) ([]domain.Location, error)
	ListItemLocations(ctx context.Context, itemID string) ([]domain.ItemLocation, error)
	GetSupplier(ctx context.Context, id string) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	GetStockIn(ctx context.Context, id string) (*domain.StockIn, error)
	ListStockIns(ctx context.Context, status domain.DocumentStatus, limit int) ([]domain.StockIn, error)
	GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, status domain.POStatus, limit int) ([]domain.PurchaseOrder, error)
	ListPurchaseOrderStatusChanges(ctx context.Context, purchaseOrderID string) ([]domain.PurchaseOrderStatusChange, error)
	GetRequest(ctx context.Context, id string) (*domain.Request, error)
	ListRequests(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error)
	ListTransactions(ctx context.Context, filter domain.MovementFilter) ([]domain.StockTransaction, error)
	ListAdjustments(ctx context.Context, filter domain.MovementFilter) ([]domain.StockAdjustment, error)
}

// Tx is a unit of work. Nothing written through it is visible to other
// readers until the enclosing Atomic call returns nil.
type Tx interface {
	Reader

	GetItemLocation(ctx context.Context, itemID string, locationID string) (*domain.ItemLocation, error)
	// LockLocation reads a location and holds it until the unit of work ends.
	// Plain GetLocation reads inside a Tx do not lock.
	LockLocation(ctx context.Context, id string) (*domain.Location, error)
	LocationLoad(ctx context.Context, locationID string) (int, error)

	InsertItem(ctx context.Context, item domain.Item) error
	UpdateItem(ctx context.Context, item domain.Item) error
	InsertLocation(ctx context.Context, location domain.Location) error
	UpdateLocation(ctx context.Context, location domain.Location) error
	SaveItemLocation(ctx context.Context, split domain.ItemLocation) error
	DeleteItemLocation(ctx context.Context, itemID string, locationID string) error
	InsertSupplier(ctx context.Context, supplier domain.Supplier) error

	InsertStockIn(ctx context.Context, doc domain.StockIn) error
	UpdateStockIn(ctx context.Context, doc domain.StockIn) error
	DeleteStockIn(ctx context.Context, id string) error

	InsertTransaction(ctx context.Context, entry domain.StockTransaction) error
	InsertAdjustment(ctx context.Context, entry domain.StockAdjustment) error

	InsertPurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error
	UpdatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error
	InsertPurchaseOrderStatusChange(ctx context.Context, change domain.PurchaseOrderStatusChange) error

	InsertRequest(ctx context.Context, request domain.Request) error
	UpdateRequest(ctx context.Context, request domain.Request) error
}

type Repository interface {
	Reader

	// Atomic runs fn in a single transaction. A non-nil error from fn rolls
	// back every write made through tx.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetUserAccount(ctx context.Context, username string) (*domain.UserAccount, error)
	SaveUserAccount(ctx context.Context, account domain.UserAccount) error
}
