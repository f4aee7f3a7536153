package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	ID               string              `json:"id" db:"id"`
	Name             string              `json:"name" db:"name"`
	SKU              string              `json:"sku,omitempty" db:"sku"`
	Quantity         int                 `json:"quantity" db:"quantity"`
	QuantityReserved int                 `json:"quantity_reserved" db:"quantity_reserved"`
	UnitPrice        decimal.NullDecimal `json:"unit_price" db:"unit_price"`
	LocationTracked  bool                `json:"location_tracked" db:"location_tracked"`
	Retired          bool                `json:"retired" db:"retired"`
	CreatedBy        string              `json:"created_by" db:"created_by"`
	CreatedAt        time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at" db:"updated_at"`
}

// Available is on-hand stock not yet promised to an approved request.
func (i Item) Available() int {
	if i.QuantityReserved >= i.Quantity {
		return 0
	}
	return i.Quantity - i.QuantityReserved
}

type Location struct {
	ID        string         `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	Type      LocationType   `json:"type" db:"type"`
	Capacity  *int           `json:"capacity,omitempty" db:"capacity"`
	Status    LocationStatus `json:"status" db:"status"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

type ItemLocation struct {
	ItemID     string    `json:"item_id" db:"item_id"`
	LocationID string    `json:"location_id" db:"location_id"`
	Quantity   int       `json:"quantity" db:"quantity"`
	BinCode    string    `json:"bin_code,omitempty" db:"bin_code"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Empty reports whether the split row carries no information and can be dropped.
func (l ItemLocation) Empty() bool {
	return l.Quantity == 0 && l.BinCode == ""
}

type Supplier struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type StockIn struct {
	ID              string         `json:"id" db:"id"`
	SupplierID      string         `json:"supplier_id,omitempty" db:"supplier_id"`
	ReferenceNumber string         `json:"reference_number,omitempty" db:"reference_number"`
	PurchaseOrderID string         `json:"purchase_order_id,omitempty" db:"purchase_order_id"`
	Status          DocumentStatus `json:"status" db:"status"`
	Note            string         `json:"note,omitempty" db:"note"`
	CreatedBy       string         `json:"created_by" db:"created_by"`
	ReceivedBy      string         `json:"received_by,omitempty" db:"received_by"`
	CancelledBy     string         `json:"cancelled_by,omitempty" db:"cancelled_by"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	ReceivedAt      *time.Time     `json:"received_at,omitempty" db:"received_at"`
	CancelledAt     *time.Time     `json:"cancelled_at,omitempty" db:"cancelled_at"`
	Details         []StockDetail  `json:"details" db:"-"`
}

type StockDetail struct {
	ID         string          `json:"id" db:"id"`
	StockInID  string          `json:"stock_in_id" db:"stock_in_id"`
	ItemID     string          `json:"item_id" db:"item_id"`
	Quantity   int             `json:"quantity" db:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost" db:"unit_cost"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty" db:"expiry_date"`
	LocationID string          `json:"location_id" db:"location_id"`
}

// StockTransaction is one append-only ledger line. Quantity is always positive;
// Direction carries the sign.
type StockTransaction struct {
	ID          string    `json:"id" db:"id"`
	ItemID      string    `json:"item_id" db:"item_id"`
	LocationID  string    `json:"location_id,omitempty" db:"location_id"`
	Direction   Direction `json:"direction" db:"direction"`
	Quantity    int       `json:"quantity" db:"quantity"`
	PerformedBy string    `json:"performed_by" db:"performed_by"`
	Reference   string    `json:"reference,omitempty" db:"reference"`
	Note        string    `json:"note,omitempty" db:"note"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Signed returns the quantity with the direction applied.
func (t StockTransaction) Signed() int {
	if t.Direction == DirectionOut {
		return -t.Quantity
	}
	return t.Quantity
}

type StockAdjustment struct {
	ID              string         `json:"id" db:"id"`
	ItemID          string         `json:"item_id" db:"item_id"`
	LocationID      string         `json:"location_id,omitempty" db:"location_id"`
	Type            AdjustmentType `json:"type" db:"type"`
	Delta           int            `json:"delta" db:"delta"`
	Reason          string         `json:"reason" db:"reason"`
	ReferenceNumber string         `json:"reference_number,omitempty" db:"reference_number"`
	AdjustedBy      string         `json:"adjusted_by" db:"adjusted_by"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
}

type PurchaseOrder struct {
	ID           string              `json:"id" db:"id"`
	SupplierID   string              `json:"supplier_id" db:"supplier_id"`
	PONumber     string              `json:"po_number" db:"po_number"`
	OrderDate    time.Time           `json:"order_date" db:"order_date"`
	ExpectedDate *time.Time          `json:"expected_date,omitempty" db:"expected_date"`
	Status       POStatus            `json:"status" db:"status"`
	TotalAmount  decimal.Decimal     `json:"total_amount" db:"total_amount"`
	CreatedBy    string              `json:"created_by" db:"created_by"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at" db:"updated_at"`
	Items        []PurchaseOrderItem `json:"items" db:"-"`
}

// Outstanding reports whether any line still awaits delivery.
func (po PurchaseOrder) Outstanding() bool {
	for _, line := range po.Items {
		if line.QuantityReceived < line.QuantityOrdered {
			return true
		}
	}
	return false
}

type PurchaseOrderItem struct {
	ID               string          `json:"id" db:"id"`
	PurchaseOrderID  string          `json:"purchase_order_id" db:"purchase_order_id"`
	ItemID           string          `json:"item_id" db:"item_id"`
	QuantityOrdered  int             `json:"quantity_ordered" db:"quantity_ordered"`
	QuantityReceived int             `json:"quantity_received" db:"quantity_received"`
	UnitPrice        decimal.Decimal `json:"unit_price" db:"unit_price"`
	LineTotal        decimal.Decimal `json:"line_total" db:"line_total"`
}

type PurchaseOrderStatusChange struct {
	ID              string    `json:"id" db:"id"`
	PurchaseOrderID string    `json:"purchase_order_id" db:"purchase_order_id"`
	FromStatus      POStatus  `json:"from_status" db:"from_status"`
	ToStatus        POStatus  `json:"to_status" db:"to_status"`
	ChangedBy       string    `json:"changed_by" db:"changed_by"`
	ChangedAt       time.Time `json:"changed_at" db:"changed_at"`
}

// Request is an employee's ask for stock. Inventory requests are fulfilled by
// issues keyed to the request; asset requests are fulfilled by confirmation.
type Request struct {
	ID                string        `json:"id" db:"id"`
	Kind              RequestKind   `json:"kind" db:"kind"`
	ItemID            string        `json:"item_id" db:"item_id"`
	LocationID        string        `json:"location_id,omitempty" db:"location_id"`
	RequestedBy       string        `json:"requested_by" db:"requested_by"`
	DepartmentID      string        `json:"department_id,omitempty" db:"department_id"`
	QuantityRequested int           `json:"quantity_requested" db:"quantity_requested"`
	QuantityApproved  int           `json:"quantity_approved" db:"quantity_approved"`
	QuantityIssued    int           `json:"quantity_issued" db:"quantity_issued"`
	Status            RequestStatus `json:"status" db:"status"`
	Reason            string        `json:"reason,omitempty" db:"reason"`
	RejectionReason   string        `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ProcessedBy       string        `json:"processed_by,omitempty" db:"processed_by"`
	ProcessedAt       *time.Time    `json:"processed_at,omitempty" db:"processed_at"`
	ConfirmedBy       string        `json:"confirmed_by,omitempty" db:"confirmed_by"`
	ConfirmedAt       *time.Time    `json:"confirmed_at,omitempty" db:"confirmed_at"`
	ClosedBy          string        `json:"closed_by,omitempty" db:"closed_by"`
	ClosedAt          *time.Time    `json:"closed_at,omitempty" db:"closed_at"`
	CloseReason       string        `json:"close_reason,omitempty" db:"close_reason"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
}

// Unissued is the approved quantity that has not left stock yet.
func (r Request) Unissued() int {
	if r.Status != RequestApproved && r.Status != RequestConfirmed {
		return 0
	}
	left := r.QuantityApproved - r.QuantityIssued
	if left < 0 {
		return 0
	}
	return left
}

type UserAccount struct {
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
	Role         string `db:"role"`
	Active       bool   `db:"active"`
}

type Actor struct {
	Username string
	Role     string
}

// ReconciliationReport compares the three views of an item's quantity.
type ReconciliationReport struct {
	ItemID          string `json:"item_id"`
	OnHand          int    `json:"on_hand"`
	SplitTotal      int    `json:"split_total"`
	LedgerTotal     int    `json:"ledger_total"`
	LocationTracked bool   `json:"location_tracked"`
	Consistent      bool   `json:"consistent"`
}
