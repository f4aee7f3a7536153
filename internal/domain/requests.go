package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type AccountCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type AccountView struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
}

type ItemCreateRequest struct {
	Name            string              `json:"name"`
	SKU             string              `json:"sku"`
	UnitPrice       decimal.NullDecimal `json:"unit_price"`
	LocationTracked *bool               `json:"location_tracked,omitempty"`
	CreatedBy       string              `json:"-"`
}

type LocationCreateRequest struct {
	Name     string       `json:"name"`
	Type     LocationType `json:"type"`
	Capacity *int         `json:"capacity,omitempty"`
}

type LocationStatusRequest struct {
	Status LocationStatus `json:"status"`
}

type StockDetailInput struct {
	ItemID     string          `json:"item_id"`
	Quantity   int             `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
	LocationID string          `json:"location_id"`
}

type StockInCreateRequest struct {
	SupplierID      string             `json:"supplier_id"`
	ReferenceNumber string             `json:"reference_number"`
	Note            string             `json:"note"`
	Details         []StockDetailInput `json:"details"`
	CreatedBy       string             `json:"-"`
}

type IssueRequest struct {
	ItemID      string `json:"item_id"`
	LocationID  string `json:"location_id"`
	Quantity    int    `json:"quantity"`
	Reference   string `json:"reference"`
	Note        string `json:"note"`
	RequestID   string `json:"request_id,omitempty"`
	PerformedBy string `json:"-"`
}

// AdjustRequest quantity is positive for shrinkage types and a signed delta
// for return and correction.
type AdjustRequest struct {
	ItemID          string         `json:"item_id"`
	LocationID      string         `json:"location_id"`
	Type            AdjustmentType `json:"type"`
	Quantity        int            `json:"quantity"`
	Reason          string         `json:"reason"`
	ReferenceNumber string         `json:"reference_number"`
	AdjustedBy      string         `json:"-"`
}

type MoveRequest struct {
	ItemID         string `json:"item_id"`
	FromLocationID string `json:"from_location_id"`
	ToLocationID   string `json:"to_location_id"`
	Quantity       int    `json:"quantity"`
	Note           string `json:"note"`
	PerformedBy    string `json:"-"`
}

type MoveResult struct {
	Reference string         `json:"reference"`
	From      ItemLocation   `json:"from"`
	To        ItemLocation   `json:"to"`
	Splits    []ItemLocation `json:"splits"`
}

type BinAssignRequest struct {
	ItemID     string `json:"item_id"`
	LocationID string `json:"location_id"`
	BinCode    string `json:"bin_code"`
}

type IssueResult struct {
	Item        Item             `json:"item"`
	Transaction StockTransaction `json:"transaction"`
	Request     *Request         `json:"request,omitempty"`
}

type AdjustResult struct {
	Item       Item            `json:"item"`
	Adjustment StockAdjustment `json:"adjustment"`
}

type SupplierCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type PurchaseOrderLineInput struct {
	ItemID    string          `json:"item_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type PurchaseOrderCreateRequest struct {
	SupplierID   string                   `json:"supplier_id"`
	PONumber     string                   `json:"po_number"`
	OrderDate    *time.Time               `json:"order_date,omitempty"`
	ExpectedDate *time.Time               `json:"expected_date,omitempty"`
	Items        []PurchaseOrderLineInput `json:"items"`
	CreatedBy    string                   `json:"-"`
}

// ReceiptRequest books delivered quantities per purchase order line id.
type ReceiptRequest struct {
	Lines      map[string]int `json:"lines"`
	LocationID string         `json:"location_id"`
	Reference  string         `json:"reference"`
	ReceivedBy string         `json:"-"`
}

type ReceiptResult struct {
	PurchaseOrder PurchaseOrder `json:"purchase_order"`
	StockIn       StockIn       `json:"stock_in"`
}

type RequestCreateRequest struct {
	Kind         RequestKind `json:"kind"`
	ItemID       string      `json:"item_id"`
	LocationID   string      `json:"location_id"`
	DepartmentID string      `json:"department_id"`
	Quantity     int         `json:"quantity"`
	Reason       string      `json:"reason"`
	RequestedBy  string      `json:"-"`
}

type ApproveRequest struct {
	Quantity int `json:"quantity"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type CloseRequest struct {
	Reason string `json:"reason"`
}

type ConfirmRequest struct {
	LocationID string `json:"location_id"`
}

type FulfillRequest struct {
	Quantity   int    `json:"quantity"`
	LocationID string `json:"location_id"`
}

type RequestFilter struct {
	Status      RequestStatus
	Kind        RequestKind
	RequestedBy string
	Limit       int
}

// MovementFilter narrows ledger queries. Zero values mean "any".
type MovementFilter struct {
	ItemID      string
	PerformedBy string
	From        *time.Time
	To          *time.Time
	Limit       int
}
