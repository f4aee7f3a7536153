package domain

const (
	RoleAdmin        = "admin"
	RoleStockManager = "stock_manager"
	RoleEmployee     = "employee"
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleStockManager, RoleEmployee:
		return true
	}
	return false
}

type LocationType string

const (
	LocationWarehouse LocationType = "warehouse"
	LocationStoreRoom LocationType = "store_room"
	LocationClassroom LocationType = "classroom"
	LocationOffice    LocationType = "office"
	LocationOther     LocationType = "other"
)

func (t LocationType) Valid() bool {
	switch t {
	case LocationWarehouse, LocationStoreRoom, LocationClassroom, LocationOffice, LocationOther:
		return true
	}
	return false
}

type LocationStatus string

const (
	LocationActive   LocationStatus = "active"
	LocationInactive LocationStatus = "inactive"
)

func (s LocationStatus) Valid() bool {
	return s == LocationActive || s == LocationInactive
}

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

type AdjustmentType string

const (
	AdjustmentDamaged    AdjustmentType = "damaged"
	AdjustmentLost       AdjustmentType = "lost"
	AdjustmentExpired    AdjustmentType = "expired"
	AdjustmentReturn     AdjustmentType = "return"
	AdjustmentCorrection AdjustmentType = "correction"
)

func (t AdjustmentType) Valid() bool {
	switch t {
	case AdjustmentDamaged, AdjustmentLost, AdjustmentExpired, AdjustmentReturn, AdjustmentCorrection:
		return true
	}
	return false
}

// Shrinkage types always remove stock; the caller passes a positive quantity.
func (t AdjustmentType) Shrinkage() bool {
	switch t {
	case AdjustmentDamaged, AdjustmentLost, AdjustmentExpired:
		return true
	}
	return false
}

// DocumentStatus is the lifecycle of a stock-in document:
// draft -> received -> cancelled.
type DocumentStatus string

const (
	DocumentDraft     DocumentStatus = "draft"
	DocumentReceived  DocumentStatus = "received"
	DocumentCancelled DocumentStatus = "cancelled"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentDraft, DocumentReceived, DocumentCancelled:
		return true
	}
	return false
}

type POStatus string

const (
	POPending           POStatus = "pending"
	POOrdered           POStatus = "ordered"
	POPartiallyReceived POStatus = "partially_received"
	POReceived          POStatus = "received"
	POCancelled         POStatus = "cancelled"
)

var poTransitions = map[POStatus][]POStatus{
	POPending:           {POOrdered, POPartiallyReceived, POReceived, POCancelled},
	POOrdered:           {POPartiallyReceived, POReceived, POCancelled},
	POPartiallyReceived: {POReceived, POCancelled},
}

func (s POStatus) Valid() bool {
	switch s {
	case POPending, POOrdered, POPartiallyReceived, POReceived, POCancelled:
		return true
	}
	return false
}

func (s POStatus) Terminal() bool {
	return s == POReceived || s == POCancelled
}

// AcceptsReceipts reports whether goods may still be booked against the order.
func (s POStatus) AcceptsReceipts() bool {
	return s == POPending || s == POOrdered || s == POPartiallyReceived
}

func (s POStatus) CanTransitionTo(next POStatus) bool {
	for _, candidate := range poTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

type RequestKind string

const (
	RequestInventory RequestKind = "inventory"
	RequestAsset     RequestKind = "asset"
)

func (k RequestKind) Valid() bool {
	return k == RequestInventory || k == RequestAsset
}

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestConfirmed RequestStatus = "confirmed"
	RequestClosed    RequestStatus = "closed"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected, RequestConfirmed, RequestClosed:
		return true
	}
	return false
}

func (s RequestStatus) Terminal() bool {
	return s == RequestRejected || s == RequestConfirmed || s == RequestClosed
}

// CanTransitionTo encodes the approval graph for the given request kind.
// Only asset requests have a confirmation stage. Any approved request can be
// closed short.
func (s RequestStatus) CanTransitionTo(kind RequestKind, next RequestStatus) bool {
	switch s {
	case RequestPending:
		return next == RequestApproved || next == RequestRejected
	case RequestApproved:
		return next == RequestClosed || (kind == RequestAsset && next == RequestConfirmed)
	}
	return false
}
