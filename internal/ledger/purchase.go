package ledger

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/store"
	"stockroom/backend/internal/xid"
)

func (e *Engine) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (*domain.Supplier, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: supplier name is required", store.ErrInvalidInput)
	}
	supplier := domain.Supplier{
		ID:        xid.New("sup"),
		Name:      name,
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: e.timestamp(),
	}
	err := e.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertSupplier(ctx, supplier)
	})
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (e *Engine) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return e.repo.ListSuppliers(ctx)
}

func (e *Engine) CreatePurchaseOrder(ctx context.Context, req domain.PurchaseOrderCreateRequest) (*domain.PurchaseOrder, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: purchase order needs at least one line", store.ErrInvalidInput)
	}

	now := e.timestamp()
	po := domain.PurchaseOrder{
		ID:           xid.New("po"),
		SupplierID:   req.SupplierID,
		PONumber:     strings.ToUpper(strings.TrimSpace(req.PONumber)),
		OrderDate:    now,
		ExpectedDate: req.ExpectedDate,
		Status:       domain.POPending,
		TotalAmount:  decimal.Zero,
		CreatedBy:    req.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
		Items:        make([]domain.PurchaseOrderItem, 0, len(req.Items)),
	}
	if req.OrderDate != nil {
		po.OrderDate = req.OrderDate.UTC()
	}
	if po.PONumber == "" {
		po.PONumber = generatePONumber(now.Format("20060102"))
	}

	err := e.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		po.Items, po.TotalAmount = po.Items[:0], decimal.Zero
		if _, err := tx.GetSupplier(ctx, req.SupplierID); err != nil {
			return err
		}
		for i, line := range req.Items {
			if line.Quantity <= 0 {
				return fmt.Errorf("%w: line %d quantity must be positive", store.ErrInvalidInput, i+1)
			}
			if line.UnitPrice.IsNegative() {
				return fmt.Errorf("%w: line %d unit price must not be negative", store.ErrInvalidInput, i+1)
			}
			item, err := tx.GetItem(ctx, line.ItemID)
			if err != nil {
				return err
			}
			if item.Retired {
				return fmt.Errorf("%w: item %s is retired", store.ErrInvalidInput, item.ID)
			}
			total := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
			po.Items = append(po.Items, domain.PurchaseOrderItem{
				ID:              xid.New("poi"),
				PurchaseOrderID: po.ID,
				ItemID:          line.ItemID,
				QuantityOrdered: line.Quantity,
				UnitPrice:       line.UnitPrice,
				LineTotal:       total,
			})
			po.TotalAmount = po.TotalAmount.Add(total)
		}
		if err := tx.InsertPurchaseOrder(ctx, po); err != nil {
			return err
		}
		return e.recordStatusChange(ctx, tx, &po, "", domain.POPending, req.CreatedBy)
	})
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func generatePONumber(day string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "PO-" + day + "-" + suffix
}

func (e *Engine) GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return e.repo.GetPurchaseOrder(ctx, id)
}

func (e *Engine) ListPurchaseOrders(ctx context.Context, status domain.POStatus, limit int) ([]domain.PurchaseOrder, error) {
	return e.repo.ListPurchaseOrders(ctx, status, limit)
}

func (e *Engine) PurchaseOrderHistory(ctx context.Context, id string) ([]domain.PurchaseOrderStatusChange, error) {
	if _, err := e.repo.GetPurchaseOrder(ctx, id); err != nil {
		return nil, err
	}
	return e.repo.ListPurchaseOrderStatusChanges(ctx, id)
}

// MarkOrdered records that the order was sent to the supplier.
func (e *Engine) MarkOrdered(ctx context.Context, id string, by string) (*domain.PurchaseOrder, error) {
	var out domain.PurchaseOrder
	err := e.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		po, err := tx.GetPurchaseOrder(ctx, id)
		if err != nil {
			return err
		}
		switch po.Status {
		case domain.POPending:
		case domain.POOrdered:
			return fmt.Errorf("%w: purchase order %s already ordered", store.ErrAlreadyProcessed, po.ID)
		default:
			return fmt.Errorf("%w: purchase order %s is %s", store.ErrInvalidDocumentState, po.ID, po.Status)
		}
		if err := e.transition(ctx, tx, po, domain.POOrdered, by); err != nil {
			return err
		}
		out = *po
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordReceipt books delivered quantities against purchase order lines. The
// goods arrive through a stock-in document created and received in the same
// transaction, so the ledger shows one in-line per delivered line.
func (e *Engine) RecordReceipt(ctx context.Context, id string, req domain.ReceiptRequest) (*domain.ReceiptResult, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: receipt needs at least one line", store.ErrInvalidInput)
	}
	for lineID, qty := range req.Lines {
		if qty <= 0 {
			return nil, fmt.Errorf("%w: line %s quantity must be positive", store.ErrInvalidInput, lineID)
		}
	}

	current, err := e.repo.GetPurchaseOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	itemIDs := make([]string, 0, len(req.Lines))
	for _, line := range current.Items {
		if _, ok := req.Lines[line.ID]; ok {
			itemIDs = append(itemIDs, line.ItemID)
		}
	}

	var out domain.ReceiptResult
	err = e.run(ctx, itemIDs, func(ctx context.Context, tx store.Tx) error {
		po, err := tx.GetPurchaseOrder(ctx, id)
		if err != nil {
			return err
		}
		if !po.Status.AcceptsReceipts() {
			return fmt.Errorf("%w: purchase order %s is %s", store.ErrInvalidDocumentState, po.ID, po.Status)
		}

		lineIDs := make([]string, 0, len(req.Lines))
		for lineID := range req.Lines {
			lineIDs = append(lineIDs, lineID)
		}
		slices.Sort(lineIDs)

		now := e.timestamp()
		doc := domain.StockIn{
			ID:              xid.New("sin"),
			SupplierID:      po.SupplierID,
			ReferenceNumber: strings.TrimSpace(req.Reference),
			PurchaseOrderID: po.ID,
			Status:          domain.DocumentDraft,
			Note:            "receipt for " + po.PONumber,
			CreatedBy:       req.ReceivedBy,
			CreatedAt:       now,
			Details:         make([]domain.StockDetail, 0, len(lineIDs)),
		}
		for _, lineID := range lineIDs {
			idx := slices.IndexFunc(po.Items, func(l domain.PurchaseOrderItem) bool { return l.ID == lineID })
			if idx < 0 {
				return fmt.Errorf("purchase order line %s: %w", lineID, store.ErrNotFound)
			}
			line := &po.Items[idx]
			qty := req.Lines[lineID]
			if line.QuantityReceived+qty > line.QuantityOrdered {
				return fmt.Errorf("%w: line %s ordered %d, received %d, delivering %d", store.ErrOverReceipt, line.ID, line.QuantityOrdered, line.QuantityReceived, qty)
			}
			line.QuantityReceived += qty
			doc.Details = append(doc.Details, domain.StockDetail{
				ID:         xid.New("sdt"),
				StockInID:  doc.ID,
				ItemID:     line.ItemID,
				Quantity:   qty,
				UnitCost:   line.UnitPrice,
				LocationID: req.LocationID,
			})
		}

		if err := tx.InsertStockIn(ctx, doc); err != nil {
			return err
		}
		if err := e.receiveDocument(ctx, tx, &doc, req.ReceivedBy); err != nil {
			return err
		}

		next := domain.POPartiallyReceived
		if !po.Outstanding() {
			next = domain.POReceived
		}
		po.UpdatedAt = now
		if next != po.Status {
			if err := e.transition(ctx, tx, po, next, req.ReceivedBy); err != nil {
				return err
			}
		} else if err := tx.UpdatePurchaseOrder(ctx, *po); err != nil {
			return err
		}

		out = domain.ReceiptResult{PurchaseOrder: *po, StockIn: doc}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelPurchaseOrder closes an order that will not be delivered in full.
// Stock already received stays; it is reversed only through adjustments.
func (e *Engine) CancelPurchaseOrder(ctx context.Context, id string, by string) (*domain.PurchaseOrder, error) {
	var out domain.PurchaseOrder
	err := e.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		po, err := tx.GetPurchaseOrder(ctx, id)
		if err != nil {
			return err
		}
		switch po.Status {
		case domain.POCancelled:
			return fmt.Errorf("%w: purchase order %s already cancelled", store.ErrAlreadyProcessed, po.ID)
		case domain.POReceived:
			return fmt.Errorf("%w: purchase order %s is fully received", store.ErrInvalidDocumentState, po.ID)
		}
		if err := e.transition(ctx, tx, po, domain.POCancelled, by); err != nil {
			return err
		}
		out = *po
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// transition moves po forward along the status graph and persists it. Status
// never moves backward.
func (e *Engine) transition(ctx context.Context, tx store.Tx, po *domain.PurchaseOrder, next domain.POStatus, by string) error {
	if !po.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: purchase order %s %s to %s", store.ErrInvalidTransition, po.ID, po.Status, next)
	}
	prev := po.Status
	po.Status = next
	po.UpdatedAt = e.timestamp()
	if err := tx.UpdatePurchaseOrder(ctx, *po); err != nil {
		return err
	}
	return e.recordStatusChange(ctx, tx, po, prev, next, by)
}

func (e *Engine) recordStatusChange(ctx context.Context, tx store.Tx, po *domain.PurchaseOrder, from domain.POStatus, to domain.POStatus, by string) error {
	return tx.InsertPurchaseOrderStatusChange(ctx, domain.PurchaseOrderStatusChange{
		ID:              xid.New("pos"),
		PurchaseOrderID: po.ID,
		FromStatus:      from,
		ToStatus:        to,
		ChangedBy:       by,
		ChangedAt:       e.timestamp(),
	})
}
