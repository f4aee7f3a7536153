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

// CreateStockIn records a draft receipt document. Drafts have no effect on
// stock until ReceiveStockIn.
func (e *Engine) CreateStockIn(ctx context.Context, req domain.StockInCreateRequest) (*domain.StockIn, error) {
	if len(req.Details) == 0 {
		return nil, fmt.Errorf("%w: stock-in needs at least one line", store.ErrInvalidInput)
	}

	now := e.timestamp()
	doc := domain.StockIn{
		ID:              xid.New("sin"),
		SupplierID:      req.SupplierID,
		ReferenceNumber: strings.TrimSpace(req.ReferenceNumber),
		Status:          domain.DocumentDraft,
		Note:            req.Note,
		CreatedBy:       req.CreatedBy,
		CreatedAt:       now,
		Details:         make([]domain.StockDetail, 0, len(req.Details)),
	}
	err := e.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		doc.Details = doc.Details[:0]
		if doc.SupplierID != "" {
			if _, err := tx.GetSupplier(ctx, doc.SupplierID); err != nil {
				return err
			}
		}
		for i, line := range req.Details {
			if line.Quantity <= 0 {
				return fmt.Errorf("%w: line %d quantity must be positive", store.ErrInvalidInput, i+1)
			}
			if line.UnitCost.IsNegative() {
				return fmt.Errorf("%w: line %d unit cost must not be negative", store.ErrInvalidInput, i+1)
			}
			item, err := tx.GetItem(ctx, line.ItemID)
			if err != nil {
				return err
			}
			if item.Retired {
				return fmt.Errorf("%w: item %s is retired", store.ErrInvalidInput, item.ID)
			}
			if item.LocationTracked && line.LocationID == "" {
				return fmt.Errorf("%w: line %d needs a destination location", store.ErrInvalidInput, i+1)
			}
			if line.LocationID != "" {
				if _, err := tx.GetLocation(ctx, line.LocationID); err != nil {
					return err
				}
			}
			doc.Details = append(doc.Details, domain.StockDetail{
				ID:         xid.New("sdt"),
				StockInID:  doc.ID,
				ItemID:     line.ItemID,
				Quantity:   line.Quantity,
				UnitCost:   line.UnitCost,
				ExpiryDate: line.ExpiryDate,
				LocationID: line.LocationID,
			})
		}
		return tx.InsertStockIn(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (e *Engine) GetStockIn(ctx context.Context, id string) (*domain.StockIn, error) {
	return e.repo.GetStockIn(ctx, id)
}

func (e *Engine) ListStockIns(ctx context.Context, status domain.DocumentStatus, limit int) ([]domain.StockIn, error) {
	return e.repo.ListStockIns(ctx, status, limit)
}

// ReceiveStockIn books every line of a draft document. Either all lines land
// or none do.
func (e *Engine) ReceiveStockIn(ctx context.Context, id string, receivedBy string) (*domain.StockIn, error) {
	draft, err := e.repo.GetStockIn(ctx, id)
	if err != nil {
		return nil, err
	}

	var out domain.StockIn
	err = e.run(ctx, detailItemIDs(draft.Details), func(ctx context.Context, tx store.Tx) error {
		doc, err := tx.GetStockIn(ctx, id)
		if err != nil {
			return err
		}
		switch doc.Status {
		case domain.DocumentReceived:
			return fmt.Errorf("%w: stock-in %s already received", store.ErrAlreadyProcessed, doc.ID)
		case domain.DocumentCancelled:
			return fmt.Errorf("%w: stock-in %s is cancelled", store.ErrInvalidDocumentState, doc.ID)
		}
		if err := e.receiveDocument(ctx, tx, doc, receivedBy); err != nil {
			return err
		}
		out = *doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *Engine) receiveDocument(ctx context.Context, tx store.Tx, doc *domain.StockIn, receivedBy string) error {
	now := e.timestamp()
	for _, line := range doc.Details {
		item, err := tx.GetItem(ctx, line.ItemID)
		if err != nil {
			return err
		}
		if item.Retired {
			return fmt.Errorf("%w: item %s is retired", store.ErrInvalidInput, item.ID)
		}
		if err := e.applyMovement(ctx, tx, item, line.LocationID, line.Quantity); err != nil {
			return err
		}
		entry := domain.StockTransaction{
			ID:          xid.New("stx"),
			ItemID:      item.ID,
			LocationID:  line.LocationID,
			Direction:   domain.DirectionIn,
			Quantity:    line.Quantity,
			PerformedBy: receivedBy,
			Reference:   "stock-in:" + doc.ID,
			Note:        doc.ReferenceNumber,
			CreatedAt:   now,
		}
		if err := tx.InsertTransaction(ctx, entry); err != nil {
			return err
		}
	}
	doc.Status = domain.DocumentReceived
	doc.ReceivedBy = receivedBy
	doc.ReceivedAt = &now
	return tx.UpdateStockIn(ctx, *doc)
}

// CancelStockIn reverses a received document line by line. If any of its
// stock has already left, nothing is reversed.
func (e *Engine) CancelStockIn(ctx context.Context, id string, cancelledBy string) (*domain.StockIn, error) {
	current, err := e.repo.GetStockIn(ctx, id)
	if err != nil {
		return nil, err
	}

	var out domain.StockIn
	err = e.run(ctx, detailItemIDs(current.Details), func(ctx context.Context, tx store.Tx) error {
		doc, err := tx.GetStockIn(ctx, id)
		if err != nil {
			return err
		}
		switch doc.Status {
		case domain.DocumentDraft:
			return fmt.Errorf("%w: stock-in %s was never received, discard it instead", store.ErrInvalidDocumentState, doc.ID)
		case domain.DocumentCancelled:
			return fmt.Errorf("%w: stock-in %s already cancelled", store.ErrAlreadyProcessed, doc.ID)
		}
		if doc.PurchaseOrderID != "" {
			return fmt.Errorf("%w: stock-in %s belongs to purchase order %s, use a return adjustment", store.ErrInvalidDocumentState, doc.ID, doc.PurchaseOrderID)
		}

		for _, line := range doc.Details {
			if _, _, err := e.issueLocked(ctx, tx, issueLine{
				itemID:     line.ItemID,
				locationID: line.LocationID,
				quantity:   line.Quantity,
				performer:  cancelledBy,
				reference:  "stock-in:" + doc.ID + ":cancel",
			}); err != nil {
				return err
			}
		}

		now := e.timestamp()
		doc.Status = domain.DocumentCancelled
		doc.CancelledBy = cancelledBy
		doc.CancelledAt = &now
		if err := tx.UpdateStockIn(ctx, *doc); err != nil {
			return err
		}
		out = *doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DiscardStockIn drops a draft that was never received.
func (e *Engine) DiscardStockIn(ctx context.Context, id string) error {
	return e.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		doc, err := tx.GetStockIn(ctx, id)
		if err != nil {
			return err
		}
		if doc.Status != domain.DocumentDraft {
			return fmt.Errorf("%w: only drafts can be discarded, stock-in %s is %s", store.ErrInvalidDocumentState, doc.ID, doc.Status)
		}
		return tx.DeleteStockIn(ctx, id)
	})
}

type issueLine struct {
	itemID     string
	locationID string
	quantity   int
	performer  string
	reference  string
	note       string
}

// issueLocked removes stock inside an open transaction. The caller holds the
// item lock.
func (e *Engine) issueLocked(ctx context.Context, tx store.Tx, line issueLine) (*domain.Item, domain.StockTransaction, error) {
	if line.quantity <= 0 {
		return nil, domain.StockTransaction{}, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidInput)
	}
	item, err := tx.GetItem(ctx, line.itemID)
	if err != nil {
		return nil, domain.StockTransaction{}, err
	}
	if line.quantity > item.Quantity {
		return nil, domain.StockTransaction{}, fmt.Errorf("%w: item %s has %d on hand, requested %d", store.ErrInsufficientStock, item.ID, item.Quantity, line.quantity)
	}
	if item.LocationTracked {
		if line.locationID == "" {
			return nil, domain.StockTransaction{}, fmt.Errorf("%w: item %s is location-tracked, location is required", store.ErrInvalidInput, item.ID)
		}
		held := 0
		if split, err := tx.GetItemLocation(ctx, item.ID, line.locationID); err == nil {
			held = split.Quantity
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, domain.StockTransaction{}, err
		}
		if line.quantity > held {
			return nil, domain.StockTransaction{}, fmt.Errorf("%w: item %s holds %d at %s, requested %d", store.ErrInsufficientStock, item.ID, held, line.locationID, line.quantity)
		}
	}

	if err := e.applyMovement(ctx, tx, item, line.locationID, -line.quantity); err != nil {
		return nil, domain.StockTransaction{}, err
	}
	entry := domain.StockTransaction{
		ID:          xid.New("stx"),
		ItemID:      item.ID,
		LocationID:  line.locationID,
		Direction:   domain.DirectionOut,
		Quantity:    line.quantity,
		PerformedBy: line.performer,
		Reference:   line.reference,
		Note:        line.note,
		CreatedAt:   e.timestamp(),
	}
	if err := tx.InsertTransaction(ctx, entry); err != nil {
		return nil, domain.StockTransaction{}, err
	}
	return item, entry, nil
}

// Issue hands stock out of a location. When RequestID is set the issue
// fulfils part of an approved inventory request.
func (e *Engine) Issue(ctx context.Context, req domain.IssueRequest) (*domain.IssueResult, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidInput)
	}
	itemID := req.ItemID
	if req.RequestID != "" {
		request, err := e.repo.GetRequest(ctx, req.RequestID)
		if err != nil {
			return nil, err
		}
		if itemID == "" {
			itemID = request.ItemID
		}
		if itemID != request.ItemID {
			return nil, fmt.Errorf("%w: request %s is for item %s", store.ErrInvalidInput, request.ID, request.ItemID)
		}
	}
	if itemID == "" {
		return nil, fmt.Errorf("%w: item is required", store.ErrInvalidInput)
	}

	var out domain.IssueResult
	err := e.run(ctx, []string{itemID}, func(ctx context.Context, tx store.Tx) error {
		var request *domain.Request
		reference := req.Reference
		if req.RequestID != "" {
			r, err := tx.GetRequest(ctx, req.RequestID)
			if err != nil {
				return err
			}
			if err := checkFulfillable(r, req.Quantity); err != nil {
				return err
			}
			request = r
			if reference == "" {
				reference = "request:" + r.ID
			}
		}

		item, entry, err := e.issueLocked(ctx, tx, issueLine{
			itemID:     itemID,
			locationID: req.LocationID,
			quantity:   req.Quantity,
			performer:  req.PerformedBy,
			reference:  reference,
			note:       req.Note,
		})
		if err != nil {
			return err
		}

		if request != nil {
			request.QuantityIssued += req.Quantity
			if err := tx.UpdateRequest(ctx, *request); err != nil {
				return err
			}
			if err := e.releaseReservation(ctx, tx, item, req.Quantity); err != nil {
				return err
			}
			out.Request = request
		}
		out.Item = *item
		out.Transaction = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Adjust records a write-off or correction. Shrinkage types take a positive
// quantity and remove it; return and correction take a signed delta.
func (e *Engine) Adjust(ctx context.Context, req domain.AdjustRequest) (*domain.AdjustResult, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown adjustment type %q", store.ErrInvalidInput, req.Type)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: adjustment reason is required", store.ErrInvalidInput)
	}
	delta := req.Quantity
	if req.Type.Shrinkage() {
		if req.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s quantity must be positive", store.ErrInvalidInput, req.Type)
		}
		delta = -req.Quantity
	} else if req.Quantity == 0 {
		return nil, fmt.Errorf("%w: adjustment quantity must not be zero", store.ErrInvalidInput)
	}

	var out domain.AdjustResult
	err := e.run(ctx, []string{req.ItemID}, func(ctx context.Context, tx store.Tx) error {
		item, err := tx.GetItem(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if delta > 0 && item.Retired {
			return fmt.Errorf("%w: item %s is retired", store.ErrInvalidInput, item.ID)
		}
		if err := e.applyMovement(ctx, tx, item, req.LocationID, delta); err != nil {
			return err
		}
		entry := domain.StockAdjustment{
			ID:              xid.New("adj"),
			ItemID:          item.ID,
			LocationID:      req.LocationID,
			Type:            req.Type,
			Delta:           delta,
			Reason:          strings.TrimSpace(req.Reason),
			ReferenceNumber: req.ReferenceNumber,
			AdjustedBy:      req.AdjustedBy,
			CreatedAt:       e.timestamp(),
		}
		if err := tx.InsertAdjustment(ctx, entry); err != nil {
			return err
		}
		out = domain.AdjustResult{Item: *item, Adjustment: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *Engine) ListTransactions(ctx context.Context, filter domain.MovementFilter) ([]domain.StockTransaction, error) {
	return e.repo.ListTransactions(ctx, filter)
}

func (e *Engine) ListAdjustments(ctx context.Context, filter domain.MovementFilter) ([]domain.StockAdjustment, error) {
	return e.repo.ListAdjustments(ctx, filter)
}

func detailItemIDs(details []domain.StockDetail) []string {
	ids := make([]string, 0, len(details))
	for _, line := range details {
		ids = append(ids, line.ItemID)
	}
	return ids
}
