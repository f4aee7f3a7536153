package ledger

import (
	"context"
	"fmt"
	"strings"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/store"
	"stockroom/backend/internal/xid"
)

func (e *Engine) SubmitRequest(ctx context.Context, req domain.RequestCreateRequest) (*domain.Request, error) {
	kind := req.Kind
	if kind == "" {
		kind = domain.RequestInventory
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown request kind %q", store.ErrInvalidInput, req.Kind)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: requested quantity must be positive", store.ErrInvalidInput)
	}
	if strings.TrimSpace(req.RequestedBy) == "" {
		return nil, fmt.Errorf("%w: requester is required", store.ErrInvalidInput)
	}

	request := domain.Request{
		ID:                xid.New("req"),
		Kind:              kind,
		ItemID:            req.ItemID,
		LocationID:        req.LocationID,
		RequestedBy:       req.RequestedBy,
		DepartmentID:      req.DepartmentID,
		QuantityRequested: req.Quantity,
		Status:            domain.RequestPending,
		Reason:            req.Reason,
		CreatedAt:         e.timestamp(),
	}
	err := e.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		item, err := tx.GetItem(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if item.Retired {
			return fmt.Errorf("%w: item %s is retired", store.ErrInvalidInput, item.ID)
		}
		if req.LocationID != "" {
			if _, err := tx.GetLocation(ctx, req.LocationID); err != nil {
				return err
			}
		}
		return tx.InsertRequest(ctx, request)
	})
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (e *Engine) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	return e.repo.GetRequest(ctx, id)
}

func (e *Engine) ListRequests(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error) {
	return e.repo.ListRequests(ctx, filter)
}

// Approve commits approvedQty to the requester. No stock moves; the approved
// quantity is only reserved, and may exceed what is on hand.
func (e *Engine) Approve(ctx context.Context, id string, approver string, approvedQty int) (*domain.Request, error) {
	pending, err := e.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	var out domain.Request
	err = e.run(ctx, []string{pending.ItemID}, func(ctx context.Context, tx store.Tx) error {
		request, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if err := checkDecidable(request, domain.RequestApproved); err != nil {
			return err
		}
		if approvedQty < 1 || approvedQty > request.QuantityRequested {
			return fmt.Errorf("%w: approved quantity must be between 1 and %d", store.ErrInvalidInput, request.QuantityRequested)
		}
		item, err := tx.GetItem(ctx, request.ItemID)
		if err != nil {
			return err
		}
		item.QuantityReserved += approvedQty
		item.UpdatedAt = e.timestamp()
		if err := tx.UpdateItem(ctx, *item); err != nil {
			return err
		}

		now := e.timestamp()
		request.Status = domain.RequestApproved
		request.QuantityApproved = approvedQty
		request.ProcessedBy = approver
		request.ProcessedAt = &now
		if err := tx.UpdateRequest(ctx, *request); err != nil {
			return err
		}
		out = *request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *Engine) Reject(ctx context.Context, id string, approver string, reason string) (*domain.Request, error) {
	var out domain.Request
	err := e.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		request, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if err := checkDecidable(request, domain.RequestRejected); err != nil {
			return err
		}
		now := e.timestamp()
		request.Status = domain.RequestRejected
		request.RejectionReason = strings.TrimSpace(reason)
		request.ProcessedBy = approver
		request.ProcessedAt = &now
		if err := tx.UpdateRequest(ctx, *request); err != nil {
			return err
		}
		out = *request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Confirm hands over an approved asset request: the approved quantity is
// issued and the request becomes terminal. If the issue fails the request
// stays approved.
func (e *Engine) Confirm(ctx context.Context, id string, confirmedBy string, locationID string) (*domain.Request, error) {
	current, err := e.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	var out domain.Request
	err = e.run(ctx, []string{current.ItemID}, func(ctx context.Context, tx store.Tx) error {
		request, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if request.Kind != domain.RequestAsset {
			return fmt.Errorf("%w: only asset requests are confirmed, request %s is %s", store.ErrInvalidTransition, request.ID, request.Kind)
		}
		if request.Status.Terminal() {
			return fmt.Errorf("%w: request %s is %s", store.ErrAlreadyProcessed, request.ID, request.Status)
		}
		if !request.Status.CanTransitionTo(request.Kind, domain.RequestConfirmed) {
			return fmt.Errorf("%w: request %s is %s, not approved", store.ErrInvalidTransition, request.ID, request.Status)
		}

		source := locationID
		if source == "" {
			source = request.LocationID
		}
		qty := request.Unissued()
		if qty > 0 {
			item, _, err := e.issueLocked(ctx, tx, issueLine{
				itemID:     request.ItemID,
				locationID: source,
				quantity:   qty,
				performer:  confirmedBy,
				reference:  "request:" + request.ID,
			})
			if err != nil {
				return err
			}
			if err := e.releaseReservation(ctx, tx, item, qty); err != nil {
				return err
			}
		}

		now := e.timestamp()
		request.QuantityIssued += qty
		request.Status = domain.RequestConfirmed
		request.ConfirmedBy = confirmedBy
		request.ConfirmedAt = &now
		if err := tx.UpdateRequest(ctx, *request); err != nil {
			return err
		}
		out = *request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Close ends an approved request that will not be issued in full. The
// approved quantity not yet issued is released from the item's reservation.
func (e *Engine) Close(ctx context.Context, id string, closedBy string, reason string) (*domain.Request, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: closing a request needs a reason", store.ErrInvalidInput)
	}
	current, err := e.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	var out domain.Request
	err = e.run(ctx, []string{current.ItemID}, func(ctx context.Context, tx store.Tx) error {
		request, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if request.Status.Terminal() {
			return fmt.Errorf("%w: request %s is %s", store.ErrAlreadyProcessed, request.ID, request.Status)
		}
		if !request.Status.CanTransitionTo(request.Kind, domain.RequestClosed) {
			return fmt.Errorf("%w: request %s is %s, not approved", store.ErrInvalidTransition, request.ID, request.Status)
		}
		if left := request.Unissued(); left > 0 {
			item, err := tx.GetItem(ctx, request.ItemID)
			if err != nil {
				return err
			}
			if err := e.releaseReservation(ctx, tx, item, left); err != nil {
				return err
			}
		}

		now := e.timestamp()
		request.Status = domain.RequestClosed
		request.ClosedBy = closedBy
		request.ClosedAt = &now
		request.CloseReason = reason
		if err := tx.UpdateRequest(ctx, *request); err != nil {
			return err
		}
		out = *request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Fulfill issues stock against an approved inventory request.
func (e *Engine) Fulfill(ctx context.Context, id string, req domain.FulfillRequest, performer string) (*domain.IssueResult, error) {
	return e.Issue(ctx, domain.IssueRequest{
		LocationID:  req.LocationID,
		Quantity:    req.Quantity,
		RequestID:   id,
		PerformedBy: performer,
	})
}

// checkDecidable guards approve and reject. Both are single-shot: once a
// request has left pending, deciding it again is a re-process.
func checkDecidable(request *domain.Request, next domain.RequestStatus) error {
	if request.Status != domain.RequestPending {
		return fmt.Errorf("%w: request %s is %s", store.ErrAlreadyProcessed, request.ID, request.Status)
	}
	if !request.Status.CanTransitionTo(request.Kind, next) {
		return fmt.Errorf("%w: %s to %s", store.ErrInvalidTransition, request.Status, next)
	}
	return nil
}

func checkFulfillable(request *domain.Request, qty int) error {
	if request.Kind != domain.RequestInventory {
		return fmt.Errorf("%w: asset request %s is fulfilled by confirmation", store.ErrInvalidTransition, request.ID)
	}
	switch request.Status {
	case domain.RequestPending:
		return fmt.Errorf("%w: request %s is not approved", store.ErrInvalidTransition, request.ID)
	case domain.RequestRejected, domain.RequestClosed:
		return fmt.Errorf("%w: request %s is %s", store.ErrAlreadyProcessed, request.ID, request.Status)
	}
	left := request.Unissued()
	if left == 0 {
		return fmt.Errorf("%w: request %s is fully issued", store.ErrAlreadyProcessed, request.ID)
	}
	if qty > left {
		return fmt.Errorf("%w: request %s has %d left to issue, requested %d", store.ErrInvalidInput, request.ID, left, qty)
	}
	return nil
}

func (e *Engine) releaseReservation(ctx context.Context, tx store.Tx, item *domain.Item, qty int) error {
	item.QuantityReserved -= qty
	if item.QuantityReserved < 0 {
		item.QuantityReserved = 0
	}
	item.UpdatedAt = e.timestamp()
	return tx.UpdateItem(ctx, *item)
}
