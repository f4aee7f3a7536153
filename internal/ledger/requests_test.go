package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/store"
)

func (f *fixture) submit(t *testing.T, kind domain.RequestKind, qty int) *domain.Request {
	t.Helper()
	req, err := f.engine.SubmitRequest(context.Background(), domain.RequestCreateRequest{
		Kind:        kind,
		ItemID:      f.item.ID,
		LocationID:  f.warehouse.ID,
		Quantity:    qty,
		Reason:      "science lab",
		RequestedBy: "emp-42",
	})
	require.NoError(t, err)
	return req
}

func TestAssetRequestConfirmNeedsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.receive(t, f.item.ID, f.warehouse.ID, 1)

	req := f.submit(t, domain.RequestAsset, 3)
	approved, err := f.engine.Approve(ctx, req.ID, "keeper", 2)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, approved.Status)
	assert.Equal(t, 1, f.onHand(t, f.item.ID))

	item, err := f.engine.GetItem(ctx, f.item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, item.QuantityReserved)
	assert.Equal(t, 0, item.Available())

	_, err = f.engine.Confirm(ctx, req.ID, "keeper", "")
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
	current, err := f.engine.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, current.Status)
	assert.Equal(t, 1, f.onHand(t, f.item.ID))

	f.receive(t, f.item.ID, f.warehouse.ID, 1)
	confirmed, err := f.engine.Confirm(ctx, req.ID, "keeper", "")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestConfirmed, confirmed.Status)
	assert.Equal(t, 2, confirmed.QuantityIssued)
	assert.Equal(t, 0, f.onHand(t, f.item.ID))

	item, err = f.engine.GetItem(ctx, f.item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, item.QuantityReserved)

	_, err = f.engine.Confirm(ctx, req.ID, "keeper", "")
	assert.ErrorIs(t, err, store.ErrAlreadyProcessed)
	f.assertConsistent(t, f.item.ID)
}

func TestRequestDecisionsAreSingleShot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.submit(t, domain.RequestAsset, 1)
	_, err := f.engine.Confirm(ctx, req.ID, "keeper", "")
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	rejected, err := f.engine.Reject(ctx, req.ID, "keeper", "  budget  ")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestRejected, rejected.Status)
	assert.Equal(t, "budget", rejected.RejectionReason)

	_, err = f.engine.Reject(ctx, req.ID, "keeper", "again")
	assert.ErrorIs(t, err, store.ErrAlreadyProcessed)
	_, err = f.engine.Approve(ctx, req.ID, "keeper", 1)
	assert.ErrorIs(t, err, store.ErrAlreadyProcessed)
	_, err = f.engine.Confirm(ctx, req.ID, "keeper", "")
	assert.ErrorIs(t, err, store.ErrAlreadyProcessed)

	other := f.submit(t, domain.RequestInventory, 4)
	_, err = f.engine.Approve(ctx, other.ID, "keeper", 5)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = f.engine.Approve(ctx, other.ID, "keeper", 4)
	require.NoError(t, err)
	_, err = f.engine.Approve(ctx, other.ID, "keeper", 4)
	assert.ErrorIs(t, err, store.ErrAlreadyProcessed)
	_, err = f.engine.Confirm(ctx, other.ID, "keeper", "")
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestInventoryRequestFulfilledByIssues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.receive(t, f.item.ID, f.warehouse.ID, 10)

	req := f.submit(t, domain.RequestInventory, 3)
	_, err := f.engine.Fulfill(ctx, req.ID, domain.FulfillRequest{Quantity: 1, LocationID: f.warehouse.ID}, "keeper")
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	_, err = f.engine.Approve(ctx, req.ID, "keeper", 3)
	require.NoError(t, err)

	res, err := f.engine.Fulfill(ctx, req.ID, domain.FulfillRequest{Quantity: 2, LocationID: f.warehouse.ID}, "keeper")
	require.NoError(t, err)
	require.NotNil(t, res.Request)
	assert.Equal(t, 2, res.Request.QuantityIssued)
	assert.Equal(t, "request:"+req.ID, res.Transaction.Reference)
	assert.Equal(t, 1, res.Item.QuantityReserved)

	_, err = f.engine.Fulfill(ctx, req.ID, domain.FulfillRequest{Quantity: 2, LocationID: f.warehouse.ID}, "keeper")
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = f.engine.Fulfill(ctx, req.ID, domain.FulfillRequest{Quantity: 1, LocationID: f.warehouse.ID}, "keeper")
	require.NoError(t, err)
	_, err = f.engine.Fulfill(ctx, req.ID, domain.FulfillRequest{Quantity: 1, LocationID: f.warehouse.ID}, "keeper")
	assert.ErrorIs(t, err, store.ErrAlreadyProcessed)

	item, err := f.engine.GetItem(ctx, f.item.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, item.Quantity)
	assert.Equal(t, 0, item.QuantityReserved)
	f.assertConsistent(t, f.item.ID)
}

func TestClosingRequestReleasesUnissuedReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.receive(t, f.item.ID, f.warehouse.ID, 10)

	pending := f.submit(t, domain.RequestInventory, 2)
	_, err := f.engine.Close(ctx, pending.ID, "keeper", "no longer needed")
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	req := f.submit(t, domain.RequestInventory, 4)
	_, err = f.engine.Approve(ctx, req.ID, "keeper", 4)
	require.NoError(t, err)
	_, err = f.engine.Fulfill(ctx, req.ID, domain.FulfillRequest{Quantity: 1, LocationID: f.warehouse.ID}, "keeper")
	require.NoError(t, err)

	_, err = f.engine.Close(ctx, req.ID, "keeper", "  ")
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	closed, err := f.engine.Close(ctx, req.ID, "keeper", "term ended")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestClosed, closed.Status)
	assert.Equal(t, "keeper", closed.ClosedBy)
	assert.Equal(t, "term ended", closed.CloseReason)
	assert.NotNil(t, closed.ClosedAt)
	assert.Equal(t, 1, closed.QuantityIssued)

	item, err := f.engine.GetItem(ctx, f.item.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, item.Quantity)
	assert.Equal(t, 0, item.QuantityReserved)
	assert.Equal(t, 9, item.Available())

	_, err = f.engine.Close(ctx, req.ID, "keeper", "again")
	assert.ErrorIs(t, err, store.ErrAlreadyProcessed)
	_, err = f.engine.Fulfill(ctx, req.ID, domain.FulfillRequest{Quantity: 1, LocationID: f.warehouse.ID}, "keeper")
	assert.ErrorIs(t, err, store.ErrAlreadyProcessed)
	f.assertConsistent(t, f.item.ID)
}

func TestSubmitRequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.SubmitRequest(ctx, domain.RequestCreateRequest{ItemID: f.item.ID, Quantity: 0, RequestedBy: "emp-1"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = f.engine.SubmitRequest(ctx, domain.RequestCreateRequest{ItemID: "item-missing", Quantity: 1, RequestedBy: "emp-1"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	req, err := f.engine.SubmitRequest(ctx, domain.RequestCreateRequest{ItemID: f.item.ID, Quantity: 2, RequestedBy: "emp-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestInventory, req.Kind)
	assert.Equal(t, domain.RequestPending, req.Status)

	list, err := f.engine.ListRequests(ctx, domain.RequestFilter{RequestedBy: "emp-1"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
