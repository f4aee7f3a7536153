package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPOStatusNeverMovesBackward(t *testing.T) {
	cases := []struct {
		from POStatus
		to   POStatus
		want bool
	}{
		{POPending, POOrdered, true},
		{POPending, POPartiallyReceived, true},
		{POOrdered, POReceived, true},
		{POPartiallyReceived, POReceived, true},
		{POPartiallyReceived, POCancelled, true},
		{POPartiallyReceived, POOrdered, false},
		{POReceived, POPartiallyReceived, false},
		{POReceived, POCancelled, false},
		{POCancelled, POPending, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestRequestConfirmationOnlyForAssets(t *testing.T) {
	assert.True(t, RequestApproved.CanTransitionTo(RequestAsset, RequestConfirmed))
	assert.False(t, RequestApproved.CanTransitionTo(RequestInventory, RequestConfirmed))
	assert.False(t, RequestPending.CanTransitionTo(RequestAsset, RequestConfirmed))
	assert.False(t, RequestRejected.CanTransitionTo(RequestAsset, RequestApproved))
	assert.True(t, RequestRejected.Terminal())
	assert.True(t, RequestConfirmed.Terminal())
	assert.False(t, RequestApproved.Terminal())
}

func TestApprovedRequestsCanBeClosed(t *testing.T) {
	assert.True(t, RequestApproved.CanTransitionTo(RequestInventory, RequestClosed))
	assert.True(t, RequestApproved.CanTransitionTo(RequestAsset, RequestClosed))
	assert.False(t, RequestPending.CanTransitionTo(RequestInventory, RequestClosed))
	assert.False(t, RequestClosed.CanTransitionTo(RequestInventory, RequestApproved))
	assert.True(t, RequestClosed.Terminal())
	assert.True(t, RequestClosed.Valid())
	assert.Zero(t, Request{Status: RequestClosed, QuantityApproved: 5, QuantityIssued: 2}.Unissued())
}

func TestAdjustmentShrinkage(t *testing.T) {
	for _, typ := range []AdjustmentType{AdjustmentDamaged, AdjustmentLost, AdjustmentExpired} {
		assert.True(t, typ.Shrinkage(), typ)
	}
	assert.False(t, AdjustmentReturn.Shrinkage())
	assert.False(t, AdjustmentCorrection.Shrinkage())
	assert.False(t, AdjustmentType("stolen").Valid())
}

func TestItemAvailableNeverNegative(t *testing.T) {
	assert.Equal(t, 3, Item{Quantity: 5, QuantityReserved: 2}.Available())
	assert.Equal(t, 0, Item{Quantity: 1, QuantityReserved: 2}.Available())
}

func TestRequestUnissued(t *testing.T) {
	assert.Equal(t, 0, Request{Status: RequestPending, QuantityApproved: 3}.Unissued())
	assert.Equal(t, 1, Request{Status: RequestApproved, QuantityApproved: 3, QuantityIssued: 2}.Unissued())
}
