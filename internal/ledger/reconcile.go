package ledger

import (
	"context"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/store"
)

// Reconcile recomputes an item's quantity from its movement history and
// compares it with the stored on-hand total and the location splits. Items
// start at zero, so the history alone must explain the current total.
func (e *Engine) Reconcile(ctx context.Context, itemID string) (*domain.ReconciliationReport, error) {
	var report domain.ReconciliationReport
	err := e.run(ctx, []string{itemID}, func(ctx context.Context, tx store.Tx) error {
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		splits, err := tx.ListItemLocations(ctx, itemID)
		if err != nil {
			return err
		}
		entries, err := tx.ListTransactions(ctx, domain.MovementFilter{ItemID: itemID})
		if err != nil {
			return err
		}
		adjustments, err := tx.ListAdjustments(ctx, domain.MovementFilter{ItemID: itemID})
		if err != nil {
			return err
		}

		report = domain.ReconciliationReport{
			ItemID:          item.ID,
			OnHand:          item.Quantity,
			LocationTracked: item.LocationTracked,
		}
		for _, split := range splits {
			report.SplitTotal += split.Quantity
		}
		for _, entry := range entries {
			report.LedgerTotal += entry.Signed()
		}
		for _, adj := range adjustments {
			report.LedgerTotal += adj.Delta
		}
		report.Consistent = report.LedgerTotal == report.OnHand &&
			(!item.LocationTracked || report.SplitTotal == report.OnHand)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}
