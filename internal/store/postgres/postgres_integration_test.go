package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/ledger"
	"stockroom/backend/internal/lock"
	"stockroom/backend/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("INVENTORY_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set INVENTORY_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestLedgerRoundTripOnPostgres(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	engine := ledger.NewEngine(s, lock.NewLocal(0))

	loc, err := engine.CreateLocation(ctx, domain.LocationCreateRequest{Name: "IT Warehouse", Type: domain.LocationWarehouse})
	if err != nil {
		t.Fatalf("create location: %v", err)
	}
	item, err := engine.CreateItem(ctx, domain.ItemCreateRequest{Name: "IT Beaker", UnitPrice: decimal.NewNullDecimal(decimal.RequireFromString("4.20"))})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	doc, err := engine.CreateStockIn(ctx, domain.StockInCreateRequest{
		Details: []domain.StockDetailInput{{ItemID: item.ID, Quantity: 6, UnitCost: decimal.RequireFromString("3.10"), LocationID: loc.ID}},
	})
	if err != nil {
		t.Fatalf("create stock-in: %v", err)
	}
	if _, err := engine.ReceiveStockIn(ctx, doc.ID, "it"); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if _, err := engine.ReceiveStockIn(ctx, doc.ID, "it"); !errors.Is(err, store.ErrAlreadyProcessed) {
		t.Fatalf("expected already processed, got %v", err)
	}
	if _, err := engine.Issue(ctx, domain.IssueRequest{ItemID: item.ID, LocationID: loc.ID, Quantity: 7}); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if _, err := engine.Issue(ctx, domain.IssueRequest{ItemID: item.ID, LocationID: loc.ID, Quantity: 2, PerformedBy: "it"}); err != nil {
		t.Fatalf("issue: %v", err)
	}

	report, err := engine.Reconcile(ctx, item.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !report.Consistent || report.OnHand != 4 || report.SplitTotal != 4 {
		t.Fatalf("unexpected report: %+v", report)
	}

	got, err := s.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if !got.UnitPrice.Valid || !got.UnitPrice.Decimal.Equal(decimal.RequireFromString("4.20")) {
		t.Fatalf("unit price not round-tripped: %+v", got.UnitPrice)
	}
}

func TestAtomicRollsBackOnPostgres(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	engine := ledger.NewEngine(s, nil)

	item, err := engine.CreateItem(ctx, domain.ItemCreateRequest{Name: "IT Rollback"})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	boom := errors.New("boom")
	err = s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.GetItem(ctx, item.ID)
		if err != nil {
			return err
		}
		current.Name = "renamed"
		if err := tx.UpdateItem(ctx, *current); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, err := s.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Name != "IT Rollback" {
		t.Fatalf("expected rollback, got name %q", got.Name)
	}
}

func draftReceipt(t *testing.T, engine *ledger.Engine, name string, locationID string, qty int) string {
	t.Helper()
	ctx := context.Background()
	item, err := engine.CreateItem(ctx, domain.ItemCreateRequest{Name: name})
	if err != nil {
		t.Fatalf("create item %s: %v", name, err)
	}
	doc, err := engine.CreateStockIn(ctx, domain.StockInCreateRequest{
		Details: []domain.StockDetailInput{{ItemID: item.ID, Quantity: qty, LocationID: locationID}},
	})
	if err != nil {
		t.Fatalf("create stock-in for %s: %v", name, err)
	}
	return doc.ID
}

func TestReceiptsOfDifferentItemsShareLocation(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	engine := ledger.NewEngine(s, lock.NewLocal(0))

	loc, err := engine.CreateLocation(ctx, domain.LocationCreateRequest{Name: "IT Shared Store", Type: domain.LocationWarehouse})
	if err != nil {
		t.Fatalf("create location: %v", err)
	}
	first := draftReceipt(t, engine, "IT Pipette", loc.ID, 3)
	second := draftReceipt(t, engine, "IT Burette", loc.ID, 4)

	// Hold a transaction that has read the location while the second
	// receipt places stock into it.
	err = s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetLocation(ctx, loc.ID); err != nil {
			return err
		}
		if _, err := engine.ReceiveStockIn(ctx, second, "it"); err != nil {
			t.Errorf("receive while location was read elsewhere: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("outer transaction: %v", err)
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, id := range []string{first, draftReceipt(t, engine, "IT Flask", loc.ID, 5)} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := engine.ReceiveStockIn(ctx, id, "it")
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent receipt into shared location: %v", err)
		}
	}
	var load int
	err = s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		load, err = tx.LocationLoad(ctx, loc.ID)
		return err
	})
	if err != nil || load != 12 {
		t.Fatalf("expected 12 units at shared location, got %d (%v)", load, err)
	}
}

func TestCapacityBoundLocationStillSerializes(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	engine := ledger.NewEngine(s, lock.NewLocal(0))

	capacity := 100
	loc, err := engine.CreateLocation(ctx, domain.LocationCreateRequest{Name: "IT Small Shelf", Type: domain.LocationClassroom, Capacity: &capacity})
	if err != nil {
		t.Fatalf("create location: %v", err)
	}
	doc := draftReceipt(t, engine, "IT Test Tube", loc.ID, 2)

	err = s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.LockLocation(ctx, loc.ID); err != nil {
			return err
		}
		if _, err := engine.ReceiveStockIn(ctx, doc, "it"); !errors.Is(err, store.ErrBusy) {
			t.Errorf("expected busy while capacity row is locked, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("outer transaction: %v", err)
	}
	if _, err := engine.ReceiveStockIn(ctx, doc, "it"); err != nil {
		t.Fatalf("receive after lock released: %v", err)
	}
}
