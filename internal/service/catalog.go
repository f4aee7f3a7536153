package service

import (
	"context"

	"go.uber.org/zap"

	"stockroom/backend/internal/domain"
)

func (s *Service) ListItems(ctx context.Context, includeRetired bool) ([]domain.Item, error) {
	if _, err := requireRole(ctx); err != nil {
		return nil, err
	}
	return s.engine.ListItems(ctx, includeRetired)
}

func (s *Service) GetItem(ctx context.Context, id string) (domain.Item, error) {
	if _, err := requireRole(ctx); err != nil {
		return domain.Item{}, err
	}
	item, err := s.engine.GetItem(ctx, clean(id))
	if err != nil {
		return domain.Item{}, err
	}
	return *item, nil
}

func (s *Service) CreateItem(ctx context.Context, req domain.ItemCreateRequest) (domain.Item, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.Item{}, err
	}
	req.CreatedBy = actor.Username

	item, err := s.engine.CreateItem(ctx, req)
	if err != nil {
		return domain.Item{}, s.fail("create_item", actor, err)
	}
	s.log.Info("item created", zap.String("item_id", item.ID), zap.String("sku", item.SKU), zap.String("actor", actor.Username))
	return *item, nil
}

func (s *Service) RetireItem(ctx context.Context, id string) (domain.Item, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.Item{}, err
	}
	item, err := s.engine.RetireItem(ctx, clean(id))
	if err != nil {
		return domain.Item{}, s.fail("retire_item", actor, err, zap.String("item_id", id))
	}
	s.log.Info("item retired", zap.String("item_id", item.ID), zap.String("actor", actor.Username))
	return *item, nil
}

func (s *Service) GetSplit(ctx context.Context, itemID string) ([]domain.ItemLocation, error) {
	if _, err := requireRole(ctx); err != nil {
		return nil, err
	}
	return s.engine.GetSplit(ctx, clean(itemID))
}

func (s *Service) Reconcile(ctx context.Context, itemID string) (domain.ReconciliationReport, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.ReconciliationReport{}, err
	}
	report, err := s.engine.Reconcile(ctx, clean(itemID))
	if err != nil {
		return domain.ReconciliationReport{}, err
	}
	if !report.Consistent {
		s.log.Error("item ledger out of balance",
			zap.String("item_id", report.ItemID),
			zap.Int("on_hand", report.OnHand),
			zap.Int("split_total", report.SplitTotal),
			zap.Int("ledger_total", report.LedgerTotal),
			zap.String("actor", actor.Username),
		)
	}
	return *report, nil
}

func (s *Service) ListLocations(ctx context.Context) ([]domain.Location, error) {
	if _, err := requireRole(ctx); err != nil {
		return nil, err
	}
	return s.engine.ListLocations(ctx)
}

func (s *Service) CreateLocation(ctx context.Context, req domain.LocationCreateRequest) (domain.Location, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.Location{}, err
	}
	loc, err := s.engine.CreateLocation(ctx, req)
	if err != nil {
		return domain.Location{}, s.fail("create_location", actor, err)
	}
	s.log.Info("location created", zap.String("location_id", loc.ID), zap.String("type", string(loc.Type)), zap.String("actor", actor.Username))
	return *loc, nil
}

func (s *Service) SetLocationStatus(ctx context.Context, id string, req domain.LocationStatusRequest) (domain.Location, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.Location{}, err
	}
	loc, err := s.engine.SetLocationStatus(ctx, clean(id), req.Status)
	if err != nil {
		return domain.Location{}, s.fail("set_location_status", actor, err, zap.String("location_id", id))
	}
	s.log.Info("location status changed", zap.String("location_id", loc.ID), zap.String("status", string(loc.Status)), zap.String("actor", actor.Username))
	return *loc, nil
}
