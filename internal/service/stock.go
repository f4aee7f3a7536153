package service

import (
	"context"

	"go.uber.org/zap"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/events"
)

func (s *Service) CreateStockIn(ctx context.Context, req domain.StockInCreateRequest) (domain.StockIn, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.StockIn{}, err
	}
	req.CreatedBy = actor.Username
	req.SupplierID = clean(req.SupplierID)
	for i := range req.Details {
		req.Details[i].ItemID = clean(req.Details[i].ItemID)
		req.Details[i].LocationID = clean(req.Details[i].LocationID)
	}

	doc, err := s.engine.CreateStockIn(ctx, req)
	if err != nil {
		return domain.StockIn{}, s.fail("create_stock_in", actor, err)
	}
	s.log.Info("stock-in drafted", zap.String("stock_in_id", doc.ID), zap.Int("lines", len(doc.Details)), zap.String("actor", actor.Username))
	return *doc, nil
}

func (s *Service) GetStockIn(ctx context.Context, id string) (domain.StockIn, error) {
	if _, err := requireManager(ctx); err != nil {
		return domain.StockIn{}, err
	}
	doc, err := s.engine.GetStockIn(ctx, clean(id))
	if err != nil {
		return domain.StockIn{}, err
	}
	return *doc, nil
}

func (s *Service) ListStockIns(ctx context.Context, status domain.DocumentStatus, limit int) ([]domain.StockIn, error) {
	if _, err := requireManager(ctx); err != nil {
		return nil, err
	}
	return s.engine.ListStockIns(ctx, status, clampLimit(limit))
}

func (s *Service) ReceiveStockIn(ctx context.Context, id string) (domain.StockIn, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.StockIn{}, err
	}
	doc, err := s.engine.ReceiveStockIn(ctx, clean(id), actor.Username)
	if err != nil {
		return domain.StockIn{}, s.fail("receive_stock_in", actor, err, zap.String("stock_in_id", id))
	}
	s.log.Info("stock-in received", zap.String("stock_in_id", doc.ID), zap.String("actor", actor.Username))
	s.publish(ctx, events.StockInReceived, doc.ID, actor, doc)
	return *doc, nil
}

func (s *Service) CancelStockIn(ctx context.Context, id string) (domain.StockIn, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.StockIn{}, err
	}
	doc, err := s.engine.CancelStockIn(ctx, clean(id), actor.Username)
	if err != nil {
		return domain.StockIn{}, s.fail("cancel_stock_in", actor, err, zap.String("stock_in_id", id))
	}
	s.log.Info("stock-in cancelled", zap.String("stock_in_id", doc.ID), zap.String("actor", actor.Username))
	s.publish(ctx, events.StockInCancelled, doc.ID, actor, doc)
	return *doc, nil
}

func (s *Service) DiscardStockIn(ctx context.Context, id string) error {
	actor, err := requireManager(ctx)
	if err != nil {
		return err
	}
	if err := s.engine.DiscardStockIn(ctx, clean(id)); err != nil {
		return s.fail("discard_stock_in", actor, err, zap.String("stock_in_id", id))
	}
	s.log.Info("stock-in discarded", zap.String("stock_in_id", id), zap.String("actor", actor.Username))
	return nil
}

func (s *Service) Issue(ctx context.Context, req domain.IssueRequest) (domain.IssueResult, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.IssueResult{}, err
	}
	req.PerformedBy = actor.Username
	req.ItemID = clean(req.ItemID)
	req.LocationID = clean(req.LocationID)
	req.RequestID = clean(req.RequestID)

	res, err := s.engine.Issue(ctx, req)
	if err != nil {
		return domain.IssueResult{}, s.fail("issue", actor, err, zap.String("item_id", req.ItemID), zap.Int("quantity", req.Quantity))
	}
	s.log.Info("stock issued",
		zap.String("item_id", res.Item.ID),
		zap.String("location_id", req.LocationID),
		zap.Int("quantity", req.Quantity),
		zap.Int("on_hand", res.Item.Quantity),
		zap.String("actor", actor.Username),
	)
	s.publish(ctx, events.StockIssued, res.Item.ID, actor, res.Transaction)
	if res.Request != nil {
		s.publish(ctx, events.RequestFulfilled, res.Request.ID, actor, res.Request)
	}
	return *res, nil
}

func (s *Service) Adjust(ctx context.Context, req domain.AdjustRequest) (domain.AdjustResult, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.AdjustResult{}, err
	}
	req.AdjustedBy = actor.Username
	req.ItemID = clean(req.ItemID)
	req.LocationID = clean(req.LocationID)

	res, err := s.engine.Adjust(ctx, req)
	if err != nil {
		return domain.AdjustResult{}, s.fail("adjust", actor, err, zap.String("item_id", req.ItemID), zap.String("type", string(req.Type)))
	}
	s.log.Info("stock adjusted",
		zap.String("item_id", res.Item.ID),
		zap.String("type", string(res.Adjustment.Type)),
		zap.Int("delta", res.Adjustment.Delta),
		zap.String("actor", actor.Username),
	)
	s.publish(ctx, events.StockAdjusted, res.Item.ID, actor, res.Adjustment)
	return *res, nil
}

func (s *Service) MoveStock(ctx context.Context, req domain.MoveRequest) (domain.MoveResult, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.MoveResult{}, err
	}
	req.PerformedBy = actor.Username
	req.ItemID = clean(req.ItemID)
	req.FromLocationID = clean(req.FromLocationID)
	req.ToLocationID = clean(req.ToLocationID)

	res, err := s.engine.MoveStock(ctx, req)
	if err != nil {
		return domain.MoveResult{}, s.fail("move", actor, err, zap.String("item_id", req.ItemID))
	}
	s.log.Info("stock moved",
		zap.String("item_id", req.ItemID),
		zap.String("from", req.FromLocationID),
		zap.String("to", req.ToLocationID),
		zap.Int("quantity", req.Quantity),
		zap.String("actor", actor.Username),
	)
	s.publish(ctx, events.StockMoved, req.ItemID, actor, res)
	return *res, nil
}

func (s *Service) AssignBin(ctx context.Context, req domain.BinAssignRequest) (domain.ItemLocation, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.ItemLocation{}, err
	}
	req.ItemID = clean(req.ItemID)
	req.LocationID = clean(req.LocationID)
	split, err := s.engine.AssignBin(ctx, req)
	if err != nil {
		return domain.ItemLocation{}, s.fail("assign_bin", actor, err, zap.String("item_id", req.ItemID))
	}
	return *split, nil
}

func (s *Service) ListTransactions(ctx context.Context, filter domain.MovementFilter) ([]domain.StockTransaction, error) {
	if _, err := requireManager(ctx); err != nil {
		return nil, err
	}
	filter.Limit = clampLimit(filter.Limit)
	return s.engine.ListTransactions(ctx, filter)
}

func (s *Service) ListAdjustments(ctx context.Context, filter domain.MovementFilter) ([]domain.StockAdjustment, error) {
	if _, err := requireManager(ctx); err != nil {
		return nil, err
	}
	filter.Limit = clampLimit(filter.Limit)
	return s.engine.ListAdjustments(ctx, filter)
}
