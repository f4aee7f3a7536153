package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/events"
)

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.Supplier{}, err
	}
	supplier, err := s.engine.CreateSupplier(ctx, req)
	if err != nil {
		return domain.Supplier{}, s.fail("create_supplier", actor, err)
	}
	return *supplier, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	if _, err := requireManager(ctx); err != nil {
		return nil, err
	}
	return s.engine.ListSuppliers(ctx)
}

func (s *Service) CreatePurchaseOrder(ctx context.Context, req domain.PurchaseOrderCreateRequest) (domain.PurchaseOrder, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	req.CreatedBy = actor.Username
	req.SupplierID = clean(req.SupplierID)
	for i := range req.Items {
		req.Items[i].ItemID = clean(req.Items[i].ItemID)
	}

	po, err := s.engine.CreatePurchaseOrder(ctx, req)
	if err != nil {
		return domain.PurchaseOrder{}, s.fail("create_purchase_order", actor, err)
	}
	s.log.Info("purchase order created",
		zap.String("purchase_order_id", po.ID),
		zap.String("po_number", po.PONumber),
		zap.String("total", po.TotalAmount.StringFixed(2)),
		zap.String("actor", actor.Username),
	)
	return *po, nil
}

func (s *Service) GetPurchaseOrder(ctx context.Context, id string) (domain.PurchaseOrder, error) {
	if _, err := requireManager(ctx); err != nil {
		return domain.PurchaseOrder{}, err
	}
	po, err := s.engine.GetPurchaseOrder(ctx, clean(id))
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	return *po, nil
}

func (s *Service) ListPurchaseOrders(ctx context.Context, status string, limit int) ([]domain.PurchaseOrder, error) {
	if _, err := requireManager(ctx); err != nil {
		return nil, err
	}
	return s.engine.ListPurchaseOrders(ctx, domain.POStatus(strings.ToLower(clean(status))), clampLimit(limit))
}

func (s *Service) PurchaseOrderHistory(ctx context.Context, id string) ([]domain.PurchaseOrderStatusChange, error) {
	if _, err := requireManager(ctx); err != nil {
		return nil, err
	}
	return s.engine.PurchaseOrderHistory(ctx, clean(id))
}

func (s *Service) MarkOrdered(ctx context.Context, id string) (domain.PurchaseOrder, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	po, err := s.engine.MarkOrdered(ctx, clean(id), actor.Username)
	if err != nil {
		return domain.PurchaseOrder{}, s.fail("mark_ordered", actor, err, zap.String("purchase_order_id", id))
	}
	return *po, nil
}

func (s *Service) RecordReceipt(ctx context.Context, id string, req domain.ReceiptRequest) (domain.ReceiptResult, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.ReceiptResult{}, err
	}
	req.ReceivedBy = actor.Username
	req.LocationID = clean(req.LocationID)

	res, err := s.engine.RecordReceipt(ctx, clean(id), req)
	if err != nil {
		return domain.ReceiptResult{}, s.fail("record_receipt", actor, err, zap.String("purchase_order_id", id))
	}
	s.log.Info("purchase order receipt recorded",
		zap.String("purchase_order_id", res.PurchaseOrder.ID),
		zap.String("status", string(res.PurchaseOrder.Status)),
		zap.String("stock_in_id", res.StockIn.ID),
		zap.String("actor", actor.Username),
	)
	s.publish(ctx, events.PurchaseOrderReceipt, res.PurchaseOrder.ID, actor, res)
	return *res, nil
}

func (s *Service) CancelPurchaseOrder(ctx context.Context, id string) (domain.PurchaseOrder, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	po, err := s.engine.CancelPurchaseOrder(ctx, clean(id), actor.Username)
	if err != nil {
		return domain.PurchaseOrder{}, s.fail("cancel_purchase_order", actor, err, zap.String("purchase_order_id", id))
	}
	s.log.Info("purchase order cancelled", zap.String("purchase_order_id", po.ID), zap.String("actor", actor.Username))
	s.publish(ctx, events.PurchaseOrderCancelled, po.ID, actor, po)
	return *po, nil
}
