package service

import (
	"context"

	"go.uber.org/zap"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/events"
)

// SubmitRequest files a request on behalf of the calling employee.
func (s *Service) SubmitRequest(ctx context.Context, req domain.RequestCreateRequest) (domain.Request, error) {
	actor, err := requireRole(ctx)
	if err != nil {
		return domain.Request{}, err
	}
	req.RequestedBy = actor.Username
	req.ItemID = clean(req.ItemID)
	req.LocationID = clean(req.LocationID)
	req.DepartmentID = clean(req.DepartmentID)

	request, err := s.engine.SubmitRequest(ctx, req)
	if err != nil {
		return domain.Request{}, s.fail("submit_request", actor, err, zap.String("item_id", req.ItemID))
	}
	s.log.Info("request submitted",
		zap.String("request_id", request.ID),
		zap.String("kind", string(request.Kind)),
		zap.Int("quantity", request.QuantityRequested),
		zap.String("actor", actor.Username),
	)
	return *request, nil
}

// GetRequest lets employees see their own requests and managers see all.
func (s *Service) GetRequest(ctx context.Context, id string) (domain.Request, error) {
	actor, err := requireRole(ctx)
	if err != nil {
		return domain.Request{}, err
	}
	request, err := s.engine.GetRequest(ctx, clean(id))
	if err != nil {
		return domain.Request{}, err
	}
	if !isManager(actor) && request.RequestedBy != actor.Username {
		return domain.Request{}, ErrForbidden
	}
	return *request, nil
}

func (s *Service) ListRequests(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error) {
	actor, err := requireRole(ctx)
	if err != nil {
		return nil, err
	}
	if !isManager(actor) {
		filter.RequestedBy = actor.Username
	}
	filter.Limit = clampLimit(filter.Limit)
	return s.engine.ListRequests(ctx, filter)
}

func (s *Service) ApproveRequest(ctx context.Context, id string, req domain.ApproveRequest) (domain.Request, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.Request{}, err
	}
	request, err := s.engine.Approve(ctx, clean(id), actor.Username, req.Quantity)
	if err != nil {
		return domain.Request{}, s.fail("approve_request", actor, err, zap.String("request_id", id))
	}
	s.log.Info("request approved", zap.String("request_id", request.ID), zap.Int("approved", request.QuantityApproved), zap.String("actor", actor.Username))
	s.publish(ctx, events.RequestApproved, request.ID, actor, request)
	return *request, nil
}

func (s *Service) RejectRequest(ctx context.Context, id string, req domain.RejectRequest) (domain.Request, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.Request{}, err
	}
	request, err := s.engine.Reject(ctx, clean(id), actor.Username, req.Reason)
	if err != nil {
		return domain.Request{}, s.fail("reject_request", actor, err, zap.String("request_id", id))
	}
	s.log.Info("request rejected", zap.String("request_id", request.ID), zap.String("actor", actor.Username))
	s.publish(ctx, events.RequestRejected, request.ID, actor, request)
	return *request, nil
}

func (s *Service) ConfirmRequest(ctx context.Context, id string, req domain.ConfirmRequest) (domain.Request, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.Request{}, err
	}
	request, err := s.engine.Confirm(ctx, clean(id), actor.Username, clean(req.LocationID))
	if err != nil {
		return domain.Request{}, s.fail("confirm_request", actor, err, zap.String("request_id", id))
	}
	s.log.Info("request confirmed", zap.String("request_id", request.ID), zap.Int("issued", request.QuantityIssued), zap.String("actor", actor.Username))
	s.publish(ctx, events.RequestConfirmed, request.ID, actor, request)
	return *request, nil
}

// CloseRequest ends an approved request short and frees its reservation.
func (s *Service) CloseRequest(ctx context.Context, id string, req domain.CloseRequest) (domain.Request, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.Request{}, err
	}
	request, err := s.engine.Close(ctx, clean(id), actor.Username, req.Reason)
	if err != nil {
		return domain.Request{}, s.fail("close_request", actor, err, zap.String("request_id", id))
	}
	s.log.Info("request closed",
		zap.String("request_id", request.ID),
		zap.Int("issued", request.QuantityIssued),
		zap.Int("approved", request.QuantityApproved),
		zap.String("actor", actor.Username))
	s.publish(ctx, events.RequestClosed, request.ID, actor, request)
	return *request, nil
}

func (s *Service) FulfillRequest(ctx context.Context, id string, req domain.FulfillRequest) (domain.IssueResult, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.IssueResult{}, err
	}
	req.LocationID = clean(req.LocationID)
	res, err := s.engine.Fulfill(ctx, clean(id), req, actor.Username)
	if err != nil {
		return domain.IssueResult{}, s.fail("fulfill_request", actor, err, zap.String("request_id", id))
	}
	s.log.Info("request fulfilled", zap.String("request_id", id), zap.Int("quantity", req.Quantity), zap.String("actor", actor.Username))
	s.publish(ctx, events.StockIssued, res.Item.ID, actor, res.Transaction)
	if res.Request != nil {
		s.publish(ctx, events.RequestFulfilled, res.Request.ID, actor, res.Request)
	}
	return *res, nil
}
