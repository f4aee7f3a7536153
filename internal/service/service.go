package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/events"
	"stockroom/backend/internal/ledger"
)

var ErrForbidden = errors.New("forbidden")

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service is the authenticated entry point to the ledger. It checks roles,
// normalizes input, logs outcomes and publishes events once a change has
// committed. All stock rules live in the ledger engine.
type Service struct {
	engine    *ledger.Engine
	publisher events.Publisher
	log       *zap.Logger
}

func New(engine *ledger.Engine, publisher events.Publisher, log *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{engine: engine, publisher: publisher, log: log}
}

func requireRole(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Username == "" {
		return domain.Actor{}, ErrForbidden
	}
	if len(roles) == 0 {
		return actor, nil
	}
	for _, role := range roles {
		if actor.Role == role {
			return actor, nil
		}
	}
	return domain.Actor{}, ErrForbidden
}

func requireManager(ctx context.Context) (domain.Actor, error) {
	return requireRole(ctx, domain.RoleAdmin, domain.RoleStockManager)
}

func isManager(actor domain.Actor) bool {
	return actor.Role == domain.RoleAdmin || actor.Role == domain.RoleStockManager
}

// publish is fire-and-forget. A failed publish is logged and never undoes the
// committed change.
func (s *Service) publish(ctx context.Context, eventType string, entityID string, actor domain.Actor, payload any) {
	if err := s.publisher.Publish(ctx, events.New(eventType, entityID, actor.Username, payload)); err != nil {
		s.log.Warn("publish event failed",
			zap.String("event_type", eventType),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

func (s *Service) fail(op string, actor domain.Actor, err error, fields ...zap.Field) error {
	fields = append(fields, zap.String("op", op), zap.String("actor", actor.Username), zap.Error(err))
	s.log.Info("operation rejected", fields...)
	return err
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func clean(id string) string {
	return strings.TrimSpace(id)
}
