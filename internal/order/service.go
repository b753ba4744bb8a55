package order

import (
	"context"
	"errors"
	"time"

	"bookstore-be/internal/events"
	"bookstore-be/internal/logger"

	"go.uber.org/zap"
)

const (
	maxListLimit = 500
	// attempts for a status update racing another admin
	statusUpdateAttempts = 3
)

type Service interface {
	Get(ctx context.Context, orderID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	ListAll(ctx context.Context, filter ListFilter) ([]*Order, error)
	UpdateStatus(ctx context.Context, orderID, status string) (*Order, error)
}

type service struct {
	repo      Repository
	publisher events.Publisher
	listLimit int
}

func NewService(repo Repository, publisher events.Publisher, listLimit int) Service {
	if publisher == nil {
		publisher = events.NewNoop()
	}
	if listLimit <= 0 {
		listLimit = 100
	}
	return &service{
		repo:      repo,
		publisher: publisher,
		listLimit: listLimit,
	}
}

func (s *service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.repo.Get(ctx, orderID)
}

func (s *service) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) ListAll(ctx context.Context, filter ListFilter) ([]*Order, error) {
	if filter.Status != "" && !ValidStatus(filter.Status) {
		return nil, ErrInvalidStatus
	}
	if filter.Limit <= 0 {
		filter.Limit = s.listLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	return s.repo.ListAll(ctx, filter)
}

// UpdateStatus applies an admin status change. Repeating the current status
// succeeds without writing.
func (s *service) UpdateStatus(ctx context.Context, orderID, status string) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "UpdateOrderStatus"),
		zap.String("order_id", orderID),
		zap.String("status", status),
	)

	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	to := Status(status)

	for attempt := 1; ; attempt++ {
		o, err := s.repo.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o.Status == to {
			return o, nil
		}
		if !CanTransition(o.Status, to) {
			return nil, &InvalidTransitionError{From: o.Status, To: to}
		}

		updatedAt, err := s.repo.UpdateStatus(ctx, orderID, o.Status, to)
		if errors.Is(err, ErrStatusConflict) && attempt < statusUpdateAttempts {
			log.Warn("order status changed concurrently, retrying", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}

		from := o.Status
		o.Status = to
		o.UpdatedAt = updatedAt
		log.Info("order status updated", zap.String("from", string(from)))

		s.publish(ctx, o)
		return o, nil
	}
}

func (s *service) publish(ctx context.Context, o *Order) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:       events.TypeOrderStatusChanged,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     string(o.Status),
		Total:      o.Total,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		logger.FromCtx(ctx).Warn("failed to publish order event",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}
