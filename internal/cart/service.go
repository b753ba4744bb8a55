package cart

import (
	"context"
	"errors"
	"strings"

	"bookstore-be/internal/catalog"
	"bookstore-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Add(ctx context.Context, input AddInput) (*Cart, error)
	Replace(ctx context.Context, userID string, items []ItemInput) (*Cart, error)
	Clear(ctx context.Context, userID string) error
	View(ctx context.Context, userID string) (*View, error)
}

type service struct {
	repo            Repository
	books           catalog.Service
	defaultQuantity int
}

func NewService(repo Repository, books catalog.Service, defaultQuantity int) Service {
	if defaultQuantity < 1 {
		defaultQuantity = 1
	}
	return &service{
		repo:            repo,
		books:           books,
		defaultQuantity: defaultQuantity,
	}
}

func (s *service) Get(ctx context.Context, userID string) (*Cart, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) Add(ctx context.Context, input AddInput) (*Cart, error) {
	input.UserID = strings.TrimSpace(input.UserID)
	input.BookID = strings.TrimSpace(input.BookID)
	if input.UserID == "" || input.BookID == "" {
		return nil, ErrMissingFields
	}

	qty := s.defaultQuantity
	if input.Quantity != nil {
		qty = *input.Quantity
	}
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	if err := s.repo.Merge(ctx, input.UserID, input.BookID, qty); err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("item added to cart",
		zap.String("book_id", input.BookID),
		zap.Int("quantity", qty),
	)
	return s.repo.Get(ctx, input.UserID)
}

func (s *service) Replace(ctx context.Context, userID string, items []ItemInput) (*Cart, error) {
	if items == nil {
		return nil, ErrMissingItems
	}
	for _, it := range items {
		if strings.TrimSpace(it.BookID) == "" {
			return nil, ErrMissingFields
		}
		if it.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
	}

	if err := s.repo.Replace(ctx, userID, items); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID string) error {
	return s.repo.Clear(ctx, userID)
}

// View hydrates each line with its book. Lines whose book no longer exists
// are left out of both the items and the total.
func (s *service) View(ctx context.Context, userID string) (*View, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ViewCart"),
	)

	c, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	v := &View{UserID: userID, Items: []ViewLine{}, Total: decimal.Zero}
	if !c.Exists {
		return v, nil
	}
	updated := c.UpdatedAt
	v.UpdatedAt = &updated

	for _, it := range c.Items {
		b, err := s.books.Get(ctx, it.BookID)
		if errors.Is(err, catalog.ErrBookNotFound) {
			log.Debug("dropping cart line for missing book", zap.String("book_id", it.BookID))
			continue
		}
		if err != nil {
			return nil, err
		}

		v.Items = append(v.Items, ViewLine{
			BookID:   it.BookID,
			Quantity: it.Quantity,
			AddedAt:  it.AddedAt,
			Book:     b,
		})
		v.Total = v.Total.Add(b.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	v.Total = v.Total.Round(2)
	return v, nil
}
