package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"bookstore-be/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500

	sharedLookupTimeout = 5 * time.Second
)

// Cache is a read-through book cache. Implementations return ErrCacheMiss
// when the book is absent.
type Cache interface {
	GetBook(ctx context.Context, bookID string) (*Book, error)
	SetBook(ctx context.Context, book *Book) error
	DeleteBook(ctx context.Context, bookID string) error
}

type Service interface {
	Get(ctx context.Context, bookID string) (*Book, error)
	List(ctx context.Context, filter BookFilter) ([]*Book, error)
	Create(ctx context.Context, input NewBookInput) (*Book, error)
	Update(ctx context.Context, bookID string, input UpdateBookInput) (*Book, error)
	Delete(ctx context.Context, bookID string) error
	ReserveStock(ctx context.Context, checkoutID, bookID string, quantity int) (*Book, error)
	ReleaseStock(ctx context.Context, checkoutID, bookID string) (int, error)
}

type service struct {
	repo            Repository
	cache           Cache
	group           singleflight.Group
	defaultCategory string
}

// NewService wires the book repository with an optional cache (nil disables caching).
func NewService(repo Repository, cache Cache, defaultCategory string) Service {
	return &service{
		repo:            repo,
		cache:           cache,
		defaultCategory: defaultCategory,
	}
}

func (s *service) Get(ctx context.Context, bookID string) (*Book, error) {
	if s.cache == nil {
		return s.repo.Get(ctx, bookID)
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "GetBook"),
		zap.String("book_id", bookID),
	)

	b, err := s.cache.GetBook(ctx, bookID)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		log.Warn("book cache read failed", zap.Error(err))
	}

	// Concurrent misses for the same book share one database read. The read
	// outlives any single caller; each caller stops waiting on its own context.
	ch := s.group.DoChan(bookID, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
		defer cancel()

		b, err := s.repo.Get(lctx, bookID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetBook(lctx, b); err != nil {
			log.Warn("book cache write failed", zap.Error(err))
		}
		return b, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Book), nil
	}
}

func (s *service) List(ctx context.Context, filter BookFilter) ([]*Book, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	filter.Search = strings.TrimSpace(filter.Search)

	return s.repo.List(ctx, filter)
}

func (s *service) Create(ctx context.Context, input NewBookInput) (*Book, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Author = strings.TrimSpace(input.Author)

	if input.Title == "" || input.Author == "" {
		return nil, ErrMissingFields
	}
	if input.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if input.Stock < 0 {
		return nil, ErrInvalidStock
	}
	if strings.TrimSpace(input.Category) == "" {
		input.Category = s.defaultCategory
	}
	input.Price = input.Price.Round(2)

	b, err := s.repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("book created",
		zap.String("book_id", b.ID),
		zap.String("title", b.Title),
	)
	return b, nil
}

func (s *service) Update(ctx context.Context, bookID string, input UpdateBookInput) (*Book, error) {
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, ErrInvalidPrice
		}
		p := input.Price.Round(2)
		input.Price = &p
	}
	if input.Stock != nil && *input.Stock < 0 {
		return nil, ErrInvalidStock
	}

	b, err := s.repo.Update(ctx, bookID, input)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, bookID)
	return b, nil
}

func (s *service) Delete(ctx context.Context, bookID string) error {
	if err := s.repo.Delete(ctx, bookID); err != nil {
		return err
	}

	s.invalidate(ctx, bookID)
	return nil
}

func (s *service) ReserveStock(ctx context.Context, checkoutID, bookID string, quantity int) (*Book, error) {
	b, err := s.repo.ReserveStock(ctx, checkoutID, bookID, quantity)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, bookID)
	return b, nil
}

func (s *service) ReleaseStock(ctx context.Context, checkoutID, bookID string) (int, error) {
	n, err := s.repo.ReleaseStock(ctx, checkoutID, bookID)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.invalidate(ctx, bookID)
	}
	return n, nil
}

func (s *service) invalidate(ctx context.Context, bookID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteBook(ctx, bookID); err != nil {
		logger.FromCtx(ctx).Warn("book cache invalidation failed",
			zap.String("book_id", bookID),
			zap.Error(err),
		)
	}
}
