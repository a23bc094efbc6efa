package downloads

import (
	"context"
	"errors"
	"log/slog"

	"marketplace/internal/domain/order"
	"marketplace/internal/logger"
)

var ErrNoClient = errors.New("user has no client account")

type Source interface {
	IsClient(ctx context.Context, userID string) (bool, error)
	Orders(ctx context.Context, customerID string) ([]order.Order, error)
}

type Service struct {
	src Source
	log *slog.Logger
}

func NewService(src Source, log *slog.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{src: src, log: log}
}

// Library returns the user's orders for the free-download page.
// Users without a client profile get ErrNoClient. Query errors are logged and degrade to an empty list.
func (s *Service) Library(ctx context.Context, userID string) ([]order.Order, error) {
	ok, err := s.src.IsClient(ctx, userID)
	switch {
	case err != nil:
		s.log.Warn("clientview lookup failed", slog.String("user_id", userID), slog.Any("err", err))
	case !ok:
		return nil, ErrNoClient
	}

	orders, err := s.src.Orders(ctx, userID)
	if err != nil {
		s.log.Warn("orders query failed", slog.String("user_id", userID), slog.Any("err", err))
		return []order.Order{}, nil
	}
	if orders == nil {
		orders = []order.Order{}
	}
	return orders, nil
}
