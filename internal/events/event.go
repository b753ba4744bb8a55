package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
)

// Event is the payload published for order lifecycle changes.
type Event struct {
	Type       string          `json:"type"`
	OrderID    string          `json:"orderId"`
	UserID     string          `json:"userId"`
	Status     string          `json:"status"`
	Total      decimal.Decimal `json:"total"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Publisher delivers events to a broker. Publishing is best effort; callers
// log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type noopPublisher struct{}

// NewNoop returns a Publisher that drops every event.
func NewNoop() Publisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, Event) error { return nil }
func (noopPublisher) Close() error                         { return nil }
