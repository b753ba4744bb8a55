package order

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var AllStatuses = []Status{StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// transitions lists the statuses reachable from each status.
var transitions = map[Status][]Status{
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

func ValidStatus(s string) bool {
	for _, st := range AllStatuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Item is a snapshot of a book at reservation time.
type Item struct {
	BookID   string          `json:"bookId"`
	Title    string          `json:"title"`
	Author   string          `json:"author"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	CheckoutID      string          `json:"-"`
	Items           []Item          `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	ShippingCost    decimal.Decimal `json:"shippingCost"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress Address         `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// IndexEntry is the per-user summary row kept alongside each order.
type IndexEntry struct {
	UserID    string          `json:"userId"`
	OrderID   string          `json:"orderId"`
	Total     decimal.Decimal `json:"total"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

type ListFilter struct {
	Status string
	Limit  int
}

// Address is a free-form shipping address stored as JSONB.
type Address map[string]any

func (a Address) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

func (a *Address) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*a = Address{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported shipping address type")
	}
	out := Address{}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*a = out
	return nil
}
