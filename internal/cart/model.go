package cart

import (
	"time"

	"bookstore-be/internal/catalog"

	"github.com/shopspring/decimal"
)

type Item struct {
	BookID   string    `json:"bookId"`
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"addedAt"`
}

// Cart is a user's pending purchase. Items are unique by BookID and kept in
// insertion order.
type Cart struct {
	UserID    string    `json:"userId"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Exists is false when the user has no stored cart.
	Exists bool `json:"-"`
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

type AddInput struct {
	UserID   string `json:"userId"`
	BookID   string `json:"bookId"`
	Quantity *int   `json:"quantity"`
}

type ItemInput struct {
	BookID   string `json:"bookId"`
	Quantity int    `json:"quantity"`
}

// ViewLine is a cart line hydrated with the current book.
type ViewLine struct {
	BookID   string        `json:"bookId"`
	Quantity int           `json:"quantity"`
	AddedAt  time.Time     `json:"addedAt"`
	Book     *catalog.Book `json:"book"`
}

type View struct {
	UserID    string          `json:"userId"`
	Items     []ViewLine      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
}

// coalesce merges duplicate book lines, keeping the first position.
func coalesce(items []ItemInput) []ItemInput {
	out := make([]ItemInput, 0, len(items))
	pos := make(map[string]int, len(items))
	for _, it := range items {
		if i, ok := pos[it.BookID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		pos[it.BookID] = len(out)
		out = append(out, it)
	}
	return out
}
