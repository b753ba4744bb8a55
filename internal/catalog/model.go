package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Book struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Author        string          `json:"author"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock"`
	Category      string          `json:"category"`
	ImageURL      string          `json:"imageUrl"`
	ISBN          string          `json:"isbn"`
	Publisher     string          `json:"publisher"`
	PublishedDate string          `json:"publishedDate"`
	Pages         int             `json:"pages"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// StockHold is the ledger row written together with a stock reservation.
// It lives until the owning checkout either commits its order or releases it.
type StockHold struct {
	CheckoutID string
	BookID     string
	Quantity   int
	CreatedAt  time.Time
}

type BookFilter struct {
	Search   string
	Category string
	Author   string
	Limit    int
}

type NewBookInput struct {
	Title         string          `json:"title"`
	Author        string          `json:"author"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock"`
	Category      string          `json:"category"`
	ImageURL      string          `json:"imageUrl"`
	ISBN          string          `json:"isbn"`
	Publisher     string          `json:"publisher"`
	PublishedDate string          `json:"publishedDate"`
	Pages         int             `json:"pages"`
}

// UpdateBookInput is a partial update; nil fields are left untouched.
type UpdateBookInput struct {
	Title         *string          `json:"title"`
	Author        *string          `json:"author"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	Stock         *int             `json:"stock"`
	Category      *string          `json:"category"`
	ImageURL      *string          `json:"imageUrl"`
	ISBN          *string          `json:"isbn"`
	Publisher     *string          `json:"publisher"`
	PublishedDate *string          `json:"publishedDate"`
	Pages         *int             `json:"pages"`
}
