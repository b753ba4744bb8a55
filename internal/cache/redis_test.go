package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"bookstore-be/internal/catalog"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookCache_GetBook(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewBookCache(db, time.Minute)
	ctx := context.Background()

	t.Run("Hit", func(t *testing.T) {
		data, err := json.Marshal(catalog.Book{ID: "B1", Title: "Dune", Price: decimal.RequireFromString("9.99"), Stock: 4})
		require.NoError(t, err)
		mock.ExpectGet("book:B1").SetVal(string(data))

		b, err := c.GetBook(ctx, "B1")
		require.NoError(t, err)
		assert.Equal(t, "Dune", b.Title)
		assert.Equal(t, 4, b.Stock)
		assert.True(t, decimal.RequireFromString("9.99").Equal(b.Price))
	})

	t.Run("Miss", func(t *testing.T) {
		mock.ExpectGet("book:B2").RedisNil()

		_, err := c.GetBook(ctx, "B2")
		assert.ErrorIs(t, err, catalog.ErrCacheMiss)
	})

	t.Run("Corrupt", func(t *testing.T) {
		mock.ExpectGet("book:B3").SetVal("{not json")
		mock.ExpectDel("book:B3").SetVal(1)

		_, err := c.GetBook(ctx, "B3")
		assert.ErrorIs(t, err, catalog.ErrCacheMiss)
	})

	t.Run("Error", func(t *testing.T) {
		mock.ExpectGet("book:B4").SetErr(errors.New("connection refused"))

		_, err := c.GetBook(ctx, "B4")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, catalog.ErrCacheMiss)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookCache_SetAndDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewBookCache(db, 5*time.Minute)
	ctx := context.Background()

	b := &catalog.Book{ID: "B1", Title: "Dune"}
	data, err := json.Marshal(b)
	require.NoError(t, err)

	mock.ExpectSet("book:B1", data, 5*time.Minute).SetVal("OK")
	assert.NoError(t, c.SetBook(ctx, b))

	mock.ExpectDel("book:B1").SetVal(1)
	assert.NoError(t, c.DeleteBook(ctx, "B1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
