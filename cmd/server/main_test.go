package main

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bookstore-be/internal/checkout"
	"bookstore-be/internal/config"
	"bookstore-be/internal/events"
	"bookstore-be/internal/httpapi"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:         "test",
		JWTSecret:      "secret",
		CORSOrigin:     "*",
		CacheTTL:       time.Minute,
		OrderListLimit: 100,
		HoldStaleAfter: 15 * time.Minute,
		Defaults: config.Defaults{
			Quantity:      1,
			Category:      "General",
			PaymentMethod: "credit_card",
		},
	}
}

func TestNewApp(t *testing.T) {
	gin.SetMode(gin.TestMode)

	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer database.Close()

	a := newApp(testConfig(), database, nil, events.NewNoop())
	require.NotNil(t, a.handler.Books)
	require.NotNil(t, a.handler.Carts)
	require.NotNil(t, a.handler.Orders)
	require.NotNil(t, a.handler.Checkout)

	router := httpapi.NewRouter(a.handler)

	t.Run("Health Check", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "OK")
	})

	t.Run("Protected Route Requires Token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cart/u1", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Book Lookup Hits Database", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM books WHERE id = \$1`).
			WithArgs("B1").
			WillReturnError(sql.ErrNoRows)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/books/B1", nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

type countingCheckout struct {
	checkout.Service
	calls chan struct{}
}

func (c *countingCheckout) Recover(context.Context) (checkout.RecoveryReport, error) {
	select {
	case c.calls <- struct{}{}:
	default:
	}
	return checkout.RecoveryReport{}, nil
}

func TestRecoverHolds(t *testing.T) {
	svc := &countingCheckout{calls: make(chan struct{}, 8)}
	a := &app{checkout: svc}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.recoverHolds(ctx, 10*time.Millisecond)
		close(done)
	}()

	// once at startup, then on the ticker
	for i := 0; i < 2; i++ {
		select {
		case <-svc.calls:
		case <-time.After(time.Second):
			t.Fatal("recovery did not run")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("recovery loop did not stop")
	}
}
