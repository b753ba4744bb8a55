package httpapi

import (
	"net/http"

	"bookstore-be/internal/cart"
	"bookstore-be/internal/catalog"
	"bookstore-be/internal/checkout"
	"bookstore-be/internal/logger"
	"bookstore-be/internal/metrics"
	"bookstore-be/internal/middleware"
	"bookstore-be/internal/order"
	"bookstore-be/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func init() {
	// prices and totals go out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// Handler holds the services the HTTP endpoints call into.
type Handler struct {
	Books    catalog.Service
	Carts    cart.Service
	Orders   order.Service
	Checkout checkout.Service

	JWTSecret  []byte
	CORSOrigin string
}

func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		otelgin.Middleware(tracing.ServiceName),
		logger.RequestIDMiddleware(),
		logger.LoggingMiddleware(),
		metrics.Middleware(),
		middleware.CORS(h.CORSOrigin),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	r.GET("/metrics", metrics.Handler())

	auth := middleware.Auth(h.JWTSecret)
	limit := middleware.RateLimit()

	books := r.Group("/books")
	{
		books.GET("", limit, h.listBooks)
		books.GET("/:id", limit, h.getBook)

		admin := books.Group("", auth, middleware.RequireAdmin(), limit)
		admin.POST("", h.createBook)
		admin.PUT("/:id", h.updateBook)
		admin.DELETE("/:id", h.deleteBook)
	}

	carts := r.Group("/cart", auth, limit)
	{
		carts.POST("", h.addToCart)
		carts.GET("/:userId", h.getCart)
		carts.PUT("/:userId", h.replaceCart)
		carts.DELETE("/:userId", h.clearCart)
	}

	orders := r.Group("/orders", auth, limit)
	{
		orders.POST("/checkout", h.checkout)
		orders.GET("/:userId", h.listUserOrders)

		admin := orders.Group("/admin", middleware.RequireAdmin())
		admin.GET("/all", h.listAllOrders)
		admin.PUT("/:id", h.updateOrderStatus)
	}

	return r
}
