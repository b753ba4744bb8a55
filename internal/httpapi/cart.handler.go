package httpapi

import (
	"net/http"

	"bookstore-be/internal/cart"
	"bookstore-be/internal/middleware"

	"github.com/gin-gonic/gin"
)

type replaceCartRequest struct {
	Items []cart.ItemInput `json:"items"`
}

func (h *Handler) addToCart(c *gin.Context) {
	var input cart.AddInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if input.UserID == "" || input.BookID == "" {
		fail(c, cart.ErrMissingFields, "")
		return
	}
	if !middleware.IsOwner(c, input.UserID) {
		forbidden(c, "Not authorized to modify this cart")
		return
	}

	crt, err := h.Carts.Add(c.Request.Context(), input)
	if err != nil {
		fail(c, err, "Failed to add item to cart")
		return
	}
	ok(c, http.StatusOK, crt, "Item added to cart")
}

func (h *Handler) getCart(c *gin.Context) {
	userID := c.Param("userId")
	if !middleware.IsOwner(c, userID) {
		forbidden(c, "Not authorized to view this cart")
		return
	}

	view, err := h.Carts.View(c.Request.Context(), userID)
	if err != nil {
		fail(c, err, "Failed to fetch cart")
		return
	}
	ok(c, http.StatusOK, view, "")
}

func (h *Handler) replaceCart(c *gin.Context) {
	userID := c.Param("userId")
	if !middleware.IsOwner(c, userID) {
		forbidden(c, "Not authorized to modify this cart")
		return
	}

	var req replaceCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	crt, err := h.Carts.Replace(c.Request.Context(), userID, req.Items)
	if err != nil {
		fail(c, err, "Failed to update cart")
		return
	}
	ok(c, http.StatusOK, crt, "Cart updated successfully")
}

func (h *Handler) clearCart(c *gin.Context) {
	userID := c.Param("userId")
	if !middleware.IsOwner(c, userID) {
		forbidden(c, "Not authorized to clear this cart")
		return
	}

	if err := h.Carts.Clear(c.Request.Context(), userID); err != nil {
		fail(c, err, "Failed to clear cart")
		return
	}
	ok(c, http.StatusOK, nil, "Cart cleared successfully")
}
