package httpapi

import (
	"net/http"
	"strconv"

	"bookstore-be/internal/checkout"
	"bookstore-be/internal/middleware"
	"bookstore-be/internal/order"

	"github.com/gin-gonic/gin"
)

type checkoutResponse struct {
	OrderID string `json:"orderId"`
	*order.Order
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type updateStatusResponse struct {
	OrderID string       `json:"orderId"`
	Status  order.Status `json:"status"`
}

func (h *Handler) checkout(c *gin.Context) {
	var input checkout.Input
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if input.UserID == "" {
		if claims, found := middleware.CurrentUser(c); found {
			input.UserID = claims.UserID
		}
	}
	if !middleware.IsOwner(c, input.UserID) {
		forbidden(c, "Not authorized to checkout for this user")
		return
	}

	o, err := h.Checkout.Checkout(c.Request.Context(), input)
	if err != nil {
		fail(c, err, "Failed to process checkout")
		return
	}
	ok(c, http.StatusCreated, checkoutResponse{OrderID: o.ID, Order: o}, "Order placed successfully")
}

func (h *Handler) listUserOrders(c *gin.Context) {
	userID := c.Param("userId")
	if !middleware.IsOwner(c, userID) {
		forbidden(c, "Not authorized to view these orders")
		return
	}

	orders, err := h.Orders.ListByUser(c.Request.Context(), userID)
	if err != nil {
		fail(c, err, "Failed to fetch orders")
		return
	}
	okList(c, orders, len(orders))
}

func (h *Handler) listAllOrders(c *gin.Context) {
	filter := order.ListFilter{Status: c.Query("status")}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, "limit must be a number")
			return
		}
		filter.Limit = n
	}

	orders, err := h.Orders.ListAll(c.Request.Context(), filter)
	if err != nil {
		fail(c, err, "Failed to fetch orders")
		return
	}
	okList(c, orders, len(orders))
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	o, err := h.Orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		fail(c, err, "Failed to update order")
		return
	}
	ok(c, http.StatusOK, updateStatusResponse{OrderID: o.ID, Status: o.Status}, "Order status updated")
}
