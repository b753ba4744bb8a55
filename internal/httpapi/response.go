package httpapi

import (
	"errors"
	"net/http"

	"bookstore-be/internal/apperror"
	"bookstore-be/internal/catalog"
	"bookstore-be/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Details any    `json:"details,omitempty"`
}

// StockDetails lets a client render which book ran out and how many are left.
type StockDetails struct {
	BookID    string `json:"bookId"`
	Title     string `json:"title"`
	Available int    `json:"available"`
}

func ok(c *gin.Context, status int, data any, message string) {
	c.JSON(status, Response{Success: true, Data: data, Message: message})
}

func okList(c *gin.Context, data any, count int) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Count: &count})
}

func forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, Response{Success: false, Error: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// fail writes err with the status of its kind. Server errors are logged and
// answered with fallback so storage details never reach the client.
func fail(c *gin.Context, err error, fallback string) {
	status := apperror.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.FromCtx(c.Request.Context()).Error(fallback,
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, Response{Success: false, Error: fallback})
		return
	}

	resp := Response{Success: false, Error: err.Error()}
	var stockErr *catalog.InsufficientStockError
	if errors.As(err, &stockErr) {
		resp.Details = StockDetails{
			BookID:    stockErr.BookID,
			Title:     stockErr.Title,
			Available: stockErr.Available,
		}
	}
	c.JSON(status, resp)
}
