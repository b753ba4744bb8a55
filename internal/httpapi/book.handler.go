package httpapi

import (
	"net/http"
	"strconv"

	"bookstore-be/internal/catalog"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listBooks(c *gin.Context) {
	filter := catalog.BookFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Author:   c.Query("author"),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, "limit must be a number")
			return
		}
		filter.Limit = n
	}

	books, err := h.Books.List(c.Request.Context(), filter)
	if err != nil {
		fail(c, err, "Failed to fetch books")
		return
	}
	okList(c, books, len(books))
}

func (h *Handler) getBook(c *gin.Context) {
	b, err := h.Books.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, "Failed to fetch book")
		return
	}
	ok(c, http.StatusOK, b, "")
}

func (h *Handler) createBook(c *gin.Context) {
	var input catalog.NewBookInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	b, err := h.Books.Create(c.Request.Context(), input)
	if err != nil {
		fail(c, err, "Failed to create book")
		return
	}
	ok(c, http.StatusCreated, b, "Book created successfully")
}

func (h *Handler) updateBook(c *gin.Context) {
	var input catalog.UpdateBookInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	b, err := h.Books.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		fail(c, err, "Failed to update book")
		return
	}
	ok(c, http.StatusOK, b, "Book updated successfully")
}

func (h *Handler) deleteBook(c *gin.Context) {
	if err := h.Books.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err, "Failed to delete book")
		return
	}
	ok(c, http.StatusOK, nil, "Book deleted successfully")
}
