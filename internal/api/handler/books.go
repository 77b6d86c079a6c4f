package handler

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/bookshelf/internal/api/auth"
	"github.com/jon4hz/bookshelf/internal/api/models"
	"github.com/jon4hz/bookshelf/internal/books"
	"github.com/jon4hz/bookshelf/internal/database"
)

const (
	msgInvalidBook  = "Book id, name and author are required"
	msgBookNotFound = "Book not found"
	msgBooksFailed  = "Error occurred while accessing books"
)

// bookError writes the response for a failed collection operation.
func bookError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, books.ErrInvalidBook):
		fail(c, http.StatusBadRequest, msgInvalidBook)
	case errors.Is(err, database.ErrBookNotFound):
		fail(c, http.StatusNotFound, msgBookNotFound)
	case errors.Is(err, database.ErrUserNotFound):
		fail(c, http.StatusNotFound, msgUserNotFound)
	default:
		log.Error("book operation failed", "email", auth.EmailFrom(c), "error", err)
		fail(c, http.StatusInternalServerError, msgBooksFailed)
	}
}

// AddBook appends a book to the caller's collection.
func (h *Handler) AddBook(c *gin.Context) {
	var req models.AddBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, msgInvalidBook)
		return
	}

	book, err := h.books.Add(c.Request.Context(), auth.EmailFrom(c), req.ToBook())
	if err != nil {
		bookError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BookResponse{Success: true, Message: "Book added", Book: book})
}

// AllBooks lists the caller's books.
func (h *Handler) AllBooks(c *gin.Context) {
	list, err := h.books.List(c.Request.Context(), auth.EmailFrom(c))
	if err != nil {
		bookError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BooksResponse{Success: true, Books: list})
}

// UpdateBook replaces the fields of one of the caller's books.
func (h *Handler) UpdateBook(c *gin.Context) {
	var req models.UpdateBookRequest
	if err := bindStrict(c, &req); err != nil {
		log.Debug("rejected book update", "error", err)
		fail(c, http.StatusBadRequest, msgInvalidBook)
		return
	}

	book, err := h.books.Update(c.Request.Context(), auth.EmailFrom(c), *req.BookID, req.FormData.ToBookFields())
	if err != nil {
		bookError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BookResponse{Success: true, Message: "Book updated", Book: book})
}

// RemoveBook deletes every book with the given id from the caller's collection.
func (h *Handler) RemoveBook(c *gin.Context) {
	var req models.RemoveBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Book id is required")
		return
	}

	if err := h.books.Remove(c.Request.Context(), auth.EmailFrom(c), *req.BookID); err != nil {
		bookError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.Response{Success: true, Message: "Book removed"})
}
