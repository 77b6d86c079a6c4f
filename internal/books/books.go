// Package books manages the book collection of a single authenticated user.
package books

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jon4hz/bookshelf/internal/database"
	"github.com/jon4hz/bookshelf/internal/metrics"
)

// ErrInvalidBook is returned when a book misses its name or author.
var ErrInvalidBook = errors.New("book name and author are required")

// Manager applies collection operations scoped to an owner email.
// The owner always comes from an authenticator, never from a request body.
type Manager struct {
	db database.DB
}

// NewManager creates a new book collection manager.
func NewManager(db database.DB) *Manager {
	return &Manager{db: db}
}

func validate(f database.BookFields) error {
	if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Author) == "" {
		return ErrInvalidBook
	}
	return nil
}

// Add appends the book to the owner's collection. Books sharing an id coexist.
func (m *Manager) Add(ctx context.Context, email string, book database.Book) (database.Book, error) {
	if err := validate(book.BookFields); err != nil {
		return database.Book{}, err
	}

	_, err := m.db.UpdateBooks(ctx, email, database.AppendBook{Book: book})
	metrics.RecordBookOperation("add", err)
	if err != nil {
		return database.Book{}, fmt.Errorf("failed to add book: %w", err)
	}
	return book, nil
}

// List returns the owner's books in storage order. It never returns nil.
func (m *Manager) List(ctx context.Context, email string) ([]database.Book, error) {
	user, err := m.db.FindUserByEmail(ctx, email)
	metrics.RecordBookOperation("list", err)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	if user.Books == nil {
		return []database.Book{}, nil
	}
	return user.Books, nil
}

// Update replaces the fields of the first book with the given id.
// It returns database.ErrBookNotFound if the owner has no such book.
func (m *Manager) Update(ctx context.Context, email string, id int64, fields database.BookFields) (database.Book, error) {
	if err := validate(fields); err != nil {
		return database.Book{}, err
	}

	_, err := m.db.UpdateBooks(ctx, email, database.ReplaceBook{ID: id, Fields: fields})
	metrics.RecordBookOperation("update", err)
	if err != nil {
		return database.Book{}, fmt.Errorf("failed to update book: %w", err)
	}
	return database.Book{ID: id, BookFields: fields}, nil
}

// Remove deletes every book with the given id. Removing an unknown id is not an error.
func (m *Manager) Remove(ctx context.Context, email string, id int64) error {
	_, err := m.db.UpdateBooks(ctx, email, database.RemoveBook{ID: id})
	metrics.RecordBookOperation("remove", err)
	if err != nil {
		return fmt.Errorf("failed to remove book: %w", err)
	}
	return nil
}
