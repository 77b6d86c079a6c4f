package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var _ DB = (*Client)(nil) // Ensure Client implements DB

var (
	// ErrUserNotFound is returned when no user exists for an email.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when a user with the same email already exists.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrBookNotFound is returned when a replace targets a book id the user doesn't have.
	ErrBookNotFound = errors.New("book not found")
)

// DB is the credential store. It is the only writer of user and book state.
// All book mutations are applied as a single atomic operation on the store.
type DB interface {
	// FindUserByEmail returns the user with its books in storage order.
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	// InsertUser creates a new user. It fails with ErrDuplicateEmail if the email is taken.
	InsertUser(ctx context.Context, user *User) (*User, error)
	// UpdateBooks applies a mutation to the books of the user and returns the updated user.
	UpdateBooks(ctx context.Context, email string, mutation BookMutation) (*User, error)
	// ReferencedImages returns every cover image referenced by any book.
	ReferencedImages(ctx context.Context) ([]string, error)

	Migrate(ctx context.Context) error
	Close() error
}

// NormalizeEmail returns the canonical form of an email used for lookups and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Client wraps the gorm.DB instance.
type Client struct {
	db *gorm.DB
}

// New creates a new database connection and performs migrations.
func New(dbpath string) (*Client, error) {
	if dir := filepath.Dir(dbpath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbpath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	// sqlite allows a single writer
	sqlDB.SetMaxOpenConns(1)

	c := &Client{db: db}
	if err := c.Migrate(context.Background()); err != nil {
		return nil, err
	}

	return c, nil
}

// Migrate creates or updates the users and books tables.
func (c *Client) Migrate(ctx context.Context) error {
	if err := c.db.WithContext(ctx).AutoMigrate(
		&User{},
		&Book{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
