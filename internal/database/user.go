package database

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

func booksInOrder(db *gorm.DB) *gorm.DB {
	return db.Order("seq ASC")
}

func (c *Client) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := c.db.WithContext(ctx).
		Preload("Books", booksInOrder).
		Where("email = ?", NormalizeEmail(email)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		log.Error("failed to get user by email", "error", err)
		return nil, err
	}
	return &user, nil
}

func (c *Client) InsertUser(ctx context.Context, user *User) (*User, error) {
	u := *user
	u.ID = 0
	u.Email = NormalizeEmail(u.Email)
	if u.Books == nil {
		u.Books = []Book{}
	}
	if err := c.db.WithContext(ctx).Create(&u).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		log.Error("failed to create user", "error", err)
		return nil, err
	}
	return &u, nil
}

// userID resolves the primary key of the user owning the email.
func (c *Client) userID(ctx context.Context, email string) (uint, error) {
	var user User
	err := c.db.WithContext(ctx).
		Select("id").
		Where("email = ?", NormalizeEmail(email)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		log.Error("failed to resolve user id", "error", err)
		return 0, err
	}
	return user.ID, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// the sqlite driver doesn't always go through the error translator
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
