package database

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// UpdateBooks applies the mutation with a single statement so concurrent
// mutations of the same collection never overwrite each other.
func (c *Client) UpdateBooks(ctx context.Context, email string, mutation BookMutation) (*User, error) {
	userID, err := c.userID(ctx, email)
	if err != nil {
		return nil, err
	}

	db := c.db.WithContext(ctx)

	switch m := mutation.(type) {
	case AppendBook:
		book := m.Book
		book.Seq = 0
		book.UserID = userID
		if err := db.Create(&book).Error; err != nil {
			log.Error("failed to append book", "error", err)
			return nil, err
		}

	case ReplaceBook:
		first := c.db.Model(&Book{}).
			Select("seq").
			Where("user_id = ? AND book_id = ?", userID, m.ID).
			Order("seq ASC").
			Limit(1)
		result := db.Model(&Book{}).Where("seq = (?)", first).Updates(m.Fields.columns())
		if result.Error != nil {
			log.Error("failed to replace book", "error", result.Error)
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, ErrBookNotFound
		}

	case RemoveBook:
		result := db.Where("user_id = ? AND book_id = ?", userID, m.ID).Delete(&Book{})
		if result.Error != nil {
			log.Error("failed to remove book", "error", result.Error)
			return nil, result.Error
		}

	default:
		return nil, fmt.Errorf("unsupported book mutation %T", mutation)
	}

	return c.FindUserByEmail(ctx, email)
}

func (c *Client) ReferencedImages(ctx context.Context) ([]string, error) {
	var images []string
	err := c.db.WithContext(ctx).
		Model(&Book{}).
		Where("img <> ''").
		Distinct().
		Pluck("img", &images).Error
	if err != nil {
		log.Error("failed to list referenced images", "error", err)
		return nil, err
	}
	return images, nil
}
