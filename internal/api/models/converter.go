package models

import (
	"github.com/jon4hz/bookshelf/internal/database"
)

// ToBookFields converts the request fields to their database representation.
func (f *BookFields) ToBookFields() database.BookFields {
	if f == nil {
		return database.BookFields{}
	}
	return database.BookFields{
		Name:    f.Name,
		Author:  f.Author,
		ISBN:    f.ISBN,
		Date:    f.Date,
		Rating:  f.Rating,
		Link:    f.Link,
		Summary: f.Summary,
		Notes:   f.Notes,
		Img:     f.Img,
	}
}

// ToBook converts the request to a database book.
func (r *AddBookRequest) ToBook() database.Book {
	var id int64
	if r.ID != nil {
		id = *r.ID
	}
	return database.Book{ID: id, BookFields: r.BookFields.ToBookFields()}
}

// ToUserProfile converts a user to its public profile.
// gravatarURL may be empty.
func ToUserProfile(u *database.User, gravatarURL string) *UserProfile {
	if u == nil {
		return nil
	}
	return &UserProfile{
		Email:    u.Email,
		Username: u.Username,
		Gravatar: gravatarURL,
	}
}
