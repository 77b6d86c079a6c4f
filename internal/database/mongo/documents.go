package mongo

import (
	"time"

	"github.com/jon4hz/bookshelf/internal/database"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type userDocument struct {
	ID           bson.ObjectID  `bson:"_id,omitempty"`
	Email        string         `bson:"email"`
	Username     string         `bson:"username,omitempty"`
	PasswordHash string         `bson:"password_hash,omitempty"`
	Books        []bookDocument `bson:"books"`
	CreatedAt    time.Time      `bson:"created_at"`
	UpdatedAt    time.Time      `bson:"updated_at"`
}

type bookDocument struct {
	ID      int64    `bson:"id"`
	Name    string   `bson:"name"`
	Author  string   `bson:"author"`
	ISBN    *int64   `bson:"isbn"`
	Date    string   `bson:"date,omitempty"`
	Rating  *float64 `bson:"rating"`
	Link    string   `bson:"link,omitempty"`
	Summary string   `bson:"summary,omitempty"`
	Notes   string   `bson:"notes,omitempty"`
	Img     string   `bson:"img,omitempty"`
}

func newUserDocument(u *database.User) userDocument {
	return userDocument{
		Email:        database.NormalizeEmail(u.Email),
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Books: lo.Map(u.Books, func(b database.Book, _ int) bookDocument {
			return newBookDocument(b.ID, b.BookFields)
		}),
	}
}

func newBookDocument(id int64, f database.BookFields) bookDocument {
	return bookDocument{
		ID:      id,
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

// toUser converts the document. Seq mirrors the array position.
func (d userDocument) toUser() *database.User {
	books := make([]database.Book, 0, len(d.Books))
	for i, b := range d.Books {
		books = append(books, database.Book{
			Seq: uint(i + 1),
			ID:  b.ID,
			BookFields: database.BookFields{
				Name:    b.Name,
				Author:  b.Author,
				ISBN:    b.ISBN,
				Date:    b.Date,
				Rating:  b.Rating,
				Link:    b.Link,
				Summary: b.Summary,
				Notes:   b.Notes,
				Img:     b.Img,
			},
		})
	}
	return &database.User{
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		Email:        d.Email,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		Books:        books,
	}
}
