package database

import "time"

// User represents a user in the database.
// Users created through an external identity provider have no password hash
// and can't log in with a password.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	Username     string    `json:"username,omitempty"`
	PasswordHash string    `json:"-"`
	Books        []Book    `gorm:"constraint:OnDelete:CASCADE;" json:"books"`
}

// HasPassword reports whether the user can authenticate with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Book is a single entry of a user's collection.
// Seq is the storage position, ID is the caller assigned id which is only
// meaningful within the owning user and isn't guaranteed to be unique.
type Book struct {
	Seq    uint  `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID uint  `gorm:"index;not null" json:"-"`
	ID     int64 `gorm:"column:book_id;index" json:"id"`
	BookFields
}

// BookFields holds the mutable fields of a book.
type BookFields struct {
	Name    string   `gorm:"not null" json:"name"`
	Author  string   `gorm:"not null" json:"author"`
	ISBN    *int64   `json:"isbn,omitempty"`
	Date    string   `json:"date,omitempty"`
	Rating  *float64 `json:"rating,omitempty"`
	Link    string   `json:"link,omitempty"`
	Summary string   `json:"summary,omitempty"`
	Notes   string   `json:"notes,omitempty"`
	Img     string   `json:"img,omitempty"`
}

// columns maps the fields to their column names for targeted updates.
func (f BookFields) columns() map[string]any {
	return map[string]any{
		"name":    f.Name,
		"author":  f.Author,
		"isbn":    f.ISBN,
		"date":    f.Date,
		"rating":  f.Rating,
		"link":    f.Link,
		"summary": f.Summary,
		"notes":   f.Notes,
		"img":     f.Img,
	}
}

// BookMutation is a single change to a user's books.
// It is one of AppendBook, ReplaceBook or RemoveBook.
type BookMutation interface {
	bookMutation()
}

// AppendBook appends a book to the end of the collection.
type AppendBook struct {
	Book Book
}

// ReplaceBook replaces the fields of the first book with a matching id.
type ReplaceBook struct {
	ID     int64
	Fields BookFields
}

// RemoveBook removes every book with a matching id.
type RemoveBook struct {
	ID int64
}

func (AppendBook) bookMutation()  {}
func (ReplaceBook) bookMutation() {}
func (RemoveBook) bookMutation()  {}
