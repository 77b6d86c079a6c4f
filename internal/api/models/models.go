// Package models holds the request and response bodies of the HTTP API.
package models

import "github.com/jon4hz/bookshelf/internal/database"

// SignupRequest is the body of POST /signup.
type SignupRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username"`
}

// LoginRequest is the body of the password login endpoints.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// GoogleLoginRequest is the body of POST /googlelogin.
// Credential is the Google ID token, required when a client id is configured.
type GoogleLoginRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Credential string `json:"credential"`
}

// BookFields are the mutable fields of a book as sent by clients.
type BookFields struct {
	Name    string   `json:"name" binding:"required"`
	Author  string   `json:"author" binding:"required"`
	ISBN    *int64   `json:"isbn"`
	Date    string   `json:"date"`
	Rating  *float64 `json:"rating"`
	Link    string   `json:"link"`
	Summary string   `json:"summary"`
	Notes   string   `json:"notes"`
	Img     string   `json:"img"`
}

// AddBookRequest is the body of PATCH /addbook.
type AddBookRequest struct {
	ID *int64 `json:"id" binding:"required"`
	BookFields
}

// UpdateBookRequest is the body of POST /updatebook.
// Unknown fields are rejected, including inside formData.
type UpdateBookRequest struct {
	BookID   *int64      `json:"bookId" binding:"required"`
	FormData *BookFields `json:"formData" binding:"required"`
}

// RemoveBookRequest is the body of POST /removebook.
type RemoveBookRequest struct {
	BookID *int64 `json:"bookId" binding:"required"`
}

// Response is the envelope every JSON endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// TokenResponse carries a freshly issued bearer token.
type TokenResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// BookResponse confirms a single book operation.
type BookResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Book    database.Book `json:"book"`
}

// BooksResponse lists a user's books.
type BooksResponse struct {
	Success bool            `json:"success"`
	Books   []database.Book `json:"books"`
}

// UploadResponse points to a stored cover.
type UploadResponse struct {
	Success bool   `json:"success"`
	ImgURL  string `json:"img_url"`
}

// UserProfile is the public view of a user.
type UserProfile struct {
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Gravatar string `json:"gravatar,omitempty"`
}

// SessionResponse answers a session login.
type SessionResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    *UserProfile `json:"user"`
}

// AuthCheckResponse reports whether the session is authenticated.
type AuthCheckResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *UserProfile `json:"user,omitempty"`
}
