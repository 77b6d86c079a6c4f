package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/jon4hz/bookshelf/internal/api/auth"
	"github.com/jon4hz/bookshelf/internal/api/models"
	"github.com/jon4hz/bookshelf/internal/database"
	"github.com/jon4hz/bookshelf/internal/gravatar"
	"github.com/jon4hz/bookshelf/internal/upload"
)

// Identity registers and authenticates users.
type Identity interface {
	Signup(ctx context.Context, email, password, username string) (*database.User, error)
	Login(ctx context.Context, email, password string) (*database.User, error)
	Upsert(ctx context.Context, email, username string) (*database.User, error)
	Resolve(ctx context.Context, email string) (*database.User, error)
}

// Books manages the collection of the authenticated user.
type Books interface {
	Add(ctx context.Context, email string, book database.Book) (database.Book, error)
	List(ctx context.Context, email string) ([]database.Book, error)
	Update(ctx context.Context, email string, id int64, fields database.BookFields) (database.Book, error)
	Remove(ctx context.Context, email string, id int64) error
}

// TokenIssuer signs bearer tokens.
type TokenIssuer interface {
	Issue(email string) (string, error)
}

// Uploads stores cover images.
type Uploads interface {
	Save(ctx context.Context, r io.Reader, size int64) (*upload.Saved, error)
}

// CredentialVerifier verifies ID tokens of an external identity provider.
type CredentialVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*auth.ExternalIdentity, error)
}

type Handler struct {
	identity Identity
	books    Books
	tokens   TokenIssuer
	uploads  Uploads
	google   CredentialVerifier
	gravatar *gravatar.Generator
}

// Option configures a Handler.
type Option func(*Handler)

// WithGoogleVerifier makes /googlelogin require a verified ID token.
func WithGoogleVerifier(v CredentialVerifier) Option {
	return func(h *Handler) { h.google = v }
}

// WithGravatar adds avatar URLs to user profiles.
func WithGravatar(g *gravatar.Generator) Option {
	return func(h *Handler) { h.gravatar = g }
}

func New(identity Identity, books Books, tokens TokenIssuer, uploads Uploads, opts ...Option) *Handler {
	h := &Handler{
		identity: identity,
		books:    books,
		tokens:   tokens,
		uploads:  uploads,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Home answers the liveness check.
func (h *Handler) Home(c *gin.Context) {
	c.String(http.StatusOK, "Working")
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, models.Response{Success: false, Message: message})
}

func (h *Handler) profile(u *database.User) *models.UserProfile {
	return models.ToUserProfile(u, h.gravatar.URL(u.Email))
}

// bindStrict decodes the JSON body rejecting unknown fields and validates
// it with gin's validator.
func bindStrict(c *gin.Context, obj any) error {
	if c.Request.Body == nil {
		return errors.New("missing request body")
	}
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(obj); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if binding.Validator == nil {
		return nil
	}
	return binding.Validator.ValidateStruct(obj)
}
