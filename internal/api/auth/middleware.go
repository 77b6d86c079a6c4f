// Package auth holds the token and session authenticators of the HTTP API.
// Both inject only the caller's email into the gin context.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/bookshelf/internal/api/models"
	"github.com/jon4hz/bookshelf/internal/database"
	"github.com/jon4hz/bookshelf/internal/metrics"
	"github.com/jon4hz/bookshelf/internal/token"
)

const emailKey = "user_email"

const (
	msgMissingToken  = "please authenticate user"
	msgInvalidToken  = "invalid or expired token"
	msgNotLoggedIn   = "please log in"
	msgSessionFailed = "failed to resolve session"
)

// TokenVerifier verifies bearer tokens and returns the email they were issued for.
type TokenVerifier interface {
	Verify(tokenString string) (string, error)
}

// UserResolver resolves an authenticated email to its current user.
type UserResolver interface {
	Resolve(ctx context.Context, email string) (*database.User, error)
}

// EmailFrom returns the email injected by one of the authenticators.
func EmailFrom(c *gin.Context) string {
	return c.GetString(emailKey)
}

func setEmail(c *gin.Context, email string) {
	c.Set(emailKey, email)
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.Response{Success: false, Message: message})
}

// RequireToken rejects requests without a valid auth-token header.
func RequireToken(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		email, err := v.Verify(c.GetHeader(token.Header))
		if err != nil {
			metrics.RecordAuth(metrics.MechanismToken, metrics.OutcomeRejected)
			if errors.Is(err, token.ErrMissingToken) {
				unauthorized(c, msgMissingToken)
				return
			}
			log.Debug("rejected bearer token", "error", err)
			unauthorized(c, msgInvalidToken)
			return
		}

		setEmail(c, email)
		c.Next()
	}
}

// RequireSession rejects requests without a logged in session. The user is
// looked up on every request, so deleted users lose access immediately.
func RequireSession(r UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := SessionEmail(c)
		if email == "" {
			unauthorized(c, msgNotLoggedIn)
			return
		}

		user, err := r.Resolve(c.Request.Context(), email)
		if err != nil {
			if errors.Is(err, database.ErrUserNotFound) {
				if err := ClearSession(c); err != nil {
					log.Error("failed to clear session", "error", err)
				}
				unauthorized(c, msgNotLoggedIn)
				return
			}
			log.Error("failed to resolve session user", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, models.Response{Success: false, Message: msgSessionFailed})
			return
		}

		setEmail(c, user.Email)
		c.Next()
	}
}
