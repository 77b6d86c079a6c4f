package handler

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/bookshelf/internal/api/auth"
	"github.com/jon4hz/bookshelf/internal/api/models"
	"github.com/jon4hz/bookshelf/internal/cache"
	"github.com/jon4hz/bookshelf/internal/database"
	"github.com/jon4hz/bookshelf/internal/identity"
	"github.com/jon4hz/bookshelf/internal/metrics"
	"github.com/jon4hz/bookshelf/internal/password"
)

const (
	msgUserExists        = "User already exists, please login"
	msgUserNotFound      = "User not found"
	msgIncorrectPassword = "Incorrect password"
	msgPasswordNotSet    = "Please sign in with Google"
	msgTooManyAttempts   = "Too many failed login attempts, try again later"
	msgMissingFields     = "Email and password are required"
	msgPasswordTooLong   = "Password must not be longer than 72 bytes"
	msgSignupFailed      = "Error occurred while signing up"
	msgLoginFailed       = "Error occurred while logging in"
	msgInvalidCredential = "Invalid Google credential"
	msgMissingEmail      = "Email is required"
)

// Signup registers a password user and returns a token.
func (h *Handler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, msgMissingFields)
		return
	}

	user, err := h.identity.Signup(c.Request.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrDuplicateEmail):
			metrics.RecordAuth(metrics.MechanismSignup, metrics.OutcomeFailure)
			fail(c, http.StatusOK, msgUserExists)
		case errors.Is(err, identity.ErrMissingCredentials):
			metrics.RecordAuth(metrics.MechanismSignup, metrics.OutcomeFailure)
			fail(c, http.StatusBadRequest, msgMissingFields)
		case errors.Is(err, password.ErrPasswordTooLong):
			metrics.RecordAuth(metrics.MechanismSignup, metrics.OutcomeFailure)
			fail(c, http.StatusBadRequest, msgPasswordTooLong)
		default:
			metrics.RecordAuth(metrics.MechanismSignup, metrics.OutcomeError)
			log.Error("failed to sign up user", "error", err)
			fail(c, http.StatusInternalServerError, msgSignupFailed)
		}
		return
	}

	metrics.RecordAuth(metrics.MechanismSignup, metrics.OutcomeSuccess)
	h.respondWithToken(c, user.Email)
}

// Login verifies a password and returns a token.
func (h *Handler) Login(c *gin.Context) {
	user, ok := h.passwordLogin(c, metrics.MechanismToken)
	if !ok {
		return
	}
	h.respondWithToken(c, user.Email)
}

// GoogleLogin returns a token for an externally verified email, creating the
// user on first login.
func (h *Handler) GoogleLogin(c *gin.Context) {
	var req models.GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, msgMissingEmail)
		return
	}

	email, name := req.Email, req.Name
	if h.google != nil {
		if req.Credential == "" {
			metrics.RecordAuth(metrics.MechanismGoogle, metrics.OutcomeFailure)
			fail(c, http.StatusBadRequest, msgInvalidCredential)
			return
		}
		ext, err := h.google.Verify(c.Request.Context(), req.Credential)
		if err != nil {
			metrics.RecordAuth(metrics.MechanismGoogle, metrics.OutcomeFailure)
			log.Debug("rejected google credential", "error", err)
			fail(c, http.StatusUnauthorized, msgInvalidCredential)
			return
		}
		email, name = ext.Email, ext.Name
	}

	user, err := h.identity.Upsert(c.Request.Context(), email, name)
	if err != nil {
		if errors.Is(err, identity.ErrMissingCredentials) {
			metrics.RecordAuth(metrics.MechanismGoogle, metrics.OutcomeFailure)
			fail(c, http.StatusBadRequest, msgMissingEmail)
			return
		}
		metrics.RecordAuth(metrics.MechanismGoogle, metrics.OutcomeError)
		log.Error("failed to upsert external user", "error", err)
		fail(c, http.StatusInternalServerError, msgLoginFailed)
		return
	}

	metrics.RecordAuth(metrics.MechanismGoogle, metrics.OutcomeSuccess)
	h.respondWithToken(c, user.Email)
}

// SessionLogin verifies a password and stores the user in the session.
func (h *Handler) SessionLogin(c *gin.Context) {
	user, ok := h.passwordLogin(c, metrics.MechanismSession)
	if !ok {
		return
	}

	if err := auth.StartSession(c, user.Email); err != nil {
		log.Error("failed to save session", "error", err)
		fail(c, http.StatusInternalServerError, msgLoginFailed)
		return
	}

	c.JSON(http.StatusOK, models.SessionResponse{
		Success: true,
		Message: "Logged in",
		User:    h.profile(user),
	})
}

// SessionLogout ends the session.
func (h *Handler) SessionLogout(c *gin.Context) {
	if err := auth.ClearSession(c); err != nil {
		log.Error("failed to clear session", "error", err)
		fail(c, http.StatusInternalServerError, "Error occurred while logging out")
		return
	}
	c.JSON(http.StatusOK, models.Response{Success: true, Message: "Logged out"})
}

// AuthCheck reports whether the session belongs to an existing user. It never fails.
func (h *Handler) AuthCheck(c *gin.Context) {
	email := auth.SessionEmail(c)
	if email == "" {
		c.JSON(http.StatusOK, models.AuthCheckResponse{Authenticated: false})
		return
	}

	user, err := h.identity.Resolve(c.Request.Context(), email)
	if err != nil {
		if !errors.Is(err, database.ErrUserNotFound) {
			log.Error("failed to resolve session user", "error", err)
		}
		c.JSON(http.StatusOK, models.AuthCheckResponse{Authenticated: false})
		return
	}

	c.JSON(http.StatusOK, models.AuthCheckResponse{Authenticated: true, User: h.profile(user)})
}

// passwordLogin runs the shared password login flow and writes the error
// response itself. It reports whether the login succeeded.
func (h *Handler) passwordLogin(c *gin.Context, mechanism string) (*database.User, bool) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, msgMissingFields)
		return nil, false
	}

	user, err := h.identity.Login(c.Request.Context(), req.Email, req.Password)
	if err == nil {
		metrics.RecordAuth(mechanism, metrics.OutcomeSuccess)
		return user, true
	}

	switch {
	case errors.Is(err, database.ErrUserNotFound):
		metrics.RecordAuth(mechanism, metrics.OutcomeFailure)
		fail(c, http.StatusUnauthorized, msgUserNotFound)
	case errors.Is(err, identity.ErrIncorrectPassword):
		metrics.RecordAuth(mechanism, metrics.OutcomeFailure)
		fail(c, http.StatusUnauthorized, msgIncorrectPassword)
	case errors.Is(err, identity.ErrPasswordNotSet):
		metrics.RecordAuth(mechanism, metrics.OutcomeFailure)
		fail(c, http.StatusUnauthorized, msgPasswordNotSet)
	case errors.Is(err, identity.ErrMissingCredentials):
		metrics.RecordAuth(mechanism, metrics.OutcomeFailure)
		fail(c, http.StatusBadRequest, msgMissingFields)
	case errors.Is(err, cache.ErrTooManyAttempts):
		metrics.RecordAuth(mechanism, metrics.OutcomeRejected)
		fail(c, http.StatusTooManyRequests, msgTooManyAttempts)
	default:
		metrics.RecordAuth(mechanism, metrics.OutcomeError)
		log.Error("failed to log in user", "error", err)
		fail(c, http.StatusInternalServerError, msgLoginFailed)
	}
	return nil, false
}

func (h *Handler) respondWithToken(c *gin.Context, email string) {
	signed, err := h.tokens.Issue(email)
	if err != nil {
		log.Error("failed to issue token", "error", err)
		fail(c, http.StatusInternalServerError, msgLoginFailed)
		return
	}
	c.JSON(http.StatusOK, models.TokenResponse{Success: true, Token: signed})
}
