// Package identity registers users and authenticates them by password or
// by an externally verified email.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/bookshelf/internal/database"
)

var (
	// ErrIncorrectPassword is returned when the password doesn't match the stored hash.
	ErrIncorrectPassword = errors.New("incorrect password")
	// ErrPasswordNotSet is returned for password logins of users created through an identity provider.
	ErrPasswordNotSet = errors.New("user has no password")
	// ErrMissingCredentials is returned when the email or password is empty.
	ErrMissingCredentials = errors.New("email and password are required")
)

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, hash string) (bool, error)
}

// Limiter throttles failed password logins per email.
type Limiter interface {
	Allow(ctx context.Context, key string) error
	Fail(ctx context.Context, key string)
	Reset(ctx context.Context, key string)
}

// Notifier is told about new signups.
type Notifier interface {
	UserSignedUp(user *database.User)
}

// Service owns the credential flows on top of the credential store.
type Service struct {
	db       database.DB
	hasher   Hasher
	limiter  Limiter
	notifier Notifier
}

// Option configures a Service.
type Option func(*Service)

// WithLimiter enables failed login throttling.
func WithLimiter(l Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithNotifier registers a signup notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// New creates a new identity service.
func New(db database.DB, hasher Hasher, opts ...Option) *Service {
	s := &Service{db: db, hasher: hasher}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup registers a new password user.
// It returns database.ErrDuplicateEmail if the email is taken, including when
// a concurrent signup for the same email won the race.
func (s *Service) Signup(ctx context.Context, email, password, username string) (*database.User, error) {
	email = database.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	if _, err := s.db.FindUserByEmail(ctx, email); err == nil {
		return nil, database.ErrDuplicateEmail
	} else if !errors.Is(err, database.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, err
	}

	user, err := s.db.InsertUser(ctx, &database.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info("user signed up", "email", email)
	if s.notifier != nil {
		s.notifier.UserSignedUp(user)
	}
	return user, nil
}

// Login verifies the password of the user owning the email.
func (s *Service) Login(ctx context.Context, email, password string) (*database.User, error) {
	email = database.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, email); err != nil {
			return nil, err
		}
	}

	user, err := s.db.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			s.failed(ctx, email)
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.HasPassword() {
		return nil, ErrPasswordNotSet
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.failed(ctx, email)
		return nil, ErrIncorrectPassword
	}

	if s.limiter != nil {
		s.limiter.Reset(ctx, email)
	}
	return user, nil
}

func (s *Service) failed(ctx context.Context, email string) {
	if s.limiter != nil {
		s.limiter.Fail(ctx, email)
	}
}

// Upsert returns the user for an externally verified email, creating a
// passwordless user on first sight. It never touches the hasher.
func (s *Service) Upsert(ctx context.Context, email, username string) (*database.User, error) {
	email = database.NormalizeEmail(email)
	if email == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.db.FindUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, database.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user, err = s.db.InsertUser(ctx, &database.User{Email: email, Username: username})
	switch {
	case err == nil:
		log.Info("user created from external identity", "email", email)
		if s.notifier != nil {
			s.notifier.UserSignedUp(user)
		}
		return user, nil
	case errors.Is(err, database.ErrDuplicateEmail):
		// lost the race against a concurrent insert
		return s.db.FindUserByEmail(ctx, email)
	default:
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
}

// Resolve returns the current user for an authenticated email.
func (s *Service) Resolve(ctx context.Context, email string) (*database.User, error) {
	return s.db.FindUserByEmail(ctx, email)
}
