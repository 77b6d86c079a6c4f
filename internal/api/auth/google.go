package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jon4hz/bookshelf/internal/config"
)

// ErrUnverifiedEmail is returned for ID tokens without a verified email.
var ErrUnverifiedEmail = errors.New("identity provider did not verify the email")

// ExternalIdentity is the identity asserted by a verified ID token.
type ExternalIdentity struct {
	Email string
	Name  string
}

// GoogleVerifier verifies Google ID tokens issued for the configured client.
type GoogleVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier discovers the issuer's keys and returns a verifier.
func NewGoogleVerifier(ctx context.Context, cfg *config.GoogleConfig) (*GoogleVerifier, error) {
	if cfg == nil || cfg.ClientID == "" {
		return nil, fmt.Errorf("google client id is required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover google provider: %w", err)
	}

	return &GoogleVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// Verify checks the raw ID token and returns the identity it asserts.
func (g *GoogleVerifier) Verify(ctx context.Context, rawIDToken string) (*ExternalIdentity, error) {
	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse id token claims: %w", err)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return nil, ErrUnverifiedEmail
	}

	return &ExternalIdentity{Email: claims.Email, Name: claims.Name}, nil
}
