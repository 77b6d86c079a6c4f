// Package gravatar builds avatar URLs for user profiles.
package gravatar

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jon4hz/bookshelf/internal/config"
	"github.com/jon4hz/bookshelf/internal/database"
)

const baseURL = "https://www.gravatar.com/avatar/"

var (
	validDefaults = map[string]bool{
		"404":       true,
		"mp":        true,
		"identicon": true,
		"monsterid": true,
		"wavatar":   true,
		"retro":     true,
		"robohash":  true,
		"blank":     true,
	}
	validRatings = map[string]bool{
		"g":  true,
		"pg": true,
		"r":  true,
		"x":  true,
	}
)

// Generator turns emails into Gravatar URLs. A nil Generator returns empty URLs.
type Generator struct {
	query string
}

// New validates the configuration and returns a Generator.
// It returns nil without error when Gravatar is disabled.
func New(cfg *config.GravatarConfig) (*Generator, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	params := url.Values{}
	if cfg.DefaultImage != "" {
		if !validDefaults[cfg.DefaultImage] {
			return nil, fmt.Errorf("invalid gravatar default image: %s", cfg.DefaultImage)
		}
		params.Set("d", cfg.DefaultImage)
	}
	if cfg.Rating != "" {
		if !validRatings[cfg.Rating] {
			return nil, fmt.Errorf("invalid gravatar rating: %s", cfg.Rating)
		}
		params.Set("r", cfg.Rating)
	}
	if cfg.Size != 0 {
		if cfg.Size < 1 || cfg.Size > 2048 {
			return nil, fmt.Errorf("gravatar size must be between 1 and 2048")
		}
		params.Set("s", strconv.Itoa(cfg.Size))
	}

	return &Generator{query: params.Encode()}, nil
}

// URL returns the avatar URL for the email, or "" for an empty email.
func (g *Generator) URL(email string) string {
	if g == nil {
		return ""
	}
	email = database.NormalizeEmail(email)
	if email == "" {
		return ""
	}

	u := fmt.Sprintf("%s%x", baseURL, sha256.Sum256([]byte(email)))
	if g.query != "" {
		u += "?" + g.query
	}
	return u
}
