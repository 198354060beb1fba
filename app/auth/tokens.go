package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var ErrNotConfigured = errors.New("auth token source is not configured")

type Config struct {
	StaticToken  string
	IssuerURL    string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// NewTokenSource returns a token source for outbound backend calls. A static JWT wins
// over client credentials; the token endpoint is discovered from IssuerURL when
// TokenURL is empty.
func NewTokenSource(ctx context.Context, cfg Config) (oauth2.TokenSource, error) {
	if raw := strings.TrimSpace(cfg.StaticToken); raw != "" {
		token, err := TokenFromJWT(raw)
		if err != nil {
			return nil, err
		}
		return oauth2.StaticTokenSource(token), nil
	}

	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, ErrNotConfigured
	}

	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		if strings.TrimSpace(cfg.IssuerURL) == "" {
			return nil, errors.New("auth issuer url or token url is required for client credentials")
		}
		provider, err := oidc.NewProvider(ctx, strings.TrimSpace(cfg.IssuerURL))
		if err != nil {
			return nil, fmt.Errorf("discover issuer: %w", err)
		}
		tokenURL = provider.Endpoint().TokenURL
	}

	cc := &clientcredentials.Config{
		ClientID:     strings.TrimSpace(cfg.ClientID),
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       cfg.Scopes,
	}
	return oauth2.ReuseTokenSource(nil, cc.TokenSource(ctx)), nil
}

// TokenFromJWT wraps a raw access token, reading its expiry from the exp claim.
// The signature is not checked here; the backend verifies it.
func TokenFromJWT(raw string) (*oauth2.Token, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return nil, ErrNotConfigured
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	token := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("read token expiry: %w", err)
	}
	if exp != nil {
		if exp.Time.Before(time.Now()) {
			return nil, errors.New("access token is expired")
		}
		token.Expiry = exp.Time
	}
	return token, nil
}
