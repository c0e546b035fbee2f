package xumm

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthFlow selects how requests are authenticated and namespaced
type AuthFlow int

const (
	// FlowAPISecret sends the API key and secret on every call (backend use)
	FlowAPISecret AuthFlow = iota
	// FlowJWT exchanges a one-time token for a JWT and sends it as a bearer token
	FlowJWT
)

func (f AuthFlow) String() string {
	switch f {
	case FlowAPISecret:
		return "api-secret"
	case FlowJWT:
		return "jwt"
	}
	return fmt.Sprintf("AuthFlow(%d)", int(f))
}

func (f AuthFlow) namespace() string {
	if f == FlowJWT {
		return "jwt/"
	}
	return "platform/"
}

const authorizeEndpoint = "authorize"

// TokenStore holds the JWT obtained in the JWT flow
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
}

// AuthFailureResolver decides what a fatal error in the JWT flow becomes.
// Returning nil swallows the error; the call then yields ErrUnexpectedBody.
type AuthFailureResolver interface {
	ResolveAuthFailure(err error) error
}

type passthroughResolver struct{}

func (passthroughResolver) ResolveAuthFailure(err error) error { return err }

// MemoryTokenStore is a process-local TokenStore
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

func (s *MemoryTokenStore) Token(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryTokenStore) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// validateCredentials checks the API key (and secret, when the flow needs it) are UUIDs
func validateCredentials(cfg *ClientConfig) error {
	if _, err := uuid.Parse(cfg.APIKey); err != nil {
		return ErrInvalidCredentials
	}
	if cfg.Flow == FlowAPISecret {
		if _, err := uuid.Parse(cfg.APISecret); err != nil {
			return ErrInvalidCredentials
		}
	}
	return nil
}

// TokenExpiry returns the exp claim of a JWT without verifying its signature.
// The platform signs the token; the client only needs to know when to refresh it.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse jwt: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("read exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

// authenticate sets the credential headers for endpoint on req
func (c *Client) authenticate(ctx context.Context, req *http.Request, endpoint string, ott string) error {
	switch {
	case c.config.Flow == FlowAPISecret:
		req.Header.Set("x-api-key", c.config.APIKey)
		req.Header.Set("x-api-secret", c.config.APISecret)
		return nil
	case endpoint == authorizeEndpoint:
		req.Header.Set("x-api-key", c.config.APIKey)
		req.Header.Set("x-api-ott", ott)
		return nil
	}

	token, err := c.config.TokenStore.Token(ctx)
	if err != nil {
		return fmt.Errorf("load jwt: %w", err)
	}
	if token == "" {
		return ErrNoToken
	}
	exp, err := TokenExpiry(token)
	if err != nil {
		return err
	}
	if !exp.IsZero() && time.Now().After(exp) {
		return ErrTokenExpired
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// Authorize exchanges a one-time token for a JWT (JWT flow only) and keeps
// the JWT in the configured TokenStore for subsequent calls.
func (c *Client) Authorize(ctx context.Context, ott string) (*JWTAuthorization, error) {
	if c.config.Flow != FlowJWT {
		return nil, fmt.Errorf("authorize requires the %s flow, client uses %s", FlowJWT, c.config.Flow)
	}
	if _, err := uuid.Parse(ott); err != nil {
		return nil, fmt.Errorf("invalid one-time token %q: %w", ott, err)
	}

	body, err := c.call(ctx, http.MethodGet, authorizeEndpoint, nil, ott)
	if err != nil {
		return nil, err
	}
	auth, err := decode[JWTAuthorization](body, markerNone)
	if err != nil {
		return nil, c.classifiedError(http.MethodGet, authorizeEndpoint, err)
	}
	if auth.JWT == "" {
		return nil, ErrUnexpectedBody
	}
	if err := c.config.TokenStore.SetToken(ctx, auth.JWT); err != nil {
		return nil, fmt.Errorf("store jwt: %w", err)
	}
	return auth, nil
}

func (c *Client) resolveAuthFailure(err error) error {
	if c.config.Flow != FlowJWT {
		return err
	}
	if resolved := c.config.AuthFailureResolver.ResolveAuthFailure(err); resolved != nil {
		return resolved
	}
	return ErrUnexpectedBody
}
