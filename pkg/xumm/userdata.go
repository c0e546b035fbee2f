package xumm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

var userdataKeyRe = regexp.MustCompile(`^[a-z0-9]{3,}$`)

func validateUserdataKey(key string) error {
	if !userdataKeyRe.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidUserdataKey, key)
	}
	return nil
}

// UserdataService stores per-user JSON documents (JWT flow)
type UserdataService struct {
	client *Client
}

// List returns the keys stored for the user
func (s *UserdataService) List(ctx context.Context) ([]string, error) {
	resp, err := do[UserdataList](ctx, s.client, http.MethodGet, "userdata", nil, markerNone)
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

// Get retrieves the documents stored under keys, indexed by key
func (s *UserdataService) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one key required")
	}
	for _, k := range keys {
		if err := validateUserdataKey(k); err != nil {
			return nil, err
		}
	}
	resp, err := do[UserdataGet](ctx, s.client, http.MethodGet, "userdata/"+strings.Join(keys, ","), nil, markerNone)
	if err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return map[string]json.RawMessage{}, nil
	}
	return resp.Data, nil
}

// Set stores data under key
func (s *UserdataService) Set(ctx context.Context, key string, data any) (bool, error) {
	if err := validateUserdataKey(key); err != nil {
		return false, err
	}
	resp, err := do[UserdataPersist](ctx, s.client, http.MethodPost, "userdata/"+key, data, markerNone)
	if err != nil {
		return false, err
	}
	return resp.Persisted, nil
}

// Delete removes the document stored under key
func (s *UserdataService) Delete(ctx context.Context, key string) (bool, error) {
	if err := validateUserdataKey(key); err != nil {
		return false, err
	}
	resp, err := do[UserdataPersist](ctx, s.client, http.MethodDelete, "userdata/"+key, nil, markerNone)
	if err != nil {
		return false, err
	}
	return resp.Persisted, nil
}
