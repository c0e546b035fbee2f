package xumm

import (
	"context"
	"encoding/json"
	"net/http"
)

const storageEndpoint = "app-storage"

// StorageService reads and writes the application's key-less JSON storage
type StorageService struct {
	client *Client
}

// Get returns the stored JSON document, or nil when nothing is stored
func (s *StorageService) Get(ctx context.Context) (json.RawMessage, error) {
	resp, err := do[StorageResponse](ctx, s.client, http.MethodGet, storageEndpoint, nil, markerApplicationUUID)
	if err != nil {
		return nil, err
	}
	if !present(resp.Data) {
		return nil, nil
	}
	return resp.Data, nil
}

// Set replaces the stored JSON document with data
func (s *StorageService) Set(ctx context.Context, data any) (bool, error) {
	resp, err := do[StorageResponse](ctx, s.client, http.MethodPost, storageEndpoint, data, markerApplicationUUID)
	if err != nil {
		return false, err
	}
	return resp.Stored, nil
}

// Delete clears the stored JSON document
func (s *StorageService) Delete(ctx context.Context) (bool, error) {
	resp, err := do[StorageResponse](ctx, s.client, http.MethodDelete, storageEndpoint, nil, markerApplicationUUID)
	if err != nil {
		return false, err
	}
	return resp.Stored, nil
}
