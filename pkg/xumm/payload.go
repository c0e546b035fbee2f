package xumm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const payloadEndpoint = "payload"

// PayloadRef is anything that identifies a payload: a PayloadUUID, a
// *CreatedPayload or a fetched *Payload
type PayloadRef interface {
	payloadRef()
}

// PayloadUUID identifies a payload by its uuid
type PayloadUUID string

func (PayloadUUID) payloadRef()     {}
func (*CreatedPayload) payloadRef() {}
func (*Payload) payloadRef()        {}

// payloadUUID extracts and validates the uuid carried by ref
func payloadUUID(ref PayloadRef) (string, error) {
	var id string
	switch r := ref.(type) {
	case PayloadUUID:
		id = string(r)
	case *CreatedPayload:
		if r == nil {
			return "", ErrInvalidPayloadRef
		}
		id = r.UUID
	case *Payload:
		if r == nil {
			return "", ErrInvalidPayloadRef
		}
		id = r.Meta.UUID
	default:
		return "", ErrInvalidPayloadRef
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: %q is not a uuid", ErrInvalidPayloadRef, id)
	}
	return id, nil
}

// PayloadService creates, fetches, cancels and subscribes to payloads
type PayloadService struct {
	client *Client
	log    *zap.Logger
}

// createBody normalises the accepted create inputs. A bare transaction
// (something with a TransactionType but no txjson/txblob) is wrapped as txjson.
func createBody(body any) (any, error) {
	switch b := body.(type) {
	case nil:
		return nil, fmt.Errorf("payload body required")
	case *CreatePayload:
		if b == nil {
			return nil, fmt.Errorf("payload body required")
		}
		return b, nil
	case CreatePayload:
		return &b, nil
	case Transaction:
		return &CreatePayload{TxJSON: b}, nil
	case map[string]any:
		_, hasJSON := b["txjson"]
		_, hasBlob := b["txblob"]
		if !hasJSON && !hasBlob && Transaction(b).Type() != "" {
			return &CreatePayload{TxJSON: Transaction(b)}, nil
		}
		return b, nil
	case string, json.RawMessage, []byte:
		return b, nil
	}
	return nil, fmt.Errorf("unsupported payload body type %T", body)
}

// Create posts a new payload. body is a *CreatePayload, a bare Transaction
// or map, or pre-serialised JSON.
func (s *PayloadService) Create(ctx context.Context, body any) (*CreatedPayload, error) {
	normalised, err := createBody(body)
	if err != nil {
		return nil, err
	}
	created, err := do[CreatedPayload](ctx, s.client, http.MethodPost, payloadEndpoint, normalised, markerNext)
	if err != nil {
		return nil, err
	}
	s.log.Debug("payload created", zap.String("uuid", created.UUID), zap.Bool("pushed", created.Pushed))
	return created, nil
}

// Get fetches the current state of a payload
func (s *PayloadService) Get(ctx context.Context, ref PayloadRef) (*Payload, error) {
	id, err := payloadUUID(ref)
	if err != nil {
		return nil, err
	}
	return do[Payload](ctx, s.client, http.MethodGet, payloadEndpoint+"/"+url.PathEscape(id), nil, markerMetaUUID)
}

// Cancel cancels a payload that has not been opened or resolved yet
func (s *PayloadService) Cancel(ctx context.Context, ref PayloadRef) (*DeletedPayload, error) {
	payload, err := s.ResolvePayload(ctx, ref)
	if err != nil {
		return nil, err
	}
	deleted, err := do[DeletedPayload](ctx, s.client, http.MethodDelete, payloadEndpoint+"/"+url.PathEscape(payload.Meta.UUID), nil, markerMetaUUID)
	if err != nil {
		return nil, err
	}
	s.log.Debug("payload cancel requested",
		zap.String("uuid", payload.Meta.UUID),
		zap.Bool("cancelled", deleted.Result.Cancelled),
		zap.String("reason", string(deleted.Result.Reason)),
	)
	return deleted, nil
}

// ResolvePayload normalises ref into a fetched payload. A fetched payload is
// returned as it is; uuids and created payloads are fetched.
func (s *PayloadService) ResolvePayload(ctx context.Context, ref PayloadRef) (*Payload, error) {
	if p, ok := ref.(*Payload); ok && p != nil && p.Meta.UUID != "" {
		return p, nil
	}
	if _, err := payloadUUID(ref); err != nil {
		return nil, err
	}
	return s.Get(ctx, ref)
}

// PayloadAndSubscription is the result of CreateAndSubscribe
type PayloadAndSubscription struct {
	Created *CreatedPayload
	*Subscription
}

// CreateAndSubscribe creates a payload and subscribes to it
func (s *PayloadService) CreateAndSubscribe(ctx context.Context, body any, handler EventHandler) (*PayloadAndSubscription, error) {
	created, err := s.Create(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("create payload: %w", err)
	}
	if created == nil || created.UUID == "" {
		return nil, fmt.Errorf("create payload: %w", ErrUnexpectedBody)
	}
	sub, err := s.Subscribe(ctx, created, handler)
	if err != nil {
		return nil, fmt.Errorf("subscribe to created payload: %w", err)
	}
	return &PayloadAndSubscription{Created: created, Subscription: sub}, nil
}
