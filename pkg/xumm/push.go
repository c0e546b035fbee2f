package xumm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// PushService sends events and push notifications to users who issued a user token
type PushService struct {
	client *Client
}

// Event adds an entry to the user's event list (and may push it)
func (s *PushService) Event(ctx context.Context, body *PushBody) (*PushResponse, error) {
	if err := validatePushBody(body); err != nil {
		return nil, err
	}
	return do[PushResponse](ctx, s.client, http.MethodPost, "xapp/event", body, markerNone)
}

// Notification sends a push notification without an event list entry
func (s *PushService) Notification(ctx context.Context, body *PushBody) (*PushResponse, error) {
	if err := validatePushBody(body); err != nil {
		return nil, err
	}
	return do[PushResponse](ctx, s.client, http.MethodPost, "xapp/push", body, markerNone)
}

func validatePushBody(body *PushBody) error {
	if body == nil || body.UserToken == "" {
		return fmt.Errorf("push body requires a user token")
	}
	return nil
}

// XAppService resolves xApp launch context
type XAppService struct {
	client *Client
}

// Get resolves an xApp one-time token into its launch context
func (s *XAppService) Get(ctx context.Context, ott string) (*XAppOTTData, error) {
	if _, err := uuid.Parse(ott); err != nil {
		return nil, fmt.Errorf("invalid one-time token %q: %w", ott, err)
	}
	return do[XAppOTTData](ctx, s.client, http.MethodGet, "xapp/ott/"+url.PathEscape(ott), nil, markerNone)
}
