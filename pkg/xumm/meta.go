package xumm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// CuratedAssets returns the curated issuers and their currencies
func (c *Client) CuratedAssets(ctx context.Context) (*CuratedAssetsResponse, error) {
	return do[CuratedAssetsResponse](ctx, c, http.MethodGet, "curated-assets", nil, markerNone)
}

// Rates returns the XRP and USD exchange rates for a fiat currency code
func (c *Client) Rates(ctx context.Context, currency string) (*RatesResponse, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return nil, fmt.Errorf("currency code required")
	}
	return do[RatesResponse](ctx, c, http.MethodGet, "rates/"+url.PathEscape(code), nil, markerNone)
}

// KycStatus returns the KYC state of the user behind an issued user token
func (c *Client) KycStatus(ctx context.Context, userToken string) (*KycStatusResponse, error) {
	body := map[string]any{"user_token": userToken}
	return do[KycStatusResponse](ctx, c, http.MethodPost, "kyc-status", body, markerNone)
}

// KycAccountStatus returns the public KYC flag of an account address
func (c *Client) KycAccountStatus(ctx context.Context, account string) (*KycInfoResponse, error) {
	return do[KycInfoResponse](ctx, c, http.MethodGet, "kyc-status/"+url.PathEscape(account), nil, markerNone)
}

// Transaction looks up a ledger transaction by hash
func (c *Client) Transaction(ctx context.Context, txHash string) (*XrplTransaction, error) {
	return do[XrplTransaction](ctx, c, http.MethodGet, "xrpl-tx/"+url.PathEscape(txHash), nil, markerNone)
}

// VerifyUserTokens reports which of the given user tokens are still active
func (c *Client) VerifyUserTokens(ctx context.Context, tokens ...string) ([]UserTokenValidity, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	resp, err := do[UserTokenResponse](ctx, c, http.MethodPost, "user-tokens", map[string]any{"tokens": tokens}, markerNone)
	if err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}
