package xumm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client is a XUMM platform API client
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	baseURL    *url.URL
	log        *zap.Logger

	Payload  *PayloadService
	Storage  *StorageService
	Push     *PushService
	XApp     *XAppService
	Userdata *UserdataService
}

// NewClient creates a new XUMM API client
func NewClient(config *ClientConfig) (*Client, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return NewClientWithHTTPClient(config, &http.Client{Timeout: config.Timeout})
}

// NewClientWithHTTPClient creates a new XUMM API client with a custom HTTP client
func NewClientWithHTTPClient(config *ClientConfig, httpClient *http.Client) (*Client, error) {
	if err := validateCredentials(config); err != nil {
		return nil, err
	}
	base, err := parseBaseURL(config.BaseURL)
	if err != nil {
		return nil, err
	}

	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.TokenStore == nil {
		config.TokenStore = &MemoryTokenStore{}
	}
	if config.AuthFailureResolver == nil {
		config.AuthFailureResolver = passthroughResolver{}
	}
	if config.Observer == nil {
		config.Observer = NopObserver{}
	}
	config.Subscription = withSubscriptionDefaults(config.Subscription)

	c := &Client{
		config:     config,
		httpClient: httpClient,
		baseURL:    base,
		log:        config.Logger.Named("xumm"),
	}
	c.Payload = &PayloadService{client: c, log: c.log.Named("payload")}
	c.Storage = &StorageService{client: c}
	c.Push = &PushService{client: c}
	c.XApp = &XAppService{client: c}
	c.Userdata = &UserdataService{client: c}

	c.log.Debug("client constructed",
		zap.String("base-url", base.String()),
		zap.Stringer("flow", config.Flow),
	)
	return c, nil
}

func defaultUserAgent() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("xumm-sdk-go/%s (%s)", Version, host)
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// endpointURL resolves endpoint inside the flow's namespace
func (c *Client) endpointURL(endpoint string) string {
	rel := &url.URL{Path: c.config.Flow.namespace() + endpoint}
	return c.baseURL.ResolveReference(rel).String()
}

// requestBody serialises data: values are JSON-encoded, pre-serialised
// strings and raw messages are sent as they are
func requestBody(data any) (io.Reader, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.NewReader(v), nil
	case json.RawMessage:
		return bytes.NewReader(v), nil
	case []byte:
		return bytes.NewReader(v), nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return bytes.NewReader(b), nil
}

// call performs one authenticated request and returns the raw body.
// Failures to reach the platform or read its answer are *TransportError.
func (c *Client) call(ctx context.Context, method, endpoint string, data any, ott string) ([]byte, error) {
	wrap := func(err error) error {
		return &TransportError{Method: method, Endpoint: endpoint, Err: err}
	}

	body, err := requestBody(data)
	if err != nil {
		return nil, wrap(err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpointURL(endpoint), body)
	if err != nil {
		return nil, wrap(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if err := c.authenticate(ctx, req, endpoint, ott); err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return nil, wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrap(fmt.Errorf("failed to read response: %w", err))
	}
	if !json.Valid(respBody) {
		return nil, wrap(fmt.Errorf("response is not JSON (status %d)", resp.StatusCode))
	}

	c.log.Debug("response received",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(started)),
	)
	return respBody, nil
}

// decode classifies body for the wanted marker and unmarshals it into T
func decode[T any](body []byte, want marker) (*T, error) {
	if err := classify(body, want); err != nil {
		return nil, err
	}
	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

// do performs a call and decodes its classified result
func do[T any](ctx context.Context, c *Client, method, endpoint string, data any, want marker) (*T, error) {
	body, err := c.call(ctx, method, endpoint, data, "")
	if err != nil {
		return nil, err
	}
	result, err := decode[T](body, want)
	if err != nil {
		return nil, c.classifiedError(method, endpoint, err)
	}
	return result, nil
}

// classifiedError keeps platform errors as they are and reports anything
// else coming out of decode as a transport failure
func (c *Client) classifiedError(method, endpoint string, err error) error {
	var (
		apiErr   *APIError
		fatalErr *FatalError
	)
	switch {
	case errors.As(err, &fatalErr):
		return c.resolveAuthFailure(err)
	case errors.As(err, &apiErr), errors.Is(err, ErrUnexpectedBody):
		return err
	}
	return &TransportError{Method: method, Endpoint: endpoint, Err: err}
}

// Ping checks the credentials and returns the application details
func (c *Client) Ping(ctx context.Context) (*ApplicationDetails, error) {
	pong, err := do[Pong](ctx, c, http.MethodGet, "ping", nil, markerNone)
	if err != nil {
		return nil, err
	}
	if pong.Auth == nil {
		return nil, fmt.Errorf("unexpected response for ping request: %w", ErrUnexpectedBody)
	}
	return pong.Auth, nil
}

// PingJWT checks the bearer token of the JWT flow
func (c *Client) PingJWT(ctx context.Context) (*JWTPong, error) {
	pong, err := do[JWTPong](ctx, c, http.MethodGet, "ping", nil, markerNone)
	if err != nil {
		return nil, err
	}
	if !pong.Pong {
		return nil, fmt.Errorf("unexpected response for ping request: %w", ErrUnexpectedBody)
	}
	return pong, nil
}
