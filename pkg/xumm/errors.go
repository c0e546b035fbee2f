package xumm

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid API key and/or API secret")
	ErrInvalidPayloadRef  = errors.New("payload reference is not a uuid, created payload or fetched payload")
	ErrUnexpectedBody     = errors.New("response does not match the expected shape")
	ErrReconnectExhausted = errors.New("payload subscription gave up reconnecting")
	ErrNoToken            = errors.New("no JWT held, authorize with a one-time token first")
	ErrTokenExpired       = errors.New("JWT expired")
	ErrInvalidUserdataKey = errors.New("invalid userdata key, only a-z0-9 (min three chars) allowed")
)

// TransportError is returned when a call could not complete or its body
// could not be decoded
type TransportError struct {
	Method   string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("unexpected response from XUMM API [%s:%s]: %v", e.Method, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FatalError is a response body carrying a free-text message
type FatalError struct {
	Message   string `json:"message"`
	Reference string `json:"reference,omitempty"`
	Code      int    `json:"code,omitempty"`
	Req       string `json:"req,omitempty"`
	Method    string `json:"method,omitempty"`
}

func (e *FatalError) Error() string {
	return e.Message
}

// APIError is a structured domain error returned by the platform
type APIError struct {
	Code      int    `json:"code"`
	Reference string `json:"reference"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Error code %d, see XUMM Dev Console, reference: %s", e.Code, e.Reference)
}

// Lenient turns domain-level failures into a nil result: *APIError and
// ErrUnexpectedBody yield (nil, nil). Transport and fatal errors are still returned.
func Lenient[T any](v *T, err error) (*T, error) {
	if err == nil {
		return v, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) || errors.Is(err, ErrUnexpectedBody) {
		return nil, nil
	}
	return nil, err
}
