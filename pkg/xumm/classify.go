package xumm

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// marker is the field whose presence makes a body a success for a call site
type marker int

const (
	markerNone marker = iota
	markerNext
	markerMetaUUID
	markerApplicationUUID
)

// probe decodes just enough of a body to classify it
type probe struct {
	Message json.RawMessage `json:"message"`
	Next    json.RawMessage `json:"next"`
	Meta    *struct {
		UUID *string `json:"uuid"`
	} `json:"meta"`
	Application *struct {
		UUIDv4 *string `json:"uuidv4"`
	} `json:"application"`
	Error json.RawMessage `json:"error"`
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func (p *probe) has(m marker) bool {
	switch m {
	case markerNext:
		return present(p.Next)
	case markerMetaUUID:
		return p.Meta != nil && p.Meta.UUID != nil
	case markerApplicationUUID:
		return p.Application != nil && p.Application.UUIDv4 != nil
	}
	return true
}

// classify decides whether body is a fatal error, a domain error or a
// success for the given marker. The platform answers HTTP 200 with an error
// body, so the status code is not consulted.
func classify(body []byte, want marker) error {
	var p probe
	if err := json.Unmarshal(body, &p); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if present(p.Message) {
		fatal := &FatalError{}
		if err := json.Unmarshal(body, fatal); err != nil || fatal.Message == "" {
			if json.Unmarshal(p.Message, &fatal.Message) != nil {
				fatal.Message = string(p.Message)
			}
		}
		return fatal
	}

	successful := p.has(markerNext) || p.has(markerMetaUUID) || p.has(markerApplicationUUID)
	if !successful && present(p.Error) {
		var apiErr APIError
		if err := json.Unmarshal(p.Error, &apiErr); err == nil && apiErr.Code != 0 {
			return &apiErr
		}
	}

	if !p.has(want) {
		return ErrUnexpectedBody
	}
	return nil
}
