package xumm

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storageApp = `"application":{"name":"SDK Test","uuidv4":"00000000-1111-2222-3333-aaaaaaaaaaaa"}`

func TestStorage_RoundTrip(t *testing.T) {
	m := newMockPlatform(t)
	m.on(http.MethodPost, "platform/app-storage", `{`+storageApp+`,"stored":true,"data":{"name":"Wietse","age":32}}`)
	m.on(http.MethodGet, "platform/app-storage", `{`+storageApp+`,"data":{"name":"Wietse","age":32}}`)
	m.on(http.MethodDelete, "platform/app-storage", `{`+storageApp+`,"stored":true,"data":null}`)
	client := newTestClient(t, m)
	ctx := context.Background()

	stored, err := client.Storage.Set(ctx, map[string]any{"name": "Wietse", "age": 32})
	require.NoError(t, err)
	assert.True(t, stored)

	data, err := client.Storage.Get(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Wietse","age":32}`, string(data))

	deleted, err := client.Storage.Delete(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestStorage_Empty(t *testing.T) {
	m := newMockPlatform(t)
	m.on(http.MethodGet, "platform/app-storage", `{`+storageApp+`,"data":null}`)
	client := newTestClient(t, m)

	data, err := client.Storage.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestStorage_InvalidAnswer(t *testing.T) {
	m := newMockPlatform(t)
	m.on(http.MethodGet, "platform/app-storage", `{"error":{"reference":"ref-9","code":403}}`)
	m.on(http.MethodPost, "platform/app-storage", `{"stored":true}`)
	client := newTestClient(t, m)

	_, err := client.Storage.Get(context.Background())
	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)

	_, err = client.Storage.Set(context.Background(), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnexpectedBody)
}
