package xumm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payloadPath = "platform/payload/" + testPayloadUUID

func validTransaction() Transaction {
	return Transaction{
		"TransactionType": "Payment",
		"Destination":     "rPEPPER7kfTD9w2To4CQk6UCfuHM9c6GDY",
		"DestinationTag":  495,
	}
}

func TestCreate_Success(t *testing.T) {
	m := newMockPlatform(t)
	m.handle(http.MethodPost, "platform/payload", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		var req map[string]any
		assert.NoError(t, json.Unmarshal(body, &req))
		txjson, ok := req["txjson"].(map[string]any)
		if !ok {
			t.Errorf("Expected bare transaction wrapped in txjson, got %s", body)
		} else {
			assert.Equal(t, "Payment", txjson["TransactionType"])
			assert.Equal(t, float64(495), txjson["DestinationTag"])
		}
		_, _ = w.Write([]byte(createdJSON(testPayloadUUID)))
	})
	client := newTestClient(t, m)

	created, err := client.Payload.Create(context.Background(), validTransaction())
	require.NoError(t, err)
	assert.Equal(t, testPayloadUUID, created.UUID)
	assert.Equal(t, "https://xumm.app/sign/"+testPayloadUUID, created.Next.Always)
	assert.Equal(t, []QRQuality{QRQualityMedium, QRQualityQuartile, QRQualityHigh}, created.Refs.QRURIQualityOpts)
	assert.False(t, created.Pushed)
}

func TestCreate_WithOptions(t *testing.T) {
	m := newMockPlatform(t)
	m.handle(http.MethodPost, "platform/payload", func(w http.ResponseWriter, r *http.Request) {
		var req CreatePayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Payment", req.TxJSON.Type())
		if assert.NotNil(t, req.Options) {
			assert.Equal(t, 5, req.Options.Expire)
		}
		if assert.NotNil(t, req.CustomMeta) && assert.NotNil(t, req.CustomMeta.Identifier) {
			assert.Equal(t, "order-1", *req.CustomMeta.Identifier)
		}
		_, _ = w.Write([]byte(createdJSON(testPayloadUUID)))
	})
	client := newTestClient(t, m)

	identifier := "order-1"
	created, err := client.Payload.Create(context.Background(), CreatePayload{
		TxJSON:     validTransaction(),
		Options:    &PayloadOptions{Expire: 5},
		CustomMeta: &CustomMeta{Identifier: &identifier},
	})
	require.NoError(t, err)
	assert.Equal(t, testPayloadUUID, created.UUID)
}

func TestCreate_InvalidPayload(t *testing.T) {
	m := newMockPlatform(t)
	m.on(http.MethodPost, "platform/payload", invalidJSON)
	client := newTestClient(t, m)

	_, err := client.Payload.Create(context.Background(), map[string]any{
		"user_token": "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		"txblob":     "1200002400000003614000000002FAF080",
		"txjson":     validTransaction(),
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 602, apiErr.Code)
	assert.EqualError(t, err, "Error code 602, see XUMM Dev Console, reference: a61ba59a-0304-44ae-a86e-d74808bd5190")

	created, err := Lenient(client.Payload.Create(context.Background(), validTransaction()))
	assert.NoError(t, err)
	assert.Nil(t, created)
}

func TestCreate_UnsupportedBody(t *testing.T) {
	m := newMockPlatform(t)
	client := newTestClient(t, m)

	_, err := client.Payload.Create(context.Background(), 42)
	assert.Error(t, err)
	_, err = client.Payload.Create(context.Background(), nil)
	assert.Error(t, err)
	assert.Zero(t, m.count(http.MethodPost, "platform/payload"))
}

func TestGet_Success(t *testing.T) {
	m := newMockPlatform(t)
	m.on(http.MethodGet, payloadPath, payloadJSON(testPayloadUUID, false))
	client := newTestClient(t, m)

	payload, err := client.Payload.Get(context.Background(), PayloadUUID(testPayloadUUID))
	require.NoError(t, err)
	assert.Equal(t, testPayloadUUID, payload.Meta.UUID)
	assert.True(t, payload.Meta.Exists)
	assert.False(t, payload.Meta.Signed)
	assert.Equal(t, "Payment", payload.Payload.TxType)
	require.NotNil(t, payload.Payload.TxDestinationTag)
	assert.Equal(t, int64(495), *payload.Payload.TxDestinationTag)
	assert.Nil(t, payload.Response.TxID)
}

func TestGet_NotFound(t *testing.T) {
	m := newMockPlatform(t)
	m.on(http.MethodGet, payloadPath, notFoundJSON)
	client := newTestClient(t, m)

	_, err := client.Payload.Get(context.Background(), PayloadUUID(testPayloadUUID))
	assert.EqualError(t, err, "Error code 404, see XUMM Dev Console, reference: 3a04c7d3-94aa-4d8d-9559-62bb5e8a653c")

	payload, err := Lenient(client.Payload.Get(context.Background(), PayloadUUID(testPayloadUUID)))
	assert.NoError(t, err)
	assert.Nil(t, payload)
}

func TestGet_InvalidRef(t *testing.T) {
	m := newMockPlatform(t)
	client := newTestClient(t, m)

	for _, ref := range []PayloadRef{
		PayloadUUID("not-a-uuid"),
		(*CreatedPayload)(nil),
		&CreatedPayload{UUID: ""},
		nil,
	} {
		_, err := client.Payload.Get(context.Background(), ref)
		assert.ErrorIs(t, err, ErrInvalidPayloadRef)
	}
}

func TestCancel_Success(t *testing.T) {
	m := newMockPlatform(t)
	m.on(http.MethodGet, payloadPath, payloadJSON(testPayloadUUID, false))
	m.on(http.MethodDelete, payloadPath, `{
		"result": {"cancelled": true, "reason": "OK"},
		"meta": {"exists": true, "uuid": "`+testPayloadUUID+`", "expired": true},
		"custom_meta": {}
	}`)
	client := newTestClient(t, m)

	deleted, err := client.Payload.Cancel(context.Background(), PayloadUUID(testPayloadUUID))
	require.NoError(t, err)
	assert.True(t, deleted.Result.Cancelled)
	assert.Equal(t, CancelReasonOK, deleted.Result.Reason)
	assert.True(t, deleted.Meta.Expired)
	assert.Equal(t, 1, m.count(http.MethodGet, payloadPath))
	assert.Equal(t, 1, m.count(http.MethodDelete, payloadPath))
}

func TestCancel_FetchedPayloadSkipsLookup(t *testing.T) {
	m := newMockPlatform(t)
	m.on(http.MethodGet, payloadPath, payloadJSON(testPayloadUUID, false))
	m.on(http.MethodDelete, payloadPath, `{"result":{"cancelled":false,"reason":"ALREADY_OPENED"},"meta":{"uuid":"`+testPayloadUUID+`"}}`)
	client := newTestClient(t, m)

	payload, err := client.Payload.Get(context.Background(), PayloadUUID(testPayloadUUID))
	require.NoError(t, err)

	deleted, err := client.Payload.Cancel(context.Background(), payload)
	require.NoError(t, err)
	assert.False(t, deleted.Result.Cancelled)
	assert.Equal(t, CancelReasonAlreadyOpened, deleted.Result.Reason)
	assert.Equal(t, 1, m.count(http.MethodGet, payloadPath))
}

func TestCancel_NotFound(t *testing.T) {
	m := newMockPlatform(t)
	m.on(http.MethodGet, payloadPath, payloadJSON(testPayloadUUID, false))
	m.on(http.MethodDelete, payloadPath, notFoundJSON)
	client := newTestClient(t, m)

	_, err := client.Payload.Cancel(context.Background(), PayloadUUID(testPayloadUUID))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Error code 404, see XUMM Dev Console, reference: 3a04c7d3-94aa-4d8d-9559-62bb5e8a653c", err.Error())

	deleted, err := Lenient(client.Payload.Cancel(context.Background(), PayloadUUID(testPayloadUUID)))
	assert.NoError(t, err)
	assert.Nil(t, deleted)
}

func TestResolvePayload(t *testing.T) {
	m := newMockPlatform(t)
	m.on(http.MethodGet, payloadPath, payloadJSON(testPayloadUUID, false))
	client := newTestClient(t, m)
	ctx := context.Background()

	byUUID, err := client.Payload.ResolvePayload(ctx, PayloadUUID(testPayloadUUID))
	require.NoError(t, err)
	assert.Equal(t, testPayloadUUID, byUUID.Meta.UUID)
	assert.Equal(t, 1, m.count(http.MethodGet, payloadPath))

	byCreated, err := client.Payload.ResolvePayload(ctx, &CreatedPayload{UUID: testPayloadUUID})
	require.NoError(t, err)
	assert.Equal(t, testPayloadUUID, byCreated.Meta.UUID)
	assert.Equal(t, 2, m.count(http.MethodGet, payloadPath))

	fetched, err := client.Payload.ResolvePayload(ctx, byUUID)
	require.NoError(t, err)
	assert.Same(t, byUUID, fetched)
	assert.Equal(t, 2, m.count(http.MethodGet, payloadPath))
}

func TestCreateBody(t *testing.T) {
	wrapped, err := createBody(map[string]any{"TransactionType": "SignIn"})
	require.NoError(t, err)
	create, ok := wrapped.(*CreatePayload)
	require.True(t, ok)
	assert.Equal(t, "SignIn", create.TxJSON.Type())

	full := map[string]any{"txjson": map[string]any{"TransactionType": "SignIn"}}
	passed, err := createBody(full)
	require.NoError(t, err)
	assert.Equal(t, full, passed)

	raw, err := createBody(json.RawMessage(`{"txblob":"12"}`))
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"txblob":"12"}`), raw)
}
