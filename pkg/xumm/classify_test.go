package xumm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		want      marker
		wantFatal string
		wantCode  int
		wantErr   error
	}{
		{
			name:      "free-text message is fatal",
			body:      `{"message":"Invalid credentials"}`,
			want:      markerNone,
			wantFatal: "Invalid credentials",
		},
		{
			name:      "message wins over success markers",
			body:      `{"message":"Maintenance","next":{"always":"x"}}`,
			want:      markerNext,
			wantFatal: "Maintenance",
		},
		{
			name:     "error object without success marker",
			body:     `{"error":{"reference":"ref","code":602}}`,
			want:     markerNext,
			wantCode: 602,
		},
		{
			name: "error object next to meta uuid is not an error",
			body: `{"meta":{"uuid":"` + testPayloadUUID + `"},"error":{"code":1}}`,
			want: markerMetaUUID,
		},
		{
			name:    "zero error code is not a domain error",
			body:    `{"error":{"code":0}}`,
			want:    markerMetaUUID,
			wantErr: ErrUnexpectedBody,
		},
		{
			name:    "missing marker",
			body:    `{"meta":{}}`,
			want:    markerMetaUUID,
			wantErr: ErrUnexpectedBody,
		},
		{
			name:    "null meta uuid",
			body:    `{"meta":{"uuid":null}}`,
			want:    markerMetaUUID,
			wantErr: ErrUnexpectedBody,
		},
		{
			name: "application uuid marker",
			body: `{"application":{"uuidv4":"00000000-1111-2222-3333-aaaaaaaaaaaa"},"stored":true}`,
			want: markerApplicationUUID,
		},
		{
			name: "no marker wanted",
			body: `{"pong":true}`,
			want: markerNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify([]byte(tt.body), tt.want)

			switch {
			case tt.wantFatal != "":
				var fatal *FatalError
				require.ErrorAs(t, err, &fatal)
				assert.Equal(t, tt.wantFatal, fatal.Message)
			case tt.wantCode != 0:
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantCode, apiErr.Code)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestClassify_InvalidJSON(t *testing.T) {
	err := classify([]byte(`{"meta":`), markerNone)
	require.Error(t, err)

	var (
		fatal  *FatalError
		apiErr *APIError
	)
	assert.False(t, errors.As(err, &fatal))
	assert.False(t, errors.As(err, &apiErr))
}

func TestClassify_NonStringMessage(t *testing.T) {
	err := classify([]byte(`{"message":{"detail":"nested"}}`), markerNone)

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, `{"detail":"nested"}`, fatal.Message)
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: 404, Reference: "3a04c7d3-94aa-4d8d-9559-62bb5e8a653c"}
	assert.Equal(t, "Error code 404, see XUMM Dev Console, reference: 3a04c7d3-94aa-4d8d-9559-62bb5e8a653c", err.Error())
}

func TestLenient(t *testing.T) {
	v := 1

	got, err := Lenient(&v, nil)
	assert.NoError(t, err)
	assert.Equal(t, &v, got)

	got, err = Lenient[int](nil, &APIError{Code: 404})
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = Lenient[int](nil, ErrUnexpectedBody)
	assert.NoError(t, err)
	assert.Nil(t, got)

	transport := &TransportError{Method: "GET", Endpoint: "ping", Err: errors.New("refused")}
	got, err = Lenient[int](nil, transport)
	assert.ErrorIs(t, err, transport)
	assert.Nil(t, got)
}
