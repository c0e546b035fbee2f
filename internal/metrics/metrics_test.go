package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexbotov/xumm/pkg/xumm"
)

func TestObserver(t *testing.T) {
	o := New()

	o.SubscriptionOpened("a")
	o.SubscriptionOpened("b")
	o.MessageReceived("a")
	o.MessageReceived("a")
	o.KeepaliveTimedOut("b")
	o.Reconnecting("b", 1)
	o.SubscriptionOpened("b")

	assert.Equal(t, float64(2), testutil.ToFloat64(o.active))
	assert.Equal(t, float64(3), testutil.ToFloat64(o.connections))
	assert.Equal(t, float64(2), testutil.ToFloat64(o.messages))
	assert.Equal(t, float64(1), testutil.ToFloat64(o.keepaliveTimeout))
	assert.Equal(t, float64(1), testutil.ToFloat64(o.reconnects))

	o.SubscriptionSettled("a", nil)
	o.SubscriptionSettled("b", xumm.ErrReconnectExhausted)

	assert.Equal(t, float64(0), testutil.ToFloat64(o.active))
	assert.Equal(t, float64(1), testutil.ToFloat64(o.settled.WithLabelValues("resolved")))
	assert.Equal(t, float64(1), testutil.ToFloat64(o.settled.WithLabelValues("reconnect_exhausted")))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "resolved", outcome(nil))
	assert.Equal(t, "reconnect_exhausted", outcome(xumm.ErrReconnectExhausted))
	assert.Equal(t, "failed", outcome(errors.New("dial refused")))
}

func TestHandler(t *testing.T) {
	o := New()
	o.MessageReceived("a")

	rec := httptest.NewRecorder()
	o.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "xumm_subscription_messages_total 1")
}
