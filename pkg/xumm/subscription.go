package xumm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// CloseKeepaliveTimeout is the close code sent when no keepalive ack
// arrived in time. It marks the close as a liveness failure, so the
// subscription reconnects.
const CloseKeepaliveTimeout = 4100

const (
	writeWait    = 5 * time.Second
	refreshAfter = 10 * time.Second
)

var pingFrame = []byte(`{"ping":true}`)

// EventHandler is called for every regular update of a subscribed payload.
// A non-nil return value resolves the subscription with that value. A
// returned error (or a panic) is logged and the subscription carries on.
type EventHandler func(ev *SubscriptionEvent) (any, error)

// SubscriptionEvent is one update delivered to an EventHandler
type SubscriptionEvent struct {
	UUID    string
	Data    map[string]any
	Payload *Payload

	resolve func(any)
}

// Resolve settles the subscription with v
func (e *SubscriptionEvent) Resolve(v any) {
	e.resolve(v)
}

// Subscription follows one payload over its status WebSocket until it is
// resolved. The connection may be replaced after a reconnect; Conn always
// returns the current one.
type Subscription struct {
	uuid     string
	service  *PayloadService
	handler  EventHandler
	cfg      SubscriptionConfig
	log      *zap.Logger
	observer Observer
	dialer   *websocket.Dialer
	header   http.Header
	wsURL    string

	snapshot atomic.Pointer[Payload]
	conn     atomic.Pointer[websocket.Conn]
	attempts atomic.Uint64

	res    *resolution
	ctx    context.Context
	cancel context.CancelFunc
	closed chan struct{}
}

func withSubscriptionDefaults(cfg SubscriptionConfig) SubscriptionConfig {
	def := DefaultSubscriptionConfig()
	if cfg.SubscribeDelay == 0 {
		cfg.SubscribeDelay = def.SubscribeDelay
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = def.KeepaliveInterval
	}
	if cfg.KeepaliveTimeout <= 0 {
		cfg.KeepaliveTimeout = def.KeepaliveTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	return cfg
}

// signURL builds the payload status WebSocket URL from the REST base
func signURL(base *url.URL, id string) string {
	u := *base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/sign/" + id
	u.RawPath = ""
	return u.String()
}

// Subscribe resolves ref to a fetched payload and opens its status
// WebSocket. A failure to fetch the payload is returned. Connection
// failures, including the first one, are retried in the background and only
// surface as ErrReconnectExhausted on the resolution.
func (s *PayloadService) Subscribe(ctx context.Context, ref PayloadRef, handler EventHandler) (*Subscription, error) {
	cfg := s.client.config.Subscription
	if cfg.SubscribeDelay > 0 {
		t := time.NewTimer(cfg.SubscribeDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}

	payload, err := s.ResolvePayload(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("couldn't subscribe, couldn't fetch payload: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &Subscription{
		uuid:     payload.Meta.UUID,
		service:  s,
		handler:  handler,
		cfg:      cfg,
		log:      s.log.Named("websocket").With(zap.String("uuid", payload.Meta.UUID)),
		observer: s.client.config.Observer,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		header: http.Header{"User-Agent": []string{s.client.config.UserAgent}},
		wsURL:  signURL(s.client.baseURL, payload.Meta.UUID),
		res:    newResolution(),
		ctx:    runCtx,
		cancel: cancel,
		closed: make(chan struct{}),
	}
	sub.snapshot.Store(payload)
	sub.res.onSettle = sub.teardown

	conn, err := sub.dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			sub.res.reject(ctx.Err())
			close(sub.closed)
			return nil, fmt.Errorf("couldn't subscribe: %w", ctx.Err())
		}
		sub.log.Info("websocket connection failed, reconnecting", zap.Error(err))
	} else {
		sub.conn.Store(conn)
	}

	go sub.run(conn)
	return sub, nil
}

// teardown runs once, when the resolution settles
func (s *Subscription) teardown() {
	s.cancel()
	s.observer.SubscriptionSettled(s.uuid, s.res.err)
	if s.res.err != nil {
		s.log.Info("subscription ended", zap.Error(s.res.err))
		return
	}
	s.log.Debug("subscription resolved")
}

func (s *Subscription) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.wsURL, s.header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.wsURL, err)
	}
	return conn, nil
}

// run owns the subscription state until the resolution settles or
// reconnecting is given up. A nil conn starts with a reconnect.
func (s *Subscription) run(conn *websocket.Conn) {
	defer close(s.closed)

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.cfg.ReconnectDelay), s.cfg.MaxReconnectAttempts)
	if conn == nil {
		conn = s.reconnect(policy)
	}
	for conn != nil {
		s.session(conn, policy)
		if s.res.isSettled() {
			return
		}
		conn = s.reconnect(policy)
	}
}

// reconnect waits out the policy and dials again. It returns nil when the
// resolution settled meanwhile or the attempts are exhausted.
func (s *Subscription) reconnect(policy backoff.BackOff) *websocket.Conn {
	for {
		delay := policy.NextBackOff()
		if delay == backoff.Stop {
			attempts := s.attempts.Load()
			s.log.Warn("giving up reconnecting", zap.Uint64("attempts", attempts))
			s.res.reject(fmt.Errorf("%w after %d attempts", ErrReconnectExhausted, attempts))
			return nil
		}

		t := time.NewTimer(delay)
		select {
		case <-s.ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}

		attempt := s.attempts.Add(1)
		s.observer.Reconnecting(s.uuid, attempt)
		s.log.Info("reconnecting", zap.Uint64("attempt", attempt))

		conn, err := s.dial(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			s.log.Debug("reconnect failed", zap.Uint64("attempt", attempt), zap.Error(err))
			continue
		}
		s.conn.Store(conn)
		return conn
	}
}

// session drives one connection until it closes
func (s *Subscription) session(conn *websocket.Conn, policy backoff.BackOff) {
	if !s.res.isSettled() {
		s.observer.SubscriptionOpened(s.uuid)
	}
	s.log.Debug("subscription active (websocket opened)")

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- data:
			case <-stop:
				return
			}
		}
	}()

	ping := time.NewTicker(s.cfg.KeepaliveInterval)
	defer ping.Stop()
	keepalive := time.NewTimer(s.cfg.KeepaliveTimeout)
	defer keepalive.Stop()

	for {
		if s.ctx.Err() != nil {
			s.closeConn(conn, websocket.CloseNormalClosure, "resolved")
			return
		}

		select {
		case <-s.ctx.Done():
			s.closeConn(conn, websocket.CloseNormalClosure, "resolved")
			return

		case <-ping.C:
			if !s.sendPing(conn) {
				return
			}

		case <-keepalive.C:
			s.observer.KeepaliveTimedOut(s.uuid)
			s.log.Info("no keepalive ack received, dropping connection",
				zap.Duration("timeout", s.cfg.KeepaliveTimeout),
			)
			s.closeConn(conn, CloseKeepaliveTimeout, "keepalive timeout")
			return

		case data := <-frames:
			s.attempts.Store(0)
			policy.Reset()
			// acks queued behind a refresh were not read, so it re-arms too
			if ack, refreshed := s.handleFrame(data); ack || refreshed {
				resetTimer(keepalive, s.cfg.KeepaliveTimeout)
			}

		case err := <-readErr:
			s.logClose(err)
			_ = conn.Close()
			return
		}
	}
}

// sendPing writes a keepalive ping unless the subscription settled
// meanwhile. It reports whether the session goes on.
func (s *Subscription) sendPing(conn *websocket.Conn) bool {
	if s.ctx.Err() != nil {
		s.closeConn(conn, websocket.CloseNormalClosure, "resolved")
		return false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, pingFrame); err != nil {
		s.log.Debug("keepalive ping failed", zap.Error(err))
		_ = conn.Close()
		return false
	}
	return true
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func (s *Subscription) closeConn(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}

func (s *Subscription) logClose(err error) {
	if s.res.isSettled() {
		return
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.log.Info("websocket closed abnormally", zap.Error(err))
		return
	}
	s.log.Debug("websocket closed", zap.Error(err))
}

// handleFrame processes one inbound frame. It reports whether the frame was
// a keepalive ack and whether the payload was fetched again.
func (s *Subscription) handleFrame(data []byte) (ack, refreshed bool) {
	s.observer.MessageReceived(s.uuid)

	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil || msg == nil {
		s.log.Debug("received message, unable to parse as JSON", zap.ByteString("data", data))
		return false, false
	}

	if pong, _ := msg["pong"].(bool); pong {
		return true, false
	}
	if _, ok := msg["devapp_fetched"]; ok {
		return false, false
	}

	_, signed := msg["signed"]
	expired, _ := msg["expired"].(bool)
	if signed || expired {
		s.refresh()
		refreshed = true
	}

	if s.handler != nil {
		s.dispatch(msg)
	}
	return false, refreshed
}

// refresh fetches the payload again and swaps the snapshot slot
func (s *Subscription) refresh() {
	ctx, cancel := context.WithTimeout(s.ctx, refreshAfter)
	defer cancel()

	payload, err := s.service.Get(ctx, PayloadUUID(s.uuid))
	if err != nil {
		s.log.Warn("could not refresh payload after status change", zap.Error(err))
		return
	}
	s.snapshot.Store(payload)
}

func (s *Subscription) dispatch(msg map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("payload event handler panicked", zap.Any("panic", r))
		}
	}()

	result, err := s.handler(&SubscriptionEvent{
		UUID:    s.uuid,
		Data:    msg,
		Payload: s.snapshot.Load(),
		resolve: s.Resolve,
	})
	if err != nil {
		s.log.Warn("payload event handler failed", zap.Error(err))
		return
	}
	if result != nil {
		s.res.resolve(result)
	}
}

// UUID returns the subscribed payload's uuid
func (s *Subscription) UUID() string {
	return s.uuid
}

// Payload returns the latest known snapshot of the payload
func (s *Subscription) Payload() *Payload {
	return s.snapshot.Load()
}

// Conn returns the current WebSocket connection. It is nil until the first
// connection opens.
func (s *Subscription) Conn() *websocket.Conn {
	return s.conn.Load()
}

// ReconnectAttempts returns the reconnect attempts since the last received message
func (s *Subscription) ReconnectAttempts() uint64 {
	return s.attempts.Load()
}

// Resolve settles the subscription with v. Only the first settlement counts.
func (s *Subscription) Resolve(v any) {
	s.res.resolve(v)
}

// Done is closed once the subscription is settled
func (s *Subscription) Done() <-chan struct{} {
	return s.res.done
}

// Wait blocks until the subscription settles and returns its outcome
func (s *Subscription) Wait(ctx context.Context) (any, error) {
	return s.res.wait(ctx)
}

// Closed is closed once the engine stopped and the connection is closed
func (s *Subscription) Closed() <-chan struct{} {
	return s.closed
}
