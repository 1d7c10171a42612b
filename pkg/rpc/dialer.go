package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/m1ome/ex-eip712/pkg/log"
)

// Dialer is the client side of the RPC protocol.
type Dialer interface {
	// Dial connects to url and returns once the handshake completes.
	// handleClosure is called when the connection is closed.
	Dial(ctx context.Context, url string, handleClosure func(err error)) error
	// IsConnected reports whether the connection is open.
	IsConnected() bool
	// Call sends req and waits for the response with the same request ID.
	Call(ctx context.Context, req *Request) (*Response, error)
	// EventCh yields responses that match no pending call.
	EventCh() <-chan *Response
}

// session is one dialed connection. stop ends it with a cause.
type session struct {
	ctx    context.Context
	stop   context.CancelCauseFunc
	conn   *websocket.Conn
	lg     log.Logger
	events chan *Response
}

// WebsocketDialerConfig configures a WebsocketDialer.
type WebsocketDialerConfig struct {
	HandshakeTimeout time.Duration
	// PingInterval is the keep-alive period. Zero disables pinging.
	PingInterval time.Duration
	// PingRequestID is reserved for pings and must not be used by callers.
	PingRequestID uint64
	EventChanSize int
}

// DefaultWebsocketDialerConfig is suitable for long-lived clients.
var DefaultWebsocketDialerConfig = WebsocketDialerConfig{
	HandshakeTimeout: 5 * time.Second,
	PingInterval:     5 * time.Second,
	PingRequestID:    100,
	EventChanSize:    100,
}

// WebsocketDialer is a Dialer over gorilla websocket. Call is safe for
// concurrent use.
type WebsocketDialer struct {
	cfg    WebsocketDialerConfig
	nextID atomic.Uint64

	mu      sync.RWMutex
	current *session
	pending map[uint64]chan *Response

	writeMu sync.Mutex
}

var _ Dialer = (*WebsocketDialer)(nil)

// NewWebsocketDialer creates a disconnected dialer.
func NewWebsocketDialer(cfg WebsocketDialerConfig) *WebsocketDialer {
	d := &WebsocketDialer{
		cfg:     cfg,
		pending: make(map[uint64]chan *Response),
	}
	d.nextID.Store(cfg.PingRequestID)
	return d
}

// NextRequestID returns a request ID that differs from PingRequestID and
// from every ID returned before.
func (d *WebsocketDialer) NextRequestID() uint64 {
	return d.nextID.Add(1)
}

// Dial connects and starts the background loops. handleClosure receives nil
// when parentCtx ends the session and the read or ping error otherwise.
//
//	dialer := rpc.NewWebsocketDialer(rpc.DefaultWebsocketDialerConfig)
//	if err := dialer.Dial(ctx, "ws://localhost:8000/ws", func(err error) {}); err != nil {
//		return err
//	}
func (d *WebsocketDialer) Dial(parentCtx context.Context, url string, handleClosure func(err error)) error {
	if d.IsConnected() {
		return ErrAlreadyConnected
	}

	wsDialer := websocket.Dialer{
		HandshakeTimeout:  d.cfg.HandshakeTimeout,
		EnableCompression: true,
	}
	conn, _, err := wsDialer.DialContext(parentCtx, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDialingWebsocket, err)
	}

	ctx, stop := context.WithCancelCause(parentCtx)
	s := &session{
		ctx:    ctx,
		stop:   stop,
		conn:   conn,
		lg:     log.FromContext(parentCtx).WithName("ws-dialer"),
		events: make(chan *Response, d.cfg.EventChanSize),
	}

	d.mu.Lock()
	d.current = s
	d.mu.Unlock()

	var loops sync.WaitGroup
	loops.Add(1)
	go func() {
		defer loops.Done()
		stop(d.readLoop(s))
	}()
	if d.cfg.PingInterval > 0 {
		loops.Add(1)
		go func() {
			defer loops.Done()
			stop(d.pingLoop(s))
		}()
	}

	go func() {
		<-ctx.Done()
		if err := conn.Close(); err != nil {
			s.lg.Debug("error closing WebSocket connection", "error", err)
		}
		loops.Wait()

		d.mu.Lock()
		d.pending = make(map[uint64]chan *Response)
		d.mu.Unlock()

		handleClosure(closureCause(ctx))
	}()

	return nil
}

func (d *WebsocketDialer) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.current != nil && d.current.ctx.Err() == nil
}

// readLoop routes responses until the socket fails. It returns nil once the
// session is already stopping.
func (d *WebsocketDialer) readLoop(s *session) error {
	for {
		_, raw, err := s.conn.ReadMessage()
		var netErr net.Error
		switch {
		case s.ctx.Err() != nil:
			return nil
		case errors.As(err, &netErr):
			s.lg.Error("WebSocket connection timeout", "error", err)
			return fmt.Errorf("%w: %w", ErrConnectionTimeout, err)
		case err != nil:
			s.lg.Error("WebSocket read error", "error", err)
			return fmt.Errorf("%w: %w", ErrReadingMessage, err)
		}

		d.route(s, raw)
	}
}

// route hands a response to the Call waiting on its request ID, or to the
// event channel. It never blocks.
func (d *WebsocketDialer) route(s *session, raw []byte) {
	var res Response
	if err := json.Unmarshal(raw, &res); err != nil {
		s.lg.Warn("malformed message", "error", err)
		return
	}

	d.mu.RLock()
	sink, ok := d.pending[res.Res.RequestID]
	d.mu.RUnlock()
	if !ok {
		sink = s.events
	}

	select {
	case sink <- &res:
	default:
		s.lg.Warn("response channel full, dropping message", "requestID", res.Res.RequestID)
	}
}

// Call sends req and blocks until its response arrives, ctx is done or the
// connection closes.
//
//	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
//	defer cancel()
//	res, err := dialer.Call(ctx, &req)
func (d *WebsocketDialer) Call(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	id := req.Req.RequestID
	sink := make(chan *Response, 1)

	d.mu.Lock()
	s := d.current
	if s == nil || s.ctx.Err() != nil {
		d.mu.Unlock()
		return nil, ErrNotConnected
	}
	d.pending[id] = sink
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
	}()

	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMarshalingRequest, err)
	}

	d.writeMu.Lock()
	err = s.conn.WriteMessage(websocket.TextMessage, raw)
	d.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSendingRequest, err)
	}

	select {
	case res := <-sink:
		return res, nil
	case <-ctx.Done():
	case <-s.ctx.Done():
	}
	return nil, fmt.Errorf("%w for request %d", ErrNoResponse, id)
}

// pingLoop keeps the session alive. A failed ping ends the session.
func (d *WebsocketDialer) pingLoop(s *session) error {
	ticker := time.NewTicker(d.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-ticker.C:
		}

		req := NewRequest(NewPayload(d.cfg.PingRequestID, PingMethod.String(), nil))
		res, err := d.Call(s.ctx, &req)
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			s.lg.Error("error sending ping", "error", err)
			return fmt.Errorf("%w: %w", ErrSendingPing, err)
		}
		if res.Res.Method != PongMethod.String() {
			s.lg.Warn("unexpected response to ping", "method", res.Res.Method)
		}
	}
}

// EventCh returns the channel of unsolicited responses for the current
// connection, or nil before the first Dial.
func (d *WebsocketDialer) EventCh() <-chan *Response {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.current == nil {
		return nil
	}
	return d.current.events
}
