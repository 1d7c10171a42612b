package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/m1ome/ex-eip712/pkg/log"
)

// ErrSlowClient closes a connection whose outbound queue stayed full for
// longer than the write timeout.
var ErrSlowClient = errors.New("client is not reading responses")

const (
	defaultConnWriteTimeout = 5 * time.Second
	defaultConnQueueSize    = 10
)

// Connection is one client connection as seen by the node.
type Connection interface {
	// ConnectionID returns the identifier assigned when the connection was accepted.
	ConnectionID() string
	// RawRequests yields incoming messages. It is closed when reading stops.
	RawRequests() <-chan []byte
	// WriteRawResponse queues a message. It returns false when the queue
	// stayed full for the write timeout, which also closes the connection.
	WriteRawResponse(message []byte) bool
	// Serve starts the read and write loops and returns immediately.
	// handleClosure is called once when the connection stops.
	Serve(parentCtx context.Context, handleClosure func(error))
}

// WsConn is the subset of *websocket.Conn used by WebsocketConnection.
type WsConn interface {
	SetReadLimit(limit int64)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// WebsocketConnectionConfig configures a WebsocketConnection.
// ConnectionID and WebsocketConn are required.
type WebsocketConnectionConfig struct {
	ConnectionID  string
	WebsocketConn WsConn

	// ReadLimit caps an incoming message in bytes. Zero means no limit.
	// A larger message closes the connection with CloseMessageTooBig.
	ReadLimit         int64
	WriteTimeout      time.Duration // default 5s
	WriteBufferSize   int           // default 10
	ProcessBufferSize int           // default 10

	Logger               log.Logger
	OnMessageSentHandler func([]byte)
}

// WebsocketConnection is a Connection over a gorilla websocket. One
// goroutine reads into the inbox, one drains the outbox, and a supervisor
// closes the socket when either side stops.
type WebsocketConnection struct {
	id           string
	ws           WsConn
	readLimit    int64
	writeTimeout time.Duration

	lg     log.Logger
	onSent func([]byte)

	inbox  chan []byte
	outbox chan []byte
	evict  chan struct{}

	serving atomic.Bool
}

// NewWebsocketConnection validates config and fills in defaults.
func NewWebsocketConnection(config WebsocketConnectionConfig) (*WebsocketConnection, error) {
	if config.ConnectionID == "" {
		return nil, fmt.Errorf("connection ID cannot be empty")
	}
	if config.WebsocketConn == nil {
		return nil, fmt.Errorf("websocket connection cannot be nil")
	}
	if config.ReadLimit < 0 {
		return nil, fmt.Errorf("read limit cannot be negative")
	}

	conn := &WebsocketConnection{
		id:           config.ConnectionID,
		ws:           config.WebsocketConn,
		readLimit:    config.ReadLimit,
		writeTimeout: orDefault(config.WriteTimeout, defaultConnWriteTimeout),
		lg:           log.NewNoopLogger(),
		onSent:       func([]byte) {},
		inbox:        make(chan []byte, orDefault(config.ProcessBufferSize, defaultConnQueueSize)),
		outbox:       make(chan []byte, orDefault(config.WriteBufferSize, defaultConnQueueSize)),
		evict:        make(chan struct{}, 1),
	}
	if config.Logger != nil {
		conn.lg = config.Logger.WithKV("connectionID", config.ConnectionID)
	}
	if config.OnMessageSentHandler != nil {
		conn.onSent = config.OnMessageSentHandler
	}
	return conn, nil
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

func (conn *WebsocketConnection) ConnectionID() string { return conn.id }

func (conn *WebsocketConnection) RawRequests() <-chan []byte { return conn.inbox }

// Serve applies the read limit and starts the loops. Only the first call
// serves; later calls report closure immediately. handleClosure receives
// nil for a normal close, ErrSlowClient for an evicted client, or the
// read error that ended the connection.
func (conn *WebsocketConnection) Serve(parentCtx context.Context, handleClosure func(error)) {
	if !conn.serving.CompareAndSwap(false, true) {
		handleClosure(nil)
		return
	}
	if conn.readLimit > 0 {
		conn.ws.SetReadLimit(conn.readLimit)
	}

	ctx, stop := context.WithCancelCause(parentCtx)

	var loops sync.WaitGroup
	loops.Add(2)
	go func() {
		defer loops.Done()
		stop(conn.readLoop(ctx))
	}()
	go func() {
		defer loops.Done()
		conn.writeLoop(ctx)
	}()

	go func() {
		select {
		case <-ctx.Done():
		case <-conn.evict:
			conn.lg.Info("closing WebSocket connection of a slow client")
			stop(ErrSlowClient)
		}

		// Closing the socket unblocks a pending ReadMessage.
		if err := conn.ws.Close(); err != nil {
			conn.lg.Debug("error closing WebSocket connection", "error", err)
		}
		loops.Wait()
		handleClosure(closureCause(ctx))
	}()
}

// closureCause maps the cause that stopped ctx to the error reported to
// the owner. Plain cancellation is a normal close.
func closureCause(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, context.Canceled) {
		return nil
	}
	return cause
}

// WriteRawResponse queues message for the write loop. A client that keeps
// the queue full past the write timeout is evicted.
func (conn *WebsocketConnection) WriteRawResponse(message []byte) bool {
	select {
	case conn.outbox <- message:
		return true
	default:
	}

	timer := time.NewTimer(conn.writeTimeout)
	defer timer.Stop()

	select {
	case conn.outbox <- message:
		return true
	case <-timer.C:
		select {
		case conn.evict <- struct{}{}:
		default:
		}
		return false
	}
}

// readLoop feeds the inbox until the socket fails or ctx is done. It returns
// nil when the peer closed normally and the read error otherwise.
func (conn *WebsocketConnection) readLoop(ctx context.Context) error {
	defer close(conn.inbox)

	for {
		_, msg, err := conn.ws.ReadMessage()
		switch {
		case err == nil:
		case errors.Is(err, websocket.ErrReadLimit):
			conn.lg.Warn("message exceeds the read limit", "limit", conn.readLimit)
			return err
		case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure):
			conn.lg.Error("WebSocket connection closed with unexpected reason", "error", err)
			return err
		default:
			return nil
		}

		if len(msg) == 0 {
			continue
		}
		select {
		case conn.inbox <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

// writeLoop drains the outbox until ctx is done. A failed write drops only
// that message; a dead socket surfaces through the read loop.
func (conn *WebsocketConnection) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-conn.outbox:
			if len(msg) == 0 {
				continue
			}
			if err := conn.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				conn.lg.Debug("failed to write response", "error", err)
				continue
			}
			conn.onSent(msg)
		}
	}
}
