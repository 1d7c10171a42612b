package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/m1ome/ex-eip712/pkg/log"
)

const defaultNodeErrorMessage = "an error occurred while processing the request"

// Node routes RPC requests to handlers.
type Node interface {
	// Handle registers handler for method.
	Handle(method string, handler Handler)
	// Use adds middleware that runs before every handler.
	Use(middleware Handler)
	// NewGroup creates a group whose middleware runs only for its own handlers.
	NewGroup(name string) HandlerGroup
}

// HandlerGroup is a set of methods sharing middleware.
type HandlerGroup interface {
	Handle(method string, handler Handler)
	Use(middleware Handler)
	NewGroup(name string) HandlerGroup
}

var (
	_ Node         = &WebsocketNode{}
	_ http.Handler = &WebsocketNode{}

	_ HandlerGroup = &WebsocketHandlerGroup{}
)

// WebsocketNode serves RPC over WebSocket. Requests on one connection are
// handled in order; connections are independent.
type WebsocketNode struct {
	upgrader websocket.Upgrader
	cfg      WebsocketNodeConfig
	root     *WebsocketHandlerGroup

	mu      sync.RWMutex
	methods map[string]route
}

// route binds a method to its handler and the group it was registered in.
type route struct {
	group   *WebsocketHandlerGroup
	handler Handler
}

// WebsocketNodeConfig configures a WebsocketNode. Logger is required.
type WebsocketNodeConfig struct {
	Logger log.Logger

	// OnConnectHandler is called when a connection is accepted.
	OnConnectHandler func(connectionID string)
	// OnDisconnectHandler is called when a connection is closed.
	OnDisconnectHandler func(connectionID string)
	// OnMessageSentHandler is called after each message written to a client.
	OnMessageSentHandler func([]byte)

	WsUpgraderReadBufferSize  int // default 1024
	WsUpgraderWriteBufferSize int // default 1024
	// WsUpgraderCheckOrigin defaults to accepting every origin.
	WsUpgraderCheckOrigin func(r *http.Request) bool

	// WsConnReadLimit caps the size of an incoming message in bytes. Zero means no limit.
	WsConnReadLimit         int64
	WsConnWriteTimeout      time.Duration
	WsConnWriteBufferSize   int
	WsConnProcessBufferSize int
}

// NewWebsocketNode creates a node with the built-in ping handler registered.
func NewWebsocketNode(config WebsocketNodeConfig) (*WebsocketNode, error) {
	if config.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	config.Logger = config.Logger.WithName("rpc-node")

	if config.OnConnectHandler == nil {
		config.OnConnectHandler = func(string) {}
	}
	if config.OnDisconnectHandler == nil {
		config.OnDisconnectHandler = func(string) {}
	}
	if config.OnMessageSentHandler == nil {
		config.OnMessageSentHandler = func([]byte) {}
	}
	if config.WsUpgraderCheckOrigin == nil {
		config.WsUpgraderCheckOrigin = func(*http.Request) bool { return true }
	}

	node := &WebsocketNode{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  orDefault(config.WsUpgraderReadBufferSize, 1024),
			WriteBufferSize: orDefault(config.WsUpgraderWriteBufferSize, 1024),
			CheckOrigin:     config.WsUpgraderCheckOrigin,
		},
		cfg:     config,
		methods: make(map[string]route),
	}
	node.root = &WebsocketHandlerGroup{name: "root", node: node}
	node.Handle(PingMethod.String(), func(c *Context) {
		c.Succeed(PongMethod.String(), nil)
	})

	return node, nil
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (wn *WebsocketNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := wn.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wn.cfg.Logger.Error("failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer ws.Close()

	conn, err := NewWebsocketConnection(WebsocketConnectionConfig{
		ConnectionID:         uuid.NewString(),
		WebsocketConn:        ws,
		ReadLimit:            wn.cfg.WsConnReadLimit,
		WriteTimeout:         wn.cfg.WsConnWriteTimeout,
		WriteBufferSize:      wn.cfg.WsConnWriteBufferSize,
		ProcessBufferSize:    wn.cfg.WsConnProcessBufferSize,
		Logger:               wn.cfg.Logger,
		OnMessageSentHandler: wn.cfg.OnMessageSentHandler,
	})
	if err != nil {
		wn.cfg.Logger.Error("failed to create WebSocket connection", "error", err)
		return
	}

	wn.serveConn(r.Context(), conn)
}

// serveConn runs conn and its request loop and returns once both stopped.
func (wn *WebsocketNode) serveConn(parentCtx context.Context, conn Connection) {
	id := conn.ConnectionID()
	lg := wn.cfg.Logger.WithKV("connectionID", id)

	wn.cfg.OnConnectHandler(id)
	lg.Info("new WebSocket connection established")
	defer func() {
		wn.cfg.OnDisconnectHandler(id)
		lg.Info("connection closed")
	}()

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	closed := make(chan struct{})
	conn.Serve(ctx, func(err error) {
		if err != nil {
			lg.Debug("connection stopped", "error", err)
		}
		close(closed)
	})

	for raw := range conn.RawRequests() {
		if res := wn.dispatch(ctx, id, raw); res != nil {
			conn.WriteRawResponse(res)
		}
	}
	cancel()
	<-closed
}

// dispatch decodes one message, runs its handler chain and returns the
// encoded response, or nil when no response can be produced.
func (wn *WebsocketNode) dispatch(ctx context.Context, connectionID string, raw []byte) []byte {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		wn.cfg.Logger.Debug("invalid message format", "error", err, "connectionID", connectionID)
		return wn.errorResponse(req.Req.RequestID, "invalid message format")
	}

	handlers, ok := wn.chain(req.Req.Method)
	if !ok {
		wn.cfg.Logger.Debug("no route found for method", "method", req.Req.Method)
		return wn.errorResponse(req.Req.RequestID, fmt.Sprintf("unknown method: %s", req.Req.Method))
	}

	wn.cfg.Logger.Debug("processing message",
		"requestID", req.Req.RequestID,
		"connectionID", connectionID,
		"method", req.Req.Method)

	c := &Context{
		Context:      ctx,
		ConnectionID: connectionID,
		Request:      req,
		handlers:     handlers,
	}
	c.Next()

	res, err := c.GetRawResponse()
	if err != nil {
		wn.cfg.Logger.Error("failed to prepare response", "error", err, "method", req.Req.Method)
		return wn.errorResponse(req.Req.RequestID, defaultNodeErrorMessage)
	}
	return res
}

func (wn *WebsocketNode) errorResponse(requestID uint64, message string) []byte {
	res, err := prepareRawResponse(NewErrorResponse(requestID, message).Res)
	if err != nil {
		wn.cfg.Logger.Error("failed to prepare error response", "error", err)
		return nil
	}
	return res
}

// chain returns the middleware of every group enclosing method's group,
// outermost first, followed by the method handler.
func (wn *WebsocketNode) chain(method string) ([]Handler, bool) {
	wn.mu.RLock()
	defer wn.mu.RUnlock()

	r, ok := wn.methods[method]
	if !ok {
		return nil, false
	}

	var groups []*WebsocketHandlerGroup
	for g := r.group; g != nil; g = g.parent {
		groups = append(groups, g)
	}
	slices.Reverse(groups)

	var handlers []Handler
	for _, g := range groups {
		handlers = append(handlers, g.middleware...)
	}
	return append(handlers, r.handler), true
}

// NewGroup creates a handler group below the root.
//
//	journal := node.NewGroup("journal")
//	journal.Use(requireJournal)
//	journal.Handle("get_signatures", handleGetSignatures)
func (wn *WebsocketNode) NewGroup(name string) HandlerGroup {
	return wn.root.NewGroup(name)
}

// Handle registers handler for method after the global middleware.
// It panics on an empty method or nil handler.
func (wn *WebsocketNode) Handle(method string, handler Handler) {
	wn.root.Handle(method, handler)
}

// Use adds global middleware. Middleware runs in registration order.
func (wn *WebsocketNode) Use(middleware Handler) {
	wn.root.Use(middleware)
}

// WebsocketHandlerGroup is a HandlerGroup of a WebsocketNode. A request
// routed through a nested group runs global middleware, then each enclosing
// group's middleware from the outermost in, then the handler.
type WebsocketHandlerGroup struct {
	name       string
	parent     *WebsocketHandlerGroup
	node       *WebsocketNode
	middleware []Handler
}

// NewGroup creates a group nested in hg.
func (hg *WebsocketHandlerGroup) NewGroup(name string) HandlerGroup {
	return &WebsocketHandlerGroup{
		name:   hg.name + "." + name,
		parent: hg,
		node:   hg.node,
	}
}

// Handle registers handler for method inside the group. Method names are
// unique across the whole node; a later registration replaces an earlier one.
func (hg *WebsocketHandlerGroup) Handle(method string, handler Handler) {
	if method == "" {
		panic("Websocket method cannot be empty")
	}
	if handler == nil {
		panic(fmt.Sprintf("Websocket handler cannot be nil for method %s", method))
	}

	hg.node.mu.Lock()
	defer hg.node.mu.Unlock()
	hg.node.methods[method] = route{group: hg, handler: handler}
}

// Use adds middleware to the group. It applies to methods registered
// before and after the call.
func (hg *WebsocketHandlerGroup) Use(middleware Handler) {
	if middleware == nil {
		panic(fmt.Sprintf("Websocket middleware cannot be nil for group %s", hg.name))
	}

	hg.node.mu.Lock()
	defer hg.node.mu.Unlock()
	hg.middleware = append(hg.middleware, middleware)
}
