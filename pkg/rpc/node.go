package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/semaphore"

	"github.com/erc7824/nitrolite/ethsigner/pkg/log"
	"github.com/erc7824/nitrolite/ethsigner/pkg/sign"
)

const (
	defaultNodeErrorMessage = "an error occurred while processing the request"

	defaultRequestTimeout        = 10 * time.Second
	defaultMaxConcurrentRequests = 16
	defaultUpgraderBufferSize    = 1024
)

// ErrNodeClosed is returned by Close when the node has already been closed.
var ErrNodeClosed = fmt.Errorf("node closed")

// Node routes RPC requests to handlers. Handlers and middleware must be
// registered before the node starts serving.
type Node interface {
	// Handle registers the handler of method. Method names are global
	// across groups; registering a method again replaces its handler.
	Handle(method string, handler Handler)
	// Use appends middleware that runs before every handler.
	Use(middleware Handler)
	// NewGroup returns a group whose middleware runs after the node's.
	NewGroup(name string) HandlerGroup
}

// HandlerGroup is a set of methods sharing middleware. Groups nest; the
// middleware of outer groups runs first.
type HandlerGroup interface {
	Handle(method string, handler Handler)
	Use(middleware Handler)
	NewGroup(name string) HandlerGroup
}

var (
	_ Node         = (*WebsocketNode)(nil)
	_ http.Handler = (*WebsocketNode)(nil)
	_ HandlerGroup = (*WebsocketHandlerGroup)(nil)
)

// WebsocketNodeConfig configures a WebsocketNode. Signer and Logger are required.
type WebsocketNodeConfig struct {
	// Signer signs every response.
	Signer sign.Signer
	Logger log.Logger

	OnConnectHandler     func(connectionID string)
	OnDisconnectHandler  func(connectionID string)
	OnMessageSentHandler func([]byte)

	// WsUpgraderReadBufferSize and WsUpgraderWriteBufferSize default to 1024.
	WsUpgraderReadBufferSize  int
	WsUpgraderWriteBufferSize int
	// WsUpgraderCheckOrigin defaults to accepting every origin.
	WsUpgraderCheckOrigin func(r *http.Request) bool

	// Per-connection queues; see WebsocketConnectionConfig.
	WsConnWriteTimeout      time.Duration
	WsConnWriteBufferSize   int
	WsConnProcessBufferSize int

	// RequestTimeout bounds the wait for a dispatch slot and is the deadline
	// of the handler context (default: 10s).
	RequestTimeout time.Duration
	// MaxConcurrentRequests is the number of requests of one connection
	// handled at the same time (default: 16).
	MaxConcurrentRequests int64
}

func (cfg *WebsocketNodeConfig) setDefaults() {
	noop := func(string) {}
	if cfg.OnConnectHandler == nil {
		cfg.OnConnectHandler = noop
	}
	if cfg.OnDisconnectHandler == nil {
		cfg.OnDisconnectHandler = noop
	}
	if cfg.OnMessageSentHandler == nil {
		cfg.OnMessageSentHandler = func([]byte) {}
	}
	cfg.WsUpgraderReadBufferSize = orDefault(cfg.WsUpgraderReadBufferSize, defaultUpgraderBufferSize)
	cfg.WsUpgraderWriteBufferSize = orDefault(cfg.WsUpgraderWriteBufferSize, defaultUpgraderBufferSize)
	if cfg.WsUpgraderCheckOrigin == nil {
		cfg.WsUpgraderCheckOrigin = func(*http.Request) bool { return true }
	}
	cfg.RequestTimeout = orDefault(cfg.RequestTimeout, defaultRequestTimeout)
	if cfg.MaxConcurrentRequests <= 0 {
		cfg.MaxConcurrentRequests = defaultMaxConcurrentRequests
	}
}

// WebsocketNode serves the RPC protocol over WebSocket. Requests of one
// connection are handled concurrently, up to MaxConcurrentRequests, and
// their responses are written in completion order. Every response is signed.
type WebsocketNode struct {
	cfg      WebsocketNodeConfig
	lg       log.Logger
	upgrader websocket.Upgrader
	hub      *ConnectionHub

	root   *WebsocketHandlerGroup
	routes map[string]route

	// ctx is cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
	// serving counts running ServeHTTP calls.
	serving sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

type route struct {
	group   *WebsocketHandlerGroup
	handler Handler
}

// NewWebsocketNode returns a node with the built-in "ping" method registered.
func NewWebsocketNode(config WebsocketNodeConfig) (*WebsocketNode, error) {
	if config.Signer == nil {
		return nil, fmt.Errorf("signer cannot be nil")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	config.setDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	wn := &WebsocketNode{
		cfg: config,
		lg:  config.Logger.WithName("rpc-node"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.WsUpgraderReadBufferSize,
			WriteBufferSize: config.WsUpgraderWriteBufferSize,
			CheckOrigin:     config.WsUpgraderCheckOrigin,
		},
		hub:    NewConnectionHub(),
		routes: make(map[string]route),
		ctx:    ctx,
		cancel: cancel,
	}
	wn.root = &WebsocketHandlerGroup{name: "root", node: wn}

	wn.Handle(PingMethod.String(), func(c *Context) {
		c.Succeed(PongMethod.String(), nil)
	})

	return wn, nil
}

// Handle registers handler for method on the root group.
func (wn *WebsocketNode) Handle(method string, handler Handler) { wn.root.Handle(method, handler) }

// Use appends global middleware.
func (wn *WebsocketNode) Use(middleware Handler) { wn.root.Use(middleware) }

// NewGroup returns a top-level handler group.
//
//	signer := node.NewGroup("signer")
//	signer.Use(requireReady)
//	signer.Handle("sign_eth_tx", handleSignEthTx)
func (wn *WebsocketNode) NewGroup(name string) HandlerGroup { return wn.root.NewGroup(name) }

// ConnectionCount returns the number of open connections.
func (wn *WebsocketNode) ConnectionCount() int {
	return wn.hub.Count()
}

// ServeHTTP upgrades the request to a WebSocket and serves it until either
// side closes it or the node is closed. After Close it answers 503.
func (wn *WebsocketNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wn.mu.Lock()
	if wn.closed {
		wn.mu.Unlock()
		http.Error(w, "node is shutting down", http.StatusServiceUnavailable)
		return
	}
	wn.serving.Add(1)
	wn.mu.Unlock()
	defer wn.serving.Done()

	ws, err := wn.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wn.lg.Error("failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer ws.Close()

	id := uuid.NewString()
	lg := wn.lg.WithKV("connectionID", id)

	conn, err := NewWebsocketConnection(WebsocketConnectionConfig{
		ConnectionID:         id,
		WebsocketConn:        ws,
		Logger:               wn.lg,
		OnMessageSentHandler: wn.cfg.OnMessageSentHandler,
		WriteTimeout:         wn.cfg.WsConnWriteTimeout,
		WriteBufferSize:      wn.cfg.WsConnWriteBufferSize,
		ProcessBufferSize:    wn.cfg.WsConnProcessBufferSize,
	})
	if err != nil {
		lg.Error("failed to create connection", "error", err)
		return
	}
	if err := wn.hub.Add(conn); err != nil {
		lg.Error("failed to register connection", "error", err)
		return
	}
	wn.cfg.OnConnectHandler(id)
	lg.Info("connection established", "remoteAddr", r.RemoteAddr)

	defer func() {
		wn.hub.Remove(id)
		wn.cfg.OnDisconnectHandler(id)
		lg.Info("connection closed")
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(wn.ctx, cancel)
	defer stop()

	connDone := make(chan struct{})
	conn.Serve(ctx, func(err error) {
		if err != nil {
			lg.Warn("connection ended with error", "error", err)
		}
		cancel()
		close(connDone)
	})

	wn.dispatch(ctx, conn, lg)
	cancel()
	<-connDone
}

// Close refuses new connections, ends the open ones and waits for their
// in-flight requests, at most until ctx ends.
func (wn *WebsocketNode) Close(ctx context.Context) error {
	wn.mu.Lock()
	if wn.closed {
		wn.mu.Unlock()
		return ErrNodeClosed
	}
	wn.closed = true
	wn.mu.Unlock()

	if ids := wn.hub.IDs(); len(ids) > 0 {
		wn.lg.Info("closing connections", "count", len(ids), "connectionIDs", ids)
	}
	wn.cancel()

	done := make(chan struct{})
	go func() {
		wn.serving.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for connections to close: %w", ctx.Err())
	}
}

// dispatch reads requests of conn until it closes or ctx ends. Each routed
// request waits up to RequestTimeout for a slot and then runs on its own
// goroutine. dispatch returns after every started request has responded.
func (wn *WebsocketNode) dispatch(ctx context.Context, conn Connection, lg log.Logger) {
	slots := semaphore.NewWeighted(wn.cfg.MaxConcurrentRequests)
	var inFlight sync.WaitGroup
	defer inFlight.Wait()

	for {
		var msg []byte
		select {
		case <-ctx.Done():
			return
		case m, ok := <-conn.RawRequests():
			if !ok {
				return
			}
			msg = m
		}

		var req Request
		if err := json.Unmarshal(msg, &req); err != nil {
			lg.Debug("invalid message format", "error", err)
			wn.sendError(conn, req.Req.RequestID, "invalid message format")
			continue
		}

		chain, ok := wn.resolve(req.Req.Method)
		if !ok {
			lg.Debug("unknown method", "method", req.Req.Method)
			wn.sendError(conn, req.Req.RequestID, "unknown method: "+req.Req.Method)
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, wn.cfg.RequestTimeout)
		if err := slots.Acquire(reqCtx, 1); err != nil {
			cancel()
			if ctx.Err() != nil {
				return
			}
			lg.Warn("request timed out waiting for a dispatch slot", "requestID", req.Req.RequestID, "method", req.Req.Method)
			wn.sendError(conn, req.Req.RequestID, ErrRequestTimeout.Error())
			continue
		}

		inFlight.Add(1)
		go func() {
			defer inFlight.Done()
			defer slots.Release(1)
			defer cancel()

			wn.handle(reqCtx, conn, req, chain, lg)
		}()
	}
}

// resolve returns the middleware of every group on the route of method,
// outermost first, followed by its handler.
func (wn *WebsocketNode) resolve(method string) ([]Handler, bool) {
	r, ok := wn.routes[method]
	if !ok {
		return nil, false
	}

	var groups []*WebsocketHandlerGroup
	for g := r.group; g != nil; g = g.parent {
		groups = append(groups, g)
	}
	slices.Reverse(groups)

	var chain []Handler
	for _, g := range groups {
		chain = append(chain, g.middleware...)
	}
	return append(chain, r.handler), true
}

// handle runs the chain of one request and writes its signed response. A
// panicking handler gets a generic error response.
func (wn *WebsocketNode) handle(ctx context.Context, conn Connection, req Request, chain []Handler, lg log.Logger) {
	lg = lg.WithKV("requestID", req.Req.RequestID).WithKV("method", req.Req.Method)

	defer func() {
		if r := recover(); r != nil {
			lg.Error("handler panicked", "panic", fmt.Sprint(r))
			wn.sendError(conn, req.Req.RequestID, defaultNodeErrorMessage)
		}
	}()

	lg.Info("processing request")

	c := &Context{
		Context:      log.SetContextLogger(ctx, lg),
		ConnectionID: conn.ConnectionID(),
		Signer:       wn.cfg.Signer,
		Request:      req,
		chain:        chain,
	}
	c.Next()

	if !c.responded() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.Fail(ErrRequestTimeout, "")
	}

	data, err := c.encodeResponse()
	if err != nil {
		lg.Error("failed to prepare response", "error", err)
		message := defaultNodeErrorMessage
		if resErr := c.Response.Error(); resErr != nil {
			message = resErr.Error()
		}
		wn.sendError(conn, req.Req.RequestID, message)
		return
	}
	if !conn.WriteRawResponse(data) {
		lg.Warn("failed to queue response, closing connection")
	}
}

// sendError writes an error response outside any handler chain. When the
// signer fails the response goes out with no signatures.
func (wn *WebsocketNode) sendError(conn Connection, requestID uint64, message string) {
	res := NewErrorResponse(requestID, message)
	data, err := signAndEncode(wn.cfg.Signer, res.Res)
	if err != nil {
		wn.lg.Warn("failed to sign error response", "requestID", requestID, "error", err)
		res.Sig = []sign.Signature{}
		if data, err = json.Marshal(res); err != nil {
			wn.lg.Error("failed to encode error response", "requestID", requestID, "error", err)
			return
		}
	}
	conn.WriteRawResponse(data)
}

// WebsocketHandlerGroup is a HandlerGroup of a WebsocketNode.
type WebsocketHandlerGroup struct {
	name       string
	parent     *WebsocketHandlerGroup
	node       *WebsocketNode
	middleware []Handler
}

// NewGroup returns a group nested in hg.
func (hg *WebsocketHandlerGroup) NewGroup(name string) HandlerGroup {
	return &WebsocketHandlerGroup{
		name:   hg.name + "." + name,
		parent: hg,
		node:   hg.node,
	}
}

// Handle registers handler for method in hg. It panics on an empty method
// or a nil handler.
func (hg *WebsocketHandlerGroup) Handle(method string, handler Handler) {
	if method == "" {
		panic("rpc: empty method name")
	}
	if handler == nil {
		panic(fmt.Sprintf("rpc: nil handler for method %s", method))
	}
	hg.node.routes[method] = route{group: hg, handler: handler}
}

// Use appends middleware to hg. It panics on nil middleware.
func (hg *WebsocketHandlerGroup) Use(middleware Handler) {
	if middleware == nil {
		panic(fmt.Sprintf("rpc: nil middleware for group %s", hg.name))
	}
	hg.middleware = append(hg.middleware, middleware)
}
