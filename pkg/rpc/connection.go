package rpc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/erc7824/nitrolite/ethsigner/pkg/log"
)

const (
	defaultConnWriteTimeout = 5 * time.Second
	defaultConnQueueSize    = 10
)

// Connection is one client session of a node. Implementations are transport-agnostic.
type Connection interface {
	// ConnectionID returns the unique identifier for this connection.
	ConnectionID() string

	// RawRequests yields incoming messages. It is closed when the connection ends.
	RawRequests() <-chan []byte

	// WriteRawResponse queues message for the client and reports whether it
	// was accepted within the write timeout. A rejected message schedules
	// the connection for closure. Safe for concurrent use.
	WriteRawResponse(message []byte) bool

	// Serve starts the connection in the background and returns immediately.
	// handleClosure is called once the connection has ended.
	Serve(parentCtx context.Context, handleClosure func(error))
}

// SocketConn is the subset of *websocket.Conn a WebsocketConnection uses.
type SocketConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// WebsocketConnectionConfig configures a WebsocketConnection.
// ConnectionID and WebsocketConn are required.
type WebsocketConnectionConfig struct {
	ConnectionID  string
	WebsocketConn SocketConn

	// WriteTimeout bounds how long WriteRawResponse waits for queue space (default: 5s).
	WriteTimeout time.Duration
	// WriteBufferSize is the capacity of the outgoing queue (default: 10).
	WriteBufferSize int
	// ProcessBufferSize is the capacity of the incoming queue (default: 10).
	ProcessBufferSize int

	Logger log.Logger
	// OnMessageSentHandler runs after each message is written to the socket.
	OnMessageSentHandler func([]byte)
}

// WebsocketConnection is a Connection over a WebSocket. A reader goroutine
// fills the incoming queue and a writer goroutine drains the outgoing one.
// The connection ends when the peer goes away, when the parent context ends
// or when a response cannot be queued in time.
type WebsocketConnection struct {
	id           string
	socket       SocketConn
	writeTimeout time.Duration
	lg           log.Logger
	onSent       func([]byte)

	inbox  chan []byte
	outbox chan []byte
	// overflow is signalled by WriteRawResponse when the outbox stays full.
	overflow chan struct{}

	started     atomic.Bool
	closeSocket func()
}

// NewWebsocketConnection validates config and returns an unstarted connection.
func NewWebsocketConnection(config WebsocketConnectionConfig) (*WebsocketConnection, error) {
	if config.ConnectionID == "" {
		return nil, fmt.Errorf("connection ID cannot be empty")
	}
	if config.WebsocketConn == nil {
		return nil, fmt.Errorf("websocket connection cannot be nil")
	}

	lg := config.Logger
	if lg == nil {
		lg = log.NewNoopLogger()
	}
	onSent := config.OnMessageSentHandler
	if onSent == nil {
		onSent = func([]byte) {}
	}

	conn := &WebsocketConnection{
		id:           config.ConnectionID,
		socket:       config.WebsocketConn,
		writeTimeout: orDefault(config.WriteTimeout, defaultConnWriteTimeout),
		lg:           lg.WithKV("connectionID", config.ConnectionID),
		onSent:       onSent,
		inbox:        make(chan []byte, orDefault(config.ProcessBufferSize, defaultConnQueueSize)),
		outbox:       make(chan []byte, orDefault(config.WriteBufferSize, defaultConnQueueSize)),
		overflow:     make(chan struct{}, 1),
	}
	conn.closeSocket = sync.OnceFunc(func() {
		if err := conn.socket.Close(); err != nil {
			conn.lg.Debug("error closing socket", "error", err)
		}
	})

	return conn, nil
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// Serve runs the reader, the writer and a watchdog until one of them stops.
// The first error any of them reports is passed to handleClosure, which runs
// before the socket is closed. Only the first call starts the connection;
// later calls invoke handleClosure(nil) at once.
func (conn *WebsocketConnection) Serve(parentCtx context.Context, handleClosure func(error)) {
	if !conn.started.CompareAndSwap(false, true) {
		handleClosure(nil)
		return
	}

	ctx, stop := context.WithCancel(parentCtx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return conn.readLoop(gctx)
	})
	g.Go(func() error {
		defer stop()
		return conn.writeLoop(gctx)
	})
	g.Go(func() error {
		defer stop()
		conn.watchdog(gctx)
		return nil
	})

	go func() {
		err := g.Wait()
		handleClosure(err)
		conn.closeSocket()
	}()
}

// ConnectionID returns the unique identifier for this connection.
func (conn *WebsocketConnection) ConnectionID() string {
	return conn.id
}

// RawRequests returns the incoming message queue.
func (conn *WebsocketConnection) RawRequests() <-chan []byte {
	return conn.inbox
}

// WriteRawResponse queues message for the writer goroutine.
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
		case conn.overflow <- struct{}{}:
		default:
		}
		return false
	}
}

func (conn *WebsocketConnection) readLoop(ctx context.Context) error {
	defer close(conn.inbox)

	for {
		_, msg, err := conn.socket.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || !websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				return nil
			}
			conn.lg.Error("connection closed unexpectedly", "error", err)
			return err
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

// writeLoop writes queued messages until ctx ends. A failed write drops the
// message and keeps the connection.
func (conn *WebsocketConnection) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-conn.outbox:
			if len(msg) == 0 {
				continue
			}
			if err := conn.socket.WriteMessage(websocket.TextMessage, msg); err != nil {
				conn.lg.Error("failed to write message", "error", err)
				continue
			}
			conn.onSent(msg)
		}
	}
}

// watchdog closes the socket when ctx ends or a response overflows, which
// unblocks the reader.
func (conn *WebsocketConnection) watchdog(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-conn.overflow:
		conn.lg.Warn("client is not reading responses, closing connection")
	}
	conn.closeSocket()
}
