package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/erc7824/nitrolite/ethsigner/pkg/log"
)

// Dialer connects to a signing oracle and exchanges requests for responses.
type Dialer interface {
	// Dial connects to url and returns once the connection is usable.
	// handleClosure runs exactly once when the connection ends, with the
	// first error that ended it or nil for an orderly close.
	Dial(ctx context.Context, url string, handleClosure func(err error)) error

	// IsConnected reports whether the connection is usable.
	IsConnected() bool

	// Call sends req and waits for the response with the same request id.
	Call(ctx context.Context, req *Request) (*Response, error)
}

// WebsocketDialerConfig configures a WebsocketDialer.
type WebsocketDialerConfig struct {
	// HandshakeTimeout bounds the WebSocket opening handshake.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds a single frame write. Zero disables it.
	WriteTimeout time.Duration
	// PingInterval is the period of keepalive pings. Zero disables them.
	PingInterval time.Duration
	// PingRequestID is reserved for keepalive pings.
	PingRequestID uint64
	// ReadLimit caps the size of an incoming message in bytes. Zero means no limit.
	ReadLimit int64
}

// DefaultWebsocketDialerConfig is a configuration suitable for a local oracle.
var DefaultWebsocketDialerConfig = WebsocketDialerConfig{
	HandshakeTimeout: 5 * time.Second,
	WriteTimeout:     5 * time.Second,
	PingInterval:     5 * time.Second,
	PingRequestID:    100,
	ReadLimit:        1 << 20,
}

// WebsocketDialer is a Dialer over a single WebSocket connection.
// Call is safe for concurrent use.
type WebsocketDialer struct {
	cfg     WebsocketDialerConfig
	pending *pendingCalls

	mu   sync.RWMutex
	sess *session
}

var _ Dialer = (*WebsocketDialer)(nil)

// session is one live connection and the goroutines serving it.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	conn   *websocket.Conn
	lg     log.Logger

	writeMu sync.Mutex
}

func (s *session) write(data []byte, timeout time.Duration) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if timeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// NewWebsocketDialer returns a disconnected dialer.
func NewWebsocketDialer(cfg WebsocketDialerConfig) *WebsocketDialer {
	return &WebsocketDialer{
		cfg:     cfg,
		pending: newPendingCalls(),
	}
}

// Dial connects to url. Cancelling ctx, or calling Close, ends the connection.
//
// Example:
//
//	dialer := rpc.NewWebsocketDialer(rpc.DefaultWebsocketDialerConfig)
//	err := dialer.Dial(ctx, "ws://localhost:3030/ws", func(err error) {
//	    if err != nil {
//	        logger.Error("oracle connection lost", "error", err)
//	    }
//	})
func (d *WebsocketDialer) Dial(ctx context.Context, url string, handleClosure func(err error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sess != nil && d.sess.ctx.Err() == nil {
		return ErrAlreadyConnected
	}

	wsDialer := websocket.Dialer{
		HandshakeTimeout:  d.cfg.HandshakeTimeout,
		EnableCompression: true,
	}
	conn, _, err := wsDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDialingWebsocket, err)
	}
	if d.cfg.ReadLimit > 0 {
		conn.SetReadLimit(d.cfg.ReadLimit)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	sess := &session{
		ctx:    sessCtx,
		cancel: cancel,
		conn:   conn,
		lg:     log.FromContext(ctx).WithName("ws-dialer").WithKV("url", url),
	}
	d.sess = sess

	g, gctx := errgroup.WithContext(sessCtx)
	g.Go(func() error { return d.readLoop(gctx, sess) })
	if d.cfg.PingInterval > 0 {
		g.Go(func() error { return d.pingLoop(gctx, sess) })
	}

	go func() {
		err := g.Wait()
		cancel()
		conn.Close()
		d.pending.failAll()

		if err != nil {
			sess.lg.Warn("connection closed", "error", err)
		} else {
			sess.lg.Debug("connection closed")
		}
		if handleClosure != nil {
			handleClosure(err)
		}
	}()

	// Closing the socket unblocks the reader once the session ends.
	context.AfterFunc(gctx, func() { conn.Close() })

	return nil
}

// IsConnected reports whether the last Dial is still live.
func (d *WebsocketDialer) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.sess != nil && d.sess.ctx.Err() == nil
}

// Close ends the current connection, if any. The closure handler passed to
// Dial runs asynchronously.
func (d *WebsocketDialer) Close() {
	d.mu.RLock()
	sess := d.sess
	d.mu.RUnlock()

	if sess != nil {
		sess.cancel()
	}
}

func (d *WebsocketDialer) currentSession() (*session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.sess == nil || d.sess.ctx.Err() != nil {
		return nil, ErrNotConnected
	}
	return d.sess, nil
}

// readLoop routes every response to the call waiting for its request id.
// Responses nobody waits for are dropped. It returns nil when ctx ends.
func (d *WebsocketDialer) readLoop(ctx context.Context, sess *session) error {
	for {
		_, data, err := sess.conn.ReadMessage()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return fmt.Errorf("%w: %w", ErrConnectionTimeout, err)
			}
			return fmt.Errorf("%w: %w", ErrReadingMessage, err)
		}

		var res Response
		if err := json.Unmarshal(data, &res); err != nil {
			sess.lg.Warn("malformed response", "error", err)
			continue
		}
		if !d.pending.resolve(&res) {
			sess.lg.Debug("dropping unmatched response", "requestID", res.Res.RequestID, "method", res.Res.Method)
		}
	}
}

// Call sends req and waits for its response, for ctx to end or for the
// connection to close. Request ids must be unique among calls in flight.
//
//	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
//	defer cancel()
//	res, err := dialer.Call(ctx, &req)
func (d *WebsocketDialer) Call(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	sess, err := d.currentSession()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMarshalingRequest, err)
	}

	id := req.Req.RequestID
	sink, err := d.pending.add(id)
	if err != nil {
		return nil, err
	}
	defer d.pending.remove(id, sink)

	if err := sess.write(data, d.cfg.WriteTimeout); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSendingRequest, err)
	}

	select {
	case res, ok := <-sink:
		if ok {
			return res, nil
		}
	case <-ctx.Done():
	case <-sess.ctx.Done():
	}
	return nil, fmt.Errorf("%w for request %d", ErrNoResponse, id)
}

// pingLoop sends a ping every PingInterval. A failed ping ends the connection.
func (d *WebsocketDialer) pingLoop(ctx context.Context, sess *session) error {
	ticker := time.NewTicker(d.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		req := NewRequest(NewPayload(d.cfg.PingRequestID, PingMethod.String(), nil))
		res, err := d.Call(ctx, &req)
		if errors.Is(err, ErrDuplicateRequestID) {
			sess.lg.Debug("skipping ping, request id in use", "requestID", d.cfg.PingRequestID)
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrSendingPing, err)
		}
		if res.Res.Method != PongMethod.String() {
			sess.lg.Warn("unexpected response to ping", "method", res.Res.Method)
		}
	}
}

// pendingCalls maps request ids in flight to the channel awaiting the response.
type pendingCalls struct {
	mu    sync.Mutex
	sinks map[uint64]chan *Response
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{sinks: make(map[uint64]chan *Response)}
}

func (p *pendingCalls) add(id uint64) (chan *Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.sinks[id]; ok {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateRequestID, id)
	}
	sink := make(chan *Response, 1)
	p.sinks[id] = sink
	return sink, nil
}

// remove drops id unless it has been re-registered by another call.
func (p *pendingCalls) remove(id uint64, sink chan *Response) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sinks[id] == sink {
		delete(p.sinks, id)
	}
}

// resolve delivers res to its waiting call. Each call receives at most one response.
func (p *pendingCalls) resolve(res *Response) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	sink, ok := p.sinks[res.Res.RequestID]
	if !ok {
		return false
	}
	delete(p.sinks, res.Res.RequestID)
	sink <- res
	return true
}

// failAll wakes every waiting call without a response.
func (p *pendingCalls) failAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, sink := range p.sinks {
		close(sink)
		delete(p.sinks, id)
	}
}
