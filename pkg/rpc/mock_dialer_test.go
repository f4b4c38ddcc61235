package rpc_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/erc7824/nitrolite/ethsigner/pkg/rpc"
)

// MockCallHandler answers one call of a MockDialer.
type MockCallHandler func(params rpc.Params) (*rpc.Response, error)

var _ rpc.Dialer = (*MockDialer)(nil)

// MockDialer answers calls in process from per-method handlers. Unknown
// methods and handler errors turn into error responses, the way a node
// reports them.
type MockDialer struct {
	mu       sync.Mutex
	handlers map[rpc.Method]MockCallHandler
	sent     []rpc.Request
}

func NewMockDialer() *MockDialer {
	return &MockDialer{handlers: make(map[rpc.Method]MockCallHandler)}
}

func (d *MockDialer) RegisterHandler(method rpc.Method, handler MockCallHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[method] = handler
}

func (d *MockDialer) Dial(context.Context, string, func(error)) error { return nil }

func (d *MockDialer) IsConnected() bool { return true }

func (d *MockDialer) Call(_ context.Context, req *rpc.Request) (*rpc.Response, error) {
	if req == nil {
		return nil, rpc.ErrNilRequest
	}

	d.mu.Lock()
	d.sent = append(d.sent, *req)
	handler := d.handlers[rpc.Method(req.Req.Method)]
	d.mu.Unlock()

	var res *rpc.Response
	var err error
	if handler == nil {
		err = fmt.Errorf("unknown method: %s", req.Req.Method)
	} else {
		res, err = handler(req.Req.Params)
	}
	if err != nil {
		errRes := rpc.NewErrorResponse(req.Req.RequestID, err.Error())
		return &errRes, nil
	}
	return res, nil
}

// LastRequest returns the most recent request.
func (d *MockDialer) LastRequest() (rpc.Request, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.sent) == 0 {
		return rpc.Request{}, false
	}
	return d.sent[len(d.sent)-1], true
}
