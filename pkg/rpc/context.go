package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erc7824/nitrolite/ethsigner/pkg/log"
	"github.com/erc7824/nitrolite/ethsigner/pkg/sign"
)

// noResponseMessage is sent when a handler chain finishes without responding.
const noResponseMessage = "internal server error: no response from handler"

// Handler processes a request. Middleware calls c.Next to run the rest of the
// chain and may inspect c.Response afterwards.
type Handler func(c *Context)

// Context carries one request through its handler chain. It belongs to a
// single request and is never shared between goroutines.
type Context struct {
	// Context is the request context. It carries the request deadline and
	// the request-scoped logger.
	Context context.Context
	// ConnectionID identifies the connection the request arrived on.
	ConnectionID string
	// Signer signs the response.
	Signer sign.Signer
	// Request is the decoded request.
	Request Request
	// Response is what the chain has produced so far.
	Response Response

	chain []Handler
	next  int
}

// Next runs the next handler of the chain, if any.
//
//	func timing(c *rpc.Context) {
//	    start := time.Now()
//	    c.Next()
//	    observe(c.Request.Req.Method, time.Since(start))
//	}
func (c *Context) Next() {
	if c.next >= len(c.chain) {
		return
	}
	h := c.chain[c.next]
	c.next++
	h(c)
}

// Abort stops the chain. Handlers already running still return normally.
func (c *Context) Abort() {
	c.next = len(c.chain)
}

// Logger returns the request-scoped logger.
func (c *Context) Logger() log.Logger {
	return log.FromContext(c.Context)
}

// Bind decodes the request params into v. Decoding failures are reported as
// client-visible invalid params errors.
func (c *Context) Bind(v any) error {
	if err := c.Request.Req.Params.Translate(v); err != nil {
		return InvalidParamsf("%v", err)
	}
	return nil
}

// Succeed responds to the request with method and params.
func (c *Context) Succeed(method string, params Params) {
	c.Response = NewResponse(NewPayload(c.Request.Req.RequestID, method, params))
}

// Fail responds with an error and stops the chain. The client sees the
// message of err only when err is or wraps an Error; otherwise it sees
// fallbackMessage, or a generic message when that is empty.
func (c *Context) Fail(err error, fallbackMessage string) {
	message := fallbackMessage
	var rpcErr Error
	if errors.As(err, &rpcErr) {
		message = rpcErr.Error()
	}
	if message == "" {
		message = defaultNodeErrorMessage
	}

	c.Response = NewErrorResponse(c.Request.Req.RequestID, message)
	c.Abort()
}

// Failed reports whether the current response is an error response.
func (c *Context) Failed() bool {
	return c.Response.Res.Method == ErrorMethod.String()
}

// responded reports whether any handler has set a response.
func (c *Context) responded() bool {
	return c.Response.Res.Method != ""
}

// encodeResponse signs the response and encodes it for the wire. A chain
// that never responded gets an error response.
func (c *Context) encodeResponse() ([]byte, error) {
	if !c.responded() {
		c.Fail(nil, noResponseMessage)
	}
	return signAndEncode(c.Signer, c.Response.Res)
}

// signAndEncode signs the Keccak-256 hash of payload and returns the JSON
// encoding of the signed response.
func signAndEncode(signer sign.Signer, payload Payload) ([]byte, error) {
	hash, err := payload.Hash()
	if err != nil {
		return nil, fmt.Errorf("failed to hash response payload: %w", err)
	}
	sig, err := signer.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign response payload: %w", err)
	}

	data, err := json.Marshal(NewResponse(payload, sig))
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return data, nil
}
