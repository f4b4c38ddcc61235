package rpc

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/erc7824/nitrolite/ethsigner/pkg/ethtx"
	"github.com/erc7824/nitrolite/ethsigner/pkg/sign"
)

// ErrUnexpectedSigner is returned when a response is not signed by the oracle
// address the client was configured to trust.
var ErrUnexpectedSigner = fmt.Errorf("response not signed by expected oracle")

// Client calls the signing oracle through a Dialer. Every typed method also
// returns the signatures of the response.
//
//	client := rpc.NewClient(rpc.NewWebsocketDialer(rpc.DefaultWebsocketDialerConfig),
//	    rpc.WithExpectedSigner(sign.NewEthereumAddress(oracleAddr)))
//	if err := client.Start(ctx, "ws://localhost:3030/ws", handleClosure); err != nil {
//	    return err
//	}
//	res, _, err := client.SignEthTx(ctx, tx)
type Client struct {
	dialer   Dialer
	expected sign.Address
	nextID   atomic.Uint64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithExpectedSigner makes the client reject every response that carries no
// signature recovering to addr, error responses included.
func WithExpectedSigner(addr sign.Address) ClientOption {
	return func(c *Client) {
		c.expected = addr
	}
}

// NewClient returns a client calling through dialer.
func NewClient(dialer Dialer, opts ...ClientOption) *Client {
	c := &Client{dialer: dialer}
	for _, opt := range opts {
		opt(c)
	}
	// Request ids count up from a random start.
	c.nextID.Store(uint64(uuid.New().ID()))
	return c
}

// Start connects to the oracle at url. handleClosure runs when the connection ends.
func (c *Client) Start(ctx context.Context, url string, handleClosure func(err error)) error {
	return c.dialer.Dial(ctx, url, handleClosure)
}

// Ping checks that the oracle answers.
func (c *Client) Ping(ctx context.Context) ([]sign.Signature, error) {
	res, err := c.call(ctx, PingMethod, nil)
	if err != nil {
		return nil, err
	}
	if res.Res.Method != PongMethod.String() {
		return res.Sig, fmt.Errorf("unexpected response method: %s", res.Res.Method)
	}
	return res.Sig, nil
}

// SignEthTx asks the oracle to sign tx. The result is ready for
// eth_sendRawTransaction.
func (c *Client) SignEthTx(ctx context.Context, tx ethtx.UnsignedTx) (SignEthTxResponse, []sign.Signature, error) {
	return c.SignEthTxParams(ctx, ethtx.NewSignTxParams(tx))
}

// SignEthTxParams is SignEthTx with the request params given verbatim.
func (c *Client) SignEthTxParams(ctx context.Context, params SignEthTxRequest) (SignEthTxResponse, []sign.Signature, error) {
	return invoke[SignEthTxResponse](ctx, c, SignEthTxMethod, params)
}

// GetSignerInfo returns the address, compressed public key and chain id of the oracle.
func (c *Client) GetSignerInfo(ctx context.Context) (GetSignerInfoResponse, []sign.Signature, error) {
	return invoke[GetSignerInfoResponse](ctx, c, GetSignerInfoMethod, nil)
}

// PreparePayload builds a request payload for method with a fresh request id.
func (c *Client) PreparePayload(method Method, params any) (Payload, error) {
	p, err := NewParams(params)
	if err != nil {
		return Payload{}, err
	}
	return NewPayload(c.nextID.Add(1), method.String(), p), nil
}

// invoke calls method and decodes the result params into T.
func invoke[T any](ctx context.Context, c *Client, method Method, params any) (T, []sign.Signature, error) {
	var out T
	res, err := c.call(ctx, method, params)
	if err != nil {
		return out, nil, err
	}
	if err := res.Res.Params.Translate(&out); err != nil {
		return out, res.Sig, err
	}
	return out, res.Sig, nil
}

// call sends one request. Error responses come back as Go errors.
func (c *Client) call(ctx context.Context, method Method, params any) (*Response, error) {
	payload, err := c.PreparePayload(method, params)
	if err != nil {
		return nil, err
	}

	req := NewRequest(payload)
	res, err := c.dialer.Call(ctx, &req)
	if err != nil {
		return nil, err
	}
	if err := c.verify(res); err != nil {
		return nil, err
	}
	if err := res.Error(); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) verify(res *Response) error {
	if c.expected == nil {
		return nil
	}

	signers, err := res.GetSigners()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpectedSigner, err)
	}
	for _, s := range signers {
		if c.expected.Equals(s) {
			return nil
		}
	}
	return fmt.Errorf("%w %s", ErrUnexpectedSigner, c.expected)
}
