// Package rpc implements the signed request/response protocol spoken by the
// signing oracle over WebSocket, together with the server node, a dialer and
// a typed client.
//
// # Protocol Overview
//
// Every message wraps a payload with signatures:
//
//	{"req": [request_id, method, params, timestamp_ms], "sig": ["0x..."]}
//	{"res": [request_id, method, params, timestamp_ms], "sig": ["0x..."]}
//
// Payloads use a compact array encoding, so the Keccak-256 hash of the
// encoded payload is stable. The node signs that hash with its sign.Signer
// and clients recover the oracle address from the response signature:
//
//	signers, err := res.GetSigners()
//
// Errors travel as a response with method "error":
//
//	{"res": [7, "error", {"error": "invalid params: gas is required"}, 1700000000000], "sig": ["0x..."]}
//
// # Methods
//
//   - ping: liveness check, answered with pong
//   - sign_eth_tx: signs a legacy Ethereum transaction (see SignEthTxRequest)
//   - get_signer_info: address, compressed public key and chain id of the oracle
//
// # Error Handling
//
// Only errors of type Error reach the client verbatim. Everything else is
// replaced by the handler's fallback message:
//
//	// Client-facing error - will be sent in response
//	c.Fail(rpc.InvalidParamsf("%v", err), "")
//
//	// Internal error - generic message sent to client
//	c.Fail(fmt.Errorf("signing failed: %w", err), "failed to sign transaction")
//
// # Server
//
// WebsocketNode upgrades HTTP requests, routes requests through middleware
// and handler chains, and signs every response:
//
//	node, err := rpc.NewWebsocketNode(rpc.WebsocketNodeConfig{
//	    Signer: signer,
//	    Logger: logger,
//	})
//	node.Handle(rpc.SignEthTxMethod.String(), handleSignEthTx)
//	http.Handle("/ws", node)
//
// Requests of one connection are handled concurrently, up to
// MaxConcurrentRequests at a time, each under a RequestTimeout deadline.
//
// # Client
//
// Client wraps a Dialer with one method per RPC operation. With
// WithExpectedSigner it rejects responses not signed by the given address:
//
//	dialer := rpc.NewWebsocketDialer(rpc.DefaultWebsocketDialerConfig)
//	client := rpc.NewClient(dialer, rpc.WithExpectedSigner(oracle))
//	if err := client.Start(ctx, "ws://localhost:3030/ws", func(error) {}); err != nil {
//	    return err
//	}
//	defer dialer.Close()
//	res, sigs, err := client.SignEthTx(ctx, tx)
//
// The dialer matches responses to calls by request id, so calls may be
// issued concurrently. It pings the node to keep the connection alive.
package rpc
