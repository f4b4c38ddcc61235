package rpc

import (
	"fmt"
)

const (
	// errorParamKey is the key under which error messages are stored in Params.
	errorParamKey = "error"

	// invalidParamsPrefix prefixes every client-visible parameter validation error.
	invalidParamsPrefix = "invalid params"
)

// Dialer error messages
var (
	// Connection errors
	ErrAlreadyConnected  = fmt.Errorf("already connected")
	ErrNotConnected      = fmt.Errorf("not connected to server")
	ErrConnectionTimeout = fmt.Errorf("websocket connection timeout")
	ErrReadingMessage    = fmt.Errorf("error reading message")

	// Request/Response errors
	ErrNilRequest         = fmt.Errorf("nil request")
	ErrDuplicateRequestID = fmt.Errorf("request id already in flight")
	ErrMarshalingRequest  = fmt.Errorf("error marshaling request")
	ErrSendingRequest     = fmt.Errorf("error sending request")
	ErrNoResponse         = fmt.Errorf("no response received")
	ErrSendingPing        = fmt.Errorf("error sending ping")

	// WebSocket-specific errors
	ErrDialingWebsocket = fmt.Errorf("error dialing websocket server")
)

// Node error messages
var (
	// ErrRequestTimeout is reported when a request cannot be dispatched before its deadline.
	ErrRequestTimeout = Errorf("request timed out")
	// ErrServiceUnavailable is reported by handlers whose backing service has been stopped.
	ErrServiceUnavailable = Errorf("service unavailable")
)

// Error represents an error in the RPC protocol that should be sent back to the client
// in the RPC response. Unlike generic errors, Error messages are guaranteed to be
// included in the error response sent to the client.
//
// Use Error when you want to provide specific, user-facing error messages in RPC responses.
// For internal errors that should not be exposed to clients, use regular errors instead.
//
// Example:
//
//	// Client will receive this exact error message
//	return rpc.Errorf("unsupported chain id: %d", id)
//
//	// Client will receive a generic error message
//	return fmt.Errorf("hsm session lost")
type Error struct {
	err error
}

// Errorf creates a new Error with a formatted error message that will be sent
// to the client in the RPC response.
//
// The error message should be clear, actionable, and safe to expose to external clients.
// Never include key material or file paths.
func Errorf(format string, args ...any) Error {
	return Error{
		err: fmt.Errorf(format, args...),
	}
}

// InvalidParamsf creates a client-visible Error reporting malformed request parameters.
// The message is prefixed with "invalid params: ".
func InvalidParamsf(format string, args ...any) Error {
	return Error{
		err: fmt.Errorf(invalidParamsPrefix+": "+format, args...),
	}
}

// Error implements the error interface for Error.
func (e Error) Error() string {
	return e.err.Error()
}

// Unwrap exposes the wrapped error to errors.Is and errors.As.
func (e Error) Unwrap() error {
	return e.err
}
