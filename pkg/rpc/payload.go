package rpc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// payloadFields is the length of the array a Payload is encoded as.
const payloadFields = 4

// Payload is the signed part of every request and response. On the wire it
// is the array
//
//	[request_id, method, params, ts]
//
// where ts is Unix milliseconds. Responses are signed over the Keccak-256
// hash of exactly this encoding, so field order is fixed.
type Payload struct {
	// RequestID matches a response to its request. Unique per connection
	// among requests in flight.
	RequestID uint64
	// Method is the RPC method, e.g. "sign_eth_tx", or "error".
	Method string
	// Params holds the method arguments or results.
	Params Params
	// Timestamp is the creation time in Unix milliseconds.
	Timestamp uint64
}

// NewPayload returns a payload stamped with the current time. nil params
// are encoded as an empty object.
func NewPayload(id uint64, method string, params Params) Payload {
	if params == nil {
		params = Params{}
	}
	return Payload{
		RequestID: id,
		Method:    method,
		Params:    params,
		Timestamp: uint64(time.Now().UnixMilli()),
	}
}

// Hash returns the Keccak-256 hash of the wire encoding of p.
func (p Payload) Hash() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(data), nil
}

// MarshalJSON encodes p as a four-element array.
func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal([payloadFields]any{p.RequestID, p.Method, p.Params, p.Timestamp})
}

// UnmarshalJSON decodes the four-element array form. Each element must have
// the expected JSON type.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return fmt.Errorf("payload must be a JSON array: %w", err)
	}
	if len(elems) != payloadFields {
		return fmt.Errorf("payload must have %d elements, got %d", payloadFields, len(elems))
	}

	fields := [payloadFields]struct {
		name string
		dst  any
	}{
		{"request_id", &p.RequestID},
		{"method", &p.Method},
		{"params", &p.Params},
		{"ts", &p.Timestamp},
	}
	for i, f := range fields {
		if err := json.Unmarshal(elems[i], f.dst); err != nil {
			return fmt.Errorf("invalid %s: %w", f.name, err)
		}
	}
	return nil
}
