package rpc

import (
	"encoding/json"

	"github.com/erc7824/nitrolite/ethsigner/pkg/sign"
)

// Request is a client message:
//
//	{"req": [request_id, method, params, ts], "sig": ["0x..."]}
//
// The oracle does not authenticate clients, so Sig is usually empty.
type Request struct {
	Req Payload          `json:"req"`
	Sig []sign.Signature `json:"sig"`
}

// NewRequest wraps payload with optional signatures.
func NewRequest(payload Payload, sig ...sign.Signature) Request {
	return Request{Req: payload, Sig: sig}
}

// GetSigners recovers one address per signature over the request payload.
func (r Request) GetSigners() ([]sign.Address, error) {
	return recoverSigners(r.Req, r.Sig)
}

// Response is an oracle message:
//
//	{"res": [request_id, method, params, ts], "sig": ["0x..."]}
//
// Sig holds the resident key's signature over the payload hash. It is empty
// only for error responses sent after the key was destroyed.
type Response struct {
	Res Payload          `json:"res"`
	Sig []sign.Signature `json:"sig"`
}

// NewResponse wraps payload with optional signatures.
func NewResponse(payload Payload, sig ...sign.Signature) Response {
	return Response{Res: payload, Sig: sig}
}

// NewErrorResponse builds an "error" response carrying errMsg.
func NewErrorResponse(requestID uint64, errMsg string, sig ...sign.Signature) Response {
	return NewResponse(NewPayload(requestID, ErrorMethod.String(), NewErrorParams(errMsg)), sig...)
}

// GetSigners recovers one address per signature over the response payload.
func (r Response) GetSigners() ([]sign.Address, error) {
	return recoverSigners(r.Res, r.Sig)
}

// Error returns the message of an error response, or nil for any other response.
func (r Response) Error() error {
	if r.Res.Method != ErrorMethod.String() {
		return nil
	}
	return r.Res.Params.Error()
}

// recoverSigners hands the encoded payload to each recoverer, which hashes
// it the same way Payload.Hash does.
func recoverSigners(p Payload, sigs []sign.Signature) ([]sign.Address, error) {
	msg, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	addrs := make([]sign.Address, 0, len(sigs))
	for _, sig := range sigs {
		rec, err := sign.NewAddressRecovererFromSignature(sig)
		if err != nil {
			return nil, err
		}
		addr, err := rec.RecoverAddress(msg, sig)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
