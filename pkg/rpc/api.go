package rpc

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/erc7824/nitrolite/ethsigner/pkg/ethtx"
)

// ============================================================================
// RPC Method Constants
// ============================================================================

// Method represents an RPC method name that can be called on the signing oracle.
type Method string

const (
	// PingMethod is a simple method to check connectivity and liveness.
	PingMethod Method = "ping"
	// PongMethod is the response to a ping request.
	PongMethod Method = "pong"
	// ErrorMethod is the identifier for error responses.
	ErrorMethod Method = "error"
	// SignEthTxMethod signs a legacy Ethereum transaction with the resident key.
	SignEthTxMethod Method = "sign_eth_tx"
	// GetSignerInfoMethod returns the address, public key and chain id of the oracle.
	GetSignerInfoMethod Method = "get_signer_info"
)

// String returns the string representation of the method.
func (m Method) String() string {
	return string(m)
}

// ============================================================================
// Request and Response Types
// ============================================================================

// SignEthTxRequest is the params object of a sign_eth_tx request.
//
// Integer fields accept JSON numbers or decimal or 0x-prefixed hex strings.
// An absent "to" creates a contract.
type SignEthTxRequest = ethtx.SignTxParams

// SignEthTxResponse carries a signed transaction ready for eth_sendRawTransaction.
type SignEthTxResponse struct {
	// SignedTx is the RLP encoding of the signed transaction
	SignedTx hexutil.Bytes `json:"signed_tx"`
	// TxHash is the Keccak-256 hash of SignedTx
	TxHash common.Hash `json:"tx_hash"`
}

// GetSignerInfoResponse describes the identity of the resident key.
type GetSignerInfoResponse struct {
	// Address is the Ethereum address derived from the key
	Address common.Address `json:"address"`
	// PublicKey is the 33-byte compressed secp256k1 public key
	PublicKey hexutil.Bytes `json:"public_key"`
	// ChainID is the chain id bound into every signature
	ChainID uint64 `json:"chain_id"`
}
