package ethtx

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/erc7824/nitrolite/ethsigner/pkg/keys"
)

// Signer signs legacy transactions with EIP-155 replay protection for one chain.
// It is immutable and safe for concurrent use.
type Signer struct {
	key     *keys.KeyMaterial
	chainID *big.Int
	signer  types.Signer
}

// NewSigner binds key to chainID. chainID must be positive and fit in 64 bits.
func NewSigner(key *keys.KeyMaterial, chainID *big.Int) (*Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil key", ErrEncoding)
	}
	if chainID == nil || chainID.Sign() <= 0 || !chainID.IsUint64() {
		return nil, fmt.Errorf("%w: invalid chain id %v", ErrEncoding, chainID)
	}

	id := new(big.Int).Set(chainID)
	return &Signer{
		key:     key,
		chainID: id,
		signer:  types.NewEIP155Signer(id),
	}, nil
}

// Sign signs tx once with the key and chain id of a throwaway Signer.
func Sign(key *keys.KeyMaterial, tx UnsignedTx, chainID *big.Int) (*SignedTx, error) {
	s, err := NewSigner(key, chainID)
	if err != nil {
		return nil, err
	}
	return s.Sign(tx)
}

// Sign hashes the six transaction fields followed by chainID, 0, 0, signs the
// digest deterministically and returns the RLP of the fields plus v, r, s,
// where v = recovery id + chainID*2 + 35.
//
// Fields that cannot be encoded fail with ErrEncoding before the key is used.
func (s *Signer) Sign(tx UnsignedTx) (*SignedTx, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    tx.Nonce,
		GasPrice: orZero(tx.GasPrice),
		Gas:      tx.Gas,
		To:       tx.To,
		Value:    orZero(tx.Value),
		Data:     tx.Data,
	})

	digest := s.signer.Hash(unsigned)
	sig, err := s.key.SignHash(digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	signed, err := unsigned.WithSignature(s.signer, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to attach signature: %w", err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	v, r, ss := signed.RawSignatureValues()
	return &SignedTx{
		Raw:  raw,
		Hash: signed.Hash(),
		V:    v,
		R:    r,
		S:    ss,
	}, nil
}

// ChainID returns a copy of the chain id.
func (s *Signer) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// Address returns the sender address of every transaction this Signer produces.
func (s *Signer) Address() common.Address {
	return s.key.Address()
}

// Recover decodes a signed legacy transaction and returns its sender for chainID.
func Recover(raw []byte, chainID *big.Int) (common.Address, error) {
	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return types.Sender(types.NewEIP155Signer(chainID), &tx)
}
