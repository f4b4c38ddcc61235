package sign

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/erc7824/nitrolite/ethsigner/pkg/keys"
)

var (
	_ Signer           = (*EthereumSigner)(nil)
	_ AddressRecoverer = (*EthereumAddressRecoverer)(nil)
	_ PublicKey        = EthereumPublicKey{}
	_ Address          = EthereumAddress{}
)

// ethereumVOffset is added to the recovery id in signatures this package
// produces.
const ethereumVOffset = 27

// EthereumAddress is a 20-byte account address.
type EthereumAddress struct{ common.Address }

func NewEthereumAddress(addr common.Address) EthereumAddress {
	return EthereumAddress{Address: addr}
}

// String returns the EIP-55 checksummed form.
func (a EthereumAddress) String() string { return a.Hex() }

func (a EthereumAddress) Equals(other Address) bool {
	switch o := other.(type) {
	case EthereumAddress:
		return o.Address == a.Address
	case nil:
		return false
	default:
		return o.String() == a.String()
	}
}

// EthereumPublicKey is a secp256k1 public key.
type EthereumPublicKey struct{ *ecdsa.PublicKey }

func (k EthereumPublicKey) Address() Address {
	return NewEthereumAddress(ethcrypto.PubkeyToAddress(*k.PublicKey))
}

// Bytes returns the uncompressed 65-byte form.
func (k EthereumPublicKey) Bytes() []byte { return ethcrypto.FromECDSAPub(k.PublicKey) }

// EthereumSigner signs with a resident key it does not own. Once the key is
// destroyed every Sign call fails.
type EthereumSigner struct {
	key *keys.KeyMaterial
	pub EthereumPublicKey
}

// NewEthereumSigner fails with keys.ErrKeyDestroyed if key is already gone.
func NewEthereumSigner(key *keys.KeyMaterial) (*EthereumSigner, error) {
	pub := key.ECDSAPublicKey()
	if pub == nil {
		return nil, keys.ErrKeyDestroyed
	}
	return &EthereumSigner{key: key, pub: EthereumPublicKey{pub}}, nil
}

func (s *EthereumSigner) PublicKey() PublicKey { return s.pub }

// Sign signs a 32-byte hash. The last byte of the result is 27 or 28.
func (s *EthereumSigner) Sign(hash []byte) (Signature, error) {
	sig, err := s.key.SignHash(hash)
	if err != nil {
		return nil, err
	}
	if sig[64] < ethereumVOffset {
		sig[64] += ethereumVOffset
	}
	return sig, nil
}

// EthereumAddressRecoverer recovers addresses from signatures over the
// Keccak-256 hash of a message.
type EthereumAddressRecoverer struct{}

func (*EthereumAddressRecoverer) RecoverAddress(message []byte, sig Signature) (Address, error) {
	return RecoverAddressFromHash(ethcrypto.Keccak256(message), sig)
}

// RecoverAddressFromHash returns the address that signed hash. Both 0/1 and
// 27/28 recovery ids are accepted.
func RecoverAddressFromHash(hash []byte, sig Signature) (Address, error) {
	if len(sig) != ethereumSignatureLen {
		return nil, errors.New("invalid signature length")
	}

	normalized := append(Signature(nil), sig...)
	if normalized[64] >= ethereumVOffset {
		normalized[64] -= ethereumVOffset
	}

	pub, err := ethcrypto.SigToPub(hash, normalized)
	if err != nil {
		return nil, fmt.Errorf("signature recovery failed: %w", err)
	}
	return NewEthereumAddress(ethcrypto.PubkeyToAddress(*pub)), nil
}
