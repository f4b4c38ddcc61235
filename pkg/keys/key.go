package keys

import (
	"crypto/ecdsa"
	"crypto/subtle"
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Size is the length of a secp256k1 private key in bytes.
const Size = 32

const redacted = "KeyMaterial([REDACTED])"

// KeyMaterial holds one secp256k1 private key.
//
// The scalar is the only stored state. Public key and address are derived on
// every call. A KeyMaterial is immutable until Destroy, so it may be shared by
// any number of goroutines without locking. Destroy itself must not race with
// other calls.
type KeyMaterial struct {
	scalar    [Size]byte
	destroyed atomic.Bool
}

// New copies raw into a new KeyMaterial. raw must be exactly 32 bytes encoding
// a nonzero scalar below the curve order.
func New(raw []byte) (*KeyMaterial, error) {
	if len(raw) != Size {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrFormat, Size, len(raw))
	}
	if _, err := ethcrypto.ToECDSA(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	k := &KeyMaterial{}
	copy(k.scalar[:], raw)
	return k, nil
}

// Generate creates a KeyMaterial from a fresh random key.
func Generate() (*KeyMaterial, error) {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	raw := math.PaddedBigBytes(priv.D, Size)
	defer zero(raw)
	return New(raw)
}

func (k *KeyMaterial) privateKey() (*ecdsa.PrivateKey, error) {
	if k.destroyed.Load() {
		return nil, ErrKeyDestroyed
	}
	return ethcrypto.ToECDSA(k.scalar[:])
}

// SignHash signs a 32-byte digest with deterministic ECDSA (RFC 6979).
// The result is [R || S || V] with V being the recovery id 0 or 1.
func (k *KeyMaterial) SignHash(hash []byte) ([]byte, error) {
	priv, err := k.privateKey()
	if err != nil {
		return nil, err
	}
	return ethcrypto.Sign(hash, priv)
}

// ECDSAPublicKey returns the public key, or nil after Destroy.
func (k *KeyMaterial) ECDSAPublicKey() *ecdsa.PublicKey {
	priv, err := k.privateKey()
	if err != nil {
		return nil
	}
	return &priv.PublicKey
}

// PublicKey returns the 65-byte uncompressed public key, or nil after Destroy.
func (k *KeyMaterial) PublicKey() []byte {
	pub := k.ECDSAPublicKey()
	if pub == nil {
		return nil
	}
	return ethcrypto.FromECDSAPub(pub)
}

// CompressedPublicKey returns the 33-byte compressed public key, or nil after Destroy.
func (k *KeyMaterial) CompressedPublicKey() []byte {
	pub := k.ECDSAPublicKey()
	if pub == nil {
		return nil
	}
	return ethcrypto.CompressPubkey(pub)
}

// Address returns the Ethereum address of the key, or the zero address after Destroy.
func (k *KeyMaterial) Address() common.Address {
	pub := k.ECDSAPublicKey()
	if pub == nil {
		return common.Address{}
	}
	return ethcrypto.PubkeyToAddress(*pub)
}

// Equal compares two keys in constant time.
func (k *KeyMaterial) Equal(other *KeyMaterial) bool {
	if k == nil || other == nil {
		return k == other
	}
	return subtle.ConstantTimeCompare(k.scalar[:], other.scalar[:]) == 1
}

// Destroy overwrites the scalar with zeros. Later signing fails with ErrKeyDestroyed.
func (k *KeyMaterial) Destroy() {
	k.destroyed.Store(true)
	zero(k.scalar[:])
}

// Destroyed reports whether Destroy has been called.
func (k *KeyMaterial) Destroyed() bool {
	return k.destroyed.Load()
}

func (k *KeyMaterial) String() string   { return redacted }
func (k *KeyMaterial) GoString() string { return redacted }

// Format keeps every fmt verb, including %x and %#v, from printing the scalar.
func (k *KeyMaterial) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(redacted))
}

// MarshalJSON never emits the scalar. Use EncodePortable to export a key.
func (k *KeyMaterial) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
