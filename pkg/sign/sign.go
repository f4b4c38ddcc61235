package sign

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ethereumSignatureLen is the length of an [R || S || V] signature.
const ethereumSignatureLen = 65

// Signer produces signatures with a single key. Implementations sign
// digests, never raw messages.
type Signer interface {
	PublicKey() PublicKey
	Sign(hash []byte) (Signature, error)
}

// AddressRecoverer finds the address that signed a message.
type AddressRecoverer interface {
	RecoverAddress(message []byte, signature Signature) (Address, error)
}

// PublicKey is the public half of a signing key.
type PublicKey interface {
	Address() Address
	Bytes() []byte
}

// Address identifies a signer. Addresses of different schemes never
// compare equal unless their string forms match.
type Address interface {
	fmt.Stringer
	Equals(other Address) bool
}

// Type names a signature scheme.
type Type uint8

const (
	TypeEthereum Type = 0
	TypeUnknown  Type = 255
)

var typeNames = map[Type]string{
	TypeEthereum: "Ethereum",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// Signature holds raw signature bytes. On the wire it is a 0x-prefixed hex
// string.
type Signature []byte

// Type guesses the scheme of s from its length.
func (s Signature) Type() Type {
	switch len(s) {
	case ethereumSignatureLen:
		return TypeEthereum
	default:
		return TypeUnknown
	}
}

func (s Signature) String() string { return hexutil.Encode(s) }

func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexutil.Bytes(s))
}

func (s *Signature) UnmarshalJSON(data []byte) error {
	var raw hexutil.Bytes
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}
	*s = Signature(raw)
	return nil
}

// NewAddressRecoverer returns a recoverer for signatures of scheme t.
func NewAddressRecoverer(t Type) (AddressRecoverer, error) {
	if t == TypeEthereum {
		return &EthereumAddressRecoverer{}, nil
	}
	return nil, fmt.Errorf("unsupported signature type: %s", t)
}

// NewAddressRecovererFromSignature picks the recoverer by the length of sig.
func NewAddressRecovererFromSignature(sig Signature) (AddressRecoverer, error) {
	return NewAddressRecoverer(sig.Type())
}
