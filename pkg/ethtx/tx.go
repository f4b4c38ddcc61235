package ethtx

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// UnsignedTx describes a legacy Ethereum transaction before signing.
// A nil To creates a contract. Nil Value and GasPrice encode as zero.
type UnsignedTx struct {
	Nonce    uint64
	To       *common.Address
	Value    *big.Int
	GasPrice *big.Int
	Gas      uint64
	Data     []byte
}

// SignedTx is a signed transaction in its wire encoding.
type SignedTx struct {
	// Raw is the RLP encoding of the nine signed fields.
	Raw  []byte
	Hash common.Hash
	V    *big.Int
	R    *big.Int
	S    *big.Int
}

// Validate checks that every integer field fits its RLP width.
func (tx UnsignedTx) Validate() error {
	if err := checkUint256("value", tx.Value); err != nil {
		return err
	}
	return checkUint256("gas_price", tx.GasPrice)
}

func checkUint256(field string, v *big.Int) error {
	if v == nil {
		return nil
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%w: %s is negative", ErrEncoding, field)
	}
	if v.Cmp(math.MaxBig256) > 0 {
		return fmt.Errorf("%w: %s overflows 256 bits", ErrEncoding, field)
	}
	return nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
