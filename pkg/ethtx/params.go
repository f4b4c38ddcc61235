package ethtx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
)

// Quantity is an unsigned integer given either as a JSON number or as a
// decimal or 0x-prefixed hex string.
type Quantity string

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = Quantity(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*q = Quantity(n)
	return nil
}

// BigInt parses q. It reports false for empty, signed, fractional or non-numeric input.
func (q Quantity) BigInt() (*big.Int, bool) {
	s := string(q)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	if s == "" || s[0] == '+' || s[0] == '-' {
		return nil, false
	}
	return new(big.Int).SetString(s, base)
}

// SignTxParams is the request shape of sign_eth_tx.
type SignTxParams struct {
	Nonce    Quantity `json:"nonce" validate:"required,uint64"`
	To       *string  `json:"to,omitempty" validate:"omitempty,eth_addr"`
	Value    Quantity `json:"value,omitempty" validate:"omitempty,uint256"`
	GasPrice Quantity `json:"gas_price" validate:"required,uint256"`
	Gas      Quantity `json:"gas" validate:"required,uint64"`
	Data     string   `json:"data,omitempty" validate:"omitempty,hexbytes"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("failed to register %s validation: %v", tag, err))
		}
	}
	mustRegister("uint64", func(fl validator.FieldLevel) bool {
		n, ok := Quantity(fl.Field().String()).BigInt()
		return ok && n.IsUint64()
	})
	mustRegister("uint256", func(fl validator.FieldLevel) bool {
		n, ok := Quantity(fl.Field().String()).BigInt()
		return ok && n.BitLen() <= 256
	})
	mustRegister("hexbytes", func(fl validator.FieldLevel) bool {
		_, err := decodeHexBytes(fl.Field().String())
		return err == nil
	})
	return v
}

// ParseParams decodes and validates sign_eth_tx params.
// Malformed JSON fails with ErrParse, a missing or out-of-range field with ErrInvalidField.
func ParseParams(raw json.RawMessage) (UnsignedTx, error) {
	var p SignTxParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return UnsignedTx{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return p.UnsignedTx()
}

// UnsignedTx validates p and converts it into a transaction descriptor.
func (p SignTxParams) UnsignedTx() (UnsignedTx, error) {
	if err := validate.Struct(p); err != nil {
		return UnsignedTx{}, validationError(err)
	}

	nonce, _ := p.Nonce.BigInt()
	gas, _ := p.Gas.BigInt()
	gasPrice, _ := p.GasPrice.BigInt()

	tx := UnsignedTx{
		Nonce:    nonce.Uint64(),
		GasPrice: gasPrice,
		Gas:      gas.Uint64(),
		Value:    new(big.Int),
	}
	if p.Value != "" {
		tx.Value, _ = p.Value.BigInt()
	}
	if p.To != nil {
		to := common.HexToAddress(*p.To)
		tx.To = &to
	}
	if p.Data != "" {
		tx.Data, _ = decodeHexBytes(p.Data)
	}

	return tx, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidField, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			msgs = append(msgs, fe.Field()+" is required")
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s must be a valid %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidField, strings.Join(msgs, ", "))
}

// decodeHexBytes accepts hex with or without the 0x prefix.
func decodeHexBytes(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

// NewSignTxParams renders tx in the request shape of sign_eth_tx.
func NewSignTxParams(tx UnsignedTx) SignTxParams {
	p := SignTxParams{
		Nonce:    Quantity(fmt.Sprint(tx.Nonce)),
		Value:    Quantity(orZero(tx.Value).String()),
		GasPrice: Quantity(orZero(tx.GasPrice).String()),
		Gas:      Quantity(fmt.Sprint(tx.Gas)),
	}
	if tx.To != nil {
		to := tx.To.Hex()
		p.To = &to
	}
	if len(tx.Data) > 0 {
		p.Data = hexutil.Encode(tx.Data)
	}
	return p
}
