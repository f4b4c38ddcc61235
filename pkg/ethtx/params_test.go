package ethtx_test

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erc7824/nitrolite/ethsigner/pkg/ethtx"
)

func TestParseParams(t *testing.T) {
	t.Parallel()

	t.Run("known vector request", func(t *testing.T) {
		t.Parallel()

		tx, err := ethtx.ParseParams(json.RawMessage(`{
			"nonce": 0,
			"to": "0x0000000000000000000000000000000000000000",
			"value": "0",
			"gas_price": "10000",
			"gas": 21240,
			"data": "0x` + testDataHex + `"
		}`))
		require.NoError(t, err)
		assertTxEqual(t, knownTx(t), tx)
	})

	t.Run("hex quantities and absent optional fields", func(t *testing.T) {
		t.Parallel()

		tx, err := ethtx.ParseParams(json.RawMessage(`{"nonce":"0x10","gas_price":"0x2710","gas":"21000"}`))
		require.NoError(t, err)
		assert.Equal(t, uint64(16), tx.Nonce)
		assert.Zero(t, tx.GasPrice.Cmp(big.NewInt(10000)))
		assert.Equal(t, uint64(21000), tx.Gas)
		assert.Zero(t, tx.Value.Sign())
		assert.Nil(t, tx.To)
		assert.Empty(t, tx.Data)
	})

	t.Run("null recipient and unprefixed data", func(t *testing.T) {
		t.Parallel()

		tx, err := ethtx.ParseParams(json.RawMessage(`{"nonce":1,"to":null,"gas_price":"1","gas":1,"data":"6000"}`))
		require.NoError(t, err)
		assert.Nil(t, tx.To)
		assert.Equal(t, []byte{0x60, 0x00}, tx.Data)
	})

	invalid := []struct {
		name   string
		params string
		err    error
		msg    string
	}{
		{name: "not json", params: `nonce=1`, err: ethtx.ErrParse},
		{name: "wrong type", params: `{"nonce":true,"gas_price":"1","gas":1}`, err: ethtx.ErrParse},
		{name: "missing nonce", params: `{"gas_price":"1","gas":1}`, err: ethtx.ErrInvalidField, msg: "nonce is required"},
		{name: "missing gas price", params: `{"nonce":1,"gas":1}`, err: ethtx.ErrInvalidField, msg: "gas_price is required"},
		{name: "missing gas", params: `{"nonce":1,"gas_price":"1"}`, err: ethtx.ErrInvalidField, msg: "gas is required"},
		{name: "negative nonce", params: `{"nonce":-1,"gas_price":"1","gas":1}`, err: ethtx.ErrInvalidField, msg: "nonce"},
		{name: "nonce overflow", params: `{"nonce":"18446744073709551616","gas_price":"1","gas":1}`, err: ethtx.ErrInvalidField, msg: "nonce"},
		{name: "fractional gas", params: `{"nonce":1,"gas_price":"1","gas":1.5}`, err: ethtx.ErrInvalidField, msg: "gas"},
		{name: "value overflow", params: `{"nonce":1,"value":"0x1` + zeros(64) + `","gas_price":"1","gas":1}`, err: ethtx.ErrInvalidField, msg: "value"},
		{name: "gas price not a number", params: `{"nonce":1,"gas_price":"ten","gas":1}`, err: ethtx.ErrInvalidField, msg: "gas_price"},
		{name: "bad recipient", params: `{"nonce":1,"to":"0x1234","gas_price":"1","gas":1}`, err: ethtx.ErrInvalidField, msg: "to"},
		{name: "odd data", params: `{"nonce":1,"gas_price":"1","gas":1,"data":"0x600"}`, err: ethtx.ErrInvalidField, msg: "data"},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := ethtx.ParseParams(json.RawMessage(tc.params))
			require.ErrorIs(t, err, tc.err)
			if tc.msg != "" {
				assert.Contains(t, err.Error(), tc.msg)
			}
		})
	}
}

func TestNewSignTxParams(t *testing.T) {
	t.Parallel()

	to := common.HexToAddress("0x3535353535353535353535353535353535353535")
	tx := ethtx.UnsignedTx{
		Nonce:    7,
		To:       &to,
		Value:    big.NewInt(5),
		GasPrice: big.NewInt(10),
		Gas:      21000,
		Data:     []byte{0xde, 0xad},
	}

	data, err := json.Marshal(ethtx.NewSignTxParams(tx))
	require.NoError(t, err)

	parsed, err := ethtx.ParseParams(data)
	require.NoError(t, err)
	assertTxEqual(t, tx, parsed)
}

func assertTxEqual(t *testing.T, expected, actual ethtx.UnsignedTx) {
	t.Helper()

	assert.Equal(t, expected.Nonce, actual.Nonce)
	assert.Equal(t, expected.To, actual.To)
	assert.Zero(t, expected.Value.Cmp(actual.Value), "value %v != %v", expected.Value, actual.Value)
	assert.Zero(t, expected.GasPrice.Cmp(actual.GasPrice), "gas price %v != %v", expected.GasPrice, actual.GasPrice)
	assert.Equal(t, expected.Gas, actual.Gas)
	assert.Equal(t, expected.Data, actual.Data)
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}
