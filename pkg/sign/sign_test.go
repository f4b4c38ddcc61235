package sign_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erc7824/nitrolite/ethsigner/pkg/sign"
)

func TestType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Ethereum", sign.TypeEthereum.String())
	assert.Equal(t, "Unknown", sign.Type(sign.TypeUnknown).String())
	assert.Equal(t, "Unknown", sign.Type(99).String())
}

func TestSignature(t *testing.T) {
	t.Parallel()

	t.Run("type detection", func(t *testing.T) {
		assert.Equal(t, sign.TypeEthereum, make(sign.Signature, 65).Type())
		assert.Equal(t, sign.Type(sign.TypeUnknown), make(sign.Signature, 64).Type())
		assert.Equal(t, sign.Type(sign.TypeUnknown), sign.Signature(nil).Type())
	})

	t.Run("json", func(t *testing.T) {
		sig := sign.Signature{0x01, 0x02, 0x03}

		data, err := json.Marshal(sig)
		require.NoError(t, err)
		assert.Equal(t, `"0x010203"`, string(data))

		var decoded sign.Signature
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, sig, decoded)

		data, err = json.Marshal(sign.Signature{})
		require.NoError(t, err)
		assert.Equal(t, `"0x"`, string(data))
	})

	t.Run("json errors", func(t *testing.T) {
		for _, in := range []string{`{invalid}`, `"0xinvalidhex"`, `123`, `"010203"`} {
			var sig sign.Signature
			assert.Error(t, json.Unmarshal([]byte(in), &sig), in)
		}
	})
}

func TestNewAddressRecoverer(t *testing.T) {
	t.Parallel()

	recoverer, err := sign.NewAddressRecoverer(sign.TypeEthereum)
	require.NoError(t, err)
	assert.IsType(t, &sign.EthereumAddressRecoverer{}, recoverer)

	_, err = sign.NewAddressRecoverer(sign.Type(99))
	require.ErrorContains(t, err, "unsupported signature type: Unknown")

	_, err = sign.NewAddressRecovererFromSignature(make(sign.Signature, 32))
	require.Error(t, err)
}

func TestMockSigner(t *testing.T) {
	t.Parallel()

	signer := sign.NewMockSigner("oracle")
	data := []byte("payload")

	sig, err := signer.Sign(data)
	require.NoError(t, err)
	assert.Equal(t, sign.Signature("payload-signed-by-oracle"), sig)
	assert.Equal(t, []byte("payload"), data, "input must not be modified")

	addr := signer.PublicKey().Address()
	assert.Equal(t, "oracle", addr.String())
	assert.True(t, addr.Equals(sign.NewMockAddress("oracle")))
	assert.False(t, addr.Equals(sign.NewMockAddress("other")))
	assert.Equal(t, []byte("oracle"), signer.PublicKey().Bytes())
}
