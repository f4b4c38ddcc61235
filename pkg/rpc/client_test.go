package rpc_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erc7824/nitrolite/ethsigner/pkg/ethtx"
	"github.com/erc7824/nitrolite/ethsigner/pkg/keys"
	"github.com/erc7824/nitrolite/ethsigner/pkg/rpc"
	"github.com/erc7824/nitrolite/ethsigner/pkg/sign"
)

// Test helpers
var (
	testCtx     = context.Background()
	testAddress = common.HexToAddress("0x1b30b0a25D2A2fE6E1e3cB1A1e9c5B36a1d1a0F7")
	testTxHash  = common.HexToHash("0x3f1d9d1c56fa2a5d58e7bd1e5b8f4a7dd8d3c7e1b2a4f6e8c0d2b4a6f8e0c2a4")
)

// setupClient creates a test client with mock dialer
func setupClient() (*rpc.Client, *MockDialer) {
	mockDialer := NewMockDialer()
	client := rpc.NewClient(mockDialer)
	return client, mockDialer
}

// createResponse creates an RPC response with the given data
func createResponse[T any](method rpc.Method, data T) (*rpc.Response, error) {
	params, err := rpc.NewParams(data)
	if err != nil {
		return nil, err
	}
	payload := rpc.NewPayload(0, string(method), params)
	res := rpc.NewResponse(payload)
	return &res, nil
}

// registerSimpleHandler registers a handler that returns the given response
func registerSimpleHandler[T any](dialer *MockDialer, method rpc.Method, response T) {
	dialer.RegisterHandler(method, func(params rpc.Params) (*rpc.Response, error) {
		return createResponse(method, response)
	})
}

// registerErrorHandler registers a handler that returns an error response
func registerErrorHandler(dialer *MockDialer, method rpc.Method, errMsg string) {
	dialer.RegisterHandler(method, func(params rpc.Params) (*rpc.Response, error) {
		res := rpc.NewErrorResponse(0, errMsg)
		return &res, nil
	})
}

func TestClient_Ping(t *testing.T) {
	t.Parallel()

	client, dialer := setupClient()
	registerSimpleHandler(dialer, rpc.PingMethod, struct{}{})

	// A ping answered with anything but pong is an error
	_, err := client.Ping(testCtx)
	require.EqualError(t, err, "unexpected response method: ping")

	dialer.RegisterHandler(rpc.PingMethod, func(params rpc.Params) (*rpc.Response, error) {
		return createResponse(rpc.PongMethod, struct{}{})
	})
	_, err = client.Ping(testCtx)
	require.NoError(t, err)
}

func TestClient_SignEthTx(t *testing.T) {
	t.Parallel()

	client, dialer := setupClient()
	signed := hexutil.MustDecode("0xf8658080825208940000000000000000000000000000000000000000808029a0")
	registerSimpleHandler(dialer, rpc.SignEthTxMethod, rpc.SignEthTxResponse{
		SignedTx: signed,
		TxHash:   testTxHash,
	})

	to := testAddress
	tx := ethtx.UnsignedTx{
		Nonce:    9,
		To:       &to,
		Value:    big.NewInt(1000),
		GasPrice: big.NewInt(20_000_000_000),
		Gas:      21000,
		Data:     []byte{0xde, 0xad},
	}

	res, _, err := client.SignEthTx(testCtx, tx)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Bytes(signed), res.SignedTx)
	assert.Equal(t, testTxHash, res.TxHash)

	// The request carries the transaction in its wire shape
	req, ok := dialer.LastRequest()
	require.True(t, ok)
	assert.Equal(t, rpc.SignEthTxMethod.String(), req.Req.Method)

	sent, err := ethtx.ParseParams(mustRaw(t, req.Req.Params))
	require.NoError(t, err)
	assert.Equal(t, tx.Nonce, sent.Nonce)
	assert.Equal(t, tx.Gas, sent.Gas)
	assert.Equal(t, testAddress, *sent.To)
	assert.Equal(t, 0, tx.Value.Cmp(sent.Value))
	assert.Equal(t, 0, tx.GasPrice.Cmp(sent.GasPrice))
	assert.Equal(t, tx.Data, sent.Data)
}

func TestClient_SignEthTx_Error(t *testing.T) {
	t.Parallel()

	client, dialer := setupClient()
	registerErrorHandler(dialer, rpc.SignEthTxMethod, "invalid params: gas is required")

	_, _, err := client.SignEthTx(testCtx, ethtx.UnsignedTx{GasPrice: big.NewInt(1)})
	require.EqualError(t, err, "invalid params: gas is required")
}

func TestClient_GetSignerInfo(t *testing.T) {
	t.Parallel()

	client, dialer := setupClient()
	pub := hexutil.MustDecode("0x03a34b99f22c790c4e36b2b3c2c35a36db06226e41c692fc82b8b56ac1c540c5bd")
	registerSimpleHandler(dialer, rpc.GetSignerInfoMethod, rpc.GetSignerInfoResponse{
		Address:   testAddress,
		PublicKey: pub,
		ChainID:   3,
	})

	info, _, err := client.GetSignerInfo(testCtx)
	require.NoError(t, err)
	assert.Equal(t, testAddress, info.Address)
	assert.Equal(t, hexutil.Bytes(pub), info.PublicKey)
	assert.Equal(t, uint64(3), info.ChainID)
}

func TestClient_DialerError(t *testing.T) {
	t.Parallel()

	client := rpc.NewClient(failingDialer{err: rpc.ErrNotConnected})

	_, err := client.Ping(testCtx)
	assert.True(t, errors.Is(err, rpc.ErrNotConnected))

	_, _, err = client.GetSignerInfo(testCtx)
	assert.True(t, errors.Is(err, rpc.ErrNotConnected))
}

func TestClient_UnknownMethod(t *testing.T) {
	t.Parallel()

	client, _ := setupClient()

	_, _, err := client.GetSignerInfo(testCtx)
	require.EqualError(t, err, "unknown method: get_signer_info")
}

func TestClient_PreparePayload(t *testing.T) {
	t.Parallel()

	client, _ := setupClient()

	p1, err := client.PreparePayload(rpc.GetSignerInfoMethod, nil)
	require.NoError(t, err)
	p2, err := client.PreparePayload(rpc.GetSignerInfoMethod, nil)
	require.NoError(t, err)

	assert.Equal(t, rpc.GetSignerInfoMethod.String(), p1.Method)
	assert.Empty(t, p1.Params)
	assert.NotEqual(t, p1.RequestID, p2.RequestID)

	_, err = client.PreparePayload(rpc.SignEthTxMethod, []string{"not", "an", "object"})
	assert.Error(t, err)
}

func TestClient_WithExpectedSigner(t *testing.T) {
	t.Parallel()

	oracleKey, err := keys.Generate()
	require.NoError(t, err)
	oracle, err := sign.NewEthereumSigner(oracleKey)
	require.NoError(t, err)
	impostorKey, err := keys.Generate()
	require.NoError(t, err)
	impostor, err := sign.NewEthereumSigner(impostorKey)
	require.NoError(t, err)

	info := rpc.GetSignerInfoResponse{Address: oracleKey.Address(), ChainID: 3}
	infoResponse := func(signer sign.Signer) *rpc.Response {
		res, err := createResponse(rpc.GetSignerInfoMethod, info)
		require.NoError(t, err)
		if signer != nil {
			hash, err := res.Res.Hash()
			require.NoError(t, err)
			sig, err := signer.Sign(hash)
			require.NoError(t, err)
			res.Sig = []sign.Signature{sig}
		}
		return res
	}
	unsignedError := rpc.NewErrorResponse(0, "service unavailable")

	tcs := []struct {
		name    string
		reply   *rpc.Response
		wantErr error
	}{
		{name: "signed by oracle", reply: infoResponse(oracle)},
		{name: "signed by impostor", reply: infoResponse(impostor), wantErr: rpc.ErrUnexpectedSigner},
		{name: "unsigned", reply: infoResponse(nil), wantErr: rpc.ErrUnexpectedSigner},
		{name: "unsigned error response", reply: &unsignedError, wantErr: rpc.ErrUnexpectedSigner},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			dialer := NewMockDialer()
			dialer.RegisterHandler(rpc.GetSignerInfoMethod, func(rpc.Params) (*rpc.Response, error) {
				return tc.reply, nil
			})
			client := rpc.NewClient(dialer, rpc.WithExpectedSigner(sign.NewEthereumAddress(oracleKey.Address())))

			got, sigs, err := client.GetSignerInfo(testCtx)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, oracleKey.Address(), got.Address)
			assert.Len(t, sigs, 1)
		})
	}
}

type failingDialer struct {
	err error
}

func (d failingDialer) Dial(context.Context, string, func(error)) error { return d.err }
func (d failingDialer) IsConnected() bool                               { return false }
func (d failingDialer) Call(context.Context, *rpc.Request) (*rpc.Response, error) {
	return nil, d.err
}

func mustRaw(t *testing.T, params rpc.Params) []byte {
	t.Helper()

	raw, err := params.Raw()
	require.NoError(t, err)
	return raw
}
