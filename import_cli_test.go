package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erc7824/nitrolite/ethsigner/pkg/keys"
	"github.com/erc7824/nitrolite/ethsigner/pkg/log"
)

func executeCmd(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func writeKeyFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, testKeyDocument(), 0o600))
	return path
}

func TestImportCmd(t *testing.T) {
	t.Parallel()

	in := writeKeyFile(t)
	out := filepath.Join(t.TempDir(), "key.b64")

	stdout, err := executeCmd("import", in, out)
	require.NoError(t, err)
	assert.Contains(t, stdout, out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(common.FromHex(testKeyHex)), string(data))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestImportCmd_ExplicitJSONFormat(t *testing.T) {
	t.Parallel()

	in := writeKeyFile(t)
	out := filepath.Join(t.TempDir(), "key.b64")

	_, err := executeCmd("import", "--format", "json", in, out)
	require.NoError(t, err)

	k, err := keys.LoadPortableFromPath(out)
	require.NoError(t, err)
	assert.True(t, k.Equal(testKey(t)))
}

func TestImportCmd_RawRejected(t *testing.T) {
	t.Parallel()

	in := writeKeyFile(t)
	out := filepath.Join(t.TempDir(), "key.b64")

	stdout, err := executeCmd("import", "-f", "raw", in, out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, keys.ErrUnsupportedFormat))
	assert.Contains(t, stdout, "Error:")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestImportCmd_UnknownFormat(t *testing.T) {
	t.Parallel()

	in := writeKeyFile(t)
	out := filepath.Join(t.TempDir(), "key.b64")

	_, err := executeCmd("import", "-f", "pem", in, out)
	assert.True(t, errors.Is(err, keys.ErrUnsupportedFormat))
}

func TestImportCmd_Args(t *testing.T) {
	t.Parallel()

	_, err := executeCmd("import", "only-one-path")
	assert.Error(t, err)

	_, err = executeCmd("import", "a", "b", "c")
	assert.Error(t, err)
}

func TestImportCmd_MissingInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := executeCmd("import", filepath.Join(dir, "missing.json"), filepath.Join(dir, "out"))
	assert.True(t, errors.Is(err, keys.ErrIO))
}

func TestAddressCmd(t *testing.T) {
	t.Parallel()

	stdout, err := executeCmd("address", writeKeyFile(t))
	require.NoError(t, err)

	key := testKey(t)
	assert.Contains(t, stdout, key.Address().Hex())
	assert.Contains(t, stdout, hexutil.Encode(key.CompressedPublicKey()))

	_, err = executeCmd("address")
	assert.Error(t, err)
}

func TestRunStart_MissingKeyPath(t *testing.T) {
	t.Parallel()

	err := runStart(context.Background(), &Config{}, log.NewNoopLogger())
	assert.True(t, errors.Is(err, ErrStartupFatal))
}

func TestRunStart_BadKeyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"private_key":"0x00"}`), 0o600))

	err := runStart(context.Background(), testStartConfig(path), log.NewNoopLogger())
	assert.True(t, errors.Is(err, ErrStartupFatal))
	assert.True(t, errors.Is(err, keys.ErrFormat))
}

func TestRunStart_ListenFailure(t *testing.T) {
	t.Parallel()

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	conf := testStartConfig(writeKeyFile(t))
	conf.ListenAddr = busy.Addr().String()

	err = runStart(context.Background(), conf, log.NewNoopLogger())
	assert.True(t, errors.Is(err, ErrStartupFatal))
}

func TestRunStart_ShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	conf := testStartConfig(writeKeyFile(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runStart(ctx, conf, log.NewNoopLogger())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runStart did not return after cancel")
	}
}

func testStartConfig(keyPath string) *Config {
	return &Config{
		KeyPath:               keyPath,
		ChainID:               3,
		ListenAddr:            "127.0.0.1:0",
		RPCPath:               "/ws",
		MetricsAddr:           "127.0.0.1:0",
		MetricsPath:           "/metrics",
		RequestTimeout:        time.Second,
		MaxConcurrentRequests: 4,
		ShutdownTimeout:       time.Second,
	}
}
