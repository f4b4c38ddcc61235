package main

import (
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/erc7824/nitrolite/ethsigner/pkg/ethtx"
	"github.com/erc7824/nitrolite/ethsigner/pkg/keys"
	"github.com/erc7824/nitrolite/ethsigner/pkg/log"
	"github.com/erc7824/nitrolite/ethsigner/pkg/rpc"
	"github.com/erc7824/nitrolite/ethsigner/pkg/sign"
)

// ErrStartupFatal reports that the resident key could not be established.
var ErrStartupFatal = fmt.Errorf("signing service startup failed")

var _ sign.Signer = (*SigningService)(nil)

const tracerName = "github.com/erc7824/nitrolite/ethsigner"

// ServiceState is the lifecycle state of a SigningService.
type ServiceState int

const (
	StateUninitialized ServiceState = iota
	StateReady
	StateStopped
)

func (s ServiceState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateStopped:
		return "stopped"
	default:
		return "uninitialized"
	}
}

// ServiceConfig holds the signing parameters of the service.
type ServiceConfig struct {
	ChainID uint64
}

// SigningService owns the resident key and answers sign_eth_tx requests.
// Every use of the key holds mu for reading so Close cannot zero it mid-use.
type SigningService struct {
	key            *keys.KeyMaterial
	signer         *ethtx.Signer
	responseSigner *sign.EthereumSigner
	address        common.Address
	publicKey      []byte
	logger         log.Logger
	metrics        *Metrics
	tracer         trace.Tracer

	mu    sync.RWMutex
	state ServiceState
}

// NewSigningServiceFromKey builds a ready service from the 32 raw bytes of a
// private key. raw is copied and may be zeroed by the caller afterwards.
func NewSigningServiceFromKey(raw []byte, cfg ServiceConfig, logger log.Logger, m *Metrics) (*SigningService, error) {
	key, err := keys.New(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartupFatal, err)
	}
	return newSigningService(key, cfg, logger, m)
}

// NewSigningServiceFromDocument decodes a JSON key document
// {"private_key": "0x..."} and builds a ready service.
func NewSigningServiceFromDocument(data []byte, cfg ServiceConfig, logger log.Logger, m *Metrics) (*SigningService, error) {
	key, err := keys.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartupFatal, err)
	}
	return newSigningService(key, cfg, logger, m)
}

// NewSigningServiceFromFile loads a JSON key document or an import output
// file and builds a ready service.
func NewSigningServiceFromFile(path string, cfg ServiceConfig, logger log.Logger, m *Metrics) (*SigningService, error) {
	key, err := keys.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartupFatal, err)
	}
	return newSigningService(key, cfg, logger, m)
}

func newSigningService(key *keys.KeyMaterial, cfg ServiceConfig, logger log.Logger, m *Metrics) (*SigningService, error) {
	signer, err := ethtx.NewSigner(key, new(big.Int).SetUint64(cfg.ChainID))
	if err != nil {
		key.Destroy()
		return nil, fmt.Errorf("%w: %w", ErrStartupFatal, err)
	}
	responseSigner, err := sign.NewEthereumSigner(key)
	if err != nil {
		key.Destroy()
		return nil, fmt.Errorf("%w: %w", ErrStartupFatal, err)
	}

	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if m == nil {
		m = NewMetricsWithRegistry(prometheus.NewRegistry())
	}

	s := &SigningService{
		key:            key,
		signer:         signer,
		responseSigner: responseSigner,
		address:        key.Address(),
		publicKey:      key.CompressedPublicKey(),
		logger:         logger.WithName("signing-service"),
		metrics:        m,
		tracer:         otel.Tracer(tracerName),
		state:          StateReady,
	}
	s.logger.Info("signing service ready", "address", s.address.Hex(), "chainID", cfg.ChainID)

	return s, nil
}

// State returns the current lifecycle state.
func (s *SigningService) State() ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// Address returns the address of the resident key.
func (s *SigningService) Address() common.Address {
	return s.address
}

// ChainID returns the chain id transactions are signed for.
func (s *SigningService) ChainID() *big.Int {
	return s.signer.ChainID()
}

// ResponseSigner returns the signer of RPC responses. It signs with the
// resident key under the service lock and fails once the service is closed.
func (s *SigningService) ResponseSigner() sign.Signer {
	return s
}

// PublicKey returns the public key of the resident key. It stays available
// after Close.
func (s *SigningService) PublicKey() sign.PublicKey {
	return s.responseSigner.PublicKey()
}

// Sign signs a response digest with the resident key.
func (s *SigningService) Sign(hash []byte) (sign.Signature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateReady {
		return nil, keys.ErrKeyDestroyed
	}
	return s.responseSigner.Sign(hash)
}

// Close stops the service and zeroes the resident key. Later requests are
// rejected as unavailable. Calling Close more than once is a no-op.
func (s *SigningService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return
	}
	s.state = StateStopped
	s.key.Destroy()
	s.logger.Info("signing service stopped")
}

// RegisterHandlers installs the service's RPC methods on node.
func (s *SigningService) RegisterHandlers(node *rpc.WebsocketNode) {
	group := node.NewGroup("signer")
	group.Use(s.observeRequest)
	group.Use(s.requireReady)
	group.Handle(rpc.SignEthTxMethod.String(), s.handleSignEthTx)
	group.Handle(rpc.GetSignerInfoMethod.String(), s.handleGetSignerInfo)
}

func (s *SigningService) observeRequest(c *rpc.Context) {
	c.Next()

	status := "success"
	if c.Failed() {
		status = "error"
	}
	s.metrics.RPCRequests.WithLabelValues(c.Request.Req.Method, status).Inc()
}

func (s *SigningService) requireReady(c *rpc.Context) {
	if s.State() != StateReady {
		c.Fail(rpc.ErrServiceUnavailable, "")
		return
	}
	c.Next()
}

func (s *SigningService) handleSignEthTx(c *rpc.Context) {
	ctx, span := s.tracer.Start(c.Context, "sign_eth_tx",
		trace.WithAttributes(requestIDAttribute(c.Request.Req.RequestID)))
	defer span.End()
	logger := log.FromContext(log.SetContextLogger(ctx, c.Logger()))

	raw, err := c.Request.Req.Params.Raw()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.Fail(rpc.InvalidParamsf("%v", err), "")
		return
	}

	tx, err := ethtx.ParseParams(raw)
	if err != nil {
		logger.Debug("rejected sign request", "error", err)
		span.SetStatus(codes.Error, err.Error())
		c.Fail(rpc.InvalidParamsf("%v", err), "")
		return
	}

	// The read lock keeps Close from zeroing the key mid-signature.
	s.mu.RLock()
	if s.state != StateReady {
		s.mu.RUnlock()
		c.Fail(rpc.ErrServiceUnavailable, "")
		return
	}
	start := time.Now()
	signed, err := s.signer.Sign(tx)
	s.metrics.SignDuration.Observe(time.Since(start).Seconds())
	s.mu.RUnlock()

	if err != nil {
		logger.Warn("failed to sign transaction", "error", err)
		span.SetStatus(codes.Error, err.Error())
		c.Fail(rpc.InvalidParamsf("%v", err), "")
		return
	}

	s.metrics.SignedTransactions.Inc()
	span.SetAttributes(attribute.String("eth.tx_hash", signed.Hash.Hex()))
	logger.Info("signed transaction", "txHash", signed.Hash.Hex(), "nonce", tx.Nonce)

	params, err := rpc.NewParams(rpc.SignEthTxResponse{
		SignedTx: signed.Raw,
		TxHash:   signed.Hash,
	})
	if err != nil {
		c.Fail(err, "failed to encode signed transaction")
		return
	}
	c.Succeed(c.Request.Req.Method, params)
}

func (s *SigningService) handleGetSignerInfo(c *rpc.Context) {
	params, err := rpc.NewParams(rpc.GetSignerInfoResponse{
		Address:   s.address,
		PublicKey: s.publicKey,
		ChainID:   s.signer.ChainID().Uint64(),
	})
	if err != nil {
		c.Fail(err, "failed to encode signer info")
		return
	}
	c.Succeed(c.Request.Req.Method, params)
}

// requestIDAttribute renders the id in decimal; ids may exceed math.MaxInt64.
func requestIDAttribute(id uint64) attribute.KeyValue {
	return attribute.String("rpc.request_id", strconv.FormatUint(id, 10))
}
