package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/erc7824/nitrolite/ethsigner/pkg/keys"
	"github.com/erc7824/nitrolite/ethsigner/pkg/log"
	"github.com/erc7824/nitrolite/ethsigner/pkg/rpc"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ethsigner",
		Short: "Ethereum transaction signing oracle",
		Long: `ethsigner holds one private key in memory and signs legacy Ethereum
transactions on request over a WebSocket RPC endpoint.

Requires configuration through ENV (see SIGNER_* variables).`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newStartCmd(),
		newImportCmd(),
		newAddressCmd(),
	)

	return rootCmd
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start [KEY_PATH]",
		Short: "Load the key and serve sign_eth_tx requests",
		Long: `Loads the key file (argument or SIGNER_KEY_PATH), then serves the RPC
endpoint and the metrics endpoint until SIGINT or SIGTERM.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.NewZapLogger(log.Config{Level: log.LevelInfo})

			conf, err := LoadConfig(logger)
			if err != nil {
				logger.Error("failed to load configuration", "error", err)
				return err
			}
			if len(args) == 1 {
				conf.KeyPath = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runStart(ctx, conf, log.NewZapLogger(conf.Log).WithName("ethsigner"))
		},
	}
}

// runStart serves until ctx is done or a listener fails, then shuts down
// the node, the HTTP servers and the key, in that order.
func runStart(ctx context.Context, conf *Config, logger log.Logger) error {
	if conf.KeyPath == "" {
		err := fmt.Errorf("%w: key path is required (argument or SIGNER_KEY_PATH)", ErrStartupFatal)
		logger.Error("failed to start", "error", err)
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetricsWithRegistry(registry)

	service, err := NewSigningServiceFromFile(conf.KeyPath, conf.ServiceConfig(), logger, metrics)
	if err != nil {
		logger.Error("failed to initialise signing service", "error", err)
		return err
	}
	defer service.Close()

	rpcNode, err := newRPCNode(conf, service, metrics, logger)
	if err != nil {
		logger.Error("failed to initialise RPC node", "error", err)
		return err
	}

	rpcMux := http.NewServeMux()
	rpcMux.Handle(conf.RPCPath, rpcNode)
	rpcServer := &http.Server{
		Addr:              conf.ListenAddr,
		Handler:           rpcMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Set up a separate mux for metrics
	metricsMux := http.NewServeMux()
	metricsMux.Handle(conf.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:              conf.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	rpcListener, err := net.Listen("tcp", conf.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "listenAddr", conf.ListenAddr, "error", err)
		return fmt.Errorf("%w: %w", ErrStartupFatal, err)
	}
	metricsListener, err := net.Listen("tcp", conf.MetricsAddr)
	if err != nil {
		rpcListener.Close()
		logger.Error("failed to listen", "listenAddr", conf.MetricsAddr, "error", err)
		return fmt.Errorf("%w: %w", ErrStartupFatal, err)
	}

	serveErr := make(chan error, 2)
	go func() {
		logger.Info("Prometheus metrics available", "listenAddr", metricsListener.Addr().String(), "endpoint", conf.MetricsPath)
		if err := metricsServer.Serve(metricsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("metrics server failure: %w", err)
		}
	}()
	go func() {
		logger.Info("RPC server available", "listenAddr", rpcListener.Addr().String(), "endpoint", conf.RPCPath)
		if err := rpcServer.Serve(rpcListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("RPC server failure: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-serveErr:
		logger.Error("server failed, shutting down", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.ShutdownTimeout)
	defer cancel()

	// Drain connections before the key is destroyed so in-flight responses can still be signed.
	if err := rpcNode.Close(shutdownCtx); err != nil {
		logger.Error("failed to close RPC node", "error", err)
	}
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down RPC server", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down metrics server", "error", err)
	}
	service.Close()

	logger.Info("shutdown complete")
	return runErr
}

// newRPCNode builds the WebSocket node that signs responses with the
// service's key and serves its handlers.
func newRPCNode(conf *Config, service *SigningService, metrics *Metrics, logger log.Logger) (*rpc.WebsocketNode, error) {
	node, err := rpc.NewWebsocketNode(rpc.WebsocketNodeConfig{
		Signer:                service.ResponseSigner(),
		Logger:                logger,
		OnConnectHandler:      metrics.ClientConnected,
		OnDisconnectHandler:   metrics.ClientDisconnected,
		RequestTimeout:        conf.RequestTimeout,
		MaxConcurrentRequests: conf.MaxConcurrentRequests,
	})
	if err != nil {
		return nil, err
	}

	service.RegisterHandlers(node)
	return node, nil
}

func newAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address KEY_PATH",
		Short: "Print the address and public key of a key file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keys.Load(args[0])
			if err != nil {
				return err
			}
			defer key.Destroy()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "address:    %s\n", key.Address().Hex())
			fmt.Fprintf(out, "public key: %s\n", hexutil.Encode(key.CompressedPublicKey()))
			return nil
		},
	}
}
