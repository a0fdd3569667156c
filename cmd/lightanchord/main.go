// Command lightanchord runs the light-client trust-anchor daemon: it
// bootstraps from a checkpoint, keeps a verified trusted header warm
// against a primary RPC endpoint, cross-checks it against witnesses, and
// serves the result over HTTP.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lightanchor/lightanchor/crypto"
	"github.com/lightanchor/lightanchor/internal/api"
	"github.com/lightanchor/lightanchor/internal/clock"
	"github.com/lightanchor/lightanchor/internal/config"
	"github.com/lightanchor/lightanchor/internal/log"
	"github.com/lightanchor/lightanchor/internal/metrics"
	"github.com/lightanchor/lightanchor/internal/rpcclient"
	"github.com/lightanchor/lightanchor/internal/store"
	"github.com/lightanchor/lightanchor/internal/syncer"
	"github.com/lightanchor/lightanchor/light"
	"github.com/lightanchor/lightanchor/types"
)

var cfgFile string

func main() {
	v := viper.New()
	config.Defaults(v)

	root := &cobra.Command{
		Use:   "lightanchord",
		Short: "CometBFT/Tendermint-family light-client trust anchor daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}

	flags := root.Flags()
	flags.String("chain-id", "", "chain ID to verify (required)")
	flags.String("primary", "", "primary RPC endpoint, e.g. http://127.0.0.1:26657 (required)")
	flags.String("witnesses", "", "comma-separated witness RPC endpoints")
	flags.Int64("trusted-height", 0, "bootstrap checkpoint height (required)")
	flags.String("trusted-hash", "", "bootstrap checkpoint header hash, hex (required)")
	flags.String("listen-addr", "127.0.0.1:8080", "HTTP listen address")
	flags.String("trust-threshold", "2/3", "trust threshold as N/D")
	flags.Int64("trusting-period", 1209600, "trusting period, seconds")
	flags.Int64("max-clock-drift", 5, "max clock drift, seconds")
	flags.Int64("max-block-lag", 5, "max witness block lag, seconds")
	flags.Int64("freshness-threshold", 10, "staleness threshold before an on-demand sync, seconds")
	flags.Int64("keep-warm-interval", 300, "periodic sync interval, seconds")
	flags.Int64("halt-duration-on-fork", 3600, "halt duration after a detected fork, seconds")
	flags.Int64("api-timeout", 5, "max wait for an on-demand sync to complete, seconds")
	flags.String("signature-scheme", "ed25519", "commit signature scheme: ed25519 or bls")
	flags.IntP("verbosity", "v", 0, "log verbosity, 0-2")
	flags.StringVar(&cfgFile, "config", "", "optional TOML config file")

	for _, name := range []string{
		"chain-id", "primary", "witnesses", "trusted-height", "trusted-hash",
		"listen-addr", "trust-threshold", "trusting-period", "max-clock-drift",
		"max-block-lag", "freshness-threshold", "keep-warm-interval",
		"halt-duration-on-fork", "api-timeout", "signature-scheme", "verbosity",
	} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	v.SetEnvPrefix("LIGHTANCHOR")
	v.AutomaticEnv()

	cobra.OnInitialize(func() {
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
			v.SetConfigType("toml")
			if err := v.ReadInConfig(); err != nil {
				fmt.Fprintf(os.Stderr, "lightanchord: reading config file: %v\n", err)
				os.Exit(1)
			}
		}
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lightanchord: %v\n", err)
		os.Exit(1)
	}
}

func run(v *viper.Viper) error {
	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewFilteredLogfmtLogger(os.Stderr, cfg.Verbosity)

	var scheme types.SignatureScheme
	switch cfg.SignatureScheme {
	case types.SchemeBLS:
		scheme = crypto.BLSScheme{}
	default:
		scheme = crypto.Ed25519Scheme{}
	}
	logger.Info("starting", "chain_id", cfg.ChainID, "scheme", scheme.Name(),
		"primary", cfg.Primary, "witnesses", len(cfg.Witnesses))

	clients := rpcclient.Set{Primary: rpcclient.NewHTTPClient(cfg.Primary, cfg.Params.APITimeout)}
	for _, addr := range cfg.Witnesses {
		clients.Witnesses = append(clients.Witnesses, rpcclient.NewHTTPClient(addr, cfg.Params.APITimeout))
	}

	lightClient := light.NewClient(cfg.ChainID, scheme, cfg.Params, clients.Primary, clients.Witnesses, logger.With("component", "light"))
	trustedStore := &store.Store{}
	clk := clock.System{}
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("lightanchor")
	m.MustRegister(reg)

	coord := syncer.New(trustedStore, lightClient, clk, cfg.Params, m, logger.With("component", "syncer"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	bootstrapErr := coord.Bootstrap(ctx, cfg.Checkpoint())
	cancel()
	if bootstrapErr != nil {
		return fmt.Errorf("bootstrap failed: %w", bootstrapErr)
	}

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	coord.Start(runCtx)
	defer coord.Stop()

	server := api.NewServer(trustedStore, coord, clk, cfg.Params, reg, logger.With("component", "api"))
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
