package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meshroute/overlay/internal/audit"
	"github.com/meshroute/overlay/internal/config"
	"github.com/meshroute/overlay/internal/daemon"
	"github.com/meshroute/overlay/internal/metrics"
	"github.com/meshroute/overlay/internal/reputation"
	"github.com/meshroute/overlay/pkg/overlaynet"
)

// overlayRuntime implements daemon.RuntimeInfo and owns the lifecycle of
// the node, its metrics server, and its reputation history.
type overlayRuntime struct {
	node      *overlaynet.Node
	version   string
	startTime time.Time

	cfg           *config.NodeConfig
	metrics       *metrics.Metrics
	audit         *audit.Logger
	history       *reputation.History
	historyPath   string
	metricsServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

func (rt *overlayRuntime) Node() *overlaynet.Node { return rt.node }
func (rt *overlayRuntime) Version() string        { return rt.version }
func (rt *overlayRuntime) StartTime() time.Time   { return rt.startTime }

func newOverlayRuntime(ctx context.Context, cancel context.CancelFunc, cfg *config.NodeConfig, ver string) (*overlayRuntime, error) {
	rt := &overlayRuntime{
		version:   ver,
		startTime: time.Now(),
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}

	if cfg.Telemetry.Metrics.Enabled {
		rt.metrics = metrics.New(ver, "go")
	}
	if cfg.Telemetry.Audit.Enabled {
		rt.audit = audit.New(slog.Default().Handler())
	}

	node, err := overlaynet.New(overlaynet.Config{
		KeyFile:                cfg.Identity.KeyFile,
		ListenAddresses:        cfg.Network.ListenAddresses,
		ResourceLimitsEnabled:  cfg.Network.ResourceLimitsEnabled,
		EnableConnectionGating: cfg.Security.EnableConnectionGating,
		StrikeLimit:            cfg.Security.StrikeLimit,
		BanDuration:            cfg.Security.BanDuration,
		Metrics:                rt.metrics,
		EnableMDNS:             cfg.Discovery.IsMDNSEnabled(),
		DHTNamespace:           cfg.Discovery.Network,
		Rendezvous:             cfg.Discovery.Rendezvous,
		BootstrapPeers:         cfg.Discovery.BootstrapPeers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create node: %w", err)
	}
	rt.node = node

	if historyDir, err := config.DefaultConfigDir(); err == nil {
		rt.historyPath = historyDir + "/neighbor_history.json"
		rt.history = reputation.NewHistory(rt.historyPath)
	}

	return rt, nil
}

// StartMetricsServer starts the /metrics HTTP endpoint if telemetry is
// enabled. Returns immediately; the server runs in a background goroutine.
func (rt *overlayRuntime) StartMetricsServer() {
	if rt.metrics == nil {
		return
	}

	addr := rt.cfg.Telemetry.Metrics.ListenAddress
	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.metrics.Handler())

	rt.metricsServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("metrics endpoint started", "addr", addr)
		if err := rt.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics endpoint error", "err", err)
		}
	}()
}

// StartHistorySaver periodically persists the neighbor reputation history
// to disk. The history is observational only (spec's reputation
// non-goal): it never feeds routing decisions.
func (rt *overlayRuntime) StartHistorySaver() {
	if rt.history == nil || rt.historyPath == "" {
		return
	}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-rt.ctx.Done():
				return
			case <-ticker.C:
				if err := rt.history.Save(); err != nil {
					slog.Warn("neighbor history: save failed", "err", err)
				}
			}
		}
	}()
}

// Shutdown saves history, stops the metrics server, and closes the node.
func (rt *overlayRuntime) Shutdown() {
	if rt.history != nil {
		if err := rt.history.Save(); err != nil {
			slog.Warn("neighbor history: final save failed", "err", err)
		}
	}
	if rt.metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		rt.metricsServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	rt.cancel()
	rt.node.Close()
}

func runServe(args []string) {
	fs := newConfigFlagSet("serve")
	if err := fs.Parse(args); err != nil {
		fatal("serve: %v", err)
	}

	cfg, err := loadConfigFromFlag(fs)
	if err != nil {
		fatal("serve: %v", err)
	}
	if err := config.ValidateOverlayNodeConfig(cfg); err != nil {
		fatal("serve: invalid config: %v", err)
	}

	fmt.Printf("overlayd %s (%s)\n", version, commit)
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())

	rt, err := newOverlayRuntime(ctx, cancel, cfg, version)
	if err != nil {
		cancel()
		fatal("failed to start: %v", err)
	}

	if err := rt.node.Bootstrap(ctx); err != nil {
		rt.Shutdown()
		fatal("bootstrap failed: %v", err)
	}

	rt.StartHistorySaver()

	socketPath := cfg.Daemon.SocketPath
	cookiePath := cookiePathFor(socketPath)

	srv := daemon.NewServer(rt, socketPath, cookiePath)
	srv.SetInstrumentation(rt.metrics, rt.audit)
	if err := srv.Start(); err != nil {
		rt.Shutdown()
		fatal("daemon API failed to start: %v", err)
	}

	rt.StartMetricsServer()

	fmt.Printf("Peer ID:    %s\n", rt.node.Self())
	fmt.Printf("Daemon API: %s\n", socketPath)
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	case <-srv.ShutdownCh():
		fmt.Println("\nShutdown requested via API")
	case <-ctx.Done():
	}

	srv.Stop()
	rt.Shutdown()
	fmt.Println("overlayd stopped.")
}
