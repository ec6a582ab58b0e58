package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/meshroute/overlay/internal/config"
	"github.com/meshroute/overlay/internal/qr"
	"github.com/meshroute/overlay/internal/validate"
	"github.com/meshroute/overlay/pkg/overlaynet"
)

func runInit(args []string) {
	if err := doInit(args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}

func doInit(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dirFlag := fs.String("dir", "", "config directory (default: ~/.config/overlay)")
	networkFlag := fs.String("network", "", "DHT network namespace for a private overlay (e.g., \"my-crew\")")
	rendezvousFlag := fs.String("rendezvous", "overlay", "rendezvous string peers advertise/discover under")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *networkFlag != "" {
		if err := validate.NetworkName(*networkFlag); err != nil {
			return fmt.Errorf("invalid --network value: %w", err)
		}
	}

	fmt.Fprintln(stdout, "Welcome to overlayd!")
	fmt.Fprintln(stdout)

	configDir := *dirFlag
	if configDir == "" {
		d, err := config.DefaultConfigDir()
		if err != nil {
			return fmt.Errorf("cannot determine config directory: %w", err)
		}
		configDir = d
	}

	configFile := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config already exists: %s\nDelete it first if you want to reinitialize", configFile)
	}

	fmt.Fprintf(stdout, "Creating config directory: %s\n", configDir)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	fmt.Fprintln(stdout)

	keyFile := filepath.Join(configDir, "identity.key")
	fmt.Fprintln(stdout, "Generating identity...")
	peerID, _, _, err := overlaynet.PeerIDFromKeyFile(keyFile)
	if err != nil {
		return fmt.Errorf("failed to generate identity: %w", err)
	}
	fmt.Fprintf(stdout, "Your Peer ID: %s\n", peerID)
	fmt.Fprintln(stdout)

	configContent := nodeConfigTemplate("identity.key", *rendezvousFlag, *networkFlag)
	if err := os.WriteFile(configFile, []byte(configContent), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(stdout, "Config written to:  %s\n", configFile)
	fmt.Fprintf(stdout, "Identity saved to:  %s\n", keyFile)
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, "Your Peer ID (scan to share):")
	fmt.Fprintln(stdout)
	if q, err := qr.New(peerID.String(), qr.Medium); err == nil {
		fmt.Fprint(stdout, q.ToSmallString(false))
	}

	fmt.Fprintln(stdout, "Next steps:")
	fmt.Fprintln(stdout, "  1. Start the node:  overlayd serve")
	fmt.Fprintln(stdout, "  2. Check status:    overlayd status")
	return nil
}

func nodeConfigTemplate(keyFile, rendezvous, network string) string {
	networkLine := ""
	if network != "" {
		networkLine = fmt.Sprintf("  network: %q\n", network)
	}
	return fmt.Sprintf(`# overlayd configuration, generated by "overlayd init".
version: %d

identity:
  key_file: %q

network:
  listen_addresses:
    - /ip4/0.0.0.0/tcp/4001
    - /ip6/::/tcp/4001
  resource_limits_enabled: true

discovery:
  rendezvous: %q
%s  bootstrap_peers: []
  mdns_enabled: true

security:
  enable_connection_gating: true
  strike_limit: 3
  ban_duration: 5m

routing:
  route_back_cache_size: 10000
  round_robin_max_nonce_difference_allowed: 10

daemon: {}

telemetry:
  metrics:
    enabled: false
    listen_address: 127.0.0.1:9091
  audit:
    enabled: false
`, config.CurrentConfigVersion, keyFile, rendezvous, networkLine)
}
