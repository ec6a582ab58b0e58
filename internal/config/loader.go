package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// checkConfigFilePermissions rejects a config file with overly permissive
// permissions. Config files reference the node's private key file path and
// bootstrap topology. Returns an error if any group or other permission bit
// is set.
func checkConfigFilePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return nil // file access errors are handled by the caller
	}
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		return fmt.Errorf("config file %s has overly permissive mode %04o; expected 0600 — fix with: chmod 600 %s", path, mode, path)
	}
	return nil
}

// LoadOverlayNodeConfig loads overlay node configuration from a YAML file.
func LoadOverlayNodeConfig(path string) (*OverlayNodeConfig, error) {
	if err := checkConfigFilePermissions(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Parse YAML with custom unmarshaling for duration fields, which are
	// stored as human-readable strings ("5m", "30s") rather than nanosecond
	// integers.
	var rawConfig struct {
		Version   int            `yaml:"version,omitempty"`
		Identity  IdentityConfig `yaml:"identity"`
		Network   NetworkConfig  `yaml:"network"`
		Discovery struct {
			Rendezvous       string   `yaml:"rendezvous"`
			Network          string   `yaml:"network,omitempty"`
			BootstrapPeers   []string `yaml:"bootstrap_peers"`
			MDNSEnabled      *bool    `yaml:"mdns_enabled,omitempty"`
			AnnounceInterval string   `yaml:"announce_interval,omitempty"`
		} `yaml:"discovery"`
		Security struct {
			EnableConnectionGating bool   `yaml:"enable_connection_gating"`
			StrikeLimit            int    `yaml:"strike_limit,omitempty"`
			BanDuration            string `yaml:"ban_duration,omitempty"`
		} `yaml:"security"`
		Routing   RoutingConfig   `yaml:"routing,omitempty"`
		Daemon    DaemonConfig    `yaml:"daemon,omitempty"`
		Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
	}

	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Default version to 1 for configs written before versioning was added.
	version := rawConfig.Version
	if version == 0 {
		version = 1
	}
	if version > CurrentConfigVersion {
		return nil, fmt.Errorf("%w: version %d is newer than supported version %d; please upgrade overlayd", ErrConfigVersionTooNew, version, CurrentConfigVersion)
	}

	var announceInterval time.Duration
	if rawConfig.Discovery.AnnounceInterval != "" {
		announceInterval, err = time.ParseDuration(rawConfig.Discovery.AnnounceInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid discovery.announce_interval: %w", err)
		}
	} else {
		announceInterval = 5 * time.Minute
	}

	var banDuration time.Duration
	if rawConfig.Security.BanDuration != "" {
		banDuration, err = time.ParseDuration(rawConfig.Security.BanDuration)
		if err != nil {
			return nil, fmt.Errorf("invalid security.ban_duration: %w", err)
		}
	} else {
		banDuration = 5 * time.Minute
	}

	cfg := &OverlayNodeConfig{
		Version:  version,
		Identity: rawConfig.Identity,
		Network:  rawConfig.Network,
		Discovery: DiscoveryConfig{
			Rendezvous:       rawConfig.Discovery.Rendezvous,
			Network:          rawConfig.Discovery.Network,
			BootstrapPeers:   rawConfig.Discovery.BootstrapPeers,
			MDNSEnabled:      rawConfig.Discovery.MDNSEnabled,
			AnnounceInterval: announceInterval,
		},
		Security: SecurityConfig{
			EnableConnectionGating: rawConfig.Security.EnableConnectionGating,
			StrikeLimit:            rawConfig.Security.StrikeLimit,
			BanDuration:            banDuration,
		},
		Routing:   rawConfig.Routing,
		Daemon:    rawConfig.Daemon,
		Telemetry: rawConfig.Telemetry,
	}

	applyRoutingDefaults(&cfg.Routing)
	if cfg.Security.StrikeLimit == 0 {
		cfg.Security.StrikeLimit = 3
	}
	if cfg.Daemon.SocketPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Daemon.SocketPath = filepath.Join(home, ".overlay", "overlayd.sock")
		}
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = "127.0.0.1:9091"
	}

	return cfg, nil
}

// applyRoutingDefaults fills zero-valued routing tunables with the package
// defaults from internal/routing.
func applyRoutingDefaults(rc *RoutingConfig) {
	if rc.RouteBackCacheSize == 0 {
		rc.RouteBackCacheSize = 10_000
	}
	if rc.RoundRobinMaxNonceDifferenceAllowed == 0 {
		rc.RoundRobinMaxNonceDifferenceAllowed = 10
	}
}

// ValidateOverlayNodeConfig validates overlay node configuration.
func ValidateOverlayNodeConfig(cfg *OverlayNodeConfig) error {
	if cfg.Identity.KeyFile == "" {
		return fmt.Errorf("identity.key_file is required")
	}
	if len(cfg.Network.ListenAddresses) == 0 {
		return fmt.Errorf("network.listen_addresses must contain at least one address")
	}
	if cfg.Discovery.Rendezvous == "" {
		return fmt.Errorf("discovery.rendezvous is required")
	}
	if cfg.Routing.RouteBackCacheSize < 0 {
		return fmt.Errorf("routing.route_back_cache_size must be non-negative")
	}
	if cfg.Routing.RoundRobinMaxNonceDifferenceAllowed < 0 {
		return fmt.Errorf("routing.round_robin_max_nonce_difference_allowed must be non-negative")
	}
	return nil
}

// FindConfigFile searches for an overlay config file in standard locations.
// Search order: explicitPath (if given), ./overlay.yaml,
// ~/.config/overlay/config.yaml, /etc/overlay/config.yaml.
func FindConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, explicitPath)
		}
		return explicitPath, nil
	}

	searchPaths := []string{
		"overlay.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "overlay", "config.yaml"))
	}

	searchPaths = append(searchPaths, filepath.Join("/etc", "overlay", "config.yaml"))

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w; searched:\n  %s\n\nRun 'overlayd init' to create one, or use --config <path>", ErrConfigNotFound, strings.Join(searchPaths, "\n  "))
}

// LoadNodeConfig loads unified node configuration from a YAML file.
// This is the preferred loader for all overlayd commands.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	return LoadOverlayNodeConfig(path)
}

// ResolveConfigPaths resolves relative file paths in the config to be
// relative to the config file's directory. This allows configs in
// ~/.config/overlay/ to reference key files using relative paths.
func ResolveConfigPaths(cfg *NodeConfig, configDir string) {
	if cfg.Identity.KeyFile != "" && !filepath.IsAbs(cfg.Identity.KeyFile) {
		cfg.Identity.KeyFile = filepath.Join(configDir, cfg.Identity.KeyFile)
	}
}

// DefaultConfigDir returns the default overlay config directory
// (~/.config/overlay).
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "overlay"), nil
}
