package config

import "time"

// CurrentConfigVersion is the latest configuration schema version.
// Bump this when adding fields that require migration.
const CurrentConfigVersion = 1

// OverlayNodeConfig is the configuration for an overlay routing node.
type OverlayNodeConfig struct {
	Version   int             `yaml:"version,omitempty"`
	Identity  IdentityConfig  `yaml:"identity"`
	Network   NetworkConfig   `yaml:"network"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Security  SecurityConfig  `yaml:"security"`
	Routing   RoutingConfig   `yaml:"routing,omitempty"`
	Daemon    DaemonConfig    `yaml:"daemon,omitempty"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// NodeConfig is the unified configuration type for all overlayd modes.
type NodeConfig = OverlayNodeConfig

// TelemetryConfig holds observability settings.
// All features are disabled by default (opt-in).
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
	Audit   AuditConfig   `yaml:"audit,omitempty"`
}

// MetricsConfig controls Prometheus metrics exposure.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"` // default: "127.0.0.1:9091"
}

// AuditConfig controls structured audit logging of daemon API requests.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

// IdentityConfig holds identity-related configuration.
type IdentityConfig struct {
	KeyFile string `yaml:"key_file"`
}

// NetworkConfig holds libp2p transport configuration.
type NetworkConfig struct {
	ListenAddresses          []string `yaml:"listen_addresses"`
	ForcePrivateReachability bool     `yaml:"force_private_reachability"`
	ResourceLimitsEnabled    bool     `yaml:"resource_limits_enabled"`
}

// DiscoveryConfig holds peer discovery configuration.
type DiscoveryConfig struct {
	Rendezvous       string        `yaml:"rendezvous"`
	Network          string        `yaml:"network,omitempty"`           // DHT namespace for private overlays (empty = global)
	BootstrapPeers   []string      `yaml:"bootstrap_peers"`
	MDNSEnabled      *bool         `yaml:"mdns_enabled,omitempty"`      // LAN peer discovery (default: true)
	AnnounceInterval time.Duration `yaml:"announce_interval,omitempty"` // parsed and defaulted (default: 5m); nothing else reads it
}

// IsMDNSEnabled returns whether mDNS local discovery is enabled.
// Defaults to true when not explicitly set in config.
func (d *DiscoveryConfig) IsMDNSEnabled() bool {
	if d.MDNSEnabled == nil {
		return true
	}
	return *d.MDNSEnabled
}

// SecurityConfig holds connection-gating configuration (internal/auth.BanGater).
type SecurityConfig struct {
	EnableConnectionGating bool          `yaml:"enable_connection_gating"`
	StrikeLimit            int           `yaml:"strike_limit,omitempty"` // default: 3
	BanDuration            time.Duration `yaml:"ban_duration,omitempty"` // default: 5m
}

// RoutingConfig holds the routing tunables read from the config file (spec
// §3, §6). Zero values are filled with the same values as internal/routing's
// package constants. The routing table does not read this struct; it always
// uses those constants.
type RoutingConfig struct {
	RouteBackCacheSize                  int `yaml:"route_back_cache_size,omitempty"`
	RoundRobinMaxNonceDifferenceAllowed int `yaml:"round_robin_max_nonce_difference_allowed,omitempty"`
}

// DaemonConfig holds the Unix-domain-socket control API configuration.
type DaemonConfig struct {
	SocketPath string `yaml:"socket_path,omitempty"` // default: "~/.overlay/overlayd.sock"
}
