package main

import (
	"flag"
	"fmt"
	"path/filepath"

	"github.com/meshroute/overlay/internal/config"
	"github.com/meshroute/overlay/internal/daemon"
)

// loadConfigFromFlag resolves and loads the node config from an explicit
// --config path or the standard search locations.
func loadConfigFromFlag(fs *flag.FlagSet) (*config.NodeConfig, error) {
	configFlag := fs.Lookup("config")
	explicit := ""
	if configFlag != nil {
		explicit = configFlag.Value.String()
	}

	path, err := config.FindConfigFile(explicit)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadNodeConfig(path)
	if err != nil {
		return nil, err
	}
	config.ResolveConfigPaths(cfg, filepath.Dir(path))
	return cfg, nil
}

// connectDaemon loads config for socket/cookie paths and dials the running
// daemon's Unix socket API.
func connectDaemon(fs *flag.FlagSet) (*daemon.Client, error) {
	cfg, err := loadConfigFromFlag(fs)
	if err != nil {
		return nil, err
	}
	return daemon.NewClient(cfg.Daemon.SocketPath, cookiePathFor(cfg.Daemon.SocketPath))
}

// cookiePathFor derives the auth cookie path from the socket path, matching
// the layout cmd_serve.go writes at startup.
func cookiePathFor(socketPath string) string {
	return socketPath + ".cookie"
}

func newConfigFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.String("config", "", "path to overlay.yaml (default: search standard locations)")
	return fs
}

func flagErr(name string, err error) error {
	return fmt.Errorf("%s: %w", name, err)
}
