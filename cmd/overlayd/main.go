package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

// Set via -ldflags at build time:
//
//	go build -ldflags "-X main.version=0.1.0 -X main.commit=$(git rev-parse --short HEAD) -X main.buildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)" -o overlayd ./cmd/overlayd
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if len(os.Args) < 2 {
		printUsage()
		osExit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "route":
		runRoute(os.Args[2:])
	case "account":
		runAccount(os.Args[2:])
	case "edges":
		runEdges(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "stop":
		runStop(os.Args[2:])
	case "version", "--version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		osExit(1)
	}
}

func printVersion() {
	fmt.Printf("overlayd %s (%s) built %s\n", version, commit, buildDate)
	fmt.Printf("Go %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func printUsage() {
	fmt.Println("Usage: overlayd <command> [options]")
	fmt.Println()
	fmt.Println("Setup:")
	fmt.Println("  init [--dir path] [--network name]   Set up overlayd configuration")
	fmt.Println()
	fmt.Println("Daemon:")
	fmt.Println("  serve [--config path]                Start the routing node and control API")
	fmt.Println("  stop [--config path]                 Request graceful shutdown")
	fmt.Println("  status [--config path]               Query the running daemon")
	fmt.Println("  route <peer-id> [--config path]      Resolve the next hop toward a peer")
	fmt.Println("  account <account-id> [--config path] Resolve the peer owning an account")
	fmt.Println("  edges [--config path]                List the local edge store")
	fmt.Println()
	fmt.Println("  version                               Show version information")
	fmt.Println()
	fmt.Println("Without --config, overlayd searches: ./overlay.yaml, ~/.config/overlay/config.yaml, /etc/overlay/config.yaml")
	fmt.Println()
	fmt.Println("Get started:  overlayd init")
}
