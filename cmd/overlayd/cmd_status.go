package main

import (
	"fmt"
	"os"
)

func runStatus(args []string) {
	fs := newConfigFlagSet("status")
	if err := fs.Parse(args); err != nil {
		fatal("status: %v", err)
	}

	client, err := connectDaemon(fs)
	if err != nil {
		fatal("status: %v", err)
	}

	resp, err := client.Status()
	if err != nil {
		fatal("status: %v", err)
	}

	fmt.Fprintf(os.Stdout, "Peer ID:          %s\n", resp.PeerID)
	fmt.Fprintf(os.Stdout, "Version:          %s\n", resp.Version)
	fmt.Fprintf(os.Stdout, "Uptime:           %ds\n", resp.UptimeSeconds)
	fmt.Fprintf(os.Stdout, "Connected peers:  %d\n", resp.ConnectedPeers)
	fmt.Fprintf(os.Stdout, "Edges:            %d\n", resp.EdgeCount)
	fmt.Fprintf(os.Stdout, "Known accounts:   %d\n", resp.AccountCount)
	fmt.Fprintf(os.Stdout, "Forwarding size:  %d\n", resp.ForwardingSize)
	fmt.Fprintln(os.Stdout, "Listen addresses:")
	for _, addr := range resp.ListenAddrs {
		fmt.Fprintf(os.Stdout, "  %s\n", addr)
	}
}

func runStop(args []string) {
	fs := newConfigFlagSet("stop")
	if err := fs.Parse(args); err != nil {
		fatal("stop: %v", err)
	}

	client, err := connectDaemon(fs)
	if err != nil {
		fatal("stop: %v", err)
	}

	if err := client.Shutdown(); err != nil {
		fatal("stop: %v", err)
	}
	fmt.Fprintln(os.Stdout, "Shutdown requested.")
}
