package main

import (
	"fmt"
	"os"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/meshroute/overlay/internal/daemon"
	"github.com/meshroute/overlay/pkg/overlaynet"
)

func runRoute(args []string) {
	fs := newConfigFlagSet("route")
	if err := fs.Parse(args); err != nil {
		fatal("route: %v", err)
	}
	rest := fs.Args()
	if len(rest) != 1 {
		fatal("route: expected exactly one <peer-id> argument")
	}

	client, err := connectDaemon(fs)
	if err != nil {
		fatal("route: %v", err)
	}

	resp, err := client.FindRoute(rest[0])
	if err != nil {
		fatal("route: %v", err)
	}
	fmt.Fprintf(os.Stdout, "%s -> %s\n", resp.Target, resp.NextHop)

	printHopFingerprint(client, resp.NextHop)
}

// printHopFingerprint shows the SAS fingerprint between this node and the
// selected first hop, so an operator can manually confirm the edge
// out-of-band rather than trusting the route blindly.
func printHopFingerprint(client *daemon.Client, hop string) {
	status, err := client.Status()
	if err != nil {
		return
	}
	self, err := peer.Decode(status.PeerID)
	if err != nil {
		return
	}
	next, err := peer.Decode(hop)
	if err != nil {
		return
	}
	emoji, numeric := overlaynet.ComputeFingerprint(self, next)
	fmt.Fprintf(os.Stdout, "Verify: %s  (%s)\n", emoji, numeric)
}
