package main

import (
	"fmt"
	"os"
)

func runEdges(args []string) {
	fs := newConfigFlagSet("edges")
	if err := fs.Parse(args); err != nil {
		fatal("edges: %v", err)
	}

	client, err := connectDaemon(fs)
	if err != nil {
		fatal("edges: %v", err)
	}

	edges, err := client.Edges()
	if err != nil {
		fatal("edges: %v", err)
	}

	if len(edges) == 0 {
		fmt.Fprintln(os.Stdout, "No edges.")
		return
	}
	for _, e := range edges {
		fmt.Fprintf(os.Stdout, "%s <-> %s  nonce=%d kind=%s\n", e.Peer0, e.Peer1, e.Nonce, e.Kind)
	}
}
