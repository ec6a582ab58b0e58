package overlaynet

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/meshroute/overlay/internal/edge"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	path := filepath.Join(t.TempDir(), "identity.key")
	n, err := New(Config{
		KeyFile:         path,
		ListenAddresses: []string{"/ip4/127.0.0.1/tcp/0"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { n.Close() })
	return n
}

func connectNodes(t *testing.T, a, b *Node) {
	t.Helper()
	info := peer.AddrInfo{ID: b.Host().ID(), Addrs: b.Host().Addrs()}
	if err := a.Host().Connect(context.Background(), info); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func TestNewNodeHasDerivedIdentity(t *testing.T) {
	n := newTestNode(t)
	if n.Self() != n.Host().ID() {
		t.Fatalf("Self() = %s, want %s", n.Self(), n.Host().ID())
	}
	if n.Table() == nil {
		t.Fatal("Table() should not be nil")
	}
}

func TestProposeEdgeAddsEdgeToBothTables(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)
	connectNodes(t, a, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.ProposeEdge(ctx, b.Self()); err != nil {
		t.Fatalf("ProposeEdge: %v", err)
	}

	if _, ok := a.Table().GetEdge(a.Self(), b.Self()); !ok {
		t.Fatal("proposer's table should contain the edge")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := b.Table().GetEdge(a.Self(), b.Self()); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("responder's table never observed the edge")
}

func TestRemoveEdgeClearsActiveEdge(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)
	connectNodes(t, a, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.ProposeEdge(ctx, b.Self()); err != nil {
		t.Fatalf("ProposeEdge: %v", err)
	}
	if err := a.RemoveEdge(ctx, b.Self()); err != nil {
		t.Fatalf("RemoveEdge: %v", err)
	}

	e, ok := a.Table().GetEdge(a.Self(), b.Self())
	if !ok {
		t.Fatal("edge should still be present (as a Removed tombstone)")
	}
	if e.Kind() != edge.Removed {
		t.Fatalf("edge kind = %v, want Removed", e.Kind())
	}
}

func TestRemoveEdgeWithoutExistingEdgeFails(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)
	connectNodes(t, a, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.RemoveEdge(ctx, b.Self()); err == nil {
		t.Fatal("expected error removing a nonexistent edge")
	}
}
