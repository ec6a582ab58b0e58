package edgehandshake

import (
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/meshroute/overlay/internal/edge"
	"github.com/meshroute/overlay/internal/signer"
)

type testNode struct {
	host host.Host
	id   peer.ID
	priv signer.PrivKey
}

func newTestNode(t *testing.T) testNode {
	t.Helper()
	raw, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	id, err := peer.IDFromPrivateKey(raw)
	if err != nil {
		t.Fatalf("peer id from key: %v", err)
	}
	h, err := libp2p.New(libp2p.Identity(raw), libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
	if err != nil {
		t.Fatalf("create host: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return testNode{host: h, id: id, priv: signer.WrapPrivKey(raw)}
}

func connect(t *testing.T, a, b testNode) {
	t.Helper()
	bInfo := peer.AddrInfo{ID: b.host.ID(), Addrs: b.host.Addrs()}
	if err := a.host.Connect(context.Background(), bInfo); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func TestHandshakeProposeCompletesAddedEdge(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)
	connect(t, a, b)

	bSaw := make(chan edge.Edge, 1)
	New(b.host, b.id, b.priv, func(e edge.Edge) { bSaw <- e })
	aHandler := New(a.host, a.id, a.priv, func(e edge.Edge) {})

	e, err := aHandler.Propose(context.Background(), b.id, 1)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if e.Nonce != 1 {
		t.Fatalf("Nonce = %d, want 1", e.Nonce)
	}
	if !e.ContainsPeer(a.id) || !e.ContainsPeer(b.id) {
		t.Fatal("completed edge should contain both endpoints")
	}

	ok, err := edge.Verify(e)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("completed edge should verify")
	}

	select {
	case bGotEdge := <-bSaw:
		if bGotEdge.Nonce != 1 {
			t.Fatalf("responder's OnEdge callback saw nonce %d, want 1", bGotEdge.Nonce)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for responder's OnEdge callback")
	}
}

func TestHandshakeRemoveDeliversSkeleton(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)
	connect(t, a, b)

	done := make(chan edge.Edge, 1)
	New(b.host, b.id, b.priv, func(e edge.Edge) { done <- e })
	aHandler := New(a.host, a.id, a.priv, func(e edge.Edge) {})

	added, err := aHandler.Propose(context.Background(), b.id, 1)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	removed, err := edge.IssueRemove(added, a.id, a.priv)
	if err != nil {
		t.Fatalf("IssueRemove: %v", err)
	}

	if err := aHandler.Remove(context.Background(), b.id, removed); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	select {
	case got := <-done:
		if got.Nonce != removed.Nonce {
			t.Fatalf("delivered removal nonce = %d, want %d", got.Nonce, removed.Nonce)
		}
		if got.Removal == nil {
			t.Fatal("delivered edge should carry a Removal")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for removal delivery")
	}
}
