package edgestore

import (
	"testing"

	"github.com/meshroute/overlay/internal/edge"
	"github.com/meshroute/overlay/internal/graph"
	"github.com/meshroute/overlay/internal/pid"
	"github.com/meshroute/overlay/internal/signer"
)

type testPeer struct {
	ID   pid.ID
	Priv signer.PrivKey
}

func genPeer(t *testing.T) testPeer {
	t.Helper()
	priv, id, err := signer.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	return testPeer{ID: id, Priv: priv}
}

func addedEdge(t *testing.T, a, b testPeer, nonce uint64) edge.Edge {
	t.Helper()
	var self, other testPeer
	if pid.Less(a.ID, b.ID) {
		self, other = a, b
	} else {
		self, other = b, a
	}
	info, err := edge.Propose(other.ID, self.ID, nonce, other.Priv)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	e, err := edge.CompleteAdd(self.ID, other.ID, info.Nonce, info.Signature, self.Priv)
	if err != nil {
		t.Fatalf("complete add: %v", err)
	}
	return e
}

func TestApplyAcceptsFirstEdge(t *testing.T) {
	a, b := genPeer(t), genPeer(t)
	e := addedEdge(t, a, b, 1)

	s := New()
	g := graph.New(a.ID)

	if accepted := s.Apply(g, e); !accepted {
		t.Fatal("first edge for a pair should always be accepted")
	}
	if !g.ContainsEdge(e.Peer0, e.Peer1) {
		t.Fatal("graph should reflect the added edge")
	}
	if s.Nonce(e.Pair()) != 1 {
		t.Fatalf("stored nonce = %d, want 1", s.Nonce(e.Pair()))
	}
}

func TestApplyRejectsOutdated(t *testing.T) {
	a, b := genPeer(t), genPeer(t)
	e1 := addedEdge(t, a, b, 1)
	e3 := addedEdge(t, a, b, 3)

	s := New()
	g := graph.New(a.ID)

	if !s.Apply(g, e3) {
		t.Fatal("nonce-3 edge should be accepted first")
	}
	if accepted := s.Apply(g, e1); accepted {
		t.Fatal("nonce-1 edge arriving after nonce-3 should be rejected as outdated")
	}
	if s.Nonce(e1.Pair()) != 3 {
		t.Fatalf("stored nonce regressed to %d after rejecting a stale edge", s.Nonce(e1.Pair()))
	}
}

func TestApplySameNonceTwiceRejectsSecond(t *testing.T) {
	a, b := genPeer(t), genPeer(t)
	e := addedEdge(t, a, b, 1)

	s := New()
	g := graph.New(a.ID)

	if !s.Apply(g, e) {
		t.Fatal("first application should be accepted")
	}
	if s.Apply(g, e) {
		t.Fatal("re-applying the same nonce should be rejected (strict >, not >=)")
	}
	if !g.ContainsEdge(e.Peer0, e.Peer1) {
		t.Fatal("graph should still reflect the edge after the idempotent re-apply")
	}
}

func TestApplyRemoveAfterAdd(t *testing.T) {
	a, b := genPeer(t), genPeer(t)
	added := addedEdge(t, a, b, 1)

	var remover testPeer
	if a.ID == added.Peer0 {
		remover = a
	} else {
		remover = b
	}
	removed, err := edge.IssueRemove(added, remover.ID, remover.Priv)
	if err != nil {
		t.Fatalf("issue remove: %v", err)
	}

	s := New()
	g := graph.New(a.ID)

	s.Apply(g, added)
	if accepted := s.Apply(g, removed); !accepted {
		t.Fatal("remove edge should be accepted over the prior add")
	}
	if g.ContainsEdge(added.Peer0, added.Peer1) {
		t.Fatal("graph should no longer contain the edge after removal")
	}
	if s.Nonce(added.Pair()) != removed.Nonce {
		t.Fatalf("stored nonce = %d, want %d", s.Nonce(added.Pair()), removed.Nonce)
	}
}

// TestReplayRejected reproduces spec §8 Scenario 2: after a remove is
// applied, replaying the original Added edge must be rejected as outdated.
func TestReplayRejected(t *testing.T) {
	a, b := genPeer(t), genPeer(t)
	added := addedEdge(t, a, b, 1)

	var remover testPeer
	if a.ID == added.Peer0 {
		remover = a
	} else {
		remover = b
	}
	removed, err := edge.IssueRemove(added, remover.ID, remover.Priv)
	if err != nil {
		t.Fatalf("issue remove: %v", err)
	}

	s := New()
	g := graph.New(a.ID)
	s.Apply(g, added)
	s.Apply(g, removed)

	if accepted := s.Apply(g, added); accepted {
		t.Fatal("replaying the original add after a remove must be rejected")
	}
	if g.ContainsEdge(added.Peer0, added.Peer1) {
		t.Fatal("graph must remain edge-free after the rejected replay")
	}
}
