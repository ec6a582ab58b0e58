package graph

import (
	"testing"

	"github.com/meshroute/overlay/internal/pid"
	"github.com/meshroute/overlay/internal/signer"
)

// namedPeer returns a fresh peer ID for label, memoized within the test
// binary's process so repeated calls with the same label are stable across
// a single test run (graph tests only care about identity, not keys).
var labelCache = map[string]pid.ID{}

func namedPeer(t *testing.T, label string) pid.ID {
	t.Helper()
	if id, ok := labelCache[label]; ok {
		return id
	}
	_, id, err := signer.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	labelCache[label] = id
	return id
}

func setOf(ids ...pid.ID) map[pid.ID]struct{} {
	s := make(map[pid.ID]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func equalSets(a, b map[pid.ID]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func TestGraphContainsEdgeInitiallyEmpty(t *testing.T) {
	source := namedPeer(t, "source")
	n0 := namedPeer(t, "n0")
	n1 := namedPeer(t, "n1")

	g := New(source)
	if g.ContainsEdge(source, n0) {
		t.Error("new graph should not contain any edges")
	}
	if g.ContainsEdge(n0, n1) {
		t.Error("new graph should not contain any edges")
	}
}

func TestGraphAddRemoveEdgeSymmetric(t *testing.T) {
	u := namedPeer(t, "u")
	v := namedPeer(t, "v")
	g := New(namedPeer(t, "source"))

	g.AddEdge(u, v)
	if !g.ContainsEdge(u, v) || !g.ContainsEdge(v, u) {
		t.Fatal("AddEdge should make both directions adjacent")
	}

	// Idempotent: adding again should not panic or change the result.
	g.AddEdge(u, v)
	if !g.ContainsEdge(u, v) {
		t.Fatal("AddEdge should be idempotent")
	}

	g.RemoveEdge(u, v)
	if g.ContainsEdge(u, v) || g.ContainsEdge(v, u) {
		t.Fatal("RemoveEdge should remove both directions")
	}

	// Idempotent: removing again should not panic.
	g.RemoveEdge(u, v)
	if g.ContainsEdge(u, v) {
		t.Fatal("RemoveEdge should be idempotent")
	}
}

func TestForwardingMapExcludesSource(t *testing.T) {
	source := namedPeer(t, "source")
	n0 := namedPeer(t, "n0")
	g := New(source)
	g.AddEdge(source, n0)

	fm := g.ForwardingMap()
	if _, ok := fm[source]; ok {
		t.Fatal("forwarding map must never contain the source as a key")
	}
}

// TestForwardingMapDistanceFour reproduces spec §8 Scenario 3: source
// linked to n0,n1,n2; each of those linked to each of n3..n5; each of those
// linked to each of n6..n8; plus a disconnected edge n9-n10.
func TestForwardingMapDistanceFour(t *testing.T) {
	source := namedPeer(t, "source")
	layer1 := []pid.ID{namedPeer(t, "n0"), namedPeer(t, "n1"), namedPeer(t, "n2")}
	layer2 := []pid.ID{namedPeer(t, "n3"), namedPeer(t, "n4"), namedPeer(t, "n5")}
	layer3 := []pid.ID{namedPeer(t, "n6"), namedPeer(t, "n7"), namedPeer(t, "n8")}
	n9 := namedPeer(t, "n9")
	n10 := namedPeer(t, "n10")

	g := New(source)
	for _, n := range layer1 {
		g.AddEdge(source, n)
	}
	for _, a := range layer1 {
		for _, b := range layer2 {
			g.AddEdge(a, b)
		}
	}
	for _, a := range layer2 {
		for _, b := range layer3 {
			g.AddEdge(a, b)
		}
	}
	g.AddEdge(n9, n10)

	fm := g.ForwardingMap()

	for i, n := range layer1 {
		want := setOf(n)
		if got, ok := fm[n]; !ok || !equalSets(got, want) {
			t.Errorf("fm[n%d] = %v, want %v", i, got, want)
		}
	}

	wantAllLayer1 := setOf(layer1...)
	for i, n := range layer2 {
		if got, ok := fm[n]; !ok || !equalSets(got, wantAllLayer1) {
			t.Errorf("fm[n%d] = %v, want %v", i+3, got, wantAllLayer1)
		}
	}
	for i, n := range layer3 {
		if got, ok := fm[n]; !ok || !equalSets(got, wantAllLayer1) {
			t.Errorf("fm[n%d] = %v, want %v", i+6, got, wantAllLayer1)
		}
	}

	if _, ok := fm[n9]; ok {
		t.Error("n9 should be unreachable and absent from the forwarding map")
	}
	if _, ok := fm[n10]; ok {
		t.Error("n10 should be unreachable and absent from the forwarding map")
	}
}

func TestForwardingMapDeterministicUpToSetEquality(t *testing.T) {
	source := namedPeer(t, "source2")
	a := namedPeer(t, "a2")
	b := namedPeer(t, "b2")
	c := namedPeer(t, "c2")

	build := func() map[pid.ID]map[pid.ID]struct{} {
		g := New(source)
		g.AddEdge(source, a)
		g.AddEdge(source, b)
		g.AddEdge(a, c)
		g.AddEdge(b, c)
		return g.ForwardingMap()
	}

	fm1 := build()
	fm2 := build()

	if len(fm1) != len(fm2) {
		t.Fatalf("two BFS runs on identical adjacency produced different-sized maps")
	}
	for k, v1 := range fm1 {
		v2, ok := fm2[k]
		if !ok || !equalSets(v1, v2) {
			t.Errorf("key %v: %v != %v", pid.Short(k), v1, v2)
		}
	}

	want := setOf(a, b)
	if got, ok := fm1[c]; !ok || !equalSets(got, want) {
		t.Errorf("fm[c] = %v, want %v (both a and b lie on a shortest path to c)", got, want)
	}
}
