// Package edgestore holds the per-endpoint-pair latest-nonce view of the
// overlay's edges and applies incoming, already-verified edges against it,
// rejecting anything stale (spec §3, §4.3).
package edgestore

import (
	"github.com/meshroute/overlay/internal/edge"
	"github.com/meshroute/overlay/internal/graph"
	"github.com/meshroute/overlay/internal/pid"
)

// Store maps each canonical peer pair to the latest accepted edge. It is
// not safe for concurrent use; internal/routing serializes all access.
type Store struct {
	edges map[pid.Pair]edge.Edge
}

// New creates an empty edge store.
func New() *Store {
	return &Store{edges: make(map[pid.Pair]edge.Edge)}
}

// Nonce returns the stored nonce for a pair, or 0 if the pair has never been
// seen (nonce 0 is reserved and sorts below every real edge).
func (s *Store) Nonce(pair pid.Pair) uint64 {
	if e, ok := s.edges[pair]; ok {
		return e.Nonce
	}
	return 0
}

// Get returns the stored edge for a canonical pair, if any.
func (s *Store) Get(pair pid.Pair) (edge.Edge, bool) {
	e, ok := s.edges[pair]
	return e, ok
}

// All returns a snapshot slice of every stored edge. The caller owns the
// returned slice; mutating it does not affect the store.
func (s *Store) All() []edge.Edge {
	out := make([]edge.Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e)
	}
	return out
}

// Apply applies an already-verified edge e to the store and to g. It
// rejects e as outdated (returning accepted=false) if the store already
// holds a nonce ≥ e.Nonce for e's pair; otherwise it overwrites the stored
// edge and mutates g to match the edge's kind.
//
// Apply never errors: an outdated edge is a successful no-op (spec §7).
func (s *Store) Apply(g *graph.Graph, e edge.Edge) (accepted bool) {
	pair := e.Pair()
	if s.Nonce(pair) >= e.Nonce {
		return false
	}

	switch e.Kind() {
	case edge.Added:
		g.AddEdge(pair.Peer0, pair.Peer1)
	case edge.Removed:
		g.RemoveEdge(pair.Peer0, pair.Peer1)
	}
	s.edges[pair] = e
	return true
}

// Len returns the number of distinct peer pairs currently tracked.
func (s *Store) Len() int { return len(s.edges) }
