// Package graph maintains the overlay's undirected adjacency view and
// computes, from the local node's perspective, every first-hop neighbor
// lying on some shortest path to each reachable peer (spec §3, §4.2).
package graph

import (
	"github.com/meshroute/overlay/internal/pid"
)

// Graph is an undirected adjacency mapping with a distinguished source
// (the local node). It is not safe for concurrent use; callers serialize
// access (see internal/routing, which owns the single logical task that
// mutates it).
type Graph struct {
	source    pid.ID
	adjacency map[pid.ID]map[pid.ID]struct{}
}

// New creates an empty graph rooted at source.
func New(source pid.ID) *Graph {
	return &Graph{
		source:    source,
		adjacency: make(map[pid.ID]map[pid.ID]struct{}),
	}
}

// Source returns the local node's peer ID.
func (g *Graph) Source() pid.ID { return g.source }

// ContainsEdge reports whether u and v are adjacent. It is symmetric: the
// bidirectional invariant guarantees ContainsEdge(u, v) == ContainsEdge(v, u).
func (g *Graph) ContainsEdge(u, v pid.ID) bool {
	neighbors, ok := g.adjacency[u]
	if !ok {
		return false
	}
	_, ok = neighbors[v]
	return ok
}

// AddEdge makes u and v adjacent. No-op if they already are, preserving the
// invariant that add_edge is idempotent.
func (g *Graph) AddEdge(u, v pid.ID) {
	if g.ContainsEdge(u, v) {
		return
	}
	g.addDirected(u, v)
	g.addDirected(v, u)
}

// RemoveEdge makes u and v non-adjacent. No-op if they already are not.
func (g *Graph) RemoveEdge(u, v pid.ID) {
	if !g.ContainsEdge(u, v) {
		return
	}
	g.removeDirected(u, v)
	g.removeDirected(v, u)
}

func (g *Graph) addDirected(u, v pid.ID) {
	neighbors, ok := g.adjacency[u]
	if !ok {
		neighbors = make(map[pid.ID]struct{})
		g.adjacency[u] = neighbors
	}
	neighbors[v] = struct{}{}
}

func (g *Graph) removeDirected(u, v pid.ID) {
	if neighbors, ok := g.adjacency[u]; ok {
		delete(neighbors, v)
	}
}

// ForwardingMap computes, for every reachable non-source peer w, the set of
// source's direct neighbors lying on at least one shortest path from source
// to w (spec §4.2). The algorithm is a layer-by-layer BFS that unions each
// node's first-hop set into every neighbor one layer further out; the
// source itself is never a key in the result.
func (g *Graph) ForwardingMap() map[pid.ID]map[pid.ID]struct{} {
	dist := map[pid.ID]int{g.source: 0}
	routes := make(map[pid.ID]map[pid.ID]struct{})

	var queue []pid.ID
	for neighbor := range g.adjacency[g.source] {
		dist[neighbor] = 1
		routes[neighbor] = map[pid.ID]struct{}{neighbor: {}}
		queue = append(queue, neighbor)
	}

	for head := 0; head < len(queue); head++ {
		u := queue[head]
		du := dist[u]

		for w := range g.adjacency[u] {
			if _, seen := dist[w]; !seen {
				dist[w] = du + 1
				routes[w] = make(map[pid.ID]struct{})
				queue = append(queue, w)
			}
			if dist[w] == du+1 {
				for r := range routes[u] {
					routes[w][r] = struct{}{}
				}
			}
		}
	}

	out := make(map[pid.ID]map[pid.ID]struct{}, len(routes))
	for w, hops := range routes {
		if len(hops) > 0 {
			out[w] = hops
		}
	}
	return out
}
