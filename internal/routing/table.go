// Package routing orchestrates the overlay routing core: it turns verified
// edges into graph deltas, schedules and performs shortest-path
// recalculation, and answers the two routing queries the node's networking
// layer needs — forward toward a peer, and forward a reply back along the
// path of a prior request (spec §4.4).
package routing

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/meshroute/overlay/internal/edge"
	"github.com/meshroute/overlay/internal/edgestore"
	"github.com/meshroute/overlay/internal/graph"
	"github.com/meshroute/overlay/internal/pid"
)

// RouteBackCacheSize is the fixed capacity of the route-back cache (spec §3).
const RouteBackCacheSize = 10_000

// RoundRobinMaxNonceDifferenceAllowed bounds the spread between the
// highest and lowest route-nonce among equal-cost first hops (spec §4.4).
const RoundRobinMaxNonceDifferenceAllowed = 10

// Ping and Pong are opaque test/debug payloads (spec §6 "Test/debug
// surfaces"). The core does not interpret their contents; it only keys them
// by nonce for integration tests to retrieve later.
type Ping struct {
	Nonce   uint64
	Payload []byte
}

type Pong struct {
	Nonce   uint64
	Payload []byte
}

// ProcessResult is the return value of ProcessEdge: whether the edge was
// newly accepted, and an advisory delay for the caller to arm a
// recalculation timer with.
type ProcessResult struct {
	Accepted   bool
	ScheduleIn *time.Duration
}

// Table is the routing core's single stateful component. It owns the edge
// store, the graph, the last-computed forwarding map, the route-back
// cache, the round-robin nonce map, and the account directory. A Table is
// driven by a single logical task; it performs no internal locking beyond
// what's needed to hand out defensive read snapshots to other goroutines
// (spec §5).
type Table struct {
	mu sync.RWMutex

	source pid.ID
	store  *edgestore.Store
	graph  *graph.Graph
	fm     map[pid.ID]map[pid.ID]struct{}

	routeBack  *lru.Cache
	routeNonce map[pid.ID]uint64

	accounts *accountDirectory

	deadline *time.Time
	metrics  Metrics

	pingInfo map[uint64]Ping
	pongInfo map[uint64]Pong
}

// New creates a Table rooted at source. m may be nil, in which case metrics
// reporting is a no-op.
func New(source pid.ID, m Metrics) *Table {
	cache, err := lru.New(RouteBackCacheSize)
	if err != nil {
		// lru.New only errors for size <= 0, which RouteBackCacheSize never is.
		panic("routing: unexpected lru.New error: " + err.Error())
	}
	if m == nil {
		m = noopMetrics{}
	}
	return &Table{
		source:     source,
		store:      edgestore.New(),
		graph:      graph.New(source),
		fm:         make(map[pid.ID]map[pid.ID]struct{}),
		routeBack:  cache,
		routeNonce: make(map[pid.ID]uint64),
		accounts:   newAccountDirectory(),
		metrics:    m,
	}
}

// ProcessEdge applies an edge that the caller has already run edge.Verify
// on (spec §4.4: "Assumes verify() already passed"). It never errors: an
// outdated edge is a successful no-op.
func (t *Table) ProcessEdge(e edge.Edge, now time.Time) ProcessResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	accepted := t.store.Apply(t.graph, e)
	t.metrics.EdgeApplied(accepted)
	if !accepted {
		slog.Debug("routing: rejected outdated edge",
			"peer0", pid.Short(e.Peer0), "peer1", pid.Short(e.Peer1), "nonce", e.Nonce)
		return ProcessResult{Accepted: false}
	}

	knownRoutes := len(t.fm)
	if knownRoutes > 1000 {
		knownRoutes = 1000
	}
	delay := time.Duration(knownRoutes) * time.Millisecond

	if t.deadline == nil || now.After(*t.deadline) {
		target := now.Add(delay)
		t.deadline = &target
		return ProcessResult{Accepted: true, ScheduleIn: &delay}
	}
	return ProcessResult{Accepted: true}
}

// Update clears the pending recalculation deadline and recomputes the
// forwarding map from the current graph (spec §4.4 "Recompute").
func (t *Table) Update() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.deadline = nil
	t.fm = t.graph.ForwardingMap()
	t.metrics.ForwardingMapSize(len(t.fm))
	slog.Debug("routing: forwarding map recomputed", "reachable_peers", len(t.fm))
}

// FindRouteFromPeerID selects the next hop toward target using bounded
// round-robin among target's first-hop candidates (spec §4.4).
func (t *Table) FindRouteFromPeerID(target pid.ID) (pid.ID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	routes, ok := t.fm[target]
	if !ok {
		return "", ErrPeerNotFound
	}
	if len(routes) == 0 {
		return "", ErrDisconnected
	}

	candidates := make([]pid.ID, 0, len(routes))
	for p := range routes {
		candidates = append(candidates, p)
	}
	// Deterministic tie-breaking: sort by (nonce, pid) so the min/max
	// picked below are reproducible across identical states.
	sort.Slice(candidates, func(i, j int) bool {
		ni, nj := t.routeNonce[candidates[i]], t.routeNonce[candidates[j]]
		if ni != nj {
			return ni < nj
		}
		return pid.Less(candidates[i], candidates[j])
	})

	min := candidates[0]
	max := candidates[len(candidates)-1]

	if len(candidates) >= 2 {
		minNonce, maxNonce := t.routeNonce[min], t.routeNonce[max]
		if maxNonce > minNonce+RoundRobinMaxNonceDifferenceAllowed {
			t.routeNonce[min] = maxNonce - RoundRobinMaxNonceDifferenceAllowed
		}
	}

	next := min
	t.routeNonce[next]++
	t.metrics.RouteSelected(next)
	return next, nil
}

// FindRoute resolves a Target: a peer ID target goes through
// FindRouteFromPeerID; a hash target consumes (removes) the matching
// route-back entry exactly once (spec §4.4 "Route query").
func (t *Table) FindRoute(target Target) (pid.ID, error) {
	if !target.isHash {
		return t.FindRouteFromPeerID(target.peerID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.routeBack.Get(target.hash)
	t.metrics.RouteBackResult(ok)
	if !ok {
		return "", ErrRouteBackNotFound
	}
	t.routeBack.Remove(target.hash)
	return v.(pid.ID), nil
}

// AddRouteBack records that h arrived via p, so a later reply can be routed
// back without fresh routing. Subject to LRU eviction at RouteBackCacheSize.
func (t *Table) AddRouteBack(h MessageHash, p pid.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routeBack.Add(h, p)
}

// CompareRouteBack is a non-destructive read: true iff h maps to exactly p
// in the route-back cache right now.
func (t *Table) CompareRouteBack(h MessageHash, p pid.ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.routeBack.Peek(h)
	return ok && v.(pid.ID) == p
}

// AddAccount records an account announcement. Returns true if it is new or
// identical to an existing entry for the same account, false if it
// conflicts with a different existing announcement.
func (t *Table) AddAccount(a Announcement) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accounts.add(a)
}

// ContainsAccount reports whether a matches the currently stored
// announcement for its account (non-mutating, for dedup checks before
// re-gossiping).
func (t *Table) ContainsAccount(a Announcement) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.accounts.contains(a)
}

// AccountOwner returns the PID that owns accountID.
func (t *Table) AccountOwner(accountID string) (pid.ID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	owner, ok := t.accounts.owner(accountID)
	if !ok {
		return "", ErrAccountNotFound
	}
	return owner, nil
}

// GetAccounts returns a snapshot of every stored announcement.
func (t *Table) GetAccounts() []Announcement {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.accounts.all()
}

// GetEdge returns the stored edge for an unordered pair, if any.
func (t *Table) GetEdge(a, b pid.ID) (edge.Edge, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.Get(pid.MakePair(a, b))
}

// GetEdges returns a defensive-copy snapshot of every stored edge.
func (t *Table) GetEdges() []edge.Edge {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.All()
}

// AddPing records a ping by nonce, first-insert-wins. The registry is
// nil-initialized until first use: hosts that never call AddPing pay no
// memory cost for it (spec §6 "only maintained when the host opts in").
func (t *Table) AddPing(p Ping) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pingInfo == nil {
		t.pingInfo = make(map[uint64]Ping)
	}
	if _, ok := t.pingInfo[p.Nonce]; !ok {
		t.pingInfo[p.Nonce] = p
	}
}

// AddPong records a pong by nonce, first-insert-wins.
func (t *Table) AddPong(p Pong) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pongInfo == nil {
		t.pongInfo = make(map[uint64]Pong)
	}
	if _, ok := t.pongInfo[p.Nonce]; !ok {
		t.pongInfo[p.Nonce] = p
	}
}

// FetchPingPong returns snapshots of the ping/pong test registries. Empty
// maps if the host never opted in.
func (t *Table) FetchPingPong() (map[uint64]Ping, map[uint64]Pong) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pings := make(map[uint64]Ping, len(t.pingInfo))
	for k, v := range t.pingInfo {
		pings[k] = v
	}
	pongs := make(map[uint64]Pong, len(t.pongInfo))
	for k, v := range t.pongInfo {
		pongs[k] = v
	}
	return pings, pongs
}

// Info is a read-only topology snapshot for metrics and debugging (spec §6
// "info() yields a read-only topology snapshot").
type Info struct {
	AccountPeers map[string]pid.ID
	Forwarding   map[pid.ID]map[pid.ID]struct{}
}

// Info returns a defensive-copy snapshot of the account directory and
// current forwarding map.
func (t *Table) Info() Info {
	t.mu.RLock()
	defer t.mu.RUnlock()

	accountPeers := make(map[string]pid.ID)
	for _, a := range t.accounts.all() {
		accountPeers[a.AccountID] = a.PeerID
	}

	fm := make(map[pid.ID]map[pid.ID]struct{}, len(t.fm))
	for k, hops := range t.fm {
		cp := make(map[pid.ID]struct{}, len(hops))
		for h := range hops {
			cp[h] = struct{}{}
		}
		fm[k] = cp
	}

	return Info{AccountPeers: accountPeers, Forwarding: fm}
}

// Source returns the local node's peer ID.
func (t *Table) Source() pid.ID { return t.source }
