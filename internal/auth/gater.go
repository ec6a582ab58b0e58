// Package auth provides the overlay node's connection-gating policy: a
// libp2p ConnectionGater that keeps peers who have misbehaved during edge
// handshake (bad signatures, replayed nonces) from reconnecting for a
// cooldown period. Connectivity into the overlay itself stays open — any
// peer may dial in — gating only kicks in after repeated edge-handshake
// violations (spec §4.1 verification failures feed Strike).
package auth

import (
	"log/slog"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/control"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// DecisionFunc is called on every inbound gating decision with the peer ID
// (truncated) and result ("allow" or "deny"). Used for metrics without
// creating a circular dependency on pkg/overlaynet.
type DecisionFunc func(peerID, result string)

// BanGater implements the libp2p ConnectionGater interface. It denies
// inbound connections from peers currently serving a ban, imposed after
// repeated edge-handshake verification failures.
type BanGater struct {
	mu          sync.RWMutex
	bannedUntil map[peer.ID]time.Time
	strikes     map[peer.ID]int
	onDecision  DecisionFunc // nil-safe

	strikeLimit int
	banDuration time.Duration
}

// NewBanGater creates a gater that bans a peer for banDuration once it has
// accumulated strikeLimit edge-handshake violations.
func NewBanGater(strikeLimit int, banDuration time.Duration) *BanGater {
	if strikeLimit <= 0 {
		strikeLimit = 3
	}
	if banDuration <= 0 {
		banDuration = 5 * time.Minute
	}
	return &BanGater{
		bannedUntil: make(map[peer.ID]time.Time),
		strikes:     make(map[peer.ID]int),
		strikeLimit: strikeLimit,
		banDuration: banDuration,
	}
}

// InterceptPeerDial always allows outbound dials; bans only restrict who
// can connect to us, not who we reach out to.
func (g *BanGater) InterceptPeerDial(p peer.ID) bool { return true }

// InterceptAddrDial always allows outbound dials by address.
func (g *BanGater) InterceptAddrDial(id peer.ID, ma multiaddr.Multiaddr) bool { return true }

// InterceptAccept allows all connections through to the crypto handshake;
// the peer ID isn't verified yet at this stage.
func (g *BanGater) InterceptAccept(cm network.ConnMultiaddrs) bool { return true }

// InterceptSecured is called after the crypto handshake, once the peer ID
// is verified. This is where an active ban is enforced.
func (g *BanGater) InterceptSecured(dir network.Direction, p peer.ID, addr network.ConnMultiaddrs) bool {
	if dir != network.DirInbound {
		return true
	}

	g.mu.RLock()
	until, banned := g.bannedUntil[p]
	g.mu.RUnlock()

	short := peerShort(p)
	if banned && time.Now().Before(until) {
		slog.Warn("inbound connection denied (banned)", "peer", short, "until", until)
		if g.onDecision != nil {
			g.onDecision(short, "deny")
		}
		return false
	}

	if g.onDecision != nil {
		g.onDecision(short, "allow")
	}
	return true
}

// InterceptUpgraded performs no additional checks after muxer negotiation.
func (g *BanGater) InterceptUpgraded(conn network.Conn) (bool, control.DisconnectReason) {
	return true, 0
}

// Strike records an edge-handshake violation from p. Once strikeLimit is
// reached, p is banned for banDuration and its strike count resets.
func (g *BanGater) Strike(p peer.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.strikes[p]++
	short := peerShort(p)
	if g.strikes[p] >= g.strikeLimit {
		g.bannedUntil[p] = time.Now().Add(g.banDuration)
		g.strikes[p] = 0
		slog.Warn("peer banned after repeated edge-handshake violations", "peer", short, "duration", g.banDuration)
	}
}

// IsBanned reports whether p is currently serving a ban.
func (g *BanGater) IsBanned(p peer.ID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	until, ok := g.bannedUntil[p]
	return ok && time.Now().Before(until)
}

// Pardon clears any ban and accumulated strikes for p.
func (g *BanGater) Pardon(p peer.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.bannedUntil, p)
	delete(g.strikes, p)
}

// SetDecisionCallback sets a callback invoked on every inbound gating
// decision, so a caller can record counters without this package importing
// it.
func (g *BanGater) SetDecisionCallback(fn DecisionFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onDecision = fn
}

// BannedCount returns the number of peers currently serving a ban.
func (g *BanGater) BannedCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	now := time.Now()
	for _, until := range g.bannedUntil {
		if now.Before(until) {
			n++
		}
	}
	return n
}

func peerShort(p peer.ID) string {
	s := p.String()
	if len(s) <= 16 {
		return s
	}
	return s[:16] + "..."
}
