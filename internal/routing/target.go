package routing

import "github.com/meshroute/overlay/internal/pid"

// MessageHash is a fixed-width digest identifying a previously-routed
// message, used as the route-back cache key.
type MessageHash [32]byte

// Target is the tagged union spec §4.4 calls PeerIdOrHash: a route query is
// either "find the next hop toward this peer" or "find the hop this
// message previously arrived from".
type Target struct {
	isHash bool
	peerID pid.ID
	hash   MessageHash
}

// ToPeer builds a Target that resolves via the forwarding map.
func ToPeer(id pid.ID) Target { return Target{peerID: id} }

// ToHash builds a Target that resolves via the route-back cache.
func ToHash(h MessageHash) Target { return Target{isHash: true, hash: h} }
