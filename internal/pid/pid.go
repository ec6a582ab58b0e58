// Package pid defines the overlay's peer identifier: a libp2p peer.ID with
// the canonical ordering and binary encoding the edge-authentication
// protocol requires.
package pid

import (
	"bytes"

	"github.com/libp2p/go-libp2p/core/peer"
)

// ID is a peer identifier. It wraps libp2p's peer.ID, which is itself the
// multihash of a public key: equal encodings iff equal peers, and already a
// stable binary serialization ([]byte(id)) across processes.
type ID = peer.ID

// Less reports whether a sorts strictly before b under the canonical,
// byte-lexicographic order required by the edge protocol (peer0 < peer1).
func Less(a, b ID) bool {
	return bytes.Compare([]byte(a), []byte(b)) < 0
}

// Canonical returns (a, b) reordered so the first return value is strictly
// less than the second under Less. Panics if a == b: an edge's two
// endpoints must be distinct peers.
func Canonical(a, b ID) (ID, ID) {
	if a == b {
		panic("pid: canonical pair requires two distinct peer IDs")
	}
	if Less(a, b) {
		return a, b
	}
	return b, a
}

// Pair is a canonically-ordered (peer0, peer1) key, suitable for use as a
// map key identifying an undirected edge.
type Pair struct {
	Peer0 ID
	Peer1 ID
}

// MakePair builds the canonical Pair for an unordered {a, b}.
func MakePair(a, b ID) Pair {
	p0, p1 := Canonical(a, b)
	return Pair{Peer0: p0, Peer1: p1}
}

// Short renders a peer ID truncated for log lines, matching the host's
// convention of never logging full peer IDs in routine messages.
func Short(id ID) string {
	s := id.String()
	if len(s) <= 16 {
		return s
	}
	return s[:16] + "..."
}
