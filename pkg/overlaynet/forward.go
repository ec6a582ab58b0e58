package overlaynet

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/libp2p/go-libp2p/core/network"

	"github.com/meshroute/overlay/internal/pid"
	"github.com/meshroute/overlay/internal/routing"
	"github.com/meshroute/overlay/internal/signer"
)

// hashPayload derives the MessageHash used to key a request's route-back
// trail, using the same BLAKE3 primitive internal/signer uses for canonical
// edge hashes. Hashing the payload (rather than handing callers a counter)
// keeps SendRequest stateless and lets a responder reply with only the
// bytes it received.
func hashPayload(payload []byte) routing.MessageHash {
	return routing.MessageHash(signer.Hash(payload))
}

// messageHashSize is the fixed byte width of routing.MessageHash.
const messageHashSize = 32

// ForwardProtocolID identifies the forwarding stream protocol: the external
// message-delivery surface the routing core's find_route/route-back queries
// exist to serve (spec §1, §4.4).
const ForwardProtocolID = "/overlay/forward/1.0.0"

// DefaultTTL bounds how many hops a forwarded message may traverse before
// being dropped, guarding against forwarding-map cycles during transient
// inconsistency between nodes.
const DefaultTTL = 32

const maxFrameSize = 1 << 20 // 1MiB

const forwardStreamTimeout = 10 * time.Second

// frame is the wire layout of a single forwarded message: a fixed header
// followed by an opaque payload. HashValid distinguishes a reply travelling
// back along a recorded route-back path (matched against Hash) from a
// request travelling forward toward TargetPeer.
type frame struct {
	TTL        uint8
	HashValid  bool
	TargetPeer pid.ID
	Hash       routing.MessageHash
	Payload    []byte
}

// Deliver is invoked with the payload of a message that reached this node,
// after every intermediate hop has decremented its TTL. fromHash reports
// whether the message arrived as a route-back reply rather than a
// peer-addressed request; hash identifies the logical exchange either way —
// a request handler replies by passing hash to SendReply.
type Deliver func(payload []byte, fromHash bool, hash routing.MessageHash)

// SetOnDeliver sets the callback invoked when a forwarded message reaches its
// destination. Set before the node starts dialing; nil discards delivered
// payloads.
func (n *Node) SetOnDeliver(fn Deliver) { n.onDeliver = fn }

// SendRequest routes payload toward target via Table().FindRoute and sends
// it as a fresh peer-addressed request. It returns the message hash future
// replies are tagged with, derived from the payload so the eventual
// responder can address SendReply without prior coordination.
func (n *Node) SendRequest(ctx context.Context, target pid.ID, payload []byte) (routing.MessageHash, error) {
	hash := hashPayload(payload)
	nextHop, err := n.table.FindRoute(routing.ToPeer(target))
	if err != nil {
		return hash, fmt.Errorf("overlaynet: find route to %s: %w", pid.Short(target), err)
	}
	f := frame{TTL: DefaultTTL, TargetPeer: target, Hash: hash, Payload: payload}
	if err := n.sendFrame(ctx, nextHop, f); err != nil {
		return hash, err
	}
	return hash, nil
}

// SendReply routes payload back along the path recorded for hash by the
// intermediate hops that relayed the original request (spec §4.4 "Route
// query" over a hash target). It fails if no route-back entry exists, which
// is the case once the original requester has already received it.
func (n *Node) SendReply(ctx context.Context, hash routing.MessageHash, payload []byte) error {
	nextHop, err := n.table.FindRoute(routing.ToHash(hash))
	if err != nil {
		return fmt.Errorf("overlaynet: find route back for %x: %w", hash, err)
	}
	return n.sendFrame(ctx, nextHop, frame{TTL: DefaultTTL, HashValid: true, Hash: hash, Payload: payload})
}

func (n *Node) sendFrame(ctx context.Context, nextHop pid.ID, f frame) error {
	ctx, cancel := context.WithTimeout(ctx, forwardStreamTimeout)
	defer cancel()

	s, err := n.host.NewStream(ctx, nextHop, ForwardProtocolID)
	if err != nil {
		return fmt.Errorf("overlaynet: open forward stream to %s: %w", pid.Short(nextHop), err)
	}
	defer s.Close()
	s.SetDeadline(time.Now().Add(forwardStreamTimeout))

	return writeFrame(s, f)
}

// handleForward is the libp2p stream handler for ForwardProtocolID. It
// decodes one frame, decrements its TTL, and either delivers the payload
// locally or re-forwards it toward the next hop found via the routing
// table — recording a route-back entry on the way out for request frames,
// so a later reply can retrace the path without a fresh route lookup.
func (n *Node) handleForward(s network.Stream) {
	defer s.Close()
	s.SetDeadline(time.Now().Add(forwardStreamTimeout))

	sender := s.Conn().RemotePeer()

	f, err := readFrame(s)
	if err != nil {
		s.Reset()
		return
	}

	if f.TTL == 0 {
		slog.Warn("dropping forwarded message: TTL exhausted")
		return
	}
	f.TTL--

	if f.HashValid {
		n.handleReply(f)
		return
	}
	n.handleRequest(f, sender)
}

func (n *Node) handleReply(f frame) {
	nextHop, err := n.table.FindRoute(routing.ToHash(f.Hash))
	if err != nil {
		if errors.Is(err, routing.ErrRouteBackNotFound) {
			// No further route-back entry: this node is the original
			// requester and the reply has arrived.
			if n.onDeliver != nil {
				n.onDeliver(f.Payload, true, f.Hash)
			}
			return
		}
		slog.Warn("no route back for reply", "error", err)
		return
	}
	if err := n.sendFrame(n.ctx, nextHop, f); err != nil {
		slog.Warn("failed to re-forward reply", "next_hop", pid.Short(nextHop), "error", err)
	}
}

func (n *Node) handleRequest(f frame, sender pid.ID) {
	n.table.AddRouteBack(f.Hash, sender)

	if f.TargetPeer == n.self {
		if n.onDeliver != nil {
			n.onDeliver(f.Payload, false, f.Hash)
		}
		return
	}

	nextHop, err := n.table.FindRoute(routing.ToPeer(f.TargetPeer))
	if err != nil {
		slog.Warn("no route for forwarded request", "target", pid.Short(f.TargetPeer), "error", err)
		return
	}
	if err := n.sendFrame(n.ctx, nextHop, f); err != nil {
		slog.Warn("failed to re-forward request", "next_hop", pid.Short(nextHop), "error", err)
	}
}

// writeFrame serializes f as: [4-byte header length][header][4-byte payload
// length][payload]. header is [TTL][HashValid][TargetPeer bytes][Hash
// bytes] — TargetPeer's length is implicit in the header's own length
// prefix, since it's the only variable-width field besides the payload.
func writeFrame(w io.Writer, f frame) error {
	bw := bufio.NewWriter(w)

	header := make([]byte, 2+len(f.TargetPeer)+messageHashSize)
	header[0] = f.TTL
	if f.HashValid {
		header[1] = 1
	}
	copy(header[2:2+len(f.TargetPeer)], f.TargetPeer)
	copy(header[2+len(f.TargetPeer):], f.Hash[:])

	if err := writeLenPrefixed(bw, header); err != nil {
		return err
	}
	if err := writeLenPrefixed(bw, f.Payload); err != nil {
		return err
	}
	return bw.Flush()
}

func readFrame(r io.Reader) (frame, error) {
	br := bufio.NewReader(r)

	header, err := readLenPrefixed(br)
	if err != nil {
		return frame{}, err
	}
	if len(header) < 2+messageHashSize {
		return frame{}, fmt.Errorf("overlaynet: malformed frame: short header")
	}
	peerLen := len(header) - 2 - messageHashSize

	payload, err := readLenPrefixed(br)
	if err != nil {
		return frame{}, err
	}

	f := frame{
		TTL:       header[0],
		HashValid: header[1] == 1,
		Payload:   payload,
	}
	f.TargetPeer = pid.ID(header[2 : 2+peerLen])
	copy(f.Hash[:], header[2+peerLen:2+peerLen+messageHashSize])
	return f, nil
}

func writeLenPrefixed(w io.Writer, data []byte) error {
	if len(data) > maxFrameSize {
		return fmt.Errorf("overlaynet: frame field too large: %d bytes", len(data))
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("overlaynet: frame field too large: %d bytes", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
