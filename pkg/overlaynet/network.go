// Package overlaynet wires the overlay routing core (internal/routing,
// which itself owns the edge store and adjacency graph) onto a live libp2p
// host: it turns edge-handshake wire events into routing-table updates and
// exposes the forwarding protocol peers use to relay opaque payloads toward
// a target (spec §4, §6).
package overlaynet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	libp2pquic "github.com/libp2p/go-libp2p/p2p/transport/quic"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	ws "github.com/libp2p/go-libp2p/p2p/transport/websocket"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/meshroute/overlay/internal/auth"
	"github.com/meshroute/overlay/internal/edge"
	"github.com/meshroute/overlay/internal/edgehandshake"
	"github.com/meshroute/overlay/internal/metrics"
	"github.com/meshroute/overlay/internal/pid"
	"github.com/meshroute/overlay/internal/routing"
	"github.com/meshroute/overlay/internal/signer"
)

// dhtProtocolPrefixBase roots this overlay's Kademlia protocol namespace,
// keeping it off the public IPFS Amino DHT (which speaks /ipfs/kad/1.0.0).
const dhtProtocolPrefixBase = "/overlay"

// dhtProtocolPrefixForNamespace returns the DHT protocol prefix for a given
// private-overlay namespace ("" selects the global overlay DHT).
func dhtProtocolPrefixForNamespace(namespace string) string {
	if namespace == "" {
		return dhtProtocolPrefixBase
	}
	return dhtProtocolPrefixBase + "/" + namespace
}

// Config configures a Node.
type Config struct {
	KeyFile                string
	ListenAddresses        []string
	ResourceLimitsEnabled  bool
	EnableConnectionGating bool
	StrikeLimit            int
	BanDuration            time.Duration
	Metrics                *metrics.Metrics // nil is fine; falls back to a no-op

	// EnableMDNS turns on zeroconf-based LAN peer discovery.
	EnableMDNS bool
	// DHTNamespace selects a private overlay's Kademlia namespace; empty
	// joins the global overlay DHT.
	DHTNamespace string
	// Rendezvous is the string this node advertises/discovers peers under
	// on the DHT.
	Rendezvous string
	// BootstrapPeers are dialed, and used as DHT bootstrap nodes, on Bootstrap.
	BootstrapPeers []string
}

// Node is a single overlay routing participant: a libp2p host plus the
// routing core wired to its edge-handshake and forwarding protocols.
type Node struct {
	host host.Host
	self pid.ID
	priv signer.PrivKey

	table *routing.Table

	hs    *edgehandshake.Handler
	gater *auth.BanGater

	onDeliver Deliver

	cfg     Config
	metrics *metrics.Metrics
	kdht    *dht.IpfsDHT
	mdns    *mdnsDiscovery

	ctx    context.Context
	cancel context.CancelFunc

	timerMu sync.Mutex
	timer   *time.Timer
}

// New creates a Node: it loads (or creates) the node's identity, builds a
// libp2p host over TCP, QUIC and WebSocket transports, and wires the
// routing core to the edge-handshake and forwarding protocols.
func New(cfg Config) (*Node, error) {
	self, raw, priv, err := PeerIDFromKeyFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("overlaynet: load identity: %w", err)
	}
	return newNode(cfg, self, raw, priv)
}

func newNode(cfg Config, self pid.ID, raw crypto.PrivKey, priv signer.PrivKey) (*Node, error) {
	hostOpts := []libp2p.Option{
		libp2p.Identity(raw),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Transport(libp2pquic.NewTransport),
		libp2p.Transport(ws.New),
	}
	if len(cfg.ListenAddresses) > 0 {
		hostOpts = append(hostOpts, libp2p.ListenAddrStrings(cfg.ListenAddresses...))
	}
	if !cfg.ResourceLimitsEnabled {
		hostOpts = append(hostOpts, libp2p.DisableResourceManager())
	}

	var gater *auth.BanGater
	if cfg.EnableConnectionGating {
		gater = auth.NewBanGater(cfg.StrikeLimit, cfg.BanDuration)
		hostOpts = append(hostOpts, libp2p.ConnectionGater(gater))
	}

	h, err := libp2p.New(hostOpts...)
	if err != nil {
		return nil, fmt.Errorf("overlaynet: create libp2p host: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var m routing.Metrics
	if cfg.Metrics != nil {
		m = cfg.Metrics
	}

	tbl := routing.New(self, m)

	n := &Node{
		host:    h,
		self:    self,
		priv:    priv,
		table:   tbl,
		gater:   gater,
		cfg:     cfg,
		metrics: cfg.Metrics,
		ctx:     ctx,
		cancel:  cancel,
	}

	n.hs = edgehandshake.New(h, self, priv, n.onEdge)
	h.SetStreamHandler(ForwardProtocolID, n.handleForward)

	return n, nil
}

// Host returns the underlying libp2p host.
func (n *Node) Host() host.Host { return n.host }

// Self returns the node's own overlay identity.
func (n *Node) Self() pid.ID { return n.self }

// Table returns the routing table backing this node, for read-only queries
// (find_route, account_owner, info — spec §6).
func (n *Node) Table() *routing.Table { return n.table }

// Gater returns the node's connection gater, or nil if gating is disabled.
func (n *Node) Gater() *auth.BanGater { return n.gater }

// Close shuts down the node's networking and cancels its background work.
func (n *Node) Close() error {
	n.cancel()
	n.timerMu.Lock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timerMu.Unlock()
	if n.mdns != nil {
		n.mdns.Close()
	}
	if n.kdht != nil {
		n.kdht.Close()
	}
	return n.host.Close()
}

// Bootstrap brings peer discovery up: it starts the Kademlia DHT (scoped to
// cfg.DHTNamespace so private overlays don't share a namespace with the
// public overlay, or with the public IPFS Amino DHT), dials any configured
// bootstrap peers, advertises this node's rendezvous string, and - if
// enabled - starts LAN discovery via mDNS. Adapted from the retrieved pack's
// cmd/peerup/serve_common.go serveRuntime.Bootstrap, trimmed to the
// peer-discovery slice relevant here (no relay reservations: overlaynet has
// no relay concept).
func (n *Node) Bootstrap(ctx context.Context) error {
	prefix := dhtProtocolPrefixForNamespace(n.cfg.DHTNamespace)
	slog.Info("bootstrapping DHT", "namespace", n.cfg.DHTNamespace, "protocol", prefix)

	kdht, err := dht.New(ctx, n.host,
		dht.Mode(dht.ModeAutoServer),
		dht.ProtocolPrefix(protocol.ID(prefix)),
	)
	if err != nil {
		return fmt.Errorf("overlaynet: create DHT: %w", err)
	}
	if err := kdht.Bootstrap(ctx); err != nil {
		return fmt.Errorf("overlaynet: bootstrap DHT: %w", err)
	}
	n.kdht = kdht

	var wg sync.WaitGroup
	var connected atomic.Int32
	for _, addr := range n.cfg.BootstrapPeers {
		maddr, err := ma.NewMultiaddr(addr)
		if err != nil {
			slog.Warn("invalid bootstrap peer address", "address", addr, "error", err)
			continue
		}
		ai, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			slog.Warn("invalid bootstrap peer multiaddr", "address", addr, "error", err)
			continue
		}
		wg.Add(1)
		go func(ai peer.AddrInfo) {
			defer wg.Done()
			if err := n.host.Connect(ctx, ai); err == nil {
				connected.Add(1)
			}
		}(*ai)
	}
	wg.Wait()
	slog.Info("connected to bootstrap peers", "count", connected.Load(), "configured", len(n.cfg.BootstrapPeers))

	if n.cfg.Rendezvous != "" {
		rd := drouting.NewRoutingDiscovery(kdht)
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				rd.Advertise(n.ctx, n.cfg.Rendezvous)
				select {
				case <-n.ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}

	if n.cfg.EnableMDNS {
		n.mdns = newMDNSDiscovery(n, n.metrics)
		if err := n.mdns.Start(n.ctx); err != nil {
			slog.Warn("mdns start failed", "error", err)
			n.mdns = nil
		}
	}

	return nil
}

// ProposeEdge dials target and runs the joint edge-addition handshake,
// applying the resulting edge to the local routing table on success.
func (n *Node) ProposeEdge(ctx context.Context, target pid.ID) error {
	pair := pid.MakePair(n.self, target)
	nonce := uint64(1)
	if existing, ok := n.table.GetEdge(pair.Peer0, pair.Peer1); ok {
		nonce = existing.NextNonce()
	}

	e, err := n.hs.Propose(ctx, target, nonce)
	if err != nil {
		return fmt.Errorf("overlaynet: propose edge to %s: %w", pid.Short(target), err)
	}
	n.applyVerifiedEdge(e)
	return nil
}

// RemoveEdge signs the edge to target out of existence and notifies it.
func (n *Node) RemoveEdge(ctx context.Context, target pid.ID) error {
	pair := pid.MakePair(n.self, target)
	existing, ok := n.table.GetEdge(pair.Peer0, pair.Peer1)
	if !ok || existing.Kind() != edge.Added {
		return fmt.Errorf("overlaynet: no active edge to %s", pid.Short(target))
	}

	removed, err := edge.IssueRemove(existing, n.self, n.priv)
	if err != nil {
		return fmt.Errorf("overlaynet: issue remove: %w", err)
	}
	if err := n.hs.Remove(ctx, target, removed); err != nil {
		return fmt.Errorf("overlaynet: notify remove to %s: %w", pid.Short(target), err)
	}
	n.applyVerifiedEdge(removed)
	return nil
}

// onEdge is edgehandshake's delivery callback. A completed Added edge is
// already fully verified by the handshake layer. A Removed edge arrives as
// a skeleton (spec §4.1's removal branch needs the original addition's
// signatures, which only the local store holds) and must be merged and
// re-verified here before it's trusted.
func (n *Node) onEdge(e edge.Edge) {
	if e.Removal != nil {
		pair := e.Pair()
		stored, ok := n.table.GetEdge(pair.Peer0, pair.Peer1)
		if !ok || stored.Kind() != edge.Added || stored.Nonce != e.Nonce-1 {
			slog.Warn("dropping removal for unknown or stale edge", "peers", e.Pair())
			return
		}
		merged := stored
		merged.Removal = e.Removal
		ok2, err := edge.Verify(merged)
		if err != nil || !ok2 {
			slog.Warn("dropping removal that failed verification", "peers", e.Pair())
			if n.gater != nil {
				n.gater.Strike(n.otherEndpoint(e))
			}
			return
		}
		e = merged
	} else {
		ok2, err := edge.Verify(e)
		if err != nil || !ok2 {
			slog.Warn("dropping addition that failed verification", "peers", e.Pair())
			if n.gater != nil {
				n.gater.Strike(n.otherEndpoint(e))
			}
			return
		}
	}
	n.applyVerifiedEdge(e)
}

func (n *Node) otherEndpoint(e edge.Edge) pid.ID {
	other, _ := e.OtherEndpoint(n.self)
	return other
}

func (n *Node) applyVerifiedEdge(e edge.Edge) {
	result := n.table.ProcessEdge(e, time.Now())
	if !result.Accepted {
		return
	}
	n.scheduleUpdate(result.ScheduleIn)
}

// scheduleUpdate debounces routing-table recomputation: repeated ProcessEdge
// calls within the window collapse into a single Update (spec §4.3's
// min(|FM|, 1000)ms delay).
func (n *Node) scheduleUpdate(delay *time.Duration) {
	if delay == nil {
		return
	}
	n.timerMu.Lock()
	defer n.timerMu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(*delay, n.table.Update)
}
