package daemon

// DataResponse wraps a successful JSON response payload.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse wraps a JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// InfoResponse is returned by GET /v1/status: a routing.Table snapshot plus
// process metadata (spec §6's "info" query).
type InfoResponse struct {
	PeerID         string   `json:"peer_id"`
	Version        string   `json:"version"`
	UptimeSeconds  int      `json:"uptime_seconds"`
	ConnectedPeers int      `json:"connected_peers"`
	ListenAddrs    []string `json:"listen_addresses"`
	EdgeCount      int      `json:"edge_count"`
	AccountCount   int      `json:"account_count"`
	ForwardingSize int      `json:"forwarding_map_size"`
}

// RouteResponse is returned by GET /v1/route/{target}.
type RouteResponse struct {
	Target  string `json:"target"`
	NextHop string `json:"next_hop"`
}

// AccountOwnerResponse is returned by GET /v1/account/{account_id}.
type AccountOwnerResponse struct {
	AccountID string `json:"account_id"`
	Owner     string `json:"owner"`
}

// EdgeInfo is one entry of GET /v1/edges.
type EdgeInfo struct {
	Peer0 string `json:"peer0"`
	Peer1 string `json:"peer1"`
	Nonce uint64 `json:"nonce"`
	Kind  string `json:"kind"`
}
