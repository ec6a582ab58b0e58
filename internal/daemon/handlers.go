package daemon

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/meshroute/overlay/internal/routing"
	"github.com/meshroute/overlay/pkg/overlaynet"
)

// registerRoutes sets up all HTTP routes on the mux (spec §6's three
// external queries: find_route, account_owner, and info).
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/route/{target}", s.handleFindRoute)
	mux.HandleFunc("GET /v1/account/{account_id}", s.handleAccountOwner)
	mux.HandleFunc("GET /v1/edges", s.handleEdgeList)
	mux.HandleFunc("POST /v1/shutdown", s.handleShutdown)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(DataResponse{Data: data})
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

// handleStatus answers spec §6's "info" query plus process metadata.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	node := s.runtime.Node()
	table := node.Table()
	info := table.Info()

	connected := node.Host().Network().Peers()

	resp := InfoResponse{
		PeerID:         node.Self().String(),
		Version:        s.runtime.Version(),
		UptimeSeconds:  int(time.Since(s.runtime.StartTime()).Seconds()),
		ConnectedPeers: len(connected),
		ListenAddrs:    addrStrings(node),
		EdgeCount:      len(table.GetEdges()),
		AccountCount:   len(info.AccountPeers),
		ForwardingSize: len(info.Forwarding),
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleFindRoute answers spec §6's "find_route" query for a peer-addressed
// target: GET /v1/route/{target}.
func (s *Server) handleFindRoute(w http.ResponseWriter, r *http.Request) {
	targetStr := r.PathValue("target")
	target, err := peer.Decode(targetStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid peer id: "+err.Error())
		return
	}

	nextHop, err := s.runtime.Node().Table().FindRoute(routing.ToPeer(target))
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, RouteResponse{
		Target:  targetStr,
		NextHop: nextHop.String(),
	})
}

// handleAccountOwner answers spec §6's "account_owner" query:
// GET /v1/account/{account_id}.
func (s *Server) handleAccountOwner(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("account_id")

	owner, err := s.runtime.Node().Table().AccountOwner(accountID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, AccountOwnerResponse{
		AccountID: accountID,
		Owner:     owner.String(),
	})
}

// handleEdgeList returns every edge currently held in the local edge store,
// for CLI display and debugging (spec §6 "info").
func (s *Server) handleEdgeList(w http.ResponseWriter, r *http.Request) {
	edges := s.runtime.Node().Table().GetEdges()
	resp := make([]EdgeInfo, 0, len(edges))
	for _, e := range edges {
		resp = append(resp, EdgeInfo{
			Peer0: e.Peer0.String(),
			Peer1: e.Peer1.String(),
			Nonce: e.Nonce,
			Kind:  e.Kind().String(),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleShutdown signals the daemon's main loop to terminate.
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	close(s.shutdownCh)
}

func addrStrings(node *overlaynet.Node) []string {
	addrs := node.Host().Addrs()
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}
