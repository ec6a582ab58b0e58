// Package audit writes structured audit events for security-relevant
// overlay actions (edge acceptance/rejection, gater strikes, daemon API
// access), adapted from the teacher's pkg/p2pnet/audit.go.
package audit

import (
	"log/slog"
)

// Logger writes audit events under the "audit" slog group. All methods are
// nil-safe: calling any method on a nil *Logger is a no-op, so callers can
// skip nil checks at every call site when auditing is disabled.
type Logger struct {
	logger *slog.Logger
}

// New creates a Logger that writes to the given handler.
func New(handler slog.Handler) *Logger {
	return &Logger{logger: slog.New(handler).WithGroup("audit")}
}

// EdgeDecision logs an edge proposal's accept/reject outcome (spec §4.1).
func (a *Logger) EdgeDecision(peerID, kind, result string) {
	if a == nil {
		return
	}
	a.logger.Info("edge_decision",
		"peer", peerID,
		"kind", kind,
		"result", result,
	)
}

// GaterStrike logs a handshake-violation strike and whether it triggered a ban.
func (a *Logger) GaterStrike(peerID string, count int, banned bool) {
	if a == nil {
		return
	}
	a.logger.Warn("gater_strike",
		"peer", peerID,
		"count", count,
		"banned", banned,
	)
}

// DaemonAPIAccess logs an API request to the daemon.
func (a *Logger) DaemonAPIAccess(method, path string, status int) {
	if a == nil {
		return
	}
	a.logger.Info("daemon_api_access",
		"method", method,
		"path", path,
		"status", status,
	)
}
