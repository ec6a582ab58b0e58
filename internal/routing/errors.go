package routing

import "errors"

var (
	// ErrPeerNotFound is returned when the target PID has no entry in the
	// forwarding map (unknown or unreachable at last recompute).
	ErrPeerNotFound = errors.New("routing: peer not found in forwarding map")

	// ErrDisconnected is returned when a target has a forwarding-map entry
	// with no first hops. The forwarding map construction in package graph
	// filters such entries out, so this is defensive and should be
	// unreachable in a correct implementation (spec §4.2, §9).
	ErrDisconnected = errors.New("routing: target is disconnected")

	// ErrAccountNotFound is returned when no announcement is stored for the
	// given account identifier.
	ErrAccountNotFound = errors.New("routing: account not found")

	// ErrRouteBackNotFound is returned when a message hash has no matching
	// entry in the route-back cache: either it was never inserted, or it
	// was evicted under capacity pressure.
	ErrRouteBackNotFound = errors.New("routing: route-back entry not found")
)
