package state

import "errors"

var (
	ErrLocalAddress        = errors.New("source address is a local element")
	ErrStaleRequest        = errors.New("request is outside of the reply window")
	ErrDirectiveDropped    = errors.New("directed request has no route to its destination")
	ErrDuplicateSuppressed = errors.New("request is not fresher than an existing route")
	ErrResourceExhausted   = errors.New("resource exhausted")
	ErrDiscoveryTimeout    = errors.New("route discovery timed out")
	ErrDiscoveryBusy       = errors.New("route discovery already in progress")
)

// IsProtocolDrop reports whether err is an expected outcome of handling a control
// message, rather than a fault in the node
func IsProtocolDrop(err error) bool {
	return errors.Is(err, ErrLocalAddress) ||
		errors.Is(err, ErrStaleRequest) ||
		errors.Is(err, ErrDirectiveDropped) ||
		errors.Is(err, ErrDuplicateSuppressed) ||
		errors.Is(err, ErrDiscoveryTimeout) ||
		errors.Is(err, ErrDiscoveryBusy)
}
