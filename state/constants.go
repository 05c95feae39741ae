package state

import "time"

var (
	RouteLifetime     = time.Second * 12
	ReplyDelay        = time.Second * 3        // how long the destination collects RREQs before answering
	NeighbourLifetime = time.Second * 9        // hello interval
	PendingLifetime   = time.Millisecond * 3000
	HeartbeatDelay    = time.Second * 3

	RingSearchWait       = time.Second * 5
	RingSearchWaitPerTTL = time.Millisecond * 100
	RingSearchRwaitScale = 8 // an RWAIT stretches the wait to RingSearchWait * RingSearchRwaitScale

	RingSearchStartTTL = uint8(2) // a TTL of 1 is not allowed by the mesh layer
	RingSearchMaxTTL   = uint8(10)
	MaxTTL             = uint8(127)

	// RssiMin is the weakest signal we expect to hear, used to normalise the route cost
	RssiMin = -90

	RouteTableSize     = 20
	PendingSlots       = 4
	NeighbourTableSize = 20
	ResponseListSize   = 20
	RerrBatchLimit     = 20
	RerrMaxDests       = 20 // destinations carried by one RERR PDU
)

// SeqWindow is the distance beyond which a sequence number jump is treated as suspicious
func SeqWindow() uint32 {
	return 5 * uint32(RingSearchMaxTTL)
}
