package state

import (
	"time"

	"github.com/google/uuid"
)

type DiscoveryPhase uint8

const (
	// Searching is the expanding ring part of a discovery
	Searching DiscoveryPhase = iota
	// FinalAttempt means the network-wide request has been sent and the next tick ends the search
	FinalAttempt
)

func (p DiscoveryPhase) String() string {
	if p == FinalAttempt {
		return "final"
	}
	return "searching"
}

// DiscoveryRequest is the template a ring search resends at every TTL
type DiscoveryRequest struct {
	Src      Addr
	Dst      Addr
	SrcElems uint16
	DstSeq   uint32
	// Unknown is set when we hold no sequence number for the destination
	Unknown bool
}

// DiscoveryState exists only while a discovery is outstanding
type DiscoveryState struct {
	Id      uuid.UUID
	Target  Addr
	NetIdx  NetIdx
	TTL     uint8
	Phase   DiscoveryPhase
	Request DiscoveryRequest
	Started time.Time
	Sent    int
}

// DiscoveryResponse is left behind by an RREP (HopCount 0) or an RWAIT for the next
// discovery tick to consume. An RREP names the replier's primary element, so DstElems
// carries its element count.
type DiscoveryResponse struct {
	Dst      Addr
	DstElems uint16
	HopCount uint8
}

// Covers reports whether the response answers a search for target
func (r DiscoveryResponse) Covers(target Addr) bool {
	return InRange(target, r.Dst, r.DstElems)
}

type PendingSlot struct {
	InUse bool
	Tx    TxCtx
	Msg   []byte
}

type NeighbourKey struct {
	Addr   Addr
	NetIdx NetIdx
}

type Neighbour struct {
	NeighbourKey
	LastHeard time.Time
}

type RerrDest struct {
	Dst    Addr
	DstSeq uint32
}

// RerrBatch collects the unreachable destinations to report to one upstream neighbour
type RerrBatch struct {
	NextHop Addr
	NetIdx  NetIdx
	Dests   []RerrDest
}

func (b *RerrBatch) Add(dst Addr, seq uint32) {
	for i := range b.Dests {
		if b.Dests[i].Dst == dst {
			b.Dests[i].DstSeq = seq
			return
		}
	}
	b.Dests = append(b.Dests, RerrDest{Dst: dst, DstSeq: seq})
}

// RouterState is owned by the main loop, with the exception of Table which may be read
// from any goroutine
type RouterState struct {
	Node       Node
	Table      *RouteTable
	Timers     TimerQueue
	Discovery  *DiscoveryState
	Responses  []DiscoveryResponse
	Pending    []PendingSlot
	Neighbours map[NeighbourKey]*Neighbour
	Rerr       []*RerrBatch
	// Clock is overridden by tests
	Clock func() time.Time
}

func NewRouterState(node Node, timers TimerQueue) *RouterState {
	return &RouterState{
		Node:       node,
		Table:      NewRouteTable(RouteTableSize, timers),
		Timers:     timers,
		Responses:  make([]DiscoveryResponse, 0, ResponseListSize),
		Pending:    make([]PendingSlot, PendingSlots),
		Neighbours: make(map[NeighbourKey]*Neighbour),
		Clock:      time.Now,
	}
}

func (r *RouterState) Now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock()
}

func (r *RouterState) Primary() Addr {
	return r.Node.PrimaryAddr()
}
