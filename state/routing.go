package state

import "fmt"

type RouteState uint8

const (
	Valid RouteState = iota
	Invalid
	// InvalidRerr marks a route that was torn down by a link break and is kept around so
	// the next discovery can reuse its sequence number
	InvalidRerr
)

func (r RouteState) String() string {
	switch r {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case InvalidRerr:
		return "invalid-rerr"
	}
	return fmt.Sprintf("state(%d)", uint8(r))
}

type RouteEntry struct {
	Src      Addr
	Dst      Addr
	DstSeq   uint32
	NextHop  Addr
	SrcElems uint16
	DstElems uint16
	HopCount uint8
	Rssi     int8
	NetIdx   NetIdx
	State    RouteState
	// AwaitingReply is set on the entry a destination creates for a received RREQ, its
	// first timer expiry answers with an RREP instead of deleting the entry
	AwaitingReply bool
}

// Cost weighs hop count against the smoothed signal strength, lower is better
func (e RouteEntry) Cost() int {
	return RouteCost(e.HopCount, e.Rssi)
}

func RouteCost(hops uint8, rssi int8) int {
	return int(hops)*100 + int(rssi)*100/RssiMin
}

func (e RouteEntry) String() string {
	return fmt.Sprintf("%s[%d] -> %s[%d] via %s (seq: %d, hops: %d, rssi: %d, net: %d, %s)",
		e.Src, e.SrcElems, e.Dst, e.DstElems, e.NextHop, e.DstSeq, e.HopCount, e.Rssi, e.NetIdx, e.State)
}

// EntryRef addresses a route table slot. It goes stale as soon as the slot is freed.
type EntryRef struct {
	Index int
	Gen   uint32
}

type MatchMode uint8

const (
	// MatchRange matches when the query addresses fall inside the entry's element ranges
	MatchRange MatchMode = iota
	// MatchExact matches the entry's base addresses only
	MatchExact
	// MatchSourceWithin matches entries whose source lies in [Src, Src+SrcElems) and whose
	// destination is exactly Dst
	MatchSourceWithin
)

// Query selects route entries. Zero addresses are wildcards.
type Query struct {
	State    RouteState
	NetIdx   NetIdx
	Src      Addr
	Dst      Addr
	NextHop  Addr
	SrcElems uint16
	Match    MatchMode
}

func (q Query) Matches(e *RouteEntry) bool {
	if e.State != q.State || e.NetIdx != q.NetIdx {
		return false
	}
	if q.NextHop != AddrUnassigned && e.NextHop != q.NextHop {
		return false
	}
	switch q.Match {
	case MatchExact:
		return (q.Src == AddrUnassigned || e.Src == q.Src) &&
			(q.Dst == AddrUnassigned || e.Dst == q.Dst)
	case MatchSourceWithin:
		return InRange(e.Src, q.Src, q.SrcElems) && e.Dst == q.Dst
	default:
		return (q.Src == AddrUnassigned || InRange(q.Src, e.Src, e.SrcElems)) &&
			(q.Dst == AddrUnassigned || InRange(q.Dst, e.Dst, e.DstElems))
	}
}

// sequence numbers are 24 bits wide and wrap
const seqMask = 0xffffff

func seqDistance(seq, old uint32) uint32 {
	return (seq - old) & seqMask
}

// RreqSeqFresh decides whether a request carrying seq may replace a route that stored
// old. A jump larger than the window is rejected along with anything not newer.
func RreqSeqFresh(seq, old uint32) bool {
	d := seqDistance(seq, old)
	return d != 0 && d <= SeqWindow()
}

// SeqNewer reports whether seq is ahead of old by less than half the sequence space
func SeqNewer(seq, old uint32) bool {
	d := seqDistance(seq, old)
	return d != 0 && d < seqMask/2+1
}
