package core

import (
	"errors"
	"fmt"

	"github.com/encodeous/weft/protocol"
	"github.com/encodeous/weft/state"
)

type RouterEvent int

// trace events

const (
	RouteAdded RouterEvent = iota
	RouteValidated
	RouteExpired
	RouteBroken
	ReplyScheduled
	ReplyPathImproved
	ReplySent
	ReplyRelayed
	StaleReplyDropped
	RequestRelayed
	RequestDropped
	WaitSent
	WaitRelayed
	DiscoveryStarted
	DiscoveryExtended
	DiscoveryRetry
	DiscoverySucceeded
	DiscoveryFailed
	PendingBuffered
	PendingReleased
	PendingDropped
	NeighbourAdded
	NeighbourLost
	RerrSent
	DataForwarded
)

// warn events

const (
	TableExhausted RouterEvent = iota + 1000
	NoRouteToForward
	SendFailed
)

var eventNames = map[RouterEvent]string{
	RouteAdded:         "ROUTE_ADDED",
	RouteValidated:     "ROUTE_VALIDATED",
	RouteExpired:       "ROUTE_EXPIRED",
	RouteBroken:        "ROUTE_BROKEN",
	ReplyScheduled:     "REPLY_SCHEDULED",
	ReplyPathImproved:  "REPLY_PATH_IMPROVED",
	ReplySent:          "REPLY_SENT",
	ReplyRelayed:       "REPLY_RELAYED",
	StaleReplyDropped:  "STALE_REPLY_DROPPED",
	RequestRelayed:     "REQUEST_RELAYED",
	RequestDropped:     "REQUEST_DROPPED",
	WaitSent:           "WAIT_SENT",
	WaitRelayed:        "WAIT_RELAYED",
	DiscoveryStarted:   "DISCOVERY_STARTED",
	DiscoveryExtended:  "DISCOVERY_EXTENDED",
	DiscoveryRetry:     "DISCOVERY_RETRY",
	DiscoverySucceeded: "DISCOVERY_SUCCEEDED",
	DiscoveryFailed:    "DISCOVERY_FAILED",
	PendingBuffered:    "PENDING_BUFFERED",
	PendingReleased:    "PENDING_RELEASED",
	PendingDropped:     "PENDING_DROPPED",
	NeighbourAdded:     "NEIGHBOUR_ADDED",
	NeighbourLost:      "NEIGHBOUR_LOST",
	RerrSent:           "RERR_SENT",
	DataForwarded:      "DATA_FORWARDED",
	TableExhausted:     "TABLE_EXHAUSTED",
	NoRouteToForward:   "NO_ROUTE_TO_FORWARD",
	SendFailed:         "SEND_FAILED",
}

func (e RouterEvent) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("EVENT(%d)", int(e))
}

// IsWarning reports whether the event points at a local resource or delivery problem
func (e RouterEvent) IsWarning() bool {
	return e >= 1000
}

// Router is an interface that defines the underlying router operations
type Router interface {
	// SendCtl hands a control PDU to the transport layer
	SendCtl(tx state.TxCtx, m protocol.Message) error
	// Forward hands an application message to the transport, addressed to nextHop
	Forward(tx state.TxCtx, nextHop state.Addr, msg []byte) error
	Log(event RouterEvent, desc string, args ...any)
}

// AverageRssi folds the signal strength of the latest hop into the running average
// carried by a request or reply
func AverageRssi(avg int8, hops uint8, rssi int8) int8 {
	return int8((int(avg)*int(hops) + int(rssi)) / (int(hops) + 1))
}

func reverseEntry(req *protocol.RREQ, rx state.RxCtx, srcElems uint16) state.RouteEntry {
	return state.RouteEntry{
		Src:      req.Dst,
		Dst:      req.Src,
		DstSeq:   req.SrcSeq,
		NextHop:  rx.Src,
		SrcElems: srcElems,
		DstElems: req.SrcElems,
		HopCount: req.HopCount,
		Rssi:     req.Rssi,
		NetIdx:   rx.NetIdx,
	}
}

func ctlTx(s *state.RouterState, net state.NetIdx, dst state.Addr, ttl uint8) state.TxCtx {
	return state.TxCtx{NetIdx: net, Dst: dst, SendTTL: ttl, Src: s.Primary()}
}

func createRoute(s *state.RouterState, r Router, st state.RouteState, e state.RouteEntry) (state.EntryRef, error) {
	ref, err := s.Table.Create(st, e)
	if err != nil {
		r.Log(TableExhausted, "cannot store route", "route", e)
		return ref, err
	}
	r.Log(RouteAdded, st.String(), "route", e)
	return ref, nil
}

// HandleRREQ processes a route request heard from rx.Src
func HandleRREQ(s *state.RouterState, r Router, rx state.RxCtx, req protocol.RREQ) error {
	req.Rssi = AverageRssi(req.Rssi, req.HopCount, rx.Rssi)
	if req.HopCount == 0 {
		// the originator is one hop away
		NeighbourHeard(s, req.Src, rx.NetIdx)
	}
	if s.Node.FindElement(req.Src) {
		return fmt.Errorf("request %s: %w", &req, state.ErrLocalAddress)
	}
	if s.Node.FindElement(req.Dst) {
		return requestAtDestination(s, r, rx, &req)
	}
	if !s.Node.RelayEnabled() {
		return nil
	}
	return requestAtRelay(s, r, rx, &req)
}

func requestAtDestination(s *state.RouterState, r Router, rx state.RxCtx, req *protocol.RREQ) error {
	q := state.Query{State: state.Valid, NetIdx: rx.NetIdx, Src: req.Dst, Dst: req.Src}
	if ref, e, ok := s.Table.Search(q); ok {
		if !state.RreqSeqFresh(req.SrcSeq, e.DstSeq) {
			r.Log(RequestDropped, "already answered", "src", req.Src, "seq", req.SrcSeq, "answered", e.DstSeq)
			return fmt.Errorf("request from %s with seq %d, answered %d: %w", req.Src, req.SrcSeq, e.DstSeq, state.ErrStaleRequest)
		}
		s.Table.InvalidateRerr(ref)
		return scheduleReply(s, r, rx, req)
	}

	q.State = state.Invalid
	var (
		ref state.EntryRef
		e   state.RouteEntry
		ok  bool
	)
	// other invalid routes back to the originator are not replies in progress
	s.Table.SearchFunc(q, func(eref state.EntryRef, entry state.RouteEntry) {
		if !ok && entry.AwaitingReply {
			ref, e, ok = eref, entry, true
		}
	})
	if !ok {
		return scheduleReply(s, r, rx, req)
	}
	// a copy of the same request over another path, keep the better one until the reply is due
	cost := state.RouteCost(req.HopCount, req.Rssi)
	if state.SeqNewer(req.SrcSeq, e.DstSeq) || req.SrcSeq == e.DstSeq && cost < e.Cost() {
		s.Table.Update(ref, func(e *state.RouteEntry) {
			e.DstSeq = req.SrcSeq
			e.NextHop = rx.Src
			e.HopCount = req.HopCount
			e.Rssi = req.Rssi
			e.DstElems = req.SrcElems
		})
		r.Log(ReplyPathImproved, "", "src", req.Src, "via", rx.Src, "hops", req.HopCount, "cost", cost)
	}
	return nil
}

func scheduleReply(s *state.RouterState, r Router, rx state.RxCtx, req *protocol.RREQ) error {
	e := reverseEntry(req, rx, s.Node.ElemCount())
	e.Src = s.Primary()
	if _, err := s.Table.CreateAwaitingReply(e, state.ReplyDelay); err != nil {
		r.Log(TableExhausted, "cannot schedule reply", "src", req.Src)
		return err
	}
	r.Log(ReplyScheduled, "", "route", e, "delay", state.ReplyDelay)
	return nil
}

func requestAtRelay(s *state.RouterState, r Router, rx state.RxCtx, req *protocol.RREQ) error {
	back := state.Query{State: state.Valid, NetIdx: rx.NetIdx, Src: req.Dst, Dst: req.Src}
	if ref, e, ok := s.Table.Search(back); ok {
		if !state.RreqSeqFresh(req.SrcSeq, e.DstSeq) {
			return fmt.Errorf("request from %s with seq %d, route has %d: %w", req.Src, req.SrcSeq, e.DstSeq, state.ErrDuplicateSuppressed)
		}
		// the originator restarted discovery, so the path it had is gone
		s.Table.InvalidateRerr(ref)
		fwd := state.Query{State: state.Valid, NetIdx: rx.NetIdx, Src: req.Src, Dst: req.Dst}
		if fref, _, ok := s.Table.Search(fwd); ok {
			s.Table.InvalidateRerr(fref)
		}
		if _, err := createRoute(s, r, state.Invalid, reverseEntry(req, rx, 1)); err != nil {
			return err
		}
		req.HopCount++
		return relayRequest(s, r, rx, req)
	}

	if !req.D && !req.I {
		known := state.Query{State: state.Valid, NetIdx: rx.NetIdx, Dst: req.Dst}
		if _, fwd, ok := s.Table.Search(known); ok {
			return answerFromRoute(s, r, rx, req, fwd)
		}
	}

	back.State = state.Invalid
	ref, e, ok := s.Table.Search(back)
	if !ok {
		if _, err := createRoute(s, r, state.Invalid, reverseEntry(req, rx, 1)); err != nil {
			return err
		}
		req.HopCount++
		return relayRequest(s, r, rx, req)
	}
	if state.SeqNewer(req.SrcSeq, e.DstSeq) {
		s.Table.Update(ref, func(e *state.RouteEntry) {
			e.DstSeq = req.SrcSeq
			e.Rssi = req.Rssi
		})
		s.Table.Refresh(ref)
		req.HopCount++
		return relayRequest(s, r, rx, req)
	}
	r.Log(RequestDropped, "duplicate", "src", req.Src, "seq", req.SrcSeq)
	return nil
}

// answerFromRoute handles a request for a destination we already have a route to. The
// request continues along that route as a directed request, while the originator is told
// to keep waiting.
func answerFromRoute(s *state.RouterState, r Router, rx state.RxCtx, req *protocol.RREQ, fwd state.RouteEntry) error {
	rev := reverseEntry(req, rx, 1)
	if _, err := createRoute(s, r, state.Invalid, rev); err != nil {
		return err
	}
	if !req.U && state.SeqNewer(req.DstSeq, fwd.DstSeq) {
		// our route is older than what the originator already knows
		return nil
	}
	req.I = true
	req.HopCount++
	errSend := sendRequest(s, r, *req, 0, rx.NetIdx)
	wait := &protocol.RWAIT{Dst: req.Dst, Src: req.Src, SrcSeq: req.SrcSeq, HopCount: fwd.HopCount}
	r.Log(WaitSent, "", "to", rev.NextHop, "wait", wait)
	return errors.Join(errSend, r.SendCtl(ctlTx(s, rx.NetIdx, rev.NextHop, 0), wait))
}

func relayRequest(s *state.RouterState, r Router, rx state.RxCtx, req *protocol.RREQ) error {
	if req.I {
		return sendRequest(s, r, *req, 0, rx.NetIdx)
	}
	if rx.RecvTTL <= 1 {
		r.Log(RequestDropped, "ttl exhausted", "src", req.Src, "dst", req.Dst)
		return nil
	}
	r.Log(RequestRelayed, "", "req", req, "ttl", rx.RecvTTL-1)
	return sendRequest(s, r, *req, rx.RecvTTL-1, rx.NetIdx)
}

// sendRequest floods req, or unicasts it along the known route when it is directed
func sendRequest(s *state.RouterState, r Router, req protocol.RREQ, ttl uint8, net state.NetIdx) error {
	dst := state.AddrAllNodes
	if req.I {
		_, fwd, ok := s.Table.Search(state.Query{State: state.Valid, NetIdx: net, Dst: req.Dst})
		if !ok {
			return fmt.Errorf("directed request for %s: %w", req.Dst, state.ErrDirectiveDropped)
		}
		dst = fwd.NextHop
	}
	return r.SendCtl(ctlTx(s, net, dst, ttl), &req)
}

// HandleReplyTimer runs when the reply delay of an awaiting entry elapses. The entry
// becomes the route back to the originator and the reply is sent along it.
func HandleReplyTimer(s *state.RouterState, r Router, ref state.EntryRef, e state.RouteEntry) error {
	s.Table.Validate(ref)
	r.Log(RouteValidated, "replying", "route", e)
	NeighbourTouch(s, r, e.NextHop, e.NetIdx)
	rep := &protocol.RREP{
		Src:      e.Dst,
		Dst:      s.Primary(),
		DstSeq:   s.Node.NextSeq(),
		DstElems: s.Node.ElemCount(),
	}
	r.Log(ReplySent, "", "to", e.NextHop, "reply", rep)
	return r.SendCtl(ctlTx(s, e.NetIdx, e.NextHop, 0), rep)
}

// HandleRREP processes a route reply heard from rx.Src
func HandleRREP(s *state.RouterState, r Router, rx state.RxCtx, rep protocol.RREP) error {
	rep.Rssi = AverageRssi(rep.Rssi, rep.HopCount, rx.Rssi)
	if rep.Src == s.Primary() {
		return replyAtOriginator(s, r, rx, &rep)
	}

	q := state.Query{
		State:    state.Invalid,
		NetIdx:   rx.NetIdx,
		Src:      rep.Dst,
		SrcElems: rep.DstElems,
		Dst:      rep.Src,
		Match:    state.MatchSourceWithin,
	}
	ref, back, ok := s.Table.Search(q)
	if !ok {
		r.Log(StaleReplyDropped, "no reverse route", "reply", &rep)
		return nil
	}
	s.Table.Update(ref, func(e *state.RouteEntry) {
		e.Src = rep.Dst
		e.SrcElems = rep.DstElems
	})
	s.Table.Validate(ref)
	NeighbourTouch(s, r, back.NextHop, back.NetIdx)

	fwd := state.RouteEntry{
		Src:      rep.Src,
		Dst:      rep.Dst,
		DstSeq:   rep.DstSeq,
		NextHop:  rx.Src,
		SrcElems: back.DstElems,
		DstElems: rep.DstElems,
		HopCount: rep.HopCount,
		Rssi:     rep.Rssi,
		NetIdx:   rx.NetIdx,
	}
	if _, err := createRoute(s, r, state.Valid, fwd); err != nil {
		return err
	}
	NeighbourTouch(s, r, rx.Src, rx.NetIdx)
	rep.HopCount++
	r.Log(ReplyRelayed, "", "to", back.NextHop, "reply", &rep)
	return r.SendCtl(ctlTx(s, rx.NetIdx, back.NextHop, 0), &rep)
}

func replyAtOriginator(s *state.RouterState, r Router, rx state.RxCtx, rep *protocol.RREP) error {
	q := state.Query{State: state.Valid, NetIdx: rx.NetIdx, Src: rep.Src, Dst: rep.Dst}
	if ref, e, ok := s.Table.Search(q); ok {
		if !state.SeqNewer(rep.DstSeq, e.DstSeq) {
			r.Log(StaleReplyDropped, "route is as fresh", "reply", rep, "have", e.DstSeq)
			return nil
		}
		s.Table.Invalidate(ref)
	}
	fwd := state.RouteEntry{
		Src:      rep.Src,
		Dst:      rep.Dst,
		DstSeq:   rep.DstSeq,
		NextHop:  rx.Src,
		SrcElems: s.Node.ElemCount(),
		DstElems: rep.DstElems,
		HopCount: rep.HopCount,
		Rssi:     rep.Rssi,
		NetIdx:   rx.NetIdx,
	}
	if _, err := createRoute(s, r, state.Valid, fwd); err != nil {
		return err
	}
	NeighbourTouch(s, r, rx.Src, rx.NetIdx)
	errFlush := ReleasePending(s, r)
	return errors.Join(errFlush, RecordResponse(s, rep.Dst, rep.DstElems, 0))
}

// HandleRWAIT processes a wait notice heard from rx.Src
func HandleRWAIT(s *state.RouterState, r Router, rx state.RxCtx, w protocol.RWAIT) error {
	if w.Src == s.Primary() {
		if w.HopCount == 0 {
			// zero is reserved for replies in the response list
			w.HopCount = 1
		}
		q := state.Query{State: state.Valid, NetIdx: rx.NetIdx, Src: w.Src, Dst: w.Dst}
		if _, _, ok := s.Table.Search(q); ok {
			return nil
		}
		return RecordResponse(s, w.Dst, 0, w.HopCount)
	}
	q := state.Query{State: state.Invalid, NetIdx: rx.NetIdx, Src: w.Dst, Dst: w.Src}
	_, back, ok := s.Table.Search(q)
	if !ok {
		return nil
	}
	r.Log(WaitRelayed, "", "to", back.NextHop, "wait", &w)
	return r.SendCtl(ctlTx(s, rx.NetIdx, back.NextHop, 0), &w)
}

// HandleRERR breaks every route to the listed destinations that goes through rx.Src
func HandleRERR(s *state.RouterState, r Router, rx state.RxCtx, rerr protocol.RERR) error {
	for _, d := range rerr.Dests {
		q := state.Query{State: state.Valid, NetIdx: rx.NetIdx, Dst: d.Dst, NextHop: rx.Src}
		s.Table.SearchFunc(q, func(ref state.EntryRef, e state.RouteEntry) {
			breakRoute(s, r, ref, e)
		})
	}
	return FlushRerr(s, r)
}

// HandleRouteTimer is called when the lifetime timer of a route slot fires
func HandleRouteTimer(s *state.RouterState, r Router, slot int) error {
	ref, e, ok := s.Table.Expire(slot)
	if !ok {
		return nil
	}
	if e.AwaitingReply {
		return HandleReplyTimer(s, r, ref, e)
	}
	r.Log(RouteExpired, "", "route", e)
	return nil
}

// HandleTimer routes an expired timer to its owner
func HandleTimer(s *state.RouterState, r Router, key state.TimerKey) error {
	switch key.Kind {
	case state.RouteTimer:
		return HandleRouteTimer(s, r, int(key.Id))
	case state.NeighbourTimer:
		addr, net := key.Neighbour()
		return HandleNeighbourExpiry(s, r, addr, net)
	case state.PendingTimer:
		return HandlePendingExpiry(s, r, int(key.Id))
	case state.DiscoveryTimer:
		return DiscoveryTick(s, r)
	}
	return fmt.Errorf("unknown timer %s", key)
}
