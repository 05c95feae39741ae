package core

import (
	"errors"
	"slices"

	"github.com/encodeous/weft/protocol"
	"github.com/encodeous/weft/state"
)

// breakRoute invalidates a route that lost its next hop. Routes we originate are simply
// marked, for routes we relay the upstream neighbour on the reverse path is told.
func breakRoute(s *state.RouterState, r Router, ref state.EntryRef, e state.RouteEntry) {
	if s.Node.FindElement(e.Src) {
		s.Table.InvalidateRerr(ref)
		r.Log(RouteBroken, "", "route", e)
		return
	}
	q := state.Query{State: state.Valid, NetIdx: e.NetIdx, Src: e.Dst, Dst: e.Src, Match: state.MatchExact}
	if rref, rev, ok := s.Table.Search(q); ok {
		QueueRerr(s, r, rev.NextHop, e.NetIdx, e.Dst, e.DstSeq)
		s.Table.InvalidateRerr(rref)
	}
	s.Table.InvalidateRerr(ref)
	r.Log(RouteBroken, "", "route", e)
}

// QueueRerr adds dst to the batch for nextHop, creating the batch if there is room
func QueueRerr(s *state.RouterState, r Router, nextHop state.Addr, net state.NetIdx, dst state.Addr, seq uint32) {
	for _, b := range s.Rerr {
		if b.NextHop == nextHop && b.NetIdx == net {
			b.Add(dst, seq)
			return
		}
	}
	if len(s.Rerr) >= state.RerrBatchLimit {
		r.Log(TableExhausted, "rerr batch list full", "next_hop", nextHop, "dst", dst)
		return
	}
	b := &state.RerrBatch{NextHop: nextHop, NetIdx: net}
	b.Add(dst, seq)
	s.Rerr = append(s.Rerr, b)
}

// FlushRerr sends every queued batch, splitting batches that do not fit in one PDU, and
// empties the queue
func FlushRerr(s *state.RouterState, r Router) error {
	var errs []error
	for _, b := range s.Rerr {
		for dests := range slices.Chunk(b.Dests, state.RerrMaxDests) {
			msg := &protocol.RERR{Dests: dests}
			r.Log(RerrSent, "", "to", b.NextHop, "rerr", msg)
			if err := r.SendCtl(ctlTx(s, b.NetIdx, b.NextHop, 0), msg); err != nil {
				errs = append(errs, err)
			}
		}
	}
	s.Rerr = s.Rerr[:0]
	return errors.Join(errs...)
}
