package core

import (
	"fmt"
	"slices"
	"time"

	"github.com/encodeous/weft/perf"
	"github.com/encodeous/weft/protocol"
	"github.com/encodeous/weft/state"
	"github.com/google/uuid"
)

// StartDiscovery begins an expanding ring search for tx.Dst. Only one discovery runs at a
// time: asking again for the destination being searched is a no-op, asking for another
// one fails with ErrDiscoveryBusy.
func StartDiscovery(s *state.RouterState, r Router, tx state.TxCtx) error {
	if d := s.Discovery; d != nil {
		if d.Target == tx.Dst && d.NetIdx == tx.NetIdx {
			return nil
		}
		return fmt.Errorf("discovery for %s while searching for %s: %w", tx.Dst, d.Target, state.ErrDiscoveryBusy)
	}
	req := state.DiscoveryRequest{
		Src:      s.Primary(),
		Dst:      tx.Dst,
		SrcElems: s.Node.ElemCount(),
		Unknown:  true,
	}
	// a route broken by an RERR still remembers how fresh the destination was
	q := state.Query{State: state.InvalidRerr, NetIdx: tx.NetIdx, Src: s.Primary(), Dst: tx.Dst}
	if _, e, ok := s.Table.Search(q); ok {
		req.Unknown = false
		req.DstSeq = e.DstSeq
	}
	s.Discovery = &state.DiscoveryState{
		Id:      uuid.New(),
		Target:  tx.Dst,
		NetIdx:  tx.NetIdx,
		TTL:     state.RingSearchStartTTL,
		Phase:   state.Searching,
		Request: req,
		Started: s.Now(),
	}
	s.Responses = slices.DeleteFunc(s.Responses, func(resp state.DiscoveryResponse) bool {
		return resp.Covers(tx.Dst)
	})
	perf.DiscoveriesStarted.Add(1)
	r.Log(DiscoveryStarted, "", "id", s.Discovery.Id, "dst", tx.Dst, "net", tx.NetIdx)
	return DiscoveryTick(s, r)
}

// RecordResponse notes that a reply (hops 0) or a wait notice arrived for the elements
// [dst, dst+elems)
func RecordResponse(s *state.RouterState, dst state.Addr, elems uint16, hops uint8) error {
	if len(s.Responses) >= state.ResponseListSize {
		return fmt.Errorf("response list full: %w", state.ErrResourceExhausted)
	}
	s.Responses = append(s.Responses, state.DiscoveryResponse{Dst: dst, DstElems: elems, HopCount: hops})
	return nil
}

// takeResponse empties the response list, returning the best response for target.
// A reply wins over wait notices.
func takeResponse(s *state.RouterState, target state.Addr) (state.DiscoveryResponse, bool) {
	var (
		best  state.DiscoveryResponse
		found bool
	)
	for _, resp := range s.Responses {
		if !resp.Covers(target) {
			continue
		}
		if !found || resp.HopCount == 0 {
			best, found = resp, true
		}
	}
	s.Responses = s.Responses[:0]
	return best, found
}

// DiscoveryTick advances the ring search. It runs once when the discovery starts and then
// every time the discovery timer fires.
func DiscoveryTick(s *state.RouterState, r Router) error {
	d := s.Discovery
	if d == nil {
		return nil
	}
	if resp, ok := takeResponse(s, d.Target); ok {
		if resp.HopCount == 0 {
			return finishDiscovery(s, r, nil)
		}
		wait := state.RingSearchWait * time.Duration(state.RingSearchRwaitScale)
		r.Log(DiscoveryExtended, "route known upstream", "id", d.Id, "dst", d.Target, "hops", resp.HopCount, "wait", wait)
		s.Timers.Arm(state.DiscoveryTimerKey, wait)
		return nil
	}
	if d.Phase == state.FinalAttempt {
		return finishDiscovery(s, r, state.ErrDiscoveryTimeout)
	}

	req := protocol.RREQ{
		Src:      d.Request.Src,
		Dst:      d.Request.Dst,
		SrcElems: d.Request.SrcElems,
		U:        d.Request.Unknown,
		SrcSeq:   s.Node.NextSeq(),
		DstSeq:   d.Request.DstSeq,
	}
	if d.Sent > 0 {
		r.Log(DiscoveryRetry, "", "id", d.Id, "dst", d.Target, "ttl", d.TTL)
	}
	err := sendRequest(s, r, req, d.TTL, d.NetIdx)
	d.Sent++
	switch {
	case d.TTL >= state.MaxTTL:
		d.Phase = state.FinalAttempt
	case d.TTL >= state.RingSearchMaxTTL:
		d.TTL = state.MaxTTL
	default:
		d.TTL++
	}
	s.Timers.Arm(state.DiscoveryTimerKey, state.RingSearchWait+state.RingSearchWaitPerTTL*time.Duration(d.TTL))
	return err
}

func finishDiscovery(s *state.RouterState, r Router, cause error) error {
	d := s.Discovery
	s.Discovery = nil
	s.Timers.Cancel(state.DiscoveryTimerKey)
	elapsed := s.Now().Sub(d.Started)
	if cause == nil {
		perf.DiscoveriesSucceeded.Add(1)
		perf.DiscoveryLatency.Add(float64(elapsed.Milliseconds()))
		r.Log(DiscoverySucceeded, "", "id", d.Id, "dst", d.Target, "requests", d.Sent, "elapsed", elapsed)
		return ReleasePending(s, r)
	}
	perf.DiscoveriesFailed.Add(1)
	r.Log(DiscoveryFailed, cause.Error(), "id", d.Id, "dst", d.Target, "requests", d.Sent)
	DropPending(s, r, d.Target, d.NetIdx)
	return fmt.Errorf("discovery %s for %s after %d requests: %w", d.Id, d.Target, d.Sent, cause)
}
