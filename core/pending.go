package core

import (
	"errors"
	"fmt"
	"slices"

	"github.com/encodeous/weft/perf"
	"github.com/encodeous/weft/state"
)

// routeFor finds the valid route a message addressed by tx would take
func routeFor(s *state.RouterState, tx state.TxCtx) (state.EntryRef, state.RouteEntry, bool) {
	return s.Table.Search(state.Query{State: state.Valid, NetIdx: tx.NetIdx, Src: tx.Src, Dst: tx.Dst})
}

// BufferPending holds msg until a route to tx.Dst is found
func BufferPending(s *state.RouterState, r Router, tx state.TxCtx, msg []byte) error {
	for i := range s.Pending {
		slot := &s.Pending[i]
		if slot.InUse {
			continue
		}
		*slot = state.PendingSlot{InUse: true, Tx: tx, Msg: slices.Clone(msg)}
		s.Timers.Arm(state.PendingTimerKey(i), state.PendingLifetime)
		r.Log(PendingBuffered, "", "tx", tx, "slot", i)
		return nil
	}
	r.Log(TableExhausted, "pending slots full", "tx", tx)
	return fmt.Errorf("no pending slot for %s: %w", tx.Dst, state.ErrResourceExhausted)
}

func freePending(s *state.RouterState, i int) {
	s.Timers.Cancel(state.PendingTimerKey(i))
	s.Pending[i] = state.PendingSlot{}
}

// ReleasePending sends every buffered message that now has a route
func ReleasePending(s *state.RouterState, r Router) error {
	var errs []error
	for i := range s.Pending {
		slot := s.Pending[i]
		if !slot.InUse {
			continue
		}
		ref, e, ok := routeFor(s, slot.Tx)
		if !ok {
			continue
		}
		freePending(s, i)
		s.Table.Refresh(ref)
		r.Log(PendingReleased, "", "tx", slot.Tx, "via", e.NextHop)
		if err := r.Forward(slot.Tx, e.NextHop, slot.Msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DropPending discards everything buffered for dst
func DropPending(s *state.RouterState, r Router, dst state.Addr, net state.NetIdx) {
	for i := range s.Pending {
		slot := s.Pending[i]
		if slot.InUse && slot.Tx.Dst == dst && slot.Tx.NetIdx == net {
			freePending(s, i)
			r.Log(PendingDropped, "no route", "tx", slot.Tx)
		}
	}
}

// HandlePendingExpiry runs when a buffered message has waited PendingLifetime. It is sent
// if a route appeared, kept while its discovery is still running and dropped otherwise.
func HandlePendingExpiry(s *state.RouterState, r Router, i int) error {
	if i < 0 || i >= len(s.Pending) || !s.Pending[i].InUse {
		return nil
	}
	slot := s.Pending[i]
	if _, e, ok := routeFor(s, slot.Tx); ok {
		freePending(s, i)
		r.Log(PendingReleased, "", "tx", slot.Tx, "via", e.NextHop)
		return r.Forward(slot.Tx, e.NextHop, slot.Msg)
	}
	if d := s.Discovery; d != nil && d.Target == slot.Tx.Dst && d.NetIdx == slot.Tx.NetIdx {
		s.Timers.Arm(state.PendingTimerKey(i), state.PendingLifetime)
		return nil
	}
	freePending(s, i)
	r.Log(PendingDropped, "expired", "tx", slot.Tx)
	return nil
}

// SendData sends msg along an existing route, or buffers it and starts a discovery
func SendData(s *state.RouterState, r Router, tx state.TxCtx, msg []byte) error {
	if ref, e, ok := routeFor(s, tx); ok {
		s.Table.Refresh(ref)
		perf.DataForwarded.Add(1)
		return r.Forward(tx, e.NextHop, msg)
	}
	if err := BufferPending(s, r, tx, msg); err != nil {
		return err
	}
	err := StartDiscovery(s, r, tx)
	if errors.Is(err, state.ErrDiscoveryBusy) {
		// the message waits in its slot and is dropped if the other search outlives it
		return nil
	}
	return err
}

// ForwardData relays a message that is addressed to another node
func ForwardData(s *state.RouterState, r Router, tx state.TxCtx, msg []byte) error {
	ref, e, ok := routeFor(s, tx)
	if !ok {
		r.Log(NoRouteToForward, "", "tx", tx)
		return nil
	}
	s.Table.Refresh(ref)
	perf.DataForwarded.Add(1)
	r.Log(DataForwarded, "", "tx", tx, "via", e.NextHop)
	return r.Forward(tx, e.NextHop, msg)
}
