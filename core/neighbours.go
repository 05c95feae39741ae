package core

import (
	"github.com/encodeous/weft/state"
)

// NeighbourTouch records that addr is reachable in one hop, adding it if needed. Every
// touch pushes the neighbour's expiry back by NeighbourLifetime.
func NeighbourTouch(s *state.RouterState, r Router, addr state.Addr, net state.NetIdx) {
	key := state.NeighbourKey{Addr: addr, NetIdx: net}
	if n, ok := s.Neighbours[key]; ok {
		n.LastHeard = s.Now()
		s.Timers.Arm(state.NeighbourTimerKey(addr, net), state.NeighbourLifetime)
		return
	}
	if len(s.Neighbours) >= state.NeighbourTableSize {
		r.Log(TableExhausted, "neighbour table full", "neighbour", addr, "net", net)
		return
	}
	s.Neighbours[key] = &state.Neighbour{NeighbourKey: key, LastHeard: s.Now()}
	s.Timers.Arm(state.NeighbourTimerKey(addr, net), state.NeighbourLifetime)
	r.Log(NeighbourAdded, "", "neighbour", addr, "net", net)
}

// NeighbourHeard refreshes addr if it is already a neighbour
func NeighbourHeard(s *state.RouterState, addr state.Addr, net state.NetIdx) bool {
	n, ok := s.Neighbours[state.NeighbourKey{Addr: addr, NetIdx: net}]
	if !ok {
		return false
	}
	n.LastHeard = s.Now()
	s.Timers.Arm(state.NeighbourTimerKey(addr, net), state.NeighbourLifetime)
	return true
}

// HandleNeighbourExpiry tears down every route through a neighbour that went quiet and
// reports the loss upstream
func HandleNeighbourExpiry(s *state.RouterState, r Router, addr state.Addr, net state.NetIdx) error {
	key := state.NeighbourKey{Addr: addr, NetIdx: net}
	if _, ok := s.Neighbours[key]; !ok {
		return nil
	}
	r.Log(NeighbourLost, "", "neighbour", addr, "net", net)
	q := state.Query{State: state.Valid, NetIdx: net, NextHop: addr}
	n := s.Table.SearchFunc(q, func(ref state.EntryRef, e state.RouteEntry) {
		breakRoute(s, r, ref, e)
	})
	err := FlushRerr(s, r)
	delete(s.Neighbours, key)
	if n > 0 {
		r.Log(RouteBroken, "neighbour lost", "neighbour", addr, "routes", n)
	}
	return err
}
