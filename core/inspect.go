package core

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/encodeous/weft/state"
)

// DumpState renders the routing table, neighbours, pending messages and discovery
// progress of a node
func DumpState(s *state.RouterState, now time.Time) string {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "node %s (%d elements, relay: %t)\n", s.Primary(), s.Node.ElemCount(), s.Node.RelayEnabled())

	routes := s.Table.Snapshot()
	slices.SortFunc(routes, func(a, b state.RouteEntry) int {
		if a.Dst != b.Dst {
			return int(a.Dst) - int(b.Dst)
		}
		return int(a.Src) - int(b.Src)
	})
	fmt.Fprintf(&sb, "\nRoutes (%d/%d):\n", len(routes), s.Table.Cap())
	for _, st := range []state.RouteState{state.Valid, state.Invalid, state.InvalidRerr} {
		sel := slices.DeleteFunc(slices.Clone(routes), func(e state.RouteEntry) bool {
			return e.State != st
		})
		if len(sel) == 0 {
			continue
		}
		fmt.Fprintf(&sb, " %s:\n", st)
		for _, e := range sel {
			sb.WriteString("  - " + e.String() + "\n")
		}
	}

	keys := make([]state.NeighbourKey, 0, len(s.Neighbours))
	for k := range s.Neighbours {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b state.NeighbourKey) int {
		if a.NetIdx != b.NetIdx {
			return int(a.NetIdx) - int(b.NetIdx)
		}
		return int(a.Addr) - int(b.Addr)
	})
	fmt.Fprintf(&sb, "\nNeighbours (%d):\n", len(keys))
	for _, k := range keys {
		n := s.Neighbours[k]
		fmt.Fprintf(&sb, " - %s net %d, heard %s ago\n", k.Addr, k.NetIdx, now.Sub(n.LastHeard).Round(time.Millisecond))
	}

	sb.WriteString("\nPending:\n")
	for i, p := range s.Pending {
		if p.InUse {
			fmt.Fprintf(&sb, " - [%d] %s, %d bytes\n", i, p.Tx, len(p.Msg))
		}
	}

	if len(s.Rerr) > 0 {
		sb.WriteString("\nQueued RERR:\n")
		for _, b := range s.Rerr {
			fmt.Fprintf(&sb, " - to %s net %d: %v\n", b.NextHop, b.NetIdx, b.Dests)
		}
	}

	if d := s.Discovery; d != nil {
		fmt.Fprintf(&sb, "\nDiscovery %s: %s net %d, ttl %d, %s, %d requests, running %s\n",
			d.Id, d.Target, d.NetIdx, d.TTL, d.Phase, d.Sent, now.Sub(d.Started).Round(time.Millisecond))
	} else {
		sb.WriteString("\nDiscovery: idle\n")
	}
	return sb.String()
}
