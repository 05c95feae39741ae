//go:build integration

package integration

import (
	"context"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/encodeous/weft/core"
	"github.com/encodeous/weft/sim"
	"github.com/encodeous/weft/state"
	"github.com/stretchr/testify/require"
)

type Signal chan bool

func NewSignal() Signal {
	return make(chan bool)
}
func (s Signal) Trigger() {
	select {
	case <-s:
	default:
		close(s)
	}
}
func (s Signal) Triggered() bool {
	select {
	case <-s:
		return true
	default:
		return false
	}
}

// fastTiming shrinks the protocol timers so a test finishes in seconds
var fastTiming = &state.TimingCfg{
	RouteLifetime:     3 * time.Second,
	ReplyDelay:        200 * time.Millisecond,
	NeighbourLifetime: 700 * time.Millisecond,
	PendingLifetime:   time.Second,
	HeartbeatDelay:    200 * time.Millisecond,
	RingSearchWait:    400 * time.Millisecond,
	RingSearchPerTTL:  20 * time.Millisecond,
}

// node builds a relaying node with a single element
func node(id string, addr state.Addr) state.LocalCfg {
	return state.LocalCfg{Id: id, Address: addr, Elements: 1, Relay: true}
}

func meshCfg(graph []string, nodes ...state.LocalCfg) state.MeshCfg {
	return state.MeshCfg{
		Nodes:  nodes,
		Graph:  graph,
		Timing: fastTiming,
	}
}

func startMesh(t *testing.T, cfg state.MeshCfg) *sim.Mesh {
	t.Helper()
	m, err := sim.New(cfg, slog.LevelDebug)
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	return m
}

// waitDelivery returns the next delivered message, failing the test after timeout
func waitDelivery(t *testing.T, m *sim.Mesh, timeout time.Duration) sim.Delivery {
	t.Helper()
	select {
	case d := <-m.Delivered():
		return d
	case err := <-m.Errors():
		t.Fatal(err)
	case <-time.After(timeout):
		t.Fatal("timed out waiting for delivery")
	}
	return sim.Delivery{}
}

// waitEvent blocks until node reports event
func waitEvent(t *testing.T, m *sim.Mesh, node string, event core.RouterEvent, timeout time.Duration) {
	t.Helper()
	sig := NewSignal()
	stop := m.Watch(func(ev core.TraceEvent) {
		if ev.Node == node && ev.Event == event {
			sig.Trigger()
		}
	})
	defer stop()
	select {
	case <-sig:
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for %s on %s", event, node)
	}
}

func nextHop(m *sim.Mesh, from, to string) (state.Addr, bool) {
	dst := m.Radio(to).Cfg.Address
	return m.Radio(from).Router().NextHop(dst, m.Radio(from).Cfg.NetIdx)
}

// nodeAt finds the node owning addr
func nodeAt(m *sim.Mesh, addr state.Addr) string {
	idx := slices.IndexFunc(m.Cfg.Nodes, func(cfg state.LocalCfg) bool {
		return state.InRange(addr, cfg.Address, cfg.Elements)
	})
	if idx == -1 {
		return ""
	}
	return m.Cfg.Nodes[idx].Id
}
