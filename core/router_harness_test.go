package core

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/encodeous/weft/protocol"
	"github.com/encodeous/weft/state"
	"github.com/google/go-cmp/cmp"
)

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

type RouterHarness struct {
	actions []HarnessEvent
	// SendErr is returned by every send when set
	SendErr error
}

func (h *RouterHarness) SendCtl(tx state.TxCtx, m protocol.Message) error {
	h.actions = append(h.actions, MakeEvent("SEND_"+m.Opcode().String(), tx.Dst, tx.SendTTL, m))
	return h.SendErr
}

func (h *RouterHarness) Forward(tx state.TxCtx, nextHop state.Addr, msg []byte) error {
	h.actions = append(h.actions, MakeEvent("FORWARD", nextHop, tx.Dst, string(msg), tx))
	return h.SendErr
}

func (h *RouterHarness) Log(event RouterEvent, desc string, args ...any) {
	x := make([]any, 0)
	x = append(x, event)
	x = append(x, desc)
	x = append(x, args...)
	h.actions = append(h.actions, MakeEvent("LOG", x...))
}

type HarnessEvents []HarnessEvent

func (h HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range h {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

// GetActions returns everything sent since the last call, without log events
func (h *RouterHarness) GetActions() HarnessEvents {
	x := make([]HarnessEvent, 0)
	for _, action := range h.actions {
		if action.Message != "LOG" {
			x = append(x, action)
		}
	}

	h.actions = make([]HarnessEvent, 0)
	return x
}

// GetLogs returns the router events logged since the last call to GetActions
func (h *RouterHarness) GetLogs() []RouterEvent {
	x := make([]RouterEvent, 0)
	for _, action := range h.actions {
		if action.Message == "LOG" {
			x = append(x, action.Args[0].(RouterEvent))
		}
	}
	return x
}

func (e HarnessEvents) contains(msg string, args ...any) bool {
	for _, event := range e {
		if event.Message == msg {
			if len(event.Args) >= len(args) {
				match := true
				for i, arg := range args {
					if !cmp.Equal(event.Args[i], arg) {
						match = false
						break
					}
				}
				if match {
					return true
				}
			}
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	if e.contains(msg, args...) {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	if e.contains(msg, args...) {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in ", e)
	}
}

// Messages returns the control messages of type T, in send order
func Messages[T protocol.Message](e HarnessEvents) []T {
	out := make([]T, 0)
	for _, event := range e {
		if len(event.Args) == 3 {
			if m, ok := event.Args[2].(T); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

// TestNode is a router state driven by a harness and a virtual clock
type TestNode struct {
	*state.RouterState
	*RouterHarness
	Local  *state.LocalNode
	Clock  *state.ManualTimers
	Errors []error
}

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func NewTestNode(addr state.Addr, elems uint16) *TestNode {
	timers := state.NewManualTimers()
	local := state.NewLocalNode(addr, elems, true)
	n := &TestNode{
		RouterState:   state.NewRouterState(local, timers),
		RouterHarness: &RouterHarness{},
		Local:         local,
		Clock:         timers,
	}
	n.RouterState.Clock = func() time.Time {
		return epoch.Add(timers.Now)
	}
	timers.OnFire(func(key state.TimerKey) error {
		return HandleTimer(n.RouterState, n.RouterHarness, key)
	})
	return n
}

// Advance runs the virtual clock forward, collecting handler errors in n.Errors
func (n *TestNode) Advance(d time.Duration) {
	if err := n.Clock.Advance(d); err != nil {
		n.Errors = append(n.Errors, err)
	}
}

func (n *TestNode) RREQ(from state.Addr, ttl uint8, req protocol.RREQ) error {
	return HandleRREQ(n.RouterState, n.RouterHarness, Rx(from, ttl), req)
}

func (n *TestNode) RREP(from state.Addr, rep protocol.RREP) error {
	return HandleRREP(n.RouterState, n.RouterHarness, Rx(from, 0), rep)
}

func (n *TestNode) RWAIT(from state.Addr, w protocol.RWAIT) error {
	return HandleRWAIT(n.RouterState, n.RouterHarness, Rx(from, 0), w)
}

func (n *TestNode) RERR(from state.Addr, dests ...state.RerrDest) error {
	return HandleRERR(n.RouterState, n.RouterHarness, Rx(from, 0), protocol.RERR{Dests: dests})
}

// Routes returns the table entries in the given state
func (n *TestNode) Routes(st state.RouteState) []state.RouteEntry {
	out := make([]state.RouteEntry, 0)
	for _, e := range n.Table.Snapshot() {
		if e.State == st {
			out = append(out, e)
		}
	}
	return out
}

func Rx(from state.Addr, ttl uint8) state.RxCtx {
	return state.RxCtx{Src: from, Dst: state.AddrAllNodes, RecvTTL: ttl}
}

func Tx(src, dst state.Addr) state.TxCtx {
	return state.TxCtx{Src: src, Dst: dst}
}
