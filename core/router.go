package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/encodeous/weft/perf"
	"github.com/encodeous/weft/protocol"
	"github.com/encodeous/weft/state"
)

// Transport is the network layer underneath the router
type Transport interface {
	// CtlSend transmits an encoded control PDU
	CtlSend(tx state.TxCtx, op protocol.Opcode, payload []byte) error
	// Send transmits an application message to the neighbour nextHop
	Send(tx state.TxCtx, nextHop state.Addr, msg []byte) error
}

// WeftRouter is the module that runs the routing protocol on the main loop
type WeftRouter struct {
	*state.State
	*state.RouterState
	Node      state.Node
	Transport Transport
	wheel     *state.TimerWheel
}

func (r *WeftRouter) Init(s *state.State) error {
	if r.Node == nil || r.Transport == nil {
		return errors.New("router needs a node and a transport")
	}
	r.State = s
	r.wheel = state.NewTimerWheel(s.Env)
	r.RouterState = state.NewRouterState(r.Node, r.wheel)
	r.wheel.OnFire(func(key state.TimerKey) error {
		return r.result("timer "+key.String(), HandleTimer(r.RouterState, r, key))
	})
	r.wheel.Start()
	s.Log.Debug("router initialized", "addr", r.Node.PrimaryAddr(), "elements", r.Node.ElemCount())
	return nil
}

func (r *WeftRouter) Cleanup(s *state.State) error {
	if r.wheel != nil {
		r.wheel.Stop()
	}
	return nil
}

func (r *WeftRouter) SendCtl(tx state.TxCtx, m protocol.Message) error {
	payload, err := protocol.Marshal(m)
	if err != nil {
		return err
	}
	perf.CtlSentPerSecond.Add(1)
	perf.CtlBytesPerSecond.Add(float64(len(payload)))
	if err := r.Transport.CtlSend(tx, m.Opcode(), payload); err != nil {
		r.Log(SendFailed, m.Opcode().String(), "tx", tx, "error", err)
		return err
	}
	return nil
}

func (r *WeftRouter) Forward(tx state.TxCtx, nextHop state.Addr, msg []byte) error {
	if err := r.Transport.Send(tx, nextHop, msg); err != nil {
		r.Log(SendFailed, "data", "tx", tx, "next_hop", nextHop, "error", err)
		return err
	}
	return nil
}

func (r *WeftRouter) Log(event RouterEvent, desc string, args ...any) {
	msg := fmt.Sprintf("%s %s", event.String(), desc)
	if event.IsWarning() {
		r.Env.Log.Warn(msg, args...)
	} else {
		r.Env.Log.Debug(msg, args...)
	}
	if t, ok := TryGet[*RouteTrace](r.State); ok {
		t.Publish(r.Id, event, desc, args...)
	}
}

// result logs the outcome of a protocol operation. Protocol errors never stop the node.
func (r *WeftRouter) result(what string, err error) error {
	if err == nil {
		return nil
	}
	if state.IsProtocolDrop(err) {
		r.Env.Log.Debug("dropped", "op", what, "reason", err)
	} else {
		r.Env.Log.Warn("operation failed", "op", what, "error", err)
	}
	return nil
}

// HandleControl decodes and processes a control PDU. It must run on the main loop.
func (r *WeftRouter) HandleControl(rx state.RxCtx, op protocol.Opcode, payload []byte) error {
	m, err := protocol.Decode(op, payload)
	if err != nil {
		r.Env.Log.Debug("malformed control message", "op", op, "from", rx.Src, "error", err)
		return nil
	}
	perf.CtlRecvPerSecond.Add(1)
	switch m := m.(type) {
	case *protocol.RREQ:
		err = HandleRREQ(r.RouterState, r, rx, *m)
	case *protocol.RREP:
		err = HandleRREP(r.RouterState, r, rx, *m)
	case *protocol.RWAIT:
		err = HandleRWAIT(r.RouterState, r, rx, *m)
	case *protocol.RERR:
		err = HandleRERR(r.RouterState, r, rx, *m)
	}
	return r.result(op.String(), err)
}

// OnControl may be called from any goroutine
func (r *WeftRouter) OnControl(rx state.RxCtx, op protocol.Opcode, payload []byte) {
	r.Dispatch(func(s *state.State) error {
		return r.HandleControl(rx, op, payload)
	})
}

func (r *WeftRouter) OnRREQ(rx state.RxCtx, payload []byte) {
	r.OnControl(rx, protocol.OpRREQ, payload)
}

func (r *WeftRouter) OnRREP(rx state.RxCtx, payload []byte) {
	r.OnControl(rx, protocol.OpRREP, payload)
}

func (r *WeftRouter) OnRWAIT(rx state.RxCtx, payload []byte) {
	r.OnControl(rx, protocol.OpRWAIT, payload)
}

func (r *WeftRouter) OnRERR(rx state.RxCtx, payload []byte) {
	r.OnControl(rx, protocol.OpRERR, payload)
}

// OnHeartbeat refreshes src if it is already a neighbour
func (r *WeftRouter) OnHeartbeat(src state.Addr, net state.NetIdx) {
	r.Dispatch(func(s *state.State) error {
		NeighbourHeard(r.RouterState, src, net)
		return nil
	})
}

// OnData handles an application message received from a neighbour. Messages for local
// elements are passed to deliver, everything else is forwarded.
func (r *WeftRouter) OnData(tx state.TxCtx, msg []byte, deliver func(tx state.TxCtx, msg []byte)) {
	r.Dispatch(func(s *state.State) error {
		if r.Node.FindElement(tx.Dst) {
			if ref, _, ok := routeFor(r.RouterState, state.TxCtx{NetIdx: tx.NetIdx, Src: tx.Dst, Dst: tx.Src}); ok {
				r.Table.Refresh(ref)
			}
			deliver(tx, msg)
			return nil
		}
		return r.result("forward", ForwardData(r.RouterState, r, tx, msg))
	})
}

// Send sends msg to tx.Dst, discovering a route first if needed. It waits for the main
// loop, so it must not be called from it.
func (r *WeftRouter) Send(tx state.TxCtx, msg []byte) error {
	_, err := r.DispatchWait(func(s *state.State) (any, error) {
		return nil, SendData(r.RouterState, r, tx, msg)
	})
	return err
}

// Discover starts a route discovery for tx.Dst. It must not be called from the main loop.
func (r *WeftRouter) Discover(tx state.TxCtx) error {
	_, err := r.DispatchWait(func(s *state.State) (any, error) {
		return nil, StartDiscovery(r.RouterState, r, tx)
	})
	return err
}

// NextHop looks up the neighbour that leads to dst. It is safe to call from any goroutine.
func (r *WeftRouter) NextHop(dst state.Addr, net state.NetIdx) (state.Addr, bool) {
	_, e, ok := r.Table.Search(state.Query{State: state.Valid, NetIdx: net, Src: r.Node.PrimaryAddr(), Dst: dst})
	if !ok {
		return state.AddrUnassigned, false
	}
	return e.NextHop, true
}

// Dump renders the router state. It must not be called from the main loop.
func (r *WeftRouter) Dump() (string, error) {
	res, err := r.DispatchWait(func(s *state.State) (any, error) {
		return DumpState(r.RouterState, time.Now()), nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}
