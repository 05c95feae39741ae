package sim

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"time"

	"github.com/encodeous/weft/core"
	"github.com/encodeous/weft/protocol"
	"github.com/encodeous/weft/state"
)

// Delivery is an application message that reached its destination element
type Delivery struct {
	Node string
	Tx   state.TxCtx
	Msg  []byte
	At   time.Time
}

// Link is a bidirectional radio link between two nodes
type Link struct {
	state.LinkCfg
	cut atomic.Bool
}

func (l *Link) Up() bool {
	return !l.cut.Load()
}

// Radio attaches one node to the medium. It is the node's core.Transport.
type Radio struct {
	Cfg    state.LocalCfg
	Node   *state.LocalNode
	mesh   *Mesh
	router atomic.Pointer[core.WeftRouter]
	trace  atomic.Pointer[core.RouteTrace]
	ready  chan struct{}
}

func newRadio(m *Mesh, cfg state.LocalCfg) *Radio {
	return &Radio{
		Cfg:   cfg,
		Node:  state.NewLocalNode(cfg.Address, cfg.Elements, cfg.Relay),
		mesh:  m,
		ready: make(chan struct{}),
	}
}

// Router returns nil until the node has started
func (r *Radio) Router() *core.WeftRouter {
	return r.router.Load()
}

func (r *Radio) start(s *state.State) {
	r.router.Store(core.Get[*core.WeftRouter](s))
	r.trace.Store(core.Get[*core.RouteTrace](s))
	s.RepeatTask(func(s *state.State) error {
		r.heartbeat()
		return nil
	}, state.HeartbeatDelay)
	close(r.ready)
}

func (r *Radio) heartbeat() {
	for _, nb := range r.mesh.neighbours(r) {
		r.mesh.transmit(r, nb, func(dst *core.WeftRouter, _ state.LinkCfg) {
			dst.OnHeartbeat(r.Cfg.Address, r.Cfg.NetIdx)
		})
	}
}

// targets returns the neighbours a message addressed to dst is heard by
func (r *Radio) targets(dst state.Addr, net state.NetIdx) []*Radio {
	out := make([]*Radio, 0)
	for _, nb := range r.mesh.neighbours(r) {
		if nb.Cfg.NetIdx != net {
			continue
		}
		if dst == state.AddrAllNodes || nb.Node.FindElement(dst) {
			out = append(out, nb)
		}
	}
	return out
}

func (r *Radio) CtlSend(tx state.TxCtx, op protocol.Opcode, payload []byte) error {
	targets := r.targets(tx.Dst, tx.NetIdx)
	if len(targets) == 0 && tx.Dst != state.AddrAllNodes {
		return fmt.Errorf("%s is not in radio range of %s", tx.Dst, r.Cfg.Id)
	}
	for _, nb := range targets {
		pkt := slices.Clone(payload)
		r.mesh.transmit(r, nb, func(dst *core.WeftRouter, link state.LinkCfg) {
			dst.OnControl(state.RxCtx{
				Src:     r.Cfg.Address,
				Dst:     tx.Dst,
				NetIdx:  tx.NetIdx,
				RecvTTL: tx.SendTTL,
				Rssi:    link.Rssi,
			}, op, pkt)
		})
	}
	return nil
}

func (r *Radio) Send(tx state.TxCtx, nextHop state.Addr, msg []byte) error {
	targets := r.targets(nextHop, tx.NetIdx)
	if len(targets) == 0 {
		return fmt.Errorf("next hop %s is not in radio range of %s", nextHop, r.Cfg.Id)
	}
	nb := targets[0]
	pkt := slices.Clone(msg)
	r.mesh.transmit(r, nb, func(dst *core.WeftRouter, _ state.LinkCfg) {
		dst.OnData(tx, pkt, nb.deliver)
	})
	return nil
}

// deliver runs on the receiving node's main loop
func (r *Radio) deliver(tx state.TxCtx, msg []byte) {
	d := Delivery{Node: r.Cfg.Id, Tx: tx, Msg: msg, At: time.Now()}
	select {
	case r.mesh.delivered <- d:
	default:
		r.mesh.log.Warn("delivery channel is full, dropping", "node", r.Cfg.Id, "tx", tx)
	}
}

// simulate decides whether a transmission survives the link and how long it takes
func simulate(link state.LinkCfg) (time.Duration, bool) {
	if link.PacketLoss > 0 && rand.Float64() < link.PacketLoss {
		return 0, false
	}
	lat := link.Latency
	if link.Jitter > 0 {
		lat += time.Duration(rand.Float64() * float64(link.Jitter.Nanoseconds()))
	}
	return lat, true
}
