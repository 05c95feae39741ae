// Package sim runs weft nodes over an in-memory radio medium
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/pprof"
	"strings"
	"sync"
	"time"

	"github.com/encodeous/weft/core"
	"github.com/encodeous/weft/state"
)

type Mesh struct {
	Cfg      state.MeshCfg
	Context  context.Context
	Cancel   context.CancelCauseFunc
	LogLevel slog.Level

	log       *slog.Logger
	radios    []*Radio
	byId      map[string]*Radio
	links     map[state.Pair[string, string]]*Link
	delivered chan Delivery
	errs      chan error

	nodes    sync.WaitGroup // running nodes
	inflight sync.WaitGroup // transmissions and scheduled traffic

	mu       sync.Mutex
	stopping bool
	watchers []func()
}

// New builds a mesh from cfg. Timing overrides in cfg are applied process-wide.
func New(cfg state.MeshCfg, level slog.Level) (*Mesh, error) {
	if err := state.MeshConfigValidator(&cfg); err != nil {
		return nil, err
	}
	links, err := cfg.Links()
	if err != nil {
		return nil, err
	}
	log, err := core.NewLogger("sim", level, "")
	if err != nil {
		return nil, err
	}
	cfg.Timing.Apply()

	m := &Mesh{
		Cfg:       cfg,
		LogLevel:  level,
		log:       log,
		byId:      make(map[string]*Radio),
		links:     make(map[state.Pair[string, string]]*Link),
		delivered: make(chan Delivery, 256),
		errs:      make(chan error, len(cfg.Nodes)),
	}
	for _, l := range links {
		m.links[l] = &Link{LinkCfg: cfg.Link}
	}
	for _, n := range cfg.Nodes {
		r := newRadio(m, n)
		m.radios = append(m.radios, r)
		m.byId[n.Id] = r
	}
	return m, nil
}

// Start launches every node and returns once all of them are running
func (m *Mesh) Start(ctx context.Context) error {
	m.Context, m.Cancel = context.WithCancelCause(ctx)
	for _, r := range m.radios {
		m.nodes.Go(func() {
			labels := pprof.Labels("weft node", r.Cfg.Id)
			pprof.Do(m.Context, labels, func(ctx context.Context) {
				err := core.Start(r.Cfg, core.Options{
					Context:   ctx,
					LogLevel:  m.LogLevel,
					Transport: r,
					Node:      r.Node,
					Ready:     r.start,
				})
				if err != nil {
					m.errs <- fmt.Errorf("node %s: %w", r.Cfg.Id, err)
				}
			})
		})
	}
	for _, r := range m.radios {
		select {
		case <-r.ready:
		case err := <-m.errs:
			m.Stop()
			return err
		case <-m.Context.Done():
			m.Stop()
			return context.Cause(m.Context)
		}
	}
	m.log.Info("mesh started", "nodes", len(m.radios), "links", len(m.links))
	for _, tr := range m.Cfg.Traffic {
		m.schedule(tr)
	}
	return nil
}

// Stop shuts every node down and waits for in-flight transmissions to finish
func (m *Mesh) Stop() {
	if m.Cancel == nil {
		return
	}
	m.mu.Lock()
	m.stopping = true
	watchers := m.watchers
	m.watchers = nil
	m.mu.Unlock()
	for _, stop := range watchers {
		stop()
	}
	m.Cancel(errors.New("stopping mesh"))
	m.nodes.Wait()
	m.inflight.Wait()
	m.log.Info("mesh stopped")
}

// Errors reports nodes that exited with an error
func (m *Mesh) Errors() <-chan error {
	return m.errs
}

// Delivered yields every message that reached its destination
func (m *Mesh) Delivered() <-chan Delivery {
	return m.delivered
}

func (m *Mesh) Radio(id string) *Radio {
	return m.byId[id]
}

func (m *Mesh) link(a, b string) *Link {
	return m.links[state.MakeSortedPair(a, b)]
}

func (m *Mesh) neighbours(r *Radio) []*Radio {
	out := make([]*Radio, 0)
	for _, other := range m.radios {
		if other == r {
			continue
		}
		if l := m.link(r.Cfg.Id, other.Cfg.Id); l != nil && l.Up() {
			out = append(out, other)
		}
	}
	return out
}

func (m *Mesh) setLink(a, b string, up bool) error {
	l := m.link(a, b)
	if l == nil {
		return fmt.Errorf("%s and %s are not linked", a, b)
	}
	l.cut.Store(!up)
	m.log.Debug("link changed", "a", a, "b", b, "up", up)
	return nil
}

// Cut takes the link between a and b down
func (m *Mesh) Cut(a, b string) error {
	return m.setLink(a, b, false)
}

func (m *Mesh) Restore(a, b string) error {
	return m.setLink(a, b, true)
}

// spawn runs fn as in-flight work, unless the mesh is stopping
func (m *Mesh) spawn(fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopping {
		return false
	}
	m.inflight.Go(fn)
	return true
}

// transmit carries one frame from one radio to another over their link
func (m *Mesh) transmit(from, to *Radio, recv func(dst *core.WeftRouter, link state.LinkCfg)) {
	l := m.link(from.Cfg.Id, to.Cfg.Id)
	if l == nil || !l.Up() || m.Context.Err() != nil {
		return
	}
	lat, ok := simulate(l.LinkCfg)
	if !ok {
		return
	}
	m.spawn(func() {
		if lat > 0 {
			select {
			case <-m.Context.Done():
				return
			case <-time.After(lat):
			}
		}
		rt := to.Router()
		if rt == nil || m.Context.Err() != nil {
			return
		}
		recv(rt, l.LinkCfg)
	})
}

// Send has from send payload to the primary element of to
func (m *Mesh) Send(from, to string, payload []byte) error {
	src, dst := m.Radio(from), m.Radio(to)
	if src == nil || dst == nil {
		return fmt.Errorf("unknown node in %s -> %s", from, to)
	}
	rt := src.Router()
	if rt == nil {
		return fmt.Errorf("node %s is not running", from)
	}
	return rt.Send(state.TxCtx{
		NetIdx:  src.Cfg.NetIdx,
		Src:     src.Cfg.Address,
		Dst:     dst.Cfg.Address,
		SendTTL: state.MaxTTL,
	}, payload)
}

func (m *Mesh) schedule(tr state.TrafficCfg) {
	m.spawn(func() {
		select {
		case <-m.Context.Done():
			return
		case <-time.After(tr.At):
		}
		payload := tr.Payload
		if payload == "" {
			payload = fmt.Sprintf("%s -> %s", tr.From, tr.To)
		}
		if err := m.Send(tr.From, tr.To, []byte(payload)); err != nil && m.Context.Err() == nil {
			m.log.Warn("traffic failed", "from", tr.From, "to", tr.To, "error", err)
		}
	})
}

// Watch calls fn with every router event in the mesh until the returned function is
// called or the mesh stops
func (m *Mesh) Watch(fn func(ev core.TraceEvent)) func() {
	ch := make(chan any, 256)
	unsubs := make([]func(), 0, len(m.radios))
	for _, r := range m.radios {
		if t := r.trace.Load(); t != nil {
			unsubs = append(unsubs, t.Subscribe(ch))
		}
	}
	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev := <-ch:
				if te, ok := ev.(core.TraceEvent); ok {
					fn(te)
				}
			case <-quit:
				return
			}
		}
	}()
	stop := sync.OnceFunc(func() {
		for _, u := range unsubs {
			u()
		}
		close(quit)
		<-done
	})
	m.mu.Lock()
	m.watchers = append(m.watchers, stop)
	m.mu.Unlock()
	return stop
}

// Dump renders the state of every running node
func (m *Mesh) Dump() (string, error) {
	sb := strings.Builder{}
	for _, r := range m.radios {
		rt := r.Router()
		if rt == nil {
			continue
		}
		out, err := rt.Dump()
		if err != nil {
			return "", fmt.Errorf("dump %s: %w", r.Cfg.Id, err)
		}
		fmt.Fprintf(&sb, "=== %s ===\n%s\n", r.Cfg.Id, out)
	}
	return sb.String(), nil
}
