package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type TimerKind uint8

const (
	RouteTimer TimerKind = iota
	NeighbourTimer
	PendingTimer
	DiscoveryTimer
)

func (k TimerKind) String() string {
	switch k {
	case RouteTimer:
		return "route"
	case NeighbourTimer:
		return "neighbour"
	case PendingTimer:
		return "pending"
	case DiscoveryTimer:
		return "discovery"
	}
	return fmt.Sprintf("timer(%d)", uint8(k))
}

// TimerKey identifies the one timer owned by a route slot, neighbour, pending slot or the discovery engine
type TimerKey struct {
	Kind TimerKind
	Id   uint32
}

func (k TimerKey) String() string {
	return fmt.Sprintf("%s/%d", k.Kind, k.Id)
}

func RouteTimerKey(slot int) TimerKey {
	return TimerKey{Kind: RouteTimer, Id: uint32(slot)}
}

func NeighbourTimerKey(addr Addr, net NetIdx) TimerKey {
	return TimerKey{Kind: NeighbourTimer, Id: uint32(addr) | uint32(net)<<16}
}

func (k TimerKey) Neighbour() (Addr, NetIdx) {
	return Addr(k.Id & 0xffff), NetIdx(k.Id >> 16)
}

func PendingTimerKey(slot int) TimerKey {
	return TimerKey{Kind: PendingTimer, Id: uint32(slot)}
}

var DiscoveryTimerKey = TimerKey{Kind: DiscoveryTimer}

// TimerFunc is invoked on the dispatch goroutine when a timer expires
type TimerFunc func(key TimerKey) error

// TimerQueue is the single delay queue owned by a node. Arming a key that is already
// armed replaces its deadline, and a cancelled or replaced timer never fires.
type TimerQueue interface {
	Arm(key TimerKey, d time.Duration)
	Cancel(key TimerKey)
	Armed(key TimerKey) bool
}

// TimerWheel is a TimerQueue backed by a ttlcache. Expired items are delivered to the
// main loop with Dispatch, where the generation they were armed with is checked again.
type TimerWheel struct {
	env   *Env
	cache *ttlcache.Cache[TimerKey, uint64]
	fire  TimerFunc

	mu    sync.Mutex
	armed map[TimerKey]uint64
	gen   uint64
}

func NewTimerWheel(env *Env) *TimerWheel {
	w := &TimerWheel{
		env:   env,
		armed: make(map[TimerKey]uint64),
		cache: ttlcache.New[TimerKey, uint64](
			ttlcache.WithDisableTouchOnHit[TimerKey, uint64](),
		),
	}
	w.cache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[TimerKey, uint64]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		key, gen := item.Key(), item.Value()
		// eviction callbacks run under the cache lock, which Arm also takes
		go w.env.Dispatch(func(s *State) error {
			return w.expire(key, gen)
		})
	})
	return w
}

func (w *TimerWheel) OnFire(fn TimerFunc) {
	w.fire = fn
}

// Start runs the expiry loop until Stop is called
func (w *TimerWheel) Start() {
	go w.cache.Start()
}

func (w *TimerWheel) Stop() {
	w.cache.Stop()
}

func (w *TimerWheel) Arm(key TimerKey, d time.Duration) {
	w.mu.Lock()
	w.gen++
	w.armed[key] = w.gen
	gen := w.gen
	w.mu.Unlock()
	if d <= 0 {
		// ttlcache treats a zero ttl as "use the default", so fire on the next dispatch instead
		w.cache.Delete(key)
		go w.env.Dispatch(func(s *State) error {
			return w.expire(key, gen)
		})
		return
	}
	w.cache.Set(key, gen, d)
}

func (w *TimerWheel) Cancel(key TimerKey) {
	w.mu.Lock()
	delete(w.armed, key)
	w.mu.Unlock()
	w.cache.Delete(key)
}

func (w *TimerWheel) Armed(key TimerKey) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.armed[key]
	return ok
}

func (w *TimerWheel) expire(key TimerKey, gen uint64) error {
	w.mu.Lock()
	cur, ok := w.armed[key]
	if !ok || cur != gen {
		w.mu.Unlock()
		return nil
	}
	delete(w.armed, key)
	w.mu.Unlock()
	if w.fire == nil {
		return nil
	}
	return w.fire(key)
}
