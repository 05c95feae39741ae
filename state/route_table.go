package state

import (
	"fmt"
	"sync"
	"time"
)

type routeSlot struct {
	entry RouteEntry
	gen   uint32
	live  bool
}

// RouteTable is a fixed-capacity arena of route entries. Every live entry owns exactly
// one timer in the node's TimerQueue, keyed by its slot.
type RouteTable struct {
	mu     sync.RWMutex
	slots  []routeSlot
	free   []int
	timers TimerQueue
}

func NewRouteTable(capacity int, timers TimerQueue) *RouteTable {
	t := &RouteTable{
		slots:  make([]routeSlot, capacity),
		free:   make([]int, 0, capacity),
		timers: timers,
	}
	for i := capacity - 1; i >= 0; i-- {
		t.free = append(t.free, i)
	}
	return t
}

func (t *RouteTable) Cap() int {
	return len(t.slots)
}

func (t *RouteTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.slots) - len(t.free)
}

func (t *RouteTable) alloc(entry RouteEntry, lifetime time.Duration) (EntryRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.free) == 0 {
		return EntryRef{}, fmt.Errorf("route table full (%d entries): %w", len(t.slots), ErrResourceExhausted)
	}
	idx := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]
	slot := &t.slots[idx]
	slot.entry = entry
	slot.live = true
	t.timers.Arm(RouteTimerKey(idx), lifetime)
	return EntryRef{Index: idx, Gen: slot.gen}, nil
}

// Create inserts entry in the given state with a fresh lifetime
func (t *RouteTable) Create(state RouteState, entry RouteEntry) (EntryRef, error) {
	entry.State = state
	entry.AwaitingReply = false
	return t.alloc(entry, RouteLifetime)
}

// CreateAwaitingReply inserts an Invalid entry whose first expiry, after delay, is the
// destination's cue to answer the request
func (t *RouteTable) CreateAwaitingReply(entry RouteEntry, delay time.Duration) (EntryRef, error) {
	entry.State = Invalid
	entry.AwaitingReply = true
	return t.alloc(entry, delay)
}

func (t *RouteTable) lookup(ref EntryRef) *routeSlot {
	if ref.Index < 0 || ref.Index >= len(t.slots) {
		return nil
	}
	slot := &t.slots[ref.Index]
	if !slot.live || slot.gen != ref.Gen {
		return nil
	}
	return slot
}

func (t *RouteTable) Get(ref EntryRef) (RouteEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	slot := t.lookup(ref)
	if slot == nil {
		return RouteEntry{}, false
	}
	return slot.entry, true
}

// Update mutates the fields of an entry. The state tag and the reply marker are only
// changed through the transition methods.
func (t *RouteTable) Update(ref EntryRef, fn func(e *RouteEntry)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot := t.lookup(ref)
	if slot == nil {
		return false
	}
	st, awaiting := slot.entry.State, slot.entry.AwaitingReply
	fn(&slot.entry)
	slot.entry.State, slot.entry.AwaitingReply = st, awaiting
	return true
}

func (t *RouteTable) transition(ref EntryRef, state RouteState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot := t.lookup(ref)
	if slot == nil {
		return false
	}
	slot.entry.State = state
	slot.entry.AwaitingReply = false
	t.timers.Arm(RouteTimerKey(ref.Index), RouteLifetime)
	return true
}

func (t *RouteTable) Validate(ref EntryRef) bool {
	return t.transition(ref, Valid)
}

func (t *RouteTable) Invalidate(ref EntryRef) bool {
	return t.transition(ref, Invalid)
}

func (t *RouteTable) InvalidateRerr(ref EntryRef) bool {
	return t.transition(ref, InvalidRerr)
}

// Refresh extends the lifetime of an entry along with the valid entry for the opposite
// direction, if there is one
func (t *RouteTable) Refresh(ref EntryRef) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot := t.lookup(ref)
	if slot == nil {
		return false
	}
	t.rearm(ref.Index, slot)
	rev := Query{
		State:  Valid,
		NetIdx: slot.entry.NetIdx,
		Src:    slot.entry.Dst,
		Dst:    slot.entry.Src,
		Match:  MatchExact,
	}
	for i := range t.slots {
		other := &t.slots[i]
		if i != ref.Index && other.live && rev.Matches(&other.entry) {
			t.rearm(i, other)
			break
		}
	}
	return true
}

func (t *RouteTable) rearm(idx int, slot *routeSlot) {
	if slot.entry.AwaitingReply {
		// the reply deadline is not pushed back by traffic
		return
	}
	t.timers.Arm(RouteTimerKey(idx), RouteLifetime)
}

func (t *RouteTable) Delete(ref EntryRef) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot := t.lookup(ref)
	if slot == nil {
		return false
	}
	t.release(ref.Index)
	return true
}

func (t *RouteTable) release(idx int) {
	t.timers.Cancel(RouteTimerKey(idx))
	slot := &t.slots[idx]
	slot.live = false
	slot.gen++
	slot.entry = RouteEntry{}
	t.free = append(t.free, idx)
}

// Expire handles the lifetime timer of slot idx. Entries waiting to reply are handed
// back to the caller untouched, everything else is removed.
func (t *RouteTable) Expire(idx int) (EntryRef, RouteEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.slots) || !t.slots[idx].live {
		return EntryRef{}, RouteEntry{}, false
	}
	slot := &t.slots[idx]
	ref := EntryRef{Index: idx, Gen: slot.gen}
	entry := slot.entry
	if !entry.AwaitingReply {
		t.release(idx)
	}
	return ref, entry, true
}

// Search returns the first entry matching q
func (t *RouteTable) Search(q Query) (EntryRef, RouteEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range t.slots {
		slot := &t.slots[i]
		if slot.live && q.Matches(&slot.entry) {
			return EntryRef{Index: i, Gen: slot.gen}, slot.entry, true
		}
	}
	return EntryRef{}, RouteEntry{}, false
}

// SearchFunc invokes fn for every entry matching q. Matches are collected under the read
// lock, which is released before fn runs, so fn is free to search and mutate the table.
// Each entry is checked again right before its callback, entries that were freed or no
// longer match by then are skipped.
func (t *RouteTable) SearchFunc(q Query, fn func(ref EntryRef, e RouteEntry)) int {
	t.mu.RLock()
	refs := make([]EntryRef, 0)
	for i := range t.slots {
		slot := &t.slots[i]
		if slot.live && q.Matches(&slot.entry) {
			refs = append(refs, EntryRef{Index: i, Gen: slot.gen})
		}
	}
	t.mu.RUnlock()

	n := 0
	for _, ref := range refs {
		t.mu.RLock()
		slot := t.lookup(ref)
		var (
			entry RouteEntry
			ok    bool
		)
		if slot != nil && q.Matches(&slot.entry) {
			entry, ok = slot.entry, true
		}
		t.mu.RUnlock()
		if !ok {
			continue
		}
		fn(ref, entry)
		n++
	}
	return n
}

// Snapshot copies every live entry, in slot order
func (t *RouteTable) Snapshot() []RouteEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]RouteEntry, 0, len(t.slots)-len(t.free))
	for i := range t.slots {
		if t.slots[i].live {
			out = append(out, t.slots[i].entry)
		}
	}
	return out
}
