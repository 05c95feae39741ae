package state

import (
	"cmp"
	"errors"
	"time"
)

// ManualTimers is a TimerQueue driven by a virtual clock, so protocol tests can step
// through expiries deterministically.
type ManualTimers struct {
	Now   time.Duration
	armed map[TimerKey]time.Duration
	fire  TimerFunc
}

func NewManualTimers() *ManualTimers {
	return &ManualTimers{
		armed: make(map[TimerKey]time.Duration),
	}
}

func (m *ManualTimers) OnFire(fn TimerFunc) {
	m.fire = fn
}

func (m *ManualTimers) Arm(key TimerKey, d time.Duration) {
	m.armed[key] = m.Now + max(d, 0)
}

func (m *ManualTimers) Cancel(key TimerKey) {
	delete(m.armed, key)
}

func (m *ManualTimers) Armed(key TimerKey) bool {
	_, ok := m.armed[key]
	return ok
}

// Remaining returns how long until key fires
func (m *ManualTimers) Remaining(key TimerKey) (time.Duration, bool) {
	at, ok := m.armed[key]
	if !ok {
		return 0, false
	}
	return at - m.Now, true
}

func (m *ManualTimers) next(until time.Duration) (TimerKey, time.Duration, bool) {
	var (
		best  TimerKey
		bestT time.Duration
		found bool
	)
	for key, at := range m.armed {
		if at > until {
			continue
		}
		if !found || at < bestT || at == bestT && compareKeys(key, best) < 0 {
			best, bestT, found = key, at, true
		}
	}
	return best, bestT, found
}

func compareKeys(a, b TimerKey) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	return cmp.Compare(a.Id, b.Id)
}

// Advance moves the clock forward by d, firing every timer that comes due in deadline
// order. Timers armed by a firing timer are honoured if they fall inside the window.
func (m *ManualTimers) Advance(d time.Duration) error {
	until := m.Now + d
	var errs []error
	for {
		key, at, ok := m.next(until)
		if !ok {
			break
		}
		m.Now = at
		delete(m.armed, key)
		if m.fire != nil {
			if err := m.fire(key); err != nil {
				errs = append(errs, err)
			}
		}
	}
	m.Now = until
	return errors.Join(errs...)
}
