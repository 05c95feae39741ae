package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable(t *testing.T, capacity int) (*RouteTable, *ManualTimers) {
	t.Helper()
	timers := NewManualTimers()
	return NewRouteTable(capacity, timers), timers
}

func TestRouteTableCreate(t *testing.T) {
	tbl, timers := newTable(t, 4)
	ref, err := tbl.Create(Valid, RouteEntry{Src: 1, Dst: 2, NextHop: 3, State: Invalid, AwaitingReply: true})
	require.NoError(t, err)

	e, ok := tbl.Get(ref)
	require.True(t, ok)
	assert.Equal(t, Valid, e.State)
	assert.False(t, e.AwaitingReply)
	assert.Equal(t, 1, tbl.Len())

	left, ok := timers.Remaining(RouteTimerKey(ref.Index))
	require.True(t, ok)
	assert.Equal(t, RouteLifetime, left)
}

func TestRouteTableFull(t *testing.T) {
	tbl, _ := newTable(t, 2)
	for i := range 2 {
		_, err := tbl.Create(Valid, RouteEntry{Src: 1, Dst: Addr(10 + i)})
		require.NoError(t, err)
	}
	_, err := tbl.Create(Valid, RouteEntry{Src: 1, Dst: 20})
	assert.ErrorIs(t, err, ErrResourceExhausted)
	assert.Equal(t, 2, tbl.Len())
}

func TestRouteTableStaleRef(t *testing.T) {
	tbl, timers := newTable(t, 1)
	ref, err := tbl.Create(Valid, RouteEntry{Src: 1, Dst: 2})
	require.NoError(t, err)
	require.True(t, tbl.Delete(ref))
	assert.False(t, timers.Armed(RouteTimerKey(ref.Index)))

	// the slot is reused under a new generation
	ref2, err := tbl.Create(Valid, RouteEntry{Src: 1, Dst: 3})
	require.NoError(t, err)
	assert.Equal(t, ref.Index, ref2.Index)
	assert.NotEqual(t, ref.Gen, ref2.Gen)

	_, ok := tbl.Get(ref)
	assert.False(t, ok)
	assert.False(t, tbl.Delete(ref))
	assert.False(t, tbl.Validate(ref))
	assert.False(t, tbl.Update(ref, func(e *RouteEntry) { e.HopCount = 9 }))

	e, ok := tbl.Get(ref2)
	require.True(t, ok)
	assert.Equal(t, Addr(3), e.Dst)
	assert.Equal(t, uint8(0), e.HopCount)
}

func TestRouteTableUpdateKeepsState(t *testing.T) {
	tbl, _ := newTable(t, 1)
	ref, err := tbl.CreateAwaitingReply(RouteEntry{Src: 1, Dst: 2}, ReplyDelay)
	require.NoError(t, err)
	require.True(t, tbl.Update(ref, func(e *RouteEntry) {
		e.HopCount = 4
		e.State = Valid
		e.AwaitingReply = false
	}))
	e, _ := tbl.Get(ref)
	assert.Equal(t, uint8(4), e.HopCount)
	assert.Equal(t, Invalid, e.State)
	assert.True(t, e.AwaitingReply)
}

func TestRouteTableInvalidateIsIdempotent(t *testing.T) {
	tbl, timers := newTable(t, 1)
	ref, err := tbl.Create(Valid, RouteEntry{Src: 1, Dst: 2})
	require.NoError(t, err)

	require.NoError(t, timers.Advance(5*time.Second))
	require.True(t, tbl.Invalidate(ref))
	left, _ := timers.Remaining(RouteTimerKey(ref.Index))
	assert.Equal(t, RouteLifetime, left)

	require.NoError(t, timers.Advance(5*time.Second))
	require.True(t, tbl.Invalidate(ref))
	e, _ := tbl.Get(ref)
	assert.Equal(t, Invalid, e.State)
	left, _ = timers.Remaining(RouteTimerKey(ref.Index))
	assert.Equal(t, RouteLifetime, left)
}

func TestRouteTableSearchRange(t *testing.T) {
	tbl, _ := newTable(t, 4)
	_, err := tbl.Create(Valid, RouteEntry{Src: 0x10, SrcElems: 2, Dst: 0x20, DstElems: 3, NextHop: 5})
	require.NoError(t, err)
	ref, err := tbl.Create(Valid, RouteEntry{Src: 0x20, SrcElems: 3, Dst: 0x10, DstElems: 2, NextHop: 6})
	require.NoError(t, err)

	got, e, ok := tbl.Search(Query{State: Valid, Src: 0x22, Dst: 0x11})
	require.True(t, ok)
	assert.Equal(t, ref, got)
	assert.Equal(t, Addr(6), e.NextHop)

	_, _, ok = tbl.Search(Query{State: Valid, Src: 0x23, Dst: 0x11})
	assert.False(t, ok)
	_, _, ok = tbl.Search(Query{State: Invalid, Src: 0x20, Dst: 0x10})
	assert.False(t, ok)
}

func TestRouteTableRefreshBothDirections(t *testing.T) {
	tbl, timers := newTable(t, 4)
	fwd, err := tbl.Create(Valid, RouteEntry{Src: 1, Dst: 9, NextHop: 2})
	require.NoError(t, err)
	require.NoError(t, timers.Advance(4*time.Second))
	back, err := tbl.Create(Valid, RouteEntry{Src: 9, Dst: 1, NextHop: 2})
	require.NoError(t, err)
	require.NoError(t, timers.Advance(4*time.Second))

	require.True(t, tbl.Refresh(back))
	for _, ref := range []EntryRef{fwd, back} {
		left, ok := timers.Remaining(RouteTimerKey(ref.Index))
		require.True(t, ok)
		assert.Equal(t, RouteLifetime, left)
	}
}

func TestRouteTableRefreshKeepsReplyDeadline(t *testing.T) {
	tbl, timers := newTable(t, 2)
	ref, err := tbl.CreateAwaitingReply(RouteEntry{Src: 1, Dst: 9, NextHop: 2}, ReplyDelay)
	require.NoError(t, err)
	require.NoError(t, timers.Advance(time.Second))
	require.True(t, tbl.Refresh(ref))
	left, _ := timers.Remaining(RouteTimerKey(ref.Index))
	assert.Equal(t, ReplyDelay-time.Second, left)
}

func TestRouteTableExpire(t *testing.T) {
	tbl, _ := newTable(t, 2)
	awaiting, err := tbl.CreateAwaitingReply(RouteEntry{Src: 1, Dst: 9}, ReplyDelay)
	require.NoError(t, err)
	plain, err := tbl.Create(Valid, RouteEntry{Src: 1, Dst: 8})
	require.NoError(t, err)

	// the awaiting entry stays so it can be answered
	ref, e, ok := tbl.Expire(awaiting.Index)
	require.True(t, ok)
	assert.Equal(t, awaiting, ref)
	assert.True(t, e.AwaitingReply)
	_, ok = tbl.Get(awaiting)
	assert.True(t, ok)

	ref, e, ok = tbl.Expire(plain.Index)
	require.True(t, ok)
	assert.Equal(t, plain, ref)
	assert.Equal(t, Addr(8), e.Dst)
	_, ok = tbl.Get(plain)
	assert.False(t, ok)

	_, _, ok = tbl.Expire(plain.Index)
	assert.False(t, ok)
	_, _, ok = tbl.Expire(-1)
	assert.False(t, ok)
}

func TestRouteTableSearchFuncMutation(t *testing.T) {
	tbl, _ := newTable(t, 8)
	for i := range 5 {
		_, err := tbl.Create(Valid, RouteEntry{Src: 1, Dst: Addr(10 + i), NextHop: 7})
		require.NoError(t, err)
	}
	_, err := tbl.Create(Valid, RouteEntry{Src: 1, Dst: 30, NextHop: 8})
	require.NoError(t, err)

	seen := make([]Addr, 0)
	n := tbl.SearchFunc(Query{State: Valid, NextHop: 7}, func(ref EntryRef, e RouteEntry) {
		seen = append(seen, e.Dst)
		tbl.InvalidateRerr(ref)
		// removing a later match while iterating must skip it
		if e.Dst == 10 {
			victim, _, ok := tbl.Search(Query{State: Valid, Dst: 11, Match: MatchExact})
			require.True(t, ok)
			tbl.Delete(victim)
		}
	})
	assert.Equal(t, 4, n)
	assert.Equal(t, []Addr{10, 12, 13, 14}, seen)

	left := 0
	tbl.SearchFunc(Query{State: InvalidRerr}, func(ref EntryRef, e RouteEntry) {
		left++
	})
	assert.Equal(t, 4, left)
	_, e, ok := tbl.Search(Query{State: Valid, Dst: 30})
	require.True(t, ok)
	assert.Equal(t, Addr(8), e.NextHop)
}

func TestRouteTableSnapshot(t *testing.T) {
	tbl, _ := newTable(t, 3)
	_, err := tbl.Create(Valid, RouteEntry{Src: 1, Dst: 2})
	require.NoError(t, err)
	ref, err := tbl.Create(Invalid, RouteEntry{Src: 1, Dst: 3})
	require.NoError(t, err)
	tbl.Delete(ref)

	snap := tbl.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, Addr(2), snap[0].Dst)
	assert.Equal(t, 3, tbl.Cap())
}
