package core

import (
	"time"

	"github.com/dustin/go-broadcast"
	"github.com/encodeous/weft/state"
)

// TraceEvent is a router event as seen by trace subscribers
type TraceEvent struct {
	Node  string
	Event RouterEvent
	Desc  string
	Args  []any
	At    time.Time
}

// RouteTrace fans router events out to any number of listeners
type RouteTrace struct {
	broadcast.Broadcaster
}

func (n *RouteTrace) Init(s *state.State) error {
	n.Broadcaster = broadcast.NewBroadcaster(1024)
	return nil
}

func (n *RouteTrace) Cleanup(s *state.State) error {
	if n.Broadcaster == nil {
		return nil
	}
	return n.Broadcaster.Close()
}

func (n *RouteTrace) Publish(node string, event RouterEvent, desc string, args ...any) {
	n.Submit(TraceEvent{
		Node:  node,
		Event: event,
		Desc:  desc,
		Args:  args,
		At:    time.Now(),
	})
}

// Subscribe registers ch for trace events until the returned function is called
func (n *RouteTrace) Subscribe(ch chan any) func() {
	n.Register(ch)
	return func() {
		n.Unregister(ch)
	}
}
