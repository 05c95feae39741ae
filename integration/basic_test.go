//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/encodeous/weft/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := startMesh(t, meshCfg([]string{"a, b, c"},
		node("a", 0x0001), node("b", 0x0002), node("c", 0x0003)))
	select {
	case <-time.After(500 * time.Millisecond):
	case err := <-m.Errors():
		t.Error(err)
	}
	m.Stop()
}

func TestChainDelivery(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := startMesh(t, meshCfg([]string{"a ~ b ~ c ~ d"},
		node("a", 0x0001), node("b", 0x0002), node("c", 0x0003), node("d", 0x0004)))
	defer m.Stop()

	require.NoError(t, m.Send("a", "d", []byte("ping")))
	d := waitDelivery(t, m, 5*time.Second)
	assert.Equal(t, "d", d.Node)
	assert.Equal(t, "ping", string(d.Msg))

	nh, ok := nextHop(m, "a", "d")
	require.True(t, ok)
	assert.Equal(t, "b", nodeAt(m, nh))

	// the reply path was set up by the discovery
	require.NoError(t, m.Send("d", "a", []byte("pong")))
	d = waitDelivery(t, m, time.Second)
	assert.Equal(t, "a", d.Node)
	assert.Equal(t, "pong", string(d.Msg))
}

func TestScheduledTraffic(t *testing.T) {
	defer goleak.VerifyNone(t)
	cfg := meshCfg([]string{"a, b", "b, c"},
		node("a", 0x0001), node("b", 0x0002), node("c", 0x0003))
	cfg.Traffic = []state.TrafficCfg{{At: 100 * time.Millisecond, From: "a", To: "c"}}
	m := startMesh(t, cfg)
	defer m.Stop()

	d := waitDelivery(t, m, 5*time.Second)
	assert.Equal(t, "c", d.Node)
	assert.Equal(t, "a -> c", string(d.Msg))

	out, err := m.Dump()
	require.NoError(t, err)
	assert.Contains(t, out, "=== a ===")
	assert.Contains(t, out, "Routes (")
}
