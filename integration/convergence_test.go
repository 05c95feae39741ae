//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/encodeous/weft/state"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestLossyGridDelivers(t *testing.T) {
	defer goleak.VerifyNone(t)
	cfg := meshCfg([]string{
		"n1 ~ n2 ~ n3",
		"n4 ~ n5 ~ n6",
		"n7 ~ n8 ~ n9",
		"n1 ~ n4 ~ n7",
		"n2 ~ n5 ~ n8",
		"n3 ~ n6 ~ n9",
	},
		node("n1", 0x0001), node("n2", 0x0002), node("n3", 0x0003),
		node("n4", 0x0004), node("n5", 0x0005), node("n6", 0x0006),
		node("n7", 0x0007), node("n8", 0x0008), node("n9", 0x0009))
	cfg.Link = state.LinkCfg{Latency: 5 * time.Millisecond, Jitter: 5 * time.Millisecond, PacketLoss: 0.1, Rssi: -70}
	m := startMesh(t, cfg)
	defer m.Stop()

	done := NewSignal()
	go func() {
		for !done.Triggered() {
			_ = m.Send("n1", "n9", []byte("corner"))
			select {
			case <-done:
			case <-time.After(500 * time.Millisecond):
			}
		}
	}()
	defer done.Trigger()

	d := waitDelivery(t, m, 15*time.Second)
	assert.Equal(t, "n9", d.Node)
	assert.Equal(t, "corner", string(d.Msg))
}
