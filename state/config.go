package state

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

func (a Addr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Addr) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(strings.TrimSpace(string(text)), 0, 16)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", string(text), err)
	}
	*a = Addr(v)
	return nil
}

// TimingCfg overrides the protocol timers, mostly useful for simulation
type TimingCfg struct {
	RouteLifetime     time.Duration `yaml:"route_lifetime,omitempty"`
	ReplyDelay        time.Duration `yaml:"reply_delay,omitempty"`
	NeighbourLifetime time.Duration `yaml:"neighbour_lifetime,omitempty"`
	PendingLifetime   time.Duration `yaml:"pending_lifetime,omitempty"`
	HeartbeatDelay    time.Duration `yaml:"heartbeat_delay,omitempty"`
	RingSearchWait    time.Duration `yaml:"ring_search_wait,omitempty"`
	RingSearchPerTTL  time.Duration `yaml:"ring_search_per_ttl,omitempty"`
}

func (t *TimingCfg) Apply() {
	if t == nil {
		return
	}
	set := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	set(&RouteLifetime, t.RouteLifetime)
	set(&ReplyDelay, t.ReplyDelay)
	set(&NeighbourLifetime, t.NeighbourLifetime)
	set(&PendingLifetime, t.PendingLifetime)
	set(&HeartbeatDelay, t.HeartbeatDelay)
	set(&RingSearchWait, t.RingSearchWait)
	set(&RingSearchWaitPerTTL, t.RingSearchPerTTL)
}

// LocalCfg represents local node-level configuration
type LocalCfg struct {
	Id       string // unique id for this node
	Address  Addr   // primary element address
	Elements uint16 // number of elements, starting at Address
	NetIdx   NetIdx `yaml:"net_idx,omitempty"`
	Relay    bool   // whether this node forwards route requests for others
	LogPath  string `yaml:"log_path,omitempty"` // if not empty, the node will also write to this file
}

type LinkCfg struct {
	Latency    time.Duration `yaml:"latency,omitempty"`
	Jitter     time.Duration `yaml:"jitter,omitempty"`
	PacketLoss float64       `yaml:"packet_loss,omitempty"`
	Rssi       int8          `yaml:"rssi,omitempty"`
}

// TrafficCfg schedules one data message in a simulation
type TrafficCfg struct {
	At      time.Duration
	From    string
	To      string
	Payload string `yaml:",omitempty"`
}

// MeshCfg describes a simulated radio mesh
type MeshCfg struct {
	Nodes    []LocalCfg
	Graph    []string
	Link     LinkCfg      `yaml:",omitempty"`
	Timing   *TimingCfg   `yaml:",omitempty"`
	Traffic  []TrafficCfg `yaml:",omitempty"`
	Duration time.Duration `yaml:",omitempty"`
}

func (c *MeshCfg) NodeNames() []string {
	names := make([]string, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		names = append(names, n.Id)
	}
	return names
}

func (c *MeshCfg) GetNode(id string) (LocalCfg, bool) {
	idx := slices.IndexFunc(c.Nodes, func(cfg LocalCfg) bool {
		return cfg.Id == id
	})
	if idx == -1 {
		return LocalCfg{}, false
	}
	return c.Nodes[idx], true
}

// Links returns the radio links of the mesh, each one listed once
func (c *MeshCfg) Links() ([]Pair[string, string], error) {
	return ParseGraph(c.Graph, c.NodeNames())
}

func (c *MeshCfg) GetPeers(id string) ([]string, error) {
	links, err := c.Links()
	if err != nil {
		return nil, err
	}
	peers := make([]string, 0)
	for _, l := range links {
		if l.V1 == id {
			peers = append(peers, l.V2)
		} else if l.V2 == id {
			peers = append(peers, l.V1)
		}
	}
	return peers, nil
}
