package state

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameValidator_Valid(t *testing.T) {
	assert.NoError(t, NameValidator("1"))
	assert.NoError(t, NameValidator("ab_cd"))
	assert.NoError(t, NameValidator("abcd-a.com"))
}

func TestNameValidator_Invalid(t *testing.T) {
	assert.Error(t, NameValidator("1A"))
	assert.Error(t, NameValidator("node name"))
	assert.Error(t, NameValidator(""))
	assert.Error(t, NameValidator("\t"))
	assert.Error(t, NameValidator("abcd-a.com\\hi"))
	assert.Error(t, NameValidator(strings.Repeat("a", 200)))
}

func TestNodeConfigValidator(t *testing.T) {
	assert.NoError(t, NodeConfigValidator(&LocalCfg{Id: "a", Address: 0x0001, Elements: 3}))
	assert.NoError(t, NodeConfigValidator(&LocalCfg{Id: "a", Address: 0x7ffe, Elements: 2}))

	assert.Error(t, NodeConfigValidator(&LocalCfg{Id: "A", Address: 0x0001, Elements: 1}))
	assert.Error(t, NodeConfigValidator(&LocalCfg{Id: "a", Address: 0x0000, Elements: 1}))
	assert.Error(t, NodeConfigValidator(&LocalCfg{Id: "a", Address: 0xc000, Elements: 1}))
	assert.Error(t, NodeConfigValidator(&LocalCfg{Id: "a", Address: 0x0001, Elements: 0}))
	assert.Error(t, NodeConfigValidator(&LocalCfg{Id: "a", Address: 0x7ffe, Elements: 3}))
	assert.Error(t, NodeConfigValidator(&LocalCfg{Id: "a", Address: 0x0001, Elements: 1, LogPath: "/does/not/exist/log.txt"}))
}

func validMesh() *MeshCfg {
	return &MeshCfg{
		Nodes: []LocalCfg{
			{Id: "a", Address: 0x0001, Elements: 2, Relay: true},
			{Id: "b", Address: 0x0003, Elements: 1, Relay: true},
		},
		Graph:   []string{"a, b"},
		Traffic: []TrafficCfg{{From: "a", To: "b"}},
	}
}

func TestMeshConfigValidator_Valid(t *testing.T) {
	assert.NoError(t, MeshConfigValidator(validMesh()))
}

func TestMeshConfigValidator_OverlappingElements(t *testing.T) {
	cfg := validMesh()
	cfg.Nodes[1].Address = 0x0002
	assert.ErrorContains(t, MeshConfigValidator(cfg), "overlap")

	// separate subnets may reuse addresses
	cfg.Nodes[1].NetIdx = 1
	assert.NoError(t, MeshConfigValidator(cfg))
}

func TestMeshConfigValidator_DuplicateNode(t *testing.T) {
	cfg := validMesh()
	cfg.Nodes[1].Id = "a"
	assert.ErrorContains(t, MeshConfigValidator(cfg), "duplicate node: a")
}

func TestMeshConfigValidator_Invalid(t *testing.T) {
	cfg := validMesh()
	cfg.Graph = []string{"a, c"}
	assert.Error(t, MeshConfigValidator(cfg))

	cfg = validMesh()
	cfg.Link.PacketLoss = 1
	assert.Error(t, MeshConfigValidator(cfg))

	cfg = validMesh()
	cfg.Traffic = []TrafficCfg{{From: "a", To: "a"}}
	assert.Error(t, MeshConfigValidator(cfg))

	cfg = validMesh()
	cfg.Traffic = []TrafficCfg{{From: "a", To: "z"}}
	assert.Error(t, MeshConfigValidator(cfg))

	assert.Error(t, MeshConfigValidator(&MeshCfg{}))
}
