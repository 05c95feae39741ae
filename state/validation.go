package state

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func NodeConfigValidator(node *LocalCfg) error {
	err := NameValidator(node.Id)
	if err != nil {
		return err
	}
	if !node.Address.IsUnicast() {
		return fmt.Errorf("node %s: %s is not a unicast address", node.Id, node.Address)
	}
	if node.Elements == 0 {
		return fmt.Errorf("node %s must have at least one element", node.Id)
	}
	last := uint32(node.Address) + uint32(node.Elements) - 1
	if !Addr(last).IsUnicast() || last > 0x7fff {
		return fmt.Errorf("node %s: elements %s..0x%04x leave the unicast range", node.Id, node.Address, last)
	}
	if node.LogPath != "" {
		if err := PathValidator(node.LogPath); err != nil {
			return fmt.Errorf("node %s: bad log path: %w", node.Id, err)
		}
	}
	return nil
}

func MeshConfigValidator(cfg *MeshCfg) error {
	if len(cfg.Nodes) == 0 {
		return fmt.Errorf("mesh has no nodes")
	}
	names := make([]string, 0)
	for i := range cfg.Nodes {
		node := &cfg.Nodes[i]
		if err := NodeConfigValidator(node); err != nil {
			return err
		}
		if slices.Contains(names, node.Id) {
			return fmt.Errorf("duplicate node: %s", node.Id)
		}
		names = append(names, node.Id)
		for _, other := range cfg.Nodes[:i] {
			if other.NetIdx != node.NetIdx {
				continue
			}
			if InRange(node.Address, other.Address, other.Elements) || InRange(other.Address, node.Address, node.Elements) {
				return fmt.Errorf("address ranges of %s and %s overlap", other.Id, node.Id)
			}
		}
	}
	if _, err := cfg.Links(); err != nil {
		return err
	}
	if cfg.Link.PacketLoss < 0 || cfg.Link.PacketLoss >= 1 {
		return fmt.Errorf("packet loss must be in [0, 1), got %v", cfg.Link.PacketLoss)
	}
	for _, tr := range cfg.Traffic {
		if !slices.Contains(names, tr.From) {
			return fmt.Errorf("traffic source %s is not a node", tr.From)
		}
		if !slices.Contains(names, tr.To) {
			return fmt.Errorf("traffic destination %s is not a node", tr.To)
		}
		if tr.From == tr.To {
			return fmt.Errorf("traffic from %s to itself", tr.From)
		}
	}
	return nil
}
