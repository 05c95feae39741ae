package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/weft/state"
	"github.com/goccy/go-yaml"
)

func loadMeshCfg(path string) (state.MeshCfg, error) {
	var cfg state.MeshCfg
	file, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range cfg.Nodes {
		// a node without an element count still has its primary element
		if cfg.Nodes[i].Elements == 0 {
			cfg.Nodes[i].Elements = 1
		}
	}
	return cfg, state.MeshConfigValidator(&cfg)
}
