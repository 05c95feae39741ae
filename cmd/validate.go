package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Checks a mesh config and prints the radio links it describes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadMeshCfg(meshConfigPath)
		if err != nil {
			return err
		}
		links, err := cfg.Links()
		if err != nil {
			return err
		}
		fmt.Printf("%d nodes, %d links\n", len(cfg.Nodes), len(links))
		for _, n := range cfg.Nodes {
			fmt.Printf(" - %s %s[%d] net %d relay %t\n", n.Id, n.Address, n.Elements, n.NetIdx, n.Relay)
		}
		for _, l := range links {
			fmt.Printf("   %s <-> %s\n", l.V1, l.V2)
		}
		return nil
	},
	GroupID: "tools",
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
