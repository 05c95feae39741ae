package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var meshConfigPath = "mesh.yaml"

const defaultSocket = "/tmp/weft.sock"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Weft reactive mesh routing",
	Long: `Weft discovers routes on demand across a multi-hop radio mesh.
Nodes flood route requests in an expanding ring, answer along the reverse path and tear routes down when a neighbour goes quiet.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "sim",
		Title: "Simulation",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "tools",
		Title: "Tools",
	})
	rootCmd.PersistentFlags().StringVarP(&meshConfigPath, "config", "c", meshConfigPath, "mesh config")
}
