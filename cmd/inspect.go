package cmd

import (
	"fmt"

	"github.com/encodeous/weft/core"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect [socket]",
	Aliases: []string{"i"},
	Short:   "Inspects the routing state of a running simulation",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		socket := defaultSocket
		if len(args) == 1 {
			socket = args[0]
		}
		result, err := core.IPCGet(socket)
		if err != nil {
			return err
		}
		fmt.Print(result)
		return nil
	},
	GroupID: "tools",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
