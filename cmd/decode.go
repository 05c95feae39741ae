package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/encodeous/weft/protocol"
	"github.com/gopacket/gopacket"
	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:     "decode <opcode> <hex>",
	Aliases: []string{"d"},
	Short:   "Pretty-prints a route control message",
	Example: "weft decode rrep c50100030007000000020100",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := protocol.ParseOpcode(args[0])
		if err != nil {
			return err
		}
		payload, err := hex.DecodeString(strings.ReplaceAll(args[1], " ", ""))
		if err != nil {
			return fmt.Errorf("bad hex payload: %w", err)
		}
		m, err := protocol.Decode(op, payload)
		if err != nil {
			return err
		}
		fmt.Println(m)
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			lt, _ := protocol.LayerTypeFor(op)
			fmt.Print(gopacket.NewPacket(payload, lt, gopacket.Default).Dump())
		}
		return nil
	},
	GroupID: "tools",
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolP("verbose", "v", false, "Dump every decoded layer")
}
