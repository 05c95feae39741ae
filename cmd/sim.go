package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/encodeous/weft/core"
	"github.com/encodeous/weft/sim"
	"github.com/spf13/cobra"
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Runs a virtual radio mesh",
	Long: `Starts every node of the mesh config on an in-memory radio medium, plays the scheduled traffic and prints the routing state of each node when the run ends.
Without a duration the mesh runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadMeshCfg(meshConfigPath)
		if err != nil {
			return err
		}
		if d, _ := cmd.Flags().GetDuration("duration"); cmd.Flags().Changed("duration") {
			cfg.Duration = d
		}
		level := slog.LevelInfo
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}

		if addr, _ := cmd.Flags().GetString("metrics"); addr != "" {
			go func() {
				// serves /debug/metrics and /debug/vars
				if err := http.ListenAndServe(addr, nil); err != nil {
					slog.Error("metrics server stopped", "error", err)
				}
			}()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mesh, err := sim.New(cfg, level)
		if err != nil {
			return err
		}
		// nodes outlive the signal so their state can still be dumped
		if err := mesh.Start(context.Background()); err != nil {
			return err
		}
		if socket, _ := cmd.Flags().GetString("ipc"); socket != "" {
			if err := core.ServeIPC(ctx, slog.Default(), socket, mesh.Dump); err != nil {
				mesh.Stop()
				return err
			}
		}
		if ok, _ := cmd.Flags().GetBool("trace"); ok {
			mesh.Watch(func(ev core.TraceEvent) {
				fmt.Printf("%s %-8s %s %s %v\n", ev.At.Format("15:04:05.000"), ev.Node, ev.Event, ev.Desc, ev.Args)
			})
		}

		var timeout <-chan time.Time
		if cfg.Duration > 0 {
			timeout = time.After(cfg.Duration)
		}
		delivered := 0
		var runErr error
	loop:
		for {
			select {
			case d := <-mesh.Delivered():
				delivered++
				fmt.Printf("%s received %q from %s\n", d.Node, d.Msg, d.Tx.Src)
			case runErr = <-mesh.Errors():
				break loop
			case <-timeout:
				break loop
			case <-ctx.Done():
				break loop
			}
		}

		dump, err := mesh.Dump()
		if err == nil {
			fmt.Print(dump)
		}
		mesh.Stop()
		fmt.Printf("%d of %d scheduled messages delivered\n", delivered, len(cfg.Traffic))
		return runErr
	},
	GroupID: "sim",
}

func init() {
	rootCmd.AddCommand(simCmd)

	simCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	simCmd.Flags().BoolP("trace", "t", false, "Print every router event")
	simCmd.Flags().DurationP("duration", "d", 0, "How long to run, overrides the config")
	simCmd.Flags().StringP("metrics", "m", "", "Serve metrics on this address")
	simCmd.Flags().String("ipc", defaultSocket, "Socket for weft inspect, empty to disable")
}
