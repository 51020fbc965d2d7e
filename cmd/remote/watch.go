package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tvcontrol/internal/protocol"
	"tvcontrol/internal/remote"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow status broadcasts until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := connect(protocol.RoleRemote)
		defer s.cancel()

		r := remote.NewRemote(s.ch, s.clock, cfg.Engine)
		go func() { _ = r.Run(s.ctx) }()

		out := cmd.OutOrStdout()
		wasActive := false
		for {
			select {
			case <-s.ctx.Done():
				return nil
			case <-r.Updates():
			}

			active := r.PlayerActive()
			if !active {
				if wasActive {
					_, _ = fmt.Fprintln(out, "-- Player Inactive --")
				}
				wasActive = false
				continue
			}
			wasActive = true
			if st, ok := r.Status(); ok {
				_, _ = fmt.Fprintln(out, "--")
				printStatus(out, st)
			}
		}
	},
}
