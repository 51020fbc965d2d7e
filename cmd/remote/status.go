package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tvcontrol/internal/protocol"
	"tvcontrol/internal/remote"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the player's current status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := connect(protocol.RoleRemote)
		defer s.cancel()

		r := remote.NewRemote(s.ch, s.clock, cfg.Engine)
		go func() { _ = r.Run(s.ctx) }()

		hasStatus := func() bool {
			_, ok := r.Status()
			return ok
		}
		if err := waitActive(cmd, s, r.Updates(), hasStatus); err != nil {
			return err
		}
		st, _ := r.Status()
		printStatus(cmd.OutOrStdout(), st)
		return nil
	},
}

func printStatus(w io.Writer, st protocol.Status) {
	current := "-"
	if st.CurrentID != nil {
		current = *st.CurrentID
	}
	state := "paused"
	if st.IsPlaying {
		state = "playing"
	}
	_, _ = fmt.Fprintf(w, "%-8s %s (#%d)\n", state, current, st.CurrentIndex)
	_, _ = fmt.Fprintf(w, "volume   %d muted=%t\n", st.Volume, st.IsMuted)
	_, _ = fmt.Fprintf(w, "layout   %s shuffle=%t ticker=%t\n", st.LayoutMode, st.IsShuffle, st.ShowTicker)
	printQueue(w, st.Queue)
}

func printQueue(w io.Writer, queue []protocol.QueueEntry) {
	if len(queue) == 0 {
		_, _ = fmt.Fprintln(w, "queue    (empty)")
		return
	}
	entries := make([]string, 0, len(queue))
	for i, e := range queue {
		title := e.Title
		if title == "" {
			title = e.ID
		}
		entries = append(entries, fmt.Sprintf("%d. %s", i+1, title))
	}
	_, _ = fmt.Fprintf(w, "queue    %s\n", strings.Join(entries, ", "))
}
