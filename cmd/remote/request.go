package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tvcontrol/internal/contentsvc"
	"tvcontrol/internal/protocol"
	"tvcontrol/internal/remote"
)

func init() {
	rootCmd.AddCommand(requestCmd)
}

var requestCmd = &cobra.Command{
	Use:   "request ID [TITLE...]",
	Short: "Request a content item as the jukebox",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		title := strings.Join(args[1:], " ")

		analytics, err := contentsvc.New(cfg.Content.BaseURL, cfg.Content.Token, cfg.Channel.AccountID, cfg.Engine.RequestTimeout)
		if err != nil {
			return err
		}

		s := connect(protocol.RoleJukebox)
		defer s.cancel()

		j := remote.NewJukebox(s.ch, s.clock, cfg.Engine, analytics)
		go func() { _ = j.Run(s.ctx) }()

		if err := waitActive(cmd, s, j.Updates(), j.PlayerActive); err != nil {
			return err
		}
		if err := j.RequestVideo(s.ctx, id, title); err != nil {
			return err
		}
		j.Wait()
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "requested %s\n", id)
		return nil
	},
}
