package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"tvcontrol/internal/protocol"
	"tvcontrol/internal/remote"
)

func init() {
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send ACTION [ARG]",
	Short: "Send a control command to the player",
	Long: "Send a control command to the player.\n\n" +
		"SET_VOLUME takes a volume (0-100), JUMP_TO an item id and\n" +
		"REMOVE_FROM_QUEUE a queue index starting at 0.",
	Args: cobra.RangeArgs(1, 2),
	ValidArgs: lo.Map(protocol.Actions, func(a protocol.Action, _ int) string {
		return string(a)
	}),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := parseCommand(args)
		if err != nil {
			return err
		}

		s := connect(protocol.RoleRemote)
		defer s.cancel()

		r := remote.NewRemote(s.ch, s.clock, cfg.Engine)
		go func() { _ = r.Run(s.ctx) }()

		if err := waitActive(cmd, s, r.Updates(), r.PlayerActive); err != nil {
			return err
		}
		if err := r.SendAck(s.ctx, payload); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", payload.Action)
		return nil
	},
}

func parseCommand(args []string) (protocol.CommandPayload, error) {
	payload := protocol.CommandPayload{Action: protocol.Action(strings.ToUpper(args[0]))}
	arg, missing := lo.Nth(args, 1)

	switch payload.Action {
	case protocol.ActionSetVolume:
		if missing != nil {
			return payload, fmt.Errorf("%s needs a volume", payload.Action)
		}
		volume, err := strconv.Atoi(arg)
		if err != nil {
			return payload, fmt.Errorf("invalid volume %q: %w", arg, err)
		}
		payload.Volume = &volume
	case protocol.ActionRemoveFromQueue:
		if missing != nil {
			return payload, fmt.Errorf("%s needs an index", payload.Action)
		}
		index, err := strconv.Atoi(arg)
		if err != nil {
			return payload, fmt.Errorf("invalid index %q: %w", arg, err)
		}
		payload.Index = &index
	case protocol.ActionJumpTo:
		payload.ID = arg
	}
	return payload, payload.Validate()
}
