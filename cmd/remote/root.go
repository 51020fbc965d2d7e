package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tvcontrol/internal/channel"
	"tvcontrol/internal/config"
	"tvcontrol/internal/protocol"
)

var cfg *config.Config

func init() {
	rootCmd.PersistentFlags().StringP("url", "u", "", "Hub websocket endpoint, e.g. ws://localhost:8080/ws/channels")
	lo.Must0(viper.BindPFlag("channel.url", rootCmd.PersistentFlags().Lookup("url")))

	rootCmd.PersistentFlags().StringP("account", "a", "", "Account id whose player to control")
	lo.Must0(viper.BindPFlag("channel.account_id", rootCmd.PersistentFlags().Lookup("account")))

	rootCmd.PersistentFlags().DurationP("wait", "w", 10*time.Second, "How long to wait for the player to show up")
}

var rootCmd = &cobra.Command{
	Use:           "tvremote",
	Short:         "Control a signage player over its control channel",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// session is one subscription of a client role to the account's topic.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	ch     *channel.Client
	clock  clock.Clock
}

func connect(role protocol.Role) *session {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ch := channel.New(channel.Options{
		URL:   cfg.Channel.URL,
		Topic: protocol.Topic(cfg.Channel.AccountID),
		Role:  role,
	})
	go func() { _ = ch.Run(ctx) }()
	return &session{ctx: ctx, cancel: cancel, ch: ch, clock: clock.New()}
}

// waitActive blocks until active reports true or the --wait deadline passes.
func waitActive(cmd *cobra.Command, s *session, updates <-chan struct{}, active func() bool) error {
	timeout := lo.Must(cmd.Flags().GetDuration("wait"))
	deadline := time.After(timeout)
	for !active() {
		select {
		case <-updates:
		case <-deadline:
			return fmt.Errorf("player inactive: nothing heard on %s within %s", protocol.Topic(cfg.Channel.AccountID), timeout)
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
