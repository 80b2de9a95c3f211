package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KafClaw/tweetbot/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot (HTTP receiver, Socket Mode when an app token is set)",
	RunE:  runServe,
}

var serveSignalNotify = signal.NotifyContext

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	setupLogging(cfg.Server.LogLevel, cmd.ErrOrStderr())

	out := cmd.OutOrStdout()
	printHeader(out, "🐦 tweetbot")
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.Trigger.Debug {
		fmt.Fprintln(out, "⚠️  DEBUG_MODE: every message triggers, tweets are only logged")
	}
	fmt.Fprintf(out, "Listening on %s (marker %q, cooldown %s, expiry %s)\n",
		cfg.Server.Addr(), cfg.Trigger.Marker, cfg.Trigger.Cooldown, cfg.Trigger.PostExpiry)
	fmt.Fprintln(out, "Bot running. Press Ctrl+C to stop.")

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := serveSignalNotify(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = a.run(ctx)
	fmt.Fprintln(out, "Shutting down...")
	return err
}
