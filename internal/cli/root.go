package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/KafClaw/tweetbot/internal/cli.version=1.2.3"
	version = "0.1.0"
	logo    = "\n" +
		"  _                     _   _           _\n" +
		" | |___      _____  ___| |_| |__   ___ | |_\n" +
		" | __\\ \\ /\\ / / _ \\/ _ \\ __| '_ \\ / _ \\| __|\n" +
		" | |_ \\ V  V /  __/  __/ |_| |_) | (_) | |_\n" +
		"  \\__| \\_/\\_/ \\___|\\___|\\__|_.__/ \\___/ \\__|\n"
)

var rootCmd = &cobra.Command{
	Use:          "tweetbot",
	Short:        "tweetbot - tweet Slack messages after a confirmation click",
	Long:         color.CyanString(logo) + "\nRelays marked Slack messages to Twitter once their author confirms.",
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w, color.CyanString(logo))
	if title != "" {
		fmt.Fprintln(w, title)
		fmt.Fprintln(w, "─────────────────────")
	}
}

// setupLogging installs the default slog logger. Unknown levels fall back to info.
func setupLogging(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
