// Package main is the entry point for the tweetbot CLI.
package main

import (
	"os"

	"github.com/KafClaw/tweetbot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
