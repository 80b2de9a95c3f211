package cli

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KafClaw/tweetbot/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		config.LoadEnvFileCandidates()
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(cfg.Masked(), "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("Config:  ✗ invalid"))
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Config:  ✓ valid"))
		return nil
	},
}
