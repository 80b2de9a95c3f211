package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KafClaw/tweetbot/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", version)
	},
}

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query a running bot's /status endpoint",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "host:port of the running bot (default from HOST/PORT)")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	printHeader(out, "📊 tweetbot Status")
	addr := statusAddr
	if addr == "" {
		config.LoadEnvFileCandidates()
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		host := cfg.Server.Host
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "127.0.0.1"
		}
		addr = net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + "/status")
	if err != nil {
		fmt.Fprintln(out, color.RedString("Bot:     ✗ not reachable at %s", addr))
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintln(out, color.RedString("Bot:     ✗ status %d", resp.StatusCode))
		return fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}
	var st map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	fmt.Fprintln(out, color.GreenString("Bot:     ✓ running at %s", addr))
	keys := make([]string, 0, len(st))
	for k := range st {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%-14s %v\n", k+":", st[k])
	}
	return nil
}
