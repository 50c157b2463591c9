// Package cli implements the aigov command-line interface using Cobra.
// serve runs the daemon; status, mode and trigger talk to a running daemon
// over its control socket.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tutu-network/aigov/internal/daemon"
)

var (
	configPath string
	socketPath string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "aigov",
	Short: "Thermal and CPU aware inference governor",
	Long: `aigov decides, once per control cycle, whether and how hard to run an
on-device inference workload based on SoC temperature and CPU load.

Operators override the policy or request a one-shot run over a local
Unix socket.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $AIGOV_HOME/config.toml)")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Control socket path (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "Timeout for control socket requests")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (daemon.Config, error) {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	if socketPath != "" {
		cfg.IPC.SocketPath = socketPath
	}
	return cfg, nil
}
