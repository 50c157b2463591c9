package cli

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/tutu-network/aigov/internal/daemon"
)

func init() {
	configCmd.Flags().BoolVar(&configWrite, "write", false, "Write the effective config to the config file")
	rootCmd.AddCommand(configCmd)
}

var configWrite bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if configWrite {
		path := configPath
		if path == "" {
			path = daemon.DefaultConfigPath()
		}
		if err := daemon.SaveConfig(cfg, path); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	}

	return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
}
