package cli

import (
	"github.com/spf13/cobra"

	"github.com/tutu-network/aigov/internal/daemon"
	"github.com/tutu-network/aigov/internal/logging"
)

func init() {
	serveCmd.Flags().BoolVar(&serveAPI, "api", false, "Enable the HTTP status API (overrides config)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "Log level (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveAPI      bool
	serveLogLevel string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the governor daemon",
	Long: `Run the control loop and the control socket until SIGINT or SIGTERM.
Exits with status 1 if the config is invalid or the socket cannot be bound.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Override config from flags
	if serveAPI {
		cfg.API.Enabled = true
	}
	if serveLogLevel != "" {
		cfg.Logging.Level = serveLogLevel
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	d, err := daemon.New(cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Serve(cmd.Context())
}
