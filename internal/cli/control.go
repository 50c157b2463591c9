package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tutu-network/aigov/internal/domain"
	"github.com/tutu-network/aigov/internal/ipc"
)

func init() {
	statusCmd.Flags().BoolVar(&statusRaw, "raw", false, "Print the raw STATUS reply")
	rootCmd.AddCommand(statusCmd, modeCmd, triggerCmd)
}

var statusRaw bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show temperature, CPU load and mode of a running daemon",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var modeCmd = &cobra.Command{
	Use:       "mode MODE",
	Short:     "Set the operating mode (AUTO, FULL, LIMITED, OFF)",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"AUTO", "FULL", "LIMITED", "OFF"},
	RunE:      runMode,
}

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Request one inference pass on the next cycle",
	Long: `Request one inference pass on the next cycle. The request does not
bypass the policy: if the current band suspends inference, the trigger is
consumed without running.`,
	Args: cobra.NoArgs,
	RunE: runTrigger,
}

// newClient returns a client for the configured socket and a bounded
// context.
func newClient(cmd *cobra.Command) (*ipc.Client, context.Context, context.CancelFunc, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	return ipc.NewClient(cfg.IPC.SocketPath), ctx, cancel, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, ctx, cancel, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	if statusRaw {
		reply, err := client.Send(ctx, ipc.CommandStatus)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), reply)
		return nil
	}

	s, err := client.Status(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "TEMPERATURE\t%.1f°C\n", s.TemperatureC)
	fmt.Fprintf(w, "CPU LOAD\t%.1f%%\n", s.CPULoadPercent)
	fmt.Fprintf(w, "MODE\t%s\n", s.Mode)
	return w.Flush()
}

func runMode(cmd *cobra.Command, args []string) error {
	m, err := domain.ParseMode(strings.ToUpper(args[0]))
	if err != nil {
		return err
	}

	client, ctx, cancel, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	reply, err := client.SetMode(ctx, m)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), reply)
	return nil
}

func runTrigger(cmd *cobra.Command, args []string) error {
	client, ctx, cancel, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	reply, err := client.Trigger(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), reply)
	return nil
}
