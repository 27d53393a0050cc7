// Command routectl requests bicycle routes from the directions backend and
// inspects the local debug log.
package main

import (
	"fmt"
	"os"

	"bikestreets_backend/platform/config"
	"bikestreets_backend/platform/logger"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "routectl",
		Short: "Request bike routes and inspect the route debug log",
		Long: `routectl talks to the same directions backend and debug log directory as
the API server. Configuration comes from the environment (.env is honored);
flags override it.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("debug-dir", "", "Debug log directory (overrides DEBUG_LOG_DIR)")
	root.PersistentFlags().Bool("verbose", false, "Log to stderr")

	root.AddCommand(newRequestCmd(), newDebugCmd())
	return root
}

// settings resolves configuration for a command: the environment first,
// then flags.
func settings(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if dir, _ := cmd.Flags().GetString("debug-dir"); dir != "" {
		cfg.DebugLogDir = dir
	}

	log := logger.Discard()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		log = logger.NewWithWriter(cfg.Env, cmd.ErrOrStderr())
	}
	return cfg, log, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
