package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"bikestreets_backend/internal/debuglog"
	"bikestreets_backend/platform/apperr"

	"github.com/spf13/cobra"
)

func newDebugCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Inspect and prune the route debug log",
	}
	cmd.AddCommand(newDebugListCmd(), newDebugCleanupCmd())
	return cmd
}

func newDebugListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded routes, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := settings(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			items, err := debuglog.NewStore(cfg, log).List(ctx)
			if err != nil && !apperr.Is(err, apperr.KindDecodeFailure) {
				return err
			}
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
			}

			rows := debuglog.Rows(items)
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TITLE\tDISTANCE\tDURATION\tFILE")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%.0f m\t%.0f s\t%s\n", r.Title, r.Distance, r.Duration, r.Path)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Bool("json", false, "Print rows as JSON")
	return cmd
}

func newDebugCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove debug log entries older than the retention horizon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := settings(cmd)
			if err != nil {
				return err
			}
			maxAge, _ := cmd.Flags().GetDuration("max-age")
			if maxAge < 0 {
				return fmt.Errorf("--max-age must not be negative")
			}

			removed := debuglog.NewStore(cfg, log).Cleanup(maxAge)
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
			return nil
		},
	}
	cmd.Flags().Duration("max-age", 0, "Retention horizon, e.g. 72h (default DEBUG_LOG_MAX_AGE)")
	return cmd
}
