package cli

import (
	"bytes"
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/e2b-dev/infra/packages/pageinspect/internal/inspect"
	"github.com/e2b-dev/infra/packages/pageinspect/internal/output"
)

func newListCommand(a *app) *cobra.Command {
	var filters inspect.Filters

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every virtual page with its page frame or swap entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Rows are only written once the whole snapshot resolved.
			var buf bytes.Buffer

			for page, err := range a.inspector.List(cmd.Context(), a.pid, filters) {
				if err != nil {
					return fmt.Errorf("list failed: %w", err)
				}

				if err := output.WritePage(&buf, page); err != nil {
					return err
				}
			}

			_, err := buf.WriteTo(cmd.OutOrStdout())

			return err
		},
	}

	cmd.Flags().BoolVarP(&filters.SwappedOnly, "swapped", "s", false, "only pages that are swapped out")
	cmd.Flags().BoolVarP(&filters.PresentOnly, "present", "P", false, "only pages that are present in memory")
	cmd.Flags().BoolVarP(&filters.AnonOnly, "anon", "a", false, "only pages of anonymous regions")

	return cmd
}

func newStatsCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count swapped, present and unmapped pages per backing object",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snapshot, err := a.inspector.Stats(cmd.Context(), a.pid)
			if err != nil {
				return fmt.Errorf("stats failed: %w", err)
			}

			if asJSON {
				return output.WriteStatsJSON(cmd.OutOrStdout(), snapshot)
			}

			swap, err := mem.SwapMemoryWithContext(cmd.Context())
			if err != nil {
				a.logger.Warn("failed to get host swap usage", zap.Error(err))

				swap = nil
			}

			return output.WriteStats(cmd.OutOrStdout(), snapshot, a.config.PageSize, swap)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stats as JSON")

	return cmd
}

func newRangesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ranges",
		Short: "Show the contiguous present and swapped runs of every region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var buf bytes.Buffer

			for r, err := range a.inspector.Ranges(cmd.Context(), a.pid) {
				if err != nil {
					return fmt.Errorf("ranges failed: %w", err)
				}

				if err := output.WriteRanges(&buf, r); err != nil {
					return err
				}
			}

			_, err := buf.WriteTo(cmd.OutOrStdout())

			return err
		},
	}
}
