package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nettally/nettally/pkg/cli"
	"github.com/nettally/nettally/pkg/export"
	"github.com/nettally/nettally/pkg/history"
)

func newHistoryCmd() *cobra.Command {
	var (
		operation string
		status    string
		limit     int
		offset    int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := history.Open(cfg.historyPath(), history.DefaultCap)
			if err != nil {
				return err
			}
			entries, total := hist.List(history.Filter{Operation: operation, Status: status}, limit, offset)
			if outputFmt == "json" {
				return export.WriteJSON(cmd.OutOrStdout(), entries)
			}

			tb := cli.NewTable("When", "Operation", "Status", "Devices", "Duration", "Error")
			for _, e := range entries {
				tb.Row(
					e.Timestamp.Format("2006-01-02 15:04:05"),
					e.Operation,
					cli.StatusColor(e.Status),
					fmt.Sprint(e.DeviceCount),
					fmt.Sprintf("%dms", e.DurationMS),
					e.Error,
				)
			}
			tb.Flush()
			fmt.Printf("%d of %d entries\n", len(entries), total)
			return nil
		},
	}
	cmd.Flags().StringVar(&operation, "operation", "", "filter by operation")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (success, partial, error)")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")

	cmd.AddCommand(newHistoryStatsCmd(), newHistoryClearCmd())
	return cmd
}

func newHistoryStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Aggregate history counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := history.Open(cfg.historyPath(), history.DefaultCap)
			if err != nil {
				return err
			}
			stats := hist.Stats()
			if outputFmt == "json" {
				return export.WriteJSON(cmd.OutOrStdout(), stats)
			}
			fmt.Printf("total %d, last 24h %d\n", stats.Total, stats.Last24h)
			for status, n := range stats.ByStatus {
				fmt.Printf("  %s: %d\n", cli.StatusColor(status), n)
			}
			for op, n := range stats.ByOperation {
				fmt.Printf("  %s: %d\n", op, n)
			}
			return nil
		},
	}
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all history entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := history.Open(cfg.historyPath(), history.DefaultCap)
			if err != nil {
				return err
			}
			return hist.Clear()
		},
	}
}
