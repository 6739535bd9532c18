package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rekapCmd = &cobra.Command{
	Use:     "rekap <user-id>",
	Short:   "Show a student's recent attendance",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		recs, err := attendanceClient.History(context.Background(), args[0], limit)
		if err != nil {
			return fmt.Errorf("getting history: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), recs)
		}
		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no attendance recorded yet")
			return nil
		}
		printRecordList(cmd.OutOrStdout(), recs, -1)
		return nil
	},
}

func init() {
	rekapCmd.Flags().Int("limit", 5, "number of days to show (1-100)")
}
