package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skariga/absenku/internal/idgen"
)

var showCmd = &cobra.Command{
	Use:     "show <record-id>",
	Short:   "Show an attendance record and its events",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if !idgen.IsRecordID(id) {
			return fmt.Errorf("%q is not an attendance record ID (expected %s followed by 12 characters)", id, idgen.RecordPrefix)
		}
		ctx := context.Background()

		rec, err := attendanceClient.GetRecord(ctx, id)
		if err != nil {
			return fmt.Errorf("getting record %s: %w", id, err)
		}
		evts, err := attendanceClient.GetRecordEvents(ctx, id)
		if err != nil {
			return fmt.Errorf("getting events for %s: %w", id, err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{"record": rec, "events": evts})
		}
		printRecord(cmd.OutOrStdout(), rec)
		printEvents(cmd.OutOrStdout(), evts)
		return nil
	},
}
