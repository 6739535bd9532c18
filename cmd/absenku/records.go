package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skariga/absenku/internal/model"
)

var recordsCmd = &cobra.Command{
	Use:     "records",
	Short:   "List attendance records",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := recordFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		resp, err := attendanceClient.ListRecords(context.Background(), filter)
		if err != nil {
			return fmt.Errorf("listing records: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		printRecordList(cmd.OutOrStdout(), resp.Records, resp.Total)
		return nil
	},
}

func recordFilterFromFlags(cmd *cobra.Command) (model.RecordFilter, error) {
	var f model.RecordFilter
	f.UserID, _ = cmd.Flags().GetString("user")
	f.From, _ = cmd.Flags().GetString("from")
	f.To, _ = cmd.Flags().GetString("to")
	f.Sort, _ = cmd.Flags().GetString("sort")
	f.Limit, _ = cmd.Flags().GetInt("limit")
	f.Offset, _ = cmd.Flags().GetInt("offset")
	statuses, _ := cmd.Flags().GetStringSlice("status")
	for _, s := range statuses {
		st := model.Status(s)
		if !st.IsValid() {
			return f, fmt.Errorf("unknown status %q", s)
		}
		f.Status = append(f.Status, st)
	}
	return f, nil
}

func init() {
	recordsCmd.Flags().StringP("user", "u", "", "filter by student ID")
	recordsCmd.Flags().String("from", "", "first date (YYYY-MM-DD)")
	recordsCmd.Flags().String("to", "", "last date (YYYY-MM-DD)")
	recordsCmd.Flags().StringSliceP("status", "s", nil, "filter by check-in status (repeatable)")
	recordsCmd.Flags().String("sort", "-date", "sort field; prefix with - for descending")
	recordsCmd.Flags().Int("limit", 50, "maximum number of records to return")
	recordsCmd.Flags().Int("offset", 0, "offset for pagination")
}
