package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skariga/absenku/internal/model"
)

var intentCmd = &cobra.Command{
	Use:     "intent <user-id> <check-in|check-out>",
	Short:   "Choose the direction of the student's next live location",
	GroupID: "attendance",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := model.ParseDirection(args[1])
		if err != nil {
			return err
		}
		text, err := attendanceClient.SetIntent(context.Background(), args[0], dir)
		if err != nil {
			return fmt.Errorf("setting intent: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]string{"direction": string(dir), "notification": text})
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}
