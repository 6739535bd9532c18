package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skariga/absenku/internal/client"
)

var pingCmd = &cobra.Command{
	Use:     "ping <user-id> <latitude> <longitude>",
	Short:   "Send a location update on behalf of a student",
	GroupID: "attendance",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := parsePing(cmd, args[1], args[2])
		if err != nil {
			return err
		}

		res, err := attendanceClient.SendLocation(context.Background(), args[0], req)
		if err != nil {
			return fmt.Errorf("sending location: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), res)
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	},
}

func parsePing(cmd *cobra.Command, lat, lng string) (*client.LocationRequest, error) {
	req := &client.LocationRequest{}
	if _, err := fmt.Sscanf(lat, "%g", &req.Latitude); err != nil {
		return nil, fmt.Errorf("invalid latitude %q", lat)
	}
	if _, err := fmt.Sscanf(lng, "%g", &req.Longitude); err != nil {
		return nil, fmt.Errorf("invalid longitude %q", lng)
	}
	if cmd.Flags().Changed("accuracy") {
		acc, _ := cmd.Flags().GetFloat64("accuracy")
		req.Accuracy = &acc
	}
	req.Live, _ = cmd.Flags().GetBool("live")
	req.Forwarded, _ = cmd.Flags().GetBool("forwarded")
	return req, nil
}

func init() {
	pingCmd.Flags().Float64("accuracy", 0, "reported horizontal accuracy in meters")
	pingCmd.Flags().Bool("live", true, "mark the update as part of a live-location stream")
	pingCmd.Flags().Bool("forwarded", false, "mark the update as forwarded from another chat")
}
