package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skariga/absenku/internal/client"
	"github.com/skariga/absenku/internal/server"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the absenku service",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		var checker client.HealthChecker = attendanceClient
		switch transport {
		case "http":
		case "grpc":
			c, err := client.NewGRPCClient(grpcAddr, server.ServiceName, authToken)
			if err != nil {
				return fmt.Errorf("failed to connect to server: %w", err)
			}
			defer c.Close()
			checker = c
		default:
			return fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		status, err := checker.Health(ctx)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), map[string]string{"status": status}); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Health: %s\n", status)
		}

		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}
