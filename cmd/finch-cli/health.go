package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check broker health",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			health, err := client.GetHealth(ctx)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			status := "✅ Healthy"
			if !health.Healthy {
				status = "❌ Unhealthy"
			}
			fmt.Printf("Broker Health: %s\n", status)
			fmt.Printf("  Exchanges: %d\n", health.Exchanges)
			fmt.Printf("  Queues: %d\n", health.Queues)
			fmt.Printf("  Message: %s\n", health.Message)
			return nil
		},
	}
}
