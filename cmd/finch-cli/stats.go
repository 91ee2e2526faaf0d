package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCommand() *cobra.Command {
	var queue string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			stats, err := client.Stats(ctx, queue)
			if err != nil {
				return err
			}

			fmt.Printf("📊 Queue '%s':\n", stats.Queue)
			fmt.Printf("   Durable: %v\n", stats.Durable)
			fmt.Printf("   Ready: %d\n", stats.Ready)
			fmt.Printf("   Unacked: %d\n", stats.Unacked)
			fmt.Printf("   Consumers: %d\n", stats.Consumers)
			return nil
		},
	}

	cmd.Flags().StringVar(&queue, "queue", "", "Queue name (required)")
	cmd.MarkFlagRequired("queue")

	return cmd
}
