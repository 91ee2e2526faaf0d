package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands (require admin token)",
	}

	cmd.AddCommand(newAdminOverviewCommand())
	return cmd
}

func newAdminOverviewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Show broker-wide statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			ov, err := client.AdminOverview(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("🏦 Broker Overview:\n")
			fmt.Printf("   Exchanges: %d\n", ov.Exchanges)
			fmt.Printf("   Published: %d\n", ov.Published)
			fmt.Printf("   Dropped: %d\n", ov.Dropped)
			fmt.Printf("   Queues: %d\n", len(ov.Queues))
			for _, q := range ov.Queues {
				fmt.Printf("     - %s (durable: %v, ready: %d, unacked: %d, consumers: %d)\n",
					q.Queue, q.Durable, q.Ready, q.Unacked, q.Consumers)
			}
			return nil
		},
	}
}
