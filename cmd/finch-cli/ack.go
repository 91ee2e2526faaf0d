package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newAckCommand() *cobra.Command {
	var (
		queue string
		tag   uint64
	)

	cmd := &cobra.Command{
		Use:   "ack",
		Short: "Acknowledge a delivery",
		Long: `Acknowledge a delivery by its tag, removing the message from the queue
permanently. Acknowledging the same tag twice is an error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := client.Ack(ctx, queue, tag); err != nil {
				return err
			}
			fmt.Printf("✅ Acknowledged delivery %d on queue '%s'\n", tag, queue)
			return nil
		},
	}

	cmd.Flags().StringVar(&queue, "queue", "", "Queue name (required)")
	cmd.Flags().Uint64Var(&tag, "tag", 0, "Delivery tag (required)")
	cmd.MarkFlagRequired("queue")
	cmd.MarkFlagRequired("tag")

	return cmd
}

func newNackCommand() *cobra.Command {
	var (
		queue   string
		tag     uint64
		requeue bool
	)

	cmd := &cobra.Command{
		Use:   "nack",
		Short: "Reject a delivery",
		Long: `Reject a delivery by its tag. With --requeue the message returns to the
front of the queue for redelivery; otherwise it is discarded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := client.Nack(ctx, queue, tag, requeue); err != nil {
				return err
			}
			if requeue {
				fmt.Printf("✅ Rejected delivery %d on queue '%s' (requeued)\n", tag, queue)
			} else {
				fmt.Printf("✅ Rejected delivery %d on queue '%s' (discarded)\n", tag, queue)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&queue, "queue", "", "Queue name (required)")
	cmd.Flags().Uint64Var(&tag, "tag", 0, "Delivery tag (required)")
	cmd.Flags().BoolVar(&requeue, "requeue", false, "Requeue the message instead of discarding it")
	cmd.MarkFlagRequired("queue")
	cmd.MarkFlagRequired("tag")

	return cmd
}
