package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newDeclareExchangeCommand() *cobra.Command {
	var (
		name string
		kind string
	)

	cmd := &cobra.Command{
		Use:   "declare-exchange",
		Short: "Declare an exchange",
		Long: `Declare an exchange of the given kind. Declaring an existing exchange
with the same kind is a no-op; a different kind is an error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := client.DeclareExchange(ctx, name, kind); err != nil {
				return err
			}
			fmt.Printf("✅ Exchange '%s' (%s) declared\n", name, kind)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Exchange name (required)")
	cmd.Flags().StringVar(&kind, "kind", "topic", "Exchange kind: direct, fanout or topic")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newDeclareQueueCommand() *cobra.Command {
	var (
		name    string
		durable bool
	)

	cmd := &cobra.Command{
		Use:   "declare-queue",
		Short: "Declare a queue",
		Long: `Declare a queue. Durable queues and their persistent messages survive
a broker restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := client.DeclareQueue(ctx, name, durable); err != nil {
				return err
			}
			fmt.Printf("✅ Queue '%s' declared (durable: %v)\n", name, durable)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Queue name (required)")
	cmd.Flags().BoolVar(&durable, "durable", false, "Survive broker restarts")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newDeleteQueueCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "delete-queue",
		Short: "Delete a queue and its bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := client.DeleteQueue(ctx, name); err != nil {
				return err
			}
			fmt.Printf("✅ Queue '%s' deleted\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Queue name (required)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newBindCommand() *cobra.Command {
	var (
		queue    string
		exchange string
		pattern  string
	)

	cmd := &cobra.Command{
		Use:   "bind",
		Short: "Bind a queue to an exchange",
		Long: `Bind a queue to an exchange under a binding pattern. For topic
exchanges the pattern may use '*' (exactly one segment) and '#'
(zero or more segments), e.g. 'kern.*' or 'lazy.#'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := client.Bind(ctx, queue, exchange, pattern); err != nil {
				return err
			}
			fmt.Printf("✅ Bound queue '%s' to exchange '%s' with pattern '%s'\n", queue, exchange, pattern)
			return nil
		},
	}

	cmd.Flags().StringVar(&queue, "queue", "", "Queue name (required)")
	cmd.Flags().StringVar(&exchange, "exchange", "", "Exchange name (required)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Binding pattern (required)")
	cmd.MarkFlagRequired("queue")
	cmd.MarkFlagRequired("exchange")
	cmd.MarkFlagRequired("pattern")

	return cmd
}

func newUnbindCommand() *cobra.Command {
	var (
		queue    string
		exchange string
		pattern  string
	)

	cmd := &cobra.Command{
		Use:   "unbind",
		Short: "Remove a binding",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := client.Unbind(ctx, queue, exchange, pattern); err != nil {
				return err
			}
			fmt.Printf("✅ Removed binding '%s' from '%s' to '%s'\n", pattern, exchange, queue)
			return nil
		},
	}

	cmd.Flags().StringVar(&queue, "queue", "", "Queue name (required)")
	cmd.Flags().StringVar(&exchange, "exchange", "", "Exchange name (required)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Binding pattern (required)")
	cmd.MarkFlagRequired("queue")
	cmd.MarkFlagRequired("exchange")
	cmd.MarkFlagRequired("pattern")

	return cmd
}
