package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newPublishCommand() *cobra.Command {
	var (
		exchange   string
		routingKey string
		payload    string
		persistent bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a message through an exchange",
		Long: `Publish a message through an exchange with a routing key. The payload
should be valid JSON. Messages that match no binding are dropped silently.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(exchange, routingKey, payload, persistent)
		},
	}

	cmd.Flags().StringVar(&exchange, "exchange", "", "Exchange to publish through (required)")
	cmd.Flags().StringVar(&routingKey, "routing-key", "", "Dot-delimited routing key (required)")
	cmd.Flags().StringVar(&payload, "payload", "{}", "Message payload as JSON")
	cmd.Flags().BoolVar(&persistent, "persistent", false, "Persist the message on durable queues")
	cmd.MarkFlagRequired("exchange")
	cmd.MarkFlagRequired("routing-key")

	return cmd
}

func runPublish(exchange, routingKey, payloadStr string, persistent bool) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var payload interface{}
	if payloadStr != "" {
		if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
			return fmt.Errorf("invalid JSON payload: %w", err)
		}
	}

	fmt.Printf("Publishing to exchange '%s' with routing key '%s'...\n", exchange, routingKey)

	response, err := client.Publish(ctx, exchange, routingKey, payload, persistent)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	if response.Accepted {
		fmt.Printf("✅ Message published successfully!\n")
	}
	return nil
}
