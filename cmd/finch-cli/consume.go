package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/finchmq/finch/pkg/httpclient"
	"github.com/spf13/cobra"
)

func newConsumeCommand() *cobra.Command {
	var (
		queue        string
		prefetch     int
		autoAck      bool
		prettyFormat bool
	)

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Consume messages from a queue in real-time",
		Long: `Consume messages from a queue using Server-Sent Events. With --auto-ack
each delivery is acknowledged as soon as it is printed; otherwise use
'finch-cli ack' with the printed delivery tag. Press Ctrl+C to stop;
unacknowledged messages are requeued at the front of the queue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsume(queue, prefetch, autoAck, prettyFormat)
		},
	}

	cmd.Flags().StringVar(&queue, "queue", "", "Queue to consume from (required)")
	cmd.Flags().IntVar(&prefetch, "prefetch", 0, "Max unacknowledged deliveries in flight (0 = unlimited)")
	cmd.Flags().BoolVar(&autoAck, "auto-ack", false, "Acknowledge deliveries automatically")
	cmd.Flags().BoolVar(&prettyFormat, "pretty", false, "Pretty print JSON payloads")
	cmd.MarkFlagRequired("queue")

	return cmd
}

func runConsume(queue string, prefetch int, autoAck, prettyFormat bool) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\n🛑 Stopping consumer...")
		cancel()
	}()

	config := httpclient.StreamConfig{
		Prefetch:             prefetch,
		MaxReconnectAttempts: 0, // Infinite retries
	}

	fmt.Printf("🌊 Consuming queue '%s' from %s", queue, serverURL)
	if prefetch > 0 {
		fmt.Printf(" (prefetch: %d)", prefetch)
	}
	fmt.Println("...")
	fmt.Println("Press Ctrl+C to stop")

	stream, err := client.Consume(ctx, queue, config)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			fmt.Printf("Warning: failed to close stream: %v\n", err)
		}
	}()

	count := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n✅ Consumer stopped. Received %d messages.\n", count)
			return nil

		case d, ok := <-stream.Deliveries():
			if !ok {
				fmt.Printf("\n🔌 Delivery stream closed. Received %d messages.\n", count)
				return nil
			}

			count++
			printDelivery(d, count, prettyFormat)

			if autoAck {
				if err := client.Ack(ctx, queue, d.DeliveryTag); err != nil {
					fmt.Printf("❌ Failed to ack delivery %d: %v\n", d.DeliveryTag, err)
				}
			}

		case err, ok := <-stream.Errors():
			if !ok {
				fmt.Printf("\n🔌 Error stream closed. Received %d messages.\n", count)
				return nil
			}
			fmt.Printf("❌ Stream error: %v\n", err)
			// Continue processing - errors are non-fatal for reconnection scenarios

		case <-stream.Done():
			fmt.Printf("\n🔌 Stream finished. Received %d messages.\n", count)
			return nil
		}
	}
}

func printDelivery(d httpclient.Delivery, count int, pretty bool) {
	fmt.Printf("📨 Delivery #%d:\n", count)
	fmt.Printf("   Tag: %d\n", d.DeliveryTag)
	fmt.Printf("   Queue: %s\n", d.Queue)
	fmt.Printf("   Routing Key: %s\n", d.RoutingKey)
	if d.Redelivered {
		fmt.Printf("   Redelivered: true\n")
	}

	if len(d.Payload) > 0 {
		fmt.Printf("   Payload: ")
		if pretty {
			var buf interface{}
			if err := json.Unmarshal(d.Payload, &buf); err == nil {
				if jsonBytes, err := json.MarshalIndent(buf, "            ", "  "); err == nil {
					fmt.Printf("\n            %s\n", string(jsonBytes))
					fmt.Println()
					return
				}
			}
		}
		fmt.Printf("%s\n", string(d.Payload))
	} else {
		fmt.Printf("   Payload: null\n")
	}
	fmt.Println()
}
