package broker

import (
	"context"
	"path/filepath"
	"testing"

	brokerpkg "github.com/finchmq/finch/pkg/broker"
)

// Restart recovery: durable queues with persistent messages reproduce the
// identical ready set; everything transient is gone.

func TestNode_DurableStateSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "finch.db")

	n, err := Open(Options{StoragePath: dbPath})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	n.DeclareExchange(ctx, "tasks", brokerpkg.Topic)
	n.DeclareQueue(ctx, "work", true)
	n.Bind(ctx, "work", "tasks", "job.#")

	for _, body := range []string{"j1", "j2", "j3"} {
		if err := n.Publish(ctx, "tasks", "job.new", []byte(body), true); err != nil {
			t.Fatalf("Publish(%s) failed: %v", body, err)
		}
	}

	// Ack the first message so it must NOT come back after restart.
	c, err := n.Consume(ctx, "work", 1)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	d := receive(t, c)
	if string(d.Message.Body) != "j1" {
		t.Fatalf("Expected j1 first, got %q", d.Message.Body)
	}
	if err := n.Ack(ctx, "work", d.Tag); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}
	c.Close()

	if err := n.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Simulated restart from the same database.
	n2, err := Open(Options{StoragePath: dbPath})
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer n2.Close()

	stats, err := n2.Stats(ctx, "work")
	if err != nil {
		t.Fatalf("Stats after restart failed: %v", err)
	}
	if stats.Ready != 2 || stats.Unacked != 0 {
		t.Fatalf("Expected ready=2 unacked=0 after restart, got ready=%d unacked=%d",
			stats.Ready, stats.Unacked)
	}
	if !stats.Durable {
		t.Error("Expected queue to be restored durable")
	}

	// Recovered messages keep their order and routing key.
	c2, err := n2.Consume(ctx, "work", 0)
	if err != nil {
		t.Fatalf("Consume after restart failed: %v", err)
	}
	for _, want := range []string{"j2", "j3"} {
		d := receive(t, c2)
		if string(d.Message.Body) != want {
			t.Errorf("Expected %q preserving order, got %q", want, d.Message.Body)
		}
		if d.Message.RoutingKey != "job.new" {
			t.Errorf("Expected routing key restored, got %q", d.Message.RoutingKey)
		}
		n2.Ack(ctx, "work", d.Tag)
	}

	// The binding survived too: a fresh publish still routes.
	if err := n2.Publish(ctx, "tasks", "job.more", []byte("j4"), true); err != nil {
		t.Fatalf("Publish after restart failed: %v", err)
	}
	d = receive(t, c2)
	if string(d.Message.Body) != "j4" {
		t.Errorf("Expected j4 via restored binding, got %q", d.Message.Body)
	}
	n2.Ack(ctx, "work", d.Tag)
}

func TestNode_TransientStateDoesNotSurviveRestart(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "finch.db")

	n, err := Open(Options{StoragePath: dbPath})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	n.DeclareExchange(ctx, "tasks", brokerpkg.Topic)

	// Non-durable queue: nothing about it is persisted.
	n.DeclareQueue(ctx, "scratch", false)
	n.Bind(ctx, "scratch", "tasks", "#")
	n.Publish(ctx, "tasks", "job.new", []byte("gone"), true)

	// Durable queue with a transient message: the queue survives empty.
	n.DeclareQueue(ctx, "work", true)
	n.Bind(ctx, "work", "tasks", "#")
	n.Publish(ctx, "tasks", "job.other", []byte("transient"), false)

	n.Close()

	n2, err := Open(Options{StoragePath: dbPath})
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer n2.Close()

	if _, err := n2.Stats(ctx, "scratch"); err == nil {
		t.Error("Expected non-durable queue to be gone after restart")
	}

	stats, err := n2.Stats(ctx, "work")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Ready != 0 {
		t.Errorf("Expected transient message lost on restart, got ready=%d", stats.Ready)
	}
}
