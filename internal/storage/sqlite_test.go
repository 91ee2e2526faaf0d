package storage

import (
	"path/filepath"
	"testing"

	"github.com/finchmq/finch/pkg/broker"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "finch-test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_TopologyRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveExchange("logs", "topic"); err != nil {
		t.Fatalf("SaveExchange failed: %v", err)
	}
	// Saving twice is idempotent.
	if err := s.SaveExchange("logs", "topic"); err != nil {
		t.Fatalf("Duplicate SaveExchange failed: %v", err)
	}
	if err := s.SaveQueue("audit", true); err != nil {
		t.Fatalf("SaveQueue failed: %v", err)
	}
	if err := s.SaveBinding("audit", "logs", "lazy.#"); err != nil {
		t.Fatalf("SaveBinding failed: %v", err)
	}

	exchanges, err := s.LoadExchanges()
	if err != nil {
		t.Fatalf("LoadExchanges failed: %v", err)
	}
	if exchanges["logs"] != "topic" {
		t.Errorf("Expected logs=topic, got %v", exchanges)
	}

	queues, err := s.LoadQueues()
	if err != nil {
		t.Fatalf("LoadQueues failed: %v", err)
	}
	if len(queues) != 1 || queues[0].Name != "audit" || !queues[0].Durable {
		t.Errorf("Expected one durable audit queue, got %v", queues)
	}

	bindings, err := s.LoadBindings()
	if err != nil {
		t.Fatalf("LoadBindings failed: %v", err)
	}
	if len(bindings) != 1 || bindings[0].Pattern != "lazy.#" {
		t.Errorf("Expected one lazy.# binding, got %v", bindings)
	}
}

func TestStore_MessageOrderPreserved(t *testing.T) {
	s := openTestStore(t)

	for _, id := range []string{"m1", "m2", "m3"} {
		err := s.SaveMessage("work", broker.Message{ID: id, Body: []byte(id), RoutingKey: "k"})
		if err != nil {
			t.Fatalf("SaveMessage(%s) failed: %v", id, err)
		}
	}

	messages, err := s.LoadMessages("work")
	if err != nil {
		t.Fatalf("LoadMessages failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(messages))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if messages[i].ID != want {
			t.Errorf("Expected %s at position %d, got %s", want, i, messages[i].ID)
		}
		if !messages[i].Persistent {
			t.Errorf("Expected loaded message %s to be persistent", messages[i].ID)
		}
	}
}

func TestStore_DeleteAndMarkRedelivered(t *testing.T) {
	s := openTestStore(t)

	s.SaveMessage("work", broker.Message{ID: "m1", Body: []byte("m1"), RoutingKey: "k"})
	s.SaveMessage("work", broker.Message{ID: "m2", Body: []byte("m2"), RoutingKey: "k"})

	if err := s.DeleteMessage("work", "m1"); err != nil {
		t.Fatalf("DeleteMessage failed: %v", err)
	}
	if err := s.MarkRedelivered("work", "m2"); err != nil {
		t.Fatalf("MarkRedelivered failed: %v", err)
	}

	messages, err := s.LoadMessages("work")
	if err != nil {
		t.Fatalf("LoadMessages failed: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != "m2" {
		t.Fatalf("Expected only m2 remaining, got %v", messages)
	}
	if !messages[0].Redelivered {
		t.Error("Expected redelivered flag to survive the round trip")
	}
}

func TestStore_DeleteQueueCascades(t *testing.T) {
	s := openTestStore(t)

	s.SaveQueue("work", true)
	s.SaveExchange("tasks", "direct")
	s.SaveBinding("work", "tasks", "job")
	s.SaveMessage("work", broker.Message{ID: "m1", Body: []byte("m1"), RoutingKey: "job"})

	if err := s.DeleteQueue("work"); err != nil {
		t.Fatalf("DeleteQueue failed: %v", err)
	}

	queues, _ := s.LoadQueues()
	if len(queues) != 0 {
		t.Errorf("Expected no queues, got %v", queues)
	}
	bindings, _ := s.LoadBindings()
	if len(bindings) != 0 {
		t.Errorf("Expected no bindings, got %v", bindings)
	}
	messages, _ := s.LoadMessages("work")
	if len(messages) != 0 {
		t.Errorf("Expected no messages, got %v", messages)
	}
}
