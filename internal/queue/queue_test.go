package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/finchmq/finch/pkg/broker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	q := New(Config{Name: "test"})
	t.Cleanup(func() { q.Close() })
	return q
}

func msg(body string) broker.Message {
	return broker.Message{ID: body, Body: []byte(body), RoutingKey: "k"}
}

// receive reads one delivery or fails the test after a timeout.
func receive(t *testing.T, c *Consumer) broker.Delivery {
	t.Helper()
	select {
	case d, ok := <-c.Deliveries():
		if !ok {
			t.Fatal("Delivery channel closed unexpectedly")
		}
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for delivery")
	}
	panic("unreachable")
}

// expectNone asserts no delivery arrives within the window.
func expectNone(t *testing.T, c *Consumer) {
	t.Helper()
	select {
	case d := <-c.Deliveries():
		t.Fatalf("Expected no delivery, got tag %d body %q", d.Tag, d.Message.Body)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestQueue_FIFODelivery(t *testing.T) {
	q := newTestQueue(t)
	c, err := q.AddConsumer("c1", 0)
	if err != nil {
		t.Fatalf("AddConsumer failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := q.Enqueue(msg(fmt.Sprintf("m%d", i))); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		d := receive(t, c)
		want := fmt.Sprintf("m%d", i)
		if string(d.Message.Body) != want {
			t.Errorf("Expected %q in FIFO order, got %q", want, d.Message.Body)
		}
		if err := q.Ack(d.Tag); err != nil {
			t.Errorf("Ack failed: %v", err)
		}
	}
}

func TestQueue_AckRemovesPermanently(t *testing.T) {
	q := newTestQueue(t)
	c, _ := q.AddConsumer("c1", 0)
	q.Enqueue(msg("m1"))

	d := receive(t, c)
	if err := q.Ack(d.Tag); err != nil {
		t.Fatalf("First ack failed: %v", err)
	}

	// Acking the same tag again is a protocol error, not a silent no-op.
	if err := q.Ack(d.Tag); !errors.Is(err, broker.ErrUnknownTag) {
		t.Errorf("Expected ErrUnknownTag on duplicate ack, got %v", err)
	}

	stats := q.Stats()
	if stats.Ready != 0 || stats.Unacked != 0 {
		t.Errorf("Expected empty queue after ack, got ready=%d unacked=%d", stats.Ready, stats.Unacked)
	}
}

func TestQueue_UnknownTag(t *testing.T) {
	q := newTestQueue(t)
	if err := q.Ack(42); !errors.Is(err, broker.ErrUnknownTag) {
		t.Errorf("Expected ErrUnknownTag, got %v", err)
	}
	if err := q.Nack(42, true); !errors.Is(err, broker.ErrUnknownTag) {
		t.Errorf("Expected ErrUnknownTag, got %v", err)
	}
}

func TestQueue_PrefetchLimit(t *testing.T) {
	q := newTestQueue(t)
	c, _ := q.AddConsumer("c1", 1)

	q.Enqueue(msg("m1"))
	q.Enqueue(msg("m2"))

	d1 := receive(t, c)
	if string(d1.Message.Body) != "m1" {
		t.Fatalf("Expected m1 first, got %q", d1.Message.Body)
	}

	// With prefetch=1 the second message must wait for the ack.
	expectNone(t, c)
	stats := q.Stats()
	if stats.Ready != 1 || stats.Unacked != 1 {
		t.Errorf("Expected ready=1 unacked=1 at prefetch limit, got ready=%d unacked=%d",
			stats.Ready, stats.Unacked)
	}

	if err := q.Ack(d1.Tag); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}
	d2 := receive(t, c)
	if string(d2.Message.Body) != "m2" {
		t.Errorf("Expected m2 after ack, got %q", d2.Message.Body)
	}
	q.Ack(d2.Tag)
}

func TestQueue_FairDispatchSkipsBusyConsumer(t *testing.T) {
	q := newTestQueue(t)
	c1, _ := q.AddConsumer("c1", 1)
	c2, _ := q.AddConsumer("c2", 1)

	q.Enqueue(msg("m1"))
	q.Enqueue(msg("m2"))
	q.Enqueue(msg("m3"))

	// Round robin: c1 and c2 each get one; m3 waits.
	d1 := receive(t, c1)
	d2 := receive(t, c2)
	expectNone(t, c1)
	expectNone(t, c2)

	// c2 acks first, so m3 must go to c2 even though c1 is "next" by
	// modulo order: busy consumers are skipped, idle ones served.
	if err := q.Nack(d2.Tag, false); err != nil {
		t.Fatalf("Nack failed: %v", err)
	}
	d3 := receive(t, c2)
	if string(d3.Message.Body) != "m3" {
		t.Errorf("Expected m3 dispatched to idle consumer, got %q", d3.Message.Body)
	}

	q.Ack(d1.Tag)
	q.Ack(d3.Tag)
}

func TestQueue_NackRequeuesAtFront(t *testing.T) {
	q := newTestQueue(t)
	c, _ := q.AddConsumer("c1", 1)

	q.Enqueue(msg("m1"))
	q.Enqueue(msg("m2"))

	d1 := receive(t, c)
	if err := q.Nack(d1.Tag, true); err != nil {
		t.Fatalf("Nack failed: %v", err)
	}

	// m1 went to the front, so it is redelivered before m2.
	d := receive(t, c)
	if string(d.Message.Body) != "m1" {
		t.Errorf("Expected requeued m1 before m2, got %q", d.Message.Body)
	}
	if !d.Message.Redelivered {
		t.Error("Expected redelivered flag on requeued message")
	}
	if d.Tag == d1.Tag {
		t.Error("Expected a fresh delivery tag on redelivery")
	}
	q.Ack(d.Tag)
	d = receive(t, c)
	if string(d.Message.Body) != "m2" {
		t.Errorf("Expected m2 after requeued m1, got %q", d.Message.Body)
	}
	q.Ack(d.Tag)
}

func TestQueue_NackWithoutRequeueDiscards(t *testing.T) {
	var dead []string
	q := New(Config{Name: "test", Hooks: Hooks{
		OnDead: func(m broker.Message) { dead = append(dead, string(m.Body)) },
	}})
	defer q.Close()

	c, _ := q.AddConsumer("c1", 0)
	q.Enqueue(msg("m1"))

	d := receive(t, c)
	if err := q.Nack(d.Tag, false); err != nil {
		t.Fatalf("Nack failed: %v", err)
	}

	stats := q.Stats()
	if stats.Ready != 0 || stats.Unacked != 0 {
		t.Errorf("Expected empty queue after discard, got ready=%d unacked=%d", stats.Ready, stats.Unacked)
	}
	if len(dead) != 1 || dead[0] != "m1" {
		t.Errorf("Expected dead hook for m1, got %v", dead)
	}
}

func TestQueue_DisconnectRequeuesInOrder(t *testing.T) {
	q := newTestQueue(t)
	c1, _ := q.AddConsumer("c1", 0)

	for i := 0; i < 4; i++ {
		q.Enqueue(msg(fmt.Sprintf("m%d", i)))
	}

	// c1 holds three deliveries unacked and acks one.
	var held []broker.Delivery
	for i := 0; i < 4; i++ {
		held = append(held, receive(t, c1))
	}
	if err := q.Ack(held[1].Tag); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}

	// Disconnect: exactly the three unacked messages become ready again,
	// in their original relative order.
	if err := c1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	stats := q.Stats()
	if stats.Ready != 3 || stats.Unacked != 0 {
		t.Fatalf("Expected ready=3 unacked=0 after disconnect, got ready=%d unacked=%d",
			stats.Ready, stats.Unacked)
	}

	c2, _ := q.AddConsumer("c2", 0)
	for _, want := range []string{"m0", "m2", "m3"} {
		d := receive(t, c2)
		if string(d.Message.Body) != want {
			t.Errorf("Expected %q preserving original order, got %q", want, d.Message.Body)
		}
		if !d.Message.Redelivered {
			t.Errorf("Expected redelivered flag on %q", d.Message.Body)
		}
		q.Ack(d.Tag)
	}
}

func TestQueue_RedeliveryCap(t *testing.T) {
	var dead []string
	q := New(Config{Name: "test", MaxRedeliveries: 2, Hooks: Hooks{
		OnDead: func(m broker.Message) { dead = append(dead, string(m.Body)) },
	}})
	defer q.Close()

	c, _ := q.AddConsumer("c1", 0)
	q.Enqueue(msg("poison"))

	// Two redeliveries pass, the third attempt goes dead.
	for i := 0; i < 3; i++ {
		d := receive(t, c)
		if err := q.Nack(d.Tag, true); err != nil {
			t.Fatalf("Nack %d failed: %v", i, err)
		}
	}

	expectNone(t, c)
	if len(dead) != 1 || dead[0] != "poison" {
		t.Errorf("Expected poison message dead after cap, got %v", dead)
	}
	if stats := q.Stats(); stats.Ready != 0 || stats.Unacked != 0 {
		t.Errorf("Expected empty queue, got ready=%d unacked=%d", stats.Ready, stats.Unacked)
	}
}

func TestQueue_AckHookFires(t *testing.T) {
	var acked []string
	q := New(Config{Name: "test", Hooks: Hooks{
		OnAck: func(m broker.Message) { acked = append(acked, string(m.Body)) },
	}})
	defer q.Close()

	c, _ := q.AddConsumer("c1", 0)
	q.Enqueue(msg("m1"))
	d := receive(t, c)
	q.Ack(d.Tag)

	if len(acked) != 1 || acked[0] != "m1" {
		t.Errorf("Expected ack hook for m1, got %v", acked)
	}
}

func TestQueue_ClosedQueueRejectsOperations(t *testing.T) {
	q := New(Config{Name: "test"})
	c, _ := q.AddConsumer("c1", 0)
	q.Close()

	if err := q.Enqueue(msg("m1")); !errors.Is(err, broker.ErrClosed) {
		t.Errorf("Expected ErrClosed from Enqueue, got %v", err)
	}
	if _, err := q.AddConsumer("c2", 0); !errors.Is(err, broker.ErrClosed) {
		t.Errorf("Expected ErrClosed from AddConsumer, got %v", err)
	}

	// The consumer's delivery channel closes on queue shutdown.
	select {
	case _, ok := <-c.Deliveries():
		if ok {
			t.Error("Expected delivery channel to close")
		}
	case <-time.After(2 * time.Second):
		t.Error("Timed out waiting for delivery channel to close")
	}
}
