package exchange

import (
	"errors"
	"testing"

	"github.com/finchmq/finch/pkg/broker"
	"github.com/finchmq/finch/pkg/routing"
)

func mustKey(t *testing.T, s string) routing.Key {
	t.Helper()
	k, err := routing.ParseKey(s)
	if err != nil {
		t.Fatalf("ParseKey(%q) failed: %v", s, err)
	}
	return k
}

func TestTable_TopicRouting(t *testing.T) {
	tbl := NewTable()
	if _, err := tbl.Declare("animals", broker.Topic); err != nil {
		t.Fatalf("Declare failed: %v", err)
	}

	bind := func(queue, pattern string) {
		t.Helper()
		if _, err := tbl.Bind(queue, "animals", pattern); err != nil {
			t.Fatalf("Bind(%q, %q) failed: %v", queue, pattern, err)
		}
	}
	bind("q1", "*.orange.*")
	bind("q2", "*.*.rabbit")
	bind("q2", "lazy.#")

	cases := []struct {
		key  string
		want []string
	}{
		{"quick.orange.rabbit", []string{"q1", "q2"}},
		{"lazy.orange.elephant", []string{"q1", "q2"}},
		{"quick.orange.fox", []string{"q1"}},
		{"lazy.brown.fox", []string{"q2"}},
		{"lazy.pink.rabbit", []string{"q2"}}, // matches two q2 bindings, delivered once
		{"quick.brown.fox", nil},
		{"orange", nil},
		{"quick.orange.male.rabbit", nil},
		{"lazy.orange.male.rabbit", []string{"q2"}},
		{"lazy", []string{"q2"}},
	}
	for _, c := range cases {
		got, err := tbl.Route("animals", mustKey(t, c.key))
		if err != nil {
			t.Fatalf("Route(%q) failed: %v", c.key, err)
		}
		if len(got) != len(c.want) {
			t.Errorf("Route(%q): expected %v, got %v", c.key, c.want, got)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("Route(%q): expected %v, got %v", c.key, c.want, got)
				break
			}
		}
	}
}

func TestTable_DuplicateBindingCollapses(t *testing.T) {
	tbl := NewTable()
	tbl.Declare("logs", broker.Topic)

	created, err := tbl.Bind("q1", "logs", "kern.*")
	if err != nil || !created {
		t.Fatalf("Expected first bind to create, got created=%v err=%v", created, err)
	}
	created, err = tbl.Bind("q1", "logs", "kern.*")
	if err != nil {
		t.Fatalf("Duplicate bind should not error: %v", err)
	}
	if created {
		t.Error("Duplicate bind should not create a second binding")
	}

	queues, err := tbl.Route("logs", mustKey(t, "kern.crit"))
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if len(queues) != 1 {
		t.Errorf("Expected exactly one delivery for duplicate bindings, got %d", len(queues))
	}
}

func TestTable_DirectExchange(t *testing.T) {
	tbl := NewTable()
	tbl.Declare("direct", broker.Direct)
	tbl.Bind("errors", "direct", "error")
	tbl.Bind("all", "direct", "error")
	tbl.Bind("all", "direct", "info")

	queues, err := tbl.Route("direct", mustKey(t, "error"))
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if len(queues) != 2 {
		t.Fatalf("Expected 2 queues for key \"error\", got %v", queues)
	}

	queues, _ = tbl.Route("direct", mustKey(t, "warning"))
	if len(queues) != 0 {
		t.Errorf("Expected no queues for unbound key, got %v", queues)
	}
}

func TestTable_FanoutExchange(t *testing.T) {
	tbl := NewTable()
	tbl.Declare("logs", broker.Fanout)
	tbl.Bind("q1", "logs", "")
	tbl.Bind("q2", "logs", "")

	// Fanout ignores the routing key entirely.
	queues, err := tbl.Route("logs", mustKey(t, "anything.at.all"))
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if len(queues) != 2 {
		t.Errorf("Expected fanout to reach both queues, got %v", queues)
	}
}

func TestTable_DeclareKindConflict(t *testing.T) {
	tbl := NewTable()
	tbl.Declare("ex", broker.Topic)

	if _, err := tbl.Declare("ex", broker.Topic); err != nil {
		t.Errorf("Redeclare with same kind should be a no-op, got %v", err)
	}
	if _, err := tbl.Declare("ex", broker.Fanout); !errors.Is(err, broker.ErrKindMismatch) {
		t.Errorf("Expected ErrKindMismatch, got %v", err)
	}
}

func TestTable_UnknownExchange(t *testing.T) {
	tbl := NewTable()

	if _, err := tbl.Bind("q", "nope", "a.b"); !errors.Is(err, broker.ErrNoSuchExchange) {
		t.Errorf("Expected ErrNoSuchExchange from Bind, got %v", err)
	}
	if _, err := tbl.Route("nope", mustKey(t, "a.b")); !errors.Is(err, broker.ErrNoSuchExchange) {
		t.Errorf("Expected ErrNoSuchExchange from Route, got %v", err)
	}
}

func TestTable_UnbindAndDropQueue(t *testing.T) {
	tbl := NewTable()
	tbl.Declare("ex", broker.Topic)
	tbl.Bind("q1", "ex", "a.*")
	tbl.Bind("q2", "ex", "a.*")

	if err := tbl.Unbind("q1", "ex", "a.*"); err != nil {
		t.Fatalf("Unbind failed: %v", err)
	}
	if err := tbl.Unbind("q1", "ex", "a.*"); !errors.Is(err, broker.ErrNoSuchBinding) {
		t.Errorf("Expected ErrNoSuchBinding on second unbind, got %v", err)
	}

	queues, _ := tbl.Route("ex", mustKey(t, "a.b"))
	if len(queues) != 1 || queues[0] != "q2" {
		t.Errorf("Expected only q2 after unbind, got %v", queues)
	}

	tbl.DropQueue("q2")
	queues, _ = tbl.Route("ex", mustKey(t, "a.b"))
	if len(queues) != 0 {
		t.Errorf("Expected no queues after DropQueue, got %v", queues)
	}
}

func TestTable_InvalidPattern(t *testing.T) {
	tbl := NewTable()
	tbl.Declare("ex", broker.Topic)

	if _, err := tbl.Bind("q", "ex", "a..b"); !errors.Is(err, routing.ErrEmptySegment) {
		t.Errorf("Expected ErrEmptySegment for malformed pattern, got %v", err)
	}
}
