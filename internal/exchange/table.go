package exchange

import (
	"fmt"
	"sync"

	"github.com/finchmq/finch/pkg/broker"
	"github.com/finchmq/finch/pkg/routing"
)

// binding is one queue subscription on an exchange. The parsed pattern is
// kept alongside the original text so topic matching never re-parses.
type binding struct {
	queue   string
	text    string
	pattern routing.Pattern
}

// entry is one declared exchange with its ordered binding list.
type entry struct {
	name     string
	kind     broker.ExchangeKind
	bindings []binding
}

// Table maps exchanges to their bindings and resolves routing keys to
// destination queue sets. It is safe for concurrent use.
type Table struct {
	mu        sync.RWMutex
	exchanges map[string]*entry
}

// NewTable creates an empty exchange table.
func NewTable() *Table {
	return &Table{exchanges: make(map[string]*entry)}
}

// Declare creates an exchange. Redeclaring with the same kind is a no-op;
// a different kind returns broker.ErrKindMismatch. The boolean reports
// whether the exchange was newly created.
func (t *Table) Declare(name string, kind broker.ExchangeKind) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.exchanges[name]; ok {
		if existing.kind != kind {
			return false, fmt.Errorf("%w: %q is %s, requested %s",
				broker.ErrKindMismatch, name, existing.kind, kind)
		}
		return false, nil
	}
	t.exchanges[name] = &entry{name: name, kind: kind}
	return true, nil
}

// Bind subscribes a queue to an exchange under the given pattern text.
// Duplicate (queue, pattern) bindings collapse to one. The boolean reports
// whether a new binding was created.
func (t *Table) Bind(queue, exchangeName, patternText string) (bool, error) {
	pattern, err := routing.ParsePattern(patternText)
	if err != nil {
		return false, fmt.Errorf("invalid binding pattern %q: %w", patternText, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ex, ok := t.exchanges[exchangeName]
	if !ok {
		return false, fmt.Errorf("%w: %q", broker.ErrNoSuchExchange, exchangeName)
	}

	for _, b := range ex.bindings {
		if b.queue == queue && b.text == patternText {
			return false, nil
		}
	}
	ex.bindings = append(ex.bindings, binding{queue: queue, text: patternText, pattern: pattern})
	return true, nil
}

// Unbind removes a binding created by Bind.
func (t *Table) Unbind(queue, exchangeName, patternText string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ex, ok := t.exchanges[exchangeName]
	if !ok {
		return fmt.Errorf("%w: %q", broker.ErrNoSuchExchange, exchangeName)
	}

	for i, b := range ex.bindings {
		if b.queue == queue && b.text == patternText {
			ex.bindings = append(ex.bindings[:i], ex.bindings[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: queue %q, exchange %q, pattern %q",
		broker.ErrNoSuchBinding, queue, exchangeName, patternText)
}

// Route resolves the destination queue set for a routing key. The result is
// deduplicated: a queue matching through several bindings appears once.
// An empty result is not an error; the caller decides whether to drop.
func (t *Table) Route(exchangeName string, key routing.Key) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ex, ok := t.exchanges[exchangeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", broker.ErrNoSuchExchange, exchangeName)
	}

	seen := make(map[string]struct{})
	var queues []string
	for _, b := range ex.bindings {
		if !matches(ex.kind, b, key) {
			continue
		}
		if _, dup := seen[b.queue]; dup {
			continue
		}
		seen[b.queue] = struct{}{}
		queues = append(queues, b.queue)
	}
	return queues, nil
}

// matches applies the kind-specific binding semantics.
func matches(kind broker.ExchangeKind, b binding, key routing.Key) bool {
	switch kind {
	case broker.Fanout:
		return true
	case broker.Direct:
		return b.text == key.String()
	case broker.Topic:
		return b.pattern.Matches(key)
	default:
		return false
	}
}

// DropQueue removes every binding for a queue across all exchanges.
// Used when the queue is deleted.
func (t *Table) DropQueue(queue string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ex := range t.exchanges {
		kept := ex.bindings[:0]
		for _, b := range ex.bindings {
			if b.queue != queue {
				kept = append(kept, b)
			}
		}
		ex.bindings = kept
	}
}

// Info describes one binding for admin listings and persistence.
type Info struct {
	Queue    string
	Exchange string
	Pattern  string
}

// Bindings returns every binding in the table.
func (t *Table) Bindings() []Info {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Info
	for _, ex := range t.exchanges {
		for _, b := range ex.bindings {
			out = append(out, Info{Queue: b.queue, Exchange: ex.name, Pattern: b.text})
		}
	}
	return out
}

// ExchangeCount returns the number of declared exchanges.
func (t *Table) ExchangeCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.exchanges)
}
