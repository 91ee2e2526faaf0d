// Package storage persists broker topology and pending messages in SQLite
// so durable queues survive a restart.
package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/finchmq/finch/pkg/broker"
)

// Store handles persistent broker state in SQLite. Only durable queues and
// persistent messages are ever written; transient state stays in memory.
type Store struct {
	db *sql.DB
}

// QueueRecord is one persisted queue declaration.
type QueueRecord struct {
	Name    string
	Durable bool
}

// BindingRecord is one persisted binding.
type BindingRecord struct {
	Queue    string
	Exchange string
	Pattern  string
}

// Open initializes the SQLite database at the given path, creating the
// schema if needed. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS exchanges (
		name TEXT PRIMARY KEY,
		kind TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS queues (
		name TEXT PRIMARY KEY,
		durable INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS bindings (
		queue TEXT NOT NULL,
		exchange TEXT NOT NULL,
		pattern TEXT NOT NULL,
		UNIQUE(queue, exchange, pattern)
	);
	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		queue TEXT NOT NULL,
		body BLOB NOT NULL,
		routing_key TEXT NOT NULL,
		redelivered INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_messages_queue ON messages(queue);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveExchange persists an exchange declaration.
func (s *Store) SaveExchange(name, kind string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO exchanges (name, kind) VALUES (?, ?)", name, kind)
	return err
}

// LoadExchanges returns all persisted exchanges as name -> kind.
func (s *Store) LoadExchanges() (map[string]string, error) {
	rows, err := s.db.Query("SELECT name, kind FROM exchanges")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exchanges := make(map[string]string)
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, err
		}
		exchanges[name] = kind
	}
	return exchanges, rows.Err()
}

// SaveQueue persists a queue declaration.
func (s *Store) SaveQueue(name string, durable bool) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO queues (name, durable) VALUES (?, ?)", name, durable)
	return err
}

// DeleteQueue removes a queue with its bindings and pending messages.
func (s *Store) DeleteQueue(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM messages WHERE queue = ?",
		"DELETE FROM bindings WHERE queue = ?",
		"DELETE FROM queues WHERE name = ?",
	} {
		if _, err := tx.Exec(stmt, name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadQueues returns all persisted queue declarations.
func (s *Store) LoadQueues() ([]QueueRecord, error) {
	rows, err := s.db.Query("SELECT name, durable FROM queues")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queues []QueueRecord
	for rows.Next() {
		var q QueueRecord
		if err := rows.Scan(&q.Name, &q.Durable); err != nil {
			return nil, err
		}
		queues = append(queues, q)
	}
	return queues, rows.Err()
}

// SaveBinding persists a binding.
func (s *Store) SaveBinding(queue, exchange, pattern string) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO bindings (queue, exchange, pattern) VALUES (?, ?, ?)",
		queue, exchange, pattern)
	return err
}

// DeleteBinding removes a binding.
func (s *Store) DeleteBinding(queue, exchange, pattern string) error {
	_, err := s.db.Exec(
		"DELETE FROM bindings WHERE queue = ? AND exchange = ? AND pattern = ?",
		queue, exchange, pattern)
	return err
}

// LoadBindings returns all persisted bindings.
func (s *Store) LoadBindings() ([]BindingRecord, error) {
	rows, err := s.db.Query("SELECT queue, exchange, pattern FROM bindings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []BindingRecord
	for rows.Next() {
		var b BindingRecord
		if err := rows.Scan(&b.Queue, &b.Exchange, &b.Pattern); err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

// SaveMessage persists a pending message for a queue. Insertion order is
// preserved through the seq column, so recovery reproduces the ready FIFO.
func (s *Store) SaveMessage(queue string, m broker.Message) error {
	_, err := s.db.Exec(
		"INSERT INTO messages (id, queue, body, routing_key, redelivered) VALUES (?, ?, ?, ?, ?)",
		m.ID, queue, m.Body, m.RoutingKey, m.Redelivered)
	if err != nil {
		return fmt.Errorf("failed to persist message %s for queue %q: %w", m.ID, queue, err)
	}
	return nil
}

// DeleteMessage removes an acknowledged message.
func (s *Store) DeleteMessage(queue, messageID string) error {
	_, err := s.db.Exec("DELETE FROM messages WHERE queue = ? AND id = ?", queue, messageID)
	return err
}

// MarkRedelivered flags a message that returned to the queue, so the flag
// survives a restart.
func (s *Store) MarkRedelivered(queue, messageID string) error {
	_, err := s.db.Exec(
		"UPDATE messages SET redelivered = 1 WHERE queue = ? AND id = ?", queue, messageID)
	return err
}

// LoadMessages returns a queue's pending messages in insertion order.
func (s *Store) LoadMessages(queue string) ([]broker.Message, error) {
	rows, err := s.db.Query(
		"SELECT id, body, routing_key, redelivered FROM messages WHERE queue = ? ORDER BY seq",
		queue)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []broker.Message
	for rows.Next() {
		m := broker.Message{Persistent: true}
		if err := rows.Scan(&m.ID, &m.Body, &m.RoutingKey, &m.Redelivered); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
