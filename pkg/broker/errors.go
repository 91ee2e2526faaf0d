package broker

import "errors"

var (
	// ErrClosed is returned by all operations on a closed broker
	ErrClosed = errors.New("broker is closed")

	// ErrNoSuchExchange is returned when an operation names an undeclared exchange
	ErrNoSuchExchange = errors.New("exchange does not exist")

	// ErrNoSuchQueue is returned when an operation names an undeclared queue
	ErrNoSuchQueue = errors.New("queue does not exist")

	// ErrNoSuchBinding is returned when unbinding a binding that does not exist
	ErrNoSuchBinding = errors.New("binding does not exist")

	// ErrUnknownTag is returned when acking or nacking a delivery tag that is
	// not in flight. Acking the same tag twice is the usual cause.
	ErrUnknownTag = errors.New("unknown delivery tag")

	// ErrDurabilityMismatch is returned when a queue is redeclared with a
	// different durability flag than the existing queue.
	ErrDurabilityMismatch = errors.New("queue exists with different durability")

	// ErrKindMismatch is returned when an exchange is redeclared with a
	// different kind than the existing exchange.
	ErrKindMismatch = errors.New("exchange exists with different kind")
)
