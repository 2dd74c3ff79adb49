// Package queue provides the durable work queues that hand episodes
// between the pipeline stages. Each stage consumes one queue and enqueues
// to the next; a message that is not acknowledged becomes visible again
// after its visibility window, which is how deferrals retry.
package queue

import (
	"context"
	"time"
)

// Message is one received queue item. Receipt identifies this particular
// delivery and is what Ack consumes.
type Message struct {
	ID      string
	Receipt string
	Body    []byte
}

// Queue is a durable FIFO-ish message queue with at-least-once delivery.
//
// A received message stays invisible to other consumers until either Ack
// removes it or the visibility window elapses and it is redelivered.
// Workers acknowledge only the items they fully processed; everything
// else redelivers, which implements the per-item batch failure protocol.
type Queue interface {
	// Send enqueues one message body.
	Send(ctx context.Context, body []byte) error

	// Receive returns up to max messages, long-polling up to wait.
	// It returns an empty slice when the queue is idle.
	Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error)

	// Ack permanently removes a received message.
	Ack(ctx context.Context, msg Message) error
}
