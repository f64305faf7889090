// Package publisher defines the outbound event boundary. The pipeline emits
// one run-summary event per completed run so downstream consumers can react
// without polling the database.
package publisher

import "context"

// Publisher sends one payload to a topic and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// NoOp drops events. Used when no publisher is configured.
type NoOp struct{}

// Publish for NoOp does nothing and returns a dummy ID.
func (NoOp) Publish(_ context.Context, _ string, _ any) (string, error) {
	return "noop", nil
}
