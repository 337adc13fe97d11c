// Package publisher declares the notification boundary used to announce job
// outcomes to other services.
package publisher

import "context"

// Publisher sends a JSON-encodable payload to a topic and returns the broker
// message ID. Attributes travel alongside the payload for subscriber filtering.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any, attrs map[string]string) (string, error)
}
