// Package bus declares the narrow interface the core consumes from the
// inbound/outbound message bus collaborator. No concrete network transport
// is implemented here — the bus client library is an external
// collaborator, out of scope for this daemon.
package bus

// Client is the bus surface the daemon depends on.
type Client interface {
	// Subscribe registers interest in a set of topic patterns.
	Subscribe(patterns []string) error
	// Publish sends a JSON payload to topic.
	Publish(topic string, payload []byte) error
	// OnConnect registers a callback fired on (re)connect; the core
	// re-subscribes here, never driving its own reconnect/backoff logic —
	// that is the collaborator's responsibility.
	OnConnect(fn func())
	// OnMessage registers the inbound message callback.
	OnMessage(fn func(topic string, payload []byte))
	// OnError registers a callback for transport-level errors.
	OnError(fn func(err error))
}
