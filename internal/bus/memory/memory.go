// Package memory provides an in-process fake bus.Client that delivers
// messages by direct synchronous callback, used by tests and by cmd/pixeld,
// which wires no real broker, following the shape of an in-process bus test
// double (a bus integration fake).
package memory

import (
	"strings"
	"sync"
)

// Bus is an in-process pub/sub fake satisfying bus.Client. Publish calls the
// single OnMessage callback synchronously, once, when any subscribed pattern
// matches the topic. A pattern ending in "*" matches every topic that starts
// with the text before the "*"; any other pattern must equal the topic.
type Bus struct {
	mu         sync.Mutex
	patterns   []string
	onMessage  func(topic string, payload []byte)
	onConnect  func()
	onErr      func(error)
	connected  bool
}

// New returns a Bus ready to accept Subscribe/Publish calls.
func New() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(patterns []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.patterns = append(b.patterns, patterns...)
	return nil
}

func (b *Bus) Publish(topic string, payload []byte) error {
	b.mu.Lock()
	patterns := append([]string(nil), b.patterns...)
	cb := b.onMessage
	b.mu.Unlock()

	if cb == nil {
		return nil
	}
	for _, p := range patterns {
		if matchTopic(p, topic) {
			cb(topic, payload)
			return nil
		}
	}
	return nil
}

func (b *Bus) OnConnect(fn func()) {
	b.mu.Lock()
	b.onConnect = fn
	already := b.connected
	b.mu.Unlock()
	if already && fn != nil {
		fn()
	}
}

func (b *Bus) OnMessage(fn func(topic string, payload []byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onMessage = fn
}

func (b *Bus) OnError(fn func(error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onErr = fn
}

// Connect simulates the transport becoming available, firing OnConnect.
func (b *Bus) Connect() {
	b.mu.Lock()
	b.connected = true
	cb := b.onConnect
	b.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Inject delivers a message directly to subscribers, bypassing Publish's
// pattern filter — used by tests to simulate an inbound command regardless
// of what the daemon has subscribed to.
func (b *Bus) Inject(topic string, payload []byte) {
	b.mu.Lock()
	cb := b.onMessage
	b.mu.Unlock()
	if cb != nil {
		cb(topic, payload)
	}
}

func matchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(topic, prefix)
	}
	return false
}
