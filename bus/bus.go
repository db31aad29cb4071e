// Package bus implements the topic-addressed publish/subscribe channel
// connecting all agents. Delivery is synchronous: every current subscriber of
// a topic receives the message, in subscription order, before Publish
// returns. Subscribe/Unsubscribe must only be called between turns, never
// mid-delivery; the subscriber set is stable for the duration of one publish.
package bus

import (
	"sync"

	"github.com/forgeworks/devsquad/core"
	"github.com/forgeworks/devsquad/logging"
)

// Subscriber receives messages published to a subscribed topic. OnMessage is
// invoked synchronously from Publish and must not publish to the same topic
// re-entrantly.
type Subscriber interface {
	OnMessage(msg core.Message)
}

// SubscriberFunc adapts a plain function to the Subscriber interface. Each
// call yields a distinct subscriber identity, so the returned value must be
// retained to Unsubscribe later.
func SubscriberFunc(fn func(msg core.Message)) Subscriber {
	return &funcSubscriber{fn: fn}
}

type funcSubscriber struct {
	fn func(msg core.Message)
}

func (f *funcSubscriber) OnMessage(msg core.Message) { f.fn(msg) }

// Bus is an in-process event bus with per-topic ordered logs. No message is
// dropped; a subscriber added after message M is published never receives M.
type Bus struct {
	mu     sync.Mutex
	logs   map[string][]core.Message
	subs   map[string][]Subscriber
	logger logging.Logger
}

// Options configures a Bus.
type Options struct {
	Logger logging.Logger
}

// New creates an empty bus.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bus{
		logs:   make(map[string][]core.Message),
		subs:   make(map[string][]Subscriber),
		logger: opts.Logger,
	}
}

// WithLogger sets the structured logger used for delivery diagnostics.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Publish appends the message to the topic's ordered log and delivers it to
// every current subscriber before returning. Each subscriber receives the
// message exactly once.
func (b *Bus) Publish(topic string, msg core.Message) {
	b.mu.Lock()
	b.logs[topic] = append(b.logs[topic], msg)
	// Copy the subscriber set so it stays stable for this delivery even if
	// a between-turns Subscribe races the tail of the fan-out.
	subs := make([]Subscriber, len(b.subs[topic]))
	copy(subs, b.subs[topic])
	b.mu.Unlock()

	for _, s := range subs {
		s.OnMessage(msg)
	}
	b.logger.Debug("bus delivered message",
		"topic", topic, "message_id", msg.ID, "kind", string(msg.Kind), "subscribers", len(subs))
}

// Subscribe registers a subscriber for a topic. Duplicate registration of the
// same subscriber is a caller defect and is ignored.
func (b *Bus) Subscribe(topic string, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.subs[topic] {
		if existing == s {
			return
		}
	}
	b.subs[topic] = append(b.subs[topic], s)
}

// Unsubscribe removes a subscriber from a topic. Unknown subscribers are a
// no-op.
func (b *Bus) Unsubscribe(topic string, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[topic]
	for i, existing := range subs {
		if existing == s {
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// History returns a copy of the topic's ordered message log.
func (b *Bus) History(topic string) []core.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	log := b.logs[topic]
	out := make([]core.Message, len(log))
	copy(out, log)
	return out
}
