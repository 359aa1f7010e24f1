package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus for simulation events.
//
//   - Handlers subscribe by event type within a topic; the default topic is "".
//   - Subscribing to Wildcard receives every event type in that topic.
//   - Delivery is synchronous in the publisher's goroutine, so handlers must
//     be quick and must not publish back into the bus from the tick loop.
//   - Handler errors are joined and returned from Publish.
//   - Metrics are only collected while at least one observer is registered.
type EventBus interface {
	// Publish delivers to subscribers of event.Type() in the default topic.
	Publish(event Event) error
	// PublishToTopic delivers to subscribers of event.Type() in topic.
	PublishToTopic(topic string, event Event) error

	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	SubscribeTopic(topic, eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels sub. A nil sub is a no-op.
	Unsubscribe(sub Subscription) error

	// CreateTopic declares a topic. Repeat declarations are idempotent.
	CreateTopic(name string) error
	Topics() []TopicInfo

	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
	Metrics() Metrics
}

// Wildcard subscribes to every event type.
const Wildcard = "*"

// Event is an immutable message. Tick is the simulation tick that produced it.
type Event interface {
	Type() string
	Source() string
	Tick() uint64
	Timestamp() time.Time
	Data() any
}

type (
	EventHandler func(event Event) error
	// EventFilter reports whether an event should be delivered.
	EventFilter func(event Event) bool
)

// Subscription is a registered handler. Cancel is safe to call repeatedly.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	Cancel() error
}

// Observer is told about every publish. Implementations must return quickly.
type Observer interface {
	OnPublish(topic string, event Event)
	OnDelivered(topic string, event Event, handlers int, err error, took time.Duration)
}

// Metrics counts bus activity while observed.
type Metrics struct {
	Published         uint64 `json:"published"`
	DeliveredHandlers uint64 `json:"delivered_handlers"`
	Errors            uint64 `json:"errors"`
	Subscribers       uint64 `json:"subscribers"`
	Topics            uint64 `json:"topics"`
}

type TopicInfo struct {
	Name       string `json:"name"`
	EventTypes int    `json:"event_types"`
	Subs       int    `json:"subs"`
}
