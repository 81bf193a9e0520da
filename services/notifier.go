package services

import "log"

// NotificationEvent is one fire-and-forget message for external consumers
// (push service, merchant back office). The core never waits on delivery.
type NotificationEvent struct {
	RoutingKey string
	Payload    interface{}
}

// Notifier decouples the transactional core from the message broker: Emit
// never blocks and never fails the calling flow. A worker drains the channel
// and publishes to RabbitMQ.
type Notifier struct {
	events chan NotificationEvent
}

func NewNotifier(buffer int) *Notifier {
	if buffer <= 0 {
		buffer = 256
	}
	return &Notifier{events: make(chan NotificationEvent, buffer)}
}

// Emit queues an event. When the buffer is full the event is dropped and
// logged — losing a notification is acceptable, stalling a redemption is not.
func (n *Notifier) Emit(routingKey string, payload interface{}) {
	select {
	case n.events <- NotificationEvent{RoutingKey: routingKey, Payload: payload}:
	default:
		log.Printf("[Notifier] buffer full, dropping event %s", routingKey)
	}
}

// Events exposes the queue to the dispatch worker.
func (n *Notifier) Events() <-chan NotificationEvent {
	return n.events
}
