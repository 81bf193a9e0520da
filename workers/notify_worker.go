package workers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"mileage-redemption-system/services"

	"github.com/rabbitmq/amqp091-go"
)

// NotifyWorker drains the notifier queue and publishes each event to a
// RabbitMQ topic exchange. Delivery is fire-and-forget: publish failures are
// logged and the event dropped, the transactional core never waits on it.
type NotifyWorker struct {
	notifier *services.Notifier
	url      string
	exchange string

	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewNotifyWorker(notifier *services.Notifier, amqpURL, exchange string) *NotifyWorker {
	return &NotifyWorker{notifier: notifier, url: amqpURL, exchange: exchange}
}

// Run consumes events until the context is cancelled. The broker connection
// is re-attempted lazily on each publish after a failure.
func (w *NotifyWorker) Run(ctx context.Context) {
	defer w.close()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Notify] worker stopping")
			return
		case event := <-w.notifier.Events():
			if err := w.publish(ctx, event); err != nil {
				log.Printf("[Notify] dropped event %s: %v", event.RoutingKey, err)
				w.close()
			}
		}
	}
}

func (w *NotifyWorker) publish(ctx context.Context, event services.NotificationEvent) error {
	if err := w.ensureChannel(); err != nil {
		return err
	}

	body, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return w.channel.PublishWithContext(
		pubCtx,
		w.exchange,
		event.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
}

func (w *NotifyWorker) ensureChannel() error {
	if w.channel != nil && !w.conn.IsClosed() {
		return nil
	}

	conn, err := amqp091.Dial(w.url)
	if err != nil {
		return err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := channel.ExchangeDeclare(
		w.exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return err
	}

	w.conn = conn
	w.channel = channel
	return nil
}

func (w *NotifyWorker) close() {
	if w.channel != nil {
		_ = w.channel.Close()
		w.channel = nil
	}
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
}
