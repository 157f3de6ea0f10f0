package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// Publisher implements ports.Delivery by publishing a TicketsIssuedEvent.
// It dials per publish; deliveries are rare compared to reads and this
// keeps the publisher free of reconnect state.
type Publisher struct {
	url    string
	logger *logrus.Logger
	now    func() time.Time
}

// NewPublisher returns a Publisher for the broker at url.  Nothing is
// dialed until the first Deliver.
func NewPublisher(url string, logger *logrus.Logger) *Publisher {
	return &Publisher{url: url, logger: logger, now: time.Now}
}

// Deliver publishes the tickets of a paid order. Errors are logged and
// returned so the caller can report a failed delivery.
func (p *Publisher) Deliver(ctx context.Context, order model.Order, tickets []model.Ticket) error {
	ev := NewTicketsIssuedEvent(order, tickets, p.now())
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	log := p.logger.WithContext(ctx).WithField("order_id", order.ID)

	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.WithError(err).Error("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Error("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so queued deliveries survive broker restarts.
	if _, err := ch.QueueDeclare(TicketsQueueName, true, false, false, false, nil); err != nil {
		log.WithError(err).Error("rabbitmq: queue declare failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		MessageId:    fmt.Sprintf("order-%d-%s", order.ID, ev.PaymentID),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", TicketsQueueName, false, false, pub); err != nil {
		log.WithError(err).Error("rabbitmq: publish failed")
		return err
	}
	log.WithField("tickets", len(tickets)).Info("tickets queued for delivery")
	return nil
}
