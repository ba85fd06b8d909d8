package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/yugal82/sports-screening-server/internal/util"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Kinds of notification the mailer understands
const (
	KindTicketIssued     = "ticket_issued"
	KindBookingCancelled = "booking_cancelled"
	KindPaymentFailed    = "payment_failed"
)

// Message asks the notification collaborator to contact a user about a booking
type Message struct {
	Kind      string    `json:"kind"`
	BookingID string    `json:"bookingId"`
	UserID    string    `json:"userId"`
	EventID   string    `json:"eventId"`
	Quantity  int       `json:"quantity"`
	Refunded  bool      `json:"refunded,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Channel is the subset of *amqp.Channel used for publishing
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher puts notification requests on a durable RabbitMQ queue
type Publisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel Channel
	queue   string
	logger  *zap.Logger
}

// Dial connects to RabbitMQ and declares the notification queue
func Dial(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p, err := NewPublisher(ch, queue)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisher declares queue on an open channel
func NewPublisher(ch Channel, queue string) (*Publisher, error) {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return &Publisher{channel: ch, queue: queue, logger: util.GetLogger()}, nil
}

// Send publishes msg as a persistent JSON message
func (p *Publisher) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.Publish("", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.BookingID + ":" + msg.Kind,
		Timestamp:    msg.CreatedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	p.logger.Debug("Notification queued",
		zap.String("kind", msg.Kind),
		zap.String("booking_id", msg.BookingID))
	return nil
}

// Close closes the channel and the connection
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
