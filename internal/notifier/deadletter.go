package notifier

import (
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const deadLetterQueueName = "webhook.deadletter"

// deadLetter is the record published to the dead-letter queue when a
// webhook delivery exhausts its retries. An operator or a separate
// reconciliation job can replay these once the destination is healthy again.
type deadLetter struct {
	Owner     string    `json:"owner"`
	Event     string    `json:"event"`
	ShortCode string    `json:"short_code"`
	URL       string    `json:"url"`
	FailedAt  time.Time `json:"failed_at"`
}

// deadLetterPublisher publishes exhausted webhook deliveries to RabbitMQ for
// offline inspection and replay. A nil publisher is a valid no-op: the AMQP
// URL is optional configuration, and dead-lettering is a diagnostic aid, not
// a correctness requirement.
type deadLetterPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger
}

// newDeadLetterPublisher dials amqpURL and declares the dead-letter queue.
// An empty amqpURL disables dead-lettering entirely.
func newDeadLetterPublisher(amqpURL string, logger *zap.Logger) *deadLetterPublisher {
	if amqpURL == "" {
		return nil
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		logger.Warn("failed to connect to dead-letter broker, continuing without it", zap.Error(err))
		return nil
	}
	ch, err := conn.Channel()
	if err != nil {
		logger.Warn("failed to open dead-letter channel, continuing without it", zap.Error(err))
		conn.Close()
		return nil
	}
	if _, err := ch.QueueDeclare(deadLetterQueueName, true, false, false, false, nil); err != nil {
		logger.Warn("failed to declare dead-letter queue, continuing without it", zap.Error(err))
		ch.Close()
		conn.Close()
		return nil
	}

	return &deadLetterPublisher{conn: conn, channel: ch, logger: logger}
}

func (p *deadLetterPublisher) publish(owner, event, shortCode, url string) {
	if p == nil {
		return
	}

	body, err := json.Marshal(deadLetter{
		Owner:     owner,
		Event:     event,
		ShortCode: shortCode,
		URL:       url,
		FailedAt:  time.Now(),
	})
	if err != nil {
		p.logger.Error("failed to encode dead-letter record", zap.Error(err))
		return
	}

	err = p.channel.Publish("", deadLetterQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		p.logger.Error("failed to publish dead-letter record", zap.Error(err))
	}
}

func (p *deadLetterPublisher) close() {
	if p == nil {
		return
	}
	p.channel.Close()
	p.conn.Close()
}
