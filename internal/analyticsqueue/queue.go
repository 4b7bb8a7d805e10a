// Package analyticsqueue streams click events to Kafka for downstream
// aggregation. The core service only enqueues; aggregation into
// models.URLStats happens in a separate consumer this repository does not
// own.
package analyticsqueue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rajweepmondal/url-shortener/internal/metrics"
	"github.com/rajweepmondal/url-shortener/internal/models"
)

// Queue is a bounded, worker-pool-backed click-event publisher. Enqueue
// never blocks: once the buffer is full, new events are dropped so a slow
// or unreachable broker cannot back-pressure the redirect hot path.
type Queue struct {
	buffer chan models.ClickEvent
	writer *kafka.Writer
	logger *zap.Logger

	wg sync.WaitGroup
}

// New constructs a Queue that publishes to topic across brokers using
// workers background goroutines. queueSize bounds the number of buffered,
// not-yet-published events.
func New(brokers []string, topic string, queueSize, workers int, logger *zap.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}

	q := &Queue{
		buffer: make(chan models.ClickEvent, queueSize),
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 100 * time.Millisecond,
			Async:        false,
		},
		logger: logger,
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	return q
}

// Enqueue accepts a click event for asynchronous publication. It reports
// false, and drops the event, if the buffer is full.
func (q *Queue) Enqueue(event models.ClickEvent) bool {
	select {
	case q.buffer <- event:
		metrics.ClickEventsEnqueued.Inc()
		return true
	default:
		metrics.ClickEventsDropped.Inc()
		return false
	}
}

// Close stops accepting new events, drains the buffer, and flushes the
// Kafka writer.
func (q *Queue) Close() error {
	close(q.buffer)
	q.wg.Wait()
	return q.writer.Close()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for event := range q.buffer {
		q.publish(event)
	}
}

func (q *Queue) publish(event models.ClickEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		q.logger.Error("failed to encode click event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ShortCode),
		Value: body,
		Time:  event.Timestamp,
	})
	if err != nil {
		q.logger.Warn("failed to publish click event",
			zap.String("short_code", event.ShortCode), zap.Error(err))
	}
}
