// Package notifier delivers URL lifecycle events (create, update, delete) to
// each owner's configured webhook endpoint. Delivery is best-effort: a
// failing or slow destination must never slow down the request that
// triggered the event.
package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/rajweepmondal/url-shortener/internal/metrics"
	"github.com/rajweepmondal/url-shortener/internal/models"
	"github.com/rajweepmondal/url-shortener/internal/repository/interfaces"
)

// Event is the payload delivered to a webhook endpoint.
type Event struct {
	Event     string     `json:"event"`
	ShortCode string     `json:"short_code"`
	LongURL   string     `json:"long_url"`
	Owner     *string    `json:"owner,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// job is a queued, not-yet-delivered webhook notification.
type job struct {
	event   string
	mapping *models.URLMapping
}

// Webhook delivers lifecycle events asynchronously over HTTP, signing each
// payload with the owner's shared secret and tripping a per-destination-URL
// circuit breaker after repeated failures so a dead endpoint cannot stall the
// queue.
type Webhook struct {
	repo       interfaces.NotificationRepository
	httpClient *http.Client
	logger     *zap.Logger

	queue chan job
	done  chan struct{}

	maxRetries   int
	retryBase    time.Duration
	breakerLimit uint32

	breakers map[string]*gobreaker.CircuitBreaker
	dlq      *deadLetterPublisher
}

// New constructs a webhook notifier. queueSize bounds the number of
// in-flight events buffered before new ones are dropped; breakerThreshold is
// the number of consecutive failures that trips a destination's breaker.
// amqpURL is optional: when set, deliveries that exhaust their retries are
// published to a dead-letter queue for later inspection and replay.
func New(
	repo interfaces.NotificationRepository,
	timeout time.Duration,
	maxRetries int,
	retryBase time.Duration,
	queueSize int,
	breakerThreshold uint32,
	amqpURL string,
	logger *zap.Logger,
) *Webhook {
	w := &Webhook{
		repo:         repo,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
		queue:        make(chan job, queueSize),
		done:         make(chan struct{}),
		maxRetries:   maxRetries,
		retryBase:    retryBase,
		breakerLimit: breakerThreshold,
		breakers:     make(map[string]*gobreaker.CircuitBreaker),
		dlq:          newDeadLetterPublisher(amqpURL, logger),
	}
	go w.run()
	return w
}

// Notify enqueues a lifecycle event for asynchronous delivery. It never
// blocks the caller: if the queue is full the event is dropped and logged.
func (w *Webhook) Notify(ctx context.Context, event string, m *models.URLMapping) {
	select {
	case w.queue <- job{event: event, mapping: m}:
	default:
		w.logger.Warn("webhook queue full, dropping notification",
			zap.String("event", event), zap.String("short_code", m.ShortCode))
	}
}

// Close stops accepting new events, drains the queue, and releases the
// dead-letter connection.
func (w *Webhook) Close() {
	close(w.queue)
	<-w.done
	w.dlq.close()
}

func (w *Webhook) run() {
	defer close(w.done)
	for j := range w.queue {
		w.deliver(j)
	}
}

func (w *Webhook) deliver(j job) {
	if j.mapping.OwnerID == nil {
		return
	}
	ownerID := *j.mapping.OwnerID

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	settings, err := w.repo.GetByOwner(ctx, ownerID)
	if err != nil {
		if err != models.ErrRecordNotFound {
			w.logger.Error("failed to load notification settings",
				zap.String("owner", ownerID), zap.Error(err))
		}
		return
	}
	if !settings.EventEnabled(j.event) {
		return
	}

	payload := Event{
		Event:     j.event,
		ShortCode: j.mapping.ShortCode,
		LongURL:   j.mapping.LongURL,
		Owner:     j.mapping.OwnerID,
		CreatedAt: j.mapping.CreatedAt,
		ExpiresAt: j.mapping.ExpiresAt,
		Timestamp: time.Now(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error("failed to encode webhook payload", zap.Error(err))
		return
	}

	breaker := w.breakerFor(settings.WebhookURL)

	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		_, err := breaker.Execute(func() (interface{}, error) {
			return nil, w.send(ctx, settings.WebhookURL, settings.Secret, body)
		})
		if err == nil {
			metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
			return
		}
		if err == gobreaker.ErrOpenState {
			metrics.WebhookDeliveries.WithLabelValues("breaker_open").Inc()
			w.logger.Warn("webhook breaker open, skipping delivery",
				zap.String("owner", ownerID), zap.String("url", settings.WebhookURL))
			return
		}
		if attempt < w.maxRetries {
			metrics.WebhookDeliveries.WithLabelValues("retried").Inc()
			time.Sleep(w.retryBase * time.Duration(1<<attempt))
		}
	}

	metrics.WebhookDeliveries.WithLabelValues("exhausted").Inc()
	w.logger.Error("webhook delivery exhausted retries",
		zap.String("owner", ownerID), zap.String("event", j.event), zap.String("short_code", j.mapping.ShortCode))
	w.dlq.publish(ownerID, j.event, j.mapping.ShortCode, settings.WebhookURL)
}

func (w *Webhook) send(ctx context.Context, url, secret string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "URLShortener-Webhook/1.0")
	req.Header.Set("X-Webhook-Signature", sign(secret, body))

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (w *Webhook) breakerFor(url string) *gobreaker.CircuitBreaker {
	if b, ok := w.breakers[url]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        url,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= w.breakerLimit
		},
	})
	w.breakers[url] = b
	return b
}
