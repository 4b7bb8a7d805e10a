package notifier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rajweepmondal/url-shortener/internal/models"
)

// fakeNotificationRepository is an in-memory stand-in for
// interfaces.NotificationRepository.
type fakeNotificationRepository struct {
	mu       sync.Mutex
	settings map[string]*models.NotificationSettings
}

func newFakeNotificationRepository() *fakeNotificationRepository {
	return &fakeNotificationRepository{settings: make(map[string]*models.NotificationSettings)}
}

func (f *fakeNotificationRepository) GetByOwner(ctx context.Context, ownerID string) (*models.NotificationSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.settings[ownerID]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return s, nil
}

func ownerPtr(s string) *string { return &s }

func mapping(owner, shortCode string) *models.URLMapping {
	return &models.URLMapping{
		ShortCode: shortCode,
		LongURL:   "https://example.com/" + shortCode,
		OwnerID:   ownerPtr(owner),
		CreatedAt: time.Now(),
	}
}

func TestSignIsDeterministicHMACSHA256Hex(t *testing.T) {
	body := []byte(`{"event":"mapping.created"}`)
	secret := "shh"

	got := sign(secret, body)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, got)
	assert.Equal(t, got, sign(secret, body), "signing the same body twice must be deterministic")
	assert.NotEqual(t, got, sign("other-secret", body), "a different secret must change the signature")
}

func TestDeliverSendsSignedPayloadToWebhookURL(t *testing.T) {
	var receivedSig, receivedBody, receivedUserAgent string
	var hits int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		receivedSig = r.Header.Get("X-Webhook-Signature")
		receivedUserAgent = r.Header.Get("User-Agent")
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		receivedBody = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := newFakeNotificationRepository()
	repo.settings["owner-1"] = &models.NotificationSettings{
		OwnerID:    "owner-1",
		WebhookURL: server.URL,
		Secret:     "top-secret",
		Events:     map[string]bool{"mapping.created": true},
	}

	w := New(repo, time.Second, 2, time.Millisecond, 10, 5, "", zap.NewNop())
	defer w.Close()

	w.Notify(context.Background(), "mapping.created", mapping("owner-1", "abc123"))

	require.Eventually(t, func() bool { return atomic.LoadInt32(&hits) == 1 }, time.Second, 10*time.Millisecond)
	assert.NotEmpty(t, receivedSig)
	assert.Contains(t, receivedBody, "abc123")
	assert.Equal(t, "URLShortener-Webhook/1.0", receivedUserAgent)
}

func TestDeliverSkipsDisabledEvent(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := newFakeNotificationRepository()
	repo.settings["owner-1"] = &models.NotificationSettings{
		OwnerID:    "owner-1",
		WebhookURL: server.URL,
		Secret:     "s",
		Events:     map[string]bool{"mapping.created": true},
	}

	w := New(repo, time.Second, 0, time.Millisecond, 10, 5, "", zap.NewNop())
	defer w.Close()

	w.Notify(context.Background(), "mapping.deleted", mapping("owner-1", "abc123"))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestDeliverNoopsWhenMappingIsAnonymous(t *testing.T) {
	repo := newFakeNotificationRepository()
	w := New(repo, time.Second, 0, time.Millisecond, 10, 5, "", zap.NewNop())
	defer w.Close()

	m := &models.URLMapping{ShortCode: "anon1", LongURL: "https://example.com/anon1"}

	// Must not panic dereferencing a nil OwnerID, and must not call the repo.
	w.deliver(job{event: "mapping.created", mapping: m})
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	repo := newFakeNotificationRepository()
	repo.settings["owner-1"] = &models.NotificationSettings{
		OwnerID:    "owner-1",
		WebhookURL: server.URL,
		Secret:     "s",
		Events:     map[string]bool{"mapping.created": true},
	}

	w := New(repo, time.Second, 1, time.Millisecond, 10, 2, "", zap.NewNop())
	defer w.Close()

	// breakerLimit is 2 and maxRetries is 1: the first call's two failed
	// attempts trip the breaker, so the later deliveries should be skipped
	// without hitting the server at all.
	w.deliver(job{event: "mapping.created", mapping: mapping("owner-1", "a")})
	w.deliver(job{event: "mapping.created", mapping: mapping("owner-1", "b")})
	hitsBeforeTrip := atomic.LoadInt32(&hits)

	w.deliver(job{event: "mapping.created", mapping: mapping("owner-1", "c")})

	assert.Equal(t, hitsBeforeTrip, atomic.LoadInt32(&hits), "breaker should be open and skip the underlying HTTP call")
}

func TestDeadLetterPublisherIsNilSafeWithoutAMQPURL(t *testing.T) {
	p := newDeadLetterPublisher("", zap.NewNop())
	require.Nil(t, p)

	// A nil *deadLetterPublisher must be a safe no-op, since dead-lettering
	// is optional configuration.
	p.publish("owner-1", "mapping.created", "abc123", "https://example.com/webhook")
	p.close()
}
