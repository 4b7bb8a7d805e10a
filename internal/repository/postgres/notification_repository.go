package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rajweepmondal/url-shortener/internal/models"
	"github.com/rajweepmondal/url-shortener/internal/repository/interfaces"
)

// NotificationRepository implements interfaces.NotificationRepository
// against PostgreSQL.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new PostgreSQL notification settings
// repository.
func NewNotificationRepository(db *sql.DB) interfaces.NotificationRepository {
	return &NotificationRepository{db: db}
}

// GetByOwner retrieves an owner's webhook configuration, or
// models.ErrRecordNotFound if they have none configured.
func (r *NotificationRepository) GetByOwner(ctx context.Context, ownerID string) (*models.NotificationSettings, error) {
	var settings models.NotificationSettings
	var eventsJSON []byte

	query := `SELECT owner_id, webhook_url, secret, events FROM notification_settings WHERE owner_id = $1`
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(
		&settings.OwnerID, &settings.WebhookURL, &settings.Secret, &eventsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load notification settings: %w", err)
	}

	if len(eventsJSON) > 0 {
		if err := json.Unmarshal(eventsJSON, &settings.Events); err != nil {
			return nil, fmt.Errorf("failed to decode notification events: %w", err)
		}
	}

	return &settings, nil
}
