package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rajweepmondal/url-shortener/internal/models"
	"github.com/rajweepmondal/url-shortener/internal/repository/interfaces"
)

// AnalyticsRepository implements interfaces.AnalyticsRepository against
// PostgreSQL. It is a read-mostly projection: RecordAccess exists for tests
// and for environments that skip the external analytics queue, but the
// primary write path is the queue consumer, not the URL service.
type AnalyticsRepository struct {
	db *sql.DB
}

// NewAnalyticsRepository creates a new PostgreSQL analytics repository
func NewAnalyticsRepository(db *sql.DB) interfaces.AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// RecordAccess records a click event.
func (r *AnalyticsRepository) RecordAccess(ctx context.Context, event *models.ClickEvent) error {
	query := `
		INSERT INTO click_events (short_code, accessed_at, source_ip, user_agent, referer)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ShortCode,
		event.Timestamp,
		nullIfEmpty(event.SourceIP),
		nullIfEmpty(event.UserAgent),
		nullIfEmpty(event.Referer),
	)
	if err != nil {
		return fmt.Errorf("failed to record access: %w", err)
	}
	return nil
}

// GetURLStats retrieves comprehensive statistics for a short code.
func (r *AnalyticsRepository) GetURLStats(ctx context.Context, shortCode string) (*models.URLStats, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM url_mappings WHERE short_code = $1)`, shortCode).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check mapping existence: %w", err)
	}
	if !exists {
		return nil, models.ErrRecordNotFound
	}

	stats := &models.URLStats{ShortCode: shortCode}

	err = r.db.QueryRowContext(ctx, `SELECT access_count FROM url_mappings WHERE short_code = $1`, shortCode).Scan(&stats.TotalClicks)
	if err != nil {
		return nil, fmt.Errorf("failed to get total clicks: %w", err)
	}

	uniqueQuery := `SELECT COUNT(DISTINCT source_ip) FROM click_events WHERE short_code = $1 AND source_ip IS NOT NULL`
	if err := r.db.QueryRowContext(ctx, uniqueQuery, shortCode).Scan(&stats.UniqueClicks); err != nil {
		return nil, fmt.Errorf("failed to get unique clicks: %w", err)
	}

	todayQuery := `SELECT COUNT(*) FROM click_events WHERE short_code = $1 AND DATE(accessed_at) = CURRENT_DATE`
	if err := r.db.QueryRowContext(ctx, todayQuery, shortCode).Scan(&stats.ClicksToday); err != nil {
		return nil, fmt.Errorf("failed to get today's clicks: %w", err)
	}

	weekQuery := `SELECT COUNT(*) FROM click_events WHERE short_code = $1 AND accessed_at >= DATE_TRUNC('week', NOW())`
	if err := r.db.QueryRowContext(ctx, weekQuery, shortCode).Scan(&stats.ClicksThisWeek); err != nil {
		return nil, fmt.Errorf("failed to get this week's clicks: %w", err)
	}

	topCountries, err := r.GetTopCountries(ctx, shortCode, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to get top countries: %w", err)
	}
	stats.TopCountries = topCountries

	topReferers, err := r.GetTopReferers(ctx, shortCode, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to get top referers: %w", err)
	}
	stats.TopReferers = topReferers

	return stats, nil
}

// GetTopCountries retrieves top countries for a short code.
func (r *AnalyticsRepository) GetTopCountries(ctx context.Context, shortCode string, limit int) ([]string, error) {
	query := `
		SELECT country_code, COUNT(*) as count
		FROM click_events
		WHERE short_code = $1 AND country_code IS NOT NULL
		GROUP BY country_code
		ORDER BY count DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, shortCode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top countries: %w", err)
	}
	defer rows.Close()

	var countries []string
	for rows.Next() {
		var country string
		var count int64
		if err := rows.Scan(&country, &count); err != nil {
			return nil, fmt.Errorf("failed to scan country: %w", err)
		}
		countries = append(countries, country)
	}
	return countries, rows.Err()
}

// GetTopReferers retrieves top referers for a short code.
func (r *AnalyticsRepository) GetTopReferers(ctx context.Context, shortCode string, limit int) ([]string, error) {
	query := `
		SELECT referer, COUNT(*) as count
		FROM click_events
		WHERE short_code = $1 AND referer IS NOT NULL AND referer != ''
		GROUP BY referer
		ORDER BY count DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, shortCode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top referers: %w", err)
	}
	defer rows.Close()

	var referers []string
	for rows.Next() {
		var referer string
		var count int64
		if err := rows.Scan(&referer, &count); err != nil {
			return nil, fmt.Errorf("failed to scan referer: %w", err)
		}
		referers = append(referers, referer)
	}
	return referers, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
