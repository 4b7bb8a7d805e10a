package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rajweepmondal/url-shortener/internal/models"
	"github.com/rajweepmondal/url-shortener/internal/repository/interfaces"
)

// URLRepository implements interfaces.URLRepository against PostgreSQL.
type URLRepository struct {
	db *sql.DB
}

// NewURLRepository creates a new PostgreSQL URL repository
func NewURLRepository(db *sql.DB) interfaces.URLRepository {
	return &URLRepository{db: db}
}

const mappingColumns = `id, short_code, long_url, long_url_hash, owner_id, created_at,
	expires_at, last_accessed_at, access_count, is_custom_alias, is_deleted, deleted_at`

func scanMapping(row interface {
	Scan(dest ...interface{}) error
}) (*models.URLMapping, error) {
	m := &models.URLMapping{}
	err := row.Scan(
		&m.ID,
		&m.ShortCode,
		&m.LongURL,
		&m.LongURLHash,
		&m.OwnerID,
		&m.CreatedAt,
		&m.ExpiresAt,
		&m.LastAccessedAt,
		&m.AccessCount,
		&m.IsCustomAlias,
		&m.IsDeleted,
		&m.DeletedAt,
	)
	return m, err
}

// Create inserts a new mapping.
func (r *URLRepository) Create(ctx context.Context, m *models.URLMapping) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	query := `
		INSERT INTO url_mappings (id, short_code, long_url, long_url_hash, owner_id,
			created_at, expires_at, is_custom_alias, access_count, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, false)
	`

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.ShortCode,
		m.LongURL,
		m.LongURLHash,
		m.OwnerID,
		m.CreatedAt,
		m.ExpiresAt,
		m.IsCustomAlias,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return models.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create url mapping: %w", err)
	}

	return nil
}

// FindByCode retrieves a mapping by short code, soft-deleted or not.
func (r *URLRepository) FindByCode(ctx context.Context, shortCode string) (*models.URLMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM url_mappings WHERE short_code = $1`

	m, err := scanMapping(r.db.QueryRowContext(ctx, query, shortCode))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find mapping by code: %w", err)
	}
	return m, nil
}

// FindActiveByHash retrieves a non-deleted mapping by hash, scoped to owner.
func (r *URLRepository) FindActiveByHash(ctx context.Context, longURLHash string, ownerID *string) (*models.URLMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM url_mappings
		WHERE long_url_hash = $1 AND is_deleted = false`
	args := []interface{}{longURLHash}

	if ownerID != nil {
		query += " AND owner_id = $2"
		args = append(args, *ownerID)
	} else {
		query += " AND owner_id IS NULL"
	}
	query += " ORDER BY created_at DESC LIMIT 1"

	m, err := scanMapping(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find mapping by hash: %w", err)
	}
	return m, nil
}

// FindByID retrieves a mapping by its primary key.
func (r *URLRepository) FindByID(ctx context.Context, id string) (*models.URLMapping, error) {
	mID, err := uuid.Parse(id)
	if err != nil {
		return nil, models.ErrInvalidURL("invalid mapping id format")
	}

	query := `SELECT ` + mappingColumns + ` FROM url_mappings WHERE id = $1`
	m, err := scanMapping(r.db.QueryRowContext(ctx, query, mID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find mapping by id: %w", err)
	}
	return m, nil
}

// UpdateExpiry changes the expiry timestamp of a mapping.
func (r *URLRepository) UpdateExpiry(ctx context.Context, shortCode string, expiresAt *time.Time) error {
	query := `UPDATE url_mappings SET expires_at = $2 WHERE short_code = $1 AND is_deleted = false`

	result, err := r.db.ExecContext(ctx, query, shortCode, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to update expiry: %w", err)
	}
	return requireRowsAffected(result)
}

// SoftDelete marks a single mapping deleted.
func (r *URLRepository) SoftDelete(ctx context.Context, shortCode string) error {
	query := `UPDATE url_mappings SET is_deleted = true, deleted_at = NOW()
		WHERE short_code = $1 AND is_deleted = false`

	result, err := r.db.ExecContext(ctx, query, shortCode)
	if err != nil {
		return fmt.Errorf("failed to soft delete mapping: %w", err)
	}
	return requireRowsAffected(result)
}

// BulkSoftDelete marks every mapping owned by ownerID deleted.
func (r *URLRepository) BulkSoftDelete(ctx context.Context, ownerID string) (int64, error) {
	query := `UPDATE url_mappings SET is_deleted = true, deleted_at = NOW()
		WHERE owner_id = $1 AND is_deleted = false`

	result, err := r.db.ExecContext(ctx, query, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk soft delete mappings: %w", err)
	}
	return result.RowsAffected()
}

// IncrementAccess bumps the access counter and last-accessed timestamp.
func (r *URLRepository) IncrementAccess(ctx context.Context, shortCode string, at time.Time) error {
	query := `UPDATE url_mappings SET access_count = access_count + 1, last_accessed_at = $2
		WHERE short_code = $1 AND is_deleted = false`

	_, err := r.db.ExecContext(ctx, query, shortCode, at)
	if err != nil {
		return fmt.Errorf("failed to increment access: %w", err)
	}
	return nil
}

// ExistsByCode reports whether a short code (active or not) is taken.
func (r *URLRepository) ExistsByCode(ctx context.Context, shortCode string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM url_mappings WHERE short_code = $1)`, shortCode).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check code existence: %w", err)
	}
	return exists, nil
}

// ListByOwner returns a filtered, sorted, paginated view of an owner's mappings.
func (r *URLRepository) ListByOwner(ctx context.Context, ownerID string, filters models.ListFilters, sort models.SortSpec, page models.Pagination) (*models.PagedResult, error) {
	where := []string{"owner_id = $1", "is_deleted = false"}
	args := []interface{}{ownerID}
	argIndex := 2

	if filters.Search != "" {
		where = append(where, fmt.Sprintf("(long_url ILIKE $%d OR short_code ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+filters.Search+"%")
		argIndex++
	}
	if filters.IsCustomAlias != nil {
		where = append(where, fmt.Sprintf("is_custom_alias = $%d", argIndex))
		args = append(args, *filters.IsCustomAlias)
		argIndex++
	}
	if filters.HasExpiry != nil {
		if *filters.HasExpiry {
			where = append(where, "expires_at IS NOT NULL")
		} else {
			where = append(where, "expires_at IS NULL")
		}
	}
	if filters.IsExpired != nil {
		if *filters.IsExpired {
			where = append(where, "expires_at IS NOT NULL AND expires_at < NOW()")
		} else {
			where = append(where, "(expires_at IS NULL OR expires_at >= NOW())")
		}
	}
	if filters.CreatedAfter != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *filters.CreatedAfter)
		argIndex++
	}
	if filters.CreatedBefore != nil {
		where = append(where, fmt.Sprintf("created_at <= $%d", argIndex))
		args = append(args, *filters.CreatedBefore)
		argIndex++
	}
	if filters.MinAccessCount != nil {
		where = append(where, fmt.Sprintf("access_count >= $%d", argIndex))
		args = append(args, *filters.MinAccessCount)
		argIndex++
	}
	if filters.MaxAccessCount != nil {
		where = append(where, fmt.Sprintf("access_count <= $%d", argIndex))
		args = append(args, *filters.MaxAccessCount)
		argIndex++
	}

	whereClause := "WHERE " + strings.Join(where, " AND ")

	var totalItems int64
	countQuery := "SELECT COUNT(*) FROM url_mappings " + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalItems); err != nil {
		return nil, fmt.Errorf("failed to count mappings: %w", err)
	}

	sortField := sort.Field
	if !models.WhitelistedSortFields[sortField] {
		sortField = "created_at"
	}
	sortOrder := "ASC"
	if sort.Desc {
		sortOrder = "DESC"
	}

	if page.Page < 1 {
		page.Page = 1
	}
	if page.PageSize < 1 {
		page.PageSize = 20
	}
	offset := (page.Page - 1) * page.PageSize

	query := fmt.Sprintf(`SELECT %s FROM url_mappings %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		mappingColumns, whereClause, sortField, sortOrder, argIndex, argIndex+1)
	args = append(args, page.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()

	var items []*models.URLMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		items = append(items, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mappings: %w", err)
	}

	totalPages := int((totalItems + int64(page.PageSize) - 1) / int64(page.PageSize))
	return &models.PagedResult{
		Items:       items,
		TotalItems:  totalItems,
		Page:        page.Page,
		PageSize:    page.PageSize,
		TotalPages:  totalPages,
		HasNextPage: page.Page < totalPages,
		HasPrevPage: page.Page > 1,
	}, nil
}

// FindExpiring returns active mappings expiring within the given horizon.
func (r *URLRepository) FindExpiring(ctx context.Context, within time.Duration, limit int) ([]*models.URLMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM url_mappings
		WHERE is_deleted = false AND expires_at IS NOT NULL
		  AND expires_at BETWEEN NOW() AND NOW() + $1::interval
		ORDER BY expires_at ASC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, within.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find expiring mappings: %w", err)
	}
	defer rows.Close()

	var out []*models.URLMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expiring mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// FindSoftDeletedOlderThan returns soft-deleted mappings past the grace period.
func (r *URLRepository) FindSoftDeletedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.URLMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM url_mappings
		WHERE is_deleted = true AND deleted_at < $1
		ORDER BY deleted_at ASC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find sweepable mappings: %w", err)
	}
	defer rows.Close()

	var out []*models.URLMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sweepable mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// HardDelete permanently removes the given mappings by ID.
func (r *URLRepository) HardDelete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM url_mappings WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to hard delete mappings: %w", err)
	}
	return result.RowsAffected()
}

func requireRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrRecordNotFound
	}
	return nil
}
