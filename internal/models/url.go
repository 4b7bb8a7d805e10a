package models

import (
	"time"

	"github.com/google/uuid"
)

// UserTier is the ordinal capability level of a user.
type UserTier string

const (
	TierStandard   UserTier = "standard"
	TierPremium    UserTier = "premium"
	TierEnterprise UserTier = "enterprise"
)

func (t UserTier) rank() int {
	switch t {
	case TierPremium:
		return 1
	case TierEnterprise:
		return 2
	default:
		return 0
	}
}

// AtLeast reports whether t meets or exceeds the minimum tier.
func (t UserTier) AtLeast(min UserTier) bool {
	return t.rank() >= min.rank()
}

// DuplicateStrategy controls what happens when an owner shortens a URL they
// have already shortened before.
type DuplicateStrategy string

const (
	StrategyReuseExisting DuplicateStrategy = "reuse_existing"
	StrategyGenerateNew   DuplicateStrategy = "generate_new"
)

// URLMapping is the unit of persistence: a short_code to long_url binding.
type URLMapping struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	ShortCode      string     `json:"short_code" db:"short_code"`
	LongURL        string     `json:"long_url" db:"long_url"`
	LongURLHash    string     `json:"long_url_hash" db:"long_url_hash"`
	OwnerID        *string    `json:"owner,omitempty" db:"owner_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty" db:"last_accessed_at"`
	AccessCount    int64      `json:"access_count" db:"access_count"`
	IsCustomAlias  bool       `json:"is_custom_alias" db:"is_custom_alias"`
	IsDeleted      bool       `json:"-" db:"is_deleted"`
	DeletedAt      *time.Time `json:"-" db:"deleted_at"`
}

// IsExpired reports whether the mapping's TTL has elapsed.
func (m *URLMapping) IsExpired() bool {
	return m.ExpiresAt != nil && m.ExpiresAt.Before(time.Now())
}

// IsAnonymous reports whether the mapping has no owning user.
func (m *URLMapping) IsAnonymous() bool {
	return m.OwnerID == nil
}

// IsOwnedBy reports whether userID owns this mapping.
func (m *URLMapping) IsOwnedBy(userID string) bool {
	return m.OwnerID != nil && *m.OwnerID == userID
}

// User is an external collaborator: the core only reads user records, it
// never creates or mutates them.
type User struct {
	ID                string            `json:"id"`
	Active            bool              `json:"active"`
	Tier              UserTier          `json:"tier"`
	DuplicateStrategy DuplicateStrategy `json:"duplicate_strategy"`
	DefaultTTLDays    *int              `json:"default_ttl_days,omitempty"`
	IsAdmin           bool              `json:"is_admin"`
}

// NotificationSettings is an external collaborator holding per-owner webhook
// configuration.
type NotificationSettings struct {
	OwnerID    string          `json:"owner_id"`
	WebhookURL string          `json:"webhook_url"`
	Secret     string          `json:"-"`
	Events     map[string]bool `json:"events"`
}

// EventEnabled reports whether the given lifecycle event should be delivered.
func (n *NotificationSettings) EventEnabled(event string) bool {
	if n == nil || n.WebhookURL == "" {
		return false
	}
	enabled, ok := n.Events[event]
	return ok && enabled
}

// ClickEvent is the raw datum emitted to the analytics queue on every
// resolved redirect; the core does not aggregate these itself.
type ClickEvent struct {
	ShortCode string    `json:"short_code"`
	Timestamp time.Time `json:"timestamp"`
	SourceIP  string    `json:"source_ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referer   string    `json:"referer,omitempty"`
}

// URLStats is a pre-aggregated read projection produced by the external
// analytics pipeline; the core only reads it.
type URLStats struct {
	ShortCode      string   `json:"short_code"`
	TotalClicks    int64    `json:"total_clicks"`
	UniqueClicks   int64    `json:"unique_clicks"`
	ClicksToday    int64    `json:"clicks_today"`
	ClicksThisWeek int64    `json:"clicks_this_week"`
	TopCountries   []string `json:"top_countries"`
	TopReferers    []string `json:"top_referers"`
}

// CreateURLRequest is the input to the URL service's create operation.
type CreateURLRequest struct {
	LongURL     string  `json:"long_url" validate:"required"`
	CustomAlias *string `json:"custom_alias,omitempty"`
	OwnerID     *string `json:"-"`
	ExpiryDays  *int    `json:"expiry_days,omitempty"`
}

// CreateURLResult is the outcome of a successful create operation.
type CreateURLResult struct {
	Mapping   *URLMapping
	ShortURL  string
	WasReused bool
}

// ListFilters narrows a ListByOwner query.
type ListFilters struct {
	Search         string
	IsCustomAlias  *bool
	HasExpiry      *bool
	IsExpired      *bool
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
	MinAccessCount *int64
	MaxAccessCount *int64
}

// SortSpec selects the ordering of a listing; Field must be one of a
// whitelisted column set enforced by the repository.
type SortSpec struct {
	Field string
	Desc  bool
}

// Pagination requests a page of a listing.
type Pagination struct {
	Page     int
	PageSize int
}

// PagedResult is the outcome of a ListByOwner query.
type PagedResult struct {
	Items       []*URLMapping
	TotalItems  int64
	Page        int
	PageSize    int
	TotalPages  int
	HasNextPage bool
	HasPrevPage bool
}

// AliasCheckResult is the outcome of an alias-availability check.
type AliasCheckResult struct {
	Available   bool     `json:"available"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// WhitelistedSortFields is the set of columns ListByOwner may sort on.
var WhitelistedSortFields = map[string]bool{
	"created_at":       true,
	"access_count":     true,
	"last_accessed_at": true,
	"expires_at":       true,
}
