package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rajweepmondal/url-shortener/internal/cache"
	"github.com/rajweepmondal/url-shortener/internal/metrics"
	"github.com/rajweepmondal/url-shortener/internal/models"
	"github.com/rajweepmondal/url-shortener/internal/repository/interfaces"
	"github.com/rajweepmondal/url-shortener/pkg/auth"
	"github.com/rajweepmondal/url-shortener/pkg/shortener"
	"github.com/rajweepmondal/url-shortener/pkg/validator"
)

// Notifier delivers lifecycle events (created/updated/deleted) for a
// mapping. The URL service never blocks a caller-facing response on
// delivery succeeding.
type Notifier interface {
	Notify(ctx context.Context, event string, m *models.URLMapping)
}

// AnalyticsQueue accepts click events for best-effort asynchronous
// aggregation; a full queue drops the event rather than blocking the
// redirect hot path.
type AnalyticsQueue interface {
	Enqueue(event models.ClickEvent) bool
}

// URLService is the orchestrator composing the short-code allocator, the
// mapping repository, the two-tier cache, the notifier, and the analytics
// queue into the create/read/update/delete/list operations the HTTP and
// gRPC surfaces expose.
type URLService struct {
	repo      interfaces.URLRepository
	analytics interfaces.AnalyticsRepository
	cache     *cache.Manager
	shortener *shortener.Shortener
	validator *validator.URLValidator
	notifier  Notifier
	clickQ    AnalyticsQueue
	baseURL   string
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// Option configures optional collaborators of URLService.
type Option func(*URLService)

// WithNotifier attaches a webhook notifier. Omitted in tests that don't
// exercise lifecycle events.
func WithNotifier(n Notifier) Option {
	return func(s *URLService) { s.notifier = n }
}

// WithAnalyticsQueue attaches the click-event sink.
func WithAnalyticsQueue(q AnalyticsQueue) Option {
	return func(s *URLService) { s.clickQ = q }
}

// NewURLService builds a URLService over its required collaborators.
func NewURLService(
	repo interfaces.URLRepository,
	analyticsRepo interfaces.AnalyticsRepository,
	cacheManager *cache.Manager,
	sc *shortener.Shortener,
	baseURL string,
	cacheTTL time.Duration,
	logger *zap.Logger,
	opts ...Option,
) *URLService {
	s := &URLService{
		repo:      repo,
		analytics: analyticsRepo,
		cache:     cacheManager,
		shortener: sc,
		validator: validator.NewURLValidator(),
		baseURL:   baseURL,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ownershipAdapter satisfies auth.OwnershipChecker over the repository,
// without pkg/auth importing the repository package directly.
type ownershipAdapter struct {
	repo interfaces.URLRepository
}

func (a ownershipAdapter) OwnerOf(ctx context.Context, shortCode string) (*string, error) {
	m, err := a.repo.FindByCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}
	return m.OwnerID, nil
}

// OwnershipChecker returns the auth.OwnershipChecker backing this service's
// repository, for use by handlers constructing RequireOwnership calls.
func (s *URLService) OwnershipChecker() auth.OwnershipChecker {
	return ownershipAdapter{repo: s.repo}
}

// Create shortens a long URL on behalf of p, honoring alias choice,
// duplicate-detection, and expiry.
func (s *URLService) Create(ctx context.Context, p auth.Principal, req models.CreateURLRequest) (*models.CreateURLResult, *models.AppError) {
	if err := s.validator.ValidateURL(req.LongURL); err != nil {
		return nil, models.ErrInvalidURL(err.Error())
	}

	ownerID := p.OwnerIDPtr()
	normalized, err := validator.NormalizeForHash(req.LongURL)
	if err != nil {
		return nil, models.ErrInvalidURL(err.Error())
	}
	longURLHash := hashLongURL(normalized)

	// Anonymous callers always get a fresh code; only owned mappings dedupe.
	if req.CustomAlias == nil && ownerID != nil {
		existing, err := s.repo.FindActiveByHash(ctx, longURLHash, ownerID)
		if err != nil && !errors.Is(err, models.ErrRecordNotFound) {
			return nil, models.ErrInternalWithCause("failed to check for duplicate mapping", err)
		}
		if existing != nil && !existing.IsExpired() {
			return &models.CreateURLResult{
				Mapping:   existing,
				ShortURL:  s.shortURL(existing.ShortCode),
				WasReused: true,
			}, nil
		}
	}

	var shortCode string
	isCustomAlias := false
	if req.CustomAlias != nil {
		normalized, aerr := s.shortener.Normalize(*req.CustomAlias)
		if aerr != nil {
			return nil, aerr
		}
		taken, err := s.repo.ExistsByCode(ctx, normalized)
		if err != nil {
			return nil, models.ErrInternalWithCause("failed to check alias availability", err)
		}
		if taken {
			return nil, models.ErrAliasTaken(normalized)
		}
		shortCode = normalized
		isCustomAlias = true
	} else {
		code, err := s.shortener.Generate(ctx)
		if err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) {
				return nil, appErr
			}
			return nil, models.ErrInternalWithCause("short code generation failed", err)
		}
		shortCode = code
	}

	m := &models.URLMapping{
		ID:            uuid.New(),
		ShortCode:     shortCode,
		LongURL:       req.LongURL,
		LongURLHash:   longURLHash,
		OwnerID:       ownerID,
		CreatedAt:     time.Now(),
		IsCustomAlias: isCustomAlias,
	}
	if req.ExpiryDays != nil {
		expiresAt := time.Now().AddDate(0, 0, *req.ExpiryDays)
		m.ExpiresAt = &expiresAt
	}

	if err := s.repo.Create(ctx, m); err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			return nil, models.ErrAliasTaken(shortCode)
		}
		return nil, models.ErrInternalWithCause("failed to persist mapping", err)
	}

	if err := s.cache.Put(ctx, m, s.cacheTTL); err != nil {
		s.logger.Warn("failed to populate cache after create", zap.Error(err), zap.String("short_code", shortCode))
	}

	s.notify(ctx, "mapping.created", m)
	metrics.LinksCreated.Inc()

	return &models.CreateURLResult{Mapping: m, ShortURL: s.shortURL(shortCode)}, nil
}

// Resolve is the hot-path redirect lookup: cache-first, repository on miss,
// with negative caching and asynchronous access accounting.
func (s *URLService) Resolve(ctx context.Context, shortCode string, click models.ClickEvent) (*models.URLMapping, *models.AppError) {
	m, status, err := s.cache.Get(ctx, shortCode)
	if err != nil {
		s.logger.Warn("cache lookup failed, falling back to repository", zap.Error(err), zap.String("short_code", shortCode))
	} else if status == interfaces.CacheNegativeHit {
		return nil, models.ErrMappingNotFound
	} else if status == interfaces.CacheHit {
		if appErr := s.checkResolvable(m); appErr != nil {
			go s.cache.Invalidate(context.Background(), shortCode)
			return nil, appErr
		}
		s.recordAccess(shortCode, click)
		return m, nil
	}

	m, repoErr := s.repo.FindByCode(ctx, shortCode)
	if repoErr != nil {
		if errors.Is(repoErr, models.ErrRecordNotFound) {
			go s.cache.PutNegative(context.Background(), shortCode, s.negativeTTL())
			return nil, models.ErrMappingNotFound
		}
		return nil, models.ErrInternalWithCause("failed to look up mapping", repoErr)
	}

	if appErr := s.checkResolvable(m); appErr != nil {
		return nil, appErr
	}

	go func() {
		bgCtx := context.Background()
		if err := s.cache.Put(bgCtx, m, s.cacheTTL); err != nil {
			s.logger.Warn("failed to populate cache after repository read", zap.Error(err))
		}
	}()

	s.recordAccess(shortCode, click)
	return m, nil
}

func (s *URLService) checkResolvable(m *models.URLMapping) *models.AppError {
	if m.IsDeleted {
		return models.ErrMappingNotFound
	}
	if m.IsExpired() {
		return models.ErrMappingExpired
	}
	return nil
}

func (s *URLService) negativeTTL() time.Duration {
	if s.cacheTTL <= 0 {
		return time.Minute
	}
	return s.cacheTTL / 4
}

// recordAccess bumps the repository access counter and enqueues a click
// event, both without blocking the caller.
func (s *URLService) recordAccess(shortCode string, click models.ClickEvent) {
	metrics.RedirectsTotal.Inc()

	go func() {
		if err := s.repo.IncrementAccess(context.Background(), shortCode, time.Now()); err != nil {
			s.logger.Warn("failed to record access", zap.Error(err), zap.String("short_code", shortCode))
		}
	}()

	if s.clickQ != nil {
		click.ShortCode = shortCode
		if click.Timestamp.IsZero() {
			click.Timestamp = time.Now()
		}
		if !s.clickQ.Enqueue(click) {
			s.logger.Warn("analytics queue full, dropping click event", zap.String("short_code", shortCode))
		}
	}
}

// Info returns a mapping's metadata. Owner-scoped: an authenticated,
// non-admin caller may only see their own mappings; anonymous mappings are
// visible to anyone who knows the code (matching public redirect
// reachability), but only admins and the owner may see owned ones. An
// expired mapping reports Expired.
func (s *URLService) Info(ctx context.Context, p auth.Principal, shortCode string) (*models.URLMapping, *models.AppError) {
	m, err := s.repo.FindByCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return nil, models.ErrMappingNotFound
		}
		return nil, models.ErrInternalWithCause("failed to look up mapping", err)
	}
	if m.IsDeleted {
		return nil, models.ErrMappingNotFound
	}
	if !m.IsAnonymous() && !p.IsAdmin() && (p.IsAnonymous() || !m.IsOwnedBy(p.UserID())) {
		return nil, models.ErrForbidden("you do not own this mapping")
	}
	if m.IsExpired() {
		return nil, models.ErrMappingExpired
	}
	return m, nil
}

// Update applies mutable field changes to an existing mapping. Ownership is
// enforced here, reading through the repository rather than the cache.
func (s *URLService) Update(ctx context.Context, p auth.Principal, shortCode string, expiresAt *time.Time) (*models.URLMapping, *models.AppError) {
	if appErr := auth.RequireOwnership(ctx, s.OwnershipChecker(), p, shortCode); appErr != nil {
		return nil, appErr
	}

	if err := s.repo.UpdateExpiry(ctx, shortCode, expiresAt); err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return nil, models.ErrMappingNotFound
		}
		return nil, models.ErrInternalWithCause("failed to update mapping", err)
	}

	if err := s.cache.Invalidate(ctx, shortCode); err != nil {
		s.logger.Warn("failed to invalidate cache after update", zap.Error(err), zap.String("short_code", shortCode))
	}

	m, err := s.repo.FindByCode(ctx, shortCode)
	if err != nil {
		return nil, models.ErrInternalWithCause("failed to reload mapping after update", err)
	}

	s.notify(ctx, "mapping.updated", m)
	return m, nil
}

// Delete soft-deletes a mapping. Anonymous-owned mappings can never be
// deleted through this path, even by an authenticated non-owner; only the
// admin hard-delete/sweeper path may remove them.
func (s *URLService) Delete(ctx context.Context, p auth.Principal, shortCode string) *models.AppError {
	if appErr := auth.RequireOwnership(ctx, s.OwnershipChecker(), p, shortCode); appErr != nil {
		return appErr
	}

	m, err := s.repo.FindByCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return models.ErrMappingNotFound
		}
		return models.ErrInternalWithCause("failed to look up mapping", err)
	}

	if err := s.repo.SoftDelete(ctx, shortCode); err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return models.ErrMappingNotFound
		}
		return models.ErrInternalWithCause("failed to delete mapping", err)
	}

	if err := s.cache.Invalidate(ctx, shortCode); err != nil {
		s.logger.Warn("failed to invalidate cache after delete", zap.Error(err), zap.String("short_code", shortCode))
	}

	s.notify(ctx, "mapping.deleted", m)
	metrics.LinksDeleted.Inc()
	return nil
}

// List returns a filtered, sorted, paginated view of p's own mappings.
// Anonymous callers cannot list, since there is no owner scope to list.
func (s *URLService) List(ctx context.Context, p auth.Principal, filters models.ListFilters, sort models.SortSpec, page models.Pagination) (*models.PagedResult, *models.AppError) {
	if appErr := auth.RequireAuth(p); appErr != nil {
		return nil, appErr
	}
	if !models.WhitelistedSortFields[sort.Field] {
		sort.Field = "created_at"
	}
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PageSize < 1 || page.PageSize > 100 {
		page.PageSize = 20
	}

	result, err := s.repo.ListByOwner(ctx, p.UserID(), filters, sort, page)
	if err != nil {
		return nil, models.ErrInternalWithCause("failed to list mappings", err)
	}
	return result, nil
}

// CheckAlias reports whether a custom alias is available, offering
// suggestions when it is not.
func (s *URLService) CheckAlias(ctx context.Context, alias string) (*models.AliasCheckResult, *models.AppError) {
	normalized, appErr := s.shortener.Normalize(alias)
	if appErr != nil {
		return nil, appErr
	}

	taken, err := s.repo.ExistsByCode(ctx, normalized)
	if err != nil {
		return nil, models.ErrInternalWithCause("failed to check alias availability", err)
	}
	if !taken {
		return &models.AliasCheckResult{Available: true}, nil
	}

	suggestions := make([]string, 0, 3)
	for i := 1; len(suggestions) < 3 && i < 100; i++ {
		candidate := fmt.Sprintf("%s-%d", normalized, i)
		exists, err := s.repo.ExistsByCode(ctx, candidate)
		if err != nil {
			continue
		}
		if !exists {
			suggestions = append(suggestions, candidate)
		}
	}

	return &models.AliasCheckResult{Available: false, Suggestions: suggestions}, nil
}

// Analytics returns pre-aggregated statistics for a mapping the caller owns
// (or any mapping, for admins).
func (s *URLService) Analytics(ctx context.Context, p auth.Principal, shortCode string) (*models.URLStats, *models.AppError) {
	if appErr := auth.RequireOwnership(ctx, s.OwnershipChecker(), p, shortCode); appErr != nil {
		return nil, appErr
	}

	stats, err := s.analytics.GetURLStats(ctx, shortCode)
	if err != nil {
		return nil, models.ErrInternalWithCause("failed to load analytics", err)
	}
	return stats, nil
}

func (s *URLService) notify(ctx context.Context, event string, m *models.URLMapping) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, event, m)
}

func (s *URLService) shortURL(shortCode string) string {
	return fmt.Sprintf("%s/%s", s.baseURL, shortCode)
}

func hashLongURL(longURL string) string {
	sum := sha256.Sum256([]byte(longURL))
	return hex.EncodeToString(sum[:])
}
