package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rajweepmondal/url-shortener/internal/cache"
	"github.com/rajweepmondal/url-shortener/internal/models"
	"github.com/rajweepmondal/url-shortener/internal/repository/interfaces"
	"github.com/rajweepmondal/url-shortener/pkg/auth"
	"github.com/rajweepmondal/url-shortener/pkg/shortener"
)

// fakeURLRepository is an in-memory stand-in for interfaces.URLRepository.
type fakeURLRepository struct {
	mu        sync.Mutex
	byCode    map[string]*models.URLMapping
	byHash    map[string]*models.URLMapping
	createErr error
}

func newFakeURLRepository() *fakeURLRepository {
	return &fakeURLRepository{
		byCode: make(map[string]*models.URLMapping),
		byHash: make(map[string]*models.URLMapping),
	}
}

func (f *fakeURLRepository) Create(ctx context.Context, m *models.URLMapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.byCode[m.ShortCode]; exists {
		return models.ErrDuplicateKey
	}
	f.byCode[m.ShortCode] = m
	if m.OwnerID != nil {
		f.byHash[*m.OwnerID+"|"+m.LongURLHash] = m
	}
	return nil
}

func (f *fakeURLRepository) FindByCode(ctx context.Context, shortCode string) (*models.URLMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byCode[shortCode]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return m, nil
}

func (f *fakeURLRepository) FindActiveByHash(ctx context.Context, longURLHash string, ownerID *string) (*models.URLMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ""
	if ownerID != nil {
		key = *ownerID
	}
	m, ok := f.byHash[key+"|"+longURLHash]
	if !ok || m.IsDeleted {
		return nil, models.ErrRecordNotFound
	}
	return m, nil
}

func (f *fakeURLRepository) FindByID(ctx context.Context, id string) (*models.URLMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.byCode {
		if m.ID.String() == id {
			return m, nil
		}
	}
	return nil, models.ErrRecordNotFound
}

func (f *fakeURLRepository) UpdateExpiry(ctx context.Context, shortCode string, expiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byCode[shortCode]
	if !ok {
		return models.ErrRecordNotFound
	}
	m.ExpiresAt = expiresAt
	return nil
}

func (f *fakeURLRepository) SoftDelete(ctx context.Context, shortCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byCode[shortCode]
	if !ok || m.IsDeleted {
		return models.ErrRecordNotFound
	}
	m.IsDeleted = true
	return nil
}

func (f *fakeURLRepository) BulkSoftDelete(ctx context.Context, ownerID string) (int64, error) {
	return 0, nil
}

func (f *fakeURLRepository) IncrementAccess(ctx context.Context, shortCode string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.byCode[shortCode]; ok {
		m.AccessCount++
		m.LastAccessedAt = &at
	}
	return nil
}

func (f *fakeURLRepository) ListByOwner(ctx context.Context, ownerID string, filters models.ListFilters, sort models.SortSpec, page models.Pagination) (*models.PagedResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []*models.URLMapping
	for _, m := range f.byCode {
		if m.OwnerID != nil && *m.OwnerID == ownerID {
			items = append(items, m)
		}
	}
	return &models.PagedResult{Items: items, TotalItems: int64(len(items)), Page: page.Page, PageSize: page.PageSize}, nil
}

func (f *fakeURLRepository) FindExpiring(ctx context.Context, within time.Duration, limit int) ([]*models.URLMapping, error) {
	return nil, nil
}

func (f *fakeURLRepository) FindSoftDeletedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.URLMapping, error) {
	return nil, nil
}

func (f *fakeURLRepository) HardDelete(ctx context.Context, ids []string) (int64, error) {
	return 0, nil
}

func (f *fakeURLRepository) ExistsByCode(ctx context.Context, shortCode string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byCode[shortCode]
	return ok, nil
}

// fakeAnalyticsRepository is an in-memory stand-in for interfaces.AnalyticsRepository.
type fakeAnalyticsRepository struct {
	stats *models.URLStats
}

func (f *fakeAnalyticsRepository) RecordAccess(ctx context.Context, event *models.ClickEvent) error {
	return nil
}

func (f *fakeAnalyticsRepository) GetURLStats(ctx context.Context, shortCode string) (*models.URLStats, error) {
	if f.stats != nil {
		return f.stats, nil
	}
	return &models.URLStats{ShortCode: shortCode}, nil
}

func (f *fakeAnalyticsRepository) GetTopCountries(ctx context.Context, shortCode string, limit int) ([]string, error) {
	return nil, nil
}

func (f *fakeAnalyticsRepository) GetTopReferers(ctx context.Context, shortCode string, limit int) ([]string, error) {
	return nil, nil
}

// fakeCacheRepository is an in-memory stand-in for the L2 cache tier.
type fakeCacheRepository struct {
	mu       sync.Mutex
	positive map[string]*models.URLMapping
	negative map[string]bool
}

func newFakeCacheRepository() *fakeCacheRepository {
	return &fakeCacheRepository{positive: make(map[string]*models.URLMapping), negative: make(map[string]bool)}
}

func (c *fakeCacheRepository) Get(ctx context.Context, shortCode string) (*models.URLMapping, interfaces.CacheEntryStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.positive[shortCode]; ok {
		return m, interfaces.CacheHit, nil
	}
	if c.negative[shortCode] {
		return nil, interfaces.CacheNegativeHit, nil
	}
	return nil, interfaces.CacheMiss, nil
}

func (c *fakeCacheRepository) Put(ctx context.Context, m *models.URLMapping, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positive[m.ShortCode] = m
	delete(c.negative, m.ShortCode)
	return nil
}

func (c *fakeCacheRepository) PutNegative(ctx context.Context, shortCode string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.negative[shortCode] = true
	return nil
}

func (c *fakeCacheRepository) Invalidate(ctx context.Context, shortCode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.positive, shortCode)
	delete(c.negative, shortCode)
	return nil
}

func newTestService(t *testing.T, repo *fakeURLRepository, analytics *fakeAnalyticsRepository) *URLService {
	t.Helper()
	l1, err := cache.NewL1Cache(1000)
	require.NoError(t, err)
	t.Cleanup(l1.Close)

	manager := cache.NewManager(l1, newFakeCacheRepository(), time.Minute, 15*time.Second)
	sc := shortener.New(7, 5, repo, nil)

	if analytics == nil {
		analytics = &fakeAnalyticsRepository{}
	}

	return NewURLService(repo, analytics, manager, sc, "https://short.test", time.Minute, zap.NewNop())
}

func TestURLService_Create_GeneratesShortCode(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)

	result, appErr := svc.Create(context.Background(), auth.AnonymousPrincipal, models.CreateURLRequest{
		LongURL: "https://example.com/a/b/c",
	})

	require.Nil(t, appErr)
	assert.NotEmpty(t, result.Mapping.ShortCode)
	assert.Equal(t, "https://short.test/"+result.Mapping.ShortCode, result.ShortURL)
	assert.False(t, result.WasReused)
}

func TestURLService_Create_CustomAlias(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)

	result, appErr := svc.Create(context.Background(), auth.AnonymousPrincipal, models.CreateURLRequest{
		LongURL:     "https://example.com/custom",
		CustomAlias: strPtr("my-link"),
	})

	require.Nil(t, appErr)
	assert.Equal(t, "my-link", result.Mapping.ShortCode)
	assert.True(t, result.Mapping.IsCustomAlias)
}

func TestURLService_Create_AliasTaken(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)

	ctx := context.Background()
	_, appErr := svc.Create(ctx, auth.AnonymousPrincipal, models.CreateURLRequest{
		LongURL:     "https://example.com/one",
		CustomAlias: strPtr("taken"),
	})
	require.Nil(t, appErr)

	_, appErr = svc.Create(ctx, auth.AnonymousPrincipal, models.CreateURLRequest{
		LongURL:     "https://example.com/two",
		CustomAlias: strPtr("taken"),
	})
	require.NotNil(t, appErr)
	assert.Equal(t, models.ErrCodeAliasTaken, appErr.Code)
}

func TestURLService_Create_InvalidURL(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)

	_, appErr := svc.Create(context.Background(), auth.AnonymousPrincipal, models.CreateURLRequest{
		LongURL: "not-a-url",
	})

	require.NotNil(t, appErr)
	assert.Equal(t, models.ErrCodeInvalidURL, appErr.Code)
}

func TestURLService_Create_DedupReusesExistingMapping(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)
	owner := auth.NewUserPrincipal("user-1", models.TierStandard, false)

	first, appErr := svc.Create(context.Background(), owner, models.CreateURLRequest{
		LongURL: "https://example.com/dup",
	})
	require.Nil(t, appErr)

	second, appErr := svc.Create(context.Background(), owner, models.CreateURLRequest{
		LongURL: "https://example.com/dup",
	})
	require.Nil(t, appErr)
	assert.True(t, second.WasReused)
	assert.Equal(t, first.Mapping.ShortCode, second.Mapping.ShortCode)
}

func TestURLService_Create_DedupMatchesNormalizedEquivalentURLs(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)
	owner := auth.NewUserPrincipal("user-1", models.TierStandard, false)

	first, appErr := svc.Create(context.Background(), owner, models.CreateURLRequest{
		LongURL: "https://Example.com:443/dup",
	})
	require.Nil(t, appErr)

	second, appErr := svc.Create(context.Background(), owner, models.CreateURLRequest{
		LongURL: "https://example.com/dup",
	})
	require.Nil(t, appErr)
	assert.True(t, second.WasReused, "equivalent URLs differing only by host case and default port must dedupe")
	assert.Equal(t, first.Mapping.ShortCode, second.Mapping.ShortCode)
}

func TestURLService_Resolve_NotFound(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)

	_, appErr := svc.Resolve(context.Background(), "missing", models.ClickEvent{})
	require.NotNil(t, appErr)
	assert.Equal(t, models.ErrCodeNotFound, appErr.Code)
}

func TestURLService_Resolve_Expired(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)

	past := time.Now().Add(-time.Hour)
	repo.byCode["exp1234"] = &models.URLMapping{
		ID: uuid.New(), ShortCode: "exp1234", LongURL: "https://example.com", ExpiresAt: &past,
	}

	_, appErr := svc.Resolve(context.Background(), "exp1234", models.ClickEvent{})
	require.NotNil(t, appErr)
	assert.Equal(t, models.ErrCodeGone, appErr.Code)
}

func TestURLService_Resolve_Success(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)

	repo.byCode["abc1234"] = &models.URLMapping{
		ID: uuid.New(), ShortCode: "abc1234", LongURL: "https://example.com/target",
	}

	m, appErr := svc.Resolve(context.Background(), "abc1234", models.ClickEvent{})
	require.Nil(t, appErr)
	assert.Equal(t, "https://example.com/target", m.LongURL)
}

func TestURLService_Update_RequiresOwnership(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)

	owner := "user-1"
	repo.byCode["owned12"] = &models.URLMapping{ID: uuid.New(), ShortCode: "owned12", LongURL: "https://example.com", OwnerID: &owner}

	stranger := auth.NewUserPrincipal("user-2", models.TierStandard, false)
	_, appErr := svc.Update(context.Background(), stranger, "owned12", nil)
	require.NotNil(t, appErr)
	assert.Equal(t, models.ErrCodeForbidden, appErr.Code)
}

func TestURLService_Update_OwnerCanUpdate(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)

	owner := "user-1"
	repo.byCode["owned12"] = &models.URLMapping{ID: uuid.New(), ShortCode: "owned12", LongURL: "https://example.com", OwnerID: &owner}

	newExpiry := time.Now().Add(24 * time.Hour)
	p := auth.NewUserPrincipal("user-1", models.TierStandard, false)
	m, appErr := svc.Update(context.Background(), p, "owned12", &newExpiry)
	require.Nil(t, appErr)
	require.NotNil(t, m.ExpiresAt)
}

func TestURLService_Delete_AnonymousMappingCannotBeDeleted(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)

	repo.byCode["anon123"] = &models.URLMapping{ID: uuid.New(), ShortCode: "anon123", LongURL: "https://example.com"}

	p := auth.NewUserPrincipal("user-1", models.TierStandard, false)
	appErr := svc.Delete(context.Background(), p, "anon123")
	require.NotNil(t, appErr)
	assert.Equal(t, models.ErrCodeForbidden, appErr.Code)
}

func TestURLService_Delete_AdminCanDeleteAnything(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)

	repo.byCode["anon123"] = &models.URLMapping{ID: uuid.New(), ShortCode: "anon123", LongURL: "https://example.com"}

	admin := auth.NewUserPrincipal("admin-1", models.TierEnterprise, true)
	appErr := svc.Delete(context.Background(), admin, "anon123")
	require.Nil(t, appErr)
	assert.True(t, repo.byCode["anon123"].IsDeleted)
}

func TestURLService_Delete_UnknownCodeReturnsNotFound(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)

	p := auth.NewUserPrincipal("user-1", models.TierStandard, false)
	appErr := svc.Delete(context.Background(), p, "doesnotexist")
	require.NotNil(t, appErr)
	assert.Equal(t, models.ErrCodeNotFound, appErr.Code)
}

func TestURLService_Delete_IsIdempotentAndReturnsNotFoundOnSecondCall(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)

	owner := "user-1"
	repo.byCode["owned12"] = &models.URLMapping{ID: uuid.New(), ShortCode: "owned12", LongURL: "https://example.com", OwnerID: &owner}

	p := auth.NewUserPrincipal("user-1", models.TierStandard, false)

	require.Nil(t, svc.Delete(context.Background(), p, "owned12"))

	appErr := svc.Delete(context.Background(), p, "owned12")
	require.NotNil(t, appErr, "deleting an already-deleted code must fail, not silently succeed again")
	assert.Equal(t, models.ErrCodeNotFound, appErr.Code)
}

func TestURLService_List_RejectsAnonymous(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)

	_, appErr := svc.List(context.Background(), auth.AnonymousPrincipal, models.ListFilters{}, models.SortSpec{}, models.Pagination{})
	require.NotNil(t, appErr)
	assert.Equal(t, models.ErrCodeUnauthorized, appErr.Code)
}

func TestURLService_CheckAlias_SuggestsAlternativesWhenTaken(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)

	repo.byCode["taken"] = &models.URLMapping{ID: uuid.New(), ShortCode: "taken", LongURL: "https://example.com"}

	result, appErr := svc.CheckAlias(context.Background(), "taken")
	require.Nil(t, appErr)
	assert.False(t, result.Available)
	assert.NotEmpty(t, result.Suggestions)
}

func TestURLService_CheckAlias_Available(t *testing.T) {
	repo := newFakeURLRepository()
	svc := newTestService(t, repo, nil)

	result, appErr := svc.CheckAlias(context.Background(), "free-alias")
	require.Nil(t, appErr)
	assert.True(t, result.Available)
}

func strPtr(s string) *string { return &s }
