package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rajweepmondal/url-shortener/internal/models"
)

type fakeRepo struct {
	softDeleted []*models.URLMapping
	deletedIDs  []string
}

func (f *fakeRepo) Create(ctx context.Context, m *models.URLMapping) error { return nil }
func (f *fakeRepo) FindByCode(ctx context.Context, shortCode string) (*models.URLMapping, error) {
	return nil, models.ErrRecordNotFound
}
func (f *fakeRepo) FindActiveByHash(ctx context.Context, hash string, ownerID *string) (*models.URLMapping, error) {
	return nil, models.ErrRecordNotFound
}
func (f *fakeRepo) FindByID(ctx context.Context, id string) (*models.URLMapping, error) {
	return nil, models.ErrRecordNotFound
}
func (f *fakeRepo) UpdateExpiry(ctx context.Context, shortCode string, expiresAt *time.Time) error {
	return nil
}
func (f *fakeRepo) SoftDelete(ctx context.Context, shortCode string) error { return nil }
func (f *fakeRepo) BulkSoftDelete(ctx context.Context, ownerID string) (int64, error) {
	return 0, nil
}
func (f *fakeRepo) IncrementAccess(ctx context.Context, shortCode string, at time.Time) error {
	return nil
}
func (f *fakeRepo) ListByOwner(ctx context.Context, ownerID string, filters models.ListFilters, sort models.SortSpec, page models.Pagination) (*models.PagedResult, error) {
	return nil, nil
}
func (f *fakeRepo) FindExpiring(ctx context.Context, within time.Duration, limit int) ([]*models.URLMapping, error) {
	return nil, nil
}
func (f *fakeRepo) FindSoftDeletedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.URLMapping, error) {
	return f.softDeleted, nil
}
func (f *fakeRepo) HardDelete(ctx context.Context, ids []string) (int64, error) {
	f.deletedIDs = append(f.deletedIDs, ids...)
	return int64(len(ids)), nil
}
func (f *fakeRepo) ExistsByCode(ctx context.Context, shortCode string) (bool, error) {
	return false, nil
}

func TestSweeper_SweepOnce_HardDeletesOldSoftDeletedMappings(t *testing.T) {
	id := uuid.New()
	repo := &fakeRepo{softDeleted: []*models.URLMapping{{ID: id, ShortCode: "abc1234"}}}

	s := New(repo, time.Hour, 30*24*time.Hour, 100, zap.NewNop())
	s.sweepOnce()

	require.Len(t, repo.deletedIDs, 1)
	assert.Equal(t, id.String(), repo.deletedIDs[0])
}

func TestSweeper_SweepOnce_NoopWhenNothingToSweep(t *testing.T) {
	repo := &fakeRepo{}
	s := New(repo, time.Hour, 30*24*time.Hour, 100, zap.NewNop())
	s.sweepOnce()

	assert.Empty(t, repo.deletedIDs)
}
