package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportKeyEscapesParts(t *testing.T) {
	assert.Equal(t, "analytics:enrollment:department=A|B", reportKey("enrollment", "", "department=A:B"))
	assert.Equal(t, "analytics:enrollment:department=CS_", reportKey("enrollment", "department=CS*"))
	assert.Equal(t, "analytics:course-performance", reportKey("course-performance"))
}

func TestCacheServiceEvictsUndecodableReport(t *testing.T) {
	repo := newMemCacheRepo()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)
	ctx := context.Background()
	key := reportKey("financial", "monthly")

	repo.data[key] = []byte(`{"total_revenue":`)
	var dest map[string]interface{}
	hit, err := svc.Get(ctx, key, &dest)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Zero(t, repo.keys())

	require.NoError(t, svc.Set(ctx, key, map[string]int{"payments": 3}, 0))
	hit, err = svc.Get(ctx, key, &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.EqualValues(t, 3, dest["payments"])

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := newMemCacheRepo()
	svc := NewCacheService(repo, NewMetricsService(), 0, nil, false)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, reportKey("activity", "30"), 1, 0))
	assert.Zero(t, repo.keys())
	var dest int
	hit, err := svc.Get(ctx, reportKey("activity", "30"), &dest)
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, svc.Invalidate(ctx, analyticsCachePattern))

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}
