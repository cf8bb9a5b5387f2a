package patient

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sepguard/platform/internal/shared/types"
)

type fakeCacheClient struct {
	data map[string]string
}

func newFakeCacheClient() *fakeCacheClient {
	return &fakeCacheClient{data: make(map[string]string)}
}

func (c *fakeCacheClient) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := c.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (c *fakeCacheClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		c.data[key] = string(v)
	case string:
		c.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (c *fakeCacheClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := c.data[k]; ok {
			delete(c.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func newCachedFixture(t *testing.T) (*CachedRepository, *Patient) {
	t.Helper()
	inner := NewMemoryRepository()
	repo := NewCachedRepository(inner, newFakeCacheClient(), time.Minute, zap.NewNop())

	p := newTestPatient("Test", "101")
	if err := repo.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("CreatePatient failed: %v", err)
	}
	return repo, p
}

func TestCachedRepositoryServesLatestVitals(t *testing.T) {
	ctx := context.Background()
	repo, p := newCachedFixture(t)

	now := time.Now().Truncate(time.Second)
	repo.AppendVitals(ctx, &VitalsSample{
		ID: types.NewID(), PatientID: p.ID, HeartRate: f(80), RecordedAt: now.Add(-time.Hour),
	})
	repo.AppendVitals(ctx, &VitalsSample{
		ID: types.NewID(), PatientID: p.ID, HeartRate: f(95), RecordedAt: now,
	})

	latest, err := repo.LatestVitals(ctx, p.ID)
	if err != nil {
		t.Fatalf("LatestVitals failed: %v", err)
	}
	if latest == nil || !latest.RecordedAt.Equal(now) {
		t.Errorf("Expected latest sample at %v, got %+v", now, latest)
	}
}

func TestCachedRepositoryBackdatedVitalsKeepNewest(t *testing.T) {
	ctx := context.Background()
	repo, p := newCachedFixture(t)

	now := time.Now().Truncate(time.Second)
	repo.AppendVitals(ctx, &VitalsSample{
		ID: types.NewID(), PatientID: p.ID, HeartRate: f(95), RecordedAt: now,
	})

	// A late manual entry for this morning must not displace the
	// current reading
	repo.AppendVitals(ctx, &VitalsSample{
		ID: types.NewID(), PatientID: p.ID, HeartRate: f(70), RecordedAt: now.Add(-6 * time.Hour),
	})

	latest, err := repo.LatestVitals(ctx, p.ID)
	if err != nil {
		t.Fatalf("LatestVitals failed: %v", err)
	}
	if latest == nil || !latest.RecordedAt.Equal(now) {
		t.Errorf("Expected latest sample at %v, got %+v", now, latest)
	}
	if latest.HeartRate == nil || *latest.HeartRate != 95 {
		t.Errorf("Expected current reading preserved, got %+v", latest.HeartRate)
	}
}

func TestCachedRepositoryBackdatedLabsKeepNewest(t *testing.T) {
	ctx := context.Background()
	repo, p := newCachedFixture(t)

	now := time.Now().Truncate(time.Second)
	repo.AppendLabs(ctx, &LabSample{
		ID: types.NewID(), PatientID: p.ID, Lactate: f(3.9), RecordedAt: now,
	})
	repo.AppendLabs(ctx, &LabSample{
		ID: types.NewID(), PatientID: p.ID, Lactate: f(1.1), RecordedAt: now.Add(-2 * time.Hour),
	})

	latest, err := repo.LatestLabs(ctx, p.ID)
	if err != nil {
		t.Fatalf("LatestLabs failed: %v", err)
	}
	if latest == nil || !latest.RecordedAt.Equal(now) {
		t.Errorf("Expected latest sample at %v, got %+v", now, latest)
	}
	if latest.Lactate == nil || *latest.Lactate != 3.9 {
		t.Errorf("Expected current lactate preserved, got %+v", latest.Lactate)
	}
}
