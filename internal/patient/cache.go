package patient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sepguard/platform/internal/shared/types"
)

// CacheClient is the slice of the redis client the cache uses.
// *redis.Client satisfies it.
type CacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedRepository decorates a Repository with a Redis write-through cache
// for the latest vitals/labs of each patient. The risk evaluator reads
// latest samples on every ingest and every assessment round; keeping them
// in Redis spares the record store that hot path. Cache failures degrade
// to the inner repository and are logged, never surfaced.
type CachedRepository struct {
	Repository
	client CacheClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedRepository wraps inner with a latest-sample cache
func NewCachedRepository(inner Repository, client CacheClient, ttl time.Duration, logger *zap.Logger) *CachedRepository {
	return &CachedRepository{
		Repository: inner,
		client:     client,
		ttl:        ttl,
		logger:     logger,
	}
}

func latestVitalsKey(patientID types.ID) string {
	return fmt.Sprintf("patient:%s:vitals:latest", patientID)
}

func latestLabsKey(patientID types.ID) string {
	return fmt.Sprintf("patient:%s:labs:latest", patientID)
}

func (r *CachedRepository) AppendVitals(ctx context.Context, s *VitalsSample) error {
	if err := r.Repository.AppendVitals(ctx, s); err != nil {
		return err
	}

	// A manual entry may carry a backdated RecordedAt; it must not
	// displace a newer cached sample.
	key := latestVitalsKey(s.PatientID)
	if data, err := r.client.Get(ctx, key).Result(); err == nil {
		var cached VitalsSample
		if json.Unmarshal([]byte(data), &cached) == nil && cached.RecordedAt.After(s.RecordedAt) {
			return nil
		}
	} else if err != redis.Nil {
		// Cache state unknown; drop the key and let the next read backfill
		r.client.Del(ctx, key)
		return nil
	}

	data, err := json.Marshal(s)
	if err == nil {
		err = r.client.Set(ctx, key, data, r.ttl).Err()
	}
	if err != nil {
		r.logger.Warn("latest vitals cache write failed",
			zap.String("patient_id", s.PatientID.String()), zap.Error(err))
	}
	return nil
}

func (r *CachedRepository) AppendLabs(ctx context.Context, s *LabSample) error {
	if err := r.Repository.AppendLabs(ctx, s); err != nil {
		return err
	}

	key := latestLabsKey(s.PatientID)
	if data, err := r.client.Get(ctx, key).Result(); err == nil {
		var cached LabSample
		if json.Unmarshal([]byte(data), &cached) == nil && cached.RecordedAt.After(s.RecordedAt) {
			return nil
		}
	} else if err != redis.Nil {
		r.client.Del(ctx, key)
		return nil
	}

	data, err := json.Marshal(s)
	if err == nil {
		err = r.client.Set(ctx, key, data, r.ttl).Err()
	}
	if err != nil {
		r.logger.Warn("latest labs cache write failed",
			zap.String("patient_id", s.PatientID.String()), zap.Error(err))
	}
	return nil
}

func (r *CachedRepository) LatestVitals(ctx context.Context, patientID types.ID) (*VitalsSample, error) {
	data, err := r.client.Get(ctx, latestVitalsKey(patientID)).Result()
	if err == nil {
		var s VitalsSample
		if err := json.Unmarshal([]byte(data), &s); err == nil {
			return &s, nil
		}
	} else if err != redis.Nil {
		r.logger.Warn("latest vitals cache read failed",
			zap.String("patient_id", patientID.String()), zap.Error(err))
	}

	s, err := r.Repository.LatestVitals(ctx, patientID)
	if err != nil || s == nil {
		return s, err
	}

	// Backfill so the next read hits
	if data, err := json.Marshal(s); err == nil {
		r.client.Set(ctx, latestVitalsKey(patientID), data, r.ttl)
	}
	return s, nil
}

func (r *CachedRepository) LatestLabs(ctx context.Context, patientID types.ID) (*LabSample, error) {
	data, err := r.client.Get(ctx, latestLabsKey(patientID)).Result()
	if err == nil {
		var s LabSample
		if err := json.Unmarshal([]byte(data), &s); err == nil {
			return &s, nil
		}
	} else if err != redis.Nil {
		r.logger.Warn("latest labs cache read failed",
			zap.String("patient_id", patientID.String()), zap.Error(err))
	}

	s, err := r.Repository.LatestLabs(ctx, patientID)
	if err != nil || s == nil {
		return s, err
	}

	if data, err := json.Marshal(s); err == nil {
		r.client.Set(ctx, latestLabsKey(patientID), data, r.ttl)
	}
	return s, nil
}

func (r *CachedRepository) DeletePatient(ctx context.Context, id types.ID) error {
	if err := r.Repository.DeletePatient(ctx, id); err != nil {
		return err
	}
	if err := r.client.Del(ctx, latestVitalsKey(id), latestLabsKey(id)).Err(); err != nil {
		r.logger.Warn("latest sample cache invalidation failed",
			zap.String("patient_id", id.String()), zap.Error(err))
	}
	return nil
}
