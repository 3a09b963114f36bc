package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/johanesalxd/data-clean-room-demo/internal/database"

	"github.com/redis/go-redis/v9"
)

// RunLocker guards against concurrent pipeline runs on the same tables and
// keeps the summary of the most recent run.
type RunLocker interface {
	AcquireRunLock(ctx context.Context, targetDate, tableSuffix string, ttl time.Duration) (bool, error)
	ReleaseRunLock(ctx context.Context, targetDate, tableSuffix string) error
	CacheLastRun(ctx context.Context, summary interface{}) error
}

// LockService provides Redis-backed run locks and last-run caching.
type LockService struct {
	client *redis.Client
}

// NewLockService creates a lock service on the shared Redis client.
func NewLockService() *LockService {
	return &LockService{client: database.GetRedis()}
}

func runLockKey(targetDate, tableSuffix string) string {
	return fmt.Sprintf("pipeline_lock:%s:%s", targetDate, tableSuffix)
}

// AcquireRunLock takes the lock for a target date and suffix. Returns false
// when another run already holds it.
func (l *LockService) AcquireRunLock(ctx context.Context, targetDate, tableSuffix string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, runLockKey(targetDate, tableSuffix), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	return ok, nil
}

// ReleaseRunLock releases the lock for a target date and suffix.
func (l *LockService) ReleaseRunLock(ctx context.Context, targetDate, tableSuffix string) error {
	return l.client.Del(ctx, runLockKey(targetDate, tableSuffix)).Err()
}

// CacheLastRun stores the most recent run summary for quick status reads.
func (l *LockService) CacheLastRun(ctx context.Context, summary interface{}) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	return l.client.Set(ctx, "pipeline_last_run", data, 24*time.Hour).Err()
}

// GetLastRun returns the cached run summary, or redis.Nil when absent.
func (l *LockService) GetLastRun(ctx context.Context) (string, error) {
	return l.client.Get(ctx, "pipeline_last_run").Result()
}
