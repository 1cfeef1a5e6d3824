package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noveltoon/backend/internal/logger"
)

// RedisRelay mirrors job events onto redis pub/sub channels so processes
// outside this one (dashboards, other instances) can observe progress.
// Outbound only; the in-process hub stays the source of truth for sequence.
type RedisRelay struct {
	client *redis.Client
	prefix string
	log    *logger.Logger
}

func NewRedisRelay(client *redis.Client, prefix string, log *logger.Logger) *RedisRelay {
	if prefix == "" {
		prefix = "jobs"
	}
	return &RedisRelay{
		client: client,
		prefix: prefix,
		log:    log.With("service", "redis_relay"),
	}
}

func (r *RedisRelay) channel(jobID string) string {
	return fmt.Sprintf("%s:%s:events", r.prefix, jobID)
}

// Publish marshals and fires the event at the job's channel. Relay failures
// are logged, never propagated; progress mirroring must not fail a job.
func (r *RedisRelay) Publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.Error("Failed to marshal event for relay", "job_id", ev.JobID, "error", err)
		return
	}
	if err := r.client.Publish(ctx, r.channel(ev.JobID), payload).Err(); err != nil {
		r.log.Warn("Failed to relay event to redis", "job_id", ev.JobID, "error", err)
	}
}

// Ping verifies the redis connection at boot.
func (r *RedisRelay) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
