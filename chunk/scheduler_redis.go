package chunk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dueJobsKey = "winnow/due-jobs"

// RedisScheduler persists queued invocations in a sorted set scored by their
// due time, so pending work survives a daemon restart. Each member carries a
// nanosecond sequence number so repeated schedulings of the same job and
// payload stay distinct.
type RedisScheduler struct {
	client *redis.Client
}

var _ Scheduler = (*RedisScheduler)(nil)

func NewRedisScheduler(client *redis.Client) *RedisScheduler {
	return &RedisScheduler{client: client}
}

type redisScheduled struct {
	Scheduled
	Seq int64 `json:"seq"`
}

func (s *RedisScheduler) Schedule(ctx context.Context, job string, delay time.Duration, cont Continuation) error {
	runAt := time.Now().Add(delay)
	entry := redisScheduled{
		Scheduled: Scheduled{Job: job, RunAt: runAt, Cont: cont},
		Seq:       time.Now().UnixNano(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding scheduled job: %w", err)
	}
	err = s.client.ZAdd(ctx, dueJobsKey, redis.Z{
		Member: string(raw),
		Score:  float64(runAt.UnixMilli()),
	}).Err()
	if err != nil {
		return fmt.Errorf("queueing scheduled job: %w", err)
	}
	return nil
}

// PopDue removes and returns up to limit invocations whose due time has
// passed. Removal happens before dispatch; a crashed invocation is lost, and
// jobs recover via their worklists on the next scheduled run.
func (s *RedisScheduler) PopDue(ctx context.Context, now time.Time, limit int) ([]Scheduled, error) {
	members, err := s.client.ZRangeByScore(ctx, dueJobsKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("listing due jobs: %w", err)
	}
	var out []Scheduled
	for _, m := range members {
		removed, err := s.client.ZRem(ctx, dueJobsKey, m).Result()
		if err != nil {
			return out, fmt.Errorf("claiming due job: %w", err)
		}
		if removed == 0 {
			// another process claimed it
			continue
		}
		var entry redisScheduled
		if err := json.Unmarshal([]byte(m), &entry); err != nil {
			jobErrorCount.WithLabelValues("unknown").Inc()
			continue
		}
		out = append(out, entry.Scheduled)
	}
	return out, nil
}
