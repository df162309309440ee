package countstore

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/winnowbot/winnow/status"
)

// single sorted set, member per status, score is the live count
var redisAggregateKey = "aggregate/status"

type RedisCountStore struct {
	Client *redis.Client
}

var _ CountStore = (*RedisCountStore)(nil)

func NewRedisCountStore(redisURL string) (*RedisCountStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisCountStore{Client: rdb}, nil
}

func (s *RedisCountStore) Get(ctx context.Context, st status.Status) (int64, error) {
	score, err := s.Client.ZScore(ctx, redisAggregateKey, st.String()).Result()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return int64(score), nil
}

func (s *RedisCountStore) IncrementBy(ctx context.Context, st status.Status, delta int64) error {
	return s.Client.ZIncrBy(ctx, redisAggregateKey, float64(delta), st.String()).Err()
}

func (s *RedisCountStore) Set(ctx context.Context, st status.Status, val int64) error {
	return s.Client.ZAdd(ctx, redisAggregateKey, redis.Z{
		Score:  float64(val),
		Member: st.String(),
	}).Err()
}

func (s *RedisCountStore) All(ctx context.Context) (map[status.Status]int64, error) {
	members, err := s.Client.ZRangeWithScores(ctx, redisAggregateKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[status.Status]int64, len(members))
	for _, m := range members {
		name, ok := m.Member.(string)
		if !ok {
			continue
		}
		st, err := status.ParseStatus(name)
		if err != nil {
			// stale member from an old deploy; skip rather than fail the read
			continue
		}
		out[st] = int64(m.Score)
	}
	return out, nil
}
