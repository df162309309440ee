package chunk

import (
	"context"

	"github.com/redis/go-redis/v9"
)

var redisWorklistPrefix = "worklist/"

type RedisWorklist struct {
	Client *redis.Client
	Name   string
}

var _ Worklist = (*RedisWorklist)(nil)

func NewRedisWorklist(client *redis.Client, name string) *RedisWorklist {
	return &RedisWorklist{Client: client, Name: name}
}

func (w *RedisWorklist) key() string {
	return redisWorklistPrefix + w.Name
}

func (w *RedisWorklist) Add(ctx context.Context, items ...Item) error {
	if len(items) == 0 {
		return nil
	}
	zs := make([]redis.Z, len(items))
	for i, it := range items {
		zs[i] = redis.Z{Score: it.Score, Member: it.Member}
	}
	return w.Client.ZAdd(ctx, w.key(), zs...).Err()
}

func (w *RedisWorklist) Front(ctx context.Context, n int) ([]Item, error) {
	zs, err := w.Client.ZRangeWithScores(ctx, w.key(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, Item{Member: member, Score: z.Score})
	}
	return out, nil
}

func (w *RedisWorklist) Remove(ctx context.Context, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return w.Client.ZRem(ctx, w.key(), args...).Err()
}

func (w *RedisWorklist) Len(ctx context.Context) (int64, error) {
	return w.Client.ZCard(ctx, w.key()).Result()
}
