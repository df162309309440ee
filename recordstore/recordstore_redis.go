package recordstore

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/winnowbot/winnow/status"
)

var (
	redisRecordPrefix = "acct/"
	redisRecencyKey   = "acct-recency"
)

type RedisRecordStore struct {
	Client *redis.Client
}

var _ RecordStore = (*RedisRecordStore)(nil)

func NewRedisRecordStore(redisURL string) (*RedisRecordStore, error) {
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
	return &RedisRecordStore{Client: rdb}, nil
}

func recordKey(account string) string {
	return redisRecordPrefix + account
}

func (s *RedisRecordStore) Get(ctx context.Context, account string) (*status.Record, error) {
	raw, err := s.Client.Get(ctx, recordKey(account)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	var rec status.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RedisRecordStore) Put(ctx context.Context, rec *status.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// record body and recency entry land in one round trip
	multi := s.Client.Pipeline()
	multi.Set(ctx, recordKey(rec.Account), raw, 0)
	multi.ZAdd(ctx, redisRecencyKey, redis.Z{
		Score:  float64(rec.LastUpdate.Unix()),
		Member: rec.Account,
	})
	_, err = multi.Exec(ctx)
	return err
}

// Delete removes the record body and the recency entry in one optimistic
// transaction. The watch protects the invariant that no concurrent Put can
// resurrect a half-deleted record: if the body changes under us the
// transaction aborts and is retried.
func (s *RedisRecordStore) Delete(ctx context.Context, account string) error {
	key := recordKey(account)
	txn := func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, redisRecencyKey, account)
			return nil
		})
		return err
	}
	// bounded retries on contention
	for i := 0; i < 5; i++ {
		err := s.Client.Watch(ctx, txn, key)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return redis.TxFailedErr
}

func (s *RedisRecordStore) Recent(ctx context.Context, n int) ([]string, error) {
	return s.Client.ZRevRange(ctx, redisRecencyKey, 0, int64(n-1)).Result()
}

func (s *RedisRecordStore) Scan(ctx context.Context, cursor string, limit int) ([]*status.Record, string, error) {
	offset := int64(0)
	if cursor != "" {
		n, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, "", err
		}
		offset = n
	}
	accounts, err := s.Client.ZRevRange(ctx, redisRecencyKey, offset, offset+int64(limit)-1).Result()
	if err != nil {
		return nil, "", err
	}
	if len(accounts) == 0 {
		return nil, "", nil
	}
	out := make([]*status.Record, 0, len(accounts))
	for _, account := range accounts {
		rec, err := s.Get(ctx, account)
		if err == ErrNotFound {
			// index entry without a body; reconciliation will report it
			continue
		} else if err != nil {
			return nil, "", err
		}
		out = append(out, rec)
	}
	next := ""
	if len(accounts) == limit {
		next = strconv.FormatInt(offset+int64(limit), 10)
	}
	return out, next, nil
}

func (s *RedisRecordStore) Count(ctx context.Context) (int64, error) {
	return s.Client.ZCard(ctx, redisRecencyKey).Result()
}
