package monitor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/coinscope/coinscope/internal/queue"
)

// outcomes enumerates the sorted sets kept per queue.
var outcomes = []queue.EventType{
	queue.EventCompleted,
	queue.EventFailed,
	queue.EventProgress,
	queue.EventStalled,
}

// RedisStore keeps records in per-{queue,outcome} sorted sets scored by
// event time, so window counts and trims are single Redis calls.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(queueName string, outcome queue.EventType) string {
	return fmt.Sprintf("monitor:%s:%s", queueName, outcome)
}

func (s *RedisStore) Append(ctx context.Context, rec Record) error {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode monitor record: %w", err)
	}
	err = s.client.ZAdd(ctx, redisKey(rec.Queue, rec.Outcome), redis.Z{
		Score:  float64(rec.Timestamp.UnixMilli()),
		Member: data,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append monitor record: %w", err)
	}
	return nil
}

func (s *RedisStore) CountSince(ctx context.Context, queueName string, outcome queue.EventType, since time.Time) (int, error) {
	min := strconv.FormatInt(since.UnixMilli(), 10)
	n, err := s.client.ZCount(ctx, redisKey(queueName, outcome), min, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count monitor records: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) LastTimestamp(ctx context.Context, queueName string, outcome queue.EventType) (*time.Time, error) {
	zs, err := s.client.ZRevRangeWithScores(ctx, redisKey(queueName, outcome), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read latest monitor record: %w", err)
	}
	if len(zs) == 0 {
		return nil, nil
	}
	ts := time.UnixMilli(int64(zs[0].Score))
	return &ts, nil
}

func (s *RedisStore) RecentFailures(ctx context.Context, queueName string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	members, err := s.client.ZRevRange(ctx, redisKey(queueName, queue.EventFailed), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read failure records: %w", err)
	}
	records := make([]Record, 0, len(members))
	for _, m := range members {
		var rec Record
		if err := msgpack.Unmarshal([]byte(m), &rec); err != nil {
			continue // skip undecodable entries rather than failing the view
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *RedisStore) Trim(ctx context.Context, olderThan time.Time) error {
	max := strconv.FormatInt(olderThan.UnixMilli()-1, 10)
	for _, queueName := range queue.AllQueues {
		for _, outcome := range outcomes {
			if err := s.client.ZRemRangeByScore(ctx, redisKey(queueName, outcome), "-inf", max).Err(); err != nil {
				return fmt.Errorf("failed to trim monitor records for %s/%s: %w", queueName, outcome, err)
			}
		}
	}
	return nil
}
