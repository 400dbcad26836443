package records

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/mpetrov/chessmatch/pkg/matchdto"
)

// RedisStore keeps one hash per player name with wins/draws/losses fields.
// Records are cumulative and carry no TTL.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects and pings; a store that cannot be reached at startup
// is a configuration error, not a transient one.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for record store")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func recordKey(name string) string { return "record:name:" + strings.TrimSpace(name) }

func (s *RedisStore) Get(ctx context.Context, name string) (matchdto.Record, error) {
	fields, err := s.rdb.HGetAll(ctx, recordKey(name)).Result()
	if err != nil {
		return matchdto.Record{}, fmt.Errorf("record get: %w", err)
	}
	return recordFromFields(name, fields), nil
}

func (s *RedisStore) Increment(ctx context.Context, name string, outcome Outcome) (matchdto.Record, error) {
	key := recordKey(name)
	pipe := s.rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, outcome.field(), 1)
	all := pipe.HGetAll(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return matchdto.Record{}, fmt.Errorf("record increment: %w", err)
	}
	return recordFromFields(name, all.Val()), nil
}

func recordFromFields(name string, fields map[string]string) matchdto.Record {
	rec := matchdto.Record{Name: strings.TrimSpace(name)}
	rec.Wins = parseCount(fields["wins"])
	rec.Draws = parseCount(fields["draws"])
	rec.Losses = parseCount(fields["losses"])
	return rec
}

func parseCount(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
