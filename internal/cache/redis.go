package cache

import (
	"context"
	"time"

	"github.com/Somchit-cmd/adminawaylog/internal/storage"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const LastKnownKey = "adminawaylog:reports:last_known"

// Redis stores the list as JSON under LastKnownKey.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects using a redis:// URL and pings the server.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return NewRedisWithClient(rdb, ttl), nil
}

func NewRedisWithClient(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

func (r *Redis) Save(ctx context.Context, reports []storage.FieldReport) error {
	b, err := encodeReports(reports)
	if err != nil {
		return errors.Wrap(err, "encode reports")
	}
	if err := r.rdb.Set(ctx, LastKnownKey, b, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (r *Redis) Load(ctx context.Context) ([]storage.FieldReport, bool, error) {
	raw, err := r.rdb.Get(ctx, LastKnownKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	reports, err := decodeReports(raw)
	if err != nil {
		return nil, false, errors.Wrap(err, "decode reports")
	}
	return reports, true, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
