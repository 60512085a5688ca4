package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/doctagger/doctagger/pkg/logger"
)

const (
	recordTTL   = 24 * time.Hour
	recencyKeep = 500
)

type redisRegistry struct {
	client *redis.Client
	log    logger.Logger
}

// NewRedis returns a registry persisting records in Redis. Records
// expire after 24 hours; a per-kind recency list backs List.
func NewRedis(opts RedisOptions, log logger.Logger) (Registry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisRegistry{client: client, log: log}, nil
}

func recordKey(kind Kind, id string) string {
	return fmt.Sprintf("status:%s:%s", kind, id)
}

func recencyKey(kind Kind) string {
	return fmt.Sprintf("status:%s:recent", kind)
}

func (r *redisRegistry) Set(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, recordKey(rec.Kind, rec.ID), data, recordTTL)
	pipe.LRem(ctx, recencyKey(rec.Kind), 0, rec.ID)
	pipe.LPush(ctx, recencyKey(rec.Kind), rec.ID)
	pipe.LTrim(ctx, recencyKey(rec.Kind), 0, recencyKeep-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

func (r *redisRegistry) Get(ctx context.Context, kind Kind, id string) (Record, error) {
	data, err := r.client.Get(ctx, recordKey(kind, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("failed to fetch record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}

func (r *redisRegistry) List(ctx context.Context, kind Kind, limit int) ([]Record, error) {
	if limit <= 0 || limit > recencyKeep {
		limit = recencyKeep
	}
	ids, err := r.client.LRange(ctx, recencyKey(kind), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := r.Get(ctx, kind, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// expired record still referenced by the list
				r.log.Debug("dropping expired record", logger.String("id", id))
				continue
			}
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *redisRegistry) Close() error {
	return r.client.Close()
}
