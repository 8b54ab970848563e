package resume

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/playcore/internal/config"
	"github.com/zsiec/playcore/internal/errors"
	"github.com/zsiec/playcore/internal/metrics"
)

const (
	// DefaultTTL is used when the configured TTL is not positive.
	DefaultTTL = 30 * 24 * time.Hour
	// DefaultKeyPrefix namespaces resume keys.
	DefaultKeyPrefix = "playcore:resume:"
)

// saveScript writes the position and indexes it in the recency set in one
// step.
var saveScript = redis.NewScript(`
	local key = KEYS[1]
	local index_key = KEYS[2]
	local data = ARGV[1]
	local ttl = tonumber(ARGV[2])
	local score = tonumber(ARGV[3])
	local media_id = ARGV[4]
	redis.call('SET', key, data, 'PX', ttl)
	redis.call('ZADD', index_key, score, media_id)
	return 1
`)

// recentScript reads the newest entries of the recency set and prunes ids
// whose position key has expired.
var recentScript = redis.NewScript(`
	local index_key = KEYS[1]
	local prefix = ARGV[1]
	local limit = tonumber(ARGV[2])
	local ids = redis.call('ZREVRANGE', index_key, 0, -1)
	local result = {}
	for i, id in ipairs(ids) do
		local data = redis.call('GET', prefix .. id)
		if data then
			if #result < limit then
				table.insert(result, data)
			end
		else
			redis.call('ZREM', index_key, id)
		end
	end
	return result
`)

// RedisStore implements Store on Redis. Each position is a JSON string key
// with a TTL; a sorted set scored by update time indexes them.
type RedisStore struct {
	client redis.UniversalClient
	logger *logrus.Logger
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.UniversalClient, logger *logrus.Logger, cfg config.ResumeConfig) *RedisStore {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{
		client: client,
		logger: logger,
		prefix: prefix,
		ttl:    ttl,
	}
}

// NewClient builds a go-redis client from the redis config section. One
// address gives a single-node client, several give a cluster client.
func NewClient(cfg config.RedisConfig) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Addresses,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
}

func (r *RedisStore) key(mediaID string) string {
	return r.prefix + mediaID
}

func (r *RedisStore) indexKey() string {
	return r.prefix + "recent"
}

// Save records pos. UpdatedAt is set to now.
func (r *RedisStore) Save(ctx context.Context, pos *Position) (err error) {
	defer func() { metrics.RecordResumeOperation("save", err) }()

	if err := validate(pos); err != nil {
		return err
	}
	pos.UpdatedAt = time.Now()

	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}

	if err := saveScript.Run(ctx, r.client,
		[]string{r.key(pos.MediaID), r.indexKey()},
		data, r.ttl.Milliseconds(), pos.UpdatedAt.UnixMilli(), pos.MediaID).Err(); err != nil {
		return errors.NewIOError(err, "failed to save resume position")
	}

	r.logger.WithFields(logrus.Fields{
		"media_id":    pos.MediaID,
		"position_ms": pos.PositionMS,
	}).Debug("Resume position saved")
	return nil
}

// Get returns the saved position for mediaID.
func (r *RedisStore) Get(ctx context.Context, mediaID string) (pos *Position, err error) {
	defer func() {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			metrics.RecordResumeOperation("get", nil)
			return
		}
		metrics.RecordResumeOperation("get", err)
	}()

	data, err := r.client.Get(ctx, r.key(mediaID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, notFound(mediaID)
		}
		return nil, errors.NewIOError(err, "failed to get resume position")
	}

	pos = &Position{}
	if err := json.Unmarshal(data, pos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal position: %w", err)
	}
	return pos, nil
}

// Delete forgets the position for mediaID. Deleting an unknown id is a
// not-found error.
func (r *RedisStore) Delete(ctx context.Context, mediaID string) (err error) {
	defer func() { metrics.RecordResumeOperation("delete", err) }()

	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, r.key(mediaID))
	pipe.ZRem(ctx, r.indexKey(), mediaID)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewIOError(err, "failed to delete resume position")
	}
	if del.Val() == 0 {
		return notFound(mediaID)
	}

	r.logger.WithField("media_id", mediaID).Debug("Resume position deleted")
	return nil
}

// Recent returns up to limit positions, newest first. Expired entries are
// pruned from the index as a side effect.
func (r *RedisStore) Recent(ctx context.Context, limit int) (out []*Position, err error) {
	defer func() { metrics.RecordResumeOperation("recent", err) }()

	if limit <= 0 {
		return nil, errors.NewValidationError("limit must be positive")
	}

	res, err := recentScript.Run(ctx, r.client, []string{r.indexKey()}, r.prefix, limit).Result()
	if err != nil {
		return nil, errors.NewIOError(err, "failed to list resume positions")
	}

	values, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected result type from script")
	}

	out = make([]*Position, 0, len(values))
	for _, val := range values {
		data, ok := val.(string)
		if !ok {
			r.logger.Warn("Invalid data type in result")
			continue
		}
		var pos Position
		if err := json.Unmarshal([]byte(data), &pos); err != nil {
			r.logger.WithError(err).Warn("Failed to unmarshal resume position")
			continue
		}
		out = append(out, &pos)
	}
	return out, nil
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
