package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"storefront-core/internal/model"

	"github.com/redis/go-redis/v9"
)

// Each subscriber owns a hash of key -> encoded notification and a sorted set
// of keys scored by creation time in milliseconds.
var insertScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
	return 0
end
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
local excess = redis.call('ZCARD', KEYS[2]) - tonumber(ARGV[4])
if excess > 0 then
	local old = redis.call('ZRANGE', KEYS[2], 0, excess - 1)
	redis.call('ZREMRANGEBYRANK', KEYS[2], 0, excess - 1)
	redis.call('HDEL', KEYS[1], unpack(old))
end
redis.call('PEXPIRE', KEYS[1], ARGV[5])
redis.call('PEXPIRE', KEYS[2], ARGV[5])
redis.call('SADD', KEYS[3], ARGV[6])
return redis.call('HEXISTS', KEYS[1], ARGV[1])
`)

var pruneScript = redis.NewScript(`
local old = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', '(' .. ARGV[1])
if #old == 0 then
	return 0
end
redis.call('ZREMRANGEBYSCORE', KEYS[2], '-inf', '(' .. ARGV[1])
redis.call('HDEL', KEYS[1], unpack(old))
return #old
`)

// RedisStore is a HistoryStore shared by every instance of the service.
type RedisStore struct {
	client *redis.Client
	prefix string
	limit  int
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed history store. prefix namespaces keys.
func NewRedisStore(client *redis.Client, prefix string, limit int, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		limit:  limit,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisStore) itemsKey(member string) string { return s.prefix + "notif:" + member + ":items" }
func (s *RedisStore) orderKey(member string) string { return s.prefix + "notif:" + member + ":order" }
func (s *RedisStore) membersKey() string            { return s.prefix + "notif:subscribers" }

func (s *RedisStore) Insert(ctx context.Context, sub model.Subscriber, n model.Notification) (bool, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return false, fmt.Errorf("failed to encode notification: %w", err)
	}

	member := sub.Key()
	res, err := insertScript.Run(ctx, s.client,
		[]string{s.itemsKey(member), s.orderKey(member), s.membersKey()},
		n.Key, data, n.CreatedAt.UnixMilli(), s.limit, s.ttl.Milliseconds(), member,
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to insert notification: %w", err)
	}
	return res == 1, nil
}

func (s *RedisStore) List(ctx context.Context, sub model.Subscriber) ([]model.Notification, error) {
	member := sub.Key()
	cutoff := s.now().Add(-s.ttl).UnixMilli()

	keys, err := s.client.ZRevRangeByScore(ctx, s.orderKey(member), &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	if len(keys) == 0 {
		return []model.Notification{}, nil
	}

	values, err := s.client.HMGet(ctx, s.itemsKey(member), keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}

	out := make([]model.Notification, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var n model.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, fmt.Errorf("failed to decode notification: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *RedisStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	members, err := s.client.SMembers(ctx, s.membersKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list subscribers: %w", err)
	}

	removed := 0
	for _, member := range members {
		n, err := pruneScript.Run(ctx, s.client,
			[]string{s.itemsKey(member), s.orderKey(member)},
			cutoff.UnixMilli(),
		).Int()
		if err != nil {
			return removed, fmt.Errorf("failed to prune %s: %w", member, err)
		}
		removed += n

		size, err := s.client.ZCard(ctx, s.orderKey(member)).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to size %s: %w", member, err)
		}
		if size == 0 {
			if err := s.client.SRem(ctx, s.membersKey(), member).Err(); err != nil {
				return removed, fmt.Errorf("failed to forget %s: %w", member, err)
			}
		}
	}
	return removed, nil
}
