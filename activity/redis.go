package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/redis.v5"

	"lims/library"
)

// RedisLog stores each member's history as a capped Redis list, newest first.
type RedisLog struct {
	client *redis.Client
	limit  int
}

// NewRedisLog connects to the Redis server at addr and checks it answers.
func NewRedisLog(addr string, limit int) (*RedisLog, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return &RedisLog{client: client, limit: limit}, nil
}

func (l *RedisLog) Record(_ context.Context, ev library.CirculationEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	key := memberKey(ev.MemberID)
	if err := l.client.LPush(key, value).Err(); err != nil {
		return err
	}
	return l.client.LTrim(key, 0, int64(l.limit-1)).Err()
}

func (l *RedisLog) Recent(_ context.Context, memberID int64, n int) ([]library.CirculationEvent, error) {
	n = clamp(n, l.limit)
	raw, err := l.client.LRange(memberKey(memberID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]library.CirculationEvent, 0, len(raw))
	for _, s := range raw {
		var ev library.CirculationEvent
		if err := json.Unmarshal([]byte(s), &ev); err != nil {
			return nil, fmt.Errorf("decode activity entry: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (l *RedisLog) Close() error { return l.client.Close() }
