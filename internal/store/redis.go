package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotTTL = 24 * time.Hour

// Mirror receives copies of session snapshots for observers outside the device.
type Mirror interface {
	Put(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

type RedisMirror struct {
	client   *redis.Client
	deviceID string
}

func NewRedisMirror(ctx context.Context, redisURL, deviceID string) (*RedisMirror, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisMirror{client: client, deviceID: deviceID}, nil
}

func (m *RedisMirror) Put(ctx context.Context, key string, value []byte) error {
	return m.client.Set(ctx, SnapshotKey(m.deviceID, key), value, snapshotTTL).Err()
}

func (m *RedisMirror) Remove(ctx context.Context, key string) error {
	return m.client.Del(ctx, SnapshotKey(m.deviceID, key)).Err()
}

func (m *RedisMirror) Close() error {
	return m.client.Close()
}

func SnapshotKey(deviceID, key string) string {
	return fmt.Sprintf("dialagent:%s:%s", deviceID, key)
}
