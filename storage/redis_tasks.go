package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"emlak-ingest/models"
)

// TaskTTL bounds how long a previewed task can wait for confirmation.
const TaskTTL = 24 * time.Hour

// RedisTaskStore keeps import tasks as JSON blobs with a TTL.
type RedisTaskStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTaskStore(ctx context.Context, addr, password string, db int) (*RedisTaskStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return &RedisTaskStore{client: client, ttl: TaskTTL}, nil
}

func taskKey(id string) string {
	return "import_task:" + id
}

func (r *RedisTaskStore) SaveTask(ctx context.Context, t *models.ImportTask) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("redis: encode task: %w", err)
	}
	if err := r.client.Set(ctx, taskKey(t.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis: save task %s: %w", t.ID, err)
	}
	return nil
}

func (r *RedisTaskStore) GetTask(ctx context.Context, id string) (*models.ImportTask, error) {
	data, err := r.client.Get(ctx, taskKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get task %s: %w", id, err)
	}

	var t models.ImportTask
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("redis: decode task %s: %w", id, err)
	}
	return &t, nil
}

func (r *RedisTaskStore) Close() error {
	return r.client.Close()
}
