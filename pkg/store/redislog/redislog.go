// Package redislog provides a Redis list implementation of store.Log.
//
// Rows are stored as CSV-encoded strings in a list (RPUSH appends, LRANGE
// reads the tail). A separate header key marks the log as created so an empty
// log can be told apart from a missing one.
package redislog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Zerofisher/icmpwatch/pkg/model"
	"github.com/Zerofisher/icmpwatch/pkg/store"
)

// DefaultKey is the list key used when none is configured.
const DefaultKey = "icmpwatch:features"

// Config holds connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Log is a Redis-backed metric log.
type Log struct {
	client *redis.Client
	key    string
}

var _ store.Log = (*Log)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Log, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 1,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, cfg.Key), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, key string) *Log {
	if key == "" {
		key = DefaultKey
	}
	return &Log{client: client, key: key}
}

func (l *Log) headerKey() string {
	return l.key + ":header"
}

// Append pushes one CSV-encoded row. The header marker is set on first use.
func (l *Log) Append(ctx context.Context, rec model.FeatureRecord) error {
	pipe := l.client.TxPipeline()
	pipe.SetNX(ctx, l.headerKey(), strings.Join(model.Columns, ","), 0)
	pipe.RPush(ctx, l.key, strings.Join(rec.Fields(), ","))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

// Tail returns up to n most recent rows, oldest first.
func (l *Log) Tail(ctx context.Context, n int) ([]model.FeatureRecord, error) {
	exists, err := l.client.Exists(ctx, l.headerKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("check header: %w", err)
	}
	if exists == 0 {
		return nil, store.ErrNoLog
	}

	start := int64(0)
	if n > 0 {
		start = -int64(n)
	}
	values, err := l.client.LRange(ctx, l.key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	records := make([]model.FeatureRecord, 0, len(values))
	for i, v := range values {
		rec, err := model.ParseFields(strings.Split(v, ","))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close closes the client.
func (l *Log) Close() error {
	return l.client.Close()
}
