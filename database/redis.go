package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"rata-backend/logger"
)

// ConnectRedis returns nil when Redis is not configured or not reachable; the
// caller falls back to in-process implementations.
func ConnectRedis(ctx context.Context, url string) *redis.Client {
	log := logger.GetLogger()
	if url == "" {
		log.Info("Redis not configured, using in-process change feed")
		return nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warnw("Redis not available, running without it", "error", err)
		_ = client.Close()
		return nil
	}

	log.Infow("Redis connected successfully", "addr", opts.Addr)
	return client
}

// RedisNotifier is a ChangeFeed over Redis pub/sub so every API instance sees
// every write.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	return n.client.Publish(ctx, Topic(c.Kind, c.ID), string(payload)).Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context, kind, id string) (<-chan Change, error) {
	ps := n.client.Subscribe(ctx, Topic(kind, id))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Topic(kind, id), err)
	}

	out := make(chan Change, subscriberBuffer)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					logger.GetLogger().Warnw("Dropping malformed change", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// DeliveryLog remembers processed webhook deliveries so retries are dropped early.
type DeliveryLog interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

const deliveryKeyPrefix = "webhook:delivery:"

type RedisDeliveryLog struct {
	client *redis.Client
}

func NewRedisDeliveryLog(client *redis.Client) *RedisDeliveryLog {
	return &RedisDeliveryLog{client: client}
}

func (l *RedisDeliveryLog) Seen(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, deliveryKeyPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *RedisDeliveryLog) Mark(ctx context.Context, key string, ttl time.Duration) error {
	return l.client.Set(ctx, deliveryKeyPrefix+key, "1", ttl).Err()
}

type MemoryDeliveryLog struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryDeliveryLog() *MemoryDeliveryLog {
	return &MemoryDeliveryLog{entries: make(map[string]time.Time), now: time.Now}
}

func (l *MemoryDeliveryLog) Seen(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.entries[key]
	if !ok {
		return false, nil
	}
	if l.now().After(exp) {
		delete(l.entries, key)
		return false, nil
	}
	return true, nil
}

func (l *MemoryDeliveryLog) Mark(ctx context.Context, key string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[key] = l.now().Add(ttl)
	return nil
}
