package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/debemdeboas/lending-admin/internal/model"
)

const (
	redisKeyPrefix     = "collection:"
	redisChangeChannel = "collection-changes"
)

// RedisDocumentRepository stores documents as plain keys and announces every
// write on a pub/sub channel, so all processes sharing the server see it.
type RedisDocumentRepository struct { // implements DocumentRepository
	changeNotifier

	client *redis.Client
	sub    *redis.PubSub
	stop   context.CancelFunc
}

func NewRedisDocumentRepository(redisURL string) (*RedisDocumentRepository, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisDocumentRepositoryWithClient(redis.NewClient(opts)), nil
}

func NewRedisDocumentRepositoryWithClient(client *redis.Client) *RedisDocumentRepository {
	return &RedisDocumentRepository{client: client}
}

func (r *RedisDocumentRepository) Init(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	subCtx, stop := context.WithCancel(context.Background())
	r.stop = stop
	r.sub = r.client.Subscribe(subCtx, redisChangeChannel)

	// Wait for the subscription to be confirmed so no write is missed.
	if _, err := r.sub.Receive(ctx); err != nil {
		stop()
		r.sub.Close()
		return fmt.Errorf("subscribe to %s: %w", redisChangeChannel, err)
	}

	go r.listen(subCtx)
	return nil
}

func (r *RedisDocumentRepository) listen(ctx context.Context) {
	msgCh := r.sub.Channel()
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			repoLogger.Debug().Str("resource", msg.Payload).Msg("Document change published")
			r.notify(model.ResourceKey(msg.Payload))
		case <-ctx.Done():
			return
		}
	}
}

func (r *RedisDocumentRepository) Get(ctx context.Context, key model.ResourceKey) ([]byte, error) {
	content, err := r.client.Get(ctx, redisKeyPrefix+string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", key, err)
	}
	return content, nil
}

func (r *RedisDocumentRepository) Put(ctx context.Context, key model.ResourceKey, data []byte) error {
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKeyPrefix+string(key), data, 0)
		pipe.Publish(ctx, redisChangeChannel, string(key))
		return nil
	})
	if err != nil {
		return fmt.Errorf("save document %s: %w", key, err)
	}
	return nil
}

func (r *RedisDocumentRepository) Keys(ctx context.Context) ([]model.ResourceKey, error) {
	var keys []model.ResourceKey
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, model.ResourceKey(strings.TrimPrefix(iter.Val(), redisKeyPrefix)))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	slices.Sort(keys)
	return keys, nil
}

func (r *RedisDocumentRepository) Close() error {
	if r.stop != nil {
		r.stop()
	}
	if r.sub != nil {
		_ = r.sub.Close()
	}
	return r.client.Close()
}
