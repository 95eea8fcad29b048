// Package redisstore implements a storage area on Redis. Writes publish the
// changed key on a channel so viewers in other processes are signalled.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/hh6422123-cyber/Eak/internal/log"
	"github.com/hh6422123-cyber/Eak/internal/store"
)

// DefaultChannel carries change signals when none is configured.
const DefaultChannel = "roomchat:changes"

// Options configures the Redis connection.
type Options struct {
	Addr      string
	DB        int
	Channel   string
	KeyPrefix string
}

// RedisStore implements store.Area.
type RedisStore struct {
	client  *redis.Client
	channel string
	prefix  string
	log     *zerolog.Logger
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options, logger *zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: opts.Addr,
		DB:   opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(client, opts, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, opts Options, logger *zerolog.Logger) *RedisStore {
	channel := opts.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisStore{
		client:  client,
		channel: channel,
		prefix:  opts.KeyPrefix,
		log:     log.OrNop(logger),
	}
}

// Get returns the blob stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		if errors.Is(err, redis.ErrClosed) {
			return nil, false, store.ErrUnavailable
		}
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return v, true, nil
}

// Set stores the blob and publishes key on the change channel in one
// MULTI/EXEC round trip.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.prefix+key, value, 0)
		pipe.Publish(ctx, s.channel, key)
		return nil
	})
	if err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return store.ErrUnavailable
		}
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Watch subscribes to the change channel.
func (s *RedisStore) Watch(ctx context.Context) (<-chan store.Change, error) {
	sub := s.client.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", s.channel, err)
	}

	out := make(chan store.Change, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- store.Change{Key: m.Payload}:
				default:
					s.log.Debug().Str("channel", s.channel).Msg("dropped change signal")
				}
			}
		}
	}()

	return out, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
