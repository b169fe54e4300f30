package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	_defaultConnAttempts = 3
	_defaultConnTimeout  = time.Second
	_defaultPoolSize     = 10
)

type Redis struct {
	connAttempts int
	connTimeout  time.Duration
	poolSize     int

	Client *goredis.Client
}

// New builds a client from a redis:// URL. It does not touch the network:
// go-redis dials lazily, so a client built while the server is down starts
// working once the server comes back.
func New(url string, opts ...Option) (*Redis, error) {
	r := &Redis{
		connAttempts: _defaultConnAttempts,
		connTimeout:  _defaultConnTimeout,
		poolSize:     _defaultPoolSize,
	}

	for _, opt := range opts {
		opt(r)
	}

	options, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("Redis - New - goredis.ParseURL: %w", err)
	}

	options.PoolSize = r.poolSize

	r.Client = goredis.NewClient(options)

	return r, nil
}

// WaitReady pings the server up to connAttempts times.
func (r *Redis) WaitReady(ctx context.Context) error {
	var err error

	for attempts := r.connAttempts; attempts > 0; attempts-- {
		err = r.Client.Ping(ctx).Err()
		if err == nil {
			return nil
		}

		log.Printf("Redis is trying to connect, attempts left: %d", attempts)

		select {
		case <-ctx.Done():
			return fmt.Errorf("Redis - WaitReady: %w", ctx.Err())
		case <-time.After(r.connTimeout):
		}
	}

	return fmt.Errorf("Redis - WaitReady - connAttempts == 0: %w", err)
}

func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}

	return nil
}
