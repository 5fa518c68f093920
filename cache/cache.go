package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

const DefaultPrefix = "angle:result:"

// Cache stores the results of the transformations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Key gives the digest of parts. The parts are length prefixed so that
// different splits of the same bytes give different keys.
func Key(parts ...[]byte) string {
	sum := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(sum, "%d:", len(p))
		sum.Write(p)
	}
	return hex.EncodeToString(sum.Sum(nil))
}

type nop struct{}

// Nop never keeps anything.
func Nop() Cache {
	return nop{}
}

func (_ nop) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, nil
}

func (_ nop) Set(_ context.Context, _ string, _ []byte) error {
	return nil
}

type Redis struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Redis)

// WithTTL sets the expiration of the entries. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

func WithPrefix(prefix string) Option {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

func New(addr string, options ...Option) *Redis {
	client := backend.NewClient(&backend.Options{
		Addr: addr,
	})
	return NewFromClient(client, options...)
}

func NewFromClient(client *backend.Client, options ...Option) *Redis {
	r := Redis{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, o := range options {
		o(&r)
	}
	return &r
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	return data, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Ping checks that the server can be reached.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) key(key string) string {
	return r.prefix + key
}
