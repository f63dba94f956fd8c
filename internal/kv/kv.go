// Package kv provides the key-value storage capability the activity list is
// persisted through, with memory, file, redis and postgres backends.
package kv

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown kv backend")

// Store is a byte-valued key-value store. Get reports absence with ok=false
// rather than an error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend     string
	Dir         string
	RedisURL    string
	PostgresURL string

	// ConnectAttempts bounds how often a network backend is dialled before giving up.
	ConnectAttempts uint
	ConnectDelay    time.Duration
}

// Open creates the configured store. Network backends are dialled and pinged,
// retrying up to cfg.ConnectAttempts times.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		return NewFile(cfg.Dir)
	case BackendRedis:
		return connect(ctx, cfg, func() (Store, error) { return OpenRedis(ctx, cfg.RedisURL) })
	case BackendPostgres:
		return connect(ctx, cfg, func() (Store, error) { return OpenPostgres(ctx, cfg.PostgresURL) })
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", cfg.Backend)
	}
}

func connect(ctx context.Context, cfg Config, dial func() (Store, error)) (Store, error) {
	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}

	var store Store
	err := retry.Do(
		func() error {
			s, err := dial()
			if err != nil {
				return err
			}
			store = s
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(cfg.ConnectDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Str("backend", cfg.Backend).Msg("kv: connect failed, retrying")
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "kv: connect %s", cfg.Backend)
	}
	return store, nil
}
