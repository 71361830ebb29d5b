package config

import (
	"net"
	"strconv"
	"time"
)

type StoreConfig interface {
	GetRedisURL() string
	GetRedisAddr() string
	GetRedisDB() int
	GetRedisPassword() string
	GetRedisPoolSize() int
	GetDefaultSessionTTL() time.Duration
	GetSessionLifetime() time.Duration
	GetRetryAttempts() int
	GetRetryInitialDelay() time.Duration
	GetSweepInterval() time.Duration
}

type Store struct {
	RedisURL              string        `env:"REDIS_URL"`
	RedisHost             string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort             int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisDB               int           `env:"REDIS_DB" envDefault:"0"`
	RedisPassword         string        `env:"REDIS_PASSWORD"`
	RedisPoolSize         int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	SessionTimeoutSeconds int           `env:"SESSION_TIMEOUT" envDefault:"3600"`
	TokenLifetimeHours    int           `env:"TOKEN_LIFE_TIME_HOURS" envDefault:"48"`
	RetryAttempts         int           `env:"STORE_RETRY_ATTEMPTS" envDefault:"5"`
	RetryInitialDelay     time.Duration `env:"STORE_RETRY_INITIAL_DELAY" envDefault:"2s"`
	SweepInterval         time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`
}

var _ StoreConfig = Store{}

// GetRedisURL takes precedence over the host/port settings when set.
func (s Store) GetRedisURL() string {
	return s.RedisURL
}

func (s Store) GetRedisAddr() string {
	return net.JoinHostPort(s.RedisHost, strconv.Itoa(s.RedisPort))
}

func (s Store) GetRedisDB() int {
	return s.RedisDB
}

func (s Store) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Store) GetRedisPoolSize() int {
	return s.RedisPoolSize
}

func (s Store) GetDefaultSessionTTL() time.Duration {
	return time.Duration(s.SessionTimeoutSeconds) * time.Second
}

// GetSessionLifetime is the TTL of an authenticated session.
func (s Store) GetSessionLifetime() time.Duration {
	return time.Duration(s.TokenLifetimeHours) * time.Hour
}

func (s Store) GetRetryAttempts() int {
	return s.RetryAttempts
}

func (s Store) GetRetryInitialDelay() time.Duration {
	return s.RetryInitialDelay
}

func (s Store) GetSweepInterval() time.Duration {
	return s.SweepInterval
}
