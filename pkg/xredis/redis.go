package xredis

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultHost        = "127.0.0.1"
	defaultPort        = 6379
	defaultMinIdle     = 5
	defaultMaxIdle     = 10
	defaultPoolSize    = 10
	defaultMaxLifetime = 2 * time.Minute
	defaultMaxIdleTime = 5 * time.Minute
)

// ClientOption mutates the redis options before the client is built.
type ClientOption func(*redis.Options)

// NewClient creates a redis client with sane pool defaults.
func NewClient(opts ...ClientOption) *redis.Client {
	options := &redis.Options{
		Addr:            fmt.Sprintf("%s:%d", defaultHost, defaultPort),
		Password:        "",
		DB:              0,
		PoolSize:        defaultPoolSize,
		MinIdleConns:    defaultMinIdle,
		MaxIdleConns:    defaultMaxIdle,
		ConnMaxLifetime: defaultMaxLifetime,
		ConnMaxIdleTime: defaultMaxIdleTime,
	}

	for _, opt := range opts {
		opt(options)
	}

	return redis.NewClient(options)
}

// WithAddress sets the full host:port address.
func WithAddress(addr string) ClientOption {
	return func(o *redis.Options) {
		if _, _, err := net.SplitHostPort(addr); err == nil {
			o.Addr = addr
		}
	}
}

// WithHost sets the redis host, keeping the configured port.
func WithHost(host string) ClientOption {
	return func(o *redis.Options) {
		_, port, err := net.SplitHostPort(o.Addr)
		if err != nil {
			port = strconv.Itoa(defaultPort)
		}
		o.Addr = net.JoinHostPort(host, port)
	}
}

// WithPort sets the redis port, keeping the configured host.
func WithPort(port int) ClientOption {
	return func(o *redis.Options) {
		host, _, err := net.SplitHostPort(o.Addr)
		if err != nil {
			host = defaultHost
		}
		o.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	}
}

// WithPassword sets the auth password.
func WithPassword(pass string) ClientOption {
	return func(o *redis.Options) {
		o.Password = pass
	}
}

// WithDB selects the logical database.
func WithDB(db int) ClientOption {
	return func(o *redis.Options) {
		if db >= 0 {
			o.DB = db
		}
	}
}

// WithPoolSize sets the connection pool size.
func WithPoolSize(size int) ClientOption {
	return func(o *redis.Options) {
		if size > 0 {
			o.PoolSize = size
		}
	}
}
