package redis

import (
	"errors"
	"time"

	"github.com/gocrud/injectgen/logging"
)

// CacheOptions configures the listing cache.
type CacheOptions struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// TTL of cached entries. Zero keeps entries until evicted.
	TTL    time.Duration
	Prefix string
	Logger logging.Logger
}

func NewDefaultOptions(addr string) *CacheOptions {
	return &CacheOptions{
		Addr:         addr,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		TTL:          10 * time.Minute,
		Prefix:       "injectgen:listing:",
		Logger:       logging.Nop(),
	}
}

func (o *CacheOptions) Validate() error {
	if o.Addr == "" {
		return errors.New("redis addr is required")
	}
	if o.TTL < 0 {
		return errors.New("redis ttl must not be negative")
	}
	return nil
}
