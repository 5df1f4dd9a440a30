// Package redis holds the console's Redis-backed concerns: short-TTL read
// caches for list screens, rate limiting for the reasoning and dispatch
// paths, and agent presence.
package redis

import (
	goredis "github.com/redis/go-redis/v9"

	"github.com/tradmak/aixos/internal/config"
)

func NewClient(cfg config.RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
