package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Config configures the Redis connection and stream consumers.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	Group    string // consumer group name
	Consumer string // unique consumer name within the group
	MaxLen   int64  // approximate stream trim length for XADD

	BreakerFailures int
	BreakerCooldown time.Duration
}

// Stream and key names, one set per instrument.
func BarStream(symbol string) string    { return "bars:" + symbol }
func OrderStream(symbol string) string  { return "orders:" + symbol }
func IntentStream(symbol string) string { return "intents:" + symbol }
func StateKey(symbol string) string     { return "state:latest:" + symbol }
func StateChannel(symbol string) string { return "pub:state:" + symbol }

// Dial creates a client and pings the server.
func Dial(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return client, nil
}
