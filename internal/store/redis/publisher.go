package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"squeezetrader/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultMaxLen   = 10000
	defaultStateTTL = 30 * time.Minute
)

// Publisher writes intents, bars and engine state to Redis.
// Every write goes through the circuit breaker so a dead server fails fast.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
	maxLen int64
}

// NewPublisher wraps an existing client.
func NewPublisher(client *goredis.Client, cfg Config) *Publisher {
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	return &Publisher{
		client: client,
		cb:     NewCircuitBreaker(cfg.BreakerFailures, cfg.BreakerCooldown),
		maxLen: maxLen,
	}
}

// Breaker exposes the circuit breaker for state callbacks and health checks.
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

// PublishIntent appends the intent to intents:{symbol}.
func (p *Publisher) PublishIntent(ctx context.Context, intent model.Intent) error {
	if err := p.xadd(ctx, IntentStream(intent.Symbol), intent.JSON()); err != nil {
		return fmt.Errorf("publish intent %s: %w", intent.Kind, err)
	}
	return nil
}

// PublishBar appends a bar to bars:{symbol}. Used to mirror a websocket feed
// into Redis for other consumers.
func (p *Publisher) PublishBar(ctx context.Context, bar model.Bar) error {
	if err := p.xadd(ctx, BarStream(bar.Symbol), bar.JSON()); err != nil {
		return fmt.Errorf("publish bar %s: %w", bar.Symbol, err)
	}
	return nil
}

// PublishState stores v as the latest engine state for symbol and
// announces it on the state channel.
func (p *Publisher) PublishState(ctx context.Context, symbol string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return p.cb.Execute(func() error {
		pipe := p.client.Pipeline()
		pipe.Set(ctx, StateKey(symbol), data, defaultStateTTL)
		pipe.Publish(ctx, StateChannel(symbol), data)
		_, err := pipe.Exec(ctx)
		return err
	})
}

func (p *Publisher) xadd(ctx context.Context, stream string, data []byte) error {
	return p.cb.Execute(func() error {
		return p.client.XAdd(ctx, &goredis.XAddArgs{
			Stream: stream,
			MaxLen: p.maxLen,
			Approx: true,
			Values: map[string]interface{}{"data": string(data)},
		}).Err()
	})
}

var _ model.IntentSink = (*Publisher)(nil)
