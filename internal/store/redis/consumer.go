package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"squeezetrader/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// Consumer reads bars and order events from Redis Streams through a consumer group.
// Messages are acknowledged after they are handed to the output channel, so a
// crash between read and hand-off leaves them pending for RecoverPending.
type Consumer struct {
	client   *goredis.Client
	group    string
	consumer string

	// OnDecodeError is called for every message that could not be decoded (for metrics).
	OnDecodeError func(stream string)
}

// NewConsumer wraps an existing client.
func NewConsumer(client *goredis.Client, cfg Config) *Consumer {
	group := cfg.Group
	if group == "" {
		group = "squeezed"
	}
	name := cfg.Consumer
	if name == "" {
		name = "worker-1"
	}
	return &Consumer{client: client, group: group, consumer: name}
}

// EnsureGroups creates the consumer group on each stream if it doesn't exist.
// New groups start at "$" (only new messages).
func (c *Consumer) EnsureGroups(ctx context.Context, streams ...string) error {
	for _, stream := range streams {
		err := c.client.XGroupCreateMkStream(ctx, stream, c.group, "$").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("xgroup create %s: %w", stream, err)
		}
	}
	return nil
}

// ConsumeBars streams bars from bars:{symbol} for every symbol into out.
// Blocks until ctx is cancelled.
func (c *Consumer) ConsumeBars(ctx context.Context, symbols []string, out chan<- model.Bar) error {
	return consume(ctx, c, streamNames(symbols, BarStream), out)
}

// ConsumeOrders streams order events from orders:{symbol} into out.
func (c *Consumer) ConsumeOrders(ctx context.Context, symbols []string, out chan<- model.OrderEvent) error {
	return consume(ctx, c, streamNames(symbols, OrderStream), out)
}

// RecoverPendingBars redelivers bars read but never acknowledged by this consumer.
func (c *Consumer) RecoverPendingBars(ctx context.Context, symbols []string, out chan<- model.Bar) error {
	for _, stream := range streamNames(symbols, BarStream) {
		if err := recoverPending(ctx, c, stream, out); err != nil {
			return err
		}
	}
	return nil
}

func streamNames(symbols []string, name func(string) string) []string {
	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = name(s)
	}
	return out
}

func consume[T any](ctx context.Context, c *Consumer, streams []string, out chan<- T) error {
	// [stream1, stream2, ..., ">", ">", ...]
	args := make([]string, len(streams)*2)
	for i, s := range streams {
		args[i] = s
		args[len(streams)+i] = ">"
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		results, err := c.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  args,
			Count:    100,
			Block:    2 * time.Second,
		}).Result()
		if err != nil {
			if err == goredis.Nil || ctx.Err() != nil {
				continue
			}
			log.Printf("[redis-consumer] xreadgroup error: %v", err)
			select {
			case <-time.After(500 * time.Millisecond):
			case <-ctx.Done():
			}
			continue
		}

		for _, stream := range results {
			if err := deliver(ctx, c, stream.Stream, stream.Messages, out); err != nil {
				return err
			}
		}
	}
}

func recoverPending[T any](ctx context.Context, c *Consumer, stream string, out chan<- T) error {
	for {
		pending, err := c.client.XPendingExt(ctx, &goredis.XPendingExtArgs{
			Stream:   stream,
			Group:    c.group,
			Start:    "-",
			End:      "+",
			Count:    100,
			Consumer: c.consumer,
		}).Result()
		if err != nil || len(pending) == 0 {
			return nil
		}

		ids := make([]string, len(pending))
		for i, p := range pending {
			ids[i] = p.ID
		}
		claimed, err := c.client.XClaim(ctx, &goredis.XClaimArgs{
			Stream:   stream,
			Group:    c.group,
			Consumer: c.consumer,
			Messages: ids,
		}).Result()
		if err != nil {
			return fmt.Errorf("xclaim %s: %w", stream, err)
		}
		if err := deliver(ctx, c, stream, claimed, out); err != nil {
			return err
		}
		if len(claimed) < len(ids) {
			return nil
		}
	}
}

// deliver decodes and forwards messages in order, acknowledging each one.
// Undecodable messages are acknowledged and dropped.
func deliver[T any](ctx context.Context, c *Consumer, stream string, msgs []goredis.XMessage, out chan<- T) error {
	for _, msg := range msgs {
		v, err := decode[T](msg)
		if err != nil {
			log.Printf("[redis-consumer] %s %s: %v", stream, msg.ID, err)
			if c.OnDecodeError != nil {
				c.OnDecodeError(stream)
			}
			c.client.XAck(ctx, stream, c.group, msg.ID)
			continue
		}
		select {
		case out <- v:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.client.XAck(ctx, stream, c.group, msg.ID)
	}
	return nil
}

func decode[T any](msg goredis.XMessage) (T, error) {
	var v T
	data, ok := msg.Values["data"].(string)
	if !ok {
		return v, fmt.Errorf("missing data field")
	}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return v, fmt.Errorf("decode: %w", err)
	}
	return v, nil
}
