package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"squeezetrader/internal/model"
)

// StreamRouter implements model.OrderRouter by publishing each call as an
// Intent for an external order subsystem. Every intent gets a fresh id so
// consumers can de-duplicate.
type StreamRouter struct {
	symbol string
	sink   model.IntentSink
	now    func() time.Time
}

// NewStreamRouter creates a router publishing intents for symbol to sink.
func NewStreamRouter(symbol string, sink model.IntentSink) *StreamRouter {
	return &StreamRouter{symbol: symbol, sink: sink, now: time.Now}
}

func (r *StreamRouter) EnterLong(ctx context.Context, qty int64, tag string) error {
	return r.publish(ctx, model.Intent{Kind: model.IntentEnterLong, Tag: tag, Qty: qty})
}

func (r *StreamRouter) SetStopLoss(ctx context.Context, tag string, price float64) error {
	return r.publish(ctx, model.Intent{Kind: model.IntentSetStop, Tag: tag, Price: price})
}

func (r *StreamRouter) SetProfitTarget(ctx context.Context, tag string, price float64) error {
	return r.publish(ctx, model.Intent{Kind: model.IntentSetTarget, Tag: tag, Price: price})
}

func (r *StreamRouter) ExitLong(ctx context.Context, tag, reason string) error {
	return r.publish(ctx, model.Intent{Kind: model.IntentExitLong, Tag: tag, Reason: reason})
}

func (r *StreamRouter) publish(ctx context.Context, in model.Intent) error {
	in.ID = uuid.NewString()
	in.Symbol = r.symbol
	in.Time = r.now().UTC()
	if err := r.sink.PublishIntent(ctx, in); err != nil {
		return fmt.Errorf("publish %s intent: %w", in.Kind, err)
	}
	return nil
}
