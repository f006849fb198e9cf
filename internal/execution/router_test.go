package execution

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"squeezetrader/internal/model"
)

type memorySink struct {
	intents []model.Intent
	err     error
}

func (m *memorySink) PublishIntent(_ context.Context, in model.Intent) error {
	if m.err != nil {
		return m.err
	}
	m.intents = append(m.intents, in)
	return nil
}

func TestStreamRouter_PublishesIntents(t *testing.T) {
	sink := &memorySink{}
	r := NewStreamRouter("MES 12-26", sink)
	r.now = func() time.Time { return t0 }
	ctx := context.Background()

	r.EnterLong(ctx, 1, "ATR_EMA_Long")
	r.SetStopLoss(ctx, "ATR_EMA_Long", 4493)
	r.SetProfitTarget(ctx, "ATR_EMA_Long", 4518)
	r.ExitLong(ctx, "ATR_EMA_Long", "EMA_Exit")

	if len(sink.intents) != 4 {
		t.Fatalf("expected 4 intents, got %d", len(sink.intents))
	}
	kinds := []model.IntentKind{model.IntentEnterLong, model.IntentSetStop, model.IntentSetTarget, model.IntentExitLong}
	seen := map[string]bool{}
	for i, in := range sink.intents {
		if in.Kind != kinds[i] {
			t.Errorf("intent %d: kind %s, want %s", i, in.Kind, kinds[i])
		}
		if _, err := uuid.Parse(in.ID); err != nil {
			t.Errorf("intent %d: id %q is not a uuid", i, in.ID)
		}
		if seen[in.ID] {
			t.Errorf("intent %d: duplicate id", i)
		}
		seen[in.ID] = true
		if in.Symbol != "MES 12-26" || !in.Time.Equal(t0) || in.Tag != "ATR_EMA_Long" {
			t.Errorf("intent %d: %+v", i, in)
		}
	}
	if sink.intents[1].Price != 4493 || sink.intents[3].Reason != "EMA_Exit" {
		t.Errorf("payloads: %+v", sink.intents)
	}
}

func TestStreamRouter_WrapsSinkErrors(t *testing.T) {
	boom := errors.New("redis down")
	r := NewStreamRouter("MES 12-26", &memorySink{err: boom})
	err := r.SetStopLoss(context.Background(), "ATR_EMA_Long", 4493)
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "SET_STOP") {
		t.Fatalf("unexpected error: %v", err)
	}
}
