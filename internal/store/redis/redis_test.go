package redis

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"squeezetrader/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

func TestStreamNames(t *testing.T) {
	got := streamNames([]string{"MES 12-26", "MNQ 12-26"}, BarStream)
	want := []string{"bars:MES 12-26", "bars:MNQ 12-26"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if OrderStream("MES") != "orders:MES" || IntentStream("MES") != "intents:MES" || StateKey("MES") != "state:latest:MES" {
		t.Error("unexpected key layout")
	}
}

func TestDecode(t *testing.T) {
	bar := model.Bar{Symbol: "MES 12-26", Seq: 3, Time: time.Date(2026, 10, 19, 14, 2, 0, 0, time.UTC), Open: 4500, High: 4502, Low: 4499.5, Close: 4501.25}
	got, err := decode[model.Bar](goredis.XMessage{ID: "1-0", Values: map[string]interface{}{"data": string(bar.JSON())}})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Time.Equal(bar.Time) || got.Seq != bar.Seq || got.Close != bar.Close || got.Symbol != bar.Symbol {
		t.Errorf("got %+v, want %+v", got, bar)
	}

	ev := model.OrderEvent{OrderID: "x", Name: "ATR_EMA_Long", State: model.OrderFilled, Action: model.ActionBuy, FillQty: 1, FillPrice: 4501}
	gotEv, err := decode[model.OrderEvent](goredis.XMessage{Values: map[string]interface{}{"data": string(ev.JSON())}})
	if err != nil || gotEv.State != model.OrderFilled || gotEv.FillPrice != 4501 {
		t.Errorf("order event: %+v, %v", gotEv, err)
	}

	bad := []goredis.XMessage{
		{Values: map[string]interface{}{}},
		{Values: map[string]interface{}{"data": 42}},
		{Values: map[string]interface{}{"data": "{not json"}},
	}
	for i, msg := range bad {
		if _, err := decode[model.Bar](msg); err == nil {
			t.Errorf("message %d: expected error", i)
		}
	}
}

func TestPublisher_BreakerOpensOnDeadServer(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	defer client.Close()

	p := NewPublisher(client, Config{BreakerFailures: 2, BreakerCooldown: time.Minute})
	ctx := context.Background()
	intent := model.Intent{Kind: model.IntentEnterLong, Symbol: "MES 12-26", Tag: "ATR_EMA_Long", Qty: 1}

	for i := 0; i < 2; i++ {
		err := p.PublishIntent(ctx, intent)
		if err == nil || errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("call %d: expected a connection error, got %v", i, err)
		}
	}
	if p.Breaker().CurrentState() != StateOpen {
		t.Fatalf("expected breaker open, got %v", p.Breaker().CurrentState())
	}
	if err := p.PublishIntent(ctx, intent); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if err := p.PublishState(ctx, "MES 12-26", map[string]int{"bars": 1}); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("state write: expected ErrCircuitOpen, got %v", err)
	}
}
