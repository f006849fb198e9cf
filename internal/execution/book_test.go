package execution

import (
	"testing"

	"squeezetrader/internal/model"
)

func TestPositionBook_Apply(t *testing.T) {
	b := NewPositionBook("MES 12-26")
	if !b.Position().IsFlat() {
		t.Fatal("new book must be flat")
	}

	steps := []struct {
		ev      model.OrderEvent
		wantQty int64
		wantAvg float64
	}{
		{model.OrderEvent{State: model.OrderWorking, Action: model.ActionBuy}, 0, 0},
		{model.OrderEvent{State: model.OrderFilled, Action: model.ActionBuy, FillQty: 1, FillPrice: 4500}, 1, 4500},
		{model.OrderEvent{State: model.OrderPartFilled, Action: model.ActionBuy, FillQty: 1, FillPrice: 4510}, 2, 4505},
		{model.OrderEvent{State: model.OrderRejected, Action: model.ActionSell, FillQty: 1}, 2, 4505},
		{model.OrderEvent{State: model.OrderFilled, Action: model.ActionSell, FillQty: 1, FillPrice: 4515}, 1, 4505},
		{model.OrderEvent{State: model.OrderFilled, Action: model.ActionSell, FillQty: 3, FillPrice: 4490}, 0, 0},
	}
	for i, s := range steps {
		pos := b.Apply(s.ev)
		if pos.Qty != s.wantQty || pos.AvgPrice != s.wantAvg {
			t.Fatalf("step %d: got qty=%d avg=%.2f, want qty=%d avg=%.2f", i, pos.Qty, pos.AvgPrice, s.wantQty, s.wantAvg)
		}
		if (pos.Qty > 0) != pos.IsLong() || (pos.Qty == 0) != pos.IsFlat() {
			t.Fatalf("step %d: side %s inconsistent with qty %d", i, pos.Side, pos.Qty)
		}
	}
}

func TestPositionBook_Reset(t *testing.T) {
	b := NewPositionBook("MNQ 12-26")
	b.Apply(model.OrderEvent{State: model.OrderFilled, Action: model.ActionBuy, FillQty: 2, FillPrice: 18000})
	b.Reset()
	if pos := b.Position(); !pos.IsFlat() || pos.Symbol != "MNQ 12-26" {
		t.Fatalf("after reset: %+v", pos)
	}
}
