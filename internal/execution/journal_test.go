package execution

import (
	"path/filepath"
	"testing"
	"time"

	"squeezetrader/internal/model"
)

func TestJournal_RecordAndRead(t *testing.T) {
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	defer j.Close()

	fills := []Fill{
		{OrderID: "a", Name: "ATR_EMA_Long", Symbol: "MES 12-26", Action: model.ActionBuy, Qty: 1, Price: 4505.25, FilledAt: t0},
		{OrderID: "b", Name: NameStopLoss, Symbol: "MES 12-26", Action: model.ActionSell, Qty: 1, Price: 4493, Slippage: 0.25, FilledAt: t0.Add(4 * time.Minute)},
	}
	for _, f := range fills {
		if err := j.RecordFill(f); err != nil {
			t.Fatalf("RecordFill: %v", err)
		}
	}

	got, err := j.GetFills(10)
	if err != nil {
		t.Fatalf("GetFills: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(got))
	}
	if got[0].OrderID != "b" || got[0].Name != NameStopLoss || got[0].Slippage != 0.25 {
		t.Errorf("newest first: %+v", got[0])
	}
	if got[1].Price != 4505.25 || got[1].Action != "BUY" {
		t.Errorf("entry row: %+v", got[1])
	}

	limited, _ := j.GetFills(1)
	if len(limited) != 1 {
		t.Errorf("limit: got %d rows", len(limited))
	}
}
