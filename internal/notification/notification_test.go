package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"squeezetrader/internal/model"
	"squeezetrader/internal/strategy"
)

type recorder struct {
	alerts []Alert
	err    error
}

func (r *recorder) Send(_ context.Context, a Alert) error {
	r.alerts = append(r.alerts, a)
	return r.err
}

func TestWebhookNotifier_Posts(t *testing.T) {
	got := make(chan Alert, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		var a Alert
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			t.Errorf("decode: %v", err)
		}
		got <- a
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second)
	if err := n.Send(context.Background(), Alert{Level: AlertInfo, Symbol: "MES 12-26", Title: "Long entry"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	a := <-got
	if a.Title != "Long entry" || a.Symbol != "MES 12-26" || a.Time.IsZero() {
		t.Errorf("payload: %+v", a)
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL, time.Second).Send(context.Background(), Alert{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestMulti_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recorder{}, &recorder{err: boom}
	err := Multi{a, b}.Send(context.Background(), Alert{Title: "x"})
	if !errors.Is(err, boom) {
		t.Errorf("expected joined error, got %v", err)
	}
	if len(a.alerts) != 1 || len(b.alerts) != 1 {
		t.Error("every notifier must receive the alert")
	}
}

func TestDispatcher_EngineHooks(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, 8)
	h := d.EngineHooks("MES 12-26")

	bar := model.Bar{Time: time.Date(2026, 10, 19, 14, 2, 0, 0, time.UTC), Close: 4505}
	h.OnEntry(bar, strategy.EntryDecision{Stop: 4493, Target: 4522})
	h.OnOrderEvent(model.OrderEvent{State: model.OrderFilled})
	h.OnOrderEvent(model.OrderEvent{State: model.OrderRejected, Reason: "entry already working"})
	h.OnExit(bar, strategy.ReasonEMAExit)
	h.OnIntentError("exit long", errors.New("redis down"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	deadline := time.After(2 * time.Second)
	for len(d.ch) > 0 {
		select {
		case <-deadline:
			t.Fatal("queue not drained")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if len(rec.alerts) != 4 {
		t.Fatalf("expected 4 alerts (fill ignored), got %d: %+v", len(rec.alerts), rec.alerts)
	}
	if rec.alerts[0].Message != "close 4505.00 stop 4493.00 target 4522.00" {
		t.Errorf("entry message: %q", rec.alerts[0].Message)
	}
	if rec.alerts[1].Level != AlertWarning || rec.alerts[2].Title != "Exit "+strategy.ReasonEMAExit || rec.alerts[3].Level != AlertCritical {
		t.Errorf("alerts: %+v", rec.alerts)
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d := NewDispatcher(&recorder{}, 1)
	dropped := 0
	d.OnDrop = func(Alert) { dropped++ }
	d.Notify(Alert{Title: "a"})
	d.Notify(Alert{Title: "b"})
	if dropped != 1 {
		t.Errorf("expected 1 drop, got %d", dropped)
	}
}
