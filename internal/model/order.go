package model

import (
	"encoding/json"
	"time"
)

// OrderState is the broker-reported state of an order.
type OrderState string

const (
	OrderWorking    OrderState = "WORKING"
	OrderPartFilled OrderState = "PART_FILLED"
	OrderFilled     OrderState = "FILLED"
	OrderCancelled  OrderState = "CANCELLED"
	OrderRejected   OrderState = "REJECTED"
)

// OrderAction is the side of an order.
type OrderAction string

const (
	ActionBuy       OrderAction = "BUY"
	ActionSell      OrderAction = "SELL"
	ActionSellShort OrderAction = "SELL_SHORT"
)

// Closing reports whether the action reduces a long position.
func (a OrderAction) Closing() bool {
	return a == ActionSell || a == ActionSellShort
}

// OrderEvent is an asynchronous order-state notification from the order subsystem.
type OrderEvent struct {
	OrderID   string      `json:"order_id"`
	Name      string      `json:"name"` // signal tag, stop/target names, etc.
	Symbol    string      `json:"symbol"`
	State     OrderState  `json:"state"`
	Action    OrderAction `json:"action"`
	FillQty   int64       `json:"fill_qty"`
	FillPrice float64     `json:"fill_price"`
	Time      time.Time   `json:"time"`
	Reason    string      `json:"reason,omitempty"` // reject/cancel reason
}

// JSON returns the JSON-encoded event.
func (e *OrderEvent) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// IntentKind enumerates what the engine asks the order subsystem to do.
type IntentKind string

const (
	IntentEnterLong IntentKind = "ENTER_LONG"
	IntentSetStop   IntentKind = "SET_STOP"
	IntentSetTarget IntentKind = "SET_TARGET"
	IntentExitLong  IntentKind = "EXIT_LONG"
)

// Intent is one fire-and-forget instruction for the order subsystem.
type Intent struct {
	ID     string     `json:"id"`
	Kind   IntentKind `json:"kind"`
	Symbol string     `json:"symbol"`
	Tag    string     `json:"tag"`
	Qty    int64      `json:"qty,omitempty"`
	Price  float64    `json:"price,omitempty"`
	Reason string     `json:"reason,omitempty"`
	Time   time.Time  `json:"time"`
}

// JSON returns the JSON-encoded intent.
func (i *Intent) JSON() []byte {
	b, _ := json.Marshal(i)
	return b
}
