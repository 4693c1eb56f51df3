package transport

import (
	"encoding/json"
	"fmt"

	"github.com/tableside/dinein/models"
)

// Event names carried on the wire.
const (
	EventOrderCreated            = "order:created"
	EventOrderStatusUpdated      = "order:status:updated"
	EventSessionUpdated          = "session:updated"
	EventPaymentCounterRequested = "payment:counter:requested"
	EventPaymentCounterReceived  = "payment:counter:received"
)

// Channel naming convention. Staff surfaces listen restaurant-wide; the
// diner's bill page listens on its own session.
func ChannelRestaurant(restaurantID uint) string {
	return fmt.Sprintf("restaurant-%d", restaurantID)
}

func ChannelSession(token string) string {
	return fmt.Sprintf("session-%s", token)
}

// Event is the tagged union of everything the transport routes. Each
// variant corresponds to one event name, so subscribers receive a
// statically known shape instead of casting loose maps.
type Event interface {
	EventName() string
}

type OrderCreated struct {
	Order models.Order `json:"order"`
}

func (OrderCreated) EventName() string { return EventOrderCreated }

type OrderStatusUpdated struct {
	Order models.Order `json:"order"`
}

func (OrderStatusUpdated) EventName() string { return EventOrderStatusUpdated }

// SessionUpdated fires when a session's total or order count changes.
type SessionUpdated struct {
	Session    models.TableSession `json:"session"`
	OrderCount int                 `json:"order_count"`
}

func (SessionUpdated) EventName() string { return EventSessionUpdated }

// PaymentCounterRequested -> diner asked to pay at the counter
type PaymentCounterRequested struct {
	Session models.TableSession `json:"session"`
}

func (PaymentCounterRequested) EventName() string { return EventPaymentCounterRequested }

// PaymentCounterReceived -> staff marked the counter payment as settled
type PaymentCounterReceived struct {
	Session models.TableSession `json:"session"`
}

func (PaymentCounterReceived) EventName() string { return EventPaymentCounterReceived }

// DecodeEvent maps a wire event name and payload onto its variant.
func DecodeEvent(name string, data json.RawMessage) (Event, error) {
	var ev Event
	switch name {
	case EventOrderCreated:
		ev = &OrderCreated{}
	case EventOrderStatusUpdated:
		ev = &OrderStatusUpdated{}
	case EventSessionUpdated:
		ev = &SessionUpdated{}
	case EventPaymentCounterRequested:
		ev = &PaymentCounterRequested{}
	case EventPaymentCounterReceived:
		ev = &PaymentCounterReceived{}
	default:
		return nil, fmt.Errorf("unknown event name: %s", name)
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, err
	}
	return ev, nil
}
