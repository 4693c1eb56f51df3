package transport

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Callback receives routed events. The transport does not interpret
// payloads, only decodes and delivers them.
type Callback func(Event)

// Unsubscribe removes one callback. The underlying channel connection or
// polling timer is torn down only when the last callback for that
// (channel, event) pair unsubscribes.
type Unsubscribe func()

// Options carries per-subscription settings. PollURL names the endpoint
// the polling strategy fetches for this (channel, event) pair; the push
// strategy ignores it.
type Options struct {
	PollURL string
}

// Transport delivers named events scoped to a channel to any number of
// local subscribers.
type Transport interface {
	Subscribe(channel, event string, opts Options, cb Callback) (Unsubscribe, error)
	Close() error
}

// Config selects and configures the delivery strategy. The choice is made
// once per process lifetime: a configured PushURL means push, otherwise
// interval polling. There is no silent fallback after a push error;
// errors are logged, not auto-downgraded, to avoid oscillation between
// strategies.
type Config struct {
	PushURL      string
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       *logrus.Logger
}

func New(cfg Config) (Transport, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.PushURL != "" {
		return newPushTransport(cfg)
	}
	return newPollingTransport(cfg), nil
}

// subKey identifies one reference-counted subscription slot.
type subKey struct {
	channel string
	event   string
}

// callbackSet holds the registered callbacks for one (channel, event)
// pair. IDs keep unsubscribes independent of registration order.
type callbackSet struct {
	nextID    int
	callbacks map[int]Callback
}

func newCallbackSet() *callbackSet {
	return &callbackSet{callbacks: make(map[int]Callback)}
}

func (s *callbackSet) add(cb Callback) int {
	id := s.nextID
	s.nextID++
	s.callbacks[id] = cb
	return id
}

func (s *callbackSet) remove(id int) {
	delete(s.callbacks, id)
}

func (s *callbackSet) empty() bool {
	return len(s.callbacks) == 0
}

// snapshot copies the registered callbacks so delivery happens outside
// the transport lock. A callback is free to unsubscribe itself or add
// new subscriptions without deadlocking.
func (s *callbackSet) snapshot() []Callback {
	out := make([]Callback, 0, len(s.callbacks))
	for _, cb := range s.callbacks {
		out = append(out, cb)
	}
	return out
}
