package transport

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// pushTransport multiplexes every channel subscription over a single
// websocket connection. Incoming frames name a channel and event; they
// are decoded once and dispatched to every callback registered for that
// pair. Reconnection after a dropped connection is the push layer's own
// responsibility, not the transport's: on a read error the subscriptions
// stay registered and the error is logged.
type pushTransport struct {
	conn   *websocket.Conn
	logger *logrus.Logger

	mu      sync.Mutex
	writeMu sync.Mutex
	subs    map[subKey]*callbackSet
	// channelRefs counts live (channel, event) pairs per channel so the
	// server-side channel subscription is dropped only when the last
	// event subscription on it goes away.
	channelRefs map[string]int
	closed      bool
}

// wire frames exchanged with the hub
type controlFrame struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

type eventFrame struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

func newPushTransport(cfg Config) (*pushTransport, error) {
	conn, _, err := websocket.DefaultDialer.Dial(cfg.PushURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open push connection: %w", err)
	}

	t := &pushTransport{
		conn:        conn,
		logger:      cfg.Logger,
		subs:        make(map[subKey]*callbackSet),
		channelRefs: make(map[string]int),
	}
	go t.readLoop()
	return t, nil
}

func (t *pushTransport) Subscribe(channel, event string, _ Options, cb Callback) (Unsubscribe, error) {
	key := subKey{channel: channel, event: event}

	t.mu.Lock()
	set, ok := t.subs[key]
	if !ok {
		set = newCallbackSet()
		t.subs[key] = set
		t.channelRefs[channel]++
		if t.channelRefs[channel] == 1 {
			if err := t.writeControl("subscribe", channel); err != nil {
				delete(t.subs, key)
				t.channelRefs[channel]--
				t.mu.Unlock()
				return nil, err
			}
		}
	}
	id := set.add(cb)
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.unsubscribe(key, id) })
	}, nil
}

func (t *pushTransport) unsubscribe(key subKey, id int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.subs[key]
	if !ok {
		return
	}
	set.remove(id)
	if !set.empty() {
		return
	}
	delete(t.subs, key)
	t.channelRefs[key.channel]--
	if t.channelRefs[key.channel] <= 0 {
		delete(t.channelRefs, key.channel)
		if err := t.writeControl("unsubscribe", key.channel); err != nil {
			t.logger.Errorf("push unsubscribe failed for %s: %v", key.channel, err)
		}
	}
}

func (t *pushTransport) writeControl(action, channel string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(controlFrame{Action: action, Channel: channel})
}

func (t *pushTransport) readLoop() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed {
				t.logger.Errorf("push connection error: %v", err)
			}
			return
		}

		var frame eventFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.logger.Errorf("push frame decode error: %v", err)
			continue
		}

		ev, err := DecodeEvent(frame.Event, frame.Data)
		if err != nil {
			t.logger.Errorf("push event decode error: %v", err)
			continue
		}

		t.mu.Lock()
		var cbs []Callback
		if set, ok := t.subs[subKey{channel: frame.Channel, event: frame.Event}]; ok {
			cbs = set.snapshot()
		}
		t.mu.Unlock()

		for _, cb := range cbs {
			cb(ev)
		}
	}
}

func (t *pushTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return t.conn.Close()
}
