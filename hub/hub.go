package hub

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tableside/dinein/transport"
	"github.com/tableside/dinein/utils"
)

// Hub holds every connected client (kitchen displays, admin dashboards,
// diner bill pages) and the channels each is subscribed to. One websocket
// connection multiplexes any number of channel subscriptions.
type Hub struct {
	mutex    sync.Mutex
	channels map[string]map[*websocket.Conn]bool
	conns    map[*websocket.Conn]map[string]bool
}

var liveHub = Hub{
	channels: make(map[string]map[*websocket.Conn]bool),
	conns:    make(map[*websocket.Conn]map[string]bool),
}

type eventFrame struct {
	Channel string      `json:"channel"`
	Event   string      `json:"event"`
	Data    interface{} `json:"data"`
}

// RegisterClient -> track a new connection with no subscriptions yet
func RegisterClient(conn *websocket.Conn) {
	liveHub.mutex.Lock()
	defer liveHub.mutex.Unlock()
	liveHub.conns[conn] = make(map[string]bool)
}

// UnregisterClient -> drop the connection and all its subscriptions
func UnregisterClient(conn *websocket.Conn) {
	liveHub.mutex.Lock()
	defer liveHub.mutex.Unlock()
	for channel := range liveHub.conns[conn] {
		delete(liveHub.channels[channel], conn)
		if len(liveHub.channels[channel]) == 0 {
			delete(liveHub.channels, channel)
		}
	}
	delete(liveHub.conns, conn)
	conn.Close()
}

// Subscribe -> add the connection to a channel
func Subscribe(conn *websocket.Conn, channel string) {
	liveHub.mutex.Lock()
	defer liveHub.mutex.Unlock()
	if _, ok := liveHub.conns[conn]; !ok {
		return
	}
	if liveHub.channels[channel] == nil {
		liveHub.channels[channel] = make(map[*websocket.Conn]bool)
	}
	liveHub.channels[channel][conn] = true
	liveHub.conns[conn][channel] = true
}

// Unsubscribe -> remove the connection from a channel
func Unsubscribe(conn *websocket.Conn, channel string) {
	liveHub.mutex.Lock()
	defer liveHub.mutex.Unlock()
	delete(liveHub.channels[channel], conn)
	if len(liveHub.channels[channel]) == 0 {
		delete(liveHub.channels, channel)
	}
	if subs, ok := liveHub.conns[conn]; ok {
		delete(subs, channel)
	}
}

// Publish sends an event to every subscriber of the channel. The payload
// is the transport's tagged event variant; clients decode it back through
// the same union.
func Publish(channel string, ev transport.Event) {
	liveHub.mutex.Lock()
	defer liveHub.mutex.Unlock()

	data, err := json.Marshal(eventFrame{
		Channel: channel,
		Event:   ev.EventName(),
		Data:    ev,
	})
	if err != nil {
		utils.ErrorLogger.Printf("Error marshaling event frame: %v", err)
		return
	}

	for conn := range liveHub.channels[channel] {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.Printf("Error sending %s to subscriber: %v", ev.EventName(), err)
			continue
		}
	}
}
