package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tableside/dinein/hub"
	"github.com/tableside/dinein/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsControlFrame struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// HandleWebSocket upgrades the connection and serves subscribe and
// unsubscribe control frames. Diners connect anonymously and may only
// join session channels; restaurant-wide channels need a staff token
// for that restaurant, passed as a query parameter since browsers
// cannot set headers on websocket dials.
func HandleWebSocket(c *gin.Context) {
	var staffRestaurantID uint
	if token := c.Query("token"); token != "" {
		claims, err := utils.ParseToken(strings.TrimPrefix(token, "Bearer "))
		if err == nil && claims != nil {
			staffRestaurantID = claims.RestaurantID
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Printf("websocket upgrade failed: %v", err)
		return
	}

	hub.RegisterClient(conn)
	defer hub.UnregisterClient(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame wsControlFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			utils.ErrorLogger.Printf("bad websocket control frame: %v", err)
			continue
		}

		switch frame.Action {
		case "subscribe":
			if !channelAllowed(frame.Channel, staffRestaurantID) {
				utils.ErrorLogger.Printf("denied subscription to %s", frame.Channel)
				continue
			}
			hub.Subscribe(conn, frame.Channel)
		case "unsubscribe":
			hub.Unsubscribe(conn, frame.Channel)
		default:
			utils.ErrorLogger.Printf("unknown websocket action %q", frame.Action)
		}
	}
}

func channelAllowed(channel string, staffRestaurantID uint) bool {
	if strings.HasPrefix(channel, "session-") {
		return true
	}
	if rest, ok := strings.CutPrefix(channel, "restaurant-"); ok {
		id, err := strconv.ParseUint(rest, 10, 32)
		if err != nil {
			return false
		}
		return staffRestaurantID != 0 && uint(id) == staffRestaurantID
	}
	return false
}
