package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"flexify/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const pushWriteTimeout = 5 * time.Second

type pushEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type pushClient struct {
	conn *websocket.Conn
	// gorilla connections allow one concurrent writer.
	writeMu sync.Mutex
}

func (pc *pushClient) write(payload []byte) error {
	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()
	_ = pc.conn.SetWriteDeadline(time.Now().Add(pushWriteTimeout))
	return pc.conn.WriteMessage(websocket.TextMessage, payload)
}

// PushHub fans events out to the websocket clients that joined a room. A
// client joins at most its own user or provider room.
type PushHub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu    sync.RWMutex
	rooms map[string]map[*pushClient]bool
}

func NewPushHub(logger *zap.Logger) *PushHub {
	return &PushHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
		rooms:  make(map[string]map[*pushClient]bool),
	}
}

func userRoom(id string) string     { return "user:" + id }
func providerRoom(id string) string { return "provider:" + id }

// roomFor maps a join request to the caller's room, or "" when the request
// does not fit the caller's role.
func roomFor(event string, id string, role models.Role) string {
	switch {
	case event == "join-user-room" && role == models.RoleUser:
		return userRoom(id)
	case event == "join-provider-room" && role == models.RoleProvider:
		return providerRoom(id)
	}
	return ""
}

func (h *PushHub) join(room string, pc *pushClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*pushClient]bool)
	}
	h.rooms[room][pc] = true
}

func (h *PushHub) leave(pc *pushClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, members := range h.rooms {
		delete(members, pc)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Members counts the clients in room.
func (h *PushHub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// UserMembers counts the connections of user id that joined their room.
func (h *PushHub) UserMembers(id string) int { return h.Members(userRoom(id)) }

// ProviderMembers counts the connections of provider id that joined their room.
func (h *PushHub) ProviderMembers(id string) int { return h.Members(providerRoom(id)) }

func (h *PushHub) PublishToUser(id string, event models.EventType, data any) {
	h.publish(userRoom(id), event, data)
}

func (h *PushHub) PublishToProvider(id string, event models.EventType, data any) {
	h.publish(providerRoom(id), event, data)
}

func (h *PushHub) publish(room string, event models.EventType, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to encode push payload", zap.String("event", string(event)), zap.Error(err))
		return
	}
	payload, err := json.Marshal(pushEnvelope{Event: string(event), Data: raw})
	if err != nil {
		return
	}

	h.mu.RLock()
	members := make([]*pushClient, 0, len(h.rooms[room]))
	for pc := range h.rooms[room] {
		members = append(members, pc)
	}
	h.mu.RUnlock()

	for _, pc := range members {
		if err := pc.write(payload); err != nil {
			h.logger.Warn("Dropping push client", zap.String("room", room), zap.Error(err))
			h.leave(pc)
			pc.conn.Close()
		}
	}
	h.logger.Debug("Push event published",
		zap.String("room", room), zap.String("event", string(event)), zap.Int("recipients", len(members)))
}

// PushSocket handles GET /ws. The caller is authenticated by the bearer
// header of the upgrade request; afterwards the socket only accepts room
// joins.
func (hb *HandlerBundle) PushSocket(c *gin.Context) {
	h := hb.Hub
	id, role := caller(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hb.getLogger(c).Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	pc := &pushClient{conn: conn}
	defer func() {
		h.leave(pc)
		conn.Close()
	}()

	for {
		var env pushEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		room := roomFor(env.Event, id, role)
		if room == "" {
			h.logger.Debug("Ignoring socket message", zap.String("event", env.Event), zap.String("accountID", id))
			continue
		}
		h.join(room, pc)
		h.logger.Debug("Joined room", zap.String("room", room))
	}
}
