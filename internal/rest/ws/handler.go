package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/auth"
	"github.com/Icerzack/codecollab/internal/broker"
	"github.com/Icerzack/codecollab/internal/judge"
	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/protocol"
	"github.com/Icerzack/codecollab/internal/room"
	eStorage "github.com/Icerzack/codecollab/internal/storage/event"
	pStorage "github.com/Icerzack/codecollab/internal/storage/problem"
	rStorage "github.com/Icerzack/codecollab/internal/storage/room"
	uStorage "github.com/Icerzack/codecollab/internal/storage/user"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBufferSize = 256

	storeTimeout = 5 * time.Second
)

var ErrNotInRoom = errors.New("connection has not joined the room")

type Config struct {
	// JWTHeaderName is the header carrying the token when it is not in the query
	JWTHeaderName string

	// JWTRequired rejects upgrades without a valid token
	JWTRequired bool

	// Validator checks tokens; nil accepts everyone anonymously
	Validator auth.Validator

	Users    uStorage.Storage
	Rooms    rStorage.Storage
	Problems pStorage.Storage
	Events   eStorage.Storage
	Broker   broker.Broker
	Judge    *judge.Judge

	Logger *zap.Logger
}

// WebSocketHandler is the relay: it accepts participant connections and
// rebroadcasts their events to the other members of the room.
type WebSocketHandler struct {
	// upgrader is used to upgrade the HTTP connection to a WebSocket connection
	upgrader *websocket.Upgrader

	jwtHeaderName string
	jwtRequired   bool
	validator     auth.Validator

	// userStorage is the registry of live connections
	userStorage uStorage.Storage

	// roomStorage persists rooms
	roomStorage    rStorage.Storage
	problemStorage pStorage.Storage
	eventStorage   eStorage.Storage

	broker broker.Broker
	judge  *judge.Judge

	// rooms are the runtime rooms with at least one local connection. The
	// membership fields of a user are only written by its own read loop.
	rooms map[string]*room.Room
	mtx   sync.Mutex

	clients    map[string]*connection
	clientsMtx sync.RWMutex

	logger *zap.Logger
}

func NewWebSocketHandler(config Config) *WebSocketHandler {
	j := config.Judge
	if j == nil {
		j = judge.NewJudge(nil, config.Logger)
	}
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		jwtHeaderName:  config.JWTHeaderName,
		jwtRequired:    config.JWTRequired,
		validator:      config.Validator,
		userStorage:    config.Users,
		roomStorage:    config.Rooms,
		problemStorage: config.Problems,
		eventStorage:   config.Events,
		broker:         config.Broker,
		judge:          j,
		rooms:          make(map[string]*room.Room),
		clients:        make(map[string]*connection),
		logger:         config.Logger,
	}
}

// connection is one upgraded participant socket.
type connection struct {
	user     *models.User
	identity auth.Identity
	conn     *websocket.Conn

	done      chan struct{}
	closeOnce sync.Once
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// queue puts payload on the connection's outbound queue without blocking.
func (c *connection) queue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	case c.user.Send <- payload:
		return true
	default:
		return false
	}
}

func (ws *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var identity auth.Identity
	if ws.validator != nil {
		token := auth.TokenFromRequest(r, ws.jwtHeaderName)
		id, err := ws.validator.Validate(r.Context(), token)
		switch {
		case err == nil:
			identity = id
		case ws.jwtRequired:
			ws.logger.Debug("Rejected connection", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		default:
			ws.logger.Debug("Accepting anonymous connection", zap.Error(err))
		}
	}

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	c := &connection{
		user: &models.User{
			ID:   uuid.NewString(),
			Send: make(chan []byte, sendBufferSize),
		},
		identity: identity,
		conn:     conn,
		done:     make(chan struct{}),
	}
	if err := ws.userStorage.Set(c.user.ID, c.user); err != nil {
		ws.logger.Error("Failed to register connection", zap.Error(err))
		_ = conn.Close()
		return
	}
	ws.clientsMtx.Lock()
	ws.clients[c.user.ID] = c
	ws.clientsMtx.Unlock()
	ws.logger.Info("Connection upgraded successfully",
		zap.String("connID", c.user.ID),
		zap.String("subject", identity.Subject),
		zap.Int("connections", ws.userStorage.Count()),
	)

	go ws.writePump(c)
	ws.readPump(c)

	ws.unregisterUser(c)
	ws.logger.Info("Connection closed", zap.String("connID", c.user.ID))
}

func (ws *WebSocketHandler) readPump(c *connection) {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.logger.Debug("Unexpected close", zap.String("connID", c.user.ID), zap.Error(err))
			}
			return
		}

		env, err := protocol.Parse(msg)
		if err != nil {
			ws.logger.Debug("Failed to define message", zap.String("connID", c.user.ID), zap.Error(err))
			continue
		}
		ws.messageHandler(c, env)
	}
}

func (ws *WebSocketHandler) writePump(c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.user.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				ws.logger.Debug("Failed to write message", zap.String("connID", c.user.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			return
		}
	}
}

// unregisterUser drops a closed connection from its room and the registry.
func (ws *WebSocketHandler) unregisterUser(c *connection) {
	ws.leave(c, false)

	ws.clientsMtx.Lock()
	delete(ws.clients, c.user.ID)
	ws.clientsMtx.Unlock()
	if err := ws.userStorage.Delete(c.user.ID); err != nil {
		ws.logger.Debug("Connection was not registered", zap.String("connID", c.user.ID))
	}
}

// Presence returns the presence cache of a room served by this instance.
func (ws *WebSocketHandler) Presence(roomID string) []models.Presence {
	ws.mtx.Lock()
	rm := ws.rooms[roomID]
	ws.mtx.Unlock()
	if rm == nil {
		return []models.Presence{}
	}
	return rm.Presence()
}

// Shutdown closes every live connection.
func (ws *WebSocketHandler) Shutdown() {
	ws.clientsMtx.RLock()
	conns := make([]*connection, 0, len(ws.clients))
	for _, c := range ws.clients {
		conns = append(conns, c)
	}
	ws.clientsMtx.RUnlock()
	for _, c := range conns {
		c.close()
	}
}

// runtimeRoom returns the room for roomID, creating and subscribing it.
// Must be called with ws.mtx held.
func (ws *WebSocketHandler) runtimeRoom(roomID string) (*room.Room, error) {
	if rm, ok := ws.rooms[roomID]; ok {
		return rm, nil
	}

	rm := room.NewRoom(roomID)
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	unsubscribe, err := ws.broker.Subscribe(ctx, roomID, func(m broker.Message) {
		ws.deliver(rm, m)
	})
	if err != nil {
		return nil, err
	}
	rm.SetUnsubscribe(unsubscribe)
	ws.rooms[roomID] = rm
	ws.logger.Info("Room opened", zap.String("roomID", roomID))
	return rm, nil
}

// deliver hands a broker message to the local members of rm. Members that
// cannot keep up are disconnected.
func (ws *WebSocketHandler) deliver(rm *room.Room, m broker.Message) {
	slow := rm.Deliver(m.Payload, m.Recipient)
	for _, u := range slow {
		ws.logger.Warn("Dropping slow connection", zap.String("connID", u.ID), zap.String("roomID", rm.ID))
		ws.clientsMtx.RLock()
		c := ws.clients[u.ID]
		ws.clientsMtx.RUnlock()
		if c != nil {
			c.close()
		}
	}
}
