package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// MessageHandler consumes raw messages and disconnects from the socket
// layer. The relay implements it.
type MessageHandler interface {
	HandleMessage(ctx context.Context, socketID string, raw []byte)
	HandleDisconnect(socketID string)
}

// ConnectionManager owns the WebSocket connections and their room
// pools. All outbound delivery funnels through a single broadcast
// goroutine, so deliveries within one room keep the relay's receipt
// order.
type ConnectionManager struct {
	roomConnections map[string]map[*Connection]bool
	connectionsByID map[string]*Connection
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  MessageHandler

	broadcastCh chan broadcastMessage
}

// Connection represents one WebSocket client.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds socket-level settings.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

type broadcastMessage struct {
	roomID   string // empty: deliver to a single socket
	exceptID string // sender to exclude from a room delivery
	socketID string // target for single-socket delivery
	event    string
	data     []byte
}

// DefaultConnectionConfig returns the socket settings used when nothing
// is configured.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  8 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// The clock is a public toy; rooms are unauthenticated.
			return true
		},
	}
}

// NewConnectionManager creates a manager. SetHandler must be called
// before the first connection is accepted.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		connectionsByID: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// SetHandler wires the inbound message consumer.
func (cm *ConnectionManager) SetHandler(h MessageHandler) {
	cm.handler = h
}

// Start processes outbound deliveries until the context is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.deliver(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket and starts
// the connection's pumps. The socket joins a room later, through the
// relay protocol.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return err
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.mu.Lock()
	cm.connectionsByID[connection.ID] = connection
	cm.mu.Unlock()

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Msg("WebSocket connection established")

	return nil
}

// Join subscribes a socket to a room's broadcast pool, moving it out of
// any previous room.
func (cm *ConnectionManager) Join(socketID, roomID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conn, ok := cm.connectionsByID[socketID]
	if !ok {
		return
	}
	for room, pool := range cm.roomConnections {
		if pool[conn] && room != roomID {
			delete(pool, conn)
			if len(pool) == 0 {
				delete(cm.roomConnections, room)
			}
		}
	}
	if cm.roomConnections[roomID] == nil {
		cm.roomConnections[roomID] = make(map[*Connection]bool)
	}
	cm.roomConnections[roomID][conn] = true

	log.Debug().
		Str("connection_id", socketID).
		Str("room_id", roomID).
		Int("room_connections", len(cm.roomConnections[roomID])).
		Msg("connection joined room")
}

// ToRoom queues an event for every room member except one.
func (cm *ConnectionManager) ToRoom(roomID, exceptSocketID, event string, data []byte) {
	select {
	case cm.broadcastCh <- broadcastMessage{roomID: roomID, exceptID: exceptSocketID, event: event, data: data}:
	default:
		log.Warn().Str("room_id", roomID).Msg("broadcast channel full, dropping message")
	}
}

// ToSocket queues an event for a single socket.
func (cm *ConnectionManager) ToSocket(socketID, event string, data []byte) {
	select {
	case cm.broadcastCh <- broadcastMessage{socketID: socketID, event: event, data: data}:
	default:
		log.Warn().Str("connection_id", socketID).Msg("broadcast channel full, dropping message")
	}
}

// deliver fans one queued message out to its targets.
func (cm *ConnectionManager) deliver(message broadcastMessage) {
	payload, err := encodeEnvelope(message.event, message.data)
	if err != nil {
		log.Error().Err(err).Str("event", message.event).Msg("failed to encode envelope")
		return
	}

	cm.mu.RLock()
	var targets []*Connection
	if message.roomID != "" {
		for conn := range cm.roomConnections[message.roomID] {
			if conn.ID == message.exceptID {
				continue
			}
			targets = append(targets, conn)
		}
	} else if conn, ok := cm.connectionsByID[message.socketID]; ok {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		select {
		case conn.Send <- payload:
		default:
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}
}

// unregisterConnection removes a connection from its room pool and the
// id index.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	registered := false
	if _, ok := cm.connectionsByID[conn.ID]; ok {
		registered = true
		delete(cm.connectionsByID, conn.ID)
		for room, pool := range cm.roomConnections {
			if pool[conn] {
				delete(pool, conn)
				if len(pool) == 0 {
					delete(cm.roomConnections, room)
				}
			}
		}
		close(conn.Send)
	}
	cm.mu.Unlock()

	if registered {
		if cm.handler != nil {
			cm.handler.HandleDisconnect(conn.ID)
		}
		log.Info().
			Str("connection_id", conn.ID).
			Msg("connection unregistered")
	}
}

// Stats returns counts of active connections and rooms.
func (cm *ConnectionManager) Stats() (totalConnections, activeRooms int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connectionsByID), len(cm.roomConnections)
}

// writePump sends queued messages and pings to the client.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump feeds inbound messages to the relay until the socket closes.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		if c.Manager.handler != nil {
			c.Manager.handler.HandleMessage(context.Background(), c.ID, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
