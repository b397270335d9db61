package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/triviaroom/go/internal/room/events"
)

// ErrConnectionClosed is returned when subscribing a connection that has already unregistered
var ErrConnectionClosed = errors.New("connection closed")

// MessageHandler consumes frames read from a connection and its disconnect
type MessageHandler interface {
	HandleMessage(conn *Connection, message []byte)
	HandleDisconnect(conn *Connection, memberships map[string][]string)
}

// ConnectionManager manages WebSocket connections and their room subscriptions
type ConnectionManager struct {
	// Connection pools organized by room code
	roomConnections map[string]map[*Connection]bool
	// Every live connection
	connections map[*Connection]bool
	mu          sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig

	// Event broadcasting
	broadcastCh chan BroadcastMessage

	handler MessageHandler
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	// memberships maps room code to the player ids this connection joined as.
	// Guarded by Manager.mu.
	memberships map[string][]string

	// Connection metadata
	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	BroadcastBuffer int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a message to deliver to connections
type BroadcastMessage struct {
	RoomCode string
	Event    *events.RoomEvent
	// Target, if set, restricts delivery to this connection
	Target *Connection
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		BroadcastBuffer: 1000,
		SendBuffer:      256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		connections:     make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, config.BroadcastBuffer),
	}
}

// SetHandler installs the consumer of client frames. Must be called before Start.
func (cm *ConnectionManager) SetHandler(h MessageHandler) {
	cm.handler = h
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBuffer),
		Manager:     cm,
		memberships: make(map[string][]string),
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[conn] = true
}

// unregisterConnection removes a connection and all of its room subscriptions, then
// reports the memberships it held to the handler. Only the first call has any effect.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	if !cm.connections[conn] {
		cm.mu.Unlock()
		return
	}
	delete(cm.connections, conn)
	close(conn.Send)

	memberships := conn.memberships
	conn.memberships = make(map[string][]string)
	for code := range memberships {
		cm.removeFromRoomLocked(conn, code)
	}
	cm.mu.Unlock()

	log.Info().
		Str("connection_id", conn.ID).
		Int("rooms", len(memberships)).
		Msg("connection unregistered")

	if cm.handler != nil {
		cm.handler.HandleDisconnect(conn, memberships)
	}
}

// Subscribe adds conn to the room's broadcast pool as playerID. It reports whether the
// membership is new, or ErrConnectionClosed once the connection has unregistered.
func (cm *ConnectionManager) Subscribe(conn *Connection, code, playerID string) (bool, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.connections[conn] {
		return false, ErrConnectionClosed
	}
	for _, id := range conn.memberships[code] {
		if id == playerID {
			return false, nil
		}
	}
	conn.memberships[code] = append(conn.memberships[code], playerID)

	if cm.roomConnections[code] == nil {
		cm.roomConnections[code] = make(map[*Connection]bool)
	}
	cm.roomConnections[code][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room_code", code).
		Str("player_id", playerID).
		Int("total_connections", len(cm.roomConnections[code])).
		Msg("connection subscribed")
	return true, nil
}

// IsRegistered reports whether conn is still live. Once false, the connection's
// memberships have already been handed to the disconnect handler.
func (cm *ConnectionManager) IsRegistered(conn *Connection) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.connections[conn]
}

// Unsubscribe drops the playerID membership. The connection leaves the room's broadcast
// pool once it holds no membership for it.
func (cm *ConnectionManager) Unsubscribe(conn *Connection, code, playerID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	ids := conn.memberships[code]
	for i, id := range ids {
		if id == playerID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) > 0 {
		conn.memberships[code] = ids
		return
	}
	delete(conn.memberships, code)
	cm.removeFromRoomLocked(conn, code)
}

func (cm *ConnectionManager) removeFromRoomLocked(conn *Connection, code string) {
	connections, exists := cm.roomConnections[code]
	if !exists {
		return
	}
	delete(connections, conn)
	if len(connections) == 0 {
		delete(cm.roomConnections, code)
	}
}

// BroadcastToRoom sends an event to all connections subscribed to a room
func (cm *ConnectionManager) BroadcastToRoom(code string, event *events.RoomEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{RoomCode: code, Event: event}:
	default:
		log.Warn().
			Str("room_code", code).
			Str("event_type", string(event.Type)).
			Msg("broadcast channel full, dropping message")
	}
}

// SendTo sends an event to a single connection
func (cm *ConnectionManager) SendTo(conn *Connection, event *events.RoomEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{RoomCode: event.RoomID, Event: event, Target: conn}:
	default:
		log.Warn().
			Str("connection_id", conn.ID).
			Str("event_type", string(event.Type)).
			Msg("broadcast channel full, dropping reply")
	}
}

// handleBroadcast processes a broadcast message
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	// Marshal the event once
	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	var slow []*Connection
	delivered := 0

	// Sends happen under the read lock so a concurrent unregister cannot close Send mid-delivery
	cm.mu.RLock()
	if message.Target != nil {
		if cm.connections[message.Target] {
			if cm.trySend(message.Target, eventData) {
				delivered++
			} else {
				slow = append(slow, message.Target)
			}
		}
	} else {
		for conn := range cm.roomConnections[message.RoomCode] {
			if cm.trySend(conn, eventData) {
				delivered++
			} else {
				slow = append(slow, conn)
			}
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		// Connection is slow/dead, close it
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("room_code", message.RoomCode).
		Int("connections", delivered).
		Msg("event broadcasted")
}

func (cm *ConnectionManager) trySend(conn *Connection, data []byte) bool {
	select {
	case conn.Send <- data:
		return true
	default:
		return false
	}
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		cm.unregisterConnection(conn)
	}
}

// ConnectionStats summarizes active connections
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomConnections  map[string]int `json:"room_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	roomCounts := make(map[string]int, len(cm.roomConnections))
	for code, connections := range cm.roomConnections {
		roomCounts[code] = len(connections)
	}

	return ConnectionStats{
		TotalConnections: len(cm.connections),
		ActiveRooms:      len(cm.roomConnections),
		RoomConnections:  roomCounts,
	}
}

// writePump handles sending messages to the WebSocket connection
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
				// Channel was closed
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
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
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
			c.Manager.handler.HandleMessage(c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
