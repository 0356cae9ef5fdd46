package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tidelands/worldstream/internal/auth"
	"github.com/tidelands/worldstream/internal/codec"
	"github.com/tidelands/worldstream/internal/config"
	"github.com/tidelands/worldstream/internal/performance"
	"github.com/tidelands/worldstream/internal/streaming"
	"github.com/tidelands/worldstream/internal/tilegrid"
)

const (
	// Ping interval for idle connections
	defaultPingInterval = 30 * time.Second

	// Pong wait timeout
	pongWait = 60 * time.Second

	// Write timeout
	writeTimeout = 10 * time.Second

	// Largest accepted client message
	maxMessageSize = 4096
)

// Connection represents an active viewer websocket connection.
type Connection struct {
	conn   *websocket.Conn
	viewer string
	send   chan []byte
	hub    *Hub
}

// Hub manages viewer connections. Exactly one connection at a time may
// drive the observer; the rest receive chunk broadcasts read-only, so
// the stream stays single-observer.
type Hub struct {
	mu          sync.RWMutex
	connections map[*Connection]bool
	driver      *Connection

	broadcast  chan []byte
	register   chan *Connection
	unregister chan *Connection
}

// Message is the envelope for viewer websocket traffic in both
// directions.
type Message struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ErrorMessage is sent to a client when a request is rejected.
type ErrorMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// observerUpdate is the payload of an observer_update message.
type observerUpdate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// refreshResult summarizes one refresh pass for the driving client.
type refreshResult struct {
	Center   string `json:"center"`
	Created  int    `json:"created"`
	Evicted  int    `json:"evicted"`
	Resident int    `json:"resident"`
}

// chunkRemove is the payload of a chunk_remove broadcast.
type chunkRemove struct {
	ChunkID string `json:"chunk_id"`
}

// NewHub creates a connection hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*Connection]bool),
		broadcast:   make(chan []byte, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn] = true
			h.mu.Unlock()
			log.Printf("[Viewer] connection registered: viewer=%s", conn.viewer)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				close(conn.send)
			}
			if h.driver == conn {
				h.driver = nil
			}
			h.mu.Unlock()
			log.Printf("[Viewer] connection unregistered: viewer=%s", conn.viewer)

		case message := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.connections {
				select {
				case conn.send <- message:
				default:
					close(conn.send)
					delete(h.connections, conn)
					if h.driver == conn {
						h.driver = nil
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a message for every connected client.
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

// ConnectionCount returns the number of registered viewer connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// claimDriver makes conn the observer driver if the seat is free or
// already held by conn.
func (h *Hub) claimDriver(conn *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.driver == nil {
		h.driver = conn
	}
	return h.driver == conn
}

// WebSocketHandlers serves the viewer websocket endpoint.
type WebSocketHandlers struct {
	hub      *Hub
	cfg      *config.Config
	manager  *streaming.Manager
	tokens   *auth.TokenService
	profiler *performance.Profiler
	upgrader websocket.Upgrader
}

// NewWebSocketHandlers creates viewer websocket handlers.
func NewWebSocketHandlers(cfg *config.Config, manager *streaming.Manager, tokens *auth.TokenService, profiler *performance.Profiler) *WebSocketHandlers {
	hub := NewHub()
	go hub.Run()

	return &WebSocketHandlers{
		hub:      hub,
		cfg:      cfg,
		manager:  manager,
		tokens:   tokens,
		profiler: profiler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Development accepts all origins; production goes
				// through the CORS allow list in front of this handler.
				return cfg.Server.IsDevelopment() || r.Header.Get("Origin") == ""
			},
		},
	}
}

// HandleWebSocket upgrades a viewer connection, authenticating it first
// when a token service is configured.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	viewer := "anonymous"
	if h.tokens != nil {
		claims, err := h.tokens.ValidateToken(r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, "invalid viewer token", http.StatusUnauthorized)
			return
		}
		viewer = claims.Viewer
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Viewer] websocket upgrade failed: %v", err)
		return
	}

	c := &Connection{
		conn:   conn,
		viewer: viewer,
		send:   make(chan []byte, 64),
		hub:    h.hub,
	}
	h.hub.register <- c

	go c.writePump()
	go c.readPump(h)
}

// readPump reads client messages until the connection closes.
func (c *Connection) readPump(h *WebSocketHandlers) {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Viewer] read error: viewer=%s err=%v", c.viewer, err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("", "bad_message", "message is not valid JSON")
			continue
		}
		h.handleMessage(c, &msg)
	}
}

// writePump forwards queued messages and keeps the connection alive
// with pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(defaultPingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one client message.
func (h *WebSocketHandlers) handleMessage(c *Connection, msg *Message) {
	switch msg.Type {
	case "observer_update":
		h.handleObserverUpdate(c, msg)
	default:
		c.sendError(msg.ID, "unknown_type", "unsupported message type: "+msg.Type)
	}
}

// handleObserverUpdate runs one refresh pass for the driving client and
// broadcasts the resulting chunk deltas.
func (h *WebSocketHandlers) handleObserverUpdate(c *Connection, msg *Message) {
	var update observerUpdate
	if err := json.Unmarshal(msg.Data, &update); err != nil {
		c.sendError(msg.ID, "bad_request", "observer_update data must be {x, y}")
		return
	}

	pos := tilegrid.Point{X: update.X, Y: update.Y}
	if err := tilegrid.ValidatePoint(pos); err != nil {
		c.sendError(msg.ID, "bad_position", err.Error())
		return
	}

	if !c.hub.claimDriver(c) {
		c.sendError(msg.ID, "viewer_read_only", "another connection is driving the observer")
		return
	}

	delta, err := h.manager.Refresh(pos)
	if err != nil {
		c.sendError(msg.ID, "refresh_failed", err.Error())
		return
	}

	h.profiler.Add("chunks_created", int64(len(delta.Created)))
	h.profiler.Add("chunks_evicted", int64(len(delta.Evicted)))

	for _, coord := range delta.Created {
		payload, err := h.encodeChunk(coord)
		if err != nil {
			log.Printf("[Viewer] chunk %s payload encoding failed: %v", coord, err)
			continue
		}
		h.broadcastJSON("chunk_add", payload)
	}
	for _, coord := range delta.Evicted {
		h.broadcastJSON("chunk_remove", &chunkRemove{ChunkID: coord.String()})
	}

	c.sendJSON(msg.ID, "refresh_result", &refreshResult{
		Center:   delta.Center.String(),
		Created:  len(delta.Created),
		Evicted:  len(delta.Evicted),
		Resident: h.manager.ResidentCount(),
	})
}

// encodeChunk builds the wire payload for a resident chunk.
func (h *WebSocketHandlers) encodeChunk(coord tilegrid.ChunkCoord) (*codec.WirePayload, error) {
	chunk, ok := h.manager.ChunkAt(coord)
	if !ok {
		return nil, errChunkNotResident(coord)
	}

	op := h.profiler.Start("codec.encode_chunk")
	encoded, err := codec.EncodeChunkPayload(&codec.ChunkPayload{
		Coord: chunk.Coord,
		TileW: h.manager.Stream().ChunkTileWidth,
		TileH: h.manager.Stream().ChunkTileHeight,
		Tiles: chunk.Tiles,
	})
	op.End()
	if err != nil {
		return nil, err
	}

	tileCount := h.manager.Stream().ChunkTileWidth * h.manager.Stream().ChunkTileHeight
	return codec.FormatChunkPayload(chunk.Coord, encoded, tileCount), nil
}

type errChunkNotResident tilegrid.ChunkCoord

func (e errChunkNotResident) Error() string {
	return "chunk " + tilegrid.ChunkCoord(e).String() + " is not resident"
}

// broadcastJSON wraps data in a Message envelope and broadcasts it.
func (h *WebSocketHandlers) broadcastJSON(msgType string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Viewer] broadcast marshal failed: %v", err)
		return
	}
	envelope, err := json.Marshal(&Message{Type: msgType, Data: raw})
	if err != nil {
		log.Printf("[Viewer] broadcast marshal failed: %v", err)
		return
	}
	h.hub.Broadcast(envelope)
}

// sendJSON sends a typed message to one connection.
func (c *Connection) sendJSON(id, msgType string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Viewer] send marshal failed: %v", err)
		return
	}
	envelope, err := json.Marshal(&Message{Type: msgType, ID: id, Data: raw})
	if err != nil {
		log.Printf("[Viewer] send marshal failed: %v", err)
		return
	}
	select {
	case c.send <- envelope:
	default:
	}
}

func (c *Connection) sendJSONRaw(message []byte) {
	select {
	case c.send <- message:
	default:
	}
}

// sendError sends an error message to one connection.
func (c *Connection) sendError(id, code, detail string) {
	message, err := json.Marshal(&ErrorMessage{
		Type:    "error",
		ID:      id,
		Error:   detail,
		Message: detail,
		Code:    code,
	})
	if err != nil {
		return
	}
	c.sendJSONRaw(message)
}
