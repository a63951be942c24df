package turtle

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Event is one turtle call, JSON-encoded and broadcast to every
// connected `run --watch` client.
type Event struct {
	Op   string    `json:"op"`
	Args []float64 `json:"args,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketSink broadcasts every turtle call as a JSON Event to all
// currently connected clients, adapted from the teacher's
// network.NetworkModule WebSocket broadcast handling (one client set
// guarded by a mutex, best-effort write, drop on error).
type WebSocketSink struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
}

func NewWebSocketSink() *WebSocketSink {
	return &WebSocketSink{clients: make(map[*websocket.Conn]bool)}
}

// Handler upgrades an incoming HTTP request to a websocket connection
// and registers it as a broadcast recipient until it disconnects.
func (s *WebSocketSink) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *WebSocketSink) broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.mu.Lock()
			delete(s.clients, c)
			s.mu.Unlock()
			c.Close()
		}
	}
}

func (s *WebSocketSink) Center()  { s.broadcast(Event{Op: "center"}) }
func (s *WebSocketSink) Forward(u float64)  { s.broadcast(Event{Op: "forward", Args: []float64{u}}) }
func (s *WebSocketSink) Backward(u float64) { s.broadcast(Event{Op: "backward", Args: []float64{u}}) }
func (s *WebSocketSink) Left(d float64)     { s.broadcast(Event{Op: "left", Args: []float64{d}}) }
func (s *WebSocketSink) Right(d float64)    { s.broadcast(Event{Op: "right", Args: []float64{d}}) }
func (s *WebSocketSink) Size(u float64)     { s.broadcast(Event{Op: "size", Args: []float64{u}}) }
func (s *WebSocketSink) Clear()             { s.broadcast(Event{Op: "clear"}) }
func (s *WebSocketSink) PenUp()             { s.broadcast(Event{Op: "penup"}) }
func (s *WebSocketSink) PenDown()           { s.broadcast(Event{Op: "pendown"}) }
func (s *WebSocketSink) Color(r, g, b float64) {
	s.broadcast(Event{Op: "color", Args: []float64{r, g, b}})
}
func (s *WebSocketSink) Position(x, y float64) {
	s.broadcast(Event{Op: "position", Args: []float64{x, y}})
}
func (s *WebSocketSink) BackgroundColor(r, g, b float64) {
	s.broadcast(Event{Op: "backgroundcolor", Args: []float64{r, g, b}})
}
func (s *WebSocketSink) FillColor(r, g, b float64) {
	s.broadcast(Event{Op: "fillcolor", Args: []float64{r, g, b}})
}
func (s *WebSocketSink) StartFill() { s.broadcast(Event{Op: "startfill"}) }
func (s *WebSocketSink) EndFill()   { s.broadcast(Event{Op: "endfill"}) }
