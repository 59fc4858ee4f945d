package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/cowork/internal/ir"
	"github.com/roach88/cowork/internal/modules/selection"
	"github.com/roach88/cowork/internal/shared"
	"github.com/roach88/cowork/internal/wire"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// client is one websocket connection.
type client struct {
	user string
	conn *websocket.Conn
	send chan wire.Frame
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// hub tracks connections and per-user connection counts.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	users   map[string]int
}

func newHub() *hub {
	return &hub{
		clients: make(map[*client]struct{}),
		users:   make(map[string]int),
	}
}

// join registers c and reports whether it is the user's first connection.
func (h *hub) join(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.users[c.user]++
	return h.users[c.user] == 1
}

// leave unregisters c and reports whether it was the user's last
// connection.
func (h *hub) leave(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	h.users[c.user]--
	if h.users[c.user] > 0 {
		return false
	}
	delete(h.users, c.user)
	return true
}

// broadcast queues a change notification for every client. Slow clients
// drop notifications instead of blocking the writer of the change.
func (h *hub) broadcast(changes []shared.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- wire.Frame{Changes: changes}:
		default:
			slog.Warn("websocket: dropping change notification", "user", c.user)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
	}
}

// handleWS handles GET /v1/ws.
//
// The user is marked present on the first connection. When the last
// connection closes the user is removed from awareness and a user-leave
// event is processed on their behalf.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r.Context())
	log := logFor(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	c := &client{user: rc.UserID, conn: conn, send: make(chan wire.Frame, sendBuffer)}
	if s.hub.join(c) {
		s.ws.Doc.Awareness().Set(rc.UserID, rc.Time)
	}
	log.Info("websocket connected")

	base := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(base)
	defer cancel()

	go func() {
		s.writeLoop(c)
		cancel()
	}()
	s.readLoop(ctx, c, rc)

	// Leave before closing send: broadcast never writes to a client that
	// is no longer registered.
	last := s.hub.leave(c)
	c.close()
	if last {
		aware := s.ws.Doc.Awareness()
		aware.Remove(rc.UserID)
		leave := ir.Event{Type: selection.EventUserLeave, Fields: ir.O(
			"userId", rc.UserID,
			selection.FieldPresent, aware.Has(rc.UserID),
		)}
		leaveRC := rc
		leaveRC.Time = s.config.Now()
		if err := s.ws.Processor.ProcessEvent(base, leave, leaveRC); err != nil {
			log.Error("user-leave failed", "error", err)
		}
	}
	log.Info("websocket disconnected")
}

func (s *Server) readLoop(ctx context.Context, c *client, rc ir.RequestContext) {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("websocket read", "user", c.user, "error", err)
			}
			return
		}

		f, decodeErr := decodeFrame(data)
		ack := wire.Frame{ID: f.ID}
		switch {
		case f.ID == 0:
			slog.Warn("websocket: frame without id", "user", c.user)
			continue
		case decodeErr != nil:
			ack.Error = &wire.APIError{Code: wire.CodeBadRequest, Message: decodeErr.Error()}
		case f.Event == nil:
			ack.Error = &wire.APIError{Code: wire.CodeBadRequest, Message: "frame has no event"}
		default:
			evRC := rc
			evRC.Time = s.config.Now()
			if err := s.ws.Processor.ProcessEvent(ctx, *f.Event, evRC); err != nil {
				_, apiErr := classify(err)
				ack.Error = &apiErr
			}
		}

		select {
		case c.send <- ack:
		case <-ctx.Done():
			return
		}
	}
}

// decodeFrame parses a client frame. When the event is malformed the
// returned frame still carries the id so the error can be acked.
func decodeFrame(data []byte) (wire.Frame, error) {
	var f wire.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		var idOnly struct {
			ID int64 `json:"id"`
		}
		json.Unmarshal(data, &idOnly)
		return wire.Frame{ID: idOnly.ID}, err
	}
	return f, nil
}

func (s *Server) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case f, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(f); err != nil {
				c.conn.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}
