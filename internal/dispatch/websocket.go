package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/cowork/internal/ir"
	"github.com/roach88/cowork/internal/shared"
	"github.com/roach88/cowork/internal/wire"
)

// ErrDisconnected is returned for sends on a websocket that has gone away.
// The transport does not reconnect.
var ErrDisconnected = errors.New("websocket disconnected")

// WSTransport sends events as websocket frames and matches acks by frame id.
// Change notifications pushed by the server go to the OnChanges handler.
type WSTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu        sync.Mutex
	nextID    int64
	waiters   map[int64]chan *wire.APIError
	onChanges func([]shared.Change)
	err       error

	done chan struct{}
}

// DialWS connects to a /v1/ws endpoint (ws:// or wss:// URL) and starts the
// read loop.
func DialWS(ctx context.Context, url string, header http.Header) (*WSTransport, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	t := &WSTransport{
		conn:    conn,
		waiters: make(map[int64]chan *wire.APIError),
		done:    make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

// OnChanges sets the handler for server change notifications.
// The handler runs on the read goroutine and must not block.
func (t *WSTransport) OnChanges(fn func([]shared.Change)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChanges = fn
}

// Send implements Transport.
func (t *WSTransport) Send(ctx context.Context, ev ir.Event) error {
	ack := make(chan *wire.APIError, 1)

	t.mu.Lock()
	if t.err != nil {
		t.mu.Unlock()
		return Permanent(ErrDisconnected)
	}
	t.nextID++
	id := t.nextID
	t.waiters[id] = ack
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.waiters, id)
		t.mu.Unlock()
	}()

	data, err := json.Marshal(wire.Frame{ID: id, Event: &ev})
	if err != nil {
		return Permanent(fmt.Errorf("encode frame: %w", err))
	}

	t.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		t.conn.SetWriteDeadline(deadline)
	} else {
		t.conn.SetWriteDeadline(time.Time{})
	}
	err = t.conn.WriteMessage(websocket.TextMessage, data)
	t.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write frame %d: %w", id, err)
	}

	select {
	case apiErr := <-ack:
		if apiErr == nil {
			return nil
		}
		if apiErr.Code == wire.CodeInternal || apiErr.Code == wire.CodeUnavailable {
			return apiErr
		}
		return Permanent(apiErr)
	case <-t.done:
		return Permanent(ErrDisconnected)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close sends a close frame and tears down the connection.
func (t *WSTransport) Close() error {
	t.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	t.writeMu.Unlock()

	err := t.conn.Close()
	<-t.done
	return err
}

// Done is closed when the read loop exits.
func (t *WSTransport) Done() <-chan struct{} {
	return t.done
}

func (t *WSTransport) readLoop() {
	defer close(t.done)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			t.err = err
			t.mu.Unlock()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				slog.Debug("websocket read loop ended", "error", err)
			}
			return
		}

		var f wire.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			slog.Warn("websocket: bad frame", "error", err)
			continue
		}

		t.mu.Lock()
		switch {
		case f.IsAck():
			if ch, ok := t.waiters[f.ID]; ok {
				ch <- f.Error
			}
		case len(f.Changes) > 0 && t.onChanges != nil:
			fn := t.onChanges
			t.mu.Unlock()
			fn(f.Changes)
			continue
		}
		t.mu.Unlock()
	}
}
