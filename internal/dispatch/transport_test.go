package dispatch

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cowork/internal/ir"
	"github.com/roach88/cowork/internal/shared"
	"github.com/roach88/cowork/internal/wire"
)

func writeTestError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(wire.ErrorResponse{Error: wire.APIError{Code: code, Message: "nope"}})
}

func TestHTTPTransport(t *testing.T) {
	var gotAuth string
	var gotEvent ir.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/v1/events", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotEvent))

		switch gotEvent.Type {
		case "ok":
			w.WriteHeader(http.StatusNoContent)
		case "reject":
			writeTestError(w, http.StatusUnprocessableEntity, wire.CodeReducerFailed)
		case "busy":
			writeTestError(w, http.StatusServiceUnavailable, wire.CodeUnavailable)
		}
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL+"/", "tok")

	ev := ir.Event{Type: "ok", SequenceID: "s", SequenceCounter: 2, Fields: ir.O("id", "A")}
	require.NoError(t, tr.Send(t.Context(), ev))
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, ev, gotEvent)

	err := tr.Send(t.Context(), ir.Event{Type: "reject", Fields: ir.IRObject{}})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	apiErr, ok := APIErrorOf(err)
	require.True(t, ok)
	assert.Equal(t, wire.CodeReducerFailed, apiErr.Code)

	err = tr.Send(t.Context(), ir.Event{Type: "busy", Fields: ir.IRObject{}})
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}

func TestHTTPTransport_UserHeaderWithoutToken(t *testing.T) {
	var gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get("X-User-ID")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "")
	tr.UserID = "alice"
	require.NoError(t, tr.Send(t.Context(), typed("chat:read")))
	assert.Equal(t, "alice", gotUser)
}

// wsEcho acks every frame; events of type "reject" get an error ack. It
// pushes a change notification before the first ack.
func wsEcho(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		notified := false
		for {
			var f wire.Frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			if !notified {
				conn.WriteJSON(wire.Frame{Changes: []shared.Change{{Container: "graph.nodes", Kind: shared.KindMap, Op: shared.OpSet, Key: "A"}}})
				notified = true
			}
			ack := wire.Frame{ID: f.ID}
			if f.Event != nil && f.Event.Type == "reject" {
				ack.Error = &wire.APIError{Code: wire.CodeReducerFailed, Message: "nope"}
			}
			if err := conn.WriteJSON(ack); err != nil {
				return
			}
		}
	}))
}

func TestWSTransport(t *testing.T) {
	srv := wsEcho(t)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	tr, err := DialWS(t.Context(), url, AuthHeader("", "alice"))
	require.NoError(t, err)

	changes := make(chan []shared.Change, 1)
	tr.OnChanges(func(c []shared.Change) { changes <- c })

	require.NoError(t, tr.Send(t.Context(), typed("graph:add-node")))

	select {
	case c := <-changes:
		require.Len(t, c, 1)
		assert.Equal(t, "graph.nodes", c[0].Container)
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}

	err = tr.Send(t.Context(), typed("reject"))
	require.Error(t, err)
	assert.True(t, IsPermanent(err))

	require.NoError(t, tr.Close())
	err = tr.Send(t.Context(), typed("graph:add-node"))
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestWSTransport_WithDispatcher(t *testing.T) {
	srv := wsEcho(t)
	defer srv.Close()

	tr, err := DialWS(t.Context(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer tr.Close()

	d := New(tr)
	startDispatcher(t, d)

	for range 3 {
		require.NoError(t, d.Dispatch(t.Context(), typed("chat:typing")))
	}
}
