// Package chat is the comment-thread module. Threads may be anchored to a
// graph node and carry messages, read receipts and typing flags.
package chat

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/roach88/cowork/internal/ids"
	"github.com/roach88/cowork/internal/ir"
	"github.com/roach88/cowork/internal/module"
	"github.com/roach88/cowork/internal/modules/graph"
	"github.com/roach88/cowork/internal/reducer"
	"github.com/roach88/cowork/internal/shared"
)

// Module and container names.
const (
	Name             = "chat"
	ThreadsContainer = "chat.threads"
)

// Event types handled by the chat reducer.
const (
	EventNewChat       = "chat:new-chat"
	EventNewMessage    = "chat:new-message"
	EventTyping        = "chat:typing"
	EventRead          = "chat:read"
	EventResolve       = "chat:resolve"
	EventDeleteMessage = "chat:delete-message"
)

// DeletedContent replaces the content of a soft-deleted message.
const DeletedContent = "[deleted]"

// TypingTTL is how long a typing flag survives without a refresh.
const TypingTTL = 10 * time.Second

// Message is one chat message. SentAt is unix milliseconds.
type Message struct {
	UserID  string `json:"userId"`
	Content string `json:"content"`
	SentAt  int64  `json:"sentAt"`
	Deleted bool   `json:"deleted,omitempty"`
}

// Thread is a chat thread.
type Thread struct {
	ID        string    `json:"id"`
	NodeID    string    `json:"nodeId,omitempty"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt int64     `json:"createdAt"`
	Resolved  bool      `json:"resolved"`
	Messages  []Message `json:"messages"`

	// LastRead maps user id to the index of the last message they read.
	LastRead map[string]int64 `json:"lastRead"`

	// Typing maps user id to the unix millisecond time of the last
	// keystroke. Entries older than TypingTTL are expired by the periodic
	// event.
	Typing map[string]int64 `json:"typing,omitempty"`
}

func cloneThread(t Thread) Thread {
	t.Messages = slices.Clone(t.Messages)
	t.LastRead = maps.Clone(t.LastRead)
	t.Typing = maps.Clone(t.Typing)
	return t
}

// State holds the chat container and its dependencies.
type State struct {
	Threads *shared.Map[Thread]
	graph   graph.Reader
	ids     ids.Generator
}

// Claim claims the chat container in ns.
func Claim(ns *shared.Namespace, g graph.Reader, gen ids.Generator) (*State, error) {
	threads, err := shared.ClaimMap(ns, ThreadsContainer, cloneThread)
	if err != nil {
		return nil, err
	}
	return &State{Threads: threads, graph: g, ids: gen}, nil
}

// Module returns the chat module definition. It depends on graph for node
// anchors.
func Module(gen ids.Generator) module.Definition {
	return module.Definition{
		Name:      Name,
		DependsOn: []string{graph.Name},
		Setup: func(s *module.Setup) (any, error) {
			g, err := module.Dep[graph.Reader](s, graph.Name)
			if err != nil {
				return nil, err
			}
			st, err := Claim(s.Namespace(), g, gen)
			if err != nil {
				return nil, err
			}
			s.Register(NewReducer(st))
			return nil, nil
		},
	}
}

// NewReducer builds the chat reducer over st.
func NewReducer(st *State) *reducer.Table {
	return reducer.NewTable(Name).
		On(EventNewChat, st.newChat).
		On(EventNewMessage, st.newMessage).
		On(EventTyping, st.typing).
		On(EventRead, st.read).
		On(EventResolve, st.resolve).
		On(EventDeleteMessage, st.deleteMessage).
		On(graph.EventDeleteNode, st.detachNode).
		On(ir.EventTypePeriodic, st.expireTyping)
}

// newChat creates a thread. The id comes from the event when the client
// supplied one, otherwise from the generator. A thread anchored to a node
// that does not exist is not created.
func (s *State) newChat(_ context.Context, ev ir.Event, rc ir.RequestContext) error {
	nodeID := ev.Fields.StringOr("nodeId", "")
	if nodeID != "" && !s.graph.HasNode(nodeID) {
		return nil
	}

	id := ev.Fields.StringOr("id", "")
	if id == "" {
		id = s.ids.Generate()
	}

	now := rc.Time.UnixMilli()
	t := Thread{
		ID:        id,
		NodeID:    nodeID,
		CreatedBy: rc.UserID,
		CreatedAt: now,
		Messages:  []Message{},
		LastRead:  map[string]int64{},
	}
	if content, ok := ev.Fields.String("content"); ok && content != "" {
		t.Messages = append(t.Messages, Message{UserID: rc.UserID, Content: content, SentAt: now})
		t.LastRead[rc.UserID] = 0
	}

	s.Threads.Update(id, func(_ Thread, exists bool) (Thread, bool) {
		return t, !exists
	})
	return nil
}

// newMessage appends a message. Sending counts as reading everything up to
// and including the new message, and clears the sender's typing flag.
func (s *State) newMessage(_ context.Context, ev ir.Event, rc ir.RequestContext) error {
	chatID, err := reducer.String(ev, "chatId")
	if err != nil {
		return err
	}
	content, err := reducer.String(ev, "content")
	if err != nil {
		return err
	}

	s.Threads.Update(chatID, func(t Thread, ok bool) (Thread, bool) {
		if !ok {
			return t, false
		}
		t.Messages = append(t.Messages, Message{UserID: rc.UserID, Content: content, SentAt: rc.Time.UnixMilli()})
		if t.LastRead == nil {
			t.LastRead = map[string]int64{}
		}
		t.LastRead[rc.UserID] = int64(len(t.Messages) - 1)
		delete(t.Typing, rc.UserID)
		return t, true
	})
	return nil
}

func (s *State) typing(_ context.Context, ev ir.Event, rc ir.RequestContext) error {
	chatID, err := reducer.String(ev, "chatId")
	if err != nil {
		return err
	}
	on, ok := ev.Fields.Bool("typing")
	if !ok {
		on = true
	}

	s.Threads.Update(chatID, func(t Thread, ok bool) (Thread, bool) {
		if !ok {
			return t, false
		}
		if !on {
			_, had := t.Typing[rc.UserID]
			delete(t.Typing, rc.UserID)
			return t, had
		}
		if t.Typing == nil {
			t.Typing = map[string]int64{}
		}
		t.Typing[rc.UserID] = rc.Time.UnixMilli()
		return t, true
	})
	return nil
}

// read advances the user's read receipt. Receipts never move backwards and
// are clamped to the last message.
func (s *State) read(_ context.Context, ev ir.Event, rc ir.RequestContext) error {
	chatID, err := reducer.String(ev, "chatId")
	if err != nil {
		return err
	}
	idx, err := reducer.Int(ev, "index")
	if err != nil {
		return err
	}

	s.Threads.Update(chatID, func(t Thread, ok bool) (Thread, bool) {
		if !ok || len(t.Messages) == 0 || idx < 0 {
			return t, false
		}
		idx = min(idx, int64(len(t.Messages)-1))
		if cur, seen := t.LastRead[rc.UserID]; seen && cur >= idx {
			return t, false
		}
		if t.LastRead == nil {
			t.LastRead = map[string]int64{}
		}
		t.LastRead[rc.UserID] = idx
		return t, true
	})
	return nil
}

func (s *State) resolve(_ context.Context, ev ir.Event, _ ir.RequestContext) error {
	chatID, err := reducer.String(ev, "chatId")
	if err != nil {
		return err
	}
	resolved, ok := ev.Fields.Bool("resolved")
	if !ok {
		resolved = true
	}

	s.Threads.Update(chatID, func(t Thread, ok bool) (Thread, bool) {
		if !ok || t.Resolved == resolved {
			return t, false
		}
		t.Resolved = resolved
		return t, true
	})
	return nil
}

// deleteMessage soft-deletes a message. Only its author may delete it;
// anyone else is silently ignored.
func (s *State) deleteMessage(_ context.Context, ev ir.Event, rc ir.RequestContext) error {
	chatID, err := reducer.String(ev, "chatId")
	if err != nil {
		return err
	}
	idx, err := reducer.Int(ev, "index")
	if err != nil {
		return err
	}

	s.Threads.Update(chatID, func(t Thread, ok bool) (Thread, bool) {
		if !ok || idx < 0 || idx >= int64(len(t.Messages)) {
			return t, false
		}
		msg := t.Messages[idx]
		if msg.UserID != rc.UserID || msg.Deleted {
			return t, false
		}
		msg.Content = DeletedContent
		msg.Deleted = true
		t.Messages[idx] = msg
		return t, true
	})
	return nil
}

// detachNode keeps threads of a deleted node but drops their anchor.
func (s *State) detachNode(_ context.Context, ev ir.Event, _ ir.RequestContext) error {
	nodeID, err := reducer.String(ev, "id")
	if err != nil {
		return err
	}
	for _, id := range s.Threads.Keys() {
		s.Threads.Update(id, func(t Thread, ok bool) (Thread, bool) {
			if !ok || t.NodeID != nodeID {
				return t, false
			}
			t.NodeID = ""
			return t, true
		})
	}
	return nil
}

// expireTyping clears typing flags older than TypingTTL. Threads without
// stale flags are not rewritten, so an idle tick produces no changes.
func (s *State) expireTyping(_ context.Context, _ ir.Event, rc ir.RequestContext) error {
	cutoff := rc.Time.Add(-TypingTTL).UnixMilli()
	for _, id := range s.Threads.Keys() {
		s.Threads.Update(id, func(t Thread, ok bool) (Thread, bool) {
			if !ok {
				return t, false
			}
			stale := false
			for user, at := range t.Typing {
				if at <= cutoff {
					delete(t.Typing, user)
					stale = true
				}
			}
			return t, stale
		})
	}
	return nil
}
