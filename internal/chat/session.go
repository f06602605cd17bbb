package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/autoserviceai/chatd/internal/bus"
	"github.com/autoserviceai/chatd/internal/store"
)

const lastMessagesLimit = 50

// Session is one WebSocket connection bound to one conversation for its
// lifetime. Inbound events are processed serially, in arrival order; a
// separate pump drains the bus membership into the socket.
type Session struct {
	ws      *websocket.Conn
	svc     *Service
	user    *store.User
	conv    *store.Conversation
	member  *bus.Member
	admin   bool
	writeMu sync.Mutex
}

// NewSession wraps an upgraded connection whose channel resolution already
// succeeded. admin unlocks the request_payment / request_document events.
func NewSession(ws *websocket.Conn, svc *Service, user *store.User, conv *store.Conversation, admin bool) *Session {
	if user == nil {
		user = svc.Anonymous
	}
	return &Session{ws: ws, svc: svc, user: user, conv: conv, admin: admin}
}

func (s *Session) send(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.ws.WriteJSON(v)
}

// Run joins the broadcast group, replays recent history and serves the
// connection until it drops. Blocks; call from the upgrade handler.
func (s *Session) Run(ctx context.Context) {
	s.member = s.svc.Hub.Join(s.conv.Name)
	defer s.svc.Hub.Leave(s.member)
	defer s.ws.Close()

	if err := s.sendLastMessages(); err != nil {
		slog.Warn("history replay failed", "conversation", s.conv.Name, "error", err)
		return
	}

	// Leave (deferred above) closes the membership channel, which is what
	// lets the pump goroutine exit after the read loop returns.
	go s.pump()

	for {
		var event InboundEvent
		if err := s.ws.ReadJSON(&event); err != nil {
			slog.Debug("connection closed", "conversation", s.conv.Name, "error", err)
			return
		}
		if err := s.handle(ctx, event); err != nil {
			slog.Warn("event handling failed", "conversation", s.conv.Name, "type", event.Type, "error", err)
		}
	}
}

func (s *Session) handle(ctx context.Context, event InboundEvent) error {
	switch event.Type {
	case EventTyping:
		s.svc.Typing(s.conv, s.user, event.Typing)
	case EventChatMessage:
		return s.svc.ChatMessage(ctx, s.conv, s.user, event.Message, event.Documents)
	case EventRequestPayment:
		if !s.admin {
			return ErrUnauthorized
		}
		return s.svc.RequestPayment(s.conv, s.user, event.Description, event.Amount)
	case EventRequestDocument:
		if !s.admin {
			return ErrUnauthorized
		}
		return s.svc.RequestDocument(s.conv, s.user, event.Document)
	default:
		slog.Debug("unknown event ignored", "type", event.Type)
	}
	return nil
}

func (s *Session) sendLastMessages() error {
	recent, err := s.svc.Store.RecentMessages(s.conv.ID, lastMessagesLimit)
	if err != nil {
		return err
	}
	views, err := s.svc.Store.MessageViews(recent)
	if err != nil {
		return err
	}
	return s.send(LastMessages{Type: EventLastMessages, Conversation: s.conv.Name, Messages: views})
}

// pump forwards group events to the socket until the membership closes.
func (s *Session) pump() {
	dead := false
	for ev := range s.member.Events() {
		if dead {
			continue
		}
		if err := s.send(ev); err != nil {
			slog.Debug("write failed, dropping connection", "conversation", s.conv.Name, "error", err)
			// Closing the socket unblocks the read loop, which leaves the
			// group and closes this channel. Drain until then.
			s.ws.Close()
			dead = true
		}
	}
}
