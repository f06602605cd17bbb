package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/autoserviceai/chatd/internal/ai"
	"github.com/autoserviceai/chatd/internal/bus"
	"github.com/autoserviceai/chatd/internal/notify"
	"github.com/autoserviceai/chatd/internal/store"
)

// notifyQuiet is how long a thread must stay silent before the next
// message raises an agent-facing notification again.
const notifyQuiet = time.Hour

const defaultContextSize = 25

// Service owns message intake, fan-out and the autopilot responder. It is
// shared by every session and by the webhook handlers; all cross-session
// state lives in the store and the hub.
type Service struct {
	Store    *store.Store
	Hub      *bus.Hub
	Notifier *notify.Notifier

	// Autopilot wiring, resolved once at construction: the completion
	// client and the AI author identity.
	AI          *ai.Client
	AIUser      *store.User
	ContextSize int

	// Anonymous is the sentinel author for web-widget sessions that carry
	// no identity of their own.
	Anonymous *store.User

	// Outbound relays for externally bound conversations. Nil disables
	// the relay for that channel.
	WhatsApp notify.OutboundSender
	Telegram notify.OutboundSender
}

func (s *Service) contextSize() int {
	if s.ContextSize > 0 {
		return s.ContextSize
	}
	return defaultContextSize
}

// Publish fans a message view out to the conversation group.
func (s *Service) Publish(conv *store.Conversation, sender *store.User, view *store.MessageView) {
	s.Hub.Publish(conv.Name, MessageEcho{
		Type:    EventChatMessageEcho,
		Sender:  sender.Display(),
		Message: view,
	})
}

// Typing relays a typing indicator to the group. Nothing is persisted.
func (s *Service) Typing(conv *store.Conversation, sender *store.User, typing bool) {
	s.Hub.Publish(conv.Name, TypingEcho{
		Type:   EventTypingEcho,
		Sender: sender.Display(),
		Typing: typing,
	})
}

// ChatMessage persists one inbound message, fans it out, and runs the
// follow-up machinery: the agent notification gate, best-effort document
// attachment, outbound channel relay and the autopilot responder.
func (s *Service) ChatMessage(ctx context.Context, conv *store.Conversation, sender *store.User, body *string, documents []int64) error {
	prev, prevErr := s.Store.LastMessage(conv.ID)
	if prevErr != nil && prevErr != store.ErrNotFound {
		return prevErr
	}

	msg, err := s.Store.CreateMessage(conv.ID, sender.ID, body, false)
	if err != nil {
		return fmt.Errorf("persist message: %w", err)
	}
	rootView, err := s.Store.MessageView(msg)
	if err != nil {
		return err
	}

	if s.shouldNotify(sender, prev, prevErr, msg) {
		s.Notifier.MessageReceived(conv, rootView)
	}

	// Document batch: the first staged document rides the message itself,
	// every further one gets its own empty carrier message. Stale or
	// foreign ids are skipped and the batch continues.
	first := true
	for _, id := range documents {
		doc, derr := s.Store.StagedDocument(id, conv.ID)
		if derr != nil {
			slog.Debug("staged document skipped", "document", id, "conversation", conv.Name, "error", derr)
			continue
		}
		target := msg
		if !first {
			target, err = s.Store.CreateMessage(conv.ID, sender.ID, nil, false)
			if err != nil {
				return fmt.Errorf("carrier message: %w", err)
			}
		}
		if err := s.Store.AttachDocument(doc.ID, target.ID); err != nil {
			slog.Warn("document attach failed", "document", doc.ID, "error", err)
			continue
		}
		first = false

		view, err := s.Store.MessageView(target)
		if err != nil {
			return err
		}
		s.Publish(conv, sender, view)
		if committed, err := s.Store.DocumentByID(doc.ID); err == nil {
			s.Notifier.DocumentUploaded(conv, committed)
		}
	}
	if first {
		s.Publish(conv, sender, rootView)
	}

	if sender.Profile.Admin && body != nil && *body != "" {
		s.relayOutbound(ctx, conv, *body)
	}

	if s.autopilotShouldRun(conv, sender) {
		s.RunAutopilot(ctx, conv)
	}
	return nil
}

func (s *Service) shouldNotify(sender *store.User, prev *store.Message, prevErr error, msg *store.Message) bool {
	if sender.Profile.Admin {
		return true
	}
	if prevErr == store.ErrNotFound {
		return true
	}
	return msg.CreatedAt.Sub(prev.CreatedAt) > notifyQuiet
}

// autopilotShouldRun re-reads the flag from the store so a downgrade taken
// on another connection is seen immediately.
func (s *Service) autopilotShouldRun(conv *store.Conversation, sender *store.User) bool {
	if s.AI == nil || s.AIUser == nil {
		return false
	}
	if sender.Profile.Admin || sender.Profile.AI {
		return false
	}
	fresh, err := s.Store.ConversationByID(conv.ID)
	if err != nil {
		slog.Warn("autopilot flag re-read failed", "conversation", conv.Name, "error", err)
		return false
	}
	conv.Autopilot = fresh.Autopilot
	return fresh.Autopilot
}

// RunAutopilot calls the completion service synchronously and either fans
// the reply out or takes the permanent downgrade: autopilot=false plus a
// one-shot admin notification. No retry.
func (s *Service) RunAutopilot(ctx context.Context, conv *store.Conversation) {
	reply, err := s.complete(ctx, conv)
	if err != nil {
		slog.Warn("autopilot failed, deactivating", "conversation", conv.Name, "error", err)
		if derr := s.Store.SetAutopilot(conv.ID, false); derr != nil {
			slog.Error("autopilot deactivation not persisted", "conversation", conv.Name, "error", derr)
		}
		conv.Autopilot = false
		s.Notifier.AutopilotDeactivated(conv)
		return
	}

	msg, err := s.Store.CreateMessage(conv.ID, s.AIUser.ID, &reply, false)
	if err != nil {
		slog.Error("autopilot reply not persisted", "conversation", conv.Name, "error", err)
		return
	}
	view, err := s.Store.MessageView(msg)
	if err != nil {
		slog.Error("autopilot reply view", "conversation", conv.Name, "error", err)
		return
	}
	s.Publish(conv, s.AIUser, view)
	s.relayOutbound(ctx, conv, reply)
}

func (s *Service) complete(ctx context.Context, conv *store.Conversation) (string, error) {
	if s.AI == nil || s.AIUser == nil {
		return "", errors.New("no AI responder configured")
	}
	recent, err := s.Store.RecentMessages(conv.ID, s.contextSize())
	if err != nil {
		return "", fmt.Errorf("gather context: %w", err)
	}
	// RecentMessages is newest-first; the service wants chronological.
	turns := make([]ai.Turn, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		m := &recent[i]
		sender, err := s.Store.UserByID(m.FromUserID)
		if err != nil {
			return "", fmt.Errorf("context sender: %w", err)
		}
		text := ""
		if m.Body != nil {
			text = *m.Body
		}
		turns = append(turns, ai.Turn{Sender: sender.Display(), Text: text})
	}
	return s.AI.Respond(ctx, turns)
}

// RequestPayment creates a null-text message carrying a fresh payment
// request and notifies the conversation owner. Admin channel only.
func (s *Service) RequestPayment(conv *store.Conversation, sender *store.User, description string, amountCents int64) error {
	msg, err := s.Store.CreateMessage(conv.ID, sender.ID, nil, false)
	if err != nil {
		return fmt.Errorf("payment message: %w", err)
	}
	pay := &store.Payment{
		MessageID:      &msg.ID,
		ConversationID: conv.ID,
		Description:    description,
		AmountCents:    amountCents,
	}
	if err := s.Store.CreatePayment(pay); err != nil {
		return err
	}
	s.Notifier.PaymentRequested(conv, pay)

	view, err := s.Store.MessageView(msg)
	if err != nil {
		return err
	}
	s.Publish(conv, sender, view)
	return nil
}

// RequestDocument creates a null-text message carrying a document
// requirement and notifies the conversation owner. Admin channel only.
func (s *Service) RequestDocument(conv *store.Conversation, sender *store.User, requirement string) error {
	msg, err := s.Store.CreateMessage(conv.ID, sender.ID, nil, false)
	if err != nil {
		return fmt.Errorf("document message: %w", err)
	}
	doc := &store.Document{
		MessageID:      &msg.ID,
		ConversationID: conv.ID,
		Requirement:    &requirement,
	}
	if err := s.Store.CreateDocument(doc); err != nil {
		return err
	}
	s.Notifier.DocumentRequested(conv, doc)

	view, err := s.Store.MessageView(msg)
	if err != nil {
		return err
	}
	s.Publish(conv, sender, view)
	return nil
}

// InboundWhatsApp routes one webhook message through regular intake:
// phone-keyed identity, whatsapp-bound conversation, then the standard
// chat-message path including fan-out and autopilot.
func (s *Service) InboundWhatsApp(ctx context.Context, phone, text string) error {
	integ, err := s.Store.IntegrationByChannelOrCreate(store.ChannelWhatsApp)
	if err != nil {
		return err
	}
	user, err := s.Store.UserByPhoneOrCreate(phone)
	if err != nil {
		return err
	}
	conv, created, err := s.Store.ConversationByNameOrCreate(phone, &integ.ID, &user.ID, true)
	if err != nil {
		return err
	}
	if created {
		s.Notifier.NewConversation(conv)
	}
	return s.ChatMessage(ctx, conv, user, &text, nil)
}

func (s *Service) relayOutbound(ctx context.Context, conv *store.Conversation, text string) {
	if conv.IntegrationID == nil {
		return
	}
	integ, err := s.Store.IntegrationByID(*conv.IntegrationID)
	if err != nil {
		slog.Warn("outbound relay integration lookup failed", "conversation", conv.Name, "error", err)
		return
	}
	var sender notify.OutboundSender
	switch integ.Channel {
	case store.ChannelWhatsApp:
		sender = s.WhatsApp
	case store.ChannelTelegram:
		sender = s.Telegram
	default:
		return
	}
	if sender == nil {
		return
	}
	// Conversation name doubles as the channel address (phone / chat id).
	if err := sender.SendText(ctx, conv.Name, text); err != nil {
		slog.Warn("outbound relay failed", "channel", integ.Channel, "conversation", conv.Name, "error", err)
	}
}
